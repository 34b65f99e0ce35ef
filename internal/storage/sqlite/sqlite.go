// Package sqlitestorage implements the storage.Backend interface using an
// in-memory SQLite database. Each backend opens its own named shared-cache
// database so independent sessions never see each other's rows.
package sqlitestorage

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/morespeeders/extension/internal/geo"
	"github.com/morespeeders/extension/internal/storage"
	"github.com/morespeeders/extension/pkg/world"
	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// LifecycleEvent is the journal row.
type LifecycleEvent struct {
	ID       uint       `gorm:"primarykey"`
	Time     time.Time  `gorm:"index"`
	Kind     string     `gorm:"size:16;index"`
	EntityID string     `gorm:"size:36"`
	Model    string     `gorm:"size:64"`
	Reason   string     `gorm:"size:32"`
	Location geom.Point `gorm:"type:blob"` // WKB, world frame
	Details  datatypes.JSON
}

// TableName pins the table name.
func (LifecycleEvent) TableName() string {
	return "lifecycle_events"
}

type eventDetails struct {
	Distance float64 `json:"distance,omitempty"`
}

// Backend stores lifecycle events through GORM.
type Backend struct {
	dsn string
	db  *gorm.DB
	mu  sync.Mutex
}

// New creates a backend. The database is opened in Init.
func New() *Backend {
	return &Backend{
		dsn: fmt.Sprintf("file:journal-%s?mode=memory&cache=shared", uuid.NewString()),
	}
}

// Init opens the database and migrates the schema.
func (b *Backend) Init() error {
	db, err := gorm.Open(sqlite.Open(b.dsn), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to open journal DB: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = MEMORY;",
		"PRAGMA synchronous = OFF;",
	}
	for _, p := range pragmas {
		if err := db.Exec(p).Error; err != nil {
			return fmt.Errorf("error setting pragma %q: %w", p, err)
		}
	}

	if err := db.AutoMigrate(&LifecycleEvent{}); err != nil {
		return fmt.Errorf("failed to migrate journal schema: %w", err)
	}

	b.mu.Lock()
	b.db = db
	b.mu.Unlock()
	return nil
}

// Close releases the connection. The in-memory database goes with it.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db == nil {
		return nil
	}
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	b.db = nil
	return sqlDB.Close()
}

func (b *Backend) conn() (*gorm.DB, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db == nil {
		return nil, fmt.Errorf("journal not initialized")
	}
	return b.db, nil
}

// RecordLifecycle inserts one event.
func (b *Backend) RecordLifecycle(e *storage.Event) error {
	db, err := b.conn()
	if err != nil {
		return err
	}

	details, err := json.Marshal(eventDetails{Distance: e.Distance})
	if err != nil {
		return fmt.Errorf("failed to encode details: %w", err)
	}

	// A non-finite position is stored as an empty point; the event still counts.
	loc, _ := geo.Point(e.Position)

	row := LifecycleEvent{
		Time:     e.Time,
		Kind:     string(e.Kind),
		EntityID: e.EntityID,
		Model:    e.Model,
		Reason:   e.Reason,
		Location: loc,
		Details:  datatypes.JSON(details),
	}
	if err := db.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to record %s event: %w", e.Kind, err)
	}
	return nil
}

// Summary counts rows per kind.
func (b *Backend) Summary() (storage.Summary, error) {
	db, err := b.conn()
	if err != nil {
		return nil, err
	}

	var rows []struct {
		Kind  string
		Total int
	}
	err = db.Model(&LifecycleEvent{}).
		Select("kind, count(*) as total").
		Group("kind").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to summarize journal: %w", err)
	}

	out := make(storage.Summary, len(rows))
	for _, r := range rows {
		out[storage.Kind(r.Kind)] = r.Total
	}
	return out, nil
}

// DespawnDistances returns the distances recorded for despawned entities,
// oldest first.
func (b *Backend) DespawnDistances() ([]float64, error) {
	db, err := b.conn()
	if err != nil {
		return nil, err
	}

	var rows []LifecycleEvent
	err = db.Where("kind = ?", string(storage.KindDespawned)).Order("id").Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]float64, 0, len(rows))
	for _, r := range rows {
		var d eventDetails
		if err := json.Unmarshal(r.Details, &d); err != nil {
			return nil, fmt.Errorf("bad details on row %d: %w", r.ID, err)
		}
		out = append(out, d.Distance)
	}
	return out, nil
}

// Locations returns where events of a kind happened, oldest first.
func (b *Backend) Locations(kind storage.Kind) ([]world.Vector3, error) {
	db, err := b.conn()
	if err != nil {
		return nil, err
	}

	var rows []LifecycleEvent
	if err := db.Select("id", "location").Where("kind = ?", string(kind)).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]world.Vector3, len(rows))
	for i, r := range rows {
		out[i] = geo.Vector(r.Location)
	}
	return out, nil
}
