package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/morespeeders/extension/internal/catalog"
	"github.com/morespeeders/extension/internal/geo"
	"github.com/morespeeders/extension/internal/session"
	"github.com/morespeeders/extension/internal/storage"
	"github.com/morespeeders/extension/pkg/world"
)

// StatusFileName is rewritten in the status directory while the monitor runs.
const StatusFileName = "morespeeders.status.json"

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Session *session.Context
	Journal storage.Backend  // optional
	Catalog *catalog.Catalog // optional
	Logger  *slog.Logger     // optional

	// StatusDir receives the status file. Empty disables it.
	StatusDir string
	Interval  time.Duration
	Clock     func() time.Time
}

// Report is the answer to :STATUS:.
type Report struct {
	SessionID       string          `json:"sessionId"`
	StartedAt       time.Time       `json:"startedAt"`
	Uptime          string          `json:"uptime"`
	Status          session.Status  `json:"status"`
	ReferenceLonLat [2]float64      `json:"referenceLonLat"` // for web map overlays
	Journal         storage.Summary `json:"journal,omitempty"`
	JournalError    string          `json:"journalError,omitempty"`
	CatalogSize     int             `json:"catalogSize"`
	CatalogBounds   string          `json:"catalogBounds,omitempty"`

	// Only filled by journals that keep event positions.
	SpawnLonLat         [][2]float64 `json:"spawnLonLat,omitempty"`
	MeanDespawnDistance float64      `json:"meanDespawnDistance,omitempty"`
}

// spatialJournal is implemented by the sqlite journal.
type spatialJournal interface {
	Locations(kind storage.Kind) ([]world.Vector3, error)
	DespawnDistances() ([]float64, error)
}

// Service builds status reports and keeps the status file current.
type Service struct {
	deps Dependencies

	mu        sync.Mutex
	isRunning bool
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	return &Service{deps: deps}
}

// Report assembles the current report.
func (s *Service) Report() Report {
	now := s.deps.Clock()
	r := Report{
		SessionID: s.deps.Session.ID,
		StartedAt: s.deps.Session.StartedAt,
		Uptime:    now.Sub(s.deps.Session.StartedAt).Round(time.Second).String(),
		Status:    s.deps.Session.Status(),
	}
	r.ReferenceLonLat[0], r.ReferenceLonLat[1] = geo.LonLat(r.Status.Reference)

	if s.deps.Journal != nil {
		sum, err := s.deps.Journal.Summary()
		if err != nil {
			r.JournalError = err.Error()
		} else {
			r.Journal = sum
		}
		if sj, ok := s.deps.Journal.(spatialJournal); ok {
			s.addSpatial(&r, sj)
		}
	}

	if s.deps.Catalog != nil {
		r.CatalogSize = s.deps.Catalog.Len()
		r.CatalogBounds = s.deps.Catalog.BoundsWKT()
	}
	return r
}

func (s *Service) addSpatial(r *Report, sj spatialJournal) {
	spawns, err := sj.Locations(storage.KindSpawned)
	if err != nil {
		s.deps.Logger.Warn("Reading spawn locations failed", "error", err)
		return
	}
	for _, p := range spawns {
		lon, lat := geo.LonLat(p)
		r.SpawnLonLat = append(r.SpawnLonLat, [2]float64{lon, lat})
	}

	dists, err := sj.DespawnDistances()
	if err != nil {
		s.deps.Logger.Warn("Reading despawn distances failed", "error", err)
		return
	}
	if len(dists) > 0 {
		var total float64
		for _, d := range dists {
			total += d
		}
		r.MeanDespawnDistance = total / float64(len(dists))
	}
}

// ReportJSON returns the report encoded for the host.
func (s *Service) ReportJSON() (string, error) {
	b, err := json.Marshal(s.Report())
	if err != nil {
		return "", fmt.Errorf("encoding status: %w", err)
	}
	return string(b), nil
}

// IsRunning returns whether the status writer is running
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// Start launches the status file writer. It is a no-op without a StatusDir
// or when already running.
func (s *Service) Start() error {
	if s.deps.StatusDir == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}

	if err := os.MkdirAll(s.deps.StatusDir, 0o755); err != nil {
		return fmt.Errorf("creating status dir: %w", err)
	}

	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(s.stopChan, s.done)
	return nil
}

// Stop stops the writer and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	done := s.done
	s.isRunning = false
	s.mu.Unlock()

	<-done
}

func (s *Service) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.deps.Interval)
	defer ticker.Stop()

	s.deps.Logger.Debug("status writer started", "dir", s.deps.StatusDir)
	for {
		if err := s.WriteStatusFile(); err != nil {
			s.deps.Logger.Error("Error writing status file", "error", err)
		}
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}

// WriteStatusFile writes the current report, replacing the previous one.
// Without a StatusDir it does nothing.
func (s *Service) WriteStatusFile() error {
	if s.deps.StatusDir == "" {
		return nil
	}
	b, err := json.MarshalIndent(s.Report(), "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(s.deps.StatusDir, StatusFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
