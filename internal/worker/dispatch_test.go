package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/morespeeders/extension/internal/catalog"
	"github.com/morespeeders/extension/internal/config"
	"github.com/morespeeders/extension/internal/controller"
	"github.com/morespeeders/extension/internal/dispatcher"
	"github.com/morespeeders/extension/internal/monitor"
	"github.com/morespeeders/extension/internal/simworld"
	"github.com/morespeeders/extension/internal/storage/memory"
	"github.com/morespeeders/extension/pkg/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// mockLogger implements dispatcher.Logger for testing
type mockLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *mockLogger) Debug(msg string, keysAndValues ...any) { l.add(msg) }
func (l *mockLogger) Info(msg string, keysAndValues ...any)  { l.add(msg) }
func (l *mockLogger) Error(msg string, keysAndValues ...any) { l.add(msg) }

func (l *mockLogger) add(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, msg)
}

type countingFlusher struct {
	calls int
	err   error
}

func (f *countingFlusher) Flush(context.Context) error {
	f.calls++
	return f.err
}

type fixture struct {
	world      *simworld.World
	dispatcher *dispatcher.Dispatcher
	manager    *Manager
	ctrl       *controller.Controller
	flusher    *countingFlusher
	statusDir  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	d, err := dispatcher.New(&mockLogger{})
	require.NoError(t, err)

	f := &fixture{
		world:      simworld.New(),
		dispatcher: d,
		flusher:    &countingFlusher{},
		statusDir:  filepath.Join(t.TempDir(), "status"),
	}

	journal := memory.New(0)
	cat := catalog.New([]catalog.Candidate{{Position: world.Vector3{X: 500}}})
	ctrl, err := controller.New(controller.Dependencies{
		World:    f.world,
		Notifier: Notifier(d, logger),
		Config: config.Config{
			Models:            []string{"sultan"},
			MinDistance:       50,
			MaxDistance:       900,
			SpawnInterval:     10 * time.Second,
			ReactionDistance:  150,
			ShowNotifications: true,
		},
		Catalog: cat,
		Journal: journal,
		Logger:  logger,
		Rand:    rand.New(rand.NewPCG(3, 4)),
		Clock:   func() time.Time { return t0 },
	})
	require.NoError(t, err)
	f.ctrl = ctrl

	mon := monitor.NewService(monitor.Dependencies{
		Session:   ctrl.Session(),
		Journal:   journal,
		Catalog:   cat,
		Logger:    logger,
		StatusDir: f.statusDir,
		Interval:  time.Hour,
		Clock:     func() time.Time { return t0 },
	})
	t.Cleanup(mon.Stop)

	f.manager = NewManager(Dependencies{
		Controller: ctrl,
		Monitor:    mon,
		Flushers:   []Flusher{f.flusher},
		Logger:     logger,
		Version:    "1.0.0",
		BuildDate:  "2026-03-01",
		Clock:      func() time.Time { return t0 },
	})
	f.manager.RegisterHandlers(d)
	t.Cleanup(d.Close)
	return f
}

func (f *fixture) dispatch(t *testing.T, command string, args ...string) any {
	t.Helper()
	result, err := f.dispatcher.Dispatch(dispatcher.Event{Command: command, Args: args})
	require.NoError(t, err)
	return result
}

func TestRegisterHandlers(t *testing.T) {
	f := newFixture(t)
	for _, cmd := range []string{CmdVersion, CmdInit, CmdTick, CmdStatus, CmdSave, CmdNotify, CmdNotices} {
		assert.True(t, f.dispatcher.HasHandler(cmd), cmd)
	}
}

func TestVersion(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, []string{"1.0.0", "2026-03-01"}, f.dispatch(t, CmdVersion))
}

func TestTick_RunsController(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, uint64(1), f.dispatch(t, CmdTick))
	assert.Equal(t, uint64(2), f.dispatch(t, CmdTick))

	assert.Len(t, f.ctrl.Entities(), 1)
	assert.Equal(t, 1, f.world.Count(simworld.KindVehicle))
}

func TestTick_NotificationReachesOutbox(t *testing.T) {
	f := newFixture(t)

	f.dispatch(t, CmdTick)

	require.Eventually(t, func() bool { return f.manager.Outbox().Len() == 1 },
		time.Second, 5*time.Millisecond)

	notices := f.dispatch(t, CmdNotices)
	assert.Equal(t, []string{"AI Vehicle Spawned\nModel: sultan"}, notices)
	assert.Equal(t, []string{}, f.dispatch(t, CmdNotices))
}

func TestNotices_Limit(t *testing.T) {
	f := newFixture(t)
	f.manager.Outbox().Push("a", "b", "c")

	assert.Equal(t, []string{"a", "b"}, f.dispatch(t, CmdNotices, "2"))
	assert.Equal(t, []string{"c"}, f.dispatch(t, CmdNotices))

	_, err := f.dispatcher.Dispatch(dispatcher.Event{Command: CmdNotices, Args: []string{"lots"}})
	assert.Error(t, err)
}

func TestNotify_RequiresMessage(t *testing.T) {
	m := NewManager(Dependencies{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	_, err := m.handleNotify(dispatcher.Event{Command: CmdNotify})
	assert.Error(t, err)
	assert.Zero(t, m.Outbox().Len())
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	f.dispatch(t, CmdTick)

	raw, ok := f.dispatch(t, CmdStatus).(json.RawMessage)
	require.True(t, ok)

	var report monitor.Report
	require.NoError(t, json.Unmarshal(raw, &report))
	assert.Equal(t, f.ctrl.Session().ID, report.SessionID)
	assert.Equal(t, 1, report.Status.Tracked)
	assert.Equal(t, "spawned", report.Status.LastOutcome)
	assert.Equal(t, 1, report.CatalogSize)
}

func TestInit_StartsMonitor(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, "ok", f.dispatch(t, CmdInit))

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(f.statusDir, monitor.StatusFileName))
		return err == nil
	}, time.Second, 5*time.Millisecond)
}

func TestSave_FlushesAndWritesStatus(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.MkdirAll(f.statusDir, 0o755))

	assert.Equal(t, "ok", f.dispatch(t, CmdSave))
	assert.Equal(t, 1, f.flusher.calls)
	assert.FileExists(t, filepath.Join(f.statusDir, monitor.StatusFileName))
}

func TestSave_FlushErrorIsNotFatal(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.MkdirAll(f.statusDir, 0o755))
	f.flusher.err = errors.New("exporter gone")

	assert.Equal(t, "ok", f.dispatch(t, CmdSave))
}

func TestNotReady(t *testing.T) {
	m := NewManager(Dependencies{})
	d, err := dispatcher.New(&mockLogger{})
	require.NoError(t, err)
	t.Cleanup(d.Close)
	m.RegisterHandlers(d)

	_, err = d.Dispatch(dispatcher.Event{Command: CmdTick})
	assert.ErrorIs(t, err, ErrNotReady)
	_, err = d.Dispatch(dispatcher.Event{Command: CmdStatus})
	assert.ErrorIs(t, err, ErrNotReady)

	// :SAVE: and :INIT: work without optional components.
	_, err = d.Dispatch(dispatcher.Event{Command: CmdSave})
	assert.NoError(t, err)
	_, err = d.Dispatch(dispatcher.Event{Command: CmdInit})
	assert.NoError(t, err)
}

func TestNotifier_DropsAfterClose(t *testing.T) {
	d, err := dispatcher.New(&mockLogger{})
	require.NoError(t, err)
	m := NewManager(Dependencies{})
	m.RegisterHandlers(d)

	n := Notifier(d, slog.New(slog.NewTextHandler(io.Discard, nil)))
	n.Notify("first")
	d.Close()
	n.Notify("second")

	assert.Equal(t, []string{"first"}, m.Outbox().Drain(0))
}
