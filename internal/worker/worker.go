package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/morespeeders/extension/internal/controller"
	"github.com/morespeeders/extension/internal/dispatcher"
	"github.com/morespeeders/extension/internal/monitor"
	"github.com/morespeeders/extension/internal/queue"
	"github.com/morespeeders/extension/pkg/world"
)

// DefaultOutboxSize bounds the notifications waiting for the host.
const DefaultOutboxSize = 64

// Flusher is anything :SAVE: should flush, such as the OTel provider or the log manager.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Controller *controller.Controller
	Monitor    *monitor.Service
	Outbox     *queue.Queue[string] // created when nil
	Flushers   []Flusher
	Logger     *slog.Logger

	Version   string
	BuildDate string

	SaveTimeout time.Duration
	Clock       func() time.Time
}

// Manager answers host commands on behalf of the controller.
type Manager struct {
	deps Dependencies
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies) *Manager {
	if deps.Outbox == nil {
		deps.Outbox = queue.NewBounded[string](DefaultOutboxSize)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.SaveTimeout <= 0 {
		deps.SaveTimeout = 5 * time.Second
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &Manager{deps: deps}
}

// Outbox returns the queue the host drains with :NOTICES:.
func (m *Manager) Outbox() *queue.Queue[string] {
	return m.deps.Outbox
}

// Notifier posts notifications to the :NOTIFY: handler of d. Posting never
// blocks the caller; a full queue drops the message.
func Notifier(d *dispatcher.Dispatcher, logger *slog.Logger) world.Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return world.NotifierFunc(func(message string) {
		if _, err := d.Dispatch(dispatcher.Event{
			Command: CmdNotify,
			Args:    []string{message},
		}); err != nil {
			logger.Warn("notification dropped", "error", err)
		}
	})
}
