// Package app assembles the extension: config, logging, telemetry, journal,
// controller and the host command handlers.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/morespeeders/extension/internal/catalog"
	"github.com/morespeeders/extension/internal/config"
	"github.com/morespeeders/extension/internal/controller"
	"github.com/morespeeders/extension/internal/dispatcher"
	"github.com/morespeeders/extension/internal/logging"
	"github.com/morespeeders/extension/internal/monitor"
	intOtel "github.com/morespeeders/extension/internal/otel"
	"github.com/morespeeders/extension/internal/session"
	"github.com/morespeeders/extension/internal/storage"
	"github.com/morespeeders/extension/internal/storage/memory"
	sqlitestorage "github.com/morespeeders/extension/internal/storage/sqlite"
	"github.com/morespeeders/extension/internal/worker"
	"github.com/morespeeders/extension/pkg/world"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/spf13/viper"
)

// ExtensionName prefixes the log and status files.
const ExtensionName = "morespeeders"

// Options configures New.
type Options struct {
	// Folder holds the config file. Relative logsDir values resolve against it.
	Folder    string
	Version   string
	BuildDate string

	World   world.Adapter
	Catalog *catalog.Catalog // defaults to catalog.Default()
	// Models are spawned when the config file names none.
	Models []string

	// Console receives log output until the session log file is open, and
	// afterwards if it cannot be opened. Defaults to os.Stdout.
	Console      io.Writer
	MetricReader sdkmetric.Reader
	Rand         *rand.Rand
	Now          func() time.Time
}

// App is one loaded extension session.
type App struct {
	Logger      *slog.Logger
	SlogManager *logging.SlogManager
	Dispatcher  *dispatcher.Dispatcher
	Controller  *controller.Controller
	Monitor     *monitor.Service
	Workers     *worker.Manager
	Journal     storage.Backend
	OTel        *intOtel.Provider
	Session     *session.Context
	Config      config.Config

	LogFilePath string
	logFile     *os.File

	loopMu     sync.Mutex
	loopCancel context.CancelFunc
	loopDone   chan struct{}
}

// New loads configuration and wires every component. Configuration problems
// are logged and replaced with defaults; only wiring failures are returned.
func New(opts Options) (*App, error) {
	if opts.World == nil {
		return nil, errors.New("app: no world adapter")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Console == nil {
		opts.Console = os.Stdout
	}

	a := &App{SlogManager: logging.NewSlogManager()}
	startedAt := opts.Now()
	a.Session = session.NewContext(startedAt)
	tickLog := logging.NewSessionContext(a.Session.ID)

	// Console first, so config problems are visible.
	a.SlogManager.Setup(logging.Options{
		Level:   viper.GetString("logLevel"),
		Console: opts.Console,
		Context: tickLog.Provider(),
	})
	a.Logger = a.SlogManager.Logger()

	if err := config.Load(opts.Folder); err != nil {
		a.Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		a.Logger.Info("Loaded config", "file", viper.ConfigFileUsed())
	}

	cfg, err := config.Get()
	if err != nil {
		a.Logger.Warn("Config values replaced with defaults", "error", err)
	}
	if !cfg.SpawningEnabled() && len(opts.Models) > 0 {
		cfg.Models = append([]string(nil), opts.Models...)
	}
	a.Config = cfg
	if !cfg.SpawningEnabled() {
		a.Logger.Warn("No vehicle models configured, spawning disabled")
	}

	logsDir := config.GetString("logsDir")
	if !filepath.IsAbs(logsDir) {
		logsDir = filepath.Join(opts.Folder, logsDir)
	}
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		a.Logger.Error("Failed to create logs directory", "error", err, "path", logsDir)
	}

	a.LogFilePath = logging.LogFilePath(logsDir, ExtensionName, startedAt)
	if _, err := os.Stat(a.LogFilePath); err == nil {
		_ = os.Rename(a.LogFilePath, a.LogFilePath+".old")
	}
	a.logFile, err = os.OpenFile(a.LogFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
	if err != nil {
		a.Logger.Error("Failed to create/open log file!", "error", err, "path", a.LogFilePath)
		a.logFile = nil
	}

	var logOut io.Writer = opts.Console
	if a.logFile != nil {
		logOut = a.logFile
	}

	otelCfg := config.GetOTelConfig()
	a.OTel, err = intOtel.New(intOtel.Config{
		Enabled:      otelCfg.Enabled,
		ServiceName:  otelCfg.ServiceName,
		BatchTimeout: otelCfg.BatchTimeout,
		LogWriter:    logOut,
		MetricReader: opts.MetricReader,
	})
	if err != nil {
		a.Logger.Error("Failed to initialize OTel provider", "error", err)
		a.OTel, _ = intOtel.New(intOtel.Config{})
	} else if otelCfg.Enabled {
		a.Logger.Info("OTel provider initialized", "file", a.LogFilePath)
	}

	// Re-setup logging with file output and optional OTel.
	logOpts := logging.Options{
		Level:       config.GetString("logLevel"),
		Console:     opts.Console,
		Provider:    a.OTel.LoggerProvider(),
		ServiceName: otelCfg.ServiceName,
		Context:     tickLog.Provider(),
	}
	if a.logFile != nil {
		logOpts.File = a.logFile
	}
	a.SlogManager.Setup(logOpts)
	a.Logger = a.SlogManager.Logger()
	a.Logger.Info("Logging to file", "path", a.LogFilePath, "session", a.Session.ID)

	a.Dispatcher, err = dispatcher.New(logging.NewDispatcherLogger(
		logging.NewZerolog(logOut, config.GetString("logLevel")),
	))
	if err != nil {
		a.closeFile()
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}

	storageCfg := config.GetStorageConfig()
	a.Journal, err = CreateStorageBackend(storageCfg)
	if err == nil {
		err = a.Journal.Init()
	}
	if err != nil {
		a.Logger.Error("Failed to initialize journal, continuing without one", "type", storageCfg.Type, "error", err)
		a.Journal = storage.Noop{}
	} else {
		a.Logger.Info("Journal initialized", "type", storageCfg.Type)
	}

	cat := opts.Catalog
	if cat == nil {
		cat = catalog.Default()
	}

	a.Controller, err = controller.New(controller.Dependencies{
		World:    opts.World,
		Notifier: worker.Notifier(a.Dispatcher, a.SlogManager.Component("notify")),
		Config:   cfg,
		Catalog:  cat,
		Journal:  a.Journal,
		Session:  a.Session,
		Logger:   a.SlogManager.Component("controller"),
		TickLog:  tickLog,
		Meter:    a.OTel.Meter("github.com/morespeeders/extension/internal/controller"),
		Rand:     opts.Rand,
		Clock:    opts.Now,
	})
	if err != nil {
		a.Dispatcher.Close()
		a.closeFile()
		return nil, fmt.Errorf("failed to create controller: %w", err)
	}

	a.Monitor = monitor.NewService(monitor.Dependencies{
		Session:   a.Session,
		Journal:   a.Journal,
		Catalog:   cat,
		Logger:    a.SlogManager.Component("monitor"),
		StatusDir: logsDir,
		Clock:     opts.Now,
	})

	a.Workers = worker.NewManager(worker.Dependencies{
		Controller: a.Controller,
		Monitor:    a.Monitor,
		Flushers:   []worker.Flusher{a.OTel, a.SlogManager},
		Logger:     a.SlogManager.Component("worker"),
		Version:    opts.Version,
		BuildDate:  opts.BuildDate,
		Clock:      opts.Now,
	})
	a.Workers.RegisterHandlers(a.Dispatcher)
	a.Logger.Info("Dispatcher initialized with host commands")

	return a, nil
}

// CreateStorageBackend returns an uninitialized journal of the configured type.
func CreateStorageBackend(cfg config.StorageConfig) (storage.Backend, error) {
	switch cfg.Type {
	case "", "memory":
		return memory.New(0), nil
	case "sqlite":
		return sqlitestorage.New(), nil
	case "none":
		return storage.Noop{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", storage.ErrUnknownBackend, cfg.Type)
	}
}

// Run drives the controller from its own ticker until ctx is done. Hosts that
// call :TICK: every frame do not need it.
func (a *App) Run(ctx context.Context) error {
	if err := a.Monitor.Start(); err != nil {
		a.Logger.Warn("Status writer not started", "error", err)
	}
	return a.Controller.Run(ctx, config.TickInterval())
}

// StartLoop runs Run in the background, for hosts that load the extension but
// never send :TICK:. Calling it again while the loop runs does nothing.
func (a *App) StartLoop() {
	a.loopMu.Lock()
	defer a.loopMu.Unlock()
	if a.loopCancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	a.loopCancel, a.loopDone = cancel, done
	go func() {
		defer close(done)
		if err := a.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.Logger.Error("Poll loop stopped", "error", err)
		}
	}()
}

// StopLoop cancels the loop started by StartLoop and waits for it to return.
func (a *App) StopLoop() {
	a.loopMu.Lock()
	cancel, done := a.loopCancel, a.loopDone
	a.loopCancel, a.loopDone = nil, nil
	a.loopMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Close stops background work, drains queues and releases the session log.
func (a *App) Close() error {
	a.StopLoop()
	a.Monitor.Stop()
	a.Dispatcher.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	if err := a.Monitor.WriteStatusFile(); err != nil {
		errs = append(errs, fmt.Errorf("writing status file: %w", err))
	}
	if err := a.Journal.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing journal: %w", err))
	}
	if err := a.OTel.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutting down otel: %w", err))
	}
	a.Logger.Info("Session closed", "ticks", a.Controller.Ticks())
	a.closeFile()
	return errors.Join(errs...)
}

func (a *App) closeFile() {
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}
