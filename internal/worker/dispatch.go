package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/morespeeders/extension/internal/dispatcher"
)

// Host commands.
const (
	CmdVersion = ":VERSION:"
	CmdInit    = ":INIT:"
	CmdTick    = ":TICK:"
	CmdStatus  = ":STATUS:"
	CmdSave    = ":SAVE:"
	CmdNotify  = ":NOTIFY:"
	CmdNotices = ":NOTICES:"
)

// ErrNotReady is returned by commands that need a component the manager was built without.
var ErrNotReady = errors.New("not ready")

// RegisterHandlers registers all host commands with the dispatcher.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	d.Register(CmdVersion, m.handleVersion)
	d.Register(CmdInit, m.handleInit, dispatcher.Logged())
	d.Register(CmdStatus, m.handleStatus)
	d.Register(CmdSave, m.handleSave, dispatcher.Logged())

	// Called every frame by hosts with an update callback.
	d.Register(CmdTick, m.handleTick)

	// Posted by the controller, drained by the host.
	d.Register(CmdNotify, m.handleNotify, dispatcher.Buffered(DefaultOutboxSize))
	d.Register(CmdNotices, m.handleNotices)
}

func (m *Manager) handleVersion(e dispatcher.Event) (any, error) {
	return []string{m.deps.Version, m.deps.BuildDate}, nil
}

func (m *Manager) handleInit(e dispatcher.Event) (any, error) {
	if m.deps.Monitor != nil {
		if err := m.deps.Monitor.Start(); err != nil {
			return nil, fmt.Errorf("starting monitor: %w", err)
		}
	}
	m.deps.Logger.Info("extension initialized", "version", m.deps.Version)
	return "ok", nil
}

func (m *Manager) handleTick(e dispatcher.Event) (any, error) {
	if m.deps.Controller == nil {
		return nil, fmt.Errorf("%s: %w", CmdTick, ErrNotReady)
	}
	m.deps.Controller.Tick(m.deps.Clock())
	return m.deps.Controller.Ticks(), nil
}

func (m *Manager) handleStatus(e dispatcher.Event) (any, error) {
	if m.deps.Monitor == nil {
		return nil, fmt.Errorf("%s: %w", CmdStatus, ErrNotReady)
	}
	report, err := m.deps.Monitor.ReportJSON()
	if err != nil {
		return nil, err
	}
	return json.RawMessage(report), nil
}

func (m *Manager) handleSave(e dispatcher.Event) (any, error) {
	ctx, cancel := context.WithTimeout(context.Background(), m.deps.SaveTimeout)
	defer cancel()

	for _, f := range m.deps.Flushers {
		if err := f.Flush(ctx); err != nil {
			m.deps.Logger.Warn("Failed to flush", "error", err)
		}
	}
	if m.deps.Monitor != nil {
		if err := m.deps.Monitor.WriteStatusFile(); err != nil {
			return nil, fmt.Errorf("writing status file: %w", err)
		}
	}
	return "ok", nil
}

func (m *Manager) handleNotify(e dispatcher.Event) (any, error) {
	if len(e.Args) == 0 {
		return nil, fmt.Errorf("%s: missing message", CmdNotify)
	}
	m.deps.Logger.Info("notification", "message", e.Args[0])
	if dropped := m.deps.Outbox.Push(e.Args[0]); dropped > 0 {
		m.deps.Logger.Warn("notification outbox full, dropped oldest", "dropped", dropped)
	}
	return nil, nil
}

// handleNotices drains pending notifications. An optional argument caps how many are returned.
func (m *Manager) handleNotices(e dispatcher.Event) (any, error) {
	max := 0
	if len(e.Args) > 0 {
		n, err := strconv.Atoi(e.Args[0])
		if err != nil {
			return nil, fmt.Errorf("%s: bad limit %q: %w", CmdNotices, e.Args[0], err)
		}
		max = n
	}
	return m.deps.Outbox.Drain(max), nil
}
