package logging

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// ContextProvider returns attributes evaluated at log time.
type ContextProvider func() []slog.Attr

// ContextHandler wraps another handler and injects dynamic context attributes.
type ContextHandler struct {
	inner    slog.Handler
	provider ContextProvider
}

// NewContextHandler creates a handler that adds dynamic context to each record.
func NewContextHandler(inner slog.Handler, provider ContextProvider) *ContextHandler {
	return &ContextHandler{
		inner:    inner,
		provider: provider,
	}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.provider != nil {
		r.AddAttrs(h.provider()...)
	}
	return h.inner.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{
		inner:    h.inner.WithAttrs(attrs),
		provider: h.provider,
	}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &ContextHandler{
		inner:    h.inner.WithGroup(name),
		provider: h.provider,
	}
}

// SessionContext tags every record with the session id and the current tick.
// The controller advances the tick; loggers read it.
type SessionContext struct {
	sessionID string
	tick      atomic.Uint64
}

func NewSessionContext(sessionID string) *SessionContext {
	return &SessionContext{sessionID: sessionID}
}

// SetTick records the tick number in progress.
func (s *SessionContext) SetTick(n uint64) {
	s.tick.Store(n)
}

// Provider returns a ContextProvider for NewContextHandler.
func (s *SessionContext) Provider() ContextProvider {
	return func() []slog.Attr {
		return []slog.Attr{
			slog.String("session", s.sessionID),
			slog.Uint64("tick", s.tick.Load()),
		}
	}
}
