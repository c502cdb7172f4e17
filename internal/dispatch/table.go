// Package dispatch routes incoming envelopes to exactly one registered handler.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pricofy/translation-relay/internal/domain"
)

// Handler processes one envelope. A returned error becomes {success:false}.
type Handler interface {
	Handle(ctx context.Context, env domain.Envelope) (any, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, env domain.Envelope) (any, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, env domain.Envelope) (any, error) {
	return f(ctx, env)
}

// Table maps each message kind to one handler. Build it at startup, then
// call Dispatch concurrently.
type Table struct {
	mu       sync.RWMutex
	handlers map[domain.MessageKind]Handler
	logger   *slog.Logger
}

// NewTable creates an empty table.
func NewTable(logger *slog.Logger) *Table {
	if logger == nil {
		logger = slog.Default()
	}
	return &Table{
		handlers: make(map[domain.MessageKind]Handler),
		logger:   logger,
	}
}

// Register binds kind to h. Registering a kind twice panics.
func (t *Table) Register(kind domain.MessageKind, h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !kind.Valid() {
		panic(fmt.Sprintf("dispatch: unknown message kind %q", kind))
	}
	if _, exists := t.handlers[kind]; exists {
		panic(fmt.Sprintf("dispatch: handler for %s already registered", kind))
	}
	t.handlers[kind] = h
}

// RegisterFunc binds kind to f.
func (t *Table) RegisterFunc(kind domain.MessageKind, f func(ctx context.Context, env domain.Envelope) (any, error)) {
	t.Register(kind, HandlerFunc(f))
}

// Kinds returns the registered kinds.
func (t *Table) Kinds() []domain.MessageKind {
	t.mu.RLock()
	defer t.mu.RUnlock()

	kinds := make([]domain.MessageKind, 0, len(t.handlers))
	for k := range t.handlers {
		kinds = append(kinds, k)
	}
	return kinds
}

// Dispatch routes env to its handler. The second return value is false when
// no handler is registered for env.Type; the caller must then send no reply.
func (t *Table) Dispatch(ctx context.Context, env domain.Envelope) (*domain.Response, bool) {
	t.mu.RLock()
	h, ok := t.handlers[env.Type]
	t.mu.RUnlock()

	if !ok {
		t.logger.DebugContext(ctx, "no handler for message", "type", env.Type, "requestId", env.RequestID)
		return nil, false
	}

	return t.invoke(ctx, h, env), true
}

func (t *Table) invoke(ctx context.Context, h Handler, env domain.Envelope) (resp *domain.Response) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.ErrorContext(ctx, "handler panicked", "type", env.Type, "requestId", env.RequestID, "panic", r)
			resp = domain.Fail(fmt.Errorf("internal error: %v", r))
		}
	}()

	data, err := h.Handle(ctx, env)
	if err != nil {
		t.logger.WarnContext(ctx, "handler failed", "type", env.Type, "requestId", env.RequestID, "error", err)
		return domain.Fail(err)
	}
	return domain.OK(data)
}
