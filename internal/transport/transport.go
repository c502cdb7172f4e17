// Package transport carries envelopes between foreground callers and the worker.
package transport

import (
	"context"
	"errors"

	"github.com/pricofy/translation-relay/internal/domain"
)

// Sender performs one raw send. A nil response with a nil error means the
// worker received the message but produced no reply.
type Sender interface {
	Send(ctx context.Context, env domain.Envelope) (*domain.Response, error)
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, env domain.Envelope) (*domain.Response, error)

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, env domain.Envelope) (*domain.Response, error) {
	return f(ctx, env)
}

// ErrWorkerUnavailable is returned when the worker cannot be reached at all.
var ErrWorkerUnavailable = errors.New("worker unavailable")

// ErrNoticeDropped is returned when a foreground context is not draining its pushes.
var ErrNoticeDropped = errors.New("notice dropped: buffer full")
