// Package liveness tracks whether the worker currently answers messages.
//
// The worker can be evicted between any two messages and does not announce
// its return, so the monitor polls it with PING probes.
package liveness

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pricofy/translation-relay/internal/domain"
	"github.com/pricofy/translation-relay/internal/transport"
)

// Defaults used when options are left zero.
const (
	DefaultProbeTimeout = time.Second
	DefaultPollInterval = 500 * time.Millisecond
	DefaultMaxWait      = 3 * time.Second
)

// Options configures a Monitor.
type Options struct {
	ProbeTimeout time.Duration
	Logger       *slog.Logger
	// Now is the clock used for LastActiveTime.
	Now func() time.Time
}

// Monitor probes one worker. Create one per process and share it.
type Monitor struct {
	sender       transport.Sender
	probeTimeout time.Duration
	logger       *slog.Logger
	now          func() time.Time

	mu     sync.RWMutex
	status domain.LivenessStatus
}

// New creates a Monitor that probes through sender.
func New(sender transport.Sender, opts Options) *Monitor {
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = DefaultProbeTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Monitor{
		sender:       sender,
		probeTimeout: opts.ProbeTimeout,
		logger:       opts.Logger,
		now:          opts.Now,
	}
}

// Probe sends a PING and reports whether any response arrived in time.
func (m *Monitor) Probe(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()

	env := domain.Envelope{Type: domain.KindPing}
	resp, err := m.sender.Send(probeCtx, env)
	alive := err == nil && resp != nil

	m.mu.Lock()
	defer m.mu.Unlock()

	m.status.IsInitialized = true
	m.status.IsAlive = alive
	if alive {
		if now := m.now(); now.After(m.status.LastActiveTime) {
			m.status.LastActiveTime = now
		}
	}
	return alive
}

// AwaitRevival probes every pollInterval until a probe succeeds or maxWait
// has elapsed. Only the calling goroutine waits.
func (m *Monitor) AwaitRevival(ctx context.Context, maxWait, pollInterval time.Duration) bool {
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	ctx, cancel := context.WithTimeout(ctx, maxWait)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	polls := 0
	for {
		polls++
		if m.Probe(ctx) {
			m.logger.DebugContext(ctx, "worker revived", "polls", polls)
			return true
		}

		select {
		case <-ctx.Done():
			m.logger.DebugContext(ctx, "worker did not revive", "polls", polls, "maxWait", maxWait)
			return false
		case <-ticker.C:
		}
	}
}

// Status returns the last observed state without probing.
func (m *Monitor) Status() domain.LivenessStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}
