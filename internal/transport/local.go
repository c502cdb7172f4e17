package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"

	"github.com/pricofy/translation-relay/internal/dispatch"
	"github.com/pricofy/translation-relay/internal/domain"
)

const (
	defaultPoolSize  = 16
	noticeBufferSize = 16
)

// LocalOptions configures an in-process worker.
type LocalOptions struct {
	PoolSize int
	Logger   *slog.Logger
}

// Local runs the worker's dispatch table in-process. Each message is handled
// on an ants pool goroutine so the dispatcher never blocks on a handler.
// Suspend drops incoming messages until Resume, like an evicted worker.
type Local struct {
	table     *dispatch.Table
	pool      *ants.Pool
	logger    *slog.Logger
	suspended atomic.Bool

	mu      sync.Mutex
	notices map[string]chan domain.Envelope
}

// NewLocal creates an in-process worker around table.
func NewLocal(table *dispatch.Table, opts LocalOptions) (*Local, error) {
	if opts.PoolSize <= 0 {
		opts.PoolSize = defaultPoolSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	logger := opts.Logger
	pool, err := ants.NewPool(opts.PoolSize,
		ants.WithPanicHandler(func(p any) {
			logger.Error("worker task panicked", "panic", p)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	return &Local{
		table:   table,
		pool:    pool,
		logger:  logger,
		notices: make(map[string]chan domain.Envelope),
	}, nil
}

type localResult struct {
	resp    *domain.Response
	handled bool
}

// Send hands env to the dispatch table and waits for the reply or ctx.
// While suspended the message is dropped and Send waits for ctx to end.
func (l *Local) Send(ctx context.Context, env domain.Envelope) (*domain.Response, error) {
	if l.suspended.Load() {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	// Buffered so an abandoned attempt never blocks the handler goroutine.
	results := make(chan localResult, 1)
	handlerCtx := context.WithoutCancel(ctx)

	err := l.pool.Submit(func() {
		resp, handled := l.table.Dispatch(handlerCtx, env)
		results <- localResult{resp: resp, handled: handled}
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWorkerUnavailable, err)
	}

	select {
	case r := <-results:
		if !r.handled {
			return nil, nil
		}
		return r.resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Suspend makes the worker stop answering.
func (l *Local) Suspend() {
	l.suspended.Store(true)
	l.logger.Debug("local worker suspended")
}

// Resume makes the worker answer again.
func (l *Local) Resume() {
	l.suspended.Store(false)
	l.logger.Debug("local worker resumed")
}

// Suspended reports whether the worker is dropping messages.
func (l *Local) Suspended() bool {
	return l.suspended.Load()
}

// Notices returns the channel of envelopes pushed to origin.
func (l *Local) Notices(origin string) <-chan domain.Envelope {
	return l.noticeChan(origin)
}

func (l *Local) noticeChan(origin string) chan domain.Envelope {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.notices[origin]
	if !ok {
		ch = make(chan domain.Envelope, noticeBufferSize)
		l.notices[origin] = ch
	}
	return ch
}

// Notify pushes env to the foreground context identified by origin. It
// never blocks: when the origin's buffer is full the notice is dropped.
func (l *Local) Notify(_ context.Context, origin string, env domain.Envelope) error {
	select {
	case l.noticeChan(origin) <- env:
		return nil
	default:
		return fmt.Errorf("%w: origin %s", ErrNoticeDropped, origin)
	}
}

// Close releases the worker pool.
func (l *Local) Close() {
	l.pool.Release()
}
