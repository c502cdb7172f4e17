package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/panjf2000/ants/v2"

	"github.com/pricofy/translation-relay/internal/dispatch"
	"github.com/pricofy/translation-relay/internal/domain"
)

// Default NATS subjects.
const (
	DefaultSubject    = "relay.worker"
	DefaultQueueGroup = "relay-workers"
	NoticeSubjectRoot = "relay.tab."
)

// NoticeSubject returns the subject that pushes for origin are published on.
func NoticeSubject(origin string) string {
	return NoticeSubjectRoot + origin
}

// NATS sends envelopes to workers over NATS request/reply.
type NATS struct {
	conn    *nats.Conn
	subject string
}

// NewNATS creates a NATS transport. An empty subject uses DefaultSubject.
func NewNATS(conn *nats.Conn, subject string) *NATS {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATS{conn: conn, subject: subject}
}

// Send issues a request and waits for the reply or ctx. A worker that does
// not route the message never replies, so the request times out.
func (n *NATS) Send(ctx context.Context, env domain.Envelope) (*domain.Response, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope: %w", err)
	}

	msg, err := n.conn.RequestWithContext(ctx, n.subject, data)
	if err != nil {
		if errors.Is(err, nats.ErrNoResponders) {
			return nil, fmt.Errorf("%w: %v", ErrWorkerUnavailable, err)
		}
		return nil, err
	}

	var resp domain.Response
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &resp, nil
}

// Notify publishes env on the notice subject of origin.
func (n *NATS) Notify(_ context.Context, origin string, env domain.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return n.conn.Publish(NoticeSubject(origin), data)
}

// SubscribeNotices delivers envelopes pushed to origin to fn.
func SubscribeNotices(conn *nats.Conn, origin string, fn func(domain.Envelope)) (*nats.Subscription, error) {
	return conn.Subscribe(NoticeSubject(origin), func(msg *nats.Msg) {
		var env domain.Envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			return
		}
		fn(env)
	})
}

// Server answers NATS requests with a dispatch table.
type Server struct {
	conn       *nats.Conn
	table      *dispatch.Table
	subject    string
	queueGroup string
	pool       *ants.Pool
	logger     *slog.Logger
	shutdown   time.Duration
}

const defaultShutdownTimeout = 10 * time.Second

// ServerOptions configures a Server.
type ServerOptions struct {
	Subject    string
	QueueGroup string
	PoolSize   int
	Logger     *slog.Logger
	// ShutdownTimeout bounds how long Serve waits for in-flight replies.
	ShutdownTimeout time.Duration
}

// NewServer creates a NATS responder for table.
func NewServer(conn *nats.Conn, table *dispatch.Table, opts ServerOptions) (*Server, error) {
	if opts.Subject == "" {
		opts.Subject = DefaultSubject
	}
	if opts.QueueGroup == "" {
		opts.QueueGroup = DefaultQueueGroup
	}
	if opts.PoolSize <= 0 {
		opts.PoolSize = defaultPoolSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = defaultShutdownTimeout
	}

	pool, err := ants.NewPool(opts.PoolSize)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	return &Server{
		conn:       conn,
		table:      table,
		subject:    opts.Subject,
		queueGroup: opts.QueueGroup,
		pool:       pool,
		logger:     opts.Logger,
		shutdown:   opts.ShutdownTimeout,
	}, nil
}

// Serve answers requests until ctx is done, then drains the subscription
// and lets in-flight handlers reply before returning.
func (s *Server) Serve(ctx context.Context) error {
	// Handlers outlive ctx during shutdown.
	handlerCtx := context.WithoutCancel(ctx)

	sub, err := s.conn.QueueSubscribe(s.subject, s.queueGroup, func(msg *nats.Msg) {
		if err := s.pool.Submit(func() { s.handle(handlerCtx, msg) }); err != nil {
			s.logger.Error("failed to schedule message", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", s.subject, err)
	}

	s.logger.Info("worker listening", "subject", s.subject, "queue", s.queueGroup)
	<-ctx.Done()

	if err := sub.Drain(); err != nil {
		s.logger.Warn("drain failed", "error", err)
	}
	deadline := time.Now().Add(s.shutdown)
	for sub.IsValid() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if err := s.pool.ReleaseTimeout(time.Until(deadline)); err != nil {
		s.logger.Warn("in-flight messages did not finish", "error", err)
	}
	return nil
}

func (s *Server) handle(ctx context.Context, msg *nats.Msg) {
	var env domain.Envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		s.logger.Warn("dropping malformed envelope", "error", err)
		return
	}

	resp, handled := s.table.Dispatch(ctx, env)
	if !handled {
		return
	}

	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("failed to marshal response", "type", env.Type, "error", err)
		return
	}
	if err := msg.Respond(data); err != nil {
		s.logger.Warn("failed to respond", "type", env.Type, "requestId", env.RequestID, "error", err)
	}
}
