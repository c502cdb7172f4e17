// Package delivery sends envelopes to a worker that may be suspended between
// messages, retrying with timeouts and waiting for the worker to revive.
package delivery

import (
	"context"
	"errors"
	"time"

	"github.com/pricofy/translation-relay/internal/domain"
	"github.com/pricofy/translation-relay/internal/metrics"
)

// Options bounds one logical send.
type Options struct {
	MaxRetries     int
	RetryDelay     time.Duration
	Timeout        time.Duration
	WaitForRevival bool
	// RevivalWait and RevivalPoll bound the revival wait between attempts.
	RevivalWait time.Duration
	RevivalPoll time.Duration
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		MaxRetries:     3,
		RetryDelay:     time.Second,
		Timeout:        5 * time.Second,
		WaitForRevival: true,
		RevivalWait:    3 * time.Second,
		RevivalPoll:    500 * time.Millisecond,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.MaxRetries <= 0 {
		o.MaxRetries = def.MaxRetries
	}
	if o.RetryDelay < 0 {
		o.RetryDelay = 0
	}
	if o.Timeout <= 0 {
		o.Timeout = def.Timeout
	}
	if o.RevivalWait <= 0 {
		o.RevivalWait = def.RevivalWait
	}
	if o.RevivalPoll <= 0 {
		o.RevivalPoll = def.RevivalPoll
	}
	return o
}

type attemptResult struct {
	resp *domain.Response
	err  error
}

// SendWithRetry delivers env and returns the first response, or nil when
// every attempt failed. Attempts are sequential; each is bounded by
// opts.Timeout and a late reply to an abandoned attempt is discarded.
// Between attempts it optionally waits for revival, then backs off
// RetryDelay*i.
func (c *Client) SendWithRetry(ctx context.Context, env domain.Envelope, opts Options) *domain.Response {
	opts = opts.withDefaults()
	kind := string(env.Type)
	log := c.logger.With("type", kind, "requestId", env.RequestID)

	for i := 1; i <= opts.MaxRetries; i++ {
		resp, outcome := c.attempt(ctx, env, opts.Timeout)
		c.metrics.Attempt(kind, outcome)

		if resp != nil {
			if i > 1 {
				log.InfoContext(ctx, "message delivered after retry", "attempt", i)
			}
			return resp
		}

		log.WarnContext(ctx, "send attempt failed", "attempt", i, "maxRetries", opts.MaxRetries, "outcome", outcome)

		if i == opts.MaxRetries {
			break
		}

		if opts.WaitForRevival {
			revived := c.monitor.AwaitRevival(ctx, opts.RevivalWait, opts.RevivalPoll)
			c.metrics.Revival(revived)
		}

		select {
		case <-ctx.Done():
			log.WarnContext(ctx, "send abandoned", "error", ctx.Err())
			c.metrics.Exhausted(kind)
			return nil
		case <-time.After(opts.RetryDelay * time.Duration(i)):
		}
	}

	log.ErrorContext(ctx, "no response after retries", "maxRetries", opts.MaxRetries)
	c.metrics.Exhausted(kind)
	return nil
}

func (c *Client) attempt(ctx context.Context, env domain.Envelope, timeout time.Duration) (*domain.Response, string) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Buffered so the sender goroutine can finish after the attempt is abandoned.
	results := make(chan attemptResult, 1)
	go func() {
		resp, err := c.sender.Send(attemptCtx, env)
		results <- attemptResult{resp: resp, err: err}
	}()

	select {
	case r := <-results:
		switch {
		case r.err != nil && errors.Is(r.err, context.DeadlineExceeded):
			return nil, metrics.OutcomeTimeout
		case r.err != nil:
			return nil, metrics.OutcomeError
		case r.resp == nil:
			return nil, metrics.OutcomeEmpty
		default:
			return r.resp, metrics.OutcomeSuccess
		}
	case <-attemptCtx.Done():
		return nil, metrics.OutcomeTimeout
	}
}
