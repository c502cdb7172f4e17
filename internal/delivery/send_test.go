package delivery

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricofy/translation-relay/internal/dispatch"
	"github.com/pricofy/translation-relay/internal/domain"
	"github.com/pricofy/translation-relay/internal/metrics"
	"github.com/pricofy/translation-relay/internal/transport"
)

// countingSender counts non-PING sends so revival probes are not mistaken for attempts.
func countingSender(attempts *atomic.Int32, send transport.SenderFunc) transport.Sender {
	return transport.SenderFunc(func(ctx context.Context, env domain.Envelope) (*domain.Response, error) {
		if env.Type != domain.KindPing {
			attempts.Add(1)
		}
		return send(ctx, env)
	})
}

func blockUntilDone(ctx context.Context, _ domain.Envelope) (*domain.Response, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestSendWithRetry_AllAttemptsTimeOut(t *testing.T) {
	var attempts atomic.Int32
	m := metrics.New(prometheus.NewRegistry())
	c := NewClient(countingSender(&attempts, blockUntilDone), ClientOptions{Metrics: m})

	opts := Options{
		MaxRetries: 3,
		RetryDelay: 20 * time.Millisecond,
		Timeout:    30 * time.Millisecond,
	}

	start := time.Now()
	resp := c.SendWithRetry(context.Background(), domain.Envelope{Type: domain.KindTranslateText}, opts)
	elapsed := time.Since(start)

	assert.Nil(t, resp)
	assert.Equal(t, int32(3), attempts.Load())
	// 3 timeouts plus backoff of 20ms*1 + 20ms*2.
	assert.GreaterOrEqual(t, elapsed, 3*30*time.Millisecond+60*time.Millisecond)
	assert.InDelta(t, 3, testutil.ToFloat64(m.SendAttempts.WithLabelValues("TRANSLATE_TEXT", metrics.OutcomeTimeout)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.SendsExhausted.WithLabelValues("TRANSLATE_TEXT")), 0)
}

func TestSendWithRetry_UnroutedKindReturnsNil(t *testing.T) {
	table := dispatch.NewTable(nil)
	table.RegisterFunc(domain.KindPing, func(_ context.Context, _ domain.Envelope) (any, error) {
		return domain.PingResult{Pong: true}, nil
	})
	local, err := transport.NewLocal(table, transport.LocalOptions{})
	require.NoError(t, err)
	defer local.Close()

	var attempts atomic.Int32
	c := NewClient(countingSender(&attempts, local.Send), ClientOptions{})

	opts := Options{
		MaxRetries:     3,
		RetryDelay:     time.Millisecond,
		Timeout:        50 * time.Millisecond,
		WaitForRevival: true,
		RevivalWait:    20 * time.Millisecond,
		RevivalPoll:    5 * time.Millisecond,
	}

	var resp *domain.Response
	require.NotPanics(t, func() {
		resp = c.SendWithRetry(context.Background(), domain.Envelope{Type: "UNKNOWN_KIND"}, opts)
	})
	assert.Nil(t, resp)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestSendWithRetry_SucceedsAfterFailure(t *testing.T) {
	var attempts atomic.Int32
	sender := countingSender(&attempts, func(_ context.Context, env domain.Envelope) (*domain.Response, error) {
		if env.Type == domain.KindPing {
			return domain.OK(true), nil
		}
		if attempts.Load() < 2 {
			return nil, errors.New("receiving end does not exist")
		}
		return domain.OK("done"), nil
	})
	c := NewClient(sender, ClientOptions{})

	resp := c.SendWithRetry(context.Background(), domain.Envelope{Type: domain.KindTranslateText}, Options{
		MaxRetries:     3,
		RetryDelay:     time.Millisecond,
		Timeout:        time.Second,
		WaitForRevival: true,
		RevivalWait:    100 * time.Millisecond,
		RevivalPoll:    10 * time.Millisecond,
	})

	require.NotNil(t, resp)
	assert.True(t, resp.Success)
	assert.Equal(t, int32(2), attempts.Load())
	assert.True(t, c.Status().IsAlive)
}

func TestSendWithRetry_FailureResponseIsAnAnswer(t *testing.T) {
	var attempts atomic.Int32
	sender := countingSender(&attempts, func(_ context.Context, _ domain.Envelope) (*domain.Response, error) {
		return domain.Fail(errors.New("invalid config type")), nil
	})
	c := NewClient(sender, ClientOptions{})

	resp := c.SendWithRetry(context.Background(), domain.Envelope{Type: domain.KindGetConfig}, DefaultOptions())
	require.NotNil(t, resp)
	assert.False(t, resp.Success)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestSendWithRetry_LateReplyDiscarded(t *testing.T) {
	var attempts atomic.Int32
	sender := countingSender(&attempts, func(_ context.Context, _ domain.Envelope) (*domain.Response, error) {
		time.Sleep(60 * time.Millisecond)
		return domain.OK("stale"), nil
	})
	c := NewClient(sender, ClientOptions{})

	resp := c.SendWithRetry(context.Background(), domain.Envelope{Type: domain.KindTranslateText}, Options{
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
		Timeout:    10 * time.Millisecond,
	})
	assert.Nil(t, resp)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestSendWithRetry_AttemptsAreSequential(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	sender := transport.SenderFunc(func(ctx context.Context, _ domain.Envelope) (*domain.Response, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		if n > maxInFlight.Load() {
			maxInFlight.Store(n)
		}
		<-ctx.Done()
		return nil, ctx.Err()
	})
	c := NewClient(sender, ClientOptions{})

	c.SendWithRetry(context.Background(), domain.Envelope{Type: domain.KindTranslateText}, Options{
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
		Timeout:    10 * time.Millisecond,
	})
	assert.Equal(t, int32(1), maxInFlight.Load())
}

func TestSendWithRetry_ContextCancelled(t *testing.T) {
	var attempts atomic.Int32
	c := NewClient(countingSender(&attempts, blockUntilDone), ClientOptions{})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	resp := c.SendWithRetry(ctx, domain.Envelope{Type: domain.KindTranslateText}, Options{
		MaxRetries: 5,
		RetryDelay: time.Second,
		Timeout:    10 * time.Millisecond,
	})
	assert.Nil(t, resp)
	assert.Equal(t, int32(1), attempts.Load())
}
