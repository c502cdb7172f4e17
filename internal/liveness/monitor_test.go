package liveness

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricofy/translation-relay/internal/domain"
	"github.com/pricofy/translation-relay/internal/transport"
)

func failingSender(calls *atomic.Int32) transport.Sender {
	return transport.SenderFunc(func(_ context.Context, _ domain.Envelope) (*domain.Response, error) {
		calls.Add(1)
		return nil, errors.New("could not establish connection")
	})
}

func TestProbe_UpdatesStatus(t *testing.T) {
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	alive := true
	sender := transport.SenderFunc(func(_ context.Context, env domain.Envelope) (*domain.Response, error) {
		assert.Equal(t, domain.KindPing, env.Type)
		if !alive {
			return nil, nil
		}
		return domain.OK(domain.PingResult{Pong: true}), nil
	})
	m := New(sender, Options{Now: func() time.Time { return clock }})

	assert.False(t, m.Status().IsInitialized)

	require.True(t, m.Probe(context.Background()))
	st := m.Status()
	assert.True(t, st.IsAlive)
	assert.True(t, st.IsInitialized)
	assert.Equal(t, clock, st.LastActiveTime)

	alive = false
	clock = clock.Add(time.Minute)
	require.False(t, m.Probe(context.Background()))
	st = m.Status()
	assert.False(t, st.IsAlive)
	assert.Equal(t, clock.Add(-time.Minute), st.LastActiveTime, "failed probe must not move LastActiveTime")
}

func TestProbe_NeverMovesBackwards(t *testing.T) {
	times := []time.Time{
		time.Date(2026, 1, 1, 12, 0, 10, 0, time.UTC),
		time.Date(2026, 1, 1, 12, 0, 5, 0, time.UTC),
	}
	i := 0
	sender := transport.SenderFunc(func(_ context.Context, _ domain.Envelope) (*domain.Response, error) {
		return domain.OK(true), nil
	})
	m := New(sender, Options{Now: func() time.Time { now := times[i]; i++; return now }})

	m.Probe(context.Background())
	m.Probe(context.Background())
	assert.Equal(t, times[0], m.Status().LastActiveTime)
}

func TestProbe_Timeout(t *testing.T) {
	sender := transport.SenderFunc(func(ctx context.Context, _ domain.Envelope) (*domain.Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	m := New(sender, Options{ProbeTimeout: 20 * time.Millisecond})

	start := time.Now()
	assert.False(t, m.Probe(context.Background()))
	assert.Less(t, time.Since(start), time.Second)
}

func TestAwaitRevival_GivesUp(t *testing.T) {
	var calls atomic.Int32
	m := New(failingSender(&calls), Options{})

	start := time.Now()
	revived := m.AwaitRevival(context.Background(), time.Second, 100*time.Millisecond)
	elapsed := time.Since(start)

	assert.False(t, revived)
	assert.InDelta(t, 10, calls.Load(), 2)
	assert.Less(t, elapsed, 1200*time.Millisecond)
	assert.GreaterOrEqual(t, elapsed, 900*time.Millisecond)
}

func TestAwaitRevival_Revives(t *testing.T) {
	var calls atomic.Int32
	sender := transport.SenderFunc(func(_ context.Context, _ domain.Envelope) (*domain.Response, error) {
		if calls.Add(1) < 3 {
			return nil, errors.New("dormant")
		}
		return domain.OK(true), nil
	})
	m := New(sender, Options{})

	assert.True(t, m.AwaitRevival(context.Background(), time.Second, 10*time.Millisecond))
	assert.Equal(t, int32(3), calls.Load())
	assert.True(t, m.Status().IsAlive)
}

func TestAwaitRevival_ContextCancelled(t *testing.T) {
	var calls atomic.Int32
	m := New(failingSender(&calls), Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.False(t, m.AwaitRevival(ctx, time.Second, 10*time.Millisecond))
	assert.Equal(t, int32(1), calls.Load())
}
