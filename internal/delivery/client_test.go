package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricofy/translation-relay/internal/dispatch"
	"github.com/pricofy/translation-relay/internal/domain"
	"github.com/pricofy/translation-relay/internal/transport"
)

func newLocalClient(t *testing.T, register func(*dispatch.Table)) (*Client, *transport.Local) {
	t.Helper()

	table := dispatch.NewTable(nil)
	table.RegisterFunc(domain.KindPing, func(_ context.Context, _ domain.Envelope) (any, error) {
		return domain.PingResult{Pong: true}, nil
	})
	register(table)

	local, err := transport.NewLocal(table, transport.LocalOptions{})
	require.NoError(t, err)
	t.Cleanup(local.Close)

	c := NewClient(local, ClientOptions{
		Origin: "tab-7",
		Send: &Options{
			MaxRetries:     2,
			RetryDelay:     time.Millisecond,
			Timeout:        100 * time.Millisecond,
			WaitForRevival: true,
			RevivalWait:    50 * time.Millisecond,
			RevivalPoll:    10 * time.Millisecond,
		},
	})
	return c, local
}

func TestClient_Translate(t *testing.T) {
	var seen domain.Envelope
	c, _ := newLocalClient(t, func(table *dispatch.Table) {
		table.RegisterFunc(domain.KindTranslateText, func(_ context.Context, env domain.Envelope) (any, error) {
			seen = env
			var p domain.TranslatePayload
			if err := env.DecodePayload(&p); err != nil {
				return nil, err
			}
			return domain.TranslateResult{
				TranslatedText: "你好",
				SourceLanguage: "en",
				TargetLanguage: p.TargetLanguage,
				Provider:       "dictionary",
			}, nil
		})
	})

	got, err := c.Translate(context.Background(), "hello", "", "zh-CN")
	require.NoError(t, err)
	assert.Equal(t, "你好", got.TranslatedText)
	assert.Equal(t, "zh-CN", got.TargetLanguage)
	assert.Equal(t, "tab-7", seen.Origin)
	assert.NotEmpty(t, seen.RequestID)
}

func TestClient_RemoteError(t *testing.T) {
	c, _ := newLocalClient(t, func(table *dispatch.Table) {
		table.RegisterFunc(domain.KindGetConfig, func(_ context.Context, _ domain.Envelope) (any, error) {
			return nil, errors.New(`unknown config type: "theme"`)
		})
	})

	var out map[string]any
	err := c.GetConfig(context.Background(), "theme", &out)

	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, domain.KindGetConfig, remote.Kind)
	assert.Contains(t, remote.Message, "theme")
}

func TestClient_NoResponse(t *testing.T) {
	c, local := newLocalClient(t, func(*dispatch.Table) {})
	local.Suspend()

	err := c.ResetConfig(context.Background())
	require.ErrorIs(t, err, ErrNoResponse)
	assert.False(t, c.Status().IsAlive)
}

func TestClient_RevivesSuspendedWorker(t *testing.T) {
	c, local := newLocalClient(t, func(table *dispatch.Table) {
		table.RegisterFunc(domain.KindInitializeConfig, func(_ context.Context, _ domain.Envelope) (any, error) {
			return nil, nil
		})
	})
	local.Suspend()
	go func() {
		time.Sleep(120 * time.Millisecond)
		local.Resume()
	}()

	require.NoError(t, c.InitializeConfig(context.Background()))
	assert.True(t, c.Ping(context.Background()))
	assert.True(t, c.Status().IsAlive)
}

func TestClient_CaptureCorrelatesRequestID(t *testing.T) {
	c, _ := newLocalClient(t, func(table *dispatch.Table) {
		table.RegisterFunc(domain.KindCaptureVisibleTab, func(_ context.Context, env domain.Envelope) (any, error) {
			var p domain.CapturePayload
			if err := env.DecodePayload(&p); err != nil {
				return nil, err
			}
			if p.RequestID != env.RequestID {
				return nil, errors.New("request id mismatch")
			}
			return domain.CaptureResult{DataURL: "data:image/png;base64,AA=="}, nil
		})
	})

	got, requestID, err := c.CaptureVisibleTab(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, requestID)
	assert.Equal(t, "data:image/png;base64,AA==", got.DataURL)
}

func TestNewClient_SendOptions(t *testing.T) {
	sender := transport.SenderFunc(func(context.Context, domain.Envelope) (*domain.Response, error) {
		return nil, nil
	})

	c := NewClient(sender, ClientOptions{})
	assert.Equal(t, DefaultOptions(), c.send)

	opts := DefaultOptions()
	opts.WaitForRevival = false
	c = NewClient(sender, ClientOptions{Send: &opts})
	assert.False(t, c.send.WaitForRevival)
	assert.Equal(t, opts.MaxRetries, c.send.MaxRetries)
}
