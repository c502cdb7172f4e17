package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pricofy/translation-relay/internal/domain"
	"github.com/pricofy/translation-relay/internal/liveness"
	"github.com/pricofy/translation-relay/internal/metrics"
	"github.com/pricofy/translation-relay/internal/transport"
)

// ErrNoResponse is returned when the worker did not answer after all retries.
var ErrNoResponse = errors.New("no response from worker")

// RemoteError is a {success:false} reply from the worker.
type RemoteError struct {
	Kind    domain.MessageKind
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Kind, e.Message)
}

// ClientOptions configures a Client.
type ClientOptions struct {
	// Origin identifies this foreground context for follow-up pushes.
	Origin string
	// Send is used by every typed helper. Nil means DefaultOptions.
	Send    *Options
	Monitor *liveness.Monitor
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Client is the per-process messaging context. It owns the liveness monitor
// and is passed to every component that talks to the worker.
type Client struct {
	sender  transport.Sender
	monitor *liveness.Monitor
	metrics *metrics.Metrics
	logger  *slog.Logger
	origin  string
	send    Options
}

// NewClient creates a Client sending through sender. When opts.Monitor is
// nil a monitor probing through the same sender is created.
func NewClient(sender transport.Sender, opts ClientOptions) *Client {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Monitor == nil {
		opts.Monitor = liveness.New(sender, liveness.Options{Logger: opts.Logger})
	}
	if opts.Origin == "" {
		opts.Origin = uuid.NewString()
	}
	send := DefaultOptions()
	if opts.Send != nil {
		send = *opts.Send
	}

	return &Client{
		sender:  sender,
		monitor: opts.Monitor,
		metrics: opts.Metrics,
		logger:  opts.Logger,
		origin:  opts.Origin,
		send:    send,
	}
}

// Origin returns the identifier pushes to this context are addressed to.
func (c *Client) Origin() string {
	return c.origin
}

// Envelope builds an envelope stamped with a fresh request id and this origin.
func (c *Client) Envelope(kind domain.MessageKind, payload any) (domain.Envelope, error) {
	env, err := domain.NewEnvelope(kind, payload)
	if err != nil {
		return domain.Envelope{}, fmt.Errorf("build %s envelope: %w", kind, err)
	}
	env.RequestID = uuid.NewString()
	env.Origin = c.origin
	return env, nil
}

// Call sends kind with payload using the client's default options and
// decodes the reply data into out when out is non-nil.
func (c *Client) Call(ctx context.Context, kind domain.MessageKind, payload, out any) error {
	env, err := c.Envelope(kind, payload)
	if err != nil {
		return err
	}
	return c.call(ctx, env, out)
}

func (c *Client) call(ctx context.Context, env domain.Envelope, out any) error {
	resp := c.SendWithRetry(ctx, env, c.send)
	if resp == nil {
		return fmt.Errorf("%s: %w", env.Type, ErrNoResponse)
	}
	if !resp.Success {
		return &RemoteError{Kind: env.Type, Message: resp.Error}
	}
	if out == nil {
		return nil
	}
	if err := resp.Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", env.Type, err)
	}
	return nil
}

// Translate asks the worker to translate text. Empty languages use the
// worker's configured values.
func (c *Client) Translate(ctx context.Context, text, sourceLanguage, targetLanguage string) (domain.TranslateResult, error) {
	var result domain.TranslateResult
	err := c.Call(ctx, domain.KindTranslateText, domain.TranslatePayload{
		Text:           text,
		SourceLanguage: sourceLanguage,
		TargetLanguage: targetLanguage,
	}, &result)
	return result, err
}

// GetConfig reads the config of configType into out.
func (c *Client) GetConfig(ctx context.Context, configType string, out any) error {
	return c.Call(ctx, domain.KindGetConfig, domain.GetConfigPayload{ConfigType: configType}, out)
}

// TranslationConfig reads the translation config.
func (c *Client) TranslationConfig(ctx context.Context) (domain.TranslationConfig, error) {
	var cfg domain.TranslationConfig
	err := c.GetConfig(ctx, domain.ConfigTypeTranslation, &cfg)
	return cfg, err
}

// SetConfig replaces the whole config of configType with cfg.
func (c *Client) SetConfig(ctx context.Context, configType string, cfg any) error {
	payload := struct {
		ConfigType string `json:"configType"`
		Config     any    `json:"config"`
	}{ConfigType: configType, Config: cfg}
	return c.Call(ctx, domain.KindSetConfig, payload, nil)
}

// InitializeConfig writes defaults for configs that were never saved.
func (c *Client) InitializeConfig(ctx context.Context) error {
	return c.Call(ctx, domain.KindInitializeConfig, nil, nil)
}

// ResetConfig restores every config to its defaults.
func (c *Client) ResetConfig(ctx context.Context) error {
	return c.Call(ctx, domain.KindResetConfig, nil, nil)
}

// CaptureVisibleTab asks the worker for a capture. The worker also pushes a
// SCREENSHOT_CAPTURED or SCREENSHOT_ERROR notice carrying the returned request id.
func (c *Client) CaptureVisibleTab(ctx context.Context) (domain.CaptureResult, string, error) {
	requestID := uuid.NewString()
	env, err := c.Envelope(domain.KindCaptureVisibleTab, domain.CapturePayload{RequestID: requestID})
	if err != nil {
		return domain.CaptureResult{}, requestID, err
	}
	env.RequestID = requestID

	var result domain.CaptureResult
	err = c.call(ctx, env, &result)
	return result, requestID, err
}

// Ping probes the worker once.
func (c *Client) Ping(ctx context.Context) bool {
	return c.monitor.Probe(ctx)
}

// AwaitWorker waits until the worker answers or maxWait elapses.
func (c *Client) AwaitWorker(ctx context.Context, maxWait, pollInterval time.Duration) bool {
	return c.monitor.AwaitRevival(ctx, maxWait, pollInterval)
}

// Status returns the last observed liveness of the worker.
func (c *Client) Status() domain.LivenessStatus {
	return c.monitor.Status()
}
