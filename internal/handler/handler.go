// Package handler implements the worker side of every routed message kind.
package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"golang.org/x/text/language"

	"github.com/pricofy/translation-relay/internal/configstore"
	"github.com/pricofy/translation-relay/internal/dispatch"
	"github.com/pricofy/translation-relay/internal/domain"
	"github.com/pricofy/translation-relay/internal/translator"
)

// Translator produces a translation; it must never fail.
type Translator interface {
	Translate(ctx context.Context, text string, cfg domain.TranslationConfig) translator.Result
}

// Capturer grabs the visible tab as an image.
type Capturer interface {
	CaptureVisibleTab(ctx context.Context) (dataURL string, err error)
}

// CaptureFunc adapts a function returning PNG bytes to Capturer.
type CaptureFunc func(ctx context.Context) ([]byte, error)

// CaptureVisibleTab encodes the captured PNG as a data URL.
func (f CaptureFunc) CaptureVisibleTab(ctx context.Context) (string, error) {
	png, err := f(ctx)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// Notifier pushes a follow-up message to a foreground context.
type Notifier interface {
	Notify(ctx context.Context, origin string, env domain.Envelope) error
}

// ErrCaptureUnavailable is returned when the worker has no Capturer.
var ErrCaptureUnavailable = errors.New("screen capture is not available")

// noticeTimeout bounds a follow-up push to a foreground context.
const noticeTimeout = 5 * time.Second

// Options configures Handlers.
type Options struct {
	Capturer Capturer
	Notifier Notifier
	Logger   *slog.Logger
	Now      func() time.Time
}

// Handlers serves the worker's message kinds.
type Handlers struct {
	store      *configstore.Store
	translator Translator
	capturer   Capturer
	notifier   Notifier
	logger     *slog.Logger
	now        func() time.Time
}

// New creates Handlers.
func New(store *configstore.Store, t Translator, opts Options) *Handlers {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Handlers{
		store:      store,
		translator: t,
		capturer:   opts.Capturer,
		notifier:   opts.Notifier,
		logger:     opts.Logger,
		now:        opts.Now,
	}
}

// Register binds every handler to table.
func (h *Handlers) Register(table *dispatch.Table) {
	table.RegisterFunc(domain.KindGetConfig, h.GetConfig)
	table.RegisterFunc(domain.KindSetConfig, h.SetConfig)
	table.RegisterFunc(domain.KindInitializeConfig, h.InitializeConfig)
	table.RegisterFunc(domain.KindResetConfig, h.ResetConfig)
	table.RegisterFunc(domain.KindTranslateText, h.Translate)
	table.RegisterFunc(domain.KindCaptureVisibleTab, h.CaptureVisibleTab)
	table.RegisterFunc(domain.KindPing, h.Ping)
}

// GetConfig returns the config named by configType, or its defaults.
func (h *Handlers) GetConfig(ctx context.Context, env domain.Envelope) (any, error) {
	var p domain.GetConfigPayload
	if err := env.DecodePayload(&p); err != nil {
		return nil, fmt.Errorf("malformed payload: %w", err)
	}

	switch p.ConfigType {
	case domain.ConfigTypeTranslation:
		return h.store.TranslationConfig(ctx)
	case domain.ConfigTypeRules:
		return h.store.RulesConfig(ctx)
	default:
		_, err := configstore.KeyFor(p.ConfigType)
		return nil, err
	}
}

// SetConfig replaces the whole config named by configType.
func (h *Handlers) SetConfig(ctx context.Context, env domain.Envelope) (any, error) {
	var p domain.SetConfigPayload
	if err := env.DecodePayload(&p); err != nil {
		return nil, fmt.Errorf("malformed payload: %w", err)
	}

	key, err := configstore.KeyFor(p.ConfigType)
	if err != nil {
		return nil, err
	}

	raw := bytes.TrimSpace(p.Config)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, errors.New("config is required")
	}

	var cfg any
	switch key {
	case configstore.KeyTranslation:
		c := domain.DefaultTranslationConfig()
		if err := decodeConfig(raw, &c); err != nil {
			return nil, fmt.Errorf("malformed translation config: %w", err)
		}
		if err := validateTranslationConfig(c); err != nil {
			return nil, err
		}
		cfg = c
	case configstore.KeyRules:
		c := domain.DefaultRulesConfig()
		if err := decodeConfig(raw, &c); err != nil {
			return nil, fmt.Errorf("malformed rules config: %w", err)
		}
		cfg = c
	}

	if err := h.store.Set(ctx, key, cfg); err != nil {
		return nil, err
	}
	h.logger.InfoContext(ctx, "config saved", "configType", p.ConfigType, "requestId", env.RequestID)
	return nil, nil
}

// InitializeConfig writes defaults for configs never saved before.
func (h *Handlers) InitializeConfig(ctx context.Context, _ domain.Envelope) (any, error) {
	return nil, h.store.Initialize(ctx)
}

// ResetConfig restores all configs to their defaults.
func (h *Handlers) ResetConfig(ctx context.Context, _ domain.Envelope) (any, error) {
	return nil, h.store.Reset(ctx)
}

// Translate reads the current config on every call, applies the payload's
// language overrides and returns the orchestrator's result.
func (h *Handlers) Translate(ctx context.Context, env domain.Envelope) (any, error) {
	var p domain.TranslatePayload
	if err := env.DecodePayload(&p); err != nil {
		return nil, fmt.Errorf("malformed payload: %w", err)
	}

	rules, err := h.store.RulesConfig(ctx)
	if err != nil {
		h.logger.WarnContext(ctx, "rules unavailable, using defaults", "error", err)
	}
	if err := validateTranslateRequest(p, rules); err != nil {
		return nil, err
	}

	cfg, err := h.store.TranslationConfig(ctx)
	if err != nil {
		h.logger.WarnContext(ctx, "translation config unavailable, using defaults", "error", err)
	}
	if p.SourceLanguage != "" {
		cfg.SourceLanguage = p.SourceLanguage
	}
	if p.TargetLanguage != "" {
		cfg.TargetLanguage = p.TargetLanguage
	}

	if cfg.SourceLanguage, err = canonicalLanguage(cfg.SourceLanguage, true); err != nil {
		return nil, fmt.Errorf("sourceLanguage: %w", err)
	}
	if cfg.TargetLanguage, err = canonicalLanguage(cfg.TargetLanguage, false); err != nil {
		return nil, fmt.Errorf("targetLanguage: %w", err)
	}

	res := h.translator.Translate(ctx, p.Text, cfg)
	h.logger.DebugContext(ctx, "translated", "provider", res.Provider, "fallback", res.Fallback, "requestId", env.RequestID)

	return domain.TranslateResult{
		TranslatedText: res.Text,
		SourceLanguage: cfg.SourceLanguage,
		TargetLanguage: cfg.TargetLanguage,
		Provider:       res.Provider,
	}, nil
}

// CaptureVisibleTab captures the visible tab, returns the data URL and also
// pushes SCREENSHOT_CAPTURED or SCREENSHOT_ERROR to the originating context.
// The push runs on its own goroutine.
func (h *Handlers) CaptureVisibleTab(ctx context.Context, env domain.Envelope) (any, error) {
	var p domain.CapturePayload
	if err := env.DecodePayload(&p); err != nil {
		return nil, fmt.Errorf("malformed payload: %w", err)
	}
	requestID := p.RequestID
	if requestID == "" {
		requestID = env.RequestID
	}

	dataURL, err := h.capture(ctx)

	notice := domain.ScreenshotNotice{RequestID: requestID, DataURL: dataURL}
	kind := domain.KindScreenshotCaptured
	if err != nil {
		kind = domain.KindScreenshotError
		notice = domain.ScreenshotNotice{RequestID: requestID, Error: err.Error()}
	}
	h.push(context.WithoutCancel(ctx), env.Origin, kind, notice)

	if err != nil {
		return nil, err
	}
	return domain.CaptureResult{DataURL: dataURL}, nil
}

func (h *Handlers) capture(ctx context.Context) (string, error) {
	if h.capturer == nil {
		return "", ErrCaptureUnavailable
	}
	return h.capturer.CaptureVisibleTab(ctx)
}

func (h *Handlers) push(ctx context.Context, origin string, kind domain.MessageKind, notice domain.ScreenshotNotice) {
	if h.notifier == nil || origin == "" {
		return
	}

	env, err := domain.NewEnvelope(kind, notice)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to build notice", "type", kind, "error", err)
		return
	}
	env.RequestID = notice.RequestID

	go func() {
		ctx, cancel := context.WithTimeout(ctx, noticeTimeout)
		defer cancel()
		if err := h.notifier.Notify(ctx, origin, env); err != nil {
			h.logger.WarnContext(ctx, "failed to push notice", "type", kind, "origin", origin, "error", err)
		}
	}()
}

// Ping answers liveness probes.
func (h *Handlers) Ping(_ context.Context, _ domain.Envelope) (any, error) {
	return domain.PingResult{Pong: true, Time: h.now().UTC()}, nil
}

// validateTranslateRequest checks the request against the rules config.
func validateTranslateRequest(p domain.TranslatePayload, rules domain.RulesConfig) error {
	if p.Text == "" {
		return fmt.Errorf("text is required")
	}
	if !rules.Enabled {
		return fmt.Errorf("translation is disabled")
	}
	if rules.MaxTextLength > 0 && utf8.RuneCountInString(p.Text) > rules.MaxTextLength {
		return fmt.Errorf("text exceeds %d characters", rules.MaxTextLength)
	}
	return nil
}

func validateTranslationConfig(c domain.TranslationConfig) error {
	switch c.Provider {
	case domain.ProviderGoogle, domain.ProviderBaidu, domain.ProviderYoudao:
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	if _, err := canonicalLanguage(c.TargetLanguage, false); err != nil {
		return fmt.Errorf("targetLanguage: %w", err)
	}
	if _, err := canonicalLanguage(c.SourceLanguage, true); err != nil {
		return fmt.Errorf("sourceLanguage: %w", err)
	}
	return nil
}

// decodeConfig decodes a whole config object over the defaults in v.
func decodeConfig(raw []byte, v any) error {
	if raw[0] != '{' {
		return errors.New("config must be an object")
	}
	return json.Unmarshal(raw, v)
}

// canonicalLanguage normalises a BCP 47 tag, e.g. "zh-cn" to "zh-CN".
// An empty source means "auto".
func canonicalLanguage(tag string, allowAuto bool) (string, error) {
	if allowAuto && (tag == "" || tag == "auto") {
		return "auto", nil
	}
	if tag == "" {
		return "", fmt.Errorf("language is required")
	}
	t, err := language.Parse(tag)
	if err != nil {
		return "", fmt.Errorf("invalid language %q", tag)
	}
	return t.String(), nil
}
