// Package translator turns text into a translation using the configured
// provider, falling back across endpoints and finally to a static dictionary.
// Translate never fails.
package translator

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pricofy/translation-relay/internal/chunker"
	"github.com/pricofy/translation-relay/internal/domain"
	"github.com/pricofy/translation-relay/internal/metrics"
)

// Names reported for results that did not come from a provider.
const (
	SourceDictionary  = "dictionary"
	SourcePassthrough = "passthrough"
)

// Provider failures. None of them escape Translate.
var (
	ErrUnknownProvider    = errors.New("unknown provider")
	ErrMissingCredentials = errors.New("missing credentials")
	ErrEndpointsExhausted = errors.New("all endpoints failed")
	ErrMalformedResponse  = errors.New("malformed response")
)

const (
	defaultHTTPTimeout    = 10 * time.Second
	defaultSourceLanguage = "auto"
	defaultTargetLanguage = "zh-CN"
)

// Result is the outcome of a translation.
type Result struct {
	Text string
	// Provider names what produced Text: a provider, "dictionary" or "passthrough".
	Provider string
	// Fallback is true when the configured provider failed.
	Fallback bool
}

// Endpoints holds the upstream URLs. Tests point them at local servers.
type Endpoints struct {
	GoogleOfficial  string
	GoogleGTX       string
	GoogleSentences string
	GoogleWebapp    string
	Baidu           string
	Youdao          string
}

// DefaultEndpoints returns the public upstream URLs.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		GoogleOfficial:  "https://translation.googleapis.com/language/translate/v2",
		GoogleGTX:       "https://translate.googleapis.com/translate_a/single",
		GoogleSentences: "https://translate.googleapis.com/translate_a/single",
		GoogleWebapp:    "https://translate.google.com/translate_a/t",
		Baidu:           "https://fanyi-api.baidu.com/api/trans/vip/translate",
		Youdao:          "https://openapi.youdao.com/api",
	}
}

// Options configures an Orchestrator.
type Options struct {
	HTTPClient      *http.Client
	Endpoints       Endpoints
	MaxSegmentRunes int
	Logger          *slog.Logger
	Metrics         *metrics.Metrics
	// Now and Salt feed request signatures.
	Now  func() time.Time
	Salt func() string
}

// Orchestrator selects a provider and runs the fallback chain.
type Orchestrator struct {
	httpClient      *http.Client
	endpoints       Endpoints
	maxSegmentRunes int
	logger          *slog.Logger
	metrics         *metrics.Metrics
	now             func() time.Time
	salt            func() string
}

// New creates an Orchestrator. Zero options use the public endpoints.
func New(opts Options) *Orchestrator {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if opts.Endpoints == (Endpoints{}) {
		opts.Endpoints = DefaultEndpoints()
	}
	if opts.MaxSegmentRunes <= 0 {
		opts.MaxSegmentRunes = chunker.DefaultMaxRunes
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Salt == nil {
		opts.Salt = randomSalt
	}

	return &Orchestrator{
		httpClient:      opts.HTTPClient,
		endpoints:       opts.Endpoints,
		maxSegmentRunes: opts.MaxSegmentRunes,
		logger:          opts.Logger,
		metrics:         opts.Metrics,
		now:             opts.Now,
		salt:            opts.Salt,
	}
}

// TranslateText is Translate returning only the text.
func (o *Orchestrator) TranslateText(ctx context.Context, text string, cfg domain.TranslationConfig) string {
	return o.Translate(ctx, text, cfg).Text
}

// Translate translates text with cfg. It always returns a usable string:
// provider failures fall back to the dictionary, and unmatched text is
// returned with NeedsTranslationMarker.
func (o *Orchestrator) Translate(ctx context.Context, text string, cfg domain.TranslationConfig) Result {
	if strings.TrimSpace(text) == "" {
		return Result{Text: text, Provider: SourcePassthrough}
	}

	source := cfg.SourceLanguage
	if source == "" {
		source = defaultSourceLanguage
	}
	target := cfg.TargetLanguage
	if target == "" {
		target = defaultTargetLanguage
	}

	out, err := o.translateSegments(ctx, text, source, target, cfg)
	if err == nil {
		o.metrics.Translated(string(cfg.Provider))
		return Result{Text: out, Provider: string(cfg.Provider)}
	}

	o.logger.WarnContext(ctx, "provider failed, using dictionary fallback",
		"provider", cfg.Provider, "error", err)

	res := fallback(text)
	o.metrics.Translated(res.Provider)
	return res
}

func (o *Orchestrator) translateSegments(ctx context.Context, text, source, target string, cfg domain.TranslationConfig) (string, error) {
	var translate func(ctx context.Context, text, source, target string) (string, error)

	switch cfg.Provider {
	case domain.ProviderGoogle:
		key := cfg.APIKeys.Google.Key
		translate = func(ctx context.Context, text, source, target string) (string, error) {
			return o.google(ctx, text, source, target, key)
		}
	case domain.ProviderBaidu:
		keys := cfg.APIKeys.Baidu
		if keys.AppID == "" || keys.Key == "" {
			return "", fmt.Errorf("baidu: %w: appId and key are required", ErrMissingCredentials)
		}
		translate = func(ctx context.Context, text, source, target string) (string, error) {
			return o.baidu(ctx, text, source, target, keys)
		}
	case domain.ProviderYoudao:
		keys := cfg.APIKeys.Youdao
		if keys.AppKey == "" || keys.AppSecret == "" {
			return "", fmt.Errorf("youdao: %w: appKey and appSecret are required", ErrMissingCredentials)
		}
		translate = func(ctx context.Context, text, source, target string) (string, error) {
			return o.youdao(ctx, text, source, target, keys)
		}
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}

	segments := chunker.Split(text, o.maxSegmentRunes)
	var b strings.Builder
	for i, seg := range segments {
		if strings.TrimSpace(seg) == "" {
			b.WriteString(seg)
			continue
		}
		out, err := translate(ctx, seg, source, target)
		if err != nil {
			return "", fmt.Errorf("segment %d of %d: %w", i+1, len(segments), err)
		}
		b.WriteString(out)
	}
	return b.String(), nil
}

func randomSalt() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
