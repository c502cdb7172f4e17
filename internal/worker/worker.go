// Package worker assembles the worker side of the relay from its settings.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/pricofy/translation-relay/internal/configstore"
	"github.com/pricofy/translation-relay/internal/dispatch"
	"github.com/pricofy/translation-relay/internal/handler"
	"github.com/pricofy/translation-relay/internal/metrics"
	"github.com/pricofy/translation-relay/internal/settings"
	"github.com/pricofy/translation-relay/internal/translator"
)

// Options overrides pieces the settings would otherwise build.
type Options struct {
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Notifier handler.Notifier
	Capturer handler.Capturer
	// KV replaces the backend selected by settings.
	KV        configstore.KV
	Endpoints translator.Endpoints
}

// Worker holds the assembled dispatch table and its config store.
type Worker struct {
	Table *dispatch.Table
	Store *configstore.Store
}

// New builds a Worker. Configs never saved before are created with their
// defaults.
func New(ctx context.Context, s settings.Settings, opts Options) (*Worker, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	kv := opts.KV
	if kv == nil {
		var err error
		if kv, err = OpenKV(s); err != nil {
			return nil, err
		}
	}

	store := configstore.New(kv)
	if err := store.Initialize(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("initialize config: %w", err)
	}

	tr := translator.New(translator.Options{
		HTTPClient:      &http.Client{Timeout: s.HTTPTimeout},
		Endpoints:       opts.Endpoints,
		MaxSegmentRunes: s.ChunkRunes,
		Logger:          opts.Logger,
		Metrics:         opts.Metrics,
	})

	capturer := opts.Capturer
	if capturer == nil && s.CaptureFile != "" {
		capturer = FileCapturer(s.CaptureFile)
	}

	table := dispatch.NewTable(opts.Logger)
	handler.New(store, tr, handler.Options{
		Capturer: capturer,
		Notifier: opts.Notifier,
		Logger:   opts.Logger,
	}).Register(table)

	return &Worker{Table: table, Store: store}, nil
}

// Close releases the config store.
func (w *Worker) Close() error {
	return w.Store.Close()
}

// OpenKV opens the config backend named by s.Store.
func OpenKV(s settings.Settings) (configstore.KV, error) {
	switch s.Store {
	case settings.StoreRedis:
		kv, err := configstore.NewRedis(configstore.RedisOptions{
			Addr:     s.RedisAddr,
			Password: s.RedisPassword,
			DB:       s.RedisDB,
			Prefix:   s.RedisPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("open redis store: %w", err)
		}
		return kv, nil
	case settings.StoreMemory, "":
		return configstore.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store %q", s.Store)
	}
}

// FileCapturer serves a PNG file as the captured tab.
func FileCapturer(path string) handler.Capturer {
	return handler.CaptureFunc(func(context.Context) ([]byte, error) {
		png, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read capture: %w", err)
		}
		return png, nil
	})
}
