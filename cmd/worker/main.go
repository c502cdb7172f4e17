// Package main is the entry point for the relay worker. It runs as an AWS
// Lambda function by default, or as a NATS responder with RELAY_MODE=nats.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pricofy/translation-relay/internal/dispatch"
	"github.com/pricofy/translation-relay/internal/domain"
	"github.com/pricofy/translation-relay/internal/handler"
	"github.com/pricofy/translation-relay/internal/logging"
	"github.com/pricofy/translation-relay/internal/metrics"
	"github.com/pricofy/translation-relay/internal/settings"
	"github.com/pricofy/translation-relay/internal/transport"
	"github.com/pricofy/translation-relay/internal/worker"
)

func main() {
	s, err := settings.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	level, err := logging.ParseLevel(s.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := logging.New(os.Stdout, level, logging.Format(s.LogFormat))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, s, logger); err != nil {
		logger.Error("worker stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, s settings.Settings, logger *slog.Logger) error {
	var (
		conn     *nats.Conn
		notifier handler.Notifier
	)
	if s.NATSURL != "" {
		var err error
		conn, err = nats.Connect(s.NATSURL, nats.Name("relay-worker"))
		if err != nil {
			return fmt.Errorf("connect to nats: %w", err)
		}
		defer conn.Close()
		notifier = transport.NewNATS(conn, s.Subject)
	}

	w, err := worker.New(ctx, s, worker.Options{
		Logger:   logger,
		Metrics:  metrics.New(prometheus.DefaultRegisterer),
		Notifier: notifier,
	})
	if err != nil {
		return err
	}
	defer w.Close()

	if s.MetricsAddr != "" {
		go serveMetrics(ctx, s.MetricsAddr, logger)
	}

	switch s.Mode {
	case settings.ModeNATS:
		srv, err := transport.NewServer(conn, w.Table, transport.ServerOptions{
			Subject:    s.Subject,
			QueueGroup: s.QueueGroup,
			PoolSize:   s.PoolSize,
			Logger:     logger,
		})
		if err != nil {
			return err
		}
		return srv.Serve(ctx)
	default:
		h := &lambdaHandler{
			table:  w.Table,
			logger: logger,
			warmer: newWarmer(s.FunctionName, logger),
		}
		lambda.StartWithOptions(h.handleRequest, lambda.WithContext(ctx))
		return nil
	}
}

// lambdaHandler adapts the dispatch table to a Lambda invocation.
type lambdaHandler struct {
	table  *dispatch.Table
	logger *slog.Logger
	warmer *warmer
}

func (h *lambdaHandler) handleRequest(ctx context.Context, event json.RawMessage) (any, error) {
	// Warmup detection (MUST be first - before any other processing)
	if warmup, ok := IsWarmupEvent(event); ok {
		return h.warmer.Handle(ctx, warmup)
	}

	var env domain.Envelope
	if err := json.Unmarshal(event, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	resp, handled := h.table.Dispatch(ctx, env)
	if !handled {
		// A null payload tells the caller nobody answered.
		h.logger.DebugContext(ctx, "unrouted message", "type", env.Type, "requestId", env.RequestID)
		return nil, nil
	}
	return resp, nil
}

func serveMetrics(ctx context.Context, addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server failed", "error", err)
	}
}
