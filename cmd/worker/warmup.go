package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	lambdasdk "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"

	"github.com/pricofy/translation-relay/internal/transport"
)

const (
	// WarmupSource identifies scheduled warmup events.
	WarmupSource = "warmup"

	// WarmupDelay keeps this instance busy long enough for the copies to land
	// on other instances.
	WarmupDelay = 75 * time.Millisecond
)

// WarmupEvent is the scheduled event that keeps worker instances resident.
type WarmupEvent struct {
	Source      string `json:"source"`
	Concurrency int    `json:"concurrency"`
}

// WarmupResponse reports how many instances a warmup event reached.
type WarmupResponse struct {
	Status          string `json:"status"`
	InstancesWarmed int    `json:"instancesWarmed"`
}

// IsWarmupEvent reports whether event is a warmup event. Any other JSON,
// including a message envelope, is not.
func IsWarmupEvent(event json.RawMessage) (*WarmupEvent, bool) {
	var probe struct {
		Source      string  `json:"source"`
		Concurrency float64 `json:"concurrency"`
	}
	if err := json.Unmarshal(event, &probe); err != nil || probe.Source != WarmupSource {
		return nil, false
	}
	return &WarmupEvent{Source: probe.Source, Concurrency: int(probe.Concurrency)}, true
}

type warmer struct {
	functionName string
	logger       *slog.Logger
	delay        time.Duration
	// invoker is resolved on first use so cold starts skip AWS config loading.
	invoker func(ctx context.Context) (transport.Invoker, error)
}

func newWarmer(functionName string, logger *slog.Logger) *warmer {
	return &warmer{
		functionName: functionName,
		logger:       logger,
		delay:        WarmupDelay,
		invoker: func(ctx context.Context) (transport.Invoker, error) {
			cfg, err := config.LoadDefaultConfig(ctx)
			if err != nil {
				return nil, err
			}
			return lambdasdk.NewFromConfig(cfg), nil
		},
	}
}

// Handle answers a warmup event, first fanning out Concurrency async copies
// of itself.
func (w *warmer) Handle(ctx context.Context, warmup *WarmupEvent) (any, error) {
	warmed := 1

	if warmup.Concurrency > 0 {
		if err := w.selfInvoke(ctx, warmup.Concurrency); err != nil {
			w.logger.WarnContext(ctx, "warmup fan-out failed", "concurrency", warmup.Concurrency, "error", err)
		} else {
			warmed += warmup.Concurrency
		}
	}

	time.Sleep(w.delay)

	return map[string]any{
		"statusCode": 200,
		"body": WarmupResponse{
			Status:          "warm",
			InstancesWarmed: warmed,
		},
	}, nil
}

func (w *warmer) selfInvoke(ctx context.Context, count int) error {
	client, err := w.invoker(ctx)
	if err != nil {
		return err
	}

	// Copies carry concurrency 0 so they do not fan out again.
	payload, err := json.Marshal(WarmupEvent{Source: WarmupSource})
	if err != nil {
		return err
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for i := 0; i < count; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.Invoke(ctx, &lambdasdk.InvokeInput{
				FunctionName:   aws.String(w.functionName),
				InvocationType: types.InvocationTypeEvent,
				Payload:        payload,
			})
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return firstErr
}
