package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"

	"github.com/pricofy/translation-relay/internal/domain"
)

// Invoker is the subset of the Lambda client used by the transport.
type Invoker interface {
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// Lambda sends envelopes to a worker deployed as an AWS Lambda function.
type Lambda struct {
	client       Invoker
	functionName string
}

// NewLambda creates a Lambda transport using the default AWS configuration.
func NewLambda(ctx context.Context, functionName string) (*Lambda, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewLambdaWithClient(lambda.NewFromConfig(cfg), functionName), nil
}

// NewLambdaWithClient creates a Lambda transport around an existing client.
func NewLambdaWithClient(client Invoker, functionName string) *Lambda {
	return &Lambda{client: client, functionName: functionName}
}

// Send invokes the worker synchronously with env as the payload.
func (l *Lambda) Send(ctx context.Context, env domain.Envelope) (*domain.Response, error) {
	payload, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope: %w", err)
	}

	result, err := l.client.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(l.functionName),
		InvocationType: types.InvocationTypeRequestResponse,
		Payload:        payload,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to invoke %s: %w", l.functionName, err)
	}

	if result.FunctionError != nil {
		return nil, fmt.Errorf("lambda error: %s", *result.FunctionError)
	}

	// An unrouted message comes back as a null payload.
	body := bytes.TrimSpace(result.Payload)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, nil
	}

	var resp domain.Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &resp, nil
}
