package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const maxBodyBytes = 1 << 20

// Endpoint describes one way of asking an upstream for a translation.
// Parse returns false when the body does not carry a translation, which
// moves the cascade on to the next endpoint.
type Endpoint struct {
	Name  string
	Build func(ctx context.Context, text, source, target string) (*http.Request, error)
	Parse func(body []byte) (string, bool)
}

// cascade returns the first successful parse across endpoints, in order.
func (o *Orchestrator) cascade(ctx context.Context, endpoints []Endpoint, text, source, target string) (string, bool) {
	for _, ep := range endpoints {
		if out, ok := o.tryEndpoint(ctx, ep, text, source, target); ok {
			return out, true
		}
		o.metrics.EndpointFailed(ep.Name)
	}
	return "", false
}

func (o *Orchestrator) tryEndpoint(ctx context.Context, ep Endpoint, text, source, target string) (string, bool) {
	req, err := ep.Build(ctx, text, source, target)
	if err != nil {
		o.logger.DebugContext(ctx, "endpoint request build failed", "endpoint", ep.Name, "error", err)
		return "", false
	}

	body, err := o.fetch(req)
	if err != nil {
		o.logger.DebugContext(ctx, "endpoint request failed", "endpoint", ep.Name, "error", err)
		return "", false
	}

	payload, ok := stripJSONP(body)
	if !ok {
		o.logger.DebugContext(ctx, "endpoint returned non-JSON body", "endpoint", ep.Name)
		return "", false
	}

	out, ok := ep.Parse(payload)
	if !ok || out == "" {
		o.logger.DebugContext(ctx, "endpoint response not understood", "endpoint", ep.Name)
		return "", false
	}
	return out, true
}

// fetch performs req and returns the body of a 2xx response.
func (o *Orchestrator) fetch(req *http.Request) ([]byte, error) {
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return body, nil
}

// stripJSONP removes an anti-XSSI guard or a callback wrapper and reports
// whether what remains is valid JSON.
func stripJSONP(body []byte) ([]byte, bool) {
	b := bytes.TrimSpace(body)
	b = bytes.TrimPrefix(b, []byte(")]}'"))
	b = bytes.TrimSpace(b)

	if len(b) > 0 && b[0] != '[' && b[0] != '{' && b[0] != '"' {
		open := bytes.IndexByte(b, '(')
		end := bytes.LastIndexByte(b, ')')
		if open > 0 && end > open && isIdentifier(b[:open]) {
			b = bytes.TrimSpace(b[open+1 : end])
		}
	}

	if !json.Valid(b) {
		return nil, false
	}
	return b, true
}

func isIdentifier(b []byte) bool {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return false
	}
	for _, c := range b {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '$', c == '.':
		default:
			return false
		}
	}
	return true
}
