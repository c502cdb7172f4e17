package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// google runs the credentialed endpoint once when a key is set, then the
// keyless endpoints in order.
func (o *Orchestrator) google(ctx context.Context, text, source, target, key string) (string, error) {
	if key != "" {
		out, err := o.googleOfficial(ctx, text, source, target, key)
		if err == nil {
			return out, nil
		}
		o.logger.WarnContext(ctx, "official google endpoint failed, trying keyless endpoints", "error", err)
	}

	if out, ok := o.cascade(ctx, o.googleKeyless(), text, source, target); ok {
		return out, nil
	}
	return "", fmt.Errorf("google: %w", ErrEndpointsExhausted)
}

type googleOfficialRequest struct {
	Q      string `json:"q"`
	Target string `json:"target"`
	Source string `json:"source,omitempty"`
	Format string `json:"format"`
}

type googleOfficialResponse struct {
	Data struct {
		Translations []struct {
			TranslatedText string `json:"translatedText"`
		} `json:"translations"`
	} `json:"data"`
}

func (o *Orchestrator) googleOfficial(ctx context.Context, text, source, target, key string) (string, error) {
	reqBody := googleOfficialRequest{Q: text, Target: target, Format: "text"}
	if source != defaultSourceLanguage {
		reqBody.Source = source
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	endpoint := o.endpoints.GoogleOfficial + "?key=" + url.QueryEscape(key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := o.fetch(req)
	if err != nil {
		return "", fmt.Errorf("google official: %w", err)
	}

	var resp googleOfficialResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("google official: %w: %v", ErrMalformedResponse, err)
	}
	if len(resp.Data.Translations) == 0 || resp.Data.Translations[0].TranslatedText == "" {
		return "", fmt.Errorf("google official: %w: no translations", ErrMalformedResponse)
	}
	return resp.Data.Translations[0].TranslatedText, nil
}

// googleKeyless lists the public endpoints in the order they are tried.
func (o *Orchestrator) googleKeyless() []Endpoint {
	return []Endpoint{
		{
			Name:  "google-gtx",
			Build: googleGET(o.endpoints.GoogleGTX, url.Values{"client": {"gtx"}, "dt": {"t"}}),
			Parse: parseNestedArrays,
		},
		{
			Name:  "google-sentences",
			Build: googleGET(o.endpoints.GoogleSentences, url.Values{"client": {"dict-chrome-ex"}, "dt": {"t"}, "dj": {"1"}}),
			Parse: parseSentences,
		},
		{
			Name:  "google-webapp",
			Build: googleGET(o.endpoints.GoogleWebapp, url.Values{"client": {"webapp"}}),
			Parse: parseWebapp,
		},
	}
}

func googleGET(base string, fixed url.Values) func(ctx context.Context, text, source, target string) (*http.Request, error) {
	return func(ctx context.Context, text, source, target string) (*http.Request, error) {
		q := url.Values{}
		for k, v := range fixed {
			q[k] = v
		}
		q.Set("sl", source)
		q.Set("tl", target)
		q.Set("q", text)
		return http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+q.Encode(), nil)
	}
}

// parseNestedArrays reads [[["译文","source",...],...],...].
func parseNestedArrays(body []byte) (string, bool) {
	var root []json.RawMessage
	if err := json.Unmarshal(body, &root); err != nil || len(root) == 0 {
		return "", false
	}

	var parts [][]json.RawMessage
	if err := json.Unmarshal(root[0], &parts); err != nil {
		return "", false
	}

	var b strings.Builder
	for _, part := range parts {
		if len(part) == 0 {
			continue
		}
		var s string
		if err := json.Unmarshal(part[0], &s); err != nil {
			continue
		}
		b.WriteString(s)
	}
	return b.String(), b.Len() > 0
}

// parseSentences reads {"sentences":[{"trans":"译文"},...]}.
func parseSentences(body []byte) (string, bool) {
	var resp struct {
		Sentences []struct {
			Trans string `json:"trans"`
		} `json:"sentences"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", false
	}

	var b strings.Builder
	for _, s := range resp.Sentences {
		b.WriteString(s.Trans)
	}
	return b.String(), b.Len() > 0
}

// parseWebapp reads "译文", ["译文",...] or [["译文","en"],...].
func parseWebapp(body []byte) (string, bool) {
	var s string
	if err := json.Unmarshal(body, &s); err == nil {
		return s, s != ""
	}

	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil || len(items) == 0 {
		return "", false
	}

	var b strings.Builder
	for _, item := range items {
		if err := json.Unmarshal(item, &s); err == nil {
			b.WriteString(s)
			continue
		}
		var pair []json.RawMessage
		if err := json.Unmarshal(item, &pair); err == nil && len(pair) > 0 {
			if err := json.Unmarshal(pair[0], &s); err == nil {
				b.WriteString(s)
			}
		}
	}
	return b.String(), b.Len() > 0
}
