// Package domain contains the core message and configuration types shared by
// the worker and its foreground callers.
package domain

import (
	"encoding/json"
	"errors"
	"time"
)

// MessageKind identifies the type of a message envelope.
type MessageKind string

// Message kinds routed by the worker.
const (
	KindGetConfig         MessageKind = "GET_CONFIG"
	KindSetConfig         MessageKind = "SET_CONFIG"
	KindInitializeConfig  MessageKind = "INITIALIZE_CONFIG"
	KindResetConfig       MessageKind = "RESET_CONFIG"
	KindTranslateText     MessageKind = "TRANSLATE_TEXT"
	KindCaptureVisibleTab MessageKind = "CAPTURE_VISIBLE_TAB"
	KindPing              MessageKind = "PING"
)

// Message kinds pushed by the worker to a foreground context. They are never routed.
const (
	KindScreenshotCaptured MessageKind = "SCREENSHOT_CAPTURED"
	KindScreenshotError    MessageKind = "SCREENSHOT_ERROR"
)

var knownKinds = map[MessageKind]bool{
	KindGetConfig:          true,
	KindSetConfig:          true,
	KindInitializeConfig:   true,
	KindResetConfig:        true,
	KindTranslateText:      true,
	KindCaptureVisibleTab:  true,
	KindPing:               true,
	KindScreenshotCaptured: true,
	KindScreenshotError:    true,
}

// Valid reports whether k belongs to the closed set of message kinds.
func (k MessageKind) Valid() bool {
	return knownKinds[k]
}

// Envelope is a single message sent between contexts.
type Envelope struct {
	Type      MessageKind     `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	RequestID string          `json:"requestId,omitempty"`
	Origin    string          `json:"origin,omitempty"`
}

// NewEnvelope builds an envelope with a JSON encoded payload. A nil payload is omitted.
func NewEnvelope(kind MessageKind, payload any) (Envelope, error) {
	env := Envelope{Type: kind}
	if payload == nil {
		return env, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	env.Payload = raw
	return env, nil
}

// DecodePayload unmarshals the payload into v. An empty payload is treated as "{}".
func (e Envelope) DecodePayload(v any) error {
	if len(e.Payload) == 0 {
		return json.Unmarshal([]byte("{}"), v)
	}
	return json.Unmarshal(e.Payload, v)
}

// Response is the uniform reply to every routed envelope.
// Data is set only on success, Error only on failure.
type Response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// OK builds a successful response carrying v.
func OK(v any) *Response {
	if v == nil {
		return &Response{Success: true}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return Fail(err)
	}
	return &Response{Success: true, Data: raw}
}

// Fail builds a failed response from err.
func Fail(err error) *Response {
	if err == nil {
		err = errors.New("unknown error")
	}
	return &Response{Success: false, Error: err.Error()}
}

// Decode unmarshals the response data into v.
func (r *Response) Decode(v any) error {
	if r == nil || len(r.Data) == 0 {
		return errors.New("response has no data")
	}
	return json.Unmarshal(r.Data, v)
}

// Provider names a translation backend.
type Provider string

// Supported providers.
const (
	ProviderGoogle Provider = "google"
	ProviderBaidu  Provider = "baidu"
	ProviderYoudao Provider = "youdao"
)

// GoogleKeys holds the credential for the official Google endpoint.
type GoogleKeys struct {
	Key string `json:"key"`
}

// BaiduKeys holds Baidu translate credentials.
type BaiduKeys struct {
	AppID string `json:"appId"`
	Key   string `json:"key"`
}

// YoudaoKeys holds Youdao translate credentials.
type YoudaoKeys struct {
	AppKey    string `json:"appKey"`
	AppSecret string `json:"appSecret"`
}

// APIKeys groups per-provider credentials.
type APIKeys struct {
	Google GoogleKeys `json:"google"`
	Baidu  BaiduKeys  `json:"baidu"`
	Youdao YoudaoKeys `json:"youdao"`
}

// TranslationConfig is the persisted translation configuration.
type TranslationConfig struct {
	Provider       Provider `json:"provider"`
	TargetLanguage string   `json:"targetLanguage"`
	SourceLanguage string   `json:"sourceLanguage"`
	APIKeys        APIKeys  `json:"apiKeys"`
}

// DefaultTranslationConfig returns the configuration written on first install.
func DefaultTranslationConfig() TranslationConfig {
	return TranslationConfig{
		Provider:       ProviderGoogle,
		TargetLanguage: "zh-CN",
		SourceLanguage: "auto",
	}
}

// RulesConfig controls when translation is allowed.
type RulesConfig struct {
	Enabled         bool     `json:"enabled"`
	MaxTextLength   int      `json:"maxTextLength"`
	ExcludedDomains []string `json:"excludedDomains"`
}

// DefaultRulesConfig returns the rules written on first install.
func DefaultRulesConfig() RulesConfig {
	return RulesConfig{
		Enabled:         true,
		MaxTextLength:   5000,
		ExcludedDomains: []string{},
	}
}

// LivenessStatus is the last observed state of the worker.
type LivenessStatus struct {
	IsAlive        bool      `json:"isAlive"`
	LastActiveTime time.Time `json:"lastActiveTime"`
	IsInitialized  bool      `json:"isInitialized"`
}

// Config types accepted by GET_CONFIG and SET_CONFIG.
const (
	ConfigTypeTranslation = "translation"
	ConfigTypeRules       = "rules"
)

// GetConfigPayload is the payload of GET_CONFIG.
type GetConfigPayload struct {
	ConfigType string `json:"configType"`
}

// SetConfigPayload is the payload of SET_CONFIG. Config is written whole.
type SetConfigPayload struct {
	ConfigType string          `json:"configType"`
	Config     json.RawMessage `json:"config"`
}

// TranslatePayload is the payload of TRANSLATE_TEXT.
type TranslatePayload struct {
	Text           string `json:"text"`
	SourceLanguage string `json:"sourceLanguage,omitempty"`
	TargetLanguage string `json:"targetLanguage,omitempty"`
}

// TranslateResult is the response data of TRANSLATE_TEXT.
type TranslateResult struct {
	TranslatedText string `json:"translatedText"`
	SourceLanguage string `json:"sourceLanguage"`
	TargetLanguage string `json:"targetLanguage"`
	Provider       string `json:"provider"`
}

// CapturePayload is the payload of CAPTURE_VISIBLE_TAB.
type CapturePayload struct {
	RequestID string `json:"requestId"`
}

// CaptureResult is the response data of CAPTURE_VISIBLE_TAB.
type CaptureResult struct {
	DataURL string `json:"dataUrl"`
}

// ScreenshotNotice is the payload pushed with SCREENSHOT_CAPTURED or SCREENSHOT_ERROR.
type ScreenshotNotice struct {
	RequestID string `json:"requestId"`
	DataURL   string `json:"dataUrl,omitempty"`
	Error     string `json:"error,omitempty"`
}

// PingResult is the response data of PING.
type PingResult struct {
	Pong bool      `json:"pong"`
	Time time.Time `json:"time"`
}
