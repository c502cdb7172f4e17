package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageKind_Valid(t *testing.T) {
	assert.True(t, KindTranslateText.Valid())
	assert.True(t, KindScreenshotError.Valid())
	assert.False(t, MessageKind("").Valid())
	assert.False(t, MessageKind("translate_text").Valid())
}

func TestEnvelope_Payload(t *testing.T) {
	env, err := NewEnvelope(KindTranslateText, TranslatePayload{Text: "hello", TargetLanguage: "fr"})
	require.NoError(t, err)
	assert.Equal(t, KindTranslateText, env.Type)

	var p TranslatePayload
	require.NoError(t, env.DecodePayload(&p))
	assert.Equal(t, "hello", p.Text)
	assert.Equal(t, "fr", p.TargetLanguage)

	empty, err := NewEnvelope(KindPing, nil)
	require.NoError(t, err)
	assert.Nil(t, empty.Payload)

	var g GetConfigPayload
	require.NoError(t, empty.DecodePayload(&g))
	assert.Empty(t, g.ConfigType)
}

func TestEnvelope_WireFormat(t *testing.T) {
	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(`{"type":"GET_CONFIG","payload":{"configType":"rules"},"requestId":"r1"}`), &env))
	assert.Equal(t, KindGetConfig, env.Type)
	assert.Equal(t, "r1", env.RequestID)

	var p GetConfigPayload
	require.NoError(t, env.DecodePayload(&p))
	assert.Equal(t, ConfigTypeRules, p.ConfigType)
}

func TestResponse_Invariant(t *testing.T) {
	ok := OK(PingResult{Pong: true})
	assert.True(t, ok.Success)
	assert.NotEmpty(t, ok.Data)
	assert.Empty(t, ok.Error)

	var ping PingResult
	require.NoError(t, ok.Decode(&ping))
	assert.True(t, ping.Pong)

	bare := OK(nil)
	assert.True(t, bare.Success)
	assert.Empty(t, bare.Data)
	assert.Error(t, bare.Decode(&ping))

	fail := Fail(errors.New("boom"))
	assert.False(t, fail.Success)
	assert.Empty(t, fail.Data)
	assert.Equal(t, "boom", fail.Error)

	assert.Equal(t, "unknown error", Fail(nil).Error)

	raw, err := json.Marshal(fail)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"error":"boom"}`, string(raw))
}

func TestDefaults(t *testing.T) {
	cfg := DefaultTranslationConfig()
	assert.Equal(t, ProviderGoogle, cfg.Provider)
	assert.Equal(t, "zh-CN", cfg.TargetLanguage)
	assert.Equal(t, "auto", cfg.SourceLanguage)

	rules := DefaultRulesConfig()
	assert.True(t, rules.Enabled)
	assert.Equal(t, 5000, rules.MaxTextLength)
	assert.NotNil(t, rules.ExcludedDomains)
}
