package translator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricofy/translation-relay/internal/domain"
)

// upstream fakes every provider endpoint. Handlers left nil answer 503.
type upstream struct {
	official, gtx, sentences, webapp, baidu, youdao http.HandlerFunc
	hits                                            map[string]*atomic.Int32
}

func (u *upstream) start(t *testing.T) *Orchestrator {
	t.Helper()

	u.hits = map[string]*atomic.Int32{}
	mux := http.NewServeMux()
	routes := map[string]http.HandlerFunc{
		"/official":  u.official,
		"/gtx":       u.gtx,
		"/sentences": u.sentences,
		"/webapp":    u.webapp,
		"/baidu":     u.baidu,
		"/youdao":    u.youdao,
	}
	for path, h := range routes {
		counter := &atomic.Int32{}
		u.hits[path] = counter
		handler := h
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			counter.Add(1)
			if handler == nil {
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
				return
			}
			handler(w, r)
		})
	}

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return New(Options{
		HTTPClient: srv.Client(),
		Endpoints: Endpoints{
			GoogleOfficial:  srv.URL + "/official",
			GoogleGTX:       srv.URL + "/gtx",
			GoogleSentences: srv.URL + "/sentences",
			GoogleWebapp:    srv.URL + "/webapp",
			Baidu:           srv.URL + "/baidu",
			Youdao:          srv.URL + "/youdao",
		},
		Now:  func() time.Time { return time.Unix(1700000000, 0) },
		Salt: func() string { return "salt" },
	})
}

func reply(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(body))
	}
}

func googleConfig(key string) domain.TranslationConfig {
	cfg := domain.DefaultTranslationConfig()
	cfg.APIKeys.Google.Key = key
	return cfg
}

func TestTranslate_IsTotal(t *testing.T) {
	u := &upstream{}
	o := u.start(t)

	configs := map[string]domain.TranslationConfig{
		"google-no-key":    googleConfig(""),
		"google-with-key":  googleConfig("k"),
		"baidu-no-creds":   {Provider: domain.ProviderBaidu, TargetLanguage: "zh-CN"},
		"youdao-no-creds":  {Provider: domain.ProviderYoudao, TargetLanguage: "zh-CN"},
		"unknown-provider": {Provider: "deepl", TargetLanguage: "zh-CN"},
	}

	for name, cfg := range configs {
		t.Run(name, func(t *testing.T) {
			var res Result
			require.NotPanics(t, func() {
				res = o.Translate(context.Background(), "some sentence nobody knows", cfg)
			})
			assert.NotEmpty(t, res.Text)
			assert.True(t, res.Fallback)
		})
	}
}

func TestTranslate_DictionaryFallbackIsDeterministic(t *testing.T) {
	u := &upstream{}
	o := u.start(t)
	cfg := domain.TranslationConfig{Provider: domain.ProviderBaidu}

	for i := 0; i < 3; i++ {
		res := o.Translate(context.Background(), "hello", cfg)
		assert.Equal(t, "你好", res.Text)
		assert.Equal(t, SourceDictionary, res.Provider)
	}
}

func TestTranslate_UnmatchedTextIsMarked(t *testing.T) {
	u := &upstream{}
	o := u.start(t)

	got := o.TranslateText(context.Background(), "xyzzyzzqq", googleConfig(""))
	assert.Equal(t, "[需要翻译] xyzzyzzqq", got)
}

func TestTranslate_GoogleOfficial(t *testing.T) {
	u := &upstream{
		official: func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "secret", r.URL.Query().Get("key"))
			var body googleOfficialRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "hello", body.Q)
			assert.Equal(t, "zh-CN", body.Target)
			assert.Empty(t, body.Source)
			_, _ = w.Write([]byte(`{"data":{"translations":[{"translatedText":"您好"}]}}`))
		},
	}
	o := u.start(t)

	res := o.Translate(context.Background(), "hello", googleConfig("secret"))
	assert.Equal(t, Result{Text: "您好", Provider: "google"}, res)
	assert.Equal(t, int32(0), u.hits["/gtx"].Load())
}

func TestTranslate_GoogleOfficialFailureEscalatesOnce(t *testing.T) {
	u := &upstream{
		official: reply(`{"data":{}}`),
		gtx:      reply(`[[["早上好","good morning",null,null,10]],null,"en"]`),
	}
	o := u.start(t)

	res := o.Translate(context.Background(), "good morning", googleConfig("secret"))
	assert.Equal(t, "早上好", res.Text)
	assert.Equal(t, "google", res.Provider)
	assert.Equal(t, int32(1), u.hits["/official"].Load())
}

func TestTranslate_GoogleCascade(t *testing.T) {
	tests := []struct {
		name string
		u    *upstream
		want string
	}{
		{
			name: "gtx nested arrays",
			u:    &upstream{gtx: reply(`[[["第一句。","First.",null],["第二句。","Second.",null]],null,"en"]`)},
			want: "第一句。第二句。",
		},
		{
			name: "gtx garbage falls to sentences",
			u: &upstream{
				gtx:       reply(`<html>captcha</html>`),
				sentences: reply(`{"sentences":[{"trans":"你好","orig":"hello"},{"translit":"ni hao"}],"src":"en"}`),
			},
			want: "你好",
		},
		{
			name: "jsonp wrapped webapp",
			u: &upstream{
				sentences: reply(`{"sentences":[]}`),
				webapp:    reply(`callback_1([["世界","en"]]);`),
			},
			want: "世界",
		},
		{
			name: "xssi guard",
			u:    &upstream{webapp: reply(")]}'\n[\"书\"]")},
			want: "书",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := tt.u.start(t)
			res := o.Translate(context.Background(), "whatever text", googleConfig(""))
			assert.Equal(t, tt.want, res.Text)
			assert.Equal(t, "google", res.Provider)
			assert.False(t, res.Fallback)
		})
	}
}

func TestTranslate_Baidu(t *testing.T) {
	u := &upstream{
		baidu: func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			assert.Equal(t, "hello", q.Get("q"))
			assert.Equal(t, "auto", q.Get("from"))
			assert.Equal(t, "zh", q.Get("to"))
			assert.Equal(t, "app", q.Get("appid"))
			assert.Equal(t, "salt", q.Get("salt"))
			assert.Equal(t, baiduSign("app", "hello", "salt", "key"), q.Get("sign"))
			_, _ = w.Write([]byte(`{"from":"en","to":"zh","trans_result":[{"src":"hello","dst":"你好呀"}]}`))
		},
	}
	o := u.start(t)

	cfg := domain.TranslationConfig{
		Provider:       domain.ProviderBaidu,
		TargetLanguage: "zh-CN",
		SourceLanguage: "auto",
		APIKeys:        domain.APIKeys{Baidu: domain.BaiduKeys{AppID: "app", Key: "key"}},
	}
	res := o.Translate(context.Background(), "hello", cfg)
	assert.Equal(t, Result{Text: "你好呀", Provider: "baidu"}, res)
}

func TestTranslate_BaiduErrorFallsBack(t *testing.T) {
	u := &upstream{baidu: reply(`{"error_code":"54001","error_msg":"Invalid Sign"}`)}
	o := u.start(t)

	cfg := domain.TranslationConfig{
		Provider: domain.ProviderBaidu,
		APIKeys:  domain.APIKeys{Baidu: domain.BaiduKeys{AppID: "app", Key: "key"}},
	}
	res := o.Translate(context.Background(), "thank you", cfg)
	assert.Equal(t, "谢谢", res.Text)
	assert.True(t, res.Fallback)
}

func TestTranslate_Youdao(t *testing.T) {
	u := &upstream{
		youdao: func(w http.ResponseWriter, r *http.Request) {
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "zh-CHS", r.PostForm.Get("to"))
			assert.Equal(t, "v3", r.PostForm.Get("signType"))
			assert.Equal(t, "1700000000", r.PostForm.Get("curtime"))
			assert.Equal(t, youdaoSign("ak", "hello", "salt", "1700000000", "as"), r.PostForm.Get("sign"))
			_, _ = w.Write([]byte(`{"errorCode":"0","translation":["哈喽"]}`))
		},
	}
	o := u.start(t)

	cfg := domain.TranslationConfig{
		Provider:       domain.ProviderYoudao,
		TargetLanguage: "zh-CN",
		APIKeys:        domain.APIKeys{Youdao: domain.YoudaoKeys{AppKey: "ak", AppSecret: "as"}},
	}
	res := o.Translate(context.Background(), "hello", cfg)
	assert.Equal(t, Result{Text: "哈喽", Provider: "youdao"}, res)
}

func TestTranslate_MissingCredentialsSkipNetwork(t *testing.T) {
	u := &upstream{}
	o := u.start(t)

	o.Translate(context.Background(), "hello", domain.TranslationConfig{Provider: domain.ProviderBaidu})
	o.Translate(context.Background(), "hello", domain.TranslationConfig{Provider: domain.ProviderYoudao})

	assert.Equal(t, int32(0), u.hits["/baidu"].Load())
	assert.Equal(t, int32(0), u.hits["/youdao"].Load())
}

func TestTranslate_LongTextIsSegmented(t *testing.T) {
	var calls atomic.Int32
	u := &upstream{
		gtx: func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			q := r.URL.Query().Get("q")
			_ = json.NewEncoder(w).Encode([]any{[]any{[]any{strings.ToUpper(q), q}}})
		},
	}
	o := u.start(t)
	o.maxSegmentRunes = 12

	res := o.Translate(context.Background(), "one two. three four. five.", googleConfig(""))
	assert.Equal(t, "ONE TWO. THREE FOUR. FIVE.", res.Text)
	assert.Equal(t, int32(3), calls.Load())
}

func TestTranslate_EmptyText(t *testing.T) {
	o := New(Options{})
	res := o.Translate(context.Background(), "  ", googleConfig(""))
	assert.Equal(t, "  ", res.Text)
	assert.Equal(t, SourcePassthrough, res.Provider)
}
