package translator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pricofy/translation-relay/internal/domain"
)

type youdaoResponse struct {
	ErrorCode   string   `json:"errorCode"`
	Translation []string `json:"translation"`
}

// youdaoInput shortens q the way the v3 signature expects:
// texts over 20 runes become first 10 + rune count + last 10.
func youdaoInput(q string) string {
	n := utf8.RuneCountInString(q)
	if n <= 20 {
		return q
	}
	runes := []rune(q)
	return string(runes[:10]) + strconv.Itoa(n) + string(runes[n-10:])
}

// youdaoSign is sha256(appKey + input + salt + curtime + appSecret), hex encoded.
func youdaoSign(appKey, q, salt, curtime, appSecret string) string {
	sum := sha256.Sum256([]byte(appKey + youdaoInput(q) + salt + curtime + appSecret))
	return hex.EncodeToString(sum[:])
}

func (o *Orchestrator) youdao(ctx context.Context, text, source, target string, keys domain.YoudaoKeys) (string, error) {
	salt := o.salt()
	curtime := strconv.FormatInt(o.now().Unix(), 10)

	form := url.Values{}
	form.Set("q", text)
	form.Set("from", youdaoLanguage(source))
	form.Set("to", youdaoLanguage(target))
	form.Set("appKey", keys.AppKey)
	form.Set("salt", salt)
	form.Set("curtime", curtime)
	form.Set("signType", "v3")
	form.Set("sign", youdaoSign(keys.AppKey, text, salt, curtime, keys.AppSecret))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoints.Youdao, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := o.fetch(req)
	if err != nil {
		o.metrics.EndpointFailed("youdao")
		return "", fmt.Errorf("youdao: %w", err)
	}

	var resp youdaoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("youdao: %w: %v", ErrMalformedResponse, err)
	}
	if resp.ErrorCode != "0" {
		return "", fmt.Errorf("youdao: error code %s", resp.ErrorCode)
	}
	if len(resp.Translation) == 0 {
		return "", fmt.Errorf("youdao: %w: no translation", ErrMalformedResponse)
	}
	return strings.Join(resp.Translation, "\n"), nil
}
