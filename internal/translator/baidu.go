package translator

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pricofy/translation-relay/internal/domain"
)

type baiduResponse struct {
	ErrorCode   string `json:"error_code"`
	ErrorMsg    string `json:"error_msg"`
	TransResult []struct {
		Src string `json:"src"`
		Dst string `json:"dst"`
	} `json:"trans_result"`
}

// baiduSign is md5(appid + q + salt + key), hex encoded.
func baiduSign(appID, q, salt, key string) string {
	sum := md5.Sum([]byte(appID + q + salt + key))
	return hex.EncodeToString(sum[:])
}

func (o *Orchestrator) baidu(ctx context.Context, text, source, target string, keys domain.BaiduKeys) (string, error) {
	salt := o.salt()
	q := url.Values{}
	q.Set("q", text)
	q.Set("from", baiduLanguage(source))
	q.Set("to", baiduLanguage(target))
	q.Set("appid", keys.AppID)
	q.Set("salt", salt)
	q.Set("sign", baiduSign(keys.AppID, text, salt, keys.Key))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.endpoints.Baidu+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}

	body, err := o.fetch(req)
	if err != nil {
		o.metrics.EndpointFailed("baidu")
		return "", fmt.Errorf("baidu: %w", err)
	}

	var resp baiduResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("baidu: %w: %v", ErrMalformedResponse, err)
	}
	if resp.ErrorCode != "" && resp.ErrorCode != "52000" {
		return "", fmt.Errorf("baidu: error %s: %s", resp.ErrorCode, resp.ErrorMsg)
	}
	if len(resp.TransResult) == 0 {
		return "", fmt.Errorf("baidu: %w: no trans_result", ErrMalformedResponse)
	}

	lines := make([]string, 0, len(resp.TransResult))
	for _, r := range resp.TransResult {
		lines = append(lines, r.Dst)
	}
	return strings.Join(lines, "\n"), nil
}
