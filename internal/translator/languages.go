package translator

import "strings"

// Provider-specific codes for tags that differ from BCP 47.
var (
	baiduLanguages = map[string]string{
		"zh":    "zh",
		"zh-cn": "zh",
		"zh-tw": "cht",
		"zh-hk": "cht",
		"ja":    "jp",
		"ko":    "kor",
		"fr":    "fra",
		"es":    "spa",
		"ar":    "ara",
		"vi":    "vie",
		"da":    "dan",
		"sv":    "swe",
		"fi":    "fin",
		"bg":    "bul",
		"et":    "est",
		"ro":    "rom",
		"sl":    "slo",
	}

	youdaoLanguages = map[string]string{
		"zh":    "zh-CHS",
		"zh-cn": "zh-CHS",
		"zh-tw": "zh-CHT",
		"zh-hk": "zh-CHT",
	}
)

func baiduLanguage(tag string) string {
	if code, ok := baiduLanguages[strings.ToLower(tag)]; ok {
		return code
	}
	return primary(tag)
}

func youdaoLanguage(tag string) string {
	if code, ok := youdaoLanguages[strings.ToLower(tag)]; ok {
		return code
	}
	return primary(tag)
}

// primary returns the language subtag, e.g. "pt" for "pt-BR".
func primary(tag string) string {
	if tag == "" {
		return defaultSourceLanguage
	}
	if i := strings.IndexAny(tag, "-_"); i > 0 {
		return strings.ToLower(tag[:i])
	}
	return strings.ToLower(tag)
}
