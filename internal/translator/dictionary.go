package translator

import (
	"sort"
	"strings"
	"unicode"
)

// NeedsTranslationMarker prefixes text that no provider or dictionary entry could translate.
const NeedsTranslationMarker = "[需要翻译] "

var englishToChinese = map[string]string{
	"hello":          "你好",
	"hi":             "你好",
	"world":          "世界",
	"hello world":    "你好，世界",
	"thank you":      "谢谢",
	"thanks":         "谢谢",
	"goodbye":        "再见",
	"bye":            "再见",
	"yes":            "是",
	"please":         "请",
	"sorry":          "对不起",
	"excuse me":      "打扰一下",
	"welcome":        "欢迎",
	"good morning":   "早上好",
	"good afternoon": "下午好",
	"good evening":   "晚上好",
	"good night":     "晚安",
	"how are you":    "你好吗",
	"i love you":     "我爱你",
	"love":           "爱",
	"friend":         "朋友",
	"family":         "家庭",
	"translate":      "翻译",
	"translation":    "翻译",
	"language":       "语言",
	"english":        "英语",
	"chinese":        "中文",
	"computer":       "电脑",
	"internet":       "互联网",
	"browser":        "浏览器",
	"screenshot":     "截图",
	"settings":       "设置",
	"search":         "搜索",
	"download":       "下载",
	"upload":         "上传",
	"error":          "错误",
	"success":        "成功",
	"today":          "今天",
	"tomorrow":       "明天",
	"yesterday":      "昨天",
	"time":           "时间",
	"water":          "水",
	"food":           "食物",
	"book":           "书",
	"school":         "学校",
	"teacher":        "老师",
	"student":        "学生",
}

// dictionary holds one direction of the static fallback.
type dictionary struct {
	entries map[string]string
	// keys is ordered longest first, then alphabetically, so containment
	// matching is deterministic and prefers the most specific entry.
	keys []string
}

func newDictionary(entries map[string]string) *dictionary {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		li, lj := len([]rune(keys[i])), len([]rune(keys[j]))
		if li != lj {
			return li > lj
		}
		return keys[i] < keys[j]
	})
	return &dictionary{entries: entries, keys: keys}
}

// lookup tries an exact match, then containment in either direction.
func (d *dictionary) lookup(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	if v, ok := d.entries[text]; ok {
		return v, true
	}
	for _, k := range d.keys {
		if strings.Contains(text, k) || strings.Contains(k, text) {
			return d.entries[k], true
		}
	}
	return "", false
}

// reverse builds the Chinese to English direction. When several English
// entries share a translation, the alphabetically first one wins.
func reverse(entries map[string]string) map[string]string {
	english := make([]string, 0, len(entries))
	for k := range entries {
		english = append(english, k)
	}
	sort.Strings(english)

	out := make(map[string]string, len(entries))
	for _, en := range english {
		zh := entries[en]
		if _, exists := out[zh]; !exists {
			out[zh] = en
		}
	}
	return out
}

var (
	forwardDictionary = newDictionary(englishToChinese)
	reverseDictionary = newDictionary(reverse(englishToChinese))
)

func containsHan(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

// fallback is the last step of Translate; it always produces a string.
func fallback(text string) Result {
	trimmed := strings.TrimSpace(text)
	normalized := strings.ToLower(trimmed)

	if out, ok := forwardDictionary.lookup(normalized); ok {
		return Result{Text: out, Provider: SourceDictionary, Fallback: true}
	}

	if containsHan(trimmed) {
		if out, ok := reverseDictionary.lookup(trimmed); ok {
			return Result{Text: out, Provider: SourceDictionary, Fallback: true}
		}
	}

	return Result{Text: NeedsTranslationMarker + text, Provider: SourcePassthrough, Fallback: true}
}
