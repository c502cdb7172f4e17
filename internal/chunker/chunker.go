// Package chunker splits long text into segments a translation endpoint accepts.
package chunker

import (
	"strings"
	"unicode/utf8"
)

// DefaultMaxRunes is the default maximum segment length.
// The keyless endpoints put the text in the query string, which caps it well below 2000 runes.
const DefaultMaxRunes = 1800

// terminators end a sentence. Closing CJK punctuation is included.
const terminators = ".!?。！？；;\n"

// Split splits text into segments of at most maxRunes runes.
// Sentences are kept whole unless a single sentence exceeds maxRunes,
// in which case it is hard-split. Joining the segments yields text.
func Split(text string, maxRunes int) []string {
	if text == "" {
		return nil
	}

	if maxRunes <= 0 {
		maxRunes = DefaultMaxRunes
	}

	if utf8.RuneCountInString(text) <= maxRunes {
		return []string{text}
	}

	var segments []string
	var current strings.Builder
	currentRunes := 0

	flush := func() {
		if currentRunes > 0 {
			segments = append(segments, current.String())
			current.Reset()
			currentRunes = 0
		}
	}

	for _, sentence := range sentences(text) {
		sentenceRunes := utf8.RuneCountInString(sentence)

		// Oversized sentence: flush, then cut it by runes
		if sentenceRunes > maxRunes {
			flush()
			segments = append(segments, hardSplit(sentence, maxRunes)...)
			continue
		}

		if currentRunes+sentenceRunes > maxRunes {
			flush()
		}

		current.WriteString(sentence)
		currentRunes += sentenceRunes
	}

	flush()

	return segments
}

// sentences cuts text after every terminator, keeping the terminator.
func sentences(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		if strings.ContainsRune(terminators, r) {
			end := i + utf8.RuneLen(r)
			out = append(out, text[start:end])
			start = end
		}
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

func hardSplit(s string, maxRunes int) []string {
	var out []string
	runes := []rune(s)
	for len(runes) > maxRunes {
		out = append(out, string(runes[:maxRunes]))
		runes = runes[maxRunes:]
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}
