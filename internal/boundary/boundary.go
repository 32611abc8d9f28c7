// Package boundary produces sentence and token views for text that arrives
// without them, such as uploaded files.
package boundary

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dgallion1/syntaxd/internal/engine"
	"github.com/dgallion1/syntaxd/internal/forest"
)

// Source names the producer in the labelings it creates.
const Source = "syntaxd-boundary"

var abbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true, "st": true,
	"jr": true, "sr": true, "vs": true, "etc": true, "inc": true, "co": true,
	"e.g": true, "i.e": true, "no": true, "fig": true,
}

// Sentences splits text at sentence-final punctuation followed by
// whitespace, and at blank lines. Spans exclude surrounding whitespace.
func Sentences(text string) []forest.Span {
	var spans []forest.Span
	start := -1
	emit := func(end int) {
		if start >= 0 {
			spans = append(spans, forest.Span{Start: start, End: trimRight(text, start, end)})
			start = -1
		}
	}

	for i := 0; i < len(text); {
		r, w := utf8.DecodeRuneInString(text[i:])
		if start < 0 {
			if !unicode.IsSpace(r) {
				start = i
			}
			i += w
			continue
		}
		switch {
		case r == '\n' && strings.HasPrefix(text[i+w:], "\n"):
			emit(i)
		case (r == '.' || r == '!' || r == '?') && endsSentence(text, start, i, w):
			j := i + w
			// Absorb runs of terminal punctuation and closing quotes.
			for j < len(text) && strings.ContainsRune(".!?\"')", rune(text[j])) {
				j++
			}
			emit(j)
			i = j
			continue
		}
		i += w
	}
	emit(len(text))
	return spans
}

func endsSentence(text string, start, i, w int) bool {
	j := i + w
	for j < len(text) && strings.ContainsRune(".!?\"')", rune(text[j])) {
		j++
	}
	if j < len(text) {
		r, _ := utf8.DecodeRuneInString(text[j:])
		if !unicode.IsSpace(r) {
			return false
		}
	}
	if text[i] == '.' {
		word := lastWord(text[start:i])
		if abbreviations[strings.ToLower(word)] {
			return false
		}
		if utf8.RuneCountInString(word) == 1 && unicode.IsUpper([]rune(word)[0]) {
			return false // initials
		}
	}
	return true
}

func lastWord(s string) string {
	k := strings.LastIndexFunc(s, unicode.IsSpace)
	return s[k+1:]
}

func trimRight(text string, start, end int) int {
	for end > start {
		r, w := utf8.DecodeLastRuneInString(text[start:end])
		if !unicode.IsSpace(r) {
			break
		}
		end -= w
	}
	return end
}

// Tokens tokenizes each sentence and returns token spans in document
// offsets.
func Tokens(text string, sentences []forest.Span) []forest.Span {
	var spans []forest.Span
	for _, s := range sentences {
		for _, tok := range engine.Tokenize(text[s.Start:s.End]) {
			spans = append(spans, forest.Span{Start: tok.Start + s.Start, End: tok.End + s.Start})
		}
	}
	return spans
}

// Record wraps text in a record carrying sentence and token views under the
// given names.
func Record(id, text, sentenceView, tokenView string) forest.Record {
	sentences := Sentences(text)
	return forest.Record{
		ID:      id,
		RawText: text,
		LabelViews: map[string]forest.Labeling{
			sentenceView: {Source: Source, Labels: sentences},
			tokenView:    {Source: Source, Labels: Tokens(text, sentences)},
		},
	}
}
