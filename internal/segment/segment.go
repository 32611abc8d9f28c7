// Package segment carves a document into per-sentence parser inputs using
// sentence and token boundary spans.
package segment

import (
	"errors"
	"fmt"

	"github.com/dgallion1/syntaxd/internal/engine"
	"github.com/dgallion1/syntaxd/internal/forest"
)

var (
	ErrNoSentences    = errors.New("no sentences")
	ErrSpanOutOfRange = errors.New("span out of range")
)

// Input is what the engine receives for one sentence. In self-tokenizing
// mode Text holds the sentence slice and Base its document offset; otherwise
// Tokens holds the document tokens inside the sentence, with document
// offsets, and Base is 0.
type Input struct {
	Index  int
	Span   forest.Span
	Text   string
	Tokens []engine.Token
	Base   int
}

// Empty reports whether there is nothing to hand the engine.
func (in Input) Empty() bool {
	return len(in.Tokens) == 0 && in.Text == ""
}

// Segment returns one Input per sentence span, in the order given. Tokens
// are assigned to a sentence when both of their endpoints fall within the
// sentence span, inclusive. Tokens are ignored when selfTokenize is set.
func Segment(text string, sentences, tokens []forest.Span, selfTokenize bool) ([]Input, error) {
	if len(sentences) == 0 {
		return nil, ErrNoSentences
	}
	for _, s := range sentences {
		if err := checkSpan(text, s); err != nil {
			return nil, fmt.Errorf("sentence %w", err)
		}
	}
	if !selfTokenize {
		for _, tok := range tokens {
			if err := checkSpan(text, tok); err != nil {
				return nil, fmt.Errorf("token %w", err)
			}
		}
	}

	inputs := make([]Input, len(sentences))
	for i, s := range sentences {
		in := Input{Index: i, Span: s}
		if selfTokenize {
			in.Text = text[s.Start:s.End]
			in.Base = s.Start
		} else {
			for _, tok := range tokens {
				if s.Contains(tok) {
					in.Tokens = append(in.Tokens, engine.Token{
						Text:  text[tok.Start:tok.End],
						Start: tok.Start,
						End:   tok.End,
					})
				}
			}
		}
		inputs[i] = in
	}
	return inputs, nil
}

func checkSpan(text string, s forest.Span) error {
	if s.Start < 0 || s.End < s.Start || s.End > len(text) {
		return fmt.Errorf("(%d,%d) for text of length %d: %w", s.Start, s.End, len(text), ErrSpanOutOfRange)
	}
	return nil
}
