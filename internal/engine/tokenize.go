package engine

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Tokenize splits text into Penn-style tokens: words, numbers, single
// punctuation marks, runs of "." or "-", and split-off contractions
// ("don't" -> "do" "n't", "John's" -> "John" "'s"). Offsets are byte offsets
// into text, so text[t.Start:t.End] == t.Text for every token.
func Tokenize(text string) []Token {
	var toks []Token
	i := 0
	for i < len(text) {
		r, w := utf8.DecodeRuneInString(text[i:])
		switch {
		case unicode.IsSpace(r):
			i += w
		case isWordRune(r) || (r == '\'' && wordRuneAt(text, i+w)):
			j := i + w
			for j < len(text) {
				r2, w2 := utf8.DecodeRuneInString(text[j:])
				if isWordRune(r2) {
					j += w2
					continue
				}
				if joinsWord(text, j, r2, w2) {
					j += w2
					continue
				}
				break
			}
			toks = append(toks, splitContraction(text, i, j)...)
			i = j
		default:
			j := i + w
			if r == '.' || r == '-' {
				for j < len(text) && rune(text[j]) == r {
					j++
				}
			}
			toks = append(toks, Token{Text: text[i:j], Start: i, End: j})
			i = j
		}
	}
	return toks
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func wordRuneAt(text string, i int) bool {
	if i >= len(text) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(text[i:])
	return isWordRune(r)
}

// joinsWord reports whether the connector rune at j continues the word that
// ends right before it: hyphens and apostrophes between word runes, and a
// decimal point between digits.
func joinsWord(text string, j int, r rune, w int) bool {
	if j == 0 || j+w >= len(text) {
		return false
	}
	next, _ := utf8.DecodeRuneInString(text[j+w:])
	switch r {
	case '-', '\'':
		return isWordRune(next)
	case '.', ',':
		prev := text[j-1]
		return prev >= '0' && prev <= '9' && unicode.IsDigit(next)
	}
	return false
}

func splitContraction(text string, start, end int) []Token {
	word := text[start:end]
	lower := strings.ToLower(word)
	if strings.HasSuffix(lower, "n't") && len(word) > 3 {
		cut := end - 3
		return []Token{
			{Text: text[start:cut], Start: start, End: cut},
			{Text: text[cut:end], Start: cut, End: end},
		}
	}
	if k := strings.LastIndexByte(word, '\''); k > 0 && k < len(word)-1 {
		cut := start + k
		return []Token{
			{Text: text[start:cut], Start: start, End: cut},
			{Text: text[cut:end], Start: cut, End: end},
		}
	}
	return []Token{{Text: word, Start: start, End: end}}
}
