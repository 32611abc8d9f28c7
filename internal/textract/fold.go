package textract

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var punctuation = strings.NewReplacer(
	"\u2018", "'", "\u2019", "'", "\u201a", "'",
	"\u201c", `"`, "\u201d", `"`, "\u201e", `"`,
	"\u2013", "-", "\u2014", "--", "\u2026", "...",
	"\u00a0", " ", "\u2022", "*",
)

// FoldASCII rewrites typographic punctuation to ASCII and strips combining
// accents ("café" becomes "cafe"). Characters with no ASCII decomposition
// are left alone for the encoding check to reject.
func FoldASCII(s string) string {
	s = punctuation.Replace(s)
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}
