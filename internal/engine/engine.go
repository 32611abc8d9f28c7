// Package engine defines the contract between the annotation layer and a
// constituency parsing engine: the engine's native tree, its token input and
// the errors it may return.
package engine

import (
	"context"
	"errors"
	"math"
	"strings"
)

var (
	// ErrNoParse is returned when the engine finds no complete analysis.
	ErrNoParse = errors.New("parse failed")
	// ErrEmptyInput is returned for a sentence with no tokens.
	ErrEmptyInput = errors.New("input had zero length")
)

// Token is one word handed to the engine. Start and End are offsets in
// whatever text the caller sliced the token from.
type Token struct {
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Tree is the engine's native constituent. Preterminals carry the word they
// dominate and have no children.
type Tree struct {
	Term       string // syntactic category, e.g. "NP"
	Annotation string // function tag suffix, e.g. "-SBJ"
	Word       string // set on preterminals only
	Start      int
	End        int
	Children   []*Tree
}

// Label returns the category with its annotation suffix.
func (t *Tree) Label() string { return t.Term + t.Annotation }

// IsPreterminal reports whether t dominates a single word.
func (t *Tree) IsPreterminal() bool { return len(t.Children) == 0 }

// Size returns the number of nodes in t.
func (t *Tree) Size() int {
	n := 1
	for _, c := range t.Children {
		n += c.Size()
	}
	return n
}

// String renders t as a bracketed s-expression.
func (t *Tree) String() string {
	var sb strings.Builder
	t.write(&sb)
	return sb.String()
}

func (t *Tree) write(sb *strings.Builder) {
	sb.WriteByte('(')
	sb.WriteString(t.Label())
	if t.IsPreterminal() {
		sb.WriteByte(' ')
		sb.WriteString(t.Word)
	}
	for _, c := range t.Children {
		sb.WriteByte(' ')
		c.write(sb)
	}
	sb.WriteByte(')')
}

// SplitLabel separates a grammar label into its category and annotation
// suffix. Bracket labels such as "-LRB-" are returned whole.
func SplitLabel(label string) (term, annotation string) {
	if strings.HasPrefix(label, "-") {
		return label, ""
	}
	if i := strings.IndexAny(label, "-=^"); i > 0 {
		return label[:i], label[i:]
	}
	return label, ""
}

// Result is the engine's best analysis of one sentence.
type Result struct {
	Tree *Tree
	// Prob is the joint probability of the tree, not a log value. It
	// underflows to zero on long sentences.
	Prob float64
	// LogProb is ln(Prob), valid only when HasLogProb is set.
	LogProb    float64
	HasLogProb bool
}

// LogProbability returns the natural log of the tree's probability. It
// prefers LogProb and falls back to Prob; ok is false when neither holds a
// usable value.
func (r *Result) LogProbability() (logp float64, ok bool) {
	if r.HasLogProb {
		if math.IsNaN(r.LogProb) || math.IsInf(r.LogProb, 0) || r.LogProb > 0 {
			return 0, false
		}
		return r.LogProb, true
	}
	if r.Prob <= 0 || math.IsNaN(r.Prob) {
		return 0, false
	}
	return math.Log(r.Prob), true
}

// Info identifies an engine.
type Info struct {
	Name      string `json:"name"`
	ShortName string `json:"short_name"`
	Version   string `json:"version"`
}

// Engine parses a tokenized sentence into its single best tree.
// Implementations must be safe for concurrent use.
type Engine interface {
	// Tokenize splits raw sentence text into tokens with offsets relative
	// to text.
	Tokenize(text string) []Token
	// Parse returns the best tree over tokens. Tree offsets are taken from
	// the token offsets.
	Parse(ctx context.Context, tokens []Token) (*Result, error)
	Info() Info
}
