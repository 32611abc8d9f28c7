package pcfg

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/syntaxd/internal/engine"
)

func defaultParser(t *testing.T) *Parser {
	t.Helper()
	g, err := Default()
	require.NoError(t, err)
	return NewParser(g)
}

func TestDefaultGrammarLoads(t *testing.T) {
	g, err := Default()
	require.NoError(t, err)
	assert.Equal(t, "S1", g.Start())
	assert.Greater(t, g.NumSymbols(), 20)
}

func TestParse_SimpleSentence(t *testing.T) {
	p := defaultParser(t)
	text := "The dog barked."
	res, err := p.Parse(context.Background(), p.Tokenize(text))
	require.NoError(t, err)

	assert.Equal(t, "(S1 (S (NP (DT The) (NN dog)) (VP (VBD barked))) (. .))", res.Tree.String())
	assert.Greater(t, res.Prob, 0.0)
	assert.LessOrEqual(t, res.Prob, 1.0)
	assert.Equal(t, 0, res.Tree.Start)
	assert.Equal(t, len(text), res.Tree.End)
}

func TestParse_SpansFollowTokens(t *testing.T) {
	p := defaultParser(t)
	text := "John saw the cat in the park."
	toks := p.Tokenize(text)
	res, err := p.Parse(context.Background(), toks)
	require.NoError(t, err)

	var walk func(n *engine.Tree)
	leaves := 0
	walk = func(n *engine.Tree) {
		assert.LessOrEqual(t, n.Start, n.End)
		if n.IsPreterminal() {
			assert.Equal(t, toks[leaves].Start, n.Start)
			assert.Equal(t, toks[leaves].End, n.End)
			assert.Equal(t, text[n.Start:n.End], n.Word)
			leaves++
			return
		}
		assert.Equal(t, n.Children[0].Start, n.Start)
		assert.Equal(t, n.Children[len(n.Children)-1].End, n.End)
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(res.Tree)
	assert.Equal(t, len(toks), leaves)
}

func TestParse_NoIntermediateLabels(t *testing.T) {
	p := defaultParser(t)
	res, err := p.Parse(context.Background(), p.Tokenize("After dinner, the man saw a dog."))
	require.NoError(t, err)
	assert.NotContains(t, res.Tree.String(), "@")
}

func TestParse_UnknownWordsFallBack(t *testing.T) {
	p := defaultParser(t)
	res, err := p.Parse(context.Background(), p.Tokenize("Zorblax frobnicated quuxes."))
	require.NoError(t, err)
	assert.Equal(t, "S1", res.Tree.Label())
}

func TestParse_EmptyInput(t *testing.T) {
	p := defaultParser(t)
	_, err := p.Parse(context.Background(), nil)
	assert.ErrorIs(t, err, engine.ErrEmptyInput)
}

func TestParse_NoParse(t *testing.T) {
	g, err := ParseGrammar(strings.NewReader(`
%start S
S -> NP VP
NP -> "dogs"
VP -> "bark"
`))
	require.NoError(t, err)
	p := NewParser(g)

	_, err = p.Parse(context.Background(), p.Tokenize("bark dogs"))
	assert.ErrorIs(t, err, engine.ErrNoParse)

	_, err = p.Parse(context.Background(), p.Tokenize("cats bark"))
	assert.ErrorIs(t, err, engine.ErrNoParse)

	res, err := p.Parse(context.Background(), p.Tokenize("dogs bark"))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.Prob, 1e-9)
}

func TestParse_LongSentenceKeepsLogProb(t *testing.T) {
	g, err := ParseGrammar(strings.NewReader(`
%start S
S -> S W 0.5
S -> W 0.5
W -> "w" 0.01
`))
	require.NoError(t, err)
	p := NewParser(g)

	const n = 320
	res, err := p.Parse(context.Background(), p.Tokenize(strings.TrimSpace(strings.Repeat("w ", n))))
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Prob)
	assert.True(t, res.HasLogProb)
	assert.InDelta(t, n*(math.Log(0.01)+math.Log(0.5)), res.LogProb, 1e-6)
}

func TestParse_CanceledContext(t *testing.T) {
	p := defaultParser(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Parse(ctx, p.Tokenize("The dog saw the cat."))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseGrammar_Binarizes(t *testing.T) {
	g, err := ParseGrammar(strings.NewReader(`
%start S
S -> A B C 0.5
S -> A 0.5
A -> "a"
B -> "b"
C -> "c"
`))
	require.NoError(t, err)
	p := NewParser(g)
	res, err := p.Parse(context.Background(), p.Tokenize("a b c"))
	require.NoError(t, err)
	assert.Equal(t, "(S (A a) (B b) (C c))", res.Tree.String())
	assert.InDelta(t, 0.5, res.Prob, 1e-9)
}

func TestParseGrammar_Errors(t *testing.T) {
	cases := map[string]string{
		"no start":      `NP -> "x"`,
		"bad arrow":     "%start S\nS NP VP",
		"bad prob":      "%start S\nS -> NP VP 1.5\nNP -> \"x\"",
		"reserved":      "%start S\n@S -> NP\nNP -> \"x\"",
		"mixed":         "%start S\nS -> NP \"x\"",
		"no lexicon":    "%start S\nS -> NP VP",
		"bad directive": "%start S\n%bogus\nNP -> \"x\"",
	}
	for name, src := range cases {
		_, err := ParseGrammar(strings.NewReader(src))
		assert.Error(t, err, name)
	}
}

func TestInfo(t *testing.T) {
	info := defaultParser(t).Info()
	assert.Equal(t, "pcfg", info.ShortName)
	assert.Equal(t, "0.7", info.Version)
}
