package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenTexts(toks []Token) []string {
	out := make([]string, len(toks))
	for i, t := range toks {
		out[i] = t.Text
	}
	return out
}

func TestTokenize_WordsAndPunctuation(t *testing.T) {
	toks := Tokenize("The dog barked.")
	assert.Equal(t, []string{"The", "dog", "barked", "."}, tokenTexts(toks))
	assert.Equal(t, Token{Text: "dog", Start: 4, End: 7}, toks[1])
}

func TestTokenize_OffsetsSliceText(t *testing.T) {
	text := "  Mr. Smith's cat didn't eat 3.5 fish -- really?"
	for _, tok := range Tokenize(text) {
		require.Equal(t, tok.Text, text[tok.Start:tok.End])
	}
}

func TestTokenize_Contractions(t *testing.T) {
	assert.Equal(t, []string{"I", "do", "n't", "know"}, tokenTexts(Tokenize("I don't know")))
	assert.Equal(t, []string{"John", "'s", "hat"}, tokenTexts(Tokenize("John's hat")))
}

func TestTokenize_NumbersAndDashes(t *testing.T) {
	assert.Equal(t, []string{"pay", "3.50", "--", "now", "..."}, tokenTexts(Tokenize("pay 3.50 -- now...")))
	assert.Equal(t, []string{"well-known", "1,000"}, tokenTexts(Tokenize("well-known 1,000")))
}

func TestTokenize_Empty(t *testing.T) {
	assert.Empty(t, Tokenize(""))
	assert.Empty(t, Tokenize("   \n\t"))
}

func TestSplitLabel(t *testing.T) {
	cases := []struct {
		in, term, ann string
	}{
		{"NP", "NP", ""},
		{"NP-SBJ", "NP", "-SBJ"},
		{"S^VP", "S", "^VP"},
		{"-LRB-", "-LRB-", ""},
	}
	for _, c := range cases {
		term, ann := SplitLabel(c.in)
		assert.Equal(t, c.term, term, c.in)
		assert.Equal(t, c.ann, ann, c.in)
	}
}

func TestTree_StringAndSize(t *testing.T) {
	tree := &Tree{Term: "S", Children: []*Tree{
		{Term: "NP", Children: []*Tree{{Term: "NN", Word: "dogs"}}},
		{Term: "VP", Children: []*Tree{{Term: "VBP", Word: "bark"}}},
	}}
	assert.Equal(t, "(S (NP (NN dogs)) (VP (VBP bark)))", tree.String())
	assert.Equal(t, 5, tree.Size())
}

func TestResult_LogProbability(t *testing.T) {
	logp, ok := (&Result{Prob: 0.25}).LogProbability()
	require.True(t, ok)
	assert.InDelta(t, math.Log(0.25), logp, 1e-12)

	logp, ok = (&Result{Prob: 0, LogProb: -1500, HasLogProb: true}).LogProbability()
	require.True(t, ok)
	assert.Equal(t, -1500.0, logp)

	logp, ok = (&Result{LogProb: 0, HasLogProb: true}).LogProbability()
	require.True(t, ok)
	assert.Equal(t, 0.0, logp)

	for _, r := range []Result{
		{Prob: 0},
		{Prob: -1},
		{LogProb: math.Inf(-1), HasLogProb: true},
		{LogProb: math.NaN(), HasLogProb: true},
		{LogProb: 0.5, HasLogProb: true},
	} {
		_, ok := r.LogProbability()
		assert.False(t, ok, "%+v", r)
	}
}
