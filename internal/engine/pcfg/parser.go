package pcfg

import (
	"context"
	"fmt"
	"math"

	"github.com/dgallion1/syntaxd/internal/engine"
)

const (
	engineName    = "Syntax Constituency Parser"
	engineShort   = "pcfg"
	engineVersion = "0.7"
)

// Parser is a Viterbi CKY parser over a Grammar. It keeps no per-call state
// and is safe for concurrent use.
type Parser struct {
	grammar *Grammar
}

// NewParser returns a parser for g.
func NewParser(g *Grammar) *Parser {
	return &Parser{grammar: g}
}

// Info identifies the engine.
func (p *Parser) Info() engine.Info {
	return engine.Info{Name: engineName, ShortName: engineShort, Version: engineVersion}
}

// Tokenize uses the shared Penn-style tokenizer.
func (p *Parser) Tokenize(text string) []engine.Token {
	return engine.Tokenize(text)
}

// item is one chart entry. Entries are never mutated after creation, so
// back-pointers stay valid when a cell's best entry is replaced.
type item struct {
	sym  int
	logp float64
	tok  int // token index for preterminals, -1 otherwise
	kids []*item
}

type cell map[int]*item

func (c cell) offer(it *item) bool {
	if cur, ok := c[it.sym]; ok && cur.logp >= it.logp {
		return false
	}
	c[it.sym] = it
	return true
}

// Parse returns the most probable tree over tokens rooted at the grammar's
// start symbol.
func (p *Parser) Parse(ctx context.Context, tokens []engine.Token) (*engine.Result, error) {
	n := len(tokens)
	if n == 0 {
		return nil, engine.ErrEmptyInput
	}
	g := p.grammar

	// chart[i][j] covers tokens[i:j].
	chart := make([][]cell, n)
	for i := range chart {
		chart[i] = make([]cell, n+1)
	}

	for i, tok := range tokens {
		c := make(cell)
		for _, e := range g.tags(tok.Text) {
			c.offer(&item{sym: e.tag, logp: e.logp, tok: i})
		}
		if len(c) == 0 {
			return nil, fmt.Errorf("no lexical analysis for %q: %w", tok.Text, engine.ErrNoParse)
		}
		p.closeUnary(c)
		chart[i][i+1] = c
	}

	for span := 2; span <= n; span++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i := 0; i+span <= n; i++ {
			j := i + span
			c := make(cell)
			for k := i + 1; k < j; k++ {
				left, right := chart[i][k], chart[k][j]
				if len(left) == 0 || len(right) == 0 {
					continue
				}
				for bsym, b := range left {
					for csym, cc := range right {
						for _, r := range g.binary[[2]int{bsym, csym}] {
							c.offer(&item{
								sym:  r.lhs,
								logp: r.logp + b.logp + cc.logp,
								tok:  -1,
								kids: []*item{b, cc},
							})
						}
					}
				}
			}
			p.closeUnary(c)
			chart[i][j] = c
		}
	}

	root, ok := chart[0][n][g.start]
	if !ok {
		return nil, engine.ErrNoParse
	}
	tree := p.build(root, tokens)
	if len(tree) != 1 {
		return nil, fmt.Errorf("root symbol is an intermediate: %w", engine.ErrNoParse)
	}
	return &engine.Result{Tree: tree[0], Prob: math.Exp(root.logp), LogProb: root.logp, HasLogProb: true}, nil
}

// closeUnary applies unary rules until no entry improves. Probabilities are
// at most 1, so a cycle can never improve an entry and the loop terminates.
func (p *Parser) closeUnary(c cell) {
	for changed := true; changed; {
		changed = false
		for bsym, b := range c {
			for _, r := range p.grammar.unary[bsym] {
				if c.offer(&item{sym: r.lhs, logp: r.logp + b.logp, tok: -1, kids: []*item{b}}) {
					changed = true
				}
			}
		}
	}
}

// build converts a chart entry into native trees. Intermediate symbols are
// spliced into their parent, so the result has one element unless it is an
// intermediate.
func (p *Parser) build(it *item, tokens []engine.Token) []*engine.Tree {
	name := p.grammar.symbols[it.sym]
	if it.tok >= 0 {
		term, ann := engine.SplitLabel(name)
		tok := tokens[it.tok]
		return []*engine.Tree{{Term: term, Annotation: ann, Word: tok.Text, Start: tok.Start, End: tok.End}}
	}
	var kids []*engine.Tree
	for _, k := range it.kids {
		kids = append(kids, p.build(k, tokens)...)
	}
	if isIntermediate(name) {
		return kids
	}
	term, ann := engine.SplitLabel(name)
	return []*engine.Tree{{
		Term:       term,
		Annotation: ann,
		Start:      kids[0].Start,
		End:        kids[len(kids)-1].End,
		Children:   kids,
	}}
}
