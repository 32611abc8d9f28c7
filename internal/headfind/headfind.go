// Package headfind selects the head child of a constituent.
package headfind

import (
	"github.com/dgallion1/syntaxd/internal/engine"
)

// HeadFinder picks the head child of a native tree node. It returns the
// child's index, or -1 when the node has no children.
type HeadFinder interface {
	HeadChild(t *engine.Tree) int
}

type direction int

const (
	leftToRight direction = iota
	rightToLeft
)

type rule struct {
	dir        direction
	priorities []string
}

// Collins implements the Collins (1999) head table for Penn Treebank
// categories. Unknown categories take the leftmost child.
type Collins struct {
	rules map[string][]rule
}

// NewCollins returns a head finder with the standard table.
func NewCollins() *Collins {
	l := func(p ...string) rule { return rule{dir: leftToRight, priorities: p} }
	r := func(p ...string) rule { return rule{dir: rightToLeft, priorities: p} }
	return &Collins{rules: map[string][]rule{
		"ADJP":   {l("NNS", "QP", "NN", "$", "ADVP", "JJ", "VBN", "VBG", "ADJP", "JJR", "NP", "JJS", "DT", "FW", "RBR", "RBS", "SBAR", "RB")},
		"ADVP":   {r("RB", "RBR", "RBS", "FW", "ADVP", "TO", "CD", "JJR", "JJ", "IN", "NP", "JJS", "NN")},
		"CONJP":  {r("CC", "RB", "IN")},
		"FRAG":   {r()},
		"INTJ":   {l()},
		"LST":    {r("LS", ":")},
		"NAC":    {l("NN", "NNS", "NNP", "NNPS", "NP", "NAC", "EX", "$", "CD", "QP", "PRP", "VBG", "JJ", "JJS", "JJR", "ADJP", "FW")},
		"PP":     {r("IN", "TO", "VBG", "VBN", "RP", "FW")},
		"PRN":    {l()},
		"PRT":    {r("RP")},
		"QP":     {l("$", "IN", "NNS", "NN", "JJ", "RB", "DT", "CD", "NCD", "QP", "JJR", "JJS")},
		"RRC":    {r("VP", "NP", "ADVP", "ADJP", "PP")},
		"S":      {l("TO", "IN", "VP", "S", "SBAR", "ADJP", "UCP", "NP")},
		"S1":     {l("S", "SINV", "SQ", "SBARQ", "FRAG", "NP", "VP")},
		"SBAR":   {l("WHNP", "WHPP", "WHADVP", "WHADJP", "IN", "DT", "S", "SQ", "SINV", "SBAR", "FRAG")},
		"SBARQ":  {l("SQ", "S", "SINV", "SBARQ", "FRAG")},
		"SINV":   {l("VBZ", "VBD", "VBP", "VB", "MD", "VP", "S", "SINV", "ADJP", "NP")},
		"SQ":     {l("VBZ", "VBD", "VBP", "VB", "MD", "VP", "SQ")},
		"UCP":    {r()},
		"VP":     {l("TO", "VBD", "VBN", "MD", "VBZ", "VB", "VBG", "VBP", "VP", "ADJP", "NN", "NNS", "NP")},
		"WHADJP": {l("CC", "WRB", "JJ", "ADJP")},
		"WHADVP": {r("CC", "WRB")},
		"WHNP":   {l("WDT", "WP", "WP$", "WHADJP", "WHPP", "WHNP")},
		"WHPP":   {r("IN", "TO", "FW")},
		"X":      {r()},
	}}
}

// HeadChild returns the index of t's head child.
func (c *Collins) HeadChild(t *engine.Tree) int {
	kids := t.Children
	switch len(kids) {
	case 0:
		return -1
	case 1:
		return 0
	}
	if t.Term == "NP" || t.Term == "NX" {
		return npHead(kids)
	}
	rules, ok := c.rules[t.Term]
	if !ok {
		return 0
	}
	for _, ru := range rules {
		if idx := scan(kids, ru); idx >= 0 {
			return idx
		}
	}
	if rules[0].dir == rightToLeft {
		return len(kids) - 1
	}
	return 0
}

// scan searches for each priority category in turn, in the rule's direction.
func scan(kids []*engine.Tree, ru rule) int {
	for _, want := range ru.priorities {
		if ru.dir == leftToRight {
			for i, k := range kids {
				if k.Term == want {
					return i
				}
			}
		} else {
			for i := len(kids) - 1; i >= 0; i-- {
				if kids[i].Term == want {
					return i
				}
			}
		}
	}
	return -1
}

// npHead applies Collins' special NP procedure.
func npHead(kids []*engine.Tree) int {
	last := len(kids) - 1
	if kids[last].Term == "POS" {
		return last
	}
	for i := last; i >= 0; i-- {
		if in(kids[i].Term, "NN", "NNP", "NNPS", "NNS", "NX", "POS", "JJR") {
			return i
		}
	}
	for i := 0; i <= last; i++ {
		if kids[i].Term == "NP" {
			return i
		}
	}
	for i := last; i >= 0; i-- {
		if in(kids[i].Term, "$", "ADJP", "PRN") {
			return i
		}
	}
	for i := last; i >= 0; i-- {
		if kids[i].Term == "CD" {
			return i
		}
	}
	for i := last; i >= 0; i-- {
		if in(kids[i].Term, "JJ", "JJS", "RB", "QP") {
			return i
		}
	}
	return last
}

func in(s string, set ...string) bool {
	for _, x := range set {
		if s == x {
			return true
		}
	}
	return false
}

// Rightmost always picks the last child. Useful for head-final grammars and
// for tests.
type Rightmost struct{}

func (Rightmost) HeadChild(t *engine.Tree) int { return len(t.Children) - 1 }
