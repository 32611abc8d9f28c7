package pcfg

import (
	"bufio"
	"embed"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

//go:embed grammar/*.pcfg
var grammarFS embed.FS

// NumberWord is the lexicon key consulted for numeric tokens that have no
// entry of their own.
const NumberWord = "<num>"

type binaryRule struct {
	lhs  int
	logp float64
}

type unaryRule struct {
	lhs  int
	logp float64
}

type lexEntry struct {
	tag  int
	logp float64
}

// Grammar is a probabilistic context-free grammar with binary, unary and
// lexical rules. Rules with more than two children are binarized on load
// into intermediate symbols whose names start with "@".
type Grammar struct {
	start   int
	symbols []string
	ids     map[string]int

	binary  map[[2]int][]binaryRule
	unary   map[int][]unaryRule
	lexicon map[string][]lexEntry
	unknown []lexEntry
}

func newGrammar() *Grammar {
	return &Grammar{
		start:   -1,
		ids:     make(map[string]int),
		binary:  make(map[[2]int][]binaryRule),
		unary:   make(map[int][]unaryRule),
		lexicon: make(map[string][]lexEntry),
	}
}

// Start returns the name of the root symbol.
func (g *Grammar) Start() string { return g.symbols[g.start] }

// NumSymbols returns the number of symbols, intermediates included.
func (g *Grammar) NumSymbols() int { return len(g.symbols) }

func (g *Grammar) symbol(name string) int {
	if id, ok := g.ids[name]; ok {
		return id
	}
	id := len(g.symbols)
	g.symbols = append(g.symbols, name)
	g.ids[name] = id
	return id
}

func isIntermediate(name string) bool { return strings.HasPrefix(name, "@") }

// Default returns the built-in English grammar.
func Default() (*Grammar, error) {
	f, err := grammarFS.Open("grammar/english.pcfg")
	if err != nil {
		return nil, fmt.Errorf("open default grammar: %w", err)
	}
	defer f.Close()
	return ParseGrammar(f)
}

// LoadFile reads a grammar from path.
func LoadFile(path string) (*Grammar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open grammar: %w", err)
	}
	defer f.Close()
	return ParseGrammar(f)
}

// ParseGrammar reads the line-oriented grammar format:
//
//	%start S1
//	%unknown NN 0.4
//	S -> NP VP 0.9
//	NN -> "dog" 0.3
//
// Terminals are quoted. The probability is optional and defaults to 1.
func ParseGrammar(r io.Reader) (*Grammar, error) {
	g := newGrammar()
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var err error
		if strings.HasPrefix(line, "%") {
			err = g.directive(line)
		} else {
			err = g.rule(line)
		}
		if err != nil {
			return nil, fmt.Errorf("grammar line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read grammar: %w", err)
	}
	if g.start < 0 {
		return nil, fmt.Errorf("grammar has no %%start directive")
	}
	if len(g.lexicon) == 0 && len(g.unknown) == 0 {
		return nil, fmt.Errorf("grammar has no lexical rules")
	}
	return g, nil
}

func (g *Grammar) directive(line string) error {
	fields := strings.Fields(line)
	switch fields[0] {
	case "%start":
		if len(fields) != 2 {
			return fmt.Errorf("usage: %%start SYMBOL")
		}
		g.start = g.symbol(fields[1])
	case "%unknown":
		if len(fields) != 3 {
			return fmt.Errorf("usage: %%unknown TAG PROB")
		}
		logp, err := parseProb(fields[2])
		if err != nil {
			return err
		}
		g.unknown = append(g.unknown, lexEntry{tag: g.symbol(fields[1]), logp: logp})
	default:
		return fmt.Errorf("unknown directive %s", fields[0])
	}
	return nil
}

func (g *Grammar) rule(line string) error {
	lhsText, rhsText, ok := strings.Cut(line, "->")
	if !ok {
		return fmt.Errorf("missing ->")
	}
	lhs := strings.TrimSpace(lhsText)
	if lhs == "" || strings.ContainsAny(lhs, " \t\"") {
		return fmt.Errorf("bad left-hand side %q", lhs)
	}
	if isIntermediate(lhs) {
		return fmt.Errorf("symbol %q uses the reserved @ prefix", lhs)
	}
	rhs := strings.Fields(rhsText)
	logp := 0.0
	if len(rhs) > 1 {
		if p, err := strconv.ParseFloat(rhs[len(rhs)-1], 64); err == nil {
			if p <= 0 || p > 1 {
				return fmt.Errorf("probability %v out of range (0,1]", p)
			}
			logp = math.Log(p)
			rhs = rhs[:len(rhs)-1]
		}
	}
	if len(rhs) == 0 {
		return fmt.Errorf("empty right-hand side")
	}

	if len(rhs) == 1 && isQuoted(rhs[0]) {
		word := strings.Trim(rhs[0], "\"")
		g.lexicon[word] = append(g.lexicon[word], lexEntry{tag: g.symbol(lhs), logp: logp})
		return nil
	}
	for _, s := range rhs {
		if isQuoted(s) {
			return fmt.Errorf("terminal %s mixed with nonterminals", s)
		}
	}

	a := g.symbol(lhs)
	switch len(rhs) {
	case 1:
		b := g.symbol(rhs[0])
		g.unary[b] = append(g.unary[b], unaryRule{lhs: a, logp: logp})
	default:
		g.addBinarized(a, lhs, rhs, logp)
	}
	return nil
}

// addBinarized left-factors A -> B C D ... into A -> B @A|C_D and
// @A|C_D -> C D, sharing intermediates between rules with equal suffixes.
func (g *Grammar) addBinarized(a int, lhs string, rhs []string, logp float64) {
	for len(rhs) > 2 {
		rest := "@" + lhs + "|" + strings.Join(rhs[1:], "_")
		inter := g.symbol(rest)
		key := [2]int{g.symbol(rhs[0]), inter}
		g.binary[key] = appendBinary(g.binary[key], binaryRule{lhs: a, logp: logp})
		a, logp = inter, 0
		rhs = rhs[1:]
	}
	key := [2]int{g.symbol(rhs[0]), g.symbol(rhs[1])}
	g.binary[key] = appendBinary(g.binary[key], binaryRule{lhs: a, logp: logp})
}

func appendBinary(rules []binaryRule, r binaryRule) []binaryRule {
	for _, existing := range rules {
		if existing.lhs == r.lhs && existing.logp == r.logp {
			return rules
		}
	}
	return append(rules, r)
}

func isQuoted(s string) bool {
	return len(s) >= 2 && strings.HasPrefix(s, "\"") && strings.HasSuffix(s, "\"")
}

func parseProb(s string) (float64, error) {
	p, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("bad probability %q: %w", s, err)
	}
	if p <= 0 || p > 1 {
		return 0, fmt.Errorf("probability %v out of range (0,1]", p)
	}
	return math.Log(p), nil
}

// tags returns the lexical analyses of word: exact entry, lower-cased entry,
// the number class, then the unknown-word distribution.
func (g *Grammar) tags(word string) []lexEntry {
	if e, ok := g.lexicon[word]; ok {
		return e
	}
	if e, ok := g.lexicon[strings.ToLower(word)]; ok {
		return e
	}
	if isNumber(word) {
		if e, ok := g.lexicon[NumberWord]; ok {
			return e
		}
	}
	return g.unknown
}

func isNumber(word string) bool {
	digits := 0
	for _, r := range word {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.' || r == ',':
		default:
			return false
		}
	}
	return digits > 0
}
