package forest

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// HeadLabel marks the edge from a constituent to its head child.
const HeadLabel = "HEAD"

// Span is a character range over some reference text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of characters covered.
func (s Span) Len() int { return s.End - s.Start }

// Contains reports whether o lies within s, both endpoints inclusive.
func (s Span) Contains(o Span) bool {
	return o.Start >= s.Start && o.Start <= s.End && o.End >= s.Start && o.End <= s.End
}

// Shift returns s moved by base characters.
func (s Span) Shift(base int) Span {
	return Span{Start: s.Start + base, End: s.End + base}
}

// Node is one constituent of a flattened parse tree.
type Node struct {
	Label string `json:"label"`
	// Span is nil when the producer did not set one.
	Span *Span `json:"span,omitempty"`
	// Children maps node-list index to edge label ("" or HeadLabel).
	// A leaf has nil Children, never an empty map.
	Children map[int]string `json:"children,omitempty"`
}

// IsLeaf reports whether the node has no children.
func (n Node) IsLeaf() bool { return n.Children == nil }

// HeadChild returns the index of the HEAD child, if any.
func (n Node) HeadChild() (int, bool) {
	for idx, label := range n.Children {
		if label == HeadLabel {
			return idx, true
		}
	}
	return 0, false
}

// Tree is the parse of one sentence. Nodes are in post-order, so every child
// index is smaller than its parent's and the root is the last node.
type Tree struct {
	Nodes  []Node
	Top    int
	HasTop bool
	Score  float64
	Source string
}

type treeWire struct {
	Nodes  []Node  `json:"nodes"`
	Top    *int    `json:"top,omitempty"`
	Score  float64 `json:"score"`
	Source string  `json:"source"`
}

// MarshalJSON omits top for an empty tree.
func (t Tree) MarshalJSON() ([]byte, error) {
	w := treeWire{Nodes: t.Nodes, Score: t.Score, Source: t.Source}
	if w.Nodes == nil {
		w.Nodes = []Node{}
	}
	if t.HasTop {
		top := t.Top
		w.Top = &top
	}
	return json.Marshal(w)
}

// UnmarshalJSON sets HasTop from the presence of top.
func (t *Tree) UnmarshalJSON(data []byte) error {
	var w treeWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*t = Tree{Nodes: w.Nodes, Score: w.Score, Source: w.Source}
	if w.Top != nil {
		t.Top = *w.Top
		t.HasTop = true
	}
	return nil
}

// SetNodes installs a flattened node list and points Top at the root.
func (t *Tree) SetNodes(nodes []Node) {
	t.Nodes = nodes
	t.HasTop = len(nodes) > 0
	t.Top = 0
	if t.HasTop {
		t.Top = len(nodes) - 1
	}
}

// Clone returns a deep copy of t.
func (t Tree) Clone() Tree {
	if t.Nodes == nil {
		return t
	}
	nodes := make([]Node, len(t.Nodes))
	for i, n := range t.Nodes {
		if n.Span != nil {
			sp := *n.Span
			n.Span = &sp
		}
		if n.Children != nil {
			kids := make(map[int]string, len(n.Children))
			for k, v := range n.Children {
				kids[k] = v
			}
			n.Children = kids
		}
		nodes[i] = n
	}
	t.Nodes = nodes
	return t
}

// Root returns the top node.
func (t *Tree) Root() (Node, bool) {
	if !t.HasTop || t.Top >= len(t.Nodes) {
		return Node{}, false
	}
	return t.Nodes[t.Top], true
}

// Dump writes a human-readable listing of every node.
func (t *Tree) Dump(w io.Writer) {
	fmt.Fprintf(w, "tree source=%q score=%.4f top=%d nodes=%d\n", t.Source, t.Score, t.Top, len(t.Nodes))
	for i, n := range t.Nodes {
		fmt.Fprintf(w, "  [%d] %s", i, n.Label)
		if n.Span != nil {
			fmt.Fprintf(w, " (%d,%d)", n.Span.Start, n.Span.End)
		}
		if n.Children != nil {
			idx := make([]int, 0, len(n.Children))
			for c := range n.Children {
				idx = append(idx, c)
			}
			sort.Ints(idx)
			fmt.Fprint(w, " ->")
			for _, c := range idx {
				if n.Children[c] == HeadLabel {
					fmt.Fprintf(w, " %d*", c)
				} else {
					fmt.Fprintf(w, " %d", c)
				}
			}
		}
		fmt.Fprintln(w)
	}
}

// SentenceFailure describes a sentence replaced by an empty tree.
type SentenceFailure struct {
	Sentence int    `json:"sentence"`
	Span     Span   `json:"span"`
	Kind     string `json:"kind"`
	Reason   string `json:"reason"`
}

// Forest is the parse of a whole document, one tree per sentence in order.
type Forest struct {
	Trees    []Tree            `json:"trees"`
	RawText  string            `json:"rawText"`
	Source   string            `json:"source"`
	Failures []SentenceFailure `json:"failures,omitempty"`
}

// Clone returns a deep copy of f that shares no slices or maps with it.
func (f *Forest) Clone() *Forest {
	out := *f
	if f.Trees != nil {
		out.Trees = make([]Tree, len(f.Trees))
		for i := range f.Trees {
			out.Trees[i] = f.Trees[i].Clone()
		}
	}
	if f.Failures != nil {
		out.Failures = append([]SentenceFailure(nil), f.Failures...)
	}
	return &out
}

// Labeling is a named boundary annotation over a record's text.
type Labeling struct {
	Source string `json:"source,omitempty"`
	Labels []Span `json:"labels"`
}

// Record is a document plus the boundary views produced upstream.
type Record struct {
	ID         string              `json:"id,omitempty"`
	RawText    string              `json:"rawText"`
	LabelViews map[string]Labeling `json:"labelViews,omitempty"`
}

// View returns the named view, or an empty labeling when it is missing.
func (r Record) View(name string) Labeling {
	if v, ok := r.LabelViews[name]; ok {
		return v
	}
	return Labeling{}
}
