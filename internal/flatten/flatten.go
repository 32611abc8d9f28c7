// Package flatten converts an engine's nested parse tree into the flat,
// post-order node list of the shared tree format.
package flatten

import (
	"github.com/dgallion1/syntaxd/internal/engine"
	"github.com/dgallion1/syntaxd/internal/forest"
	"github.com/dgallion1/syntaxd/internal/headfind"
)

// Flattener walks native trees. When ShiftSpans is set, base is added to
// every span so that spans of a standalone sentence land in the coordinate
// space of its enclosing document.
type Flattener struct {
	Heads      headfind.HeadFinder
	ShiftSpans bool
}

// Flatten returns the nodes of native in post-order. The root is the last
// node. A nil tree yields no nodes.
func (f *Flattener) Flatten(native *engine.Tree, base int) []forest.Node {
	if native == nil {
		return nil
	}
	nodes := make([]forest.Node, 0, native.Size())
	return f.add(nodes, native, base)
}

// Tree flattens native into a forest.Tree with Top set to the root.
func (f *Flattener) Tree(native *engine.Tree, base int) forest.Tree {
	var t forest.Tree
	t.SetNodes(f.Flatten(native, base))
	return t
}

func (f *Flattener) add(nodes []forest.Node, t *engine.Tree, base int) []forest.Node {
	head := f.Heads.HeadChild(t)

	var children map[int]string
	for i, c := range t.Children {
		nodes = f.add(nodes, c, base)
		if children == nil {
			children = make(map[int]string, len(t.Children))
		}
		edge := ""
		if i == head {
			edge = forest.HeadLabel
		}
		children[len(nodes)-1] = edge
	}

	span := forest.Span{Start: t.Start, End: t.End}
	if f.ShiftSpans {
		span = span.Shift(base)
	}
	return append(nodes, forest.Node{
		Label:    t.Label(),
		Span:     &span,
		Children: children,
	})
}
