package geometry

import "strings"

// Edges is a set of rectangle edges. The bit values match the xdg-shell resize edge encoding.
type Edges uint32

const (
	EdgeNone   Edges = 0
	EdgeTop    Edges = 1
	EdgeBottom Edges = 2
	EdgeLeft   Edges = 4
	EdgeRight  Edges = 8
)

const (
	EdgesHorizontal = EdgeLeft | EdgeRight
	EdgesVertical   = EdgeTop | EdgeBottom
	EdgesAll        = EdgesHorizontal | EdgesVertical
)

func (e Edges) Has(o Edges) bool {
	return e&o != 0
}

// HasOpposing reports whether both edges of an axis are set
func (e Edges) HasOpposing() bool {
	return e&EdgesHorizontal == EdgesHorizontal || e&EdgesVertical == EdgesVertical
}

// Flipped mirrors the edges on the given axes. An axis without any edge set stays untouched.
func (e Edges) Flipped(o Orientations) Edges {
	if o.Has(Horizontal) && e&EdgesHorizontal != 0 {
		e ^= EdgesHorizontal
	}
	if o.Has(Vertical) && e&EdgesVertical != 0 {
		e ^= EdgesVertical
	}
	return e
}

func (e Edges) String() string {
	if e == EdgeNone {
		return "none"
	}
	names := []string{}
	for _, n := range []struct {
		edge Edges
		name string
	}{{EdgeTop, "top"}, {EdgeBottom, "bottom"}, {EdgeLeft, "left"}, {EdgeRight, "right"}} {
		if e.Has(n.edge) {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, "|")
}

type Orientations uint32

const (
	Horizontal Orientations = 1 << iota
	Vertical
)

func (o Orientations) Has(other Orientations) bool {
	return o&other != 0
}
