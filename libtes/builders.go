package libtes

import (
	"fmt"

	"github.com/tess-systems/gotes/gotes"
)

// Regular builds the tiling {p,q}: one fully rotationally symmetric
// p-gon, q meeting at every vertex.
func Regular(p, q int) *gotes.Tiling {
	conns := make([]gotes.Connection, p)
	vv := make([]int, p)
	for i := range conns {
		conns[i] = gotes.Connection{Sid: 0, Eid: 0}
		vv[i] = q
	}
	return &gotes.Tiling{
		Name: fmt.Sprintf("{%d,%d}", p, q),
		Shapes: []gotes.Shape{{
			ID:            0,
			Connections:   conns,
			CycleLength:   1,
			VertexValence: vv,
		}},
	}
}

// TwoColor builds the {p,q} tiling with faces alternately coloured by
// two distinct shape ids; q must be even for the alternation to close
// around a vertex.
func TwoColor(p, q int) *gotes.Tiling {
	if q%2 != 0 {
		panic("TwoColor: odd vertex valence cannot alternate")
	}
	mk := func(id, other int) gotes.Shape {
		conns := make([]gotes.Connection, p)
		vv := make([]int, p)
		for i := range conns {
			conns[i] = gotes.Connection{Sid: other, Eid: 0}
			vv[i] = q
		}
		return gotes.Shape{ID: id, Connections: conns, CycleLength: 1, VertexValence: vv}
	}
	return &gotes.Tiling{
		Name:   fmt.Sprintf("{%d,%d}-2c", p, q),
		Shapes: []gotes.Shape{mk(0, 1), mk(1, 0)},
	}
}

// SquareGrid builds the Euclidean square grid with translation gluing
// (edge e meets the opposite edge of the neighbour). cycle may declare
// the full symmetry (1), the half-turn symmetry (2), or none (4); all
// three describe the same tiling.
func SquareGrid(cycle int) *gotes.Tiling {
	if cycle != 1 && cycle != 2 && cycle != 4 {
		panic("SquareGrid: cycle must be 1, 2 or 4")
	}
	conns := make([]gotes.Connection, 4)
	vv := make([]int, 4)
	for i := range conns {
		conns[i] = gotes.Connection{Sid: 0, Eid: (i + 2) % 4}
		vv[i] = 4
	}
	return &gotes.Tiling{
		Name: fmt.Sprintf("square-c%d", cycle),
		Shapes: []gotes.Shape{{
			ID:            0,
			Connections:   conns,
			CycleLength:   cycle,
			VertexValence: vv,
		}},
	}
}
