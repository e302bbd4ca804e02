package libtes

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/pkg/errors"

	"github.com/tess-systems/gotes/gotes"
)

// The .tes description DSL:
//
//	tiling heptagonal
//	shape 0 cycle 1
//	corners 3 3 3 3 3 3 3
//	edge 0 : 0 0
//	edge 1 : 0 0
//	...
//
// Every edge of every shape names the shape and edge across it; an
// optional trailing `mirror` marks an orientation-reversing gluing.

type tesFile struct {
	Name   string      `"tiling" @Ident`
	Shapes []*tesShape `@@+`
}

type tesShape struct {
	ID      int        `"shape" @Int`
	Cycle   int        `"cycle" @Int`
	Corners []int      `"corners" @Int+`
	Edges   []*tesEdge `@@+`
}

type tesEdge struct {
	Edge   int  `"edge" @Int ":"`
	Sid    int  `@Int`
	Eid    int  `@Int`
	Mirror bool `@"mirror"?`
}

var tesParser = participle.MustBuild[tesFile]()

// ParseTiling parses a tessellation description in the .tes DSL and
// validates it.
func ParseTiling(src string) (*gotes.Tiling, error) {
	f, err := tesParser.ParseString("", src)
	if err != nil {
		return nil, errors.Wrap(err, "parsing tiling")
	}

	t := &gotes.Tiling{Name: f.Name}
	for want, sh := range f.Shapes {
		if sh.ID != want {
			return nil, errors.Wrapf(gotes.ErrBadShapeIndex, "shape %d declared out of order", sh.ID)
		}
		n := len(sh.Corners)
		out := gotes.Shape{
			ID:            sh.ID,
			CycleLength:   sh.Cycle,
			VertexValence: sh.Corners,
			Connections:   make([]gotes.Connection, n),
		}
		if len(sh.Edges) != n {
			return nil, errors.Wrapf(gotes.ErrBadTiling, "shape %d: %d corners but %d edges", sh.ID, n, len(sh.Edges))
		}
		for wantE, ed := range sh.Edges {
			if ed.Edge != wantE {
				return nil, errors.Wrapf(gotes.ErrBadTiling, "shape %d: edge %d declared out of order", sh.ID, ed.Edge)
			}
			out.Connections[ed.Edge] = gotes.Connection{Sid: ed.Sid, Eid: ed.Eid, Mirror: ed.Mirror}
		}
		t.Shapes = append(t.Shapes, out)
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// FormatTiling renders a tiling back into the DSL. The name must be an
// identifier for the result to parse again.
func FormatTiling(t *gotes.Tiling) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "tiling %s\n", t.Name)
	for i := range t.Shapes {
		sh := &t.Shapes[i]
		fmt.Fprintf(&sb, "shape %d cycle %d\ncorners", sh.ID, sh.CycleLength)
		for _, v := range sh.VertexValence {
			fmt.Fprintf(&sb, " %d", v)
		}
		sb.WriteByte('\n')
		for e, co := range sh.Connections {
			fmt.Fprintf(&sb, "edge %d : %d %d", e, co.Sid, co.Eid)
			if co.Mirror {
				sb.WriteString(" mirror")
			}
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
