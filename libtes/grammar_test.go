package libtes_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tess-systems/gotes/gotes"
	"github.com/tess-systems/gotes/libtes"
)

const heptagonalTes = `
tiling heptagonal
shape 0 cycle 1
corners 3 3 3 3 3 3 3
edge 0 : 0 0
edge 1 : 0 0
edge 2 : 0 0
edge 3 : 0 0
edge 4 : 0 0
edge 5 : 0 0
edge 6 : 0 0
`

func TestParseTiling(t *testing.T) {
	req := require.New(t)

	tiling, err := libtes.ParseTiling(heptagonalTes)
	req.NoError(err)
	req.Equal("heptagonal", tiling.Name)
	req.Len(tiling.Shapes, 1)

	sh := tiling.Shapes[0]
	req.Equal(7, sh.Size())
	req.Equal(1, sh.CycleLength)
	req.Equal([]int{3, 3, 3, 3, 3, 3, 3}, sh.VertexValence)
	for _, co := range sh.Connections {
		req.Equal(gotes.Connection{Sid: 0, Eid: 0}, co)
	}
}

func TestParseTilingTwoShapes(t *testing.T) {
	req := require.New(t)

	src := `
tiling squares2c
shape 0 cycle 1
corners 4 4 4 4
edge 0 : 1 0
edge 1 : 1 0
edge 2 : 1 0
edge 3 : 1 0
shape 1 cycle 1
corners 4 4 4 4
edge 0 : 0 0
edge 1 : 0 0
edge 2 : 0 0
edge 3 : 0 0
`
	tiling, err := libtes.ParseTiling(src)
	req.NoError(err)
	req.Len(tiling.Shapes, 2)
	req.Equal(1, tiling.Shapes[0].Connections[2].Sid)
	req.Equal(0, tiling.Shapes[1].Connections[2].Sid)
}

func TestParseTilingRejectsBrokenInvolution(t *testing.T) {
	// edge 0 of shape 0 claims to meet edge 1, which points elsewhere
	src := `
tiling broken
shape 0 cycle 4
corners 4 4 4 4
edge 0 : 0 1
edge 1 : 0 2
edge 2 : 0 3
edge 3 : 0 0
`
	_, err := libtes.ParseTiling(src)
	require.Error(t, err)
}

func TestParseTilingRejectsEdgeCountMismatch(t *testing.T) {
	src := `
tiling broken
shape 0 cycle 1
corners 3 3 3
edge 0 : 0 0
edge 1 : 0 0
`
	_, err := libtes.ParseTiling(src)
	require.Error(t, err)
}

func TestFormatTilingRoundTrip(t *testing.T) {
	req := require.New(t)

	orig, err := libtes.ParseTiling(heptagonalTes)
	req.NoError(err)

	again, err := libtes.ParseTiling(libtes.FormatTiling(orig))
	req.NoError(err)
	req.Equal(orig, again)
}
