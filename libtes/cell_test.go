package libtes

import (
	"testing"
	"time"

	"github.com/tess-systems/gotes/gotes"
)

func seededEngine(t *testing.T, tiling *gotes.Tiling) *Engine {
	t.Helper()
	cfg := gotes.DefaultConfig()
	cfg.Timeout = 30 * time.Second
	e, err := New(tiling, cfg)
	if err != nil {
		t.Fatal(err)
	}
	e.startTime = time.Now()
	e.seed()
	return e
}

func TestWalkerArithmetic(t *testing.T) {
	e := seededEngine(t, Regular(7, 3))
	w := e.origins[0]

	if w.plus(3).spin != 3 || w.plus(-1).spin != 6 || w.plus(9).spin != 2 {
		t.Fatalf("walker rotation broken")
	}
	if w.plus(3).toSpin(1) != 2 {
		t.Fatalf("toSpin broken")
	}

	across := e.wstep(w.plus(2))
	back := e.wstep(across)
	if back.at != w.at || back.spin != 2 {
		t.Fatalf("wstep is not an involution: %v", back)
	}
}

func TestVertexClosure(t *testing.T) {
	e := seededEngine(t, Regular(7, 3))
	w := e.origins[0]

	// three faces meet at every vertex of {7,3}; stepping around the
	// corner must return to the start
	ring := w
	for s := 0; s < 3; s++ {
		ring = e.wstep(ring).plus(-1)
		ufind(&ring)
	}
	ufind(&w)
	if ring != w {
		t.Fatalf("ring around the corner did not close: %v vs %v", ring, w)
	}
}

func TestVertexClosureSquare(t *testing.T) {
	e := seededEngine(t, SquareGrid(2))
	w := e.origins[0]

	ring := w
	for s := 0; s < 4; s++ {
		ring = e.wstep(ring).plus(-1)
		ufind(&ring)
	}
	ufind(&w)
	if ring != w {
		t.Fatalf("square ring did not close: %v vs %v", ring, w)
	}
}

func TestUnificationHappens(t *testing.T) {
	e, _ := generate(t, Regular(7, 3), nil)
	if e.Stats().Unified == 0 {
		t.Fatalf("no unifications on {7,3}; lazy naming should collide")
	}
	if e.Stats().CellCount == 0 || e.Stats().Moves == 0 {
		t.Fatalf("suspicious stats: %+v", e.Stats())
	}
}

func TestDistancesAroundOrigin(t *testing.T) {
	e := seededEngine(t, Regular(7, 3))
	o := e.origins[0].at

	for i := 0; i < o.deg; i++ {
		n := e.cmove(o, i)
		e.beSolid(n)
		n = e.canon(n)
		if n.dist != 1 {
			t.Fatalf("neighbour %d of the origin has distance %d", i, n.dist)
		}
	}
}
