// Package libtes implements the strict-tree rule inference engine for
// planar tessellations: given a Tiling it lazily materialises a
// unified graph of cells with BFS distances, reads each cell's
// neighbourhood into a canonical code, and iterates until the codes
// induce a consistent finite automaton of tree states.
package libtes

import (
	"fmt"

	"github.com/tess-systems/gotes/gotes"
)

// unknown is the shared sentinel for distances, codes and directions
// that have not been computed yet. It is large and positive so that an
// unknown distance always relaxes downward.
const unknown = 31999

// cell is one polygonal face of the tessellation under construction.
// Cells form a list threaded through next and are owned by the engine.
type cell struct {
	next *cell
	// shape id in the tiling
	id int
	// valence
	deg int
	// distance from the nearest origin
	dist int
	// cached state id
	code int
	// direction to the parent in the tree
	parentDir int
	// direction to the previous parent, for change detection
	oldParentDir int
	// direction to anyone strictly nearer
	anyNearer int
	// dist may be assumed final; lowering it afterwards is a solid error
	isSolid       bool
	distanceFixed bool
	// union-find link: when several cells turn out to name one face
	// they are unified, and unifiedTo carries the canonical walker
	unifiedTo walker
	// adjacency: neighbour per edge, and the edge we arrive at there
	move   []*cell
	spinTo []int
}

// walker is an oriented incidence of a cell and one of its edges.
type walker struct {
	at   *cell
	spin int
}

func (w walker) String() string {
	return fmt.Sprintf("P%p/%d", w.at, w.spin)
}

// plus rotates the walker's edge by k modulo the valence.
func (w walker) plus(k int) walker {
	return walker{w.at, gmod(w.spin+k, w.at.deg)}
}

// peek returns the neighbour across the walker's edge, or nil.
func (w walker) peek() *cell {
	return w.at.move[w.spin]
}

// toSpin returns the rotation taking direction d to the walker's spin.
func (w walker) toSpin(d int) int {
	return gmod(w.spin-d, w.at.deg)
}

func gmod(i, m int) int {
	i %= m
	if i < 0 {
		i += m
	}
	return i
}

// ufind canonicalises a walker through the union-find structure with
// path compression, applying the recorded rotations.
func ufind(p *walker) {
	if p.at.unifiedTo.at == p.at {
		return
	}
	p1 := p.at.unifiedTo
	ufind(&p1)
	p.at.unifiedTo = p1
	*p = p1.plus(p.spin)
}

// canon returns the canonical representative of c.
func (e *Engine) canon(c *cell) *cell {
	cw := walker{c, 0}
	ufind(&cw)
	return cw.at
}

// connect installs the mutual edge pointers of a single connection.
func (c *cell) connect(i int, c2 *cell, j int) {
	c.move[i] = c2
	c.spinTo[i] = j
	c2.move[j] = c
	c2.spinTo[j] = i
}

func (e *Engine) genCell(id int) *cell {
	deg := e.tiling.Shapes[id].Size()
	c := &cell{
		next:         e.firstCell,
		id:           id,
		deg:          deg,
		dist:         unknown,
		code:         unknown,
		parentDir:    unknown,
		oldParentDir: unknown,
		anyNearer:    -1,
		move:         make([]*cell, deg),
		spinTo:       make([]int, deg),
	}
	c.unifiedTo = walker{c, 0}
	e.firstCell = c
	e.cellCount++
	return c
}

// cmove returns the neighbour of c across edge d, generating it when it
// does not exist yet.
func (e *Engine) cmove(c *cell, d int) *cell {
	e.moveCount++
	return e.tmove(c, d)
}

// wstep crosses the walker's edge, yielding the neighbour with the
// mirror edge; the neighbour is generated if missing.
func (e *Engine) wstep(w walker) walker {
	e.cmove(w.at, w.spin)
	return walker{w.at.move[w.spin], w.at.spinTo[w.spin]}
}

// addstep canonicalises before stepping; after unification a plain
// wstep could otherwise walk a stale pointer.
func (e *Engine) addstep(w walker) walker {
	e.cmove(w.at, w.spin)
	ufind(&w)
	return e.wstep(w)
}

func (e *Engine) tmove(c *cell, d int) *cell {
	if d < 0 || d >= c.deg {
		failf("tmove: bad direction %d", d)
	}
	if c.move[d] != nil {
		return c.move[d]
	}
	if e.cfg.Flags&gotes.Numerical != 0 {
		return e.tmoveNumerical(c, d)
	}
	cd := walker{c, d}
	ufind(&cd)
	co := e.tiling.Shapes[cd.at.id].Connections[cd.spin]
	c1 := e.genCell(co.Sid)
	e.connectAndCheck(cd, walker{c1, co.Eid})
	return c1
}

func (e *Engine) tmoveNumerical(c *cell, d int) *cell {
	oc := e.extOf[c]
	on, nd, sid := e.cfg.Resolver.Neighbor(oc, d)
	c1 := e.cellOf[on]
	if c1 == nil {
		c1 = e.genCell(sid)
		e.cellOf[on] = c1
		e.extOf[c1] = on
		if e.knownDist {
			if dd, ok := e.cfg.Resolver.KnownDistance(on); ok {
				c1.dist = dd
			}
		}
	}
	c.connect(d, c1, nd)
	if !e.knownDist {
		e.fixDistances(c)
	}
	e.ensureShorter(walker{c1, 0})
	if e.cfg.Flags&gotes.NumericalFix != 0 {
		e.numericalFix(walker{c, d})
		e.numericalFix(e.wstep(walker{c, d}))
	}
	return c1
}

// numericalFix walks around the vertex to the right of pw and, when the
// external map already filled all but one connection of the ring,
// installs the missing one.
func (e *Engine) numericalFix(pw walker) {
	valence := e.tiling.Shapes[pw.at.id].VertexValence[pw.spin]

	steps := 0
	pwf := pw
	pwb := pw
	for {
		if pwb.peek() == nil {
			break
		}
		pwb = e.wstep(pwb).plus(-1)
		steps++
		if pwb == pwf {
			if steps == valence {
				return
			}
			failf("numerical vertex valence too small")
		}
		if steps == valence {
			failf("numerical ring does not close")
		}
	}

	for {
		pwf = pwf.plus(1)
		if pwf.peek() == nil {
			break
		}
		pwf = e.wstep(pwf)
		steps++
		if pwb == pwf {
			if steps == valence {
				return
			}
			failf("numerical vertex valence too small")
		}
		if steps == valence {
			failf("numerical ring does not close")
		}
	}

	if steps == valence-1 {
		pwb.at.connect(pwb.spin, pwf.at, pwf.spin)
		e.fixDistances(pwb.at)
	}
}

// checkLoops checks whether the vertex to the right of pw's edge has
// closed up: after exactly vertexValence steps around it we must return
// to pw. If one connection is missing it is installed; if two distinct
// walkers collide after a full ring, they name the same face and are
// queued for unification.
func (e *Engine) checkLoops(pw walker) {
	ufind(&pw)
	valence := e.tiling.Shapes[pw.at.id].VertexValence[pw.spin]

	steps := 0
	pwf := pw
	pwb := pw
	for {
		if pwb.peek() == nil {
			break
		}
		pwb = e.wstep(pwb).plus(-1)
		steps++
		if pwb == pwf {
			if steps == valence {
				return
			}
			failf("vertex valence too small")
		}
		if steps == valence {
			e.pushUnify(pwf, pwb)
			return
		}
	}

	for {
		pwf = pwf.plus(1)
		if pwf.peek() == nil {
			break
		}
		pwf = e.wstep(pwf)
		steps++
		if pwb == pwf {
			if steps == valence {
				return
			}
			failf("vertex valence too small")
		}
		if steps == valence {
			e.pushUnify(pwf, pwb)
			return
		}
	}

	if steps == valence-1 {
		e.connectAndCheck(pwb, pwf)
		e.fixDistances(pwb.at)
	}
}

// connectAndCheck connects two walkers and queues a vertex-closure
// check at each side, then drains the fix queue.
func (e *Engine) connectAndCheck(p1, p2 walker) {
	ufind(&p1)
	ufind(&p2)
	p1.at.connect(p1.spin, p2.at, p2.spin)
	e.fixQueue = append(e.fixQueue,
		func() { e.checkLoops(p1) },
		func() { e.checkLoops(p2) })
	e.processFixQueue()
}

func (e *Engine) pushUnify(a, b walker) {
	if a.at.id != b.at.id {
		failf("queued bad unify")
	}
	e.fixQueue = append(e.fixQueue, func() { e.unify(a, b) })
}

// processFixQueue serialises connect/unify/closure follow-ups; the
// inFixing guard makes reentrancy impossible, so at any observable
// point the unified graph is consistent.
func (e *Engine) processFixQueue() {
	if e.inFixing {
		return
	}
	e.inFixing = true
	for len(e.fixQueue) > 0 {
		f := e.fixQueue[0]
		e.fixQueue = e.fixQueue[1:]
		f()
	}
	e.inFixing = false
}

// unify records that pw1 and pw2 name the same face, reconciling
// distances, merging adjacency, and linking pw2's cell to pw1's.
func (e *Engine) unify(pw1, pw2 walker) {
	ufind(&pw1)
	ufind(&pw2)
	if pw1 == pw2 {
		return
	}
	if pw1.at.unifiedTo.at != pw1.at || pw2.at.unifiedTo.at != pw2.at {
		failf("unify: not unified to itself")
	}
	if pw1.at == pw2.at {
		if pw1.spin != pw2.spin {
			failf("unify with self and wrong rotation")
		}
		return
	}
	if pw1.at.id != pw2.at.id {
		failf("unifying two cells of different shapes")
	}
	sh := &e.tiling.Shapes[pw1.at.id]
	if (pw1.spin-pw2.spin)%sh.CycleLength != 0 {
		failf("unification rotation disagrees with cycle length")
	}

	e.unifyDistances(pw1.at, pw2.at, pw2.spin-pw1.spin)

	for i := 0; i < sh.Size(); i++ {
		if pw2.peek() == nil {
			// no need to reconnect
		} else if pw1.peek() == nil {
			e.connectAndCheck(pw1, e.wstep(pw2))
		} else {
			e.pushUnify(e.wstep(pw1), e.wstep(pw2))
			ss := e.wstep(pw1)
			e.connectAndCheck(pw1, e.wstep(pw2))
			e.connectAndCheck(pw1, ss)
		}
		pw1 = pw1.plus(1)
		pw2 = pw2.plus(1)
	}
	pw2.at.unifiedTo = pw1.plus(-pw2.spin)
	e.unified++
	e.fixDistances(pw1.at)
}
