package libtes

import (
	"github.com/plan-systems/klog"

	"github.com/tess-systems/gotes/gotes"
)

// fixDistances relaxes distances outward from c using
// dist(x) = 1 + min over neighbours, until the reachable frontier is
// settled. Lowering the distance of a solid cell records the solid
// error and derives a shortcut before the cell's derived data is
// dropped.
func (e *Engine) fixDistances(c *cell) {
	if e.cfg.Flags&gotes.BFSDistances != 0 {
		e.fixDistancesBFS(c)
		return
	}
	c.distanceFixed = true
	if e.knownDist {
		return
	}
	q := []*cell{c}

	for qi := 0; qi < len(q); qi++ {
		c := q[qi]
	restart:
		for i := 0; i < c.deg; i++ {
			if c.move[i] == nil {
				continue
			}
			c = e.canon(c)

			ci1 := walker{e.cmove(c, i), c.spinTo[i]}
			ci := walker{c, i}

			if e.lowerAcross(ci, ci1) {
				goto restart
			}
			if e.lowerAcross(ci1, ci) {
				q = append(q, ci1.at)
			}
		}
	}
}

// lowerAcross lowers tgtw's distance when srcw offers a shorter route.
func (e *Engine) lowerAcross(tgtw, srcw walker) bool {
	tgt := tgtw.at
	src := srcw.at
	newD := src.dist + 1
	if tgt.dist > newD {
		if tgt.isSolid {
			e.findNewShortcuts(tgt, newD, tgt, tgtw.spin, 0)
		}
		ufind(&tgtw)
		tgt = tgtw.at
		tgt.dist = newD
		e.clearSideCache()
		tgt.anyNearer = tgtw.spin
		e.removeParentDir(tgt)
		return true
	}
	return false
}

// fixDistancesBFS drains the global queue until c has a distance; a
// cell's distance is the iteration number on pop.
func (e *Engine) fixDistancesBFS(c *cell) {
	for {
		if e.inFixing {
			return
		}
		c = e.canon(c)
		if c.dist != unknown {
			return
		}
		if e.cellCount >= e.cfg.MaxCellCount {
			surrender("max_tcellcount exceeded")
		}
		if len(e.bfsQueue) == 0 {
			failf("empty bfs queue")
		}
		c1 := e.canon(e.bfsQueue[0])
		e.bfsQueue = e.bfsQueue[1:]
		for i := 0; i < c1.deg; i++ {
			c2 := e.cmove(c1, i)
			if c2.dist == unknown {
				c2.dist = c1.dist + 1
				e.bfsQueue = append(e.bfsQueue, c2)
			}
		}
	}
}

func (e *Engine) calcDistances(c *cell) {
	if c.dist != unknown {
		return
	}
	e.fixDistances(c)
}

// unifyDistances reconciles the distances of two cells about to be
// unified; a solid cell forced lower counts as a solid error and feeds
// the shortcut database.
func (e *Engine) unifyDistances(c1, c2 *cell, delta int) {
	d1 := c1.dist
	d2 := c2.dist
	d := min(d1, d2)
	if c1.isSolid && d != d1 {
		e.solidErrors++
		e.findNewShortcuts(c1, d, c2, c2.anyNearer-delta, +delta)
		e.removeParentDir(c1)
	}
	if d != d1 {
		e.fixDistances(c1)
	}
	c1.dist = d
	if c2.isSolid && d != d2 {
		e.solidErrors++
		e.findNewShortcuts(c2, d, c1, c1.anyNearer+delta, -delta)
		e.removeParentDir(c2)
	}
	if d != d2 {
		e.fixDistances(c2)
	}
	c2.dist = d
	fixed := c1.distanceFixed || c2.distanceFixed
	c1.distanceFixed, c2.distanceFixed = fixed, fixed
	solid := c1.isSolid || c2.isSolid
	c1.isSolid, c2.isSolid = solid, solid
}

// handleDistanceErrors retries when any solid errors were recorded
// since the last check.
func (e *Engine) handleDistanceErrors() {
	b := e.solidErrors
	e.solidErrors = 0
	if b != 0 {
		e.clearSideCache()
		if e.cfg.Flags&gotes.AlwaysClean != 0 {
			e.cleanData()
		}
		retry("solid error")
	}
}

// beSolid fixes and freezes c's distance, then solidifies the nearer
// chain so the certificate cannot be invalidated silently.
func (e *Engine) beSolid(c *cell) {
	if c.isSolid {
		return
	}
	if e.cellCount >= e.cfg.MaxCellCount {
		surrender("max_tcellcount exceeded")
	}
	c = e.canon(c)
	e.calcDistances(c)
	c = e.canon(c)
	e.lookForShortcutsAll(c)
	c = e.canon(c)
	if c.dist == unknown {
		klog.V(3).Infof("set solid but no dist %v", c)
		failf("set solid but no dist")
	}
	c.isSolid = true
	if c.dist > 0 && e.cfg.Flags&gotes.NearSolid == 0 && c.anyNearer >= 0 && c.anyNearer < c.deg {
		if c1 := c.move[c.anyNearer]; c1 != nil {
			e.beSolid(c1)
		}
	}
}

// removeParentDir drops the derived parent data of c and its
// neighbours, keeping the previous choice for change detection.
func (e *Engine) removeParentDir(c *cell) {
	e.clearSideCache()
	if c.parentDir != 0 {
		c.oldParentDir = c.parentDir
	}
	c.parentDir = unknown
	c.code = unknown
	for i := 0; i < c.deg; i++ {
		n := c.move[i]
		if n == nil {
			continue
		}
		if n.parentDir != 0 {
			n.oldParentDir = n.parentDir
		}
		n.parentDir = unknown
		n.code = unknown
	}
}

// ensureShorter materialises the neighbour across cw when the resolver
// knows it is strictly nearer; only meaningful with known distances.
func (e *Engine) ensureShorter(cw walker) {
	if !e.knownDist {
		return
	}
	oc := e.extOf[cw.at]
	on, _, _ := e.cfg.Resolver.Neighbor(oc, cw.spin)
	if d, ok := e.cfg.Resolver.KnownDistance(on); ok && d < cw.at.dist {
		e.cmove(cw.at, cw.spin)
	}
}
