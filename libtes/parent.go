package libtes

import (
	"github.com/plan-systems/klog"

	"github.com/tess-systems/gotes/gotes"
)

// getParentDir picks the canonical tree-parent edge of cw's cell: among
// the strictly nearer neighbours, the one of minimal rotation-symmetric
// rank. When the rank is ambiguous the exhaustive comparison decides.
// The result is cached on the cell; cw is canonicalised in place.
func (e *Engine) getParentDir(cw *walker) walker {
	c := cw.at
	if c.parentDir != unknown {
		return walker{c, c.parentDir}
	}
	bestd := -1

	e.beSolid(c)

	oc := c

	if c.dist > 0 {
		sh := &e.tiling.Shapes[c.id]
		n := sh.Size()
		k := sh.CycleLength
		var nearer []int

		beats := func(i, old int) bool {
			if old == -1 {
				return true
			}
			if i%k != old%k {
				return i%k < old%k
			}
			return true
		}

		d := c.dist

		for i := 0; i < n; i++ {
			e.ensureShorter(cw.plus(i))
			c1 := e.cmove(c, i)
			e.beSolid(c1)
			if c1.dist < d {
				nearer = append(nearer, i)
			}
			ufind(cw)
			if d != cw.at.dist || oc != cw.at {
				return e.getParentDir(cw)
			}
			c = cw.at
		}

		// celebrity identification problem
		failed := e.cfg.Flags&gotes.ParentAlways != 0
		if !failed {
			for _, ne := range nearer {
				if beats(ne, bestd) {
					bestd = ne
				}
			}
			for _, ne := range nearer {
				if ne != bestd && beats(ne, bestd) {
					failed = true
				}
			}
		}

		if failed {
			if e.cfg.Flags&gotes.ParentNever != 0 {
				failf("parent choice still confused")
			}
			if len(nearer) == 0 {
				failf("no nearer neighbour on a distant cell")
			}
			e.hardParents++
			bestd = nearer[0]
			for _, ne1 := range nearer {
				if ne1 != bestd && e.beatsExhaustive(walker{c, ne1}, walker{c, bestd}) {
					bestd = ne1
				}
			}
		}

		if bestd == -1 {
			failf("parent selector returned none")
		}
	}

	klog.V(3).Infof("set parent_dir of %p to %d", c, bestd)
	c.parentDir = bestd

	if c.oldParentDir != unknown && c.oldParentDir != bestd && c == oc {
		c.anyNearer = c.oldParentDir
		e.findNewShortcuts(c, c.dist, c, bestd, 0)
	}

	e.parentUpdates++

	return walker{c, bestd}
}

// beatsExhaustive compares two parent candidates by stepping both to
// their respective parents and returning at the first rank that
// differs; at the origin the edge index alone decides.
func (e *Engine) beatsExhaustive(w1, w2 walker) bool {
	iter := 0
	for {
		iter++
		if iter > e.cfg.MaxAdvSteps {
			failf("max_adv_steps exceeded")
		}
		w1 = e.wstep(w1)
		w2 = e.wstep(w2)

		if w1.at.dist == 0 {
			return w1.spin > w2.spin
		}

		e.beSolid(w1.at)
		e.beSolid(w2.at)
		e.handleDistanceErrors()

		sw1 := e.getParentDir(&w1)
		sw2 := e.getParentDir(&w2)

		d1 := w1.toSpin(sw1.spin)
		d2 := w2.toSpin(sw2.spin)
		if d1 != d2 {
			return d1 < d2
		}

		w1 = sw1
		w2 = sw2
	}
}
