package libtes

import (
	"github.com/tess-systems/gotes/gotes"
)

// treewalk advances cw one step around the tree: across the parent edge
// when cw sits on it, down into the child when the far side's parent
// edge points back, then rotates by delta.
func (e *Engine) treewalk(cw *walker, delta int) {
	cwd := e.getParentDir(cw)
	if *cw == cwd {
		*cw = e.addstep(*cw)
	} else {
		cw1 := e.addstep(*cw)
		cwd := e.getParentDir(&cw1)
		if cwd == cw1 {
			*cw = cw1
		}
	}
	*cw = cw.plus(delta)
}

const sideUnresolved = 99

// getSide decides whether the far side of the oriented chord `what`
// lies to the left (negative), right (positive) or level (zero) in the
// tree. The fast path climbs both parent chains to their merge; the
// fallback rotates around the tree from both sides until one frontier
// lands on the far endpoint.
func (e *Engine) getSide(what walker) int {
	cached := e.cfg.Flags&gotes.NoSideCache == 0
	fast := e.cfg.Flags&gotes.SlowSide == 0

	if cached {
		if v, ok := e.sidecache[what]; ok {
			return v
		}
	}

	res := sideUnresolved
	steps := 0

	if fast {
		w := what
		tw := e.wstep(what)
		adv := func(cw *walker) {
			*cw = e.getParentDir(cw)
			if cw.peek().dist >= cw.at.dist {
				e.handleDistanceErrors()
				failf("parent direction does not descend")
			}
			*cw = e.wstep(*cw)
		}
		for w.at != tw.at {
			steps++
			if steps > e.cfg.MaxGetSide {
				failf("side search frozen on parent chains")
			}
			ufind(&w)
			ufind(&tw)
			if w.at.dist > tw.at.dist {
				adv(&w)
			} else if w.at.dist < tw.at.dist {
				adv(&tw)
			} else {
				adv(&w)
				adv(&tw)
			}
		}

		if w.at.dist != 0 && !e.singleLiveBranch[w.at] {
			wd := e.getParentDir(&w)
			ufind(&tw)
			res = wd.toSpin(w.spin) - wd.toSpin(tw.spin)
		}
	}

	// failed to solve this the simple way (ended at the root) -- go
	// around the tree
	wl := what
	wr := wl
	toWhat := e.wstep(what)
	ws := what
	e.treewalk(&ws, 0)
	if ws == toWhat {
		res = 0
	}

	for res == sideUnresolved {
		e.handleDistanceErrors()
		steps++
		if steps > e.cfg.MaxGetSide {
			if e.parentUpdates != 0 {
				retry("side search frozen")
			}
			failf("side search frozen")
		}
		gl := wl.at.dist <= wr.at.dist
		gr := wl.at.dist >= wr.at.dist
		if gl {
			e.treewalk(&wl, -1)
			if wl == toWhat {
				res = 1
			}
		}
		if gr {
			e.treewalk(&wr, +1)
			if wr == toWhat {
				res = -1
			}
		}
	}

	if cached {
		e.sidecache[what] = res
	}
	return res
}

func (e *Engine) clearSideCache() {
	if len(e.sidecache) != 0 {
		e.sidecache = make(map[walker]int)
	}
}
