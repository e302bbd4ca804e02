package libtes

import (
	"github.com/tess-systems/gotes/gotes"
)

// aid identifies an analyzer: a shape id together with the parent edge
// taken modulo the shape's cycle length.
type aid struct {
	id   int
	spin int
}

// analyzer is a growable BFS tree of walker positions rooted at the
// canonical walker of its aid; parentID and spin reproduce each
// position from its parent when replayed against another root.
type analyzer struct {
	spread   []walker
	parentID []int
	spin     []int
}

func (e *Engine) analyzerStep(a *analyzer, pid, s int) {
	cw := a.spread[pid]
	cw = cw.plus(s)
	ufind(&cw)
	cw = e.wstep(cw)
	a.spread = append(a.spread, cw)
	a.parentID = append(a.parentID, pid)
	a.spin = append(a.spin, s)
}

func (e *Engine) getAid(cw walker) aid {
	ufind(&cw)
	ide := cw.at.id
	return aid{ide, gmod(cw.toSpin(0), e.tiling.Shapes[ide].CycleLength)}
}

func (e *Engine) getAnalyzer(cw walker) *analyzer {
	id := e.getAid(cw)
	a := e.analyzers[id]
	if a == nil {
		a = &analyzer{}
		e.analyzers[id] = a
	}
	if len(a.spread) == 0 {
		a.spread = append(a.spread, cw)
		a.parentID = append(a.parentID, -1)
		a.spin = append(a.spin, -1)
		for i := 0; i < cw.at.deg; i++ {
			e.analyzerStep(a, 0, i)
		}
	}
	return a
}

// spreadWalk replays the analyzer against cw, producing the walker at
// every analyzer position.
func (e *Engine) spreadWalk(a *analyzer, cw walker) []walker {
	n := len(a.spread)
	res := make([]walker, 0, n)
	res = append(res, cw)
	for i := 1; i < n; i++ {
		r := res[a.parentID[i]]
		ufind(&r)
		r1 := r.plus(a.spin[i])
		ufind(&r1)
		res = append(res, e.wstep(r1))
	}
	return res
}

// extendAnalyzer grows the target's analyzer so it can tell apart two
// cells whose codes agreed but whose rules at edge dir conflicted: the
// conflicting position's ancestry in the conflict's analyzer is
// replayed under edge dir in the target's analyzer.
func (e *Engine) extendAnalyzer(cwTarget walker, dir, id, mism int) {
	ufind(&cwTarget)
	cwConflict := e.wstep(cwTarget.plus(dir))
	aTarget := e.getAnalyzer(cwTarget)
	aConflict := e.getAnalyzer(cwConflict)

	var idsToAdd []int
	for k := id; k != 0; k = aConflict.parentID[k] {
		idsToAdd = append(idsToAdd, aConflict.spin[k])
	}

	gid := 1 + dir
	added := false
	for len(idsToAdd) > 0 {
		spin := idsToAdd[len(idsToAdd)-1]
		idsToAdd = idsToAdd[:len(idsToAdd)-1]
		nextGid := -1
		for i := range aTarget.parentID {
			if aTarget.parentID[i] == gid && aTarget.spin[i] == spin {
				nextGid = i
			}
		}
		if nextGid == -1 {
			nextGid = len(aTarget.parentID)
			e.analyzerStep(aTarget, gid, spin)
			added = true
		}
		gid = nextGid
	}
	if mism == 0 && !added {
		// can happen after a unification renamed the conflict away
		retry("no analyzer extension")
	}
}

// neighbourhood classes emitted per analyzer position; the right-hand
// variants are the base class plus one.
const (
	cIgnore = 0
	cChild  = 1
	cUncle  = 2
	cEqual  = 4
	cNephew = 6
	cParent = 8
)

// codeVec is the canonical reading of a cell's neighbourhood: its aid
// plus one class per analyzer position.
type codeVec struct {
	aid     aid
	classes []int
}

func (v codeVec) bytes() []byte {
	out := make([]byte, 0, 4+len(v.classes))
	out = append(out,
		byte(v.aid.id), byte(v.aid.id>>8),
		byte(v.aid.spin), byte(v.aid.spin>>8))
	for _, c := range v.classes {
		out = append(out, byte(c))
	}
	return out
}

// idAtSpin reads the neighbourhood of the parent-oriented walker cw
// into a code vector. Positions under non-child positions are ignored;
// the rest classify by tree relation, relative distance and side.
func (e *Engine) idAtSpin(cw walker) codeVec {
	ufind(&cw)
	res := codeVec{aid: e.getAid(cw)}
	a := e.getAnalyzer(cw)
	sprawl := e.spreadWalk(a, cw)
	for id, cs := range sprawl {
		e.beSolid(cs.at)
		e.beSolid(cw.at)
		ufind(&cw)
		ufind(&cs)
		var x int
		pid := a.parentID[id]
		switch {
		case pid > -1 && res.classes[pid] != cChild:
			// we do not recurse under non-children
			x = cIgnore
		case id == 0:
			x = cChild
		default:
			child := false
			if cs.at.dist != 0 {
				csd := e.getParentDir(&cs)
				child = cs == csd
			}
			if child {
				x = cChild
			} else {
				cs2 := e.wstep(cs)
				ufind(&cs)
				ufind(&cs2)
				e.beSolid(cs2.at)
				e.fixDistances(cs.at)
				y := cs.at.dist - cs.peek().dist

				if e.cfg.Flags&gotes.NoRelativeDistance != 0 {
					x = cEqual
				} else {
					switch y {
					case 1:
						x = cNephew
					case 0:
						x = cEqual
					case -1:
						x = cUncle
					default:
						failf("distance problem y=%d", y)
					}
				}
				gs := e.getSide(cs)
				if gs == 0 && x == cUncle {
					x = cParent
				}
				if gs > 0 {
					x++
				}
			}
		}
		res.classes = append(res.classes, x)
	}
	return res
}

// getCode returns the parent direction and the state id of cw's cell,
// minting a fresh treestate on first sight of a new code; cw is
// canonicalised in place.
func (e *Engine) getCode(cw *walker) (int, int) {
	c := cw.at
	if c.code != unknown && c.parentDir != unknown {
		bestd := c.parentDir
		if bestd == -1 {
			bestd = 0
		}
		return bestd, c.code
	}

	e.beSolid(c)

	var cd walker
	if c.dist == 0 {
		cd = walker{c, 0}
	} else {
		cd = e.getParentDir(cw)
	}
	if cd.at != c {
		ufind(cw)
	}

	v := e.idAtSpin(cd)

	symID := e.codes.GetSymbolID(v.bytes(), false)
	isNew := symID == 0
	if isNew {
		symID = e.codes.GetSymbolID(v.bytes(), true)
	}
	if !isNew {
		id := e.codeID[symID]
		cd.at.code = id
		return cd.spin, id
	}

	id := len(e.treestates)
	e.codeID[symID] = id
	if cd.at.code != unknown && (cd.at.code != id || cd.at.parentDir != cd.spin) {
		retry("exit from get_code")
	}
	cd.at.code = id

	e.treestates = append(e.treestates, &treestate{
		id:        id,
		code:      v,
		whereSeen: *cw,
		isLive:    true,
	})

	return cd.spin, id
}
