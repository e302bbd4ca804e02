package libtes

import (
	"fmt"
	"strings"

	"github.com/plan-systems/klog"

	"github.com/tess-systems/gotes/gotes"
)

// tsinfo is a state id together with a state-relative spin.
type tsinfo struct {
	state int
	spin  int
}

const maxDeadstack = 10000

func (e *Engine) getTsinfo(tw *walker) tsinfo {
	d, id := e.getCode(tw)
	var spin int
	if d == -1 {
		spin = tw.spin
	} else {
		spin = gmod(tw.spin-d, tw.at.deg)
	}
	return tsinfo{id, spin}
}

func (e *Engine) getRule(tw walker, s tsinfo) gotes.Rule {
	r := e.treestates[s.state].rules
	if len(r) == 0 {
		e.important = append(e.important, walker{tw.at, 0})
		retry("unknown rule in get_rule")
	}
	return r[s.spin]
}

// pushDeadstack appends the canonical dead-stack of w to hash: starting
// at the given state-spin, keep moving in the branch direction; when
// the spin leaves the state's rule range cross to the parent's state;
// stop at a root or at a live sibling entry.
func (e *Engine) pushDeadstack(hash *[]tsinfo, w walker, tsi tsinfo, dir int) {
	*hash = append(*hash, tsi)

	for {
		ufind(&w)
		if len(*hash) > maxDeadstack {
			failf("deadstack overflow")
		}
		tsi.spin += dir
		w = w.plus(dir)
		ts := e.treestates[tsi.state]
		if ts.isRoot {
			return
		}
		if tsi.spin == 0 || tsi.spin == len(ts.rules) {
			w = e.wstep(w)
			tsi = e.getTsinfo(&w)
			*hash = append(*hash, tsi)
		} else {
			if len(ts.rules) == 0 {
				retry("empty rule")
			}
			r := ts.rules[tsi.spin]
			if r > 0 && e.treestates[r].isLive {
				return
			}
		}
	}
}

func deadstackKey(hash []tsinfo) string {
	var sb strings.Builder
	for _, h := range hash {
		fmt.Fprintf(&sb, "%d:%d;", h.state, h.spin)
	}
	return sb.String()
}

// advanceFailed unwinds one branch examination after a conflict.
type advanceFailed struct{}

// verifiedTreewalk steps tw around the tree and, when the step crossed
// into a supposed child, verifies the child's state and spin; a
// disagreement records a branch conflict and aborts the examination.
func (e *Engine) verifiedTreewalk(tw *walker, id int, dir int) {
	if id >= 0 {
		tw1 := e.wstep(*tw)
		d, code := e.getCode(&tw1)
		if code != id || d != tw1.spin {
			e.handleDistanceErrors()

			key := fmt.Sprintf("%d,%d>%d,%d", e.wstep(*tw).spin, id, d, code)
			if e.cfg.Flags&gotes.ExamineAll != 0 || !e.branchConflicts.Contains(key) {
				e.branchConflicts.Add(key)
				e.important = append(e.important, walker{tw.at, 0})
				klog.V(2).Infof("branch conflict %s found", key)
			} else {
				klog.V(3).Infof("branch conflict %s found again", key)
			}
			panic(advanceFailed{})
		}
	}
	e.treewalk(tw, dir)
}

// examineBranch proves that the live child at edge left and the next
// live child around the state never collide inconsistently: two
// parallel walkers start at edges left and left+1, move outward, and
// the pair is accepted once a dead-stack configuration repeats. The
// right argument is only logged.
func (e *Engine) examineBranch(id, left, right int) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(advanceFailed); ok {
				if e.cfg.Flags&gotes.ExamineOnce != 0 {
					retry("advance failed")
				}
				return
			}
			panic(r)
		}
	}()

	rg := e.treestates[id].giver

	klog.V(3).Infof("examining branches (%d,%d) of state %d", left, right, id)

	wl := rg.plus(left)
	wr := rg.plus(left + 1)

	var lstack, rstack []walker

	steps := 0
	for {
		e.handleDistanceErrors()
		steps++
		if steps > e.cfg.MaxExamineBranch {
			if e.branchConflicts.Size() > 0 {
				// may be caused by incorrect detection of live branches
				retry("max_examine_branch exceeded after a conflict")
			}
			failf("max_examine_branch exceeded")
		}

		tsl := e.getTsinfo(&wl)
		tsr := e.getTsinfo(&wr)

		rl := e.getRule(wl, tsl)
		rr := e.getRule(wr, tsr)

		switch {
		case rl == gotes.RuleRight && rr == gotes.RuleLeft && len(lstack) == 0 && len(rstack) == 0:
			var hash []tsinfo
			e.pushDeadstack(&hash, wl, tsl, -1)
			hash = append(hash, tsinfo{-1, wl.at.dist - wr.at.dist})
			e.pushDeadstack(&hash, wr, tsr, +1)
			key := deadstackKey(hash)
			if e.verifiedBranches.Contains(key) {
				return
			}
			e.verifiedBranches.Add(key)

			e.verifiedTreewalk(&wl, int(rl), -1)
			e.verifiedTreewalk(&wr, int(rr), +1)

		case rl == gotes.RuleRight && len(lstack) > 0 && lstack[len(lstack)-1] == e.wstep(wl):
			lstack = lstack[:len(lstack)-1]
			e.verifiedTreewalk(&wl, int(rl), -1)

		case rr == gotes.RuleLeft && len(rstack) > 0 && rstack[len(rstack)-1] == e.wstep(wr):
			rstack = rstack[:len(rstack)-1]
			e.verifiedTreewalk(&wr, int(rr), +1)

		case rl == gotes.RuleLeft:
			lstack = append(lstack, wl)
			e.verifiedTreewalk(&wl, int(rl), -1)

		case rr == gotes.RuleRight:
			rstack = append(rstack, wr)
			e.verifiedTreewalk(&wr, int(rr), +1)

		case rl != gotes.RuleRight:
			e.verifiedTreewalk(&wl, int(rl), -1)

		case rr != gotes.RuleLeft:
			e.verifiedTreewalk(&wr, int(rr), +1)

		default:
			failf("cannot advance while examining")
		}
	}
}

// findSingleLiveBranch marks the cells of a root's single live branch;
// the side oracle treats them specially when a parent chain merges
// there.
func (e *Engine) findSingleLiveBranch(at *walker) {
	e.handleDistanceErrors()
	e.rulesIterationFor(at)
	_, id := e.getCode(at)
	t := at.at.deg
	r := append([]gotes.Rule(nil), e.treestates[id].rules...)
	if len(r) == 0 {
		e.important = append(e.important, walker{at.at, 0})
		retry("no giver in find_single_live_branch")
	}
	q := 0
	for i := 0; i < t; i++ {
		if r[i] >= 0 && e.treestates[r[i]].isLive {
			q++
		}
	}
	for i := 0; i < t; i++ {
		if r[i] >= 0 {
			e.singleLiveBranch[at.at] = true
			if !e.treestates[r[i]].isLive || q == 1 {
				at1 := e.wstep(at.plus(i))
				e.findSingleLiveBranch(&at1)
			}
		}
	}
}
