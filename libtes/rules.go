package libtes

import (
	"fmt"
	"strings"

	"github.com/plan-systems/klog"

	"github.com/tess-systems/gotes/gotes"
)

// treestate is the engine-internal form of a state of the inferred
// automaton; it is reshaped into gotes.TreeState on success.
type treestate struct {
	id        int
	known     bool
	rules     []gotes.Rule
	giver     walker
	sid       int
	parentDir int
	whereSeen walker
	code      codeVec
	isLive    bool
	isRoot    bool

	isPossibleParent bool
	possibleParents  []gotes.ParentLink
}

// genRule produces the rule vector of the parent-oriented walker
// cwmain: PARENT on the parent edge, child state ids where crossing
// verifiably spawns a child, and provisional UNKNOWN entries that are
// resolved into LEFT/RIGHT from the state's code.
func (e *Engine) genRule(cwmain walker, id int) []gotes.Rule {
	cids := make([]gotes.Rule, 0, cwmain.at.deg)
	for a := 0; a < cwmain.at.deg; a++ {
		front := cwmain.plus(a)
		c1 := e.wstep(front)
		e.beSolid(c1.at)
		if a == 0 && cwmain.at.dist != 0 {
			cids = append(cids, gotes.RuleParent)
			continue
		}
		if c1.at.dist <= cwmain.at.dist {
			cids = append(cids, gotes.RuleUnknown)
			continue
		}
		d1, id1 := e.getCode(&c1)
		if e.cmove(c1.at, d1) != cwmain.at || c1.at.spinTo[d1] != front.spin {
			cids = append(cids, gotes.RuleUnknown)
			continue
		}
		cids = append(cids, gotes.Rule(id1))
	}

	for i, r := range cids {
		if r != gotes.RuleUnknown {
			continue
		}
		val := e.treestates[id].code.classes[i+1]
		if val < cUncle || val >= cParent {
			klog.V(3).Infof("i = %d val = %d", i, val)
			retry("wrong code in gen_rule")
		}
		if val&1 == 1 {
			cids[i] = gotes.RuleRight
		} else {
			cids[i] = gotes.RuleLeft
		}
	}

	return cids
}

func rulesEqual(a, b []gotes.Rule) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// rulesIterationFor assigns rules to the state of cw's cell, or, when
// the state already has conflicting rules, extends the analyzer at the
// first discriminating code position and retries.
func (e *Engine) rulesIterationFor(cw *walker) {
	ufind(cw)
	d, id := e.getCode(cw)
	cwmain := walker{cw.at, d}
	ufind(&cwmain)

	cids := e.genRule(cwmain, id)
	ts := e.treestates[id]

	if !ts.known {
		ts.known = true
		ts.rules = cids
		ts.giver = cwmain
		ts.sid = cwmain.at.id
		ts.parentDir = cwmain.spin
		ts.isRoot = cw.at.dist == 0
		return
	}
	if rulesEqual(ts.rules, cids) {
		return
	}

	e.handleDistanceErrors()
	klog.V(3).Infof("merging %v vs %v [state %d]", ts.rules, cids, id)

	mismatches := 0
	for z := range cids {
		if ts.rules[z] == cids[z] {
			continue
		}
		if ts.rules[z] < 0 || cids[z] < 0 {
			failf("negative rule mismatch")
		}

		c1 := e.treestates[ts.rules[z]].code.classes
		c2 := e.treestates[cids[z]].code.classes
		if len(c1) != len(c2) {
			failf("code length mismatch")
		}
		for k := range c1 {
			if c1[k] == cIgnore || c2[k] == cIgnore {
				continue
			}
			if c1[k] != c2[k] {
				klog.V(3).Infof("code mismatch (%d vs %d at position %d of %d)", c1[k], c2[k], k, len(c1))
				e.extendAnalyzer(cwmain, z, k, mismatches)
				mismatches++
				if e.cfg.Flags&gotes.ConflictAll == 0 {
					retry("code mismatch")
				}
			}
		}
	}

	if mismatches > 0 {
		retry("code mismatch")
	}
	failf("rule mismatch with no code mismatch")
}

// minimizeRules merges equivalent states: partition by aid, then refine
// by the partition classes of the children until stable, and renumber.
func (e *Engine) minimizeRules() {
	e.statesPreMini = len(e.treestates)
	next := len(e.treestates)

	newID := make([]int, next)
	newIDOf := map[aid]int{}
	newIDs := 0

	for id := 0; id < next; id++ {
		a := e.getAid(e.treestates[id].giver)
		if _, ok := newIDOf[a]; !ok {
			newIDOf[a] = newIDs
			newIDs++
		}
		newID[id] = newIDOf[a]
	}

	lastNewIDs := 0
	for newIDs > lastNewIDs && newIDs < next {
		lastNewIDs = newIDs

		hashes := map[string]int{}
		newIDs = 0
		last := append([]int(nil), newID...)

		for id := 0; id < next; id++ {
			var sb strings.Builder
			fmt.Fprintf(&sb, "%d", last[id])
			for _, r := range e.treestates[id].rules {
				if r >= 0 {
					fmt.Fprintf(&sb, ",%d", last[r])
				} else {
					fmt.Fprintf(&sb, ",%d", r)
				}
			}
			h := sb.String()
			if _, ok := hashes[h]; !ok {
				hashes[h] = newIDs
				newIDs++
			}
			newID[id] = hashes[h]
		}
	}

	klog.V(2).Infof("minimized %d states to %d", next, newIDs)

	oldID := make([]int, newIDs)
	for i := range oldID {
		oldID[i] = -1
	}
	for i := 0; i < next; i++ {
		if oldID[newID[i]] == -1 {
			oldID[newID[i]] = i
		}
	}

	states := make([]*treestate, newIDs)
	for i := 0; i < newIDs; i++ {
		states[i] = e.treestates[oldID[i]]
		states[i].id = i
	}
	e.treestates = states
	for _, ts := range e.treestates {
		for j, r := range ts.rules {
			if r >= 0 {
				ts.rules[j] = gotes.Rule(newID[r])
			}
		}
	}

	for k, v := range e.codeID {
		e.codeID[k] = newID[v]
	}
	if e.ruleRoot >= 0 && e.ruleRoot < next {
		e.ruleRoot = newID[e.ruleRoot]
	}
}

// findPossibleParents computes which states can serve as a parent and
// records, per state, the (parent, edge) pairs producing it.
func (e *Engine) findPossibleParents() {
	for _, ts := range e.treestates {
		ts.isPossibleParent = false
		for _, r := range ts.rules {
			if r == gotes.RuleParent {
				ts.isPossibleParent = true
			}
		}
	}
	for {
		changes := 0
		for _, ts := range e.treestates {
			ts.possibleParents = nil
		}
		for _, ts := range e.treestates {
			if !ts.isPossibleParent {
				continue
			}
			for rid, r := range ts.rules {
				if r >= 0 {
					e.treestates[r].possibleParents = append(e.treestates[r].possibleParents,
						gotes.ParentLink{State: ts.id, Dir: rid})
				}
			}
		}
		for _, ts := range e.treestates {
			if ts.isPossibleParent && len(ts.possibleParents) == 0 {
				ts.isPossibleParent = false
				changes++
			}
		}
		if changes == 0 {
			break
		}
	}
}
