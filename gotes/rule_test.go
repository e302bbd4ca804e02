package gotes

import "testing"

func TestRuleTokens(t *testing.T) {
	for _, r := range []Rule{RuleParent, RuleLeft, RuleRight, Rule(0), Rule(12)} {
		back, err := ParseRule(r.String())
		if err != nil {
			t.Fatalf("ParseRule(%q): %v", r.String(), err)
		}
		if back != r {
			t.Fatalf("round trip %v -> %q -> %v", r, r.String(), back)
		}
	}
	if _, err := ParseRule("UNKNOWN"); err == nil {
		t.Fatalf("UNKNOWN must not parse")
	}
	if _, err := ParseRule("-3"); err == nil {
		t.Fatalf("negative ids must not parse")
	}
	if RuleParent.IsChild() || !Rule(0).IsChild() {
		t.Fatalf("IsChild broken")
	}
}

func TestFindPossibleParents(t *testing.T) {
	// state 0: root with children; state 1: interior reproducing
	// itself and spawning state 2; state 2: side-linked interior
	states := []TreeState{
		{ID: 0, Rules: []Rule{1, 2, RuleLeft}, IsRoot: true},
		{ID: 1, Rules: []Rule{RuleParent, 1, 2}},
		{ID: 2, Rules: []Rule{RuleParent, RuleLeft, RuleRight}},
	}
	FindPossibleParents(states)

	if states[0].IsPossibleParent {
		t.Fatalf("root without PARENT edge marked possible parent")
	}
	if !states[1].IsPossibleParent {
		t.Fatalf("interior state not a possible parent")
	}
	found := false
	for _, pl := range states[2].PossibleParents {
		if pl.State == 1 && pl.Dir == 2 {
			found = true
		}
	}
	if !found {
		t.Fatalf("state 2 lost its producer: %+v", states[2].PossibleParents)
	}
	for _, pl := range states[1].PossibleParents {
		if !states[pl.State].IsPossibleParent {
			t.Fatalf("producer %d is not itself a possible parent", pl.State)
		}
	}
}
