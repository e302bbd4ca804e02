package gotes

import "strconv"

// Rule is one entry of a treestate's rule vector. Non-negative values
// are child state ids; the negative sentinels say the neighbour across
// the edge is reached through the tree structure instead.
type Rule int

const (
	RuleUnknown Rule = -1
	RuleLeft    Rule = -4
	RuleRight   Rule = -5
	RuleParent  Rule = -6
)

// IsChild reports whether r spawns a child state.
func (r Rule) IsChild() bool { return r >= 0 }

func (r Rule) String() string {
	switch r {
	case RuleParent:
		return "PARENT"
	case RuleLeft:
		return "LEFT"
	case RuleRight:
		return "RIGHT"
	case RuleUnknown:
		return "UNKNOWN"
	}
	return strconv.Itoa(int(r))
}

// ParseRule is the inverse of String for persisted rule tokens.
func ParseRule(tok string) (Rule, error) {
	switch tok {
	case "PARENT":
		return RuleParent, nil
	case "LEFT":
		return RuleLeft, nil
	case "RIGHT":
		return RuleRight, nil
	}
	n, err := strconv.Atoi(tok)
	if err != nil || n < 0 {
		return RuleUnknown, ErrBadRuleToken
	}
	return Rule(n), nil
}

// FindPossibleParents recomputes the possible-parent table of a state
// vector in place: a state is a possible parent iff some rule entry is
// PARENT, pruned iteratively so that a possible parent must itself be
// producible, then each state records which (parent, edge) pairs spawn
// it.
func FindPossibleParents(states []TreeState) {
	for i := range states {
		states[i].IsPossibleParent = false
		for _, r := range states[i].Rules {
			if r == RuleParent {
				states[i].IsPossibleParent = true
			}
		}
	}
	for {
		changes := 0
		for i := range states {
			states[i].PossibleParents = nil
		}
		for i := range states {
			if !states[i].IsPossibleParent {
				continue
			}
			for rid, r := range states[i].Rules {
				if r >= 0 {
					states[r].PossibleParents = append(states[r].PossibleParents, ParentLink{State: i, Dir: rid})
				}
			}
		}
		for i := range states {
			if states[i].IsPossibleParent && len(states[i].PossibleParents) == 0 {
				states[i].IsPossibleParent = false
				changes++
			}
		}
		if changes == 0 {
			break
		}
	}
}
