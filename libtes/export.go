package libtes

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/tess-systems/gotes/gotes"
)

// ExportRules writes a rule set in the persisted text format: one
// `state` line per treestate listing its shape id and rule tokens, then
// the designated root. States are written parent-first, i.e. already
// rotated so the PARENT token (when any) sits at edge 0.
func ExportRules(w io.Writer, rs *gotes.RuleSet) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "rules %s\n", rs.Tiling.Name)
	for i := range rs.States {
		ts := &rs.States[i]
		fmt.Fprintf(bw, "state %d", ts.Sid)
		for _, r := range ts.Rules {
			fmt.Fprintf(bw, " %s", r.String())
		}
		fmt.Fprintln(bw)
	}
	fmt.Fprintf(bw, "root %d\n", rs.Root)
	return bw.Flush()
}

// ExportString renders the persisted format into memory.
func ExportString(rs *gotes.RuleSet) string {
	var sb strings.Builder
	ExportRules(&sb, rs)
	return sb.String()
}

// ParseRules loads a persisted rule set against its tiling. States
// whose PARENT token is not at edge 0 are rotated so it is, with the
// shift recorded in ParentDir; liveness and the possible-parent table
// are recomputed.
func ParseRules(t *gotes.Tiling, src string) (*gotes.RuleSet, error) {
	rs := &gotes.RuleSet{Tiling: t, Root: -1}

	sc := bufio.NewScanner(strings.NewReader(src))
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "rules":
			// header; the tiling is supplied by the caller

		case "state":
			if len(fields) < 2 {
				return nil, errors.Wrapf(gotes.ErrBadRuleToken, "line %d", lineNo)
			}
			sid, err := strconv.Atoi(fields[1])
			if err != nil || sid < 0 || sid >= len(t.Shapes) {
				return nil, errors.Wrapf(gotes.ErrBadShapeIndex, "line %d", lineNo)
			}
			n := t.Shapes[sid].Size()
			if len(fields) != 2+n {
				return nil, errors.Wrapf(gotes.ErrBadRuleToken, "line %d: want %d rules", lineNo, n)
			}
			ts := gotes.TreeState{
				ID:     len(rs.States),
				Sid:    sid,
				IsLive: true,
			}
			for _, tok := range fields[2:] {
				r, err := gotes.ParseRule(tok)
				if err != nil {
					return nil, errors.Wrapf(err, "line %d", lineNo)
				}
				ts.Rules = append(ts.Rules, r)
			}
			qparent, sumparent := 0, 0
			for i, r := range ts.Rules {
				if r == gotes.RuleParent {
					qparent++
					sumparent += i
				}
			}
			ts.IsRoot = qparent == 0
			if qparent > 1 {
				return nil, errors.Wrapf(gotes.ErrMultipleParent, "line %d", lineNo)
			}
			if qparent == 1 {
				ts.ParentDir = sumparent
				rotateRules(ts.Rules, sumparent)
			}
			rs.States = append(rs.States, ts)

		case "root":
			if len(fields) != 2 {
				return nil, errors.Wrapf(gotes.ErrBadRoot, "line %d", lineNo)
			}
			n, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, errors.Wrapf(gotes.ErrBadRoot, "line %d", lineNo)
			}
			rs.Root = n

		default:
			return nil, errors.Wrapf(gotes.ErrBadRuleToken, "line %d: %q", lineNo, fields[0])
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	if rs.Root < 0 || rs.Root >= len(rs.States) {
		return nil, gotes.ErrBadRoot
	}
	for i := range rs.States {
		for _, r := range rs.States[i].Rules {
			if r < 0 && r != gotes.RuleParent && r != gotes.RuleLeft && r != gotes.RuleRight {
				return nil, gotes.ErrBadRuleToken
			}
			if int(r) >= len(rs.States) {
				return nil, gotes.ErrBadRuleToken
			}
		}
	}

	propagateLiveness(rs.States)
	gotes.FindPossibleParents(rs.States)
	return rs, nil
}

// rotateRules shifts the vector left by k so entry k lands at 0.
func rotateRules(rules []gotes.Rule, k int) {
	n := len(rules)
	out := make([]gotes.Rule, n)
	for i := 0; i < n; i++ {
		out[i] = rules[(i+k)%n]
	}
	copy(rules, out)
}

// propagateLiveness marks states with no live children as dead, to
// fixpoint.
func propagateLiveness(states []gotes.TreeState) {
	for changed := true; changed; {
		changed = false
		for i := range states {
			if !states[i].IsLive {
				continue
			}
			children := 0
			for _, r := range states[i].Rules {
				if r >= 0 && states[r].IsLive {
					children++
				}
			}
			if children == 0 {
				states[i].IsLive = false
				changed = true
			}
		}
	}
}
