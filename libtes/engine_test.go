package libtes

import (
	"strings"
	"testing"
	"time"

	"github.com/tess-systems/gotes/gotes"
)

func generate(t *testing.T, tiling *gotes.Tiling, mut func(*gotes.Config)) (*Engine, *gotes.RuleSet) {
	t.Helper()
	cfg := gotes.DefaultConfig()
	cfg.Timeout = 30 * time.Second
	if mut != nil {
		mut(&cfg)
	}
	e, err := New(tiling, cfg)
	if err != nil {
		t.Fatalf("New(%s): %v", tiling.Name, err)
	}
	rs, err := e.Generate()
	if err != nil {
		t.Fatalf("Generate(%s): %v", tiling.Name, err)
	}
	return e, rs
}

func countTokens(rules []gotes.Rule) (parents, sides, children int) {
	for _, r := range rules {
		switch {
		case r == gotes.RuleParent:
			parents++
		case r == gotes.RuleLeft || r == gotes.RuleRight:
			sides++
		case r >= 0:
			children++
		}
	}
	return
}

// checkGraphInvariants verifies the cell-level invariants on every
// canonical cell of a finished engine.
func checkGraphInvariants(t *testing.T, e *Engine) {
	t.Helper()
	cells := 0
	for c := e.firstCell; c != nil; c = c.next {
		if c.unifiedTo.at != c {
			continue // unified away
		}
		cells++

		// distance certificate
		if c.distanceFixed && c.dist > 0 && c.dist != unknown &&
			c.anyNearer >= 0 && c.anyNearer < c.deg {
			if n := c.move[c.anyNearer]; n != nil && n.unifiedTo.at == n && n.dist != unknown {
				if c.dist != n.dist+1 {
					t.Errorf("cell %p: dist %d but nearer neighbour has %d", c, c.dist, n.dist)
				}
			}
		}

		// mutual adjacency and connection spins
		for i := 0; i < c.deg; i++ {
			b := c.move[i]
			if b == nil || b.unifiedTo.at != b {
				continue
			}
			j := c.spinTo[i]
			if b.move[j] != c || b.spinTo[j] != i {
				t.Errorf("cell %p edge %d: adjacency not mutual", c, i)
			}
			co := e.tiling.Shapes[c.id].Connections[i]
			if co.Sid != b.id {
				t.Errorf("cell %p edge %d: neighbour shape %d, want %d", c, i, b.id, co.Sid)
			}
			tgt := &e.tiling.Shapes[b.id]
			if (co.Eid-j)%tgt.CycleLength != 0 {
				t.Errorf("cell %p edge %d: arrival edge %d not congruent to %d", c, i, j, co.Eid)
			}
		}

		// fully surrounded vertices close up after exactly
		// vertexValence steps
		for i := 0; i < c.deg; i++ {
			valence := e.tiling.Shapes[c.id].VertexValence[i]
			w := walker{c, i}
			ufind(&w)
			closed := true
			ring := w
			for s := 0; s < valence; s++ {
				if ring.peek() == nil {
					closed = false
					break
				}
				ring = walker{ring.at.move[ring.spin], ring.at.spinTo[ring.spin]}.plus(-1)
				ufind(&ring)
			}
			if closed && ring != w {
				t.Errorf("cell %p corner %d: ring of %d does not close", c, i, valence)
			}
		}
	}
	if cells == 0 {
		t.Fatalf("no canonical cells")
	}
}

// checkRuleSet verifies the automaton-level invariants of a rule set:
// in-range deterministic child entries and live states reachable from
// the root states.
func checkRuleSet(t *testing.T, rs *gotes.RuleSet) {
	t.Helper()
	if rs.Root < 0 || rs.Root >= len(rs.States) {
		t.Fatalf("root %d out of range", rs.Root)
	}
	for i := range rs.States {
		ts := &rs.States[i]
		n := rs.Tiling.Shapes[ts.Sid].Size()
		if len(ts.Rules) != n {
			t.Fatalf("state %d: %d rules, want %d", i, len(ts.Rules), n)
		}
		for _, r := range ts.Rules {
			if r >= 0 && int(r) >= len(rs.States) {
				t.Fatalf("state %d: child %d out of range", i, r)
			}
			if r < 0 && r != gotes.RuleParent && r != gotes.RuleLeft && r != gotes.RuleRight {
				t.Fatalf("state %d: bad token %d", i, r)
			}
		}
	}

	// reachability of live states from the root states
	reached := make([]bool, len(rs.States))
	var queue []int
	for i := range rs.States {
		if rs.States[i].IsRoot {
			reached[i] = true
			queue = append(queue, i)
		}
	}
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		for _, r := range rs.States[s].Rules {
			if r >= 0 && !reached[r] {
				reached[r] = true
				queue = append(queue, int(r))
			}
		}
	}
	for i := range rs.States {
		if rs.States[i].IsLive && !reached[i] {
			t.Errorf("live state %d unreachable from any root", i)
		}
	}
}

// canonicalForm renumbers states BFS-first from the root and renders
// the rules, so rule sets can be compared independently of discovery
// order.
func canonicalForm(rs *gotes.RuleSet) string {
	order := make([]int, len(rs.States))
	for i := range order {
		order[i] = -1
	}
	next := 0
	queue := []int{rs.Root}
	order[rs.Root] = next
	next++
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		for _, r := range rs.States[s].Rules {
			if r >= 0 && order[r] == -1 {
				order[r] = next
				next++
				queue = append(queue, int(r))
			}
		}
	}
	var sb strings.Builder
	inv := make([]int, len(rs.States))
	for i := range inv {
		inv[i] = -1
	}
	for s, o := range order {
		if o >= 0 {
			inv[o] = s
		}
	}
	for _, s := range inv {
		if s == -1 {
			continue
		}
		ts := &rs.States[s]
		sb.WriteString("state ")
		for _, r := range ts.Rules {
			if r >= 0 {
				sb.WriteString(gotes.Rule(order[r]).String())
			} else {
				sb.WriteString(r.String())
			}
			sb.WriteByte(' ')
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func TestHeptagonal(t *testing.T) {
	e, rs := generate(t, Regular(7, 3), nil)

	if len(rs.States) > 10 {
		t.Fatalf("{7,3}: %d states, want <= 10", len(rs.States))
	}

	root := &rs.States[rs.Root]
	if !root.IsRoot {
		t.Fatalf("root state not marked as root")
	}
	parents, _, children := countTokens(root.Rules)
	if parents != 0 || children != 7 {
		t.Fatalf("{7,3} root: %d parents, %d children, want 0 and 7", parents, children)
	}

	for i := range rs.States {
		ts := &rs.States[i]
		if ts.IsRoot || !ts.IsLive {
			continue
		}
		parents, sides, children := countTokens(ts.Rules)
		if parents != 1 {
			t.Errorf("state %d: %d PARENT entries, want 1", i, parents)
		}
		if ts.Rules[0] != gotes.RuleParent {
			t.Errorf("state %d: PARENT not at edge 0", i)
		}
		if sides < 2 || children < 3 || sides+children != 6 {
			t.Errorf("state %d: %d side and %d child entries", i, sides, children)
		}
	}

	checkGraphInvariants(t, e)
	checkRuleSet(t, rs)
}

func TestPentagonalFour(t *testing.T) {
	e, rs := generate(t, Regular(5, 4), nil)

	if len(rs.States) > 16 {
		t.Fatalf("{5,4}: %d states", len(rs.States))
	}
	for i := range rs.States {
		ts := &rs.States[i]
		if ts.IsRoot {
			continue
		}
		parents, _, _ := countTokens(ts.Rules)
		if parents != 1 {
			t.Errorf("state %d: %d PARENT entries, want exactly 1", i, parents)
		}
	}

	checkGraphInvariants(t, e)
	checkRuleSet(t, rs)
}

func TestTwoColorAlternation(t *testing.T) {
	e, rs := generate(t, TwoColor(6, 4), nil)

	seen := map[int]bool{}
	for i := range rs.States {
		seen[rs.States[i].Sid] = true
	}
	if !seen[0] || !seen[1] {
		t.Fatalf("want states for both shapes, got %v", seen)
	}

	// every child of a shape-A state must be a shape-B state and vice
	// versa; the connection tables alternate
	for i := range rs.States {
		ts := &rs.States[i]
		for _, r := range ts.Rules {
			if r >= 0 && rs.States[r].Sid != 1-ts.Sid {
				t.Errorf("state %d (shape %d): child %d has shape %d", i, ts.Sid, r, rs.States[r].Sid)
			}
		}
	}

	checkGraphInvariants(t, e)
	checkRuleSet(t, rs)
}

func TestSquareGridSymmetryCollapse(t *testing.T) {
	e2, rs2 := generate(t, SquareGrid(2), nil)
	_, rs4 := generate(t, SquareGrid(4), nil)

	if e2.Stats().StatesPreMini < len(rs2.States) {
		t.Fatalf("pre-minimisation count below final count")
	}
	// the half-turn symmetry identifies rotated states that the
	// symmetry-free declaration keeps apart
	if len(rs2.States) > len(rs4.States) {
		t.Fatalf("cycle-2 grid has %d states, cycle-4 has %d", len(rs2.States), len(rs4.States))
	}
	checkRuleSet(t, rs2)
	checkRuleSet(t, rs4)
}

func TestShortcutModesAgree(t *testing.T) {
	for _, tiling := range []*gotes.Tiling{Regular(5, 4), SquareGrid(2)} {
		eSmart, rsSmart := generate(t, tiling, nil)
		ePlain, rsPlain := generate(t, tiling, func(c *gotes.Config) {
			c.Flags |= gotes.NoSmartShortcuts
		})
		if canonicalForm(rsSmart) != canonicalForm(rsPlain) {
			t.Errorf("%s: smart and plain shortcut runs disagree", tiling.Name)
		}
		t.Logf("%s: solid errors smart=%d plain=%d",
			tiling.Name, eSmart.Stats().SolidErrors, ePlain.Stats().SolidErrors)
	}
}

func TestCellBudgetSurrender(t *testing.T) {
	cfg := gotes.DefaultConfig()
	cfg.MaxCellCount = 50
	e, err := New(Regular(7, 3), cfg)
	if err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	_, err = e.Generate()
	if err == nil {
		t.Fatalf("want surrender, got success")
	}
	if !gotes.IsSurrender(err) {
		t.Fatalf("want surrender, got %v", err)
	}
	if !strings.Contains(err.Error(), "max_tcellcount") {
		t.Fatalf("diagnostic %q does not name max_tcellcount", err.Error())
	}
	if time.Since(start) > time.Second {
		t.Errorf("surrender took %v, want under a second", time.Since(start))
	}
}

func TestZeroTimeoutSurrenders(t *testing.T) {
	cfg := gotes.DefaultConfig()
	cfg.Timeout = 0
	e, err := New(Regular(7, 3), cfg)
	if err != nil {
		t.Fatal(err)
	}
	_, err = e.Generate()
	if !gotes.IsSurrender(err) || !strings.Contains(err.Error(), "timeout") {
		t.Fatalf("want timeout surrender, got %v", err)
	}
}

func TestCleanupDropsCells(t *testing.T) {
	cfg := gotes.DefaultConfig()
	cfg.MaxCellCount = 50
	e, err := New(Regular(7, 3), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, err = e.Generate(); err == nil {
		t.Fatalf("want surrender")
	}
	e.Cleanup()
	if e.firstCell != nil || e.cellCount != 0 {
		t.Fatalf("cleanup left %d reachable cells", e.cellCount)
	}
	if len(e.analyzers) != 0 || len(e.sidecache) != 0 || len(e.shortcuts) != 0 {
		t.Fatalf("cleanup left derived state behind")
	}
}

func TestRootChildrenRotationallyIdentified(t *testing.T) {
	// a fully symmetric shape seeds a root whose children all share one
	// state
	cfg := func(c *gotes.Config) {
		c.Flags |= gotes.SingleOrigin
		c.OriginID = 0
	}
	_, rs := generate(t, Regular(7, 3), cfg)
	root := &rs.States[rs.Root]
	first := root.Rules[0]
	if first < 0 {
		t.Fatalf("root rule 0 is %v", first)
	}
	for i, r := range root.Rules {
		if r != first {
			t.Fatalf("root child %d is state %v, want %v", i, r, first)
		}
	}
}

func TestGetSideAntisymmetry(t *testing.T) {
	e, _ := generate(t, Regular(7, 3), nil)

	sign := func(v int) int {
		switch {
		case v < 0:
			return -1
		case v > 0:
			return 1
		}
		return 0
	}

	checked := 0
	for c := e.firstCell; c != nil && checked < 20; c = c.next {
		if c.unifiedTo.at != c || c.dist == unknown || c.dist == 0 {
			continue
		}
		for i := 0; i < c.deg && checked < 20; i++ {
			n := c.move[i]
			if n == nil || n.unifiedTo.at != n || n.dist == unknown || n.dist == 0 {
				continue
			}
			// stay off the tree edges themselves, as the engine does
			if c.parentDir == i || n.parentDir == c.spinTo[i] {
				continue
			}
			w := walker{c, i}
			got := e.getSide(w)
			back := e.getSide(e.wstep(w))
			if sign(got) != -sign(back) {
				t.Fatalf("getSide(%v) = %d but reverse = %d", w, got, back)
			}
			checked++
		}
	}
	if checked == 0 {
		t.Fatalf("no eligible walkers")
	}
}

func TestMinimizeIdempotent(t *testing.T) {
	e, rs := generate(t, Regular(7, 3), nil)
	n := len(e.treestates)
	if n != len(rs.States) {
		t.Fatalf("internal and exported state counts differ")
	}
	e.minimizeRules()
	if len(e.treestates) != n {
		t.Fatalf("second minimisation changed %d states to %d", n, len(e.treestates))
	}
}

func TestSpawnerParentRoundTrip(t *testing.T) {
	_, rs := generate(t, Regular(7, 3), nil)
	s := NewSpawner(rs)

	// materialise two generations of children
	var nonRoot []*SpawnNode
	for d := 0; d < len(s.Origin.nbr); d++ {
		child := s.Step(s.Origin, d)
		nonRoot = append(nonRoot, child)
		for dd := range child.nbr {
			if rs.States[child.State].Rules[dd] >= 0 {
				nonRoot = append(nonRoot, s.Step(child, dd))
			}
		}
	}

	for _, n := range nonRoot {
		ts := &rs.States[n.State]
		if ts.IsRoot {
			continue
		}
		if ts.Rules[0] != gotes.RuleParent {
			t.Fatalf("state %d: edge 0 is %v, want PARENT", n.State, ts.Rules[0])
		}
		parent := s.Step(n, 0)
		arr := n.Spin(0)
		ok := false
		for _, pl := range ts.PossibleParents {
			if pl.State == parent.State && pl.Dir == arr {
				ok = true
			}
		}
		if !ok && parent.Neighbor(arr) != n {
			t.Fatalf("state %d: parent (%d,%d) not in possible_parents", n.State, parent.State, arr)
		}
		if rs.States[parent.State].Rules[arr] >= 0 &&
			int(rs.States[parent.State].Rules[arr]) != n.State {
			t.Fatalf("parent rule at arrival edge names state %v, not %d",
				rs.States[parent.State].Rules[arr], n.State)
		}
	}
}

// gridResolver serves the square grid through the numerical interface.
type gridResolver struct{}

func (gridResolver) Origin() (gotes.ExtCell, int) { return [2]int{0, 0}, 0 }

func (gridResolver) Neighbor(ref gotes.ExtCell, d int) (gotes.ExtCell, int, int) {
	at := ref.([2]int)
	dx := [4]int{0, 1, 0, -1}
	dy := [4]int{1, 0, -1, 0}
	return [2]int{at[0] + dx[d], at[1] + dy[d]}, (d + 2) % 4, 0
}

func (gridResolver) KnownDistance(ref gotes.ExtCell) (int, bool) { return 0, false }

func TestNumericalSquareGrid(t *testing.T) {
	_, rsNum := generate(t, SquareGrid(4), func(c *gotes.Config) {
		c.Flags |= gotes.Numerical | gotes.NumericalFix
		c.Resolver = gridResolver{}
	})
	checkRuleSet(t, rsNum)

	_, rsArb := generate(t, SquareGrid(4), nil)
	if canonicalForm(rsNum) != canonicalForm(rsArb) {
		t.Errorf("numerical and tabular square grids disagree")
	}
}
