package libtes

import (
	"github.com/tess-systems/gotes/gotes"
)

// SpawnNode is one materialised face of the infinite tree a finished
// rule set describes.
type SpawnNode struct {
	State int
	Dist  int

	nbr []*SpawnNode
	rev []int
}

// Neighbor returns the already-materialised neighbour across edge d, or
// nil.
func (n *SpawnNode) Neighbor(d int) *SpawnNode { return n.nbr[d] }

// Spin returns the edge the neighbour across d arrives at.
func (n *SpawnNode) Spin(d int) int { return n.rev[d] }

// Spawner materialises tree nodes on demand from a rule set: child
// rules spawn fresh nodes, PARENT edges pick a compatible producer from
// the possible-parent table, and LEFT/RIGHT edges walk around the tree
// until the matching opposite rule is found.
type Spawner struct {
	rs     *gotes.RuleSet
	Origin *SpawnNode
}

func NewSpawner(rs *gotes.RuleSet) *Spawner {
	s := &Spawner{rs: rs}
	s.Origin = s.gen(rs.Root, 0)
	return s
}

func (s *Spawner) gen(state, dist int) *SpawnNode {
	deg := s.rs.Tiling.Shapes[s.rs.States[state].Sid].Size()
	return &SpawnNode{
		State: state,
		Dist:  dist,
		nbr:   make([]*SpawnNode, deg),
		rev:   make([]int, deg),
	}
}

func (s *Spawner) rule(n *SpawnNode, d int) gotes.Rule {
	return s.rs.States[n.State].Rules[d]
}

func connectNodes(a *SpawnNode, ad int, b *SpawnNode, bd int) {
	a.nbr[ad] = b
	a.rev[ad] = bd
	b.nbr[bd] = a
	b.rev[bd] = ad
}

// Step returns the neighbour of n across edge d, materialising it if
// necessary.
func (s *Spawner) Step(n *SpawnNode, d int) *SpawnNode {
	if n.nbr[d] != nil {
		return n.nbr[d]
	}
	r := s.rule(n, d)
	switch {
	case r >= 0:
		child := s.gen(int(r), n.Dist+1)
		connectNodes(n, d, child, 0)
		return child

	case r == gotes.RuleParent:
		choices := s.rs.States[n.State].PossibleParents
		if len(choices) == 0 {
			failf("no possible parents for state %d", n.State)
		}
		sel := choices[0]
		parent := s.gen(sel.State, n.Dist-1)
		connectNodes(n, d, parent, sel.Dir)
		return parent

	case r == gotes.RuleLeft || r == gotes.RuleRight:
		delta := -1
		rev := gotes.RuleRight
		if r == gotes.RuleRight {
			delta = 1
			rev = gotes.RuleLeft
		}
		at, spin := n, d
		spin = wrap(spin+delta, len(n.nbr))
		for {
			r1 := s.rule(at, spin)
			if r1 == rev {
				connectNodes(n, d, at, spin)
				return at
			}
			if r1 == r || r1 == gotes.RuleParent || r1 >= 0 {
				next := s.Step(at, spin)
				nd := at.rev[spin]
				at = next
				spin = wrap(nd+delta, len(at.nbr))
				continue
			}
			failf("bad rule while walking around the tree")
		}

	default:
		failf("bad rule %d", r)
	}
	return nil
}

func wrap(i, m int) int { return gmod(i, m) }
