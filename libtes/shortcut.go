package libtes

import (
	"fmt"
	"strings"

	"github.com/emirpasic/gods/trees/redblacktree"
	"github.com/plan-systems/klog"

	"github.com/tess-systems/gotes/gotes"
)

// a shortcut says: from any cell of its shape, walking pre reaches the
// same cell as walking post (rotated by delta), and the post route is
// strictly shorter in the tree. Applying one can prove two cells named
// apart are one face, or that a distance must come down.
type shortcut struct {
	pre     []int
	post    []int
	sample  *cell
	delta   int
	lastDir int
}

const maxShortcutLen = 500

func shortcutKey(pre, post []int) string {
	var sb strings.Builder
	for _, v := range pre {
		fmt.Fprintf(&sb, "%d.", v)
	}
	sb.WriteByte('|')
	for _, v := range post {
		fmt.Fprintf(&sb, "%d.", v)
	}
	return sb.String()
}

func (e *Engine) shortcutsFor(id int) *redblacktree.Tree {
	t := e.shortcuts[id]
	if t == nil {
		t = redblacktree.NewWithStringComparator()
		e.shortcuts[id] = t
	}
	return t
}

// shortcutFound assembles the pre/post edge sequences out of the two
// descent traces and, unless the pair is already known, stores the
// shortcut and immediately applies it to every existing cell of the
// shape.
func (e *Engine) shortcutFound(c *cell, walkers, walkers2 []walker, walkerdir, walkerdir2 []int, wpos int) {
	var pre []int
	for i := wpos; i >= 1; i-- {
		pre = append(pre, walkerdir[i])
	}
	reverseInts(pre)

	var post []int
	for i := len(walkers2) - 1; i >= 1; i-- {
		post = append(post, walkerdir2[i])
	}
	reverseInts(post)

	delta := walkers[wpos].toSpin(walkers2[len(walkers2)-1].spin)

	tree := e.shortcutsFor(c.id)
	key := shortcutKey(pre, post)
	if _, found := tree.Get(key); found {
		klog.V(3).Infof("already knew that %v ~ %v", pre, post)
		return
	}

	klog.V(2).Infof("new shortcut found, pre = %v post = %v of shape %d", pre, post, c.id)

	if len(pre) > maxShortcutLen {
		failf("shortcut too long")
	}

	sh := &shortcut{
		pre:     pre,
		post:    post,
		sample:  c,
		delta:   delta,
		lastDir: c.anyNearer,
	}
	tree.Put(key, sh)

	for c1 := e.firstCell; c1 != nil; c1 = c1.next {
		if c1.id == c.id {
			e.lookForShortcuts(c1, sh)
		}
	}
}

// findNewShortcuts handles a solid distance error on c: descend the
// parent chain under the old direction, then under the new one, until a
// common cell exhibits the two routes that disagree.
func (e *Engine) findNewShortcuts(c *cell, d int, alt *cell, newdir, delta int) {
	e.solidErrors++
	e.allSolidErrors++
	e.checkTimeout()
	if e.cfg.Flags&gotes.NoShortcut != 0 {
		return
	}
	if e.knownDist {
		return
	}

	c = e.canon(c)
	klog.V(3).Infof("solid %p changes %d to %d", c, c.dist, d)

	if newdir == c.anyNearer {
		return
	}

	if c.dist == unknown {
		failf("find_new_shortcuts with unknown distance")
	}

	seen := map[*cell]int{}
	var walkers []walker
	walkerdir := []int{-1}
	seen[c] = 0
	walkers = append(walkers, walker{c, 0})

	for j := 0; j < len(walkers); j++ {
		w := walkers[j]
		if w.at.dist == 0 {
			break
		}
		for s := 0; s < w.at.deg; s++ {
			w1 := w.plus(s)
			if w1.peek() != nil && w1.spin == w.at.anyNearer {
				if _, ok := seen[w1.peek()]; !ok {
					seen[w1.peek()] = len(walkers)
					walkers = append(walkers, e.wstep(w1))
					walkerdir = append(walkerdir, s)
				}
			}
		}
	}

	seen2 := map[*cell]bool{}
	c.dist = d
	c.anyNearer = gmod(newdir, c.deg)
	e.fixDistances(c)
	var walkers2 []walker
	walkerdir2 := []int{-1}
	walkers2 = append(walkers2, walker{alt, gmod(delta, alt.deg)})
	for j := 0; j < len(walkers2); j++ {
		w := walkers2[j]
		if w.at.dist == 0 {
			break
		}
		for s := 0; s < w.at.deg; s++ {
			w1 := w.plus(s)
			ufind(&w1)
			if w1.spin != w.at.anyNearer {
				continue
			}
			if w1.peek() == nil {
				continue
			}
			if seen2[w1.peek()] {
				break
			}
			seen2[w1.peek()] = true
			walkers2 = append(walkers2, e.wstep(w1))
			walkerdir2 = append(walkerdir2, s)
			if wpos, ok := seen[w1.peek()]; ok {
				e.shortcutFound(c, walkers, walkers2, walkerdir, walkerdir2, wpos)
				return
			}
		}
	}
}

// lookForShortcuts applies one shortcut to c. The smart mode walks
// lazily and aborts as soon as it can prove nothing would shorten; the
// plain mode always walks both routes to completion.
func (e *Engine) lookForShortcuts(c *cell, sh *shortcut) {
	if c.dist <= 0 {
		return
	}
	if e.cfg.Flags&gotes.NoSmartShortcuts == 0 {
		e.lookForShortcutsSmart(c, sh)
	} else {
		e.lookForShortcutsPlain(c, sh)
	}
}

func (e *Engine) lookForShortcutsSmart(c *cell, sh *shortcut) {
	tw0 := walker{c, 0}
	tw := walker{c, 0}
	ufind(&tw)
	ufind(&tw0)

	for _, v := range sh.pre {
		tw = tw.plus(v)
		if tw.peek() == nil && e.cfg.Flags&gotes.LessSmartRetrace == 0 {
			return
		}
		ufind(&tw)
		tw = e.wstep(tw)
		e.calcDistances(tw.at)
	}

	moreSteps := len(sh.post)
	d := e.tiling.Shapes[c.id].CycleLength
	if sh.lastDir%d < c.anyNearer%d {
		moreSteps--
	}

	tw = tw.plus(sh.delta)

	for it := len(sh.post) - 1; it >= 0; it-- {
		v := sh.post[it]
		ufind(&tw)
		if tw.peek() == nil && tw.at.dist+moreSteps > c.dist && e.cfg.Flags&gotes.LessSmartAdvance == 0 {
			return
		}
		tw = e.wstep(tw)
		e.calcDistances(tw.at)
		moreSteps--
		tw = tw.plus(-v)
	}

	e.processFixQueue()
	if tw.at.dist < c.dist {
		klog.V(3).Infof("smart shortcut updated %d to %d", c.dist, tw.at.dist)
	}
	e.pushUnify(tw, tw0)
	e.processFixQueue()
}

func (e *Engine) lookForShortcutsPlain(c *cell, sh *shortcut) {
	tw0 := walker{c, 0}
	tw := walker{c, 0}
	ufind(&tw)
	ufind(&tw0)

	for _, v := range sh.pre {
		tw = tw.plus(v)
		if tw.peek() == nil {
			return
		}
		if tw.peek().dist != tw.at.dist-1 {
			return
		}
		ufind(&tw)
		tw = e.wstep(tw)
	}

	ufind(&tw0)
	var npath []*cell
	for _, v := range sh.post {
		npath = append(npath, tw0.at)
		tw0 = tw0.plus(v)
		ufind(&tw0)
		tw0 = e.wstep(tw0)
		e.calcDistances(tw0.at)
	}
	npath = append(npath, tw0.at)

	tw1 := tw.plus(sh.delta)
	if tw1.at.id != tw0.at.id {
		klog.Errorf("improper shortcut")
	} else {
		e.pushUnify(tw1, tw0)
	}
	e.processFixQueue()
	for _, t := range npath {
		t = e.canon(t)
		e.fixDistances(t)
	}
}

// lookForShortcutsAll replays every known shortcut of c's shape on c.
func (e *Engine) lookForShortcutsAll(c *cell) {
	if c.dist <= 0 {
		return
	}
	tree := e.shortcuts[c.id]
	if tree == nil {
		return
	}
	// snapshot: applying a shortcut may discover further ones
	vals := tree.Values()
	for _, v := range vals {
		e.lookForShortcuts(c, v.(*shortcut))
	}
}

func reverseInts(v []int) {
	for i, j := 0, len(v)-1; i < j; i, j = i+1, j-1 {
		v[i], v[j] = v[j], v[i]
	}
}
