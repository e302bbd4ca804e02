package libtes

import (
	"fmt"
	"time"

	"github.com/arcspace/go-arc-sdk/stdlib/symbol"
	"github.com/arcspace/go-arc-sdk/stdlib/symbol/memory_table"
	"github.com/emirpasic/gods/sets/hashset"
	"github.com/emirpasic/gods/trees/redblacktree"
	"github.com/plan-systems/klog"

	"github.com/tess-systems/gotes/gotes"
)

// Engine owns every piece of state of one rule-generation run: the cell
// graph, the shortcut database, analyzers, the side cache and the code
// table. It is single-threaded.
type Engine struct {
	tiling *gotes.Tiling
	cfg    gotes.Config

	firstCell *cell
	cellCount int
	unified   int
	moveCount int64

	fixQueue []func()
	inFixing bool

	origins   []walker
	important []walker
	bfsQueue  []*cell

	shortcuts map[int]*redblacktree.Tree
	sidecache map[walker]int
	analyzers map[aid]*analyzer

	codes      symbol.Table
	codeID     map[symbol.ID]int
	treestates []*treestate
	ruleRoot   int

	verifiedBranches *hashset.Set
	branchConflicts  *hashset.Set
	singleLiveBranch map[*cell]bool

	solidErrors    int
	allSolidErrors int
	hardParents    int
	parentUpdates  int
	singleLive     int
	doubleLive     int
	statesPreMini  int
	tryCount       int

	knownDist bool
	extOf     map[*cell]gotes.ExtCell
	cellOf    map[gotes.ExtCell]*cell

	startTime time.Time
}

// New prepares an engine for the given tiling. The tiling is read-only
// for the lifetime of the engine.
func New(t *gotes.Tiling, cfg gotes.Config) (*Engine, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Flags&gotes.SingleOrigin != 0 && (cfg.OriginID < 0 || cfg.OriginID >= len(t.Shapes)) {
		return nil, gotes.ErrBadShapeIndex
	}
	e := &Engine{
		tiling: t,
		cfg:    cfg,
	}
	e.resetAll()
	return e, nil
}

// control-flow helpers; recovered at the driver boundary
func retry(reason string) {
	panic(&gotes.RetryError{Reason: reason})
}

func surrender(reason string) {
	panic(&gotes.SurrenderError{Reason: reason})
}

func failf(format string, args ...any) {
	panic(&gotes.FailureError{Reason: fmt.Sprintf(format, args...)})
}

func (e *Engine) checkTimeout() {
	if time.Since(e.startTime) > e.cfg.Timeout {
		surrender("timeout")
	}
}

func (e *Engine) clearCodes() {
	e.treestates = nil
	e.codeID = make(map[symbol.ID]int)
	tableOpts := memory_table.DefaultOpts()
	tbl, err := tableOpts.CreateTable()
	if err != nil {
		failf("code table: %v", err)
	}
	e.codes = tbl
	for c := e.firstCell; c != nil; c = c.next {
		c.code = unknown
	}
}

// cleanData drops the analyzers and resets the working set to the
// origins.
func (e *Engine) cleanData() {
	e.analyzers = make(map[aid]*analyzer)
	e.important = append([]walker(nil), e.origins...)
}

// cleanParents additionally forgets every parent choice.
func (e *Engine) cleanParents() {
	e.cleanData()
	e.sidecache = make(map[walker]int)
	for c := e.firstCell; c != nil; c = c.next {
		c.parentDir = unknown
	}
}

func (e *Engine) resetAll() {
	e.firstCell = nil
	e.cellCount = 0
	e.unified = 0
	e.moveCount = 0
	e.fixQueue = nil
	e.inFixing = false
	e.origins = nil
	e.important = nil
	e.bfsQueue = nil
	e.shortcuts = make(map[int]*redblacktree.Tree)
	e.sidecache = make(map[walker]int)
	e.analyzers = make(map[aid]*analyzer)
	e.clearCodes()
	e.verifiedBranches = hashset.New()
	e.branchConflicts = hashset.New()
	e.singleLiveBranch = make(map[*cell]bool)
	e.solidErrors = 0
	e.allSolidErrors = 0
	e.hardParents = 0
	e.parentUpdates = 0
	e.singleLive = 0
	e.doubleLive = 0
	e.statesPreMini = 0
	e.tryCount = 0
	e.knownDist = false
	e.extOf = make(map[*cell]gotes.ExtCell)
	e.cellOf = make(map[gotes.ExtCell]*cell)
}

// Cleanup drops everything the run materialised. After Cleanup no cell
// node remains reachable from the engine.
func (e *Engine) Cleanup() {
	e.resetAll()
}

// Stats returns the counters of the current or last run.
func (e *Engine) Stats() gotes.Stats {
	return gotes.Stats{
		CellCount:          e.cellCount,
		Unified:            e.unified,
		HardParents:        e.hardParents,
		SolidErrors:        e.allSolidErrors,
		SingleLiveBranches: e.singleLive,
		DoubleLiveBranches: e.doubleLive,
		StatesPreMini:      e.statesPreMini,
		Tries:              e.tryCount,
		Moves:              e.moveCount,
	}
}

func (e *Engine) seed() {
	switch {
	case e.cfg.Flags&gotes.Numerical != 0:
		ref, sid := e.cfg.Resolver.Origin()
		c := e.genCell(sid)
		e.cellOf[ref] = c
		e.extOf[c] = ref
		c.dist = 0
		if _, ok := e.cfg.Resolver.KnownDistance(ref); ok {
			e.knownDist = true
		}
		e.origins = append(e.origins, walker{c, 0})
	case e.cfg.Flags&gotes.SingleOrigin != 0:
		c := e.genCell(e.cfg.OriginID)
		c.dist = 0
		e.origins = append(e.origins, walker{c, 0})
	default:
		for i := range e.tiling.Shapes {
			c := e.genCell(i)
			c.dist = 0
			e.origins = append(e.origins, walker{c, 0})
		}
	}

	if e.cfg.Flags&gotes.BFSDistances != 0 {
		for _, o := range e.origins {
			e.bfsQueue = append(e.bfsQueue, o.at)
		}
	}

	e.important = append([]walker(nil), e.origins...)
}

// Generate runs the driver loop: seed, iterate until a clean fixpoint,
// minimise, and reshape the treestates into a RuleSet. Recoverable
// inconsistencies re-enter the iteration; exceeding a budget surrenders.
func (e *Engine) Generate() (rs *gotes.RuleSet, err error) {
	defer func() {
		if r := recover(); r != nil {
			switch v := r.(type) {
			case *gotes.RetryError:
				err = v
			case *gotes.SurrenderError:
				err = v
			case *gotes.FailureError:
				err = v
			default:
				panic(r)
			}
		}
	}()

	e.startTime = time.Now()
	e.resetAll()
	e.seed()

	for {
		e.checkTimeout()
		if e.runIteration() {
			break
		}
	}

	klog.V(2).Infof("rules generated: %d states using %d-%d cells, %d tries",
		len(e.treestates), e.cellCount, e.unified, e.tryCount)

	return e.buildRuleSet(), nil
}

func (e *Engine) runIteration() (done bool) {
	defer func() {
		if r := recover(); r != nil {
			if re, ok := r.(*gotes.RetryError); ok {
				if e.tryCount < e.cfg.MaxRetries {
					klog.V(3).Infof("retrying: %v", re.Reason)
					done = false
					return
				}
				surrender("max_retries exceeded: " + re.Reason)
			}
			panic(r)
		}
	}()
	e.rulesIteration()
	return true
}

// rulesIteration is one full pass: refresh codes over the working set,
// assign rules, propagate liveness, verify branches, minimise.
func (e *Engine) rulesIteration() {
	e.tryCount++

	if e.tryCount&(e.tryCount-1) == 0 && e.cfg.Flags&gotes.NoRestart == 0 {
		e.cleanData()
		e.cleanParents()
	}

	klog.V(3).Infof("attempt: %d", e.tryCount)

	e.clearCodes()
	e.parentUpdates = 0

	cq := append([]walker(nil), e.important...)

	for i := 0; i < len(cq); i++ {
		e.rulesIterationFor(&cq[i])
	}

	e.handleDistanceErrors()
	_, root := e.getCode(&e.origins[0])
	e.ruleRoot = root

	for id := 0; id < len(e.treestates); id++ {
		if !e.treestates[id].known {
			ws := e.treestates[id].whereSeen
			e.rulesIterationFor(&ws)
		}
	}

	n := len(e.important)

	// liveness propagation to fixpoint
	for newDeadends := -1; newDeadends != 0; {
		newDeadends = 0
		for _, ts := range e.treestates {
			if !ts.known || !ts.isLive {
				continue
			}
			children := 0
			for _, r := range ts.rules {
				if r >= 0 && e.treestates[r].isLive {
					children++
				}
			}
			if children == 0 {
				ts.isLive = false
				newDeadends++
			}
		}
	}

	e.handleDistanceErrors()
	e.verifiedBranches.Clear()

	q := len(e.singleLiveBranch)
	e.singleLive = 0
	e.doubleLive = 0
	e.branchConflicts.Clear()

	// dead roots: some of their branches must live
	for id := 0; id < len(e.treestates); id++ {
		ts := e.treestates[id]
		if !ts.isRoot || ts.isLive {
			continue
		}
		for i, r := range ts.rules {
			if r >= 0 {
				e.examineBranch(id, i, i)
				break
			}
		}
	}

	for id := 0; id < len(e.treestates); id++ {
		ts := e.treestates[id]
		if !ts.isLive {
			continue
		}
		r := append([]gotes.Rule(nil), ts.rules...)
		if len(r) == 0 {
			continue
		}
		lastLive := -1
		firstLive := -1
		qbranches := 0
		for i := range r {
			if r[i] >= 0 && e.treestates[r[i]].isLive {
				if firstLive == -1 {
					firstLive = i
				}
				if lastLive >= 0 {
					e.examineBranch(id, lastLive, i)
				}
				lastLive = i
				qbranches++
			}
		}
		if qbranches == 2 {
			e.doubleLive++
		}
		if firstLive == lastLive && ts.isRoot {
			klog.V(3).Infof("state %d has a single live branch", id)
			e.singleLive++
			g := ts.giver
			e.findSingleLiveBranch(&g)
		}
		if len(e.singleLiveBranch) != q {
			e.clearSideCache()
			retry("single live branch")
		}
		if ts.isRoot {
			e.examineBranch(id, lastLive, firstLive)
		}
	}

	for _, ts := range e.treestates {
		if ts.giver.at == nil {
			e.important = append(e.important, ts.whereSeen)
		}
	}

	e.handleDistanceErrors()
	if len(e.important) != n {
		retry("need more rules after examine")
	}

	e.minimizeRules()
	e.findPossibleParents()

	if len(e.important) != n {
		retry("need more rules after minimize")
	}
	e.handleDistanceErrors()
}

func (e *Engine) buildRuleSet() *gotes.RuleSet {
	rs := &gotes.RuleSet{
		Tiling: e.tiling,
		Root:   e.ruleRoot,
		States: make([]gotes.TreeState, len(e.treestates)),
	}
	for i, ts := range e.treestates {
		rs.States[i] = gotes.TreeState{
			ID:               ts.id,
			Sid:              ts.sid,
			ParentDir:        ts.parentDir,
			Rules:            append([]gotes.Rule(nil), ts.rules...),
			IsLive:           ts.isLive,
			IsRoot:           ts.isRoot,
			IsPossibleParent: ts.isPossibleParent,
			PossibleParents:  append([]gotes.ParentLink(nil), ts.possibleParents...),
		}
	}
	return rs
}
