package gotes

import "time"

// Flags gate specific strategy paths in the engine. The defaults (no
// flags) are the recommended configuration; most flags make runs slower
// or weaker and exist for comparison and testing.
type Flags uint32

const (
	// Numerical builds the cell graph through a NeighborResolver
	// instead of the shape connection tables.
	Numerical Flags = 1 << iota
	// NearSolid stops solidification from propagating to the nearer
	// neighbour chain.
	NearSolid
	// NoShortcut disables shortcut generation entirely.
	NoShortcut
	// NoRestart disables the full data cleanse on power-of-two retries.
	NoRestart
	// NoSideCache disables caching of side-oracle results.
	NoSideCache
	// NoRelativeDistance drops relative distances from codes, keeping
	// only the side bit. This loses discrimination.
	NoRelativeDistance
	// ExamineOnce restarts after the first conflict found while
	// examining branches.
	ExamineOnce
	// ExamineAll records every branch conflict even if already known.
	ExamineAll
	// ConflictAll keeps extending analyzers through all conflicts of a
	// rule mismatch before retrying.
	ConflictAll
	// ParentAlways always resolves parents through the exhaustive
	// comparison, skipping the rotational rank.
	ParentAlways
	// ParentNever fails instead of falling back to the exhaustive
	// comparison on a confused parent choice.
	ParentNever
	// AlwaysClean restarts the derived data after any distance error.
	AlwaysClean
	// SingleOrigin seeds one origin of Config.OriginID instead of one
	// origin per shape.
	SingleOrigin
	// SlowSide disables the fast path of the side oracle.
	SlowSide
	// BFSDistances computes distances with a global BFS queue instead
	// of lazy relaxation.
	BFSDistances
	// NumericalFix closes filled vertices while running numerically.
	NumericalFix
	// NoSmartShortcuts disables the lazy early-abort shortcut walk.
	NoSmartShortcuts
	// LessSmartRetrace keeps retracing a smart shortcut's pre route
	// through missing neighbours instead of aborting early.
	LessSmartRetrace
	// LessSmartAdvance keeps advancing a smart shortcut's post route
	// through missing neighbours instead of aborting early.
	LessSmartAdvance

	// ParentReverse and ParentSide are declared for completeness but
	// rejected by validation; the side-path parent selection they would
	// enable is unsound.
	ParentReverse
	ParentSide
)

// Config carries the tunables of a generation run. The zero value is
// not runnable; start from DefaultConfig.
type Config struct {
	// MaxRetries bounds recoverable restarts before surrendering.
	MaxRetries int
	// MaxCellCount is a hard cap on materialised cells.
	MaxCellCount int
	// MaxAdvSteps bounds the exhaustive parent comparison.
	MaxAdvSteps int
	// MaxExamineBranch bounds one branch examination.
	MaxExamineBranch int
	// MaxGetSide bounds one side-oracle query.
	MaxGetSide int
	// Timeout is the wall-clock budget; zero surrenders immediately.
	Timeout time.Duration

	Flags Flags

	// OriginID selects the seed shape under SingleOrigin.
	OriginID int
	// Resolver supplies adjacency under Numerical.
	Resolver NeighborResolver
}

// DefaultConfig returns the standard limits.
func DefaultConfig() Config {
	return Config{
		MaxRetries:       999,
		MaxCellCount:     1000000,
		MaxAdvSteps:      100,
		MaxExamineBranch: 5040,
		MaxGetSide:       10000,
		Timeout:          60 * time.Second,
	}
}

// Validate rejects configurations the engine cannot honour.
func (c *Config) Validate() error {
	if c.MaxRetries < 0 || c.MaxCellCount <= 0 {
		return ErrBadConfig
	}
	if c.Flags&(ParentReverse|ParentSide) != 0 {
		return ErrBadConfig
	}
	if c.Flags&ParentAlways != 0 && c.Flags&ParentNever != 0 {
		return ErrBadConfig
	}
	if c.Flags&Numerical != 0 && c.Resolver == nil {
		return ErrNoResolver
	}
	return nil
}
