package gotes

import "errors"

// Errors
var (
	ErrBadTiling      = errors.New("bad tiling description")
	ErrBadShapeIndex  = errors.New("bad shape index")
	ErrBadCycleLength = errors.New("cycle length inconsistent with connections")
	ErrBadRuleToken   = errors.New("bad rule token")
	ErrBadRoot        = errors.New("undefined treestate as root")
	ErrMultipleParent = errors.New("multiple parent edges in treestate")
	ErrBadConfig      = errors.New("bad engine configuration")
	ErrBadCatalogKey  = errors.New("bad catalog key")
	ErrNotInCatalog   = errors.New("rule set not in catalog")
	ErrNoResolver     = errors.New("numerical mode requires a resolver")
)

// RetryError marks a recoverable inconsistency: the engine refreshed its
// working set and wants to re-enter the iteration. The driver consumes
// these internally; once the retry budget is exhausted the run
// surrenders instead.
type RetryError struct {
	Reason string
}

func (e *RetryError) Error() string { return "rulegen retry: " + e.Reason }

// SurrenderError marks an exhausted resource or an unimplemented case;
// the run is aborted with no partial output.
type SurrenderError struct {
	Reason string
}

func (e *SurrenderError) Error() string { return "rulegen surrender: " + e.Reason }

// FailureError marks a broken internal invariant. Seeing one is a bug.
type FailureError struct {
	Reason string
}

func (e *FailureError) Error() string { return "rulegen bug: " + e.Reason }

// IsSurrender reports whether err is a surrender diagnostic.
func IsSurrender(err error) bool {
	var s *SurrenderError
	return errors.As(err, &s)
}

// IsRetry reports whether err is a retry diagnostic.
func IsRetry(err error) bool {
	var r *RetryError
	return errors.As(err, &r)
}
