package funds

import "labfunds/internal/core"

// PolicyError is a rejected fund operation. Reason is safe to show to users;
// the kind decides how callers classify it.
type PolicyError struct {
	Reason string
	kind   error
}

func (e *PolicyError) Error() string { return e.Reason }
func (e *PolicyError) Unwrap() error { return e.kind }

var (
	ErrTimelineOver      = &PolicyError{"project timeline is over", core.ErrValidation}
	ErrLastPeriod        = &PolicyError{"cannot carry forward from the last period", core.ErrValidation}
	ErrAlreadyCarried    = &PolicyError{"carry forward already recorded for the current period", core.ErrValidation}
	ErrPeriodOutOfRange  = &PolicyError{"selected period is out of range", core.ErrValidation}
	ErrRedundantOverride = &PolicyError{"selected period is already the current period", core.ErrValidation}
	ErrNoOverride        = &PolicyError{"project has no override", core.ErrValidation}
	ErrCarryRecorded     = &PolicyError{"carry forward already recorded for that period", core.ErrConflict}
	ErrOverspend         = &PolicyError{"amount exceeds the remaining balance of the head", core.ErrValidation}
)
