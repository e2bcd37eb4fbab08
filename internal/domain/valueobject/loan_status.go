package valueobject

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// LoanStatus – immutable value object
// ---------------------------------------------------------------------------

// LoanStatus represents the lifecycle stage of a loan.
type LoanStatus struct {
	value string
}

const (
	loanStatusApplication = "application"
	loanStatusApproved    = "approved"
	loanStatusActive      = "active"
	loanStatusCompleted   = "completed"
	loanStatusDefaulted   = "defaulted"
)

var (
	LoanStatusApplication = LoanStatus{value: loanStatusApplication}
	LoanStatusApproved    = LoanStatus{value: loanStatusApproved}
	LoanStatusActive      = LoanStatus{value: loanStatusActive}
	LoanStatusCompleted   = LoanStatus{value: loanStatusCompleted}
	LoanStatusDefaulted   = LoanStatus{value: loanStatusDefaulted}
)

var validLoanStatuses = map[string]LoanStatus{
	loanStatusApplication: LoanStatusApplication,
	loanStatusApproved:    LoanStatusApproved,
	loanStatusActive:      LoanStatusActive,
	loanStatusCompleted:   LoanStatusCompleted,
	loanStatusDefaulted:   LoanStatusDefaulted,
}

// NewLoanStatus creates a LoanStatus from a raw string.
func NewLoanStatus(s string) (LoanStatus, error) {
	v, ok := validLoanStatuses[s]
	if !ok {
		return LoanStatus{}, fmt.Errorf("invalid loan status: %q", s)
	}
	return v, nil
}

// String returns the string representation of the status.
func (s LoanStatus) String() string { return s.value }

// IsZero returns true if the status has not been initialised.
func (s LoanStatus) IsZero() bool { return s.value == "" }

// Equal returns true when both statuses carry the same value.
func (s LoanStatus) Equal(other LoanStatus) bool { return s.value == other.value }

// IsTerminal reports whether no further transition can leave s.
func (s LoanStatus) IsTerminal() bool {
	return len(loanTransitions[s]) == 0
}

// ---------------------------------------------------------------------------
// LoanEvent – the inputs of the lifecycle state machine
// ---------------------------------------------------------------------------

// LoanEvent names a lifecycle trigger.
type LoanEvent string

const (
	LoanEventApprove  LoanEvent = "approve"
	LoanEventDisburse LoanEvent = "disburse"
	LoanEventComplete LoanEvent = "complete"
	LoanEventDefault  LoanEvent = "default"
)

// loanTransitions is the complete lifecycle. Any (state, event) pair not
// listed is rejected.
var loanTransitions = map[LoanStatus]map[LoanEvent]LoanStatus{
	LoanStatusApplication: {LoanEventApprove: LoanStatusApproved},
	LoanStatusApproved:    {LoanEventDisburse: LoanStatusActive},
	LoanStatusActive: {
		LoanEventComplete: LoanStatusCompleted,
		LoanEventDefault:  LoanStatusDefaulted,
	},
}

// Next returns the state reached by applying e to s.
func (s LoanStatus) Next(e LoanEvent) (LoanStatus, error) {
	next, ok := loanTransitions[s][e]
	if !ok {
		return s, fmt.Errorf("%w: cannot %s a loan in %q status", ErrInvalidStatusTransition, e, s.value)
	}
	return next, nil
}

// ---------------------------------------------------------------------------
// Sentinel errors
// ---------------------------------------------------------------------------

var (
	ErrInvalidStatusTransition = errors.New("invalid status transition")
)
