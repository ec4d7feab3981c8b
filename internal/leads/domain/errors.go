package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrLeadNotFound is returned when the lead id does not exist.
	ErrLeadNotFound = errors.New("lead not found")
	// ErrConflict is returned when a concurrent write kept the transaction
	// from committing. The operation may be retried.
	ErrConflict = errors.New("lead was modified concurrently")
	// ErrTimeout is returned when a lifecycle operation hit its deadline.
	// Nothing was committed.
	ErrTimeout = errors.New("lifecycle operation timed out")
)

// UnknownStateError reports a state value outside the catalog.
type UnknownStateError struct {
	Value string
}

func (e *UnknownStateError) Error() string {
	return fmt.Sprintf("unknown lifecycle state %q", e.Value)
}

// InvalidTransitionError reports a requested backward move. Callers treating
// progression as best-effort can match it with errors.As and carry on.
type InvalidTransitionError struct {
	LeadID uuid.UUID
	From   State
	To     State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("lead %s cannot move backwards from %s to %s", e.LeadID, e.From, e.To)
}

// IsPolicyViolation reports whether err is an invalid transition or an
// unknown state, the errors a caller can never fix by retrying.
func IsPolicyViolation(err error) bool {
	var invalid *InvalidTransitionError
	var unknown *UnknownStateError
	return errors.As(err, &invalid) || errors.As(err, &unknown)
}
