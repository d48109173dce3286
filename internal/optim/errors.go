package optim

import (
	"errors"
	"fmt"
)

var (
	// ErrSearchDone is returned when a converged search is asked to advance.
	ErrSearchDone = errors.New("optim: search already converged")

	// ErrInvalidTolerance indicates a non-positive stopping tolerance.
	ErrInvalidTolerance = errors.New("optim: tolerance must be positive")

	// ErrInvalidStep indicates a negative step size.
	ErrInvalidStep = errors.New("optim: step sizes must be non-negative")

	// ErrInvalidBracket indicates a search interval with a >= b.
	ErrInvalidBracket = errors.New("optim: bracket must satisfy a < b")

	// ErrUnknownPhase is wrapped by PhaseError when a state machine finds
	// itself in a phase it has no transition for.
	ErrUnknownPhase = errors.New("optim: unknown phase")
)

// PhaseError reports which machine and phase rejected a call.
type PhaseError struct {
	Machine string
	Phase   fmt.Stringer
	Wrapped error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s in phase %s: %v", e.Machine, e.Phase, e.Wrapped)
}

func (e *PhaseError) Unwrap() error {
	return e.Wrapped
}
