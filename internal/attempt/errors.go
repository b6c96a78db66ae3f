package attempt

import (
	"errors"
	"fmt"

	"github.com/mind-engage/mindengage-clab/internal/course"
)

var (
	// ErrExerciseNotFound is fatal for an attempt: the caller should abort
	// attempt creation and navigate away.
	ErrExerciseNotFound = course.ErrExerciseNotFound

	ErrInvalidTransition = errors.New("invalid attempt transition")
	ErrSubmitInFlight    = errors.New("a submission is already in flight")
	ErrAlreadySubmitted  = errors.New("attempt already submitted")
	ErrClosed            = errors.New("attempt abandoned")
	ErrNotStudent        = errors.New("only students can start an attempt")
	ErrWrongKind         = errors.New("answer does not match the exercise kind")
)

// ValidationError rejects a manual submission or an answer change before any
// state transition. The student edits and tries again.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// PersistenceError wraps a failed write of the submission record. The attempt
// is back in an actionable state with its draft intact.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return "could not save your submission, please retry: " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Retryable() bool { return true }

func transitionErr(op string, s State) error {
	if s == Abandoned {
		return ErrClosed
	}
	return fmt.Errorf("%w: cannot %s while %s", ErrInvalidTransition, op, s)
}
