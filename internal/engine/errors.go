package engine

import "errors"

var (
	// ErrInvalidTransition reports a run state transition outside the
	// allowed table. It is a programming error and always fails loudly.
	ErrInvalidTransition = errors.New("invalid run state transition")

	// ErrNoCapability means no handler is registered for the task category.
	ErrNoCapability = errors.New("no capability registered for category")
)

// ExecutionError is the typed failure a capability returns. Transient
// failures (timeouts, flaky infrastructure) and structural failures (the
// produced work is wrong) both feed the retry loop; the categorization is
// recorded in the retry context so the next attempt sees it.
type ExecutionError struct {
	Reason    string
	Transient bool
}

func (e *ExecutionError) Error() string {
	return e.Reason
}

func (e *ExecutionError) Category() string {
	if e.Transient {
		return "transient"
	}
	return "structural"
}
