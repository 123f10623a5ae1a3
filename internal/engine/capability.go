package engine

import (
	"context"
	"time"

	"ace/internal/server/model"
)

// Result is what a capability produces for a task. Artifacts and Effects
// are the side effects the capability declares; self-review and the
// verifier both check the declarations against reality.
type Result struct {
	Output    string
	Artifacts []string
	Effects   []string
}

// Capability attempts a task once. Implementations return *ExecutionError
// for domain failures; any other error is treated as transient.
type Capability interface {
	Execute(ctx context.Context, task model.Task, rctx *Context) (Result, error)
	Name() string
}

// VerificationResult is the verdict of one independent verification attempt.
type VerificationResult struct {
	Passed   bool
	Checks   map[string]bool
	Errors   []string
	Evidence string
}

// Verifier judges a produced result against the task. It receives only the
// task and the result, never the producer's retry context or self-report,
// so a pass can only come from its own checks.
type Verifier interface {
	Verify(ctx context.Context, task model.Task, result Result) (VerificationResult, error)
}

// Store is the narrow slice of the run store the engine mutates. All
// engine writes go through it; a failing write is a system error that
// leaves the run at its last durably persisted state.
type Store interface {
	ClaimNext(ctx context.Context) (*model.Task, *model.Run, error)
	// ReclaimStalled atomically re-adopts one non-terminal run that has
	// not been touched for staleAfter, with its task. (nil, nil, nil)
	// means nothing is stalled.
	ReclaimStalled(ctx context.Context, staleAfter time.Duration) (*model.Task, *model.Run, error)
	SaveRun(ctx context.Context, run *model.Run) error
	AppendVerification(ctx context.Context, rec *model.VerificationRecord) error
	CreateAlert(ctx context.Context, alert *model.Alert) error
	// AlertByRun returns the run's alert, or nil when none was fired.
	AlertByRun(ctx context.Context, runUUID string) (*model.Alert, error)
	TaskStatus(ctx context.Context, taskID uint) (string, error)
	SetTaskStatus(ctx context.Context, taskID uint, status string) error
}
