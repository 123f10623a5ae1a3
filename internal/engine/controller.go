package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ace/internal/engine/broadcast"
	"ace/internal/server/model"

	"go.uber.org/zap"
)

// Transition is one recorded state change of a run.
type Transition struct {
	From string
	To   string
	At   time.Time
}

// allowedTransitions is the full legal transition table. Anything outside
// it is rejected with ErrInvalidTransition; states are never coerced.
var allowedTransitions = map[string]map[string]struct{}{
	model.RunStatusPending: {
		model.RunStatusInProgress: {},
		model.RunStatusFailed:     {},
		model.RunStatusCancelled:  {},
	},
	model.RunStatusInProgress: {
		model.RunStatusAwaitingVerification: {},
		model.RunStatusBlocked:              {},
		model.RunStatusFailed:               {},
		model.RunStatusCancelled:            {},
	},
	model.RunStatusAwaitingVerification: {
		model.RunStatusVerificationInProgress: {},
		model.RunStatusInProgress:             {},
		model.RunStatusFailed:                 {},
		model.RunStatusCancelled:              {},
	},
	model.RunStatusVerificationInProgress: {
		model.RunStatusVerificationPassed: {},
		model.RunStatusVerificationFailed: {},
		model.RunStatusInProgress:         {},
		model.RunStatusFailed:             {},
		model.RunStatusCancelled:          {},
	},
	model.RunStatusVerificationPassed: {
		model.RunStatusCompleted:  {},
		model.RunStatusInProgress: {},
		model.RunStatusFailed:     {},
		model.RunStatusCancelled:  {},
	},
	model.RunStatusVerificationFailed: {
		model.RunStatusInProgress: {},
		model.RunStatusBlocked:    {},
		model.RunStatusFailed:     {},
		model.RunStatusCancelled:  {},
	},
	model.RunStatusBlocked: {
		model.RunStatusEscalatedToHuman: {},
		model.RunStatusFailed:           {},
		model.RunStatusCancelled:        {},
	},
	model.RunStatusCompleted:        {},
	model.RunStatusFailed:           {},
	model.RunStatusEscalatedToHuman: {},
	model.RunStatusCancelled:        {},
}

func validateTransition(from, to string) error {
	allowed, ok := allowedTransitions[from]
	if !ok {
		return fmt.Errorf("%w: unknown source status %q", ErrInvalidTransition, from)
	}
	if _, ok := allowed[to]; !ok {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// Controller owns one run. All operations on the run go through it and are
// serialized by its mutex; different runs are driven by different
// controllers and never coordinate.
type Controller struct {
	eng        *Engine
	task       *model.Task
	run        *model.Run
	capability Capability
	rctx       *Context
	history    []Transition
	mu         sync.Mutex
}

func newController(eng *Engine, task *model.Task, run *model.Run) *Controller {
	return &Controller{
		eng:  eng,
		task: task,
		run:  run,
		rctx: &Context{},
	}
}

// Run drives the run to a terminal state. A returned error is a system
// error (storage failure); the run remains at its last persisted state so
// a later delivery can resume from durable truth.
func (c *Controller) Run(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if model.IsTerminalRunStatus(c.run.Status) {
		return nil
	}

	// capability解析一次，之后每次attempt都用同一个handler
	cap, ok := c.eng.caps[c.task.Category]
	if !ok {
		if c.run.Status == model.RunStatusPending {
			if err := c.transition(ctx, model.RunStatusInProgress, "resolving capability", 5); err != nil {
				return err
			}
		}
		return c.fail(ctx, fmt.Sprintf("%v: %s", ErrNoCapability, c.task.Category))
	}
	c.capability = cap
	c.run.Capability = cap.Name()

	// 从持久化状态进入循环。中断恢复时，执行产物没有落盘，
	// 验证中间态一律折回in_progress重新跑一个episode；计数器保留。
	switch c.run.Status {
	case model.RunStatusPending:
		if err := c.transition(ctx, model.RunStatusInProgress, "claimed by worker", 5); err != nil {
			return err
		}
	case model.RunStatusInProgress:
		if err := c.progressUpdate(ctx, "resumed after interruption", 0); err != nil {
			return err
		}
	case model.RunStatusBlocked:
		// 已经block但escalate没落盘：补上
		reason := ReasonSelfCorrectionExhausted
		if c.run.VerificationAttempts >= c.eng.cfg.MaxVerificationAttempts {
			reason = ReasonVerificationExhausted
		}
		return c.escalate(ctx, reason, c.run.ErrorMessage)
	case model.RunStatusVerificationFailed:
		if c.run.VerificationAttempts >= c.eng.cfg.MaxVerificationAttempts {
			if err := c.transition(ctx, model.RunStatusBlocked, "verification attempts exhausted", 0); err != nil {
				return err
			}
			return c.escalate(ctx, ReasonVerificationExhausted, c.run.ErrorMessage)
		}
		if err := c.transition(ctx, model.RunStatusInProgress, "resumed after interruption", 0); err != nil {
			return err
		}
	default:
		if err := c.transition(ctx, model.RunStatusInProgress, "resumed after interruption", 0); err != nil {
			return err
		}
	}

	for {
		cancelled, err := c.cancelRequested(ctx)
		if err != nil {
			return err
		}
		if cancelled {
			return c.cancel(ctx)
		}

		result, lr, err := c.selfCorrect(ctx)
		if err != nil {
			return err
		}
		switch lr.kind {
		case loopCancelled:
			return c.cancel(ctx)
		case loopFatal:
			return c.fail(ctx, lr.reason)
		case loopExhausted:
			if err := c.transition(ctx, model.RunStatusBlocked, "self-correction attempts exhausted", 0); err != nil {
				return err
			}
			return c.escalate(ctx, ReasonSelfCorrectionExhausted, lr.reason)
		case loopSuccess:
		}

		if err := c.transition(ctx, model.RunStatusAwaitingVerification, "awaiting independent verification", 70); err != nil {
			return err
		}

		cancelled, err = c.cancelRequested(ctx)
		if err != nil {
			return err
		}
		if cancelled {
			return c.cancel(ctx)
		}

		vr, err := c.verify(ctx, result)
		if err != nil {
			return err
		}

		if vr.Passed {
			if err := c.transition(ctx, model.RunStatusVerificationPassed, "verification passed", 90); err != nil {
				return err
			}
			c.run.Result = result.Output
			c.run.ErrorMessage = ""
			if err := c.transition(ctx, model.RunStatusCompleted, "completed", 100); err != nil {
				return err
			}
			if err := c.eng.store.SetTaskStatus(ctx, c.task.ID, model.TaskStatusCompleted); err != nil {
				return fmt.Errorf("persist task status: %w", err)
			}
			return nil
		}

		detail := joinNonEmpty(vr.Errors)
		c.run.ErrorMessage = detail
		if err := c.transition(ctx, model.RunStatusVerificationFailed, "verification failed", 0); err != nil {
			return err
		}
		if c.run.VerificationAttempts >= c.eng.cfg.MaxVerificationAttempts {
			if err := c.transition(ctx, model.RunStatusBlocked, "verification attempts exhausted", 0); err != nil {
				return err
			}
			return c.escalate(ctx, ReasonVerificationExhausted, detail)
		}
		c.rctx.AddVerifierErrors(vr.Errors)
		if err := c.transition(ctx, model.RunStatusInProgress, "retrying after failed verification", 0); err != nil {
			return err
		}
	}
}

// transition validates, persists, records and publishes one state change.
// Progress below the current value is ignored: progress is monotonic for
// the whole non-terminal lifetime of a run.
func (c *Controller) transition(ctx context.Context, to, step string, progress float64) error {
	if err := validateTransition(c.run.Status, to); err != nil {
		return err
	}
	from := c.run.Status
	prevStep := c.run.CurrentStep
	prevProgress := c.run.ProgressPercent
	prevCompleted := c.run.CompletedAt
	now := time.Now()

	c.run.Status = to
	if step != "" {
		c.run.CurrentStep = step
	}
	if progress > c.run.ProgressPercent {
		c.run.ProgressPercent = progress
	}
	if model.IsTerminalRunStatus(to) && c.run.CompletedAt == nil {
		t := now
		if t.Before(c.run.StartedAt) {
			t = c.run.StartedAt
		}
		c.run.CompletedAt = &t
	}

	if err := c.eng.store.SaveRun(ctx, c.run); err != nil {
		// 落盘失败：内存回滚，run停留在最后一次持久化的状态
		c.run.Status = from
		c.run.CurrentStep = prevStep
		c.run.ProgressPercent = prevProgress
		c.run.CompletedAt = prevCompleted
		return fmt.Errorf("persist run %s: %w", c.run.RunUUID, err)
	}

	c.history = append(c.history, Transition{From: from, To: to, At: now})
	c.publish()
	c.eng.log.Info("run transition",
		zap.String("run_id", c.run.RunUUID),
		zap.String("from", from),
		zap.String("to", to),
	)
	return nil
}

// progressUpdate persists a step/progress change without a state change.
func (c *Controller) progressUpdate(ctx context.Context, step string, progress float64) error {
	prevStep := c.run.CurrentStep
	prevProgress := c.run.ProgressPercent

	c.run.CurrentStep = step
	if progress > c.run.ProgressPercent {
		c.run.ProgressPercent = progress
	}
	if err := c.eng.store.SaveRun(ctx, c.run); err != nil {
		c.run.CurrentStep = prevStep
		c.run.ProgressPercent = prevProgress
		return fmt.Errorf("persist run %s: %w", c.run.RunUUID, err)
	}
	c.publish()
	return nil
}

func (c *Controller) publish() {
	if c.eng.bus == nil {
		return
	}
	c.eng.bus.Publish(broadcast.Event{
		RunUUID:         c.run.RunUUID,
		TaskID:          c.task.ID,
		Status:          c.run.Status,
		ProgressPercent: c.run.ProgressPercent,
		CurrentStep:     c.run.CurrentStep,
		Timestamp:       time.Now(),
	})
}

// cancelRequested reloads the task status: cancellation is cooperative, a
// cancel request flips the task to cancelled and the controller honors it
// at the next checkpoint. In-flight capability or verifier calls finish.
func (c *Controller) cancelRequested(ctx context.Context) (bool, error) {
	status, err := c.eng.store.TaskStatus(ctx, c.task.ID)
	if err != nil {
		return false, fmt.Errorf("load task status: %w", err)
	}
	return status == model.TaskStatusCancelled, nil
}

func (c *Controller) cancel(ctx context.Context) error {
	return c.transition(ctx, model.RunStatusCancelled, "cancelled by request", 0)
}

func (c *Controller) fail(ctx context.Context, reason string) error {
	c.run.ErrorMessage = reason
	if err := c.transition(ctx, model.RunStatusFailed, "failed", 0); err != nil {
		return err
	}
	if err := c.eng.store.SetTaskStatus(ctx, c.task.ID, model.TaskStatusFailed); err != nil {
		return fmt.Errorf("persist task status: %w", err)
	}
	return nil
}

// History returns the recorded transitions of this run.
func (c *Controller) History() []Transition {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Transition, len(c.history))
	copy(out, c.history)
	return out
}
