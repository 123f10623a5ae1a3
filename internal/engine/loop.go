package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

type loopKind int

const (
	loopSuccess loopKind = iota
	loopExhausted
	loopFatal
	loopCancelled
)

type loopResult struct {
	kind   loopKind
	reason string
}

// selfCorrect runs the bounded attempt loop. Every failed attempt feeds
// its reason back into the retry context before the next try; the loop
// gives up after MaxAttempts and hands the decision back to the caller.
func (c *Controller) selfCorrect(ctx context.Context) (Result, loopResult, error) {
	max := c.eng.cfg.MaxAttempts
	for attempt := 1; attempt <= max; attempt++ {
		if attempt > 1 {
			cancelled, err := c.cancelRequested(ctx)
			if err != nil {
				return Result{}, loopResult{}, err
			}
			if cancelled {
				return Result{}, loopResult{kind: loopCancelled}, nil
			}
		}

		c.rctx.Attempt = attempt
		step := fmt.Sprintf("executing attempt %d/%d", attempt, max)
		pct := 10 + 50*float64(attempt-1)/float64(max)
		if err := c.progressUpdate(ctx, step, pct); err != nil {
			return Result{}, loopResult{}, err
		}

		out := c.attempt(ctx)
		switch out.Kind {
		case OutcomeSuccess:
			return out.Result, loopResult{kind: loopSuccess}, nil
		case OutcomeFatal:
			return Result{}, loopResult{kind: loopFatal, reason: out.Reason}, nil
		case OutcomeRetryable:
			c.rctx.AddFailure(out.Reason)
			c.eng.log.Warn("attempt failed",
				zap.String("run_id", c.run.RunUUID),
				zap.Int("attempt", attempt),
				zap.String("reason", out.Reason),
			)
		}
	}
	return Result{}, loopResult{kind: loopExhausted, reason: c.lastFailure()}, nil
}

// attempt executes the capability once and classifies what came back.
// The self-review gate runs here: a result that fails the structural
// checks never leaves the loop as a success.
func (c *Controller) attempt(ctx context.Context) Outcome {
	actx, cancel := context.WithTimeout(ctx, c.eng.cfg.AttemptTimeout)
	defer cancel()

	result, err := c.capability.Execute(actx, *c.task, c.rctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fatal("execution cancelled: " + err.Error())
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return retryable("transient: attempt timed out")
		}
		var execErr *ExecutionError
		if errors.As(err, &execErr) {
			return retryable(execErr.Category() + ": " + execErr.Reason)
		}
		// 未分类的错误一律按transient处理，进重试循环
		return retryable("transient: " + err.Error())
	}

	if issues := StructuralIssues(result); len(issues) > 0 {
		return retryable("self-review failed: " + strings.Join(issues, "; "))
	}
	return success(result)
}

func (c *Controller) lastFailure() string {
	if n := len(c.rctx.FailureReasons); n > 0 {
		return c.rctx.FailureReasons[n-1]
	}
	return "attempts exhausted"
}

func joinNonEmpty(parts []string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return "verification failed"
	}
	return strings.Join(kept, "; ")
}
