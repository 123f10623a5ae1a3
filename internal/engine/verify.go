package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"ace/internal/server/model"

	"go.uber.org/zap"
)

// verify runs one independent verification attempt and appends its
// evidence record. The verifier only ever sees the task and the result;
// a verifier outage counts as a failed attempt, not a pass.
func (c *Controller) verify(ctx context.Context, result Result) (VerificationResult, error) {
	if err := c.transition(ctx, model.RunStatusVerificationInProgress, "independent verification", 80); err != nil {
		return VerificationResult{}, err
	}

	vctx, cancel := context.WithTimeout(ctx, c.eng.cfg.VerifyTimeout)
	vr, err := c.eng.verifier.Verify(vctx, *c.task, result)
	cancel()
	if err != nil {
		c.eng.log.Warn("verifier error",
			zap.String("run_id", c.run.RunUUID),
			zap.Error(err),
		)
		vr = VerificationResult{
			Passed: false,
			Checks: map[string]bool{},
			Errors: []string{"verifier error: " + err.Error()},
		}
	}

	c.run.VerificationAttempts++

	checks, _ := json.Marshal(vr.Checks)
	verrs, _ := json.Marshal(vr.Errors)
	rec := &model.VerificationRecord{
		RunUUID:  c.run.RunUUID,
		Attempt:  c.run.VerificationAttempts,
		Passed:   vr.Passed,
		Checks:   string(checks),
		Errors:   string(verrs),
		Evidence: vr.Evidence,
	}
	if err := c.eng.store.AppendVerification(ctx, rec); err != nil {
		c.run.VerificationAttempts--
		return VerificationResult{}, fmt.Errorf("persist verification record: %w", err)
	}

	c.eng.log.Info("verification attempt recorded",
		zap.String("run_id", c.run.RunUUID),
		zap.Int("attempt", rec.Attempt),
		zap.Bool("passed", vr.Passed),
	)
	return vr, nil
}
