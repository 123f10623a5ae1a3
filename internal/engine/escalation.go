package engine

import (
	"context"
	"fmt"
	"time"

	"ace/internal/server/model"

	"go.uber.org/zap"
)

// EscalationReason names why a run was handed to a human.
type EscalationReason string

const (
	ReasonSelfCorrectionExhausted EscalationReason = "self_correction_exhausted"
	ReasonVerificationExhausted   EscalationReason = "verification_exhausted"
)

// SeverityForPriority maps task priority to alert severity. Priority 1 is
// the most urgent.
func SeverityForPriority(priority int) string {
	switch {
	case priority <= 2:
		return model.SeverityCritical
	case priority == 3:
		return model.SeverityHigh
	default:
		return model.SeverityMedium
	}
}

// escalate fires exactly one alert for the blocked run and parks it in
// escalated_to_human. The task stays in_progress on purpose: a frozen task
// cannot be re-claimed, the human decides what happens next.
//
// Alert creation precedes the terminal transition, so a crash in between
// leaves the run blocked with the alert already fired. The existence check
// keeps the replayed escalation at one alert per run.
func (c *Controller) escalate(ctx context.Context, reason EscalationReason, detail string) error {
	if detail == "" {
		detail = string(reason)
	}
	existing, err := c.eng.store.AlertByRun(ctx, c.run.RunUUID)
	if err != nil {
		return fmt.Errorf("load alert for run %s: %w", c.run.RunUUID, err)
	}
	var severity string
	if existing != nil {
		severity = existing.Severity
	} else {
		alert := &model.Alert{
			Rule:        string(reason),
			Severity:    SeverityForPriority(c.task.Priority),
			Title:       fmt.Sprintf("run %s needs human review", c.run.RunUUID),
			Message:     fmt.Sprintf("task %d (%s): %s", c.task.ID, c.task.Title, detail),
			Status:      model.AlertStatusFiring,
			RunUUID:     c.run.RunUUID,
			TriggeredAt: time.Now(),
		}
		if err := c.eng.store.CreateAlert(ctx, alert); err != nil {
			return fmt.Errorf("create alert: %w", err)
		}
		severity = alert.Severity
	}

	c.run.ErrorMessage = detail
	if err := c.transition(ctx, model.RunStatusEscalatedToHuman, "escalated to human review", 0); err != nil {
		return err
	}

	c.eng.log.Warn("run escalated",
		zap.String("run_id", c.run.RunUUID),
		zap.String("reason", string(reason)),
		zap.String("severity", severity),
	)
	return nil
}
