package dao

import (
	"context"
	"time"

	"ace/internal/common"
	"ace/internal/engine"
	"ace/internal/server/model"
)

// EngineStore adapts the daos to the narrow store surface the run engine
// writes through.
type EngineStore struct {
	tasks         TaskDao
	runs          RunDao
	verifications VerificationDao
	alerts        AlertDao
}

var _ engine.Store = (*EngineStore)(nil)

func NewEngineStore() *EngineStore {
	return &EngineStore{
		tasks:         NewTaskDao(),
		runs:          NewRunDao(),
		verifications: NewVerificationDao(),
		alerts:        NewAlertDao(),
	}
}

func (s *EngineStore) ClaimNext(ctx context.Context) (*model.Task, *model.Run, error) {
	return s.tasks.ClaimNext(ctx)
}

func (s *EngineStore) ReclaimStalled(ctx context.Context, staleAfter time.Duration) (*model.Task, *model.Run, error) {
	return s.tasks.ReclaimStalled(ctx, staleAfter)
}

func (s *EngineStore) SaveRun(ctx context.Context, run *model.Run) error {
	return s.runs.Update(ctx, run)
}

func (s *EngineStore) AppendVerification(ctx context.Context, rec *model.VerificationRecord) error {
	return s.verifications.Append(ctx, rec)
}

func (s *EngineStore) CreateAlert(ctx context.Context, alert *model.Alert) error {
	return s.alerts.Create(ctx, alert)
}

func (s *EngineStore) AlertByRun(ctx context.Context, runUUID string) (*model.Alert, error) {
	alert, err := s.alerts.GetByRunUUID(ctx, runUUID)
	if common.IsErrCode(err, common.AlertNotExists) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return alert, nil
}

func (s *EngineStore) TaskStatus(ctx context.Context, taskID uint) (string, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return "", err
	}
	return task.Status, nil
}

func (s *EngineStore) SetTaskStatus(ctx context.Context, taskID uint, status string) error {
	return s.tasks.SetStatus(ctx, taskID, status)
}
