package dao

import (
	"context"
	"errors"
	"time"

	"ace/internal/common"
	"ace/internal/server/model"

	"gorm.io/gorm"
)

var nonTerminalRunStatuses = []string{
	model.RunStatusPending,
	model.RunStatusInProgress,
	model.RunStatusAwaitingVerification,
	model.RunStatusVerificationInProgress,
	model.RunStatusVerificationPassed,
	model.RunStatusVerificationFailed,
	model.RunStatusBlocked,
}

type RunDao interface {
	GetByUUID(ctx context.Context, runUUID string) (*model.Run, error)
	GetByTaskID(ctx context.Context, taskID uint) ([]*model.Run, error)
	Update(ctx context.Context, run *model.Run) error
	// ListActive returns non-terminal runs, optionally narrowed by status
	// and/or task id.
	ListActive(ctx context.Context, status string, taskID uint) ([]*model.Run, error)
	// CountStalled counts non-terminal runs untouched for staleAfter.
	CountStalled(ctx context.Context, staleAfter time.Duration) (int64, error)
}

type runDAO struct {
}

func NewRunDao() RunDao {
	return &runDAO{}
}

func (d *runDAO) GetByUUID(ctx context.Context, runUUID string) (*model.Run, error) {
	var run model.Run
	if err := db.WithContext(ctx).Where("run_uuid = ?", runUUID).Take(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NewErrNo(common.RunNotExists)
		}
		return nil, err
	}
	return &run, nil
}

func (d *runDAO) GetByTaskID(ctx context.Context, taskID uint) ([]*model.Run, error) {
	var runs []*model.Run
	if err := db.WithContext(ctx).Where("task_id = ?", taskID).Order("id ASC").Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

func (d *runDAO) Update(ctx context.Context, run *model.Run) error {
	return db.WithContext(ctx).Save(run).Error
}

func (d *runDAO) ListActive(ctx context.Context, status string, taskID uint) ([]*model.Run, error) {
	query := db.WithContext(ctx).Model(&model.Run{})
	if status != "" {
		query = query.Where("status = ?", status)
	} else {
		query = query.Where("status IN ?", nonTerminalRunStatuses)
	}
	if taskID != 0 {
		query = query.Where("task_id = ?", taskID)
	}
	var runs []*model.Run
	if err := query.Order("id ASC").Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

func (d *runDAO) CountStalled(ctx context.Context, staleAfter time.Duration) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&model.Run{}).
		Where("status IN ? AND updated_at < ?", nonTerminalRunStatuses, time.Now().Add(-staleAfter)).
		Count(&n).Error
	return n, err
}
