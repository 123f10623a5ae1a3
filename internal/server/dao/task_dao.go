package dao

import (
	"context"
	"errors"
	"time"

	"ace/internal/common"
	"ace/internal/server/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// claimRetries bounds how often ClaimNext re-picks a candidate after losing
// the compare-and-swap to a concurrent claimer.
const claimRetries = 5

type TaskDao interface {
	Create(ctx context.Context, task *model.Task) error
	GetByID(ctx context.Context, id uint) (*model.Task, error)
	List(ctx context.Context, status, category string, page, pageSize int) ([]*model.Task, int64, error)
	// ClaimNext atomically hands out the pending task with the lowest priority
	// number (oldest first on ties) and creates its run. Returns nil task when
	// the queue is empty.
	ClaimNext(ctx context.Context) (*model.Task, *model.Run, error)
	// ReclaimStalled atomically re-adopts one non-terminal run whose last
	// update is older than staleAfter, together with its task. Returns nil
	// task when nothing is stalled.
	ReclaimStalled(ctx context.Context, staleAfter time.Duration) (*model.Task, *model.Run, error)
	// Cancel is idempotent: cancelling an already cancelled or terminal task
	// is a no-op and not an error.
	Cancel(ctx context.Context, id uint) error
	SetStatus(ctx context.Context, id uint, status string) error
	CountPending(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (map[string]int64, map[string]int64, error)
}

type taskDAO struct {
}

func NewTaskDao() TaskDao {
	return &taskDAO{}
}

func (d *taskDAO) Create(ctx context.Context, task *model.Task) error {
	return db.WithContext(ctx).Create(task).Error
}

func (d *taskDAO) GetByID(ctx context.Context, id uint) (*model.Task, error) {
	var task model.Task
	if err := db.WithContext(ctx).Where("id = ?", id).Take(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NewErrNo(common.TaskNotExists)
		}
		return nil, err
	}
	return &task, nil
}

func (d *taskDAO) List(ctx context.Context, status, category string, page, pageSize int) ([]*model.Task, int64, error) {
	query := db.WithContext(ctx).Model(&model.Task{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if category != "" {
		query = query.Where("category = ?", category)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var tasks []*model.Task
	err := query.
		Order("priority ASC, created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&tasks).Error
	if err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

func (d *taskDAO) ClaimNext(ctx context.Context) (*model.Task, *model.Run, error) {
	for i := 0; i < claimRetries; i++ {
		var task model.Task
		err := db.WithContext(ctx).
			Where("status = ?", model.TaskStatusPending).
			Order("priority ASC, created_at ASC, id ASC").
			Take(&task).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil
		}
		if err != nil {
			return nil, nil, err
		}

		// 单语句CAS：两个并发claimer只有一个能把pending翻成in_progress
		res := db.WithContext(ctx).Model(&model.Task{}).
			Where("id = ? AND status = ?", task.ID, model.TaskStatusPending).
			Update("status", model.TaskStatusInProgress)
		if res.Error != nil {
			return nil, nil, res.Error
		}
		if res.RowsAffected == 0 {
			// lost the race, pick another candidate
			continue
		}
		task.Status = model.TaskStatusInProgress

		run := &model.Run{
			RunUUID:   uuid.NewString(),
			TaskID:    task.ID,
			Status:    model.RunStatusPending,
			StartedAt: time.Now(),
		}
		if err := db.WithContext(ctx).Create(run).Error; err != nil {
			// release the claim so another worker can pick the task up later
			d.releaseClaim(ctx, task.ID)
			return nil, nil, err
		}
		return &task, run, nil
	}
	return nil, nil, nil
}

// releaseClaim puts a claimed task back to pending. Conditional on the row
// still being in_progress: a cancel that landed in the claim window wins.
func (d *taskDAO) releaseClaim(ctx context.Context, id uint) {
	db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ? AND status = ?", id, model.TaskStatusInProgress).
		Update("status", model.TaskStatusPending)
}

func (d *taskDAO) ReclaimStalled(ctx context.Context, staleAfter time.Duration) (*model.Task, *model.Run, error) {
	cutoff := time.Now().Add(-staleAfter)
	for i := 0; i < claimRetries; i++ {
		var run model.Run
		err := db.WithContext(ctx).
			Where("status IN ? AND updated_at < ?", nonTerminalRunStatuses, cutoff).
			Order("updated_at ASC").
			Take(&run).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil
		}
		if err != nil {
			return nil, nil, err
		}

		// 接管CAS：Update会刷新updated_at，并发reclaimer只有一个能命中旧行
		res := db.WithContext(ctx).Model(&model.Run{}).
			Where("id = ? AND status IN ? AND updated_at < ?", run.ID, nonTerminalRunStatuses, cutoff).
			Update("current_step", "re-adopted after interruption")
		if res.Error != nil {
			return nil, nil, res.Error
		}
		if res.RowsAffected == 0 {
			// lost the race, pick another candidate
			continue
		}
		run.CurrentStep = "re-adopted after interruption"

		var task model.Task
		if err := db.WithContext(ctx).Where("id = ?", run.TaskID).Take(&task).Error; err != nil {
			return nil, nil, err
		}
		return &task, &run, nil
	}
	return nil, nil, nil
}

func (d *taskDAO) Cancel(ctx context.Context, id uint) error {
	if _, err := d.GetByID(ctx, id); err != nil {
		return err
	}
	// Only pending/in_progress rows change; terminal rows are left untouched.
	return db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ? AND status IN ?", id, []string{model.TaskStatusPending, model.TaskStatusInProgress}).
		Update("status", model.TaskStatusCancelled).Error
}

func (d *taskDAO) SetStatus(ctx context.Context, id uint, status string) error {
	return db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (d *taskDAO) CountPending(ctx context.Context) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&model.Task{}).
		Where("status = ?", model.TaskStatusPending).
		Count(&n).Error
	return n, err
}

func (d *taskDAO) Stats(ctx context.Context) (map[string]int64, map[string]int64, error) {
	type row struct {
		Status   string
		Category string
	}
	var rows []row
	if err := db.WithContext(ctx).Model(&model.Task{}).
		Select("status", "category").
		Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	byStatus := make(map[string]int64)
	byCategory := make(map[string]int64)
	for _, r := range rows {
		byStatus[r.Status]++
		byCategory[r.Category]++
	}
	return byStatus, byCategory, nil
}
