package dao

import (
	"context"
	"errors"
	"time"

	"ace/internal/common"
	"ace/internal/server/model"

	"gorm.io/gorm"
)

type AlertDao interface {
	Create(ctx context.Context, alert *model.Alert) error
	GetByID(ctx context.Context, id uint) (*model.Alert, error)
	GetByRunUUID(ctx context.Context, runUUID string) (*model.Alert, error)
	List(ctx context.Context, status string) ([]*model.Alert, error)
	Acknowledge(ctx context.Context, id uint) error
	Resolve(ctx context.Context, id uint) error
}

type alertDAO struct {
}

func NewAlertDao() AlertDao {
	return &alertDAO{}
}

func (d *alertDAO) Create(ctx context.Context, alert *model.Alert) error {
	return db.WithContext(ctx).Create(alert).Error
}

func (d *alertDAO) GetByID(ctx context.Context, id uint) (*model.Alert, error) {
	var alert model.Alert
	if err := db.WithContext(ctx).Where("id = ?", id).Take(&alert).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NewErrNo(common.AlertNotExists)
		}
		return nil, err
	}
	return &alert, nil
}

func (d *alertDAO) GetByRunUUID(ctx context.Context, runUUID string) (*model.Alert, error) {
	var alert model.Alert
	if err := db.WithContext(ctx).Where("run_uuid = ?", runUUID).Take(&alert).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NewErrNo(common.AlertNotExists)
		}
		return nil, err
	}
	return &alert, nil
}

func (d *alertDAO) List(ctx context.Context, status string) ([]*model.Alert, error) {
	query := db.WithContext(ctx).Model(&model.Alert{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var alerts []*model.Alert
	if err := query.Order("id DESC").Find(&alerts).Error; err != nil {
		return nil, err
	}
	return alerts, nil
}

func (d *alertDAO) Acknowledge(ctx context.Context, id uint) error {
	alert, err := d.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if alert.Status != model.AlertStatusFiring {
		return nil
	}
	now := time.Now()
	alert.Status = model.AlertStatusAcknowledged
	alert.AcknowledgedAt = &now
	return db.WithContext(ctx).Save(alert).Error
}

func (d *alertDAO) Resolve(ctx context.Context, id uint) error {
	alert, err := d.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if alert.Status == model.AlertStatusResolved {
		return nil
	}
	now := time.Now()
	alert.Status = model.AlertStatusResolved
	alert.ResolvedAt = &now
	return db.WithContext(ctx).Save(alert).Error
}
