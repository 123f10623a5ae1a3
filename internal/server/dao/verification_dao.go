package dao

import (
	"context"

	"ace/internal/server/model"
)

type VerificationDao interface {
	Append(ctx context.Context, rec *model.VerificationRecord) error
	ListByRun(ctx context.Context, runUUID string) ([]*model.VerificationRecord, error)
	HasPassed(ctx context.Context, runUUID string) (bool, error)
}

type verificationDAO struct {
}

func NewVerificationDao() VerificationDao {
	return &verificationDAO{}
}

func (d *verificationDAO) Append(ctx context.Context, rec *model.VerificationRecord) error {
	return db.WithContext(ctx).Create(rec).Error
}

func (d *verificationDAO) ListByRun(ctx context.Context, runUUID string) ([]*model.VerificationRecord, error) {
	var recs []*model.VerificationRecord
	if err := db.WithContext(ctx).
		Where("run_uuid = ?", runUUID).
		Order("attempt ASC").
		Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

func (d *verificationDAO) HasPassed(ctx context.Context, runUUID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).Model(&model.VerificationRecord{}).
		Where("run_uuid = ? AND passed = ?", runUUID, true).
		Count(&n).Error
	return n > 0, err
}
