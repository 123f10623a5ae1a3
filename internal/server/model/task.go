package model

import (
	"gorm.io/gorm"
)

const (
	TaskStatusPending    = "pending"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
	TaskStatusFailed     = "failed"
	TaskStatusCancelled  = "cancelled"
)

const (
	CategoryFeature  = "feature"
	CategoryBug      = "bug"
	CategoryRefactor = "refactor"
	CategoryDocs     = "docs"
	CategoryTest     = "test"
)

var taskCategories = map[string]struct{}{
	CategoryFeature:  {},
	CategoryBug:      {},
	CategoryRefactor: {},
	CategoryDocs:     {},
	CategoryTest:     {},
}

func ValidCategory(category string) bool {
	_, ok := taskCategories[category]
	return ok
}

type Task struct {
	gorm.Model
	Title       string `gorm:"type:varchar(200);not null"`
	Description string `gorm:"type:text;not null"`
	Category    string `gorm:"type:varchar(32);not null;index"`
	Priority    int    `gorm:"not null;index:idx_status_priority"` // 1 is highest, 10 lowest
	Status      string `gorm:"type:varchar(32);not null;index:idx_status_priority"`
}
