package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	RunStatusPending                = "pending"
	RunStatusInProgress             = "in_progress"
	RunStatusAwaitingVerification   = "awaiting_verification"
	RunStatusVerificationInProgress = "verification_in_progress"
	RunStatusVerificationPassed     = "verification_passed"
	RunStatusVerificationFailed     = "verification_failed"
	RunStatusBlocked                = "blocked"
	RunStatusEscalatedToHuman       = "escalated_to_human"
	RunStatusCompleted              = "completed"
	RunStatusFailed                 = "failed"
	RunStatusCancelled              = "cancelled"
)

func IsTerminalRunStatus(status string) bool {
	switch status {
	case RunStatusCompleted, RunStatusFailed, RunStatusEscalatedToHuman, RunStatusCancelled:
		return true
	default:
		return false
	}
}

// Run is one execution of a task by a capability. A task has at most one
// non-terminal run at any time; the claim operation creates it.
type Run struct {
	gorm.Model
	RunUUID              string  `gorm:"type:varchar(50);not null;uniqueIndex"`
	TaskID               uint    `gorm:"not null;index"`
	Capability           string  `gorm:"type:varchar(100)"`
	Status               string  `gorm:"type:varchar(32);not null;index"`
	CurrentStep          string  `gorm:"type:varchar(255)"`
	ProgressPercent      float64 `gorm:"not null;default:0"`
	Result               string  `gorm:"type:text"`
	ErrorMessage         string  `gorm:"type:text"`
	VerificationAttempts int     `gorm:"not null;default:0"`
	StartedAt            time.Time
	CompletedAt          *time.Time
}
