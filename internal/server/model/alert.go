package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	AlertStatusFiring       = "firing"
	AlertStatusAcknowledged = "acknowledged"
	AlertStatusResolved     = "resolved"
)

const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
)

// Alert is raised by the escalation manager when automation is exhausted.
// Only human acknowledgment/resolution mutates it afterwards.
type Alert struct {
	gorm.Model
	Rule           string `gorm:"type:varchar(100);not null"`
	Severity       string `gorm:"type:varchar(16);not null"`
	Title          string `gorm:"type:varchar(255);not null"`
	Message        string `gorm:"type:text"`
	Status         string `gorm:"type:varchar(16);not null;index"`
	RunUUID        string `gorm:"type:varchar(50);index"`
	TriggeredAt    time.Time
	AcknowledgedAt *time.Time
	ResolvedAt     *time.Time
}
