package model

import "gorm.io/gorm"

// VerificationRecord is the durable evidence of one verification attempt.
// Appended once per attempt, never mutated afterwards.
type VerificationRecord struct {
	gorm.Model
	RunUUID  string `gorm:"type:varchar(50);not null;index"`
	Attempt  int    `gorm:"not null"`
	Passed   bool   `gorm:"not null"`
	Checks   string `gorm:"type:text"` // JSON map of check name -> bool
	Errors   string `gorm:"type:text"` // JSON array of error strings
	Evidence string `gorm:"type:text"`
}
