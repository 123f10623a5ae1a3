package api

import "time"

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type SubmitTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Priority    int    `json:"priority"`
}

type TaskResponse struct {
	ID        uint      `json:"id"`
	Title     string    `json:"title"`
	Category  string    `json:"category"`
	Priority  int       `json:"priority"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type TaskDetail struct {
	TaskResponse
	Description string     `json:"description"`
	Runs        []RunBrief `json:"runs"`
}

type TaskListResponse struct {
	Total int64          `json:"total"`
	Tasks []TaskResponse `json:"tasks"`
}

type RunBrief struct {
	RunID           string     `json:"run_id"`
	Status          string     `json:"status"`
	ProgressPercent float64    `json:"progress_percent"`
	CurrentStep     string     `json:"current_step"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

type RunDetail struct {
	RunBrief
	TaskID               uint               `json:"task_id"`
	Capability           string             `json:"capability"`
	Result               string             `json:"result,omitempty"`
	ErrorMessage         string             `json:"error_message,omitempty"`
	VerificationAttempts int                `json:"verification_attempts"`
	Verifications        []VerificationView `json:"verifications"`
	Alert                *AlertView         `json:"alert,omitempty"`
}

type VerificationView struct {
	Attempt  int             `json:"attempt"`
	Passed   bool            `json:"passed"`
	Checks   map[string]bool `json:"checks"`
	Errors   []string        `json:"errors"`
	Evidence string          `json:"evidence,omitempty"`
}

type AlertView struct {
	ID             uint       `json:"id"`
	Rule           string     `json:"rule"`
	Severity       string     `json:"severity"`
	Title          string     `json:"title"`
	Message        string     `json:"message"`
	Status         string     `json:"status"`
	RunID          string     `json:"run_id"`
	TriggeredAt    time.Time  `json:"triggered_at"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
}

type QueueStats struct {
	Pending    int64            `json:"pending"`
	ByStatus   map[string]int64 `json:"by_status"`
	ByCategory map[string]int64 `json:"by_category"`
	ActiveRuns int              `json:"active_runs"`
}
