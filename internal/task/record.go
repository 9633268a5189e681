package task

import (
	"time"
)

// Status enumerates task lifecycle states.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition can occur.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ExecError captures a failed operation for the task record. It is stored
// once at the failed transition and never modified afterwards.
type ExecError struct {
	Type    string `json:"error_type"`
	Message string `json:"error_message"`
	Trace   string `json:"traceback"`
}

// Record tracks one submitted unit of work. The store owns every Record;
// callers only ever see copies.
type Record struct {
	ID          string     `json:"task_id"`
	Op          string     `json:"operation"`
	Status      Status     `json:"status"`
	Result      any        `json:"result"`
	Err         *ExecError `json:"error"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
}
