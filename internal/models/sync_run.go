package models

import "time"

// SyncRun records one invocation of a sync, sweep or report job
type SyncRun struct {
	ID         string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	Source     string     `gorm:"type:varchar(50);not null;index" json:"source"`
	Kind       RunKind    `gorm:"type:varchar(20);not null" json:"kind"`
	Trigger    string     `gorm:"type:varchar(20);not null" json:"trigger"`
	Status     RunStatus  `gorm:"type:varchar(20);not null;index" json:"status"`
	Inspected  int        `gorm:"not null;default:0" json:"inspected"`
	Imported   int        `gorm:"not null;default:0" json:"imported"`
	Updated    int        `gorm:"not null;default:0" json:"updated"`
	Skipped    int        `gorm:"not null;default:0" json:"skipped"`
	Backfilled int        `gorm:"not null;default:0" json:"backfilled"`
	Rejected   int        `gorm:"not null;default:0" json:"rejected"`
	Deleted    int        `gorm:"not null;default:0" json:"deleted"`
	NextOffset int        `gorm:"not null;default:0" json:"next_offset"`
	Error      string     `gorm:"type:text" json:"error,omitempty"`
	StartedAt  time.Time  `gorm:"not null;index:idx_started_at,sort:desc" json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// RunKind is the job a run executed
type RunKind string

const (
	RunKindSync   RunKind = "sync"
	RunKindSweep  RunKind = "sweep"
	RunKindReport RunKind = "report"
)

// RunStatus is the state of a run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusSkipped   RunStatus = "skipped"
)

// TableName specifies the table name
func (SyncRun) TableName() string {
	return "sync_runs"
}

// Finish marks the run as finished with the given status
func (r *SyncRun) Finish(status RunStatus, err error) {
	r.Status = status
	if err != nil {
		r.Error = err.Error()
	}
	now := time.Now()
	r.FinishedAt = &now
}
