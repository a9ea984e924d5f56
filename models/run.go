package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

type ExtractionRun struct {
	ID          int64           `json:"id" db:"id"`
	RequestID   string          `json:"request_id" db:"request_id"`
	URL         string          `json:"url" db:"url"`
	StartedAt   time.Time       `json:"started_at" db:"started_at"`
	FinishedAt  *time.Time      `json:"finished_at" db:"finished_at"`
	Status      RunStatus       `json:"status" db:"status"`
	FinalState  ExtractionState `json:"final_state" db:"final_state"`
	FieldsFound int             `json:"fields_found" db:"fields_found"`
	Error       string          `json:"error" db:"error"`
}
