package models

import (
	"encoding/json"
	"time"
)

type IntakeStatus string

const (
	IntakePending IntakeStatus = "pending"
	IntakeDone    IntakeStatus = "done"
	IntakeFailed  IntakeStatus = "failed"
)

// MaxIntakeAttempts bounds how often a queued URL is retried before it is
// marked failed.
const MaxIntakeAttempts = 3

// IntakeRequest is a URL queued for background extraction.
type IntakeRequest struct {
	ID          int64           `json:"id" db:"id"`
	URL         string          `json:"url" db:"url"`
	Status      IntakeStatus    `json:"status" db:"status"`
	Attempts    int             `json:"attempts" db:"attempts"`
	Result      json.RawMessage `json:"result,omitempty" db:"result"`
	Error       string          `json:"error,omitempty" db:"error"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty" db:"processed_at"`
}
