package models

import "time"

type ExtractionState string

const (
	StateFetching        ExtractionState = "fetching"
	StateFieldExtraction ExtractionState = "field_extraction"
	StateEnrichment      ExtractionState = "enrichment"
	StateDone            ExtractionState = "done"
	StateFailed          ExtractionState = "failed"
)

type AttemptStatus string

const (
	AttemptSkipped AttemptStatus = "skipped"
	AttemptOK      AttemptStatus = "ok"
	AttemptEmpty   AttemptStatus = "empty"
	AttemptFailed  AttemptStatus = "failed"
)

// ExtractionAttempt is one layer's outcome before it is merged.
type ExtractionAttempt struct {
	Layer    string        `json:"layer"`
	Ran      bool          `json:"ran"`
	Status   AttemptStatus `json:"status"`
	Fields   []string      `json:"fields,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}
