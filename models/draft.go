package models

import (
	"encoding/json"
	"time"
)

// IntakeDraft is an extracted record staged for the property-creation flow.
type IntakeDraft struct {
	ID          string          `json:"id" db:"id"`
	Fingerprint string          `json:"fingerprint" db:"fingerprint"`
	SourceURL   string          `json:"source_url" db:"source_url"`
	Address     string          `json:"address" db:"address"`
	City        string          `json:"city" db:"city"`
	State       string          `json:"state" db:"state"`
	Zip         string          `json:"zip" db:"zip"`
	Price       string          `json:"price" db:"price"`
	AgentName   string          `json:"agent_name" db:"agent_name"`
	AgentEmail  string          `json:"agent_email" db:"agent_email"`
	Record      json.RawMessage `json:"record" db:"record"`
	SnapshotKey string          `json:"snapshot_key,omitempty" db:"snapshot_key"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}
