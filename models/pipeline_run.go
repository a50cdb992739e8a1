package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// PipelineRun records one scoring run and the schema drift it saw.
type PipelineRun struct {
	ID            uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	Trigger       string     `gorm:"type:varchar(20)" json:"trigger"` // api, schedule, cli
	Source        string     `gorm:"type:varchar(10)" json:"source"`
	ReferenceDate time.Time  `json:"reference_date"`
	Customers     int        `json:"customers"`
	Scored        int        `json:"scored"`
	DriftCount    int        `json:"drift_count"`
	Drift         JSONB      `gorm:"type:jsonb" json:"drift,omitempty"`
	Status        string     `gorm:"type:varchar(20);not null" json:"status"`
	Error         string     `gorm:"type:text" json:"error,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

func (r *PipelineRun) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return
}

// JSONB stores an arbitrary JSON document.
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	b, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (j *JSONB) Scan(value interface{}) error {
	var b []byte
	switch v := value.(type) {
	case nil:
		*j = nil
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(b, j)
}
