package models

import (
	"time"

	"github.com/google/uuid"
)

// Prediction is the latest score of a client. Rescoring overwrites it.
type Prediction struct {
	UserID      string    `gorm:"primaryKey;type:varchar(64)" json:"user_id"`
	Probability float64   `gorm:"not null;index" json:"probability"`
	PredBin     int       `gorm:"not null" json:"pred_bin"`
	RunID       uuid.UUID `gorm:"type:uuid;index" json:"run_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Prediction) TableName() string { return "prediction_results" }
