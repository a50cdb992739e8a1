package models

import (
	"time"
)

// Client status values. Every client starts as pending.
const (
	StatusPending       = "pending"
	StatusContacted     = "contacted"
	StatusInterested    = "interested"
	StatusNotInterested = "not_interested"
	StatusConverted     = "converted"
	StatusLost          = "lost"
)

// Client is one row of the demographics table.
type Client struct {
	UserID      string `gorm:"primaryKey;type:varchar(64)" json:"user_id"`
	Age         int    `gorm:"not null" json:"age"`
	IncomeRange string `gorm:"type:varchar(32)" json:"income_range"`
	RiskProfile string `gorm:"type:varchar(32)" json:"risk_profile"`
	Occupation  string `gorm:"type:varchar(64)" json:"occupation"`

	Status          string     `gorm:"type:varchar(20);not null;default:pending" json:"status"`
	LastContactDate *time.Time `json:"last_contact_date,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Client) TableName() string { return "demographics" }
