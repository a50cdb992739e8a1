package models

import "time"

type Contact struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      string    `gorm:"type:varchar(64);index;not null" json:"user_id"`
	Channel     string    `gorm:"type:varchar(20)" json:"channel"` // app, phone, email
	Status      string    `gorm:"type:varchar(20);not null" json:"status"`
	Notes       string    `gorm:"type:text" json:"notes"`
	ContactedAt time.Time `json:"contacted_at"`
}

func (Contact) TableName() string { return "contact_history" }
