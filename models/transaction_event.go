package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionEvent struct {
	TransactionID    string          `gorm:"primaryKey;type:varchar(64)" json:"transaction_id"`
	UserID           string          `gorm:"type:varchar(64);index;not null" json:"user_id"`
	Date             time.Time       `gorm:"index;not null" json:"date"`
	Amount           decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
	MerchantCategory string          `gorm:"type:varchar(32);not null" json:"merchant_category"`
}

func (TransactionEvent) TableName() string { return "transactions" }
