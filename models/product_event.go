package models

import "time"

// ProductEvent is a product contract signed by a client.
type ProductEvent struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       string    `gorm:"type:varchar(64);index;not null" json:"user_id"`
	ProductType  string    `gorm:"type:varchar(32);not null" json:"product_type"`
	ContractDate time.Time `gorm:"not null" json:"contract_date"`
}

func (ProductEvent) TableName() string { return "products" }
