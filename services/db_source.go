package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"prometeo-backend/features"
	"prometeo-backend/models"
)

// DBSource reads the raw tables from the application database.
type DBSource struct {
	DB *gorm.DB
}

func (s DBSource) Load(ctx context.Context) (*features.Tables, error) {
	db := s.DB.WithContext(ctx)

	var clients []models.Client
	if err := db.Order("user_id").Find(&clients).Error; err != nil {
		return nil, fmt.Errorf("load demographics: %w", err)
	}
	var products []models.ProductEvent
	if err := db.Order("id").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	var txs []models.TransactionEvent
	if err := db.Order("date, transaction_id").Find(&txs).Error; err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}

	tables := &features.Tables{
		Customers:    make([]features.Customer, len(clients)),
		Products:     make([]features.ProductEvent, len(products)),
		Transactions: make([]features.Transaction, len(txs)),
	}
	for i, c := range clients {
		tables.Customers[i] = features.Customer{
			UserID:      c.UserID,
			Age:         c.Age,
			IncomeRange: c.IncomeRange,
			RiskProfile: c.RiskProfile,
			Occupation:  c.Occupation,
		}
	}
	for i, p := range products {
		tables.Products[i] = features.ProductEvent{
			UserID:       p.UserID,
			ProductType:  features.ParseProductType(p.ProductType),
			ContractDate: p.ContractDate.UTC(),
		}
	}
	for i, t := range txs {
		tables.Transactions[i] = features.Transaction{
			TransactionID:    t.TransactionID,
			UserID:           t.UserID,
			Date:             t.Date.UTC(),
			Amount:           t.Amount,
			MerchantCategory: features.NormalizeCategory(t.MerchantCategory),
		}
	}
	return tables, nil
}
