package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"prometeo-backend/features"
	"prometeo-backend/models"
)

const seedBatchSize = 500

// SeedClients writes raw tables into the database. Demographics are upserted without
// touching the contact status, products of the seeded clients are replaced and
// transactions are upserted by id.
func SeedClients(ctx context.Context, db *gorm.DB, tables *features.Tables) error {
	if err := tables.Validate(); err != nil {
		return err
	}

	clients := make([]models.Client, len(tables.Customers))
	ids := make([]string, len(tables.Customers))
	for i, c := range tables.Customers {
		clients[i] = models.Client{
			UserID:      c.UserID,
			Age:         c.Age,
			IncomeRange: c.IncomeRange,
			RiskProfile: c.RiskProfile,
			Occupation:  c.Occupation,
			Status:      models.StatusPending,
		}
		ids[i] = c.UserID
	}
	products := make([]models.ProductEvent, len(tables.Products))
	for i, p := range tables.Products {
		products[i] = models.ProductEvent{
			UserID:       p.UserID,
			ProductType:  string(p.ProductType),
			ContractDate: p.ContractDate,
		}
	}
	txs := make([]models.TransactionEvent, len(tables.Transactions))
	for i, t := range tables.Transactions {
		txs[i] = models.TransactionEvent{
			TransactionID:    t.TransactionID,
			UserID:           t.UserID,
			Date:             t.Date,
			Amount:           t.Amount,
			MerchantCategory: t.MerchantCategory,
		}
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(clients) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"age", "income_range", "risk_profile", "occupation", "updated_at"}),
			}).CreateInBatches(&clients, seedBatchSize).Error; err != nil {
				return fmt.Errorf("upsert demographics: %w", err)
			}
		}

		productUsers := make(map[string]struct{})
		for _, p := range products {
			productUsers[p.UserID] = struct{}{}
		}
		for _, id := range ids {
			productUsers[id] = struct{}{}
		}
		if len(productUsers) > 0 {
			users := make([]string, 0, len(productUsers))
			for id := range productUsers {
				users = append(users, id)
			}
			if err := tx.Where("user_id IN ?", users).Delete(&models.ProductEvent{}).Error; err != nil {
				return fmt.Errorf("clear products: %w", err)
			}
		}
		if len(products) > 0 {
			if err := tx.CreateInBatches(&products, seedBatchSize).Error; err != nil {
				return fmt.Errorf("insert products: %w", err)
			}
		}

		if len(txs) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "transaction_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"user_id", "date", "amount", "merchant_category"}),
			}).CreateInBatches(&txs, seedBatchSize).Error; err != nil {
				return fmt.Errorf("upsert transactions: %w", err)
			}
		}
		return nil
	})
}
