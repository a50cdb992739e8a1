package features

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Table names used in contract errors.
const (
	TableDemographics = "demographics"
	TableProducts     = "products"
	TableTransactions = "transactions"
)

// ProductType is the closed set of products a customer can hold.
type ProductType string

const (
	CheckingAccount ProductType = "checking_account"
	SavingsAccount  ProductType = "savings_account"
	CreditCard      ProductType = "credit_card"
	Insurance       ProductType = "insurance"
	Investment      ProductType = "investment"
	ProductUnknown  ProductType = "unknown"

	legacyInvestmentAccount = "investment_account"
)

// ProductTypes lists the owned-product flags in column order.
var ProductTypes = []ProductType{CheckingAccount, SavingsAccount, CreditCard, Insurance, Investment}

// ParseProductType normalizes a raw label, folding the legacy investment_account synonym
// into investment. Anything outside the known set becomes ProductUnknown.
func ParseProductType(raw string) ProductType {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == legacyInvestmentAccount {
		return Investment
	}
	for _, p := range ProductTypes {
		if string(p) == v {
			return p
		}
	}
	return ProductUnknown
}

// MerchantCategories is the usual category vocabulary. The transaction table is open, so
// other values are aggregated too; only these get a fixed count column in the output.
var MerchantCategories = []string{
	"food", "health", "shopping", "transport", "entertainment", "travel", "supermarket", "other",
}

// NormalizeCategory lower-cases and trims a categorical value.
func NormalizeCategory(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Customer is one demographics row.
type Customer struct {
	UserID      string
	Age         int
	IncomeRange string
	RiskProfile string
	Occupation  string
}

// ProductEvent is one product contract.
type ProductEvent struct {
	UserID       string
	ProductType  ProductType
	ContractDate time.Time
}

// Transaction is one card or account movement.
type Transaction struct {
	TransactionID    string
	UserID           string
	Date             time.Time
	Amount           decimal.Decimal
	MerchantCategory string
}

// Tables bundles the three raw inputs of a pipeline run.
type Tables struct {
	Customers    []Customer
	Products     []ProductEvent
	Transactions []Transaction
}

// Validate checks the invariants that the typed rows cannot express on their own.
func (t *Tables) Validate() error {
	seen := make(map[string]struct{}, len(t.Customers))
	for i, c := range t.Customers {
		if c.UserID == "" {
			return badValue(TableDemographics, "user_id", i+1, "empty id")
		}
		if _, dup := seen[c.UserID]; dup {
			return badValue(TableDemographics, "user_id", i+1, "duplicate id "+c.UserID)
		}
		seen[c.UserID] = struct{}{}
	}
	for i, p := range t.Products {
		if p.UserID == "" {
			return badValue(TableProducts, "user_id", i+1, "empty id")
		}
		if p.ContractDate.IsZero() {
			return badValue(TableProducts, "contract_date", i+1, "missing date")
		}
	}
	for i, tx := range t.Transactions {
		if tx.UserID == "" {
			return badValue(TableTransactions, "user_id", i+1, "empty id")
		}
		if tx.Date.IsZero() {
			return badValue(TableTransactions, "date", i+1, "missing date")
		}
		if tx.Amount.IsNegative() {
			return badValue(TableTransactions, "amount", i+1, "negative amount "+tx.Amount.String())
		}
	}
	return nil
}
