package features

import (
	"time"
)

// Column names of the assembled feature table.
const (
	ColUserID              = "user_id"
	ColAge                 = "age"
	ColIncomeRange         = "income_range"
	ColRiskProfile         = "risk_profile"
	ColOccupation          = "occupation"
	ColAgeRange            = "age_range_sturges"
	ColFirstProduct        = "first_product"
	ColSecondProduct       = "second_product"
	ColDaysBetween         = "days_between_products"
	ColTenure              = "customer_tenure_days"
	ColNumberOfProducts    = "number_of_products"
	ColCombination         = "product_combination"
	ColFirstProductTS      = "first_product_date_ts"
	ColSecondProductDate   = "second_product_date"
	ColActiveMonths        = "active_months"
	ColRecency             = "recency_days"
	ColTotalTransactions   = "total_transactions"
	ColMeanAmount          = "mean_transaction_amount"
	ColTotalSpend          = "total_spend"
	ColFavoriteByCount     = "favorite_category_by_count"
	ColFavoriteBySpend     = "favorite_category_by_spend"
	ColTotalSpendFavorite  = "total_spend_favorite"
	ColShareOfFavorite     = "share_of_favorite"
	ColHHI                 = "hhi"
	ColBestMonthCountTS    = "best_month_by_count_ts"
	ColBestMonthSpendTS    = "best_month_by_spend_ts"
	ColAvgMonthlyChange    = "avg_monthly_change"
	ColAvgMonthlyChangePct = "avg_monthly_change_pct"

	// ColTarget is insurance ownership, the label the classifier predicts.
	ColTarget = string(Insurance)
)

const (
	// CategoryNone stands for an absent categorical value, e.g. no second product.
	CategoryNone = "none"

	// NoRecencyDays is the recency of a customer who never transacted.
	NoRecencyDays = -1

	countSuffix = "_count"
)

// CountColumn is the per-category transaction count column for category.
func CountColumn(category string) string {
	return category + countSuffix
}

// droppedColumns are computed by the aggregators but superseded by other features.
var droppedColumns = []string{
	ColTotalSpend, ColMeanAmount, ColHHI, ColShareOfFavorite,
	ColTotalTransactions, ColFavoriteByCount, ColSecondProductDate,
}

// Record is one customer's joined features before scaling and encoding.
type Record struct {
	UserID      string
	Numeric     map[string]float64
	Categorical map[string]string
}

// Assemble left-joins customers with their product and transaction aggregates. Every
// customer yields exactly one record; aggregates for ids absent from customers are ignored.
// Count columns are emitted zero-filled for every known merchant category plus any other
// category seen in the batch.
func Assemble(customers []Customer, products map[string]ProductAggregate, txs map[string]TransactionAggregate) []Record {
	batchCategories := make(map[string]struct{}, len(MerchantCategories))
	for _, cat := range MerchantCategories {
		batchCategories[cat] = struct{}{}
	}
	for _, c := range customers {
		if t, ok := txs[c.UserID]; ok {
			for cat := range t.CategoryCounts {
				batchCategories[cat] = struct{}{}
			}
		}
	}

	records := make([]Record, 0, len(customers))
	for _, c := range customers {
		p, ok := products[c.UserID]
		if !ok {
			p = EmptyProductAggregate(c.UserID)
		}
		t, ok := txs[c.UserID]
		if !ok {
			t = EmptyTransactionAggregate(c.UserID)
		}

		r := Record{
			UserID:      c.UserID,
			Numeric:     make(map[string]float64, 32),
			Categorical: make(map[string]string, 10),
		}
		addDemographics(&r, c)
		addProducts(&r, p)
		addTransactions(&r, t, batchCategories)

		for _, col := range droppedColumns {
			delete(r.Numeric, col)
			delete(r.Categorical, col)
		}
		records = append(records, r)
	}
	return records
}

func addDemographics(r *Record, c Customer) {
	r.Numeric[ColAge] = float64(c.Age)
	r.Categorical[ColIncomeRange] = orNone(c.IncomeRange)
	r.Categorical[ColRiskProfile] = orNone(c.RiskProfile)
	r.Categorical[ColOccupation] = orNone(c.Occupation)
	r.Categorical[ColAgeRange] = AgeBand(c.Age)
}

func addProducts(r *Record, p ProductAggregate) {
	for _, pt := range ProductTypes {
		r.Numeric[string(pt)] = boolToFloat(p.Owned[pt])
	}
	r.Numeric[ColDaysBetween] = float64(p.DaysBetweenProducts)
	r.Numeric[ColTenure] = float64(p.TenureDays)
	r.Numeric[ColNumberOfProducts] = float64(p.NumberOfProducts)
	r.Categorical[ColCombination] = p.Combination

	r.Categorical[ColFirstProduct] = CategoryNone
	r.Numeric[ColFirstProductTS] = 0
	if p.First != nil {
		r.Categorical[ColFirstProduct] = string(p.First.Type)
		r.Numeric[ColFirstProductTS] = epochSeconds(&p.First.Date)
	}
	r.Categorical[ColSecondProduct] = CategoryNone
	r.Numeric[ColSecondProductDate] = 0
	if p.Second != nil {
		r.Categorical[ColSecondProduct] = string(p.Second.Type)
		r.Numeric[ColSecondProductDate] = epochSeconds(&p.Second.Date)
	}
}

func addTransactions(r *Record, t TransactionAggregate, batchCategories map[string]struct{}) {
	for cat := range batchCategories {
		r.Numeric[CountColumn(cat)] = float64(t.CategoryCounts[cat])
	}

	r.Numeric[ColTotalTransactions] = float64(t.Count)
	r.Numeric[ColMeanAmount] = t.MeanAmount
	r.Numeric[ColTotalSpend] = t.TotalSpend.InexactFloat64()
	r.Numeric[ColActiveMonths] = float64(t.ActiveMonths)
	r.Numeric[ColRecency] = NoRecencyDays
	if t.RecencyDays != nil {
		r.Numeric[ColRecency] = float64(*t.RecencyDays)
	}

	r.Categorical[ColFavoriteByCount] = orNone(t.FavoriteByCount)
	r.Categorical[ColFavoriteBySpend] = orNone(t.FavoriteBySpend)
	r.Numeric[ColTotalSpendFavorite] = t.FavoriteSpend.InexactFloat64()
	r.Numeric[ColShareOfFavorite] = t.ShareOfFavorite
	r.Numeric[ColHHI] = t.HHI

	r.Numeric[ColBestMonthCountTS] = epochSeconds(t.BestMonthByCount)
	r.Numeric[ColBestMonthSpendTS] = epochSeconds(t.BestMonthBySpend)
	r.Numeric[ColAvgMonthlyChange] = t.AvgMonthlyChange
	r.Numeric[ColAvgMonthlyChangePct] = t.AvgMonthlyChangePct
}

func epochSeconds(t *time.Time) float64 {
	if t == nil {
		return 0
	}
	return float64(t.Unix())
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func orNone(v string) string {
	if v == "" {
		return CategoryNone
	}
	return v
}
