package features

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"prometeo-backend/utils"
)

// TransactionAggregate is the per-customer summary of transaction events.
type TransactionAggregate struct {
	UserID         string
	CategoryCounts map[string]int
	CategorySpend  map[string]decimal.Decimal

	Count        int
	MeanAmount   float64
	TotalSpend   decimal.Decimal
	ActiveMonths int
	// RecencyDays is nil for a customer without transactions.
	RecencyDays *int

	FavoriteByCount string
	FavoriteBySpend string
	FavoriteSpend   decimal.Decimal
	ShareOfFavorite float64
	HHI             float64

	BestMonthByCount    *time.Time
	BestMonthBySpend    *time.Time
	AvgMonthlyChange    float64
	AvgMonthlyChangePct float64
}

// EmptyTransactionAggregate is the aggregate of a customer with no transactions.
func EmptyTransactionAggregate(userID string) TransactionAggregate {
	return TransactionAggregate{
		UserID:         userID,
		CategoryCounts: map[string]int{},
		CategorySpend:  map[string]decimal.Decimal{},
	}
}

type monthBucket struct {
	month time.Time
	count int
	spend decimal.Decimal
}

// AggregateTransactions groups transactions by customer and computes volume, category,
// concentration and month-over-month statistics as of ref.
//
// Ties for a favorite category resolve to the lexicographically smallest category; ties
// for a best month resolve to the earliest month.
func AggregateTransactions(txs []Transaction, ref time.Time) map[string]TransactionAggregate {
	byUser := make(map[string][]Transaction)
	for _, tx := range txs {
		byUser[tx.UserID] = append(byUser[tx.UserID], tx)
	}

	out := make(map[string]TransactionAggregate, len(byUser))
	for userID, list := range byUser {
		out[userID] = aggregateCustomerTransactions(userID, list, ref)
	}
	return out
}

func aggregateCustomerTransactions(userID string, list []Transaction, ref time.Time) TransactionAggregate {
	agg := EmptyTransactionAggregate(userID)
	if len(list) == 0 {
		return agg
	}

	months := make(map[time.Time]*monthBucket)
	latest := list[0].Date
	for _, tx := range list {
		cat := tx.MerchantCategory
		agg.CategoryCounts[cat]++
		agg.CategorySpend[cat] = agg.CategorySpend[cat].Add(tx.Amount)
		agg.TotalSpend = agg.TotalSpend.Add(tx.Amount)
		if tx.Date.After(latest) {
			latest = tx.Date
		}

		m := utils.BeginningOfMonth(tx.Date.UTC())
		b, ok := months[m]
		if !ok {
			b = &monthBucket{month: m}
			months[m] = b
		}
		b.count++
		b.spend = b.spend.Add(tx.Amount)
	}

	agg.Count = len(list)
	agg.MeanAmount = agg.TotalSpend.Div(decimal.NewFromInt(int64(agg.Count))).InexactFloat64()
	agg.ActiveMonths = len(months)
	recency := utils.DaysBetween(latest, ref)
	agg.RecencyDays = &recency

	cats := sortedKeys(agg.CategoryCounts)
	agg.FavoriteByCount = argmaxInt(cats, agg.CategoryCounts)
	agg.FavoriteBySpend = argmaxDecimal(cats, agg.CategorySpend)
	agg.FavoriteSpend = agg.CategorySpend[agg.FavoriteBySpend]

	if agg.TotalSpend.IsPositive() {
		total := agg.TotalSpend.InexactFloat64()
		agg.ShareOfFavorite = agg.FavoriteSpend.InexactFloat64() / total
		shares := make([]float64, len(cats))
		for i, cat := range cats {
			shares[i] = agg.CategorySpend[cat].InexactFloat64() / total
		}
		agg.HHI = floats.Dot(shares, shares)
	}

	buckets := make([]*monthBucket, 0, len(months))
	for _, b := range months {
		buckets = append(buckets, b)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].month.Before(buckets[j].month) })

	byCount, bySpend := buckets[0], buckets[0]
	for _, b := range buckets[1:] {
		if b.count > byCount.count {
			byCount = b
		}
		if b.spend.GreaterThan(bySpend.spend) {
			bySpend = b
		}
	}
	agg.BestMonthByCount = &byCount.month
	agg.BestMonthBySpend = &bySpend.month

	agg.AvgMonthlyChange, agg.AvgMonthlyChangePct = monthOverMonth(buckets)
	return agg
}

// monthOverMonth averages the absolute and fractional spend change over consecutive
// months present in the data. A zero previous month contributes 0 to the fractional mean.
func monthOverMonth(buckets []*monthBucket) (float64, float64) {
	if len(buckets) < 2 {
		return 0, 0
	}
	diffs := make([]float64, len(buckets)-1)
	pcts := make([]float64, len(buckets)-1)
	for i := 1; i < len(buckets); i++ {
		prev := buckets[i-1].spend.InexactFloat64()
		cur := buckets[i].spend.InexactFloat64()
		diffs[i-1] = cur - prev
		if prev != 0 {
			pcts[i-1] = (cur - prev) / prev
		}
	}
	return stat.Mean(diffs, nil), stat.Mean(pcts, nil)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func argmaxInt(keys []string, m map[string]int) string {
	best := -1
	for i, k := range keys {
		if best < 0 || m[k] > m[keys[best]] {
			best = i
		}
	}
	if best < 0 {
		return ""
	}
	return keys[best]
}

func argmaxDecimal(keys []string, m map[string]decimal.Decimal) string {
	best := -1
	for i, k := range keys {
		if best < 0 || m[k].GreaterThan(m[keys[best]]) {
			best = i
		}
	}
	if best < 0 {
		return ""
	}
	return keys[best]
}
