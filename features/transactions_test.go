package features

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tx(user string, date time.Time, amount float64, category string) Transaction {
	return Transaction{
		TransactionID:    fmt.Sprintf("%s-%d-%s", user, date.Unix(), category),
		UserID:           user,
		Date:             date,
		Amount:           decimal.NewFromFloat(amount),
		MerchantCategory: category,
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAggregateTransactions(t *testing.T) {
	t.Run("SingleTransaction", func(t *testing.T) {
		aggs := AggregateTransactions([]Transaction{
			tx("U3", date(2023, 12, 1), 100, "food"),
		}, date(2024, 1, 1))
		agg := aggs["U3"]

		assert.True(t, agg.TotalSpend.Equal(decimal.NewFromInt(100)))
		assert.InDelta(t, 1.0, agg.HHI, 1e-12)
		assert.Equal(t, "food", agg.FavoriteBySpend)
		assert.Equal(t, "food", agg.FavoriteByCount)
		assert.InDelta(t, 1.0, agg.ShareOfFavorite, 1e-12)
		assert.Equal(t, 1, agg.ActiveMonths)
		require.NotNil(t, agg.RecencyDays)
		assert.Equal(t, 31, *agg.RecencyDays)
		assert.Zero(t, agg.AvgMonthlyChange)
		assert.Zero(t, agg.AvgMonthlyChangePct)
	})

	t.Run("MonthlyTrend", func(t *testing.T) {
		aggs := AggregateTransactions([]Transaction{
			tx("U1", date(2023, 1, 10), 100, "travel"),
			tx("U1", date(2023, 2, 3), 50, "food"),
			tx("U1", date(2023, 2, 17), 50, "food"),
			tx("U1", date(2023, 3, 20), 300, "travel"),
		}, date(2023, 4, 1))
		agg := aggs["U1"]

		assert.Equal(t, 4, agg.Count)
		assert.InDelta(t, 125.0, agg.MeanAmount, 1e-9)
		assert.Equal(t, 3, agg.ActiveMonths)
		assert.Equal(t, 12, *agg.RecencyDays)
		assert.Equal(t, date(2023, 2, 1), *agg.BestMonthByCount)
		assert.Equal(t, date(2023, 3, 1), *agg.BestMonthBySpend)
		assert.InDelta(t, 100.0, agg.AvgMonthlyChange, 1e-9)
		assert.InDelta(t, 1.0, agg.AvgMonthlyChangePct, 1e-9)
		assert.Equal(t, map[string]int{"food": 2, "travel": 2}, agg.CategoryCounts)
		assert.Equal(t, "travel", agg.FavoriteBySpend)
		assert.True(t, agg.FavoriteSpend.Equal(decimal.NewFromInt(400)))
		assert.InDelta(t, 0.8, agg.ShareOfFavorite, 1e-12)
		assert.InDelta(t, 0.68, agg.HHI, 1e-12)
	})

	t.Run("CountTieTakesSmallestCategory", func(t *testing.T) {
		agg := AggregateTransactions([]Transaction{
			tx("U1", date(2023, 1, 1), 10, "travel"),
			tx("U1", date(2023, 1, 2), 10, "food"),
		}, date(2023, 2, 1))["U1"]
		assert.Equal(t, "food", agg.FavoriteByCount)
		assert.Equal(t, "food", agg.FavoriteBySpend)
	})

	t.Run("BestMonthTieTakesEarliest", func(t *testing.T) {
		agg := AggregateTransactions([]Transaction{
			tx("U1", date(2023, 5, 1), 10, "food"),
			tx("U1", date(2023, 3, 1), 10, "food"),
		}, date(2023, 6, 1))["U1"]
		assert.Equal(t, date(2023, 3, 1), *agg.BestMonthByCount)
		assert.Equal(t, date(2023, 3, 1), *agg.BestMonthBySpend)
	})

	t.Run("ZeroPreviousMonthDoesNotDivide", func(t *testing.T) {
		agg := AggregateTransactions([]Transaction{
			tx("U1", date(2023, 1, 1), 0, "food"),
			tx("U1", date(2023, 2, 1), 50, "food"),
		}, date(2023, 3, 1))["U1"]
		assert.InDelta(t, 50.0, agg.AvgMonthlyChange, 1e-9)
		assert.Zero(t, agg.AvgMonthlyChangePct)
	})

	t.Run("ZeroSpendHasNoShare", func(t *testing.T) {
		agg := AggregateTransactions([]Transaction{
			tx("U1", date(2023, 1, 1), 0, "food"),
		}, date(2023, 3, 1))["U1"]
		assert.Zero(t, agg.ShareOfFavorite)
		assert.Zero(t, agg.HHI)
	})

	t.Run("EmptyAggregate", func(t *testing.T) {
		agg := EmptyTransactionAggregate("U9")
		assert.Nil(t, agg.RecencyDays)
		assert.Nil(t, agg.BestMonthByCount)
		assert.Equal(t, "", agg.FavoriteBySpend)
		assert.True(t, agg.TotalSpend.IsZero())
	})
}

func TestMonthOverMonth(t *testing.T) {
	buckets := []*monthBucket{
		{month: date(2023, 1, 1), spend: decimal.NewFromInt(0)},
		{month: date(2023, 2, 1), spend: decimal.NewFromInt(40)},
		{month: date(2023, 4, 1), spend: decimal.NewFromInt(10)},
	}
	diff, pct := monthOverMonth(buckets)
	// (40 + -30) / 2 and (0 + -0.75) / 2
	assert.InDelta(t, 5.0, diff, 1e-12)
	assert.InDelta(t, -0.375, pct, 1e-12)

	diff, pct = monthOverMonth(buckets[:1])
	assert.Zero(t, diff)
	assert.Zero(t, pct)
}

// TestHHIBounds checks 1/categories <= HHI <= 1 for customers with positive spend. A customer
// whose every amount is 0 has HHI 0 instead (see ZeroSpendHasNoShare).
func TestHHIBounds(t *testing.T) {
	txs := []Transaction{
		tx("A", date(2023, 1, 1), 10, "food"),
		tx("A", date(2023, 1, 2), 90, "travel"),
		tx("A", date(2023, 1, 3), 45, "health"),
		tx("B", date(2023, 1, 1), 20, "food"),
		tx("B", date(2023, 1, 2), 20, "travel"),
		tx("C", date(2023, 1, 1), 5, "other"),
	}
	for id, agg := range AggregateTransactions(txs, date(2023, 2, 1)) {
		n := float64(len(agg.CategoryCounts))
		assert.GreaterOrEqual(t, agg.HHI, 1/n-1e-12, id)
		assert.LessOrEqual(t, agg.HHI, 1+1e-12, id)
	}
}
