package features

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func fixtureTables() *Tables {
	return &Tables{
		Customers: []Customer{
			{UserID: "U1", Age: 30, IncomeRange: "1000-2000", RiskProfile: "moderate", Occupation: "engineer"},
			{UserID: "U2", Age: 45, IncomeRange: "2000-3000", RiskProfile: "aggressive", Occupation: "teacher"},
			{UserID: "U3", Age: 52, IncomeRange: "1000-2000", RiskProfile: "conservative", Occupation: "nurse"},
			{UserID: "U4", Age: 60, IncomeRange: "3000-4000", RiskProfile: "moderate", Occupation: "engineer"},
			{UserID: "U5", Age: 80, IncomeRange: "3000-4000", RiskProfile: "conservative", Occupation: "retired"},
		},
		Products: []ProductEvent{
			{UserID: "U4", ProductType: CheckingAccount, ContractDate: day(1)},
			{UserID: "U4", ProductType: CreditCard, ContractDate: day(10)},
			{UserID: "U1", ProductType: SavingsAccount, ContractDate: day(20)},
			{UserID: "U3", ProductType: Insurance, ContractDate: day(5)},
			{UserID: "X9", ProductType: Investment, ContractDate: day(2)},
		},
		Transactions: []Transaction{
			tx("U3", day(50), 100, "food"),
			tx("U1", day(3), 20, "travel"),
			tx("U1", day(40), 60, "shopping"),
			tx("U1", day(70), 30, "travel"),
			tx("U4", day(15), 12.5, "supermarket"),
			tx("X9", day(4), 999, "travel"),
		},
	}
}

func recordsByID(records []Record) map[string]Record {
	m := make(map[string]Record, len(records))
	for _, r := range records {
		m[r.UserID] = r
	}
	return m
}

func TestAssemble(t *testing.T) {
	tables := fixtureTables()
	ref := day(100)
	records := Assemble(tables.Customers,
		AggregateProducts(tables.Products, ref),
		AggregateTransactions(tables.Transactions, ref))
	byID := recordsByID(records)

	t.Run("OneRecordPerCustomer", func(t *testing.T) {
		require.Len(t, records, len(tables.Customers))
		for i, c := range tables.Customers {
			assert.Equal(t, c.UserID, records[i].UserID)
		}
	})

	t.Run("OrphansAreDropped", func(t *testing.T) {
		_, ok := byID["X9"]
		assert.False(t, ok)
	})

	t.Run("AgeBand", func(t *testing.T) {
		assert.Equal(t, "25–31", byID["U1"].Categorical[ColAgeRange])
		assert.Equal(t, AgeBandUnknown, byID["U5"].Categorical[ColAgeRange])
	})

	t.Run("CustomerWithoutProducts", func(t *testing.T) {
		r := byID["U2"]
		for _, p := range ProductTypes {
			assert.Zero(t, r.Numeric[string(p)], p)
		}
		assert.Equal(t, ComboNoProducts, r.Categorical[ColCombination])
		assert.Zero(t, r.Numeric[ColNumberOfProducts])
		assert.Zero(t, r.Numeric[ColDaysBetween])
		assert.Zero(t, r.Numeric[ColTenure])
		assert.Zero(t, r.Numeric[ColFirstProductTS])
		assert.Equal(t, CategoryNone, r.Categorical[ColFirstProduct])
		assert.Equal(t, CategoryNone, r.Categorical[ColSecondProduct])
	})

	t.Run("CustomerWithoutTransactions", func(t *testing.T) {
		r := byID["U2"]
		assert.Equal(t, float64(NoRecencyDays), r.Numeric[ColRecency])
		assert.Equal(t, CategoryNone, r.Categorical[ColFavoriteBySpend])
		assert.Zero(t, r.Numeric[ColTotalSpendFavorite])
		assert.Zero(t, r.Numeric[ColActiveMonths])
		assert.Zero(t, r.Numeric[ColAvgMonthlyChange])
		assert.Zero(t, r.Numeric[ColAvgMonthlyChangePct])
		assert.Zero(t, r.Numeric[CountColumn("travel")])
	})

	t.Run("TwoProducts", func(t *testing.T) {
		r := byID["U4"]
		assert.Equal(t, 9.0, r.Numeric[ColDaysBetween])
		assert.Equal(t, 99.0, r.Numeric[ColTenure])
		assert.Equal(t, "checking_account + credit_card", r.Categorical[ColCombination])
		assert.Equal(t, string(CheckingAccount), r.Categorical[ColFirstProduct])
		assert.Equal(t, string(CreditCard), r.Categorical[ColSecondProduct])
		assert.Equal(t, float64(day(1).Unix()), r.Numeric[ColFirstProductTS])
	})

	t.Run("SupersededColumnsDropped", func(t *testing.T) {
		r := byID["U3"]
		for _, col := range droppedColumns {
			_, num := r.Numeric[col]
			_, cat := r.Categorical[col]
			assert.False(t, num || cat, col)
		}
		assert.Equal(t, 100.0, r.Numeric[ColTotalSpendFavorite])
		assert.Equal(t, "food", r.Categorical[ColFavoriteBySpend])
	})
}

func TestGenerate(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	fitted, err := Generate(ctx, fixtureTables(), Options{ReferenceDate: day(100), Fit: true, Logger: logger})
	require.NoError(t, err)
	table := fitted.Table

	t.Run("FixedShape", func(t *testing.T) {
		assert.Equal(t, FeatureColumns, table.Columns)
		assert.Equal(t, []string{"U1", "U2", "U3", "U4", "U5"}, table.UserIDs)
		for _, row := range table.Rows {
			require.Len(t, row, len(FeatureColumns))
			for _, v := range row {
				assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
			}
		}
	})

	t.Run("EncodedAgeBand", func(t *testing.T) {
		code, ok := table.Value("U1", ColAgeRange)
		require.True(t, ok)
		label, ok := fitted.Transforms.Decode(ColAgeRange, int(code))
		require.True(t, ok)
		assert.Equal(t, "25–31", label)
	})

	t.Run("LogSpendOfFavorite", func(t *testing.T) {
		v, _ := table.Value("U3", ColTotalSpendFavorite)
		assert.InDelta(t, math.Log1p(100), v, 1e-12)
	})

	t.Run("ScaledColumnsAreCentered", func(t *testing.T) {
		ages, ok := table.Column(ColAge)
		require.True(t, ok)
		var sum float64
		for _, v := range ages {
			sum += v
		}
		assert.InDelta(t, 0, sum/float64(len(ages)), 1e-9)
	})

	t.Run("InSchemaBatchHasNoDrift", func(t *testing.T) {
		assert.True(t, fitted.Drift.Empty(), "%+v", fitted.Drift)
	})

	t.Run("UnusedCategoriesAreZeroFilled", func(t *testing.T) {
		v, ok := table.Value("U1", CountColumn("health"))
		require.True(t, ok)
		assert.Zero(t, v)
		travel, _ := table.Value("U1", CountColumn("travel"))
		assert.Equal(t, 2.0, travel)
	})

	t.Run("ServingReusesTransforms", func(t *testing.T) {
		served, err := Generate(ctx, fixtureTables(), Options{ReferenceDate: day(100), Transforms: fitted.Transforms, Logger: logger})
		require.NoError(t, err)
		assert.Equal(t, table.Rows, served.Table.Rows)
		assert.Same(t, fitted.Transforms, served.Transforms)
	})

	t.Run("SingleCategoryServingBatchHasNoDrift", func(t *testing.T) {
		tables := fixtureTables()
		tables.Customers = tables.Customers[2:3]
		tables.Products = nil
		tables.Transactions = []Transaction{tx("U3", day(50), 100, "food")}
		served, err := Generate(ctx, tables, Options{ReferenceDate: day(100), Transforms: fitted.Transforms})
		require.NoError(t, err)
		assert.True(t, served.Drift.Empty(), "%+v", served.Drift)
		health, ok := served.Table.Value("U3", CountColumn("health"))
		require.True(t, ok)
		assert.Zero(t, health)
	})

	t.Run("SubsetBatchKeepsCodes", func(t *testing.T) {
		tables := fixtureTables()
		tables.Customers = tables.Customers[3:4]
		served, err := Generate(ctx, tables, Options{ReferenceDate: day(100), Transforms: fitted.Transforms})
		require.NoError(t, err)
		want, _ := table.Value("U4", ColCombination)
		got, _ := served.Table.Value("U4", ColCombination)
		assert.Equal(t, want, got)
		wantAge, _ := table.Value("U4", ColAge)
		gotAge, _ := served.Table.Value("U4", ColAge)
		assert.Equal(t, wantAge, gotAge)
	})

	t.Run("UnseenCategoryIsFlagged", func(t *testing.T) {
		tables := fixtureTables()
		tables.Customers[0].Occupation = "astronaut"
		tables.Transactions = append(tables.Transactions, tx("U2", day(60), 5, "crypto"))
		served, err := Generate(ctx, tables, Options{ReferenceDate: day(100), Transforms: fitted.Transforms, Logger: logger})
		require.NoError(t, err)

		code, _ := served.Table.Value("U1", ColOccupation)
		assert.Equal(t, float64(UnknownCode), code)
		assert.Contains(t, served.Drift.Unseen[ColOccupation], "astronaut")
		assert.Contains(t, served.Drift.ExtraColumns, CountColumn("crypto"))
		assert.NotContains(t, served.Table.Columns, CountColumn("crypto"))
	})
}

func TestGenerateOutputFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "processed", "features.csv")
	res, err := Generate(context.Background(), fixtureTables(), Options{ReferenceDate: day(100), Fit: true, OutputPath: out})
	require.NoError(t, err)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	lines, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, lines, res.Table.Len()+1)
	assert.Equal(t, append([]string{ColUserID}, FeatureColumns...), lines[0])
	assert.Equal(t, "U1", lines[1][0])
}

func TestGenerateEmptyTables(t *testing.T) {
	fitted, err := Generate(context.Background(), fixtureTables(), Options{ReferenceDate: day(100), Fit: true})
	require.NoError(t, err)

	res, err := Generate(context.Background(), &Tables{
		Customers: []Customer{{UserID: "Z1", Age: 40, IncomeRange: "1000-2000", RiskProfile: "moderate", Occupation: "engineer"}},
	}, Options{Transforms: fitted.Transforms})
	require.NoError(t, err)
	require.Equal(t, 1, res.Table.Len())

	recency, _ := res.Table.Value("Z1", ColRecency)
	assert.InDelta(t, fitted.Transforms.Scale(ColRecency, NoRecencyDays), recency, 1e-12)

	empty, err := Generate(context.Background(), &Tables{}, Options{Transforms: fitted.Transforms})
	require.NoError(t, err)
	assert.Zero(t, empty.Table.Len())
	assert.Equal(t, FeatureColumns, empty.Table.Columns)
}

func TestGenerateErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("DuplicateCustomer", func(t *testing.T) {
		tables := fixtureTables()
		tables.Customers = append(tables.Customers, tables.Customers[0])
		_, err := Generate(ctx, tables, Options{Fit: true})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrContract))
		var ce *ContractError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, TableDemographics, ce.Table)
		assert.Equal(t, "user_id", ce.Column)
	})

	t.Run("NegativeAmount", func(t *testing.T) {
		tables := fixtureTables()
		tables.Transactions = append(tables.Transactions, tx("U1", day(2), -5, "food"))
		_, err := Generate(ctx, tables, Options{Fit: true})
		assert.ErrorIs(t, err, ErrContract)
	})

	t.Run("TransformsPolicyMustBeExplicit", func(t *testing.T) {
		_, err := Generate(ctx, fixtureTables(), Options{})
		assert.Error(t, err)
		_, err = Generate(ctx, fixtureTables(), Options{Fit: true, Transforms: &FittedTransforms{}})
		assert.Error(t, err)
	})

	t.Run("IncompleteTransforms", func(t *testing.T) {
		_, err := Generate(ctx, fixtureTables(), Options{Transforms: &FittedTransforms{}})
		assert.Error(t, err)
	})

	t.Run("Cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		res, err := Generate(cctx, fixtureTables(), Options{Fit: true})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, res)
	})
}
