package features

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	demographicsCSV = "user_id,age,income_range,risk_profile,occupation\nU1,30,1000-2000,moderate,engineer\nU2,45,2000-3000,aggressive,teacher\n"
	productsCSV     = "user_id,product_type,contract_date\nU1,investment_account,2023-01-05\nU1,credit_card,2023-02-01T10:00:00Z\n"
	transactionsCSV = "transaction_id,user_id,date,amount,merchant_category\nT1,U1,2023-03-01,12.50,Food\nT2,U2,2023-03-02,7,travel\n"
)

func TestReadDemographics(t *testing.T) {
	customers, err := ReadDemographics(strings.NewReader(demographicsCSV))
	require.NoError(t, err)
	require.Len(t, customers, 2)
	assert.Equal(t, Customer{UserID: "U1", Age: 30, IncomeRange: "1000-2000", RiskProfile: "moderate", Occupation: "engineer"}, customers[0])

	t.Run("ColumnsInAnyOrder", func(t *testing.T) {
		customers, err := ReadDemographics(strings.NewReader("occupation,age,user_id,risk_profile,income_range,extra\nnurse,33,U7,moderate,1000-2000,x\n"))
		require.NoError(t, err)
		assert.Equal(t, "U7", customers[0].UserID)
		assert.Equal(t, 33, customers[0].Age)
	})

	t.Run("MissingColumn", func(t *testing.T) {
		_, err := ReadDemographics(strings.NewReader("user_id,age,income_range,occupation\nU1,30,a,b\n"))
		var ce *ContractError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, TableDemographics, ce.Table)
		assert.Equal(t, "risk_profile", ce.Column)
	})

	t.Run("BadAge", func(t *testing.T) {
		_, err := ReadDemographics(strings.NewReader("user_id,age,income_range,risk_profile,occupation\nU1,old,a,b,c\n"))
		var ce *ContractError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, 1, ce.Row)
		assert.Equal(t, "age", ce.Column)
	})

	t.Run("EmptyFile", func(t *testing.T) {
		_, err := ReadDemographics(strings.NewReader(""))
		assert.ErrorIs(t, err, ErrContract)
	})

	t.Run("HeaderOnly", func(t *testing.T) {
		customers, err := ReadDemographics(strings.NewReader("user_id,age,income_range,risk_profile,occupation\n"))
		require.NoError(t, err)
		assert.Empty(t, customers)
	})
}

func TestReadProducts(t *testing.T) {
	products, err := ReadProducts(strings.NewReader(productsCSV))
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, Investment, products[0].ProductType)
	assert.Equal(t, date(2023, 1, 5), products[0].ContractDate)
	assert.Equal(t, 2023, products[1].ContractDate.Year())

	_, err = ReadProducts(strings.NewReader("user_id,product_type,contract_date\nU1,credit_card,yesterday\n"))
	assert.ErrorIs(t, err, ErrContract)
}

func TestReadTransactions(t *testing.T) {
	txs, err := ReadTransactions(strings.NewReader(transactionsCSV))
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "food", txs[0].MerchantCategory)
	assert.True(t, txs[0].Amount.Equal(decimal.RequireFromString("12.5")))

	_, err = ReadTransactions(strings.NewReader("transaction_id,user_id,date,amount\nT1,U1,2023-01-01,3\n"))
	var ce *ContractError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "merchant_category", ce.Column)

	_, err = ReadTransactions(strings.NewReader("transaction_id,user_id,date,amount,merchant_category\nT1,U1,2023-01-01,abc,food\n"))
	assert.ErrorIs(t, err, ErrContract)
}

func TestCSVDirSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "demographics.csv"), []byte(demographicsCSV), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "products.csv"), []byte(productsCSV), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "transactions.csv"), []byte(transactionsCSV), 0o644))

	tables, err := CSVDirSource{Dir: dir}.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, tables.Customers, 2)
	assert.Len(t, tables.Products, 2)
	assert.Len(t, tables.Transactions, 2)

	require.NoError(t, os.Remove(filepath.Join(dir, "products.csv")))
	_, err = CSVDirSource{Dir: dir}.Load(context.Background())
	assert.Error(t, err)
}

func TestHTTPSource(t *testing.T) {
	bodies := map[string]string{
		"/demographics": demographicsCSV,
		"/products":     productsCSV,
		"/transactions": transactionsCSV,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := bodies[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	src := HTTPSource{BaseURL: srv.URL + "/", Client: srv.Client()}
	res, err := GenerateFromSource(context.Background(), src, Options{Fit: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"U1", "U2"}, res.Table.UserIDs)

	delete(bodies, "/transactions")
	_, err = src.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 404")
}
