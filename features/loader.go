package features

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"prometeo-backend/utils"
)

// Source provides the three raw tables of a pipeline run.
type Source interface {
	Load(ctx context.Context) (*Tables, error)
}

// csvTable indexes a CSV body by header name.
type csvTable struct {
	name  string
	index map[string]int
	rows  [][]string
}

func readCSV(r io.Reader, table string, required ...string) (*csvTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &ContractError{Table: table, Reason: "empty file, header row expected"}
	}
	if err != nil {
		return nil, fmt.Errorf("read %s header: %w", table, err)
	}
	t := &csvTable{name: table, index: make(map[string]int, len(header))}
	for i, h := range header {
		t.index[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, col := range required {
		if _, ok := t.index[col]; !ok {
			return nil, missingColumn(table, col)
		}
	}
	t.rows, err = cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s rows: %w", table, err)
	}
	return t, nil
}

func (t *csvTable) get(row []string, col string) string {
	i := t.index[col]
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (t *csvTable) date(row []string, n int, col string) (time.Time, error) {
	raw := t.get(row, col)
	d, err := utils.ParseDate(raw)
	if err != nil {
		return time.Time{}, badValue(t.name, col, n, fmt.Sprintf("invalid date %q", raw))
	}
	return d, nil
}

// ReadDemographics parses a demographics CSV.
func ReadDemographics(r io.Reader) ([]Customer, error) {
	t, err := readCSV(r, TableDemographics, "user_id", "age", "income_range", "risk_profile", "occupation")
	if err != nil {
		return nil, err
	}
	out := make([]Customer, 0, len(t.rows))
	for i, row := range t.rows {
		n := i + 1
		rawAge := t.get(row, "age")
		age, err := strconv.Atoi(rawAge)
		if err != nil {
			f, ferr := strconv.ParseFloat(rawAge, 64)
			if ferr != nil {
				return nil, badValue(TableDemographics, "age", n, fmt.Sprintf("invalid integer %q", rawAge))
			}
			age = int(f)
		}
		out = append(out, Customer{
			UserID:      t.get(row, "user_id"),
			Age:         age,
			IncomeRange: t.get(row, "income_range"),
			RiskProfile: t.get(row, "risk_profile"),
			Occupation:  t.get(row, "occupation"),
		})
	}
	return out, nil
}

// ReadProducts parses a products CSV. Product types are normalized on the way in.
func ReadProducts(r io.Reader) ([]ProductEvent, error) {
	t, err := readCSV(r, TableProducts, "user_id", "product_type", "contract_date")
	if err != nil {
		return nil, err
	}
	out := make([]ProductEvent, 0, len(t.rows))
	for i, row := range t.rows {
		d, err := t.date(row, i+1, "contract_date")
		if err != nil {
			return nil, err
		}
		out = append(out, ProductEvent{
			UserID:       t.get(row, "user_id"),
			ProductType:  ParseProductType(t.get(row, "product_type")),
			ContractDate: d,
		})
	}
	return out, nil
}

// ReadTransactions parses a transactions CSV.
func ReadTransactions(r io.Reader) ([]Transaction, error) {
	t, err := readCSV(r, TableTransactions, "transaction_id", "user_id", "date", "amount", "merchant_category")
	if err != nil {
		return nil, err
	}
	out := make([]Transaction, 0, len(t.rows))
	for i, row := range t.rows {
		n := i + 1
		d, err := t.date(row, n, "date")
		if err != nil {
			return nil, err
		}
		rawAmount := t.get(row, "amount")
		amount, err := decimal.NewFromString(rawAmount)
		if err != nil {
			return nil, badValue(TableTransactions, "amount", n, fmt.Sprintf("invalid amount %q", rawAmount))
		}
		cat := NormalizeCategory(t.get(row, "merchant_category"))
		if cat == "" {
			return nil, badValue(TableTransactions, "merchant_category", n, "empty category")
		}
		out = append(out, Transaction{
			TransactionID:    t.get(row, "transaction_id"),
			UserID:           t.get(row, "user_id"),
			Date:             d,
			Amount:           amount,
			MerchantCategory: cat,
		})
	}
	return out, nil
}

// CSVDirSource reads demographics.csv, products.csv and transactions.csv from Dir.
type CSVDirSource struct {
	Dir string
}

func (s CSVDirSource) Load(ctx context.Context) (*Tables, error) {
	return loadTables(ctx, func(_ context.Context, name string) (io.ReadCloser, error) {
		return os.Open(filepath.Join(s.Dir, name+".csv"))
	})
}

// HTTPSource fetches the three tables as CSV from BaseURL/demographics, /products and
// /transactions.
type HTTPSource struct {
	BaseURL string
	Client  *http.Client
}

func (s HTTPSource) Load(ctx context.Context) (*Tables, error) {
	return loadTables(ctx, s.open)
}

// Fetch returns the raw CSV body of one table.
func (s HTTPSource) Fetch(ctx context.Context, table string) ([]byte, error) {
	body, err := s.open(ctx, table)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return io.ReadAll(body)
}

func (s HTTPSource) open(ctx context.Context, table string) (io.ReadCloser, error) {
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	url := strings.TrimRight(s.BaseURL, "/") + "/" + table
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", table, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", table, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: unexpected status %d", table, resp.StatusCode)
	}
	return resp.Body, nil
}

type opener func(ctx context.Context, table string) (io.ReadCloser, error)

func loadTables(ctx context.Context, open opener) (*Tables, error) {
	var tables Tables
	var err error

	if tables.Customers, err = readWith(ctx, open, TableDemographics, ReadDemographics); err != nil {
		return nil, err
	}
	if tables.Products, err = readWith(ctx, open, TableProducts, ReadProducts); err != nil {
		return nil, err
	}
	if tables.Transactions, err = readWith(ctx, open, TableTransactions, ReadTransactions); err != nil {
		return nil, err
	}
	return &tables, nil
}

func readWith[T any](ctx context.Context, open opener, table string, read func(io.Reader) ([]T, error)) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rc, err := open(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", table, err)
	}
	defer rc.Close()
	return read(rc)
}
