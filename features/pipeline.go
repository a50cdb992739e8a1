package features

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// DefaultReferenceDate anchors tenure and recency when no reference date is given.
var DefaultReferenceDate = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// Options parameterizes one pipeline run.
type Options struct {
	// ReferenceDate is the as-of date for durations. Zero means DefaultReferenceDate.
	ReferenceDate time.Time
	// Transforms are the training-time scaler and encoders. Required unless Fit is set.
	Transforms *FittedTransforms
	// Fit fits fresh transforms on this batch. Only offline training runs should set it.
	Fit bool
	// OutputPath, when set, receives the table as CSV.
	OutputPath string
	Logger     *zap.Logger
}

// Result is the output of a successful run.
type Result struct {
	Table         *FeatureTable
	Transforms    *FittedTransforms
	Drift         Drift
	ReferenceDate time.Time
}

// Generate runs the full feature pipeline over in-memory tables. It either returns a
// complete table or an error, never a partial table.
func Generate(ctx context.Context, tables *Tables, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if tables == nil {
		return nil, errors.New("features: nil tables")
	}
	if opts.Fit == (opts.Transforms != nil) {
		return nil, errors.New("features: set exactly one of Transforms or Fit")
	}
	if opts.Transforms != nil {
		if err := opts.Transforms.Validate(); err != nil {
			return nil, err
		}
	}
	if err := tables.Validate(); err != nil {
		return nil, err
	}
	ref := opts.ReferenceDate
	if ref.IsZero() {
		ref = DefaultReferenceDate
	}
	ref = ref.UTC()

	products := AggregateProducts(tables.Products, ref)
	logger.Info("products aggregated", zap.Int("events", len(tables.Products)), zap.Int("customers", len(products)))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	txs := AggregateTransactions(tables.Transactions, ref)
	logger.Info("transactions aggregated", zap.Int("events", len(tables.Transactions)), zap.Int("customers", len(txs)))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records := Assemble(tables.Customers, products, txs)

	ft := opts.Transforms
	if opts.Fit {
		var err error
		if ft, err = FitTransforms(records); err != nil {
			return nil, err
		}
		logger.Info("transforms fitted", zap.Int("records", len(records)))
	}

	var drift Drift
	rows := ft.Apply(records, &drift)
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.UserID
	}
	table, alignDrift := Align(ids, rows, FeatureColumns)
	drift.Merge(alignDrift)
	drift.Log(logger, "feature_assembly")

	if opts.OutputPath != "" {
		if err := writeFileAtomic(opts.OutputPath, table); err != nil {
			return nil, err
		}
		logger.Info("feature table written",
			zap.String("path", opts.OutputPath),
			zap.Int("rows", table.Len()),
			zap.Int("columns", len(table.Columns)+1),
		)
	}

	return &Result{Table: table, Transforms: ft, Drift: drift, ReferenceDate: ref}, nil
}

// GenerateFromSource loads tables from src and runs Generate.
func GenerateFromSource(ctx context.Context, src Source, opts Options) (*Result, error) {
	tables, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tables: %w", err)
	}
	return Generate(ctx, tables, opts)
}

func writeFileAtomic(path string, table *FeatureTable) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".features-*.csv")
	if err != nil {
		return fmt.Errorf("create temp output: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := table.WriteCSV(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write features: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp output: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("move features into place: %w", err)
	}
	return nil
}
