package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"prometeo-backend/features"
)

var (
	fetchBaseURL string
	fetchOutDir  string
)

var fetchCmd = &cobra.Command{
	Use:     "fetch",
	Short:   "download the raw tables from the mock data service",
	Example: `  $ featurize fetch --base-url http://localhost:3002 --out-dir data/raw`,
	Args:    cobra.NoArgs,
	RunE:    runFetch,
}

func init() {
	fetchCmd.Flags().StringVar(&fetchBaseURL, "base-url", "", "mock data service URL (default MOCK_BASE_URL)")
	fetchCmd.Flags().StringVar(&fetchOutDir, "out-dir", "", "where to write the CSV files (default DATA_DIR)")
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	src := features.HTTPSource{
		BaseURL: orDefault(fetchBaseURL, cfg.MockBaseURL),
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
	dir := orDefault(fetchOutDir, cfg.DataDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	for _, table := range []string{features.TableDemographics, features.TableProducts, features.TableTransactions} {
		body, err := src.Fetch(ctx, table)
		if err != nil {
			return err
		}
		path := filepath.Join(dir, table+".csv")
		if err := os.WriteFile(path, body, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		logger.Info("table fetched", zap.String("table", table), zap.String("path", path), zap.Int("bytes", len(body)))
	}
	return nil
}
