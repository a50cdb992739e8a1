package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"prometeo-backend/classifier"
	"prometeo-backend/config"
	"prometeo-backend/features"
	"prometeo-backend/models"
	"prometeo-backend/services"
)

var (
	seedSource  string
	seedDataDir string
	seedBaseURL string
	seedScore   bool
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "load raw tables into the database and score them",
	Long: `Seed reads the raw tables from CSV files or the mock data service, upserts them into
the database named by DB_URL and, unless --score=false, runs a scoring pass so the
dashboard has predictions to show.`,
	Args: cobra.NoArgs,
	RunE: runSeed,
}

func init() {
	f := seedCmd.Flags()
	f.StringVar(&seedSource, "source", "http", "raw table source: csv or http")
	f.StringVar(&seedDataDir, "data-dir", "", "directory holding the raw CSV tables (default DATA_DIR)")
	f.StringVar(&seedBaseURL, "base-url", "", "mock data service URL (default MOCK_BASE_URL)")
	f.BoolVar(&seedScore, "score", true, "score the seeded clients")
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if seedSource != "csv" && seedSource != "http" {
		return fmt.Errorf("--source must be csv or http, got %q", seedSource)
	}
	src, err := services.NewSource(seedSource, orDefault(seedDataDir, cfg.DataDir), orDefault(seedBaseURL, cfg.MockBaseURL), nil)
	if err != nil {
		return err
	}
	tables, err := src.Load(ctx)
	if err != nil {
		return err
	}

	if err := config.ConnectDB(cfg.DBUrl); err != nil {
		return err
	}
	if err := models.Migrate(config.DB); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := services.SeedClients(ctx, config.DB, tables); err != nil {
		return err
	}
	logger.Info("database seeded",
		zap.Int("clients", len(tables.Customers)),
		zap.Int("products", len(tables.Products)),
		zap.Int("transactions", len(tables.Transactions)),
	)
	if !seedScore {
		return nil
	}

	model, err := classifier.LoadLogistic(cfg.ModelPath)
	if err != nil {
		return err
	}
	if err := features.CheckModelColumns(model.FeatureNames()); err != nil {
		return fmt.Errorf("%s: %w", cfg.ModelPath, err)
	}
	transforms, err := features.LoadTransforms(cfg.TransformsPath)
	if err != nil {
		return err
	}
	scoring := services.NewScoringService(config.DB, services.DBSource{DB: config.DB}, model, transforms,
		services.ScoringConfig{Threshold: cfg.Threshold, ReferenceDate: cfg.ReferenceDate, SourceName: config.SourceDB}, logger)
	run, err := scoring.ScoreSource(ctx, services.TriggerCLI)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "scored %d clients in run %s\n", run.Scored, run.ID)
	return nil
}
