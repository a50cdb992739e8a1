package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"prometeo-backend/classifier"
	"prometeo-backend/config"
	"prometeo-backend/features"
	"prometeo-backend/models"
	"prometeo-backend/routes"
	"prometeo-backend/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("create logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	if err := config.ConnectDB(cfg.DBUrl); err != nil {
		return err
	}
	if err := models.Migrate(config.DB); err != nil {
		return fmt.Errorf("migrate: %w", err)
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
	source, err := services.NewSource(cfg.DataSource, cfg.DataDir, cfg.MockBaseURL, config.DB)
	if err != nil {
		return err
	}
	scoring := services.NewScoringService(config.DB, source, model, transforms, services.ScoringConfig{
		Threshold:     cfg.Threshold,
		ReferenceDate: cfg.ReferenceDate,
		SourceName:    cfg.DataSource,
	}, logger)

	scheduler, err := scoring.StartScheduler(cfg.RescoreSchedule)
	if err != nil {
		return err
	}
	if scheduler != nil {
		defer scheduler.Stop()
	}

	gin.SetMode(gin.ReleaseMode)
	r := routes.SetupRouter(routes.Options{
		CORSOrigins: cfg.CORSOrigins,
		Threshold:   cfg.Threshold,
		Scoring:     scoring,
		Logger:      logger,
	})
	printRoutes(r, logger)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-stop:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return srv.Shutdown(ctx)
}

func printRoutes(r *gin.Engine, logger *zap.Logger) {
	for _, route := range r.Routes() {
		logger.Debug("route", zap.String("method", route.Method), zap.String("path", route.Path))
	}
}
