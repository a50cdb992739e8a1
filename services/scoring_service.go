package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"prometeo-backend/classifier"
	"prometeo-backend/features"
	"prometeo-backend/models"
)

// Run triggers.
const (
	TriggerAPI      = "api"
	TriggerSchedule = "schedule"
	TriggerCLI      = "cli"
)

// ErrRunInProgress is returned when a scoring run is requested while another is active.
var ErrRunInProgress = errors.New("scoring run already in progress")

type ScoringConfig struct {
	Threshold     float64
	ReferenceDate time.Time
	// SourceName is recorded on each run (db, csv, http).
	SourceName string
}

// ScoringService runs the feature pipeline with the training-time transforms, scores the
// result and stores one prediction per client.
type ScoringService struct {
	db         *gorm.DB
	source     features.Source
	model      classifier.Classifier
	transforms *features.FittedTransforms
	cfg        ScoringConfig
	logger     *zap.Logger

	mu sync.Mutex
}

func NewScoringService(db *gorm.DB, source features.Source, model classifier.Classifier,
	transforms *features.FittedTransforms, cfg ScoringConfig, logger *zap.Logger) *ScoringService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScoringService{
		db:         db,
		source:     source,
		model:      model,
		transforms: transforms,
		cfg:        cfg,
		logger:     logger.Named("scoring"),
	}
}

// Threshold is the decision threshold applied to probabilities.
func (s *ScoringService) Threshold() float64 { return s.cfg.Threshold }

// ScoreSource loads the raw tables from the configured source and scores them.
func (s *ScoringService) ScoreSource(ctx context.Context, trigger string) (*models.PipelineRun, error) {
	if !s.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.mu.Unlock()

	run, err := s.startRun(ctx, trigger)
	if err != nil {
		return nil, err
	}
	tables, err := s.source.Load(ctx)
	if err != nil {
		return s.finishRun(run, fmt.Errorf("load tables: %w", err))
	}
	return s.score(ctx, run, tables)
}

// ScoreTables scores tables that are already in memory.
func (s *ScoringService) ScoreTables(ctx context.Context, tables *features.Tables, trigger string) (*models.PipelineRun, error) {
	if !s.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.mu.Unlock()

	run, err := s.startRun(ctx, trigger)
	if err != nil {
		return nil, err
	}
	return s.score(ctx, run, tables)
}

func (s *ScoringService) startRun(ctx context.Context, trigger string) (*models.PipelineRun, error) {
	ref := s.cfg.ReferenceDate
	if ref.IsZero() {
		ref = features.DefaultReferenceDate
	}
	run := &models.PipelineRun{
		Trigger:       trigger,
		Source:        s.cfg.SourceName,
		ReferenceDate: ref,
		Status:        models.RunRunning,
		StartedAt:     time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, fmt.Errorf("record pipeline run: %w", err)
	}
	s.logger.Info("scoring run started", zap.String("run_id", run.ID.String()), zap.String("trigger", trigger))
	return run, nil
}

func (s *ScoringService) score(ctx context.Context, run *models.PipelineRun, tables *features.Tables) (*models.PipelineRun, error) {
	res, err := features.Generate(ctx, tables, features.Options{
		ReferenceDate: run.ReferenceDate,
		Transforms:    s.transforms,
		Logger:        s.logger,
	})
	if err != nil {
		return s.finishRun(run, fmt.Errorf("generate features: %w", err))
	}
	run.Customers = res.Table.Len()

	modelTable, modelDrift := res.Table.Without(features.ModelExcludedColumns...).Realign(s.model.FeatureNames())
	modelDrift.Log(s.logger, "classifier_input")
	recordDrift("feature_assembly", res.Drift)
	recordDrift("classifier_input", modelDrift)
	run.DriftCount = res.Drift.Count() + modelDrift.Count()
	run.Drift = driftDocument(map[string]features.Drift{
		"feature_assembly": res.Drift,
		"classifier_input": modelDrift,
	})

	probs, err := s.model.PredictProba(ctx, modelTable.Rows)
	if err != nil {
		return s.finishRun(run, fmt.Errorf("predict: %w", err))
	}
	if len(probs) != modelTable.Len() {
		return s.finishRun(run, fmt.Errorf("predict: got %d probabilities for %d clients", len(probs), modelTable.Len()))
	}

	preds := make([]models.Prediction, len(probs))
	for i, p := range probs {
		preds[i] = models.Prediction{
			UserID:      modelTable.UserIDs[i],
			Probability: p,
			PredBin:     classifier.Label(p, s.cfg.Threshold),
			RunID:       run.ID,
		}
	}
	if err := s.storePredictions(ctx, preds); err != nil {
		return s.finishRun(run, err)
	}
	run.Scored = len(preds)
	clientsScored.Add(float64(len(preds)))
	return s.finishRun(run, nil)
}

func (s *ScoringService) storePredictions(ctx context.Context, preds []models.Prediction) error {
	if len(preds) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"probability", "pred_bin", "run_id", "updated_at"}),
		}).CreateInBatches(&preds, seedBatchSize).Error
	})
	if err != nil {
		return fmt.Errorf("store predictions: %w", err)
	}
	return nil
}

// finishRun stamps the run outcome. It persists with a fresh context so that a cancelled
// run is still recorded as failed.
func (s *ScoringService) finishRun(run *models.PipelineRun, runErr error) (*models.PipelineRun, error) {
	now := time.Now().UTC()
	run.FinishedAt = &now
	run.Status = models.RunSucceeded
	if runErr != nil {
		run.Status = models.RunFailed
		run.Error = runErr.Error()
	}
	scoringRuns.WithLabelValues(run.Trigger, run.Status).Inc()
	scoringDuration.Observe(now.Sub(run.StartedAt).Seconds())

	if err := s.db.Save(run).Error; err != nil {
		s.logger.Error("failed to record run outcome", zap.String("run_id", run.ID.String()), zap.Error(err))
	}

	fields := []zap.Field{
		zap.String("run_id", run.ID.String()),
		zap.Int("customers", run.Customers),
		zap.Int("scored", run.Scored),
		zap.Int("drift", run.DriftCount),
		zap.Duration("elapsed", now.Sub(run.StartedAt)),
	}
	if runErr != nil {
		s.logger.Error("scoring run failed", append(fields, zap.Error(runErr))...)
		return run, runErr
	}
	s.logger.Info("scoring run finished", fields...)
	return run, nil
}

// StartScheduler rescores the source on a cron spec. An empty spec disables rescoring.
func (s *ScoringService) StartScheduler(spec string) (*cron.Cron, error) {
	if spec == "" {
		return nil, nil
	}
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		if _, err := s.ScoreSource(ctx, TriggerSchedule); err != nil && !errors.Is(err, ErrRunInProgress) {
			s.logger.Error("scheduled rescoring failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid rescore schedule %q: %w", spec, err)
	}
	c.Start()
	s.logger.Info("rescoring scheduler started", zap.String("schedule", spec))
	return c, nil
}

// GetRun fetches a recorded pipeline run.
func (s *ScoringService) GetRun(ctx context.Context, id uuid.UUID) (*models.PipelineRun, error) {
	var run models.PipelineRun
	if err := s.db.WithContext(ctx).First(&run, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

func recordDrift(stage string, d features.Drift) {
	if n := len(d.MissingColumns); n > 0 {
		schemaDrift.WithLabelValues(stage, "missing_column").Add(float64(n))
	}
	if n := len(d.ExtraColumns); n > 0 {
		schemaDrift.WithLabelValues(stage, "extra_column").Add(float64(n))
	}
	for _, vs := range d.Unseen {
		schemaDrift.WithLabelValues(stage, "unseen_category").Add(float64(len(vs)))
	}
}

func driftDocument(stages map[string]features.Drift) models.JSONB {
	doc := models.JSONB{}
	for stage, d := range stages {
		if d.Empty() {
			continue
		}
		raw, err := json.Marshal(d)
		if err != nil {
			continue
		}
		var v map[string]interface{}
		if json.Unmarshal(raw, &v) == nil {
			doc[stage] = v
		}
	}
	return doc
}
