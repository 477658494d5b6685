package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SuryaBandari247/MLOps-Lead-Scoring-Open-Source/pkg/config"
	"github.com/SuryaBandari247/MLOps-Lead-Scoring-Open-Source/pkg/encoding"
	"github.com/SuryaBandari247/MLOps-Lead-Scoring-Open-Source/pkg/featurestore"
	"github.com/SuryaBandari247/MLOps-Lead-Scoring-Open-Source/pkg/logger"
	"github.com/SuryaBandari247/MLOps-Lead-Scoring-Open-Source/pkg/mlmodel/training"
	"github.com/SuryaBandari247/MLOps-Lead-Scoring-Open-Source/pkg/telemetry"
	"github.com/SuryaBandari247/MLOps-Lead-Scoring-Open-Source/pkg/tracking"
)

// ErrEncodingAborted is returned by Run when the input lacks a categorical
// feature and training was skipped
var ErrEncodingAborted = errors.New("feature encoding aborted")

// Execution summarises one end-to-end run
type Execution struct {
	ID          string
	StartedAt   time.Time
	CompletedAt time.Time
	Encoding    *encoding.Result
	Training    *training.Result
}

// Service executes the encode and train stages against the configured store and tracker
type Service struct {
	cfg     *config.Config
	log     *logger.Logger
	metrics *telemetry.Metrics
}

// NewService creates a pipeline service. metrics may be nil.
func NewService(cfg *config.Config, log *logger.Logger, metrics *telemetry.Metrics) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	if metrics == nil {
		metrics = telemetry.New(cfg.Telemetry)
	}
	return &Service{
		cfg:     cfg,
		log:     log.WithFields(logger.Component("pipeline")),
		metrics: metrics,
	}
}

// Metrics returns the service's telemetry
func (s *Service) Metrics() *telemetry.Metrics {
	return s.metrics
}

// Encode runs the feature encoder. An aborted encoding is not an error;
// check Result.Aborted.
func (s *Service) Encode(ctx context.Context) (res *encoding.Result, err error) {
	start := time.Now()
	defer func() {
		status := stageStatus(err)
		if err == nil && res.Aborted {
			status = "aborted"
		}
		s.metrics.ObserveStage(telemetry.StageEncode, status, time.Since(start))
	}()

	store, err := featurestore.Open(ctx, s.cfg.Store.DSN)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	res, err = encoding.NewEncoder(store, s.cfg, s.log).Encode(ctx)
	if err != nil {
		return nil, err
	}
	if !res.Aborted {
		s.metrics.SetRowsEncoded(res.Rows())
	}
	return res, nil
}

// Train runs the model trainer
func (s *Service) Train(ctx context.Context) (res *training.Result, err error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveStage(telemetry.StageTrain, stageStatus(err), time.Since(start))
	}()

	store, err := featurestore.Open(ctx, s.cfg.Store.DSN)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	tracker, err := tracking.New(s.cfg.Tracking, s.log)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracker: %w", err)
	}
	defer tracker.Close()

	res, err = training.NewTrainer(store, tracker, s.cfg, s.log).Train(ctx)
	if err != nil {
		return nil, err
	}
	s.metrics.SetModelMetrics(res.Metrics)
	return res, nil
}

// Run encodes then trains. Metrics are pushed once both stages are done,
// whatever the outcome.
func (s *Service) Run(ctx context.Context) (*Execution, error) {
	exec := &Execution{StartedAt: time.Now()}
	defer func() {
		if err := s.metrics.Push(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn("Failed to push metrics", logger.Error(err))
		}
	}()

	s.log.Info("Executing lead scoring pipeline",
		logger.String("store", s.cfg.Store.DSN),
		logger.String("tracking_uri", s.cfg.Tracking.URI))

	var err error
	if exec.Encoding, err = s.Encode(ctx); err != nil {
		return exec, fmt.Errorf("encode stage failed: %w", err)
	}
	if exec.Encoding.Aborted {
		exec.CompletedAt = time.Now()
		return exec, fmt.Errorf("%w: missing feature %s", ErrEncodingAborted, exec.Encoding.MissingFeature)
	}

	if exec.Training, err = s.Train(ctx); err != nil {
		return exec, fmt.Errorf("train stage failed: %w", err)
	}
	exec.ID = exec.Training.Run.ID
	exec.CompletedAt = time.Now()

	s.log.Info("Pipeline execution completed",
		logger.String("run_id", exec.ID),
		logger.String("model_version", exec.Training.ModelVersion.Version),
		logger.Duration("duration", exec.CompletedAt.Sub(exec.StartedAt)))
	return exec, nil
}

func stageStatus(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
