package training

import (
	"context"
	"fmt"
	"time"

	"github.com/SuryaBandari247/MLOps-Lead-Scoring-Open-Source/pkg/config"
	"github.com/SuryaBandari247/MLOps-Lead-Scoring-Open-Source/pkg/logger"
	"github.com/SuryaBandari247/MLOps-Lead-Scoring-Open-Source/pkg/mlmodel/evaluation"
	"github.com/SuryaBandari247/MLOps-Lead-Scoring-Open-Source/pkg/mlmodel/gbdt"
	"github.com/SuryaBandari247/MLOps-Lead-Scoring-Open-Source/pkg/models"
	"github.com/SuryaBandari247/MLOps-Lead-Scoring-Open-Source/pkg/tracking"
)

// TableStore is the slice of the feature store the trainer reads from
type TableStore interface {
	ReadTable(ctx context.Context, table string) (*models.Frame, error)
}

// Result holds the outcome of one training run
type Result struct {
	Run          *models.Run
	ModelVersion *models.ModelVersion
	Model        *gbdt.Classifier
	Report       *evaluation.Report
	Metrics      map[string]float64
	Data         *TrainingData
}

// Trainer fits the lead-scoring model and records it in the tracker
type Trainer struct {
	store   TableStore
	tracker tracking.Tracker
	cfg     *config.Config
	log     *logger.Logger
}

// NewTrainer creates a trainer
func NewTrainer(store TableStore, tracker tracking.Tracker, cfg *config.Config, log *logger.Logger) *Trainer {
	if log == nil {
		log = logger.NewNop()
	}
	return &Trainer{
		store:   store,
		tracker: tracker,
		cfg:     cfg,
		log:     log.WithFields(logger.Component("trainer")),
	}
}

// Train loads the features and target tables, fits the classifier on a seeded
// 70/30 split, logs params, metrics and the model to a new run, and ends the run.
// A run that fails after it was started is ended as FAILED.
func (t *Trainer) Train(ctx context.Context) (res *Result, err error) {
	features, err := t.store.ReadTable(ctx, t.cfg.Store.FeaturesTable)
	if err != nil {
		return nil, fmt.Errorf("failed to load features table: %w", err)
	}
	target, err := t.store.ReadTable(ctx, t.cfg.Store.TargetTable)
	if err != nil {
		return nil, fmt.Errorf("failed to load target table: %w", err)
	}

	X, y, err := FromFrames(features, target)
	if err != nil {
		return nil, err
	}
	data, err := TrainTestSplit(X, y, features.Columns, t.cfg.Model.TestSize, t.cfg.Model.RandomSeed)
	if err != nil {
		return nil, err
	}
	t.log.Debug("Split training data",
		logger.Int("train_rows", len(data.TrainLabels)),
		logger.Int("test_rows", len(data.TestLabels)),
		logger.Int("features", len(data.FeatureNames)))

	run, err := t.tracker.StartRun(ctx, t.cfg.Tracking.Experiment)
	if err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if endErr := t.tracker.EndRun(context.WithoutCancel(ctx), run, models.RunStatusFailed); endErr != nil {
			t.log.Warn("Failed to mark run as failed", logger.String("run_id", run.ID), logger.Error(endErr))
		}
	}()

	res = &Result{Run: run, Data: data}

	res.Model, err = gbdt.NewClassifier(t.cfg.Model.Hyperparameters)
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier: %w", err)
	}
	start := time.Now()
	if err = res.Model.Fit(data.TrainFeatures, data.TrainLabels); err != nil {
		return nil, fmt.Errorf("failed to fit classifier: %w", err)
	}
	t.log.Info("Fitted classifier",
		logger.Int("trees", res.Model.Params.NEstimators),
		logger.Duration("duration", time.Since(start)))

	params := StringifyParams(t.cfg.Model.Hyperparameters)

	artifact, err := BuildArtifact(res.Model, run, t.cfg.Tracking.ArtifactPath, t.cfg.Tracking.RegisteredModel, data.FeatureNames, params, time.Now())
	if err != nil {
		return nil, err
	}
	if res.ModelVersion, err = t.tracker.LogModel(ctx, run, artifact); err != nil {
		return nil, fmt.Errorf("failed to log model: %w", err)
	}
	if err = t.tracker.LogParams(ctx, run, params); err != nil {
		return nil, fmt.Errorf("failed to log params: %w", err)
	}

	pred, err := res.Model.Predict(data.TestFeatures)
	if err != nil {
		return nil, fmt.Errorf("failed to predict test rows: %w", err)
	}
	if res.Report, err = evaluation.Evaluate(data.TestLabels, pred); err != nil {
		return nil, fmt.Errorf("failed to evaluate model: %w", err)
	}
	t.log.Debug("Confusion matrix (predicted, actual)", logger.Any("matrix", res.Report.PredictedVsActual))

	res.Metrics = res.Report.Metrics()
	if err = t.tracker.LogMetrics(ctx, run, res.Metrics); err != nil {
		return nil, fmt.Errorf("failed to log metrics: %w", err)
	}

	if err = t.tracker.EndRun(ctx, run, models.RunStatusFinished); err != nil {
		return nil, fmt.Errorf("failed to end run: %w", err)
	}

	t.log.Info(fmt.Sprintf("Inside MLflow Run with id %s", run.ID),
		logger.String("run_id", run.ID),
		logger.Float("roc_auc_score", res.Report.ROCAUC),
		logger.Float("test_accuracy", res.Report.Accuracy))
	return res, nil
}

// StringifyParams renders hyperparameters the way they are shown in the tracker:
// nil is None, booleans are True/False, integral floats keep ".0"
func StringifyParams(hp map[string]any) map[string]string {
	out := make(map[string]string, len(hp))
	for k, v := range hp {
		if v == nil {
			out[k] = "None"
			continue
		}
		out[k] = models.FormatValue(v)
	}
	return out
}
