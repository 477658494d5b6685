// Package tracking records training runs, their params, metrics and model
// artifacts in an experiment tracker.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/SuryaBandari247/MLOps-Lead-Scoring-Open-Source/pkg/config"
	"github.com/SuryaBandari247/MLOps-Lead-Scoring-Open-Source/pkg/logger"
	"github.com/SuryaBandari247/MLOps-Lead-Scoring-Open-Source/pkg/models"
)

// ErrRunNotActive is returned when writing to a run that has already ended
var ErrRunNotActive = errors.New("run is not active")

// Tracker is an experiment-tracking backend
type Tracker interface {
	// StartRun opens a run in experiment, creating the experiment if needed
	StartRun(ctx context.Context, experiment string) (*models.Run, error)

	LogParams(ctx context.Context, run *models.Run, params map[string]string) error
	LogMetrics(ctx context.Context, run *models.Run, metrics map[string]float64) error

	// LogModel stores the artifact files under the run and registers a new
	// model version when artifact.RegisteredName is set
	LogModel(ctx context.Context, run *models.Run, artifact *models.ModelArtifact) (*models.ModelVersion, error)

	// EndRun finalises the run with a terminal status
	EndRun(ctx context.Context, run *models.Run, status models.RunStatus) error

	Close() error
}

// New picks a backend from cfg.URI: http(s):// talks to an MLflow server,
// sqlite://<path> and file://<dir> keep everything on local disk.
func New(cfg config.TrackingConfig, log *logger.Logger) (Tracker, error) {
	if log == nil {
		log = logger.NewNop()
	}
	u, err := url.Parse(cfg.URI)
	if err != nil {
		return nil, fmt.Errorf("invalid tracking uri %q: %w", cfg.URI, err)
	}

	switch u.Scheme {
	case "http", "https":
		timeout := time.Duration(cfg.Timeout) * time.Second
		return NewRESTClient(cfg.URI, timeout, log), nil
	case "sqlite":
		dbPath := strings.TrimPrefix(cfg.URI, "sqlite://")
		return NewLocalStore(dbPath, filepath.Join(filepath.Dir(dbPath), "mlartifacts"), log)
	case "file":
		dir := strings.TrimPrefix(cfg.URI, "file://")
		return NewLocalStore(filepath.Join(dir, "mlruns.db"), dir, log)
	default:
		return nil, fmt.Errorf("unsupported tracking uri scheme %q", u.Scheme)
	}
}

func checkActive(run *models.Run) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("%w: no run", ErrRunNotActive)
	}
	if run.Status.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrRunNotActive, run.ID, run.Status)
	}
	return nil
}

func millis(t time.Time) int64 {
	return t.UnixMilli()
}
