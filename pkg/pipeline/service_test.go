package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SuryaBandari247/MLOps-Lead-Scoring-Open-Source/pkg/config"
	"github.com/SuryaBandari247/MLOps-Lead-Scoring-Open-Source/pkg/featurestore"
	"github.com/SuryaBandari247/MLOps-Lead-Scoring-Open-Source/pkg/models"
	"github.com/SuryaBandari247/MLOps-Lead-Scoring-Open-Source/pkg/tracking"
)

// setupService seeds model_input with n leads where city A always converts
func setupService(t *testing.T, n int) (*Service, *config.Config) {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Store.DSN = filepath.Join(dir, "leads.db")
	cfg.Tracking.URI = "file://" + filepath.Join(dir, "mlruns")
	cfg.Features.Encode = []string{"city", "source"}
	cfg.Features.OutputSchema = []string{"city_A", "city_B", "source_X", "source_Y", "app_complete_flag"}

	input := models.NewFrame("city", "source", "app_complete_flag")
	for i := 0; i < n; i++ {
		city, source, label := "B", "X", int64(0)
		if i%2 == 0 {
			city, label = "A", 1
		}
		if i%3 == 0 {
			source = "Y"
		}
		require.NoError(t, input.AppendRow(city, source, label))
	}

	store, err := featurestore.Open(context.Background(), cfg.Store.DSN)
	require.NoError(t, err)
	require.NoError(t, store.ReplaceTable(context.Background(), cfg.Store.InputTable, input))
	require.NoError(t, store.Close())

	return NewService(cfg, nil, nil), cfg
}

func TestServiceRun(t *testing.T) {
	ctx := context.Background()
	svc, cfg := setupService(t, 200)

	exec, err := svc.Run(ctx)
	require.NoError(t, err)
	require.NotNil(t, exec.Encoding)
	require.NotNil(t, exec.Training)

	assert.Equal(t, 200, exec.Encoding.Rows())
	assert.Equal(t, exec.Training.Run.ID, exec.ID)
	assert.Equal(t, "1", exec.Training.ModelVersion.Version)
	assert.Len(t, exec.Training.Metrics, 13)
	assert.Equal(t, 1.0, exec.Training.Metrics["test_accuracy"])
	assert.False(t, exec.CompletedAt.Before(exec.StartedAt))

	store, err := featurestore.Open(ctx, cfg.Store.DSN)
	require.NoError(t, err)
	defer store.Close()
	features, err := store.ReadTable(ctx, cfg.Store.FeaturesTable)
	require.NoError(t, err)
	assert.Equal(t, []string{"city_A", "city_B", "source_X", "source_Y"}, features.Columns)

	tracker, err := tracking.New(cfg.Tracking, nil)
	require.NoError(t, err)
	defer tracker.Close()
	local := tracker.(*tracking.LocalStore)
	run, err := local.GetRun(ctx, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFinished, run.Status)

	reg := svc.Metrics().Registry()
	n, err := testutil.GatherAndCount(reg, "leadscore_stage_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = testutil.GatherAndCount(reg, "leadscore_model_metric")
	require.NoError(t, err)
	assert.Equal(t, 13, n)
}

func TestServiceRunAbortsWithoutFeature(t *testing.T) {
	ctx := context.Background()
	svc, cfg := setupService(t, 20)
	cfg.Features.Encode = []string{"city", "channel"}

	exec, err := svc.Run(ctx)
	require.ErrorIs(t, err, ErrEncodingAborted)
	assert.ErrorContains(t, err, "channel")
	require.NotNil(t, exec.Encoding)
	assert.True(t, exec.Encoding.Aborted)
	assert.Nil(t, exec.Training)

	store, err := featurestore.Open(ctx, cfg.Store.DSN)
	require.NoError(t, err)
	defer store.Close()
	ok, err := store.TableExists(ctx, cfg.Store.FeaturesTable)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestServiceEncodeThenTrain(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t, 200)

	_, err := svc.Train(ctx)
	require.ErrorIs(t, err, featurestore.ErrTableNotFound)

	res, err := svc.Encode(ctx)
	require.NoError(t, err)
	assert.False(t, res.Aborted)

	first, err := svc.Train(ctx)
	require.NoError(t, err)
	second, err := svc.Train(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1", first.ModelVersion.Version)
	assert.Equal(t, "2", second.ModelVersion.Version)
	assert.Equal(t, first.Metrics, second.Metrics)
}

func TestServiceBadTrackingURI(t *testing.T) {
	svc, cfg := setupService(t, 10)
	cfg.Tracking.URI = "ftp://example.com"

	_, err := svc.Encode(context.Background())
	require.NoError(t, err)
	_, err = svc.Train(context.Background())
	assert.ErrorContains(t, err, "failed to create tracker")
}
