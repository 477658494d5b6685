package tracking

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SuryaBandari247/MLOps-Lead-Scoring-Open-Source/pkg/logger"
	"github.com/SuryaBandari247/MLOps-Lead-Scoring-Open-Source/pkg/models"
)

// fakeServer records the MLflow calls it receives
type fakeServer struct {
	mu               sync.Mutex
	experimentExists bool
	modelExists      bool
	calls            []string
	bodies           map[string][]map[string]any
	uploads          map[string]string
}

func newFakeServer(t *testing.T) (*fakeServer, *httptest.Server) {
	f := &fakeServer{bodies: make(map[string][]map[string]any), uploads: make(map[string]string)}
	srv := httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeServer) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, _ := io.ReadAll(r.Body)
	endpoint := strings.TrimPrefix(r.URL.Path, "/api/2.0/mlflow/")
	f.calls = append(f.calls, r.Method+" "+endpoint)

	if strings.HasPrefix(r.URL.Path, "/api/2.0/mlflow-artifacts/artifacts/") {
		f.uploads[strings.TrimPrefix(r.URL.Path, "/api/2.0/mlflow-artifacts/artifacts/")] = string(data)
		w.WriteHeader(http.StatusOK)
		return
	}

	var body map[string]any
	if len(data) > 0 {
		_ = json.Unmarshal(data, &body)
	}
	f.bodies[endpoint] = append(f.bodies[endpoint], body)

	writeJSON := func(status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}

	switch endpoint {
	case "experiments/get-by-name":
		if !f.experimentExists {
			writeJSON(http.StatusNotFound, map[string]string{"error_code": errResourceDoesNotExist, "message": "no experiment"})
			return
		}
		writeJSON(http.StatusOK, map[string]any{"experiment": map[string]any{"experiment_id": "7"}})
	case "experiments/create":
		f.experimentExists = true
		writeJSON(http.StatusOK, map[string]any{"experiment_id": "7"})
	case "runs/create":
		writeJSON(http.StatusOK, map[string]any{"run": map[string]any{"info": map[string]any{
			"run_id": "abc123", "experiment_id": "7", "status": "RUNNING",
			"artifact_uri": "mlflow-artifacts:/7/abc123/artifacts",
		}}})
	case "registered-models/create":
		if f.modelExists {
			writeJSON(http.StatusBadRequest, map[string]string{"error_code": errResourceExists, "message": "exists"})
			return
		}
		f.modelExists = true
		writeJSON(http.StatusOK, map[string]any{})
	case "model-versions/create":
		writeJSON(http.StatusOK, map[string]any{"model_version": map[string]any{
			"name": body["name"], "version": "3", "status": "READY", "current_stage": "None",
			"creation_timestamp": 1700000000000,
		}})
	case "runs/log-batch", "runs/update":
		writeJSON(http.StatusOK, map[string]any{})
	default:
		writeJSON(http.StatusNotFound, map[string]string{"error_code": "ENDPOINT_NOT_FOUND", "message": endpoint})
	}
}

func TestRESTClientRunLifecycle(t *testing.T) {
	fake, srv := newFakeServer(t)
	ctx := context.Background()
	client := NewRESTClient(srv.URL+"/", time.Second, logger.NewNop())

	run, err := client.StartRun(ctx, "Lead_Scoring_Training_Pipeline")
	require.NoError(t, err)
	assert.Equal(t, "abc123", run.ID)
	assert.Equal(t, "7", run.ExperimentID)
	assert.Equal(t, models.RunStatusRunning, run.Status)

	require.NoError(t, client.LogParams(ctx, run, map[string]string{"num_leaves": "31", "learning_rate": "0.1"}))
	require.NoError(t, client.LogMetrics(ctx, run, map[string]float64{"test_accuracy": 0.8, "False Negative": 3}))

	mv, err := client.LogModel(ctx, run, &models.ModelArtifact{
		ArtifactPath:   "models",
		RegisteredName: "LightGBM",
		Files:          map[string][]byte{"model.txt": []byte("tree\n"), "MLmodel": []byte("flavors: {}\n")},
	})
	require.NoError(t, err)
	require.NotNil(t, mv)
	assert.Equal(t, "3", mv.Version)
	assert.Equal(t, "mlflow-artifacts:/7/abc123/artifacts/models", mv.Source)

	require.NoError(t, client.EndRun(ctx, run, models.RunStatusFinished))
	assert.Equal(t, models.RunStatusFinished, run.Status)
	require.NotNil(t, run.EndTime)

	fake.mu.Lock()
	defer fake.mu.Unlock()

	assert.Equal(t, []string{
		"GET experiments/get-by-name",
		"POST experiments/create",
		"POST runs/create",
		"POST runs/log-batch",
		"POST runs/log-batch",
	}, fake.calls[:5])
	assert.Equal(t, "tree\n", fake.uploads["7/abc123/artifacts/models/model.txt"])
	assert.Contains(t, fake.uploads, "7/abc123/artifacts/models/MLmodel")

	versionReq := fake.bodies["model-versions/create"][0]
	assert.Equal(t, "LightGBM", versionReq["name"])
	assert.Equal(t, "abc123", versionReq["run_id"])

	update := fake.bodies["runs/update"][0]
	assert.Equal(t, "FINISHED", update["status"])

	params := fake.bodies["runs/log-batch"][0]["params"].([]any)
	assert.Len(t, params, 2)
	assert.Equal(t, "learning_rate", params[0].(map[string]any)["key"])
}

func TestRESTClientExistingExperimentAndModel(t *testing.T) {
	fake, srv := newFakeServer(t)
	fake.experimentExists = true
	fake.modelExists = true
	ctx := context.Background()
	client := NewRESTClient(srv.URL, time.Second, logger.NewNop())

	run, err := client.StartRun(ctx, "exp")
	require.NoError(t, err)
	_, err = client.LogModel(ctx, run, &models.ModelArtifact{ArtifactPath: "models", RegisteredName: "LightGBM"})
	require.NoError(t, err)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.NotContains(t, fake.calls, "POST experiments/create")
	assert.Contains(t, fake.calls, "POST model-versions/create")
}

func TestRESTClientParamBatching(t *testing.T) {
	fake, srv := newFakeServer(t)
	fake.experimentExists = true
	ctx := context.Background()
	client := NewRESTClient(srv.URL, time.Second, logger.NewNop())

	run, err := client.StartRun(ctx, "exp")
	require.NoError(t, err)

	params := make(map[string]string)
	for i := 0; i < 250; i++ {
		params[strings.Repeat("k", 1+i%5)+string(rune('a'+i%26))+string(rune('a'+i/26))] = "v"
	}
	require.NoError(t, client.LogParams(ctx, run, params))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Len(t, fake.bodies["runs/log-batch"], 3)
}

func TestRESTClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewRESTClient(srv.URL, time.Second, logger.NewNop())
	_, err := client.StartRun(context.Background(), "exp")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "boom")

	ended := &models.Run{ID: "r1", Status: models.RunStatusFinished}
	assert.ErrorIs(t, client.LogMetrics(context.Background(), ended, map[string]float64{"x": 1}), ErrRunNotActive)
	assert.ErrorIs(t, client.EndRun(context.Background(), ended, models.RunStatusFailed), ErrRunNotActive)

	local := &models.Run{ID: "r2", Status: models.RunStatusRunning, ArtifactURI: "s3://bucket/r2"}
	_, err = client.LogModel(context.Background(), local, &models.ModelArtifact{ArtifactPath: "models"})
	assert.ErrorContains(t, err, "not served by the tracking server")
}
