package tracking

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/SuryaBandari247/MLOps-Lead-Scoring-Open-Source/pkg/logger"
	"github.com/SuryaBandari247/MLOps-Lead-Scoring-Open-Source/pkg/models"
)

const (
	maxParamsPerBatch  = 100
	maxMetricsPerBatch = 1000

	errResourceDoesNotExist = "RESOURCE_DOES_NOT_EXIST"
	errResourceExists       = "RESOURCE_ALREADY_EXISTS"

	proxiedArtifactScheme = "mlflow-artifacts:"
)

// APIError is an error response from the tracking server
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"error_code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tracking server returned %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// RESTClient talks to an MLflow tracking server over its REST API
type RESTClient struct {
	baseURL string
	http    *http.Client
	log     *logger.Logger
	now     func() time.Time
}

// NewRESTClient creates a client for the server at baseURL
func NewRESTClient(baseURL string, timeout time.Duration, log *logger.Logger) *RESTClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RESTClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log.WithFields(logger.Component("tracking")),
		now:     time.Now,
	}
}

type keyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type metricEntry struct {
	Key       string  `json:"key"`
	Value     float64 `json:"value"`
	Timestamp int64   `json:"timestamp"`
	Step      int64   `json:"step"`
}

type runInfo struct {
	RunID        string `json:"run_id"`
	ExperimentID string `json:"experiment_id"`
	Status       string `json:"status"`
	StartTime    int64  `json:"start_time"`
	ArtifactURI  string `json:"artifact_uri"`
}

type modelVersionResponse struct {
	Name         string `json:"name"`
	Version      string `json:"version"`
	CreationTime int64  `json:"creation_timestamp"`
	CurrentStage string `json:"current_stage"`
	Source       string `json:"source"`
	RunID        string `json:"run_id"`
	Status       string `json:"status"`
}

// StartRun resolves the experiment by name, creating it when missing, and opens a run
func (c *RESTClient) StartRun(ctx context.Context, experiment string) (*models.Run, error) {
	expID, err := c.experimentID(ctx, experiment)
	if err != nil {
		return nil, err
	}

	start := c.now()
	req := map[string]any{
		"experiment_id": expID,
		"start_time":    millis(start),
		"tags": []keyValue{
			{Key: "mlflow.source.type", Value: "JOB"},
			{Key: "mlflow.source.name", Value: "leadscore"},
		},
	}
	var resp struct {
		Run struct {
			Info runInfo `json:"info"`
		} `json:"run"`
	}
	if err := c.call(ctx, http.MethodPost, "runs/create", req, &resp); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	info := resp.Run.Info
	c.log.Debug("Created run", logger.String("run_id", info.RunID), logger.String("experiment_id", expID))
	return &models.Run{
		ID:             info.RunID,
		ExperimentID:   expID,
		ExperimentName: experiment,
		Status:         models.RunStatusRunning,
		ArtifactURI:    info.ArtifactURI,
		StartTime:      start,
		Params:         make(map[string]string),
		Metrics:        make(map[string]float64),
	}, nil
}

func (c *RESTClient) experimentID(ctx context.Context, name string) (string, error) {
	var got struct {
		Experiment struct {
			ExperimentID string `json:"experiment_id"`
		} `json:"experiment"`
	}
	err := c.call(ctx, http.MethodGet, "experiments/get-by-name?experiment_name="+url.QueryEscape(name), nil, &got)
	if err == nil {
		return got.Experiment.ExperimentID, nil
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != errResourceDoesNotExist {
		return "", fmt.Errorf("failed to get experiment %s: %w", name, err)
	}

	var created struct {
		ExperimentID string `json:"experiment_id"`
	}
	if err := c.call(ctx, http.MethodPost, "experiments/create", map[string]any{"name": name}, &created); err != nil {
		return "", fmt.Errorf("failed to create experiment %s: %w", name, err)
	}
	c.log.Info("Created experiment", logger.String("experiment", name), logger.String("experiment_id", created.ExperimentID))
	return created.ExperimentID, nil
}

// LogParams sends params in batches, sorted by key
func (c *RESTClient) LogParams(ctx context.Context, run *models.Run, params map[string]string) error {
	if err := checkActive(run); err != nil {
		return err
	}
	keys := sortedKeys(params)
	for start := 0; start < len(keys); start += maxParamsPerBatch {
		end := min(start+maxParamsPerBatch, len(keys))
		batch := make([]keyValue, 0, end-start)
		for _, k := range keys[start:end] {
			batch = append(batch, keyValue{Key: k, Value: params[k]})
		}
		req := map[string]any{"run_id": run.ID, "params": batch}
		if err := c.call(ctx, http.MethodPost, "runs/log-batch", req, nil); err != nil {
			return fmt.Errorf("failed to log params: %w", err)
		}
	}
	for k, v := range params {
		run.Params[k] = v
	}
	return nil
}

// LogMetrics sends metrics in batches at step 0, sorted by key
func (c *RESTClient) LogMetrics(ctx context.Context, run *models.Run, metrics map[string]float64) error {
	if err := checkActive(run); err != nil {
		return err
	}
	ts := millis(c.now())
	keys := sortedKeys(metrics)
	for start := 0; start < len(keys); start += maxMetricsPerBatch {
		end := min(start+maxMetricsPerBatch, len(keys))
		batch := make([]metricEntry, 0, end-start)
		for _, k := range keys[start:end] {
			batch = append(batch, metricEntry{Key: k, Value: metrics[k], Timestamp: ts})
		}
		req := map[string]any{"run_id": run.ID, "metrics": batch}
		if err := c.call(ctx, http.MethodPost, "runs/log-batch", req, nil); err != nil {
			return fmt.Errorf("failed to log metrics: %w", err)
		}
	}
	for k, v := range metrics {
		run.Metrics[k] = v
	}
	return nil
}

// LogModel uploads the artifact files through the server's artifact proxy and
// registers a model version pointing at them
func (c *RESTClient) LogModel(ctx context.Context, run *models.Run, artifact *models.ModelArtifact) (*models.ModelVersion, error) {
	if err := checkActive(run); err != nil {
		return nil, err
	}
	if !strings.HasPrefix(run.ArtifactURI, proxiedArtifactScheme) {
		return nil, fmt.Errorf("artifact uri %q is not served by the tracking server", run.ArtifactURI)
	}
	root := strings.TrimLeft(strings.TrimPrefix(run.ArtifactURI, proxiedArtifactScheme), "/")

	for _, name := range sortedKeys(artifact.Files) {
		p := path.Join(root, artifact.ArtifactPath, name)
		if err := c.upload(ctx, p, artifact.Files[name]); err != nil {
			return nil, fmt.Errorf("failed to upload artifact %s: %w", name, err)
		}
	}
	c.log.Debug("Uploaded model artifact", logger.String("run_id", run.ID), logger.Int("files", len(artifact.Files)))

	if artifact.RegisteredName == "" {
		return nil, nil
	}

	err := c.call(ctx, http.MethodPost, "registered-models/create", map[string]any{"name": artifact.RegisteredName}, nil)
	var apiErr *APIError
	if err != nil && !(errors.As(err, &apiErr) && apiErr.Code == errResourceExists) {
		return nil, fmt.Errorf("failed to create registered model: %w", err)
	}

	source := run.ArtifactURI + "/" + artifact.ArtifactPath
	var resp struct {
		ModelVersion modelVersionResponse `json:"model_version"`
	}
	req := map[string]any{"name": artifact.RegisteredName, "source": source, "run_id": run.ID}
	if err := c.call(ctx, http.MethodPost, "model-versions/create", req, &resp); err != nil {
		return nil, fmt.Errorf("failed to create model version: %w", err)
	}

	mv := resp.ModelVersion
	c.log.Info("Registered model version",
		logger.String("model", mv.Name),
		logger.String("version", mv.Version))
	return &models.ModelVersion{
		Name:         mv.Name,
		Version:      mv.Version,
		RunID:        run.ID,
		Source:       source,
		Status:       models.ModelVersionStatus(mv.Status),
		CurrentStage: mv.CurrentStage,
		CreatedAt:    time.UnixMilli(mv.CreationTime),
	}, nil
}

// EndRun sets the terminal status and end time
func (c *RESTClient) EndRun(ctx context.Context, run *models.Run, status models.RunStatus) error {
	if err := checkActive(run); err != nil {
		return err
	}
	end := c.now()
	req := map[string]any{"run_id": run.ID, "status": string(status), "end_time": millis(end)}
	if err := c.call(ctx, http.MethodPost, "runs/update", req, nil); err != nil {
		return fmt.Errorf("failed to end run: %w", err)
	}
	run.Status = status
	run.EndTime = &end
	return nil
}

// Close releases idle connections
func (c *RESTClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *RESTClient) call(ctx context.Context, method, endpoint string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/api/2.0/mlflow/"+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *RESTClient) upload(ctx context.Context, artifactPath string, data []byte) error {
	escaped := make([]string, 0)
	for _, part := range strings.Split(artifactPath, "/") {
		escaped = append(escaped, url.PathEscape(part))
	}
	target := c.baseURL + "/api/2.0/mlflow-artifacts/artifacts/" + strings.Join(escaped, "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	return c.do(req, nil)
}

func (c *RESTClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if jsonErr := json.Unmarshal(data, apiErr); jsonErr != nil || apiErr.Code == "" {
			apiErr.Code = strconv.Itoa(resp.StatusCode)
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
