// Package telemetry exposes Prometheus metrics for pipeline stages
package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/SuryaBandari247/MLOps-Lead-Scoring-Open-Source/pkg/config"
)

// Stage names used as metric labels
const (
	StageEncode = "encode"
	StageTrain  = "train"
)

// Metrics holds the pipeline collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	stageDuration *prometheus.HistogramVec
	stageRuns     *prometheus.CounterVec
	lastSuccess   *prometheus.GaugeVec
	rowsEncoded   prometheus.Gauge
	modelMetrics  *prometheus.GaugeVec

	pushURL string
	job     string
}

// New registers the collectors
func New(cfg config.TelemetryConfig) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	job := cfg.Job
	if job == "" {
		job = "leadscore_training"
	}

	return &Metrics{
		registry: reg,
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "leadscore_stage_duration_seconds",
			Help:    "Duration of a pipeline stage.",
			Buckets: []float64{0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
		}, []string{"stage"}),
		stageRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "leadscore_stage_runs_total",
			Help: "Pipeline stage executions by outcome.",
		}, []string{"stage", "status"}),
		lastSuccess: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "leadscore_stage_last_success_timestamp_seconds",
			Help: "Unix time of the last successful stage execution.",
		}, []string{"stage"}),
		rowsEncoded: factory.NewGauge(prometheus.GaugeOpts{
			Name: "leadscore_rows_encoded",
			Help: "Rows written to the features table by the last encoding.",
		}),
		modelMetrics: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "leadscore_model_metric",
			Help: "Held-out evaluation metrics of the last trained model.",
		}, []string{"metric"}),
		pushURL: cfg.PushgatewayURL,
		job:     job,
	}
}

// ObserveStage records one stage execution. Status is "success", "aborted" or "failure".
func (m *Metrics) ObserveStage(stage, status string, d time.Duration) {
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
	m.stageRuns.WithLabelValues(stage, status).Inc()
	if status == "success" {
		m.lastSuccess.WithLabelValues(stage).SetToCurrentTime()
	}
}

// SetRowsEncoded records the size of the last encoded table
func (m *Metrics) SetRowsEncoded(n int) {
	m.rowsEncoded.Set(float64(n))
}

// SetModelMetrics records the evaluation metrics of the last trained model
func (m *Metrics) SetModelMetrics(metrics map[string]float64) {
	for name, v := range metrics {
		m.modelMetrics.WithLabelValues(name).Set(v)
	}
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry for scraping
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Push sends the current values to the Pushgateway. It is a no-op without a gateway URL.
func (m *Metrics) Push(ctx context.Context) error {
	if m.pushURL == "" {
		return nil
	}
	if err := push.New(m.pushURL, m.job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics: %w", err)
	}
	return nil
}
