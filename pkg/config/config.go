package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the pipeline configuration shared by every stage
type Config struct {
	Environment string          `yaml:"environment" json:"environment"`
	Store       StoreConfig     `yaml:"store" json:"store"`
	Features    FeaturesConfig  `yaml:"features" json:"features"`
	Model       ModelConfig     `yaml:"model" json:"model"`
	Tracking    TrackingConfig  `yaml:"tracking" json:"tracking"`
	Telemetry   TelemetryConfig `yaml:"telemetry" json:"telemetry"`
	Schedule    ScheduleConfig  `yaml:"schedule" json:"schedule"`
	Log         LogConfig       `yaml:"log" json:"log"`
}

// StoreConfig locates the relational store and its tables
type StoreConfig struct {
	DSN           string `yaml:"dsn" json:"dsn"` // sqlite path, sqlite://path or postgres://...
	InputTable    string `yaml:"input_table" json:"input_table"`
	FeaturesTable string `yaml:"features_table" json:"features_table"`
	TargetTable   string `yaml:"target_table" json:"target_table"`
}

// FeaturesConfig describes the encoded schema contract
type FeaturesConfig struct {
	Encode       []string `yaml:"encode" json:"encode"`               // categorical columns to one-hot encode
	OutputSchema []string `yaml:"output_schema" json:"output_schema"` // ordered output columns, label included
	Label        string   `yaml:"label" json:"label"`
}

// ModelConfig holds the fixed training setup
type ModelConfig struct {
	TestSize        float64        `yaml:"test_size" json:"test_size"`
	RandomSeed      int64          `yaml:"random_seed" json:"random_seed"`
	Hyperparameters map[string]any `yaml:"hyperparameters" json:"hyperparameters"`
}

// TrackingConfig addresses the experiment tracker
type TrackingConfig struct {
	URI             string `yaml:"uri" json:"uri"` // http(s)://, sqlite:// or file://
	Experiment      string `yaml:"experiment" json:"experiment"`
	RegisteredModel string `yaml:"registered_model" json:"registered_model"`
	ArtifactPath    string `yaml:"artifact_path" json:"artifact_path"`
	Timeout         int    `yaml:"timeout" json:"timeout"` // seconds, http trackers only
}

// TelemetryConfig configures batch-job metrics
type TelemetryConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url" json:"pushgateway_url"`
	Job            string `yaml:"job" json:"job"`
	MetricsAddr    string `yaml:"metrics_addr" json:"metrics_addr"` // scrape endpoint while scheduled, e.g. :9102
}

// ScheduleConfig configures periodic retraining
type ScheduleConfig struct {
	Cron string `yaml:"cron" json:"cron"`
}

// LogConfig holds logging-related configuration
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`   // debug, info, warn, error
	Format string `yaml:"format" json:"format"` // json, text
}

// Load builds the configuration from defaults, an optional file and the environment.
// An empty path skips the file step.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// JSON goes through the YAML decoder too so integers stay ints
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file format: %s", filepath.Ext(path))
	}
	return nil
}

// applyEnv overrides file values with environment variables
func (c *Config) applyEnv() {
	c.Environment = getEnv("ENVIRONMENT", c.Environment)

	c.Store.DSN = getEnv("LEADSCORE_DB_DSN", c.Store.DSN)

	c.Model.TestSize = getEnvAsFloat("LEADSCORE_TEST_SIZE", c.Model.TestSize)
	c.Model.RandomSeed = int64(getEnvAsInt("LEADSCORE_RANDOM_SEED", int(c.Model.RandomSeed)))

	c.Tracking.URI = getEnv("MLFLOW_TRACKING_URI", c.Tracking.URI)
	c.Tracking.Experiment = getEnv("MLFLOW_EXPERIMENT_NAME", c.Tracking.Experiment)
	c.Tracking.RegisteredModel = getEnv("LEADSCORE_REGISTERED_MODEL", c.Tracking.RegisteredModel)
	c.Tracking.Timeout = getEnvAsInt("LEADSCORE_TRACKING_TIMEOUT", c.Tracking.Timeout)

	c.Telemetry.PushgatewayURL = getEnv("LEADSCORE_PUSHGATEWAY_URL", c.Telemetry.PushgatewayURL)
	c.Telemetry.MetricsAddr = getEnv("LEADSCORE_METRICS_ADDR", c.Telemetry.MetricsAddr)
	c.Schedule.Cron = getEnv("LEADSCORE_SCHEDULE", c.Schedule.Cron)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
}

// Validate checks the configuration for mistakes that would only surface mid-run
func (c *Config) Validate() error {
	if c.Store.DSN == "" {
		return fmt.Errorf("store.dsn is required")
	}
	if c.Store.InputTable == "" || c.Store.FeaturesTable == "" || c.Store.TargetTable == "" {
		return fmt.Errorf("store table names are required")
	}

	if c.Features.Label == "" {
		return fmt.Errorf("features.label is required")
	}
	if len(c.Features.OutputSchema) == 0 {
		return fmt.Errorf("features.output_schema is required")
	}
	seen := make(map[string]bool, len(c.Features.OutputSchema))
	for _, name := range c.Features.OutputSchema {
		if name == "" {
			return fmt.Errorf("features.output_schema contains an empty column name")
		}
		if seen[name] {
			return fmt.Errorf("features.output_schema lists %q twice", name)
		}
		seen[name] = true
	}
	if !seen[c.Features.Label] {
		return fmt.Errorf("features.output_schema must include label %q", c.Features.Label)
	}
	for _, name := range c.Features.Encode {
		if name == "" {
			return fmt.Errorf("features.encode contains an empty column name")
		}
	}

	if c.Model.TestSize <= 0 || c.Model.TestSize >= 1 {
		return fmt.Errorf("model.test_size must be between 0 and 1, got %v", c.Model.TestSize)
	}

	if c.Tracking.URI == "" {
		return fmt.Errorf("tracking.uri is required")
	}
	if c.Tracking.Experiment == "" {
		return fmt.Errorf("tracking.experiment is required")
	}
	if c.Tracking.RegisteredModel == "" {
		return fmt.Errorf("tracking.registered_model is required")
	}
	if c.Tracking.ArtifactPath == "" {
		return fmt.Errorf("tracking.artifact_path is required")
	}
	return nil
}

// FeatureColumns returns the output schema without the label column
func (c *Config) FeatureColumns() []string {
	cols := make([]string, 0, len(c.Features.OutputSchema))
	for _, name := range c.Features.OutputSchema {
		if name != c.Features.Label {
			cols = append(cols, name)
		}
	}
	return cols
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat retrieves an environment variable as a float or returns a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
