package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadDefaults tests default values
func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, DefaultDSN, cfg.Store.DSN)
	assert.Equal(t, "model_input", cfg.Store.InputTable)
	assert.Equal(t, "features", cfg.Store.FeaturesTable)
	assert.Equal(t, "target", cfg.Store.TargetTable)
	assert.Equal(t, "app_complete_flag", cfg.Features.Label)
	assert.Equal(t, DefaultFeaturesToEncode, cfg.Features.Encode)
	assert.Len(t, cfg.Features.OutputSchema, 38)
	assert.Equal(t, 0.3, cfg.Model.TestSize)
	assert.Equal(t, int64(0), cfg.Model.RandomSeed)
	assert.Equal(t, "Lead_Scoring_Training_Pipeline", cfg.Tracking.Experiment)
	assert.Equal(t, "LightGBM", cfg.Tracking.RegisteredModel)
	assert.Equal(t, 100, cfg.Model.Hyperparameters["n_estimators"])
}

// TestLoadConfig tests configuration loading from a YAML file plus environment
func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "leadscore.yaml")
	content := `
store:
  dsn: /tmp/leads.db
features:
  encode: [city, source]
  output_schema: [city_A, city_B, source_X, source_Y, app_complete_flag]
model:
  hyperparameters:
    n_estimators: 25
    learning_rate: 0.05
tracking:
  uri: sqlite:///tmp/mlruns.db
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("MLFLOW_EXPERIMENT_NAME", "from-env")
	t.Setenv("LEADSCORE_TEST_SIZE", "0.25")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/leads.db", cfg.Store.DSN)
	assert.Equal(t, []string{"city", "source"}, cfg.Features.Encode)
	assert.Equal(t, []string{"city_A", "city_B", "source_X", "source_Y", "app_complete_flag"}, cfg.Features.OutputSchema)
	assert.Equal(t, "sqlite:///tmp/mlruns.db", cfg.Tracking.URI)
	assert.Equal(t, "from-env", cfg.Tracking.Experiment)
	assert.Equal(t, 0.25, cfg.Model.TestSize)
	assert.Equal(t, "debug", cfg.Log.Level)

	// file keys override defaults, untouched keys survive
	assert.Equal(t, 25, cfg.Model.Hyperparameters["n_estimators"])
	assert.Equal(t, 0.05, cfg.Model.Hyperparameters["learning_rate"])
	assert.Equal(t, 31, cfg.Model.Hyperparameters["num_leaves"])

	assert.Equal(t, []string{"city_A", "city_B", "source_X", "source_Y"}, cfg.FeatureColumns())
}

func TestLoadJSONConfigKeepsIntegers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leadscore.json")
	content := `{
  "store": {"dsn": "/tmp/leads.db"},
  "model": {"hyperparameters": {"n_estimators": 25, "learning_rate": 0.05, "random_state": null}}
}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/leads.db", cfg.Store.DSN)
	assert.Equal(t, 25, cfg.Model.Hyperparameters["n_estimators"])
	assert.Equal(t, 0.05, cfg.Model.Hyperparameters["learning_rate"])
	assert.Nil(t, cfg.Model.Hyperparameters["random_state"])
	assert.Equal(t, 31, cfg.Model.Hyperparameters["num_leaves"])
}

func TestLoadConfig_Errors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		path := filepath.Join(dir, "cfg.toml")
		require.NoError(t, os.WriteFile(path, []byte("x = 1"), 0o644))
		_, err := Load(path)
		assert.ErrorContains(t, err, "unsupported config file format")
	})

	t.Run("label outside schema", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("features:\n  output_schema: [a, b]\n"), 0o644))
		_, err := Load(path)
		assert.ErrorContains(t, err, "must include label")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"valid", func(c *Config) {}, ""},
		{"empty dsn", func(c *Config) { c.Store.DSN = "" }, "store.dsn"},
		{"empty table", func(c *Config) { c.Store.TargetTable = "" }, "table names"},
		{"duplicate schema column", func(c *Config) {
			c.Features.OutputSchema = []string{"a", "a", "app_complete_flag"}
		}, "twice"},
		{"empty encode entry", func(c *Config) { c.Features.Encode = []string{""} }, "features.encode"},
		{"test size too large", func(c *Config) { c.Model.TestSize = 1 }, "test_size"},
		{"missing tracking uri", func(c *Config) { c.Tracking.URI = "" }, "tracking.uri"},
		{"missing experiment", func(c *Config) { c.Tracking.Experiment = "" }, "tracking.experiment"},
		{"missing model name", func(c *Config) { c.Tracking.RegisteredModel = "" }, "registered_model"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestDefaultHyperparametersAreFresh(t *testing.T) {
	a := DefaultHyperparameters()
	a["n_estimators"] = 1
	assert.Equal(t, 100, DefaultHyperparameters()["n_estimators"])
}

func TestSampleConfigMatchesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "leadscore.yaml"))
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.Store, cfg.Store)
	assert.Equal(t, def.Features, cfg.Features)
	assert.Equal(t, def.Model.Hyperparameters, cfg.Model.Hyperparameters)
	assert.Equal(t, def.Schedule, cfg.Schedule)
}
