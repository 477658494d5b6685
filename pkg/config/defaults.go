package config

// Lead-scoring defaults. A config file replaces the lists wholesale; hyperparameters
// from a file are merged key by key into DefaultHyperparameters.

const (
	DefaultDSN             = "leadscore.db"
	DefaultInputTable      = "model_input"
	DefaultFeaturesTable   = "features"
	DefaultTargetTable     = "target"
	DefaultLabel           = "app_complete_flag"
	DefaultTrackingURI     = "http://0.0.0.0:6006"
	DefaultExperiment      = "Lead_Scoring_Training_Pipeline"
	DefaultRegisteredModel = "LightGBM"
	DefaultArtifactPath    = "models"
	DefaultTestSize        = 0.3
	DefaultRandomSeed      = 0
)

// DefaultFeaturesToEncode lists the categorical columns of the cleaned lead data
var DefaultFeaturesToEncode = []string{
	"first_platform_c",
	"first_utm_medium_c",
	"first_utm_source_c",
}

// DefaultOutputSchema is the encoded column contract, label included
var DefaultOutputSchema = []string{
	"total_leads_droppped",
	"referred_lead",
	"app_complete_flag",
	"first_platform_c_Level0",
	"first_platform_c_Level3",
	"first_platform_c_Level7",
	"first_platform_c_Level1",
	"first_platform_c_Level2",
	"first_platform_c_Level8",
	"first_platform_c_others",
	"first_utm_medium_c_Level0",
	"first_utm_medium_c_Level2",
	"first_utm_medium_c_Level6",
	"first_utm_medium_c_Level3",
	"first_utm_medium_c_Level4",
	"first_utm_medium_c_Level9",
	"first_utm_medium_c_Level11",
	"first_utm_medium_c_Level5",
	"first_utm_medium_c_Level8",
	"first_utm_medium_c_Level20",
	"first_utm_medium_c_Level13",
	"first_utm_medium_c_Level30",
	"first_utm_medium_c_Level33",
	"first_utm_medium_c_Level16",
	"first_utm_medium_c_Level10",
	"first_utm_medium_c_Level15",
	"first_utm_medium_c_Level26",
	"first_utm_medium_c_Level43",
	"first_utm_medium_c_others",
	"first_utm_source_c_Level2",
	"first_utm_source_c_Level0",
	"first_utm_source_c_Level7",
	"first_utm_source_c_Level4",
	"first_utm_source_c_Level6",
	"first_utm_source_c_Level16",
	"first_utm_source_c_Level5",
	"first_utm_source_c_Level14",
	"first_utm_source_c_others",
}

// DefaultHyperparameters mirrors the LightGBM classifier settings the model is trained with
func DefaultHyperparameters() map[string]any {
	return map[string]any{
		"boosting_type":     "gbdt",
		"class_weight":      nil,
		"colsample_bytree":  1.0,
		"importance_type":   "split",
		"learning_rate":     0.1,
		"max_depth":         -1,
		"min_child_samples": 20,
		"min_child_weight":  0.001,
		"min_split_gain":    0.0,
		"n_estimators":      100,
		"n_jobs":            -1,
		"num_leaves":        31,
		"objective":         nil,
		"random_state":      42,
		"reg_alpha":         0.0,
		"reg_lambda":        0.0,
		"subsample":         1.0,
		"subsample_for_bin": 200000,
		"subsample_freq":    0,
	}
}

// Default returns a fully populated configuration
func Default() *Config {
	return &Config{
		Environment: "development",
		Store: StoreConfig{
			DSN:           DefaultDSN,
			InputTable:    DefaultInputTable,
			FeaturesTable: DefaultFeaturesTable,
			TargetTable:   DefaultTargetTable,
		},
		Features: FeaturesConfig{
			Encode:       append([]string(nil), DefaultFeaturesToEncode...),
			OutputSchema: append([]string(nil), DefaultOutputSchema...),
			Label:        DefaultLabel,
		},
		Model: ModelConfig{
			TestSize:        DefaultTestSize,
			RandomSeed:      DefaultRandomSeed,
			Hyperparameters: DefaultHyperparameters(),
		},
		Tracking: TrackingConfig{
			URI:             DefaultTrackingURI,
			Experiment:      DefaultExperiment,
			RegisteredModel: DefaultRegisteredModel,
			ArtifactPath:    DefaultArtifactPath,
			Timeout:         30,
		},
		Telemetry: TelemetryConfig{
			Job: "leadscore_training",
		},
		Schedule: ScheduleConfig{
			Cron: "0 2 * * *",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
