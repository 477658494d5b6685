package training

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/SuryaBandari247/MLOps-Lead-Scoring-Open-Source/pkg/mlmodel/gbdt"
	"github.com/SuryaBandari247/MLOps-Lead-Scoring-Open-Source/pkg/models"
)

const (
	// ModelFile holds the booster in LightGBM's text model format
	ModelFile = "model.txt"
	// DescriptorFile describes how to load ModelFile
	DescriptorFile = "MLmodel"

	flavorName = "leadscore_gbdt"
)

// descriptor is the MLmodel file written next to the model
type descriptor struct {
	ArtifactPath   string                    `yaml:"artifact_path"`
	Flavors        map[string]flavorSettings `yaml:"flavors"`
	ModelUUID      string                    `yaml:"model_uuid"`
	RunID          string                    `yaml:"run_id"`
	UTCTimeCreated string                    `yaml:"utc_time_created"`
	Features       []string                  `yaml:"features"`
}

type flavorSettings struct {
	ModelData  string            `yaml:"model_data"`
	Format     string            `yaml:"format"`
	Objective  string            `yaml:"objective"`
	NumTrees   int               `yaml:"num_trees"`
	NumFeature int               `yaml:"num_features"`
	Params     map[string]string `yaml:"params"`
}

// BuildArtifact packages a fitted classifier for the tracker
func BuildArtifact(clf *gbdt.Classifier, run *models.Run, artifactPath, registeredName string, features []string, params map[string]string, now time.Time) (*models.ModelArtifact, error) {
	data, err := clf.ModelText()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize model: %w", err)
	}

	desc := descriptor{
		ArtifactPath: artifactPath,
		Flavors: map[string]flavorSettings{
			flavorName: {
				ModelData:  ModelFile,
				Format:     "lightgbm_text",
				Objective:  "binary",
				NumTrees:   clf.Params.NEstimators,
				NumFeature: clf.NumFeatures,
				Params:     params,
			},
		},
		ModelUUID:      uuid.NewString(),
		RunID:          run.ID,
		UTCTimeCreated: now.UTC().Format("2006-01-02 15:04:05.000000"),
		Features:       features,
	}
	yml, err := yaml.Marshal(&desc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal model descriptor: %w", err)
	}

	return &models.ModelArtifact{
		ArtifactPath:   artifactPath,
		RegisteredName: registeredName,
		Files: map[string][]byte{
			ModelFile:      data,
			DescriptorFile: yml,
		},
	}, nil
}
