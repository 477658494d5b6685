package models

import "time"

// RunStatus represents the lifecycle state of a tracking run
type RunStatus string

const (
	RunStatusRunning  RunStatus = "RUNNING"
	RunStatusFinished RunStatus = "FINISHED"
	RunStatusFailed   RunStatus = "FAILED"
)

// Terminal reports whether the run can no longer be written to
func (s RunStatus) Terminal() bool {
	return s == RunStatusFinished || s == RunStatusFailed
}

// Run is one training invocation recorded in the experiment tracker
type Run struct {
	ID             string             `json:"run_id"`
	ExperimentID   string             `json:"experiment_id"`
	ExperimentName string             `json:"experiment_name"`
	Status         RunStatus          `json:"status"`
	ArtifactURI    string             `json:"artifact_uri"`
	StartTime      time.Time          `json:"start_time"`
	EndTime        *time.Time         `json:"end_time,omitempty"`
	Params         map[string]string  `json:"params,omitempty"`
	Metrics        map[string]float64 `json:"metrics,omitempty"`
}

// ModelVersionStatus mirrors the registry's version states
type ModelVersionStatus string

const (
	ModelVersionPending ModelVersionStatus = "PENDING_REGISTRATION"
	ModelVersionReady   ModelVersionStatus = "READY"
	ModelVersionFailed  ModelVersionStatus = "FAILED_REGISTRATION"
)

// ModelVersion is a registered model version produced by a run
type ModelVersion struct {
	Name         string             `json:"name"`
	Version      string             `json:"version"`
	RunID        string             `json:"run_id"`
	Source       string             `json:"source"`
	Status       ModelVersionStatus `json:"status"`
	CurrentStage string             `json:"current_stage"`
	CreatedAt    time.Time          `json:"creation_timestamp"`
}

// ModelArtifact is the set of files logged for a fitted model
type ModelArtifact struct {
	ArtifactPath   string            // relative path under the run's artifact root, e.g. "models"
	RegisteredName string            // registry name; empty skips registration
	Files          map[string][]byte // file name -> contents
}
