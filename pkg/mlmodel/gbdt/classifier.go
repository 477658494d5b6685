// Package gbdt adapts the LightGBM-style hyperparameter map of the lead-scoring
// model onto scigo's LGBMClassifier and keeps the fitted booster in LightGBM's
// text model format.
package gbdt

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/scigo/sklearn/lightgbm"
	"gonum.org/v1/gonum/mat"
)

// ErrNotFitted is returned when predicting with a classifier that holds no booster
var ErrNotFitted = errors.New("classifier is not fitted")

// Classifier is a boosted ensemble for binary labels 0/1
type Classifier struct {
	Params      Params
	NumFeatures int

	lgbm      *lightgbm.LGBMClassifier
	predictor *lightgbm.Predictor
	modelText []byte
}

// NewClassifier creates an unfitted classifier from a hyperparameter map
func NewClassifier(hyperparameters map[string]any) (*Classifier, error) {
	p, err := ParseParams(hyperparameters)
	if err != nil {
		return nil, err
	}
	return &Classifier{Params: p}, nil
}

// newLGBM maps Params onto the library's estimator
func (p Params) newLGBM() *lightgbm.LGBMClassifier {
	clf := lightgbm.NewLGBMClassifier()
	clf.Objective = "binary"
	clf.NumIterations = p.NEstimators
	clf.LearningRate = p.LearningRate
	clf.MaxDepth = p.MaxDepth
	clf.NumLeaves = p.NumLeaves
	clf.MinChildSamples = p.MinChildSamples
	clf.MinChildWeight = p.MinChildWeight
	clf.RegAlpha = p.RegAlpha
	clf.RegLambda = p.RegLambda
	clf.ColsampleBytree = p.ColsampleBytree
	clf.RandomState = int(p.RandomState)
	clf.Deterministic = true
	// LightGBM only bags when a bagging frequency is set
	clf.Subsample = 1.0
	if p.SubsampleFreq > 0 {
		clf.Subsample = p.Subsample
	}
	return clf
}

// Fit trains the booster on X (rows are samples) and labels y
func (c *Classifier) Fit(X mat.Matrix, y []float64) error {
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return fmt.Errorf("cannot fit on an empty matrix")
	}
	if len(y) != rows {
		return fmt.Errorf("label count %d does not match row count %d", len(y), rows)
	}
	for i, v := range y {
		if v != 0 && v != 1 {
			return fmt.Errorf("label at row %d is %v, expected 0 or 1", i, v)
		}
	}
	if err := checkFinite(X); err != nil {
		return err
	}

	clf := c.Params.newLGBM()
	if err := clf.Fit(X, mat.NewDense(rows, 1, append([]float64(nil), y...))); err != nil {
		return fmt.Errorf("failed to fit booster: %w", err)
	}
	text, err := modelText(clf)
	if err != nil {
		return err
	}

	c.lgbm = clf
	c.predictor = nil
	c.modelText = text
	c.NumFeatures = cols
	return nil
}

// PredictProba returns the positive-class probability for each row of X
func (c *Classifier) PredictProba(X mat.Matrix) ([]float64, error) {
	if c.lgbm == nil && c.predictor == nil {
		return nil, ErrNotFitted
	}
	rows, cols := X.Dims()
	if cols != c.NumFeatures {
		return nil, fmt.Errorf("expected %d features, got %d", c.NumFeatures, cols)
	}
	if err := checkFinite(X); err != nil {
		return nil, err
	}

	var (
		scores mat.Matrix
		err    error
	)
	if c.lgbm != nil {
		scores, err = c.lgbm.PredictProba(X)
	} else {
		scores, err = c.predictor.Predict(X)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to predict: %w", err)
	}

	// binary models return P(1) in the last column
	n, k := scores.Dims()
	if n != rows || k == 0 {
		return nil, fmt.Errorf("booster returned a %dx%d score matrix for %d rows", n, k, rows)
	}
	out := make([]float64, rows)
	for i := range out {
		out[i] = scores.At(i, k-1)
	}
	return out, nil
}

// Predict returns hard 0/1 labels at a 0.5 probability threshold
func (c *Classifier) Predict(X mat.Matrix) ([]float64, error) {
	proba, err := c.PredictProba(X)
	if err != nil {
		return nil, err
	}
	labels := make([]float64, len(proba))
	for i, p := range proba {
		if p > 0.5 {
			labels[i] = 1
		}
	}
	return labels, nil
}

// ModelText returns the fitted booster in LightGBM's text model format
func (c *Classifier) ModelText() ([]byte, error) {
	if c.modelText == nil {
		return nil, ErrNotFitted
	}
	return append([]byte(nil), c.modelText...), nil
}

// Load restores a classifier from LightGBM model text for inference
func Load(data []byte, numFeatures int) (*Classifier, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("model text is empty")
	}
	model, err := lightgbm.LoadFromString(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode model: %w", err)
	}
	predictor := lightgbm.NewPredictor(model)
	predictor.SetDeterministic(true)

	return &Classifier{
		Params:      DefaultParams(),
		NumFeatures: numFeatures,
		predictor:   predictor,
		modelText:   append([]byte(nil), data...),
	}, nil
}

// modelText saves the booster through the library and reads the file back
func modelText(clf *lightgbm.LGBMClassifier) ([]byte, error) {
	dir, err := os.MkdirTemp("", "leadscore-model-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create model directory: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "model.txt")
	if err := clf.SaveModel(path); err != nil {
		return nil, fmt.Errorf("failed to save model: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read saved model: %w", err)
	}
	return data, nil
}

func checkFinite(X mat.Matrix) error {
	rows, cols := X.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if v := X.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("row %d feature %d is not finite", i, j)
			}
		}
	}
	return nil
}
