package training

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/SuryaBandari247/MLOps-Lead-Scoring-Open-Source/pkg/models"
)

// TrainingData holds the data for training and validation
type TrainingData struct {
	TrainFeatures *mat.Dense // Training features (rows x features)
	TrainLabels   []float64
	TestFeatures  *mat.Dense
	TestLabels    []float64
	FeatureNames  []string
	TrainIndex    []int // source row of each training row
	TestIndex     []int // source row of each test row
}

// FromFrames converts the features and target tables into a matrix and a label
// vector. The target must be a single column aligned row by row with features.
func FromFrames(features, target *models.Frame) (*mat.Dense, []float64, error) {
	if len(target.Columns) != 1 {
		return nil, nil, fmt.Errorf("target table must have exactly one column, got %d", len(target.Columns))
	}
	if features.NumRows() != target.NumRows() {
		return nil, nil, fmt.Errorf("features have %d rows but target has %d", features.NumRows(), target.NumRows())
	}
	if features.NumRows() == 0 {
		return nil, nil, fmt.Errorf("no rows to train on")
	}
	if len(features.Columns) == 0 {
		return nil, nil, fmt.Errorf("features table has no columns")
	}

	labels, err := target.Float64s(target.Columns[0])
	if err != nil {
		return nil, nil, fmt.Errorf("invalid target: %w", err)
	}

	rows, cols := features.NumRows(), len(features.Columns)
	flat := make([]float64, 0, rows*cols)
	for r, row := range features.Rows {
		for c, v := range row {
			x, err := models.ToFloat64(v)
			if err != nil {
				return nil, nil, fmt.Errorf("feature %s row %d: %w", features.Columns[c], r, err)
			}
			flat = append(flat, x)
		}
	}
	return mat.NewDense(rows, cols, flat), labels, nil
}

// TrainTestSplit shuffles row indices with a seeded source and holds out
// ceil(testSize*n) rows for testing. The same inputs always give the same partitions.
func TrainTestSplit(X *mat.Dense, y []float64, names []string, testSize float64, seed int64) (*TrainingData, error) {
	n, cols := X.Dims()
	if len(y) != n {
		return nil, fmt.Errorf("label count %d does not match row count %d", len(y), n)
	}
	if testSize <= 0 || testSize >= 1 {
		return nil, fmt.Errorf("test size must be between 0 and 1, got %v", testSize)
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest < 1 || n-nTest < 1 {
		return nil, fmt.Errorf("cannot split %d rows with test size %v", n, testSize)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	data := &TrainingData{
		FeatureNames: names,
		TestIndex:    perm[:nTest],
		TrainIndex:   perm[nTest:],
	}
	data.TestFeatures, data.TestLabels = gather(X, y, data.TestIndex, cols)
	data.TrainFeatures, data.TrainLabels = gather(X, y, data.TrainIndex, cols)
	return data, nil
}

func gather(X *mat.Dense, y []float64, idx []int, cols int) (*mat.Dense, []float64) {
	out := mat.NewDense(len(idx), cols, nil)
	labels := make([]float64, len(idx))
	for i, r := range idx {
		out.SetRow(i, X.RawRowView(r))
		labels[i] = y[r]
	}
	return out, labels
}
