package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	r, err := Evaluate(yTest, yPred)
	require.NoError(t, err)

	assert.InDelta(t, 0.7, r.Accuracy, 1e-12)
	assert.InDelta(t, 0.7, r.ROCAUC, 1e-12)
	assert.Equal(t, 3, r.TrueNegatives)
	assert.Equal(t, 2, r.FalseNegatives)

	// macro scores use the predictions as reference, which swaps precision and recall
	assert.InDelta(t, (0.75+2.0/3.0)/2, r.Macro.Precision, 1e-12)
	assert.InDelta(t, 0.7, r.Macro.Recall, 1e-12)

	assert.InDelta(t, 0.6, r.ClassZero.Precision, 1e-12)
	assert.InDelta(t, 0.8, r.ClassOne.Precision, 1e-12)

	// the two matrices are transposes of each other
	assert.Equal(t, Cell(r.ActualVsPredicted, 1, 0), Cell(r.PredictedVsActual, 0, 1))

	metrics := r.Metrics()
	assert.Len(t, metrics, 13)
	for _, name := range MetricNames {
		assert.Contains(t, metrics, name)
	}
	assert.Equal(t, 2.0, metrics[MetricFalseNegative])
	assert.Equal(t, 3.0, metrics[MetricTrueNegative])
}

func TestEvaluateSingleClassPredictions(t *testing.T) {
	_, err := Evaluate([]float64{0, 1, 1}, []float64{1, 1, 1})
	assert.ErrorIs(t, err, ErrUndefinedAUC)
}
