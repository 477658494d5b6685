package evaluation

import "fmt"

// Metric names as logged to the tracker
const (
	MetricROCAUC        = "roc_auc_score"
	MetricAccuracy      = "test_accuracy"
	MetricF1            = "f1"
	MetricPrecision     = "Precision"
	MetricRecall        = "Recall"
	MetricPrecision0    = "Precision_0"
	MetricPrecision1    = "Precision_1"
	MetricRecall0       = "Recall_0"
	MetricRecall1       = "Recall_1"
	MetricF1Class0      = "f1_0"
	MetricF1Class1      = "f1_1"
	MetricFalseNegative = "False Negative"
	MetricTrueNegative  = "True Negative"
)

// MetricNames lists the logged metrics in logging order
var MetricNames = []string{
	MetricROCAUC, MetricAccuracy, MetricF1, MetricPrecision, MetricRecall,
	MetricPrecision0, MetricPrecision1, MetricRecall0, MetricRecall1,
	MetricF1Class0, MetricF1Class1, MetricFalseNegative, MetricTrueNegative,
}

// Report is the held-out evaluation of one trained model.
//
// Accuracy, ROCAUC, Macro and PredictedVsActual are computed with the predictions
// in the reference slot and the test labels in the predicted slot. ClassZero,
// ClassOne and ActualVsPredicted use the usual (actual, predicted) order, and the
// negative counts are read from ActualVsPredicted.
type Report struct {
	Accuracy          float64
	ROCAUC            float64
	Macro             Scores
	ClassZero         Scores
	ClassOne          Scores
	FalseNegatives    int
	TrueNegatives     int
	PredictedVsActual ConfusionMatrix
	ActualVsPredicted ConfusionMatrix
}

// Evaluate scores predictions against the test labels
func Evaluate(yTest, yPred []float64) (*Report, error) {
	var (
		r   Report
		err error
	)

	if r.Accuracy, err = Accuracy(yPred, yTest); err != nil {
		return nil, fmt.Errorf("failed to compute accuracy: %w", err)
	}
	if r.ROCAUC, err = ROCAUC(yPred, yTest); err != nil {
		return nil, fmt.Errorf("failed to compute roc auc: %w", err)
	}
	if r.PredictedVsActual, err = NewConfusionMatrix(yPred, yTest); err != nil {
		return nil, err
	}
	if r.Macro, err = MacroPrecisionRecallF1(yPred, yTest); err != nil {
		return nil, fmt.Errorf("failed to compute macro scores: %w", err)
	}

	if r.ActualVsPredicted, err = NewConfusionMatrix(yTest, yPred); err != nil {
		return nil, err
	}
	r.TrueNegatives = Cell(r.ActualVsPredicted, 0, 0)
	r.FalseNegatives = Cell(r.ActualVsPredicted, 1, 0)

	if r.ClassZero, err = BinaryPrecisionRecallF1(yTest, yPred, 0); err != nil {
		return nil, fmt.Errorf("failed to compute class 0 scores: %w", err)
	}
	if r.ClassOne, err = BinaryPrecisionRecallF1(yTest, yPred, 1); err != nil {
		return nil, fmt.Errorf("failed to compute class 1 scores: %w", err)
	}
	return &r, nil
}

// Metrics flattens the report into the logged metric map
func (r *Report) Metrics() map[string]float64 {
	return map[string]float64{
		MetricROCAUC:        r.ROCAUC,
		MetricAccuracy:      r.Accuracy,
		MetricF1:            r.Macro.F1,
		MetricPrecision:     r.Macro.Precision,
		MetricRecall:        r.Macro.Recall,
		MetricPrecision0:    r.ClassZero.Precision,
		MetricPrecision1:    r.ClassOne.Precision,
		MetricRecall0:       r.ClassZero.Recall,
		MetricRecall1:       r.ClassOne.Recall,
		MetricF1Class0:      r.ClassZero.F1,
		MetricF1Class1:      r.ClassOne.F1,
		MetricFalseNegative: float64(r.FalseNegatives),
		MetricTrueNegative:  float64(r.TrueNegatives),
	}
}
