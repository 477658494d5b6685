// Package evaluation computes binary classification metrics for the trainer
package evaluation

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/sjwhitworth/golearn/base"
	gleval "github.com/sjwhitworth/golearn/evaluation"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// ErrUndefinedAUC is returned when the reference labels hold a single class
var ErrUndefinedAUC = errors.New("ROC AUC is undefined when only one class is present")

// ConfusionMatrix maps reference label -> predicted label -> count
type ConfusionMatrix = gleval.ConfusionMatrix

// NewConfusionMatrix builds the matrix over the union of observed labels.
// Every label pair is present, zero counts included.
func NewConfusionMatrix(yTrue, yPred []float64) (ConfusionMatrix, error) {
	if err := checkLengths(yTrue, yPred); err != nil {
		return nil, err
	}
	ref, err := labelGrid("reference", yTrue)
	if err != nil {
		return nil, err
	}
	gen, err := labelGrid("predicted", yPred)
	if err != nil {
		return nil, err
	}
	cm, err := gleval.GetConfusionMatrix(ref, gen)
	if err != nil {
		return nil, fmt.Errorf("failed to build confusion matrix: %w", err)
	}

	labels := Labels(yTrue, yPred)
	for _, a := range labels {
		if cm[a] == nil {
			cm[a] = make(map[string]int)
		}
		for _, p := range labels {
			if _, ok := cm[a][p]; !ok {
				cm[a][p] = 0
			}
		}
	}
	return cm, nil
}

// Cell returns cm[actual][predicted] for numeric labels
func Cell(cm ConfusionMatrix, actual, predicted float64) int {
	return cm[labelString(actual)][labelString(predicted)]
}

// Accuracy returns the fraction of matching labels
func Accuracy(yTrue, yPred []float64) (float64, error) {
	cm, err := NewConfusionMatrix(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return gleval.GetAccuracy(cm), nil
}

// Scores holds precision, recall and F1 for one class or an average
type Scores struct {
	Precision float64
	Recall    float64
	F1        float64
}

// MacroPrecisionRecallF1 averages per-class scores over every label seen in either
// input, unweighted. Undefined ratios count as 0.
func MacroPrecisionRecallF1(yTrue, yPred []float64) (Scores, error) {
	cm, err := NewConfusionMatrix(yTrue, yPred)
	if err != nil {
		return Scores{}, err
	}
	labels := Labels(yTrue, yPred)

	var sum Scores
	for _, l := range labels {
		s := classScores(cm, l)
		sum.Precision += s.Precision
		sum.Recall += s.Recall
		sum.F1 += s.F1
	}
	n := float64(len(labels))
	return Scores{Precision: sum.Precision / n, Recall: sum.Recall / n, F1: sum.F1 / n}, nil
}

// BinaryPrecisionRecallF1 scores posLabel as the positive class
func BinaryPrecisionRecallF1(yTrue, yPred []float64, posLabel float64) (Scores, error) {
	cm, err := NewConfusionMatrix(yTrue, yPred)
	if err != nil {
		return Scores{}, err
	}
	return classScores(cm, labelString(posLabel)), nil
}

// ROCAUC returns the area under the ROC curve of yScore against the 0/1 labels in yTrue
func ROCAUC(yTrue, yScore []float64) (float64, error) {
	if err := checkLengths(yTrue, yScore); err != nil {
		return 0, err
	}

	y := append([]float64(nil), yScore...)
	classes := make([]bool, len(yTrue))
	var positives int
	for i, v := range yTrue {
		if v != 0 && v != 1 {
			return 0, fmt.Errorf("reference label at %d is %v, expected 0 or 1", i, v)
		}
		classes[i] = v == 1
		if classes[i] {
			positives++
		}
	}
	if positives == 0 || positives == len(yTrue) {
		return 0, ErrUndefinedAUC
	}

	stat.SortWeightedLabeled(y, classes, nil)
	tpr, fpr, _ := stat.ROC(nil, y, classes, nil)
	return integrate.Trapezoidal(fpr, tpr), nil
}

// Labels returns the sorted union of labels in the inputs, as text
func Labels(ys ...[]float64) []string {
	seen := make(map[float64]bool)
	for _, y := range ys {
		for _, v := range y {
			seen[v] = true
		}
	}
	values := make([]float64, 0, len(seen))
	for v := range seen {
		values = append(values, v)
	}
	sort.Float64s(values)
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = labelString(v)
	}
	return out
}

func classScores(cm ConfusionMatrix, label string) Scores {
	tp := cm[label][label]
	fn, fp := 0, 0
	for other := range cm {
		if other == label {
			continue
		}
		fn += cm[label][other]
		fp += cm[other][label]
	}

	var s Scores
	if tp+fp > 0 {
		s.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		s.Recall = float64(tp) / float64(tp+fn)
	}
	if s.Precision+s.Recall > 0 {
		s.F1 = 2 * s.Precision * s.Recall / (s.Precision + s.Recall)
	}
	return s
}

// labelGrid wraps a label vector in a single categorical class attribute
func labelGrid(name string, labels []float64) (*base.DenseInstances, error) {
	attr := base.NewCategoricalAttribute()
	attr.SetName(name)

	inst := base.NewDenseInstances()
	spec := inst.AddAttribute(attr)
	if err := inst.AddClassAttribute(attr); err != nil {
		return nil, fmt.Errorf("failed to set class attribute: %w", err)
	}
	if err := inst.Extend(len(labels)); err != nil {
		return nil, fmt.Errorf("failed to allocate %d rows: %w", len(labels), err)
	}
	for i, v := range labels {
		inst.Set(spec, i, attr.GetSysValFromString(labelString(v)))
	}
	return inst, nil
}

func labelString(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func checkLengths(a, b []float64) error {
	if len(a) == 0 {
		return fmt.Errorf("no samples to evaluate")
	}
	if len(a) != len(b) {
		return fmt.Errorf("inputs have different lengths: %d and %d", len(a), len(b))
	}
	return nil
}
