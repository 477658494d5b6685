package gbdt

import (
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Params are the booster hyperparameters. Names follow the LightGBM
// scikit-learn interface so a hyperparameter map can be passed through unchanged.
// MinSplitGain is validated but LGBMClassifier has no matching option.
type Params struct {
	NEstimators     int     `json:"n_estimators"`
	LearningRate    float64 `json:"learning_rate"`
	MaxDepth        int     `json:"max_depth"` // <= 0 means no limit
	NumLeaves       int     `json:"num_leaves"`
	MinChildSamples int     `json:"min_child_samples"`
	MinChildWeight  float64 `json:"min_child_weight"`
	MinSplitGain    float64 `json:"min_split_gain"`
	RegAlpha        float64 `json:"reg_alpha"`
	RegLambda       float64 `json:"reg_lambda"`
	Subsample       float64 `json:"subsample"`
	SubsampleFreq   int     `json:"subsample_freq"`
	ColsampleBytree float64 `json:"colsample_bytree"`
	RandomState     int64   `json:"random_state"`
}

// DefaultParams returns the LightGBM defaults
func DefaultParams() Params {
	return Params{
		NEstimators:     100,
		LearningRate:    0.1,
		MaxDepth:        -1,
		NumLeaves:       31,
		MinChildSamples: 20,
		MinChildWeight:  1e-3,
		Subsample:       1.0,
		ColsampleBytree: 1.0,
	}
}

// inertParams are accepted for compatibility but do not change the fit.
// Fits always run deterministic and single-threaded.
var inertParams = map[string]bool{
	"n_jobs":            true,
	"silent":            true,
	"verbose":           true,
	"verbosity":         true,
	"importance_type":   true,
	"subsample_for_bin": true,
}

// ParseParams applies a hyperparameter map on top of DefaultParams.
// Unknown keys and unsupported settings are rejected.
func ParseParams(raw map[string]any) (Params, error) {
	p := DefaultParams()

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		v := raw[key]
		var err error
		switch key {
		case "n_estimators":
			p.NEstimators, err = toInt(v)
		case "learning_rate":
			p.LearningRate, err = toFloat(v)
		case "max_depth":
			p.MaxDepth, err = toInt(v)
		case "num_leaves":
			p.NumLeaves, err = toInt(v)
		case "min_child_samples":
			p.MinChildSamples, err = toInt(v)
		case "min_child_weight":
			p.MinChildWeight, err = toFloat(v)
		case "min_split_gain":
			p.MinSplitGain, err = toFloat(v)
		case "reg_alpha":
			p.RegAlpha, err = toFloat(v)
		case "reg_lambda":
			p.RegLambda, err = toFloat(v)
		case "subsample":
			p.Subsample, err = toFloat(v)
		case "subsample_freq":
			p.SubsampleFreq, err = toInt(v)
		case "colsample_bytree":
			p.ColsampleBytree, err = toFloat(v)
		case "random_state":
			if v == nil {
				continue
			}
			var seed int
			seed, err = toInt(v)
			p.RandomState = int64(seed)
		case "boosting_type":
			if s, _ := v.(string); s != "gbdt" {
				err = fmt.Errorf("only gbdt is supported, got %v", v)
			}
		case "objective":
			if s, _ := v.(string); v != nil && s != "binary" {
				err = fmt.Errorf("only the binary objective is supported, got %v", v)
			}
		case "class_weight":
			if v != nil {
				err = fmt.Errorf("class weights are not supported")
			}
		default:
			if !inertParams[key] {
				err = fmt.Errorf("unknown hyperparameter")
			}
		}
		if err != nil {
			return Params{}, fmt.Errorf("invalid hyperparameter %s: %w", key, err)
		}
	}

	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

// Validate checks parameter ranges
func (p Params) Validate() error {
	switch {
	case p.NEstimators < 1:
		return fmt.Errorf("n_estimators must be positive, got %d", p.NEstimators)
	case p.LearningRate <= 0:
		return fmt.Errorf("learning_rate must be positive, got %v", p.LearningRate)
	case p.NumLeaves < 2:
		return fmt.Errorf("num_leaves must be at least 2, got %d", p.NumLeaves)
	case p.MinChildSamples < 0:
		return fmt.Errorf("min_child_samples must not be negative, got %d", p.MinChildSamples)
	case p.MinChildWeight < 0:
		return fmt.Errorf("min_child_weight must not be negative, got %v", p.MinChildWeight)
	case p.MinSplitGain < 0:
		return fmt.Errorf("min_split_gain must not be negative, got %v", p.MinSplitGain)
	case p.RegAlpha < 0 || p.RegLambda < 0:
		return fmt.Errorf("regularisation terms must not be negative")
	case p.Subsample <= 0 || p.Subsample > 1:
		return fmt.Errorf("subsample must be in (0, 1], got %v", p.Subsample)
	case p.SubsampleFreq < 0:
		return fmt.Errorf("subsample_freq must not be negative, got %d", p.SubsampleFreq)
	case p.ColsampleBytree <= 0 || p.ColsampleBytree > 1:
		return fmt.Errorf("colsample_bytree must be in (0, 1], got %v", p.ColsampleBytree)
	}
	return nil
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case string:
		return strconv.ParseFloat(x, 64)
	}
	return 0, fmt.Errorf("expected a number, got %T", v)
}

func toInt(v any) (int, error) {
	f, err := toFloat(v)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("expected an integer, got %v", v)
	}
	return int(f), nil
}
