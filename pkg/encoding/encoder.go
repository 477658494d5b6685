package encoding

import (
	"context"
	"fmt"

	"github.com/SuryaBandari247/MLOps-Lead-Scoring-Open-Source/pkg/config"
	"github.com/SuryaBandari247/MLOps-Lead-Scoring-Open-Source/pkg/logger"
	"github.com/SuryaBandari247/MLOps-Lead-Scoring-Open-Source/pkg/models"
)

// TableStore is the slice of the feature store the encoder needs
type TableStore interface {
	ReadTable(ctx context.Context, table string) (*models.Frame, error)
	ReplaceTable(ctx context.Context, table string, frame *models.Frame) error
}

// Result describes one encoding pass
type Result struct {
	// Aborted is set when a categorical feature was missing from the input.
	// Nothing is written in that case and Input holds the raw rows.
	Aborted        bool
	MissingFeature string
	Input          *models.Frame

	Features *models.Frame
	Target   *models.Frame
}

// Rows returns the number of encoded rows, 0 for an aborted pass
func (r *Result) Rows() int {
	if r.Aborted || r.Features == nil {
		return 0
	}
	return r.Features.NumRows()
}

// Encoder turns the cleaned input table into the features and target tables
type Encoder struct {
	store  TableStore
	tables config.StoreConfig
	spec   config.FeaturesConfig
	log    *logger.Logger
}

// NewEncoder creates an encoder over store
func NewEncoder(store TableStore, cfg *config.Config, log *logger.Logger) *Encoder {
	if log == nil {
		log = logger.NewNop()
	}
	return &Encoder{
		store:  store,
		tables: cfg.Store,
		spec:   cfg.Features,
		log:    log.WithFields(logger.Component("encoder")),
	}
}

// Encode reads the input table, encodes it and replaces the features and target tables
func (e *Encoder) Encode(ctx context.Context) (*Result, error) {
	input, err := e.store.ReadTable(ctx, e.tables.InputTable)
	if err != nil {
		return nil, fmt.Errorf("failed to load input table: %w", err)
	}
	e.log.Debug("Loaded input table",
		logger.String("table", e.tables.InputTable),
		logger.Int("rows", input.NumRows()),
		logger.Int("columns", len(input.Columns)))

	res, err := EncodeFrame(input, e.spec.Encode, e.spec.OutputSchema, e.spec.Label)
	if err != nil {
		return nil, err
	}
	if res.Aborted {
		e.log.Warn("Feature not found", logger.String("feature", res.MissingFeature))
		return res, nil
	}

	if err := e.store.ReplaceTable(ctx, e.tables.FeaturesTable, res.Features); err != nil {
		return nil, fmt.Errorf("failed to write features table: %w", err)
	}
	if err := e.store.ReplaceTable(ctx, e.tables.TargetTable, res.Target); err != nil {
		return nil, fmt.Errorf("failed to write target table: %w", err)
	}

	e.log.Info("Encoded features",
		logger.Int("rows", res.Rows()),
		logger.Int("features", len(res.Features.Columns)),
		logger.String("features_table", e.tables.FeaturesTable),
		logger.String("target_table", e.tables.TargetTable))
	return res, nil
}

// EncodeFrame is the in-memory part of Encode. It aborts on the first missing
// categorical feature and otherwise assembles the output in schema order.
func EncodeFrame(input *models.Frame, encode, schema []string, label string) (*Result, error) {
	generated := make(map[string][]int64)
	for _, feature := range encode {
		_, cols, ok := OneHot(input, feature)
		if !ok {
			return &Result{Aborted: true, MissingFeature: feature, Input: input}, nil
		}
		for name, col := range cols {
			generated[name] = col
		}
	}

	n := input.NumRows()
	out := models.NewFrame(schema...)
	out.Rows = make([][]any, n)
	for r := range out.Rows {
		out.Rows[r] = make([]any, len(schema))
	}

	for j, name := range schema {
		if col, ok := generated[name]; ok {
			for r := 0; r < n; r++ {
				out.Rows[r][j] = col[r]
			}
			continue
		}
		if idx := input.ColumnIndex(name); idx >= 0 {
			for r := 0; r < n; r++ {
				out.Rows[r][j] = input.Rows[r][idx]
			}
		}
	}
	out.FillMissing(int64(0))

	if !out.HasColumn(label) {
		return nil, fmt.Errorf("output schema does not include label %q", label)
	}
	target, err := out.Select(label)
	if err != nil {
		return nil, err
	}
	return &Result{
		Input:    input,
		Features: out.Drop(label),
		Target:   target,
	}, nil
}
