package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Frame is an in-memory table: ordered column names and row-major cells.
// A nil cell is a missing value.
type Frame struct {
	Columns []string
	Rows    [][]any
}

// NewFrame creates an empty frame with the given columns
func NewFrame(columns ...string) *Frame {
	return &Frame{Columns: append([]string(nil), columns...)}
}

// NumRows returns the number of rows
func (f *Frame) NumRows() int {
	return len(f.Rows)
}

// ColumnIndex returns the position of a column, or -1
func (f *Frame) ColumnIndex(name string) int {
	for i, c := range f.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the frame has a column with this exact name
func (f *Frame) HasColumn(name string) bool {
	return f.ColumnIndex(name) >= 0
}

// AppendRow adds a row; the value count must match the column count
func (f *Frame) AppendRow(values ...any) error {
	if len(values) != len(f.Columns) {
		return fmt.Errorf("row has %d values, frame has %d columns", len(values), len(f.Columns))
	}
	f.Rows = append(f.Rows, values)
	return nil
}

// Column returns a copy of one column's cells
func (f *Frame) Column(name string) ([]any, bool) {
	idx := f.ColumnIndex(name)
	if idx < 0 {
		return nil, false
	}
	out := make([]any, len(f.Rows))
	for i, row := range f.Rows {
		out[i] = row[idx]
	}
	return out, true
}

// Select returns a new frame holding only the named columns, in that order
func (f *Frame) Select(columns ...string) (*Frame, error) {
	idx := make([]int, len(columns))
	for i, name := range columns {
		idx[i] = f.ColumnIndex(name)
		if idx[i] < 0 {
			return nil, fmt.Errorf("column %q not found", name)
		}
	}
	out := NewFrame(columns...)
	out.Rows = make([][]any, len(f.Rows))
	for r, row := range f.Rows {
		vals := make([]any, len(idx))
		for i, j := range idx {
			vals[i] = row[j]
		}
		out.Rows[r] = vals
	}
	return out, nil
}

// Drop returns a new frame without the named column
func (f *Frame) Drop(name string) *Frame {
	keep := make([]string, 0, len(f.Columns))
	for _, c := range f.Columns {
		if c != name {
			keep = append(keep, c)
		}
	}
	out, _ := f.Select(keep...)
	return out
}

// FillMissing replaces nil and NaN cells with value in place
func (f *Frame) FillMissing(value any) {
	for _, row := range f.Rows {
		for i, v := range row {
			if IsMissing(v) {
				row[i] = value
			}
		}
	}
}

// Float64s converts a column to float64 values
func (f *Frame) Float64s(name string) ([]float64, error) {
	col, ok := f.Column(name)
	if !ok {
		return nil, fmt.Errorf("column %q not found", name)
	}
	out := make([]float64, len(col))
	for i, v := range col {
		x, err := ToFloat64(v)
		if err != nil {
			return nil, fmt.Errorf("column %q row %d: %w", name, i, err)
		}
		out[i] = x
	}
	return out, nil
}

// IsMissing reports whether a cell holds no value
func IsMissing(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(x)
	case float32:
		return math.IsNaN(float64(x))
	}
	return false
}

// ToFloat64 converts a numeric cell; numeric text is accepted
func ToFloat64(v any) (float64, error) {
	switch x := v.(type) {
	case int64:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("non-numeric value %q", x)
		}
		return f, nil
	case []byte:
		return ToFloat64(string(x))
	case nil:
		return 0, fmt.Errorf("missing value")
	default:
		return 0, fmt.Errorf("unsupported value type %T", v)
	}
}

// FormatValue renders a cell the way category labels are spelled in column names:
// integral floats keep a trailing ".0", booleans are True/False.
func FormatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case bool:
		if x {
			return "True"
		}
		return "False"
	case float64:
		s := strconv.FormatFloat(x, 'f', -1, 64)
		if math.IsInf(x, 0) || math.IsNaN(x) {
			return strconv.FormatFloat(x, 'g', -1, 64)
		}
		if !strings.ContainsAny(s, ".e") {
			s += ".0"
		}
		return s
	default:
		return fmt.Sprint(v)
	}
}
