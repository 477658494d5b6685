package featurestore

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/SuryaBandari247/MLOps-Lead-Scoring-Open-Source/pkg/models"
)

// ReadCSV parses a CSV stream with a header row into a frame.
// Empty cells become missing values; integer and float text is converted.
func ReadCSV(r io.Reader) (*models.Frame, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = false

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("csv input is empty")
		}
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	// pandas writes an unnamed index column first
	if len(header) > 0 && header[0] == "" {
		header[0] = "index"
	}

	frame := models.NewFrame(header...)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv line %d: %w", line, err)
		}
		row := make([]any, len(record))
		for i, cell := range record {
			row[i] = parseCell(cell)
		}
		frame.Rows = append(frame.Rows, row)
	}
	return frame, nil
}

// ImportCSV loads a CSV file into table, replacing any existing contents.
// It returns the number of rows written.
func (s *Store) ImportCSV(ctx context.Context, path, table string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open csv file: %w", err)
	}
	defer f.Close()

	frame, err := ReadCSV(f)
	if err != nil {
		return 0, err
	}
	if err := s.ReplaceTable(ctx, table, frame); err != nil {
		return 0, err
	}
	return frame.NumRows(), nil
}

func parseCell(cell string) any {
	s := strings.TrimSpace(cell)
	if s == "" {
		return nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return cell
}
