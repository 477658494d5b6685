package featurestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/SuryaBandari247/MLOps-Lead-Scoring-Open-Source/pkg/models"
)

// ErrTableNotFound is returned when reading a table that does not exist
var ErrTableNotFound = errors.New("table not found")

// insertBatchSize bounds the rows sent per INSERT statement
const insertBatchSize = 200

// Store reads and replaces whole tables in the relational store
type Store struct {
	db      *sql.DB
	dialect dialect
}

// Open connects to the store described by dsn.
// postgres:// and postgresql:// DSNs use pgx; anything else is a SQLite path,
// optionally prefixed with sqlite://.
func Open(ctx context.Context, dsn string) (*Store, error) {
	d, driverDSN := resolveDSN(dsn)

	db, err := sql.Open(d.driver, driverDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection per stage invocation; nothing is shared across calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &Store{db: db, dialect: d}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// TableExists reports whether table is present
func (s *Store) TableExists(ctx context.Context, table string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, s.dialect.tableExistsQuery, table).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", table, err)
	}
	return n > 0, nil
}

// RowCount returns the number of rows in table
func (s *Store) RowCount(ctx context.Context, table string) (int, error) {
	if err := s.requireTable(ctx, table); err != nil {
		return 0, err
	}
	var n int
	query := "SELECT COUNT(*) FROM " + quoteIdent(table)
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rows of %s: %w", table, err)
	}
	return n, nil
}

// ReadTable loads every row of table, preserving column and row order
func (s *Store) ReadTable(ctx context.Context, table string) (*models.Frame, error) {
	if err := s.requireTable(ctx, table); err != nil {
		return nil, err
	}

	hasOrdinal, err := s.hasOrdinal(ctx, table)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, s.dialect.selectAll(table, hasOrdinal))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}

	skip := -1
	names := columns
	if hasOrdinal {
		names = make([]string, 0, len(columns)-1)
		for i, c := range columns {
			if c == ordinalColumn {
				skip = i
				continue
			}
			names = append(names, c)
		}
	}

	frame := models.NewFrame(names...)
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row of %s: %w", table, err)
		}
		row := make([]any, 0, len(names))
		for i, v := range values {
			if i != skip {
				row = append(row, normalizeCell(v))
			}
		}
		frame.Rows = append(frame.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", table, err)
	}
	return frame, nil
}

// ReplaceTable drops table if it exists and writes frame in its place.
// The whole replacement happens in one transaction.
func (s *Store) ReplaceTable(ctx context.Context, table string, frame *models.Frame) error {
	if len(frame.Columns) == 0 {
		return fmt.Errorf("cannot write table %s without columns", table)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(table)); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", table, err)
	}

	create, err := s.dialect.createTable(table, frame)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}

	if err := s.insertRows(ctx, tx, table, frame); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit table %s: %w", table, err)
	}
	return nil
}

func (s *Store) insertRows(ctx context.Context, tx *sql.Tx, table string, frame *models.Frame) error {
	cols := make([]string, len(frame.Columns))
	for i, c := range frame.Columns {
		cols[i] = quoteIdent(c)
	}
	prefix := fmt.Sprintf("INSERT INTO %s (%s) VALUES ", quoteIdent(table), strings.Join(cols, ", "))

	// Keep below SQLite's bound-parameter limit for wide frames.
	batch := insertBatchSize
	if perRow := len(frame.Columns); perRow*batch > 30000 {
		batch = max(1, 30000/perRow)
	}

	for start := 0; start < len(frame.Rows); start += batch {
		end := min(start+batch, len(frame.Rows))

		var sb strings.Builder
		sb.WriteString(prefix)
		args := make([]any, 0, (end-start)*len(frame.Columns))
		n := 0
		for r := start; r < end; r++ {
			if r > start {
				sb.WriteString(", ")
			}
			sb.WriteByte('(')
			for c, v := range frame.Rows[r] {
				if c > 0 {
					sb.WriteString(", ")
				}
				n++
				sb.WriteString(s.dialect.placeholder(n))
				args = append(args, toSQLValue(v))
			}
			sb.WriteByte(')')
		}

		if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
			return fmt.Errorf("failed to insert rows into %s: %w", table, err)
		}
	}
	return nil
}

func (s *Store) hasOrdinal(ctx context.Context, table string) (bool, error) {
	if s.dialect.columnExistsQuery == "" {
		return false, nil
	}
	var n int
	if err := s.db.QueryRowContext(ctx, s.dialect.columnExistsQuery, table, ordinalColumn).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to inspect columns of %s: %w", table, err)
	}
	return n > 0, nil
}

func (s *Store) requireTable(ctx context.Context, table string) error {
	ok, err := s.TableExists(ctx, table)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	return nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func normalizeCell(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case float32:
		return float64(x)
	}
	return v
}

func toSQLValue(v any) any {
	switch x := v.(type) {
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	case int:
		return int64(x)
	}
	return v
}
