package featurestore

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/SuryaBandari247/MLOps-Lead-Scoring-Open-Source/pkg/models"
)

type columnKind int

const (
	kindInteger columnKind = iota
	kindReal
	kindText
)

// ordinalColumn keeps insertion order on engines without a stable scan order.
// It is written by ReplaceTable and never surfaces in a Frame.
const ordinalColumn = "_leadscore_row"

type dialect struct {
	name              string
	driver            string
	tableExistsQuery  string
	columnExistsQuery string
	rowOrder          string
	ordinalType       string // empty when the engine has an implicit row order
	integerType       string
	realType          string
	textType          string
	numbered          bool
}

const pgColumnExists = "SELECT COUNT(*) FROM information_schema.columns " +
	"WHERE table_schema = current_schema() AND table_name = $1 AND column_name = $2"

var (
	sqliteDialect = dialect{
		name:             "sqlite",
		driver:           "sqlite",
		tableExistsQuery: "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?",
		rowOrder:         " ORDER BY rowid",
		integerType:      "INTEGER",
		realType:         "REAL",
		textType:         "TEXT",
	}
	postgresDialect = dialect{
		name:              "postgres",
		driver:            "pgx",
		tableExistsQuery:  "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1",
		columnExistsQuery: pgColumnExists,
		ordinalType:       "BIGSERIAL PRIMARY KEY",
		integerType:       "BIGINT",
		realType:          "DOUBLE PRECISION",
		textType:          "TEXT",
		numbered:          true,
	}
)

// resolveDSN picks the dialect for dsn and returns the driver-level connection string
func resolveDSN(dsn string) (dialect, string) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return postgresDialect, dsn
	case strings.HasPrefix(dsn, "sqlite://"):
		dsn = strings.TrimPrefix(dsn, "sqlite://")
	}
	if dsn == ":memory:" {
		return sqliteDialect, "file::memory:?_pragma=busy_timeout(10000)"
	}
	return sqliteDialect, "file:" + dsn + "?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)"
}

// createTable returns the CREATE statement for frame's columns
func (d dialect) createTable(table string, frame *models.Frame) (string, error) {
	defs := make([]string, 0, len(frame.Columns)+1)
	if d.ordinalType != "" {
		if frame.HasColumn(ordinalColumn) {
			return "", fmt.Errorf("column name %s is reserved", ordinalColumn)
		}
		defs = append(defs, quoteIdent(ordinalColumn)+" "+d.ordinalType)
	}
	for i, col := range frame.Columns {
		defs = append(defs, quoteIdent(col)+" "+d.columnType(inferKind(frame, i)))
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(table), strings.Join(defs, ", ")), nil
}

// selectAll reads table in insertion order. Tables written by other tools
// carry no ordinal column and come back in scan order.
func (d dialect) selectAll(table string, hasOrdinal bool) string {
	query := "SELECT * FROM " + quoteIdent(table)
	if hasOrdinal {
		return query + " ORDER BY " + quoteIdent(ordinalColumn)
	}
	return query + d.rowOrder
}

func (d dialect) placeholder(n int) string {
	if d.numbered {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

func (d dialect) columnType(k columnKind) string {
	switch k {
	case kindInteger:
		return d.integerType
	case kindReal:
		return d.realType
	default:
		return d.textType
	}
}

// inferKind widens over the non-missing cells of a column: integer, then real, then text.
// A column with no values is stored as integer.
func inferKind(frame *models.Frame, col int) columnKind {
	kind := kindInteger
	for _, row := range frame.Rows {
		v := row[col]
		if v == nil {
			continue
		}
		switch v.(type) {
		case int, int32, int64, bool:
		case float32, float64:
			if kind < kindReal {
				kind = kindReal
			}
		default:
			return kindText
		}
	}
	return kind
}
