package featurestore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SuryaBandari247/MLOps-Lead-Scoring-Open-Source/pkg/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "leads.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestResolveDSN(t *testing.T) {
	d, dsn := resolveDSN("postgres://u:p@localhost:5432/leads")
	assert.Equal(t, "postgres", d.name)
	assert.Equal(t, "postgres://u:p@localhost:5432/leads", dsn)

	d, dsn = resolveDSN("sqlite:///var/data/leads.db")
	assert.Equal(t, "sqlite", d.name)
	assert.True(t, strings.HasPrefix(dsn, "file:/var/data/leads.db?"))

	d, _ = resolveDSN("leads.db")
	assert.Equal(t, "sqlite", d.name)

	assert.Equal(t, "?", sqliteDialect.placeholder(3))
	assert.Equal(t, "$3", postgresDialect.placeholder(3))
}

func TestDialectRowOrder(t *testing.T) {
	frame := models.NewFrame("city", "visits")
	require.NoError(t, frame.AppendRow("Pune", int64(3)))

	create, err := postgresDialect.createTable("features", frame)
	require.NoError(t, err)
	assert.Equal(t, `CREATE TABLE "features" ("_leadscore_row" BIGSERIAL PRIMARY KEY, "city" TEXT, "visits" BIGINT)`, create)
	assert.Equal(t, `SELECT * FROM "features" ORDER BY "_leadscore_row"`, postgresDialect.selectAll("features", true))
	assert.Equal(t, `SELECT * FROM "model_input"`, postgresDialect.selectAll("model_input", false))

	create, err = sqliteDialect.createTable("features", frame)
	require.NoError(t, err)
	assert.Equal(t, `CREATE TABLE "features" ("city" TEXT, "visits" INTEGER)`, create)
	assert.Equal(t, `SELECT * FROM "features" ORDER BY rowid`, sqliteDialect.selectAll("features", false))

	reserved := models.NewFrame(ordinalColumn)
	_, err = postgresDialect.createTable("features", reserved)
	assert.ErrorContains(t, err, "reserved")
}

func TestReplaceAndReadTable(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	frame := models.NewFrame("city", "visits", "score", "referred")
	require.NoError(t, frame.AppendRow("Pune", int64(3), 0.5, true))
	require.NoError(t, frame.AppendRow(nil, int64(7), nil, false))
	require.NoError(t, frame.AppendRow("Delhi", nil, 1.25, true))

	require.NoError(t, store.ReplaceTable(ctx, "model_input", frame))

	got, err := store.ReadTable(ctx, "model_input")
	require.NoError(t, err)
	assert.Equal(t, []string{"city", "visits", "score", "referred"}, got.Columns)
	require.Equal(t, 3, got.NumRows())
	assert.Equal(t, []any{"Pune", int64(3), 0.5, int64(1)}, got.Rows[0])
	assert.Equal(t, []any{nil, int64(7), nil, int64(0)}, got.Rows[1])
	assert.Equal(t, []any{"Delhi", nil, 1.25, int64(1)}, got.Rows[2])

	n, err := store.RowCount(ctx, "model_input")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestReplaceTableOverwrites(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	first := models.NewFrame("a", "b")
	require.NoError(t, first.AppendRow(int64(1), int64(2)))
	require.NoError(t, store.ReplaceTable(ctx, "features", first))

	second := models.NewFrame("c")
	require.NoError(t, second.AppendRow(int64(9)))
	require.NoError(t, second.AppendRow(int64(8)))
	require.NoError(t, store.ReplaceTable(ctx, "features", second))

	got, err := store.ReadTable(ctx, "features")
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, got.Columns)
	assert.Equal(t, [][]any{{int64(9)}, {int64(8)}}, got.Rows)
}

func TestReplaceTableLargeBatch(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	frame := models.NewFrame("id", "flag")
	for i := 0; i < 1234; i++ {
		require.NoError(t, frame.AppendRow(int64(i), int64(i%2)))
	}
	require.NoError(t, store.ReplaceTable(ctx, "target", frame))

	got, err := store.ReadTable(ctx, "target")
	require.NoError(t, err)
	require.Equal(t, 1234, got.NumRows())
	assert.Equal(t, int64(1233), got.Rows[1233][0])
}

func TestReadTableNotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.ReadTable(context.Background(), "model_input")
	assert.ErrorIs(t, err, ErrTableNotFound)

	_, err = store.RowCount(context.Background(), "model_input")
	assert.ErrorIs(t, err, ErrTableNotFound)

	ok, err := store.TableExists(context.Background(), "model_input")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReplaceTableRequiresColumns(t *testing.T) {
	store := openTestStore(t)
	err := store.ReplaceTable(context.Background(), "empty", models.NewFrame())
	assert.Error(t, err)
}

func TestInferKind(t *testing.T) {
	frame := models.NewFrame("i", "f", "s", "none")
	require.NoError(t, frame.AppendRow(int64(1), int64(1), "x", nil))
	require.NoError(t, frame.AppendRow(nil, 2.5, int64(2), nil))

	assert.Equal(t, kindInteger, inferKind(frame, 0))
	assert.Equal(t, kindReal, inferKind(frame, 1))
	assert.Equal(t, kindText, inferKind(frame, 2))
	assert.Equal(t, kindInteger, inferKind(frame, 3))
}

func TestReadCSV(t *testing.T) {
	input := ",city,visits,score\n0,Pune,3,0.5\n1,,7,\n"
	frame, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"index", "city", "visits", "score"}, frame.Columns)
	assert.Equal(t, []any{int64(0), "Pune", int64(3), 0.5}, frame.Rows[0])
	assert.Equal(t, []any{int64(1), nil, int64(7), nil}, frame.Rows[1])

	_, err = ReadCSV(strings.NewReader(""))
	assert.Error(t, err)
}

func TestImportCSV(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	path := filepath.Join(t.TempDir(), "leads.csv")
	content := "first_platform_c,referred_lead,app_complete_flag\nLevel0,0,1\nLevel3,1,0\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	n, err := store.ImportCSV(ctx, path, "model_input")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := store.ReadTable(ctx, "model_input")
	require.NoError(t, err)
	assert.Equal(t, []any{"Level3", int64(1), int64(0)}, got.Rows[1])

	_, err = store.ImportCSV(ctx, filepath.Join(t.TempDir(), "missing.csv"), "model_input")
	assert.Error(t, err)
}
