package tracking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/SuryaBandari247/MLOps-Lead-Scoring-Open-Source/pkg/logger"
	"github.com/SuryaBandari247/MLOps-Lead-Scoring-Open-Source/pkg/models"
)

// ErrNotFound is returned by lookups on the local store
var ErrNotFound = errors.New("not found")

// LocalStore is a tracker that keeps runs and the model registry in SQLite and
// artifacts on the local filesystem
type LocalStore struct {
	db           *sql.DB
	artifactRoot string
	log          *logger.Logger
	now          func() time.Time
}

// NewLocalStore opens or creates the tracking database at dbPath.
// Artifacts are written below artifactRoot.
func NewLocalStore(dbPath, artifactRoot string, log *logger.Logger) (*LocalStore, error) {
	if log == nil {
		log = logger.NewNop()
	}
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create tracking directory: %w", err)
		}
	}
	absRoot, err := filepath.Abs(artifactRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve artifact root: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &LocalStore{db: db, artifactRoot: absRoot, log: log.WithFields(logger.Component("tracking")), now: time.Now}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// Close closes the database connection
func (s *LocalStore) Close() error {
	return s.db.Close()
}

func (s *LocalStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS experiments (
		experiment_id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT UNIQUE NOT NULL,
		artifact_location TEXT NOT NULL,
		creation_time INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS runs (
		run_uuid TEXT PRIMARY KEY,
		experiment_id INTEGER NOT NULL,
		status TEXT NOT NULL,
		start_time INTEGER NOT NULL,
		end_time INTEGER,
		artifact_uri TEXT NOT NULL,
		FOREIGN KEY (experiment_id) REFERENCES experiments(experiment_id)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_experiment_id ON runs(experiment_id);

	CREATE TABLE IF NOT EXISTS params (
		run_uuid TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (run_uuid, key),
		FOREIGN KEY (run_uuid) REFERENCES runs(run_uuid)
	);

	CREATE TABLE IF NOT EXISTS metrics (
		run_uuid TEXT NOT NULL,
		key TEXT NOT NULL,
		value REAL NOT NULL,
		timestamp INTEGER NOT NULL,
		step INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (run_uuid) REFERENCES runs(run_uuid)
	);

	CREATE INDEX IF NOT EXISTS idx_metrics_run_uuid ON metrics(run_uuid);

	CREATE TABLE IF NOT EXISTS registered_models (
		name TEXT PRIMARY KEY,
		creation_time INTEGER NOT NULL,
		last_updated_time INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS model_versions (
		name TEXT NOT NULL,
		version INTEGER NOT NULL,
		creation_time INTEGER NOT NULL,
		last_updated_time INTEGER NOT NULL,
		current_stage TEXT NOT NULL,
		source TEXT NOT NULL,
		run_id TEXT NOT NULL,
		status TEXT NOT NULL,
		PRIMARY KEY (name, version),
		FOREIGN KEY (name) REFERENCES registered_models(name)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// StartRun creates the experiment on first use and inserts a RUNNING run
func (s *LocalStore) StartRun(ctx context.Context, experiment string) (*models.Run, error) {
	expID, err := s.experimentID(ctx, experiment)
	if err != nil {
		return nil, err
	}

	start := s.now()
	runID := strings.ReplaceAll(uuid.NewString(), "-", "")
	artifactURI := "file://" + filepath.ToSlash(filepath.Join(s.artifactRoot, expID, runID, "artifacts"))

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (run_uuid, experiment_id, status, start_time, artifact_uri) VALUES (?, ?, ?, ?, ?)`,
		runID, expID, string(models.RunStatusRunning), millis(start), artifactURI)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	return &models.Run{
		ID:             runID,
		ExperimentID:   expID,
		ExperimentName: experiment,
		Status:         models.RunStatusRunning,
		ArtifactURI:    artifactURI,
		StartTime:      start,
		Params:         make(map[string]string),
		Metrics:        make(map[string]float64),
	}, nil
}

func (s *LocalStore) experimentID(ctx context.Context, name string) (string, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT experiment_id FROM experiments WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return strconv.FormatInt(id, 10), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("failed to get experiment %s: %w", name, err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO experiments (name, artifact_location, creation_time) VALUES (?, ?, ?)`,
		name, s.artifactRoot, millis(s.now()))
	if err != nil {
		return "", fmt.Errorf("failed to create experiment %s: %w", name, err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("failed to read experiment id: %w", err)
	}
	s.log.Info("Created experiment", logger.String("experiment", name), logger.String("experiment_id", strconv.FormatInt(id, 10)))
	return strconv.FormatInt(id, 10), nil
}

// LogParams stores params; re-logging a key with a different value is an error
func (s *LocalStore) LogParams(ctx context.Context, run *models.Run, params map[string]string) error {
	if err := checkActive(run); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, k := range sortedKeys(params) {
		var existing string
		err := tx.QueryRowContext(ctx, `SELECT value FROM params WHERE run_uuid = ? AND key = ?`, run.ID, k).Scan(&existing)
		switch {
		case err == nil:
			if existing != params[k] {
				return fmt.Errorf("param %s already logged with value %q", k, existing)
			}
			continue
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("failed to check param %s: %w", k, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO params (run_uuid, key, value) VALUES (?, ?, ?)`, run.ID, k, params[k]); err != nil {
			return fmt.Errorf("failed to log param %s: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit params: %w", err)
	}
	for k, v := range params {
		run.Params[k] = v
	}
	return nil
}

// LogMetrics appends one value per metric at step 0
func (s *LocalStore) LogMetrics(ctx context.Context, run *models.Run, metrics map[string]float64) error {
	if err := checkActive(run); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ts := millis(s.now())
	for _, k := range sortedKeys(metrics) {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO metrics (run_uuid, key, value, timestamp, step) VALUES (?, ?, ?, ?, 0)`,
			run.ID, k, metrics[k], ts); err != nil {
			return fmt.Errorf("failed to log metric %s: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit metrics: %w", err)
	}
	for k, v := range metrics {
		run.Metrics[k] = v
	}
	return nil
}

// LogModel writes the files under the run's artifact directory and registers
// the next version of the named model
func (s *LocalStore) LogModel(ctx context.Context, run *models.Run, artifact *models.ModelArtifact) (*models.ModelVersion, error) {
	if err := checkActive(run); err != nil {
		return nil, err
	}

	dir := filepath.Join(s.runArtifactDir(run), filepath.FromSlash(artifact.ArtifactPath))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	for _, name := range sortedKeys(artifact.Files) {
		if err := os.WriteFile(filepath.Join(dir, name), artifact.Files[name], 0o644); err != nil {
			return nil, fmt.Errorf("failed to write artifact %s: %w", name, err)
		}
	}

	if artifact.RegisteredName == "" {
		return nil, nil
	}
	return s.registerVersion(ctx, artifact.RegisteredName, run.ArtifactURI+"/"+artifact.ArtifactPath, run.ID)
}

func (s *LocalStore) registerVersion(ctx context.Context, name, source, runID string) (*models.ModelVersion, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.now()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO registered_models (name, creation_time, last_updated_time) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET last_updated_time = excluded.last_updated_time`,
		name, millis(now), millis(now)); err != nil {
		return nil, fmt.Errorf("failed to create registered model: %w", err)
	}

	var version int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM model_versions WHERE name = ?`, name).Scan(&version); err != nil {
		return nil, fmt.Errorf("failed to allocate model version: %w", err)
	}

	mv := &models.ModelVersion{
		Name:         name,
		Version:      strconv.FormatInt(version, 10),
		RunID:        runID,
		Source:       source,
		Status:       models.ModelVersionReady,
		CurrentStage: "None",
		CreatedAt:    now,
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO model_versions (name, version, creation_time, last_updated_time, current_stage, source, run_id, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		name, version, millis(now), millis(now), mv.CurrentStage, source, runID, string(mv.Status)); err != nil {
		return nil, fmt.Errorf("failed to create model version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit model version: %w", err)
	}

	s.log.Info("Registered model version", logger.String("model", name), logger.String("version", mv.Version))
	return mv, nil
}

// EndRun sets the terminal status and end time
func (s *LocalStore) EndRun(ctx context.Context, run *models.Run, status models.RunStatus) error {
	if err := checkActive(run); err != nil {
		return err
	}
	end := s.now()
	if _, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, end_time = ? WHERE run_uuid = ?`,
		string(status), millis(end), run.ID); err != nil {
		return fmt.Errorf("failed to end run: %w", err)
	}
	run.Status = status
	run.EndTime = &end
	return nil
}

// GetRun loads a run with its params and latest metric values
func (s *LocalStore) GetRun(ctx context.Context, runID string) (*models.Run, error) {
	run := &models.Run{ID: runID, Params: make(map[string]string), Metrics: make(map[string]float64)}

	var (
		expID   int64
		status  string
		start   int64
		end     sql.NullInt64
		expName string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT r.experiment_id, e.name, r.status, r.start_time, r.end_time, r.artifact_uri
		FROM runs r JOIN experiments e ON e.experiment_id = r.experiment_id
		WHERE r.run_uuid = ?`, runID).Scan(&expID, &expName, &status, &start, &end, &run.ArtifactURI)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	run.ExperimentID = strconv.FormatInt(expID, 10)
	run.ExperimentName = expName
	run.Status = models.RunStatus(status)
	run.StartTime = time.UnixMilli(start)
	if end.Valid {
		t := time.UnixMilli(end.Int64)
		run.EndTime = &t
	}

	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM params WHERE run_uuid = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get params: %w", err)
	}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan param: %w", err)
		}
		run.Params[k] = v
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx,
		`SELECT key, value FROM metrics WHERE run_uuid = ? ORDER BY timestamp, rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var k string
		var v float64
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan metric: %w", err)
		}
		run.Metrics[k] = v
	}
	return run, rows.Err()
}

// LatestVersion returns the highest registered version of a model
func (s *LocalStore) LatestVersion(ctx context.Context, name string) (*models.ModelVersion, error) {
	mv := &models.ModelVersion{Name: name}
	var (
		version int64
		created int64
		status  string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT version, creation_time, current_stage, source, run_id, status
		FROM model_versions WHERE name = ? ORDER BY version DESC LIMIT 1`, name).
		Scan(&version, &created, &mv.CurrentStage, &mv.Source, &mv.RunID, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("registered model %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get model version: %w", err)
	}
	mv.Version = strconv.FormatInt(version, 10)
	mv.CreatedAt = time.UnixMilli(created)
	mv.Status = models.ModelVersionStatus(status)
	return mv, nil
}

// ArtifactDir returns the local directory backing a run's artifact URI
func (s *LocalStore) ArtifactDir(run *models.Run) string {
	return s.runArtifactDir(run)
}

func (s *LocalStore) runArtifactDir(run *models.Run) string {
	return filepath.FromSlash(strings.TrimPrefix(run.ArtifactURI, "file://"))
}
