package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"chest-xray-pipeline/imbalance"
	"chest-xray-pipeline/models"
	"chest-xray-pipeline/utils"

	_ "github.com/mattn/go-sqlite3" // SQLite driver registration
)

type SQLiteClient struct {
	db *sql.DB
}

func NewSQLiteClient(dataSourceName string) (*SQLiteClient, error) {
	// Extract the file path before query parameters
	dbPath := dataSourceName
	if idx := strings.Index(dataSourceName, "?"); idx != -1 {
		dbPath = dataSourceName[:idx]
	}

	dbDir := filepath.Dir(dbPath)
	if dbDir != "." && dbDir != "" && dbPath != ":memory:" {
		if err := utils.CreateFolder(dbDir); err != nil {
			return nil, fmt.Errorf("error creating database directory: %w", err)
		}
	}

	// Add busy timeout param to DSN (milliseconds)
	if !strings.Contains(dataSourceName, "_busy_timeout") {
		if strings.Contains(dataSourceName, "?") {
			dataSourceName += "&_busy_timeout=5000"
		} else {
			dataSourceName += "?_busy_timeout=5000"
		}
	}

	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("error connecting to SQLite: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating tables: %w", err)
	}

	return &SQLiteClient{db: db}, nil
}

// createTables creates the required tables if they don't exist
func createTables(db *sql.DB) error {
	createRunsTable := `
    CREATE TABLE IF NOT EXISTS analysis_runs (
        id TEXT PRIMARY KEY,
        created_at DATETIME NOT NULL,
        mode TEXT NOT NULL,
        source TEXT NOT NULL,
        total_samples INTEGER NOT NULL DEFAULT 0,
        ratio TEXT,
        strategy TEXT NOT NULL,
        config_path TEXT,
        counts TEXT NOT NULL,
        weights TEXT NOT NULL,
        recommendations TEXT NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_analysis_runs_created_at ON analysis_runs(created_at);
    `

	if _, err := db.Exec(createRunsTable); err != nil {
		return fmt.Errorf("error creating analysis_runs table: %w", err)
	}
	return nil
}

func (db *SQLiteClient) Close() error {
	if db.db != nil {
		return db.db.Close()
	}
	return nil
}

// StoreRun inserts run, replacing a stored run with the same id.
func (db *SQLiteClient) StoreRun(ctx context.Context, run *models.AnalysisRun) error {
	if run.ID == "" {
		run.ID = utils.NewID()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	countsJSON, err := json.Marshal(run.Counts)
	if err != nil {
		return fmt.Errorf("error marshaling counts: %w", err)
	}
	weightsJSON, err := json.Marshal(run.Weights)
	if err != nil {
		return fmt.Errorf("error marshaling weights: %w", err)
	}
	recsJSON, err := json.Marshal(run.Recommendations)
	if err != nil {
		return fmt.Errorf("error marshaling recommendations: %w", err)
	}

	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO analysis_runs (
			id, created_at, mode, source, total_samples, ratio,
			strategy, config_path, counts, weights, recommendations
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("error preparing statement: %w", err)
	}
	defer stmt.Close()

	if _, err := stmt.ExecContext(ctx,
		run.ID,
		run.CreatedAt,
		run.Mode,
		run.Source,
		run.TotalSamples,
		run.RatioText,
		string(run.Strategy),
		run.ConfigPath,
		string(countsJSON),
		string(weightsJSON),
		string(recsJSON),
	); err != nil {
		tx.Rollback()
		return fmt.Errorf("error storing run: %w", err)
	}

	return tx.Commit()
}

const selectRuns = `
	SELECT id, created_at, mode, source, total_samples, ratio,
	       strategy, config_path, counts, weights, recommendations
	FROM analysis_runs`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (models.AnalysisRun, error) {
	var run models.AnalysisRun
	var strategy string
	var ratio, configPath sql.NullString
	var countsJSON, weightsJSON, recsJSON string

	if err := row.Scan(
		&run.ID,
		&run.CreatedAt,
		&run.Mode,
		&run.Source,
		&run.TotalSamples,
		&ratio,
		&strategy,
		&configPath,
		&countsJSON,
		&weightsJSON,
		&recsJSON,
	); err != nil {
		return run, err
	}

	run.Strategy = imbalance.Strategy(strategy)
	run.RatioText = ratio.String
	run.ConfigPath = configPath.String
	run.ParseRatio()

	if err := json.Unmarshal([]byte(countsJSON), &run.Counts); err != nil {
		return run, fmt.Errorf("error unmarshaling counts: %w", err)
	}
	if err := json.Unmarshal([]byte(weightsJSON), &run.Weights); err != nil {
		return run, fmt.Errorf("error unmarshaling weights: %w", err)
	}
	if err := json.Unmarshal([]byte(recsJSON), &run.Recommendations); err != nil {
		return run, fmt.Errorf("error unmarshaling recommendations: %w", err)
	}
	return run, nil
}

// GetRuns returns up to limit runs, newest first. limit <= 0 returns all.
func (db *SQLiteClient) GetRuns(ctx context.Context, limit int) ([]models.AnalysisRun, error) {
	query := selectRuns + " ORDER BY created_at DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying runs: %w", err)
	}
	defer rows.Close()

	var runs []models.AnalysisRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (db *SQLiteClient) GetRun(ctx context.Context, id string) (models.AnalysisRun, bool, error) {
	run, err := scanRun(db.db.QueryRowContext(ctx, selectRuns+" WHERE id = ?", id))
	if err != nil {
		if err == sql.ErrNoRows {
			return models.AnalysisRun{}, false, nil
		}
		return models.AnalysisRun{}, false, fmt.Errorf("failed to retrieve run: %w", err)
	}
	return run, true, nil
}
