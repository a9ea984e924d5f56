package storage

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"listing_scrooper/models"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS extraction_runs (
		id INTEGER PRIMARY KEY,
		request_id TEXT,
		url TEXT NOT NULL,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		final_state TEXT,
		fields_found INTEGER DEFAULT 0,
		error TEXT
	);

	CREATE TABLE IF NOT EXISTS extraction_logs (
		id INTEGER PRIMARY KEY,
		run_id INTEGER,
		timestamp DATETIME,
		level TEXT,
		layer TEXT,
		message TEXT
	);

	CREATE TABLE IF NOT EXISTS intake_requests (
		id INTEGER PRIMARY KEY,
		url TEXT NOT NULL,
		status TEXT DEFAULT 'pending',
		attempts INTEGER DEFAULT 0,
		result JSON,
		error TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		processed_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_runs_status ON extraction_runs(status, started_at);
	CREATE INDEX IF NOT EXISTS idx_logs_run ON extraction_logs(run_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_intake_pending ON intake_requests(status, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// Runs
// =============================================================================

func (s *SQLiteStore) CreateRun(run *models.ExtractionRun) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO extraction_runs (request_id, url, started_at, status, fields_found)
		VALUES (?, ?, ?, ?, 0)`,
		run.RequestID, run.URL, run.StartedAt, run.Status)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) FinishRun(run *models.ExtractionRun) error {
	_, err := s.db.Exec(`
		UPDATE extraction_runs SET request_id = ?, finished_at = ?, status = ?, final_state = ?,
			fields_found = ?, error = ?
		WHERE id = ?`,
		run.RequestID, run.FinishedAt, run.Status, run.FinalState, run.FieldsFound, run.Error, run.ID)
	return err
}

func (s *SQLiteStore) GetRun(id int64) (*models.ExtractionRun, error) {
	row := s.db.QueryRow(`
		SELECT id, COALESCE(request_id, ''), url, started_at, finished_at, COALESCE(status, ''),
			COALESCE(final_state, ''), COALESCE(fields_found, 0), COALESCE(error, '')
		FROM extraction_runs WHERE id = ?`, id)

	var run models.ExtractionRun
	err := row.Scan(&run.ID, &run.RequestID, &run.URL, &run.StartedAt, &run.FinishedAt, &run.Status,
		&run.FinalState, &run.FieldsFound, &run.Error)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (s *SQLiteStore) Log(runID *int64, level models.LogLevel, layer, message string) error {
	_, err := s.db.Exec(`
		INSERT INTO extraction_logs (run_id, timestamp, level, layer, message)
		VALUES (?, ?, ?, ?, ?)`,
		runID, time.Now(), level, layer, message)
	return err
}

func (s *SQLiteStore) GetRunLogs(runID int64) ([]models.ExtractionLog, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, timestamp, level, COALESCE(layer, ''), message
		FROM extraction_logs WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.ExtractionLog
	for rows.Next() {
		var l models.ExtractionLog
		if err := rows.Scan(&l.ID, &l.RunID, &l.Timestamp, &l.Level, &l.Layer, &l.Message); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// =============================================================================
// Intake queue
// =============================================================================

func (s *SQLiteStore) EnqueueIntake(url string) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO intake_requests (url, status, attempts, created_at)
		VALUES (?, ?, 0, ?)`,
		url, models.IntakePending, time.Now())
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) PendingIntake(limit int) ([]models.IntakeRequest, error) {
	if limit <= 0 {
		limit = 1
	}
	rows, err := s.db.Query(`
		SELECT id, url, status, attempts, result, COALESCE(error, ''), created_at, processed_at
		FROM intake_requests WHERE status = ? ORDER BY created_at, id LIMIT ?`,
		models.IntakePending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reqs []models.IntakeRequest
	for rows.Next() {
		req, err := scanIntake(rows)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, *req)
	}
	return reqs, rows.Err()
}

func (s *SQLiteStore) GetIntake(id int64) (*models.IntakeRequest, error) {
	row := s.db.QueryRow(`
		SELECT id, url, status, attempts, result, COALESCE(error, ''), created_at, processed_at
		FROM intake_requests WHERE id = ?`, id)

	req, err := scanIntake(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return req, err
}

func (s *SQLiteStore) CompleteIntake(id int64, result json.RawMessage) error {
	_, err := s.db.Exec(`
		UPDATE intake_requests SET status = ?, attempts = attempts + 1, result = ?, error = NULL,
			processed_at = ?
		WHERE id = ?`,
		models.IntakeDone, string(result), time.Now(), id)
	return err
}

// FailIntake records a failed attempt. The request stays pending until it
// has used up MaxIntakeAttempts.
func (s *SQLiteStore) FailIntake(id int64, message string) error {
	_, err := s.db.Exec(`
		UPDATE intake_requests SET
			attempts = attempts + 1,
			error = ?,
			status = CASE WHEN attempts + 1 >= ? THEN ? ELSE status END,
			processed_at = CASE WHEN attempts + 1 >= ? THEN ? ELSE processed_at END
		WHERE id = ?`,
		message, models.MaxIntakeAttempts, models.IntakeFailed, models.MaxIntakeAttempts, time.Now(), id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIntake(row rowScanner) (*models.IntakeRequest, error) {
	var req models.IntakeRequest
	var result sql.NullString
	if err := row.Scan(&req.ID, &req.URL, &req.Status, &req.Attempts, &result, &req.Error,
		&req.CreatedAt, &req.ProcessedAt); err != nil {
		return nil, err
	}
	if result.Valid && result.String != "" {
		req.Result = json.RawMessage(result.String)
	}
	return &req, nil
}
