package adapters

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	_ "modernc.org/sqlite"

	"workspace-merge/internal/types"
)

const journalTimeLayout = "2006-01-02T15:04:05.000"

const maxJournalMessageLen = 512

const journalSchema = `
CREATE TABLE IF NOT EXISTS merge_runs (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp   TEXT    NOT NULL,
    direction   TEXT    NOT NULL,
    workspace   TEXT    NOT NULL,
    errors      INTEGER NOT NULL,
    duration_ms INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS merge_files (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id      INTEGER NOT NULL REFERENCES merge_runs(id),
    path        TEXT    NOT NULL,
    format      TEXT    NOT NULL,
    status      TEXT    NOT NULL,
    fingerprint TEXT    NOT NULL DEFAULT '',
    message     TEXT    NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_merge_runs_ts ON merge_runs(timestamp);
CREATE INDEX IF NOT EXISTS idx_merge_files_run ON merge_files(run_id);
`

// SQLiteJournal records merge runs and their per-file outcomes in a local
// SQLite database.
type SQLiteJournal struct {
	db *sql.DB
}

// DefaultJournalPath returns $XDG_DATA_HOME/workspace-merge/journal.db, or
// ~/.local/share/workspace-merge/journal.db if XDG_DATA_HOME is unset.
func DefaultJournalPath() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "workspace-merge", "journal.db")
}

func OpenSQLiteJournal(path string) (*SQLiteJournal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, journalError("failed to create journal directory", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, journalError("failed to open journal "+path, err)
	}
	for _, statement := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		journalSchema,
	} {
		if _, err := db.Exec(statement); err != nil {
			return nil, errors.Join(journalError("failed to initialize journal "+path, err), db.Close())
		}
	}
	if err := migrateJournal(db); err != nil {
		return nil, errors.Join(journalError("failed to migrate journal "+path, err), db.Close())
	}
	return &SQLiteJournal{db: db}, nil
}

// migrateJournal applies incremental schema changes tracked by
// PRAGMA user_version.
func migrateJournal(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	if version < 1 {
		if _, err := db.Exec("PRAGMA user_version = 1"); err != nil {
			return fmt.Errorf("set user_version to 1: %w", err)
		}
	}
	return nil
}

func (j *SQLiteJournal) RecordRun(run types.JournalRun) (int64, error) {
	tx, err := j.db.Begin()
	if err != nil {
		return 0, journalError("failed to begin journal transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	ts := run.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	result, err := tx.Exec(
		`INSERT INTO merge_runs (timestamp, direction, workspace, errors, duration_ms) VALUES (?, ?, ?, ?, ?)`,
		formatJournalTime(ts),
		string(run.Direction),
		run.Workspace,
		run.Errors,
		run.DurationMs,
	)
	if err != nil {
		return 0, journalError("failed to insert merge run", err)
	}
	runID, err := result.LastInsertId()
	if err != nil {
		return 0, journalError("failed to read merge run id", err)
	}
	for _, file := range run.Files {
		_, err := tx.Exec(
			`INSERT INTO merge_files (run_id, path, format, status, fingerprint, message) VALUES (?, ?, ?, ?, ?, ?)`,
			runID,
			file.Path,
			string(file.Format),
			string(file.Status),
			file.Fingerprint,
			truncate(file.Message, maxJournalMessageLen),
		)
		if err != nil {
			return 0, journalError("failed to insert merge file "+file.Path, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, journalError("failed to commit journal transaction", err)
	}
	return runID, nil
}

// ListRuns returns the newest runs first, without their files.
func (j *SQLiteJournal) ListRuns(limit int) ([]types.JournalRun, error) {
	query := "SELECT id, timestamp, direction, workspace, errors, duration_ms FROM merge_runs ORDER BY id DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := j.db.Query(query, args...)
	if err != nil {
		return nil, journalError("failed to list merge runs", err)
	}
	defer rows.Close()

	var runs []types.JournalRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, journalError("failed to iterate merge runs", err)
	}
	return runs, nil
}

func (j *SQLiteJournal) GetRun(id int64) (types.JournalRun, error) {
	row := j.db.QueryRow("SELECT id, timestamp, direction, workspace, errors, duration_ms FROM merge_runs WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.JournalRun{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("merge run %d not found", id))
	}
	if err != nil {
		return types.JournalRun{}, err
	}

	rows, err := j.db.Query(
		"SELECT id, run_id, path, format, status, fingerprint, message FROM merge_files WHERE run_id = ? ORDER BY id",
		id,
	)
	if err != nil {
		return types.JournalRun{}, journalError("failed to list merge files", err)
	}
	defer rows.Close()
	for rows.Next() {
		var file types.JournalFile
		var format, status string
		if err := rows.Scan(&file.ID, &file.RunID, &file.Path, &format, &status, &file.Fingerprint, &file.Message); err != nil {
			return types.JournalRun{}, journalError("failed to scan merge file", err)
		}
		file.Format = types.FileFormat(format)
		file.Status = types.MergeStatus(status)
		run.Files = append(run.Files, file)
	}
	if err := rows.Err(); err != nil {
		return types.JournalRun{}, journalError("failed to iterate merge files", err)
	}
	return run, nil
}

func (j *SQLiteJournal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (types.JournalRun, error) {
	var run types.JournalRun
	var ts, direction string
	if err := row.Scan(&run.ID, &ts, &direction, &run.Workspace, &run.Errors, &run.DurationMs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return run, err
		}
		return run, journalError("failed to scan merge run", err)
	}
	parsed, ok := parseJournalTime(ts)
	if !ok {
		return run, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("invalid journal timestamp %q", ts))
	}
	run.Timestamp = parsed
	run.Direction = types.JournalDirection(direction)
	return run, nil
}

func journalError(msg string, err error) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg(msg).
		WithCause(err)
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit]
}
