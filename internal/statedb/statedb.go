package statedb

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/asheshgoplani/pgrepwc/internal/logging"
)

// SchemaVersion tracks the current database schema version.
// Bump this when adding migrations.
const SchemaVersion = 1

var dbLog = logging.ForComponent(logging.CompStorage)

// ErrRunNotFound is returned when a run id has no row.
var ErrRunNotFound = errors.New("statedb: run not found")

// MetaLastRun is the metadata key holding the id of the most recently saved run.
const MetaLastRun = "last_run"

// StateDB wraps the SQLite run database.
// Safe for concurrent use; several processes can share the file via WAL mode
// and the busy timeout.
type StateDB struct {
	db *sql.DB
}

// RunRow is one recorded run.
type RunRow struct {
	ID          string
	StartedAt   time.Time
	Duration    time.Duration
	Words       []string
	Mode        string
	AllWords    bool
	Parallelism int
	Interval    time.Duration
	Partial     bool
	Totals      [3]int
	FileCount   int
	HistoryPath string
}

// RunFileRow is one scanned range of a run.
type RunFileRow struct {
	RunID     string
	Worker    int
	Path      string
	FirstLine int
	Lines     int
	Duration  time.Duration
	Values    [3]int
}

// NewRunID returns a fresh run id.
func NewRunID() string { return uuid.NewString() }

// Open creates or opens a SQLite database at dbPath with WAL mode and busy timeout.
func Open(dbPath string) (*StateDB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("statedb: mkdir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("statedb: open: %w", err)
	}
	// PRAGMAs below are per connection.
	db.SetMaxOpenConns(1)

	// WAL mode: allows concurrent readers while writing
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("statedb: wal mode: %w", err)
	}

	// Busy timeout: wait up to 5s if another process holds a lock
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("statedb: busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("statedb: foreign keys: %w", err)
	}

	return &StateDB{db: db}, nil
}

// Close checkpoints WAL and closes the database.
func (s *StateDB) Close() error {
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

// Migrate creates tables if they don't exist.
func (s *StateDB) Migrate() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("statedb: begin migrate: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("statedb: create metadata: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id           TEXT PRIMARY KEY,
			started_at   INTEGER NOT NULL,
			duration_us  INTEGER NOT NULL DEFAULT 0,
			words        TEXT NOT NULL DEFAULT '[]',
			mode         TEXT NOT NULL DEFAULT 'count',
			all_words    INTEGER NOT NULL DEFAULT 0,
			parallelism  INTEGER NOT NULL DEFAULT 0,
			interval_us  INTEGER NOT NULL DEFAULT 0,
			partial      INTEGER NOT NULL DEFAULT 0,
			total_0      INTEGER NOT NULL DEFAULT 0,
			total_1      INTEGER NOT NULL DEFAULT 0,
			total_2      INTEGER NOT NULL DEFAULT 0,
			file_count   INTEGER NOT NULL DEFAULT 0,
			history_path TEXT NOT NULL DEFAULT ''
		)
	`); err != nil {
		return fmt.Errorf("statedb: create runs: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS run_files (
			run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			seq         INTEGER NOT NULL,
			worker      INTEGER NOT NULL,
			path        TEXT NOT NULL,
			first_line  INTEGER NOT NULL DEFAULT 0,
			lines       INTEGER NOT NULL DEFAULT 0,
			duration_us INTEGER NOT NULL DEFAULT 0,
			value_0     INTEGER NOT NULL DEFAULT 0,
			value_1     INTEGER NOT NULL DEFAULT 0,
			value_2     INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (run_id, seq)
		)
	`); err != nil {
		return fmt.Errorf("statedb: create run_files: %w", err)
	}

	if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`); err != nil {
		return fmt.Errorf("statedb: create index: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT OR REPLACE INTO metadata (key, value) VALUES ('schema_version', ?)
	`, fmt.Sprintf("%d", SchemaVersion)); err != nil {
		return fmt.Errorf("statedb: set schema version: %w", err)
	}

	return tx.Commit()
}

// --- Runs ---

// SaveRun inserts a run and its files in one transaction. An empty run.ID is
// filled with a new id.
func (s *StateDB) SaveRun(run *RunRow, files []*RunFileRow) error {
	if run.ID == "" {
		run.ID = NewRunID()
	}
	words, err := json.Marshal(run.Words)
	if err != nil {
		return fmt.Errorf("statedb: encode words: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("statedb: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
		INSERT INTO runs (
			id, started_at, duration_us, words, mode, all_words,
			parallelism, interval_us, partial,
			total_0, total_1, total_2, file_count, history_path
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID, run.StartedAt.UnixMicro(), run.Duration.Microseconds(), string(words), run.Mode, run.AllWords,
		run.Parallelism, run.Interval.Microseconds(), run.Partial,
		run.Totals[0], run.Totals[1], run.Totals[2], run.FileCount, run.HistoryPath,
	); err != nil {
		return fmt.Errorf("statedb: insert run: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO run_files (
			run_id, seq, worker, path, first_line, lines, duration_us,
			value_0, value_1, value_2
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("statedb: prepare run_files: %w", err)
	}
	defer stmt.Close()

	for i, f := range files {
		f.RunID = run.ID
		if _, err := stmt.Exec(
			run.ID, i, f.Worker, f.Path, f.FirstLine, f.Lines, f.Duration.Microseconds(),
			f.Values[0], f.Values[1], f.Values[2],
		); err != nil {
			return fmt.Errorf("statedb: insert run file: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("statedb: commit run: %w", err)
	}
	if err := s.SetMeta(MetaLastRun, run.ID); err != nil {
		return fmt.Errorf("statedb: set last run: %w", err)
	}
	dbLog.Debug("run_saved", slog.String("run_id", run.ID), slog.Int("files", len(files)))
	return nil
}

const runColumns = `id, started_at, duration_us, words, mode, all_words,
	parallelism, interval_us, partial, total_0, total_1, total_2, file_count, history_path`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(sc rowScanner) (*RunRow, error) {
	r := &RunRow{}
	var started, durUs, intervalUs int64
	var words string
	if err := sc.Scan(
		&r.ID, &started, &durUs, &words, &r.Mode, &r.AllWords,
		&r.Parallelism, &intervalUs, &r.Partial,
		&r.Totals[0], &r.Totals[1], &r.Totals[2], &r.FileCount, &r.HistoryPath,
	); err != nil {
		return nil, err
	}
	r.StartedAt = time.UnixMicro(started)
	r.Duration = time.Duration(durUs) * time.Microsecond
	r.Interval = time.Duration(intervalUs) * time.Microsecond
	if err := json.Unmarshal([]byte(words), &r.Words); err != nil {
		return nil, fmt.Errorf("statedb: decode words of %s: %w", r.ID, err)
	}
	return r, nil
}

// LoadRuns returns up to limit runs, newest first. limit <= 0 returns all.
func (s *StateDB) LoadRuns(limit int) ([]*RunRow, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("statedb: query runs: %w", err)
	}
	defer rows.Close()

	var result []*RunRow
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// LoadRun returns one run by id, or ErrRunNotFound.
func (s *StateDB) LoadRun(id string) (*RunRow, error) {
	r, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	return r, err
}

// LoadRunFiles returns the files of a run in insertion order.
func (s *StateDB) LoadRunFiles(runID string) ([]*RunFileRow, error) {
	rows, err := s.db.Query(`
		SELECT run_id, worker, path, first_line, lines, duration_us, value_0, value_1, value_2
		FROM run_files WHERE run_id = ? ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("statedb: query run_files: %w", err)
	}
	defer rows.Close()

	var result []*RunFileRow
	for rows.Next() {
		f := &RunFileRow{}
		var durUs int64
		if err := rows.Scan(&f.RunID, &f.Worker, &f.Path, &f.FirstLine, &f.Lines, &durUs,
			&f.Values[0], &f.Values[1], &f.Values[2]); err != nil {
			return nil, err
		}
		f.Duration = time.Duration(durUs) * time.Microsecond
		result = append(result, f)
	}
	return result, rows.Err()
}

// DeleteRun removes a run and its files.
func (s *StateDB) DeleteRun(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("statedb: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM run_files WHERE run_id = ?", id); err != nil {
		return fmt.Errorf("statedb: delete run files: %w", err)
	}
	res, err := tx.Exec("DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("statedb: delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRunNotFound
	}
	return tx.Commit()
}

// PruneRuns keeps the newest keep runs and deletes the rest.
func (s *StateDB) PruneRuns(keep int) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("statedb: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const newest = `SELECT id FROM runs ORDER BY started_at DESC, id LIMIT ?`
	if _, err := tx.Exec(`DELETE FROM run_files WHERE run_id NOT IN (`+newest+`)`, keep); err != nil {
		return 0, fmt.Errorf("statedb: prune run files: %w", err)
	}
	res, err := tx.Exec(`DELETE FROM runs WHERE id NOT IN (`+newest+`)`, keep)
	if err != nil {
		return 0, fmt.Errorf("statedb: prune runs: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("statedb: commit prune: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		dbLog.Info("runs_pruned", slog.Int64("deleted", n), slog.Int("kept", keep))
	}
	return n, nil
}

// --- Metadata ---

// SetMeta sets a key-value pair in the metadata table.
func (s *StateDB) SetMeta(key, value string) error {
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO metadata (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta gets a value from the metadata table. Returns "" if not found.
func (s *StateDB) GetMeta(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}
