// Package runlog persists the ingestion run manifest in SQLite: which case
// was processed when, for which platform, and what every artifact type
// contributed. The manifest backs case listing and cleanup decisions after
// the process that did the ingestion is gone.
package runlog

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

const currentSchemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);
CREATE TABLE IF NOT EXISTS runs (
    id          TEXT PRIMARY KEY,
    case_name   TEXT NOT NULL,
    platform    TEXT NOT NULL,
    started_at  TEXT NOT NULL,
    finished_at TEXT
);
CREATE TABLE IF NOT EXISTS run_types (
    run_id        TEXT NOT NULL REFERENCES runs(id),
    artifact_type TEXT NOT NULL,
    index_name    TEXT NOT NULL DEFAULT '',
    documents     INTEGER NOT NULL DEFAULT 0,
    skipped       INTEGER NOT NULL DEFAULT 0,
    status        TEXT NOT NULL,
    detail        TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (run_id, artifact_type)
);
CREATE INDEX IF NOT EXISTS idx_runs_case ON runs(case_name);
`

// nowUTC returns the current UTC time as an ISO 8601 string.
func nowUTC() string { return time.Now().UTC().Format(time.RFC3339) }

// Run is one recorded pipeline invocation.
type Run struct {
	ID         string
	CaseName   string
	Platform   string
	StartedAt  string
	FinishedAt string
	Types      []TypeEntry
}

// TypeEntry records one artifact type's outcome within a run.
type TypeEntry struct {
	ArtifactType string
	IndexName    string
	Documents    int
	Skipped      int
	Status       string
	Detail       string
}

// Store persists runs in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens or creates the run manifest at path and runs migrations.
// The parent directory is created if it does not exist.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create runlog dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	var v int
	err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v)
	switch {
	case err == sql.ErrNoRows:
		if _, err := s.db.Exec("INSERT INTO schema_version(version) VALUES(?)", currentSchemaVersion); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	case v != currentSchemaVersion:
		return fmt.Errorf("unknown schema version %d", v)
	}
	return nil
}

// StartRun records the beginning of a pipeline invocation and returns the
// run ID.
func (s *Store) StartRun(caseName, platform string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		"INSERT INTO runs(id, case_name, platform, started_at) VALUES(?,?,?,?)",
		id, caseName, platform, nowUTC(),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// RecordType stores one artifact type's outcome for a run.
func (s *Store) RecordType(runID string, e TypeEntry) error {
	_, err := s.db.Exec(
		`INSERT INTO run_types(run_id, artifact_type, index_name, documents, skipped, status, detail)
		 VALUES(?,?,?,?,?,?,?)
		 ON CONFLICT(run_id, artifact_type) DO UPDATE SET
		   index_name=excluded.index_name, documents=excluded.documents,
		   skipped=excluded.skipped, status=excluded.status, detail=excluded.detail`,
		runID, e.ArtifactType, e.IndexName, e.Documents, e.Skipped, e.Status, e.Detail,
	)
	if err != nil {
		return fmt.Errorf("record type outcome: %w", err)
	}
	return nil
}

// FinishRun marks a run complete.
func (s *Store) FinishRun(runID string) error {
	_, err := s.db.Exec("UPDATE runs SET finished_at=? WHERE id=?", nowUTC(), runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// ListRuns returns runs for one case, newest first. An empty case name
// returns all runs.
func (s *Store) ListRuns(caseName string) ([]*Run, error) {
	query := "SELECT id, case_name, platform, started_at, COALESCE(finished_at,'') FROM runs"
	args := []any{}
	if caseName != "" {
		query += " WHERE case_name=?"
		args = append(args, caseName)
	}
	query += " ORDER BY started_at DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r := &Run{}
		if err := rows.Scan(&r.ID, &r.CaseName, &r.Platform, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	for _, r := range runs {
		types, err := s.listTypes(r.ID)
		if err != nil {
			return nil, err
		}
		r.Types = types
	}
	return runs, nil
}

func (s *Store) listTypes(runID string) ([]TypeEntry, error) {
	rows, err := s.db.Query(
		"SELECT artifact_type, index_name, documents, skipped, status, detail FROM run_types WHERE run_id=? ORDER BY artifact_type",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list run types: %w", err)
	}
	defer rows.Close()

	var types []TypeEntry
	for rows.Next() {
		var e TypeEntry
		if err := rows.Scan(&e.ArtifactType, &e.IndexName, &e.Documents, &e.Skipped, &e.Status, &e.Detail); err != nil {
			return nil, fmt.Errorf("scan run type: %w", err)
		}
		types = append(types, e)
	}
	return types, rows.Err()
}

// IndicesForCase returns the distinct index names past runs created for a
// case, for cleanup.
func (s *Store) IndicesForCase(caseName string) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT rt.index_name FROM run_types rt
		 JOIN runs r ON r.id = rt.run_id
		 WHERE r.case_name=? AND rt.index_name != ''
		 ORDER BY rt.index_name`,
		caseName,
	)
	if err != nil {
		return nil, fmt.Errorf("list case indices: %w", err)
	}
	defer rows.Close()

	var indices []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan index name: %w", err)
		}
		indices = append(indices, name)
	}
	return indices, rows.Err()
}
