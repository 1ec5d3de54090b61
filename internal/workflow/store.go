package workflow

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"substream/internal/pipeline"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; stale databases must be deleted and rebuilt.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the
// expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Status is the scheduler-level lifecycle of a pipeline instance, distinct
// from the pipeline's own step state.
type Status string

const (
	StatusPending      Status = "pending"
	StatusRunning      Status = "running"
	StatusCompleted    Status = "completed"
	StatusUnidentified Status = "unidentified"
	StatusFailed       Status = "failed"
)

// Terminal reports whether the instance will make no further progress.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusUnidentified, StatusFailed:
		return true
	default:
		return false
	}
}

// Record is one persisted pipeline instance.
type Record struct {
	ID           string
	OwnerID      string
	FilePath     string
	Status       Status
	State        pipeline.State
	Attempts     int
	Payload      string
	Result       string
	FailureKind  string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	HeartbeatAt  time.Time
}

// Store persists pipeline instances in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the instance database.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("ensure db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return nil
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Create inserts a new pending instance.
func (s *Store) Create(ctx context.Context, rec *Record) error {
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	if rec.Status == "" {
		rec.Status = StatusPending
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO instances (id, owner_id, file_path, status, state, attempts, payload, result, failure_kind, error_message, created_at, updated_at, heartbeat_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.OwnerID, rec.FilePath, string(rec.Status), string(rec.State), rec.Attempts,
		rec.Payload, rec.Result, rec.FailureKind, rec.ErrorMessage,
		formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt), formatTime(rec.HeartbeatAt))
	if err != nil {
		return fmt.Errorf("insert instance: %w", err)
	}
	return nil
}

// ClaimNext atomically transitions the oldest pending instance to running
// and returns it. Returns (nil, nil) when nothing is pending.
func (s *Store) ClaimNext(ctx context.Context) (*Record, error) {
	rec, err := s.scanOne(ctx,
		"SELECT "+recordColumns+" FROM instances WHERE status = ? ORDER BY created_at LIMIT 1",
		string(StatusPending))
	if err != nil || rec == nil {
		return nil, err
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		"UPDATE instances SET status = ?, updated_at = ?, heartbeat_at = ? WHERE id = ? AND status = ?",
		string(StatusRunning), formatTime(now), formatTime(now), rec.ID, string(StatusPending))
	if err != nil {
		return nil, fmt.Errorf("claim instance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("claim instance: %w", err)
	}
	if affected == 0 {
		// Another worker won the claim; callers just poll again.
		return nil, nil
	}
	rec.Status = StatusRunning
	rec.UpdatedAt = now
	rec.HeartbeatAt = now
	return rec, nil
}

// Save persists current progress of a running instance.
func (s *Store) Save(ctx context.Context, rec *Record) error {
	now := time.Now().UTC()
	rec.UpdatedAt = now
	rec.HeartbeatAt = now
	_, err := s.db.ExecContext(ctx, `
		UPDATE instances
		SET status = ?, state = ?, attempts = ?, payload = ?, result = ?, failure_kind = ?, error_message = ?, updated_at = ?, heartbeat_at = ?
		WHERE id = ?`,
		string(rec.Status), string(rec.State), rec.Attempts, rec.Payload, rec.Result,
		rec.FailureKind, rec.ErrorMessage, formatTime(now), formatTime(now), rec.ID)
	if err != nil {
		return fmt.Errorf("save instance: %w", err)
	}
	return nil
}

// Get fetches one instance by id. Returns (nil, nil) when unknown.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	return s.scanOne(ctx, "SELECT "+recordColumns+" FROM instances WHERE id = ?", id)
}

// List returns the most recently updated instances, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+recordColumns+" FROM instances ORDER BY updated_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// ResetRunning requeues every running instance. Called once at startup: any
// instance still marked running was orphaned by a previous process.
func (s *Store) ResetRunning(ctx context.Context) (int64, error) {
	now := formatTime(time.Now().UTC())
	res, err := s.db.ExecContext(ctx,
		"UPDATE instances SET status = ?, attempts = 0, updated_at = ? WHERE status = ?",
		string(StatusPending), now, string(StatusRunning))
	if err != nil {
		return 0, fmt.Errorf("reset running instances: %w", err)
	}
	return res.RowsAffected()
}

const recordColumns = "id, owner_id, file_path, status, state, attempts, payload, result, failure_kind, error_message, created_at, updated_at, heartbeat_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanOne(ctx context.Context, query string, args ...any) (*Record, error) {
	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func scanRecord(row rowScanner) (*Record, error) {
	var rec Record
	var status, state, createdAt, updatedAt, heartbeatAt string
	err := row.Scan(&rec.ID, &rec.OwnerID, &rec.FilePath, &status, &state, &rec.Attempts,
		&rec.Payload, &rec.Result, &rec.FailureKind, &rec.ErrorMessage,
		&createdAt, &updatedAt, &heartbeatAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan instance: %w", err)
	}
	rec.Status = Status(status)
	rec.State = pipeline.State(state)
	rec.CreatedAt = parseTime(createdAt)
	rec.UpdatedAt = parseTime(updatedAt)
	rec.HeartbeatAt = parseTime(heartbeatAt)
	return &rec, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}
