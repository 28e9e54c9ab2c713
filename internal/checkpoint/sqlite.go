package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS session_checkpoints (
    id                  TEXT PRIMARY KEY,
    session_id          TEXT NOT NULL,
    task_description    TEXT NOT NULL DEFAULT '',
    completed_steps     TEXT NOT NULL DEFAULT '[]',
    current_step        TEXT NOT NULL DEFAULT '',
    next_steps          TEXT NOT NULL DEFAULT '[]',
    messages            TEXT NOT NULL DEFAULT '[]',
    token_usage         TEXT NOT NULL DEFAULT '{}',
    context_variables   TEXT NOT NULL DEFAULT '{}',
    continuation_prompt TEXT NOT NULL,
    status              TEXT NOT NULL DEFAULT 'active',
    created_at          TEXT NOT NULL,
    updated_at          TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_checkpoints_session_status ON session_checkpoints(session_id, status);
CREATE INDEX IF NOT EXISTS idx_checkpoints_created_at ON session_checkpoints(created_at);
`

const selectColumns = `id, session_id, task_description, completed_steps, current_step, next_steps,
	messages, token_usage, context_variables, continuation_prompt, status, created_at, updated_at`

// timeLayout is fixed-width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements Store backed by a SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// DefaultDBPath returns the default database path (~/.local/share/relaychat/relaychat.db).
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "relaychat", "relaychat.db"), nil
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures the schema exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serializes writers, so demote-then-insert never races
	// another Insert on the same file handle.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// DB exposes the underlying connection so other tables (activity log) can
// share the same file.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Checkpoint, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM session_checkpoints WHERE id = ?`, id)
	cp, err := scanCheckpoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	return cp, nil
}

func (s *SQLiteStore) GetActive(ctx context.Context) (*Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+selectColumns+` FROM session_checkpoints
		WHERE status = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1`, string(StatusActive))
	cp, err := scanCheckpoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load active checkpoint: %w", err)
	}
	return cp, nil
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Checkpoint, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+selectColumns+` FROM session_checkpoints
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var out []Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		out = append(out, *cp)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Insert(ctx context.Context, cp *Checkpoint) (*Checkpoint, error) {
	now := s.now().UTC()

	stored := *cp
	stored.Status = StatusActive
	stored.UpdatedAt = now
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}

	enc, err := encodeCheckpoint(&stored)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE session_checkpoints SET status = ?, updated_at = ?
		WHERE session_id = ? AND status = ?`,
		string(StatusSuperseded), formatTime(now), stored.SessionID, string(StatusActive),
	); err != nil {
		return nil, fmt.Errorf("supersede active checkpoints: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO session_checkpoints
			(id, session_id, task_description, completed_steps, current_step, next_steps,
			 messages, token_usage, context_variables, continuation_prompt, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		stored.ID, stored.SessionID, stored.TaskDescription, enc.completed, stored.CurrentStep, enc.next,
		enc.messages, enc.usage, enc.vars, stored.ContinuationPrompt, string(stored.Status),
		formatTime(stored.CreatedAt), formatTime(stored.UpdatedAt),
	); err != nil {
		return nil, fmt.Errorf("insert checkpoint: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit checkpoint: %w", err)
	}
	return &stored, nil
}

func (s *SQLiteStore) UpdateStatus(ctx context.Context, id string, status Status) (*Checkpoint, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, status)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin status update: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT status FROM session_checkpoints WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint status: %w", err)
	}
	if !Status(current).CanTransition(status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, status)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE session_checkpoints SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), formatTime(s.now().UTC()), id,
	); err != nil {
		return nil, fmt.Errorf("update checkpoint status: %w", err)
	}

	cp, err := scanCheckpoint(tx.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM session_checkpoints WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("reload checkpoint: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit status update: %w", err)
	}
	return cp, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type encoded struct {
	completed, next, messages, usage, vars string
}

func encodeCheckpoint(cp *Checkpoint) (*encoded, error) {
	var enc encoded
	fields := []struct {
		dst  *string
		v    any
		name string
	}{
		{&enc.completed, nonNil(cp.CompletedSteps), "completed steps"},
		{&enc.next, nonNil(cp.NextSteps), "next steps"},
		{&enc.messages, cp.Messages, "messages"},
		{&enc.usage, cp.TokenUsage, "token usage"},
		{&enc.vars, cp.ContextVariables, "context variables"},
	}
	for _, f := range fields {
		b, err := json.Marshal(f.v)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", f.name, err)
		}
		*f.dst = string(b)
	}
	if cp.Messages == nil {
		enc.messages = "[]"
	}
	if cp.ContextVariables == nil {
		enc.vars = "{}"
	}
	return &enc, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCheckpoint(row rowScanner) (*Checkpoint, error) {
	var cp Checkpoint
	var status, createdAt, updatedAt string
	var completed, next, messages, usage, vars string
	if err := row.Scan(
		&cp.ID, &cp.SessionID, &cp.TaskDescription, &completed, &cp.CurrentStep, &next,
		&messages, &usage, &vars, &cp.ContinuationPrompt, &status, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	cp.Status = Status(status)

	targets := []struct {
		src  string
		dst  any
		name string
	}{
		{completed, &cp.CompletedSteps, "completed steps"},
		{next, &cp.NextSteps, "next steps"},
		{messages, &cp.Messages, "messages"},
		{usage, &cp.TokenUsage, "token usage"},
		{vars, &cp.ContextVariables, "context variables"},
	}
	for _, t := range targets {
		if err := json.Unmarshal([]byte(t.src), t.dst); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", t.name, err)
		}
	}

	var err error
	if cp.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if cp.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &cp, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
