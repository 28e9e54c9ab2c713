package activity

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const createActivityTableSQL = `
CREATE TABLE IF NOT EXISTS activities (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    type       TEXT NOT NULL,
    created_at TEXT NOT NULL,
    payload    TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_activities_created_at ON activities(created_at);
`

// SQLiteTracker implements Tracker on an existing SQLite connection.
type SQLiteTracker struct {
	db *sql.DB
}

// NewSQLiteTracker creates the activities table if needed. The connection is
// shared with the checkpoint store and is not closed by the tracker.
func NewSQLiteTracker(db *sql.DB) (*SQLiteTracker, error) {
	if _, err := db.Exec(createActivityTableSQL); err != nil {
		return nil, fmt.Errorf("create activities table: %w", err)
	}
	return &SQLiteTracker{db: db}, nil
}

func (t *SQLiteTracker) Record(ctx context.Context, a Activity) error {
	payload := string(a.Payload)
	if payload == "" {
		payload = "{}"
	}
	_, err := t.db.ExecContext(ctx,
		`INSERT INTO activities (type, created_at, payload) VALUES (?, ?, ?)`,
		a.Type, a.Timestamp.UTC().Format(time.RFC3339Nano), payload,
	)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

func (t *SQLiteTracker) Recent(ctx context.Context, n int) ([]Activity, error) {
	if n <= 0 {
		n = defaultRecent
	}
	rows, err := t.db.QueryContext(ctx,
		`SELECT type, created_at, payload FROM activities ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	var out []Activity
	for rows.Next() {
		var a Activity
		var createdAt, payload string
		if err := rows.Scan(&a.Type, &createdAt, &payload); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		a.Timestamp, _ = time.Parse(time.RFC3339Nano, createdAt)
		a.Payload = []byte(payload)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (t *SQLiteTracker) Close() error {
	// The DB is shared with the checkpoint store.
	return nil
}
