package activity

import (
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "activity.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCheckpointSaved_Payload(t *testing.T) {
	a, err := CheckpointSaved("cp-1", "Fix billing bug", 0.7049, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if a.Type != TypeCheckpointSaved {
		t.Errorf("Type = %q", a.Type)
	}
	var p map[string]any
	if err := json.Unmarshal(a.Payload, &p); err != nil {
		t.Fatal(err)
	}
	if p["checkpointId"] != "cp-1" || p["task"] != "Fix billing bug" {
		t.Errorf("payload = %v", p)
	}
	if p["percentUsed"] != float64(70) {
		t.Errorf("percentUsed = %v, want 70", p["percentUsed"])
	}
}

func TestSQLiteTracker_RecordAndRecent(t *testing.T) {
	tr, err := NewSQLiteTracker(openTestDB(t))
	if err != nil {
		t.Fatalf("NewSQLiteTracker: %v", err)
	}
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		a, _ := CheckpointSaved(id, "task "+id, 0.5, time.Now())
		if err := tr.Record(ctx, a); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	recent, err := tr.Recent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 {
		t.Fatalf("Recent len = %d, want 2", len(recent))
	}
	var p struct {
		CheckpointID string `json:"checkpointId"`
	}
	if err := json.Unmarshal(recent[0].Payload, &p); err != nil {
		t.Fatal(err)
	}
	if p.CheckpointID != "c" {
		t.Errorf("newest activity = %q, want c", p.CheckpointID)
	}
}

func TestFileTracker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "activity.jsonl")
	tr, err := NewFileTracker(path)
	if err != nil {
		t.Fatalf("NewFileTracker: %v", err)
	}
	ctx := context.Background()
	for _, id := range []string{"x", "y"} {
		a, _ := CheckpointSaved(id, "t", 0.9, time.Now())
		if err := tr.Record(ctx, a); err != nil {
			t.Fatal(err)
		}
	}

	got, err := tr.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Type != TypeCheckpointSaved {
		t.Fatalf("Recent = %+v", got)
	}
	var p struct {
		CheckpointID string `json:"checkpointId"`
	}
	if err := json.Unmarshal(got[0].Payload, &p); err != nil {
		t.Fatal(err)
	}
	if p.CheckpointID != "y" {
		t.Errorf("newest activity = %q, want y", p.CheckpointID)
	}
	if last, _ := tr.Recent(ctx, 1); len(last) != 1 {
		t.Errorf("Recent(1) = %d activities", len(last))
	}

	if err := tr.Close(); err != nil {
		t.Fatal(err)
	}
	if err := tr.Record(ctx, Activity{Type: "late"}); err == nil {
		t.Error("expected error recording to closed tracker")
	}
}
