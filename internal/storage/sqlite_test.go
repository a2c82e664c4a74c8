package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *History {
	t.Helper()
	db, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewHistory(db)
}

func TestOpenSQLiteBootstrapsTables(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "nested", "state.db")
	db, err := OpenSQLite(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	var name string
	if err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?;", "action_log").Scan(&name); err != nil {
		t.Fatalf("table action_log missing: %v", err)
	}
}

func TestOpenSQLiteRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	if _, err := OpenSQLite(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestOpenSQLiteMemory(t *testing.T) {
	t.Parallel()

	db, err := OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	h := NewHistory(db)
	if err := h.Record(context.Background(), Entry{
		ID: "a", Kind: "LedSimple", Config: "LedSimpleAction", Origin: "local",
		Status: OutcomeSucceeded, EnqueuedAt: time.Now(), CompletedAt: time.Now(),
	}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	got, err := h.Recent(context.Background(), 10)
	if err != nil || len(got) != 1 {
		t.Fatalf("Recent = %v, %v", got, err)
	}
}

func TestHistoryRecordAndRecent(t *testing.T) {
	t.Parallel()

	h := openTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	started := base.Add(time.Second)

	entries := []Entry{
		{ID: "1", Kind: "LedSimple", Config: "LedSimpleAction", Origin: "local", Status: OutcomeSucceeded,
			EnqueuedAt: base, StartedAt: &started, CompletedAt: base.Add(2 * time.Second), DurationMS: 1000},
		{ID: "2", TaskID: "blink", Kind: "LedSimple", Config: "LedSimpleAction", Origin: "10.0.0.5", Threaded: true,
			Status: OutcomeCancelled, LastError: "context canceled", EnqueuedAt: base, CompletedAt: base.Add(3 * time.Second)},
		{ID: "3", Kind: "BuzzerSimple", Config: "BuzzerSimpleAction", Origin: "local", Status: OutcomeFailed,
			LastError: "pin busy", EnqueuedAt: base, CompletedAt: base.Add(4 * time.Second)},
	}
	for _, e := range entries {
		if err := h.Record(ctx, e); err != nil {
			t.Fatalf("Record %s: %v", e.ID, err)
		}
	}

	got, err := h.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != "3" || got[1].ID != "2" {
		t.Fatalf("order = %s,%s; want 3,2", got[0].ID, got[1].ID)
	}
	if got[1].TaskID != "blink" || !got[1].Threaded || got[1].Status != OutcomeCancelled {
		t.Fatalf("unexpected entry: %#v", got[1])
	}
	if got[0].LastError != "pin busy" {
		t.Fatalf("LastError = %q", got[0].LastError)
	}

	all, err := h.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	first := all[len(all)-1]
	if first.StartedAt == nil || !first.StartedAt.Equal(started) {
		t.Fatalf("StartedAt = %v, want %v", first.StartedAt, started)
	}
	if first.DurationMS != 1000 {
		t.Fatalf("DurationMS = %d", first.DurationMS)
	}
}

func TestHistoryRejectsEmptyID(t *testing.T) {
	t.Parallel()

	h := openTestDB(t)
	if err := h.Record(context.Background(), Entry{Kind: "LedSimple"}); err == nil {
		t.Fatal("expected error for empty id")
	}
}
