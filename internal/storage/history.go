package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Outcome of one action execution.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeSimulated Outcome = "simulated"
	OutcomeDropped   Outcome = "dropped"
)

// Entry is one row of the action history.
type Entry struct {
	ID          string     `json:"id"`
	TaskID      string     `json:"task_id,omitempty"`
	Kind        string     `json:"kind"`
	Config      string     `json:"config"`
	Origin      string     `json:"origin"`
	Threaded    bool       `json:"threaded"`
	Status      Outcome    `json:"status"`
	LastError   string     `json:"last_error,omitempty"`
	EnqueuedAt  time.Time  `json:"enqueued_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt time.Time  `json:"completed_at"`
	DurationMS  int64      `json:"duration_ms"`
}

// History records completed executions.
type History struct {
	db *sql.DB
}

func NewHistory(db *sql.DB) *History {
	return &History{db: db}
}

// Record inserts e. A duplicate id replaces the earlier row.
func (h *History) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		return errors.New("history entry id is empty")
	}

	var started any
	if e.StartedAt != nil {
		started = e.StartedAt.UTC().Format(time.RFC3339Nano)
	}
	var taskID any
	if e.TaskID != "" {
		taskID = e.TaskID
	}
	var lastErr any
	if e.LastError != "" {
		lastErr = e.LastError
	}

	_, err := h.db.ExecContext(ctx, `
INSERT OR REPLACE INTO action_log(
  id, task_id, kind, config, origin, threaded, status, last_error,
  enqueued_at, started_at, completed_at, duration_ms
)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`, e.ID, taskID, e.Kind, e.Config, e.Origin, e.Threaded, string(e.Status), lastErr,
		e.EnqueuedAt.UTC().Format(time.RFC3339Nano), started,
		e.CompletedAt.UTC().Format(time.RFC3339Nano), e.DurationMS)
	if err != nil {
		return fmt.Errorf("record action: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (h *History) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := h.db.QueryContext(ctx, `
SELECT id, task_id, kind, config, origin, threaded, status, last_error,
       enqueued_at, started_at, completed_at, duration_ms
FROM action_log
ORDER BY completed_at DESC, rowid DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e                   Entry
			taskID, lastErr     sql.NullString
			started             sql.NullString
			enqueued, completed string
			status              string
		)
		if err := rows.Scan(&e.ID, &taskID, &e.Kind, &e.Config, &e.Origin, &e.Threaded, &status, &lastErr,
			&enqueued, &started, &completed, &e.DurationMS); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.TaskID = taskID.String
		e.LastError = lastErr.String
		e.Status = Outcome(status)
		if e.EnqueuedAt, err = time.Parse(time.RFC3339Nano, enqueued); err != nil {
			return nil, fmt.Errorf("parse enqueued_at: %w", err)
		}
		if e.CompletedAt, err = time.Parse(time.RFC3339Nano, completed); err != nil {
			return nil, fmt.Errorf("parse completed_at: %w", err)
		}
		if started.Valid {
			ts, err := time.Parse(time.RFC3339Nano, started.String)
			if err != nil {
				return nil, fmt.Errorf("parse started_at: %w", err)
			}
			e.StartedAt = &ts
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return out, nil
}
