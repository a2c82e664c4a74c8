package task

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mattjoyce/gpiogw/internal/action"
)

type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Record tracks one background execution. The cancel handle fires at most once
// and Done closes when the execution has returned.
type Record struct {
	ID        string
	Item      action.QueueItem
	StartedAt time.Time

	cancel     context.CancelFunc
	cancelOnce sync.Once
	cancelled  atomic.Bool
	done       chan struct{}
	doneOnce   sync.Once
	status     atomic.Value
}

// NewRecord derives a cancellable context from parent for the item's task.
func NewRecord(parent context.Context, item action.QueueItem) (*Record, context.Context) {
	ctx, cancel := context.WithCancel(parent)
	r := &Record{
		ID:        item.Action.TaskID,
		Item:      item,
		StartedAt: time.Now().UTC(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	r.status.Store(StatusRunning)
	return r, ctx
}

// Cancel signals the execution to stop. It returns true only on the first call.
func (r *Record) Cancel() bool {
	first := false
	r.cancelOnce.Do(func() {
		first = true
		r.cancelled.Store(true)
		r.cancel()
	})
	return first
}

// CancelRequested reports whether Cancel has been called.
func (r *Record) CancelRequested() bool {
	return r.cancelled.Load()
}

// Finish records the final status and closes Done. Later calls are no-ops.
func (r *Record) Finish(err error) {
	r.doneOnce.Do(func() {
		switch {
		case err == nil:
			r.status.Store(StatusSucceeded)
		case r.cancelled.Load():
			r.status.Store(StatusCancelled)
		default:
			r.status.Store(StatusFailed)
		}
		r.cancel()
		close(r.done)
	})
}

// Done is closed once the execution has returned.
func (r *Record) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the execution returns or timeout elapses. A negative
// timeout waits without limit. It reports whether the execution finished.
func (r *Record) Wait(timeout time.Duration) bool {
	if timeout < 0 {
		<-r.done
		return true
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-r.done:
		return true
	case <-t.C:
		return false
	}
}

func (r *Record) Status() Status {
	return r.status.Load().(Status)
}

// Info is the read-only view of a running task exposed to operators.
type Info struct {
	ID              string    `json:"id"`
	Kind            string    `json:"kind"`
	Config          string    `json:"config"`
	Origin          string    `json:"origin"`
	QueueItemID     string    `json:"queue_item_id"`
	EnqueuedAt      time.Time `json:"enqueued_at"`
	StartedAt       time.Time `json:"started_at"`
	Status          Status    `json:"status"`
	CancelRequested bool      `json:"cancel_requested"`
}

func (r *Record) Info() Info {
	return Info{
		ID:              r.ID,
		Kind:            r.Item.Action.Kind,
		Config:          r.Item.ConfigName,
		Origin:          r.Item.Origin,
		QueueItemID:     r.Item.ID,
		EnqueuedAt:      r.Item.EnqueuedAt,
		StartedAt:       r.StartedAt,
		Status:          r.Status(),
		CancelRequested: r.CancelRequested(),
	}
}
