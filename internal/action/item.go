package action

import (
	"time"

	"github.com/google/uuid"
)

// OriginLocal is the origin recorded for actions loaded from the startup directory.
const OriginLocal = "local"

// QueueItem is one queued action together with where and when it arrived.
// It is passed by value and never mutated after NewQueueItem returns.
type QueueItem struct {
	ID         string
	Action     Action
	ConfigName string
	Origin     string
	EnqueuedAt time.Time
}

// NewQueueItem wraps an action for the pending queue.
func NewQueueItem(a Action, origin string) QueueItem {
	return QueueItem{
		ID:         uuid.NewString(),
		Action:     a,
		ConfigName: a.ConfigName,
		Origin:     origin,
		EnqueuedAt: time.Now().UTC(),
	}
}

// Threaded reports whether the item carries a task id and may run in the background.
func (q QueueItem) Threaded() bool {
	return q.Action.TaskID != ""
}
