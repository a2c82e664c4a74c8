package api

import (
	"github.com/mattjoyce/gpiogw/internal/storage"
	"github.com/mattjoyce/gpiogw/internal/task"
)

// ActionResponse is returned by POST /gpio/action.
type ActionResponse struct {
	Queued   []QueuedAction   `json:"queued"`
	Rejected []RejectedAction `json:"rejected,omitempty"`
}

type QueuedAction struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Config string `json:"config"`
	TaskID string `json:"task_id,omitempty"`
}

// RejectedAction reports an enabled entry that could not be enqueued.
// Index is the entry's position in the posted array.
type RejectedAction struct {
	Index  int    `json:"index"`
	Kind   string `json:"kind"`
	Config string `json:"config"`
	Error  string `json:"error"`
}

type TaskListResponse struct {
	Tasks []task.Info `json:"tasks"`
}

type CancelResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type PluginListResponse struct {
	Plugins []PluginSummary `json:"plugins"`
}

type PluginSummary struct {
	Implementation string   `json:"implementation"`
	Description    string   `json:"description,omitempty"`
	Kinds          []string `json:"kinds"`
	State          any      `json:"state,omitempty"`
}

type ConfigListResponse struct {
	Configs []ConfigSummary `json:"configs"`
}

type ConfigSummary struct {
	Name   string `json:"name"`
	Digest string `json:"digest"`
}

type HistoryResponse struct {
	Entries []storage.Entry `json:"entries"`
}

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status         string `json:"status"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
	QueueDepth     int    `json:"queue_depth"`
	ActiveTasks    int    `json:"active_tasks"`
	HandlersLoaded int    `json:"handlers_loaded"`
}
