package dispatch

import (
	"context"

	"github.com/mattjoyce/gpiogw/internal/actionconfig"
	"github.com/mattjoyce/gpiogw/internal/plugin"
	"github.com/mattjoyce/gpiogw/internal/storage"
)

//go:generate mockgen -destination=mocks/mock_dispatch.go -package=mocks github.com/mattjoyce/gpiogw/internal/dispatch ConfigStore,HandlerSource

// ConfigStore resolves config names to documents.
type ConfigStore interface {
	Start() error
	Stop()
	Exists(name string) bool
	Get(name string) (actionconfig.Document, error)
}

// HandlerSource maps an action kind to its handler.
type HandlerSource interface {
	Handler(kind string) (plugin.Handler, bool)
}

// Recorder persists the outcome of each execution.
type Recorder interface {
	Record(ctx context.Context, e storage.Entry) error
}
