package plugin

import (
	"context"

	"github.com/mattjoyce/gpiogw/internal/action"
	"github.com/mattjoyce/gpiogw/internal/actionconfig"
)

//go:generate mockgen -destination=mocks/mock_handler.go -package=mocks github.com/mattjoyce/gpiogw/internal/plugin Handler

// Handler performs the device interaction for one or more action kinds.
//
// Execute runs to completion, or returns early once ctx is done. Handlers
// that cannot observe cancellation simply run to the end.
type Handler interface {
	Execute(ctx context.Context, a action.Action, cfg actionconfig.Document) error
	SupportedActions() []string
	CurrentState() any
}

// Factory constructs a handler instance.
type Factory func() (Handler, error)

// Catalog maps implementation names to the factories compiled into the binary.
type Catalog map[string]Factory
