package dispatcher

import (
	"context"
	"errors"

	"github.com/garyjia/travel-backoffice/internal/domain/event"
)

// ErrClosed is returned once Close has been called
var ErrClosed = errors.New("dispatcher closed")

// Handler reacts to a committed change. Handlers are read models: they must not
// write to the document tables.
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo describes one subscription
type HandlerInfo struct {
	Name        string
	EventType   event.Type
	Handler     Handler
	Description string
}

// Observer is told the outcome of every handler run. err is nil on success.
type Observer interface {
	ObserveHandler(eventType event.Type, handlerName string, err error)
}
