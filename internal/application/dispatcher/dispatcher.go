package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/garyjia/travel-backoffice/internal/domain/event"
)

// Dispatcher fans committed changes out to read-model handlers
type Dispatcher interface {
	// Subscribe registers a handler under a generated name
	Subscribe(eventType event.Type, handler Handler)

	// SubscribeNamed registers a handler. A second subscription with the same
	// name replaces the first and keeps its position.
	SubscribeNamed(eventType event.Type, name string, handler Handler)

	// Unsubscribe removes a handler by name
	Unsubscribe(eventType event.Type, name string)

	// Dispatch runs every handler in subscription order and joins their errors
	Dispatch(ctx context.Context, evt *event.Event) error

	// DispatchAsync runs the handlers on a background goroutine
	DispatchAsync(ctx context.Context, evt *event.Event)

	// ListHandlers returns the subscriptions of an event type
	ListHandlers(eventType event.Type) []HandlerInfo

	// Close rejects further events and waits for background runs to finish
	Close() error
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type eventDispatcher struct {
	mu       sync.RWMutex
	handlers map[event.Type][]HandlerInfo
	seq      int
	closed   bool

	logger   Logger
	observer Observer

	inflight sync.WaitGroup
}

// Option configures the dispatcher
type Option func(*eventDispatcher)

// WithLogger sets a logger for the dispatcher
func WithLogger(logger Logger) Option {
	return func(d *eventDispatcher) {
		d.logger = logger
	}
}

// WithObserver reports handler outcomes, typically to metrics
func WithObserver(observer Observer) Option {
	return func(d *eventDispatcher) {
		d.observer = observer
	}
}

// NewDispatcher creates a new event dispatcher
func NewDispatcher(opts ...Option) Dispatcher {
	d := &eventDispatcher{
		handlers: make(map[event.Type][]HandlerInfo),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *eventDispatcher) Subscribe(eventType event.Type, handler Handler) {
	d.mu.Lock()
	name := fmt.Sprintf("handler-%d", d.seq)
	d.seq++
	d.mu.Unlock()

	d.SubscribeNamed(eventType, name, handler)
}

func (d *eventDispatcher) SubscribeNamed(eventType event.Type, name string, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	info := HandlerInfo{Name: name, EventType: eventType, Handler: handler}

	subs := d.handlers[eventType]
	if i := slices.IndexFunc(subs, func(h HandlerInfo) bool { return h.Name == name }); i >= 0 {
		subs[i] = info
		d.logInfo("Handler replaced", "event_type", eventType, "handler_name", name)
		return
	}

	d.handlers[eventType] = append(subs, info)
	d.logInfo("Handler registered", "event_type", eventType, "handler_name", name)
}

func (d *eventDispatcher) Unsubscribe(eventType event.Type, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	before := len(d.handlers[eventType])
	d.handlers[eventType] = slices.DeleteFunc(d.handlers[eventType], func(h HandlerInfo) bool {
		return h.Name == name
	})
	if len(d.handlers[eventType]) < before {
		d.logInfo("Handler unregistered", "event_type", eventType, "handler_name", name)
	}
}

// snapshot copies the subscriptions so handlers run without the lock held.
// SubscribeNamed replaces entries in place, so the slice itself must be copied.
func (d *eventDispatcher) snapshot(eventType event.Type) ([]HandlerInfo, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.handlers[eventType]), d.closed
}

func (d *eventDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	handlers, closed := d.snapshot(evt.Type)
	if closed {
		return ErrClosed
	}
	return d.run(ctx, evt, handlers)
}

// DispatchAsync runs the handlers after the caller has returned, so they get a
// context that is not cancelled with the caller's request.
func (d *eventDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		d.logError("Event dropped, dispatcher is closed", "event_type", evt.Type, "event_id", evt.ID)
		return
	}
	handlers := slices.Clone(d.handlers[evt.Type])
	// Add under the read lock so Close cannot start waiting in between.
	d.inflight.Add(1)
	d.mu.RUnlock()

	ctx = context.WithoutCancel(ctx)
	go func() {
		defer d.inflight.Done()
		// run already logged each failure
		_ = d.run(ctx, evt, handlers)
	}()
}

func (d *eventDispatcher) run(ctx context.Context, evt *event.Event, handlers []HandlerInfo) error {
	if len(handlers) == 0 {
		return nil
	}

	d.logInfo("Dispatching event",
		"event_type", evt.Type,
		"event_id", evt.ID,
		"aggregate_id", evt.AggregateID,
		"handler_count", len(handlers),
	)

	var failures []error
	for _, h := range handlers {
		if err := d.execute(ctx, evt, h); err != nil {
			d.logError("Handler failed",
				"event_type", evt.Type,
				"event_id", evt.ID,
				"handler_name", h.Name,
				"error", err,
			)
			failures = append(failures, fmt.Errorf("handler %s: %w", h.Name, err))
		}
	}
	return errors.Join(failures...)
}

func (d *eventDispatcher) ListHandlers(eventType event.Type) []HandlerInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]HandlerInfo, 0, len(d.handlers[eventType]))
	for _, h := range d.handlers[eventType] {
		// the function itself stays private
		out = append(out, HandlerInfo{Name: h.Name, EventType: h.EventType, Description: h.Description})
	}
	return out
}

func (d *eventDispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	d.closed = true
	d.mu.Unlock()

	d.logInfo("Closing dispatcher, waiting for background handlers")
	d.inflight.Wait()
	d.logInfo("Dispatcher closed")
	return nil
}

// execute runs one handler, turning a panic into an error
func (d *eventDispatcher) execute(ctx context.Context, evt *event.Event, h HandlerInfo) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if d.observer != nil {
			d.observer.ObserveHandler(evt.Type, h.Name, err)
		}
	}()
	return h.Handler(ctx, evt)
}

func (d *eventDispatcher) logInfo(msg string, keysAndValues ...interface{}) {
	if d.logger != nil {
		d.logger.Info(msg, keysAndValues...)
	}
}

func (d *eventDispatcher) logError(msg string, keysAndValues ...interface{}) {
	if d.logger != nil {
		d.logger.Error(msg, keysAndValues...)
	}
}
