package event

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payload keys shared by publishers and handlers
const (
	KeyFromState   = "from_state"
	KeyToState     = "to_state"
	KeyActor       = "actor"
	KeyTotal       = "total"
	KeyCurrency    = "currency"
	KeyProductLine = "product_line"
	KeyGroupCount  = "group_count"
	KeyField       = "field"
)

// Event represents a domain event. AggregateID is the group id for group events
// and the quote id otherwise.
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	AggregateID   int64                  `json:"aggregate_id"`
	Reference     string                 `json:"reference,omitempty"`
	Payload       map[string]interface{} `json:"payload"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id"`
}

// NewEvent creates a new domain event with auto-generated ID and timestamp
func NewEvent(eventType Type, aggregateID int64, reference string, payload map[string]interface{}) *Event {
	return &Event{
		ID:            generateID(),
		Type:          eventType,
		AggregateID:   aggregateID,
		Reference:     reference,
		Payload:       payload,
		Timestamp:     time.Now(),
		CorrelationID: generateID(),
	}
}

type correlationKey struct{}

// WithCorrelationID tags ctx so that events raised while serving it share id
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationIDFrom returns the id set by WithCorrelationID, or ""
func CorrelationIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// Correlate stamps e with the correlation id carried by ctx. Events raised
// outside a request keep their own id.
func (e *Event) Correlate(ctx context.Context) *Event {
	if id := CorrelationIDFrom(ctx); id != "" {
		e.CorrelationID = id
	}
	return e
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// GetPayloadInt retrieves an int64 value from the payload
func (e *Event) GetPayloadInt(key string) int64 {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case int64:
			return v
		case int:
			return int64(v)
		case float64:
			return int64(v)
		}
	}
	return 0
}

// GetPayloadFloat retrieves a float64 value from the payload
func (e *Event) GetPayloadFloat(key string) float64 {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case float64:
			return v
		case int64:
			return float64(v)
		case int:
			return float64(v)
		}
	}
	return 0.0
}

// GetPayloadDecimal retrieves an amount from the payload. Floats and decimal
// strings are accepted besides decimal.Decimal.
func (e *Event) GetPayloadDecimal(key string) decimal.Decimal {
	switch v := e.Payload[key].(type) {
	case decimal.Decimal:
		return v
	case float64:
		return decimal.NewFromFloat(v)
	case int64:
		return decimal.NewFromInt(v)
	case int:
		return decimal.NewFromInt(int64(v))
	case string:
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	}
	return decimal.Zero
}

func generateID() string {
	return uuid.NewString()
}
