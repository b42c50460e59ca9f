package entity

import "time"

// LifecycleHistory is one line of a quote's audit trail. FromState is empty for
// the CREATE line. Detail holds the request payload as JSON, and CorrelationID
// the id of the API request that caused the move.
type LifecycleHistory struct {
	ID            int64     `json:"id"`
	QuoteID       int64     `json:"quote_id"`
	Actor         string    `json:"actor"`
	FromState     string    `json:"from_state,omitempty"`
	ToState       string    `json:"to_state"`
	ActionType    string    `json:"action_type"`
	Detail        string    `json:"detail,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}
