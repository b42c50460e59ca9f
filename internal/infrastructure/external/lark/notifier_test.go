package lark

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/travel-backoffice/internal/application/dispatcher"
	"github.com/garyjia/travel-backoffice/internal/application/port"
	"github.com/garyjia/travel-backoffice/internal/domain/event"
)

type fakeSender struct {
	sent []port.ChatMessage
	err  error
}

func (f *fakeSender) Send(ctx context.Context, msg port.ChatMessage) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func TestFormatEvent(t *testing.T) {
	tests := []struct {
		name string
		evt  *event.Event
		want string
	}{
		{
			name: "transition with actor",
			evt: event.NewEvent(event.TypeLifecycleTransitioned, 7, "Q-ABC", map[string]interface{}{
				event.KeyFromState: "PO_TO_APPROVE",
				event.KeyToState:   "TICKET_ISSUED",
				event.KeyActor:     "hery",
			}),
			want: "Quote Q-ABC: PO_TO_APPROVE -> TICKET_ISSUED (by hery)",
		},
		{
			name: "transition without reference",
			evt: event.NewEvent(event.TypeLifecycleTransitioned, 7, "", map[string]interface{}{
				event.KeyFromState: "CREATED",
				event.KeyToState:   "CANCELLED",
			}),
			want: "Quote #7: CREATED -> CANCELLED",
		},
		{
			name: "consolidation",
			evt: event.NewEvent(event.TypeQuoteConsolidated, 7, "Q-ABC", map[string]interface{}{
				event.KeyTotal:      1100013.005,
				event.KeyCurrency:   "MGA",
				event.KeyGroupCount: 3,
			}),
			want: "Quote Q-ABC consolidated: 1100013.01 MGA from 3 group(s)",
		},
		{
			name: "consolidation with exact total",
			evt: event.NewEvent(event.TypeQuoteConsolidated, 8, "Q-DEF", map[string]interface{}{
				event.KeyTotal:      decimal.RequireFromString("0.305"),
				event.KeyCurrency:   "MGA",
				event.KeyGroupCount: 2,
			}),
			want: "Quote Q-DEF consolidated: 0.31 MGA from 2 group(s)",
		},
		{
			name: "not reported",
			evt:  event.NewEvent(event.TypeGroupPriced, 3, "Ibis", nil),
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatEvent(tt.evt))
		})
	}
}

func TestNotifier_Handle(t *testing.T) {
	sender := &fakeSender{}
	n := NewNotifier(sender, "oc_backoffice", zap.NewNop())

	evt := event.NewEvent(event.TypeLifecycleTransitioned, 1, "Q-1", map[string]interface{}{
		event.KeyFromState: "CREATED",
		event.KeyToState:   "QUOTE_TO_APPROVE",
	})
	require.NoError(t, n.Handle(context.Background(), evt))

	require.NoError(t, n.Handle(context.Background(), event.NewEvent(event.TypeGroupCreated, 2, "", nil)))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "oc_backoffice", sender.sent[0].ChatID)
	assert.Equal(t, "Quote Q-1: CREATED -> QUOTE_TO_APPROVE", sender.sent[0].Text)
	assert.Equal(t, evt.ID, sender.sent[0].DedupeKey)
}

func TestNotifier_HandleReturnsSendError(t *testing.T) {
	sender := &fakeSender{err: errors.New("rate limited")}
	n := NewNotifier(sender, "oc_backoffice", zap.NewNop())

	err := n.Handle(context.Background(), event.NewEvent(event.TypeQuoteConsolidated, 1, "Q-1", nil))
	assert.EqualError(t, err, "rate limited")
}

func TestNotifier_Register(t *testing.T) {
	d := dispatcher.NewDispatcher()
	defer d.Close()

	NewNotifier(&fakeSender{}, "oc", zap.NewNop()).Register(d)

	assert.Len(t, d.ListHandlers(event.TypeLifecycleTransitioned), 1)
	assert.Len(t, d.ListHandlers(event.TypeQuoteConsolidated), 1)
	assert.Empty(t, d.ListHandlers(event.TypeGroupPriced))
}

func TestTextContent_Escapes(t *testing.T) {
	content, err := textContent("line \"one\"\nline two")
	require.NoError(t, err)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal([]byte(content), &decoded))
	assert.Equal(t, "line \"one\"\nline two", decoded["text"])
}

func TestNewMessenger_RequiresCredentials(t *testing.T) {
	_, err := NewMessenger(Config{AppID: "cli_x"}, zap.NewNop())
	assert.Error(t, err)

	m, err := NewMessenger(Config{AppID: "cli_x", AppSecret: "secret"}, zap.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, m)
}

func TestMessenger_SendValidates(t *testing.T) {
	m, err := NewMessenger(Config{AppID: "cli_x", AppSecret: "secret"}, zap.NewNop())
	require.NoError(t, err)

	assert.Error(t, m.Send(context.Background(), port.ChatMessage{Text: "hi"}))
	assert.Error(t, m.Send(context.Background(), port.ChatMessage{ChatID: "oc"}))
}

func TestDedupeKey(t *testing.T) {
	assert.Equal(t, "evt-1", dedupeKey("evt-1"))
	long := strings.Repeat("a", 80)
	assert.Len(t, dedupeKey(long), maxDedupeKey)
}

func TestAPIError(t *testing.T) {
	var err error = &APIError{Code: 230002, Msg: "bot not in chat", RequestID: "r1"}
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 230002, apiErr.Code)
	assert.Contains(t, err.Error(), "bot not in chat")
}
