package lark

import (
	"context"
	"fmt"

	"github.com/garyjia/travel-backoffice/internal/application/dispatcher"
	"github.com/garyjia/travel-backoffice/internal/application/port"
	"github.com/garyjia/travel-backoffice/internal/domain/event"
	"github.com/garyjia/travel-backoffice/internal/observability/metrics"
	"go.uber.org/zap"
)

// Notifier posts quote lifecycle changes to the back-office chat
type Notifier struct {
	sender port.MessageSender
	chatID string
	logger *zap.Logger
}

// NewNotifier creates a notifier posting to chatID
func NewNotifier(sender port.MessageSender, chatID string, logger *zap.Logger) *Notifier {
	return &Notifier{
		sender: sender,
		chatID: chatID,
		logger: logger,
	}
}

// Register subscribes the notifier to the events it reports
func (n *Notifier) Register(d dispatcher.Dispatcher) {
	d.SubscribeNamed(event.TypeLifecycleTransitioned, "lark_lifecycle_notifier", n.Handle)
	d.SubscribeNamed(event.TypeQuoteConsolidated, "lark_consolidation_notifier", n.Handle)
}

// Handle formats the event and sends it. Unknown event types are ignored.
func (n *Notifier) Handle(ctx context.Context, evt *event.Event) error {
	text := FormatEvent(evt)
	if text == "" {
		return nil
	}

	// the event id keeps a redelivered event from posting twice
	err := n.sender.Send(ctx, port.ChatMessage{ChatID: n.chatID, Text: text, DedupeKey: evt.ID})
	metrics.IncNotification(err)
	if err != nil {
		n.logger.Error("Failed to send notification",
			zap.String("event_type", evt.Type.String()),
			zap.Int64("quote_id", evt.AggregateID),
			zap.String("correlation_id", evt.CorrelationID),
			zap.Error(err))
		return err
	}
	return nil
}

// FormatEvent renders the chat text of an event, or "" when the event is not reported
func FormatEvent(evt *event.Event) string {
	name := quoteName(evt)

	switch evt.Type {
	case event.TypeLifecycleTransitioned:
		text := fmt.Sprintf("%s: %s -> %s",
			name,
			evt.GetPayloadString(event.KeyFromState),
			evt.GetPayloadString(event.KeyToState))
		if actor := evt.GetPayloadString(event.KeyActor); actor != "" {
			text += " (by " + actor + ")"
		}
		return text
	case event.TypeQuoteConsolidated:
		total := evt.GetPayloadDecimal(event.KeyTotal).StringFixed(2)
		return fmt.Sprintf("%s consolidated: %s %s from %d group(s)",
			name,
			total,
			evt.GetPayloadString(event.KeyCurrency),
			evt.GetPayloadInt(event.KeyGroupCount))
	default:
		return ""
	}
}

func quoteName(evt *event.Event) string {
	if evt.Reference != "" {
		return "Quote " + evt.Reference
	}
	return fmt.Sprintf("Quote #%d", evt.AggregateID)
}
