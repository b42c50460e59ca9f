package port

import (
	"context"

	"github.com/garyjia/travel-backoffice/internal/domain/entity"
)

// RateProvider supplies a reference exchange rate when the operator enters none
type RateProvider interface {
	Rate(ctx context.Context, from, to string) (float64, error)
}

// QuoteExporter renders a finalized quote as a document
type QuoteExporter interface {
	Export(ctx context.Context, quote *entity.Quote, groups []*entity.BenchmarkGroup) ([]byte, error)
	// FileName returns the archive name of the quote's document
	FileName(quote *entity.Quote) string
	ContentType() string
}

// ChatMessage is one notification bound for a chat. DedupeKey lets the
// receiving side drop a message it has already accepted.
type ChatMessage struct {
	ChatID    string
	Text      string
	DedupeKey string
}

// MessageSender posts plain-text messages to a chat
type MessageSender interface {
	Send(ctx context.Context, msg ChatMessage) error
}
