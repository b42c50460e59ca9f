package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuoteContribution is one group's client-line amount inside a quote
type QuoteContribution struct {
	GroupID     int64   `json:"group_id"`
	Label       string  `json:"label"`
	Nights      int     `json:"nights"`
	LocalAmount float64 `json:"local_amount"`
}

// Quote is the consolidated, billable total of one or more comparison groups.
// Its content is immutable once created; only its lifecycle record changes.
// Total is kept exact; it serializes as a decimal string.
type Quote struct {
	ID            int64               `json:"id"`
	Reference     string              `json:"reference"`
	ProductLine   ProductLine         `json:"product_line"`
	Contributions []QuoteContribution `json:"contributions"`
	Total         decimal.Decimal     `json:"total"`
	Currency      string              `json:"currency"`
	CreatedBy     string              `json:"created_by"`
	CreatedAt     time.Time           `json:"created_at"`
}

// GroupIDs returns the ids of the contributing groups in stored order
func (q *Quote) GroupIDs() []int64 {
	ids := make([]int64, 0, len(q.Contributions))
	for _, c := range q.Contributions {
		ids = append(ids, c.GroupID)
	}
	return ids
}
