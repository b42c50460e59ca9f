// Package rates supplies reference exchange rates from a configured table.
package rates

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/travel-backoffice/internal/application/port"
	"github.com/garyjia/travel-backoffice/internal/domain/errs"
	"go.uber.org/zap"
)

// StaticProvider implements port.RateProvider from a fixed table. Keys name a
// currency pair such as "EUR_MGA", "eur/mga" or "EUR-MGA"; the inverse pair is
// derived when only one direction is configured.
type StaticProvider struct {
	rates  map[string]float64
	logger *zap.Logger
}

// NewStaticProvider validates the table and builds a provider
func NewStaticProvider(table map[string]float64, logger *zap.Logger) (*StaticProvider, error) {
	rates := make(map[string]float64, len(table))
	for key, rate := range table {
		from, to, ok := splitPair(key)
		if !ok {
			return nil, fmt.Errorf("invalid currency pair %q", key)
		}
		if rate <= 0 {
			return nil, fmt.Errorf("rate for %s must be positive, got %v", key, rate)
		}
		rates[pairKey(from, to)] = rate
	}

	logger.Info("Static exchange rates loaded", zap.Int("pairs", len(rates)))
	return &StaticProvider{rates: rates, logger: logger}, nil
}

// Rate returns how many units of to buy one unit of from
func (p *StaticProvider) Rate(ctx context.Context, from, to string) (float64, error) {
	from = normalize(from)
	to = normalize(to)
	if from == "" || to == "" {
		return 0, errs.Validation("currency", "is required")
	}
	if from == to {
		return 1, nil
	}

	if rate, ok := p.rates[pairKey(from, to)]; ok {
		return rate, nil
	}
	if rate, ok := p.rates[pairKey(to, from)]; ok {
		return 1 / rate, nil
	}

	p.logger.Debug("No exchange rate configured", zap.String("from", from), zap.String("to", to))
	return 0, errs.Validation("exchange_rate", fmt.Sprintf("no rate configured for %s to %s", from, to))
}

func splitPair(key string) (string, string, bool) {
	parts := strings.FieldsFunc(key, func(r rune) bool {
		return r == '_' || r == '/' || r == '-'
	})
	if len(parts) != 2 {
		return "", "", false
	}
	from, to := normalize(parts[0]), normalize(parts[1])
	return from, to, from != "" && to != "" && from != to
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func pairKey(from, to string) string {
	return from + "/" + to
}

// Verify interface compliance
var _ port.RateProvider = (*StaticProvider)(nil)
