// Package metrics exposes the back-office prometheus counters. Every recorder is
// a no-op until Init has run, so domain services can call them unconditionally.
package metrics

import (
	"database/sql"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/garyjia/travel-backoffice/internal/domain/event"
)

const (
	metricPrefix = "backoffice_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	transitionsTotal *prometheus.CounterVec

	consolidationsTotal  *prometheus.CounterVec
	consolidationLatency *prometheus.HistogramVec
	consolidatedAmount   *prometheus.CounterVec

	pricingEditsTotal *prometheus.CounterVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec

	notificationsTotal *prometheus.CounterVec

	eventHandlersTotal *prometheus.CounterVec
)

// Init registers the collectors with the default registry. db may be nil; when
// set, stored documents are exposed as gauges.
func Init(db *sql.DB, logger *zap.Logger) {
	registerOnce.Do(func() {
		transitionsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "lifecycle_transitions_total",
				Help: "Lifecycle transition attempts by source state, target state and result",
			},
			[]string{"from", "to", "result"},
		)

		consolidationsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "quote_consolidations_total",
				Help: "Quote consolidations by product line and result",
			},
			[]string{"product_line", "result"},
		)
		consolidationLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "quote_consolidation_latency_seconds",
				Help:    "Quote consolidation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		consolidatedAmount = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "quote_consolidated_amount_total",
				Help: "Sum of consolidated quote totals by currency",
			},
			[]string{"currency"},
		)

		pricingEditsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "pricing_edits_total",
				Help: "Pricing edits by edited field and result",
			},
			[]string{"field", "result"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "quote_export_total",
				Help: "Quote workbook exports by result",
			},
			[]string{"result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "quote_export_latency_seconds",
				Help:    "Quote workbook export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		notificationsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notifications_total",
				Help: "Chat notifications by result",
			},
			[]string{"result"},
		)

		eventHandlersTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "event_handler_runs_total",
				Help: "Domain event handler runs by event type, handler and result",
			},
			[]string{"event", "handler", "result"},
		)

		prometheus.MustRegister(
			transitionsTotal,
			consolidationsTotal,
			consolidationLatency,
			consolidatedAmount,
			pricingEditsTotal,
			exportTotal,
			exportLatency,
			notificationsTotal,
			eventHandlersTotal,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

func registerDBMetrics(db *sql.DB, logger *zap.Logger) {
	count := func(query string) func() float64 {
		return func() float64 {
			var n int64
			if err := db.QueryRow(query).Scan(&n); err != nil {
				if logger != nil {
					logger.Warn("Metrics query failed", zap.String("query", query), zap.Error(err))
				}
				return 0
			}
			return float64(n)
		}
	}

	prometheus.MustRegister(
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: metricPrefix + "quotes_stored",
				Help: "Number of stored quotes",
			},
			count("SELECT COUNT(*) FROM quotes"),
		),
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: metricPrefix + "open_lifecycles",
				Help: "Number of lifecycle records not yet settled or cancelled",
			},
			count("SELECT COUNT(*) FROM lifecycle_records WHERE state NOT IN ('SETTLED', 'CANCELLED')"),
		),
	)
}

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

func result(err error) string {
	if err != nil {
		return resultError
	}
	return resultSuccess
}

// ObserveTransition records one lifecycle transition attempt
func ObserveTransition(from, to string, err error) {
	if transitionsTotal != nil {
		transitionsTotal.WithLabelValues(from, to, result(err)).Inc()
	}
}

// ObserveConsolidation records a consolidation attempt
func ObserveConsolidation(productLine, currency string, total float64, err error, duration time.Duration) {
	if productLine == "" {
		productLine = "unknown"
	}
	res := result(err)
	if consolidationsTotal != nil {
		consolidationsTotal.WithLabelValues(productLine, res).Inc()
	}
	if consolidationLatency != nil {
		consolidationLatency.WithLabelValues(res).Observe(duration.Seconds())
	}
	if err == nil && consolidatedAmount != nil && total > 0 {
		consolidatedAmount.WithLabelValues(currency).Add(total)
	}
}

// IncPricingEdit counts a commission or exchange-rate edit
func IncPricingEdit(field string, err error) {
	if pricingEditsTotal != nil {
		pricingEditsTotal.WithLabelValues(field, result(err)).Inc()
	}
}

// ObserveExport records a workbook export
func ObserveExport(err error, duration time.Duration) {
	res := result(err)
	if exportTotal != nil {
		exportTotal.WithLabelValues(res).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(res).Observe(duration.Seconds())
	}
}

// IncNotification counts a chat notification
func IncNotification(err error) {
	if notificationsTotal != nil {
		notificationsTotal.WithLabelValues(result(err)).Inc()
	}
}

// HandlerObserver reports dispatcher handler outcomes
type HandlerObserver struct{}

// ObserveHandler implements dispatcher.Observer
func (HandlerObserver) ObserveHandler(eventType event.Type, handlerName string, err error) {
	if eventHandlersTotal != nil {
		eventHandlersTotal.WithLabelValues(eventType.String(), handlerName, result(err)).Inc()
	}
}
