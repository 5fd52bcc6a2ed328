// Package metrics holds the prometheus collectors of the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups every collector. A nil *Metrics is valid and records
// nothing, which keeps tests free of registry wiring.
type Metrics struct {
	OrdersPlaced    prometheus.Counter
	OrdersProgress  *prometheus.CounterVec
	StockDecrements *prometheus.CounterVec
	CatalogRefresh  *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OrdersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bikeshop_orders_placed_total",
			Help: "Orders created.",
		}),
		OrdersProgress: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bikeshop_orders_progressed_total",
			Help: "Order status transitions by target status.",
		}, []string{"to"}),
		StockDecrements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bikeshop_stock_decrements_total",
			Help: "Units of stock consumed by fulfilment, by component category.",
		}, []string{"category"}),
		CatalogRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bikeshop_catalog_refresh_total",
			Help: "Catalog snapshot refreshes by result.",
		}, []string{"result"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bikeshop_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(m.OrdersPlaced, m.OrdersProgress, m.StockDecrements, m.CatalogRefresh, m.HTTPDuration)
	return m
}

func (m *Metrics) OrderPlaced() {
	if m != nil {
		m.OrdersPlaced.Inc()
	}
}

func (m *Metrics) OrderProgressed(to string) {
	if m != nil {
		m.OrdersProgress.WithLabelValues(to).Inc()
	}
}

func (m *Metrics) StockDecremented(category string, n int64) {
	if m != nil {
		m.StockDecrements.WithLabelValues(category).Add(float64(n))
	}
}

// CatalogRefreshed counts a refresh; result is "ok" or "error".
func (m *Metrics) CatalogRefreshed(result string) {
	if m != nil {
		m.CatalogRefresh.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) ObserveHTTP(method, route, status string, seconds float64) {
	if m != nil {
		m.HTTPDuration.WithLabelValues(method, route, status).Observe(seconds)
	}
}
