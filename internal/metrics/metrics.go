package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CheckoutMetrics aggregates the HTTP surface and the reservation funnel.
type CheckoutMetrics struct {
	Requests    *prometheus.CounterVec
	LatencyMS   *prometheus.HistogramVec
	Holds       *prometheus.CounterVec
	Orders      *prometheus.CounterVec
	Settlements *prometheus.CounterVec
}

func NewCheckoutMetrics(service string) *CheckoutMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flashsale",
		Subsystem: service,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "flashsale",
		Subsystem: service,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})
	holds := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flashsale",
		Subsystem: service,
		Name:      "holds_total",
		Help:      "Hold reservation attempts by result.",
	}, []string{"result"})
	orders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flashsale",
		Subsystem: service,
		Name:      "orders_total",
		Help:      "Order creation attempts by result.",
	}, []string{"result"})
	settlements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flashsale",
		Subsystem: service,
		Name:      "settlements_total",
		Help:      "Payment settlements by outcome.",
	}, []string{"outcome"})

	prometheus.MustRegister(requests, latency, holds, orders, settlements)
	return &CheckoutMetrics{
		Requests:    requests,
		LatencyMS:   latency,
		Holds:       holds,
		Orders:      orders,
		Settlements: settlements,
	}
}

// The Count helpers are nil-receiver safe so handlers under test can run
// without a registry.

func (m *CheckoutMetrics) CountRequest(handler, status string) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(handler, status).Inc()
}

func (m *CheckoutMetrics) ObserveLatency(handler string, ms float64) {
	if m == nil {
		return
	}
	m.LatencyMS.WithLabelValues(handler).Observe(ms)
}

func (m *CheckoutMetrics) CountHold(result string) {
	if m == nil {
		return
	}
	m.Holds.WithLabelValues(result).Inc()
}

func (m *CheckoutMetrics) CountOrder(result string) {
	if m == nil {
		return
	}
	m.Orders.WithLabelValues(result).Inc()
}

func (m *CheckoutMetrics) CountSettlement(outcome string) {
	if m == nil {
		return
	}
	m.Settlements.WithLabelValues(outcome).Inc()
}

func Handler() http.Handler {
	return promhttp.Handler()
}
