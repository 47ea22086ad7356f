package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

const namespace = "apparel_tracker"

// Metrics holds the Prometheus collectors of the service. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	salesCreated    prometheus.Counter
	salesRevenue    prometheus.Counter
	salesStatus     *prometheus.CounterVec
	invoiceRetries  prometheus.Counter
	stockAdjusted   *prometheus.CounterVec
	lowStockEvents  prometheus.Counter
	reconciled      prometheus.Counter
}

// New creates the collectors on a dedicated registry together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		salesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sales_created_total",
			Help:      "Sales recorded.",
		}),
		salesRevenue: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sales_revenue_total",
			Help:      "Sum of totals of recorded sales.",
		}),
		salesStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sales_status_changes_total",
			Help:      "Sales moved out of Completed, by new status.",
		}, []string{"status"}),
		invoiceRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoice_number_retries_total",
			Help:      "Invoice numbers regenerated after a collision.",
		}),
		stockAdjusted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_adjustments_total",
			Help:      "Stock adjustments by operation and outcome.",
		}, []string{"operation", "outcome"}),
		lowStockEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "low_stock_events_total",
			Help:      "Products that crossed their reorder point.",
		}),
		reconciled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "low_stock_reconciled_total",
			Help:      "Products whose stale lowStockAlert was rewritten by the reconcile job.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.requestDuration,
		m.salesCreated,
		m.salesRevenue,
		m.salesStatus,
		m.invoiceRetries,
		m.stockAdjusted,
		m.lowStockEvents,
		m.reconciled,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request count and latency per matched route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		m.requests.WithLabelValues(route, method, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
	}
}

// SaleCreated counts a recorded sale and its total.
func (m *Metrics) SaleCreated(total decimal.Decimal) {
	if m == nil {
		return
	}
	m.salesCreated.Inc()
	m.salesRevenue.Add(total.InexactFloat64())
}

// SaleStatusChanged counts a cancel or refund.
func (m *Metrics) SaleStatusChanged(status string) {
	if m == nil {
		return
	}
	m.salesStatus.WithLabelValues(status).Inc()
}

// InvoiceRetry counts one regenerated invoice number.
func (m *Metrics) InvoiceRetry() {
	if m == nil {
		return
	}
	m.invoiceRetries.Inc()
}

// StockAdjusted counts one adjustment attempt; outcome is "ok" or an error code.
func (m *Metrics) StockAdjusted(operation, outcome string) {
	if m == nil {
		return
	}
	m.stockAdjusted.WithLabelValues(operation, outcome).Inc()
}

// LowStock counts a product crossing its reorder point.
func (m *Metrics) LowStock() {
	if m == nil {
		return
	}
	m.lowStockEvents.Inc()
}

// Reconciled adds n rewritten low stock flags.
func (m *Metrics) Reconciled(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.reconciled.Add(float64(n))
}
