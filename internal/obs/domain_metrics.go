package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// InvoicesCreated counts invoices registered through the API.
	InvoicesCreated prometheus.Counter
	// InvoiceTransitions counts explicit status transitions by outcome.
	InvoiceTransitions *prometheus.CounterVec
	// PaymentsApplied counts payment applications by outcome
	// (applied, duplicate, rejected).
	PaymentsApplied *prometheus.CounterVec
	// InvoicesOverdue tracks how many invoices currently derive as overdue.
	InvoicesOverdue prometheus.Gauge
	// OverdueScanDuration records the latency of overdue scan runs in milliseconds.
	OverdueScanDuration prometheus.Histogram
)

// MustRegisterDomainMetrics initialises and registers billing Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		InvoicesCreated = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoices_created_total",
			Help:      "Count of invoices created.",
		})
		InvoiceTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoice_transitions_total",
			Help:      "Count of explicit invoice status transitions by outcome.",
		}, []string{"action", "result"})
		PaymentsApplied = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_applied_total",
			Help:      "Count of payment applications by outcome.",
		}, []string{"result"})
		InvoicesOverdue = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "invoices_overdue",
			Help:      "Number of invoices whose effective status is overdue.",
		})
		OverdueScanDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "overdue_scan_duration_ms",
			Help:      "Latency of overdue scan runs in milliseconds.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250},
		})

		mustRegisterCollector(reg, InvoicesCreated, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				InvoicesCreated = v
			}
		})
		mustRegisterCollector(reg, InvoiceTransitions, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				InvoiceTransitions = v
			}
		})
		mustRegisterCollector(reg, PaymentsApplied, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PaymentsApplied = v
			}
		})
		mustRegisterCollector(reg, InvoicesOverdue, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Gauge); ok {
				InvoicesOverdue = v
			}
		})
		mustRegisterCollector(reg, OverdueScanDuration, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				OverdueScanDuration = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
