package database

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pool and executor collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	acquireTimeouts prometheus.Counter
	acquireWait     prometheus.Histogram
	retries         prometheus.Counter
	transactions    *prometheus.CounterVec
}

// NewMetrics creates the database collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		acquireTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "db_acquire_timeouts_total",
			Help: "Connection checkouts abandoned after the acquisition timeout.",
		}),
		acquireWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "db_acquire_wait_seconds",
			Help:    "Time spent waiting for a pooled connection.",
			Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "db_statement_retries_total",
			Help: "Statements re-run after a transient error.",
		}),
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "db_transactions_total",
			Help: "Transactions by outcome.",
		}, []string{"outcome"}),
	}

	for _, c := range []prometheus.Collector{m.acquireTimeouts, m.acquireWait, m.retries, m.transactions} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeAcquire(d time.Duration) {
	if m == nil {
		return
	}
	m.acquireWait.Observe(d.Seconds())
}

func (m *Metrics) incAcquireTimeout() {
	if m == nil {
		return
	}
	m.acquireTimeouts.Inc()
}

func (m *Metrics) incRetry() {
	if m == nil {
		return
	}
	m.retries.Inc()
}

func (m *Metrics) incTransaction(outcome string) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(outcome).Inc()
}
