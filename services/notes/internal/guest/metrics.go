package guest

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the guest pool collectors.
type Metrics struct {
	claims          *prometheus.CounterVec
	accountsCreated *prometheus.CounterVec
	seedFailures    *prometheus.CounterVec
	expiredDeleted  prometheus.Counter
	sweeps          *prometheus.CounterVec
	sweepDuration   prometheus.Histogram
	poolSize        prometheus.Gauge
}

// NewMetrics builds the collectors and registers them on reg. A nil reg
// leaves them unregistered, which is what tests without a scrape endpoint want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	const namespace, subsystem = "keepnotes", "guest_pool"
	m := &Metrics{
		claims: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "claims_total",
				Help:      "Pooled account claim attempts by outcome (claimed, empty, contended)",
			},
			[]string{"outcome"},
		),
		accountsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "accounts_created_total",
				Help:      "Guest accounts created by kind (pooled, on_demand)",
			},
			[]string{"kind"},
		),
		seedFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "seed_failures_total",
				Help:      "Demo data seeding failures by account kind",
			},
			[]string{"kind"},
		),
		expiredDeleted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "expired_deleted_total",
				Help:      "Expired guest accounts deleted by the sweep",
			},
		),
		sweeps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "sweeps_total",
				Help:      "Maintenance sweeps by outcome (ok, error, skipped)",
			},
			[]string{"outcome"},
		),
		sweepDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "sweep_duration_seconds",
				Help:      "Time taken by a maintenance sweep",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
			},
		),
		poolSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "pool_size",
				Help:      "Unclaimed pooled accounts seen by the last top-up",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(
			m.claims,
			m.accountsCreated,
			m.seedFailures,
			m.expiredDeleted,
			m.sweeps,
			m.sweepDuration,
			m.poolSize,
		)
	}
	return m
}
