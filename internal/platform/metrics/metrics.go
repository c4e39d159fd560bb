package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	TokensIssued  *prometheus.CounterVec
	TokensRevoked *prometheus.CounterVec
	TokensSwept   prometheus.Counter
	SyncBatches   prometheus.Counter
	SyncAccepted  prometheus.Counter
	SyncSkipped   prometheus.Counter
	CredentialMs  prometheus.Histogram
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		TokensIssued: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldkey_tokens_issued_total",
			Help: "Capability tokens issued, by scope.",
		}, []string{"scope"}),
		TokensRevoked: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldkey_tokens_revoked_total",
			Help: "Capability tokens revoked, by scope (cascaded block deletions count as block).",
		}, []string{"scope"}),
		TokensSwept: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fieldkey_tokens_swept_total",
			Help: "Expired tokens deleted by the background sweeper.",
		}),
		SyncBatches: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fieldkey_sync_batches_total",
			Help: "Offline sync batches received.",
		}),
		SyncAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fieldkey_sync_changes_accepted_total",
			Help: "Offline sync changes applied to visit records.",
		}),
		SyncSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fieldkey_sync_changes_skipped_total",
			Help: "Offline sync changes skipped by row-level scope checks.",
		}),
		CredentialMs: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "fieldkey_resolve_credential_duration_ms",
			Help:    "Latency of public credential lookups in milliseconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
		}),
	}
}

// ObserveIssued records an issued token for the given scope ("territory" or "block").
func (m *Metrics) ObserveIssued(scope string) {
	m.TokensIssued.WithLabelValues(scope).Inc()
}

// ObserveRevoked records revoked tokens for the given scope.
func (m *Metrics) ObserveRevoked(scope string, n int) {
	m.TokensRevoked.WithLabelValues(scope).Add(float64(n))
}
