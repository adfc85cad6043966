package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	SendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "netidx_resolver_send_duration_seconds",
			Help:    "Time to resolve one Send call, including any referral hops.",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		},
		[]string{"facade"},
	)

	ReferralsFollowedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netidx_resolver_referrals_followed_total",
			Help: "Referral hops followed while resolving a batch.",
		},
		[]string{"facade"},
	)

	RouterCacheResetsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netidx_router_cache_resets_total",
			Help: "Times the backend connection map was cleared after exceeding the referral cache overflow threshold.",
		},
		[]string{"facade"},
	)

	BatchSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "netidx_resolver_batch_size",
			Help:    "Operation counts per Send call.",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500},
		},
		[]string{"facade"},
	)

	BackendConnectionsOpenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netidx_resolver_backend_connections_opened_total",
			Help: "Backend connections opened to follow a referral.",
		},
		[]string{"facade"},
	)

	ProtocolErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netidx_resolver_protocol_errors_total",
			Help: "Reply batches rejected for not matching the request batch's shape.",
		},
		[]string{"facade"},
	)
)

var registerOnce sync.Once

// Register registers every collector with the default registry. Safe to
// call more than once: only the first call takes effect.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			SendDuration,
			ReferralsFollowedTotal,
			RouterCacheResetsTotal,
			BatchSize,
			BackendConnectionsOpenTotal,
			ProtocolErrorsTotal,
		)
	})
}
