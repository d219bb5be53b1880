// Package metrics registers the ledger kernel's Prometheus collectors
// and exposes the handler cmd/ledgerd serves them on.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles every collector the ledger kernel exports, so
// callers construct one value at startup instead of scattering package
// globals across the codebase.
type Registry struct {
	gatherer prometheus.Gatherer

	CommitTotal        *prometheus.CounterVec
	CommitRejectTotal  *prometheus.CounterVec
	CommitLatency      prometheus.Histogram
	AppendRetryTotal   prometheus.Counter

	ProjectionLagSeq   *prometheus.GaugeVec
	ProjectionApplyErr *prometheus.CounterVec

	FanoutSubscribers prometheus.Gauge
	FanoutDropTotal   *prometheus.CounterVec
}

// NewRegistry builds a fresh prometheus.Registry, registers every
// collector against it, and returns the Registry wrapper. Using a
// dedicated registry rather than the global default keeps ledgerd's
// metrics free of whatever client libraries register on import.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		gatherer: reg,

		CommitTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledgerd",
			Name:      "commits_total",
			Help:      "Total number of commits accepted by the membrane, by intent class.",
		}, []string{"intent_class"}),

		CommitRejectTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledgerd",
			Name:      "commit_rejections_total",
			Help:      "Total number of commits rejected by the membrane, by reason.",
		}, []string{"reason"}),

		CommitLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ledgerd",
			Name:      "commit_latency_seconds",
			Help:      "Wall-clock time to validate and append a commit, including retries.",
			Buckets:   prometheus.DefBuckets,
		}),

		AppendRetryTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ledgerd",
			Name:      "append_retries_total",
			Help:      "Total number of serialization-conflict retries across all appends.",
		}),

		ProjectionLagSeq: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ledgerd",
			Name:      "projection_lag_sequence",
			Help:      "Difference between a container's latest entry sequence and a projection's cursor.",
		}, []string{"projection", "container_id"}),

		ProjectionApplyErr: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledgerd",
			Name:      "projection_apply_errors_total",
			Help:      "Total number of projection dispatch failures, by projection name.",
		}, []string{"projection"}),

		FanoutSubscribers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "ledgerd",
			Name:      "fanout_subscribers",
			Help:      "Current number of live fanout subscriptions.",
		}),

		FanoutDropTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledgerd",
			Name:      "fanout_drops_total",
			Help:      "Total number of events dropped because a subscriber's buffer was full, by container.",
		}, []string{"container_id"}),
	}
}

// Handler returns the HTTP handler to serve this registry's metrics on.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
