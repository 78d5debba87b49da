package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TokensIssued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plantgate_tokens_issued_total",
			Help: "Signed tokens issued, by kind.",
		},
		[]string{"kind"},
	)

	TokenVerifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plantgate_token_verifications_total",
			Help: "Access token verifications, by outcome.",
		},
		[]string{"outcome"},
	)

	ExternalTokenCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plantgate_external_token_cache_total",
			Help: "Third-party credential lookups, by result.",
		},
		[]string{"result"},
	)

	ExternalExchangeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "plantgate_external_exchange_duration_seconds",
			Help:    "Latency of credential exchanges with the external identity provider.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Register adds all collectors to reg.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		TokensIssued, TokenVerifications, ExternalTokenCache, ExternalExchangeDuration,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
