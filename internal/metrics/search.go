package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Search and session Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shakesearch",
			Name:      "search_requests_total",
			Help:      "Total number of corpus searches",
		},
		[]string{"status"}, // "ok" / "invalid" / "error"
	)

	SearchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "shakesearch",
			Name:      "search_duration_seconds",
			Help:      "Corpus search duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)

	SearchPageItems = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "shakesearch",
			Name:      "search_page_items",
			Help:      "Number of items returned per page",
			Buckets:   []float64{0, 1, 5, 10, 20, 50, 100},
		},
	)

	SessionDispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shakesearch",
			Name:      "session_dispatch_total",
			Help:      "Session controller dispatches by operation and outcome",
		},
		[]string{"op", "outcome"}, // op: search / load_more; outcome: applied / stale / error / skipped / aborted
	)

	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "shakesearch",
			Name:      "ui_sessions_active",
			Help:      "Number of live web UI sessions",
		},
	)
)

// Register registers every shakesearch collector on reg. Collectors already
// registered on reg are left in place, so calling Register twice is safe.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		httpRequestDuration,
		httpRequestsTotal,
		SearchRequestsTotal,
		SearchDuration,
		SearchPageItems,
		SessionDispatchTotal,
		SessionsActive,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return fmt.Errorf("register metric: %w", err)
		}
	}
	return nil
}
