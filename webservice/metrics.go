package webservice

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mkock/autolookup/registry"
)

// metrics holds the instruments exposed on /metrics.
type metrics struct {
	lookups        *prometheus.CounterVec
	lookupDuration prometheus.Histogram
	throttled      prometheus.Counter
	quotaExhausted prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		lookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "autolookup_lookups_total",
			Help: "Total number of vehicle lookups, by result",
		}, []string{"result"}),
		lookupDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "autolookup_lookup_duration_seconds",
			Help:    "Duration of vehicle lookups, retries included",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		throttled: factory.NewCounter(prometheus.CounterOpts{
			Name: "autolookup_registry_throttled_total",
			Help: "Number of lookups that failed because the registry throttled us",
		}),
		quotaExhausted: factory.NewCounter(prometheus.CounterOpts{
			Name: "autolookup_registry_quota_exhausted_total",
			Help: "Number of lookups that failed because the daily quota was exhausted",
		}),
	}
}

// observeLookup records the outcome and duration of one lookup.
func (m *metrics) observeLookup(start time.Time, err error) {
	m.lookupDuration.Observe(time.Since(start).Seconds())
	if err == nil {
		m.lookups.WithLabelValues("ok").Inc()
		return
	}
	result := "error"
	if apiErr, ok := registry.AsAPIError(err); ok {
		result = apiErr.Kind.String()
		switch apiErr.Kind {
		case registry.RateLimited:
			m.throttled.Inc()
		case registry.QuotaExceeded:
			m.quotaExhausted.Inc()
		}
	}
	m.lookups.WithLabelValues(result).Inc()
}
