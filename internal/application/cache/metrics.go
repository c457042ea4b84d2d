package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "filestore"

type metrics struct {
	hits          prometheus.Counter
	misses        prometheus.Counter
	constructions *prometheus.CounterVec
	evictions     prometheus.Counter
	live          prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		hits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handler_cache",
			Name:      "hits_total",
			Help:      "Handler lookups served by a live handler.",
		}),
		misses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handler_cache",
			Name:      "misses_total",
			Help:      "Handler lookups that needed a construction.",
		}),
		constructions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handler_cache",
			Name:      "constructions_total",
			Help:      "Handler constructions by result.",
		}, []string{"spec", "result"}),
		evictions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handler_cache",
			Name:      "evictions_total",
			Help:      "Handlers closed by invalidation or size bound.",
		}),
		live: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "handler_cache",
			Name:      "handlers",
			Help:      "Live cached handlers.",
		}),
	}
}
