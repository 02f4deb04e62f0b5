package stats

import (
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/xerrors"
)

const namespace = "hubwriter"

// SinkerStats is shared by every partition writer of a process.
type SinkerStats struct {
	Documents   prometheus.Counter
	Batches     prometheus.Counter
	FlushErrors prometheus.Counter
	Inflight    prometheus.Gauge
	Elapsed     prometheus.Histogram
}

func NewSinkerStats(registry prometheus.Registerer) *SinkerStats {
	return &SinkerStats{
		Documents: register(registry, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sinker",
			Name:      "documents_total",
			Help:      "Documents handed to the bulk endpoint.",
		})),
		Batches: register(registry, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sinker",
			Name:      "batches_total",
			Help:      "Flushed batches.",
		})),
		FlushErrors: register(registry, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sinker",
			Name:      "flush_errors_total",
			Help:      "Batches which failed to flush.",
		})),
		Inflight: register(registry, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sinker",
			Name:      "inflight_documents",
			Help:      "Serialized documents waiting for a flush.",
		})),
		Elapsed: register(registry, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sinker",
			Name:      "flush_seconds",
			Help:      "Duration of a batch flush.",
			Buckets:   prometheus.DefBuckets,
		})),
	}
}

// register returns the already registered collector when one with the same description exists.
func register[T prometheus.Collector](registry prometheus.Registerer, collector T) T {
	if registry == nil {
		return collector
	}
	if err := registry.Register(collector); err != nil {
		var alreadyRegistered prometheus.AlreadyRegisteredError
		if xerrors.As(err, &alreadyRegistered) {
			if existing, ok := alreadyRegistered.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return collector
}
