package elevation

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	lookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gpxele",
		Subsystem: "elevation",
		Name:      "lookups_total",
		Help:      "Elevation lookups by source and outcome",
	}, []string{"source", "result"})

	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gpxele",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Remote lookups answered from the coordinate cache",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gpxele",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Remote lookups that needed a network request",
	})

	cacheWriteErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gpxele",
		Subsystem: "cache",
		Name:      "write_errors_total",
		Help:      "Failed cache persistence attempts",
	})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gpxele",
		Subsystem: "remote",
		Name:      "request_duration_seconds",
		Help:      "Latency of point-query requests",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"status"})
)

func observe(source string, s Sample) Sample {
	result := "ok"
	if !s.Valid {
		result = "no_data"
	}
	lookupsTotal.WithLabelValues(source, result).Inc()
	return s
}

// WriteMetrics dumps every registered metric to fpath in the Prometheus text format, for node_exporter's textfile
// collector.
func WriteMetrics(fpath string) error {
	if err := prometheus.WriteToTextfile(fpath, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("writing metrics to %q: %w", fpath, err)
	}
	return nil
}
