// Package metrics holds the tap's prometheus collectors. A tap is a
// short-lived process, so instead of serving /metrics the registry is
// written to a node-exporter textfile at the end of a run.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tap_pagerduty"

var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	RecordsEmitted = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_emitted_total",
		Help:      "Records written as RECORD messages.",
	}, []string{"stream"})

	RecordsSkipped = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_skipped_total",
		Help:      "Records skipped as malformed.",
	}, []string{"stream"})

	HTTPRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP attempts by outcome (success, retry, giveup).",
	}, []string{"outcome"})

	HTTPRetries = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_retries_total",
		Help:      "HTTP attempts that were retried.",
	})

	SyncDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "sync_duration_seconds",
		Help:      "Wall-clock time spent syncing a stream.",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
	}, []string{"stream"})
)

// WriteTextfile dumps the registry in the text exposition format
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, Registry); err != nil {
		return fmt.Errorf("error writing metrics textfile %s: %w", path, err)
	}
	return nil
}
