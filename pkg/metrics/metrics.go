// Package metrics exposes engine counters for an embedding process to
// serve alongside its own registry.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	CommitsWritten prometheus.Counter
	Publications   prometheus.Counter
	EventsEmitted  prometheus.Counter
)

func init() {
	CommitsWritten = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "inkwell_commits_written_total",
			Help: "Total number of draft commits written.",
		},
	)
	Publications = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "inkwell_publications_total",
			Help: "Total number of successful publications.",
		},
	)
	EventsEmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "inkwell_events_emitted_total",
			Help: "Total number of events emitted to subscribers.",
		},
	)
	prometheus.MustRegister(CommitsWritten, Publications, EventsEmitted)
}
