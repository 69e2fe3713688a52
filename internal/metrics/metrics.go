package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "opguide"

const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Metrics groups the collectors of the OpGuide pipeline. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	fetches           *prometheus.CounterVec
	groupSummaries    *prometheus.CounterVec
	summarizeDuration *prometheus.HistogramVec
	documents         prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetches_total",
				Help:      "Resource fetches by outcome.",
			},
			[]string{"fetcher", "outcome"},
		),
		groupSummaries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "group_summaries_total",
				Help:      "Per-type summaries by outcome.",
			},
			[]string{"outcome"},
		),
		summarizeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "summarize_duration_seconds",
				Help:      "Duration of single summarizer calls.",
				Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
			},
			[]string{"outcome"},
		),
		documents: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "documents_total",
				Help:      "Generated OpGuide documents.",
			},
		),
	}

	reg.MustRegister(m.fetches, m.groupSummaries, m.summarizeDuration, m.documents)

	return m
}

func (m *Metrics) ObserveFetch(fetcher string, err error) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(fetcher, outcome(err)).Inc()
}

func (m *Metrics) ObserveGroup(failed bool) {
	if m == nil {
		return
	}
	o := OutcomeSuccess
	if failed {
		o = OutcomeError
	}
	m.groupSummaries.WithLabelValues(o).Inc()
}

func (m *Metrics) ObserveSummarizeCall(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.summarizeDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *Metrics) ObserveDocument() {
	if m == nil {
		return
	}
	m.documents.Inc()
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}
