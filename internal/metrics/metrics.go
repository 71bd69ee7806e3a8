package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

/*
ElectionMetrics tracks ballots and election lifecycle.

VotesRejected is labelled by reason (closed, unknown_candidate,
duplicate, missing_token) so fraud attempts show up separately from
late ballots. Metrics are registered on the Registerer passed to the
constructor; tests pass a fresh prometheus.NewRegistry().
*/
type ElectionMetrics struct {
	VotesAccepted   prometheus.Counter
	VotesRejected   *prometheus.CounterVec
	ElectionsOpened prometheus.Counter
	ElectionsOpen   prometheus.Gauge
	VoteDuration    prometheus.Histogram
}

// Rejection reasons used as the "reason" label
const (
	ReasonClosed           = "closed"
	ReasonUnknownCandidate = "unknown_candidate"
	ReasonDuplicate        = "duplicate"
	ReasonMissingToken     = "missing_token"
	ReasonOther            = "other"
)

func NewElectionMetrics(reg prometheus.Registerer, namespace string) *ElectionMetrics {
	m := &ElectionMetrics{
		VotesAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "elections",
			Name:      "votes_accepted_total",
			Help:      "Total number of ballots accepted",
		}),
		VotesRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "elections",
				Name:      "votes_rejected_total",
				Help:      "Total number of ballots rejected, by reason",
			},
			[]string{"reason"},
		),
		ElectionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "elections",
			Name:      "opened_total",
			Help:      "Total number of elections opened",
		}),
		ElectionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "elections",
			Name:      "open",
			Help:      "Number of elections currently accepting ballots",
		}),
		VoteDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "elections",
			Name:      "vote_duration_seconds",
			Help:      "Time spent recording a ballot, including lock wait",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 8), // 10us to ~160ms
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.VotesAccepted,
			m.VotesRejected,
			m.ElectionsOpened,
			m.ElectionsOpen,
			m.VoteDuration,
		)
	}

	return m
}
