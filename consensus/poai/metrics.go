package poai

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the engine's prometheus surface. A nil registerer yields
// working but unregistered collectors, which is what tests use.
type Metrics struct {
	RoundsStarted     prometheus.Counter
	RoundsFailed      *prometheus.CounterVec // outcome
	BlocksFinalized   prometheus.Counter
	ProposalsAccepted prometheus.Counter
	ProposalsDropped  *prometheus.CounterVec // reason
	VotesAccepted     prometheus.Counter
	VotesDropped      *prometheus.CounterVec // reason
	EfficiencyScore   prometheus.Gauge
	Participation     prometheus.Gauge
}

// NewMetrics creates the metric set under the poai namespace.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RoundsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "poai", Name: "rounds_started_total",
			Help: "Consensus rounds started.",
		}),
		RoundsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "poai", Name: "rounds_failed_total",
			Help: "Consensus rounds failed, by outcome.",
		}, []string{"outcome"}),
		BlocksFinalized: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "poai", Name: "blocks_finalized_total",
			Help: "Blocks finalized and applied.",
		}),
		ProposalsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "poai", Name: "proposals_accepted_total",
			Help: "Proposals admitted to a round.",
		}),
		ProposalsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "poai", Name: "proposals_dropped_total",
			Help: "Proposals discarded, by reason.",
		}, []string{"reason"}),
		VotesAccepted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "poai", Name: "votes_accepted_total",
			Help: "Ranked votes counted.",
		}),
		VotesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "poai", Name: "votes_dropped_total",
			Help: "Ranked votes discarded, by reason.",
		}, []string{"reason"}),
		EfficiencyScore: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "poai", Name: "last_efficiency_score",
			Help: "Efficiency score of the last finalized block.",
		}),
		Participation: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "poai", Name: "last_round_participation",
			Help: "Counted votes in the last tallied round.",
		}),
	}
}
