package routing

import "github.com/prometheus/client_golang/prometheus"

var resolveOutcomes = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chat_routing_resolve_outcomes_total",
		Help: "Eligibility resolutions by outcome.",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(resolveOutcomes)
}

func observeOutcome(o Outcome) {
	resolveOutcomes.WithLabelValues(o.Label()).Inc()
}
