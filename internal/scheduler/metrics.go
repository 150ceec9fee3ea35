package scheduler

import "github.com/prometheus/client_golang/prometheus"

var jobRuns = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chat_routing_scheduler_runs_total",
		Help: "Scheduled job runs by outcome.",
	},
	[]string{"job", "result"},
)

func init() {
	prometheus.MustRegister(jobRuns)
}
