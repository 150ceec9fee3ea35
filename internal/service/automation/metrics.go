package automation

import "github.com/prometheus/client_golang/prometheus"

var (
	actionsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_routing_automation_actions_total",
			Help: "System messages emitted by automation rules.",
		},
		[]string{"rule"},
	)
	sweepErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_routing_automation_errors_total",
			Help: "Failures isolated during automation, by stage.",
		},
		[]string{"stage"},
	)
	roomsAutoClosed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_routing_rooms_auto_closed_total",
		Help: "Rooms closed by the auto_close rule.",
	})
	sweepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "chat_routing_sweep_duration_seconds",
		Help:    "Wall time of a full automation sweep.",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(actionsEmitted, sweepErrors, roomsAutoClosed, sweepDuration)
}
