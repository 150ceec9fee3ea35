package capacity

import "github.com/prometheus/client_golang/prometheus"

var counterUpdates = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chat_routing_capacity_updates_total",
		Help: "Attendant capacity counter updates by operation and result.",
	},
	[]string{"op", "result"},
)

func init() {
	prometheus.MustRegister(counterUpdates)
}

func observe(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	counterUpdates.WithLabelValues(op, result).Inc()
}
