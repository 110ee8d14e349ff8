package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "multichat"

var (
	CompletionRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "completion_requests_total",
		Help:      "Completion gateway calls by provider and outcome, retries included.",
	}, []string{"provider", "outcome"})

	Decisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "decisions_total",
		Help:      "Speak/debate decisions by policy and result.",
	}, []string{"policy", "result"})

	Passes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orchestration_passes_total",
		Help:      "Orchestration passes by outcome.",
	}, []string{"outcome"})

	BotReplies = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bot_replies_total",
		Help:      "Chat messages authored by AI personas.",
	}, []string{"persona"})

	Debates = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "debates_total",
		Help:      "Debates started.",
	})

	DroppedJobs = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "queue_dropped_total",
		Help:      "Orchestration passes dropped because the room queue was full.",
	})

	Connections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "websocket_connections",
		Help:      "Open websocket connections.",
	})
)

func Bool(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
