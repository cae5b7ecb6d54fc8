package stub

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Registry     *prometheus.Registry
	PollsCreated prometheus.Counter
	Votes        *prometheus.CounterVec
	Streams      prometheus.Gauge
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		PollsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "livepoll",
			Name:      "polls_created_total",
			Help:      "Polls created.",
		}),
		Votes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "livepoll",
			Name:      "votes_total",
			Help:      "Vote requests by outcome.",
		}, []string{"outcome"}),
		Streams: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "livepoll",
			Name:      "result_streams",
			Help:      "Open results streams.",
		}),
	}
}
