package metrics

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	APILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "oracle",
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "Latency of operator API endpoints",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5},
		},
		[]string{"endpoint"},
	)

	APIErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "oracle",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Errors by operator API endpoint",
		},
		[]string{"endpoint"},
	)

	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "oracle",
			Subsystem: "api",
			Name:      "commands_total",
			Help:      "Operator commands delivered to the decision loop",
		},
		[]string{"command", "result"},
	)
)

// Register adds the API collectors to reg once per process. A nil reg uses
// the default registerer.
func Register(reg prometheus.Registerer) {
	once.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		for _, c := range []prometheus.Collector{APILatency, APIErrors, CommandsTotal} {
			if err := reg.Register(c); err != nil {
				var are prometheus.AlreadyRegisteredError
				if !errors.As(err, &are) {
					panic(err)
				}
			}
		}
	})
}
