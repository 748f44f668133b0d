package kafka

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricsOnce sync.Once
	registerer  prometheus.Registerer = prometheus.DefaultRegisterer

	producerMessages *prometheus.CounterVec
	producerBytes    *prometheus.CounterVec
	producerLatency  *prometheus.HistogramVec
	consumerHandled  *prometheus.CounterVec
	consumerLatency  *prometheus.HistogramVec
	consumerQueue    *prometheus.GaugeVec
)

// SetMetricsRegisterer must be called before the first producer or consumer
// is built; later calls have no effect.
func SetMetricsRegisterer(reg prometheus.Registerer) {
	if reg != nil {
		registerer = reg
	}
}

func initMetrics() {
	metricsOnce.Do(func() {
		producerMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oracle_kafka_producer_messages_total",
			Help: "Messages published to Kafka",
		}, []string{"topic", "result"})
		producerBytes = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oracle_kafka_producer_bytes_total",
			Help: "Payload bytes published",
		}, []string{"topic"})
		producerLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "oracle_kafka_producer_publish_seconds",
			Help:    "Publish latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"topic"})
		consumerHandled = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oracle_kafka_consumer_messages_total",
			Help: "Messages handled, by outcome",
		}, []string{"topic", "result"})
		consumerLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "oracle_kafka_consumer_handle_seconds",
			Help:    "Handling time per message including retries",
			Buckets: prometheus.DefBuckets,
		}, []string{"topic"})
		consumerQueue = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "oracle_kafka_consumer_queue_depth",
			Help: "Messages waiting for a worker",
		}, []string{"topic"})

		for _, c := range []prometheus.Collector{
			producerMessages, producerBytes, producerLatency,
			consumerHandled, consumerLatency, consumerQueue,
		} {
			_ = registerer.Register(c)
		}
	})
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrSkip):
		return "skipped"
	default:
		return "error"
	}
}
