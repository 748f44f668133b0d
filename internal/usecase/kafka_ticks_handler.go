package usecase

import (
	"context"
	"fmt"
	"time"

	drepo "OptionsOracle/internal/domain/repository"
	"OptionsOracle/internal/service/feed"
	mid "OptionsOracle/internal/middleware"
	pkgkafka "OptionsOracle/pkg/kafka"
)

// KafkaTicksHandler applies ticks replayed from a Kafka topic. Payloads use
// the same frame layout as the live feed.
type KafkaTicksHandler struct {
	topic   string
	pipe    *mid.RealtimePipeline
	metrics drepo.Metrics
	now     func() time.Time
}

func NewKafkaTicksHandler(topic string, pipe *mid.RealtimePipeline, metrics drepo.Metrics) *KafkaTicksHandler {
	return &KafkaTicksHandler{topic: topic, pipe: pipe, metrics: metrics, now: time.Now}
}

func (h *KafkaTicksHandler) Topic() string { return h.topic }

func (h *KafkaTicksHandler) Handle(ctx context.Context, b []byte) error {
	ticks, err := feed.DecodeFrame(b)
	if err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("decode tick frame: %w: %w", pkgkafka.ErrSkip, err)
	}
	for _, t := range ticks {
		if !t.ExchangeTime.IsZero() {
			h.metrics.RecordLatency("ingest_e2e_seconds", h.now().Sub(t.ExchangeTime).Seconds())
		}
		// Throttled or buffered ticks are not redelivered.
		_ = h.pipe.Process(ctx, t)
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaTicksHandler)(nil)
