package repository

import (
	"context"

	"OptionsOracle/internal/domain/models"
	domrepo "OptionsOracle/internal/domain/repository"
	pkgkafka "OptionsOracle/pkg/kafka"
)

// BatchProducer is the part of the Kafka producer the publisher uses.
type BatchProducer interface {
	PublishBatch(ctx context.Context, topic string, msgs []pkgkafka.Message) error
	Close() error
}

var _ BatchProducer = (*pkgkafka.Producer)(nil)

// KafkaPublisher implements EventPublisher. Decisions are keyed by index
// so they stay ordered on one partition; trades are keyed by contract.
type KafkaPublisher struct {
	producer       BatchProducer
	decisionsTopic string
	tradesTopic    string
	index          string
}

var _ domrepo.EventPublisher = (*KafkaPublisher)(nil)

func NewKafkaPublisher(producer BatchProducer, decisionsTopic, tradesTopic, index string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, decisionsTopic: decisionsTopic, tradesTopic: tradesTopic, index: index}
}

func (p *KafkaPublisher) PublishDecisions(ctx context.Context, events []*models.DecisionEvent) error {
	msgs := make([]pkgkafka.Message, 0, len(events))
	for _, e := range events {
		if e != nil {
			msgs = append(msgs, pkgkafka.Message{Key: []byte(p.index), Value: e})
		}
	}
	return p.producer.PublishBatch(ctx, p.decisionsTopic, msgs)
}

func (p *KafkaPublisher) PublishTrades(ctx context.Context, events []*models.TradeEvent) error {
	msgs := make([]pkgkafka.Message, 0, len(events))
	for _, e := range events {
		if e == nil {
			continue
		}
		key := e.Symbol
		if key == "" {
			key = p.index
		}
		msgs = append(msgs, pkgkafka.Message{Key: []byte(key), Value: e})
	}
	return p.producer.PublishBatch(ctx, p.tradesTopic, msgs)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
