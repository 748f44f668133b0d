package repository

import (
	"context"
	"time"

	"OptionsOracle/internal/domain/models"
)

// TickStream is a live source of market ticks.
type TickStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Tick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// EventPublisher ships decision and trade events to a message bus.
type EventPublisher interface {
	PublishDecisions(ctx context.Context, events []*models.DecisionEvent) error
	PublishTrades(ctx context.Context, events []*models.TradeEvent) error
	Close() error
}

// Journal persists decision and trade events for later analysis.
type Journal interface {
	Init(ctx context.Context) error
	StoreDecisions(ctx context.Context, events []*models.DecisionEvent) error
	StoreTrades(ctx context.Context, events []*models.TradeEvent) error
	WinRate(ctx context.Context, since time.Time) (float64, int, error)
	Health(ctx context.Context) error
	Close() error
}

// StateStore keeps the latest operator-facing state outside the process.
type StateStore interface {
	SaveStatus(ctx context.Context, s *models.OracleStatus) error
	LoadStatus(ctx context.Context) (*models.OracleStatus, error)
}

type Metrics interface {
	RecordTick(kind string)
	RecordDecision(action string, rule string, fallback bool)
	RecordGateRejection(gate string)
	RecordScore(score float64)
	RecordOrder(status string)
	RecordPosition(active bool, dailyPnl float64)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
