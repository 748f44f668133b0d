package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"OptionsOracle/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBus struct {
	mu        sync.Mutex
	decisions int
	trades    int
	err       error
	closed    bool
}

func (b *fakeBus) PublishDecisions(_ context.Context, evs []*models.DecisionEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.decisions += len(evs)
	return nil
}

func (b *fakeBus) PublishTrades(_ context.Context, evs []*models.TradeEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trades += len(evs)
	return nil
}

func (b *fakeBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *fakeBus) counts() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.decisions, b.trades
}

type fakeJournal struct {
	fakeBus
}

func (j *fakeJournal) Init(context.Context) error { return nil }

func (j *fakeJournal) StoreDecisions(ctx context.Context, evs []*models.DecisionEvent) error {
	return j.PublishDecisions(ctx, evs)
}

func (j *fakeJournal) StoreTrades(ctx context.Context, evs []*models.TradeEvent) error {
	return j.PublishTrades(ctx, evs)
}

func (j *fakeJournal) WinRate(context.Context, time.Time) (float64, int, error) { return 0.5, 4, nil }

func (j *fakeJournal) Health(context.Context) error { return nil }

func TestEventProcessorPublishesOnStop(t *testing.T) {
	bus := &fakeBus{}
	p := NewEventProcessor(bus, nil, &recMetrics{}, nil, EventProcessorConfig{Backend: BackendKafka, BatchTimeout: time.Hour})
	p.Start(context.Background())

	p.SubmitDecision(&models.DecisionEvent{ID: "d1"})
	p.SubmitDecision(&models.DecisionEvent{ID: "d2"})
	p.SubmitTrade(&models.TradeEvent{ID: "t1"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.Close(ctx))

	d, tr := bus.counts()
	assert.Equal(t, 2, d)
	assert.Equal(t, 1, tr)
	assert.True(t, bus.closed)
}

func TestEventProcessorFlushesFullBatch(t *testing.T) {
	j := &fakeJournal{}
	p := NewEventProcessor(nil, j, &recMetrics{}, nil, EventProcessorConfig{Backend: BackendClickHouse, BatchSize: 2, BatchTimeout: time.Hour})
	p.Start(context.Background())
	defer p.Stop(context.Background())

	p.SubmitTrade(&models.TradeEvent{ID: "t1"})
	p.SubmitTrade(&models.TradeEvent{ID: "t2"})

	assert.Eventually(t, func() bool {
		_, tr := j.counts()
		return tr == 2
	}, time.Second, 5*time.Millisecond)
}

func TestEventProcessorDropsOnOverflow(t *testing.T) {
	m := &recMetrics{}
	p := NewEventProcessor(&fakeBus{}, nil, m, nil, EventProcessorConfig{Backend: BackendKafka, Buffer: 1})

	p.SubmitDecision(&models.DecisionEvent{ID: "d1"})
	p.SubmitDecision(&models.DecisionEvent{ID: "d2"})
	p.SubmitTrade(&models.TradeEvent{ID: "t1"})
	p.SubmitTrade(&models.TradeEvent{ID: "t2"})
	assert.Equal(t, int64(2), p.Dropped())
	assert.NoError(t, p.Stop(context.Background()))
}

func TestEventProcessorNoneBackendIgnores(t *testing.T) {
	p := NewEventProcessor(nil, nil, &recMetrics{}, nil, EventProcessorConfig{Buffer: 1})
	for i := 0; i < 5; i++ {
		p.SubmitDecision(&models.DecisionEvent{})
	}
	assert.Zero(t, p.Dropped())
	assert.NoError(t, p.ProcessBatch(context.Background(), []*models.DecisionEvent{{}}, nil))
}

func TestProcessBatchErrors(t *testing.T) {
	bus := &fakeBus{err: errors.New("broker down")}
	p := NewEventProcessor(bus, nil, &recMetrics{}, nil, EventProcessorConfig{Backend: BackendKafka})
	err := p.ProcessBatch(context.Background(), []*models.DecisionEvent{{ID: "d"}}, nil)
	assert.ErrorContains(t, err, "broker down")

	p = NewEventProcessor(nil, nil, &recMetrics{}, nil, EventProcessorConfig{Backend: "s3"})
	assert.ErrorContains(t, p.ProcessBatch(context.Background(), nil, nil), "unknown backend")
}
