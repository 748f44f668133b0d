package usecase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"OptionsOracle/internal/domain/models"
	drepo "OptionsOracle/internal/domain/repository"
	"OptionsOracle/pkg/logger"
)

const (
	BackendKafka      = "kafka"
	BackendClickHouse = "clickhouse"
	BackendPostgres   = "postgres"
	BackendNone       = "none"
)

// EventSink accepts journal events without blocking.
type EventSink interface {
	SubmitDecision(ev *models.DecisionEvent)
	SubmitTrade(ev *models.TradeEvent)
}

type EventProcessorConfig struct {
	Backend      string
	Buffer       int
	BatchSize    int
	BatchTimeout time.Duration
}

// EventProcessor batches decision and trade events in the background and
// routes them to the configured backend. Submission never blocks the
// decision loop: a full buffer drops the event and counts it.
type EventProcessor struct {
	pub     drepo.EventPublisher
	journal drepo.Journal
	metrics drepo.Metrics
	log     *logger.Logger
	cfg     EventProcessorConfig

	decisions chan *models.DecisionEvent
	trades    chan *models.TradeEvent
	dropped   atomic.Int64

	started  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

var _ EventSink = (*EventProcessor)(nil)

func NewEventProcessor(pub drepo.EventPublisher, journal drepo.Journal, metrics drepo.Metrics, log *logger.Logger, cfg EventProcessorConfig) *EventProcessor {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 1024
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = time.Second
	}
	if cfg.Backend == "" {
		cfg.Backend = BackendNone
	}
	if log == nil {
		log = logger.Nop()
	}
	return &EventProcessor{
		pub:       pub,
		journal:   journal,
		metrics:   metrics,
		log:       log.Component("events"),
		cfg:       cfg,
		decisions: make(chan *models.DecisionEvent, cfg.Buffer),
		trades:    make(chan *models.TradeEvent, cfg.Buffer),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (p *EventProcessor) SubmitDecision(ev *models.DecisionEvent) {
	if ev == nil || p.cfg.Backend == BackendNone {
		return
	}
	select {
	case p.decisions <- ev:
	default:
		p.drop("decision")
	}
}

func (p *EventProcessor) SubmitTrade(ev *models.TradeEvent) {
	if ev == nil || p.cfg.Backend == BackendNone {
		return
	}
	select {
	case p.trades <- ev:
	default:
		p.drop("trade")
	}
}

func (p *EventProcessor) drop(kind string) {
	if n := p.dropped.Add(1); n%100 == 1 {
		p.log.Warn("event buffer full, dropping", logger.String("kind", kind), logger.Int64("dropped_total", n))
	}
	p.metrics.RecordError("event_dropped")
}

// Dropped is the number of events discarded on overflow.
func (p *EventProcessor) Dropped() int64 { return p.dropped.Load() }

// Start runs the batching loop until Stop or ctx ends.
func (p *EventProcessor) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	go p.loop(ctx)
}

func (p *EventProcessor) loop(ctx context.Context) {
	defer close(p.done)
	t := time.NewTicker(p.cfg.BatchTimeout)
	defer t.Stop()

	var decisions []*models.DecisionEvent
	var trades []*models.TradeEvent
	flush := func() {
		if len(decisions) == 0 && len(trades) == 0 {
			return
		}
		fctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := p.ProcessBatch(fctx, decisions, trades); err != nil {
			p.log.Error("event batch failed",
				logger.Int("decisions", len(decisions)),
				logger.Int("trades", len(trades)),
				logger.Error(err),
			)
		}
		decisions, trades = nil, nil
	}

	for {
		select {
		case ev := <-p.decisions:
			decisions = append(decisions, ev)
			if len(decisions)+len(trades) >= p.cfg.BatchSize {
				flush()
			}
		case ev := <-p.trades:
			trades = append(trades, ev)
			if len(decisions)+len(trades) >= p.cfg.BatchSize {
				flush()
			}
		case <-t.C:
			flush()
		case <-p.stop:
			decisions, trades = p.drain(decisions, trades)
			flush()
			return
		case <-ctx.Done():
			decisions, trades = p.drain(decisions, trades)
			flush()
			return
		}
	}
}

func (p *EventProcessor) drain(decisions []*models.DecisionEvent, trades []*models.TradeEvent) ([]*models.DecisionEvent, []*models.TradeEvent) {
	for {
		select {
		case ev := <-p.decisions:
			decisions = append(decisions, ev)
		case ev := <-p.trades:
			trades = append(trades, ev)
		default:
			return decisions, trades
		}
	}
}

// ProcessBatch writes one batch to the backend.
func (p *EventProcessor) ProcessBatch(ctx context.Context, decisions []*models.DecisionEvent, trades []*models.TradeEvent) error {
	start := time.Now()
	var err error
	switch p.cfg.Backend {
	case BackendKafka:
		err = p.publish(ctx, decisions, trades)
	case BackendClickHouse, BackendPostgres:
		err = p.store(ctx, decisions, trades)
	case BackendNone:
		return nil
	default:
		err = fmt.Errorf("unknown backend: %s", p.cfg.Backend)
	}
	if err != nil {
		p.metrics.RecordError("process_batch")
		return fmt.Errorf("process batch: %w", err)
	}
	p.metrics.RecordLatency("process_batch", time.Since(start).Seconds())
	return nil
}

func (p *EventProcessor) publish(ctx context.Context, decisions []*models.DecisionEvent, trades []*models.TradeEvent) error {
	if len(decisions) > 0 {
		if err := p.pub.PublishDecisions(ctx, decisions); err != nil {
			return err
		}
	}
	if len(trades) > 0 {
		return p.pub.PublishTrades(ctx, trades)
	}
	return nil
}

func (p *EventProcessor) store(ctx context.Context, decisions []*models.DecisionEvent, trades []*models.TradeEvent) error {
	if len(decisions) > 0 {
		if err := p.journal.StoreDecisions(ctx, decisions); err != nil {
			return err
		}
	}
	if len(trades) > 0 {
		return p.journal.StoreTrades(ctx, trades)
	}
	return nil
}

// Stop flushes pending events and waits for the loop to exit.
func (p *EventProcessor) Stop(ctx context.Context) error {
	if !p.started.Load() {
		return nil
	}
	p.stopOnce.Do(func() { close(p.stop) })
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the processor and releases the backends.
func (p *EventProcessor) Close(ctx context.Context) error {
	err := p.Stop(ctx)
	if p.pub != nil {
		_ = p.pub.Close()
	}
	if p.journal != nil {
		_ = p.journal.Close()
	}
	return err
}
