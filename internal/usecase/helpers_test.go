package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"OptionsOracle/internal/domain/models"
	domsvc "OptionsOracle/internal/domain/service"
	"OptionsOracle/internal/service/snapshot"
	"OptionsOracle/internal/services/contextrisk"
	"OptionsOracle/internal/services/decision"
	"OptionsOracle/internal/services/execution"
	"OptionsOracle/internal/services/features"
	"OptionsOracle/internal/services/risk"
	"OptionsOracle/internal/services/validation"
	"OptionsOracle/pkg/metrics"
)

var ist = time.FixedZone("IST", 5*3600+1800)

// midday is a Wednesday inside the session, outside the opening window.
var midday = time.Date(2025, 1, 8, 11, 0, 0, 0, ist)

type recMetrics struct {
	metrics.Noop
	mu         sync.Mutex
	rejections []string
	orders     []string
	ticks      map[string]int
	decisions  int
}

func (m *recMetrics) RecordGateRejection(gate string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejections = append(m.rejections, gate)
}

func (m *recMetrics) RecordOrder(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders = append(m.orders, status)
}

func (m *recMetrics) RecordTick(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ticks == nil {
		m.ticks = make(map[string]int)
	}
	m.ticks[kind]++
}

func (m *recMetrics) RecordDecision(string, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions++
}

type memEvents struct {
	mu        sync.Mutex
	decisions []*models.DecisionEvent
	trades    []*models.TradeEvent
}

func (e *memEvents) SubmitDecision(ev *models.DecisionEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.decisions = append(e.decisions, ev)
}

func (e *memEvents) SubmitTrade(ev *models.TradeEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.trades = append(e.trades, ev)
}

func (e *memEvents) tradeKinds() []models.TradeEventKind {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.TradeEventKind, len(e.trades))
	for i, t := range e.trades {
		out[i] = t.Kind
	}
	return out
}

type stubBroker struct {
	mu        sync.Mutex
	submitErr error
	sellErr   error
	orders    []models.OrderRequest
	exits     []models.ProtectiveExit
}

func (b *stubBroker) ResolveInstrument(_ context.Context, index string, strike int, side models.Side, expiry time.Time) (models.Instrument, error) {
	return models.Instrument{
		Symbol:  execution.OptionSymbol(index, expiry, strike, side),
		Token:   "T" + string(side),
		Strike:  strike,
		Side:    side,
		Expiry:  expiry,
		LotSize: 75,
	}, nil
}

func (b *stubBroker) SubmitOrder(_ context.Context, req models.OrderRequest) (models.OrderAck, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if req.TransactionType == models.TransactionSell && b.sellErr != nil {
		return models.OrderAck{}, b.sellErr
	}
	if req.TransactionType == models.TransactionBuy && b.submitErr != nil {
		return models.OrderAck{}, b.submitErr
	}
	b.orders = append(b.orders, req)
	return models.OrderAck{OrderID: "A" + string(rune('0'+len(b.orders))), Status: models.OrderStatusFilled}, nil
}

func (b *stubBroker) AvailableMargin(context.Context) (float64, error) {
	return 0, domsvc.ErrMarginUnknown
}

func (b *stubBroker) PlaceProtectiveExit(_ context.Context, exit models.ProtectiveExit) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.exits = append(b.exits, exit)
	return "X1", nil
}

func (b *stubBroker) transactions() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.orders))
	for i, o := range b.orders {
		out[i] = o.TransactionType
	}
	return out
}

type recArmer struct {
	exits []models.ProtectiveExit
	err   error
}

func (a *recArmer) Arm(_ context.Context, exit models.ProtectiveExit) error {
	a.exits = append(a.exits, exit)
	return a.err
}

type harness struct {
	broker  *stubBroker
	events  *memEvents
	metrics *recMetrics
	armer   *recArmer
	exec    *TradeExecutor
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{broker: &stubBroker{}, events: &memEvents{}, metrics: &recMetrics{}, armer: &recArmer{}}
	ctxRisk := contextrisk.New(contextrisk.DefaultConfig())
	h.exec = NewTradeExecutor(ExecutorDeps{
		Orders:    execution.NewOrderManager(h.broker, nil, nil, execution.OrderConfig{Index: "NIFTY", LotSize: 75, Location: ist}),
		Chain:     validation.NewChain(ctxRisk),
		Positions: execution.NewPositionManager(),
		Governor:  risk.NewGovernor(risk.DefaultLimits()),
		Sizer:     execution.NewPositionSizer(200000),
		Armer:     h.armer,
		Events:    h.events,
		Metrics:   h.metrics,
	}, ExecutorConfig{BaseRisk: 0.01, TargetRatio: 1.5, LotSize: 75, UnderlyingToken: "26000"})
	return h
}

func trade(side models.Side, conf int, at time.Time) models.Decision {
	return models.Trade{Meta: models.Meta{Confidence: conf, Reasoning: "test", Timestamp: at}, Side: side}
}

func marketAt(now time.Time, spot float64) MarketState {
	return MarketState{
		Now:          now,
		Spot:         spot,
		Vix:          15,
		HasVix:       true,
		Trend:        models.TrendUp,
		StopDistance: 30,
		Regime:       models.RegimePanic,
		Phase:        models.PhaseMidday,
	}
}

func alwaysTrade(side models.Side) *decision.Engine {
	return decision.NewEngine(decision.WithRules(decision.Rule{
		Name: "always",
		Match: func(in decision.Inputs) (models.Decision, bool) {
			return trade(side, 72, in.Now), true
		},
	}))
}

func newLoop(t *testing.T, h *harness, d *decision.Engine) (*OracleLoop, *snapshot.MarketSnapshot, *StatusBoard) {
	t.Helper()
	snap := snapshot.New()
	board := NewStatusBoard(nil, time.Second, nil)
	loop := NewOracleLoop(LoopDeps{
		Snapshot: snap,
		Features: features.NewEngine(),
		Decider:  d,
		Context:  contextrisk.New(contextrisk.DefaultConfig()),
		Executor: h.exec,
		Events:   h.events,
		Board:    board,
		Metrics:  h.metrics,
	}, LoopConfig{PollInterval: 5 * time.Millisecond})
	return loop, snap, board
}

var errGateway = errors.New("gateway timeout")
