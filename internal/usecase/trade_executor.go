package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"OptionsOracle/internal/domain/models"
	drepo "OptionsOracle/internal/domain/repository"
	"OptionsOracle/internal/services/execution"
	"OptionsOracle/internal/services/risk"
	"OptionsOracle/internal/services/validation"
	"OptionsOracle/pkg/logger"
)

// Gate name used when the risk governor vetoes an entry the chain passed.
const gateRiskGovernor = "risk_governor"

// MarketState is the per-cycle market picture the executor acts on.
type MarketState struct {
	Now          time.Time
	Spot         float64
	Vix          float64
	HasVix       bool
	Trend        models.Trend
	Momentum     float64
	StopDistance float64
	Regime       models.Regime
	Phase        models.Phase
	// OptionLtp is the latest primary option premium; zero when unknown.
	OptionLtp float64
}

type ExecutorConfig struct {
	BaseRisk    float64
	TargetRatio float64
	LotSize     int
	// UnderlyingToken is the spot instrument the protective exit may trigger on.
	UnderlyingToken string
}

type ExecutorDeps struct {
	Orders    *execution.OrderManager
	Chain     *validation.Chain
	Positions *execution.PositionManager
	Governor  *risk.Governor
	Sizer     *execution.PositionSizer
	Armer     ExitArmer
	Events    EventSink
	Metrics   drepo.Metrics
	Log       *logger.Logger
}

// TradeExecutor turns validated decisions into orders. Position and risk
// state change only after the broker acknowledges the order.
type TradeExecutor struct {
	ExecutorDeps
	cfg ExecutorConfig

	mu      sync.Mutex
	current models.Instrument
	// pnlOffset is the operator's adjustment on top of realized P&L.
	pnlOffset float64
}

func NewTradeExecutor(deps ExecutorDeps, cfg ExecutorConfig) *TradeExecutor {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	deps.Log = deps.Log.Component("executor")
	if cfg.TargetRatio <= 0 {
		cfg.TargetRatio = execution.DefaultTargetRatio
	}
	return &TradeExecutor{ExecutorDeps: deps, cfg: cfg}
}

func sideOf(d models.Decision) models.Side {
	switch x := d.(type) {
	case models.Trade:
		return x.Side
	case models.Reverse:
		return x.To
	}
	return ""
}

// Execute runs the validation chain for d and, when every gate passes,
// performs the action. EXIT_ALL closes the open position without consulting
// the chain. It returns the journaled trade event, or nil when the action is
// not executable.
func (e *TradeExecutor) Execute(ctx context.Context, d models.Decision, m MarketState) *models.TradeEvent {
	if d == nil || !d.Action().Executable() {
		return nil
	}
	action := d.Action()
	if action == models.ActionExitAll {
		return e.closeActive(ctx, m.Spot, m.Now, "exit_all", models.TradeExitAll, action)
	}
	opens := action.IsTrade() || action == models.ActionReverse

	in := validation.Input{
		Decision:        d,
		Now:             m.Now,
		Vix:             m.Vix,
		HasVix:          m.HasVix,
		TradeCount:      e.Governor.TradeCount(),
		ActivePositions: e.openAfterClose(action),
		DailyPnl:        e.Governor.DailyPnl(),
		Spot:            m.Spot,
	}
	var strike, qty int
	if opens {
		strike = execution.SelectStrike(m.Spot, m.Trend, m.Momentum)
		qty = e.Sizer.Size(e.cfg.BaseRisk, m.StopDistance, e.cfg.LotSize)
		in.Strike = strike
		if m.OptionLtp > 0 {
			in.RequiredMargin = m.OptionLtp * float64(qty)
		}
	}

	res := e.Chain.Run(ctx, in)
	if !res.Passed {
		return e.reject(d, m, res)
	}
	if opens && (!e.Governor.AllowNow() || e.Governor.FailureConstraintBlock(m.Regime, m.Phase)) {
		return e.reject(d, m, validation.Result{Gate: gateRiskGovernor, Reason: "Risk governor veto"})
	}

	if action == models.ActionReverse && e.Positions.Active() {
		if ev := e.closeActive(ctx, m.Spot, m.Now, "reverse", models.TradeExit, action); ev != nil && ev.Kind == models.TradeFailed {
			return ev
		}
	}
	return e.open(ctx, d, m, sideOf(d), strike, qty)
}

// openAfterClose is the number of positions left open once the closing
// part of action is done.
func (e *TradeExecutor) openAfterClose(action models.Action) int {
	if action == models.ActionReverse || !e.Positions.Active() {
		return 0
	}
	return 1
}

func (e *TradeExecutor) newEvent(kind models.TradeEventKind, action models.Action, at time.Time) *models.TradeEvent {
	return &models.TradeEvent{ID: uuid.NewString(), At: at, Kind: kind, Action: action}
}

func (e *TradeExecutor) reject(d models.Decision, m MarketState, res validation.Result) *models.TradeEvent {
	e.Metrics.RecordGateRejection(res.Gate)
	e.Log.Info("decision rejected",
		logger.String("action", string(d.Action())),
		logger.Int("step", res.FailedStep),
		logger.String("gate", res.Gate),
		logger.String("reason", res.Reason),
	)
	ev := e.newEvent(models.TradeRejected, d.Action(), m.Now)
	ev.Side = sideOf(d)
	ev.Price = m.Spot
	ev.FailedStep = res.FailedStep
	ev.Gate = res.Gate
	ev.Reason = res.Reason
	e.Events.SubmitTrade(ev)
	return ev
}

func (e *TradeExecutor) fail(action models.Action, side models.Side, m MarketState, symbol string, err error) *models.TradeEvent {
	e.Metrics.RecordOrder("failed")
	e.Metrics.RecordError("execution")
	e.Log.Error("order failed",
		logger.String("action", string(action)),
		logger.String("symbol", symbol),
		logger.Error(err),
	)
	ev := e.newEvent(models.TradeFailed, action, m.Now)
	ev.Side = side
	ev.Symbol = symbol
	ev.Price = m.Spot
	ev.Reason = err.Error()
	e.Events.SubmitTrade(ev)
	return ev
}

func (e *TradeExecutor) open(ctx context.Context, d models.Decision, m MarketState, side models.Side, strike, qty int) *models.TradeEvent {
	action := d.Action()
	inst, err := e.Orders.Resolve(ctx, strike, side, m.Now)
	if err != nil {
		return e.fail(action, side, m, "", err)
	}
	if inst.LotSize > 0 && qty%inst.LotSize != 0 {
		lots := qty / inst.LotSize
		if lots < 1 {
			lots = 1
		}
		qty = lots * inst.LotSize
	}
	ack, err := e.Orders.Buy(ctx, inst, qty)
	if err != nil {
		return e.fail(action, side, m, inst.Symbol, err)
	}

	pos := e.Positions.Enter(m.Spot, m.StopDistance, qty, side, e.cfg.TargetRatio, inst.Symbol, m.Now)
	e.Governor.RecordTrade()
	e.mu.Lock()
	e.current = inst
	e.mu.Unlock()
	e.Metrics.RecordOrder("filled")
	e.Metrics.RecordPosition(true, e.Governor.DailyPnl())

	e.Log.Info("position opened",
		logger.String("order_id", ack.OrderID),
		logger.String("symbol", inst.Symbol),
		logger.String("side", string(side)),
		logger.Int("qty", qty),
		logger.Float("entry", pos.EntryPrice),
		logger.Float("stop_loss", pos.StopLoss),
		logger.Float("target", pos.Target),
	)

	exit := models.ProtectiveExit{
		ParentOrderID:    ack.OrderID,
		Instrument:       inst,
		Qty:              qty,
		UnderlyingToken:  e.cfg.UnderlyingToken,
		UnderlyingStop:   pos.StopLoss,
		UnderlyingTarget: pos.Target,
	}
	if m.OptionLtp > 0 {
		exit.StopLoss, exit.Target = execution.PremiumLevels(m.OptionLtp, m.Spot, inst.Strike,
			pos.EntryPrice-pos.StopLoss, pos.Target-pos.EntryPrice)
	}
	if err := e.Armer.Arm(ctx, exit); err != nil {
		e.Metrics.RecordError("protective_exit")
		e.Log.Warn("protective exit not armed", logger.String("order_id", ack.OrderID), logger.Error(err))
	}

	ev := e.newEvent(models.TradeEntry, action, m.Now)
	ev.Side = side
	ev.Symbol = inst.Symbol
	ev.OrderID = ack.OrderID
	ev.Price = pos.EntryPrice
	ev.Qty = qty
	ev.StopLoss = pos.StopLoss
	ev.Target = pos.Target
	ev.Reason = d.Info().Reasoning
	e.Events.SubmitTrade(ev)
	return ev
}

// Manage trails the stop and closes the position when price reaches the
// stop or the target. It returns the exit event, or nil.
func (e *TradeExecutor) Manage(ctx context.Context, price float64, now time.Time) *models.TradeEvent {
	if !e.Positions.Active() {
		return nil
	}
	e.Positions.Trail(price)
	reason, ok := e.Positions.ExitReason(price)
	if !ok {
		return nil
	}
	return e.closeActive(ctx, price, now, reason, models.TradeExit, models.ActionHold)
}

// ForceExit closes the open position regardless of levels. Used by the
// operator EXIT_ALL command, which bypasses the validation chain.
func (e *TradeExecutor) ForceExit(ctx context.Context, price float64, now time.Time) (*models.TradeEvent, error) {
	if !e.Positions.Active() {
		return nil, ErrNoPosition
	}
	ev := e.closeActive(ctx, price, now, "exit_all", models.TradeExitAll, models.ActionExitAll)
	if ev == nil {
		return nil, ErrNoPosition
	}
	if ev.Kind == models.TradeFailed {
		return ev, errors.New(ev.Reason)
	}
	return ev, nil
}

// ErrNoPosition is returned when an exit is requested with nothing open.
var ErrNoPosition = errors.New("no open position")

func (e *TradeExecutor) closeActive(ctx context.Context, price float64, now time.Time, reason string, kind models.TradeEventKind, action models.Action) *models.TradeEvent {
	pos := e.Positions.Position()
	m := MarketState{Now: now, Spot: price}
	if !pos.Active {
		return nil
	}
	e.mu.Lock()
	inst := e.current
	e.mu.Unlock()

	var orderID string
	if inst.Token != "" {
		ack, err := e.Orders.Sell(ctx, inst, pos.Qty)
		if err != nil {
			return e.fail(action, pos.Side, m, inst.Symbol, fmt.Errorf("close %s: %w", reason, err))
		}
		orderID = ack.OrderID
	}

	exit, ok := e.Positions.Close(price, reason)
	if !ok {
		return nil
	}
	e.mu.Lock()
	e.current = models.Instrument{}
	pnl := e.Positions.RealizedPnl() + e.pnlOffset
	e.mu.Unlock()
	e.Governor.UpdateDailyPnl(pnl)
	e.Metrics.RecordOrder("closed")
	e.Metrics.RecordPosition(false, pnl)

	e.Log.Info("position closed",
		logger.String("reason", reason),
		logger.String("symbol", pos.Symbol),
		logger.Float("exit", price),
		logger.Float("pnl", exit.Pnl),
		logger.Float("daily_pnl", pnl),
	)
	if e.Governor.CircuitBreakerBreached(pnl) {
		e.Log.Warn("daily loss limit reached, new entries blocked", logger.Float("daily_pnl", pnl))
	}

	ev := e.newEvent(kind, action, now)
	ev.Side = exit.Side
	ev.Symbol = pos.Symbol
	ev.OrderID = orderID
	ev.Price = price
	ev.Qty = exit.Qty
	ev.StopLoss = pos.StopLoss
	ev.Target = pos.Target
	ev.Pnl = exit.Pnl
	ev.Reason = reason
	e.Events.SubmitTrade(ev)
	return ev
}

// SetDailyPnl overrides the governor's daily P&L. Later exits add their
// realized P&L on top of the value set here.
func (e *TradeExecutor) SetDailyPnl(pnl float64) {
	e.mu.Lock()
	e.pnlOffset = pnl - e.Positions.RealizedPnl()
	e.mu.Unlock()
	e.Governor.UpdateDailyPnl(pnl)
	e.Metrics.RecordPosition(e.Positions.Active(), pnl)
}

// ResetDay starts a new trading day for the governor and the realized P&L.
func (e *TradeExecutor) ResetDay() {
	e.mu.Lock()
	e.pnlOffset = 0
	e.mu.Unlock()
	e.Positions.ResetDay()
	e.Governor.ResetDay()
}

func (e *TradeExecutor) Position() models.Position { return e.Positions.Position() }

func (e *TradeExecutor) Risk() models.RiskState { return e.Governor.State() }

func (e *TradeExecutor) BreakerState() string { return e.Orders.BreakerState() }
