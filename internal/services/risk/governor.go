package risk

import (
	"sync"

	"OptionsOracle/internal/domain/models"
)

type Limits struct {
	MaxTrades     int
	MaxDailyLoss  float64
	MinWinRatePct float64
}

func DefaultLimits() Limits {
	return Limits{MaxTrades: 1000, MaxDailyLoss: 300000, MinWinRatePct: 40}
}

// Governor enforces the daily trade count and loss limits. The trade count
// only grows within a trading day; ResetDay starts a new day.
type Governor struct {
	mu       sync.RWMutex
	limits   Limits
	trades   int
	dailyPnl float64
}

func NewGovernor(l Limits) *Governor {
	return &Governor{limits: l}
}

// Allow reports whether a new trade may be opened with the given P&L.
func (g *Governor) Allow(dailyPnl float64) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.trades >= g.limits.MaxTrades {
		return false
	}
	return !g.CircuitBreakerBreached(dailyPnl)
}

// AllowNow is Allow with the governor's own running P&L.
func (g *Governor) AllowNow() bool {
	return g.Allow(g.DailyPnl())
}

func (g *Governor) RecordTrade() {
	g.mu.Lock()
	g.trades++
	g.mu.Unlock()
}

// UpdateDailyPnl sets the running daily P&L.
func (g *Governor) UpdateDailyPnl(pnl float64) {
	g.mu.Lock()
	g.dailyPnl = pnl
	g.mu.Unlock()
}

// CircuitBreakerBreached reports whether pnl is at or beyond the daily loss
// limit.
func (g *Governor) CircuitBreakerBreached(pnl float64) bool {
	return pnl <= -g.limits.MaxDailyLoss
}

// FailureConstraintBlock is the hook for blocking entries in conditions with
// a poor historical win rate. It currently never blocks.
func (g *Governor) FailureConstraintBlock(_ models.Regime, _ models.Phase) bool {
	return false
}

// ResetDay clears the counters at the trading-day boundary.
func (g *Governor) ResetDay() {
	g.mu.Lock()
	g.trades, g.dailyPnl = 0, 0
	g.mu.Unlock()
}

func (g *Governor) TradeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.trades
}

func (g *Governor) DailyPnl() float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.dailyPnl
}

func (g *Governor) Limits() Limits { return g.limits }

// State is a read view for operators.
func (g *Governor) State() models.RiskState {
	g.mu.RLock()
	defer g.mu.RUnlock()
	breached := g.CircuitBreakerBreached(g.dailyPnl)
	return models.RiskState{
		TradeCount:     g.trades,
		DailyPnl:       g.dailyPnl,
		MaxTrades:      g.limits.MaxTrades,
		MaxDailyLoss:   g.limits.MaxDailyLoss,
		CircuitBreaker: breached,
		Allowed:        g.trades < g.limits.MaxTrades && !breached,
	}
}
