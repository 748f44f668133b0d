package execution

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"OptionsOracle/internal/domain/models"
)

const DefaultTargetRatio = 1.5

// Exit describes a closed position.
type Exit struct {
	Side   models.Side
	Entry  float64
	Price  float64
	Qty    int
	Pnl    float64
	Reason string
}

type PositionOption func(*PositionManager)

// WithTrailPct sets how far below (CE) or above (PE) the price the
// trailing stop follows. Default 1%.
func WithTrailPct(pct float64) PositionOption {
	return func(m *PositionManager) { m.trailPct = pct }
}

// PositionManager tracks at most one position with ratcheting stop and
// fixed target. Levels are spot-proxy prices.
type PositionManager struct {
	mu       sync.RWMutex
	pos      models.Position
	trailPct float64
	realized decimal.Decimal
}

func NewPositionManager(opts ...PositionOption) *PositionManager {
	m := &PositionManager{trailPct: 0.01}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Enter opens a position. A CE stop sits stopDistance below price with the
// target targetRatio stop-distances above; a PE mirrors that.
func (m *PositionManager) Enter(price, stopDistance float64, qty int, side models.Side, targetRatio float64, symbol string, at time.Time) models.Position {
	if targetRatio <= 0 {
		targetRatio = DefaultTargetRatio
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p := models.Position{
		Active:     true,
		Side:       side,
		EntryPrice: price,
		Qty:        qty,
		Symbol:     symbol,
		OpenedAt:   at,
	}
	if side == models.SidePE {
		p.StopLoss = price + stopDistance
		p.Target = price - stopDistance*targetRatio
	} else {
		p.StopLoss = price - stopDistance
		p.Target = price + stopDistance*targetRatio
	}
	m.pos = p
	return p
}

// Trail ratchets the stop in the position's favour. It never loosens.
func (m *PositionManager) Trail(price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.pos.Active {
		return
	}
	if m.pos.Side == models.SidePE {
		if sl := price * (1 + m.trailPct); sl < m.pos.StopLoss {
			m.pos.StopLoss = sl
		}
		return
	}
	if sl := price * (1 - m.trailPct); sl > m.pos.StopLoss {
		m.pos.StopLoss = sl
	}
}

// ExitCheck closes the position when price touches the stop or the target.
// It returns false once the position is inactive.
func (m *PositionManager) ExitCheck(price float64) (Exit, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reason, ok := m.exitReason(price)
	if !ok {
		return Exit{}, false
	}
	return m.close(price, reason), true
}

// ExitReason reports whether price touches the stop or the target without
// closing the position.
func (m *PositionManager) ExitReason(price float64) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.exitReason(price)
}

func (m *PositionManager) exitReason(price float64) (string, bool) {
	if !m.pos.Active {
		return "", false
	}
	var reason string
	if m.pos.Side == models.SidePE {
		switch {
		case price >= m.pos.StopLoss:
			reason = "stop_loss"
		case m.pos.Target != 0 && price <= m.pos.Target:
			reason = "target"
		}
	} else {
		switch {
		case price <= m.pos.StopLoss:
			reason = "stop_loss"
		case m.pos.Target != 0 && price >= m.pos.Target:
			reason = "target"
		}
	}
	return reason, reason != ""
}

// Close closes the active position at price with the given reason.
func (m *PositionManager) Close(price float64, reason string) (Exit, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.pos.Active {
		return Exit{}, false
	}
	return m.close(price, reason), true
}

// ForceExit closes the position regardless of levels.
func (m *PositionManager) ForceExit(price float64) (Exit, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.pos.Active {
		return Exit{}, false
	}
	return m.close(price, "exit_all"), true
}

func (m *PositionManager) close(price float64, reason string) Exit {
	move := decimal.NewFromFloat(price).Sub(decimal.NewFromFloat(m.pos.EntryPrice))
	if m.pos.Side == models.SidePE {
		move = move.Neg()
	}
	pnl := move.Mul(decimal.NewFromInt(int64(m.pos.Qty)))
	m.realized = m.realized.Add(pnl)
	m.pos.Active = false
	return Exit{
		Side:   m.pos.Side,
		Entry:  m.pos.EntryPrice,
		Price:  price,
		Qty:    m.pos.Qty,
		Pnl:    pnl.InexactFloat64(),
		Reason: reason,
	}
}

func (m *PositionManager) Active() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pos.Active
}

func (m *PositionManager) Position() models.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pos
}

// RealizedPnl is the cumulative closed P&L since the last reset.
func (m *PositionManager) RealizedPnl() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.realized.InexactFloat64()
}

// ResetDay clears the realized P&L. An open position is kept.
func (m *PositionManager) ResetDay() {
	m.mu.Lock()
	m.realized = decimal.Zero
	m.mu.Unlock()
}
