package models

import "time"

// Side is the option type held: call or put.
type Side string

const (
	SideCE Side = "CE"
	SidePE Side = "PE"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideCE {
		return SidePE
	}
	return SideCE
}

// Position is a single directional position with protective levels.
// Prices are spot-proxy levels, not option premiums.
type Position struct {
	Active     bool      `json:"active"`
	Side       Side      `json:"side,omitempty"`
	EntryPrice float64   `json:"entry_price"`
	StopLoss   float64   `json:"stop_loss"`
	Target     float64   `json:"target"`
	Qty        int       `json:"qty"`
	Symbol     string    `json:"symbol,omitempty"`
	OpenedAt   time.Time `json:"opened_at,omitempty"`
}

// RiskState is a read view of the daily risk counters.
type RiskState struct {
	TradeCount     int     `json:"trade_count"`
	DailyPnl       float64 `json:"daily_pnl"`
	MaxTrades      int     `json:"max_trades"`
	MaxDailyLoss   float64 `json:"max_daily_loss"`
	CircuitBreaker bool    `json:"circuit_breaker"`
	Allowed        bool    `json:"allowed"`
}
