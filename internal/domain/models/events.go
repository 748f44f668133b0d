package models

import "time"

// TradeEventKind enumerates journaled trade lifecycle events.
type TradeEventKind string

const (
	TradeEntry    TradeEventKind = "ENTRY"
	TradeExit     TradeEventKind = "EXIT"
	TradeExitAll  TradeEventKind = "EXIT_ALL"
	TradeRejected TradeEventKind = "REJECTED"
	TradeFailed   TradeEventKind = "FAILED"
)

// DecisionEvent records one decision engine evaluation.
type DecisionEvent struct {
	ID         string    `json:"id"`
	At         time.Time `json:"at"`
	Action     Action    `json:"action"`
	Confidence int       `json:"confidence"`
	Reasoning  string    `json:"reasoning"`
	Rule       string    `json:"rule"`
	Fallback   bool      `json:"fallback"`
	Score      float64   `json:"score"`
	Context    Trend     `json:"context"`
	Regime     Regime    `json:"regime"`
	Phase      Phase     `json:"phase"`
	Spot       float64   `json:"spot"`
	Vix        float64   `json:"vix"`
}

// TradeEvent records a position change or a rejected attempt.
type TradeEvent struct {
	ID         string         `json:"id"`
	At         time.Time      `json:"at"`
	Kind       TradeEventKind `json:"kind"`
	Action     Action         `json:"action"`
	Side       Side           `json:"side,omitempty"`
	Symbol     string         `json:"symbol,omitempty"`
	OrderID    string         `json:"order_id,omitempty"`
	Price      float64        `json:"price"`
	Qty        int            `json:"qty"`
	StopLoss   float64        `json:"stop_loss"`
	Target     float64        `json:"target"`
	Pnl        float64        `json:"pnl"`
	FailedStep int            `json:"failed_step,omitempty"`
	Gate       string         `json:"gate,omitempty"`
	Reason     string         `json:"reason,omitempty"`
}

// OracleStatus is the per-cycle summary exposed to operators.
type OracleStatus struct {
	At            time.Time     `json:"at"`
	MarketOpen    bool          `json:"market_open"`
	WaitingData   bool          `json:"waiting_data"`
	Context       Trend         `json:"context"`
	Participation float64       `json:"participation"`
	Vix           *float64      `json:"vix"`
	VolStatus     VolStatus     `json:"vol_status"`
	Score         float64       `json:"score"`
	Regime        Regime        `json:"regime"`
	Phase         Phase         `json:"phase"`
	VixAbovePanic bool          `json:"vix_above_panic"`
	Spot          *float64      `json:"spot"`
	Position      Position      `json:"position"`
	Risk          RiskState     `json:"risk"`
	LastDecision  *DecisionView `json:"last_decision,omitempty"`
}
