package models

import "time"

// Action is the discriminator of a Decision.
type Action string

const (
	ActionTradeCE Action = "TRADE_CE"
	ActionTradePE Action = "TRADE_PE"
	ActionHold    Action = "HOLD"
	ActionExitAll Action = "EXIT_ALL"
	ActionReverse Action = "REVERSE"
)

// Executable reports whether the action may pass the AI gate.
func (a Action) Executable() bool {
	switch a {
	case ActionTradeCE, ActionTradePE, ActionExitAll, ActionReverse:
		return true
	default:
		return false
	}
}

// IsTrade reports whether the action opens a new position.
func (a Action) IsTrade() bool {
	return a == ActionTradeCE || a == ActionTradePE
}

// StrikeGuidance is advisory metadata for strike selection.
type StrikeGuidance struct {
	DeltaMin float64 `json:"delta_min"`
	IVMaxPct float64 `json:"iv_max_pct"`
}

// DefaultGuidance is attached to every decision unless configured otherwise.
var DefaultGuidance = StrikeGuidance{DeltaMin: 0.25, IVMaxPct: 25}

// Meta carries the fields shared by every decision variant.
type Meta struct {
	Confidence int
	Reasoning  string
	Guidance   StrikeGuidance
	Timestamp  time.Time
}

// Info returns the shared metadata.
func (m Meta) Info() Meta { return m }

func (Meta) sealed() {}

// Decision is a closed set of variants: Trade, Hold, ExitAll and Reverse.
// Values are immutable once built.
type Decision interface {
	Action() Action
	Info() Meta
	sealed()
}

// Trade opens a long option position on Side.
type Trade struct {
	Meta
	Side Side
}

func (t Trade) Action() Action {
	if t.Side == SidePE {
		return ActionTradePE
	}
	return ActionTradeCE
}

// Hold keeps the current state. Fallback marks a hold produced by the
// decision engine's internal-fault path; Placeholder marks the synthetic
// hold used between decision cadence ticks.
type Hold struct {
	Meta
	Fallback    bool
	Placeholder bool
}

func (Hold) Action() Action { return ActionHold }

// ExitAll closes every open position.
type ExitAll struct {
	Meta
}

func (ExitAll) Action() Action { return ActionExitAll }

// Reverse flips the open position to To.
type Reverse struct {
	Meta
	To Side
}

func (Reverse) Action() Action { return ActionReverse }

var (
	_ Decision = Trade{}
	_ Decision = Hold{}
	_ Decision = ExitAll{}
	_ Decision = Reverse{}
)

// DecisionView is the flat, serializable form of a Decision.
type DecisionView struct {
	Action     Action         `json:"action"`
	Side       Side           `json:"side,omitempty"`
	Confidence int            `json:"confidence"`
	Reasoning  string         `json:"reasoning"`
	Guidance   StrikeGuidance `json:"strike_guidance"`
	Timestamp  time.Time      `json:"timestamp"`
	Fallback   bool           `json:"fallback,omitempty"`
}

// ViewOf flattens d. A nil decision yields a nil view.
func ViewOf(d Decision) *DecisionView {
	if d == nil {
		return nil
	}
	m := d.Info()
	v := &DecisionView{
		Action:     d.Action(),
		Confidence: m.Confidence,
		Reasoning:  m.Reasoning,
		Guidance:   m.Guidance,
		Timestamp:  m.Timestamp,
	}
	switch x := d.(type) {
	case Trade:
		v.Side = x.Side
	case Reverse:
		v.Side = x.To
	case Hold:
		v.Fallback = x.Fallback
	}
	return v
}
