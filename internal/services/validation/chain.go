package validation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"OptionsOracle/internal/domain/models"
	domsvc "OptionsOracle/internal/domain/service"
)

// RiskContext supplies the adaptive thresholds and the session clock.
type RiskContext interface {
	Regime(vix float64, ok bool) models.Regime
	RequiredConfidence(r models.Regime) int
	Phase(now time.Time) models.Phase
	ThresholdPenalty(p models.Phase) int
	IsMarketHours(now time.Time) bool
}

// MarginChecker reports free margin. An error means the margin is unknown.
type MarginChecker interface {
	AvailableMargin(ctx context.Context) (float64, error)
}

// Limits are the static thresholds of the chain.
type Limits struct {
	MaxTrades         int
	MaxPositions      int
	MaxDailyLoss      float64
	MaxDecisionAge    time.Duration
	MaxStrikeDistance float64
}

func DefaultLimits() Limits {
	return Limits{
		MaxTrades:         1000,
		MaxPositions:      1,
		MaxDailyLoss:      300000,
		MaxDecisionAge:    120 * time.Second,
		MaxStrikeDistance: 200,
	}
}

// Input is the state one validation run inspects.
type Input struct {
	Decision        models.Decision
	Now             time.Time
	Vix             float64
	HasVix          bool
	TradeCount      int
	ActivePositions int
	DailyPnl        float64
	Strike          int
	Spot            float64
	// RequiredMargin is the estimated capital the entry needs; zero skips the margin comparison.
	RequiredMargin float64
}

// Gate is one named step. Applies restricts the gate to some inputs; a nil
// Applies means the gate always runs.
type Gate struct {
	Step    int
	Name    string
	Applies func(in Input) bool
	Check   func(ctx context.Context, in Input) (bool, string)
}

// Result of a run. FailedStep is 0 when every gate passed.
type Result struct {
	Passed     bool   `json:"passed"`
	FailedStep int    `json:"failed_step"`
	Gate       string `json:"gate,omitempty"`
	Reason     string `json:"reason"`
}

type Option func(*Chain)

// WithMarginChecker enables the margin comparison of gate 3.
func WithMarginChecker(m MarginChecker) Option {
	return func(c *Chain) { c.margin = m }
}

func WithLimits(l Limits) Option {
	return func(c *Chain) { c.limits = l }
}

// Chain runs the pre-trade gates in order and stops at the first failure.
// Running the chain never mutates anything.
type Chain struct {
	risk   RiskContext
	margin MarginChecker
	limits Limits
	gates  []Gate
}

func NewChain(risk RiskContext, opts ...Option) *Chain {
	c := &Chain{risk: risk, limits: DefaultLimits()}
	for _, opt := range opts {
		opt(c)
	}
	c.gates = []Gate{
		{Step: 1, Name: "ai_gating", Check: c.aiGating},
		{Step: 2, Name: "strike_alignment", Applies: isTrade, Check: c.strikeAlignment},
		{Step: 3, Name: "margin", Check: c.marginCheck},
		{Step: 4, Name: "position_limits", Check: c.positionLimits},
		{Step: 5, Name: "market_hours", Check: c.marketHours},
		{Step: 6, Name: "circuit_breaker", Check: c.circuitBreaker},
	}
	return c
}

// Gates returns the gate names in evaluation order.
func (c *Chain) Gates() []string {
	out := make([]string, len(c.gates))
	for i, g := range c.gates {
		out[i] = g.Name
	}
	return out
}

func (c *Chain) Run(ctx context.Context, in Input) Result {
	for _, g := range c.gates {
		if g.Applies != nil && !g.Applies(in) {
			continue
		}
		if ok, reason := g.Check(ctx, in); !ok {
			return Result{Passed: false, FailedStep: g.Step, Gate: g.Name, Reason: reason}
		}
	}
	return Result{Passed: true, Reason: "OK"}
}

func isTrade(in Input) bool {
	return in.Decision != nil && in.Decision.Action().IsTrade()
}

func (c *Chain) aiGating(_ context.Context, in Input) (bool, string) {
	if in.Decision == nil {
		return false, "No decision"
	}
	meta := in.Decision.Info()
	if in.Now.Sub(meta.Timestamp) > c.limits.MaxDecisionAge {
		return false, "Decision stale"
	}
	threshold := c.risk.RequiredConfidence(c.risk.Regime(in.Vix, in.HasVix)) +
		c.risk.ThresholdPenalty(c.risk.Phase(in.Now))
	if meta.Confidence < threshold {
		return false, fmt.Sprintf("Confidence %d < threshold %d", meta.Confidence, threshold)
	}
	action := in.Decision.Action()
	if !action.Executable() {
		return false, "Action not tradeable"
	}
	if action.IsTrade() && in.TradeCount >= c.limits.MaxTrades {
		return false, "Max trades reached"
	}
	return true, "OK"
}

func (c *Chain) strikeAlignment(_ context.Context, in Input) (bool, string) {
	if in.Spot == 0 || in.Strike == 0 {
		return true, "OK"
	}
	if math.Abs(in.Spot-float64(in.Strike)) > c.limits.MaxStrikeDistance {
		return false, "Strike too far OTM (delta proxy)"
	}
	return true, "OK"
}

func (c *Chain) marginCheck(ctx context.Context, in Input) (bool, string) {
	if c.margin == nil || in.RequiredMargin <= 0 {
		return true, "OK"
	}
	free, err := c.margin.AvailableMargin(ctx)
	if err != nil {
		if errors.Is(err, domsvc.ErrMarginUnknown) {
			return true, "OK"
		}
		// An unreachable margin endpoint is treated as unknown.
		return true, "Margin unavailable"
	}
	if free < in.RequiredMargin {
		return false, fmt.Sprintf("Insufficient margin %.2f < %.2f", free, in.RequiredMargin)
	}
	return true, "OK"
}

func (c *Chain) positionLimits(_ context.Context, in Input) (bool, string) {
	if in.ActivePositions >= c.limits.MaxPositions {
		return false, "Position limit reached"
	}
	return true, "OK"
}

func (c *Chain) marketHours(_ context.Context, in Input) (bool, string) {
	if !c.risk.IsMarketHours(in.Now) {
		return false, "Outside market hours"
	}
	return true, "OK"
}

func (c *Chain) circuitBreaker(_ context.Context, in Input) (bool, string) {
	if in.DailyPnl <= -c.limits.MaxDailyLoss {
		return false, "Daily loss limit breached"
	}
	return true, "OK"
}
