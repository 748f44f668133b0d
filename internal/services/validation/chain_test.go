package validation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"OptionsOracle/internal/domain/models"
	domsvc "OptionsOracle/internal/domain/service"
	"OptionsOracle/internal/services/contextrisk"
)

var ist = time.FixedZone("IST", 5*3600+1800)

func risk() *contextrisk.Adapter {
	cfg := contextrisk.DefaultConfig()
	cfg.Location = ist
	return contextrisk.New(cfg)
}

func at(h, m int) time.Time { return time.Date(2025, 1, 7, h, m, 0, 0, ist) }

func trade(side models.Side, conf int, ts time.Time) models.Decision {
	return models.Trade{Meta: models.Meta{Confidence: conf, Timestamp: ts, Guidance: models.DefaultGuidance}, Side: side}
}

// A midday CE entry in NORMAL_LOW with confidence 72 that passes everything.
func passing() Input {
	now := at(11, 0)
	return Input{
		Decision: trade(models.SideCE, 72, now),
		Now:      now,
		Vix:      12.5,
		HasVix:   true,
		Strike:   22000,
		Spot:     22010,
	}
}

type fakeMargin struct {
	free float64
	err  error
}

func (f fakeMargin) AvailableMargin(context.Context) (float64, error) { return f.free, f.err }

func TestChainPasses(t *testing.T) {
	res := NewChain(risk()).Run(context.Background(), passing())
	assert.True(t, res.Passed)
	assert.Equal(t, 0, res.FailedStep)
	assert.Equal(t, "OK", res.Reason)
}

func TestGateOrder(t *testing.T) {
	assert.Equal(t, []string{
		"ai_gating", "strike_alignment", "margin", "position_limits", "market_hours", "circuit_breaker",
	}, NewChain(risk()).Gates())
}

func TestEachGateRejects(t *testing.T) {
	tests := []struct {
		name   string
		opts   []Option
		mod    func(*Input)
		step   int
		reason string
	}{
		{"no decision", nil, func(in *Input) { in.Decision = nil }, 1, "No decision"},
		{"stale", nil, func(in *Input) { in.Decision = trade(models.SideCE, 72, in.Now.Add(-121*time.Second)) }, 1, "Decision stale"},
		{"low confidence", nil, func(in *Input) { in.Decision = trade(models.SideCE, 69, in.Now) }, 1, "Confidence 69 < threshold 70"},
		{"hold not tradeable", nil, func(in *Input) {
			in.Decision = models.Hold{Meta: models.Meta{Confidence: 90, Timestamp: in.Now}}
		}, 1, "Action not tradeable"},
		{"max trades", nil, func(in *Input) { in.TradeCount = 1000 }, 1, "Max trades reached"},
		{"strike too far", nil, func(in *Input) { in.Strike = 21800 }, 2, "Strike too far OTM (delta proxy)"},
		{"insufficient margin", []Option{WithMarginChecker(fakeMargin{free: 1000})}, func(in *Input) { in.RequiredMargin = 5000 }, 3, "Insufficient margin 1000.00 < 5000.00"},
		{"position limit", nil, func(in *Input) { in.ActivePositions = 1 }, 4, "Position limit reached"},
		{"outside hours", nil, func(in *Input) {
			in.Now = at(15, 40)
			in.Decision = trade(models.SideCE, 72, in.Now)
		}, 5, "Outside market hours"},
		{"circuit breaker", nil, func(in *Input) { in.DailyPnl = -300000 }, 6, "Daily loss limit breached"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := passing()
			tt.mod(&in)
			res := NewChain(risk(), tt.opts...).Run(context.Background(), in)
			assert.False(t, res.Passed)
			assert.Equal(t, tt.step, res.FailedStep)
			assert.Equal(t, tt.reason, res.Reason)
		})
	}
}

func TestStrikeDistanceBoundary(t *testing.T) {
	in := passing()
	in.Spot, in.Strike = 22200, 22000
	assert.True(t, NewChain(risk()).Run(context.Background(), in).Passed)
}

func TestStrikeGateSkippedForExitAll(t *testing.T) {
	in := passing()
	in.Decision = models.ExitAll{Meta: models.Meta{Confidence: 90, Timestamp: in.Now}}
	in.Strike = 1
	in.TradeCount = 5000
	res := NewChain(risk()).Run(context.Background(), in)
	assert.True(t, res.Passed)
}

func TestUnknownMarginPasses(t *testing.T) {
	in := passing()
	in.RequiredMargin = 1e9
	for _, m := range []MarginChecker{
		fakeMargin{err: domsvc.ErrMarginUnknown},
		fakeMargin{err: errors.New("timeout")},
	} {
		assert.True(t, NewChain(risk(), WithMarginChecker(m)).Run(context.Background(), in).Passed)
	}
}

// A failing AI gate is reported even when later gates would also fail.
func TestLowestFailingGateWins(t *testing.T) {
	in := passing()
	in.Now = at(16, 0)
	in.Decision = trade(models.SideCE, 10, in.Now)
	in.ActivePositions = 3
	in.DailyPnl = -1e6
	res := NewChain(risk()).Run(context.Background(), in)
	assert.Equal(t, 1, res.FailedStep)
	assert.Equal(t, "ai_gating", res.Gate)
}

// VIX 12.5 during the opening window: 70 + 10 penalty rejects a 72 decision.
func TestOpeningPenaltyRejectsNormalLowTrade(t *testing.T) {
	now := at(9, 25)
	in := passing()
	in.Now = now
	in.Decision = trade(models.SideCE, 72, now)
	res := NewChain(risk()).Run(context.Background(), in)
	assert.False(t, res.Passed)
	assert.Equal(t, 1, res.FailedStep)
	assert.Equal(t, "Confidence 72 < threshold 80", res.Reason)
}

func TestCustomLimits(t *testing.T) {
	l := DefaultLimits()
	l.MaxPositions = 2
	in := passing()
	in.ActivePositions = 1
	assert.True(t, NewChain(risk(), WithLimits(l)).Run(context.Background(), in).Passed)
}

// VIX 11 at 09:25 is ULTRA_LOW in the opening window: 75 + 10 = 85.
func TestUltraLowOpeningRequires85(t *testing.T) {
	now := at(9, 25)
	in := passing()
	in.Now = now
	in.Vix = 11
	in.Decision = trade(models.SideCE, 72, now)
	res := NewChain(risk()).Run(context.Background(), in)
	assert.Equal(t, 1, res.FailedStep)
	assert.Equal(t, "Confidence 72 < threshold 85", res.Reason)
}
