package decision

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"OptionsOracle/internal/domain/models"
)

var now = time.Date(2025, 1, 7, 11, 0, 0, 0, time.UTC)

func bullish() Inputs {
	return Inputs{
		Context:       models.TrendUp,
		Participation: 0.8,
		VolStatus:     models.VolSupportive,
		DecayOK:       true,
		Bullish:       true,
		Score:         70,
		PDR:           0,
		Now:           now,
	}
}

func bearish() Inputs {
	return Inputs{
		Context:       models.TrendDown,
		Participation: 0.2,
		VolStatus:     models.VolSupportive,
		DecayOK:       true,
		Bearish:       true,
		Score:         60,
		Now:           now,
	}
}

func TestBullishSetupTradesCE(t *testing.T) {
	res := NewEngine().Decide(bullish())
	require.NoError(t, res.Err)
	assert.False(t, res.Fallback)
	assert.Equal(t, "bullish_setup", res.Rule)

	tr, ok := res.Decision.(models.Trade)
	require.True(t, ok)
	assert.Equal(t, models.SideCE, tr.Side)
	assert.Equal(t, models.ActionTradeCE, tr.Action())
	assert.Equal(t, 72, tr.Confidence)
	assert.Equal(t, models.DefaultGuidance, tr.Guidance)
	assert.Equal(t, now, tr.Timestamp)
}

func TestBearishSetupTradesPE(t *testing.T) {
	res := NewEngine().Decide(bearish())
	assert.Equal(t, "bearish_setup", res.Rule)
	assert.Equal(t, models.ActionTradePE, res.Decision.Action())
	assert.Equal(t, 72, res.Decision.Info().Confidence)
}

// PDR of -6 wins over an otherwise perfect bullish setup.
func TestPDRPenaltyTakesPrecedence(t *testing.T) {
	in := bullish()
	in.PDR = -6
	in.Score = 80
	res := NewEngine().Decide(in)
	assert.Equal(t, "pdr_penalty", res.Rule)
	assert.Equal(t, models.ActionHold, res.Decision.Action())
	assert.Equal(t, 45, res.Decision.Info().Confidence)

	in.PDR = -5
	assert.Equal(t, "pdr_penalty", NewEngine().Decide(in).Rule)
	in.PDR = -4
	assert.Equal(t, "bullish_setup", NewEngine().Decide(in).Rule)
}

func TestLowScoreHolds(t *testing.T) {
	in := bullish()
	in.Score = 29.9
	res := NewEngine().Decide(in)
	assert.Equal(t, "low_score", res.Rule)
	assert.Equal(t, 50, res.Decision.Info().Confidence)
}

func TestDefaultHold(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Inputs)
	}{
		{"range context", func(in *Inputs) { in.Context = models.TrendRange }},
		{"participation at 0.6", func(in *Inputs) { in.Participation = 0.6 }},
		{"weak vix", func(in *Inputs) { in.VolStatus = models.VolWeak }},
		{"unknown vix", func(in *Inputs) { in.VolStatus = models.VolUnknown }},
		{"decay blocked", func(in *Inputs) { in.DecayOK = false }},
		{"below vwap", func(in *Inputs) { in.Bullish = false }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := bullish()
			tt.mod(&in)
			res := NewEngine().Decide(in)
			assert.Equal(t, "default", res.Rule)
			assert.Equal(t, models.ActionHold, res.Decision.Action())
			assert.False(t, res.Fallback)
		})
	}
}

func TestMalformedInputFallsBack(t *testing.T) {
	in := bullish()
	in.Score = math.NaN()
	res := NewEngine().Decide(in)
	assert.True(t, res.Fallback)
	assert.ErrorIs(t, res.Err, ErrMalformedInput)

	h, ok := res.Decision.(models.Hold)
	require.True(t, ok)
	assert.True(t, h.Fallback)
	assert.Equal(t, 50, h.Confidence)
	assert.Equal(t, models.DefaultGuidance, h.Guidance)
}

func TestPanickingRuleFallsBack(t *testing.T) {
	e := NewEngine(WithFallbackConfidence(40), WithRules(Rule{
		Name: "boom",
		Match: func(Inputs) (models.Decision, bool) {
			var m map[string]int
			m["x"] = 1
			return nil, false
		},
	}))
	res := e.Decide(bullish())
	assert.True(t, res.Fallback)
	assert.Error(t, res.Err)
	assert.Equal(t, 40, res.Decision.Info().Confidence)
}

func TestNoRuleMatchedFallsBack(t *testing.T) {
	res := NewEngine(WithRules()).Decide(bullish())
	assert.True(t, res.Fallback)
	assert.Equal(t, models.ActionHold, res.Decision.Action())
}

func TestPlaceholderAndGuidance(t *testing.T) {
	g := models.StrikeGuidance{DeltaMin: 0.3, IVMaxPct: 20}
	e := NewEngine(WithGuidance(g))
	assert.Equal(t, g, e.Decide(bullish()).Decision.Info().Guidance)

	p := e.Placeholder(now)
	h, ok := p.(models.Hold)
	require.True(t, ok)
	assert.True(t, h.Placeholder)
	assert.Equal(t, "Interval", h.Reasoning)
	assert.Equal(t, models.ActionHold, models.ViewOf(p).Action)
}

// A combined score of 25 holds at 50 even when every bullish condition is met.
func TestScore25HoldsDespiteBullishSetup(t *testing.T) {
	in := bullish()
	in.Score = 25
	res := NewEngine().Decide(in)
	assert.Equal(t, models.ActionHold, res.Decision.Action())
	assert.Equal(t, 50, res.Decision.Info().Confidence)
	assert.False(t, res.Fallback)
}
