package contextrisk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"OptionsOracle/internal/domain/models"
	"OptionsOracle/pkg/config"
)

var ist = time.FixedZone("IST", 5*3600+1800)

func newAdapter() *Adapter {
	cfg := DefaultConfig()
	cfg.Location = ist
	return New(cfg)
}

func at(h, m, s int) time.Time {
	return time.Date(2025, 1, 7, h, m, s, 0, ist)
}

func TestRegime(t *testing.T) {
	a := newAdapter()
	tests := []struct {
		vix  float64
		ok   bool
		want models.Regime
	}{
		{0, false, models.RegimeNormalLow},
		{10, true, models.RegimeUltraLow},
		{12, true, models.RegimeUltraLow},
		{12.01, true, models.RegimeNormalLow},
		{13, true, models.RegimeNormalLow},
		{14.5, true, models.RegimeSpiking},
		{14.51, true, models.RegimePanic},
		{30, true, models.RegimePanic},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, a.Regime(tt.vix, tt.ok), "vix=%v ok=%v", tt.vix, tt.ok)
	}
}

func TestRequiredConfidence(t *testing.T) {
	a := newAdapter()
	assert.Equal(t, 75, a.RequiredConfidence(models.RegimeUltraLow))
	assert.Equal(t, 70, a.RequiredConfidence(models.RegimeNormalLow))
	assert.Equal(t, 60, a.RequiredConfidence(models.RegimeSpiking))
	assert.Equal(t, 55, a.RequiredConfidence(models.RegimePanic))
	assert.Equal(t, 70, a.RequiredConfidence(models.Regime("OTHER")))
	assert.Equal(t, 50, a.FallbackConfidence())
}

func TestPhase(t *testing.T) {
	a := newAdapter()
	assert.Equal(t, models.PhaseClosed, a.Phase(at(9, 19, 59)))
	assert.Equal(t, models.PhaseOpening, a.Phase(at(9, 20, 0)))
	assert.Equal(t, models.PhaseOpening, a.Phase(at(9, 50, 0)))
	assert.Equal(t, models.PhaseMidday, a.Phase(at(9, 50, 1)))
	assert.Equal(t, models.PhaseMidday, a.Phase(at(15, 27, 59)))
	assert.Equal(t, models.PhaseClosed, a.Phase(at(15, 28, 0)))
	// Same instant expressed in UTC is classified on the exchange clock.
	assert.Equal(t, models.PhaseOpening, a.Phase(at(9, 30, 0).UTC()))
}

func TestCadenceAndPenalty(t *testing.T) {
	a := newAdapter()
	assert.Equal(t, 90*time.Second, a.Cadence(models.RegimeNormalLow, models.PhaseOpening))
	assert.Equal(t, 90*time.Second, a.Cadence(models.RegimeSpiking, models.PhaseMidday))
	assert.Equal(t, 90*time.Second, a.Cadence(models.RegimePanic, models.PhaseMidday))
	assert.Equal(t, 240*time.Second, a.Cadence(models.RegimeUltraLow, models.PhaseMidday))
	assert.Equal(t, 240*time.Second, a.Cadence(models.RegimeNormalLow, models.PhaseClosed))

	assert.Equal(t, 10, a.ThresholdPenalty(models.PhaseOpening))
	assert.Equal(t, 0, a.ThresholdPenalty(models.PhaseMidday))
}

func TestIsMarketHours(t *testing.T) {
	a := newAdapter()
	assert.False(t, a.IsMarketHours(at(9, 19, 59)))
	assert.True(t, a.IsMarketHours(at(9, 20, 0)))
	assert.True(t, a.IsMarketHours(at(15, 28, 0)))
	assert.False(t, a.IsMarketHours(at(15, 28, 1)))
}

func TestSessionProgress(t *testing.T) {
	a := newAdapter()
	assert.Equal(t, 0.0, a.SessionProgress(at(8, 0, 0)))
	assert.Equal(t, 1.0, a.SessionProgress(at(16, 0, 0)))
	assert.InDelta(t, 0.5, a.SessionProgress(at(12, 24, 0)), 1e-9)
}

// VIX 12.5 at 09:25 needs 70 + 10 before a decision may execute.
func TestAssessOpeningNormalLow(t *testing.T) {
	a := newAdapter()
	got := a.Assess(12.5, true, at(9, 25, 0))
	assert.Equal(t, models.RegimeNormalLow, got.Regime)
	assert.Equal(t, models.PhaseOpening, got.Phase)
	assert.Equal(t, 70, got.RequiredConfidence)
	assert.Equal(t, 10, got.Penalty)
	assert.Equal(t, 90*time.Second, got.Cadence)
	assert.True(t, got.MarketOpen)
	assert.False(t, got.AbovePanic)
}

func TestConfigFrom(t *testing.T) {
	cfg := config.Default()
	cfg.Regime.Confidence.Spiking = 62
	cfg.Session.Open = "09:15"

	c, err := ConfigFrom(cfg)
	require.NoError(t, err)
	assert.Equal(t, 62, c.Confidence[models.RegimeSpiking])
	assert.Equal(t, 9, c.Open.Hour)
	assert.Equal(t, 15, c.Open.Minute)
	assert.Equal(t, "Asia/Kolkata", c.Location.String())

	cfg.Session.Close = "bad"
	_, err = ConfigFrom(cfg)
	assert.Error(t, err)
}
