package contextrisk

import (
	"fmt"
	"time"

	"OptionsOracle/internal/domain/models"
	"OptionsOracle/pkg/config"
	"OptionsOracle/pkg/util"
)

// Config holds the regime breakpoints, thresholds and the session clock.
type Config struct {
	VixUltraLow  float64
	VixNormalLow float64
	VixSpiking   float64
	// VixPanic is informational: levels above VixSpiking already classify as PANIC.
	VixPanic float64

	Confidence         map[models.Regime]int
	DefaultConfidence  int
	FallbackConfidence int

	IntervalHighVol   time.Duration
	IntervalLowVol    time.Duration
	OpeningPenaltyPct int
	OpeningWindow     time.Duration

	Open     util.Clock
	Close    util.Clock
	Location *time.Location
}

// DefaultConfig returns the NSE session on Asia/Kolkata time with the
// standard regime table.
func DefaultConfig() Config {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		loc = time.FixedZone("IST", 5*3600+1800)
	}
	return Config{
		VixUltraLow:  12,
		VixNormalLow: 13,
		VixSpiking:   14.5,
		VixPanic:     17,
		Confidence: map[models.Regime]int{
			models.RegimeUltraLow:  75,
			models.RegimeNormalLow: 70,
			models.RegimeSpiking:   60,
			models.RegimePanic:     55,
		},
		DefaultConfidence:  70,
		FallbackConfidence: 50,
		IntervalHighVol:    90 * time.Second,
		IntervalLowVol:     240 * time.Second,
		OpeningPenaltyPct:  10,
		OpeningWindow:      30 * time.Minute,
		Open:               util.Clock{Hour: 9, Minute: 20},
		Close:              util.Clock{Hour: 15, Minute: 28},
		Location:           loc,
	}
}

// ConfigFrom maps the application configuration.
func ConfigFrom(cfg *config.Config) (Config, error) {
	c := DefaultConfig()
	r := cfg.Regime
	c.VixUltraLow, c.VixNormalLow, c.VixSpiking, c.VixPanic = r.VixUltraLow, r.VixNormalLow, r.VixSpiking, r.VixPanic
	c.Confidence = map[models.Regime]int{
		models.RegimeUltraLow:  r.Confidence.UltraLow,
		models.RegimeNormalLow: r.Confidence.NormalLow,
		models.RegimeSpiking:   r.Confidence.Spiking,
		models.RegimePanic:     r.Confidence.Panic,
	}
	c.DefaultConfidence = r.Confidence.NormalLow
	c.FallbackConfidence = r.Confidence.Fallback
	c.IntervalHighVol, c.IntervalLowVol = r.IntervalHighVol, r.IntervalLowVol
	c.OpeningPenaltyPct, c.OpeningWindow = r.OpeningPenaltyPct, r.OpeningWindow

	loc, err := time.LoadLocation(cfg.Session.Timezone)
	if err != nil {
		return Config{}, fmt.Errorf("load session timezone: %w", err)
	}
	c.Location = loc
	if c.Open, err = util.ParseClock(cfg.Session.Open); err != nil {
		return Config{}, fmt.Errorf("session open: %w", err)
	}
	if c.Close, err = util.ParseClock(cfg.Session.Close); err != nil {
		return Config{}, fmt.Errorf("session close: %w", err)
	}
	return c, nil
}

// Adapter derives the volatility regime and session phase and maps them to
// confidence thresholds and decision cadence. It is stateless; every time
// dependent method takes the instant to evaluate.
type Adapter struct {
	cfg Config
}

func New(cfg Config) *Adapter {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Adapter{cfg: cfg}
}

func (a *Adapter) Location() *time.Location { return a.cfg.Location }

// Regime buckets the volatility index. A missing reading is NORMAL_LOW.
func (a *Adapter) Regime(vix float64, ok bool) models.Regime {
	switch {
	case !ok:
		return models.RegimeNormalLow
	case vix <= a.cfg.VixUltraLow:
		return models.RegimeUltraLow
	case vix <= a.cfg.VixNormalLow:
		return models.RegimeNormalLow
	case vix <= a.cfg.VixSpiking:
		return models.RegimeSpiking
	default:
		return models.RegimePanic
	}
}

// AbovePanic reports a reading beyond the configured panic level.
func (a *Adapter) AbovePanic(vix float64, ok bool) bool {
	return ok && vix > a.cfg.VixPanic
}

func (a *Adapter) RequiredConfidence(r models.Regime) int {
	if c, ok := a.cfg.Confidence[r]; ok {
		return c
	}
	return a.cfg.DefaultConfidence
}

// FallbackConfidence is the confidence attached to fallback decisions.
func (a *Adapter) FallbackConfidence() int { return a.cfg.FallbackConfidence }

func (a *Adapter) bounds(now time.Time) (time.Time, time.Time, time.Time) {
	open := a.cfg.Open.On(now, a.cfg.Location)
	return open, open.Add(a.cfg.OpeningWindow), a.cfg.Close.On(now, a.cfg.Location)
}

func (a *Adapter) Phase(now time.Time) models.Phase {
	open, openEnd, closeAt := a.bounds(now)
	switch {
	case !now.Before(open) && !now.After(openEnd):
		return models.PhaseOpening
	case now.After(openEnd) && now.Before(closeAt):
		return models.PhaseMidday
	default:
		return models.PhaseClosed
	}
}

// Cadence is the minimum spacing between two decision evaluations.
func (a *Adapter) Cadence(r models.Regime, p models.Phase) time.Duration {
	if p == models.PhaseOpening || r == models.RegimeSpiking || r == models.RegimePanic {
		return a.cfg.IntervalHighVol
	}
	return a.cfg.IntervalLowVol
}

// ThresholdPenalty is added to the required confidence, in points.
func (a *Adapter) ThresholdPenalty(p models.Phase) int {
	if p == models.PhaseOpening {
		return a.cfg.OpeningPenaltyPct
	}
	return 0
}

// IsMarketHours reports open <= now <= close on now's exchange-local day.
func (a *Adapter) IsMarketHours(now time.Time) bool {
	open, _, closeAt := a.bounds(now)
	return !now.Before(open) && !now.After(closeAt)
}

// SessionProgress is the elapsed share of the session in [0, 1].
func (a *Adapter) SessionProgress(now time.Time) float64 {
	open, _, closeAt := a.bounds(now)
	total := closeAt.Sub(open)
	if total <= 0 || now.Before(open) {
		return 0
	}
	if now.After(closeAt) {
		return 1
	}
	return float64(now.Sub(open)) / float64(total)
}

// Assessment bundles the per-cycle context.
type Assessment struct {
	Regime             models.Regime
	Phase              models.Phase
	RequiredConfidence int
	Penalty            int
	Cadence            time.Duration
	MarketOpen         bool
	AbovePanic         bool
}

func (a *Adapter) Assess(vix float64, hasVix bool, now time.Time) Assessment {
	r := a.Regime(vix, hasVix)
	p := a.Phase(now)
	return Assessment{
		Regime:             r,
		Phase:              p,
		RequiredConfidence: a.RequiredConfidence(r),
		Penalty:            a.ThresholdPenalty(p),
		Cadence:            a.Cadence(r, p),
		MarketOpen:         a.IsMarketHours(now),
		AbovePanic:         a.AbovePanic(vix, hasVix),
	}
}
