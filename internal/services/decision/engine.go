package decision

import (
	"errors"
	"fmt"
	"math"
	"time"

	"OptionsOracle/internal/domain/models"
)

// ErrMalformedInput is reported when a numeric input is NaN or infinite.
var ErrMalformedInput = errors.New("malformed decision input")

// Inputs is the classified market picture the rules evaluate.
type Inputs struct {
	Context       models.Trend
	Participation float64
	VolStatus     models.VolStatus
	DecayOK       bool
	Bullish       bool
	Bearish       bool
	Score         float64
	PDR           float64
	Now           time.Time
}

func (in Inputs) validate() error {
	for name, v := range map[string]float64{
		"score":         in.Score,
		"pdr":           in.PDR,
		"participation": in.Participation,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s=%v", ErrMalformedInput, name, v)
		}
	}
	return nil
}

// Result is the outcome of one evaluation. Rule names the matched rule;
// Fallback is set when the decision came from the fault path, with Err
// holding the cause.
type Result struct {
	Decision models.Decision
	Rule     string
	Fallback bool
	Err      error
}

// Rule is one named predicate. Match returns a decision when the rule fires.
type Rule struct {
	Name  string
	Match func(in Inputs) (models.Decision, bool)
}

type Option func(*Engine)

// WithGuidance overrides the strike guidance attached to decisions.
func WithGuidance(g models.StrikeGuidance) Option {
	return func(e *Engine) { e.guidance = g }
}

// WithFallbackConfidence sets the confidence of fallback holds.
func WithFallbackConfidence(c int) Option {
	return func(e *Engine) { e.fallbackConfidence = c }
}

// WithRules replaces the rule chain.
func WithRules(rules ...Rule) Option {
	return func(e *Engine) { e.rules = rules }
}

// Engine evaluates an ordered rule chain; the first matching rule wins.
type Engine struct {
	rules              []Rule
	guidance           models.StrikeGuidance
	fallbackConfidence int
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		guidance:           models.DefaultGuidance,
		fallbackConfidence: 50,
	}
	e.rules = DefaultRules(e)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) meta(conf int, reason string, now time.Time) models.Meta {
	return models.Meta{Confidence: conf, Reasoning: reason, Guidance: e.guidance, Timestamp: now}
}

func (e *Engine) hold(conf int, reason string) func(Inputs) models.Decision {
	return func(in Inputs) models.Decision {
		return models.Hold{Meta: e.meta(conf, reason, in.Now)}
	}
}

// DefaultRules is the production rule chain bound to e's guidance.
func DefaultRules(e *Engine) []Rule {
	return []Rule{
		{
			Name: "pdr_penalty",
			Match: func(in Inputs) (models.Decision, bool) {
				if in.PDR <= -5 {
					return e.hold(45, "PDR penalty high; theta/IV crush risk.")(in), true
				}
				return nil, false
			},
		},
		{
			Name: "low_score",
			Match: func(in Inputs) (models.Decision, bool) {
				if in.Score < 30 {
					return e.hold(50, "Combined score below threshold.")(in), true
				}
				return nil, false
			},
		},
		{
			Name: "bullish_setup",
			Match: func(in Inputs) (models.Decision, bool) {
				if in.Context == models.TrendUp && in.Participation > 0.6 &&
					in.VolStatus == models.VolSupportive && in.DecayOK && in.Bullish {
					return models.Trade{
						Meta: e.meta(72, "Uptrend, strong participation, supportive VIX, decay ok, price above VWAP.", in.Now),
						Side: models.SideCE,
					}, true
				}
				return nil, false
			},
		},
		{
			Name: "bearish_setup",
			Match: func(in Inputs) (models.Decision, bool) {
				if in.Context == models.TrendDown && in.Participation < 0.4 &&
					in.VolStatus == models.VolSupportive && in.DecayOK && in.Bearish {
					return models.Trade{
						Meta: e.meta(72, "Downtrend, weak participation, supportive VIX, decay ok, price below VWAP.", in.Now),
						Side: models.SidePE,
					}, true
				}
				return nil, false
			},
		},
		{
			Name: "default",
			Match: func(in Inputs) (models.Decision, bool) {
				return e.hold(50, "No clear signal; conditions not met.")(in), true
			},
		},
	}
}

// Decide runs the rule chain. It never panics: malformed inputs and
// faults inside a rule produce a fallback hold.
func (e *Engine) Decide(in Inputs) (res Result) {
	if err := in.validate(); err != nil {
		return e.Fallback(in.Now, err)
	}
	defer func() {
		if r := recover(); r != nil {
			res = e.Fallback(in.Now, fmt.Errorf("decision rule panic: %v", r))
		}
	}()
	for _, rule := range e.rules {
		if d, ok := rule.Match(in); ok {
			return Result{Decision: d, Rule: rule.Name}
		}
	}
	return e.Fallback(in.Now, errors.New("no rule matched"))
}

// Fallback builds the fault-path hold.
func (e *Engine) Fallback(now time.Time, cause error) Result {
	return Result{
		Decision: models.Hold{
			Meta:     e.meta(e.fallbackConfidence, "Decision engine fallback (error).", now),
			Fallback: true,
		},
		Rule:     "fallback",
		Fallback: true,
		Err:      cause,
	}
}

// Placeholder is the synthetic hold used while the cadence has not elapsed.
func (e *Engine) Placeholder(now time.Time) models.Decision {
	return models.Hold{
		Meta:        models.Meta{Confidence: 50, Reasoning: "Interval", Timestamp: now},
		Placeholder: true,
	}
}
