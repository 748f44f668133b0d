package middleware

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"OptionsOracle/internal/domain/models"
	domrepo "OptionsOracle/internal/domain/repository"
	"OptionsOracle/internal/service/ratelimit"
)

// Sink is the downstream the pipeline forwards accepted ticks to.
type Sink interface {
	OnTick(ctx context.Context, t *models.Tick) error
}

// RealtimePipeline sits between the feed and the snapshot router. It
// validates ticks, throttles each token and optionally transforms them.
// A tick the sink rejects is dropped: the next tick for the token
// supersedes it, and replaying a stale spot or VIX print would overwrite a
// newer one.
type RealtimePipeline struct {
	sink      Sink
	metrics   domrepo.Metrics
	maxRPS    float64
	throttle  *ratelimit.Limiter
	exempt    map[string]bool
	transform func(*models.Tick) *models.Tick
}

type PipelineOption func(*RealtimePipeline)

// WithMaxRPS caps accepted ticks per second per token. Zero disables throttling.
func WithMaxRPS(n float64) PipelineOption {
	return func(p *RealtimePipeline) {
		if n >= 0 {
			p.maxRPS = n
		}
	}
}

// WithUnthrottled exempts tokens (spot, VIX) from the per-token throttle.
func WithUnthrottled(tokens ...string) PipelineOption {
	return func(p *RealtimePipeline) {
		for _, t := range tokens {
			p.exempt[t] = true
		}
	}
}

// WithTransform sets a hook that rewrites ticks before they are forwarded.
func WithTransform(fn func(*models.Tick) *models.Tick) PipelineOption {
	return func(p *RealtimePipeline) { p.transform = fn }
}

func NewRealtimePipeline(sink Sink, metrics domrepo.Metrics, opts ...PipelineOption) *RealtimePipeline {
	p := &RealtimePipeline{
		sink:    sink,
		metrics: metrics,
		maxRPS:  20,
		exempt:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.throttle = ratelimit.New(p.maxRPS, 1)
	return p
}

// Process validates, throttles and forwards t. A throttled tick is dropped
// without error; a sink failure is counted and returned.
func (p *RealtimePipeline) Process(ctx context.Context, t *models.Tick) error {
	start := time.Now()
	if err := validateTick(t); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if p.transform != nil {
		t = p.transform(t)
		if err := validateTick(t); err != nil {
			p.metrics.RecordError("pipeline_transform_invalid")
			return err
		}
	}
	if !p.exempt[t.Token] && !p.throttle.Allow(t.Token) {
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}

	if err := p.sink.OnTick(ctx, t); err != nil {
		p.metrics.RecordError("pipeline_process")
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

var errInvalidTick = errors.New("invalid tick")

func validateTick(t *models.Tick) error {
	if t == nil {
		return fmt.Errorf("%w: nil", errInvalidTick)
	}
	if t.Token == "" {
		return fmt.Errorf("%w: token empty", errInvalidTick)
	}
	if t.LastTradedPrice < 0 || math.IsNaN(t.LastTradedPrice) || math.IsInf(t.LastTradedPrice, 0) {
		return fmt.Errorf("%w: price %v", errInvalidTick, t.LastTradedPrice)
	}
	return nil
}
