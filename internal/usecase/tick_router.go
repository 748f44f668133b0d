package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"OptionsOracle/internal/domain/models"
	drepo "OptionsOracle/internal/domain/repository"
	"OptionsOracle/internal/service/snapshot"
	"OptionsOracle/pkg/util"
)

// paisePerRupee converts feed prices to rupees.
const paisePerRupee = 100.0

// Tick kinds used as metric labels.
const (
	KindSpot   = "spot"
	KindVix    = "vix"
	KindHeavy  = "heavyweight"
	KindOption = "option"
)

type TickRouterConfig struct {
	SpotToken   string
	VixToken    string
	HeavyTokens []string
	// Location decides the exchange-local trading day. UTC when nil.
	Location *time.Location
}

// TickRouter is the only writer of the market snapshot. It classifies each
// tick by token and applies it in rupees. The first tick of a new
// exchange-local day clears the previous session's history first.
type TickRouter struct {
	snap    *snapshot.MarketSnapshot
	metrics drepo.Metrics
	spot    string
	vix     string
	heavy   map[string]bool
	loc     *time.Location
	now     func() time.Time
	last    atomic.Int64

	mu  sync.Mutex
	day time.Time
}

func NewTickRouter(snap *snapshot.MarketSnapshot, metrics drepo.Metrics, cfg TickRouterConfig) *TickRouter {
	r := &TickRouter{
		snap:    snap,
		metrics: metrics,
		spot:    cfg.SpotToken,
		vix:     cfg.VixToken,
		heavy:   make(map[string]bool, len(cfg.HeavyTokens)),
		loc:     cfg.Location,
		now:     time.Now,
	}
	if r.loc == nil {
		r.loc = time.UTC
	}
	for _, t := range cfg.HeavyTokens {
		r.heavy[t] = true
	}
	return r
}

// Kind classifies token.
func (r *TickRouter) Kind(token string) string {
	switch {
	case token == r.spot:
		return KindSpot
	case token == r.vix:
		return KindVix
	case r.heavy[token]:
		return KindHeavy
	default:
		return KindOption
	}
}

// OnTick applies one tick. Updates are last-write-wins.
func (r *TickRouter) OnTick(_ context.Context, t *models.Tick) error {
	at := t.ExchangeTime
	if at.IsZero() {
		at = r.now()
	}
	r.rollover(at)
	price := t.LastTradedPrice / paisePerRupee
	kind := r.Kind(t.Token)
	switch kind {
	case KindSpot:
		r.snap.UpdateSpot(price)
	case KindVix:
		r.snap.UpdateVix(price)
	case KindHeavy:
		r.snap.UpdateHeavy(t.Token, price)
	default:
		r.snap.UpdateOption(t.Token, price, toRupees(t.Depth), at)
	}
	r.last.Store(at.UnixNano())
	r.metrics.RecordTick(kind)
	return nil
}

// rollover resets the snapshot session when at falls on a later
// exchange-local day than the last tick seen. Late ticks from an earlier
// day are applied without moving the day back.
func (r *TickRouter) rollover(at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.day.IsZero():
		r.day = at
	case !util.SameDay(at, r.day, r.loc) && at.After(r.day):
		r.day = at
		r.snap.ResetSession()
	case at.After(r.day):
		r.day = at
	}
}

// LastTick is the time of the most recent tick applied, zero before the first.
func (r *TickRouter) LastTick() time.Time {
	n := r.last.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

func toRupees(d *models.TickDepth) *models.TickDepth {
	if d == nil {
		return nil
	}
	out := &models.TickDepth{
		Buy:  make([]models.DepthLevel, len(d.Buy)),
		Sell: make([]models.DepthLevel, len(d.Sell)),
	}
	for i, l := range d.Buy {
		out.Buy[i] = models.DepthLevel{Price: l.Price / paisePerRupee, Quantity: l.Quantity}
	}
	for i, l := range d.Sell {
		out.Sell[i] = models.DepthLevel{Price: l.Price / paisePerRupee, Quantity: l.Quantity}
	}
	return out
}
