package usecase

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"

	"OptionsOracle/internal/domain/models"
	drepo "OptionsOracle/internal/domain/repository"
	"OptionsOracle/internal/service/snapshot"
	"OptionsOracle/internal/services/analytics"
	"OptionsOracle/internal/services/contextrisk"
	"OptionsOracle/internal/services/decision"
	"OptionsOracle/internal/services/features"
	"OptionsOracle/pkg/logger"
	"OptionsOracle/pkg/util"
)

const (
	momentumMinSamples = 10
	momentumLookback   = 5
)

// ErrSpotUnavailable is returned by commands that need a spot price before
// the first spot tick arrived.
var ErrSpotUnavailable = errors.New("spot price unavailable")

type LoopConfig struct {
	PollInterval       time.Duration
	WaitLogInterval    time.Duration
	MinStopDistance    float64
	StopMomentumFactor float64
}

type LoopDeps struct {
	Snapshot *snapshot.MarketSnapshot
	Features *features.Engine
	Decider  *decision.Engine
	Context  *contextrisk.Adapter
	Executor *TradeExecutor
	Events   EventSink
	Board    *StatusBoard
	Metrics  drepo.Metrics
	Log      *logger.Logger
}

type commandKind int

const (
	cmdSetDailyPnl commandKind = iota
	cmdExitAll
)

type command struct {
	kind  commandKind
	pnl   float64
	reply chan commandResult
}

type commandResult struct {
	event *models.TradeEvent
	err   error
}

// OracleLoop is the foreground decision cycle. It owns the executor's
// position and risk state; operators reach them only through commands the
// loop applies between cycles.
type OracleLoop struct {
	LoopDeps
	cfg  LoopConfig
	cmds chan command
	now  func() time.Time

	prevVix     float64
	hasPrevVix  bool
	last        models.Decision
	lastAt      time.Time
	lastWaitLog time.Time
	day         time.Time
}

func NewOracleLoop(deps LoopDeps, cfg LoopConfig) *OracleLoop {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	deps.Log = deps.Log.Component("oracle")
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.WaitLogInterval <= 0 {
		cfg.WaitLogInterval = 5 * time.Second
	}
	if cfg.MinStopDistance <= 0 {
		cfg.MinStopDistance = 30
	}
	if cfg.StopMomentumFactor <= 0 {
		cfg.StopMomentumFactor = 0.5
	}
	return &OracleLoop{LoopDeps: deps, cfg: cfg, cmds: make(chan command), now: time.Now}
}

// Run cycles every poll interval until ctx ends, applying operator
// commands as they arrive.
func (l *OracleLoop) Run(ctx context.Context) error {
	t := time.NewTicker(l.cfg.PollInterval)
	defer t.Stop()
	l.Log.Info("decision loop started", logger.Duration("poll_interval", l.cfg.PollInterval))
	for {
		select {
		case <-ctx.Done():
			l.Log.Info("decision loop stopped")
			return nil
		case <-t.C:
			l.Step(ctx, l.now())
		case cmd := <-l.cmds:
			cmd.reply <- l.apply(ctx, cmd)
		}
	}
}

// Step runs one cycle at now and returns the status it published.
func (l *OracleLoop) Step(ctx context.Context, now time.Time) models.OracleStatus {
	start := time.Now()
	defer func() { l.Metrics.RecordLatency("cycle", time.Since(start).Seconds()) }()

	l.rollover(now)
	view := l.Snapshot.Read(now)
	a := l.Context.Assess(view.Vix, view.HasVix, now)

	st := models.OracleStatus{
		At:            now,
		MarketOpen:    a.MarketOpen,
		Context:       models.TrendWait,
		VolStatus:     models.VolUnknown,
		Regime:        a.Regime,
		Phase:         a.Phase,
		VixAbovePanic: a.AbovePanic,
	}
	if view.HasVix {
		v := view.Vix
		st.Vix = &v
	}
	defer func() {
		st.Position = l.Executor.Position()
		st.Risk = l.Executor.Risk()
		st.LastDecision = models.ViewOf(l.last)
		l.Board.Update(st)
	}()

	if !view.HasSpot {
		st.WaitingData = true
		if now.Sub(l.lastWaitLog) >= l.cfg.WaitLogInterval {
			l.Log.Info("waiting for market data", logger.Bool("vix", view.HasVix))
			l.lastWaitLog = now
		}
		return st
	}
	spot := view.Spot
	st.Spot = &spot

	vol := analytics.Volatility(view.Vix, view.HasVix, l.prevVix, l.hasPrevVix)
	if view.HasVix {
		l.prevVix, l.hasPrevVix = view.Vix, true
	}
	if !a.MarketOpen {
		return st
	}

	trend := analytics.Context(view.Prices)
	part := analytics.Participation(view.Heavy)
	vwap := analytics.VWAP(view.Prices, spot)
	scores := l.Features.Evaluate(features.Inputs{
		Prices:        view.Prices,
		Participation: part,
		VolStatus:     vol,
		VWAPBullish:   analytics.Bullish(spot, vwap),
		OptionLtp:     view.OptionLtp,
		Depth:         view.Depth,
	})
	l.Metrics.RecordScore(scores.Combined)
	st.Context, st.Participation, st.VolStatus, st.Score = trend, part, vol, scores.Combined

	momentum := Momentum(view.Prices)
	ms := MarketState{
		Now:          now,
		Spot:         spot,
		Vix:          view.Vix,
		HasVix:       view.HasVix,
		Trend:        trend,
		Momentum:     momentum,
		StopDistance: math.Max(l.cfg.MinStopDistance, momentum*l.cfg.StopMomentumFactor),
		Regime:       a.Regime,
		Phase:        a.Phase,
	}
	if n := len(view.OptionLtp); n > 0 {
		ms.OptionLtp = view.OptionLtp[n-1].Price
	}

	l.Executor.Manage(ctx, spot, now)

	d, fresh := l.decide(now, a, decision.Inputs{
		Context:       trend,
		Participation: part,
		VolStatus:     vol,
		DecayOK:       analytics.DecayOK(view.Prices),
		Bullish:       analytics.Bullish(spot, vwap),
		Bearish:       analytics.Bearish(spot, vwap),
		Score:         scores.Combined,
		PDR:           scores.PDR,
		Now:           now,
	}, spot, view.Vix)
	if fresh && d.Action().Executable() {
		l.Executor.Execute(ctx, d, ms)
	}

	l.Log.Info("oracle status",
		logger.String("context", string(trend)),
		logger.Float("participation", part),
		logger.OptFloat("vix", view.Vix, view.HasVix),
		logger.String("vol_status", string(vol)),
		logger.Float("score", scores.Combined),
		logger.String("regime", string(a.Regime)),
		logger.String("phase", string(a.Phase)),
		logger.String("action", string(d.Action())),
	)
	return st
}

// decide evaluates the rule chain when the adaptive cadence has elapsed and
// returns the placeholder hold otherwise. fresh reports a new decision.
func (l *OracleLoop) decide(now time.Time, a contextrisk.Assessment, in decision.Inputs, spot, vix float64) (models.Decision, bool) {
	if l.last != nil && now.Sub(l.lastAt) < a.Cadence {
		return l.Decider.Placeholder(now), false
	}
	res := l.Decider.Decide(in)
	if res.Err != nil {
		l.Metrics.RecordError("decision")
		l.Log.Warn("decision fallback", logger.String("rule", res.Rule), logger.Error(res.Err))
	}
	l.last, l.lastAt = res.Decision, now
	action := res.Decision.Action()
	l.Metrics.RecordDecision(string(action), res.Rule, res.Fallback)

	meta := res.Decision.Info()
	l.Events.SubmitDecision(&models.DecisionEvent{
		ID:         uuid.NewString(),
		At:         now,
		Action:     action,
		Confidence: meta.Confidence,
		Reasoning:  meta.Reasoning,
		Rule:       res.Rule,
		Fallback:   res.Fallback,
		Score:      in.Score,
		Context:    in.Context,
		Regime:     a.Regime,
		Phase:      a.Phase,
		Spot:       spot,
		Vix:        vix,
	})
	return res.Decision, true
}

// rollover starts a new trading day when the exchange-local date changes.
func (l *OracleLoop) rollover(now time.Time) {
	loc := l.Context.Location()
	if l.day.IsZero() {
		l.day = now
		return
	}
	if util.SameDay(now, l.day, loc) {
		return
	}
	l.Log.Info("trading day rollover",
		logger.String("from", l.day.In(loc).Format("2006-01-02")),
		logger.String("to", now.In(loc).Format("2006-01-02")),
	)
	l.day = now
	l.Executor.ResetDay()
	l.prevVix, l.hasPrevVix = 0, false
	l.last, l.lastAt = nil, time.Time{}
}

// Momentum is the absolute spot move over the last five samples, or zero
// with ten or fewer samples.
func Momentum(prices []float64) float64 {
	if len(prices) <= momentumMinSamples {
		return 0
	}
	return math.Abs(prices[len(prices)-1] - prices[len(prices)-momentumLookback])
}

// SetDailyPnl asks the loop to override the daily P&L.
func (l *OracleLoop) SetDailyPnl(ctx context.Context, pnl float64) error {
	res, err := l.send(ctx, command{kind: cmdSetDailyPnl, pnl: pnl})
	if err != nil {
		return err
	}
	return res.err
}

// ExitAll asks the loop to close the open position at the current spot.
func (l *OracleLoop) ExitAll(ctx context.Context) (*models.TradeEvent, error) {
	res, err := l.send(ctx, command{kind: cmdExitAll})
	if err != nil {
		return nil, err
	}
	return res.event, res.err
}

func (l *OracleLoop) send(ctx context.Context, cmd command) (commandResult, error) {
	cmd.reply = make(chan commandResult, 1)
	select {
	case l.cmds <- cmd:
	case <-ctx.Done():
		return commandResult{}, ctx.Err()
	}
	select {
	case res := <-cmd.reply:
		return res, nil
	case <-ctx.Done():
		return commandResult{}, ctx.Err()
	}
}

func (l *OracleLoop) apply(ctx context.Context, cmd command) commandResult {
	switch cmd.kind {
	case cmdSetDailyPnl:
		l.Executor.SetDailyPnl(cmd.pnl)
		l.Log.Info("daily pnl set by operator", logger.Float("daily_pnl", cmd.pnl))
		return commandResult{}
	case cmdExitAll:
		spot, ok := l.Snapshot.Spot()
		if !ok {
			return commandResult{err: ErrSpotUnavailable}
		}
		ev, err := l.Executor.ForceExit(ctx, spot, l.now())
		return commandResult{event: ev, err: err}
	default:
		return commandResult{err: errors.New("unknown command")}
	}
}
