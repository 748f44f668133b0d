package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"OptionsOracle/internal/domain/models"
	"OptionsOracle/internal/service/broker"
	"OptionsOracle/internal/service/snapshot"
	"OptionsOracle/internal/services/contextrisk"
	"OptionsOracle/internal/services/decision"
	"OptionsOracle/internal/services/execution"
	"OptionsOracle/internal/services/features"
	"OptionsOracle/internal/services/risk"
	"OptionsOracle/internal/services/validation"
	"OptionsOracle/internal/usecase"
	"OptionsOracle/pkg/config"
	applogger "OptionsOracle/pkg/logger"
	"OptionsOracle/pkg/metrics"
)

var (
	replayFile      string
	replayStep      time.Duration
	replayDecisions bool
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay recorded ticks through the strategy on the paper broker",
	Long: `Replay a JSON-lines tick recording (token, last_traded_price in paise,
exchange_time) through the full decision loop on the recorded clock.
Trades are printed as JSON lines; a summary follows on stderr.

Examples:
  oraclectl replay --file ticks-2025-01-08.jsonl
  oraclectl replay --file - --decisions < ticks.jsonl`,
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().StringVar(&replayFile, "file", "", "tick recording, - for stdin")
	replayCmd.Flags().DurationVar(&replayStep, "step", time.Second, "exchange time between cycles")
	replayCmd.Flags().BoolVar(&replayDecisions, "decisions", false, "print decision events too")
	_ = replayCmd.MarkFlagRequired("file")
}

// printSink writes events as JSON lines.
type printSink struct {
	mu        sync.Mutex
	enc       *json.Encoder
	decisions bool
}

func (s *printSink) SubmitDecision(ev *models.DecisionEvent) {
	if !s.decisions {
		return
	}
	s.write(map[string]interface{}{"decision": ev})
}

func (s *printSink) SubmitTrade(ev *models.TradeEvent) {
	s.write(map[string]interface{}{"trade": ev})
}

func (s *printSink) write(v interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.enc.Encode(v)
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	var src io.Reader = os.Stdin
	if replayFile != "-" {
		f, err := os.Open(replayFile)
		if err != nil {
			return err
		}
		defer f.Close()
		src = f
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	replayer, err := buildReplayer(cfg, &printSink{enc: json.NewEncoder(os.Stdout), decisions: replayDecisions})
	if err != nil {
		return err
	}
	res, err := replayer.Replay(ctx, src)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stderr)
	return enc.Encode(map[string]interface{}{
		"ticks":   res.Ticks,
		"skipped": res.Skipped,
		"cycles":  res.Cycles,
		"risk":    res.Last.Risk,
		"open":    res.Last.Position,
	})
}

// buildReplayer assembles the live wiring with the paper broker, inline
// protective exits and no external sinks.
func buildReplayer(cfg *config.Config, sink usecase.EventSink) (*usecase.Replayer, error) {
	rc, err := contextrisk.ConfigFrom(cfg)
	if err != nil {
		return nil, err
	}
	ctxRisk := contextrisk.New(rc)
	log := applogger.NewWriter(os.Stderr, "warn")
	m := metrics.Noop{}

	orders := execution.NewOrderManager(broker.NewPaper(log, cfg.Strategy.LotSize), nil, nil, execution.OrderConfig{
		Index:    cfg.Strategy.Index,
		LotSize:  cfg.Strategy.LotSize,
		Location: rc.Location,
	})
	exec := usecase.NewTradeExecutor(usecase.ExecutorDeps{
		Orders: orders,
		Chain: validation.NewChain(ctxRisk, validation.WithLimits(validation.Limits{
			MaxTrades:         cfg.Risk.MaxTrades,
			MaxPositions:      cfg.Risk.MaxPositions,
			MaxDailyLoss:      cfg.Risk.MaxDailyLoss,
			MaxDecisionAge:    cfg.Risk.DecisionMaxAge,
			MaxStrikeDistance: cfg.Risk.MaxStrikeDistance,
		})),
		Positions: execution.NewPositionManager(execution.WithTrailPct(cfg.Strategy.TrailPct)),
		Governor: risk.NewGovernor(risk.Limits{
			MaxTrades:     cfg.Risk.MaxTrades,
			MaxDailyLoss:  cfg.Risk.MaxDailyLoss,
			MinWinRatePct: cfg.Risk.MinWinRatePct,
		}),
		Sizer:   execution.NewPositionSizer(cfg.Strategy.Capital),
		Armer:   usecase.NewDirectArmer(orders, log),
		Events:  sink,
		Metrics: m,
		Log:     log,
	}, usecase.ExecutorConfig{
		BaseRisk:        cfg.Strategy.BaseRisk,
		TargetRatio:     cfg.Strategy.TargetRatio,
		LotSize:         cfg.Strategy.LotSize,
		UnderlyingToken: cfg.Feed.SpotToken,
	})

	snap := snapshot.New(snapshot.WithHistorySize(cfg.Loop.HistorySize), snapshot.WithWindow(cfg.Loop.Window))
	loop := usecase.NewOracleLoop(usecase.LoopDeps{
		Snapshot: snap,
		Features: features.NewEngine(
			features.WithRSIPeriod(cfg.Features.RSIPeriod),
			features.WithMAPeriods(cfg.Features.FastMA, cfg.Features.SlowMA),
			features.WithHVPeriod(cfg.Features.HVPeriod),
		),
		Decider: decision.NewEngine(
			decision.WithGuidance(models.StrikeGuidance{DeltaMin: cfg.Strike.DeltaMin, IVMaxPct: cfg.Strike.IVMaxPct}),
			decision.WithFallbackConfidence(ctxRisk.FallbackConfidence()),
		),
		Context:  ctxRisk,
		Executor: exec,
		Events:   sink,
		Board:    usecase.NewStatusBoard(nil, time.Minute, log),
		Metrics:  m,
		Log:      log,
	}, usecase.LoopConfig{
		MinStopDistance:    cfg.Strategy.MinStopDistance,
		StopMomentumFactor: cfg.Strategy.StopMomentumFactor,
	})
	router := usecase.NewTickRouter(snap, m, usecase.TickRouterConfig{
		SpotToken:   cfg.Feed.SpotToken,
		VixToken:    cfg.Feed.VixToken,
		HeavyTokens: cfg.Feed.HeavyweightTokens,
		Location:    ctxRisk.Location(),
	})
	return usecase.NewReplayer(router, usecase.NewSpotSampler(snap, ctxRisk, replayStep), loop, replayStep), nil
}
