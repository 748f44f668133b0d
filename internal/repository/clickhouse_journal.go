package repository

import (
	"context"
	"fmt"
	"time"

	"OptionsOracle/internal/domain/models"
	domrepo "OptionsOracle/internal/domain/repository"
	pkgch "OptionsOracle/pkg/clickhouse"
	applogger "OptionsOracle/pkg/logger"
)

// CHJournal implements Journal backed by ClickHouse MergeTree tables.
type CHJournal struct {
	ch *pkgch.Client
	db string
	l  *applogger.Logger
}

var _ domrepo.Journal = (*CHJournal)(nil)

func NewCHJournal(ch *pkgch.Client, database string, l *applogger.Logger) *CHJournal {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHJournal{ch: ch, db: database, l: l.Component("ch-journal")}
}

// Schema is the idempotent DDL for database.
func Schema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.decisions (
			id String,
			at DateTime64(3),
			action LowCardinality(String),
			confidence Int32,
			reasoning String,
			rule LowCardinality(String),
			fallback UInt8,
			score Float64,
			context LowCardinality(String),
			regime LowCardinality(String),
			phase LowCardinality(String),
			spot Float64,
			vix Float64
		) ENGINE = MergeTree ORDER BY at`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.trades (
			id String,
			at DateTime64(3),
			kind LowCardinality(String),
			action LowCardinality(String),
			side LowCardinality(String),
			symbol String,
			order_id String,
			price Float64,
			qty Int32,
			stop_loss Float64,
			target Float64,
			pnl Float64,
			failed_step Int32,
			gate LowCardinality(String),
			reason String
		) ENGINE = MergeTree ORDER BY (at, kind)`, database),
	}
}

func (j *CHJournal) Init(ctx context.Context) error {
	return j.ch.InitSchema(ctx, Schema(j.db))
}

func (j *CHJournal) StoreDecisions(ctx context.Context, events []*models.DecisionEvent) error {
	rows := make([][]any, 0, len(events))
	for _, e := range events {
		if e == nil {
			continue
		}
		rows = append(rows, []any{
			e.ID, e.At, string(e.Action), e.Confidence, e.Reasoning, e.Rule, boolToUInt8(e.Fallback),
			e.Score, string(e.Context), string(e.Regime), string(e.Phase), e.Spot, e.Vix,
		})
	}
	q := fmt.Sprintf("INSERT INTO %s.decisions (id, at, action, confidence, reasoning, rule, fallback, score, context, regime, phase, spot, vix)", j.db)
	if err := j.ch.InsertBatch(ctx, q, rows); err != nil {
		j.l.Error("clickhouse store decisions", applogger.Int("rows", len(rows)), applogger.Error(err))
		return fmt.Errorf("store decisions: %w", err)
	}
	return nil
}

func (j *CHJournal) StoreTrades(ctx context.Context, events []*models.TradeEvent) error {
	rows := make([][]any, 0, len(events))
	for _, e := range events {
		if e == nil {
			continue
		}
		rows = append(rows, []any{
			e.ID, e.At, string(e.Kind), string(e.Action), string(e.Side), e.Symbol, e.OrderID,
			e.Price, e.Qty, e.StopLoss, e.Target, e.Pnl, e.FailedStep, e.Gate, e.Reason,
		})
	}
	q := fmt.Sprintf("INSERT INTO %s.trades (id, at, kind, action, side, symbol, order_id, price, qty, stop_loss, target, pnl, failed_step, gate, reason)", j.db)
	if err := j.ch.InsertBatch(ctx, q, rows); err != nil {
		j.l.Error("clickhouse store trades", applogger.Int("rows", len(rows)), applogger.Error(err))
		return fmt.Errorf("store trades: %w", err)
	}
	return nil
}

// WinRate is the share of closed trades since the given time with a positive
// P&L, in percent, and the number of closed trades.
func (j *CHJournal) WinRate(ctx context.Context, since time.Time) (float64, int, error) {
	q := fmt.Sprintf(`SELECT countIf(pnl > 0), count()
		FROM %s.trades
		WHERE kind IN ('EXIT', 'EXIT_ALL') AND at >= ?`, j.db)
	var wins, total int64
	if err := j.ch.DB().QueryRowContext(ctx, q, since).Scan(&wins, &total); err != nil {
		return 0, 0, fmt.Errorf("win rate: %w", err)
	}
	return winRate(wins, total), int(total), nil
}

func (j *CHJournal) Health(ctx context.Context) error { return j.ch.Health(ctx) }

func (j *CHJournal) Close() error { return j.ch.Close() }

func winRate(wins, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total) * 100
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
