package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"OptionsOracle/internal/domain/models"
	domrepo "OptionsOracle/internal/domain/repository"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS oracle_decisions (
	id         TEXT PRIMARY KEY,
	at         TIMESTAMPTZ NOT NULL,
	action     TEXT NOT NULL,
	confidence INTEGER NOT NULL,
	reasoning  TEXT NOT NULL,
	rule       TEXT NOT NULL,
	fallback   BOOLEAN NOT NULL,
	score      DOUBLE PRECISION NOT NULL,
	context    TEXT NOT NULL,
	regime     TEXT NOT NULL,
	phase      TEXT NOT NULL,
	spot       DOUBLE PRECISION NOT NULL,
	vix        DOUBLE PRECISION NOT NULL
);
CREATE TABLE IF NOT EXISTS oracle_trades (
	id          TEXT PRIMARY KEY,
	at          TIMESTAMPTZ NOT NULL,
	kind        TEXT NOT NULL,
	action      TEXT NOT NULL,
	side        TEXT NOT NULL,
	symbol      TEXT NOT NULL,
	order_id    TEXT NOT NULL,
	price       DOUBLE PRECISION NOT NULL,
	qty         INTEGER NOT NULL,
	stop_loss   DOUBLE PRECISION NOT NULL,
	target      DOUBLE PRECISION NOT NULL,
	pnl         DOUBLE PRECISION NOT NULL,
	failed_step INTEGER NOT NULL,
	gate        TEXT NOT NULL,
	reason      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS oracle_trades_at_idx ON oracle_trades (at);`

// closedKinds are the trade event kinds that realize P&L.
var closedKinds = []string{string(models.TradeExit), string(models.TradeExitAll)}

// PGJournal implements Journal on PostgreSQL. Inserts are idempotent on the
// event id so a replayed batch does not duplicate rows.
type PGJournal struct {
	db      *sqlx.DB
	timeout time.Duration
}

var _ domrepo.Journal = (*PGJournal)(nil)

// OpenPostgres connects with the lib/pq driver.
func OpenPostgres(ctx context.Context, dsn string, maxOpen int) (*sqlx.DB, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return db, nil
}

func NewPGJournal(db *sqlx.DB, timeout time.Duration) *PGJournal {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PGJournal{db: db, timeout: timeout}
}

func (j *PGJournal) Init(ctx context.Context) error {
	if _, err := j.db.ExecContext(ctx, pgSchema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (j *PGJournal) StoreDecisions(ctx context.Context, events []*models.DecisionEvent) error {
	rows := make([][]any, 0, len(events))
	for _, e := range events {
		if e != nil {
			rows = append(rows, []any{e.ID, e.At, string(e.Action), e.Confidence, e.Reasoning, e.Rule,
				e.Fallback, e.Score, string(e.Context), string(e.Regime), string(e.Phase), e.Spot, e.Vix})
		}
	}
	return j.insert(ctx, `INSERT INTO oracle_decisions
		(id, at, action, confidence, reasoning, rule, fallback, score, context, regime, phase, spot, vix)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING`, rows)
}

func (j *PGJournal) StoreTrades(ctx context.Context, events []*models.TradeEvent) error {
	rows := make([][]any, 0, len(events))
	for _, e := range events {
		if e != nil {
			rows = append(rows, []any{e.ID, e.At, string(e.Kind), string(e.Action), string(e.Side), e.Symbol,
				e.OrderID, e.Price, e.Qty, e.StopLoss, e.Target, e.Pnl, e.FailedStep, e.Gate, e.Reason})
		}
	}
	return j.insert(ctx, `INSERT INTO oracle_trades
		(id, at, kind, action, side, symbol, order_id, price, qty, stop_loss, target, pnl, failed_step, gate, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO NOTHING`, rows)
}

func (j *PGJournal) insert(ctx context.Context, query string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	tx, err := j.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r...); err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) {
				return fmt.Errorf("insert row (%s): %w", pqErr.Code.Name(), err)
			}
			return fmt.Errorf("insert row: %w", err)
		}
	}
	return tx.Commit()
}

func (j *PGJournal) WinRate(ctx context.Context, since time.Time) (float64, int, error) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	var out struct {
		Wins  int64 `db:"wins"`
		Total int64 `db:"total"`
	}
	err := j.db.GetContext(ctx, &out, `SELECT
			COUNT(*) FILTER (WHERE pnl > 0) AS wins,
			COUNT(*) AS total
		FROM oracle_trades
		WHERE kind = ANY($1) AND at >= $2`, pq.Array(closedKinds), since)
	if err != nil {
		return 0, 0, fmt.Errorf("win rate: %w", err)
	}
	return winRate(out.Wins, out.Total), int(out.Total), nil
}

func (j *PGJournal) Health(ctx context.Context) error { return j.db.PingContext(ctx) }

func (j *PGJournal) Close() error { return j.db.Close() }
