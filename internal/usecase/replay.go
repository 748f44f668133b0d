package usecase

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"OptionsOracle/internal/domain/models"
)

// ReplayResult summarizes one replay run.
type ReplayResult struct {
	Ticks   int
	Skipped int
	Cycles  int
	Last    models.OracleStatus
}

// Replayer drives the decision loop from recorded ticks on the recorded
// exchange clock: one sample and one cycle per step of exchange time.
type Replayer struct {
	router  *TickRouter
	sampler *SpotSampler
	loop    *OracleLoop
	step    time.Duration
}

func NewReplayer(router *TickRouter, sampler *SpotSampler, loop *OracleLoop, step time.Duration) *Replayer {
	if step <= 0 {
		step = time.Second
	}
	return &Replayer{router: router, sampler: sampler, loop: loop, step: step}
}

// Replay reads one JSON tick per line. Lines that do not decode, or carry
// no exchange time, are skipped. Cycles due before a tick run before it is
// applied; one last cycle runs after the input ends.
func (r *Replayer) Replay(ctx context.Context, src io.Reader) (ReplayResult, error) {
	var (
		res  ReplayResult
		next time.Time
	)
	sc := bufio.NewScanner(src)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var t models.Tick
		if err := json.Unmarshal(line, &t); err != nil || t.ExchangeTime.IsZero() {
			res.Skipped++
			continue
		}
		if next.IsZero() {
			next = t.ExchangeTime.Truncate(r.step)
		}
		for !t.ExchangeTime.Before(next) {
			r.cycle(ctx, next, &res)
			next = next.Add(r.step)
		}
		if err := r.router.OnTick(ctx, &t); err != nil {
			return res, fmt.Errorf("apply tick %s: %w", t.Token, err)
		}
		res.Ticks++
	}
	if err := sc.Err(); err != nil {
		return res, fmt.Errorf("read ticks: %w", err)
	}
	if !next.IsZero() {
		r.cycle(ctx, next, &res)
	}
	return res, nil
}

func (r *Replayer) cycle(ctx context.Context, at time.Time, res *ReplayResult) {
	if r.sampler != nil {
		r.sampler.Sample(at)
	}
	res.Last = r.loop.Step(ctx, at)
	res.Cycles++
}
