package usecase

import (
	"context"
	"sync"
	"time"

	"OptionsOracle/internal/domain/models"
	drepo "OptionsOracle/internal/domain/repository"
	"OptionsOracle/pkg/logger"
)

// StatusBoard holds the latest per-cycle status for operators and mirrors
// it to the state store in the background.
type StatusBoard struct {
	mu       sync.RWMutex
	status   models.OracleStatus
	has      bool
	dirty    bool
	store    drepo.StateStore
	interval time.Duration
	log      *logger.Logger
}

func NewStatusBoard(store drepo.StateStore, interval time.Duration, log *logger.Logger) *StatusBoard {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &StatusBoard{store: store, interval: interval, log: log.Component("status")}
}

func (b *StatusBoard) Update(s models.OracleStatus) {
	b.mu.Lock()
	b.status = s
	b.has = true
	b.dirty = true
	b.mu.Unlock()
}

// Status returns a copy of the latest status. ok is false before the first cycle.
func (b *StatusBoard) Status() (models.OracleStatus, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return copyStatus(b.status), b.has
}

// Restore loads the last persisted status so the API has something to show
// before the first cycle completes.
func (b *StatusBoard) Restore(ctx context.Context) error {
	if b.store == nil {
		return nil
	}
	s, err := b.store.LoadStatus(ctx)
	if err != nil || s == nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.has {
		b.status = *s
		b.has = true
	}
	return nil
}

// Flush writes the status to the store when it changed since the last write.
func (b *StatusBoard) Flush(ctx context.Context) error {
	if b.store == nil {
		return nil
	}
	b.mu.Lock()
	if !b.dirty {
		b.mu.Unlock()
		return nil
	}
	s := copyStatus(b.status)
	b.dirty = false
	b.mu.Unlock()

	if err := b.store.SaveStatus(ctx, &s); err != nil {
		b.mu.Lock()
		b.dirty = true
		b.mu.Unlock()
		return err
	}
	return nil
}

// Run flushes on the configured interval until ctx ends, then flushes once more.
func (b *StatusBoard) Run(ctx context.Context) {
	t := time.NewTicker(b.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			fctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := b.Flush(fctx); err != nil {
				b.log.Warn("final status flush failed", logger.Error(err))
			}
			cancel()
			return
		case <-t.C:
			if err := b.Flush(ctx); err != nil {
				b.log.Warn("status flush failed", logger.Error(err))
			}
		}
	}
}

func copyStatus(s models.OracleStatus) models.OracleStatus {
	out := s
	if s.Vix != nil {
		v := *s.Vix
		out.Vix = &v
	}
	if s.Spot != nil {
		v := *s.Spot
		out.Spot = &v
	}
	if s.LastDecision != nil {
		d := *s.LastDecision
		out.LastDecision = &d
	}
	return out
}
