package usecase

import (
	"context"
	"time"

	"OptionsOracle/internal/service/snapshot"
)

// MarketClock reports whether the exchange session is open.
type MarketClock interface {
	IsMarketHours(now time.Time) bool
}

// SpotSampler appends the current spot to the price history once per
// interval during market hours.
type SpotSampler struct {
	snap     *snapshot.MarketSnapshot
	clock    MarketClock
	interval time.Duration
	now      func() time.Time
}

func NewSpotSampler(snap *snapshot.MarketSnapshot, clock MarketClock, interval time.Duration) *SpotSampler {
	if interval <= 0 {
		interval = time.Second
	}
	return &SpotSampler{snap: snap, clock: clock, interval: interval, now: time.Now}
}

// Sample takes one sample at now. It reports whether a price was appended.
func (s *SpotSampler) Sample(now time.Time) bool {
	if !s.clock.IsMarketHours(now) {
		return false
	}
	return s.snap.SampleSpot()
}

// Run samples until ctx ends.
func (s *SpotSampler) Run(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Sample(s.now())
		}
	}
}
