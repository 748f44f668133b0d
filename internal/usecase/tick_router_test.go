package usecase

import (
	"context"
	"testing"
	"time"

	"OptionsOracle/internal/domain/models"
	"OptionsOracle/internal/service/snapshot"
	"OptionsOracle/internal/services/contextrisk"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(m *recMetrics) (*TickRouter, *snapshot.MarketSnapshot) {
	snap := snapshot.New()
	return NewTickRouter(snap, m, TickRouterConfig{
		SpotToken:   "26000",
		VixToken:    "26017",
		HeavyTokens: []string{"2885", "1333"},
	}), snap
}

func TestTickRouterConvertsPaise(t *testing.T) {
	m := &recMetrics{}
	r, snap := newRouter(m)
	ctx := context.Background()

	require.NoError(t, r.OnTick(ctx, &models.Tick{Token: "26000", LastTradedPrice: 2201050, ExchangeTime: midday}))
	require.NoError(t, r.OnTick(ctx, &models.Tick{Token: "26017", LastTradedPrice: 1425}))
	require.NoError(t, r.OnTick(ctx, &models.Tick{Token: "2885", LastTradedPrice: 250000}))
	require.NoError(t, r.OnTick(ctx, &models.Tick{Token: "2885", LastTradedPrice: 251000}))
	require.NoError(t, r.OnTick(ctx, &models.Tick{
		Token:           "43650",
		LastTradedPrice: 12050,
		ExchangeTime:    midday,
		Depth: &models.TickDepth{
			Buy:  []models.DepthLevel{{Price: 12000, Quantity: 75}},
			Sell: []models.DepthLevel{{Price: 12100, Quantity: 150}},
		},
	}))

	spot, ok := snap.Spot()
	require.True(t, ok)
	assert.InDelta(t, 22010.5, spot, 1e-9)

	vix, ok := snap.Vix()
	require.True(t, ok)
	assert.InDelta(t, 14.25, vix, 1e-9)

	assert.InDelta(t, 10.0, snap.Heavyweights()["2885"], 1e-9)

	q, ok := snap.Quote("43650")
	require.True(t, ok)
	assert.InDelta(t, 120.5, q.LTP, 1e-9)
	assert.InDelta(t, 120.0, q.BestBid, 1e-9)
	assert.InDelta(t, 1.0, q.Spread, 1e-9)

	assert.Equal(t, map[string]int{KindSpot: 1, KindVix: 1, KindHeavy: 2, KindOption: 1}, m.ticks)
	assert.Equal(t, midday.UnixNano(), r.LastTick().UnixNano())
}

func TestTickRouterResetsSessionOnNewDay(t *testing.T) {
	snap := snapshot.New()
	r := NewTickRouter(snap, &recMetrics{}, TickRouterConfig{
		SpotToken:   "26000",
		VixToken:    "26017",
		HeavyTokens: []string{"2885"},
		Location:    ist,
	})
	ctx := context.Background()
	spotAt := func(paise float64, at time.Time) {
		require.NoError(t, r.OnTick(ctx, &models.Tick{Token: "26000", LastTradedPrice: paise, ExchangeTime: at}))
		snap.SampleSpot()
	}

	spotAt(2200000, midday)
	spotAt(2201000, midday.Add(time.Minute))
	require.NoError(t, r.OnTick(ctx, &models.Tick{Token: "2885", LastTradedPrice: 250000, ExchangeTime: midday}))
	require.Len(t, snap.Prices(), 2)
	require.Len(t, snap.Heavyweights(), 1)

	// 23:59 IST is still the same exchange day even though UTC has moved on.
	late := time.Date(2025, 1, 8, 23, 59, 0, 0, ist)
	spotAt(2202000, late)
	assert.Len(t, snap.Prices(), 3)

	next := time.Date(2025, 1, 9, 9, 15, 0, 0, ist)
	spotAt(2210000, next)
	assert.Equal(t, []float64{22100}, snap.Prices())
	assert.Empty(t, snap.Heavyweights(), "heavyweight baselines belong to the previous session")

	// A late tick from the previous day does not reset again.
	spotAt(2203000, late)
	assert.Equal(t, []float64{22100, 22030}, snap.Prices())
}

func TestTickRouterKind(t *testing.T) {
	r, _ := newRouter(&recMetrics{})
	assert.Equal(t, KindSpot, r.Kind("26000"))
	assert.Equal(t, KindVix, r.Kind("26017"))
	assert.Equal(t, KindHeavy, r.Kind("1333"))
	assert.Equal(t, KindOption, r.Kind("99999"))
	assert.True(t, r.LastTick().IsZero())
}

func TestSpotSamplerOnlyInSession(t *testing.T) {
	snap := snapshot.New()
	s := NewSpotSampler(snap, contextrisk.New(contextrisk.DefaultConfig()), time.Second)

	assert.False(t, s.Sample(midday), "no spot yet")
	snap.UpdateSpot(22000)
	assert.True(t, s.Sample(midday))
	assert.False(t, s.Sample(time.Date(2025, 1, 8, 16, 0, 0, 0, ist)))
	assert.Equal(t, []float64{22000}, snap.Prices())
}
