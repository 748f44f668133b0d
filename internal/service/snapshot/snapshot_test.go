package snapshot

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"OptionsOracle/internal/domain/models"
)

func TestRingEvictsOldest(t *testing.T) {
	r := NewRing[int](3)
	for i := 1; i <= 5; i++ {
		r.Push(i)
	}
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, 3, r.Cap())
	assert.Equal(t, []int{3, 4, 5}, r.Slice())

	last, ok := r.Last()
	require.True(t, ok)
	assert.Equal(t, 5, last)

	r.Reset()
	assert.Equal(t, 0, r.Len())
	_, ok = r.Last()
	assert.False(t, ok)
}

func TestRingFilterKeepsOrder(t *testing.T) {
	r := NewRing[int](4)
	for i := 1; i <= 6; i++ {
		r.Push(i)
	}
	assert.Equal(t, []int{4, 6}, r.Filter(func(v int) bool { return v%2 == 0 }))
}

func TestSampleSpotNeedsSpot(t *testing.T) {
	s := New(WithHistorySize(3))
	assert.False(t, s.SampleSpot())
	assert.Empty(t, s.Prices())

	for _, p := range []float64{100, 101, 102, 103} {
		s.UpdateSpot(p)
		assert.True(t, s.SampleSpot())
	}
	assert.Equal(t, []float64{101, 102, 103}, s.Prices())
}

func TestPricesReturnsCopy(t *testing.T) {
	s := New()
	s.UpdateSpot(100)
	s.SampleSpot()
	p := s.Prices()
	p[0] = 1
	assert.Equal(t, []float64{100}, s.Prices())
}

func TestUpdateOptionTracksHistoryAndDepth(t *testing.T) {
	s := New(WithWindow(5 * time.Minute))
	t0 := time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)

	depth := &models.TickDepth{
		Buy:  []models.DepthLevel{{Price: 99}},
		Sell: []models.DepthLevel{{Price: 101}},
	}
	s.UpdateOption("A", 100, depth, t0)
	s.UpdateOption("B", 50, nil, t0.Add(time.Second))
	s.UpdateOption("A", 98, &models.TickDepth{Buy: []models.DepthLevel{{Price: 97}}}, t0.Add(6*time.Minute))

	primary, ok := s.PrimaryOption()
	require.True(t, ok)
	assert.Equal(t, "A", primary)

	now := t0.Add(6 * time.Minute)
	hist := s.OptionHistory("A", now)
	require.Len(t, hist, 1)
	assert.Equal(t, 98.0, hist[0].Price)

	dh := s.DepthHistory(now)
	require.Len(t, dh, 1)
	assert.Equal(t, 0.0, dh[0].Spread, "one-sided book has no spread")

	all := s.DepthHistory(t0)
	require.Len(t, all, 2)
	assert.Equal(t, 2.0, all[0].Spread)

	q, ok := s.Quote("B")
	require.True(t, ok)
	assert.Equal(t, 50.0, q.LTP)
}

func TestUpdateHeavyStoresSessionChange(t *testing.T) {
	s := New()
	s.UpdateHeavy("2885", 2500)
	s.UpdateHeavy("1333", 1600)
	s.UpdateHeavy("2885", 2510)
	s.UpdateHeavy("1333", 1590)

	h := s.Heavyweights()
	assert.Equal(t, 10.0, h["2885"])
	assert.Equal(t, -10.0, h["1333"])

	s.ResetSession()
	assert.Empty(t, s.Heavyweights())
}

func TestReadIsConsistentCopy(t *testing.T) {
	s := New()
	now := time.Now()
	s.UpdateSpot(22000)
	s.UpdateVix(13.2)
	s.SampleSpot()
	s.UpdateOption("OPT", 120, nil, now)

	v := s.Read(now)
	assert.True(t, v.HasSpot)
	assert.True(t, v.HasVix)
	assert.Equal(t, 22000.0, v.Spot)
	assert.Equal(t, []float64{22000}, v.Prices)
	assert.Equal(t, "OPT", v.PrimaryOption)
	assert.Len(t, v.OptionLtp, 1)
}

func TestConcurrentWriterAndReaders(t *testing.T) {
	s := New(WithHistorySize(50))
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			s.UpdateSpot(float64(i))
			s.SampleSpot()
			s.UpdateOption("X", float64(i), nil, time.Now())
		}
	}()
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				v := s.Read(time.Now())
				assert.LessOrEqual(t, len(v.Prices), 50)
			}
		}()
	}
	wg.Wait()
	assert.Len(t, s.Prices(), 50)
}
