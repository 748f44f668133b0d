package snapshot

import (
	"sync"
	"time"

	"OptionsOracle/internal/domain/models"
)

const (
	DefaultHistorySize = 300
	DefaultWindow      = 5 * time.Minute
)

// Option configures a MarketSnapshot.
type Option func(*MarketSnapshot)

// WithHistorySize sets the capacity of every bounded history.
func WithHistorySize(n int) Option {
	return func(s *MarketSnapshot) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithWindow sets the look-back window used by the option and depth history reads.
func WithWindow(d time.Duration) Option {
	return func(s *MarketSnapshot) {
		if d > 0 {
			s.window = d
		}
	}
}

// MarketSnapshot is the latest market state plus short rolling histories.
// The ingestion side is its only writer; readers receive copies.
type MarketSnapshot struct {
	mu       sync.RWMutex
	capacity int
	window   time.Duration

	spot    float64
	hasSpot bool
	vix     float64
	hasVix  bool

	chain       map[string]models.Quote
	optionOrder []string
	heavyBase   map[string]float64
	heavy       map[string]float64

	prices    *Ring[float64]
	optionLtp map[string]*Ring[models.PricePoint]
	depth     *Ring[models.DepthPoint]
}

func New(opts ...Option) *MarketSnapshot {
	s := &MarketSnapshot{
		capacity:  DefaultHistorySize,
		window:    DefaultWindow,
		chain:     make(map[string]models.Quote),
		heavyBase: make(map[string]float64),
		heavy:     make(map[string]float64),
		optionLtp: make(map[string]*Ring[models.PricePoint]),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.prices = NewRing[float64](s.capacity)
	s.depth = NewRing[models.DepthPoint](s.capacity)
	return s
}

func (s *MarketSnapshot) UpdateSpot(price float64) {
	s.mu.Lock()
	s.spot, s.hasSpot = price, true
	s.mu.Unlock()
}

func (s *MarketSnapshot) UpdateVix(vix float64) {
	s.mu.Lock()
	s.vix, s.hasVix = vix, true
	s.mu.Unlock()
}

// UpdateHeavy records a heavyweight constituent price. The stored value is
// the change against the first price seen for that token this session, so
// a positive value means the stock is up on the session.
func (s *MarketSnapshot) UpdateHeavy(token string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	base, ok := s.heavyBase[token]
	if !ok {
		s.heavyBase[token] = price
		base = price
	}
	s.heavy[token] = price - base
}

// UpdateOption stores the latest quote of an option contract and appends
// to its price history and, when depth is present, to the depth history.
func (s *MarketSnapshot) UpdateOption(token string, ltp float64, depth *models.TickDepth, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := models.Quote{LTP: ltp, Updated: at}
	if depth != nil {
		q.BestBid, q.BestAsk = depth.BestBid(), depth.BestAsk()
		if q.BestBid > 0 && q.BestAsk > 0 {
			q.Spread = q.BestAsk - q.BestBid
		}
		s.depth.Push(models.DepthPoint{At: at, BestBid: q.BestBid, BestAsk: q.BestAsk, Spread: q.Spread})
	}
	if _, seen := s.chain[token]; !seen {
		s.optionOrder = append(s.optionOrder, token)
	}
	s.chain[token] = q

	if ltp > 0 {
		r, ok := s.optionLtp[token]
		if !ok {
			r = NewRing[models.PricePoint](s.capacity)
			s.optionLtp[token] = r
		}
		r.Push(models.PricePoint{At: at, Price: ltp})
	}
}

// SampleSpot appends the current spot to the price history. It is a no-op
// until the first spot arrives.
func (s *MarketSnapshot) SampleSpot() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasSpot {
		return false
	}
	s.prices.Push(s.spot)
	return true
}

// ResetSession clears per-session state: histories and heavyweight baselines.
func (s *MarketSnapshot) ResetSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices.Reset()
	s.depth.Reset()
	s.optionLtp = make(map[string]*Ring[models.PricePoint])
	s.heavyBase = make(map[string]float64)
	s.heavy = make(map[string]float64)
}

func (s *MarketSnapshot) Spot() (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.spot, s.hasSpot
}

func (s *MarketSnapshot) Vix() (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vix, s.hasVix
}

// Prices returns a copy of the price history, oldest first.
func (s *MarketSnapshot) Prices() []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prices.Slice()
}

// Heavyweights returns a copy of the heavyweight session changes.
func (s *MarketSnapshot) Heavyweights() map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]float64, len(s.heavy))
	for k, v := range s.heavy {
		out[k] = v
	}
	return out
}

// Quote returns the latest quote of an option token.
func (s *MarketSnapshot) Quote(token string) (models.Quote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.chain[token]
	return q, ok
}

// PrimaryOption returns the first option token ever seen.
func (s *MarketSnapshot) PrimaryOption() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.optionOrder) == 0 {
		return "", false
	}
	return s.optionOrder[0], true
}

// OptionHistory returns the LTP samples of token inside the window ending at now.
func (s *MarketSnapshot) OptionHistory(token string, now time.Time) []models.PricePoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.optionLtp[token]
	if !ok {
		return nil
	}
	cutoff := now.Add(-s.window)
	return r.Filter(func(p models.PricePoint) bool { return !p.At.Before(cutoff) })
}

// DepthHistory returns the depth samples inside the window ending at now.
func (s *MarketSnapshot) DepthHistory(now time.Time) []models.DepthPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := now.Add(-s.window)
	return s.depth.Filter(func(p models.DepthPoint) bool { return !p.At.Before(cutoff) })
}

// View is a consistent copy of everything the decision loop reads in one cycle.
type View struct {
	Spot          float64
	HasSpot       bool
	Vix           float64
	HasVix        bool
	Prices        []float64
	Heavy         map[string]float64
	PrimaryOption string
	OptionLtp     []models.PricePoint
	Depth         []models.DepthPoint
}

// Read takes one consistent copy of the snapshot under a single read lock.
func (s *MarketSnapshot) Read(now time.Time) View {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := View{
		Spot:    s.spot,
		HasSpot: s.hasSpot,
		Vix:     s.vix,
		HasVix:  s.hasVix,
		Prices:  s.prices.Slice(),
		Heavy:   make(map[string]float64, len(s.heavy)),
	}
	for k, h := range s.heavy {
		v.Heavy[k] = h
	}
	cutoff := now.Add(-s.window)
	if len(s.optionOrder) > 0 {
		v.PrimaryOption = s.optionOrder[0]
		if r, ok := s.optionLtp[v.PrimaryOption]; ok {
			v.OptionLtp = r.Filter(func(p models.PricePoint) bool { return !p.At.Before(cutoff) })
		}
	}
	v.Depth = s.depth.Filter(func(p models.DepthPoint) bool { return !p.At.Before(cutoff) })
	return v
}
