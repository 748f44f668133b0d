package models

import "time"

// Trend is the coarse market context derived from recent spot momentum.
type Trend string

const (
	TrendWait  Trend = "WAIT"
	TrendUp    Trend = "UPTREND"
	TrendDown  Trend = "DOWNTREND"
	TrendRange Trend = "RANGE"
)

// VolStatus describes the direction of the volatility index between samples.
type VolStatus string

const (
	VolUnknown    VolStatus = "UNKNOWN"
	VolSupportive VolStatus = "SUPPORTIVE"
	VolWeak       VolStatus = "WEAK"
)

// Regime buckets the volatility index level.
type Regime string

const (
	RegimeUltraLow  Regime = "ULTRA_LOW"
	RegimeNormalLow Regime = "NORMAL_LOW"
	RegimeSpiking   Regime = "SPIKING"
	RegimePanic     Regime = "PANIC"
)

// Phase is the intraday session phase.
type Phase string

const (
	PhaseOpening Phase = "OPENING_VOLATILITY"
	PhaseMidday  Phase = "MIDDAY_LULL"
	PhaseClosed  Phase = "CLOSED_OR_PREOPEN"
)

// Tick is one market update as delivered by the feed. Prices are in paise.
type Tick struct {
	Token           string     `json:"token"`
	LastTradedPrice float64    `json:"last_traded_price"`
	Depth           *TickDepth `json:"depth,omitempty"`
	ExchangeTime    time.Time  `json:"exchange_time"`
}

// TickDepth is the order-book snapshot attached to an option tick.
type TickDepth struct {
	Buy  []DepthLevel `json:"buy"`
	Sell []DepthLevel `json:"sell"`
}

type DepthLevel struct {
	Price    float64 `json:"price"`
	Quantity int64   `json:"quantity"`
}

// BestBid returns the top buy price, or 0 when the side is empty.
func (d *TickDepth) BestBid() float64 {
	if d == nil || len(d.Buy) == 0 {
		return 0
	}
	return d.Buy[0].Price
}

// BestAsk returns the top sell price, or 0 when the side is empty.
func (d *TickDepth) BestAsk() float64 {
	if d == nil || len(d.Sell) == 0 {
		return 0
	}
	return d.Sell[0].Price
}

// Quote is the latest state of one option contract.
type Quote struct {
	LTP     float64
	BestBid float64
	BestAsk float64
	Spread  float64
	Updated time.Time
}

// PricePoint is a timestamped price sample.
type PricePoint struct {
	At    time.Time
	Price float64
}

// DepthPoint is a timestamped top-of-book sample.
type DepthPoint struct {
	At      time.Time
	BestBid float64
	BestAsk float64
	Spread  float64
}
