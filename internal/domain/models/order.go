package models

import "time"

const (
	VarietyNormal     = "NORMAL"
	ExchangeNFO       = "NFO"
	OrderTypeMarket   = "MARKET"
	ProductIntraday   = "INTRADAY"
	DurationDay       = "DAY"
	TransactionBuy    = "BUY"
	TransactionSell   = "SELL"
	OrderStatusFilled = "COMPLETE"
)

// Instrument is a tradeable option contract resolved by the broker.
type Instrument struct {
	Symbol  string    `json:"symbol"`
	Token   string    `json:"token"`
	Strike  int       `json:"strike"`
	Side    Side      `json:"side"`
	Expiry  time.Time `json:"expiry"`
	LotSize int       `json:"lot_size"`
}

// OrderRequest is the broker-facing order payload.
type OrderRequest struct {
	ClientID        string  `json:"client_id"`
	Variety         string  `json:"variety"`
	TradingSymbol   string  `json:"tradingsymbol"`
	SymbolToken     string  `json:"symboltoken"`
	TransactionType string  `json:"transactiontype"`
	Exchange        string  `json:"exchange"`
	OrderType       string  `json:"ordertype"`
	ProductType     string  `json:"producttype"`
	Duration        string  `json:"duration"`
	Price           float64 `json:"price"`
	Quantity        int     `json:"quantity"`
}

// OrderAck is the broker's acknowledgment of an order.
type OrderAck struct {
	OrderID string    `json:"order_id"`
	Status  string    `json:"status"`
	At      time.Time `json:"at"`
}

// ProtectiveExit describes the two-leg stop/target exit armed after entry.
// StopLoss and Target are premium levels on Instrument and are zero when the
// premium was unknown at entry. The Underlying fields carry the same levels
// on the index spot for brokers that trigger on the underlying.
type ProtectiveExit struct {
	ParentOrderID    string     `json:"parent_order_id"`
	Instrument       Instrument `json:"instrument"`
	Qty              int        `json:"qty"`
	StopLoss         float64    `json:"stop_loss,omitempty"`
	Target           float64    `json:"target,omitempty"`
	UnderlyingToken  string     `json:"underlying_token,omitempty"`
	UnderlyingStop   float64    `json:"underlying_stop"`
	UnderlyingTarget float64    `json:"underlying_target"`
}
