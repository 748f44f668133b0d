package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"OptionsOracle/internal/domain/models"
	domsvc "OptionsOracle/internal/domain/service"
	"OptionsOracle/internal/service/breaker"
	"OptionsOracle/internal/service/ratelimit"
)

const orderKey = "orders"

type OrderConfig struct {
	Index   string
	LotSize int
	// Expiry pins the contract expiry; zero means the next weekly expiry.
	Expiry   time.Time
	Location *time.Location
}

// OrderManager builds exchange orders and sends them to the broker through
// a rate limiter and a circuit breaker.
type OrderManager struct {
	broker  domsvc.Broker
	limiter *ratelimit.Limiter
	breaker *breaker.Breaker
	cfg     OrderConfig
}

func NewOrderManager(b domsvc.Broker, lim *ratelimit.Limiter, br *breaker.Breaker, cfg OrderConfig) *OrderManager {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if lim == nil {
		lim = ratelimit.New(0, 1)
	}
	if br == nil {
		br = breaker.New(breaker.Config{Name: "broker"})
	}
	return &OrderManager{broker: b, limiter: lim, breaker: br, cfg: cfg}
}

// Expiry is the contract expiry used for entries placed at now.
func (m *OrderManager) Expiry(now time.Time) time.Time {
	if !m.cfg.Expiry.IsZero() {
		return m.cfg.Expiry
	}
	return NextExpiry(now.In(m.cfg.Location))
}

// Resolve finds the option contract for strike and side.
func (m *OrderManager) Resolve(ctx context.Context, strike int, side models.Side, now time.Time) (models.Instrument, error) {
	expiry := m.Expiry(now)
	out, err := m.breaker.Execute(func() (any, error) {
		return m.broker.ResolveInstrument(ctx, m.cfg.Index, strike, side, expiry)
	})
	if err != nil {
		return models.Instrument{}, fmt.Errorf("resolve %s: %w", OptionSymbol(m.cfg.Index, expiry, strike, side), err)
	}
	inst := out.(models.Instrument)
	if inst.LotSize == 0 {
		inst.LotSize = m.cfg.LotSize
	}
	return inst, nil
}

// OrderParams is the market intraday order for inst.
func OrderParams(inst models.Instrument, qty int, transaction string) models.OrderRequest {
	return models.OrderRequest{
		ClientID:        uuid.NewString(),
		Variety:         models.VarietyNormal,
		TradingSymbol:   inst.Symbol,
		SymbolToken:     inst.Token,
		TransactionType: transaction,
		Exchange:        models.ExchangeNFO,
		OrderType:       models.OrderTypeMarket,
		ProductType:     models.ProductIntraday,
		Duration:        models.DurationDay,
		Quantity:        qty,
	}
}

// Buy opens long premium on either side.
func (m *OrderManager) Buy(ctx context.Context, inst models.Instrument, qty int) (models.OrderAck, error) {
	return m.submit(ctx, OrderParams(inst, qty, models.TransactionBuy))
}

// Sell closes a long premium position.
func (m *OrderManager) Sell(ctx context.Context, inst models.Instrument, qty int) (models.OrderAck, error) {
	return m.submit(ctx, OrderParams(inst, qty, models.TransactionSell))
}

func (m *OrderManager) submit(ctx context.Context, req models.OrderRequest) (models.OrderAck, error) {
	if err := m.limiter.Wait(ctx, orderKey); err != nil {
		return models.OrderAck{}, fmt.Errorf("order rate limit: %w", err)
	}
	out, err := m.breaker.Execute(func() (any, error) {
		return m.broker.SubmitOrder(ctx, req)
	})
	if err != nil {
		return models.OrderAck{}, fmt.Errorf("submit %s %s: %w", req.TransactionType, req.TradingSymbol, err)
	}
	ack := out.(models.OrderAck)
	if ack.OrderID == "" {
		return ack, fmt.Errorf("submit %s %s: %w", req.TransactionType, req.TradingSymbol, domsvc.ErrOrderRejected)
	}
	return ack, nil
}

// ArmProtectiveExit places the stop and target legs for a filled entry.
func (m *OrderManager) ArmProtectiveExit(ctx context.Context, exit models.ProtectiveExit) (string, error) {
	if err := m.limiter.Wait(ctx, orderKey); err != nil {
		return "", fmt.Errorf("order rate limit: %w", err)
	}
	out, err := m.breaker.Execute(func() (any, error) {
		return m.broker.PlaceProtectiveExit(ctx, exit)
	})
	if err != nil {
		return "", fmt.Errorf("protective exit %s: %w", exit.Instrument.Symbol, err)
	}
	return out.(string), nil
}

// AvailableMargin asks the broker for free margin. Margin lookups bypass
// the breaker so an unknown margin never trips order flow.
func (m *OrderManager) AvailableMargin(ctx context.Context) (float64, error) {
	return m.broker.AvailableMargin(ctx)
}

func (m *OrderManager) BreakerState() string { return m.breaker.State() }
