package broker

import (
	"context"
	"sync"
	"time"

	"OptionsOracle/internal/domain/models"
	domsvc "OptionsOracle/internal/domain/service"
	"OptionsOracle/internal/services/execution"
	"OptionsOracle/pkg/logger"

	"github.com/google/uuid"
)

// Paper fills every order immediately and keeps an in-memory blotter.
type Paper struct {
	log     *logger.Logger
	lotSize int
	margin  float64
	tokens  map[string]string
	now     func() time.Time

	mu     sync.Mutex
	orders []models.OrderRequest
	exits  []models.ProtectiveExit
}

var _ domsvc.Broker = (*Paper)(nil)

type PaperOption func(*Paper)

// WithMargin makes AvailableMargin report m; without it margin is unknown.
func WithMargin(m float64) PaperOption {
	return func(p *Paper) { p.margin = m }
}

// WithTokens maps trading symbols to exchange tokens.
func WithTokens(tokens map[string]string) PaperOption {
	return func(p *Paper) { p.tokens = tokens }
}

func NewPaper(log *logger.Logger, lotSize int, opts ...PaperOption) *Paper {
	if log == nil {
		log = logger.Nop()
	}
	p := &Paper{log: log.Component("paper-broker"), lotSize: lotSize, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Paper) ResolveInstrument(_ context.Context, index string, strike int, side models.Side, expiry time.Time) (models.Instrument, error) {
	sym := execution.OptionSymbol(index, expiry, strike, side)
	token, ok := p.tokens[sym]
	if !ok {
		token = "PAPER:" + sym
	}
	return models.Instrument{Symbol: sym, Token: token, Strike: strike, Side: side, Expiry: expiry, LotSize: p.lotSize}, nil
}

func (p *Paper) SubmitOrder(_ context.Context, req models.OrderRequest) (models.OrderAck, error) {
	p.mu.Lock()
	p.orders = append(p.orders, req)
	p.mu.Unlock()

	ack := models.OrderAck{OrderID: "paper-" + uuid.NewString(), Status: models.OrderStatusFilled, At: p.now()}
	p.log.Info("paper order filled",
		logger.String("order_id", ack.OrderID),
		logger.String("symbol", req.TradingSymbol),
		logger.String("side", req.TransactionType),
		logger.Int("qty", req.Quantity),
	)
	return ack, nil
}

func (p *Paper) AvailableMargin(context.Context) (float64, error) {
	if p.margin <= 0 {
		return 0, domsvc.ErrMarginUnknown
	}
	return p.margin, nil
}

func (p *Paper) PlaceProtectiveExit(_ context.Context, exit models.ProtectiveExit) (string, error) {
	p.mu.Lock()
	p.exits = append(p.exits, exit)
	p.mu.Unlock()
	return "paper-exit-" + uuid.NewString(), nil
}

// Orders returns a copy of every order submitted so far.
func (p *Paper) Orders() []models.OrderRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.OrderRequest(nil), p.orders...)
}

// Exits returns a copy of every protective exit armed so far.
func (p *Paper) Exits() []models.ProtectiveExit {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.ProtectiveExit(nil), p.exits...)
}
