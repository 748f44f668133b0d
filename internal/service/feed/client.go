package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"OptionsOracle/internal/domain/models"
	drepo "OptionsOracle/internal/domain/repository"
	"OptionsOracle/pkg/logger"

	"github.com/gorilla/websocket"
)

// Exchange segments used in subscription requests.
const (
	ExchangeCash    = 1
	ExchangeFutOpts = 2
)

// Subscription modes: LTP only, or full quote with depth.
const (
	ModeLTP  = 1
	ModeFull = 3
)

// Config describes the tick gateway and what to subscribe to.
type Config struct {
	URL            string
	APIKey         string
	ClientCode     string
	FeedToken      string
	CashTokens     []string // spot, VIX, heavyweights
	OptionTokens   []string
	ReconnectDelay time.Duration
	PingInterval   time.Duration
	BufferSize     int
}

// Client is a TickStream over a JSON WebSocket gateway.
type Client struct {
	cfg Config
	log *logger.Logger

	mu        sync.Mutex // guards conn and serializes writes
	conn      *websocket.Conn
	connected atomic.Bool
	dropped   atomic.Int64
}

var _ drepo.TickStream = (*Client)(nil)

func New(cfg Config, log *logger.Logger) *Client {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1024
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Client{cfg: cfg, log: log.Component("feed")}
}

// Connect dials the gateway with the credentials as headers.
func (c *Client) Connect(ctx context.Context) error {
	h := http.Header{}
	if c.cfg.APIKey != "" {
		h.Set("x-api-key", c.cfg.APIKey)
	}
	if c.cfg.ClientCode != "" {
		h.Set("x-client-code", c.cfg.ClientCode)
	}
	if c.cfg.FeedToken != "" {
		h.Set("x-feed-token", c.cfg.FeedToken)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.URL, h)
	if err != nil {
		return fmt.Errorf("feed connect: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.connected.Store(true)
	c.log.Info("feed connected", logger.String("url", c.cfg.URL))
	return nil
}

type tokenList struct {
	ExchangeType int      `json:"exchangeType"`
	Tokens       []string `json:"tokens"`
}

type subscribeRequest struct {
	CorrelationID string `json:"correlationID"`
	Action        int    `json:"action"`
	Params        struct {
		Mode      int         `json:"mode"`
		TokenList []tokenList `json:"tokenList"`
	} `json:"params"`
}

// Subscribe requests LTP for the cash tokens and full depth for option tokens.
func (c *Client) Subscribe(ctx context.Context) error {
	reqs := make([]subscribeRequest, 0, 2)
	if len(c.cfg.CashTokens) > 0 {
		r := subscribeRequest{CorrelationID: "core", Action: 1}
		r.Params.Mode = ModeLTP
		r.Params.TokenList = []tokenList{{ExchangeType: ExchangeCash, Tokens: c.cfg.CashTokens}}
		reqs = append(reqs, r)
	}
	if len(c.cfg.OptionTokens) > 0 {
		r := subscribeRequest{CorrelationID: "options", Action: 1}
		r.Params.Mode = ModeFull
		r.Params.TokenList = []tokenList{{ExchangeType: ExchangeFutOpts, Tokens: c.cfg.OptionTokens}}
		reqs = append(reqs, r)
	}

	for _, r := range reqs {
		if err := c.writeJSON(r); err != nil {
			return fmt.Errorf("subscribe %s: %w", r.CorrelationID, err)
		}
		c.log.Info("feed subscribed",
			logger.String("group", r.CorrelationID),
			logger.Int("tokens", len(r.Params.TokenList[0].Tokens)))
	}
	return nil
}

func (c *Client) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return errors.New("feed not connected")
	}
	return c.conn.WriteJSON(v)
}

func (c *Client) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return errors.New("feed not connected")
	}
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
}

// wireLevel and wireTick are the gateway's JSON frame layout.
type wireLevel struct {
	Price    float64 `json:"price"`
	Quantity int64   `json:"quantity"`
}

type wireTick struct {
	Token             string      `json:"token"`
	LastTradedPrice   float64     `json:"last_traded_price"`
	ExchangeTimestamp int64       `json:"exchange_timestamp"` // ms
	Best5Buy          []wireLevel `json:"best_5_buy_data"`
	Best5Sell         []wireLevel `json:"best_5_sell_data"`
}

// DecodeFrame parses one frame, which may hold a single tick or an array.
// Frames without a token (acks, heartbeats) yield no ticks.
func DecodeFrame(b []byte) ([]*models.Tick, error) {
	var batch []wireTick
	if len(b) > 0 && b[0] == '[' {
		if err := json.Unmarshal(b, &batch); err != nil {
			return nil, err
		}
	} else {
		var one wireTick
		if err := json.Unmarshal(b, &one); err != nil {
			return nil, err
		}
		batch = []wireTick{one}
	}

	out := make([]*models.Tick, 0, len(batch))
	for _, w := range batch {
		if w.Token == "" {
			continue
		}
		t := &models.Tick{Token: w.Token, LastTradedPrice: w.LastTradedPrice}
		if w.ExchangeTimestamp > 0 {
			t.ExchangeTime = time.UnixMilli(w.ExchangeTimestamp)
		}
		if len(w.Best5Buy) > 0 || len(w.Best5Sell) > 0 {
			t.Depth = &models.TickDepth{Buy: levels(w.Best5Buy), Sell: levels(w.Best5Sell)}
		}
		out = append(out, t)
	}
	return out, nil
}

func levels(ws []wireLevel) []models.DepthLevel {
	out := make([]models.DepthLevel, len(ws))
	for i, l := range ws {
		out[i] = models.DepthLevel{Price: l.Price, Quantity: l.Quantity}
	}
	return out
}

// Read streams ticks until ctx ends or the connection fails. Ticks are dropped
// when the consumer falls behind; the first read error is sent on errs and
// both channels close.
func (c *Client) Read(ctx context.Context) (<-chan *models.Tick, <-chan error) {
	ticks := make(chan *models.Tick, c.cfg.BufferSize)
	errs := make(chan error, 1)

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		errs <- errors.New("feed not connected")
		close(ticks)
		close(errs)
		return ticks, errs
	}

	readCtx, cancel := context.WithCancel(ctx)
	if c.cfg.PingInterval > 0 {
		go func() {
			t := time.NewTicker(c.cfg.PingInterval)
			defer t.Stop()
			for {
				select {
				case <-readCtx.Done():
					return
				case <-t.C:
					if err := c.ping(); err != nil {
						c.log.Warn("feed ping failed", logger.Error(err))
					}
				}
			}
		}()
	}
	go func() {
		<-readCtx.Done()
		// unblock ReadMessage
		_ = conn.SetReadDeadline(time.Now())
	}()

	go func() {
		defer cancel()
		defer close(ticks)
		defer close(errs)
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				c.connected.Store(false)
				if ctx.Err() == nil {
					errs <- fmt.Errorf("feed read: %w", err)
				}
				return
			}
			batch, err := DecodeFrame(b)
			if err != nil {
				c.log.Debug("skip undecodable frame", logger.Error(err))
				continue
			}
			for _, t := range batch {
				select {
				case ticks <- t:
				default:
					if n := c.dropped.Add(1); n%1000 == 1 {
						c.log.Warn("feed backpressure, dropping ticks", logger.Int64("dropped_total", n))
					}
				}
			}
		}
	}()

	return ticks, errs
}

// Reconnect waits the configured delay, then connects and re-subscribes.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	select {
	case <-time.After(c.cfg.ReconnectDelay):
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

func (c *Client) Close() error {
	c.connected.Store(false)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) IsConnected() bool { return c.connected.Load() }

// Dropped reports ticks discarded under backpressure since start.
func (c *Client) Dropped() int64 { return c.dropped.Load() }
