package broker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"OptionsOracle/internal/domain/models"
	domsvc "OptionsOracle/internal/domain/service"
	xhttp "OptionsOracle/pkg/http"
)

// Gateway talks to an order gateway over REST.
//
//	GET  /instruments/search?index=&strike=&side=&expiry=YYYY-MM-DD
//	POST /orders
//	GET  /funds
//	POST /orders/protective
type Gateway struct {
	client *xhttp.Client
}

var _ domsvc.Broker = (*Gateway)(nil)

func NewGateway(baseURL, apiKey string, timeout time.Duration) *Gateway {
	return &Gateway{client: xhttp.NewClient(
		xhttp.WithBaseURL(baseURL),
		xhttp.WithHeader("X-API-Key", apiKey),
		xhttp.WithTimeout(timeout),
	)}
}

// NewGatewayWithClient is used by tests to point at an httptest server.
func NewGatewayWithClient(c *xhttp.Client) *Gateway {
	return &Gateway{client: c}
}

type instrumentResponse struct {
	Symbol  string `json:"symbol"`
	Token   string `json:"token"`
	LotSize int    `json:"lot_size"`
}

func (g *Gateway) ResolveInstrument(ctx context.Context, index string, strike int, side models.Side, expiry time.Time) (models.Instrument, error) {
	var out instrumentResponse
	err := g.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: http.MethodGet,
		URL:    "/instruments/search",
		QueryParams: map[string][]string{
			"index":  {index},
			"strike": {strconv.Itoa(strike)},
			"side":   {string(side)},
			"expiry": {expiry.Format("2006-01-02")},
		},
	}, &out)
	if err != nil {
		var se *xhttp.StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return models.Instrument{}, domsvc.ErrInstrumentNotFound
		}
		return models.Instrument{}, fmt.Errorf("search instrument: %w", err)
	}
	if out.Token == "" {
		return models.Instrument{}, domsvc.ErrInstrumentNotFound
	}
	return models.Instrument{
		Symbol:  out.Symbol,
		Token:   out.Token,
		Strike:  strike,
		Side:    side,
		Expiry:  expiry,
		LotSize: out.LotSize,
	}, nil
}

type orderResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (g *Gateway) SubmitOrder(ctx context.Context, req models.OrderRequest) (models.OrderAck, error) {
	var out orderResponse
	if err := g.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  http.MethodPost,
		URL:     "/orders",
		Headers: map[string]string{"X-Client-Order-ID": req.ClientID},
		Body:    req,
	}, &out); err != nil {
		var se *xhttp.StatusError
		if errors.As(err, &se) && se.Code >= 400 && se.Code < 500 && !se.Temporary() {
			return models.OrderAck{}, fmt.Errorf("%w: %s", domsvc.ErrOrderRejected, se.Body)
		}
		return models.OrderAck{}, fmt.Errorf("submit order: %w", err)
	}
	if strings.EqualFold(out.Status, "rejected") || out.OrderID == "" {
		return models.OrderAck{}, fmt.Errorf("%w: %s", domsvc.ErrOrderRejected, out.Message)
	}
	return models.OrderAck{OrderID: out.OrderID, Status: strings.ToUpper(out.Status), At: time.Now()}, nil
}

func (g *Gateway) AvailableMargin(ctx context.Context) (float64, error) {
	var out struct {
		AvailableMargin *float64 `json:"available_margin"`
	}
	if err := g.client.SendAndParse(ctx, &xhttp.RequestOptions{Method: http.MethodGet, URL: "/funds"}, &out); err != nil {
		return 0, fmt.Errorf("%w: %v", domsvc.ErrMarginUnknown, err)
	}
	if out.AvailableMargin == nil {
		return 0, domsvc.ErrMarginUnknown
	}
	return *out.AvailableMargin, nil
}

func (g *Gateway) PlaceProtectiveExit(ctx context.Context, exit models.ProtectiveExit) (string, error) {
	var out orderResponse
	if err := g.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: http.MethodPost,
		URL:    "/orders/protective",
		Body:   exit,
	}, &out); err != nil {
		return "", fmt.Errorf("place protective exit: %w", err)
	}
	if out.OrderID == "" {
		return "", fmt.Errorf("%w: %s", domsvc.ErrOrderRejected, out.Message)
	}
	return out.OrderID, nil
}
