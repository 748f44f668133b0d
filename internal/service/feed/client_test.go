package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"OptionsOracle/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFrame(t *testing.T) {
	ticks, err := DecodeFrame([]byte(`{"token":"26000","last_traded_price":2215050,"exchange_timestamp":1772703900000}`))
	require.NoError(t, err)
	require.Len(t, ticks, 1)
	assert.Equal(t, "26000", ticks[0].Token)
	assert.Equal(t, 2215050.0, ticks[0].LastTradedPrice)
	assert.Equal(t, int64(1772703900), ticks[0].ExchangeTime.Unix())
	assert.Nil(t, ticks[0].Depth)

	ticks, err = DecodeFrame([]byte(`[
		{"token":"43121","last_traded_price":12050,
		 "best_5_buy_data":[{"price":12000,"quantity":650}],
		 "best_5_sell_data":[{"price":12100,"quantity":325}]},
		{"type":"heartbeat"}
	]`))
	require.NoError(t, err)
	require.Len(t, ticks, 1)
	require.NotNil(t, ticks[0].Depth)
	assert.Equal(t, 12000.0, ticks[0].Depth.BestBid())
	assert.Equal(t, 12100.0, ticks[0].Depth.BestAsk())

	_, err = DecodeFrame([]byte(`not json`))
	assert.Error(t, err)
}

func TestClientSubscribesAndStreams(t *testing.T) {
	subs := make(chan subscribeRequest, 2)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k", r.Header.Get("x-api-key"))
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		for i := 0; i < 2; i++ {
			var req subscribeRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			subs <- req
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"token":"26000","last_traded_price":2200000}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"token":"26017","last_traded_price":1350}`))
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := New(Config{
		URL:          "ws" + strings.TrimPrefix(srv.URL, "http"),
		APIKey:       "k",
		CashTokens:   []string{"26000", "26017"},
		OptionTokens: []string{"43121"},
	}, logger.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Connect(ctx))
	assert.True(t, c.IsConnected())
	require.NoError(t, c.Subscribe(ctx))

	core := <-subs
	assert.Equal(t, ModeLTP, core.Params.Mode)
	assert.Equal(t, []string{"26000", "26017"}, core.Params.TokenList[0].Tokens)
	opts := <-subs
	assert.Equal(t, ModeFull, opts.Params.Mode)
	assert.Equal(t, ExchangeFutOpts, opts.Params.TokenList[0].ExchangeType)

	ticks, errs := c.Read(ctx)
	var got []string
	for tk := range ticks {
		got = append(got, tk.Token)
	}
	assert.Equal(t, []string{"26000", "26017"}, got)
	assert.Error(t, <-errs)
	assert.False(t, c.IsConnected())
	assert.NoError(t, c.Close())
}

func TestReadWithoutConnection(t *testing.T) {
	c := New(Config{}, nil)
	ticks, errs := c.Read(context.Background())
	_, open := <-ticks
	assert.False(t, open)
	assert.Error(t, <-errs)
}
