package httpview

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/fxdesk/account"
	"github.com/rustyeddy/fxdesk/desk"
	"github.com/rustyeddy/fxdesk/market"
	"github.com/rustyeddy/fxdesk/orders"
)

type backend struct{ acct bool }

func (b backend) ListOrders(_ context.Context, st orders.Status) ([]orders.Order, error) {
	if st != orders.Open {
		return nil, nil
	}
	return []orders.Order{{
		ID:        "1",
		Symbol:    "EURUSD",
		Side:      orders.Sell,
		Status:    orders.Open,
		Volume:    market.Num(1),
		OpenPrice: market.Num(1.2000),
	}}, nil
}

func (b backend) GetAccount(context.Context) (account.Account, error) {
	return account.Account{Balance: market.Num(10500), UsedMargin: market.Num(0)}, nil
}

func (b backend) Instruments(context.Context) (market.Instruments, error) {
	return nil, nil
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	s := desk.New(backend{}, desk.Options{})
	require.NoError(t, s.Refresh(context.Background()))
	s.Ticks().Apply(market.NewTickEvent("EURUSD", 1.1950, 1.1952))

	srv := httptest.NewServer(NewHandler(s).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func TestPositions(t *testing.T) {
	t.Parallel()
	srv := newServer(t)

	var body struct {
		Positions []struct {
			CurrentPrice float64 `json:"current_price"`
			PriceSource  string  `json:"price_source"`
			Profit       float64 `json:"profit"`
			Valid        bool    `json:"valid"`
		} `json:"positions"`
		OpenPnL float64 `json:"open_pnl"`
		Valued  int     `json:"valued"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/positions", &body))
	require.Len(t, body.Positions, 1)
	assert.InDelta(t, 1.1952, body.Positions[0].CurrentPrice, 1e-12)
	assert.Equal(t, "ask", body.Positions[0].PriceSource)
	assert.InDelta(t, 480.0, body.Positions[0].Profit, 1e-9)
	assert.InDelta(t, 480.0, body.OpenPnL, 1e-9)
	assert.Equal(t, 1, body.Valued)
}

func TestAccountMarginLevelNull(t *testing.T) {
	t.Parallel()
	srv := newServer(t)

	var body map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/account", &body))
	assert.InDelta(t, 10980.0, body["equity_live"], 1e-9)
	assert.Nil(t, body["margin_level"])
}

func TestRoutes(t *testing.T) {
	t.Parallel()
	srv := newServer(t)

	tests := []struct {
		path string
		want int
	}{
		{"/healthcheck", http.StatusOK},
		{"/snapshot", http.StatusOK},
		{"/orders/open", http.StatusOK},
		{"/orders/closed", http.StatusOK},
		{"/orders/bogus", http.StatusBadRequest},
		{"/ticks", http.StatusOK},
		{"/ticks/eurusd", http.StatusOK},
		{"/ticks/GBPUSD", http.StatusNotFound},
		{"/notices", http.StatusOK},
		{"/nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			resp, err := http.Get(srv.URL + tt.path)
			require.NoError(t, err)
			defer resp.Body.Close()
			_, _ = io.Copy(io.Discard, resp.Body)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, ln, NewHandler(desk.New(backend{}, desk.Options{})).Routes()) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthcheck")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down")
	}
}
