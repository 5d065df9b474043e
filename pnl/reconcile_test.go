package pnl

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/fxdesk/market"
	"github.com/rustyeddy/fxdesk/orders"
)

func f(v float64) *float64 { return &v }

func openOrder(id, sym string, side orders.Side, open, vol float64) orders.Order {
	return orders.Order{
		ID: id, Symbol: sym, Side: side, Status: orders.Open,
		OpenPrice: market.Num(open), Volume: market.Num(vol),
	}
}

func TestReconcile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		order      orders.Order
		quote      market.Quote
		wantPrice  float64
		wantSource Source
		wantPips   float64
		wantPoints float64
		wantProfit float64
	}{
		{
			name:       "long_on_bid",
			order:      openOrder("1", "EURUSD", orders.Buy, 1.10000, 1),
			quote:      market.Quote{Bid: f(1.10050), Ask: f(1.10070)},
			wantPrice:  1.10050,
			wantSource: FromBid,
			wantPips:   5,
			wantPoints: 50,
			wantProfit: 50,
		},
		{
			name:       "short_on_ask",
			order:      openOrder("2", "EURUSD", orders.Sell, 1.2000, 1),
			quote:      market.Quote{Bid: f(1.1950), Ask: f(1.1952)},
			wantPrice:  1.1952,
			wantSource: FromAsk,
			wantPips:   48,
			wantPoints: 480,
			wantProfit: 480,
		},
		{
			name:       "short_loss",
			order:      openOrder("3", "GBPUSD", orders.Sell, 1.2500, 0.1),
			quote:      market.Quote{Bid: f(1.2548), Ask: f(1.2550)},
			wantPrice:  1.2550,
			wantSource: FromAsk,
			wantPips:   -50,
			wantPoints: -500,
			wantProfit: -50,
		},
		{
			name:       "jpy_pair",
			order:      openOrder("4", "USDJPY", orders.Buy, 150.00, 0.1),
			quote:      market.Quote{Bid: f(150.50), Ask: f(150.52)},
			wantPrice:  150.50,
			wantSource: FromBid,
			wantPips:   50,
			wantPoints: 500,
			wantProfit: 5000,
		},
		{
			name:       "non_fx_contract_one",
			order:      openOrder("5", "BTCUSDT", orders.Buy, 60000, 2),
			quote:      market.Quote{Bid: f(60500), Ask: f(60510)},
			wantPrice:  60500,
			wantSource: FromBid,
			wantPips:   500,
			wantPoints: 500,
			wantProfit: 1000,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			quotes := map[string]market.Quote{tt.order.Symbol: tt.quote}
			got := Reconcile([]orders.Order{tt.order}, quotes)
			require.Len(t, got, 1)

			p := got[0]
			assert.True(t, p.Valid)
			assert.Equal(t, tt.wantPrice, p.CurrentPrice)
			assert.Equal(t, tt.wantSource, p.PriceSource)
			assert.Equal(t, tt.wantPips, p.DistancePips)
			assert.Equal(t, tt.wantPoints, p.DistancePoints)
			assert.Equal(t, tt.wantProfit, p.Profit)
		})
	}
}

func TestReconcile_FallsBackToLivePrice(t *testing.T) {
	t.Parallel()

	o := openOrder("1", "EURUSD", orders.Sell, 1.2000, 1)
	o.LivePrice = market.Num(1.1990)

	// quote only has the bid; a short needs the ask
	got := Reconcile([]orders.Order{o}, map[string]market.Quote{"EURUSD": {Bid: f(1.1985)}})
	require.Len(t, got, 1)
	assert.Equal(t, FromLive, got[0].PriceSource)
	assert.Equal(t, 1.1990, got[0].CurrentPrice)
	assert.Equal(t, 100.0, got[0].Profit)
}

func TestReconcile_NonFiniteIsSkippedNotPoisoning(t *testing.T) {
	t.Parallel()

	list := []orders.Order{
		openOrder("good", "EURUSD", orders.Buy, 1.1000, 1),
		openOrder("no-quote", "AUDUSD", orders.Buy, 0.6600, 1),
		{ID: "no-entry", Symbol: "EURUSD", Side: orders.Buy, Status: orders.Open, Volume: market.Num(1)},
		{ID: "no-volume", Symbol: "EURUSD", Side: orders.Buy, Status: orders.Open, OpenPrice: market.Num(1.1)},
		{ID: "no-side", Symbol: "EURUSD", Status: orders.Open, OpenPrice: market.Num(1.1), Volume: market.Num(1)},
	}
	quotes := map[string]market.Quote{"EURUSD": {Bid: f(1.1010), Ask: f(1.1012), Last: f(math.NaN())}}

	var got []Position
	require.NotPanics(t, func() { got = Reconcile(list, quotes) })
	require.Len(t, got, 5)

	assert.True(t, got[0].Valid)
	for _, p := range got[1:] {
		assert.False(t, p.Valid, p.Order.ID)
		assert.True(t, math.IsNaN(p.Profit), p.Order.ID)
		assert.Equal(t, Placeholder, p.FormatProfit(), p.Order.ID)
	}

	total, n := TotalOpenPnL(got)
	assert.Equal(t, 1, n)
	assert.Equal(t, 100.0, total)
}

func TestReconcile_SkipsNonOpen(t *testing.T) {
	t.Parallel()

	pending := openOrder("p", "EURUSD", orders.Buy, 1.1, 1)
	pending.Status = orders.Pending
	got := Reconcile([]orders.Order{pending}, nil)
	assert.Empty(t, got)
}

func TestReconcileWith_InstrumentContract(t *testing.T) {
	t.Parallel()

	gold := openOrder("g", "XAUUSD", orders.Buy, 2000, 1)
	instruments := market.Instruments{"XAUUSD": {Symbol: "XAUUSD", ContractSize: market.Num(100)}}
	quotes := map[string]market.Quote{"XAUUSD": {Bid: f(2010), Ask: f(2010.5)}}

	got := ReconcileWith([]orders.Order{gold}, quotes, instruments)
	require.Len(t, got, 1)
	assert.Equal(t, 1000.0, got[0].Profit)

	// without metadata XAUUSD looks like a six-letter pair
	got = Reconcile([]orders.Order{gold}, quotes)
	assert.Equal(t, 1_000_000.0, got[0].Profit)
}

func TestTotalOpenPnL(t *testing.T) {
	t.Parallel()

	ps := []Position{
		{Profit: 10.10, Valid: true},
		{Profit: 20.20, Valid: true},
		{Profit: math.NaN(), Valid: true},
		{Profit: math.Inf(1), Valid: true},
		{Profit: 99, Valid: false},
	}
	total, n := TotalOpenPnL(ps)
	assert.Equal(t, 2, n)
	assert.Equal(t, 30.30, total)

	total, n = TotalOpenPnL(nil)
	assert.Equal(t, 0, n)
	assert.Equal(t, 0.0, total)
}

func TestPosition_MarshalJSON(t *testing.T) {
	t.Parallel()

	got := Reconcile([]orders.Order{openOrder("1", "EURUSD", orders.Buy, 1.1, 1)}, nil)
	b, err := json.Marshal(got[0])
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Nil(t, m["profit"])
	assert.Nil(t, m["current_price"])
	assert.Equal(t, false, m["valid"])
}

func TestFormat(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "12.35", Format(12.346, 2))
	assert.Equal(t, Placeholder, Format(math.NaN(), 2))
	assert.Equal(t, Placeholder, Format(math.Inf(-1), 2))
	assert.Equal(t, "1.10050", FormatPrice("EURUSD", 1.1005))
	assert.Equal(t, "150.500", FormatPrice("USDJPY", 150.5))
}

func nan() float64 { return math.NaN() }
