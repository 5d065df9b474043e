package orders

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/fxdesk/market"
)

func TestOrder_UnmarshalLenient(t *testing.T) {
	t.Parallel()

	raw := `{
		"id": 1017,
		"symbol": "OANDA:EUR_USD",
		"type": "SELL",
		"status": "OPEN",
		"volume": "0.50",
		"price": "1.08512",
		"stop_loss_price": null,
		"take_profit_price": 1.08,
		"live_price": "not-a-number",
		"created_at": "2024-03-01 10:15:00"
	}`

	var o Order
	require.NoError(t, json.Unmarshal([]byte(raw), &o))

	assert.Equal(t, "1017", o.ID)
	assert.Equal(t, "EURUSD", o.Symbol)
	assert.Equal(t, Sell, o.Side)
	assert.Equal(t, Open, o.Status)
	assert.Equal(t, 0.5, o.Volume.Float64())
	assert.Equal(t, 1.08512, o.OpenPrice.Float64())
	assert.False(t, o.StopLoss.Known())
	assert.Equal(t, 1.08, o.TakeProfit.Float64())
	assert.False(t, o.LivePrice.Known())
	assert.Equal(t, time.Date(2024, 3, 1, 10, 15, 0, 0, time.UTC), o.OpenTime)
}

func TestOrder_UnmarshalClosed(t *testing.T) {
	t.Parallel()

	raw := `{"order_id":"abc","code":"GBPUSD","side":"buy","status":"closed","volume":1,
		"open_price":1.25,"close_price":1.26,"profit_loss":1000,
		"open_time":"2024-03-01T10:00:00Z","close_time":1709290800}`

	var o Order
	require.NoError(t, json.Unmarshal([]byte(raw), &o))
	assert.Equal(t, "abc", o.ID)
	assert.Equal(t, "GBPUSD", o.Symbol)
	assert.Equal(t, Buy, o.Side)
	assert.Equal(t, 1.26, o.ClosePrice.Float64())
	assert.Equal(t, 1000.0, o.ProfitLoss.Float64())
	assert.Equal(t, time.Unix(1709290800, 0).UTC(), o.CloseTime)
}

func TestOrder_RoundTrip(t *testing.T) {
	t.Parallel()

	in := Order{
		ID: "1", Symbol: "EURUSD", Side: Buy, Status: Open,
		Volume: market.Num(1), OpenPrice: market.Num(1.1),
		OpenTime: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	b, err := json.Marshal(in)
	require.NoError(t, err)

	var out Order
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, in, out)
}

func TestParseSideStatusType(t *testing.T) {
	t.Parallel()

	s, err := ParseSide("LONG")
	require.NoError(t, err)
	assert.Equal(t, Buy, s)
	assert.Equal(t, 1.0, s.Direction())
	assert.Equal(t, -1.0, Sell.Direction())
	_, err = ParseSide("hold")
	assert.Error(t, err)

	st, err := ParseStatus(" Pending ")
	require.NoError(t, err)
	assert.Equal(t, Pending, st)
	_, err = ParseStatus("cancelled")
	assert.Error(t, err)

	ot, err := ParseOrderType("")
	require.NoError(t, err)
	assert.Equal(t, MarketOrder, ot)
	_, err = ParseOrderType("iceberg")
	assert.Error(t, err)
}

func TestDecodeEvent(t *testing.T) {
	t.Parallel()

	ev, err := DecodeEvent(EventOpened, json.RawMessage(`{"order":{"id":"5","symbol":"EURUSD","side":"buy"}}`))
	require.NoError(t, err)
	assert.Equal(t, "5", ev.Order.ID)

	ev, err = DecodeEvent(EventClosed, json.RawMessage(`{"id":6,"symbol":"EURUSD","side":"sell"}`))
	require.NoError(t, err)
	assert.Equal(t, "6", ev.Order.ID)
	assert.Equal(t, Sell, ev.Order.Side)

	_, err = DecodeEvent("OrderExploded", json.RawMessage(`{}`))
	assert.Error(t, err)
}

func TestValidateVolume(t *testing.T) {
	t.Parallel()

	in := market.Instrument{
		Symbol:     "EURUSD",
		MinVolume:  market.Num(0.01),
		MaxVolume:  market.Num(50),
		VolumeStep: market.Num(0.01),
	}

	tests := []struct {
		name   string
		volume float64
		kind   RejectKind
	}{
		{"ok_step_multiple", 0.07, ""},
		{"ok_max", 50, ""},
		{"below_min", 0.001, RejectVolumeRange},
		{"above_max", 50.01, RejectVolumeRange},
		{"bad_step", 0.015, RejectVolumeStep},
		{"zero", 0, RejectVolumeRange},
		{"negative", -1, RejectVolumeRange},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateVolume(tt.volume, in)
			if tt.kind == "" {
				assert.NoError(t, err)
				return
			}
			var rej *RejectError
			require.True(t, errors.As(err, &rej))
			assert.Equal(t, tt.kind, rej.Kind)
		})
	}
}

func TestPlaceRequest_Validate(t *testing.T) {
	t.Parallel()

	price := 1.1
	sl := 1.09
	badSL := 1.11
	tp := 1.12

	tests := []struct {
		name string
		req  PlaceRequest
		kind RejectKind
	}{
		{"market_ok", PlaceRequest{Symbol: "EURUSD", Side: Buy, Volume: 1}, ""},
		{"no_symbol", PlaceRequest{Side: Buy, Volume: 1}, RejectValidation},
		{"no_side", PlaceRequest{Symbol: "EURUSD", Volume: 1}, RejectValidation},
		{"limit_no_price", PlaceRequest{Symbol: "EURUSD", Side: Buy, Type: LimitOrder, Volume: 1}, RejectValidation},
		{"limit_ok", PlaceRequest{Symbol: "EURUSD", Side: Buy, Type: LimitOrder, Volume: 1, Price: &price, StopLoss: &sl, TakeProfit: &tp}, ""},
		{"limit_sl_wrong_side", PlaceRequest{Symbol: "EURUSD", Side: Buy, Type: LimitOrder, Volume: 1, Price: &price, StopLoss: &badSL}, RejectValidation},
		{"sell_tp_wrong_side", PlaceRequest{Symbol: "EURUSD", Side: Sell, Type: LimitOrder, Volume: 1, Price: &price, TakeProfit: &tp}, RejectValidation},
		{"zero_volume", PlaceRequest{Symbol: "EURUSD", Side: Sell, Volume: 0}, RejectVolumeRange},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.req.Validate(nil)
			if tt.kind == "" {
				assert.NoError(t, err)
				return
			}
			var rej *RejectError
			require.True(t, errors.As(err, &rej), "got %v", err)
			assert.Equal(t, tt.kind, rej.Kind)
		})
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code, msg string
		want      RejectKind
	}{
		{"INSUFFICIENT_MARGIN", "", RejectInsufficientMargin},
		{"", "Not enough free margin to open position", RejectInsufficientMargin},
		{"invalid_volume_step", "", RejectVolumeStep},
		{"", "Volume must respect the lot step 0.01", RejectVolumeStep},
		{"", "Volume exceeds maximum allowed", RejectVolumeRange},
		{"", "The symbol field is required.", RejectValidation},
		{"422", "whatever", RejectValidation},
		{"", "Market is closed", RejectGeneric},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.code, tt.msg), "%q/%q", tt.code, tt.msg)
	}
}

func TestCloseResult_Unmarshal(t *testing.T) {
	t.Parallel()

	var r CloseResult
	require.NoError(t, json.Unmarshal([]byte(`{"order_id":77,"close_price":"1.1","profit_loss":-12.5,"volume":1}`), &r))
	assert.Equal(t, "77", r.OrderID)
	assert.Equal(t, 1.1, r.ClosePrice.Float64())
	assert.Equal(t, -12.5, r.ProfitLoss.Float64())
}
