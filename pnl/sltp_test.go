package pnl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/fxdesk/orders"
)

func TestPriceFromPips(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		sym   string
		side  orders.Side
		ref   float64
		pips  float64
		level Level
		want  float64
	}{
		{"buy_sl", "EURUSD", orders.Buy, 1.1000, 20, StopLoss, 1.0980},
		{"buy_tp", "EURUSD", orders.Buy, 1.1000, 40, TakeProfit, 1.1040},
		{"sell_sl", "EURUSD", orders.Sell, 1.1000, 20, StopLoss, 1.1020},
		{"sell_tp", "EURUSD", orders.Sell, 1.1000, 40, TakeProfit, 1.0960},
		{"jpy_buy_sl", "USDJPY", orders.Buy, 150.000, 20, StopLoss, 149.800},
		{"fractional_pips", "EURUSD", orders.Buy, 1.10003, 12.5, TakeProfit, 1.10128},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := PriceFromPips(tt.sym, tt.side, tt.ref, tt.pips, tt.level)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			back, err := PipsFromPrice(tt.sym, tt.side, tt.ref, got, tt.level)
			require.NoError(t, err)
			assert.Equal(t, tt.pips, back)
		})
	}
}

func TestPipsFromPrice_WrongSide(t *testing.T) {
	t.Parallel()

	pips, err := PipsFromPrice("EURUSD", orders.Buy, 1.1000, 1.1020, StopLoss)
	require.NoError(t, err)
	assert.Equal(t, -20.0, pips)
}

func TestSLTP_Errors(t *testing.T) {
	t.Parallel()

	_, err := PriceFromPips("EURUSD", orders.Buy, 1.1, -1, StopLoss)
	assert.Error(t, err)
	_, err = PriceFromPips("EURUSD", "", 1.1, 10, StopLoss)
	assert.Error(t, err)
	_, err = PriceFromPips("EURUSD", orders.Buy, 1.1, 10, Level("trail"))
	assert.Error(t, err)
	_, err = PipsFromPrice("EURUSD", orders.Sell, 1.1, nan(), TakeProfit)
	assert.Error(t, err)
}

func TestDigits(t *testing.T) {
	t.Parallel()

	assert.Equal(t, int32(5), Digits("EURUSD"))
	assert.Equal(t, int32(3), Digits("OANDA:USD_JPY"))
	assert.Equal(t, int32(2), Digits("US500"))
}
