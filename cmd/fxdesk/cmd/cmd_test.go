package cmd

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/fxdesk/market"
	"github.com/rustyeddy/fxdesk/orders"
)

func f64(v float64) *float64 { return &v }

func TestBuildPlace(t *testing.T) {
	t.Parallel()

	quote := func(sym string) (market.Quote, bool) {
		if sym != "EURUSD" {
			return market.Quote{}, false
		}
		return market.Quote{Symbol: sym, Bid: f64(1.1000), Ask: f64(1.1002)}, true
	}

	tests := []struct {
		name    string
		side    string
		typ     string
		price   *float64
		lv      levelFlags
		wantSL  *float64
		wantTP  *float64
		wantErr string
	}{
		{
			name:   "market buy pips from price",
			side:   "buy",
			typ:    "market",
			price:  f64(1.1000),
			lv:     levelFlags{slPips: f64(20), tpPips: f64(40)},
			wantSL: f64(1.0980),
			wantTP: f64(1.1040),
		},
		{
			name:   "market buy pips from ask",
			side:   "buy",
			lv:     levelFlags{slPips: f64(20)},
			wantSL: f64(1.0982),
		},
		{
			name:   "limit sell pips",
			side:   "sell",
			typ:    "limit",
			price:  f64(1.1000),
			lv:     levelFlags{slPips: f64(20), tp: f64(1.0950)},
			wantSL: f64(1.1020),
			wantTP: f64(1.0950),
		},
		{
			name:    "price and pips together",
			side:    "buy",
			price:   f64(1.1),
			lv:      levelFlags{sl: f64(1.09), slPips: f64(10)},
			wantErr: "not both",
		},
		{name: "bad side", side: "hold", wantErr: "side"},
		{name: "bad type", side: "buy", typ: "iceberg", wantErr: "order type"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			pl, err := buildPlace("eur/usd", tt.side, tt.typ, 0.1, tt.price, tt.lv, quote)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			req := pl.req
			assert.Equal(t, "EURUSD", req.Symbol)
			assertLevel(t, tt.wantSL, req.StopLoss)
			assertLevel(t, tt.wantTP, req.TakeProfit)
			if req.Type == orders.MarketOrder {
				assert.Nil(t, req.Price)
			} else {
				assert.Equal(t, tt.price, req.Price)
			}
		})
	}
}

func TestSizeToRisk(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		price      *float64
		lv         levelFlags
		wantVolume float64
		wantErr    string
	}{
		{"sell with pip stop", f64(1.1000), levelFlags{slPips: f64(25)}, 0.40, ""},
		{"buy with price stop", f64(1.1000), levelFlags{sl: f64(1.0950)}, 0.20, ""},
		{"no stop", f64(1.1000), levelFlags{}, 0, "stop loss"},
		{"no reference", nil, levelFlags{sl: f64(1.0950)}, 0, "entry reference"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			side := "buy"
			if strings.HasPrefix(tt.name, "sell") {
				side = "sell"
			}
			pl, err := buildPlace("EURUSD", side, "market", 0, tt.price, tt.lv, nil)
			require.NoError(t, err)

			res, err := sizeToRisk(&pl, 10000, 1, nil, "USD")
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.wantVolume, pl.req.Volume, 1e-9)
			assert.InDelta(t, tt.wantVolume, res.Volume, 1e-9)
			assert.InDelta(t, 100, res.RiskAmount, 1e-9)
		})
	}
}

func TestRiskNote(t *testing.T) {
	t.Parallel()

	pl, err := buildPlace("EURUSD", "buy", "market", 1, f64(1.1000),
		levelFlags{sl: f64(1.0980), tp: f64(1.1040)}, nil)
	require.NoError(t, err)
	assert.Equal(t, "At risk to the stop: 200.00, reward:risk 2.00", riskNote(pl, nil, "USD"))

	pl, err = buildPlace("EURUSD", "buy", "market", 1, nil, levelFlags{sl: f64(1.0980)}, nil)
	require.NoError(t, err)
	assert.Empty(t, riskNote(pl, nil, "USD"))
}

func TestBuildPlacePipsWithoutReference(t *testing.T) {
	t.Parallel()

	_, err := buildPlace("GBPUSD", "buy", "market", 0.1, nil, levelFlags{tpPips: f64(10)}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reference price")
}

func assertLevel(t *testing.T, want, got *float64) {
	t.Helper()
	if want == nil {
		assert.Nil(t, got)
		return
	}
	require.NotNil(t, got)
	assert.InDelta(t, *want, *got, 1e-9)
}

func TestBuildSLTP(t *testing.T) {
	t.Parallel()

	o := orders.Order{
		ID:         "42",
		Symbol:     "EURUSD",
		Side:       orders.Buy,
		Status:     orders.Open,
		OpenPrice:  market.Num(1.1000),
		StopLoss:   market.Num(1.0900),
		TakeProfit: market.Num(1.1200),
	}

	tests := []struct {
		name    string
		lv      levelFlags
		wantSL  *float64
		wantTP  *float64
		wantErr bool
	}{
		{name: "tp in pips keeps sl", lv: levelFlags{tpPips: f64(50)}, wantSL: f64(1.09), wantTP: f64(1.105)},
		{name: "clear sl", lv: levelFlags{clearSL: true}, wantSL: nil, wantTP: f64(1.12)},
		{name: "set sl price", lv: levelFlags{sl: f64(1.095)}, wantSL: f64(1.095), wantTP: f64(1.12)},
		{name: "sl above entry", lv: levelFlags{sl: f64(1.2)}, wantErr: true},
		{name: "nothing to change", lv: levelFlags{}, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req, err := buildSLTP(o, tt.lv)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assertLevel(t, tt.wantSL, req.StopLoss)
			assertLevel(t, tt.wantTP, req.TakeProfit)
		})
	}

	_, err := buildSLTP(o, levelFlags{sl: f64(1.2)})
	var rej *orders.RejectError
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, orders.RejectValidation, rej.Kind)
}

func TestDayBounds(t *testing.T) {
	t.Parallel()

	start, end, err := dayBounds(time.UTC, "2024-01-15")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, 24*time.Hour, end.Sub(start))

	_, _, err = dayBounds(time.UTC, "15/01/2024")
	assert.Error(t, err)
}

func TestPassword(t *testing.T) {
	got, err := password("flag", strings.NewReader("ignored\n"))
	require.NoError(t, err)
	assert.Equal(t, "flag", got)

	t.Setenv("FXDESK_PASSWORD", "")
	got, err = password("", strings.NewReader("from-stdin\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "from-stdin", got)

	_, err = password("", strings.NewReader(""))
	assert.Error(t, err)

	t.Setenv("FXDESK_PASSWORD", "from-env")
	got, err = password("", strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, "from-env", got)
}

func TestConfigInitAndValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fxdesk.yaml")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	t.Cleanup(func() { rootCmd.SetOut(nil); rootCmd.SetArgs(nil) })

	rootCmd.SetArgs([]string{"config", "init", "-o", path})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "Created default configuration")

	out.Reset()
	rootCmd.SetArgs([]string{"config", "validate", "-f", path})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "Configuration valid")

	out.Reset()
	rootCmd.SetArgs([]string{"version"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "fxdesk version "+version)
}
