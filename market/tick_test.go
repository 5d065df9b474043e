package market

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tick(t *testing.T, raw string) TickEvent {
	t.Helper()
	var ev TickEvent
	require.NoError(t, json.Unmarshal([]byte(raw), &ev))
	return ev
}

func TestTickStore_ApplyGet(t *testing.T) {
	t.Parallel()

	ts := NewTickStore()
	ok := ts.Apply(tick(t, `{"code":"OANDA:EUR_USD","bid":1.1,"ask":1.2,"last_price":1.15,"change":-0.25}`))
	require.True(t, ok)

	q, found := ts.Get("EURUSD")
	require.True(t, found)
	assert.Equal(t, "EURUSD", q.Symbol)
	assert.Equal(t, 1.1, *q.Bid)
	assert.Equal(t, 1.2, *q.Ask)
	assert.Equal(t, 1.15, *q.Last)
	assert.Equal(t, -0.25, *q.Change)
	assert.InDelta(t, 1.15, q.Mid(), 1e-12)
	assert.InDelta(t, 0.1, q.Spread(), 1e-12)
}

func TestTickStore_GetMissing(t *testing.T) {
	t.Parallel()

	ts := NewTickStore()
	q, ok := ts.Get("NOSUCH")
	assert.False(t, ok)
	assert.Equal(t, Quote{}, q)
}

func TestTickStore_PartialUpdateKeepsOtherSide(t *testing.T) {
	t.Parallel()

	ts := NewTickStore()
	require.True(t, ts.Apply(tick(t, `{"code":"EURUSD","bid":1.1000,"ask":1.1002}`)))

	tests := []struct {
		name    string
		raw     string
		wantBid float64
		wantAsk float64
	}{
		{"bid_only", `{"code":"BINANCE:EURUSD","bid":1.1010}`, 1.1010, 1.1002},
		{"ask_only", `{"code":"EURUSD","ask":1.1020}`, 1.1010, 1.1020},
		{"null_bid", `{"code":"EURUSD","bid":null,"ask":1.1030}`, 1.1010, 1.1030},
		{"string_prices", `{"code":"eur/usd","bid":"1.1040"}`, 1.1040, 1.1030},
	}

	// sequential on purpose: each row builds on the previous state
	for _, tt := range tests {
		require.True(t, ts.Apply(tick(t, tt.raw)), tt.name)
		q, ok := ts.Get("EURUSD")
		require.True(t, ok, tt.name)
		assert.Equal(t, tt.wantBid, *q.Bid, tt.name)
		assert.Equal(t, tt.wantAsk, *q.Ask, tt.name)
	}
	assert.Equal(t, 1, ts.Len())
}

func TestTickStore_DropsMalformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
	}{
		{"missing_code", `{"bid":1.1,"ask":1.2}`},
		{"empty_code", `{"code":"  ","bid":1.1}`},
		{"non_numeric_bid", `{"code":"EURUSD","bid":"abc","ask":1.2}`},
		{"non_numeric_ask", `{"code":"EURUSD","bid":1.1,"ask":true}`},
		{"no_prices", `{"code":"EURUSD"}`},
		{"only_bad_last", `{"code":"EURUSD","last_price":"x"}`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ts := NewTickStore()
			ts.Apply(tick(t, `{"code":"EURUSD","bid":1.0,"ask":1.5}`))

			assert.NotPanics(t, func() {
				assert.False(t, ts.Apply(tick(t, tt.raw)))
			})
			q, _ := ts.Get("EURUSD")
			assert.Equal(t, 1.0, *q.Bid)
			assert.Equal(t, 1.5, *q.Ask)
		})
	}
}

func TestTickStore_LastWriteWins(t *testing.T) {
	t.Parallel()

	ts := NewTickStore()
	ts.Apply(NewTickEvent("GBPUSD", 1.25, 1.2502))
	ts.Apply(NewTickEvent("GBPUSD", 1.26, 1.2602))

	q, _ := ts.Get("GBPUSD")
	assert.Equal(t, 1.26, *q.Bid)
	assert.Equal(t, 1.2602, *q.Ask)
}

func TestTickStore_SnapshotIsCopy(t *testing.T) {
	t.Parallel()

	ts := NewTickStore()
	ts.Apply(NewTickEvent("USDJPY", 150.1, 150.12))
	snap := ts.Snapshot()
	ts.Apply(NewTickEvent("USDJPY", 151.0, 151.02))

	assert.Equal(t, 150.1, *snap["USDJPY"].Bid)
	q, _ := ts.Get("USDJPY")
	assert.Equal(t, 151.0, *q.Bid)
}

func TestTickStore_Concurrent(t *testing.T) {
	t.Parallel()

	ts := NewTickStore()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				ts.Apply(NewTickEvent("EURUSD", 1+float64(j)/1e5, 1.0002+float64(j)/1e5))
				_ = ts.Snapshot()
			}
		}(i)
	}
	wg.Wait()

	q, ok := ts.Get("EURUSD")
	require.True(t, ok)
	assert.True(t, q.HasBoth())
}

func TestQuote_MidUnknownSide(t *testing.T) {
	t.Parallel()

	bid := 1.1
	q := Quote{Bid: &bid}
	assert.True(t, q.Mid() != q.Mid(), "Mid should be NaN without ask")
	assert.True(t, q.Spread() != q.Spread(), "Spread should be NaN without ask")
}
