package market

import (
	"encoding/json"
	"sync"
	"time"
)

// TickEvent is the inbound "tick" payload. Prices stay raw so the store can
// tell a missing field from a zero one.
type TickEvent struct {
	Code      string          `json:"code"`
	Bid       json.RawMessage `json:"bid,omitempty"`
	Ask       json.RawMessage `json:"ask,omitempty"`
	LastPrice json.RawMessage `json:"last_price,omitempty"`
	Change    json.RawMessage `json:"change,omitempty"`
}

// NewTickEvent builds an event from known prices. NaN marks a missing field.
func NewTickEvent(code string, bid, ask float64) TickEvent {
	ev := TickEvent{Code: code}
	if n := Num(bid); n.Known() {
		ev.Bid, _ = json.Marshal(n.v)
	}
	if n := Num(ask); n.Known() {
		ev.Ask, _ = json.Marshal(n.v)
	}
	return ev
}

// Quote is the latest known state of one symbol. Each field is tracked
// independently; a nil field has never been seen.
type Quote struct {
	Symbol string    `json:"symbol"`
	Bid    *float64  `json:"bid,omitempty"`
	Ask    *float64  `json:"ask,omitempty"`
	Last   *float64  `json:"last_price,omitempty"`
	Change *float64  `json:"change,omitempty"`
	Time   time.Time `json:"time"`
}

func (q Quote) HasBoth() bool { return q.Bid != nil && q.Ask != nil }

// Mid returns NaN unless both sides are known.
func (q Quote) Mid() float64 {
	if !q.HasBoth() {
		return Unknown.Float64()
	}
	return (*q.Bid + *q.Ask) / 2
}

// Spread returns NaN unless both sides are known.
func (q Quote) Spread() float64 {
	if !q.HasBoth() {
		return Unknown.Float64()
	}
	return *q.Ask - *q.Bid
}

// TickStore keeps the most recent quote per symbol. Older ticks are
// overwritten, never queued.
type TickStore struct {
	mu     sync.RWMutex
	quotes map[string]Quote
	now    func() time.Time
}

func NewTickStore() *TickStore {
	return &TickStore{quotes: make(map[string]Quote), now: time.Now}
}

// Apply merges one tick. It reports false for malformed ticks, which are
// dropped without touching the store.
func (ts *TickStore) Apply(ev TickEvent) bool {
	sym := Symbol(ev.Code)
	if sym == "" {
		return false
	}

	bid, bidErr := field(ev.Bid)
	ask, askErr := field(ev.Ask)
	if bidErr || askErr {
		return false
	}
	last, lastErr := field(ev.LastPrice)
	change, changeErr := field(ev.Change)
	if bid == nil && ask == nil && (lastErr || last == nil) {
		return false
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()

	q := ts.quotes[sym]
	q.Symbol = sym
	if bid != nil {
		q.Bid = bid
	}
	if ask != nil {
		q.Ask = ask
	}
	if last != nil && !lastErr {
		q.Last = last
	}
	if change != nil && !changeErr {
		q.Change = change
	}
	q.Time = ts.now()
	ts.quotes[sym] = q
	return true
}

// field decodes an optional price. Absent and null are (nil, false);
// present but non-numeric is (nil, true).
func field(raw json.RawMessage) (*float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, false
	}
	n := ParseNumber(raw)
	if !n.Known() {
		return nil, true
	}
	return n.Ptr(), false
}

func (ts *TickStore) Get(sym string) (Quote, bool) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	q, ok := ts.quotes[Symbol(sym)]
	return q, ok
}

// Snapshot returns a copy that callers may keep across later ticks.
func (ts *TickStore) Snapshot() map[string]Quote {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	out := make(map[string]Quote, len(ts.quotes))
	for k, v := range ts.quotes {
		out[k] = v
	}
	return out
}

func (ts *TickStore) Len() int {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return len(ts.quotes)
}
