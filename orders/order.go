package orders

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/fxdesk/market"
)

type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// ParseSide accepts the spellings the backend and the CLI use.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy", "long":
		return Buy, nil
	case "sell", "short":
		return Sell, nil
	}
	return "", fmt.Errorf("unknown side %q (want buy|sell)", s)
}

// Direction is +1 for buy and -1 for sell.
func (s Side) Direction() float64 {
	if s == Sell {
		return -1
	}
	return 1
}

type Status string

const (
	Pending Status = "pending"
	Open    Status = "open"
	Closed  Status = "closed"
)

// Statuses lists the buckets the cache keeps, in display order.
var Statuses = []Status{Pending, Open, Closed}

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("unknown status %q (want pending|open|closed)", s)
	}
	return st, nil
}

func (s Status) Valid() bool {
	return s == Pending || s == Open || s == Closed
}

// Order is one server-owned order. The client never changes its state
// locally; it only displays it and requests transitions.
type Order struct {
	ID         string        `json:"id"`
	Symbol     string        `json:"symbol"`
	Side       Side          `json:"side"`
	Status     Status        `json:"status"`
	Volume     market.Number `json:"volume"`
	OpenPrice  market.Number `json:"open_price"`
	StopLoss   market.Number `json:"stop_loss_price"`
	TakeProfit market.Number `json:"take_profit_price"`
	LivePrice  market.Number `json:"live_price"`
	ProfitLoss market.Number `json:"profit_loss"`
	ClosePrice market.Number `json:"close_price"`
	OpenTime   time.Time     `json:"open_time"`
	CloseTime  time.Time     `json:"close_time,omitempty"`
}

// wireOrder mirrors the backend payload, which is loose about names and types.
type wireOrder struct {
	ID         json.RawMessage `json:"id"`
	OrderID    json.RawMessage `json:"order_id"`
	Symbol     string          `json:"symbol"`
	Code       string          `json:"code"`
	Side       string          `json:"side"`
	Type       string          `json:"type"`
	Status     string          `json:"status"`
	Volume     market.Number   `json:"volume"`
	OpenPrice  market.Number   `json:"open_price"`
	Price      market.Number   `json:"price"`
	StopLoss   market.Number   `json:"stop_loss_price"`
	TakeProfit market.Number   `json:"take_profit_price"`
	LivePrice  market.Number   `json:"live_price"`
	ProfitLoss market.Number   `json:"profit_loss"`
	ClosePrice market.Number   `json:"close_price"`
	OpenTime   json.RawMessage `json:"open_time"`
	CreatedAt  json.RawMessage `json:"created_at"`
	CloseTime  json.RawMessage `json:"close_time"`
}

func (o *Order) UnmarshalJSON(b []byte) error {
	var w wireOrder
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}

	id := rawID(w.ID)
	if id == "" {
		id = rawID(w.OrderID)
	}
	sym := w.Symbol
	if sym == "" {
		sym = w.Code
	}
	side, err := ParseSide(w.Side)
	if err != nil {
		// some payloads carry the side in "type" ("buy_limit", "sell")
		side, _ = ParseSide(strings.SplitN(w.Type, "_", 2)[0])
	}
	open := w.OpenPrice
	if !open.Known() {
		open = w.Price
	}
	opened := parseTime(w.OpenTime)
	if opened.IsZero() {
		opened = parseTime(w.CreatedAt)
	}

	*o = Order{
		ID:         id,
		Symbol:     market.Symbol(sym),
		Side:       side,
		Status:     Status(strings.ToLower(strings.TrimSpace(w.Status))),
		Volume:     w.Volume,
		OpenPrice:  open,
		StopLoss:   w.StopLoss,
		TakeProfit: w.TakeProfit,
		LivePrice:  w.LivePrice,
		ProfitLoss: w.ProfitLoss,
		ClosePrice: w.ClosePrice,
		OpenTime:   opened,
		CloseTime:  parseTime(w.CloseTime),
	}
	return nil
}

func rawID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseTime accepts RFC3339, SQL-style timestamps, and unix seconds.
// Anything else is the zero time.
func parseTime(raw json.RawMessage) time.Time {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		s = string(raw)
	}
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil && sec > 0 {
		return time.Unix(sec, 0).UTC()
	}
	return time.Time{}
}
