// Package pnl turns cached orders and live quotes into unrealized P/L. It is
// the only place the desk, the CLI and the local API compute it.
package pnl

import (
	"encoding/json"
	"math"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/fxdesk/market"
	"github.com/rustyeddy/fxdesk/orders"
)

// Source says where a position's current price came from.
type Source string

const (
	FromBid  Source = "bid"
	FromAsk  Source = "ask"
	FromLive Source = "live"
	NoPrice  Source = ""
)

// Position is an open order valued at the current market.
type Position struct {
	Order          orders.Order `json:"order"`
	CurrentPrice   float64      `json:"current_price"`
	PriceSource    Source       `json:"price_source"`
	DistancePips   float64      `json:"distance_pips"`
	DistancePoints float64      `json:"distance_points"`
	Profit         float64      `json:"profit"`
	Valid          bool         `json:"valid"`
}

// MarshalJSON writes unknown figures as null; encoding/json rejects NaN.
func (p Position) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Order          orders.Order  `json:"order"`
		CurrentPrice   market.Number `json:"current_price"`
		PriceSource    Source        `json:"price_source"`
		DistancePips   market.Number `json:"distance_pips"`
		DistancePoints market.Number `json:"distance_points"`
		Profit         market.Number `json:"profit"`
		Valid          bool          `json:"valid"`
	}{
		Order:          p.Order,
		CurrentPrice:   market.Num(p.CurrentPrice),
		PriceSource:    p.PriceSource,
		DistancePips:   market.Num(p.DistancePips),
		DistancePoints: market.Num(p.DistancePoints),
		Profit:         market.Num(p.Profit),
		Valid:          p.Valid,
	})
}

// Reconcile values every open order against quotes. Longs close on the bid,
// shorts close on the ask; when the quote lacks that side the order's own
// live price is used. Orders that cannot be valued come back with Valid
// false and NaN figures rather than an error.
func Reconcile(list []orders.Order, quotes map[string]market.Quote) []Position {
	return ReconcileWith(list, quotes, nil)
}

// ReconcileWith is Reconcile with instrument metadata overriding the
// contract size convention.
func ReconcileWith(list []orders.Order, quotes map[string]market.Quote, instruments market.Instruments) []Position {
	out := make([]Position, 0, len(list))
	for _, o := range list {
		if o.Status != orders.Open && o.Status != "" {
			continue
		}
		q := quotes[market.Symbol(o.Symbol)]
		cur, src := CurrentPrice(o, q)

		contract := market.ContractSize(o.Symbol)
		if in, ok := instruments.Lookup(o.Symbol); ok {
			contract = in.Contract()
		}
		out = append(out, value(o, cur, src, contract))
	}
	return out
}

// CurrentPrice picks the closing side of the spread for the order.
func CurrentPrice(o orders.Order, q market.Quote) (float64, Source) {
	switch o.Side {
	case orders.Buy:
		if q.Bid != nil && finite(*q.Bid) {
			return *q.Bid, FromBid
		}
	case orders.Sell:
		if q.Ask != nil && finite(*q.Ask) {
			return *q.Ask, FromAsk
		}
	}
	if o.LivePrice.Known() {
		return o.LivePrice.Float64(), FromLive
	}
	return math.NaN(), NoPrice
}

func value(o orders.Order, cur float64, src Source, contract float64) Position {
	p := Position{
		Order:          o,
		CurrentPrice:   cur,
		PriceSource:    src,
		DistancePips:   math.NaN(),
		DistancePoints: math.NaN(),
		Profit:         math.NaN(),
	}

	open, vol := o.OpenPrice.Float64(), o.Volume.Float64()
	if !finite(open) || !finite(cur) || !finite(vol) || !finite(contract) {
		return p
	}
	if o.Side != orders.Buy && o.Side != orders.Sell {
		return p
	}

	dir := decimal.NewFromFloat(o.Side.Direction())
	move := decimal.NewFromFloat(cur).Sub(decimal.NewFromFloat(open)).Mul(dir)

	pips := move.Mul(decimal.NewFromFloat(market.PipsPerUnit(o.Symbol)))
	points := pips
	if market.IsFX(market.Symbol(o.Symbol)) {
		points = pips.Mul(decimal.NewFromInt(10))
	}
	profit := move.Mul(decimal.NewFromFloat(contract)).Mul(decimal.NewFromFloat(vol))

	p.DistancePips = pips.InexactFloat64()
	p.DistancePoints = points.InexactFloat64()
	p.Profit = profit.InexactFloat64()
	p.Valid = true
	return p
}

// TotalOpenPnL sums the profit of every valid position. Positions without
// a finite profit are skipped, so one bad order cannot poison the total.
func TotalOpenPnL(ps []Position) (float64, int) {
	sum := decimal.Zero
	n := 0
	for _, p := range ps {
		if !p.Valid || !finite(p.Profit) {
			continue
		}
		sum = sum.Add(decimal.NewFromFloat(p.Profit))
		n++
	}
	return sum.InexactFloat64(), n
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
