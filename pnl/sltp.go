package pnl

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/fxdesk/market"
	"github.com/rustyeddy/fxdesk/orders"
)

// Level is a protective level on an order.
type Level string

const (
	StopLoss   Level = "sl"
	TakeProfit Level = "tp"
)

// sign is +1 when the level sits above the reference price.
func (l Level) sign(side orders.Side) (decimal.Decimal, error) {
	switch {
	case l == StopLoss && side == orders.Buy, l == TakeProfit && side == orders.Sell:
		return decimal.NewFromInt(-1), nil
	case l == StopLoss && side == orders.Sell, l == TakeProfit && side == orders.Buy:
		return decimal.NewFromInt(1), nil
	}
	return decimal.Zero, fmt.Errorf("pnl: invalid level %q for side %q", l, side)
}

// Digits is the quote precision implied by the pip size: 5 for most pairs,
// 3 for JPY pairs, 2 otherwise.
func Digits(sym string) int32 {
	switch market.PipsPerUnit(sym) {
	case market.PipFactor:
		return 5
	case 100:
		return 3
	}
	return 2
}

// PriceFromPips places a level the given number of pips away from ref, on
// the protective side for SL and the profitable side for TP.
func PriceFromPips(sym string, side orders.Side, ref, pips float64, level Level) (float64, error) {
	if !finite(ref) || !finite(pips) || pips < 0 {
		return math.NaN(), fmt.Errorf("pnl: invalid reference %v or pips %v", ref, pips)
	}
	sign, err := level.sign(side)
	if err != nil {
		return math.NaN(), err
	}
	offset := decimal.NewFromFloat(pips).Mul(decimal.NewFromFloat(market.PipSize(sym))).Mul(sign)
	price := decimal.NewFromFloat(ref).Add(offset).Round(Digits(sym))
	return price.InexactFloat64(), nil
}

// PipsFromPrice is the inverse of PriceFromPips. A level on the wrong side
// of ref comes back negative.
func PipsFromPrice(sym string, side orders.Side, ref, price float64, level Level) (float64, error) {
	if !finite(ref) || !finite(price) {
		return math.NaN(), fmt.Errorf("pnl: invalid reference %v or price %v", ref, price)
	}
	sign, err := level.sign(side)
	if err != nil {
		return math.NaN(), err
	}
	diff := decimal.NewFromFloat(price).Sub(decimal.NewFromFloat(ref)).Mul(sign)
	pips := diff.Mul(decimal.NewFromFloat(market.PipsPerUnit(sym)))
	return pips.Round(1).InexactFloat64(), nil
}
