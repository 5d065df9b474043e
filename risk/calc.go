package risk

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/fxdesk/market"
)

// Planned is the account currency lost if the stop is hit.
func Planned(volume, contract, entry, stop, quoteToAccount float64) float64 {
	move := dec(entry).Sub(dec(stop)).Abs()
	return move.Mul(dec(volume)).Mul(dec(contract)).Mul(dec(quoteToAccount)).InexactFloat64()
}

// RR is reward over risk; 0 without a stop distance.
func RR(entry, stop, takeProfit float64) float64 {
	risk := dec(entry).Sub(dec(stop)).Abs()
	if risk.IsZero() {
		return 0
	}
	return dec(takeProfit).Sub(dec(entry)).Abs().Div(risk).Round(2).InexactFloat64()
}

// QuoteToAccount converts one unit of the symbol's quote currency into the
// account currency, using mid as the pair's price. Non-FX symbols are
// assumed to be priced in the account currency.
func QuoteToAccount(sym, accountCurrency string, mid float64) (float64, error) {
	s := market.Symbol(sym)
	if !market.IsFX(s) || accountCurrency == "" {
		return 1, nil
	}
	base, quote := s[:3], s[3:]
	switch accountCurrency {
	case quote:
		return 1, nil
	case base:
		if math.IsNaN(mid) || mid <= 0 {
			return 0, fmt.Errorf("risk: need a price of %s to convert %s", s, quote)
		}
		return decimal.NewFromInt(1).Div(dec(mid)).InexactFloat64(), nil
	}
	return 0, fmt.Errorf("risk: cross conversion not implemented for %s -> %s", quote, accountCurrency)
}
