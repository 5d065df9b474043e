package pnl

import "strconv"

// Placeholder is shown wherever a figure cannot be computed.
const Placeholder = "---"

// Format renders v with the given decimals, or the placeholder when v is
// not a finite number.
func Format(v float64, decimals int) string {
	if !finite(v) {
		return Placeholder
	}
	return strconv.FormatFloat(v, 'f', decimals, 64)
}

// FormatPrice uses the symbol's quote precision.
func FormatPrice(sym string, v float64) string {
	return Format(v, int(Digits(sym)))
}

// FormatProfit renders a position's profit, or the placeholder.
func (p Position) FormatProfit() string {
	if !p.Valid {
		return Placeholder
	}
	return Format(p.Profit, 2)
}
