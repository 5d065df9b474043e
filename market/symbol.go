package market

import (
	"strings"
)

const (
	// FXContractSize is the number of base units in one standard FX lot.
	FXContractSize = 100_000

	// PipFactor converts a 4-decimal FX price move into pips.
	PipFactor = 10_000

	// PointFactor converts a 5-decimal FX price move into points (pipettes).
	PointFactor = 100_000
)

// Symbol turns a provider code into the bare key used by the tick map and
// orders: "OANDA:EUR_USD", "eur/usd" and "EURUSD" all become "EURUSD".
func Symbol(code string) string {
	code = strings.TrimSpace(code)
	if i := strings.LastIndexByte(code, ':'); i >= 0 {
		code = code[i+1:]
	}
	code = strings.ToUpper(code)
	return strings.NewReplacer("_", "", "/", "", "-", "").Replace(code)
}

// IsFX reports whether sym looks like a currency pair: exactly six letters.
func IsFX(sym string) bool {
	if len(sym) != 6 {
		return false
	}
	for i := 0; i < len(sym); i++ {
		c := sym[i]
		if (c < 'A' || c > 'Z') && (c < 'a' || c > 'z') {
			return false
		}
	}
	return true
}

// ContractSize is 100,000 for FX pairs and 1 for everything else.
func ContractSize(sym string) float64 {
	if IsFX(Symbol(sym)) {
		return FXContractSize
	}
	return 1
}

// PipSize returns the price value of one pip. JPY-quoted pairs use 0.01.
// Non-FX instruments use a pip of one price unit.
func PipSize(sym string) float64 {
	s := Symbol(sym)
	if !IsFX(s) {
		return 1
	}
	if strings.HasSuffix(s, "JPY") {
		return 0.01
	}
	return 0.0001
}

// PipsPerUnit is the multiplier from a price move to pips: 10,000 for
// 4-decimal pairs, 100 for JPY-quoted pairs, 1 for non-FX instruments.
func PipsPerUnit(sym string) float64 {
	s := Symbol(sym)
	if !IsFX(s) {
		return 1
	}
	if strings.HasSuffix(s, "JPY") {
		return 100
	}
	return PipFactor
}
