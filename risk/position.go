// Package risk sizes orders from a risk budget expressed as a fraction of
// account equity.
package risk

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/fxdesk/market"
)

// EURUSD in a USD account: QuoteToAccount = 1.0
// USDJPY in a USD account: QuoteToAccount = 1 / USDJPY mid

type Inputs struct {
	Equity         float64
	RiskPct        float64 // 0.01 is 1%
	EntryPrice     float64
	StopPrice      float64
	Symbol         string
	Contract       float64 // units per lot; 0 uses the symbol convention
	QuoteToAccount float64
	Step           float64 // lot step; 0 means 0.01
}

type Result struct {
	Volume     float64 // lots, rounded down to the step
	StopPips   float64
	RiskAmount float64 // the budget
	Risked     float64 // what Volume loses at the stop
}

var (
	ErrNoStop    = errors.New("risk: stop must differ from entry")
	ErrNoBudget  = errors.New("risk: equity and risk percent must be positive")
	ErrTooSmall  = errors.New("risk: budget is smaller than one volume step")
	ErrNoConvert = errors.New("risk: quote to account rate must be positive")
)

func dec(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

// Size returns the largest volume whose loss at the stop stays within
// Equity * RiskPct.
func Size(in Inputs) (Result, error) {
	for _, v := range []float64{in.Equity, in.RiskPct, in.EntryPrice, in.StopPrice, in.QuoteToAccount} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Result{}, ErrNoBudget
		}
	}
	if in.Equity <= 0 || in.RiskPct <= 0 {
		return Result{}, ErrNoBudget
	}
	if in.QuoteToAccount <= 0 {
		return Result{}, ErrNoConvert
	}
	dist := dec(in.EntryPrice).Sub(dec(in.StopPrice)).Abs()
	if dist.IsZero() {
		return Result{}, ErrNoStop
	}

	contract := in.Contract
	if contract <= 0 {
		contract = market.ContractSize(in.Symbol)
	}
	step := dec(in.Step)
	if !step.IsPositive() {
		step = decimal.New(1, -2)
	}

	budget := dec(in.Equity).Mul(dec(in.RiskPct))
	perLot := dist.Mul(dec(contract)).Mul(dec(in.QuoteToAccount))
	lots := budget.Div(perLot).Div(step).Floor().Mul(step)

	res := Result{
		Volume:     lots.InexactFloat64(),
		StopPips:   dist.Mul(dec(market.PipsPerUnit(in.Symbol))).InexactFloat64(),
		RiskAmount: budget.InexactFloat64(),
		Risked:     lots.Mul(perLot).InexactFloat64(),
	}
	if !lots.IsPositive() {
		return res, ErrTooSmall
	}
	return res, nil
}
