package account

import (
	"math"

	"github.com/shopspring/decimal"
)

// Summary is the account with live figures. Nil pointers are figures that
// cannot be computed from what is known; they are never Inf or NaN.
type Summary struct {
	Account     Account  `json:"account"`
	OpenPnL     float64  `json:"open_pnl"`
	EquityLive  *float64 `json:"equity_live"`
	FreeMargin  *float64 `json:"free_margin"`
	MarginLevel *float64 `json:"margin_level"`
	ProfitLoss  *float64 `json:"profit_loss"`
}

// Derive combines the authoritative account with the open P/L.
//
//	equity_live  = balance + credit + open P/L, else backend equity
//	free_margin  = equity_live - used_margin
//	margin_level = equity_live / used_margin * 100, only when used_margin > 0
//	profit_loss  = open P/L, else equity - balance
func Derive(acct Account, totalOpenPnL float64) Summary {
	s := Summary{Account: acct, OpenPnL: totalOpenPnL}
	pnlKnown := finite(totalOpenPnL)
	if !pnlKnown {
		s.OpenPnL = 0
	}

	var equity *decimal.Decimal
	switch {
	case acct.Balance.Known():
		e := dec(acct.Balance.Float64()).Add(dec(acct.Credit.Or(0)))
		if pnlKnown {
			e = e.Add(dec(totalOpenPnL))
		} else {
			e = e.Add(dec(acct.UnrealizedProfit.Or(0)))
		}
		equity = &e
	case acct.Equity.Known():
		e := dec(acct.Equity.Float64())
		equity = &e
	}

	if equity != nil {
		s.EquityLive = ptr(*equity)
		if acct.UsedMargin.Known() {
			used := dec(acct.UsedMargin.Float64())
			s.FreeMargin = ptr(equity.Sub(used))
			if used.IsPositive() {
				s.MarginLevel = ptr(equity.Div(used).Mul(decimal.NewFromInt(100)).Round(2))
			}
		}
	}

	switch {
	case pnlKnown:
		v := totalOpenPnL
		s.ProfitLoss = &v
	case acct.Equity.Known() && acct.Balance.Known():
		s.ProfitLoss = ptr(dec(acct.Equity.Float64()).Sub(dec(acct.Balance.Float64())))
	}
	return s
}

func dec(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func ptr(d decimal.Decimal) *float64 {
	f := d.InexactFloat64()
	if !finite(f) {
		return nil
	}
	return &f
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
