package desk

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rustyeddy/fxdesk/account"
	"github.com/rustyeddy/fxdesk/market"
	"github.com/rustyeddy/fxdesk/orders"
	"github.com/rustyeddy/fxdesk/pnl"
)

func table(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
}

func ptr(p *float64, decimals int) string {
	if p == nil {
		return pnl.Placeholder
	}
	return pnl.Format(*p, decimals)
}

// WriteAccount prints the derived account figures.
func WriteAccount(w io.Writer, s account.Summary) error {
	tw := table(w)
	a := s.Account
	fmt.Fprintf(tw, "Balance\t%s\t\n", pnl.Format(a.Balance.Float64(), 2))
	fmt.Fprintf(tw, "Credit\t%s\t\n", pnl.Format(a.Credit.Float64(), 2))
	fmt.Fprintf(tw, "Equity\t%s\t\n", ptr(s.EquityLive, 2))
	fmt.Fprintf(tw, "Used margin\t%s\t\n", pnl.Format(a.UsedMargin.Float64(), 2))
	fmt.Fprintf(tw, "Free margin\t%s\t\n", ptr(s.FreeMargin, 2))
	fmt.Fprintf(tw, "Margin level %%\t%s\t\n", ptr(s.MarginLevel, 2))
	fmt.Fprintf(tw, "P/L\t%s\t\n", ptr(s.ProfitLoss, 2))
	return tw.Flush()
}

// WritePositions prints open orders with their live valuation.
func WritePositions(w io.Writer, ps []pnl.Position) error {
	tw := table(w)
	fmt.Fprintln(tw, "ID\tSymbol\tSide\tVolume\tOpen\tCurrent\tPips\tPoints\tProfit\t")
	for _, p := range ps {
		o := p.Order
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			o.ID, o.Symbol, o.Side,
			pnl.Format(o.Volume.Float64(), 2),
			pnl.FormatPrice(o.Symbol, o.OpenPrice.Float64()),
			pnl.FormatPrice(o.Symbol, p.CurrentPrice),
			pnl.Format(p.DistancePips, 1),
			pnl.Format(p.DistancePoints, 0),
			p.FormatProfit(),
		)
	}
	return tw.Flush()
}

// WriteOrders prints pending or closed orders as the backend reported them.
func WriteOrders(w io.Writer, list []orders.Order) error {
	tw := table(w)
	fmt.Fprintln(tw, "ID\tSymbol\tSide\tStatus\tVolume\tOpen\tSL\tTP\tClose\tP/L\t")
	for _, o := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			o.ID, o.Symbol, o.Side, o.Status,
			pnl.Format(o.Volume.Float64(), 2),
			pnl.FormatPrice(o.Symbol, o.OpenPrice.Float64()),
			pnl.FormatPrice(o.Symbol, o.StopLoss.Float64()),
			pnl.FormatPrice(o.Symbol, o.TakeProfit.Float64()),
			pnl.FormatPrice(o.Symbol, o.ClosePrice.Float64()),
			pnl.Format(o.ProfitLoss.Float64(), 2),
		)
	}
	return tw.Flush()
}

// WriteQuotes prints the tick map.
func WriteQuotes(w io.Writer, sn Snapshot) error {
	tw := table(w)
	fmt.Fprintln(tw, "Symbol\tBid\tAsk\tSpread\tChange %\t")
	for _, sym := range sn.Symbols() {
		q := sn.Quotes[sym]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\n",
			sym,
			pnl.FormatPrice(sym, deref(q.Bid)),
			pnl.FormatPrice(sym, deref(q.Ask)),
			pnl.Format(q.Spread()*market.PipsPerUnit(sym), 1),
			ptr(q.Change, 2),
		)
	}
	return tw.Flush()
}

// WriteSnapshot prints the whole dashboard.
func WriteSnapshot(w io.Writer, sn Snapshot) error {
	fmt.Fprintf(w, "== %s ==\n", sn.Time.Format("2006-01-02 15:04:05"))
	if sn.HasAcct {
		if err := WriteAccount(w, sn.Summary); err != nil {
			return err
		}
	}
	fmt.Fprintf(w, "\nOpen positions (%d valued, open P/L %s)\n", sn.Valued, pnl.Format(sn.OpenPnL, 2))
	if err := WritePositions(w, sn.Positions); err != nil {
		return err
	}
	if len(sn.Pending) > 0 {
		fmt.Fprintln(w, "\nPending")
		if err := WriteOrders(w, sn.Pending); err != nil {
			return err
		}
	}
	if len(sn.Quotes) > 0 {
		fmt.Fprintln(w, "\nQuotes")
		return WriteQuotes(w, sn)
	}
	return nil
}

func deref(p *float64) float64 {
	if p == nil {
		return market.Unknown.Float64()
	}
	return *p
}
