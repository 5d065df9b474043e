package cmd

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/rustyeddy/fxdesk/account"
	"github.com/rustyeddy/fxdesk/market"
	"github.com/rustyeddy/fxdesk/orders"
	"github.com/rustyeddy/fxdesk/pnl"
	"github.com/rustyeddy/fxdesk/risk"
)

var placeCmd = &cobra.Command{
	Use:   "place",
	Short: "Place a market or pending order",
	Long: `Submit an order. Volume is in lots and is checked against the symbol's
minimum, maximum and step before anything is sent.

Stop loss and take profit may be given as prices (--sl, --tp) or as a
distance in pips (--sl-pips, --tp-pips). Pip distances are measured from
--price, or for market orders from the current OANDA quote.

With --risk the volume is computed so that hitting the stop loss costs at
most that percent of equity, rounded down to the symbol's volume step.

Examples:
  fxdesk place --symbol EURUSD --side buy --volume 0.1 --sl-pips 20 --tp-pips 40 --price 1.1000
  fxdesk place --symbol USDJPY --side sell --type limit --price 150.20 --volume 1
  fxdesk place --symbol EURUSD --side sell --price 1.1000 --sl-pips 25 --risk 1`,
	Args: cobra.NoArgs,
	RunE: guarded("place", runPlace),
}

var closeCmd = &cobra.Command{
	Use:   "close <order-id>",
	Short: "Close an open order, fully or partially",
	Args:  cobra.ExactArgs(1),
	RunE:  guarded("close", runClose),
}

var sltpCmd = &cobra.Command{
	Use:   "sltp <order-id>",
	Short: "Set or remove an order's stop loss and take profit",
	Long: `Change the protective levels of an open or pending order. Levels not
mentioned are kept. Pip distances are measured from the order's open price.

Examples:
  fxdesk sltp 42 --sl 1.0950
  fxdesk sltp 42 --sl-pips 25 --tp-pips 50
  fxdesk sltp 42 --clear-tp`,
	Args: cobra.ExactArgs(1),
	RunE: guarded("sltp", runSLTP),
}

// levelFlags are the four ways to give SL/TP; unset flags are nil.
type levelFlags struct {
	sl, tp         *float64
	slPips, tpPips *float64
	clearSL        bool
	clearTP        bool
}

var (
	placeSymbol string
	placeSide   string
	placeType   string
	placeVolume float64
	placePrice  float64
	placeRisk   float64
	closeVolume float64

	slVal, tpVal, slPipsVal, tpPipsVal float64
	clearSL, clearTP                   bool
)

func init() {
	rootCmd.AddCommand(placeCmd, closeCmd, sltpCmd)

	f := placeCmd.Flags()
	f.StringVarP(&placeSymbol, "symbol", "s", "", "symbol, e.g. EURUSD (required)")
	f.StringVar(&placeSide, "side", "", "buy or sell (required)")
	f.StringVarP(&placeType, "type", "t", "market", "market, limit or stop")
	f.Float64VarP(&placeVolume, "volume", "v", 0, "volume in lots; required unless --risk is set")
	f.Float64Var(&placePrice, "price", 0, "entry price for pending orders; reference for pip distances")
	f.Float64Var(&placeRisk, "risk", 0, "size the volume to risk this percent of equity at the stop loss")
	_ = placeCmd.MarkFlagRequired("symbol")
	_ = placeCmd.MarkFlagRequired("side")
	placeCmd.MarkFlagsOneRequired("volume", "risk")

	for _, c := range []*cobra.Command{placeCmd, sltpCmd} {
		c.Flags().Float64Var(&slVal, "sl", 0, "stop loss price")
		c.Flags().Float64Var(&tpVal, "tp", 0, "take profit price")
		c.Flags().Float64Var(&slPipsVal, "sl-pips", 0, "stop loss distance in pips")
		c.Flags().Float64Var(&tpPipsVal, "tp-pips", 0, "take profit distance in pips")
	}
	sltpCmd.Flags().BoolVar(&clearSL, "clear-sl", false, "remove the stop loss")
	sltpCmd.Flags().BoolVar(&clearTP, "clear-tp", false, "remove the take profit")

	closeCmd.Flags().Float64Var(&closeVolume, "volume", 0, "lots to close (default all)")
}

func changed(fs *pflag.FlagSet, name string, v float64) *float64 {
	if !fs.Changed(name) {
		return nil
	}
	return &v
}

func readLevels(fs *pflag.FlagSet) levelFlags {
	return levelFlags{
		sl:      changed(fs, "sl", slVal),
		tp:      changed(fs, "tp", tpVal),
		slPips:  changed(fs, "sl-pips", slPipsVal),
		tpPips:  changed(fs, "tp-pips", tpPipsVal),
		clearSL: clearSL,
		clearTP: clearTP,
	}
}

// resolve turns the flags into absolute levels around ref, starting from
// the current sl and tp.
func (l levelFlags) resolve(sym string, side orders.Side, ref *float64, sl, tp *float64) (*float64, *float64, error) {
	if (l.sl != nil && l.slPips != nil) || (l.tp != nil && l.tpPips != nil) {
		return nil, nil, fmt.Errorf("give each level as a price or in pips, not both")
	}
	pick := func(cur, price, pips *float64, clear bool, lvl pnl.Level) (*float64, error) {
		switch {
		case clear:
			return nil, nil
		case price != nil:
			return price, nil
		case pips != nil:
			if ref == nil {
				return nil, fmt.Errorf("%s in pips needs a reference price", lvl)
			}
			v, err := pnl.PriceFromPips(sym, side, *ref, *pips, lvl)
			if err != nil {
				return nil, err
			}
			return &v, nil
		}
		return cur, nil
	}
	newSL, err := pick(sl, l.sl, l.slPips, l.clearSL, pnl.StopLoss)
	if err != nil {
		return nil, nil, err
	}
	newTP, err := pick(tp, l.tp, l.tpPips, l.clearTP, pnl.TakeProfit)
	if err != nil {
		return nil, nil, err
	}
	return newSL, newTP, nil
}

// plan is a request plus the entry reference its levels were measured from.
type plan struct {
	req orders.PlaceRequest
	ref *float64
}

// buildPlace assembles a request. quote supplies the market reference for
// pip distances and risk sizing when no price was given.
func buildPlace(symbol, side, typ string, volume float64, price *float64, lv levelFlags, quote func(string) (market.Quote, bool)) (plan, error) {
	sd, err := orders.ParseSide(side)
	if err != nil {
		return plan{}, err
	}
	ot, err := orders.ParseOrderType(typ)
	if err != nil {
		return plan{}, err
	}
	sym := market.Symbol(symbol)

	ref := price
	if ref == nil && quote != nil {
		if q, ok := quote(sym); ok {
			// a buy fills at the ask, a sell at the bid
			if sd == orders.Buy {
				ref = q.Ask
			} else {
				ref = q.Bid
			}
		}
	}
	sl, tp, err := lv.resolve(sym, sd, ref, nil, nil)
	if err != nil {
		return plan{}, err
	}
	req := orders.PlaceRequest{
		Symbol:     sym,
		Side:       sd,
		Type:       ot,
		Volume:     volume,
		StopLoss:   sl,
		TakeProfit: tp,
	}
	if ot != orders.MarketOrder {
		req.Price = price
	}
	return plan{req: req, ref: ref}, nil
}

// riskNote describes what the stop and target put at stake. It is empty
// without a stop and a reference price.
func riskNote(p plan, in *market.Instrument, accountCurrency string) string {
	if p.ref == nil || p.req.StopLoss == nil || p.req.Volume <= 0 {
		return ""
	}
	rate, err := risk.QuoteToAccount(p.req.Symbol, accountCurrency, *p.ref)
	if err != nil {
		return ""
	}
	contract := market.ContractSize(p.req.Symbol)
	if in != nil {
		contract = in.Contract()
	}
	note := "At risk to the stop: " + pnl.Format(risk.Planned(p.req.Volume, contract, *p.ref, *p.req.StopLoss, rate), 2)
	if p.req.TakeProfit != nil {
		note += ", reward:risk " + pnl.Format(risk.RR(*p.ref, *p.req.StopLoss, *p.req.TakeProfit), 2)
	}
	return note
}

// sizeToRisk sets the volume so a stop-out loses at most pct of equity.
func sizeToRisk(p *plan, equity, pct float64, in *market.Instrument, accountCurrency string) (risk.Result, error) {
	if p.ref == nil || p.req.StopLoss == nil {
		return risk.Result{}, fmt.Errorf("--risk needs a stop loss and an entry reference (--price or an OANDA quote)")
	}
	rate, err := risk.QuoteToAccount(p.req.Symbol, accountCurrency, *p.ref)
	if err != nil {
		return risk.Result{}, err
	}
	ri := risk.Inputs{
		Equity:         equity,
		RiskPct:        pct / 100,
		EntryPrice:     *p.ref,
		StopPrice:      *p.req.StopLoss,
		Symbol:         p.req.Symbol,
		QuoteToAccount: rate,
	}
	if in != nil {
		ri.Contract = in.Contract()
		ri.Step = in.VolumeStep.Or(0)
	}
	res, err := risk.Size(ri)
	if err != nil {
		return res, err
	}
	p.req.Volume = res.Volume
	return res, nil
}

// buildSLTP keeps the order's current levels unless told otherwise.
func buildSLTP(o orders.Order, lv levelFlags) (orders.SLTPRequest, error) {
	if lv.sl == nil && lv.tp == nil && lv.slPips == nil && lv.tpPips == nil && !lv.clearSL && !lv.clearTP {
		return orders.SLTPRequest{}, fmt.Errorf("nothing to change")
	}
	sl, tp, err := lv.resolve(o.Symbol, o.Side, o.OpenPrice.Ptr(), o.StopLoss.Ptr(), o.TakeProfit.Ptr())
	if err != nil {
		return orders.SLTPRequest{}, err
	}
	if ref := o.OpenPrice.Ptr(); ref != nil {
		if err := orders.ValidateStops(o.Side, *ref, sl, tp); err != nil {
			return orders.SLTPRequest{}, err
		}
	}
	return orders.SLTPRequest{StopLoss: sl, TakeProfit: tp}, nil
}

func runPlace(cmd *cobra.Command, args []string) error {
	ctx := cmdContext(cmd)
	fs := cmd.Flags()

	var quote func(string) (market.Quote, bool)
	if oc, err := oandaClient(); err == nil && oc != nil {
		quote = func(sym string) (market.Quote, bool) {
			ticks, err := oc.Prices(ctx, []string{sym})
			if err != nil {
				return market.Quote{}, false
			}
			store := market.NewTickStore()
			for _, ev := range ticks {
				store.Apply(ev)
			}
			return store.Get(sym)
		}
	}

	pl, err := buildPlace(placeSymbol, placeSide, placeType, placeVolume,
		changed(fs, "price", placePrice), readLevels(fs), quote)
	if err != nil {
		return err
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	var in *market.Instrument
	if list, err := client.Instruments(ctx); err == nil {
		if v, ok := list.Lookup(pl.req.Symbol); ok {
			in = &v
		}
	}
	ccy := cfg.Account.Currency

	if placeRisk > 0 {
		acct, err := client.GetAccount(ctx)
		if err != nil {
			return err
		}
		sum := account.Derive(acct, math.NaN())
		if sum.EquityLive == nil {
			return fmt.Errorf("account equity is unknown; cannot size by risk")
		}
		if acct.Currency != "" {
			ccy = acct.Currency
		}
		res, err := sizeToRisk(&pl, *sum.EquityLive, placeRisk, in, ccy)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Sized to %s lots: %s pips stop risks %s of %s budget\n",
			pnl.Format(res.Volume, 2), pnl.Format(res.StopPips, 1),
			pnl.Format(res.Risked, 2), pnl.Format(res.RiskAmount, 2))
	} else if note := riskNote(pl, in, ccy); note != "" {
		fmt.Fprintln(cmd.OutOrStdout(), note)
	}
	req := pl.req

	p, err := client.PlaceOrder(ctx, req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ %s %s %.2f %s accepted", req.Type, req.Side, req.Volume, req.Symbol)
	if p.Order.ID != "" {
		fmt.Fprintf(out, " as order %s (%s)", p.Order.ID, p.Order.Status)
	}
	fmt.Fprintf(out, "\n  client id %s\n", p.ClientOrderID)
	if p.Message != "" {
		fmt.Fprintln(out, " ", p.Message)
	}
	return nil
}

func runClose(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	res, err := client.CloseOrder(cmdContext(cmd), args[0], changed(cmd.Flags(), "volume", closeVolume))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Closed order %s at %s, P/L %s\n",
		res.OrderID, pnl.Format(res.ClosePrice.Float64(), 5), pnl.Format(res.ProfitLoss.Float64(), 2))
	return nil
}

func runSLTP(cmd *cobra.Command, args []string) error {
	ctx := cmdContext(cmd)
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	s, err := loadStore(ctx, client, nil)
	if err != nil {
		return err
	}
	o, ok := s.Orders().Get(args[0])
	if !ok || o.Status == orders.Closed {
		return fmt.Errorf("order %s is not open or pending", args[0])
	}

	req, err := buildSLTP(o, readLevels(cmd.Flags()))
	if err != nil {
		return err
	}
	got, err := client.UpdateSLTP(ctx, o.ID, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Order %s: SL %s, TP %s\n", o.ID,
		pnl.FormatPrice(o.Symbol, got.StopLoss.Float64()), pnl.FormatPrice(o.Symbol, got.TakeProfit.Float64()))
	return nil
}
