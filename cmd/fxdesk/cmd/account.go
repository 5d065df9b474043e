package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/fxdesk/api"
	"github.com/rustyeddy/fxdesk/desk"
	"github.com/rustyeddy/fxdesk/journal"
	"github.com/rustyeddy/fxdesk/oanda"
	"github.com/rustyeddy/fxdesk/orders"
	"github.com/rustyeddy/fxdesk/stream"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Show balance, equity, free margin and margin level",
	Long: `Load the account and open orders once and print the derived figures.
Open P/L uses the last price the backend reported for each order, or a
fresh OANDA snapshot when OANDA credentials are configured.`,
	Args: cobra.NoArgs,
	RunE: guarded("account", runAccount),
}

func init() {
	rootCmd.AddCommand(accountCmd)
}

// newStore builds a store over client. With streaming set and a stream URL
// configured, mounted views follow the backend stream.
func newStore(client *api.Client, j journal.Journal, streaming bool) (*desk.Store, error) {
	orderEvery, err := cfg.OrdersEvery()
	if err != nil {
		return nil, err
	}
	acctEvery, err := cfg.AccountEvery()
	if err != nil {
		return nil, err
	}
	opts := desk.Options{
		OrdersEvery:  orderEvery,
		AccountEvery: acctEvery,
		Journal:      j,
		Notices:      notices,
	}
	if streaming && cfg.Backend.StreamURL != "" {
		opts.Stream = &stream.Options{
			URL:       cfg.Backend.StreamURL,
			AccountID: cfg.Account.ID,
			Session:   client.Session(),
		}
	}
	return desk.New(client, opts), nil
}

// loadStore builds a store and loads it once.
func loadStore(ctx context.Context, client *api.Client, j journal.Journal) (*desk.Store, error) {
	s, err := newStore(client, j, false)
	if err != nil {
		return nil, err
	}
	if err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// primeQuotes fills the tick map from one OANDA snapshot when configured.
func primeQuotes(ctx context.Context, s *desk.Store) {
	oc, err := oandaClient()
	if err != nil || oc == nil {
		return
	}
	ticks, err := oc.Prices(ctx, cfg.OANDA.Instruments)
	if err != nil {
		notices.Report(err)
		return
	}
	for _, ev := range ticks {
		s.Ticks().Apply(ev)
	}
}

// oandaClient returns nil when no OANDA credentials are configured.
func oandaClient() (*oanda.Client, error) {
	if !cfg.OANDA.Enabled() {
		return nil, nil
	}
	rest, streamURL, err := oanda.BaseURL(cfg.OANDA.Env)
	if err != nil {
		return nil, err
	}
	return oanda.NewClient(rest, streamURL, cfg.OANDA.Token, cfg.OANDA.AccountID)
}

func runAccount(cmd *cobra.Command, args []string) error {
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
	primeQuotes(ctx, s)

	sn := s.Snapshot()
	out := cmd.OutOrStdout()
	if err := desk.WriteAccount(out, sn.Summary); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d open, %d pending, %d closed\n",
		len(s.Orders().Orders(orders.Open)), len(sn.Pending), len(sn.Closed))
	return nil
}
