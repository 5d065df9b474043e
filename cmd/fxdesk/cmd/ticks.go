package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/fxdesk/oanda"
)

var ticksCmd = &cobra.Command{
	Use:   "ticks",
	Short: "Record OANDA prices to CSV",
	Long: `Stream OANDA prices and write one row per tick (time,symbol,bid,ask).

Requires OANDA credentials (oanda.* in the config, or OANDA_TOKEN and
OANDA_ACCOUNT_ID).

Example:
  fxdesk ticks --instruments EUR_USD,USD_JPY --max 1000 --out ticks.csv`,
	Args: cobra.NoArgs,
	RunE: guarded("ticks", runTicks),
}

var (
	ticksInstruments string
	ticksOut         string
	ticksMax         int
)

func init() {
	rootCmd.AddCommand(ticksCmd)

	ticksCmd.Flags().StringVar(&ticksInstruments, "instruments", "", "comma separated instruments (default oanda.instruments)")
	ticksCmd.Flags().StringVarP(&ticksOut, "out", "o", "-", "output CSV path, - for stdout")
	ticksCmd.Flags().IntVar(&ticksMax, "max", 0, "stop after this many ticks (0 runs until Ctrl-C)")
}

func runTicks(cmd *cobra.Command, args []string) error {
	oc, err := oandaClient()
	if err != nil {
		return err
	}
	if oc == nil {
		return fmt.Errorf("missing OANDA credentials: set OANDA_TOKEN and OANDA_ACCOUNT_ID")
	}

	instruments := cfg.OANDA.Instruments
	if ticksInstruments != "" {
		instruments = nil
		for _, s := range strings.Split(ticksInstruments, ",") {
			if s = strings.TrimSpace(s); s != "" {
				instruments = append(instruments, oanda.Instrument(s))
			}
		}
	}

	w := cmd.OutOrStdout()
	if ticksOut != "-" {
		f, err := os.Create(ticksOut)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}

	ctx, stop := signal.NotifyContext(cmdContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	n, err := oc.StreamPricesToCSV(ctx, instruments, w, ticksMax)
	if ticksOut != "-" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d ticks to %s\n", n, ticksOut)
	}
	if ctx.Err() != nil {
		return nil
	}
	return err
}
