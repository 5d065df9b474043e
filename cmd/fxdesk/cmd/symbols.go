package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/fxdesk/market"
	"github.com/rustyeddy/fxdesk/pnl"
)

var symbolsCmd = &cobra.Command{
	Use:   "symbols",
	Short: "List tradable symbols and their volume limits",
	Args:  cobra.NoArgs,
	RunE:  guarded("symbols", runSymbols),
}

var symbolsFavorites bool

func init() {
	rootCmd.AddCommand(symbolsCmd)
	symbolsCmd.Flags().BoolVar(&symbolsFavorites, "favorites", false, "only show favorites")
}

func runSymbols(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	list, err := client.ListSymbols(cmdContext(cmd))
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Symbol\tName\tCategory\tContract\tMin\tMax\tStep\tFav")
	for _, in := range list {
		if symbolsFavorites && !in.Favorite {
			continue
		}
		fav := ""
		if in.Favorite {
			fav = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			in.Symbol, in.Name, in.Category,
			pnl.Format(in.Contract(), 0),
			num(in.MinVolume), num(in.MaxVolume), num(in.VolumeStep), fav)
	}
	return tw.Flush()
}

func num(n market.Number) string {
	if !n.Known() {
		return pnl.Placeholder
	}
	return n.String()
}
