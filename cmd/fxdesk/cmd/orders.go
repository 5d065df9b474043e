package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/fxdesk/desk"
	"github.com/rustyeddy/fxdesk/orders"
)

var ordersCmd = &cobra.Command{
	Use:   "orders [pending|open|closed]",
	Short: "List orders by status",
	Long: `List the account's orders. Open orders are shown with their current
price, distance in pips and points, and unrealized profit.

Examples:
  fxdesk orders
  fxdesk orders closed`,
	Args: cobra.MaximumNArgs(1),
	RunE: guarded("orders", runOrders),
}

func init() {
	rootCmd.AddCommand(ordersCmd)
}

func runOrders(cmd *cobra.Command, args []string) error {
	status := orders.Open
	if len(args) == 1 {
		st, err := orders.ParseStatus(args[0])
		if err != nil {
			return err
		}
		status = st
	}

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

	out := cmd.OutOrStdout()
	if status != orders.Open {
		return desk.WriteOrders(out, s.Orders().Orders(status))
	}

	primeQuotes(ctx, s)
	sn := s.Snapshot()
	if err := desk.WritePositions(out, sn.Positions); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nOpen P/L %.2f over %d of %d orders\n", sn.OpenPnL, sn.Valued, len(sn.Positions))
	return nil
}
