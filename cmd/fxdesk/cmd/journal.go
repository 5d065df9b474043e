package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/fxdesk/journal"
	"github.com/rustyeddy/fxdesk/pnl"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query the local journal",
	Long: `Query closed orders and equity snapshots recorded by watch and serve
into the SQLite journal.

Subcommands:
  order  - Get details of a specific closed order by ID
  today  - List orders closed today
  day    - List orders closed on a specific day
  equity - List equity snapshots of a specific day

Examples:
  fxdesk journal order 42
  fxdesk journal today
  fxdesk journal day 2024-01-15`,
}

var journalOrderCmd = &cobra.Command{
	Use:   "order <order-id>",
	Short: "Get details of a specific closed order",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalOrder,
}

var journalTodayCmd = &cobra.Command{
	Use:   "today",
	Short: "List orders closed today",
	Args:  cobra.NoArgs,
	RunE:  runJournalToday,
}

var journalDayCmd = &cobra.Command{
	Use:   "day <YYYY-MM-DD>",
	Short: "List orders closed on a specific day",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalDay,
}

var journalEquityCmd = &cobra.Command{
	Use:   "equity [YYYY-MM-DD]",
	Short: "List equity snapshots of a day (default today)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runJournalEquity,
}

var journalDBPath string

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalOrderCmd, journalTodayCmd, journalDayCmd, journalEquityCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "", "path to SQLite journal DB (default journal.db_path)")
}

func openJournal() (*journal.SQLite, error) {
	path := journalDBPath
	if path == "" {
		path = cfg.Journal.DBPath
	}
	if path == "" {
		return nil, fmt.Errorf("no journal database: pass --db or set journal.db_path")
	}
	j, err := journal.NewSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return j, nil
}

func runJournalOrder(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	rec, err := j.GetOrder(args[0])
	if err != nil {
		return fmt.Errorf("get order: %w", err)
	}
	return writeOrderRecords(cmd.OutOrStdout(), []journal.OrderRecord{rec})
}

func runJournalToday(cmd *cobra.Command, args []string) error {
	return journalDay(cmd, time.Now().In(time.Local).Format("2006-01-02"))
}

func runJournalDay(cmd *cobra.Command, args []string) error {
	return journalDay(cmd, args[0])
}

func journalDay(cmd *cobra.Command, day string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	start, end, err := dayBounds(time.Local, day)
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}
	recs, err := j.ListOrdersClosedBetween(start, end)
	if err != nil {
		return fmt.Errorf("query orders: %w", err)
	}

	out := cmd.OutOrStdout()
	if err := writeOrderRecords(out, recs); err != nil {
		return err
	}
	st := journal.Summarize(recs)
	fmt.Fprintf(out, "\n%d orders, %d won, %d lost, net %s, profit factor %s\n",
		st.Orders, st.Wins, st.Losses, pnl.Format(st.Net, 2), pnl.Format(st.ProfitFactor, 2))
	return nil
}

func runJournalEquity(cmd *cobra.Command, args []string) error {
	day := time.Now().In(time.Local).Format("2006-01-02")
	if len(args) == 1 {
		day = args[0]
	}
	start, end, err := dayBounds(time.Local, day)
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}

	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	snaps, err := j.ListEquityBetween(start, end)
	if err != nil {
		return fmt.Errorf("query equity: %w", err)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Time\tBalance\tEquity\tUsed\tFree\tLevel %\tOpen P/L\t")
	for _, e := range snaps {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			e.Time.In(time.Local).Format("15:04:05"),
			pnl.Format(e.Balance, 2), pnl.Format(e.Equity, 2), pnl.Format(e.MarginUsed, 2),
			pnl.Format(e.FreeMargin, 2), pnl.Format(e.MarginLevel, 2), pnl.Format(e.OpenPnL, 2))
	}
	return tw.Flush()
}

func writeOrderRecords(w io.Writer, recs []journal.OrderRecord) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "ID\tSymbol\tSide\tVolume\tOpen\tClose\tClosed at\tP/L\t")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			r.OrderID, r.Symbol, r.Side,
			pnl.Format(r.Volume, 2),
			pnl.FormatPrice(r.Symbol, r.OpenPrice),
			pnl.FormatPrice(r.Symbol, r.ClosePrice),
			r.CloseTime.In(time.Local).Format("2006-01-02 15:04"),
			pnl.Format(r.ProfitLoss, 2))
	}
	return tw.Flush()
}

func dayBounds(loc *time.Location, day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)
	return start, end, nil
}
