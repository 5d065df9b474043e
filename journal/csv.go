package journal

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"sync"
	"time"
)

type CSVJournal struct {
	mu     sync.Mutex
	orders *csv.Writer
	equity *csv.Writer
	of, ef *os.File
	seen   map[string]struct{}
}

var (
	orderHeader  = []string{"order_id", "symbol", "side", "volume", "open_price", "close_price", "open_time", "close_time", "profit_loss"}
	equityHeader = []string{"time", "balance", "equity", "margin_used", "free_margin", "margin_level", "open_pnl"}
)

// NewCSV opens both files for appending, so earlier sessions are kept. The
// header is written only to an empty file, and order ids already in the
// orders file are not written again.
func NewCSV(ordersPath, equityPath string) (*CSVJournal, error) {
	of, prior, err := openAppend(ordersPath, orderHeader)
	if err != nil {
		return nil, err
	}
	ef, _, err := openAppend(equityPath, equityHeader)
	if err != nil {
		_ = of.Close()
		return nil, err
	}

	j := &CSVJournal{
		orders: csv.NewWriter(of),
		equity: csv.NewWriter(ef),
		of:     of,
		ef:     ef,
		seen:   make(map[string]struct{}, len(prior)),
	}
	for _, row := range prior {
		if len(row) > 0 && row[0] != "" {
			j.seen[row[0]] = struct{}{}
		}
	}
	return j, nil
}

// openAppend opens path for appending and returns the data rows already in
// it. An empty file gets the header.
func openAppend(path string, header []string) (*os.File, [][]string, error) {
	fh, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		return nil, nil, err
	}
	r := csv.NewReader(fh)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		_ = fh.Close()
		return nil, nil, fmt.Errorf("journal: read %s: %w", path, err)
	}
	if len(rows) == 0 {
		w := csv.NewWriter(fh)
		if err := w.Write(header); err != nil {
			_ = fh.Close()
			return nil, nil, err
		}
		w.Flush()
		if err := w.Error(); err != nil {
			_ = fh.Close()
			return nil, nil, err
		}
		return fh, nil, nil
	}
	if len(rows[0]) > 0 && rows[0][0] == header[0] {
		rows = rows[1:]
	}
	return fh, rows, nil
}

// RecordOrder writes each order id at most once.
func (j *CSVJournal) RecordOrder(o OrderRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if _, dup := j.seen[o.OrderID]; dup {
		return nil
	}
	err := j.write(j.orders, []string{
		o.OrderID,
		o.Symbol,
		o.Side,
		f(o.Volume),
		f(o.OpenPrice),
		f(o.ClosePrice),
		ts(o.OpenTime),
		ts(o.CloseTime),
		f(o.ProfitLoss),
	})
	if err == nil {
		j.seen[o.OrderID] = struct{}{}
	}
	return err
}

func (j *CSVJournal) RecordEquity(e EquitySnapshot) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.write(j.equity, []string{
		ts(e.Time),
		f(e.Balance),
		f(e.Equity),
		f(e.MarginUsed),
		f(e.FreeMargin),
		f(e.MarginLevel),
		f(e.OpenPnL),
	})
}

func (j *CSVJournal) write(w *csv.Writer, row []string) error {
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func (j *CSVJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.orders.Flush()
	j.equity.Flush()
	oerr, eerr := j.of.Close(), j.ef.Close()
	for _, err := range []error{j.orders.Error(), j.equity.Error(), oerr, eerr} {
		if err != nil {
			return err
		}
	}
	return nil
}

// f leaves unknown figures empty.
func f(x float64) string {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return ""
	}
	return strconv.FormatFloat(x, 'f', 6, 64)
}

func ts(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
