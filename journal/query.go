package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

const orderColumns = `order_id, symbol, side, volume, open_price, close_price, open_time, close_time, profit_loss`

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(s scanner) (OrderRecord, error) {
	var (
		rec                              OrderRecord
		volume, open, closeP, profitLoss sql.NullFloat64
	)
	err := s.Scan(
		&rec.OrderID,
		&rec.Symbol,
		&rec.Side,
		&volume,
		&open,
		&closeP,
		&rec.OpenTime,
		&rec.CloseTime,
		&profitLoss,
	)
	rec.Volume, rec.OpenPrice = nan(volume), nan(open)
	rec.ClosePrice, rec.ProfitLoss = nan(closeP), nan(profitLoss)
	return rec, err
}

// GetOrder returns a single closed order by ID.
func (j *SQLite) GetOrder(orderID string) (OrderRecord, error) {
	row := j.db.QueryRow(`SELECT `+orderColumns+` FROM orders WHERE order_id = ?`, orderID)

	rec, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return OrderRecord{}, fmt.Errorf("order %q not found", orderID)
		}
		return OrderRecord{}, err
	}
	return rec, nil
}

// ListOrdersClosedBetween returns orders whose close_time is within [start, end).
func (j *SQLite) ListOrdersClosedBetween(start, end time.Time) ([]OrderRecord, error) {
	rows, err := j.db.Query(`
		SELECT `+orderColumns+`
		FROM orders
		WHERE close_time >= ? AND close_time < ?
		ORDER BY close_time ASC`, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderRecord
	for rows.Next() {
		rec, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListEquityBetween returns snapshots taken within [start, end).
func (j *SQLite) ListEquityBetween(start, end time.Time) ([]EquitySnapshot, error) {
	rows, err := j.db.Query(`
		SELECT time, balance, equity, margin_used, free_margin, margin_level, open_pnl
		FROM equity
		WHERE time >= ? AND time < ?
		ORDER BY time ASC`, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquitySnapshot
	for rows.Next() {
		var (
			rec                                 EquitySnapshot
			bal, eq, used, free, level, openPnL sql.NullFloat64
		)
		if err := rows.Scan(&rec.Time, &bal, &eq, &used, &free, &level, &openPnL); err != nil {
			return nil, err
		}
		rec.Balance, rec.Equity, rec.MarginUsed = nan(bal), nan(eq), nan(used)
		rec.FreeMargin, rec.MarginLevel, rec.OpenPnL = nan(free), nan(level), nan(openPnL)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Stats summarises realized results over a set of closed orders.
type Stats struct {
	Orders       int
	Wins         int
	Losses       int
	GrossProfit  float64
	GrossLoss    float64
	Net          float64
	ProfitFactor float64 // 0 when there are no losses
}

// Summarize computes Stats; orders without a known profit are skipped.
func Summarize(recs []OrderRecord) Stats {
	var s Stats
	gp, gl := decimal.Zero, decimal.Zero
	for _, r := range recs {
		if math.IsNaN(r.ProfitLoss) {
			continue
		}
		s.Orders++
		pl := decimal.NewFromFloat(r.ProfitLoss)
		switch pl.Sign() {
		case 1:
			s.Wins++
			gp = gp.Add(pl)
		case -1:
			s.Losses++
			gl = gl.Add(pl.Abs())
		}
	}
	s.GrossProfit = gp.InexactFloat64()
	s.GrossLoss = gl.InexactFloat64()
	s.Net = gp.Sub(gl).InexactFloat64()
	if gl.IsPositive() {
		s.ProfitFactor = gp.Div(gl).Round(4).InexactFloat64()
	}
	return s
}
