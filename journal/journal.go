// Package journal keeps a local record of closed orders and equity
// snapshots in SQLite or CSV.
package journal

import (
	"fmt"
	"math"
	"time"

	"github.com/rustyeddy/fxdesk/account"
	"github.com/rustyeddy/fxdesk/config"
	"github.com/rustyeddy/fxdesk/orders"
)

// OrderRecord is one closed order as the backend reported it.
type OrderRecord struct {
	OrderID    string
	Symbol     string
	Side       string
	Volume     float64
	OpenPrice  float64
	ClosePrice float64
	OpenTime   time.Time
	CloseTime  time.Time
	ProfitLoss float64
}

// EquitySnapshot is the derived account state at one moment.
// MarginLevel is NaN when no margin is in use.
type EquitySnapshot struct {
	Time        time.Time
	Balance     float64
	Equity      float64
	MarginUsed  float64
	FreeMargin  float64
	MarginLevel float64
	OpenPnL     float64
}

type Journal interface {
	RecordOrder(OrderRecord) error
	RecordEquity(EquitySnapshot) error
	Close() error
}

// FromOrder converts a closed order. Unknown numbers stay NaN.
func FromOrder(o orders.Order) OrderRecord {
	return OrderRecord{
		OrderID:    o.ID,
		Symbol:     o.Symbol,
		Side:       string(o.Side),
		Volume:     o.Volume.Float64(),
		OpenPrice:  o.OpenPrice.Float64(),
		ClosePrice: o.ClosePrice.Float64(),
		OpenTime:   o.OpenTime,
		CloseTime:  o.CloseTime,
		ProfitLoss: o.ProfitLoss.Float64(),
	}
}

// FromSummary snapshots a derived account summary at t.
func FromSummary(s account.Summary, t time.Time) EquitySnapshot {
	return EquitySnapshot{
		Time:        t,
		Balance:     s.Account.Balance.Float64(),
		Equity:      deref(s.EquityLive),
		MarginUsed:  s.Account.UsedMargin.Float64(),
		FreeMargin:  deref(s.FreeMargin),
		MarginLevel: deref(s.MarginLevel),
		OpenPnL:     s.OpenPnL,
	}
}

func deref(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

// Open builds the journal named by the config; type "" or "none" gives a
// journal that drops everything.
func Open(c config.JournalConfig) (Journal, error) {
	switch c.Type {
	case "", "none":
		return Discard{}, nil
	case "csv":
		return NewCSV(c.OrdersFile, c.EquityFile)
	case "sqlite":
		return NewSQLite(c.DBPath)
	default:
		return nil, fmt.Errorf("unknown journal type %q", c.Type)
	}
}

// Discard records nothing.
type Discard struct{}

func (Discard) RecordOrder(OrderRecord) error     { return nil }
func (Discard) RecordEquity(EquitySnapshot) error { return nil }
func (Discard) Close() error                      { return nil }
