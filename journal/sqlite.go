package journal

import (
	"database/sql"
	"math"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

// RecordOrder stores a closed order once; the same id seen on a later
// refresh is ignored.
func (j *SQLite) RecordOrder(o OrderRecord) error {
	_, err := j.db.Exec(`
		INSERT OR IGNORE INTO orders
		(order_id, symbol, side, volume, open_price, close_price, open_time, close_time, profit_loss)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.OrderID, o.Symbol, o.Side, null(o.Volume), null(o.OpenPrice),
		null(o.ClosePrice), o.OpenTime.UTC(), o.CloseTime.UTC(), null(o.ProfitLoss),
	)
	return err
}

func (j *SQLite) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity
		(time, balance, equity, margin_used, free_margin, margin_level, open_pnl)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Time.UTC(), null(e.Balance), null(e.Equity), null(e.MarginUsed),
		null(e.FreeMargin), null(e.MarginLevel), null(e.OpenPnL),
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}

// null stores NaN as SQL NULL.
func null(f float64) sql.NullFloat64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: f, Valid: true}
}

func nan(n sql.NullFloat64) float64 {
	if !n.Valid {
		return math.NaN()
	}
	return n.Float64
}
