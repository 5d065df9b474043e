package journal

const Schema = `
CREATE TABLE IF NOT EXISTS orders (
	order_id TEXT PRIMARY KEY,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	volume REAL,
	open_price REAL,
	close_price REAL,
	open_time DATETIME NOT NULL,
	close_time DATETIME NOT NULL,
	profit_loss REAL
);

CREATE TABLE IF NOT EXISTS equity (
	time DATETIME NOT NULL,
	balance REAL,
	equity REAL,
	margin_used REAL,
	free_margin REAL,
	margin_level REAL,
	open_pnl REAL
);

CREATE INDEX IF NOT EXISTS idx_orders_close_time ON orders(close_time);
CREATE INDEX IF NOT EXISTS idx_equity_time ON equity(time);
`
