package journal

const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	created DATETIME NOT NULL,
	symbols TEXT NOT NULL,
	mode TEXT NOT NULL,
	status TEXT NOT NULL,
	reason TEXT NOT NULL,
	steps INTEGER NOT NULL,
	start_equity REAL NOT NULL,
	end_equity REAL NOT NULL,
	config BLOB
);

CREATE TABLE IF NOT EXISTS orders (
	run_id TEXT NOT NULL,
	order_id TEXT PRIMARY KEY,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	qty REAL NOT NULL,
	type TEXT NOT NULL,
	limit_offset_bps REAL NOT NULL,
	step INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS fills (
	run_id TEXT NOT NULL,
	order_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	qty REAL NOT NULL,
	price REAL NOT NULL,
	commission REAL NOT NULL,
	fee REAL NOT NULL,
	slippage_bps REAL NOT NULL,
	partial INTEGER NOT NULL,
	partial_window INTEGER NOT NULL,
	step INTEGER NOT NULL,
	time DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	run_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	qty REAL NOT NULL,
	entry_price REAL NOT NULL,
	exit_price REAL NOT NULL,
	entry_time DATETIME NOT NULL,
	exit_time DATETIME NOT NULL,
	entry_step INTEGER NOT NULL,
	exit_step INTEGER NOT NULL,
	realized_pl REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS equity (
	run_id TEXT NOT NULL,
	step INTEGER NOT NULL,
	time DATETIME NOT NULL,
	cash REAL NOT NULL,
	equity REAL NOT NULL,
	gross_exposure REAL NOT NULL,
	drawdown REAL NOT NULL,
	reward REAL NOT NULL,
	halted INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS marks (
	run_id TEXT NOT NULL,
	step INTEGER NOT NULL,
	symbol TEXT NOT NULL,
	price REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fills_run_step ON fills(run_id, step);
CREATE INDEX IF NOT EXISTS idx_equity_run_step ON equity(run_id, step);
CREATE INDEX IF NOT EXISTS idx_marks_run_step ON marks(run_id, step);
CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run_id);
`
