package sqlite

// schemaStatements is the full DDL, applied idempotently at open. Cascades
// flow jobs -> job_details/trading_days and trading_days -> holdings/actions.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		models TEXT NOT NULL,
		created_at TEXT NOT NULL,
		started_at TEXT,
		completed_at TEXT,
		total_duration_seconds REAL NOT NULL DEFAULT 0,
		error TEXT,
		warnings TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS job_details (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id TEXT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
		date TEXT NOT NULL,
		model TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at TEXT,
		completed_at TEXT,
		duration_seconds REAL NOT NULL DEFAULT 0,
		error TEXT,
		UNIQUE(job_id, date, model)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_job_details_job ON job_details(job_id)`,

	`CREATE TABLE IF NOT EXISTS trading_days (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id TEXT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
		model TEXT NOT NULL,
		date TEXT NOT NULL,
		starting_cash REAL NOT NULL,
		starting_portfolio_value REAL NOT NULL,
		daily_profit REAL NOT NULL DEFAULT 0,
		daily_return_pct REAL NOT NULL DEFAULT 0,
		ending_cash REAL NOT NULL DEFAULT 0,
		ending_portfolio_value REAL NOT NULL DEFAULT 0,
		reasoning_summary TEXT,
		reasoning_full TEXT,
		total_actions INTEGER NOT NULL DEFAULT 0,
		session_duration_seconds REAL NOT NULL DEFAULT 0,
		days_since_last_trading INTEGER NOT NULL DEFAULT 0,
		completed_at TEXT,
		UNIQUE(job_id, model, date)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trading_days_model_date ON trading_days(model, date)`,
	`CREATE INDEX IF NOT EXISTS idx_trading_days_job_model_date ON trading_days(job_id, model, date)`,

	`CREATE TABLE IF NOT EXISTS holdings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		trading_day_id INTEGER NOT NULL REFERENCES trading_days(id) ON DELETE CASCADE,
		symbol TEXT NOT NULL,
		quantity INTEGER NOT NULL CHECK(quantity >= 1),
		UNIQUE(trading_day_id, symbol)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_holdings_trading_day ON holdings(trading_day_id)`,

	`CREATE TABLE IF NOT EXISTS actions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		trading_day_id INTEGER NOT NULL REFERENCES trading_days(id) ON DELETE CASCADE,
		type TEXT NOT NULL CHECK(type IN ('buy','sell')),
		symbol TEXT NOT NULL,
		quantity INTEGER NOT NULL CHECK(quantity >= 1),
		price REAL NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_actions_trading_day ON actions(trading_day_id)`,

	`CREATE TABLE IF NOT EXISTS price_data (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		date TEXT NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume INTEGER NOT NULL DEFAULT 0,
		UNIQUE(symbol, date)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_price_data_date ON price_data(date)`,

	`CREATE TABLE IF NOT EXISTS price_data_coverage (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		source TEXT NOT NULL,
		fetched_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_price_coverage_symbol ON price_data_coverage(symbol)`,
}
