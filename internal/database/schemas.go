package database

// schemas maps database names to their embedded schema definitions.
// Each schema is idempotent (IF NOT EXISTS) so Migrate is safe to re-run.
var schemas = map[string]string{
	"ledger": `
CREATE TABLE IF NOT EXISTS accounts (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	currency   TEXT NOT NULL DEFAULT 'EUR',
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	id          TEXT PRIMARY KEY,
	account_id  TEXT NOT NULL,
	security_id TEXT NOT NULL,
	quantity    TEXT NOT NULL,
	price       TEXT NOT NULL,
	currency    TEXT NOT NULL,
	executed_on TEXT NOT NULL,
	created_at  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_account_date ON trades(account_id, executed_on);
CREATE INDEX IF NOT EXISTS idx_trades_account_security ON trades(account_id, security_id);
`,

	"history": `
CREATE TABLE IF NOT EXISTS daily_prices (
	security_id TEXT NOT NULL,
	date        TEXT NOT NULL,
	price       TEXT NOT NULL,
	currency    TEXT NOT NULL,
	created_at  INTEGER NOT NULL,
	PRIMARY KEY (security_id, date)
);
`,

	"holdings": `
CREATE TABLE IF NOT EXISTS holdings (
	account_id        TEXT NOT NULL,
	security_id       TEXT NOT NULL,
	date              TEXT NOT NULL,
	currency          TEXT NOT NULL,
	quantity          TEXT NOT NULL,
	price             TEXT NOT NULL,
	amount            TEXT NOT NULL,
	cost_basis        TEXT,
	cost_basis_source TEXT,
	cost_basis_locked INTEGER NOT NULL DEFAULT 0,
	created_at        INTEGER NOT NULL,
	updated_at        INTEGER NOT NULL,
	PRIMARY KEY (account_id, security_id, date, currency)
);

CREATE INDEX IF NOT EXISTS idx_holdings_account_security ON holdings(account_id, security_id, date);
`,

	"client_data": `
CREATE TABLE IF NOT EXISTS exchangerate (
	pair       TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	expires_at INTEGER NOT NULL
);
`,
}
