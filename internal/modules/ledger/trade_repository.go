// Package ledger provides access to the immutable trade ledger.
package ledger

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/lookback/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// tradesColumns is the list of columns for the trades table
// Used to avoid SELECT * which can break when schema changes
// Column order must match scanTrade() expectations
const tradesColumns = `id, account_id, security_id, quantity, price, currency, executed_on, created_at`

// TradeRepository handles trade database operations
type TradeRepository struct {
	ledgerDB *sql.DB // ledger.db - trades table
	log      zerolog.Logger
}

// NewTradeRepository creates a new trade repository
func NewTradeRepository(ledgerDB *sql.DB, log zerolog.Logger) *TradeRepository {
	return &TradeRepository{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "trade").Logger(),
	}
}

// Create inserts a new trade record and returns it with generated fields set
func (r *TradeRepository) Create(trade domain.Trade) (domain.Trade, error) {
	// Validate trade before database insertion to prevent constraint violations
	if err := trade.Validate(); err != nil {
		return trade, fmt.Errorf("failed to create trade: %w", err)
	}

	if trade.ID == "" {
		trade.ID = uuid.NewString()
	}

	now := time.Now().Unix()
	trade.CreatedAt = time.Unix(now, 0).UTC()
	trade.ExecutedOn = domain.Day(trade.ExecutedOn)
	trade.SecurityID = strings.ToUpper(strings.TrimSpace(trade.SecurityID))

	query := `
		INSERT INTO trades
		(id, account_id, security_id, quantity, price, currency, executed_on, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.ledgerDB.Exec(query,
		trade.ID,
		trade.AccountID,
		trade.SecurityID,
		trade.Quantity.String(),
		trade.Price.String(),
		string(trade.Currency),
		domain.DateKey(trade.ExecutedOn),
		now,
	)
	if err != nil {
		return trade, fmt.Errorf("failed to create trade: %w", err)
	}

	r.log.Info().
		Str("account_id", trade.AccountID).
		Str("security_id", trade.SecurityID).
		Str("quantity", trade.Quantity.String()).
		Msg("Trade created")

	return trade, nil
}

// ListByDate returns all trades for an account executed on the given date
func (r *TradeRepository) ListByDate(accountID string, date time.Time) ([]domain.Trade, error) {
	query := "SELECT " + tradesColumns + " FROM trades WHERE account_id = ? AND executed_on = ? ORDER BY created_at, id"

	rows, err := r.ledgerDB.Query(query, accountID, domain.DateKey(date))
	if err != nil {
		return nil, fmt.Errorf("failed to query trades by date: %w", err)
	}
	defer rows.Close()

	return r.collectTrades(rows)
}

// ListByAccount returns all trades for an account ordered by execution date
func (r *TradeRepository) ListByAccount(accountID string) ([]domain.Trade, error) {
	query := "SELECT " + tradesColumns + " FROM trades WHERE account_id = ? ORDER BY executed_on, created_at, id"

	rows, err := r.ledgerDB.Query(query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades by account: %w", err)
	}
	defer rows.Close()

	return r.collectTrades(rows)
}

// Securities returns the distinct security IDs ever traded in the account.
// Used both to zero-initialize simulation quantities and to drive the
// stale-security purge after materialization.
func (r *TradeRepository) Securities(accountID string) ([]string, error) {
	query := "SELECT DISTINCT security_id FROM trades WHERE account_id = ? ORDER BY security_id"

	rows, err := r.ledgerDB.Query(query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query traded securities: %w", err)
	}
	defer rows.Close()

	var securities []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan security id: %w", err)
		}
		securities = append(securities, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating securities: %w", err)
	}

	return securities, nil
}

// AllSecurities returns the distinct security IDs traded in any account.
// Used by history cleanup to decide which price series are still needed.
func (r *TradeRepository) AllSecurities() ([]string, error) {
	query := "SELECT DISTINCT security_id FROM trades ORDER BY security_id"

	rows, err := r.ledgerDB.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query traded securities: %w", err)
	}
	defer rows.Close()

	var securities []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan security id: %w", err)
		}
		securities = append(securities, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating securities: %w", err)
	}

	return securities, nil
}

// EarliestTradeDate returns the date of the account's first trade.
// Returns nil when the account has no trades at all.
func (r *TradeRepository) EarliestTradeDate(accountID string) (*time.Time, error) {
	query := "SELECT MIN(executed_on) FROM trades WHERE account_id = ?"

	var dateKey sql.NullString
	err := r.ledgerDB.QueryRow(query, accountID).Scan(&dateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query earliest trade date: %w", err)
	}

	if !dateKey.Valid || dateKey.String == "" {
		return nil, nil // No trades
	}

	date, err := domain.ParseDateKey(dateKey.String)
	if err != nil {
		return nil, err
	}

	return &date, nil
}

// collectTrades scans all rows into trades
func (r *TradeRepository) collectTrades(rows *sql.Rows) ([]domain.Trade, error) {
	var trades []domain.Trade
	for rows.Next() {
		trade, err := r.scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, trade)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trades: %w", err)
	}

	return trades, nil
}

// scanTrade scans a database row into a Trade struct
func (r *TradeRepository) scanTrade(rows *sql.Rows) (domain.Trade, error) {
	var trade domain.Trade
	var quantity, price, executedOn string
	var currency string
	var createdAtUnix int64

	err := rows.Scan(
		&trade.ID,
		&trade.AccountID,
		&trade.SecurityID,
		&quantity,
		&price,
		&currency,
		&executedOn,
		&createdAtUnix,
	)
	if err != nil {
		return trade, err
	}

	trade.Quantity, err = decimal.NewFromString(quantity)
	if err != nil {
		return trade, fmt.Errorf("invalid quantity %q: %w", quantity, err)
	}

	trade.Price, err = decimal.NewFromString(price)
	if err != nil {
		return trade, fmt.Errorf("invalid price %q: %w", price, err)
	}

	trade.ExecutedOn, err = domain.ParseDateKey(executedOn)
	if err != nil {
		return trade, err
	}

	trade.Currency = domain.Currency(currency)
	trade.CreatedAt = time.Unix(createdAtUnix, 0).UTC()

	return trade, nil
}
