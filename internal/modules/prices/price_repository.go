// Package prices provides access to historical daily price data.
package prices

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/lookback/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PriceRepository handles daily price database operations
type PriceRepository struct {
	historyDB *sql.DB // history.db - daily_prices table
	log       zerolog.Logger
}

// NewPriceRepository creates a new price repository
func NewPriceRepository(historyDB *sql.DB, log zerolog.Logger) *PriceRepository {
	return &PriceRepository{
		historyDB: historyDB,
		log:       log.With().Str("repo", "price").Logger(),
	}
}

// Upsert inserts or updates a price point
func (r *PriceRepository) Upsert(point domain.PricePoint) error {
	if !point.Price.IsPositive() {
		return fmt.Errorf("failed to upsert price: price must be positive")
	}

	now := time.Now().Unix()

	query := `
		INSERT OR REPLACE INTO daily_prices (security_id, date, price, currency, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := r.historyDB.Exec(query,
		strings.ToUpper(strings.TrimSpace(point.SecurityID)),
		domain.DateKey(point.Date),
		point.Price.String(),
		string(point.Currency),
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert price: %w", err)
	}

	return nil
}

// GetOnDate returns the price for a security on an exact date.
// Returns nil when no price is recorded - absence is a skip condition for the
// simulator, not an error.
func (r *PriceRepository) GetOnDate(securityID string, date time.Time) (*domain.PricePoint, error) {
	query := "SELECT security_id, date, price, currency FROM daily_prices WHERE security_id = ? AND date = ?"

	row := r.historyDB.QueryRow(query, securityID, domain.DateKey(date))
	point, err := r.scanPrice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get price on date: %w", err)
	}

	return &point, nil
}

// LatestBefore returns the most recent price at or before the given date.
// Returns nil when no price exists at or before the date.
func (r *PriceRepository) LatestBefore(securityID string, date time.Time) (*domain.PricePoint, error) {
	query := `
		SELECT security_id, date, price, currency FROM daily_prices
		WHERE security_id = ? AND date <= ?
		ORDER BY date DESC LIMIT 1
	`

	row := r.historyDB.QueryRow(query, securityID, domain.DateKey(date))
	point, err := r.scanPrice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest price: %w", err)
	}

	return &point, nil
}

// DeleteSecuritiesNotIn removes price history for securities absent from the
// keep-list. An empty list clears the table entirely.
// Returns the number of rows deleted.
func (r *PriceRepository) DeleteSecuritiesNotIn(securityIDs []string) (int64, error) {
	if len(securityIDs) == 0 {
		result, err := r.historyDB.Exec("DELETE FROM daily_prices")
		if err != nil {
			return 0, fmt.Errorf("failed to clear price history: %w", err)
		}
		deleted, _ := result.RowsAffected()
		return deleted, nil
	}

	placeholders := strings.Repeat("?,", len(securityIDs))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]interface{}, 0, len(securityIDs))
	for _, id := range securityIDs {
		args = append(args, id)
	}

	query := fmt.Sprintf("DELETE FROM daily_prices WHERE security_id NOT IN (%s)", placeholders)

	result, err := r.historyDB.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete orphaned prices: %w", err)
	}

	deleted, _ := result.RowsAffected()
	return deleted, nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scanning
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanPrice scans a database row into a PricePoint struct
func (r *PriceRepository) scanPrice(row scanner) (domain.PricePoint, error) {
	var point domain.PricePoint
	var price, dateKey, currency string

	if err := row.Scan(&point.SecurityID, &dateKey, &price, &currency); err != nil {
		return point, err
	}

	var err error
	point.Price, err = decimal.NewFromString(price)
	if err != nil {
		return point, fmt.Errorf("invalid price %q: %w", price, err)
	}

	point.Date, err = domain.ParseDateKey(dateKey)
	if err != nil {
		return point, err
	}

	point.Currency = domain.Currency(currency)

	return point, nil
}
