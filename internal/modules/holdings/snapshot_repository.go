package holdings

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/lookback/internal/database"
	"github.com/aristath/lookback/internal/domain"
	"github.com/aristath/lookback/internal/utils"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// holdingsColumns is the list of columns for the holdings table
// Column order must match scanSnapshot() expectations
const holdingsColumns = `account_id, security_id, date, currency, quantity, price, amount,
	cost_basis, cost_basis_source, cost_basis_locked, created_at, updated_at`

// SnapshotRepository handles holding snapshot database operations
type SnapshotRepository struct {
	holdingsDB *sql.DB // holdings.db - holdings table
	log        zerolog.Logger
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(holdingsDB *sql.DB, log zerolog.Logger) *SnapshotRepository {
	return &SnapshotRepository{
		holdingsDB: holdingsDB,
		log:        log.With().Str("repo", "snapshot").Logger(),
	}
}

// BulkUpsertWithCostBasis persists snapshots writing quantity, price, amount
// AND cost basis together in a single transaction. Rows in this batch
// intentionally overwrite any previously stored cost basis with the freshly
// reconciled value. The lock flag is never touched on update.
func (r *SnapshotRepository) BulkUpsertWithCostBasis(snapshots []Snapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	now := time.Now().Unix()
	done := utils.TrackQuery("holdings_upsert_cost_basis", r.log)

	query := `
		INSERT INTO holdings
		(account_id, security_id, date, currency, quantity, price, amount,
		 cost_basis, cost_basis_source, cost_basis_locked, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT(account_id, security_id, date, currency) DO UPDATE SET
			quantity = excluded.quantity,
			price = excluded.price,
			amount = excluded.amount,
			cost_basis = excluded.cost_basis,
			cost_basis_source = excluded.cost_basis_source,
			updated_at = excluded.updated_at
	`

	err := database.WithTransaction(r.holdingsDB, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(query)
		if err != nil {
			return fmt.Errorf("failed to prepare upsert: %w", err)
		}
		defer stmt.Close()

		for _, snap := range snapshots {
			var costBasis, source sql.NullString
			if snap.CostBasis != nil {
				costBasis = sql.NullString{String: snap.CostBasis.String(), Valid: true}
				source = sql.NullString{String: string(snap.CostBasisSource), Valid: true}
			}

			_, err := stmt.Exec(
				snap.AccountID,
				strings.ToUpper(strings.TrimSpace(snap.SecurityID)),
				domain.DateKey(snap.Date),
				string(snap.Currency),
				snap.Quantity.String(),
				snap.Price.String(),
				snap.Amount.String(),
				costBasis,
				source,
				now,
				now,
			)
			if err != nil {
				return fmt.Errorf("failed to upsert snapshot %s/%s: %w", snap.SecurityID, domain.DateKey(snap.Date), err)
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	done(int64(len(snapshots)))
	return nil
}

// BulkUpsertQuantityPrice persists snapshots writing quantity, price and
// amount while omitting the cost basis columns entirely. A security/date
// with no computable cost basis this run must not have its previously
// recorded cost basis erased, so those columns are left untouched on update
// and NULL on first insert.
func (r *SnapshotRepository) BulkUpsertQuantityPrice(snapshots []Snapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	now := time.Now().Unix()
	done := utils.TrackQuery("holdings_upsert_quantity_price", r.log)

	query := `
		INSERT INTO holdings
		(account_id, security_id, date, currency, quantity, price, amount,
		 cost_basis_locked, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT(account_id, security_id, date, currency) DO UPDATE SET
			quantity = excluded.quantity,
			price = excluded.price,
			amount = excluded.amount,
			updated_at = excluded.updated_at
	`

	err := database.WithTransaction(r.holdingsDB, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(query)
		if err != nil {
			return fmt.Errorf("failed to prepare upsert: %w", err)
		}
		defer stmt.Close()

		for _, snap := range snapshots {
			_, err := stmt.Exec(
				snap.AccountID,
				strings.ToUpper(strings.TrimSpace(snap.SecurityID)),
				domain.DateKey(snap.Date),
				string(snap.Currency),
				snap.Quantity.String(),
				snap.Price.String(),
				snap.Amount.String(),
				now,
				now,
			)
			if err != nil {
				return fmt.Errorf("failed to upsert snapshot %s/%s: %w", snap.SecurityID, domain.DateKey(snap.Date), err)
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	done(int64(len(snapshots)))
	return nil
}

// Get returns the stored snapshot for a key, or nil when none exists
func (r *SnapshotRepository) Get(key Key) (*Snapshot, error) {
	query := "SELECT " + holdingsColumns + " FROM holdings WHERE account_id = ? AND security_id = ? AND date = ? AND currency = ?"

	row := r.holdingsDB.QueryRow(query, key.AccountID, key.SecurityID, domain.DateKey(key.Date), string(key.Currency))
	snap, err := r.scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	return &snap, nil
}

// ListByAccount returns all stored snapshots for an account ordered by date
func (r *SnapshotRepository) ListByAccount(accountID string) ([]Snapshot, error) {
	query := "SELECT " + holdingsColumns + " FROM holdings WHERE account_id = ? ORDER BY date, security_id"

	rows, err := r.holdingsDB.Query(query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	return r.collectSnapshots(rows)
}

// ListBySecurity returns an account's stored series for one security
func (r *SnapshotRepository) ListBySecurity(accountID, securityID string) ([]Snapshot, error) {
	query := "SELECT " + holdingsColumns + " FROM holdings WHERE account_id = ? AND security_id = ? ORDER BY date"

	rows, err := r.holdingsDB.Query(query, accountID, securityID)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	return r.collectSnapshots(rows)
}

// LatestPositions returns the most recent stored quantity per security.
// Used as the reverse strategy's starting state.
func (r *SnapshotRepository) LatestPositions(accountID string) (map[string]decimal.Decimal, error) {
	query := `
		SELECT h.security_id, h.quantity FROM holdings h
		JOIN (
			SELECT security_id, MAX(date) AS max_date FROM holdings
			WHERE account_id = ? GROUP BY security_id
		) latest ON h.security_id = latest.security_id AND h.date = latest.max_date
		WHERE h.account_id = ?
	`

	rows, err := r.holdingsDB.Query(query, accountID, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest positions: %w", err)
	}
	defer rows.Close()

	positions := make(map[string]decimal.Decimal)
	for rows.Next() {
		var securityID, quantity string
		if err := rows.Scan(&securityID, &quantity); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		qty, err := decimal.NewFromString(quantity)
		if err != nil {
			return nil, fmt.Errorf("invalid quantity %q: %w", quantity, err)
		}
		positions[securityID] = qty
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating positions: %w", err)
	}

	return positions, nil
}

// DeleteBefore removes snapshots dated before the account's effective start.
// Returns the number of rows deleted.
func (r *SnapshotRepository) DeleteBefore(accountID string, date time.Time) (int64, error) {
	result, err := r.holdingsDB.Exec(
		"DELETE FROM holdings WHERE account_id = ? AND date < ?",
		accountID, domain.DateKey(date),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale snapshots: %w", err)
	}

	deleted, _ := result.RowsAffected()
	return deleted, nil
}

// DeleteSecuritiesNotIn removes snapshots for securities no longer present
// in the portfolio's trade history. An empty security list deletes every
// snapshot for the account - the account holds nothing.
func (r *SnapshotRepository) DeleteSecuritiesNotIn(accountID string, securityIDs []string) (int64, error) {
	if len(securityIDs) == 0 {
		result, err := r.holdingsDB.Exec("DELETE FROM holdings WHERE account_id = ?", accountID)
		if err != nil {
			return 0, fmt.Errorf("failed to delete account snapshots: %w", err)
		}
		deleted, _ := result.RowsAffected()
		return deleted, nil
	}

	placeholders := strings.Repeat("?,", len(securityIDs))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]interface{}, 0, len(securityIDs)+1)
	args = append(args, accountID)
	for _, id := range securityIDs {
		args = append(args, id)
	}

	query := fmt.Sprintf(
		"DELETE FROM holdings WHERE account_id = ? AND security_id NOT IN (%s)",
		placeholders,
	)

	result, err := r.holdingsDB.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete orphaned snapshots: %w", err)
	}

	deleted, _ := result.RowsAffected()
	return deleted, nil
}

// SetLock sets or clears the cost basis lock on one snapshot. The predicate
// matches the full snapshot identity; a security held in two currencies on
// the same date keeps independent locks. Locking freezes cost basis against
// any automated change; unlocking is the explicit user-initiated path that
// makes it writable again.
func (r *SnapshotRepository) SetLock(key Key, locked bool) error {
	lockVal := 0
	if locked {
		lockVal = 1
	}

	result, err := r.holdingsDB.Exec(
		"UPDATE holdings SET cost_basis_locked = ?, updated_at = ? WHERE account_id = ? AND security_id = ? AND date = ? AND currency = ?",
		lockVal, time.Now().Unix(), key.AccountID, key.SecurityID, domain.DateKey(key.Date), string(key.Currency),
	)
	if err != nil {
		return fmt.Errorf("failed to update lock: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("no snapshot found for %s/%s on %s", key.AccountID, key.SecurityID, domain.DateKey(key.Date))
	}

	r.log.Info().
		Str("account_id", key.AccountID).
		Str("security_id", key.SecurityID).
		Str("date", domain.DateKey(key.Date)).
		Str("currency", string(key.Currency)).
		Bool("locked", locked).
		Msg("Cost basis lock updated")

	return nil
}

// collectSnapshots scans all rows into snapshots
func (r *SnapshotRepository) collectSnapshots(rows *sql.Rows) ([]Snapshot, error) {
	var snapshots []Snapshot
	for rows.Next() {
		snap, err := r.scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}

	return snapshots, nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scanning
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanSnapshot scans a database row into a Snapshot struct
func (r *SnapshotRepository) scanSnapshot(row scanner) (Snapshot, error) {
	var snap Snapshot
	var dateKey, quantity, price, amount, currency string
	var costBasis, source sql.NullString
	var locked int
	var createdAtUnix, updatedAtUnix int64

	err := row.Scan(
		&snap.AccountID,
		&snap.SecurityID,
		&dateKey,
		&currency,
		&quantity,
		&price,
		&amount,
		&costBasis,
		&source,
		&locked,
		&createdAtUnix,
		&updatedAtUnix,
	)
	if err != nil {
		return snap, err
	}

	snap.Date, err = domain.ParseDateKey(dateKey)
	if err != nil {
		return snap, err
	}

	snap.Quantity, err = decimal.NewFromString(quantity)
	if err != nil {
		return snap, fmt.Errorf("invalid quantity %q: %w", quantity, err)
	}

	snap.Price, err = decimal.NewFromString(price)
	if err != nil {
		return snap, fmt.Errorf("invalid price %q: %w", price, err)
	}

	snap.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return snap, fmt.Errorf("invalid amount %q: %w", amount, err)
	}

	if costBasis.Valid {
		cb, err := decimal.NewFromString(costBasis.String)
		if err != nil {
			return snap, fmt.Errorf("invalid cost basis %q: %w", costBasis.String, err)
		}
		snap.CostBasis = &cb
	}

	snap.CostBasisSource = SourceUnknown
	if source.Valid {
		snap.CostBasisSource, err = ParseCostBasisSource(source.String)
		if err != nil {
			return snap, err
		}
	}

	snap.Currency = domain.Currency(currency)
	snap.CostBasisLocked = locked != 0
	snap.CreatedAt = time.Unix(createdAtUnix, 0).UTC()
	snap.UpdatedAt = time.Unix(updatedAtUnix, 0).UTC()

	return snap, nil
}
