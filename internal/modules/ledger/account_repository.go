package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/lookback/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AccountRepository handles account database operations
type AccountRepository struct {
	ledgerDB *sql.DB
	log      zerolog.Logger
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(ledgerDB *sql.DB, log zerolog.Logger) *AccountRepository {
	return &AccountRepository{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "account").Logger(),
	}
}

// Create inserts a new account
func (r *AccountRepository) Create(account domain.Account) (domain.Account, error) {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	if account.Currency == "" {
		account.Currency = domain.CurrencyEUR
	}
	if account.Name == "" {
		return domain.Account{}, fmt.Errorf("failed to create account: name is required")
	}

	now := time.Now()

	query := "INSERT INTO accounts (id, name, currency, created_at) VALUES (?, ?, ?, ?)"
	_, err := r.ledgerDB.Exec(query, account.ID, account.Name, string(account.Currency), now.Unix())
	if err != nil {
		return domain.Account{}, fmt.Errorf("failed to create account: %w", err)
	}

	account.CreatedAt = now.UTC()

	r.log.Info().Str("account_id", account.ID).Str("name", account.Name).Msg("Account created")
	return account, nil
}

// Get returns an account by ID, or nil when it does not exist
func (r *AccountRepository) Get(accountID string) (*domain.Account, error) {
	query := "SELECT id, name, currency, created_at FROM accounts WHERE id = ?"

	var account domain.Account
	var currency string
	var createdAtUnix int64

	err := r.ledgerDB.QueryRow(query, accountID).Scan(&account.ID, &account.Name, &currency, &createdAtUnix)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	account.Currency = domain.Currency(currency)
	account.CreatedAt = time.Unix(createdAtUnix, 0).UTC()

	return &account, nil
}

// GetAll returns all accounts
func (r *AccountRepository) GetAll() ([]domain.Account, error) {
	query := "SELECT id, name, currency, created_at FROM accounts ORDER BY created_at, id"

	rows, err := r.ledgerDB.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		var account domain.Account
		var currency string
		var createdAtUnix int64
		if err := rows.Scan(&account.ID, &account.Name, &currency, &createdAtUnix); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		account.Currency = domain.Currency(currency)
		account.CreatedAt = time.Unix(createdAtUnix, 0).UTC()
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	return accounts, nil
}
