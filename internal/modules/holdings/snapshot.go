package holdings

import (
	"time"

	"github.com/aristath/lookback/internal/domain"
	"github.com/shopspring/decimal"
)

// Snapshot is a persisted record of a security's quantity, price and cost
// basis for one account on one date. Identity is
// (account_id, security_id, date, currency).
type Snapshot struct {
	AccountID  string          `json:"account_id"`
	SecurityID string          `json:"security_id"`
	Date       time.Time       `json:"date"`
	Currency   domain.Currency `json:"currency"`

	// Quantity is signed; exactly zero is valid and marks a fully
	// liquidated position that should still appear in reporting.
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Amount   decimal.Decimal `json:"amount"` // Quantity x Price

	// CostBasis is per-unit, not total. nil means unknown.
	CostBasis       *decimal.Decimal `json:"cost_basis,omitempty"`
	CostBasisSource CostBasisSource  `json:"cost_basis_source"`
	// CostBasisLocked freezes CostBasis and CostBasisSource against any
	// automated change until an explicit user-initiated unlock.
	CostBasisLocked bool `json:"cost_basis_locked"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Key identifies a snapshot uniquely within the store
type Key struct {
	AccountID  string
	SecurityID string
	Date       time.Time
	Currency   domain.Currency
}

// Key returns the snapshot's identity
func (s Snapshot) Key() Key {
	return Key{
		AccountID:  s.AccountID,
		SecurityID: s.SecurityID,
		Date:       domain.Day(s.Date),
		Currency:   s.Currency,
	}
}
