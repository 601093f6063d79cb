// Package domain provides core domain models and types.
package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Currency represents a currency code
type Currency string

const (
	CurrencyEUR Currency = "EUR"
	CurrencyUSD Currency = "USD"
	CurrencyGBP Currency = "GBP"
)

// Account represents an investment account whose holdings history is reconstructed
type Account struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Currency  Currency  `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
}

// Trade represents a single buy or sell event in the ledger.
// Quantity is signed: positive for buys, negative for sells.
type Trade struct {
	ID         string          `json:"id"`
	AccountID  string          `json:"account_id"`
	SecurityID string          `json:"security_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Currency   Currency        `json:"currency"`
	ExecutedOn time.Time       `json:"executed_on"` // Date only, midnight UTC
	CreatedAt  time.Time       `json:"created_at"`
}

// IsBuy reports whether the trade increases the position
func (t Trade) IsBuy() bool {
	return t.Quantity.IsPositive()
}

// Validate checks trade invariants before it enters the ledger
func (t Trade) Validate() error {
	if t.AccountID == "" {
		return fmt.Errorf("account_id is required")
	}
	if t.SecurityID == "" {
		return fmt.Errorf("security_id is required")
	}
	if t.Quantity.IsZero() {
		return fmt.Errorf("quantity must be non-zero")
	}
	if !t.Price.IsPositive() {
		return fmt.Errorf("price must be positive")
	}
	return nil
}

// PricePoint represents a security's closing price on a single date
type PricePoint struct {
	SecurityID string          `json:"security_id"`
	Date       time.Time       `json:"date"`
	Price      decimal.Decimal `json:"price"`
	Currency   Currency        `json:"currency"`
}
