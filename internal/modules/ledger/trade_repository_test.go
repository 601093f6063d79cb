package ledger

import (
	"database/sql"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/lookback/internal/domain"

	_ "modernc.org/sqlite"
)

func setupLedgerDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE accounts (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			currency   TEXT NOT NULL DEFAULT 'EUR',
			created_at INTEGER NOT NULL
		);
		CREATE TABLE trades (
			id          TEXT PRIMARY KEY,
			account_id  TEXT NOT NULL,
			security_id TEXT NOT NULL,
			quantity    TEXT NOT NULL,
			price       TEXT NOT NULL,
			currency    TEXT NOT NULL,
			executed_on TEXT NOT NULL,
			created_at  INTEGER NOT NULL
		);
	`)
	require.NoError(t, err)

	return db
}

func testLogger() zerolog.Logger {
	return zerolog.New(nil).Level(zerolog.Disabled)
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testTrade(securityID, dateKey, qty, price string) domain.Trade {
	d, err := domain.ParseDateKey(dateKey)
	if err != nil {
		panic(err)
	}
	return domain.Trade{
		AccountID:  "acc-1",
		SecurityID: securityID,
		Quantity:   dec(qty),
		Price:      dec(price),
		Currency:   domain.CurrencyEUR,
		ExecutedOn: d,
	}
}

func TestTradeRepository_CreateAndList(t *testing.T) {
	repo := NewTradeRepository(setupLedgerDB(t), testLogger())

	created, err := repo.Create(testTrade("aapl", "2024-01-02", "10", "100.5"))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "AAPL", created.SecurityID, "security ids are normalized to upper case")

	trades, err := repo.ListByAccount("acc-1")
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.True(t, trades[0].Quantity.Equal(dec("10")))
	assert.True(t, trades[0].Price.Equal(dec("100.5")))
	assert.Equal(t, "2024-01-02", domain.DateKey(trades[0].ExecutedOn))
}

func TestTradeRepository_CreateValidation(t *testing.T) {
	repo := NewTradeRepository(setupLedgerDB(t), testLogger())

	tests := []struct {
		name   string
		mutate func(*domain.Trade)
	}{
		{"zero quantity", func(tr *domain.Trade) { tr.Quantity = decimal.Zero }},
		{"zero price", func(tr *domain.Trade) { tr.Price = decimal.Zero }},
		{"negative price", func(tr *domain.Trade) { tr.Price = dec("-5") }},
		{"missing account", func(tr *domain.Trade) { tr.AccountID = "" }},
		{"missing security", func(tr *domain.Trade) { tr.SecurityID = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := testTrade("AAPL", "2024-01-02", "10", "100")
			tt.mutate(&tr)

			_, err := repo.Create(tr)
			assert.Error(t, err)
		})
	}
}

func TestTradeRepository_SellsAreNegativeQuantities(t *testing.T) {
	repo := NewTradeRepository(setupLedgerDB(t), testLogger())

	created, err := repo.Create(testTrade("AAPL", "2024-01-02", "-5", "110"))
	require.NoError(t, err)
	assert.False(t, created.IsBuy())
}

func TestTradeRepository_ListByDate(t *testing.T) {
	repo := NewTradeRepository(setupLedgerDB(t), testLogger())

	_, err := repo.Create(testTrade("AAPL", "2024-01-01", "10", "100"))
	require.NoError(t, err)
	_, err = repo.Create(testTrade("MSFT", "2024-01-01", "5", "200"))
	require.NoError(t, err)
	_, err = repo.Create(testTrade("AAPL", "2024-01-02", "-5", "110"))
	require.NoError(t, err)

	date, err := domain.ParseDateKey("2024-01-01")
	require.NoError(t, err)

	trades, err := repo.ListByDate("acc-1", date)
	require.NoError(t, err)
	assert.Len(t, trades, 2)
}

func TestTradeRepository_Securities(t *testing.T) {
	repo := NewTradeRepository(setupLedgerDB(t), testLogger())

	_, err := repo.Create(testTrade("MSFT", "2024-01-01", "5", "200"))
	require.NoError(t, err)
	_, err = repo.Create(testTrade("AAPL", "2024-01-01", "10", "100"))
	require.NoError(t, err)
	_, err = repo.Create(testTrade("AAPL", "2024-01-02", "-5", "110"))
	require.NoError(t, err)

	securities, err := repo.Securities("acc-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, securities)
}

func TestTradeRepository_EarliestTradeDate(t *testing.T) {
	repo := NewTradeRepository(setupLedgerDB(t), testLogger())

	t.Run("nil when no trades", func(t *testing.T) {
		earliest, err := repo.EarliestTradeDate("acc-1")
		require.NoError(t, err)
		assert.Nil(t, earliest)
	})

	t.Run("minimum execution date", func(t *testing.T) {
		_, err := repo.Create(testTrade("AAPL", "2024-02-01", "10", "100"))
		require.NoError(t, err)
		_, err = repo.Create(testTrade("MSFT", "2024-01-15", "5", "200"))
		require.NoError(t, err)

		earliest, err := repo.EarliestTradeDate("acc-1")
		require.NoError(t, err)
		require.NotNil(t, earliest)
		assert.Equal(t, "2024-01-15", domain.DateKey(*earliest))
	})
}

func TestAccountRepository_CreateAndGet(t *testing.T) {
	repo := NewAccountRepository(setupLedgerDB(t), testLogger())

	created, err := repo.Create(domain.Account{Name: "Main"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, domain.CurrencyEUR, created.Currency, "currency defaults to EUR")

	got, err := repo.Get(created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Main", got.Name)
}

func TestAccountRepository_GetMissing(t *testing.T) {
	repo := NewAccountRepository(setupLedgerDB(t), testLogger())

	got, err := repo.Get("nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAccountRepository_CreateRequiresName(t *testing.T) {
	repo := NewAccountRepository(setupLedgerDB(t), testLogger())

	_, err := repo.Create(domain.Account{})
	assert.Error(t, err)
}
