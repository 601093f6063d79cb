package prices

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

func setupHistoryDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE daily_prices (
			security_id TEXT NOT NULL,
			date        TEXT NOT NULL,
			price       TEXT NOT NULL,
			currency    TEXT NOT NULL,
			created_at  INTEGER NOT NULL,
			PRIMARY KEY (security_id, date)
		)
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

func point(securityID, dateKey, price string) domain.PricePoint {
	d, err := domain.ParseDateKey(dateKey)
	if err != nil {
		panic(err)
	}
	return domain.PricePoint{
		SecurityID: securityID,
		Date:       d,
		Price:      dec(price),
		Currency:   domain.CurrencyEUR,
	}
}

func TestPriceRepository_UpsertAndGet(t *testing.T) {
	repo := NewPriceRepository(setupHistoryDB(t), testLogger())

	require.NoError(t, repo.Upsert(point("AAPL", "2024-01-02", "185.64")))

	date, err := domain.ParseDateKey("2024-01-02")
	require.NoError(t, err)

	got, err := repo.GetOnDate("AAPL", date)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Price.Equal(dec("185.64")))
	assert.Equal(t, domain.CurrencyEUR, got.Currency)
}

func TestPriceRepository_UpsertReplacesSameDay(t *testing.T) {
	repo := NewPriceRepository(setupHistoryDB(t), testLogger())

	require.NoError(t, repo.Upsert(point("AAPL", "2024-01-02", "185")))
	require.NoError(t, repo.Upsert(point("AAPL", "2024-01-02", "186")))

	date, err := domain.ParseDateKey("2024-01-02")
	require.NoError(t, err)

	got, err := repo.GetOnDate("AAPL", date)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Price.Equal(dec("186")))
}

func TestPriceRepository_UpsertRejectsNonPositive(t *testing.T) {
	repo := NewPriceRepository(setupHistoryDB(t), testLogger())

	err := repo.Upsert(point("AAPL", "2024-01-02", "0"))
	assert.Error(t, err)
}

func TestPriceRepository_GetOnDateMissing(t *testing.T) {
	repo := NewPriceRepository(setupHistoryDB(t), testLogger())

	date, err := domain.ParseDateKey("2024-01-02")
	require.NoError(t, err)

	got, err := repo.GetOnDate("AAPL", date)
	require.NoError(t, err)
	assert.Nil(t, got, "absence is a skip condition, not an error")
}

func TestPriceRepository_LatestBefore(t *testing.T) {
	repo := NewPriceRepository(setupHistoryDB(t), testLogger())

	require.NoError(t, repo.Upsert(point("AAPL", "2024-01-02", "185")))
	require.NoError(t, repo.Upsert(point("AAPL", "2024-01-05", "190")))

	t.Run("skips back over a gap", func(t *testing.T) {
		date, err := domain.ParseDateKey("2024-01-04")
		require.NoError(t, err)

		got, err := repo.LatestBefore("AAPL", date)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "2024-01-02", domain.DateKey(got.Date))
	})

	t.Run("exact date counts", func(t *testing.T) {
		date, err := domain.ParseDateKey("2024-01-05")
		require.NoError(t, err)

		got, err := repo.LatestBefore("AAPL", date)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.True(t, got.Price.Equal(dec("190")))
	})

	t.Run("nil before first observation", func(t *testing.T) {
		date, err := domain.ParseDateKey("2024-01-01")
		require.NoError(t, err)

		got, err := repo.LatestBefore("AAPL", date)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}
