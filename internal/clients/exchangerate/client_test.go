package exchangerate

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/lookback/internal/clientdata"

	_ "modernc.org/sqlite"
)

func testLogger() zerolog.Logger {
	return zerolog.New(nil).Level(zerolog.Disabled)
}

func setupCacheRepo(t *testing.T) *clientdata.Repository {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE exchangerate (
			pair       TEXT PRIMARY KEY,
			data       TEXT NOT NULL,
			expires_at INTEGER NOT NULL
		)
	`)
	require.NoError(t, err)

	return clientdata.NewRepository(db)
}

func TestGetRate_SameCurrency(t *testing.T) {
	client := NewClient(nil, "", testLogger())

	rate, err := client.GetRate("EUR", "EUR")
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.NewFromInt(1)))
}

func TestGetRate_FetchesAndCaches(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/USD", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"rates": {"EUR": 0.92, "GBP": 0.79}}`))
	}))
	defer server.Close()

	repo := setupCacheRepo(t)
	client := NewClient(repo, server.URL, testLogger())

	rate, err := client.GetRate("USD", "EUR")
	require.NoError(t, err)
	assert.Equal(t, "0.92", rate.String())

	// Second call is served from cache.
	rate, err = client.GetRate("USD", "EUR")
	require.NoError(t, err)
	assert.Equal(t, "0.92", rate.String())
	assert.Equal(t, 1, calls)
}

func TestGetRate_StaleCacheOnAPIFailure(t *testing.T) {
	repo := setupCacheRepo(t)
	require.NoError(t, repo.Store("exchangerate", "USD:EUR", map[string]float64{"rate": 0.9}, -time.Hour))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(repo, server.URL, testLogger())

	rate, err := client.GetRate("USD", "EUR")
	require.NoError(t, err)
	assert.Equal(t, "0.9", rate.String())
}

func TestGetRate_MissingPair(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rates": {"GBP": 0.79}}`))
	}))
	defer server.Close()

	client := NewClient(nil, server.URL, testLogger())

	_, err := client.GetRate("USD", "EUR")
	assert.Error(t, err)
}

func TestRateOrFallback(t *testing.T) {
	t.Run("real rate", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"rates": {"EUR": 0.92}}`))
		}))
		defer server.Close()

		client := NewClient(nil, server.URL, testLogger())

		rate, fellBack := client.RateOrFallback("USD", "EUR")
		assert.False(t, fellBack)
		assert.Equal(t, "0.92", rate.String())
	})

	t.Run("falls back to 1:1", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		client := NewClient(nil, server.URL, testLogger())

		rate, fellBack := client.RateOrFallback("USD", "EUR")
		assert.True(t, fellBack)
		assert.True(t, rate.Equal(decimal.NewFromInt(1)))
	})
}
