package holdings

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/lookback/internal/domain"
)

// fakeAccountSource serves accounts from a map
type fakeAccountSource struct {
	accounts map[string]domain.Account
}

func (f *fakeAccountSource) Get(id string) (*domain.Account, error) {
	if acc, ok := f.accounts[id]; ok {
		return &acc, nil
	}
	return nil, nil
}

func (f *fakeAccountSource) GetAll() ([]domain.Account, error) {
	var out []domain.Account
	for _, acc := range f.accounts {
		out = append(out, acc)
	}
	return out, nil
}

func setupHandlerTest(t *testing.T) (*chi.Mux, *SnapshotRepository) {
	trades := &fakeTradeSource{trades: []domain.Trade{
		trade("AAPL", "2024-01-01", "10", "100"),
		trade("AAPL", "2024-01-02", "10", "120"),
	}}
	prices := &fakePriceSource{prices: map[string]map[string]decimal.Decimal{
		"AAPL": {
			"2024-01-01": dec("100"),
			"2024-01-02": dec("121"),
		},
	}}
	rates := &fakeRateSource{}
	repo := NewSnapshotRepository(setupHoldingsDB(t), testLogger())

	forward := NewForwardSimulator(trades, prices, rates, testLogger())
	forward.now = fixedNow("2024-01-02")
	reverse := NewReverseSimulator(trades, prices, rates, repo, testLogger())
	reverse.now = fixedNow("2024-01-02")

	materializer := NewMaterializer(forward, reverse, NewForwardFiller(), repo, trades, testLogger())
	accounts := &fakeAccountSource{accounts: map[string]domain.Account{
		"acc-1": testAccount(),
	}}
	service := NewService(materializer, accounts, repo, testLogger())
	handler := NewHandler(service, testLogger())

	router := chi.NewRouter()
	router.Route("/api/holdings", func(r chi.Router) {
		handler.Routes(r)
	})

	return router, repo
}

func postJSON(t *testing.T, router http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleMaterialize(t *testing.T) {
	router, repo := setupHandlerTest(t)

	rec := postJSON(t, router, "/api/holdings/materialize", map[string]string{
		"account_id": "acc-1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "acc-1", result.AccountID)
	assert.Equal(t, "forward", result.Strategy)
	assert.Equal(t, 2, result.Candidates)

	stored, err := repo.ListByAccount("acc-1")
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestHandleMaterialize_Validation(t *testing.T) {
	router, _ := setupHandlerTest(t)

	t.Run("missing account_id", func(t *testing.T) {
		rec := postJSON(t, router, "/api/holdings/materialize", map[string]string{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown strategy", func(t *testing.T) {
		rec := postJSON(t, router, "/api/holdings/materialize", map[string]string{
			"account_id": "acc-1",
			"strategy":   "sideways",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown account", func(t *testing.T) {
		rec := postJSON(t, router, "/api/holdings/materialize", map[string]string{
			"account_id": "nope",
		})
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestHandleGetHistory(t *testing.T) {
	router, _ := setupHandlerTest(t)

	rec := postJSON(t, router, "/api/holdings/materialize", map[string]string{"account_id": "acc-1"})
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/holdings/acc-1", nil)
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, req)
	require.Equal(t, http.StatusOK, getRec.Code)

	var snapshots []Snapshot
	require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &snapshots))
	require.Len(t, snapshots, 2)
	assert.Equal(t, "AAPL", snapshots[0].SecurityID)
}

func TestHandleGetHistory_EmptyAccount(t *testing.T) {
	router, _ := setupHandlerTest(t)

	req := httptest.NewRequest(http.MethodGet, "/api/holdings/empty", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestHandleGetSecurityHistory(t *testing.T) {
	router, _ := setupHandlerTest(t)

	rec := postJSON(t, router, "/api/holdings/materialize", map[string]string{"account_id": "acc-1"})
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/holdings/acc-1/AAPL", nil)
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, req)
	require.Equal(t, http.StatusOK, getRec.Code)

	var snapshots []Snapshot
	require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &snapshots))
	assert.Len(t, snapshots, 2)
}

func TestHandleSetLock(t *testing.T) {
	router, repo := setupHandlerTest(t)

	rec := postJSON(t, router, "/api/holdings/materialize", map[string]string{"account_id": "acc-1"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, router, "/api/holdings/lock", map[string]interface{}{
		"account_id":  "acc-1",
		"security_id": "AAPL",
		"date":        "2024-01-01",
		"currency":    "EUR",
		"locked":      true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got, err := repo.Get(Key{AccountID: "acc-1", SecurityID: "AAPL", Date: day("2024-01-01"), Currency: domain.CurrencyEUR})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.CostBasisLocked)
}

func TestHandleSetLock_Validation(t *testing.T) {
	router, _ := setupHandlerTest(t)

	t.Run("bad date", func(t *testing.T) {
		rec := postJSON(t, router, "/api/holdings/lock", map[string]interface{}{
			"account_id":  "acc-1",
			"security_id": "AAPL",
			"date":        "01/01/2024",
			"currency":    "EUR",
			"locked":      true,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing ids", func(t *testing.T) {
		rec := postJSON(t, router, "/api/holdings/lock", map[string]interface{}{
			"date":     "2024-01-01",
			"currency": "EUR",
			"locked":   true,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing currency", func(t *testing.T) {
		rec := postJSON(t, router, "/api/holdings/lock", map[string]interface{}{
			"account_id":  "acc-1",
			"security_id": "AAPL",
			"date":        "2024-01-01",
			"locked":      true,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
