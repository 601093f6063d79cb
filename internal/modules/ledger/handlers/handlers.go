// Package handlers provides HTTP handlers for ledger operations.
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/lookback/internal/domain"
	"github.com/aristath/lookback/internal/modules/ledger"
)

// Handler handles ledger HTTP requests
type Handler struct {
	accounts        *ledger.AccountRepository
	trades          *ledger.TradeRepository
	defaultCurrency domain.Currency
	log             zerolog.Logger
}

// NewHandler creates a new ledger handler
func NewHandler(
	accounts *ledger.AccountRepository,
	trades *ledger.TradeRepository,
	defaultCurrency domain.Currency,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		accounts:        accounts,
		trades:          trades,
		defaultCurrency: defaultCurrency,
		log:             log.With().Str("handler", "ledger").Logger(),
	}
}

// createAccountRequest is the POST /accounts body
type createAccountRequest struct {
	Name     string `json:"name"`
	Currency string `json:"currency"`
}

// createTradeRequest is the POST /trades body
type createTradeRequest struct {
	AccountID  string `json:"account_id"`
	SecurityID string `json:"security_id"`
	Quantity   string `json:"quantity"`
	Price      string `json:"price"`
	Currency   string `json:"currency"`
	ExecutedOn string `json:"executed_on"`
}

// HandleCreateAccount handles POST /accounts
func (h *Handler) HandleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if strings.TrimSpace(req.Name) == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	currency := h.defaultCurrency
	if req.Currency != "" {
		currency = domain.Currency(strings.ToUpper(req.Currency))
	}

	account := domain.Account{
		Name:     strings.TrimSpace(req.Name),
		Currency: currency,
	}

	created, err := h.accounts.Create(account)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to create account")
		http.Error(w, "Failed to create account", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, created)
}

// HandleGetAccounts handles GET /accounts
func (h *Handler) HandleGetAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.GetAll()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get accounts")
		http.Error(w, "Failed to retrieve accounts", http.StatusInternalServerError)
		return
	}

	if accounts == nil {
		accounts = []domain.Account{}
	}

	h.writeJSON(w, http.StatusOK, accounts)
}

// HandleCreateTrade handles POST /trades
func (h *Handler) HandleCreateTrade(w http.ResponseWriter, r *http.Request) {
	var req createTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	quantity, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		http.Error(w, "Invalid quantity", http.StatusBadRequest)
		return
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		http.Error(w, "Invalid price", http.StatusBadRequest)
		return
	}

	executedOn, err := domain.ParseDateKey(req.ExecutedOn)
	if err != nil {
		http.Error(w, "Invalid executed_on date. Use YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	if executedOn.After(domain.Day(time.Now())) {
		http.Error(w, "executed_on cannot be in the future", http.StatusBadRequest)
		return
	}

	trade := domain.Trade{
		AccountID:  req.AccountID,
		SecurityID: strings.ToUpper(strings.TrimSpace(req.SecurityID)),
		Quantity:   quantity,
		Price:      price,
		Currency:   domain.Currency(strings.ToUpper(req.Currency)),
		ExecutedOn: executedOn,
	}

	created, err := h.trades.Create(trade)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to create trade")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.writeJSON(w, http.StatusCreated, created)
}

// HandleGetTrades handles GET /trades?account_id=...
func (h *Handler) HandleGetTrades(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		http.Error(w, "account_id is required", http.StatusBadRequest)
		return
	}

	trades, err := h.trades.ListByAccount(accountID)
	if err != nil {
		h.log.Error().Err(err).Str("account_id", accountID).Msg("Failed to get trades")
		http.Error(w, "Failed to retrieve trades", http.StatusInternalServerError)
		return
	}

	if trades == nil {
		trades = []domain.Trade{}
	}

	h.writeJSON(w, http.StatusOK, trades)
}

// writeJSON writes a JSON response with the given status
func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}
