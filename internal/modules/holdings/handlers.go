package holdings

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/lookback/internal/domain"
)

// Handler handles holdings HTTP requests
type Handler struct {
	service *Service
	log     zerolog.Logger
}

// NewHandler creates a new holdings handler
func NewHandler(service *Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "holdings").Logger(),
	}
}

// materializeRequest is the POST /materialize body
type materializeRequest struct {
	AccountID string `json:"account_id"`
	Strategy  string `json:"strategy"`
}

// lockRequest is the POST /lock body. Currency is part of the snapshot
// identity, so it is required to address one row.
type lockRequest struct {
	AccountID  string `json:"account_id"`
	SecurityID string `json:"security_id"`
	Date       string `json:"date"`
	Currency   string `json:"currency"`
	Locked     bool   `json:"locked"`
}

// HandleMaterialize handles POST /materialize - rebuild an account's history
func (h *Handler) HandleMaterialize(w http.ResponseWriter, r *http.Request) {
	var req materializeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.AccountID == "" {
		http.Error(w, "account_id is required", http.StatusBadRequest)
		return
	}

	strategy := Strategy(req.Strategy)
	if req.Strategy == "" {
		strategy = StrategyForward
	}
	if strategy != StrategyForward && strategy != StrategyReverse {
		http.Error(w, "strategy must be 'forward' or 'reverse'", http.StatusBadRequest)
		return
	}

	result, err := h.service.Materialize(r.Context(), req.AccountID, strategy)
	if err != nil {
		h.log.Error().Err(err).Str("account_id", req.AccountID).Msg("Materialization failed")
		http.Error(w, "Materialization failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// HandleGetHistory handles GET /{accountID} - full stored history
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	snapshots, err := h.service.History(accountID)
	if err != nil {
		h.log.Error().Err(err).Str("account_id", accountID).Msg("Failed to get holdings history")
		http.Error(w, "Failed to retrieve holdings", http.StatusInternalServerError)
		return
	}

	if snapshots == nil {
		snapshots = []Snapshot{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snapshots)
}

// HandleGetSecurityHistory handles GET /{accountID}/{securityID}
func (h *Handler) HandleGetSecurityHistory(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	securityID := chi.URLParam(r, "securityID")

	snapshots, err := h.service.SecurityHistory(accountID, securityID)
	if err != nil {
		h.log.Error().Err(err).
			Str("account_id", accountID).
			Str("security_id", securityID).
			Msg("Failed to get security history")
		http.Error(w, "Failed to retrieve holdings", http.StatusInternalServerError)
		return
	}

	if snapshots == nil {
		snapshots = []Snapshot{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snapshots)
}

// HandleSetLock handles POST /lock - set or clear a cost basis lock
func (h *Handler) HandleSetLock(w http.ResponseWriter, r *http.Request) {
	var req lockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.AccountID == "" || req.SecurityID == "" || req.Currency == "" {
		http.Error(w, "account_id, security_id and currency are required", http.StatusBadRequest)
		return
	}

	date, err := domain.ParseDateKey(req.Date)
	if err != nil {
		http.Error(w, "Invalid date format. Use YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	key := Key{
		AccountID:  req.AccountID,
		SecurityID: req.SecurityID,
		Date:       date,
		Currency:   domain.Currency(req.Currency),
	}
	if err := h.service.SetCostBasisLock(key, req.Locked); err != nil {
		h.log.Error().Err(err).Msg("Failed to update cost basis lock")
		http.Error(w, "Failed to update lock", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"locked": req.Locked})
}

// Routes registers holdings routes on a chi router
func (h *Handler) Routes(r chi.Router) {
	r.Post("/materialize", h.HandleMaterialize)
	r.Post("/lock", h.HandleSetLock)
	r.Get("/{accountID}", h.HandleGetHistory)
	r.Get("/{accountID}/{securityID}", h.HandleGetSecurityHistory)
}
