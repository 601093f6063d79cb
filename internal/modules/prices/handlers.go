package prices

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/lookback/internal/domain"
)

// Handler handles price HTTP requests
type Handler struct {
	repo *PriceRepository
	log  zerolog.Logger
}

// NewHandler creates a new prices handler
func NewHandler(repo *PriceRepository, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "prices").Logger(),
	}
}

// pricePointRequest is a single entry in the POST / body
type pricePointRequest struct {
	SecurityID string `json:"security_id"`
	Date       string `json:"date"`
	Price      string `json:"price"`
	Currency   string `json:"currency"`
}

// HandleUpsertPrices handles POST / - record daily closing prices
func (h *Handler) HandleUpsertPrices(w http.ResponseWriter, r *http.Request) {
	var req []pricePointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	stored := 0
	for _, entry := range req {
		date, err := domain.ParseDateKey(entry.Date)
		if err != nil {
			http.Error(w, "Invalid date format. Use YYYY-MM-DD", http.StatusBadRequest)
			return
		}

		price, err := decimal.NewFromString(entry.Price)
		if err != nil || !price.IsPositive() {
			http.Error(w, "Price must be a positive decimal", http.StatusBadRequest)
			return
		}

		point := domain.PricePoint{
			SecurityID: strings.ToUpper(strings.TrimSpace(entry.SecurityID)),
			Date:       date,
			Price:      price,
			Currency:   domain.Currency(strings.ToUpper(entry.Currency)),
		}

		if point.SecurityID == "" {
			http.Error(w, "security_id is required", http.StatusBadRequest)
			return
		}

		if err := h.repo.Upsert(point); err != nil {
			h.log.Error().Err(err).Str("security_id", point.SecurityID).Msg("Failed to store price")
			http.Error(w, "Failed to store prices", http.StatusInternalServerError)
			return
		}
		stored++
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"stored": stored})
}

// HandleGetPrice handles GET /{securityID}/{date}
func (h *Handler) HandleGetPrice(w http.ResponseWriter, r *http.Request) {
	securityID := strings.ToUpper(chi.URLParam(r, "securityID"))
	dateKey := chi.URLParam(r, "date")

	date, err := domain.ParseDateKey(dateKey)
	if err != nil {
		http.Error(w, "Invalid date format. Use YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	point, err := h.repo.GetOnDate(securityID, date)
	if err != nil {
		h.log.Error().Err(err).Str("security_id", securityID).Msg("Failed to get price")
		http.Error(w, "Failed to retrieve price", http.StatusInternalServerError)
		return
	}
	if point == nil {
		http.Error(w, "No price recorded for that date", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(point)
}

// HandleGetLatestPrice handles GET /{securityID}/latest?date=YYYY-MM-DD.
// Without a date it returns the most recent price on record.
func (h *Handler) HandleGetLatestPrice(w http.ResponseWriter, r *http.Request) {
	securityID := strings.ToUpper(chi.URLParam(r, "securityID"))

	date := time.Now()
	if dateKey := r.URL.Query().Get("date"); dateKey != "" {
		parsed, err := domain.ParseDateKey(dateKey)
		if err != nil {
			http.Error(w, "Invalid date format. Use YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		date = parsed
	}

	point, err := h.repo.LatestBefore(securityID, date)
	if err != nil {
		h.log.Error().Err(err).Str("security_id", securityID).Msg("Failed to get latest price")
		http.Error(w, "Failed to retrieve price", http.StatusInternalServerError)
		return
	}
	if point == nil {
		http.Error(w, "No price recorded at or before that date", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(point)
}

// Routes registers price routes on a chi router
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.HandleUpsertPrices)
	r.Get("/{securityID}/latest", h.HandleGetLatestPrice)
	r.Get("/{securityID}/{date}", h.HandleGetPrice)
}
