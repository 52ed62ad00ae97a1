package ledger

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/quipu-erp/quipu-erp/internal/platform/httpx"
	"github.com/quipu-erp/quipu-erp/internal/shared"
)

// entryCacheTTL bounds the read-through cache for posted entries. Entries
// are immutable once posted, so the TTL only caps memory, not staleness.
const entryCacheTTL = 24 * time.Hour

// Handler exposes the engine over JSON.
type Handler struct {
	service     *Service
	idempotency *shared.IdempotencyStore
	cache       *redis.Client
	logger      *slog.Logger
	validate    *validator.Validate
}

// NewHandler constructs the handler. idempotency may be nil for tests.
func NewHandler(logger *slog.Logger, service *Service, idempotency *shared.IdempotencyStore) *Handler {
	return &Handler{
		service:     service,
		idempotency: idempotency,
		logger:      logger,
		validate:    validator.New(),
	}
}

// WithCache enables the read-through entry cache.
func (h *Handler) WithCache(client *redis.Client) *Handler {
	h.cache = client
	return h
}

// MountRoutes registers ledger endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/entries", h.Generate)
	r.Post("/simulations", h.Simulate)
	r.Get("/entries/{id}", h.Get)
}

type generateRequest struct {
	CompanyID int64         `json:"company_id" validate:"required,gt=0"`
	EventType string        `json:"event_type" validate:"required"`
	Date      string        `json:"date" validate:"required,datetime=2006-01-02"`
	Memo      string        `json:"memo"`
	Currency  string        `json:"currency" validate:"omitempty,len=3"`
	Origin    string        `json:"origin"`
	Operation OperationData `json:"operation_data" validate:"required"`
}

func (h *Handler) decodeInput(w http.ResponseWriter, r *http.Request) (GenerateInput, bool) {
	var req generateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request body", err.Error())
		return GenerateInput{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "validation failed", err.Error())
		return GenerateInput{}, false
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "invalid date", err.Error())
		return GenerateInput{}, false
	}
	return GenerateInput{
		CompanyID: req.CompanyID,
		EventType: req.EventType,
		Date:      date,
		Memo:      req.Memo,
		Currency:  req.Currency,
		Origin:    req.Origin,
		Operation: req.Operation,
	}, true
}

// Generate posts a journal entry for a business event.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeInput(w, r)
	if !ok {
		return
	}
	key := r.Header.Get("Idempotency-Key")
	if key != "" && h.idempotency != nil {
		if err := h.idempotency.Reserve(r.Context(), key); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				httpx.Problem(w, http.StatusConflict, "duplicate request", "idempotency key already processed")
				return
			}
			h.logger.Error("idempotency check", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "internal error", "")
			return
		}
	}
	entry, err := h.service.Generate(r.Context(), in)
	if err != nil {
		// Nothing was persisted, so release the key and let the caller
		// retry with it.
		if key != "" && h.idempotency != nil {
			if derr := h.idempotency.Release(r.Context(), key); derr != nil {
				h.logger.Warn("release idempotency key", slog.Any("error", derr))
			}
		}
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toEntryResponse(entry))
}

// Simulate previews an entry without persisting.
func (h *Handler) Simulate(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeInput(w, r)
	if !ok {
		return
	}
	sim, err := h.service.Simulate(r.Context(), in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSimulationResponse(sim))
}

// Get fetches a posted entry with its lines. Posted entries never change,
// so hits are served from the cache when one is configured.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "invalid entry id", "")
		return
	}
	key := "ledger:entry:" + strconv.FormatInt(id, 10)
	if h.cache != nil {
		if cached, err := h.cache.Get(r.Context(), key).Bytes(); err == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(cached)
			return
		}
	}
	entry, err := h.service.Entry(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	resp := toEntryResponse(entry)
	if h.cache != nil {
		if data, err := json.Marshal(resp); err == nil {
			if err := h.cache.Set(r.Context(), key, data, entryCacheTTL).Err(); err != nil {
				h.logger.Warn("cache entry", slog.Any("error", err))
			}
		}
	}
	httpx.JSON(w, http.StatusOK, resp)
}

// respondError maps the engine taxonomy onto problem responses.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrConfiguration), errors.Is(err, ErrEventNotFound), errors.Is(err, ErrEntryNotFound):
		httpx.Problem(w, http.StatusNotFound, "configuration missing", err.Error())
	case errors.Is(err, ErrUnmappedRole), errors.Is(err, ErrInvalidMapping),
		errors.Is(err, ErrInactiveAccount), errors.Is(err, ErrUnbalancedEntry),
		errors.Is(err, ErrEmptyAssembly):
		httpx.Problem(w, http.StatusUnprocessableEntity, "entry not assemblable", err.Error())
	case errors.Is(err, ErrClosedPeriod):
		httpx.Problem(w, http.StatusConflict, "period closed", err.Error())
	default:
		h.logger.Error("generate entry", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "internal error", "")
	}
}

type lineResponse struct {
	AccountID   int64  `json:"account_id"`
	AccountCode string `json:"account_code,omitempty"`
	Debit       string `json:"debit"`
	Credit      string `json:"credit"`
	Memo        string `json:"memo"`
}

type entryResponse struct {
	ID          int64          `json:"id"`
	Ref         string         `json:"ref"`
	CompanyID   int64          `json:"company_id"`
	Date        string         `json:"date"`
	Currency    string         `json:"currency"`
	Status      string         `json:"status"`
	Origin      string         `json:"origin"`
	Memo        string         `json:"memo"`
	TotalDebit  string         `json:"total_debit"`
	TotalCredit string         `json:"total_credit"`
	ContentHash string         `json:"content_hash"`
	Lines       []lineResponse `json:"lines"`
}

type simulationResponse struct {
	EventName   string         `json:"event_name"`
	Memo        string         `json:"memo"`
	TotalDebit  string         `json:"total_debit"`
	TotalCredit string         `json:"total_credit"`
	Balanced    bool           `json:"balanced"`
	Lines       []lineResponse `json:"lines"`
}

func toLineResponses(lines []EntryLine) []lineResponse {
	out := make([]lineResponse, 0, len(lines))
	for _, line := range lines {
		out = append(out, lineResponse{
			AccountID:   line.AccountID,
			AccountCode: line.AccountCode,
			Debit:       fixed2(line.Debit),
			Credit:      fixed2(line.Credit),
			Memo:        line.Memo,
		})
	}
	return out
}

func toEntryResponse(entry JournalEntry) entryResponse {
	return entryResponse{
		ID:          entry.ID,
		Ref:         entry.Ref.String(),
		CompanyID:   entry.CompanyID,
		Date:        entry.Date.Format("2006-01-02"),
		Currency:    entry.Currency,
		Status:      string(entry.Status),
		Origin:      entry.Origin,
		Memo:        entry.Memo,
		TotalDebit:  fixed2(entry.TotalDebit),
		TotalCredit: fixed2(entry.TotalCredit),
		ContentHash: entry.ContentHash,
		Lines:       toLineResponses(entry.Lines),
	}
}

func toSimulationResponse(sim Simulation) simulationResponse {
	return simulationResponse{
		EventName:   sim.EventName,
		Memo:        sim.Memo,
		TotalDebit:  fixed2(sim.TotalDebit),
		TotalCredit: fixed2(sim.TotalCredit),
		Balanced:    sim.Balanced,
		Lines:       toLineResponses(sim.Lines),
	}
}

func fixed2(d decimal.Decimal) string { return d.StringFixed(2) }
