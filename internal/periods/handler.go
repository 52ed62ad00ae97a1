package periods

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/quipu-erp/quipu-erp/internal/platform/httpx"
)

type Handler struct {
	service  *Service
	logger   *slog.Logger
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{service: service, logger: logger, validate: validator.New()}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.ListOpen)
	r.Post("/", h.Open)
	r.Post("/{year}/{month}/close", h.Close)
	r.Post("/{year}/{month}/reopen", h.Reopen)
}

type openRequest struct {
	CompanyID int64 `json:"company_id" validate:"required,gt=0"`
	Year      int   `json:"year" validate:"required,gte=2000,lte=2100"`
	Month     int   `json:"month" validate:"required,gte=1,lte=12"`
}

type periodResponse struct {
	ID       int64  `json:"id"`
	Year     int    `json:"year"`
	Month    int    `json:"month"`
	Status   string `json:"status"`
	ClosedAt string `json:"closed_at,omitempty"`
}

func toPeriodResponse(p Period) periodResponse {
	out := periodResponse{ID: p.ID, Year: p.Year, Month: p.Month, Status: string(p.Status)}
	if p.ClosedAt != nil {
		out.ClosedAt = p.ClosedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	return out
}

func (h *Handler) ListOpen(w http.ResponseWriter, r *http.Request) {
	companyID, err := strconv.ParseInt(r.URL.Query().Get("company_id"), 10, 64)
	if err != nil || companyID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "invalid company id", "")
		return
	}
	periods, err := h.service.ListOpen(r.Context(), companyID)
	if err != nil {
		h.logger.Error("list periods", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "internal error", "")
		return
	}
	out := make([]periodResponse, 0, len(periods))
	for _, p := range periods {
		out = append(out, toPeriodResponse(p))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) Open(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "validation failed", err.Error())
		return
	}
	period, err := h.service.GetOrOpen(r.Context(), req.CompanyID, req.Year, req.Month)
	if err != nil {
		h.logger.Error("open period", slog.Any("error", err))
		httpx.Problem(w, http.StatusUnprocessableEntity, "period rejected", err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, toPeriodResponse(period))
}

func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, PeriodStatusClosed)
}

func (h *Handler) Reopen(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, PeriodStatusOpen)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, target PeriodStatus) {
	companyID, err := strconv.ParseInt(r.URL.Query().Get("company_id"), 10, 64)
	if err != nil || companyID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "invalid company id", "")
		return
	}
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid year", "")
		return
	}
	month, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid month", "")
		return
	}

	if target == PeriodStatusClosed {
		err = h.service.Close(r.Context(), companyID, year, month)
	} else {
		err = h.service.Reopen(r.Context(), companyID, year, month)
	}
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "period not found", "")
	case errors.Is(err, ErrAlreadyClosed):
		httpx.Problem(w, http.StatusConflict, "period already closed", "")
	default:
		h.logger.Error("transition period", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "internal error", "")
	}
}
