package coa

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
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{code}", h.Get)
	r.Post("/{code}/deactivate", h.Deactivate)
	r.Post("/{code}/activate", h.Activate)
}

type createRequest struct {
	CompanyID int64  `json:"company_id" validate:"required,gt=0"`
	Code      string `json:"code" validate:"required"`
	Name      string `json:"name" validate:"required"`
	Nature    string `json:"nature" validate:"required,oneof=ASSET LIABILITY EQUITY INCOME EXPENSE"`
}

type accountResponse struct {
	ID       int64  `json:"id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	Nature   string `json:"nature"`
	IsActive bool   `json:"is_active"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	companyID, err := strconv.ParseInt(r.URL.Query().Get("company_id"), 10, 64)
	if err != nil || companyID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "invalid company id", "")
		return
	}
	var accounts []Account
	if r.URL.Query().Get("active") == "true" {
		accounts, err = h.service.ListActive(r.Context(), companyID)
	} else {
		accounts, err = h.service.List(r.Context(), companyID)
	}
	if err != nil {
		h.logger.Error("list accounts", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "internal error", "")
		return
	}
	out := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, accountResponse{ID: a.ID, Code: a.Code, Name: a.Name, Nature: string(a.Nature), IsActive: a.IsActive})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "validation failed", err.Error())
		return
	}
	account, err := h.service.Create(r.Context(), Account{
		CompanyID: req.CompanyID,
		Code:      req.Code,
		Name:      req.Name,
		Nature:    Nature(req.Nature),
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateCode) {
			httpx.Problem(w, http.StatusConflict, "duplicate code", err.Error())
			return
		}
		h.logger.Error("create account", slog.Any("error", err))
		httpx.Problem(w, http.StatusUnprocessableEntity, "account rejected", err.Error())
		return
	}
	httpx.JSON(w, http.StatusCreated, accountResponse{ID: account.ID, Code: account.Code, Name: account.Name, Nature: string(account.Nature), IsActive: account.IsActive})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	companyID, err := strconv.ParseInt(r.URL.Query().Get("company_id"), 10, 64)
	if err != nil || companyID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "invalid company id", "")
		return
	}
	account, err := h.service.ByCode(r.Context(), companyID, chi.URLParam(r, "code"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "account not found", "")
			return
		}
		h.logger.Error("get account", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "internal error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, accountResponse{ID: account.ID, Code: account.Code, Name: account.Name, Nature: string(account.Nature), IsActive: account.IsActive})
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	companyID, err := strconv.ParseInt(r.URL.Query().Get("company_id"), 10, 64)
	if err != nil || companyID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "invalid company id", "")
		return
	}
	code := chi.URLParam(r, "code")
	if active {
		err = h.service.Activate(r.Context(), companyID, code)
	} else {
		err = h.service.Deactivate(r.Context(), companyID, code)
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "account not found", "")
			return
		}
		h.logger.Error("toggle account", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "internal error", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
