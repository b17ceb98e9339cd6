package rateshandler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"payrollsync/internal/domain/timesheet"
	"payrollsync/internal/transport/http/api"
	"payrollsync/internal/transport/http/middleware"
)

// RateStore is the pay-rate table: employee id to hourly rate.
type RateStore interface {
	ListRates(ctx context.Context) ([]timesheet.PayRate, error)
	UpsertRate(ctx context.Context, employeeID string, rate decimal.Decimal) error
}

type Handler struct {
	Store RateStore
}

func NewHandler(store RateStore) *Handler {
	return &Handler{Store: store}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.With(middleware.RequireAdmin).Get("/rates", h.handleList)
	r.With(middleware.RequireAdmin).Put("/rates", h.handleUpsert)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	rates, err := h.Store.ListRates(r.Context())
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "failed to list rates", requestID)
		return
	}
	if rates == nil {
		rates = []timesheet.PayRate{}
	}
	api.Success(w, rates, requestID)
}

type ratePayload struct {
	EmployeeID string          `json:"employeeId"`
	HourlyRate decimal.Decimal `json:"hourlyRate"`
}

func (h *Handler) handleUpsert(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var payload ratePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "validation_error", "invalid JSON body", requestID)
		return
	}
	if strings.TrimSpace(payload.EmployeeID) == "" {
		api.Fail(w, http.StatusBadRequest, "validation_error", "employeeId is required", requestID)
		return
	}
	if payload.HourlyRate.IsNegative() || payload.HourlyRate.GreaterThan(timesheet.MaxHourlyRate) {
		api.Fail(w, http.StatusBadRequest, "validation_error", "hourlyRate must be between 0 and 10000", requestID)
		return
	}

	if err := h.Store.UpsertRate(r.Context(), strings.TrimSpace(payload.EmployeeID), payload.HourlyRate); err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "failed to save rate", requestID)
		return
	}
	api.Success(w, payload, requestID)
}
