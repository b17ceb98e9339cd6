package postingshandler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"payrollsync/internal/domain/ledger"
	"payrollsync/internal/domain/payroll"
	"payrollsync/internal/domain/posting"
	"payrollsync/internal/transport/http/api"
	"payrollsync/internal/transport/http/middleware"
)

type Handler struct {
	Service *posting.Service
}

func NewHandler(service *posting.Service) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.With(middleware.RequireAdmin).Post("/companies/{company}/postings", h.handleCreatePosting)
}

type postingPayload struct {
	BatchID string `json:"batchId"`
	Note    string `json:"note"`
}

// handleCreatePosting triggers one synchronous pipeline run. A duplicate
// period is a success response carrying the existing expense, not an error.
func (h *Handler) handleCreatePosting(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	company := chi.URLParam(r, "company")

	var payload postingPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "validation_error", "invalid JSON body", requestID)
		return
	}
	if strings.TrimSpace(payload.BatchID) == "" {
		api.Fail(w, http.StatusBadRequest, "validation_error", "batchId is required", requestID)
		return
	}

	result, err := h.Service.Run(r.Context(), company, payload.BatchID, payload.Note)
	if err != nil {
		status, code := classify(err)
		api.Fail(w, status, code, err.Error(), requestID)
		return
	}

	if result.Duplicate {
		api.Success(w, result, requestID)
		return
	}
	api.Created(w, result, requestID)
}

func classify(err error) (int, string) {
	var accountErr *ledger.AccountNotFoundError
	var authErr *ledger.AuthError
	var exhausted *ledger.RetryExhaustedError
	var apiErr *ledger.APIError

	switch {
	case errors.Is(err, posting.ErrBatchNotFound):
		return http.StatusNotFound, "batch_not_found"
	case errors.Is(err, ledger.ErrUnknownCompany):
		return http.StatusNotFound, "unknown_company"
	case errors.Is(err, payroll.ErrAmbiguousPeriod):
		return http.StatusUnprocessableEntity, "ambiguous_period"
	case errors.As(err, &accountErr):
		return http.StatusUnprocessableEntity, "account_not_found"
	case errors.As(err, &authErr):
		return http.StatusBadGateway, "auth_failure"
	case errors.As(err, &exhausted):
		return http.StatusBadGateway, "ledger_unavailable"
	case errors.As(err, &apiErr):
		return http.StatusBadGateway, "ledger_rejected"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
