package timesheethandler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"payrollsync/internal/domain/timesheet"
	"payrollsync/internal/platform/config"
	"payrollsync/internal/transport/http/api"
	"payrollsync/internal/transport/http/middleware"
)

// Importer persists one immutable batch of entries.
type Importer interface {
	ImportBatch(ctx context.Context, companyKey string, entries []timesheet.TimeEntry) (string, error)
}

type Handler struct {
	Store Importer
}

func NewHandler(store Importer) *Handler {
	return &Handler{Store: store}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.With(middleware.RequireAdmin).Post("/timesheets/import", h.handleImport)
}

type importPayload struct {
	Company string       `json:"company"`
	Entries []entryInput `json:"entries"`
}

type entryInput struct {
	EmployeeID string `json:"employeeId"`
	Date       string `json:"date"`
	ClockIn    string `json:"clockIn"`
	ClockOut   string `json:"clockOut"`
	Reported   string `json:"reportedDurationHours"`
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var payload importPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "validation_error", "invalid JSON body", requestID)
		return
	}
	companyKey := config.CompanyKey(payload.Company)
	if companyKey == "" {
		api.Fail(w, http.StatusBadRequest, "validation_error", "company is required", requestID)
		return
	}
	if len(payload.Entries) == 0 {
		api.Fail(w, http.StatusBadRequest, "validation_error", "entries must not be empty", requestID)
		return
	}

	entries := make([]timesheet.TimeEntry, 0, len(payload.Entries))
	for i, input := range payload.Entries {
		if strings.TrimSpace(input.EmployeeID) == "" {
			api.Fail(w, http.StatusBadRequest, "validation_error", "entries["+strconv.Itoa(i)+"].employeeId is required", requestID)
			return
		}
		date, err := time.Parse("2006-01-02", input.Date)
		if err != nil {
			api.Fail(w, http.StatusBadRequest, "validation_error", "entries["+strconv.Itoa(i)+"].date must be YYYY-MM-DD", requestID)
			return
		}
		entries = append(entries, timesheet.TimeEntry{
			EmployeeID: strings.TrimSpace(input.EmployeeID),
			Date:       date,
			ClockIn:    strings.TrimSpace(input.ClockIn),
			ClockOut:   strings.TrimSpace(input.ClockOut),
			Reported:   strings.TrimSpace(input.Reported),
		})
	}

	batchID, err := h.Store.ImportBatch(r.Context(), companyKey, entries)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "failed to import batch", requestID)
		return
	}

	api.Created(w, map[string]any{"batchId": batchID, "company": companyKey, "imported": len(entries)}, requestID)
}
