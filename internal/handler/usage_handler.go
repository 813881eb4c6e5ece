package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"pdf-watermark-api/internal/domain"
	apperrors "pdf-watermark-api/pkg/errors"

	"github.com/gorilla/mux"
)

// UsageHandler exposes the monthly usage counters
type UsageHandler struct {
	usageService domain.UsageService
	logger       domain.Logger
}

// NewUsageHandler creates a new usage handler
func NewUsageHandler(usageService domain.UsageService, logger domain.Logger) *UsageHandler {
	return &UsageHandler{
		usageService: usageService,
		logger:       logger,
	}
}

// GetUsage handles GET /api/v1/usage/{company}.
// Without a query it lists every month; with year and month it returns one record.
func (h *UsageHandler) GetUsage(w http.ResponseWriter, r *http.Request) {
	company := strings.TrimSpace(mux.Vars(r)["company"])
	if company == "" {
		writeAppError(w, apperrors.NewValidationError("Company is required"))
		return
	}

	query := r.URL.Query()
	yearParam, monthParam := query.Get("year"), query.Get("month")

	if yearParam == "" && monthParam == "" {
		records, err := h.usageService.ListCompanyUsage(r.Context(), company)
		if err != nil {
			h.logger.Error("Failed to list usage", err, "company", company)
			writeAppError(w, apperrors.NewInternalError("Failed to load usage", err))
			return
		}
		if records == nil {
			records = make([]*domain.UsageRecord, 0)
		}
		writeJSON(w, http.StatusOK, records)
		return
	}

	year, yearErr := strconv.Atoi(yearParam)
	month, monthErr := strconv.Atoi(monthParam)
	if yearErr != nil || monthErr != nil {
		writeAppError(w, apperrors.NewValidationError("year and month must both be integers"))
		return
	}

	record, err := h.usageService.GetMonthlyUsage(r.Context(), company, year, month)
	if err != nil {
		var validationErr *domain.ValidationError
		switch {
		case errors.As(err, &validationErr):
			writeAppError(w, apperrors.NewValidationError(validationErr.Message, validationErr.Field))
		case errors.Is(err, domain.ErrUsageNotFound):
			writeAppError(w, apperrors.NewNotFoundError("Usage not found"))
		default:
			h.logger.Error("Failed to get usage", err, "company", company, "year", year, "month", month)
			writeAppError(w, apperrors.NewInternalError("Failed to load usage", err))
		}
		return
	}

	writeJSON(w, http.StatusOK, record)
}
