package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"collections-engine/internal/api/handler/dto"
	"collections-engine/internal/batch"
	"collections-engine/internal/domain/customer"
	"collections-engine/internal/pkg/apperrors"

	"github.com/go-chi/chi/v5"
)

// CustomerHandler exposes the admin surface: customer onboarding, lookup,
// and the on-demand daily run trigger.
type CustomerHandler struct {
	service    customer.Service
	job        *batch.DailyCallJob
	runTimeout time.Duration
	logger     *slog.Logger
}

func NewCustomerHandler(s customer.Service, job *batch.DailyCallJob, runTimeout time.Duration, l *slog.Logger) *CustomerHandler {
	if s == nil {
		panic("customer service cannot be nil")
	}
	if job == nil {
		panic("daily call job cannot be nil")
	}
	if l == nil {
		panic("logger cannot be nil")
	}
	if runTimeout <= 0 {
		runTimeout = 30 * time.Minute
	}
	return &CustomerHandler{
		service:    s,
		job:        job,
		runTimeout: runTimeout,
		logger:     l.With("component", "CustomerHandler"),
	}
}

func getPhoneFromURL(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "phone")
	if raw == "" {
		return "", fmt.Errorf("%w: phone not found in URL path", apperrors.ErrInvalidArgument)
	}
	return raw, nil
}

// CreateCustomer handles POST /customers: out-of-band onboarding of a record
// into the directory.
func (h *CustomerHandler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	h.logger.DebugContext(r.Context(), "Received create customer request")

	var req dto.CreateCustomerRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to decode request body", slog.Any("error", err))
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		h.logger.WarnContext(r.Context(), "Request validation failed", slog.Any("error", err))
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	created, err := h.service.OnboardCustomer(r.Context(), req.Name, req.Phone, req.Amount(), req.ParsedDueDate())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Service failed to onboard customer", slog.Any("error", err))
		respondError(w, err)
		return
	}

	resp := dto.NewCustomerResponse(created)
	h.logger.InfoContext(r.Context(), "Customer onboarded successfully", slog.String("phone", resp.Phone))
	respondJSON(w, http.StatusCreated, resp)
}

// GetCustomer handles GET /customers/{phone}.
func (h *CustomerHandler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	phone, err := getPhoneFromURL(r)
	if err != nil {
		respondError(w, err)
		return
	}

	cust, err := h.service.GetCustomerByPhone(r.Context(), phone)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewCustomerResponse(cust))
}

// TriggerDailyRun handles POST /admin/runs: the same orchestration the cron
// trigger executes, invoked on demand. Safe to call repeatedly within a day.
func (h *CustomerHandler) TriggerDailyRun(w http.ResponseWriter, r *http.Request) {
	h.logger.InfoContext(r.Context(), "Manual daily run triggered")

	ctx, cancel := context.WithTimeout(r.Context(), h.runTimeout)
	defer cancel()

	summary := h.job.Run(ctx)
	respondJSON(w, http.StatusOK, dto.RunSummaryResponse{
		Called:  summary.Called,
		Skipped: summary.Skipped,
		Failed:  summary.Failed,
	})
}
