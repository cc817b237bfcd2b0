package handlers

import (
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"cn-dashboard/internal/errors"
	"cn-dashboard/internal/models"
	"cn-dashboard/internal/observability"
	"cn-dashboard/internal/services"
)

const maxBodyBytes = 1 << 16

type APIHandlers struct {
	dashboard *services.Dashboard
	logger    *slog.Logger
}

func NewAPIHandlers(dashboard *services.Dashboard, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		dashboard: dashboard,
		logger:    logger,
	}
}

type rangeRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type selectorRequest struct {
	Selector string `json:"selector"`
}

// HandleSetRange applies a date range. A request with only one bound is
// stored as pending and answered with the unchanged state.
func (h *APIHandlers) HandleSetRange(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	var req rangeRequest
	if err := decodeJSON(r, &req); err != nil {
		errors.WriteError(w, h.logger, errors.BadRequestWrap(err, "invalid request body"), requestID)
		return
	}

	if _, err := applyRange(h.dashboard, req.Start, req.End); err != nil {
		errors.WriteError(w, h.logger, toAppError(err), requestID)
		return
	}

	errors.WriteSuccessStatus(w, http.StatusAccepted, h.dashboard.State())
}

func (h *APIHandlers) HandleRetry(w http.ResponseWriter, r *http.Request) {
	if _, err := h.dashboard.Retry(); err != nil {
		errors.WriteError(w, h.logger, toAppError(err), observability.GetRequestID(r.Context()))
		return
	}
	errors.WriteSuccessStatus(w, http.StatusAccepted, h.dashboard.State())
}

// HandleRefresh refetches the current range, bypassing the report cache.
func (h *APIHandlers) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if _, err := h.dashboard.Refresh(r.Context()); err != nil {
		errors.WriteError(w, h.logger, toAppError(err), observability.GetRequestID(r.Context()))
		return
	}
	errors.WriteSuccessStatus(w, http.StatusAccepted, h.dashboard.State())
}

func (h *APIHandlers) HandleState(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccessWithHeaders(w, h.dashboard.State(), map[string]string{
		"Cache-Control": "no-store",
	})
}

func (h *APIHandlers) HandleWidgets(w http.ResponseWriter, r *http.Request) {
	views, err := h.dashboard.Views(r.Context())
	if err != nil {
		errors.WriteError(w, h.logger, toAppError(err), observability.GetRequestID(r.Context()))
		return
	}
	errors.WriteSuccessWithHeaders(w, views, map[string]string{
		"Cache-Control": "no-store",
	})
}

func (h *APIHandlers) HandleWidget(w http.ResponseWriter, r *http.Request) {
	view, err := h.dashboard.View(r.PathValue("id"))
	if err != nil {
		errors.WriteError(w, h.logger, toAppError(err), observability.GetRequestID(r.Context()))
		return
	}
	errors.WriteSuccess(w, view)
}

func (h *APIHandlers) HandleSelect(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	var req selectorRequest
	if err := decodeJSON(r, &req); err != nil {
		errors.WriteError(w, h.logger, errors.BadRequestWrap(err, "invalid request body"), requestID)
		return
	}

	view, err := h.dashboard.Select(r.PathValue("id"), req.Selector)
	if err != nil {
		errors.WriteError(w, h.logger, toAppError(err), requestID)
		return
	}
	errors.WriteSuccess(w, view)
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
	}

	errors.WriteSuccess(w, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, h.dashboard.Stats())
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// applyRange parses both bounds and hands them to the dashboard. Blank
// bounds are treated as unset.
func applyRange(d *services.Dashboard, start, end string) (<-chan struct{}, error) {
	s, err := parseBound(start)
	if err != nil {
		return nil, err
	}
	e, err := parseBound(end)
	if err != nil {
		return nil, err
	}
	return d.SetRange(s, e)
}

func parseBound(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	day, err := models.ParseDay(value)
	if err != nil {
		return nil, stderrors.Join(models.ErrInvalidRange, err)
	}
	return &day, nil
}

func toAppError(err error) *errors.AppError {
	var appErr *errors.AppError
	var malformed *services.MalformedRecordError
	switch {
	case stderrors.As(err, &appErr):
		return appErr
	case stderrors.Is(err, services.ErrUnknownWidget):
		return errors.NotFound(err.Error())
	case stderrors.Is(err, services.ErrSelectorDisabled), stderrors.Is(err, services.ErrNothingToRetry),
		stderrors.Is(err, services.ErrNothingToRefresh):
		return errors.Conflict(err.Error())
	case stderrors.Is(err, services.ErrCacheUnavailable):
		unavailable := errors.ServiceUnavailable("report cache unavailable, try again later")
		unavailable.Cause = err
		return unavailable
	case stderrors.Is(err, models.ErrInvalidRange), stderrors.As(err, &malformed):
		return errors.Validation(err)
	case stderrors.Is(err, models.ErrInvalidSelector):
		return errors.Validation(err)
	default:
		return errors.Wrap(err, errors.CodeInternal, "An unexpected error occurred")
	}
}
