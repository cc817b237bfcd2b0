package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/starfederation/datastar-go/datastar"

	"cn-dashboard/internal/errors"
	"cn-dashboard/internal/observability"
	"cn-dashboard/internal/services"
	"cn-dashboard/internal/ui/templates"
)

type SSEHandlers struct {
	dashboard *services.Dashboard
	logger    *slog.Logger
}

func NewSSEHandlers(dashboard *services.Dashboard, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		dashboard: dashboard,
		logger:    logger,
	}
}

type rangeSignals struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type selectorSignals struct {
	Selectors map[string]string `json:"selectors"`
}

func render(ctx context.Context, c templ.Component) (string, error) {
	var buf strings.Builder
	err := c.Render(ctx, &buf)
	return buf.String(), err
}

// HandleDashboardStream keeps the page in sync with the report status.
// Every transition patches the status banner, the widget cards and the
// widget signals.
func (h *SSEHandlers) HandleDashboardStream(w http.ResponseWriter, r *http.Request) {
	updates, unsubscribe := h.dashboard.Subscribe()
	defer unsubscribe()

	sse := datastar.NewSSE(w, r)
	ctx := r.Context()

	if err := h.pushState(ctx, sse, h.dashboard.State()); err != nil {
		h.logger.Warn("dashboard stream closed", "error", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case state, ok := <-updates:
			if !ok {
				return
			}
			if err := h.pushState(ctx, sse, state); err != nil {
				h.logger.Warn("dashboard stream closed", "error", err)
				return
			}
		}
	}
}

func (h *SSEHandlers) HandleSetRange(w http.ResponseWriter, r *http.Request) {
	var signals rangeSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		h.logger.Warn("read range signals", "error", err)
		errors.WriteError(w, h.logger, errors.BadRequest("invalid signals"), observability.GetRequestID(r.Context()))
		return
	}

	sse := datastar.NewSSE(w, r)
	if _, err := applyRange(h.dashboard, signals.Start, signals.End); err != nil {
		h.patchBannerError(r.Context(), sse, err)
		return
	}
	h.patchBanner(r.Context(), sse, h.dashboard.State())
}

func (h *SSEHandlers) HandleRetry(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)
	if _, err := h.dashboard.Retry(); err != nil {
		h.patchBannerError(r.Context(), sse, err)
		return
	}
	h.patchBanner(r.Context(), sse, h.dashboard.State())
}

func (h *SSEHandlers) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)
	if _, err := h.dashboard.Refresh(r.Context()); err != nil {
		h.patchBannerError(r.Context(), sse, err)
		return
	}
	h.patchBanner(r.Context(), sse, h.dashboard.State())
}

func (h *SSEHandlers) HandleSelect(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var signals selectorSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		h.logger.Warn("read selector signals", "error", err)
		errors.WriteError(w, h.logger, errors.BadRequest("invalid signals"), observability.GetRequestID(r.Context()))
		return
	}

	sse := datastar.NewSSE(w, r)
	view, err := h.dashboard.Select(id, signals.Selectors[id])
	if err != nil {
		h.logger.Info("selector change rejected", "widget", id, "error", err)
		// Put the widget back to what the server holds.
		view, err = h.dashboard.View(id)
		if err != nil {
			h.patchBannerError(r.Context(), sse, err)
			return
		}
	}

	if err := h.pushViews(r.Context(), sse, []services.WidgetView{view}); err != nil {
		h.logger.Error("patch widget", "widget", id, "error", err)
	}
}

func (h *SSEHandlers) pushState(ctx context.Context, sse *datastar.ServerSentEventGenerator, state services.ReportState) error {
	if err := h.patchBanner(ctx, sse, state); err != nil {
		return err
	}
	views, err := h.dashboard.ViewsFor(ctx, state)
	if err != nil {
		return err
	}
	return h.pushViews(ctx, sse, views)
}

func (h *SSEHandlers) pushViews(ctx context.Context, sse *datastar.ServerSentEventGenerator, views []services.WidgetView) error {
	widgets := make(map[string]services.WidgetView, len(views))
	selectors := make(map[string]string, len(views))
	for _, v := range views {
		html, err := render(ctx, templates.WidgetCard(v, h.dashboard.Formatter()))
		if err != nil {
			return err
		}
		if err := sse.PatchElements(html); err != nil {
			return err
		}
		widgets[v.ID] = v
		selectors[v.ID] = v.Selector
	}

	signals, err := json.Marshal(map[string]any{
		"widgets":   widgets,
		"selectors": selectors,
	})
	if err != nil {
		return err
	}
	return sse.PatchSignals(signals)
}

func (h *SSEHandlers) patchBanner(ctx context.Context, sse *datastar.ServerSentEventGenerator, state services.ReportState) error {
	html, err := render(ctx, templates.StatusBanner(state))
	if err != nil {
		h.logger.Error("render status banner", "error", err)
		return err
	}
	if err := sse.PatchElements(html); err != nil {
		return err
	}

	signals, err := json.Marshal(map[string]any{"status": state.Status})
	if err != nil {
		return err
	}
	return sse.PatchSignals(signals)
}

func (h *SSEHandlers) patchBannerError(ctx context.Context, sse *datastar.ServerSentEventGenerator, err error) {
	appErr := toAppError(err)
	message := appErr.Message
	if appErr.Details != "" {
		message += ": " + appErr.Details
	}
	html, renderErr := render(ctx, templates.InvalidBanner(message))
	if renderErr != nil {
		h.logger.Error("render status banner", "error", renderErr)
		return
	}
	if patchErr := sse.PatchElements(html); patchErr != nil {
		h.logger.Warn("patch status banner", "error", patchErr)
	}
}
