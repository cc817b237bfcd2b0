package services

import (
	"log/slog"

	"cn-dashboard/internal/models"
)

type WidgetKind string

const (
	WidgetOverview WidgetKind = "overview"
	WidgetDetail   WidgetKind = "detail"
)

// Widget is one chart on the dashboard. Each widget owns its selector and
// derives its view from the shared records on demand.
type Widget struct {
	ID       string
	Title    string
	Kind     WidgetKind
	Family   models.Family
	selector *ChartViewSelector
}

func NewOverviewWidget(id, title string) *Widget {
	return &Widget{
		ID:       id,
		Title:    title,
		Kind:     WidgetOverview,
		Family:   models.FamilyAggregate,
		selector: NewChartViewSelector(OverviewPresentations...),
	}
}

func NewDetailWidget(id, title string, family models.Family) *Widget {
	return &Widget{
		ID:       id,
		Title:    title,
		Kind:     WidgetDetail,
		Family:   family,
		selector: NewChartViewSelector(DetailPresentations...),
	}
}

// DefaultWidgets is the standard dashboard layout.
func DefaultWidgets() []*Widget {
	return []*Widget{
		NewOverviewWidget("overview", "CN by defect type"),
		NewDetailWidget("aggregate", "All CNs by decision", models.FamilyAggregate),
		NewDetailWidget("missing", "Missing delivery (43)", models.FamilyMissing),
		NewDetailWidget("degraded", "Degraded quality (42)", models.FamilyDegraded),
	}
}

func (w *Widget) Selector() *ChartViewSelector { return w.selector }

// WidgetView is everything the renderer needs for one widget. Series holds
// detail data and Overview holds overview data; only one is set.
type WidgetView struct {
	ID                     string                    `json:"id"`
	Title                  string                    `json:"title"`
	Kind                   WidgetKind                `json:"kind"`
	Family                 models.Family             `json:"family"`
	Status                 models.ReportStatus       `json:"status"`
	Enabled                bool                      `json:"enabled"`
	Selector               string                    `json:"selector"`
	Presentation           models.Presentation       `json:"presentation"`
	Unit                   models.Unit               `json:"unit"`
	AvailablePresentations []models.Presentation     `json:"available_presentations"`
	Series                 []models.SeriesPoint      `json:"series,omitempty"`
	Overview               []models.OverviewPoint    `json:"overview,omitempty"`
	Totals                 *models.CategoryTotals    `json:"totals,omitempty"`
	OverviewTotals         *models.OverviewTotals    `json:"overview_totals,omitempty"`
	Stats                  *models.SummaryStatistics `json:"stats,omitempty"`
	Pie                    []models.Slice            `json:"pie,omitempty"`
	Summary                *Summary                  `json:"summary,omitempty"`
	Error                  string                    `json:"error,omitempty"`
}

// View derives the widget view for a report state. Data is only derived
// for success and empty states. Aggregation errors end up in the view's
// Error field.
func (w *Widget) View(state ReportState, f *Formatter, logger *slog.Logger) WidgetView {
	sel := w.selector.Current()
	view := WidgetView{
		ID:                     w.ID,
		Title:                  w.Title,
		Kind:                   w.Kind,
		Family:                 w.Family,
		Status:                 state.Status,
		Enabled:                w.selector.Enabled(state.Status),
		Selector:               sel.String(),
		Presentation:           sel.Presentation,
		Unit:                   sel.Unit,
		AvailablePresentations: w.selector.Available(),
	}

	if state.Status != models.StatusSuccess && state.Status != models.StatusEmpty {
		return view
	}

	agg, err := NewAggregator(sel.Unit, w.Family)
	if err != nil {
		view.Error = err.Error()
		return view
	}

	if w.Kind == WidgetOverview {
		result, err := agg.Overview(state.Records)
		if err != nil {
			logger.Warn("widget aggregation failed", "widget", w.ID, "error", err)
			view.Error = err.Error()
			return view
		}
		summary := f.Summary(sel.Unit, result.Totals.Total, result.Stats)
		view.Overview = result.Series
		view.OverviewTotals = &result.Totals
		view.Stats = &result.Stats
		view.Pie = OverviewBreakdown(result.Totals)
		view.Summary = &summary
		return view
	}

	result, err := agg.Aggregate(state.Records)
	if err != nil {
		logger.Warn("widget aggregation failed", "widget", w.ID, "error", err)
		view.Error = err.Error()
		return view
	}
	if bad := agg.CheckAdditivity(state.Records); len(bad) > 0 {
		logger.Debug("report totals do not add up", "widget", w.ID, "unit", sel.Unit, "indices", bad)
	}

	summary := f.Summary(sel.Unit, result.Totals.Total, result.Stats)
	view.Series = result.Series
	view.Totals = &result.Totals
	view.Stats = &result.Stats
	view.Pie = Breakdown(result.Totals)
	view.Summary = &summary
	return view
}
