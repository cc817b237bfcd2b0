package templates

import (
	"context"
	"encoding/json"
	"html"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cn-dashboard/internal/models"
	"cn-dashboard/internal/services"
)

func renderString(t *testing.T, c templ.Component) string {
	t.Helper()
	var b strings.Builder
	require.NoError(t, c.Render(context.Background(), &b))
	return b.String()
}

func testRange(t *testing.T) *models.DateRange {
	t.Helper()
	rng, err := models.ParseDateRange("2025-09-01", "2025-09-02")
	require.NoError(t, err)
	return &rng
}

func TestStatusBanner(t *testing.T) {
	tests := []struct {
		name  string
		state services.ReportState
		want  []string
		never []string
	}{
		{
			name:  "initial",
			state: services.ReportState{Status: models.StatusInitial},
			want:  []string{`class="banner banner-muted"`, `data-status="initial"`, "Choose a start and end date"},
			never: []string{"<button"},
		},
		{
			name:  "loading",
			state: services.ReportState{Status: models.StatusLoading, Range: testRange(t)},
			want:  []string{"2025-09-01..2025-09-02 · Loading report…"},
			never: []string{"<button"},
		},
		{
			name:  "success",
			state: services.ReportState{Status: models.StatusSuccess, Range: testRange(t), RecordCount: 2},
			want:  []string{"2 days loaded.", `@post('/sse/refresh')`},
		},
		{
			name:  "error",
			state: services.ReportState{Status: models.StatusError, Range: testRange(t), Error: "401 unauthorized"},
			want:  []string{"banner-danger", "The report could not be loaded: 401 unauthorized", `@post('/sse/retry')`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := renderString(t, StatusBanner(tt.state))
			assert.NotContains(t, out, "\n", "a banner patch is a single line")
			for _, s := range tt.want {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.never {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestStatusBanner_EscapesUpstreamError(t *testing.T) {
	state := services.ReportState{
		Status: models.StatusError,
		Range:  testRange(t),
		Error:  `<script>alert("x")</script>`,
	}

	out := renderString(t, StatusBanner(state))
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "&lt;script&gt;")
}

func TestInvalidBanner(t *testing.T) {
	out := renderString(t, InvalidBanner(`invalid input: bad date "<b>"`))
	assert.Contains(t, out, `data-status="invalid"`)
	assert.Contains(t, out, "banner-danger")
	assert.Contains(t, out, "&lt;b&gt;")
	assert.NotContains(t, out, "<b>")
}

func sampleView() services.WidgetView {
	return services.WidgetView{
		ID:                     "missing",
		Title:                  "Missing <delivery> & co",
		Kind:                   services.WidgetDetail,
		Enabled:                true,
		Selector:               "pie-currency",
		Unit:                   models.UnitCurrency,
		AvailablePresentations: []models.Presentation{models.PresentationLine, models.PresentationPie},
		Summary: &services.Summary{
			Total: "12.50", Average: "6.25", Max: "10.00", MaxDate: "2025-09-01",
			Min: "2.50", MinDate: "2025-09-02", Days: 2,
		},
		Pie: []models.Slice{{Label: "Approved", Value: 10, Percent: "80.00", ColorRole: "success"}},
	}
}

func TestWidgetCard(t *testing.T) {
	f := services.NewFormatter("en")
	out := renderString(t, WidgetCard(sampleView(), f))

	assert.Contains(t, out, `<article id="widget-missing" class="widget widget-detail">`)
	assert.Contains(t, out, "<h2>Missing &lt;delivery&gt; &amp; co</h2>")
	assert.Contains(t, out, `data-on:change="@post('/sse/widgets/missing/selector')"`)
	assert.Contains(t, out, `data-bind="selectors.missing"`)
	assert.Contains(t, out, `<option value="pie-currency" selected>`)
	assert.Contains(t, out, `<option value="line-count">`)
	assert.NotContains(t, out, " disabled")
	assert.Contains(t, out, `<dl class="summary">`)
	assert.Contains(t, out, "<dt>Highest</dt><dd>10.00 (2025-09-01)</dd>")
	assert.Contains(t, out, `<li class="legend-success">Approved: `)
	assert.Contains(t, out, "(80.00%)")
}

func TestWidgetCard_ErrorAndDisabled(t *testing.T) {
	view := sampleView()
	view.Enabled = false
	view.Summary = nil
	view.Error = `malformed report records at indices [0]: non-finite counter <x>`

	out := renderString(t, WidgetCard(view, services.NewFormatter("en")))
	assert.Contains(t, out, " disabled>")
	assert.Contains(t, out, `<p class="widget-error">malformed report records at indices [0]: non-finite counter &lt;x&gt;</p>`)
	assert.NotContains(t, out, `<dl class="summary">`)
}

var signalsAttr = regexp.MustCompile(`data-signals="([^"]*)"`)

func TestDashboard_SignalsAreValidJSON(t *testing.T) {
	rng := testRange(t)
	state := services.ReportState{Status: models.StatusSuccess, Range: rng, RecordCount: 2, UpdatedAt: time.Now()}
	odd := sampleView()
	odd.ID = `quote"back\slash`
	odd.Selector = "line-count"
	views := []services.WidgetView{sampleView(), odd}

	out := renderString(t, Dashboard(state, views, services.NewFormatter("en")))
	assert.Contains(t, out, "<title>CN Report Dashboard</title>")
	assert.Contains(t, out, `data-init="@get('/sse/dashboard')"`)

	m := signalsAttr.FindStringSubmatch(out)
	require.Len(t, m, 2)

	var signals struct {
		Start     string            `json:"start"`
		End       string            `json:"end"`
		Selectors map[string]string `json:"selectors"`
	}
	require.NoError(t, json.Unmarshal([]byte(html.UnescapeString(m[1])), &signals))
	assert.Equal(t, "2025-09-01", signals.Start)
	assert.Equal(t, "2025-09-02", signals.End)
	assert.Equal(t, "pie-currency", signals.Selectors["missing"])
	assert.Equal(t, "line-count", signals.Selectors[`quote"back\slash`])
}

func TestDashboard_NoRange(t *testing.T) {
	out := renderString(t, Dashboard(services.ReportState{Status: models.StatusInitial}, nil, services.NewFormatter("en")))
	m := signalsAttr.FindStringSubmatch(out)
	require.Len(t, m, 2)
	assert.JSONEq(t, `{"start":"","end":"","selectors":{}}`, html.UnescapeString(m[1]))
}
