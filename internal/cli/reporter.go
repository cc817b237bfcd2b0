package cli

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"text/template"

	"cn-dashboard/internal/models"
	"cn-dashboard/internal/services"
)

var summaryTemplate = template.Must(template.New("summary").Parse(
	`{{.Title}} ({{.Unit}})
Period: {{.Range}} ({{.Summary.Days}} days)

DATE{{range .Columns}}	{{.}}{{end}}
{{range .Rows}}{{.Date}}{{range .Values}}	{{.}}{{end}}
{{end}}
Total:	{{.Summary.Total}}
Daily average:	{{.Summary.Average}}
Highest:	{{.Summary.Max}}	{{.Summary.MaxDate}}
Lowest:	{{.Summary.Min}}	{{.Summary.MinDate}}
{{if .Slices}}
{{range .Slices}}{{.Label}}:	{{.Value}}	{{.Percent}}%
{{end}}{{end}}`))

var widgetsTemplate = template.Must(template.New("widgets").Parse(
	`CN dashboard, {{.Range}}: {{.Status}}{{if .Records}} ({{.Records}} of {{.Days}} days reported){{end}}
{{range .Widgets}}
=== {{.Title}} [{{.Selector}}] ===
{{if .Error}}error:	{{.Error}}
{{else if .Summary}}Total:	{{.Summary.Total}}
Daily average:	{{.Summary.Average}}
Highest:	{{.Summary.Max}}	{{.Summary.MaxDate}}
Lowest:	{{.Summary.Min}}	{{.Summary.MinDate}}
{{range .Slices}}- {{.Label}}:	{{.Value}}	{{.Percent}}%
{{end}}{{end}}{{end}}`))

// Reporter outputs reports to the console as aligned text.
type Reporter struct {
	writer io.Writer
}

func NewReporter(writer io.Writer) *Reporter {
	if writer == nil {
		writer = os.Stdout
	}
	return &Reporter{writer: writer}
}

type row struct {
	Date   string
	Values []string
}

type sliceRow struct {
	Label   string
	Value   string
	Percent string
}

type summaryReport struct {
	Title   string
	Unit    models.Unit
	Range   string
	Columns []string
	Rows    []row
	Summary services.Summary
	Slices  []sliceRow
}

type widgetSummary struct {
	Title    string
	Selector string
	Error    string
	Summary  *services.Summary
	Slices   []sliceRow
}

type widgetsReport struct {
	Range   string
	Days    int
	Status  models.ReportStatus
	Records int
	Widgets []widgetSummary
}

func (r *Reporter) Summary(report summaryReport) error {
	return r.execute(summaryTemplate, report)
}

func (r *Reporter) Widgets(report widgetsReport) error {
	return r.execute(widgetsTemplate, report)
}

func (r *Reporter) execute(t *template.Template, data any) error {
	tw := tabwriter.NewWriter(r.writer, 0, 4, 2, ' ', 0)
	if err := t.Execute(tw, data); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	return tw.Flush()
}

func slicesOf(unit models.Unit, f *services.Formatter, slices []models.Slice) []sliceRow {
	out := make([]sliceRow, 0, len(slices))
	for _, s := range slices {
		out = append(out, sliceRow{Label: s.Label, Value: f.Value(unit, s.Value), Percent: s.Percent})
	}
	return out
}

func detailReport(rng models.DateRange, unit models.Unit, family models.Family, f *services.Formatter, result *services.Aggregation) summaryReport {
	rows := make([]row, 0, len(result.Series))
	for _, p := range result.Series {
		rows = append(rows, row{Date: p.Date, Values: []string{
			f.Value(unit, p.Total),
			f.Value(unit, p.Approved),
			f.Value(unit, p.Rejected),
			f.Value(unit, p.Waiting),
			f.Value(unit, p.RunningTotal),
		}})
	}
	return summaryReport{
		Title:   fmt.Sprintf("CN %s by decision", family),
		Unit:    unit,
		Range:   rng.String(),
		Columns: []string{"TOTAL", "APPROVED", "REJECTED", "WAITING", "RUNNING"},
		Rows:    rows,
		Summary: f.Summary(unit, result.Totals.Total, result.Stats),
		Slices:  slicesOf(unit, f, services.Breakdown(result.Totals)),
	}
}

func overviewReport(rng models.DateRange, unit models.Unit, f *services.Formatter, result *services.OverviewAggregation) summaryReport {
	rows := make([]row, 0, len(result.Series))
	for _, p := range result.Series {
		rows = append(rows, row{Date: p.Date, Values: []string{
			f.Value(unit, p.TotalAll),
			f.Value(unit, p.Missing),
			f.Value(unit, p.Degraded),
			f.Value(unit, p.RunningTotal),
		}})
	}
	return summaryReport{
		Title:   "CN by defect type",
		Unit:    unit,
		Range:   rng.String(),
		Columns: []string{"TOTAL", "MISSING", "DEGRADED", "RUNNING"},
		Rows:    rows,
		Summary: f.Summary(unit, result.Totals.Total, result.Stats),
		Slices:  slicesOf(unit, f, services.OverviewBreakdown(result.Totals)),
	}
}

func widgetsReportOf(rng models.DateRange, state services.ReportState, views []services.WidgetView, f *services.Formatter) widgetsReport {
	report := widgetsReport{
		Range:   rng.String(),
		Days:    rng.Days(),
		Status:  state.Status,
		Records: state.RecordCount,
	}
	for _, v := range views {
		report.Widgets = append(report.Widgets, widgetSummary{
			Title:    v.Title,
			Selector: v.Selector,
			Error:    v.Error,
			Summary:  v.Summary,
			Slices:   slicesOf(v.Unit, f, v.Pie),
		})
	}
	return report
}
