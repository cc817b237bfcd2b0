package templates

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io"

	"github.com/a-h/templ"

	"cn-dashboard/internal/models"
	"cn-dashboard/internal/services"
)

const datastarScript = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0-RC.6/bundles/datastar.js"

var unitLabels = map[models.Unit]string{
	models.UnitCount:    "CN count",
	models.UnitPack:     "Packs",
	models.UnitPiece:    "Pieces",
	models.UnitCurrency: "Amount",
}

// The banner must stay on one line: the SSE stream sends every line of a
// patch as its own data row.
var views = template.Must(template.New("dashboard").Parse(`
{{define "banner"}}<div id="status-banner" class="banner banner-{{.Class}}" data-status="{{.Status}}">{{.Message}}{{if .Retry}} <button data-on:click="@post('/sse/retry')">Retry</button>{{end}}{{if .Refresh}} <button data-on:click="@post('/sse/refresh')">Refresh</button>{{end}}</div>{{end}}

{{define "widget"}}<article id="widget-{{.ID}}" class="widget widget-{{.Kind}}">
<h2>{{.Title}}</h2>
<select data-bind="selectors.{{.ID}}" data-on:change="@post('/sse/widgets/{{.ID}}/selector')"{{if .Disabled}} disabled{{end}}>
{{range .Options}}<option value="{{.Value}}"{{if .Selected}} selected{{end}}>{{.Label}}</option>{{end}}
</select>
{{if .Error}}<p class="widget-error">{{.Error}}</p>
{{else if .Terms}}<dl class="summary">{{range .Terms}}<dt>{{.Term}}</dt><dd>{{.Value}}</dd>{{end}}</dl>
{{with .Legend}}<ul class="legend">{{range .}}<li class="legend-{{.Role}}">{{.Label}}: {{.Value}} ({{.Percent}}%)</li>{{end}}</ul>
{{end}}{{end}}</article>{{end}}

{{define "page"}}<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>CN Report Dashboard</title>
<script type="module" src="` + datastarScript + `"></script>
</head>
<body>
<main class="dashboard" data-signals="{{.Signals}}" data-init="@get('/sse/dashboard')">
<header><h1>CN Report</h1>
<form class="range" data-on:submit__prevent="@post('/sse/range')">
<label>From <input type="date" data-bind="start"></label>
<label>To <input type="date" data-bind="end"></label>
<button type="submit">Load</button>
</form></header>
{{template "banner" .Banner}}
<section class="widgets">
{{range .Cards}}{{template "widget" .}}
{{end}}</section>
</main>
</body>
</html>{{end}}
`))

type bannerData struct {
	Class   string
	Status  string
	Message string
	Retry   bool
	Refresh bool
}

type optionData struct {
	Value    string
	Label    string
	Selected bool
}

type termData struct {
	Term  string
	Value string
}

type legendData struct {
	Role    string
	Label   string
	Value   string
	Percent string
}

type cardData struct {
	ID       string
	Kind     string
	Title    string
	Disabled bool
	Options  []optionData
	Error    string
	Terms    []termData
	Legend   []legendData
}

type pageData struct {
	Signals string
	Banner  bannerData
	Cards   []cardData
}

func execute(name string, data any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return views.ExecuteTemplate(w, name, data)
	})
}

// Dashboard renders the full page. Widget cards are rendered in their
// current state and replaced over the /sse/dashboard stream afterwards.
func Dashboard(state services.ReportState, widgets []services.WidgetView, f *services.Formatter) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		signals, err := pageSignals(state, widgets)
		if err != nil {
			return err
		}
		data := pageData{Signals: signals, Banner: newBanner(state)}
		for _, v := range widgets {
			data.Cards = append(data.Cards, newCard(v, f))
		}
		return views.ExecuteTemplate(w, "page", data)
	})
}

// pageSignals is the initial datastar signal object: the selected range and
// every widget's selector.
func pageSignals(state services.ReportState, widgets []services.WidgetView) (string, error) {
	start, end := "", ""
	if state.Range != nil {
		start, end = models.FormatDay(state.Range.Start), models.FormatDay(state.Range.End)
	}
	selectors := make(map[string]string, len(widgets))
	for _, v := range widgets {
		selectors[v.ID] = v.Selector
	}
	b, err := json.Marshal(map[string]any{"start": start, "end": end, "selectors": selectors})
	if err != nil {
		return "", fmt.Errorf("marshal page signals: %w", err)
	}
	return string(b), nil
}

// StatusBanner renders the report status line shown above the widgets.
func StatusBanner(state services.ReportState) templ.Component {
	return execute("banner", newBanner(state))
}

// InvalidBanner replaces the status banner with a rejected request's message.
// The report state itself is unchanged.
func InvalidBanner(message string) templ.Component {
	return execute("banner", bannerData{Class: "danger", Status: "invalid", Message: message})
}

func newBanner(state services.ReportState) bannerData {
	b := bannerData{Status: string(state.Status)}
	switch state.Status {
	case models.StatusLoading:
		b.Message, b.Class = "Loading report…", "info"
	case models.StatusEmpty:
		b.Message, b.Class, b.Refresh = "No credit notes in the selected range.", "warning", true
	case models.StatusError:
		b.Message, b.Class, b.Retry = "The report could not be loaded: "+state.Error, "danger", true
	case models.StatusSuccess:
		b.Message, b.Class, b.Refresh = fmt.Sprintf("%d days loaded.", state.RecordCount), "success", true
	default:
		b.Message, b.Class = "Choose a start and end date to load the report.", "muted"
	}
	if state.Range != nil && state.Status != models.StatusInitial {
		b.Message = state.Range.String() + " · " + b.Message
	}
	return b
}

// WidgetCard renders one chart card with its selector, summary and pie
// legend. Chart drawing happens client side from the widget signals.
func WidgetCard(view services.WidgetView, f *services.Formatter) templ.Component {
	return execute("widget", newCard(view, f))
}

func newCard(view services.WidgetView, f *services.Formatter) cardData {
	c := cardData{
		ID:       view.ID,
		Kind:     string(view.Kind),
		Title:    view.Title,
		Disabled: !view.Enabled,
		Error:    view.Error,
	}
	for _, p := range view.AvailablePresentations {
		for _, u := range models.Units {
			value := models.Selector{Presentation: p, Unit: u}.String()
			c.Options = append(c.Options, optionData{
				Value:    value,
				Label:    string(p) + " · " + unitLabels[u],
				Selected: value == view.Selector,
			})
		}
	}

	if view.Error != "" || view.Summary == nil {
		return c
	}
	s := view.Summary
	c.Terms = []termData{
		{"Total", s.Total},
		{"Daily average", s.Average},
		{"Highest", s.Max + " (" + s.MaxDate + ")"},
		{"Lowest", s.Min + " (" + s.MinDate + ")"},
		{"Days", fmt.Sprint(s.Days)},
	}
	for _, sl := range view.Pie {
		c.Legend = append(c.Legend, legendData{
			Role:    sl.ColorRole,
			Label:   sl.Label,
			Value:   f.Value(view.Unit, sl.Value),
			Percent: sl.Percent,
		})
	}
	return c
}
