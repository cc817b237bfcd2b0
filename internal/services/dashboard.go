package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"cn-dashboard/internal/models"
)

const maxWidgetWorkers = 4

type DashboardOptions struct {
	FetchTimeout time.Duration
	Locale       string
	Widgets      []*Widget
}

// Invalidator is implemented by fetchers that cache responses.
type Invalidator interface {
	Invalidate(ctx context.Context, start, end time.Time) error
}

// Dashboard owns the active date range and its status machine and fans
// the fetched records out to every widget.
type Dashboard struct {
	fetcher   Fetcher
	machine   *StatusMachine
	widgets   []*Widget
	index     map[string]*Widget
	formatter *Formatter
	logger    *slog.Logger

	mu           sync.Mutex
	pendingStart *time.Time
	pendingEnd   *time.Time
}

func NewDashboard(fetcher Fetcher, logger *slog.Logger, opts DashboardOptions) *Dashboard {
	if logger == nil {
		logger = slog.Default()
	}
	widgets := opts.Widgets
	if len(widgets) == 0 {
		widgets = DefaultWidgets()
	}
	locale := opts.Locale
	if locale == "" {
		locale = "en"
	}

	index := make(map[string]*Widget, len(widgets))
	for _, w := range widgets {
		index[w.ID] = w
	}

	return &Dashboard{
		fetcher:   fetcher,
		machine:   NewStatusMachine(fetcher, logger, opts.FetchTimeout),
		widgets:   widgets,
		index:     index,
		formatter: NewFormatter(locale),
		logger:    logger,
	}
}

// SetRange records the chosen range bounds. Nothing is fetched until both
// bounds are set; the returned channel is then closed when the fetch
// settles. A nil bound clears that side of the pending range.
func (d *Dashboard) SetRange(start, end *time.Time) (<-chan struct{}, error) {
	d.mu.Lock()
	d.pendingStart, d.pendingEnd = start, end
	d.mu.Unlock()

	if start == nil || end == nil {
		done := make(chan struct{})
		close(done)
		return done, nil
	}

	rng, err := models.NewDateRange(*start, *end)
	if err != nil {
		return nil, err
	}

	d.logger.Info("report range selected", "range", rng.String())
	return d.machine.Request(rng), nil
}

func (d *Dashboard) Retry() (<-chan struct{}, error) {
	return d.machine.Retry()
}

// Refresh drops any cached response for the current range and fetches it
// again.
func (d *Dashboard) Refresh(ctx context.Context) (<-chan struct{}, error) {
	st := d.machine.State()
	if st.Range == nil {
		return nil, ErrNothingToRefresh
	}
	if inv, ok := d.fetcher.(Invalidator); ok {
		if err := inv.Invalidate(ctx, st.Range.Start, st.Range.End); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCacheUnavailable, err)
		}
	}
	d.logger.Info("report refresh requested", "range", st.Range.String())
	return d.machine.Reload()
}

// Select changes one widget's selector. Selection is only possible while a
// non-empty report is loaded.
func (d *Dashboard) Select(widgetID, compound string) (WidgetView, error) {
	w, ok := d.index[widgetID]
	if !ok {
		return WidgetView{}, fmt.Errorf("%w: %q", ErrUnknownWidget, widgetID)
	}

	state := d.machine.State()
	if !w.selector.Enabled(state.Status) {
		return WidgetView{}, ErrSelectorDisabled
	}
	if _, err := w.selector.Select(compound); err != nil {
		return WidgetView{}, err
	}
	return w.View(state, d.formatter, d.logger), nil
}

func (d *Dashboard) State() ReportState {
	return d.machine.State()
}

func (d *Dashboard) Subscribe() (<-chan ReportState, func()) {
	return d.machine.Subscribe()
}

func (d *Dashboard) Views(ctx context.Context) ([]WidgetView, error) {
	return d.ViewsFor(ctx, d.machine.State())
}

// ViewsFor derives every widget view for state. Widgets only read the
// shared records, so they are computed concurrently.
func (d *Dashboard) ViewsFor(ctx context.Context, state ReportState) ([]WidgetView, error) {
	views := make([]WidgetView, len(d.widgets))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWidgetWorkers)
	for i, w := range d.widgets {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			views[i] = w.View(state, d.formatter, d.logger)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return views, nil
}

func (d *Dashboard) View(widgetID string) (WidgetView, error) {
	w, ok := d.index[widgetID]
	if !ok {
		return WidgetView{}, fmt.Errorf("%w: %q", ErrUnknownWidget, widgetID)
	}
	return w.View(d.machine.State(), d.formatter, d.logger), nil
}

func (d *Dashboard) Widgets() []*Widget {
	return d.widgets
}

func (d *Dashboard) PendingRange() (start, end *time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pendingStart, d.pendingEnd
}

func (d *Dashboard) Formatter() *Formatter {
	return d.formatter
}

func (d *Dashboard) Close() {
	d.machine.Close()
}

// Stats is a monitoring snapshot.
func (d *Dashboard) Stats() map[string]any {
	st := d.machine.State()
	stats := map[string]any{
		"status":       st.Status,
		"record_count": st.RecordCount,
		"sequence":     st.Sequence,
		"updated_at":   st.UpdatedAt,
		"widgets":      len(d.widgets),
	}
	if st.Range != nil {
		stats["range"] = st.Range.String()
	}
	return stats
}
