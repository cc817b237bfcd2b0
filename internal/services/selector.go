package services

import (
	"fmt"
	"slices"
	"sync"

	"cn-dashboard/internal/models"
)

var (
	OverviewPresentations = []models.Presentation{
		models.PresentationLine, models.PresentationArea, models.PresentationBar, models.PresentationPie,
	}
	DetailPresentations = []models.Presentation{
		models.PresentationLine, models.PresentationBar, models.PresentationPie,
	}
)

// ChartViewSelector holds the active presentation and unit of one widget.
// Both change together in a single Select.
type ChartViewSelector struct {
	mu        sync.RWMutex
	current   models.Selector
	available []models.Presentation
}

func NewChartViewSelector(available ...models.Presentation) *ChartViewSelector {
	if len(available) == 0 {
		available = OverviewPresentations
	}
	return &ChartViewSelector{
		current:   models.DefaultSelector,
		available: slices.Clone(available),
	}
}

func (s *ChartViewSelector) Current() models.Selector {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *ChartViewSelector) Available() []models.Presentation {
	return slices.Clone(s.available)
}

// Select parses and applies a compound "presentation-unit" value. On error
// the current selection is kept.
func (s *ChartViewSelector) Select(compound string) (models.Selector, error) {
	next, err := models.ParseSelector(compound)
	if err != nil {
		return models.Selector{}, err
	}
	if !slices.Contains(s.available, next.Presentation) {
		return models.Selector{}, fmt.Errorf("%w %q: presentation %q not offered by this chart", models.ErrInvalidSelector, compound, next.Presentation)
	}

	s.mu.Lock()
	s.current = next
	s.mu.Unlock()
	return next, nil
}

// Enabled reports whether the selector accepts changes for a report status.
func (s *ChartViewSelector) Enabled(status models.ReportStatus) bool {
	return status == models.StatusSuccess
}
