package services

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cn-dashboard/internal/models"
)

func TestChartViewSelector_Default(t *testing.T) {
	s := NewChartViewSelector(DetailPresentations...)

	assert.Equal(t, models.DefaultSelector, s.Current())
	assert.Equal(t, DetailPresentations, s.Available())
}

func TestChartViewSelector_Select(t *testing.T) {
	s := NewChartViewSelector(OverviewPresentations...)

	got, err := s.Select("area-currency")
	require.NoError(t, err)
	assert.Equal(t, models.Selector{Presentation: models.PresentationArea, Unit: models.UnitCurrency}, got)
	assert.Equal(t, got, s.Current())
}

func TestChartViewSelector_RejectedSelectionKeepsCurrent(t *testing.T) {
	s := NewChartViewSelector(DetailPresentations...)
	_, err := s.Select("bar-pack")
	require.NoError(t, err)

	for _, bad := range []string{"area-count", "pie-litre", "bar", ""} {
		_, err := s.Select(bad)
		assert.ErrorIs(t, err, models.ErrInvalidSelector, bad)
		assert.Equal(t, "bar-pack", s.Current().String())
	}
}

func TestChartViewSelector_Enabled(t *testing.T) {
	s := NewChartViewSelector()

	assert.True(t, s.Enabled(models.StatusSuccess))
	for _, st := range []models.ReportStatus{models.StatusInitial, models.StatusLoading, models.StatusEmpty, models.StatusError} {
		assert.False(t, s.Enabled(st), st)
	}
}

func TestChartViewSelector_ConcurrentSelectIsAtomic(t *testing.T) {
	s := NewChartViewSelector(OverviewPresentations...)
	values := []string{"line-count", "bar-currency", "pie-pack", "area-piece"}

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Select(values[i%len(values)])
			assert.Contains(t, values, s.Current().String())
		}()
	}
	wg.Wait()
}

func TestChartViewSelector_AvailableIsACopy(t *testing.T) {
	s := NewChartViewSelector(DetailPresentations...)
	avail := s.Available()
	avail[0] = models.PresentationArea

	assert.Equal(t, models.PresentationLine, s.Available()[0])
}
