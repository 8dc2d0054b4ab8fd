package sources

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(day int) time.Time {
	return time.Date(2024, time.January, day, 0, 0, 0, 0, time.UTC)
}

func TestPlanWindowsClipsLastWindow(t *testing.T) {
	windows := PlanWindows(date(1), date(20), 7*day)

	require.Len(t, windows, 3)
	assert.Equal(t, Window{Since: date(1), Until: date(8)}, windows[0])
	assert.Equal(t, Window{Since: date(8), Until: date(15)}, windows[1])
	assert.Equal(t, Window{Since: date(15), Until: date(20)}, windows[2])
}

func TestPlanWindowsExactMultiple(t *testing.T) {
	windows := PlanWindows(date(1), date(15), 7*day)

	require.Len(t, windows, 2)
	assert.Equal(t, date(15), windows[1].Until)
}

func TestPlanWindowsEmptyRange(t *testing.T) {
	assert.Empty(t, PlanWindows(date(5), date(5), 7*day))
	assert.Empty(t, PlanWindows(date(6), date(5), 7*day))
	assert.Empty(t, PlanWindows(date(1), date(5), 0))
}

func TestPlanWindowsCoverRangeWithoutGaps(t *testing.T) {
	since := time.Date(2023, time.March, 3, 13, 7, 0, 0, time.UTC)
	until := since.Add(400*day + 5*time.Hour)

	windows := PlanWindows(since, until, 89*day)
	require.NotEmpty(t, windows)

	assert.Equal(t, since, windows[0].Since)
	assert.Equal(t, until, windows[len(windows)-1].Until)
	for i, w := range windows {
		assert.LessOrEqual(t, w.Until.Sub(w.Since), 89*day)
		if i > 0 {
			assert.Equal(t, windows[i-1].Until, w.Since)
		}
	}
}
