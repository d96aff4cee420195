package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meetcal/internal/grid"
	"meetcal/internal/model"
)

func TestBuildViewMonthAllDaySpan(t *testing.T) {
	ms := []model.Meeting{
		{ID: "offsite", Start: day(2025, 9, 29), End: time.Date(2025, 10, 2, 23, 59, 59, 0, time.UTC), AllDay: true},
		{ID: "single", Start: day(2025, 9, 1), End: time.Date(2025, 9, 1, 23, 59, 59, 0, time.UTC), AllDay: true},
	}
	v := BuildView(grid.ModeMonth, day(2025, 9, 15), day(2025, 9, 30), ms)
	require.NotNil(t, v.Month)
	assert.Nil(t, v.Week)

	counts := map[string]int{}
	for _, c := range v.Month.Cells() {
		for _, m := range c.Items {
			counts[m.ID]++
		}
	}
	assert.Equal(t, 4, counts["offsite"])
	assert.Equal(t, 1, counts["single"])

	require.Len(t, v.SelectedItems, 1)
	assert.Equal(t, "offsite", v.SelectedItems[0].ID)
}

func TestBuildViewWeek(t *testing.T) {
	ms := []model.Meeting{
		{ID: "b", Start: time.Date(2025, 9, 3, 14, 0, 0, 0, time.UTC), End: time.Date(2025, 9, 3, 15, 0, 0, 0, time.UTC)},
		{ID: "a", Start: time.Date(2025, 9, 3, 9, 0, 0, 0, time.UTC), End: time.Date(2025, 9, 3, 10, 0, 0, 0, time.UTC)},
		{ID: "next-week", Start: time.Date(2025, 9, 8, 9, 0, 0, 0, time.UTC), End: time.Date(2025, 9, 8, 10, 0, 0, 0, time.UTC)},
	}
	v := BuildView(grid.ModeWeek, day(2025, 9, 3), day(2025, 9, 3), ms)
	require.NotNil(t, v.Week)
	assert.Nil(t, v.Month)
	assert.Equal(t, day(2025, 8, 31), v.From)

	wed := v.Week[3]
	require.Len(t, wed.Items, 2)
	assert.Equal(t, "a", wed.Items[0].ID)
	assert.Equal(t, "b", wed.Items[1].ID)
	for _, c := range v.Week.Cells() {
		for _, m := range c.Items {
			assert.NotEqual(t, "next-week", m.ID)
		}
	}
}

func TestBuildViewEmpty(t *testing.T) {
	v := BuildView(grid.ModeMonth, day(2025, 2, 1), day(2025, 2, 1), nil)
	assert.Len(t, v.Month.Cells(), 42)
	assert.Empty(t, v.SelectedItems)
}
