package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meetcal/internal/grid"
	"meetcal/internal/ics"
	"meetcal/internal/listview"
	"meetcal/internal/model"
)

func TestPagerLabel(t *testing.T) {
	tests := []struct {
		name     string
		current  int
		total    int
		expected string
	}{
		{name: "single page", current: 1, total: 1, expected: "[1]"},
		{name: "short run", current: 2, total: 4, expected: "1 [2] 3 4"},
		{name: "gap on the right", current: 1, total: 10, expected: "[1] 2 3 4 ... 10"},
		{name: "gaps both sides", current: 6, total: 12, expected: "1 ... 3 4 5 [6] 7 8 9 ... 12"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, pagerLabel(listview.Links(tt.current, tt.total)))
		})
	}
}

func TestCellLabel(t *testing.T) {
	d := time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC)
	c := &grid.DayCell{Date: d, InCurrentMonth: true, Items: make([]model.Meeting, 2)}
	assert.Equal(t, "*30(2)", cellLabel(c, d))

	c = &grid.DayCell{Date: d.AddDate(0, 0, 1)}
	assert.Equal(t, "(1)", cellLabel(c, d))
}

func TestPrintListAllDayKeepsDate(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	day := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	ms := []model.Meeting{
		{ID: "a", Title: "Holiday", Start: day, End: day.Add(24*time.Hour - time.Nanosecond), AllDay: true},
		{ID: "b", Title: "Call", Start: day.Add(2 * time.Hour), End: day.Add(3 * time.Hour)},
	}
	var out bytes.Buffer
	printList(&out, listview.Paginate(ms, 1, day), ny)

	assert.Contains(t, out.String(), "2025-09-01  all day")
	assert.Contains(t, out.String(), "2025-08-31  22:00-23:00")
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd("test")
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	require.NoError(t, root.Execute(), out.String())
	return out.String()
}

func TestCLIImportViewsAndExport(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "meetcal.yaml")
	cfg := "timezone: UTC\nstore:\n  driver: sqlite\n  path: " + filepath.Join(dir, "db", "meetcal.db") + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))

	today := time.Now().UTC()
	start := time.Date(today.Year(), today.Month(), today.Day(), 9, 0, 0, 0, time.UTC)
	body := ics.Export([]model.Meeting{
		{ID: "standup", Title: "Standup", Start: start, End: start.Add(15 * time.Minute), Teams: []string{"Platform"}},
	}, "fixture", today)
	icsPath := filepath.Join(dir, "team.ics")
	require.NoError(t, os.WriteFile(icsPath, []byte(body), 0o600))

	out := run(t, "--config", cfgPath, "import", icsPath)
	assert.Contains(t, out, "file:team: 1 created")

	out = run(t, "--config", cfgPath, "import", icsPath)
	assert.Contains(t, out, "1 unchanged")

	date := start.Format(time.DateOnly)
	out = run(t, "--config", cfgPath, "month", "--date", date)
	assert.Contains(t, out, start.Format("January 2006"))
	assert.Contains(t, out, "09:00-09:15")
	assert.Contains(t, out, "Standup [Platform]")

	out = run(t, "--config", cfgPath, "week", "--date", date, "-q", "nothing-matches")
	assert.Contains(t, out, "no meetings")

	out = run(t, "--config", cfgPath, "list")
	assert.Contains(t, out, "Standup")
	assert.Contains(t, out, "page 1/1 (1 meetings)")

	out = run(t, "--config", cfgPath, "export")
	assert.Contains(t, out, "SUMMARY:Standup")
}

func TestVersion(t *testing.T) {
	assert.Equal(t, "meetcal version test\n", run(t, "version"))
}
