package sim

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDays() []DayStats {
	start := time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)
	return []DayStats{
		{Day: 1, Date: start.AddDate(0, 0, 1), Susceptible: 90, Infected: 10, NewInfections: 10},
		{Day: 2, Date: start.AddDate(0, 0, 2), Susceptible: 80, Infected: 18, Recovered: 2, NewInfections: 12},
	}
}

func TestWriteCSVReport(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteCSVReport(dir, sampleDays())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filepath.Base(path), "report-"))
	assert.True(t, strings.HasSuffix(path, ".csv"))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "day,date,susceptible,infected,hospitalised,intensive_care,recovered,dead,vaccinated,new_infections", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "1,2020-03-02,90,10,"))
}

func TestWriteCSVReportFileSuffix(t *testing.T) {
	target := filepath.Join(t.TempDir(), "out.csv")
	path, err := WriteCSVReport(target, sampleDays())
	require.NoError(t, err)
	assert.NotEqual(t, target, path, "a timestamp is inserted before the extension")
	assert.True(t, strings.HasSuffix(path, ".csv"))
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestWriteCSVReportEmptyPath(t *testing.T) {
	path, err := WriteCSVReport("", sampleDays())
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestWriteJSONReport(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteJSONReport(dir, sampleDays())
	require.NoError(t, err)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var days []DayStats
	require.NoError(t, json.Unmarshal(b, &days))
	require.Len(t, days, 2)
	assert.Equal(t, 18, days[1].Infected)
}
