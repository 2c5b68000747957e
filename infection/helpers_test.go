package infection

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"episim/model"
)

func testTags(t *testing.T) *model.TagSet {
	t.Helper()
	ts, err := model.NewTagSet([]model.TagDef{
		{Name: "recovered", Value: -3},
		{Name: "healthy", Value: -2},
		{Name: "exposed", Value: -1},
		{Name: "asymptomatic", Value: 0},
		{Name: "mild", Value: 1},
		{Name: "severe", Value: 2},
		{Name: "hospitalised", Value: 3},
		{Name: "intensive_care", Value: 4},
		{Name: "dead_home", Value: 5},
		{Name: "dead_hospital", Value: 6},
		{Name: "dead_icu", Value: 7},
	}, model.TagClassifications{
		Recovered:     []string{"recovered"},
		Fatality:      []string{"dead_home", "dead_hospital", "dead_icu"},
		Asymptomatic:  "asymptomatic",
		LowestVisible: "mild",
		MaxMildTag:    "severe",
	})
	require.NoError(t, err)
	return ts
}

// testRateCSV builds a single-band rate table with the same rates for both
// settings and sexes.
func testRateCSV() string {
	rates := map[string]float64{
		"asymptomatic": 0.3,
		"mild":         0.4,
		"hospital":     0.1,
		"icu":          0.04,
		"home_ifr":     0.02,
		"hospital_ifr": 0.03,
		"icu_ifr":      0.01,
	}
	header := []string{"age"}
	row := []string{"0-99"}
	for _, setting := range []string{"gp", "ch"} {
		for _, param := range rateParams {
			for _, sex := range []string{"male", "female"} {
				header = append(header, fmt.Sprintf("%s_%s_%s", setting, param, sex))
				row = append(row, fmt.Sprintf("%g", rates[param]))
			}
		}
	}
	return strings.Join(header, ",") + "\n" + strings.Join(row, ",") + "\n"
}

func testRateTable(t *testing.T) *RateTable {
	t.Helper()
	table, err := LoadRateTableFromReader(strings.NewReader(testRateCSV()))
	require.NoError(t, err)
	return table
}

// testTrajectories covers all eight outcome peaks with constant durations so
// course timing is exact in assertions.
func testTrajectories() []TrajectoryConfig {
	constant := func(v float64) SamplerConfig {
		return SamplerConfig{Type: "constant", Value: v}
	}
	stages := func(pairs ...any) []StageConfig {
		out := make([]StageConfig, 0, len(pairs)/2)
		for i := 0; i < len(pairs); i += 2 {
			out = append(out, StageConfig{
				SymptomTag:     pairs[i].(string),
				CompletionTime: constant(pairs[i+1].(float64)),
			})
		}
		return out
	}
	return []TrajectoryConfig{
		{Stages: stages("exposed", 2.0, "asymptomatic", 5.0, "recovered", 0.0)},
		{Stages: stages("exposed", 2.0, "mild", 6.0, "recovered", 0.0)},
		{Stages: stages("exposed", 2.0, "mild", 2.0, "severe", 7.0, "recovered", 0.0)},
		{Stages: stages("exposed", 2.0, "mild", 2.0, "hospitalised", 8.0, "recovered", 0.0)},
		{Stages: stages("exposed", 2.0, "mild", 2.0, "hospitalised", 2.0, "intensive_care", 9.0, "recovered", 0.0)},
		{Stages: stages("exposed", 2.0, "mild", 2.0, "severe", 6.0, "dead_home", 0.0)},
		{Stages: stages("exposed", 2.0, "mild", 2.0, "hospitalised", 7.0, "dead_hospital", 0.0)},
		{Stages: stages("exposed", 2.0, "mild", 2.0, "hospitalised", 2.0, "intensive_care", 8.0, "dead_icu", 0.0)},
	}
}

func testMakers(t *testing.T) *TrajectoryMakers {
	t.Helper()
	makers, err := NewTrajectoryMakers(testTags(t), testTrajectories())
	require.NoError(t, err)
	return makers
}

func testLogger() *zap.Logger { return zap.NewNop() }
