package vaccine

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"episim/data"
	"episim/model"
)

const testVaccinesYAML = `
vaccines:
  pfizer:
    days_administered_to_effective: [14, 10]
    days_effective_to_waning: [60, 90]
    days_waning: [90, 120]
    waning_factor: 0.5
    sterilisation_efficacies:
      - wild_type: {0-100: 0.6}
      - wild_type: {0-100: 0.9}
    symptomatic_efficacies:
      - wild_type: {0-100: 0.7}
      - wild_type: {0-100: 0.95}
  astrazeneca:
    days_administered_to_effective: [14]
    days_effective_to_waning: [60]
    days_waning: [90]
    waning_factor: 0.6
    sterilisation_efficacies:
      - wild_type: {0-64: 0.5, 64-100: 0.4}
    symptomatic_efficacies:
      - wild_type: {0-64: 0.6, 64-100: 0.5}
`

func testVaccines(t *testing.T) *Vaccines {
	t.Helper()
	registry, err := model.NewVariantRegistry([]model.VariantDef{{Name: "wild_type"}})
	require.NoError(t, err)
	vs, err := LoadVaccinesFromReader(strings.NewReader(testVaccinesYAML), registry)
	require.NoError(t, err)
	return vs
}

func TestLoadVaccines(t *testing.T) {
	vs := testVaccines(t)

	pfizer, err := vs.ByName("pfizer")
	require.NoError(t, err)
	assert.Equal(t, 0.5, pfizer.WaningFactor)
	assert.Equal(t, []model.VariantID{wildID}, pfizer.VariantIDs())

	_, err = vs.ByName("sputnik")
	assert.Error(t, err)

	// catalogue order is name order regardless of YAML order
	all := vs.All()
	require.Len(t, all, 2)
	assert.Equal(t, "astrazeneca", all[0].Name)
	assert.Equal(t, "pfizer", all[1].Name)
}

func TestLoadVaccinesUnknownVariant(t *testing.T) {
	registry, err := model.NewVariantRegistry([]model.VariantDef{{Name: "other"}})
	require.NoError(t, err)
	_, err = LoadVaccinesFromReader(strings.NewReader(testVaccinesYAML), registry)
	assert.ErrorContains(t, err, "wild_type")
}

func TestAgeBandedEfficacies(t *testing.T) {
	vs := testVaccines(t)
	az, err := vs.ByName("astrazeneca")
	require.NoError(t, err)

	young, err := az.efficacyForDose(0, 30)
	require.NoError(t, err)
	old, err := az.efficacyForDose(0, 80)
	require.NoError(t, err)
	assert.Equal(t, 0.5, young.Infection[wildID])
	assert.Equal(t, 0.4, old.Infection[wildID])

	_, err = az.efficacyForDose(3, 30)
	assert.Error(t, err)
}

func TestGenerateTrajectory(t *testing.T) {
	vs := testVaccines(t)
	pfizer, err := vs.ByName("pfizer")
	require.NoError(t, err)

	p := model.NewPerson(0, 40, model.Female)
	tr, err := pfizer.GenerateTrajectory(p, []int{0, 1}, []int{0, 21}, day(0))
	require.NoError(t, err)
	require.Len(t, tr.Doses, 2)

	// each offset advances the date before the dose is planned
	assert.Equal(t, day(0), tr.Doses[0].DateAdministered)
	assert.Equal(t, day(21), tr.Doses[1].DateAdministered)

	// the second dose resumes from the first target's waned residual
	prior := tr.Doses[1].Prior
	assert.InDelta(t, 0.6*0.5, prior.Infection[wildID], 1e-12)
	assert.Equal(t, 1.0, prior.WaningFactor)
}

func TestGenerateTrajectoryStartsFromCurrentImmunity(t *testing.T) {
	vs := testVaccines(t)
	pfizer, err := vs.ByName("pfizer")
	require.NoError(t, err)

	p := model.NewPerson(0, 40, model.Male)
	p.Immunity.SetSusceptibility(wildID, 0.75)
	tr, err := pfizer.GenerateTrajectory(p, []int{0}, []int{0}, day(0))
	require.NoError(t, err)
	assert.InDelta(t, 0.25, tr.Doses[0].Prior.Infection[wildID], 1e-12)
}

func TestGenerateTrajectoryErrors(t *testing.T) {
	vs := testVaccines(t)
	pfizer, err := vs.ByName("pfizer")
	require.NoError(t, err)
	p := model.NewPerson(0, 40, model.Male)

	_, err = pfizer.GenerateTrajectory(p, nil, nil, day(0))
	assert.ErrorContains(t, err, "empty dose sequence")

	_, err = pfizer.GenerateTrajectory(p, []int{0, 1}, []int{0}, day(0))
	assert.ErrorContains(t, err, "offsets")

	_, err = pfizer.GenerateTrajectory(p, []int{5}, []int{0}, day(0))
	assert.ErrorContains(t, err, "no timing for dose")
}

const boosterVaccinesYAML = `
vaccines:
  pfizer:
    days_administered_to_effective: [5, 5]
    days_effective_to_waning: [2, 2]
    days_waning: [10, 10]
    waning_factor: 0.5
    sterilisation_efficacies:
      - wild_type: {0-100: 0.3}
        delta: {0-100: 0.3}
      - wild_type: {0-100: 0.9}
        delta: {0-100: 0.9}
    symptomatic_efficacies:
      - wild_type: {0-100: 0.3}
        delta: {0-100: 0.3}
      - wild_type: {0-100: 0.9}
        delta: {0-100: 0.9}
`

func TestTwoDoseScheduleDayByDay(t *testing.T) {
	registry, err := model.NewVariantRegistry([]model.VariantDef{
		{Name: "wild_type"},
		{Name: "delta", CrossImmunity: []string{"wild_type"}},
	})
	require.NoError(t, err)
	vs, err := LoadVaccinesFromReader(strings.NewReader(boosterVaccinesYAML), registry)
	require.NoError(t, err)
	pfizer, err := vs.ByName("pfizer")
	require.NoError(t, err)
	delta, err := registry.ByName("delta")
	require.NoError(t, err)

	// the person already carries a little protection against both variants
	p := model.NewPerson(0, 30, model.Female)
	for _, id := range pfizer.VariantIDs() {
		p.Immunity.SetSusceptibility(id, 0.9)
		p.Immunity.AddMultiplier(id, 0.9)
	}

	start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	tr, err := pfizer.GenerateTrajectory(p, []int{0, 1}, []int{0, 59}, start)
	require.NoError(t, err)
	p.VaccineTrajectory = tr
	require.Equal(t, time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC), tr.Doses[1].DateAdministered)

	// protection against infection through ramp, plateau and waning of both
	// doses; the second dose ramps up from the first dose's waned residual
	expected := map[string]float64{
		"2022-01-01": 0.1,
		"2022-01-02": 0.14, // 0.1 + (0.3-0.1)/5
		"2022-01-06": 0.3,
		"2022-01-07": 0.3,
		"2022-01-08": 0.3,
		"2022-01-09": 0.285, // 0.3 + (0.15-0.3)/10
		"2022-01-19": 0.15,  // first residual: 0.3 * 0.5
		"2022-03-02": 0.3,   // 0.15 + (0.9-0.15)/5
		"2022-03-06": 0.9,
		"2022-03-07": 0.9,
		"2022-03-08": 0.9,
		"2022-03-09": 0.855, // 0.9 + (0.45-0.9)/10
		"2022-03-19": 0.45,  // second residual: 0.9 * 0.5
		"2022-08-01": 0.45,  // persists after the course is cleared
	}
	for d := 0; d <= 212; d++ {
		date := start.AddDate(0, 0, d)
		if p.VaccineTrajectory != nil {
			require.NoError(t, p.VaccineTrajectory.UpdateEffect(p, date))
		}
		want, ok := expected[date.Format("2006-01-02")]
		if !ok {
			continue
		}
		assert.InDelta(t, 1.0-want, p.Immunity.GetSusceptibility(delta.ID), 1e-9, date.Format("2006-01-02"))
		assert.InDelta(t, 1.0-want, p.Immunity.GetEffectiveMultiplier(delta.ID), 1e-9, date.Format("2006-01-02"))
	}
	assert.Nil(t, p.VaccineTrajectory, "the course clears once waning has finished")
}

func TestEmbeddedVaccinesLoad(t *testing.T) {
	registry, err := model.NewVariantRegistry([]model.VariantDef{
		{Name: "wild_type"},
		{Name: "alpha", CrossImmunity: []string{"wild_type"}},
		{Name: "delta", CrossImmunity: []string{"wild_type", "alpha"}},
	})
	require.NoError(t, err)
	vs, err := LoadVaccinesFromReader(data.VaccinesConfig(), registry)
	require.NoError(t, err)
	assert.NotEmpty(t, vs.All())
	_, err = vs.ByName("pfizer")
	assert.NoError(t, err)
}
