package infection

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"episim/data"
	"episim/model"
)

func constantCfg(v float64) *SamplerConfig {
	return &SamplerConfig{Type: "constant", Value: v}
}

func testSelectors(t *testing.T, tcfg TransmissionConfig) Selectors {
	t.Helper()
	cfg, err := LoadDiseaseConfigFromReader(strings.NewReader(minimalDiseaseYAML))
	require.NoError(t, err)
	cfg.Transmission = tcfg
	cfg.Trajectories = testTrajectories()
	selectors, err := NewSelectors(cfg, testRateTable(t), testLogger())
	require.NoError(t, err)
	return selectors
}

func TestNewTransmissionSamplersErrors(t *testing.T) {
	_, err := newTransmissionSamplers(TransmissionConfig{Type: "teleport"})
	assert.ErrorContains(t, err, "teleport")

	_, err = newTransmissionSamplers(TransmissionConfig{Type: "constant"})
	assert.ErrorContains(t, err, "probability")

	_, err = newTransmissionSamplers(TransmissionConfig{
		Type:              "gamma",
		MaxInfectiousness: constantCfg(1),
		Shape:             constantCfg(2),
		Rate:              constantCfg(0.5),
	})
	assert.ErrorContains(t, err, "shift")
}

func TestAttenuationRequiresBothFactors(t *testing.T) {
	ts, err := newTransmissionSamplers(TransmissionConfig{
		Type:                         "constant",
		Probability:                  constantCfg(0.5),
		AsymptomaticInfectiousFactor: constantCfg(0.3),
	})
	require.NoError(t, err)
	assert.Nil(t, ts.asymptomaticFactor, "a lone factor attenuates nothing")

	ts, err = newTransmissionSamplers(TransmissionConfig{
		Type:                         "constant",
		Probability:                  constantCfg(0.5),
		AsymptomaticInfectiousFactor: constantCfg(0.3),
		MildInfectiousFactor:         constantCfg(0.6),
	})
	require.NoError(t, err)
	require.NotNil(t, ts.asymptomaticFactor)
	require.NotNil(t, ts.mildFactor)
}

func TestInfectEndToEnd(t *testing.T) {
	selectors := testSelectors(t, TransmissionConfig{
		Type:        "constant",
		Probability: constantCfg(0.4),
	})
	cfg, err := LoadDiseaseConfigFromReader(strings.NewReader(minimalDiseaseYAML))
	require.NoError(t, err)
	sel, err := selectors.ByName(cfg.Variants, "alpha")
	require.NoError(t, err)

	p := model.NewPerson(1, 35, model.Female)
	rng := NewRNG(12)
	inf, err := sel.Infect(p, 10.0, rng)
	require.NoError(t, err)

	assert.Same(t, inf, p.Infection.(*Infection))
	assert.Equal(t, sel.Variant.ID, inf.Variant())
	assert.Equal(t, 10.0, inf.StartTime())

	// infection with alpha also protects against wild_type via cross immunity
	wild, err := cfg.Variants.ByName("wild_type")
	require.NoError(t, err)
	assert.True(t, p.Immunity.IsImmune(sel.Variant.ID))
	assert.True(t, p.Immunity.IsImmune(wild.ID))
}

func TestInfectStartsInExposedStage(t *testing.T) {
	cfg, err := LoadDiseaseConfigFromReader(data.Covid19Config())
	require.NoError(t, err)
	table, err := LoadRateTableFromReader(data.OutcomeRates())
	require.NoError(t, err)
	selectors, err := NewSelectors(cfg, table, testLogger())
	require.NoError(t, err)
	sel, err := selectors.ByName(cfg.Variants, "wild_type")
	require.NoError(t, err)

	// the tag set declares recovered and healthy below exposed, so a fresh
	// course that started at the lowest tag would read as recovered and be
	// cleared on its first update
	rng := NewRNG(3)
	for i := 0; i < 50; i++ {
		p := model.NewPerson(i, 20+i, model.Sex(i%2))
		inf, err := sel.Infect(p, 0.0, rng)
		require.NoError(t, err)
		require.Equal(t, "exposed", cfg.Tags.Name(inf.Tag()))

		// every incubation draw lasts longer than a quarter day, and no
		// course jumps from exposed straight to a terminal stage
		assert.Equal(t, model.StatusInfected, inf.Update(0.25))
		assert.Equal(t, model.StatusInfected, inf.Update(1.0))
	}
}

func TestInfectAppliesEffectiveMultiplier(t *testing.T) {
	selectors := testSelectors(t, TransmissionConfig{
		Type:        "constant",
		Probability: constantCfg(0.4),
	})
	cfg, err := LoadDiseaseConfigFromReader(strings.NewReader(minimalDiseaseYAML))
	require.NoError(t, err)
	sel, err := selectors.ByName(cfg.Variants, "wild_type")
	require.NoError(t, err)

	// a multiplier of zero removes all severe mass, so every outcome is
	// asymptomatic or mild regardless of the draw
	rng := NewRNG(77)
	for i := 0; i < 200; i++ {
		p := model.NewPerson(i, 85, model.Male)
		p.Immunity.AddMultiplier(sel.Variant.ID, 0.0)
		inf, err := sel.Infect(p, 0.0, rng)
		require.NoError(t, err)
		assert.Less(t, int(inf.Symptoms.MaxTag), 2)
	}
}

func TestInfectGammaCourse(t *testing.T) {
	selectors := testSelectors(t, TransmissionConfig{
		Type:              "gamma",
		MaxInfectiousness: constantCfg(1.0),
		Shape:             constantCfg(2.0),
		Rate:              constantCfg(0.5),
		Shift:             constantCfg(-2.0),
	})
	cfg, err := LoadDiseaseConfigFromReader(strings.NewReader(minimalDiseaseYAML))
	require.NoError(t, err)
	sel, err := selectors.ByName(cfg.Variants, "wild_type")
	require.NoError(t, err)

	p := model.NewPerson(1, 30, model.Male)
	inf, err := sel.Infect(p, 0.0, rngFor(t))
	require.NoError(t, err)

	gamma, ok := inf.Transmission.(*TransmissionGamma)
	require.True(t, ok)
	// shift anchors to the course: symptom onset (or incubation end) minus 2
	anchor := inf.Symptoms.TimeExposed()
	if inf.Symptoms.OnsetTime != nil {
		anchor = *inf.Symptoms.OnsetTime
	}
	assert.InDelta(t, anchor-2.0+(2.0-1)/0.5, gamma.TimeAtMaxInfectivity(), 1e-9)
}

func TestMakeTransmissionXNExp(t *testing.T) {
	selectors := testSelectors(t, TransmissionConfig{
		Type:                        "xnexp",
		SmearingTimeFirstInfectious: constantCfg(-1.0),
		SmearingPeakPosition:        constantCfg(0.5),
		Alpha:                       constantCfg(0.7),
		MaxProbability:              constantCfg(1.0),
		NormTime:                    constantCfg(1.0),
	})
	cfg, err := LoadDiseaseConfigFromReader(strings.NewReader(minimalDiseaseYAML))
	require.NoError(t, err)
	sel, err := selectors.ByName(cfg.Variants, "wild_type")
	require.NoError(t, err)

	p := model.NewPerson(1, 30, model.Male)
	inf, err := sel.Infect(p, 0.0, NewRNG(21))
	require.NoError(t, err)

	x, ok := inf.Transmission.(*TransmissionXNExp)
	require.True(t, ok)
	anchor := inf.Symptoms.TimeExposed()
	if inf.Symptoms.OnsetTime != nil {
		anchor = *inf.Symptoms.OnsetTime
	}
	// first infectious one day before the anchor; peak 1.5 days after that
	tFI := anchor - 1.0
	x.Update(tFI)
	assert.Equal(t, 0.0, x.Probability())
	x.Update(tFI + 1.5) // tau = n*alpha = (1.0+0.5)/0.7 * 0.7
	assert.InDelta(t, 1.0, x.Probability(), 1e-9)
}

func TestSelectorsByNameUnknown(t *testing.T) {
	selectors := testSelectors(t, TransmissionConfig{
		Type:        "constant",
		Probability: constantCfg(0.4),
	})
	cfg, err := LoadDiseaseConfigFromReader(strings.NewReader(minimalDiseaseYAML))
	require.NoError(t, err)
	_, err = selectors.ByName(cfg.Variants, "omicron")
	assert.Error(t, err)
}
