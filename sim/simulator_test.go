package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"episim/data"
	"episim/infection"
	"episim/model"
	"episim/vaccine"
)

type testStack struct {
	disease   *infection.DiseaseConfig
	selectors infection.Selectors
	vaccines  *vaccine.Vaccines
	setter    *infection.ImmunitySetter
}

func loadTestStack(t *testing.T) *testStack {
	t.Helper()
	log := zap.NewNop()
	disease, err := infection.LoadDiseaseConfigFromReader(data.Covid19Config())
	require.NoError(t, err)
	table, err := infection.LoadRateTableFromReader(data.OutcomeRates())
	require.NoError(t, err)
	selectors, err := infection.NewSelectors(disease, table, log)
	require.NoError(t, err)
	vaccines, err := vaccine.LoadVaccinesFromReader(data.VaccinesConfig(), disease.Variants)
	require.NoError(t, err)
	setterCfg, err := infection.LoadImmunitySetterConfigFromReader(data.ImmunityConfig())
	require.NoError(t, err)
	setter, err := infection.NewImmunitySetter(setterCfg, disease.Variants, log)
	require.NoError(t, err)
	return &testStack{disease: disease, selectors: selectors, vaccines: vaccines, setter: setter}
}

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.Days = 20
	cfg.Workers = 2
	cfg.InitialInfections = map[string]int{"wild_type": 10}
	cfg.VaccinationDay = 5
	cfg.VaccineCoverage = 0.3
	return cfg
}

func newTestSimulator(t *testing.T, cfg Config, size int) *Simulator {
	t.Helper()
	st := loadTestStack(t)
	popCfg := DefaultPopulationConfig()
	popCfg.Size = size
	rng := infection.NewRNG(cfg.Seed)
	people, err := GeneratePopulation(popCfg, rng)
	require.NoError(t, err)
	st.setter.SetImmunity(people, rng)
	return NewSimulator(cfg, st.disease, st.selectors, st.vaccines, people, zap.NewNop())
}

func TestSeedInfections(t *testing.T) {
	s := newTestSimulator(t, smallConfig(), 500)
	require.NoError(t, s.SeedInfections("wild_type", 10))

	infected := 0
	for _, p := range s.people {
		if p.Infection != nil {
			infected++
		}
	}
	assert.Equal(t, 10, infected)

	err := s.SeedInfections("omicron", 5)
	assert.Error(t, err)
}

func TestStepCensusConsistency(t *testing.T) {
	cfg := smallConfig()
	s := newTestSimulator(t, cfg, 500)
	require.NoError(t, s.SeedInfections("wild_type", 10))

	for day := 1; day <= cfg.Days; day++ {
		stats, err := s.Step()
		require.NoError(t, err)
		assert.Equal(t, day, stats.Day)
		assert.Equal(t, s.Date(day), stats.Date)
		total := stats.Susceptible + stats.Infected + stats.Recovered + stats.Dead
		assert.Equal(t, 500, total, "census partitions the population")
		assert.GreaterOrEqual(t, stats.NewInfections, 0)
		assert.LessOrEqual(t, stats.Hospitalised+stats.IntensiveCare, stats.Infected)
	}
}

func TestVaccinationCampaignRuns(t *testing.T) {
	cfg := smallConfig()
	s := newTestSimulator(t, cfg, 500)
	require.NoError(t, s.SeedInfections("wild_type", 5))

	for day := 1; day <= cfg.VaccinationDay; day++ {
		_, err := s.Step()
		require.NoError(t, err)
	}
	assert.Greater(t, s.vaccinated, 0)

	courses := 0
	for _, p := range s.people {
		if p.VaccineTrajectory != nil {
			courses++
		}
	}
	assert.Equal(t, s.vaccinated, courses)
}

func TestEpidemicPropagates(t *testing.T) {
	cfg := smallConfig()
	cfg.Days = 30
	cfg.ContactsPerDay = 3.0
	s := newTestSimulator(t, cfg, 500)
	require.NoError(t, s.SeedInfections("wild_type", 10))

	// seeded courses are still incubating after one day
	stats, err := s.Step()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.Infected, 10)

	newInfections := stats.NewInfections
	for day := 2; day <= cfg.Days; day++ {
		stats, err = s.Step()
		require.NoError(t, err)
		newInfections += stats.NewInfections
	}
	assert.Greater(t, newInfections, 0, "seeded infections must spread")
}

func TestSimulatorDeterministic(t *testing.T) {
	run := func() []DayStats {
		cfg := smallConfig()
		s := newTestSimulator(t, cfg, 300)
		require.NoError(t, s.SeedInfections("wild_type", 10))
		out := make([]DayStats, 0, cfg.Days)
		for day := 1; day <= cfg.Days; day++ {
			stats, err := s.Step()
			require.NoError(t, err)
			out = append(out, stats)
		}
		return out
	}
	assert.Equal(t, run(), run())
}

func TestPoisson(t *testing.T) {
	s := newTestSimulator(t, smallConfig(), 10)
	assert.Equal(t, 0, s.poisson(0))
	assert.Equal(t, 0, s.poisson(-1))

	mean := 1.6
	const n = 20000
	sum := 0
	for i := 0; i < n; i++ {
		sum += s.poisson(mean)
	}
	assert.InDelta(t, mean, float64(sum)/n, 0.05)

	big := s.poisson(100)
	assert.Greater(t, big, 50)
	assert.Less(t, big, 150)
}

func TestDeadStayDead(t *testing.T) {
	cfg := smallConfig()
	cfg.Days = 60
	cfg.ContactsPerDay = 3.0
	s := newTestSimulator(t, cfg, 400)
	require.NoError(t, s.SeedInfections("wild_type", 40))

	prevDead := 0
	for day := 1; day <= cfg.Days; day++ {
		stats, err := s.Step()
		require.NoError(t, err)
		assert.GreaterOrEqual(t, stats.Dead, prevDead, "deaths are monotone")
		prevDead = stats.Dead
	}
	for _, p := range s.people {
		if p.Dead {
			assert.Nil(t, p.Infection)
		}
	}
}

func TestCensusStatusesDisjoint(t *testing.T) {
	s := newTestSimulator(t, smallConfig(), 200)
	require.NoError(t, s.SeedInfections("wild_type", 20))
	for i := 0; i < 30; i++ {
		_, err := s.Step()
		require.NoError(t, err)
	}
	for id := range s.recovered {
		assert.False(t, s.people[id].Dead, "a recovered person cannot also be dead")
	}
}

func TestDate(t *testing.T) {
	s := newTestSimulator(t, smallConfig(), 10)
	assert.Equal(t, s.cfg.StartDate, s.Date(0))
	assert.Equal(t, s.cfg.StartDate.AddDate(0, 0, 7), s.Date(7))
}

var _ model.ActiveInfection = (*infection.Infection)(nil)
