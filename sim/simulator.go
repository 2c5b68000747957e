package sim

import (
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"episim/infection"
	"episim/model"
	"episim/vaccine"
)

// Config holds the tunables of one epidemic run.
type Config struct {
	Seed    uint64
	Days    int
	Workers int

	// ContactsPerDay is the mean number of random-mixing contacts an
	// infectious person makes per day.
	ContactsPerDay float64

	// InitialInfections maps variant name to the number of persons infected
	// on day zero.
	InitialInfections map[string]int

	// VaccinationDay triggers the campaign; negative disables it.
	VaccinationDay  int
	VaccineName     string
	VaccineCoverage float64
	VaccineDoses    []int
	VaccineDoseGaps []int

	StartDate time.Time
}

// DefaultConfig mirrors the demo run.
func DefaultConfig() Config {
	return Config{
		Seed:              42,
		Days:              120,
		Workers:           4,
		ContactsPerDay:    1.6,
		InitialInfections: map[string]int{"wild_type": 20},
		VaccinationDay:    30,
		VaccineName:       "pfizer",
		VaccineCoverage:   0.6,
		VaccineDoses:      []int{0, 1},
		VaccineDoseGaps:   []int{0, 21},
		StartDate:         time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

// DayStats is the daily census over the population.
type DayStats struct {
	Day  int       `json:"day"`
	Date time.Time `json:"date"`

	Susceptible   int `json:"susceptible"`
	Infected      int `json:"infected"`
	Hospitalised  int `json:"hospitalised"`
	IntensiveCare int `json:"intensive_care"`
	Recovered     int `json:"recovered"`
	Dead          int `json:"dead"`
	Vaccinated    int `json:"vaccinated"`

	NewInfections int `json:"new_infections"`
}

// Simulator drives a population through discrete daily steps: parallel
// per-person disease updates, random-mixing exposures, vaccine effect
// updates and a census. All cross-person writes happen in the serial phase;
// the parallel phase touches each person exclusively.
type Simulator struct {
	cfg       Config
	disease   *infection.DiseaseConfig
	selectors infection.Selectors
	vaccines  *vaccine.Vaccines
	people    []*model.Person

	rng        *infection.RNG   // serial-phase draws
	workerRNGs []*infection.RNG // one per worker, parallel phase only

	day        int
	recovered  map[int]bool
	vaccinated int
	log        *zap.Logger
}

// NewSimulator wires a run together.
func NewSimulator(cfg Config, disease *infection.DiseaseConfig, selectors infection.Selectors, vaccines *vaccine.Vaccines, people []*model.Person, log *zap.Logger) *Simulator {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	workerRNGs := make([]*infection.RNG, cfg.Workers)
	for i := range workerRNGs {
		workerRNGs[i] = infection.NewRNG(cfg.Seed + uint64(i) + 1)
	}
	return &Simulator{
		cfg:        cfg,
		disease:    disease,
		selectors:  selectors,
		vaccines:   vaccines,
		people:     people,
		rng:        infection.NewRNG(cfg.Seed),
		workerRNGs: workerRNGs,
		recovered:  make(map[int]bool),
		log:        log,
	}
}

// Date is the calendar date of a simulation day.
func (s *Simulator) Date(day int) time.Time {
	return s.cfg.StartDate.Add(time.Duration(day) * 24 * time.Hour)
}

// SeedInfections infects count random susceptible persons with the named
// variant at the current simulation day.
func (s *Simulator) SeedInfections(name string, count int) error {
	sel, err := s.selectors.ByName(s.disease.Variants, name)
	if err != nil {
		return err
	}
	seeded := 0
	for attempts := 0; seeded < count && attempts < count*100; attempts++ {
		p := s.people[s.rng.IntN(len(s.people))]
		if p.Infection != nil || p.Dead || p.Immunity.IsImmune(sel.Variant.ID) {
			continue
		}
		if _, err := sel.Infect(p, float64(s.day), s.rng); err != nil {
			return err
		}
		seeded++
	}
	s.log.Info("seeded infections",
		zap.String("variant", name),
		zap.Int("requested", count),
		zap.Int("seeded", seeded))
	return nil
}

// Step advances the simulation by one day and returns the day's census.
func (s *Simulator) Step() (DayStats, error) {
	s.day++
	now := float64(s.day)
	date := s.Date(s.day)

	s.updateInfected(now)
	newInfections, err := s.spread(now)
	if err != nil {
		return DayStats{}, err
	}
	if err := s.updateVaccines(date); err != nil {
		return DayStats{}, err
	}
	if s.day == s.cfg.VaccinationDay && s.cfg.VaccineName != "" {
		if err := s.vaccinationCampaign(date); err != nil {
			return DayStats{}, err
		}
	}

	stats := s.census()
	stats.Day = s.day
	stats.Date = date
	stats.NewInfections = newInfections
	return stats, nil
}

// updateInfected advances every active infection in parallel. Persons are
// partitioned across workers, so no two goroutines touch the same person.
func (s *Simulator) updateInfected(now float64) {
	workers := s.cfg.Workers
	chunk := (len(s.people) + workers - 1) / workers
	var wg sync.WaitGroup
	results := make([][]int, workers) // recovered person ids per worker
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > len(s.people) {
			hi = len(s.people)
		}
		if lo >= hi {
			continue
		}
		wg.Add(1)
		go func(w, lo, hi int) {
			defer wg.Done()
			for _, p := range s.people[lo:hi] {
				if p.Infection == nil || p.Dead {
					continue
				}
				switch p.Infection.Update(now) {
				case model.StatusRecovered:
					p.Infection = nil
					results[w] = append(results[w], p.ID)
				case model.StatusDead:
					p.Infection = nil
					p.Dead = true
				}
			}
		}(w, lo, hi)
	}
	wg.Wait()
	for _, ids := range results {
		for _, id := range ids {
			s.recovered[id] = true
		}
	}
}

// spread evaluates random-mixing exposures serially: every infectious person
// contacts a Poisson number of random others, each succeeding with
// susceptibility times transmission probability.
func (s *Simulator) spread(now float64) (int, error) {
	infected := 0
	type exposure struct {
		target  *model.Person
		variant model.VariantID
	}
	var exposures []exposure
	for _, p := range s.people {
		if p.Infection == nil || p.Dead {
			continue
		}
		prob := p.Infection.Probability()
		if prob <= 0 {
			continue
		}
		contacts := s.poisson(s.cfg.ContactsPerDay)
		for c := 0; c < contacts; c++ {
			other := s.people[s.rng.IntN(len(s.people))]
			if other == p || other.Dead || other.Infection != nil {
				continue
			}
			susceptibility := other.Immunity.GetSusceptibility(p.Infection.Variant())
			if s.rng.Float64() < susceptibility*prob {
				exposures = append(exposures, exposure{target: other, variant: p.Infection.Variant()})
			}
		}
	}
	for _, e := range exposures {
		if e.target.Infection != nil || e.target.Dead {
			continue
		}
		sel, ok := s.selectors[e.variant]
		if !ok {
			return infected, fmt.Errorf("no selector for variant %d", e.variant)
		}
		if _, err := sel.Infect(e.target, now, s.rng); err != nil {
			return infected, err
		}
		infected++
	}
	return infected, nil
}

// updateVaccines folds every active dose trajectory into its person's
// immunity for today.
func (s *Simulator) updateVaccines(date time.Time) error {
	for _, p := range s.people {
		if p.VaccineTrajectory == nil || p.Dead {
			continue
		}
		if err := p.VaccineTrajectory.UpdateEffect(p, date); err != nil {
			return err
		}
	}
	return nil
}

// vaccinationCampaign hands the configured fraction of the living,
// unvaccinated population a dose trajectory starting today.
func (s *Simulator) vaccinationCampaign(date time.Time) error {
	v, err := s.vaccines.ByName(s.cfg.VaccineName)
	if err != nil {
		return err
	}
	count := 0
	for _, p := range s.people {
		if p.Dead || p.VaccineTrajectory != nil {
			continue
		}
		if s.rng.Float64() >= s.cfg.VaccineCoverage {
			continue
		}
		trajectory, err := v.GenerateTrajectory(p, s.cfg.VaccineDoses, s.cfg.VaccineDoseGaps, date)
		if err != nil {
			return err
		}
		p.VaccineTrajectory = trajectory
		count++
	}
	s.vaccinated += count
	s.log.Info("vaccination campaign",
		zap.String("vaccine", s.cfg.VaccineName),
		zap.Int("day", s.day),
		zap.Int("people", count))
	return nil
}

// census counts the population by state.
func (s *Simulator) census() DayStats {
	var stats DayStats
	const noTag = model.SymptomTag(-100)
	hospitalisedTag, icuTag := noTag, noTag
	if tag, err := s.disease.Tags.FromString("hospitalised"); err == nil {
		hospitalisedTag = tag
	}
	if tag, err := s.disease.Tags.FromString("intensive_care"); err == nil {
		icuTag = tag
	}
	for _, p := range s.people {
		switch {
		case p.Dead:
			stats.Dead++
		case p.Infection != nil:
			stats.Infected++
			if inf, ok := p.Infection.(*infection.Infection); ok {
				switch inf.Tag() {
				case hospitalisedTag:
					stats.Hospitalised++
				case icuTag:
					stats.IntensiveCare++
				}
			}
		case s.recovered[p.ID]:
			stats.Recovered++
		default:
			stats.Susceptible++
		}
	}
	stats.Vaccinated = s.vaccinated
	return stats
}

// Poisson sample with mean using Knuth algorithm (suitable for moderate means).
func (s *Simulator) poisson(mean float64) int {
	if mean <= 0 {
		return 0
	}
	if mean > 30 { // For large means, use normal approximation then adjust (simple approach)
		std := math.Sqrt(mean)
		val := int(math.Round(s.rng.NormFloat64()*std + mean))
		if val < 0 {
			return 0
		}
		return val
	}
	L := math.Exp(-mean)
	k := 0
	p := 1.0
	for p > L {
		k++
		p *= s.rng.Float64()
	}
	return k - 1
}
