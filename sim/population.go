package sim

import (
	"sort"

	"episim/infection"
	"episim/model"
)

// PopulationConfig shapes the synthetic population a demo run is seeded with.
type PopulationConfig struct {
	Size    int
	Regions []string
	// AgeWeights maps age band ("lo-hi", half-open) to a relative weight.
	// Ages within a band are uniform. Empty means uniform over [0,99].
	AgeWeights map[string]float64
	// ComorbidityPrevalence maps comorbidity name to the fraction of the
	// population carrying it; the remainder gets no comorbidity.
	ComorbidityPrevalence map[string]float64
	// CareHomeFraction of persons aged 65+ living in care homes.
	CareHomeFraction float64
}

// DefaultPopulationConfig is a small demographically plausible population.
func DefaultPopulationConfig() PopulationConfig {
	return PopulationConfig{
		Size:    10000,
		Regions: []string{"london", "north_east"},
		AgeWeights: map[string]float64{
			"0-20":   0.22,
			"20-40":  0.27,
			"40-65":  0.31,
			"65-100": 0.20,
		},
		ComorbidityPrevalence: map[string]float64{
			"diabetes":     0.07,
			"hypertension": 0.18,
			"copd":         0.04,
		},
		CareHomeFraction: 0.04,
	}
}

// GeneratePopulation builds persons with ages, sexes, regions, comorbidities
// and care-home residence drawn from the config. Deterministic for a given
// RNG seed.
func GeneratePopulation(cfg PopulationConfig, rng *infection.RNG) ([]*model.Person, error) {
	ageWeights := cfg.AgeWeights
	if len(ageWeights) == 0 {
		ageWeights = map[string]float64{"0-100": 1.0}
	}
	perAge, err := model.ParseAgeProbabilities(ageWeights, 0.0)
	if err != nil {
		return nil, err
	}
	ageCum := make([]float64, len(perAge))
	total := 0.0
	for i, w := range perAge {
		total += w
		ageCum[i] = total
	}

	// fixed comorbidity order keeps runs reproducible for a given seed
	comorbidities := make([]string, 0, len(cfg.ComorbidityPrevalence))
	for name := range cfg.ComorbidityPrevalence {
		comorbidities = append(comorbidities, name)
	}
	sort.Strings(comorbidities)

	people := make([]*model.Person, cfg.Size)
	for i := 0; i < cfg.Size; i++ {
		age := sampleIndex(ageCum, total, rng)
		sex := model.Male
		if rng.Float64() < 0.5 {
			sex = model.Female
		}
		p := model.NewPerson(i, age, sex)
		if len(cfg.Regions) > 0 {
			p.Region = cfg.Regions[rng.IntN(len(cfg.Regions))]
		}
		draw := rng.Float64()
		acc := 0.0
		for _, name := range comorbidities {
			acc += cfg.ComorbidityPrevalence[name]
			if draw < acc {
				p.Comorbidity = name
				break
			}
		}
		if age >= 65 && rng.Float64() < cfg.CareHomeFraction {
			p.CareHome = true
		}
		people[i] = p
	}
	return people, nil
}

func sampleIndex(cumulative []float64, total float64, rng *infection.RNG) int {
	if total <= 0 {
		return rng.IntN(len(cumulative))
	}
	draw := rng.Float64() * total
	for i, c := range cumulative {
		if draw <= c {
			return i
		}
	}
	return len(cumulative) - 1
}
