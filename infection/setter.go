package infection

import (
	"fmt"
	"io"
	"sort"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"episim/model"
)

// Susceptibility assignment modes. Average writes the band value directly as
// a partial susceptibility; individual draws per person and makes the chosen
// fraction fully immune instead.
const (
	ModeAverage    = "average"
	ModeIndividual = "individual"
)

// VaccinationSeed describes the pre-simulation vaccination coverage of one
// vaccine brand: coverage by age plus per-variant efficacies.
type VaccinationSeed struct {
	PercentageVaccinated map[string]float64      `yaml:"percentage_vaccinated"`
	Infections           map[string]efficacySeed `yaml:"infections"`
}

type efficacySeed struct {
	SterilisationEfficacy map[string]float64 `yaml:"sterilisation_efficacy"`
	SymptomaticEfficacy   map[string]float64 `yaml:"symptomatic_efficacy"`
}

// PreviousInfectionsSeed describes seroprevalence already present in the
// starting population: per-variant efficacies granted by a past infection and
// the infected ratio per region and age.
type PreviousInfectionsSeed struct {
	Infections map[string]struct {
		SterilisationEfficacy float64 `yaml:"sterilisation_efficacy"`
		SymptomaticEfficacy   float64 `yaml:"symptomatic_efficacy"`
	} `yaml:"infections"`
	Ratios map[string]map[string]float64 `yaml:"ratios"`
}

// ImmunitySetterConfig is the YAML description of the bulk immunity pass.
// Variant keys are names resolved against the registry at load time.
type ImmunitySetterConfig struct {
	SusceptibilityMode string                        `yaml:"susceptibility_mode"`
	Susceptibility     map[string]map[string]float64 `yaml:"susceptibility"`
	Multipliers        map[string]map[string]float64 `yaml:"multipliers"`

	ComorbidityMultipliers map[string]float64                       `yaml:"comorbidity_multipliers"`
	ComorbidityPrevalence  map[string]map[string]map[string]float64 `yaml:"comorbidity_prevalence_reference_population"`

	Vaccination        map[string]VaccinationSeed `yaml:"vaccination"`
	PreviousInfections *PreviousInfectionsSeed    `yaml:"previous_infections"`
}

// LoadImmunitySetterConfigFromReader decodes the setter YAML.
func LoadImmunitySetterConfigFromReader(r io.Reader) (*ImmunitySetterConfig, error) {
	var cfg ImmunitySetterConfig
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode immunity setter config: %w", err)
	}
	return &cfg, nil
}

type vaccinationSeed struct {
	name       string
	coverage   []float64
	efficacies map[model.VariantID]struct {
		sterilisation []float64
		symptomatic   []float64
	}
}

type previousInfectionsSeed struct {
	targets map[model.VariantID]struct {
		susceptibility float64
		multiplier     float64
	}
	ratios map[string][]float64 // region -> per-age ratio
}

// ImmunitySetter applies population-wide immunity state in bulk before a
// simulation starts: baseline susceptibilities and severity multipliers per
// variant, comorbidity corrections, prior vaccination and prior infection
// seeding. All lookups are resolved to per-age arrays at construction.
type ImmunitySetter struct {
	mode string

	susceptibility map[model.VariantID][]float64
	multipliers    map[model.VariantID][]float64

	comorbidityMultipliers map[string]float64
	// referenceMultipliers[sex][age] is the prevalence-weighted mean
	// comorbidity multiplier of the reference population.
	referenceMultipliers [2][]float64
	adjustComorbidities  bool

	vaccinations       []vaccinationSeed
	previousInfections *previousInfectionsSeed

	log *zap.Logger
}

// NewImmunitySetter resolves variant names and age bands. Unknown variant
// names and unknown modes are fatal configuration errors.
func NewImmunitySetter(cfg *ImmunitySetterConfig, registry *model.VariantRegistry, log *zap.Logger) (*ImmunitySetter, error) {
	mode := cfg.SusceptibilityMode
	if mode == "" {
		mode = ModeAverage
	}
	if mode != ModeAverage && mode != ModeIndividual {
		return nil, fmt.Errorf("unrecognised susceptibility mode %q", mode)
	}
	s := &ImmunitySetter{
		mode:                   mode,
		susceptibility:         make(map[model.VariantID][]float64, len(cfg.Susceptibility)),
		multipliers:            make(map[model.VariantID][]float64, len(cfg.Multipliers)),
		comorbidityMultipliers: cfg.ComorbidityMultipliers,
		log:                    log,
	}

	for name, bands := range cfg.Susceptibility {
		v, err := registry.ByName(name)
		if err != nil {
			return nil, fmt.Errorf("susceptibility table: %w", err)
		}
		perAge, err := model.ParseAgeProbabilities(bands, 1.0)
		if err != nil {
			return nil, fmt.Errorf("susceptibility table %q: %w", name, err)
		}
		s.susceptibility[v.ID] = perAge
	}
	for name, bands := range cfg.Multipliers {
		v, err := registry.ByName(name)
		if err != nil {
			return nil, fmt.Errorf("multiplier table: %w", err)
		}
		perAge, err := model.ParseAgeProbabilities(bands, 1.0)
		if err != nil {
			return nil, fmt.Errorf("multiplier table %q: %w", name, err)
		}
		s.multipliers[v.ID] = perAge
	}

	if len(cfg.ComorbidityMultipliers) > 0 && len(cfg.ComorbidityPrevalence) > 0 {
		if err := s.buildReferenceMultipliers(cfg.ComorbidityPrevalence); err != nil {
			return nil, err
		}
		s.adjustComorbidities = true
	}

	// fixed brand order keeps the weighted pick reproducible for a seed
	brands := make([]string, 0, len(cfg.Vaccination))
	for name := range cfg.Vaccination {
		brands = append(brands, name)
	}
	sort.Strings(brands)
	for _, name := range brands {
		resolved, err := resolveVaccinationSeed(name, cfg.Vaccination[name], registry)
		if err != nil {
			return nil, err
		}
		s.vaccinations = append(s.vaccinations, resolved)
	}

	if cfg.PreviousInfections != nil {
		resolved, err := resolvePreviousInfectionsSeed(cfg.PreviousInfections, registry)
		if err != nil {
			return nil, err
		}
		s.previousInfections = resolved
	}
	return s, nil
}

func (s *ImmunitySetter) buildReferenceMultipliers(prevalence map[string]map[string]map[string]float64) error {
	for sexKey, sex := range map[string]model.Sex{"m": model.Male, "f": model.Female} {
		perAge := make([]float64, model.MaxAge+1)
		for comorbidity, bySex := range prevalence {
			mult, ok := s.comorbidityMultipliers[comorbidity]
			if !ok {
				return fmt.Errorf("comorbidity %q has reference prevalence but no multiplier", comorbidity)
			}
			bands, ok := bySex[sexKey]
			if !ok {
				return fmt.Errorf("comorbidity %q: missing prevalence for sex %q", comorbidity, sexKey)
			}
			p, err := model.ParseAgeProbabilities(bands, 0.0)
			if err != nil {
				return fmt.Errorf("comorbidity %q prevalence: %w", comorbidity, err)
			}
			for age := range perAge {
				perAge[age] += mult * p[age]
			}
		}
		s.referenceMultipliers[sex] = perAge
	}
	return nil
}

func resolveVaccinationSeed(name string, seed VaccinationSeed, registry *model.VariantRegistry) (vaccinationSeed, error) {
	out := vaccinationSeed{
		name: name,
		efficacies: make(map[model.VariantID]struct {
			sterilisation []float64
			symptomatic   []float64
		}, len(seed.Infections)),
	}
	var err error
	if out.coverage, err = model.ParseAgeProbabilities(seed.PercentageVaccinated, 0.0); err != nil {
		return out, fmt.Errorf("vaccination %q coverage: %w", name, err)
	}
	for variantName, eff := range seed.Infections {
		v, err := registry.ByName(variantName)
		if err != nil {
			return out, fmt.Errorf("vaccination %q: %w", name, err)
		}
		sterilisation, err := model.ParseAgeProbabilities(eff.SterilisationEfficacy, 0.0)
		if err != nil {
			return out, fmt.Errorf("vaccination %q sterilisation: %w", name, err)
		}
		symptomatic, err := model.ParseAgeProbabilities(eff.SymptomaticEfficacy, 0.0)
		if err != nil {
			return out, fmt.Errorf("vaccination %q symptomatic: %w", name, err)
		}
		out.efficacies[v.ID] = struct {
			sterilisation []float64
			symptomatic   []float64
		}{sterilisation, symptomatic}
	}
	return out, nil
}

func resolvePreviousInfectionsSeed(seed *PreviousInfectionsSeed, registry *model.VariantRegistry) (*previousInfectionsSeed, error) {
	out := &previousInfectionsSeed{
		targets: make(map[model.VariantID]struct {
			susceptibility float64
			multiplier     float64
		}, len(seed.Infections)),
		ratios: make(map[string][]float64, len(seed.Ratios)),
	}
	for name, eff := range seed.Infections {
		v, err := registry.ByName(name)
		if err != nil {
			return nil, fmt.Errorf("previous infections: %w", err)
		}
		out.targets[v.ID] = struct {
			susceptibility float64
			multiplier     float64
		}{
			susceptibility: 1.0 - eff.SterilisationEfficacy,
			multiplier:     1.0 - eff.SymptomaticEfficacy,
		}
	}
	for region, bands := range seed.Ratios {
		perAge, err := model.ParseAgeProbabilities(bands, 0.0)
		if err != nil {
			return nil, fmt.Errorf("previous infections region %q: %w", region, err)
		}
		out.ratios[region] = perAge
	}
	return out, nil
}

// SetImmunity runs every configured pass over the population, in the fixed
// order multipliers, susceptibilities, previous infections, vaccinations.
func (s *ImmunitySetter) SetImmunity(population []*model.Person, rng *RNG) {
	if len(s.multipliers) > 0 {
		s.SetMultipliers(population)
	}
	if len(s.susceptibility) > 0 {
		s.SetSusceptibilities(population, rng)
	}
	if s.previousInfections != nil {
		s.SetPreviousInfections(population, rng)
	}
	if len(s.vaccinations) > 0 {
		s.SetVaccinations(population, rng)
	}
	s.log.Info("population immunity initialised",
		zap.Int("people", len(population)),
		zap.String("susceptibility_mode", s.mode))
}

// SetMultipliers assigns each person the baseline severity multiplier per
// variant, shifted by the person's comorbidity relative to the reference
// population mean for their age and sex.
func (s *ImmunitySetter) SetMultipliers(population []*model.Person) {
	for _, p := range population {
		age := model.ClampAge(p.Age)
		for id, perAge := range s.multipliers {
			value := perAge[age]
			if s.adjustComorbidities {
				personMult, ok := s.comorbidityMultipliers[p.Comorbidity]
				if !ok {
					personMult = 1.0
				}
				reference := s.referenceMultipliers[p.Sex][age]
				if reference > 0 {
					value += personMult/reference - 1.0
				}
			}
			p.Immunity.AddMultiplier(id, value)
		}
	}
}

// SetSusceptibilities applies the per-variant age tables. In average mode the
// value is assigned as a partial susceptibility; in individual mode each
// person draws once per variant and loses all susceptibility when the draw
// exceeds the table value, leaving everyone else fully susceptible.
func (s *ImmunitySetter) SetSusceptibilities(population []*model.Person, rng *RNG) {
	for _, p := range population {
		age := model.ClampAge(p.Age)
		for id, perAge := range s.susceptibility {
			switch s.mode {
			case ModeAverage:
				p.Immunity.SetSusceptibility(id, perAge[age])
			case ModeIndividual:
				if rng.Float64() > perAge[age] {
					p.Immunity.SetSusceptibility(id, 0.0)
				}
			}
		}
	}
}

// SetPreviousInfections seeds seroprevalence uniformly: each person in a
// listed region is marked previously infected with the region's per-age
// ratio, merging with any existing protection by taking the minimum.
func (s *ImmunitySetter) SetPreviousInfections(population []*model.Person, rng *RNG) {
	seeded := 0
	for _, p := range population {
		perAge, ok := s.previousInfections.ratios[p.Region]
		if !ok {
			continue
		}
		if rng.Float64() >= perAge[model.ClampAge(p.Age)] {
			continue
		}
		for id, target := range s.previousInfections.targets {
			if current := p.Immunity.GetSusceptibility(id); target.susceptibility < current {
				p.Immunity.SetSusceptibility(id, target.susceptibility)
			}
			if current := p.Immunity.GetEffectiveMultiplier(id); target.multiplier < current {
				p.Immunity.AddMultiplier(id, target.multiplier)
			}
		}
		seeded++
	}
	s.log.Debug("previous infections seeded", zap.Int("people", seeded))
}

// SetVaccinations seeds the starting population's vaccination status. Each
// person is vaccinated with probability equal to the summed per-age coverage,
// choosing the brand proportionally, and receives that brand's efficacies as
// susceptibility and multiplier entries.
func (s *ImmunitySetter) SetVaccinations(population []*model.Person, rng *RNG) {
	vaccinated := 0
	for _, p := range population {
		age := model.ClampAge(p.Age)
		total := 0.0
		for _, v := range s.vaccinations {
			total += v.coverage[age]
		}
		if total <= 0 || rng.Float64() >= total {
			continue
		}
		choice := rng.Float64() * total
		acc := 0.0
		seed := s.vaccinations[len(s.vaccinations)-1]
		for _, v := range s.vaccinations {
			acc += v.coverage[age]
			if choice < acc {
				seed = v
				break
			}
		}
		for id, eff := range seed.efficacies {
			p.Immunity.AddMultiplier(id, 1.0-eff.symptomatic[age])
			p.Immunity.SetSusceptibility(id, 1.0-eff.sterilisation[age])
		}
		vaccinated++
	}
	s.log.Debug("starting vaccinations seeded", zap.Int("people", vaccinated))
}
