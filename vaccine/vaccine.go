package vaccine

import (
	"fmt"
	"io"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"episim/model"
)

// doseEfficacies maps variant -> per-age efficacy for one dose number.
type doseEfficacies map[model.VariantID][]float64

// Vaccine defines one vaccine brand: per-dose timing parameters and per-dose,
// per-variant, per-age target efficacies. Slices are indexed by dose number.
type Vaccine struct {
	Name string

	DaysAdministeredToEffective []int
	DaysEffectiveToWaning       []int
	DaysWaning                  []int
	WaningFactor                float64

	Sterilisation []doseEfficacies
	Symptomatic   []doseEfficacies

	variantIDs []model.VariantID
}

type vaccineConfig struct {
	DaysAdministeredToEffective []int                         `yaml:"days_administered_to_effective"`
	DaysEffectiveToWaning       []int                         `yaml:"days_effective_to_waning"`
	DaysWaning                  []int                         `yaml:"days_waning"`
	WaningFactor                float64                       `yaml:"waning_factor"`
	SterilisationEfficacies     []map[string]map[string]float64 `yaml:"sterilisation_efficacies"`
	SymptomaticEfficacies       []map[string]map[string]float64 `yaml:"symptomatic_efficacies"`
}

// newVaccine resolves variant names to ids and age bands to per-age arrays.
// An efficacy table naming an unregistered variant is a fatal configuration
// error.
func newVaccine(name string, cfg vaccineConfig, registry *model.VariantRegistry) (*Vaccine, error) {
	v := &Vaccine{
		Name:                        name,
		DaysAdministeredToEffective: cfg.DaysAdministeredToEffective,
		DaysEffectiveToWaning:       cfg.DaysEffectiveToWaning,
		DaysWaning:                  cfg.DaysWaning,
		WaningFactor:                cfg.WaningFactor,
	}
	if v.WaningFactor == 0 {
		v.WaningFactor = 1.0
	}
	var err error
	if v.Sterilisation, err = parseEfficacies(cfg.SterilisationEfficacies, registry); err != nil {
		return nil, fmt.Errorf("vaccine %s sterilisation: %w", name, err)
	}
	if v.Symptomatic, err = parseEfficacies(cfg.SymptomaticEfficacies, registry); err != nil {
		return nil, fmt.Errorf("vaccine %s symptomatic: %w", name, err)
	}
	if len(v.Sterilisation) != len(v.Symptomatic) {
		return nil, fmt.Errorf("vaccine %s: %d sterilisation doses but %d symptomatic doses",
			name, len(v.Sterilisation), len(v.Symptomatic))
	}
	seen := map[model.VariantID]bool{}
	for _, dose := range v.Sterilisation {
		for id := range dose {
			if !seen[id] {
				seen[id] = true
				v.variantIDs = append(v.variantIDs, id)
			}
		}
	}
	sort.Slice(v.variantIDs, func(i, j int) bool { return v.variantIDs[i] < v.variantIDs[j] })
	return v, nil
}

func parseEfficacies(tables []map[string]map[string]float64, registry *model.VariantRegistry) ([]doseEfficacies, error) {
	out := make([]doseEfficacies, len(tables))
	for i, table := range tables {
		out[i] = make(doseEfficacies, len(table))
		for variantName, bands := range table {
			variant, err := registry.ByName(variantName)
			if err != nil {
				return nil, err
			}
			perAge, err := model.ParseAgeProbabilities(bands, 0.0)
			if err != nil {
				return nil, fmt.Errorf("variant %s: %w", variantName, err)
			}
			out[i][variant.ID] = perAge
		}
	}
	return out, nil
}

// VariantIDs are the variants this vaccine protects against.
func (v *Vaccine) VariantIDs() []model.VariantID { return v.variantIDs }

// collectPriorEfficacy snapshots the protection the person already has, so
// the first dose ramps up from there instead of from zero.
func (v *Vaccine) collectPriorEfficacy(p *model.Person) Efficacy {
	prior := Efficacy{
		Infection:    make(map[model.VariantID]float64, len(v.variantIDs)),
		Symptoms:     make(map[model.VariantID]float64, len(v.variantIDs)),
		WaningFactor: 1.0,
	}
	for _, id := range v.variantIDs {
		prior.Infection[id] = 1.0 - p.Immunity.GetSusceptibility(id)
		prior.Symptoms[id] = 1.0 - p.Immunity.GetEffectiveMultiplier(id)
	}
	return prior
}

// efficacyForDose reads the per-variant targets for one dose at the person's
// age.
func (v *Vaccine) efficacyForDose(dose int, age int) (Efficacy, error) {
	if dose < 0 || dose >= len(v.Sterilisation) {
		return Efficacy{}, fmt.Errorf("vaccine %s: dose %d not configured", v.Name, dose)
	}
	age = model.ClampAge(age)
	eff := Efficacy{
		Infection:    make(map[model.VariantID]float64, len(v.variantIDs)),
		Symptoms:     make(map[model.VariantID]float64, len(v.variantIDs)),
		WaningFactor: v.WaningFactor,
	}
	for _, id := range v.variantIDs {
		eff.Infection[id] = v.Sterilisation[dose][id][age]
		eff.Symptoms[id] = v.Symptomatic[dose][id][age]
	}
	return eff, nil
}

// GenerateTrajectory plans the person's dose sequence starting from date.
// Each dose is offset by the matching days_to_next_dose entry, and each
// dose's prior protection is the previous dose's target scaled by the waning
// factor, so a lapsed schedule resumes from the waned level.
func (v *Vaccine) GenerateTrajectory(p *model.Person, doseNumbers []int, daysToNextDose []int, date time.Time) (*Trajectory, error) {
	if len(doseNumbers) == 0 {
		return nil, fmt.Errorf("vaccine %s: empty dose sequence", v.Name)
	}
	if len(doseNumbers) != len(daysToNextDose) {
		return nil, fmt.Errorf("vaccine %s: %d doses but %d offsets", v.Name, len(doseNumbers), len(daysToNextDose))
	}
	prior := v.collectPriorEfficacy(p)
	doses := make([]Dose, 0, len(doseNumbers))
	for i, number := range doseNumbers {
		if number < 0 || number >= len(v.DaysAdministeredToEffective) {
			return nil, fmt.Errorf("vaccine %s: no timing for dose %d", v.Name, number)
		}
		date = date.Add(time.Duration(daysToNextDose[i]) * 24 * time.Hour)
		target, err := v.efficacyForDose(number, p.Age)
		if err != nil {
			return nil, err
		}
		doses = append(doses, NewDose(
			number,
			date,
			v.DaysAdministeredToEffective[number],
			v.DaysEffectiveToWaning[number],
			v.DaysWaning[number],
			prior,
			target,
		))
		prior = target.Scale(target.WaningFactor)
	}
	return NewTrajectory(v.Name, doses, v.variantIDs), nil
}

// Vaccines is the loaded vaccine catalogue.
type Vaccines struct {
	byName map[string]*Vaccine
	order  []*Vaccine
}

type vaccinesFile struct {
	Vaccines map[string]vaccineConfig `yaml:"vaccines"`
}

// LoadVaccinesFromReader parses the vaccine catalogue YAML against the
// variant registry.
func LoadVaccinesFromReader(r io.Reader, registry *model.VariantRegistry) (*Vaccines, error) {
	var file vaccinesFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("decode vaccines config: %w", err)
	}
	names := make([]string, 0, len(file.Vaccines))
	for name := range file.Vaccines {
		names = append(names, name)
	}
	sort.Strings(names)
	vs := &Vaccines{byName: make(map[string]*Vaccine, len(names))}
	for _, name := range names {
		v, err := newVaccine(name, file.Vaccines[name], registry)
		if err != nil {
			return nil, err
		}
		vs.byName[name] = v
		vs.order = append(vs.order, v)
	}
	return vs, nil
}

// ByName resolves a vaccine brand; unknown brands are fatal.
func (vs *Vaccines) ByName(name string) (*Vaccine, error) {
	v, ok := vs.byName[name]
	if !ok {
		return nil, fmt.Errorf("unknown vaccine %q", name)
	}
	return v, nil
}

// All returns the catalogue in name order.
func (vs *Vaccines) All() []*Vaccine { return vs.order }
