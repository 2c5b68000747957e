package infection

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"episim/model"
)

// CareSetting selects the rate-table population bucket.
type CareSetting uint8

const (
	SettingGeneral CareSetting = iota
	SettingCareHome
)

func (s CareSetting) String() string {
	if s == SettingCareHome {
		return "ch"
	}
	return "gp"
}

// rate-table column parameters, in the roles the outcome formula needs.
var rateParams = []string{
	"asymptomatic", "mild", "hospital", "icu",
	"home_ifr", "hospital_ifr", "icu_ifr",
}

// RateTable holds tabulated infection outcome rates by age band, with one
// column per (setting, parameter, sex).
type RateTable struct {
	bands   []ageBand
	columns map[string][]float64 // column name -> value per band
}

type ageBand struct {
	lo, hi int // inclusive bounds, matching the reference tables
}

// LoadRateTableFromReader parses the outcome rates CSV. The first column is
// the age band ("lo-hi", inclusive); the remaining header cells name the
// rate columns.
func LoadRateTableFromReader(r io.Reader) (*RateTable, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("decode rate table: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("rate table: no data rows")
	}
	header := records[0]
	t := &RateTable{columns: make(map[string][]float64, len(header)-1)}
	for _, name := range header[1:] {
		t.columns[name] = make([]float64, 0, len(records)-1)
	}
	for _, row := range records[1:] {
		if len(row) != len(header) {
			return nil, fmt.Errorf("rate table: row %q has %d cells, want %d", row[0], len(row), len(header))
		}
		lo, hi, err := model.ParseAgeBand(row[0])
		if err != nil {
			return nil, fmt.Errorf("rate table: %w", err)
		}
		t.bands = append(t.bands, ageBand{lo: lo, hi: hi})
		for i, name := range header[1:] {
			v, err := strconv.ParseFloat(row[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("rate table: column %s, band %s: %w", name, row[0], err)
			}
			t.columns[name] = append(t.columns[name], v)
		}
	}
	return t, nil
}

// column fetches one rate column; a missing column is a fatal configuration
// error.
func (t *RateTable) column(setting CareSetting, param string, sex model.Sex) ([]float64, error) {
	name := fmt.Sprintf("%s_%s_%s", setting, param, sex)
	col, ok := t.columns[name]
	if !ok {
		return nil, fmt.Errorf("rate table: missing column %q", name)
	}
	return col, nil
}

// OutcomeGeneratorOptions tune the optional physiological-age rescaling.
// Scaling only activates when an adjusted life expectancy differs from its
// baseline.
type OutcomeGeneratorOptions struct {
	CareHomeMinAge int
	CutoffAge      int
	MaleExpBase    float64
	FemaleExpBase  float64
	MaleExp        float64
	FemaleExp      float64
}

// DefaultOutcomeOptions mirror the reference calibration.
func DefaultOutcomeOptions() OutcomeGeneratorOptions {
	return OutcomeGeneratorOptions{
		CareHomeMinAge: 50,
		CutoffAge:      16,
		MaleExpBase:    79.4,
		FemaleExpBase:  83.1,
		MaleExp:        79.4,
		FemaleExp:      83.1,
	}
}

// OutcomeGenerator produces, for a (care-setting, sex, age) triple, the
// probability vector over the final outcome severities. Built once from a
// rate table, then read-only; concurrent readers need no locking.
type OutcomeGenerator struct {
	tags  *model.TagSet
	probs [2][2][][]float64 // [setting][sex][age] -> outcome vector
	opts  OutcomeGeneratorOptions

	usePhysiologicalAge bool
}

// NewOutcomeGenerator precomputes per-age outcome vectors for both settings
// and sexes using the rate table.
//
// Per band: severe = max(0, 1-(hospital+home_ifr+asymptomatic+mild));
// ward recovery = hospital - hospital_ifr; ICU recovery = max(icu - icu_ifr, 0);
// ward death = max(hospital_ifr - icu_ifr, 0). Death entries are taken as
// fixed and never rescaled; the recovery entries are rescaled so the vector
// sums to one.
func NewOutcomeGenerator(tags *model.TagSet, table *RateTable, opts OutcomeGeneratorOptions) (*OutcomeGenerator, error) {
	g := &OutcomeGenerator{tags: tags, opts: opts}
	g.usePhysiologicalAge = opts.MaleExp != opts.MaleExpBase || opts.FemaleExp != opts.FemaleExpBase

	roles, err := outcomeRoles(tags)
	if err != nil {
		return nil, err
	}
	for _, setting := range []CareSetting{SettingGeneral, SettingCareHome} {
		for _, sex := range []model.Sex{model.Male, model.Female} {
			cols := make(map[string][]float64, len(rateParams))
			for _, param := range rateParams {
				if cols[param], err = table.column(setting, param, sex); err != nil {
					return nil, err
				}
			}
			perAge := make([][]float64, model.MaxAge+1)
			for bi, band := range table.bands {
				probs := buildOutcomeVector(tags.NOutcomes(), roles, func(param string) float64 {
					return cols[param][bi]
				})
				for age := band.lo; age <= band.hi && age <= model.MaxAge; age++ {
					perAge[age] = probs
				}
			}
			for age, p := range perAge {
				if p == nil {
					return nil, fmt.Errorf("rate table: age %d not covered by any band", age)
				}
			}
			g.probs[setting][sex] = perAge
		}
	}
	return g, nil
}

// outcomeIndices resolves the eight outcome roles to vector indices.
type outcomeIndices struct {
	asymptomatic, mild, severe, hospitalised, intensiveCare int
	deadHome, deadHospital, deadICU                         int
}

func outcomeRoles(tags *model.TagSet) (outcomeIndices, error) {
	var idx outcomeIndices
	for _, role := range []struct {
		name string
		dst  *int
	}{
		{"asymptomatic", &idx.asymptomatic},
		{"mild", &idx.mild},
		{"severe", &idx.severe},
		{"hospitalised", &idx.hospitalised},
		{"intensive_care", &idx.intensiveCare},
		{"dead_home", &idx.deadHome},
		{"dead_hospital", &idx.deadHospital},
		{"dead_icu", &idx.deadICU},
	} {
		tag, err := tags.FromString(role.name)
		if err != nil {
			return idx, fmt.Errorf("outcome roles: %w", err)
		}
		*role.dst = int(tag)
	}
	return idx, nil
}

func buildOutcomeVector(n int, idx outcomeIndices, rate func(string) float64) []float64 {
	asymptomatic := rate("asymptomatic")
	mild := rate("mild")
	hospital := rate("hospital")
	icu := rate("icu")
	homeDead := rate("home_ifr")
	hospitalDead := rate("hospital_ifr")
	icuDead := rate("icu_ifr")

	p := make([]float64, n)
	p[idx.asymptomatic] = asymptomatic
	p[idx.mild] = mild
	p[idx.severe] = math.Max(0, 1-(hospital+homeDead+asymptomatic+mild))
	p[idx.hospitalised] = hospital - hospitalDead
	p[idx.intensiveCare] = math.Max(icu-icuDead, 0)
	p[idx.deadHome] = math.Max(homeDead, 0)
	p[idx.deadHospital] = math.Max(hospitalDead-icuDead, 0)
	p[idx.deadICU] = icuDead

	// Death rates stay fixed; rescale the rest to fill the remainder.
	deaths := p[idx.deadHome] + p[idx.deadHospital] + p[idx.deadICU]
	target := math.Max(1-deaths, 0)
	var adjust float64
	for i, v := range p {
		if i != idx.deadHome && i != idx.deadHospital && i != idx.deadICU {
			adjust += v
		}
	}
	if adjust > 0 {
		f := target / adjust
		for i := range p {
			if i != idx.deadHome && i != idx.deadHospital && i != idx.deadICU {
				p[i] *= f
			}
		}
	}
	return p
}

// physiologicalAge rescales chronological age onto the baseline
// life-expectancy axis.
func (g *OutcomeGenerator) physiologicalAge(age int, sex model.Sex) int {
	expBase, exp := g.opts.MaleExpBase, g.opts.MaleExp
	if sex == model.Female {
		expBase, exp = g.opts.FemaleExpBase, g.opts.FemaleExp
	}
	cutoff := float64(g.opts.CutoffAge)
	if float64(age) <= cutoff {
		return age
	}
	if exp == cutoff {
		return model.MaxAge
	}
	m := (expBase - cutoff) / (exp - cutoff)
	scaled := float64(age)*m + cutoff*(1-m)
	if scaled > float64(model.MaxAge) {
		scaled = float64(model.MaxAge)
	}
	return int(math.Round(scaled))
}

// Setting selects the rate bucket for a person: care-home rates apply to
// care-home residents above the configured minimum age.
func (g *OutcomeGenerator) Setting(p *model.Person) CareSetting {
	if p.CareHome && p.Age >= g.opts.CareHomeMinAge {
		return SettingCareHome
	}
	return SettingGeneral
}

// ProbabilitiesFor returns the stored outcome vector. The slice is shared;
// callers that mutate must copy. Ages are clamped into [0,99].
func (g *OutcomeGenerator) ProbabilitiesFor(setting CareSetting, sex model.Sex, age int) []float64 {
	return g.probs[setting][sex][model.ClampAge(age)]
}

// Probabilities returns the outcome vector for a person, applying the
// care-setting rule and physiological age scaling when enabled.
func (g *OutcomeGenerator) Probabilities(p *model.Person) []float64 {
	age := p.Age
	if g.usePhysiologicalAge {
		age = g.physiologicalAge(model.ClampAge(age), p.Sex)
	}
	return g.ProbabilitiesFor(g.Setting(p), p.Sex, age)
}

// ApplyEffectiveMultiplier scales the severe outcome mass (entries from the
// mild/severe boundary k on, plus any mass missing from the vector) by m and
// rescales both halves proportionally so the total stays 1. Zero-probability
// halves contribute nothing rather than dividing to NaN. The input is not
// modified.
func ApplyEffectiveMultiplier(probabilities []float64, k int, m float64) []float64 {
	out := make([]float64, len(probabilities))
	var pMild, total float64
	for i, v := range probabilities {
		total += v
		if i < k {
			pMild += v
		}
	}
	pSevere := (total - pMild) + (1 - total)
	modSevere := pSevere * m
	modMild := 1.0 - modSevere
	for i, v := range probabilities {
		if i < k {
			if pMild > 0 {
				out[i] = v * modMild / pMild
			}
		} else {
			if pSevere > 0 {
				out[i] = v * modSevere / pSevere
			}
		}
	}
	return out
}

// CumulativeSum converts an outcome vector into the monotone form sampled
// against a uniform draw.
func CumulativeSum(probabilities []float64) []float64 {
	out := make([]float64, len(probabilities))
	var c float64
	for i, v := range probabilities {
		c += v
		out[i] = c
	}
	return out
}
