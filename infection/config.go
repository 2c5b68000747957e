package infection

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"episim/model"
)

// StageConfig is one stage of a trajectory in configuration.
type StageConfig struct {
	SymptomTag     string        `yaml:"symptom_tag"`
	CompletionTime SamplerConfig `yaml:"completion_time"`
}

// TrajectoryConfig is one disease course in configuration; its last stage's
// tag is the course's peak severity.
type TrajectoryConfig struct {
	Stages []StageConfig `yaml:"stages"`
}

// TransmissionConfig describes one infectiousness profile. The Type tag
// selects the model; each model reads only its own parameter samplers.
type TransmissionConfig struct {
	Type string `yaml:"type"`

	// constant
	Probability *SamplerConfig `yaml:"probability"`

	// gamma
	MaxInfectiousness *SamplerConfig `yaml:"max_infectiousness"`
	Shape             *SamplerConfig `yaml:"shape"`
	Rate              *SamplerConfig `yaml:"rate"`
	Shift             *SamplerConfig `yaml:"shift"`

	// xnexp
	SmearingTimeFirstInfectious *SamplerConfig `yaml:"smearing_time_first_infectious"`
	SmearingPeakPosition        *SamplerConfig `yaml:"smearing_peak_position"`
	Alpha                       *SamplerConfig `yaml:"alpha"`
	MaxProbability              *SamplerConfig `yaml:"max_probability"`
	NormTime                    *SamplerConfig `yaml:"norm_time"`

	// gamma and xnexp; both must be present for attenuation to apply
	AsymptomaticInfectiousFactor *SamplerConfig `yaml:"asymptomatic_infectious_factor"`
	MildInfectiousFactor         *SamplerConfig `yaml:"mild_infectious_factor"`
}

type variantConfig struct {
	Name          string   `yaml:"name"`
	CrossImmunity []string `yaml:"cross_immunity"`
}

type tagConfig struct {
	Name  string `yaml:"name"`
	Value int    `yaml:"value"`
}

type settingsConfig struct {
	ExposedStage       string   `yaml:"exposed_stage"`
	DefaultLowestStage string   `yaml:"default_lowest_stage"`
	MaxMildSymptomTag  string   `yaml:"max_mild_symptom_tag"`
	AsymptomaticStage  string   `yaml:"asymptomatic_stage"`
	RecoveredStages    []string `yaml:"recovered_stages"`
	FatalityStages     []string `yaml:"fatality_stages"`
	CareHomeMinAge     int      `yaml:"care_home_min_age"`
}

type diseaseFile struct {
	Disease struct {
		Name         string             `yaml:"name"`
		SymptomTags  []tagConfig        `yaml:"symptom_tags"`
		Settings     settingsConfig     `yaml:"settings"`
		Trajectories []TrajectoryConfig `yaml:"trajectories"`
		Transmission TransmissionConfig `yaml:"transmission"`
		Variants     []variantConfig    `yaml:"variants"`
	} `yaml:"disease"`
}

// DiseaseConfig is the fully resolved disease description: tag set, variant
// registry, course templates and transmission parameters. Built once at load
// time, read-only afterwards.
type DiseaseConfig struct {
	Name           string
	Tags           *model.TagSet
	Variants       *model.VariantRegistry
	Trajectories   []TrajectoryConfig
	Transmission   TransmissionConfig
	CareHomeMinAge int
}

// LoadDiseaseConfigFromReader parses and validates a disease YAML file. Any
// unknown tag name, duplicate value, unknown cross-immunity variant or
// missing section is reported here rather than at first use.
func LoadDiseaseConfigFromReader(r io.Reader) (*DiseaseConfig, error) {
	var file diseaseFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("decode disease config: %w", err)
	}
	d := file.Disease
	if d.Name == "" {
		return nil, fmt.Errorf("disease config: missing disease name")
	}

	defs := make([]model.TagDef, len(d.SymptomTags))
	for i, t := range d.SymptomTags {
		defs[i] = model.TagDef{Name: t.Name, Value: t.Value}
	}
	tags, err := model.NewTagSet(defs, model.TagClassifications{
		Exposed:       d.Settings.ExposedStage,
		Recovered:     d.Settings.RecoveredStages,
		Fatality:      d.Settings.FatalityStages,
		Asymptomatic:  d.Settings.AsymptomaticStage,
		LowestVisible: d.Settings.DefaultLowestStage,
		MaxMildTag:    d.Settings.MaxMildSymptomTag,
	})
	if err != nil {
		return nil, fmt.Errorf("disease %s: %w", d.Name, err)
	}

	if len(d.Variants) == 0 {
		return nil, fmt.Errorf("disease %s: no variants declared", d.Name)
	}
	vdefs := make([]model.VariantDef, len(d.Variants))
	for i, v := range d.Variants {
		vdefs[i] = model.VariantDef{Name: v.Name, CrossImmunity: v.CrossImmunity}
	}
	variants, err := model.NewVariantRegistry(vdefs)
	if err != nil {
		return nil, fmt.Errorf("disease %s: %w", d.Name, err)
	}

	if len(d.Trajectories) == 0 {
		return nil, fmt.Errorf("disease %s: no trajectories declared", d.Name)
	}
	// Construct once to validate stage tags and sampler types up front.
	if _, err := NewTrajectoryMakers(tags, d.Trajectories); err != nil {
		return nil, fmt.Errorf("disease %s: %w", d.Name, err)
	}

	careHomeMinAge := d.Settings.CareHomeMinAge
	if careHomeMinAge == 0 {
		careHomeMinAge = DefaultOutcomeOptions().CareHomeMinAge
	}
	return &DiseaseConfig{
		Name:           d.Name,
		Tags:           tags,
		Variants:       variants,
		Trajectories:   d.Trajectories,
		Transmission:   d.Transmission,
		CareHomeMinAge: careHomeMinAge,
	}, nil
}
