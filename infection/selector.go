package infection

import (
	"fmt"

	"go.uber.org/zap"

	"episim/model"
)

// transmissionSamplers holds the per-parameter generators a selector draws
// from when assembling one infection's transmission profile. Which fields
// are set depends on the configured type.
type transmissionSamplers struct {
	typ string

	probability Sampler

	maxInfectiousness Sampler
	shape             Sampler
	rate              Sampler
	shift             Sampler

	smearingTimeFirstInfectious Sampler
	smearingPeakPosition        Sampler
	alpha                       Sampler
	maxProbability              Sampler
	normTime                    Sampler

	asymptomaticFactor Sampler
	mildFactor         Sampler
}

func buildSampler(name string, cfg *SamplerConfig) (Sampler, error) {
	if cfg == nil {
		return nil, fmt.Errorf("transmission: missing parameter %q", name)
	}
	s, err := NewSampler(*cfg)
	if err != nil {
		return nil, fmt.Errorf("transmission parameter %q: %w", name, err)
	}
	return s, nil
}

// newTransmissionSamplers resolves the transmission configuration. An
// unknown type string or a missing parameter for the chosen type is a fatal
// configuration error.
func newTransmissionSamplers(cfg TransmissionConfig) (*transmissionSamplers, error) {
	ts := &transmissionSamplers{typ: cfg.Type}
	var err error
	switch cfg.Type {
	case "constant":
		if ts.probability, err = buildSampler("probability", cfg.Probability); err != nil {
			return nil, err
		}
	case "gamma":
		for _, p := range []struct {
			name string
			cfg  *SamplerConfig
			dst  *Sampler
		}{
			{"max_infectiousness", cfg.MaxInfectiousness, &ts.maxInfectiousness},
			{"shape", cfg.Shape, &ts.shape},
			{"rate", cfg.Rate, &ts.rate},
			{"shift", cfg.Shift, &ts.shift},
		} {
			if *p.dst, err = buildSampler(p.name, p.cfg); err != nil {
				return nil, err
			}
		}
	case "xnexp":
		for _, p := range []struct {
			name string
			cfg  *SamplerConfig
			dst  *Sampler
		}{
			{"smearing_time_first_infectious", cfg.SmearingTimeFirstInfectious, &ts.smearingTimeFirstInfectious},
			{"smearing_peak_position", cfg.SmearingPeakPosition, &ts.smearingPeakPosition},
			{"alpha", cfg.Alpha, &ts.alpha},
			{"max_probability", cfg.MaxProbability, &ts.maxProbability},
			{"norm_time", cfg.NormTime, &ts.normTime},
		} {
			if *p.dst, err = buildSampler(p.name, p.cfg); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("unrecognised transmission type %q", cfg.Type)
	}

	// Attenuation is optional but all-or-nothing.
	if cfg.AsymptomaticInfectiousFactor != nil && cfg.MildInfectiousFactor != nil {
		if ts.asymptomaticFactor, err = buildSampler("asymptomatic_infectious_factor", cfg.AsymptomaticInfectiousFactor); err != nil {
			return nil, err
		}
		if ts.mildFactor, err = buildSampler("mild_infectious_factor", cfg.MildInfectiousFactor); err != nil {
			return nil, err
		}
	}
	return ts, nil
}

// Selector turns susceptible persons into infected ones for a single
// variant. It owns no mutable state after construction, so one selector
// serves concurrent workers as long as each supplies its own RNG.
type Selector struct {
	Variant *model.Variant

	tags         *model.TagSet
	outcomes     *OutcomeGenerator
	makers       *TrajectoryMakers
	transmission *transmissionSamplers
	log          *zap.Logger
}

// NewSelector wires the pieces for one variant.
func NewSelector(variant *model.Variant, tags *model.TagSet, outcomes *OutcomeGenerator, makers *TrajectoryMakers, tcfg TransmissionConfig, log *zap.Logger) (*Selector, error) {
	ts, err := newTransmissionSamplers(tcfg)
	if err != nil {
		return nil, fmt.Errorf("variant %s: %w", variant.Name, err)
	}
	return &Selector{
		Variant:      variant,
		tags:         tags,
		outcomes:     outcomes,
		makers:       makers,
		transmission: ts,
		log:          log,
	}, nil
}

// Infect gives the person an active infection starting at the given
// simulation time and grants immunity against the variant's whole
// cross-immunity group. The caller decides whether the exposure succeeds;
// Infect itself never consults susceptibility.
func (s *Selector) Infect(p *model.Person, time float64, rng *RNG) (*Infection, error) {
	probs := s.outcomes.Probabilities(p)
	if m := p.Immunity.GetEffectiveMultiplier(s.Variant.ID); m != 1.0 {
		probs = ApplyEffectiveMultiplier(probs, s.tags.MaxMildIndex(), m)
	}
	cumulative := CumulativeSum(probs)

	symptoms, err := NewSymptoms(s.tags, cumulative, s.makers, rng)
	if err != nil {
		return nil, fmt.Errorf("infect person %d: %w", p.ID, err)
	}

	anchor := symptoms.TimeExposed()
	if symptoms.OnsetTime != nil {
		anchor = *symptoms.OnsetTime
	}
	transmission := s.makeTransmission(anchor, symptoms.MaxTag, rng)

	inf := NewInfection(time, s.Variant.ID, symptoms, transmission)
	p.Infection = inf
	p.Immunity.AddImmunity(s.Variant.ImmunityGroup)
	return inf, nil
}

// attenuation draws the infectiousness reduction for courses that peak at
// asymptomatic or mild severity. Courses peaking higher, or configurations
// without both factors, are not attenuated.
func (s *Selector) attenuation(maxTag model.SymptomTag, rng *RNG) float64 {
	if s.transmission.asymptomaticFactor == nil {
		return 1.0
	}
	switch {
	case maxTag == s.tags.Asymptomatic():
		return s.transmission.asymptomaticFactor.Sample(rng)
	case maxTag > s.tags.Asymptomatic() && int(maxTag) < s.tags.MaxMildIndex():
		return s.transmission.mildFactor.Sample(rng)
	}
	return 1.0
}

// makeTransmission samples a fresh profile anchored to the incubation time.
func (s *Selector) makeTransmission(onset float64, maxTag model.SymptomTag, rng *RNG) Transmission {
	attenuation := s.attenuation(maxTag, rng)
	switch s.transmission.typ {
	case "constant":
		return NewTransmissionConstant(s.transmission.probability.Sample(rng))
	case "gamma":
		return NewTransmissionGamma(
			s.transmission.maxInfectiousness.Sample(rng),
			s.transmission.shape.Sample(rng),
			s.transmission.rate.Sample(rng),
			s.transmission.shift.Sample(rng)+onset,
			attenuation,
		)
	default: // xnexp, the only remaining type after construction
		timeFirstInfectious := onset + s.transmission.smearingTimeFirstInfectious.Sample(rng)
		alpha := s.transmission.alpha.Sample(rng)
		peakPosition := onset - timeFirstInfectious + s.transmission.smearingPeakPosition.Sample(rng)
		return NewTransmissionXNExp(
			s.transmission.maxProbability.Sample(rng),
			timeFirstInfectious,
			s.transmission.normTime.Sample(rng),
			peakPosition/alpha,
			alpha,
			attenuation,
		)
	}
}

// Selectors is the per-variant selector table, read-only once built.
type Selectors map[model.VariantID]*Selector

// NewSelectors builds one selector per declared variant, all sharing the
// outcome generator and trajectory templates.
func NewSelectors(cfg *DiseaseConfig, table *RateTable, log *zap.Logger) (Selectors, error) {
	opts := DefaultOutcomeOptions()
	opts.CareHomeMinAge = cfg.CareHomeMinAge
	outcomes, err := NewOutcomeGenerator(cfg.Tags, table, opts)
	if err != nil {
		return nil, err
	}
	makers, err := NewTrajectoryMakers(cfg.Tags, cfg.Trajectories)
	if err != nil {
		return nil, err
	}
	out := make(Selectors, len(cfg.Variants.Variants()))
	for _, v := range cfg.Variants.Variants() {
		sel, err := NewSelector(v, cfg.Tags, outcomes, makers, cfg.Transmission, log)
		if err != nil {
			return nil, err
		}
		out[v.ID] = sel
	}
	log.Info("infection selectors ready",
		zap.String("disease", cfg.Name),
		zap.Int("variants", len(out)),
		zap.String("transmission", cfg.Transmission.Type))
	return out, nil
}

// ByName resolves a selector by variant name.
func (s Selectors) ByName(registry *model.VariantRegistry, name string) (*Selector, error) {
	v, err := registry.ByName(name)
	if err != nil {
		return nil, err
	}
	sel, ok := s[v.ID]
	if !ok {
		return nil, fmt.Errorf("no selector for variant %q", name)
	}
	return sel, nil
}
