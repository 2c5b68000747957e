package infection

import (
	"fmt"

	"episim/model"
)

// Stage pairs a symptom tag with the sampler for how long the stage lasts.
type Stage struct {
	Tag        model.SymptomTag
	Completion Sampler
}

// TimedStage is one realised step of a disease course: the tag entered and
// the cumulative time (days from infection) at which it is entered.
type TimedStage struct {
	Time float64
	Tag  model.SymptomTag
}

// TrajectoryMaker holds the ordered stage templates for courses that peak at
// one particular severity tag.
type TrajectoryMaker struct {
	MostSevere model.SymptomTag
	Stages     []Stage
}

// Generate realises the template into a concrete timed course. Every stage
// duration is sampled fresh, so two infections with the same peak severity
// run on different clocks. The first entry is always at time 0.
func (tm *TrajectoryMaker) Generate(rng *RNG) []TimedStage {
	out := make([]TimedStage, len(tm.Stages))
	cumulative := 0.0
	for i, stage := range tm.Stages {
		out[i] = TimedStage{Time: cumulative, Tag: stage.Tag}
		d := stage.Completion.Sample(rng)
		if d < 0 {
			d = 0 // stage durations are days; a wide normal can dip below
		}
		cumulative += d
	}
	return out
}

// TrajectoryMakers maps each peak severity tag to its course template. It is
// built once from configuration and passed by reference to every selector;
// there is no package-level instance.
type TrajectoryMakers struct {
	makers map[model.SymptomTag]*TrajectoryMaker
}

// NewTrajectoryMakers builds the template table from configuration. The most
// severe tag of each trajectory is its last stage's tag; a duplicate peak tag
// is a configuration error.
func NewTrajectoryMakers(tags *model.TagSet, cfgs []TrajectoryConfig) (*TrajectoryMakers, error) {
	tms := &TrajectoryMakers{makers: make(map[model.SymptomTag]*TrajectoryMaker, len(cfgs))}
	for _, cfg := range cfgs {
		if len(cfg.Stages) == 0 {
			return nil, fmt.Errorf("trajectory: empty stage list")
		}
		tm := &TrajectoryMaker{Stages: make([]Stage, len(cfg.Stages))}
		for i, sc := range cfg.Stages {
			tag, err := tags.FromString(sc.SymptomTag)
			if err != nil {
				return nil, fmt.Errorf("trajectory stage: %w", err)
			}
			sampler, err := NewSampler(sc.CompletionTime)
			if err != nil {
				return nil, fmt.Errorf("trajectory stage %q: %w", sc.SymptomTag, err)
			}
			tm.Stages[i] = Stage{Tag: tag, Completion: sampler}
		}
		tm.MostSevere = tm.Stages[len(tm.Stages)-1].Tag
		if _, ok := tms.makers[tm.MostSevere]; ok {
			return nil, fmt.Errorf("trajectory: duplicate course for tag %q", tags.Name(tm.MostSevere))
		}
		tms.makers[tm.MostSevere] = tm
	}
	return tms, nil
}

// Generate realises a course peaking at tag. Requesting an unconfigured tag
// is a lookup error, not a silent default.
func (tms *TrajectoryMakers) Generate(tag model.SymptomTag, rng *RNG) ([]TimedStage, error) {
	tm, ok := tms.makers[tag]
	if !ok {
		return nil, fmt.Errorf("no trajectory configured for tag %d", int(tag))
	}
	return tm.Generate(rng), nil
}
