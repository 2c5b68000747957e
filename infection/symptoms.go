package infection

import (
	"sort"

	"episim/model"
)

// Symptoms is the per-infection disease course: a realised trajectory plus a
// stage cursor advanced by the owning infection's updates. One Symptoms value
// belongs to one infection and is never shared.
type Symptoms struct {
	Tag         model.SymptomTag // current stage tag
	MaxTag      model.SymptomTag // peak severity of the whole course
	MaxSeverity float64          // the uniform draw that selected the outcome
	Trajectory  []TimedStage
	Stage       int

	// OnsetTime is days from infection until symptoms first become visible;
	// nil for courses that turn asymptomatic before any visible stage.
	OnsetTime *float64

	tags *model.TagSet
}

// NewSymptoms draws the final outcome against the cumulative probability
// vector, realises the matching trajectory and locates symptom onset. The
// course starts in the exposed stage.
func NewSymptoms(tags *model.TagSet, cumulative []float64, makers *TrajectoryMakers, rng *RNG) (*Symptoms, error) {
	s := &Symptoms{
		Tag:         tags.Exposed(),
		MaxSeverity: rng.Float64(),
		tags:        tags,
	}
	idx := sort.SearchFloat64s(cumulative, s.MaxSeverity)
	if idx >= len(cumulative) {
		idx = len(cumulative) - 1
	}
	s.MaxTag = tags.OutcomeTag(idx)

	trajectory, err := makers.Generate(s.MaxTag, rng)
	if err != nil {
		return nil, err
	}
	s.Trajectory = trajectory
	s.OnsetTime = symptomOnset(tags, trajectory)
	return s, nil
}

// symptomOnset walks the course accumulating stage entry times until the
// first visible stage. A course that reaches the asymptomatic stage first
// never shows symptoms.
func symptomOnset(tags *model.TagSet, trajectory []TimedStage) *float64 {
	for _, stage := range trajectory {
		if stage.Tag == tags.Asymptomatic() {
			return nil
		}
		if stage.Tag >= tags.LowestVisible() {
			t := stage.Time
			return &t
		}
	}
	return nil
}

// TimeExposed is the duration of the initial exposed stage, the incubation
// anchor used to position infectiousness profiles.
func (s *Symptoms) TimeExposed() float64 {
	if len(s.Trajectory) < 2 {
		return 0
	}
	return s.Trajectory[1].Time
}

// UpdateTrajectoryStage advances the cursor by at most one stage when the
// time from infection has passed the next stage's entry time. Callers must
// update at a granularity finer than the shortest stage; skipped stages are
// not replayed.
func (s *Symptoms) UpdateTrajectoryStage(timeFromInfection float64) {
	if s.Stage+1 < len(s.Trajectory) && timeFromInfection > s.Trajectory[s.Stage+1].Time {
		s.Stage++
		s.Tag = s.Trajectory[s.Stage].Tag
	}
}

// Recovered reports whether the current stage is a recovery terminal.
func (s *Symptoms) Recovered() bool { return s.tags.IsRecovered(s.Tag) }

// Dead reports whether the current stage is a fatality terminal.
func (s *Symptoms) Dead() bool { return s.tags.IsFatal(s.Tag) }
