package vaccine

import (
	"sort"
	"time"

	"episim/model"
)

// Trajectory is a person's planned dose sequence. It carries a stage cursor
// over the doses plus a snapshot of the immunity the person had before the
// first dose, so that vaccination never weakens protection already earned.
// It implements model.VaccineCourse. One trajectory belongs to one person.
type Trajectory struct {
	Name       string
	Doses      []Dose
	VariantIDs []model.VariantID

	stage int

	priorSusceptibility map[model.VariantID]float64
	priorMultiplier     map[model.VariantID]float64
}

// NewTrajectory sorts the doses by administration date and records the
// pre-trajectory immunity implied by the first dose's prior efficacy.
func NewTrajectory(name string, doses []Dose, ids []model.VariantID) *Trajectory {
	sorted := make([]Dose, len(doses))
	copy(sorted, doses)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].DateAdministered.Before(sorted[j].DateAdministered)
	})
	t := &Trajectory{
		Name:                name,
		Doses:               sorted,
		VariantIDs:          ids,
		priorSusceptibility: make(map[model.VariantID]float64, len(ids)),
		priorMultiplier:     make(map[model.VariantID]float64, len(ids)),
	}
	prior := sorted[0].Prior
	for id, eff := range prior.Infection {
		t.priorSusceptibility[id] = 1.0 - eff
	}
	for id, eff := range prior.Symptoms {
		t.priorMultiplier[id] = 1.0 - eff
	}
	return t
}

// CurrentDose is the dose number at the stage cursor.
func (t *Trajectory) CurrentDose() int { return t.Doses[t.stage].Number }

// DoseIndexAt locates the dose governing a date regardless of the cursor:
// the latest dose administered on or before the date, or the first dose for
// earlier dates.
func (t *Trajectory) DoseIndexAt(date time.Time) int {
	idx := sort.Search(len(t.Doses), func(i int) bool {
		return t.Doses[i].DateAdministered.After(date)
	}) - 1
	if idx < 0 {
		return 0
	}
	return idx
}

// updateStage advances the cursor one dose when the next administration date
// has arrived.
func (t *Trajectory) updateStage(date time.Time) {
	if t.stage < len(t.Doses)-1 && !date.Before(t.Doses[t.stage+1].DateAdministered) {
		t.stage++
	}
}

// GetEfficacy evaluates the cursor dose's protection at a date.
func (t *Trajectory) GetEfficacy(date time.Time, id model.VariantID, kind Protection) (float64, error) {
	return t.Doses[t.stage].Efficacy(date, id, kind)
}

// Susceptibility is 1 minus the protection against infection.
func (t *Trajectory) Susceptibility(date time.Time, id model.VariantID) (float64, error) {
	eff, err := t.GetEfficacy(date, id, ProtectionInfection)
	if err != nil {
		return 0, err
	}
	return 1.0 - eff, nil
}

// EffectiveMultiplier is 1 minus the protection against symptoms.
func (t *Trajectory) EffectiveMultiplier(date time.Time, id model.VariantID) (float64, error) {
	eff, err := t.GetEfficacy(date, id, ProtectionSymptoms)
	if err != nil {
		return 0, err
	}
	return 1.0 - eff, nil
}

// IsFinished reports whether the final dose has completed waning.
func (t *Trajectory) IsFinished(date time.Time) bool {
	return date.After(t.Doses[len(t.Doses)-1].DateFinished)
}

// UpdateEffect advances the cursor and folds the current protection into the
// person's immunity, taking the minimum against the pre-trajectory values so
// immunity from earlier infection or vaccination is never diluted. Once the
// trajectory has finished, the person's course handle is cleared and the
// last written values persist.
func (t *Trajectory) UpdateEffect(p *model.Person, date time.Time) error {
	if t.IsFinished(date) {
		p.VaccineTrajectory = nil
		return nil
	}
	t.updateStage(date)
	for _, id := range t.VariantIDs {
		susceptibility, err := t.Susceptibility(date, id)
		if err != nil {
			return err
		}
		multiplier, err := t.EffectiveMultiplier(date, id)
		if err != nil {
			return err
		}
		if prior, ok := t.priorSusceptibility[id]; ok && prior < susceptibility {
			susceptibility = prior
		}
		if prior, ok := t.priorMultiplier[id]; ok && prior < multiplier {
			multiplier = prior
		}
		p.Immunity.SetSusceptibility(id, susceptibility)
		p.Immunity.AddMultiplier(id, multiplier)
	}
	return nil
}
