package vaccine

import (
	"time"

	"episim/model"
)

// Dose is one administration of a vaccine with its full efficacy timeline:
// a ramp from the prior protection up to the target, a plateau, a linear
// decay to the waned residual and a flat tail.
type Dose struct {
	Number int

	DateAdministered time.Time
	DateEffective    time.Time
	DateWaning       time.Time
	DateFinished     time.Time

	DaysToEffective       int
	DaysEffectiveToWaning int
	DaysWaning            int

	Prior  Efficacy
	Target Efficacy
}

// NewDose derives the boundary dates from the administration date by whole
// day offsets.
func NewDose(number int, administered time.Time, daysToEffective, daysEffectiveToWaning, daysWaning int, prior, target Efficacy) Dose {
	day := 24 * time.Hour
	return Dose{
		Number:                number,
		DateAdministered:      administered,
		DateEffective:         administered.Add(time.Duration(daysToEffective) * day),
		DateWaning:            administered.Add(time.Duration(daysToEffective+daysEffectiveToWaning) * day),
		DateFinished:          administered.Add(time.Duration(daysToEffective+daysEffectiveToWaning+daysWaning) * day),
		DaysToEffective:       daysToEffective,
		DaysEffectiveToWaning: daysEffectiveToWaning,
		DaysWaning:            daysWaning,
		Prior:                 prior,
		Target:                target,
	}
}

// wholeDays truncates the elapsed time between two dates to days, matching
// the day-resolution the piecewise efficacy is defined on.
func wholeDays(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

// Efficacy evaluates the piecewise-linear protection at a date. The segments
// are continuous at every boundary: the ramp reaches the target exactly at
// the effective date, and the decay reaches the waned residual exactly at
// the finished date. Dates before administration return the prior level.
func (d *Dose) Efficacy(date time.Time, id model.VariantID, kind Protection) (float64, error) {
	target, err := d.Target.Get(kind, id)
	if err != nil {
		return 0, err
	}
	waned := target * d.Target.WaningFactor
	switch {
	case date.After(d.DateFinished):
		return waned, nil
	case date.After(d.DateWaning):
		return interpolate(target, waned, d.DaysWaning, wholeDays(d.DateWaning, date)), nil
	case date.After(d.DateEffective):
		return target, nil
	case !date.Before(d.DateAdministered):
		prior, err := d.Prior.Get(kind, id)
		if err != nil {
			return 0, err
		}
		return interpolate(prior, target, d.DaysToEffective, wholeDays(d.DateAdministered, date)), nil
	}
	return d.Prior.Get(kind, id)
}

func interpolate(from, to float64, duration, elapsed int) float64 {
	if duration <= 0 {
		return to
	}
	return from + (to-from)*float64(elapsed)/float64(duration)
}
