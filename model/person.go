package model

import (
	"fmt"
	"time"
)

// Sex of a person, as used to index outcome rate tables.
type Sex uint8

const (
	Male Sex = iota
	Female
)

// ParseSex accepts the short forms used by rate tables ("m"/"f").
func ParseSex(s string) (Sex, error) {
	switch s {
	case "m", "male":
		return Male, nil
	case "f", "female":
		return Female, nil
	}
	return 0, fmt.Errorf("unknown sex %q", s)
}

// String returns the long column-name form.
func (s Sex) String() string {
	if s == Female {
		return "female"
	}
	return "male"
}

// HealthStatus is the tri-state result of advancing an active infection.
type HealthStatus int

const (
	StatusInfected HealthStatus = iota
	StatusRecovered
	StatusDead
)

func (s HealthStatus) String() string {
	switch s {
	case StatusRecovered:
		return "recovered"
	case StatusDead:
		return "dead"
	default:
		return "infected"
	}
}

// ActiveInfection is the person-owned handle to an ongoing infection. The
// concrete type lives in the infection package; the simulator only needs to
// advance it and read its transmission probability.
type ActiveInfection interface {
	// Update advances symptoms and infectiousness to the given simulation
	// time (days) and returns the person's new status, recovered checked
	// before dead.
	Update(time float64) HealthStatus
	// Probability is the momentary infectiousness set by the last Update.
	Probability() float64
	// Variant is the id of the infecting variant.
	Variant() VariantID
	// StartTime is the simulation time at which infection happened.
	StartTime() float64
}

// VaccineCourse is the person-owned handle to an ongoing dose trajectory.
type VaccineCourse interface {
	Susceptibility(date time.Time, id VariantID) (float64, error)
	EffectiveMultiplier(date time.Time, id VariantID) (float64, error)
	// UpdateEffect advances the dose cursor and folds the current efficacy
	// into the person's Immunity record; it clears the person's course once
	// the final dose has finished waning.
	UpdateEffect(p *Person, date time.Time) error
	IsFinished(date time.Time) bool
}

// Person is the external population entity the core operates on. The core
// never reads or mutates another person's state from within one person's
// operations, so independent persons may be updated in parallel without
// synchronization.
type Person struct {
	ID          int
	Age         int
	Sex         Sex
	Comorbidity string // empty when none
	Region      string
	CareHome    bool // residence selects the care-setting rate bucket

	Immunity          *Immunity
	Infection         ActiveInfection
	VaccineTrajectory VaccineCourse

	Dead bool
}

// NewPerson returns a person with a fresh Immunity record.
func NewPerson(id, age int, sex Sex) *Person {
	return &Person{ID: id, Age: age, Sex: sex, Immunity: NewImmunity()}
}

// ClampAge normalizes an age into [0,99]; out-of-range ages are a documented
// normalization, not an error.
func ClampAge(age int) int {
	if age < 0 {
		return 0
	}
	if age > 99 {
		return 99
	}
	return age
}
