package vaccine

import (
	"fmt"

	"episim/model"
)

// Protection distinguishes the two things a vaccine protects against:
// catching the infection at all, and developing severe symptoms once caught.
type Protection uint8

const (
	ProtectionInfection Protection = iota
	ProtectionSymptoms
)

func (p Protection) String() string {
	if p == ProtectionSymptoms {
		return "symptoms"
	}
	return "infection"
}

// Efficacy is a dose's protection level per variant, together with the
// fraction of it retained after waning completes.
type Efficacy struct {
	Infection    map[model.VariantID]float64
	Symptoms     map[model.VariantID]float64
	WaningFactor float64
}

// Get returns the protection against a variant. Asking for a variant the
// vaccine was never configured for is a fatal configuration error.
func (e Efficacy) Get(kind Protection, id model.VariantID) (float64, error) {
	table := e.Infection
	if kind == ProtectionSymptoms {
		table = e.Symptoms
	}
	v, ok := table[id]
	if !ok {
		return 0, fmt.Errorf("no %s efficacy configured for variant %d", kind, id)
	}
	return v, nil
}

// Scale returns the efficacy with every entry multiplied by factor. The
// result's waning factor resets to 1: a scaled efficacy represents the
// already-waned residual and must not wane again.
func (e Efficacy) Scale(factor float64) Efficacy {
	out := Efficacy{
		Infection:    make(map[model.VariantID]float64, len(e.Infection)),
		Symptoms:     make(map[model.VariantID]float64, len(e.Symptoms)),
		WaningFactor: 1.0,
	}
	for id, v := range e.Infection {
		out.Infection[id] = v * factor
	}
	for id, v := range e.Symptoms {
		out.Symptoms[id] = v * factor
	}
	return out
}
