package infection

import "episim/model"

// Infection is one person's active disease episode: the realised symptom
// course plus the infectiousness profile, both clocked from StartTime.
// It implements model.ActiveInfection.
type Infection struct {
	start        float64
	variant      model.VariantID
	Symptoms     *Symptoms
	Transmission Transmission
}

// NewInfection assembles an episode starting at the given simulation time.
func NewInfection(start float64, variant model.VariantID, symptoms *Symptoms, transmission Transmission) *Infection {
	return &Infection{
		start:        start,
		variant:      variant,
		Symptoms:     symptoms,
		Transmission: transmission,
	}
}

// Update advances symptoms and infectiousness to the given simulation time.
// Recovery is checked before death so a tag classified as both terminals
// resolves to recovered.
func (inf *Infection) Update(time float64) model.HealthStatus {
	elapsed := time - inf.start
	inf.Symptoms.UpdateTrajectoryStage(elapsed)
	inf.Transmission.Update(elapsed)
	switch {
	case inf.Symptoms.Recovered():
		return model.StatusRecovered
	case inf.Symptoms.Dead():
		return model.StatusDead
	}
	return model.StatusInfected
}

// Probability is the momentary infectiousness set by the last Update.
func (inf *Infection) Probability() float64 { return inf.Transmission.Probability() }

// Variant is the id of the infecting variant.
func (inf *Infection) Variant() model.VariantID { return inf.variant }

// StartTime is the simulation time at which the infection began.
func (inf *Infection) StartTime() float64 { return inf.start }

// Tag is the current symptom stage.
func (inf *Infection) Tag() model.SymptomTag { return inf.Symptoms.Tag }
