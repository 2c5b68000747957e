package model

// Immunity is the per-person record of protection against each variant.
// Susceptibility is a probability scalar in [0,1] (1 = fully susceptible,
// 0 = immune); the effective multiplier scales the severe-outcome mass of
// the health outcome distribution when the person is infected. Missing
// entries mean the default of 1.0 for both. The record is owned exclusively
// by its person and lives for the person's lifetime.
type Immunity struct {
	Susceptibility      map[VariantID]float64
	EffectiveMultiplier map[VariantID]float64
}

// NewImmunity returns a record with everything at its default.
func NewImmunity() *Immunity {
	return &Immunity{
		Susceptibility:      make(map[VariantID]float64),
		EffectiveMultiplier: make(map[VariantID]float64),
	}
}

// GetSusceptibility returns the person's susceptibility to id, 1.0 if unset.
func (im *Immunity) GetSusceptibility(id VariantID) float64 {
	if s, ok := im.Susceptibility[id]; ok {
		return s
	}
	return 1.0
}

// GetEffectiveMultiplier returns the severity multiplier for id, 1.0 if unset.
func (im *Immunity) GetEffectiveMultiplier(id VariantID) float64 {
	if m, ok := im.EffectiveMultiplier[id]; ok {
		return m
	}
	return 1.0
}

// IsImmune reports full immunity: susceptibility exactly zero.
func (im *Immunity) IsImmune(id VariantID) bool {
	return im.GetSusceptibility(id) == 0.0
}

// AddImmunity grants full immunity against every listed variant, as happens
// on recovery for the infection's cross-immunity group.
func (im *Immunity) AddImmunity(ids []VariantID) {
	for _, id := range ids {
		im.Susceptibility[id] = 0.0
	}
}

// SetSusceptibility overwrites the stored susceptibility for id.
func (im *Immunity) SetSusceptibility(id VariantID, value float64) {
	im.Susceptibility[id] = value
}

// AddMultiplier overwrites the stored effective multiplier for id.
func (im *Immunity) AddMultiplier(id VariantID, value float64) {
	im.EffectiveMultiplier[id] = value
}
