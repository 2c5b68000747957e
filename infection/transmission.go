package infection

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Transmission is the time profile of one infection's infectiousness. A
// value belongs to a single infection; Update stores the momentary
// probability read back by Probability.
type Transmission interface {
	Update(timeFromInfection float64)
	Probability() float64
}

// TransmissionConstant keeps a fixed infectiousness for the whole course.
type TransmissionConstant struct {
	probability float64
}

func NewTransmissionConstant(probability float64) *TransmissionConstant {
	return &TransmissionConstant{probability: probability}
}

func (t *TransmissionConstant) Update(float64)       {}
func (t *TransmissionConstant) Probability() float64 { return t.probability }

// TransmissionGamma shapes infectiousness as norm times a gamma density
// shifted so that infectiousness can begin before symptom onset.
type TransmissionGamma struct {
	shape       float64
	shift       float64
	scale       float64
	norm        float64
	probability float64
}

// NewTransmissionGamma builds the profile. The attenuation factor applies to
// asymptomatic and mild peak severities only when both factors are
// configured; a partial configuration attenuates nothing.
func NewTransmissionGamma(maxInfectiousness, shape, rate, shift float64, attenuation float64) *TransmissionGamma {
	return &TransmissionGamma{
		shape: shape,
		shift: shift,
		scale: 1.0 / rate,
		norm:  maxInfectiousness * attenuation,
	}
}

func (t *TransmissionGamma) Update(timeFromInfection float64) {
	x := timeFromInfection - t.shift
	if x < 0 {
		t.probability = 0
		return
	}
	pdf := distuv.Gamma{Alpha: t.shape, Beta: 1 / t.scale}.Prob(x)
	t.probability = t.norm * pdf
}

func (t *TransmissionGamma) Probability() float64 { return t.probability }

// TimeAtMaxInfectivity is where the gamma density peaks.
func (t *TransmissionGamma) TimeAtMaxInfectivity() float64 {
	return (t.shape-1)*t.scale + t.shift
}

// xnexp evaluates x^n * exp(-x/alpha).
func xnexp(x, n, alpha float64) float64 {
	return math.Pow(x, n) * math.Exp(-x/alpha)
}

// TransmissionXNExp shapes infectiousness as norm * tau^n * exp(-tau/alpha)
// with tau = (t - timeFirstInfectious)/normTime, zero before the person
// becomes infectious. norm is chosen so the profile's peak equals the
// configured maximum probability.
type TransmissionXNExp struct {
	timeFirstInfectious float64
	normTime            float64
	n                   float64
	alpha               float64
	norm                float64
	probability         float64
}

func NewTransmissionXNExp(maxProbability, timeFirstInfectious, normTime, n, alpha float64, attenuation float64) *TransmissionXNExp {
	t := &TransmissionXNExp{
		timeFirstInfectious: timeFirstInfectious,
		normTime:            normTime,
		n:                   n,
		alpha:               alpha,
	}
	// The peak sits at tau = n*alpha.
	t.norm = maxProbability / xnexp(n*alpha, n, alpha) * attenuation
	return t
}

func (t *TransmissionXNExp) Update(timeFromInfection float64) {
	if timeFromInfection <= t.timeFirstInfectious {
		t.probability = 0
		return
	}
	tau := (timeFromInfection - t.timeFirstInfectious) / t.normTime
	t.probability = t.norm * xnexp(tau, t.n, t.alpha)
}

func (t *TransmissionXNExp) Probability() float64 { return t.probability }
