package infection

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Sampler draws non-negative durations in days. Samplers are immutable
// parameter holders shared by concurrent callers; the random source comes
// from the caller on every draw, and distributions are assembled as plain
// value types per call — there is no per-call "freezing" of a distribution
// object, which would dominate run time at population scale.
type Sampler interface {
	Sample(rng *RNG) float64
	// Median is the typical duration: the configured value for a constant,
	// the distribution median otherwise.
	Median() float64
}

// SamplerConfig is the tagged description of a sampler in configuration.
// Parameters follow the scipy conventions the reference rate files use
// (loc shifts, scale stretches); Scale defaults to 1 when omitted.
type SamplerConfig struct {
	Type  string  `yaml:"type"`
	Value float64 `yaml:"value"`
	Loc   float64 `yaml:"loc"`
	Scale float64 `yaml:"scale"`
	A     float64 `yaml:"a"`
	B     float64 `yaml:"b"`
	C     float64 `yaml:"c"`
	S     float64 `yaml:"s"`
}

// NewSampler resolves the type tag once at configuration load. An
// unrecognized type is a fatal configuration error.
func NewSampler(cfg SamplerConfig) (Sampler, error) {
	scale := cfg.Scale
	if scale == 0 {
		scale = 1.0
	}
	switch cfg.Type {
	case "constant":
		return Constant{Value: cfg.Value}, nil
	case "exponential":
		return exponentialSampler{loc: cfg.Loc, scale: scale}, nil
	case "beta":
		return betaSampler{a: cfg.A, b: cfg.B, loc: cfg.Loc, scale: scale}, nil
	case "lognormal":
		return lognormalSampler{s: cfg.S, loc: cfg.Loc, scale: scale}, nil
	case "normal":
		return normalSampler{loc: cfg.Loc, scale: scale}, nil
	case "exponweib":
		return exponweibSampler{a: cfg.A, c: cfg.C, loc: cfg.Loc, scale: scale}, nil
	}
	return nil, fmt.Errorf("unrecognised completion time type %q", cfg.Type)
}

// Constant always returns its fixed value.
type Constant struct {
	Value float64
}

func (c Constant) Sample(*RNG) float64 { return c.Value }
func (c Constant) Median() float64     { return c.Value }

type exponentialSampler struct {
	loc, scale float64
}

func (e exponentialSampler) Sample(rng *RNG) float64 {
	return e.loc + distuv.Exponential{Rate: 1 / e.scale, Src: rng.Src}.Rand()
}

func (e exponentialSampler) Median() float64 {
	return e.loc + distuv.Exponential{Rate: 1 / e.scale}.Quantile(0.5)
}

type betaSampler struct {
	a, b, loc, scale float64
}

func (b betaSampler) Sample(rng *RNG) float64 {
	return b.loc + b.scale*distuv.Beta{Alpha: b.a, Beta: b.b, Src: rng.Src}.Rand()
}

func (b betaSampler) Median() float64 {
	return b.loc + b.scale*distuv.Beta{Alpha: b.a, Beta: b.b}.Quantile(0.5)
}

type lognormalSampler struct {
	s, loc, scale float64
}

func (l lognormalSampler) Sample(rng *RNG) float64 {
	return l.loc + distuv.LogNormal{Mu: math.Log(l.scale), Sigma: l.s, Src: rng.Src}.Rand()
}

func (l lognormalSampler) Median() float64 {
	return l.loc + l.scale // exp(mu) is the lognormal median
}

type normalSampler struct {
	loc, scale float64
}

// Sample does not clamp: normal parameters such as the gamma transmission
// shift are legitimately negative. Callers that need a non-negative duration
// clamp at the point of use.
func (n normalSampler) Sample(rng *RNG) float64 {
	return distuv.Normal{Mu: n.loc, Sigma: n.scale, Src: rng.Src}.Rand()
}

func (n normalSampler) Median() float64 { return n.loc }

// exponweibSampler is the exponentiated Weibull composite. distuv carries a
// plain Weibull only, so sampling inverts the CDF
// F(x) = (1 - exp(-(x/scale)^c))^a directly from a uniform draw.
type exponweibSampler struct {
	a, c, loc, scale float64
}

func (w exponweibSampler) Sample(rng *RNG) float64 {
	u := rng.Float64()
	return w.loc + w.scale*math.Pow(-math.Log(1-math.Pow(u, 1/w.a)), 1/w.c)
}

func (w exponweibSampler) Median() float64 {
	return w.loc + w.scale*math.Pow(-math.Log(1-math.Pow(0.5, 1/w.a)), 1/w.c)
}
