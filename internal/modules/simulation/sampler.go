package simulation

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// ReturnSampler draws one period's fractional return for one asset class.
type ReturnSampler interface {
	distuv.Rander
}

// NewReturnSampler validates the distribution and binds it to the caller's random source.
// Invalid ordering (for example a mode outside [min, max]) is reported here, never at draw time.
func NewReturnSampler(d AssetDistribution, src rand.Source) (ReturnSampler, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d.sampler(src), nil
}

// Sample performs a single draw. It is a convenience for callers that do not keep the sampler.
func Sample(d AssetDistribution, src rand.Source) (float64, error) {
	s, err := NewReturnSampler(d, src)
	if err != nil {
		return 0, err
	}
	return s.Rand(), nil
}

// sampler assumes d has been validated.
func (d AssetDistribution) sampler(src rand.Source) ReturnSampler {
	switch d.Kind {
	case DistributionTriangular:
		// distuv.Triangle panics on a zero-width support.
		if d.Min == d.Max {
			return constantReturn(d.Min)
		}
		return distuv.NewTriangle(d.Min, d.Max, d.Mode, src)
	case DistributionUniform:
		if d.Min == d.Max {
			return constantReturn(d.Min)
		}
		return distuv.Uniform{Min: d.Min, Max: d.Max, Src: src}
	default:
		// Unbounded below: a draw under -1 is a loss larger than the principal and is kept as is.
		return distuv.Normal{Mu: d.Mean, Sigma: d.StdDev, Src: src}
	}
}

// constantReturn is a degenerate distribution that always yields the same return.
type constantReturn float64

func (c constantReturn) Rand() float64 {
	return float64(c)
}
