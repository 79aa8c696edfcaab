package costmap

import "math"

// minCrash floors the crash probability so risk components stay positive
// and the compounding term never degenerates.
const minCrash = 1e-5

// poly evaluates the capability polynomial
// c0 + c1*s + c2*r + c3*s^2 + c4*s*r + c5*r^2.
func poly(c []float64, s, r float64) float64 {
	return c[0] + c[1]*s + c[2]*r + c[3]*s*s + c[4]*s*r + c[5]*r*r
}

// clampCrash bounds a raw crash probability to [minCrash, 1].
func clampCrash(v float64) float64 {
	if v < minCrash || math.IsNaN(v) {
		return minCrash
	}
	if v > 1 {
		return 1
	}
	return v
}

// compoundRisk compounds a per-reference-distance crash probability over
// steps reference-distance units: 1-(1-crash)^steps.
func compoundRisk(crash, steps float64) float64 {
	return 1 - math.Pow(1-crash, steps)
}

// clamp01 bounds v to [0, 1]; NaN clamps to 0.
func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// degrees converts radians to degrees.
func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

// polyExtrema evaluates the polynomial at the four corners of the
// slope/rock limit box and returns the min and max. The quadratic can take
// interior extrema, but the corner values are adequate for deriving the
// normalization scale and the ordering bound, neither of which affects
// which paths are found.
func polyExtrema(c []float64, r RobotConfig) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, s := range []float64{r.SlopeMin, r.SlopeMax} {
		for _, rock := range []float64{r.RockMin, r.RockMax} {
			v := poly(c, s, rock)
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	return lo, hi
}
