package pricing

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// stdNormal is the standard normal distribution backing every formula in
// this package.
var stdNormal = distuv.Normal{Mu: 0, Sigma: 1}

// saturationBound is the point past which the CDF tail is smaller than any
// representable contribution to a price; inputs beyond it saturate to 0/1
// instead of exercising erfc in its underflow range.
const saturationBound = 40.0

// NormCDF evaluates the standard normal cumulative distribution. Total over
// all finite reals: extreme inputs saturate, NaN propagates to the caller's
// finiteness check.
func NormCDF(x float64) float64 {
	switch {
	case x < -saturationBound:
		return 0
	case x > saturationBound:
		return 1
	}
	return stdNormal.CDF(x)
}

// NormPDF evaluates the standard normal density.
func NormPDF(x float64) float64 {
	if math.Abs(x) > saturationBound {
		return 0
	}
	return stdNormal.Prob(x)
}
