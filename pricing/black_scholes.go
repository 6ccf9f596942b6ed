// Package pricing implements closed-form Black-Scholes pricing and Greeks
// for European options on a continuous-dividend underlying.
package pricing

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/bcdannyboy/quantlib/models"
	"github.com/bcdannyboy/quantlib/quantlog"
)

// Pricer evaluates the Black-Scholes formula. It holds no mutable state;
// a single Pricer is safe for concurrent use.
type Pricer struct {
	log *zap.Logger
}

func NewPricer(log *zap.Logger) *Pricer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pricer{log: log}
}

// Price computes the option price and the full Greek vector from one pair
// of d1/d2 values, so price and sensitivities can never drift apart.
// T=0 collapses to intrinsic value with expiry Greeks.
func (p *Pricer) Price(params models.MarketParameters, optType models.OptionType) (models.PricingResult, error) {
	start := time.Now()
	res, err := price(params, optType)
	quantlog.Event(p.log, "pricing", start, err)
	return res, err
}

func price(params models.MarketParameters, optType models.OptionType) (models.PricingResult, error) {
	if !optType.Valid() {
		return models.PricingResult{}, &models.InvalidParameterError{Param: "option_type", Reason: "must be call or put"}
	}
	if err := params.Validate(); err != nil {
		return models.PricingResult{}, err
	}

	S, K, T := params.Spot, params.Strike, params.TimeToExpiry
	r, q, sigma := params.RiskFreeRate, params.DividendYield, params.Volatility

	sqrtT := math.Sqrt(T)
	volT := sigma * sqrtT

	// sigma*sqrt(T) == 0 only when T underflows; treat as expiry rather
	// than dividing by zero below.
	if T == 0 || volT == 0 {
		return expiryResult(params, optType), nil
	}

	d1 := (math.Log(S/K) + (r-q+0.5*sigma*sigma)*T) / volT
	d2 := d1 - volT

	if !finite(d1) || !finite(d2) {
		return models.PricingResult{}, &models.NumericalError{Op: "d1/d2", Detail: "non-finite intermediate"}
	}

	discS := S * math.Exp(-q*T) // S*e^(-qT)
	discK := K * math.Exp(-r*T) // K*e^(-rT)
	pdfD1 := NormPDF(d1)

	var value, delta, theta, rho float64
	if optType == models.Call {
		value = discS*NormCDF(d1) - discK*NormCDF(d2)
		delta = math.Exp(-q*T) * NormCDF(d1)
		theta = -discS*pdfD1*sigma/(2*sqrtT) - r*discK*NormCDF(d2) + q*discS*NormCDF(d1)
		rho = K * T * math.Exp(-r*T) * NormCDF(d2)
	} else {
		value = discK*NormCDF(-d2) - discS*NormCDF(-d1)
		delta = math.Exp(-q*T) * (NormCDF(d1) - 1)
		theta = -discS*pdfD1*sigma/(2*sqrtT) + r*discK*NormCDF(-d2) - q*discS*NormCDF(-d1)
		rho = -K * T * math.Exp(-r*T) * NormCDF(-d2)
	}

	greeks := models.Greeks{
		Delta: delta,
		Gamma: math.Exp(-q*T) * pdfD1 / (S * volT),
		Vega:  discS * pdfD1 * sqrtT,
		Theta: theta,
		Rho:   rho,
	}

	if !finite(value) || !finite(greeks.Gamma) || !finite(greeks.Theta) {
		return models.PricingResult{}, &models.NumericalError{Op: "black_scholes", Detail: "non-finite result"}
	}

	return models.PricingResult{
		OptionType: optType,
		Price:      math.Max(value, 0),
		Greeks:     greeks,
	}, nil
}

// expiryResult handles T=0: the price is exactly intrinsic and the Greeks
// are the discontinuous-but-defined expiry limits.
func expiryResult(params models.MarketParameters, optType models.OptionType) models.PricingResult {
	var delta float64
	if optType == models.Call && params.Spot > params.Strike {
		delta = 1
	}
	if optType == models.Put && params.Spot < params.Strike {
		delta = -1
	}
	return models.PricingResult{
		OptionType: optType,
		Price:      params.IntrinsicValue(optType),
		Greeks:     models.Greeks{Delta: delta},
	}
}

// ParityGap returns call - put - (S*e^(-qT) - K*e^(-rT)), which is zero for
// an arbitrage-free call/put pair on the same parameters.
func ParityGap(call, put float64, params models.MarketParameters) float64 {
	return call - put - (params.DiscountedSpot() - params.DiscountedStrike())
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
