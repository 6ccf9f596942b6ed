package models

import "math"

// OptionType distinguishes calls from puts.
type OptionType string

const (
	Call OptionType = "call"
	Put  OptionType = "put"
)

func (o OptionType) Valid() bool {
	return o == Call || o == Put
}

// MarketParameters describes one option's market and contract state.
// Values are never mutated after construction, so a single instance can be
// shared across concurrent pricing calls.
type MarketParameters struct {
	Spot          float64 `json:"spot"`
	Strike        float64 `json:"strike"`
	TimeToExpiry  float64 `json:"time_to_expiry"` // years, 0 means expiry
	RiskFreeRate  float64 `json:"risk_free_rate"`
	Volatility    float64 `json:"volatility"`
	DividendYield float64 `json:"dividend_yield"`
}

// Validate checks the hard invariants: S > 0, K > 0, sigma > 0, T >= 0,
// and every field finite. It returns an *InvalidParameterError naming the
// first violated field.
func (m MarketParameters) Validate() error {
	switch {
	case !isFinite(m.Spot) || m.Spot <= 0:
		return &InvalidParameterError{Param: "spot", Value: m.Spot, Reason: "must be positive"}
	case !isFinite(m.Strike) || m.Strike <= 0:
		return &InvalidParameterError{Param: "strike", Value: m.Strike, Reason: "must be positive"}
	case !isFinite(m.TimeToExpiry) || m.TimeToExpiry < 0:
		return &InvalidParameterError{Param: "time_to_expiry", Value: m.TimeToExpiry, Reason: "must be non-negative"}
	case !isFinite(m.Volatility) || m.Volatility <= 0:
		return &InvalidParameterError{Param: "volatility", Value: m.Volatility, Reason: "must be positive"}
	case !isFinite(m.RiskFreeRate):
		return &InvalidParameterError{Param: "risk_free_rate", Value: m.RiskFreeRate, Reason: "must be finite"}
	case !isFinite(m.DividendYield):
		return &InvalidParameterError{Param: "dividend_yield", Value: m.DividendYield, Reason: "must be finite"}
	}
	return nil
}

// WithVolatility returns a copy with sigma replaced. Used by the implied
// volatility solver, which treats the input sigma as a placeholder.
func (m MarketParameters) WithVolatility(sigma float64) MarketParameters {
	m.Volatility = sigma
	return m
}

// IntrinsicValue is the immediate-exercise payoff.
func (m MarketParameters) IntrinsicValue(optType OptionType) float64 {
	if optType == Call {
		return math.Max(m.Spot-m.Strike, 0)
	}
	return math.Max(m.Strike-m.Spot, 0)
}

// DiscountedSpot is S*e^(-qT), the forward-adjusted spot.
func (m MarketParameters) DiscountedSpot() float64 {
	return m.Spot * math.Exp(-m.DividendYield*m.TimeToExpiry)
}

// DiscountedStrike is K*e^(-rT).
func (m MarketParameters) DiscountedStrike() float64 {
	return m.Strike * math.Exp(-m.RiskFreeRate*m.TimeToExpiry)
}

// Greeks holds the analytic sensitivities of an option price. Theta is
// annualized and vega/rho are per unit move; the Per* helpers rescale to
// the per-day / per-percentage-point conventions used in reports.
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Vega  float64 `json:"vega"`
	Theta float64 `json:"theta"`
	Rho   float64 `json:"rho"`
}

// ThetaPerDay is the time decay per calendar day.
func (g Greeks) ThetaPerDay() float64 { return g.Theta / 365 }

// VegaPerPoint is the price change per one percentage point of volatility.
func (g Greeks) VegaPerPoint() float64 { return g.Vega / 100 }

// RhoPerPoint is the price change per one percentage point of rate.
func (g Greeks) RhoPerPoint() float64 { return g.Rho / 100 }

// PricingResult is the outcome of one analytic pricing call.
type PricingResult struct {
	OptionType OptionType `json:"option_type"`
	Price      float64    `json:"price"`
	Greeks     Greeks     `json:"greeks"`
}

// SolverOutcome is the terminal state of one implied volatility run. When
// Converged is false, ImpliedVol holds the last best estimate and the
// accompanying error explains the failure.
type SolverOutcome struct {
	ImpliedVol float64 `json:"implied_vol"`
	Iterations int     `json:"iterations"`
	Residual   float64 `json:"residual"` // price(ImpliedVol) - observed
	Converged  bool    `json:"converged"`
}

// SimulationResult is a Monte Carlo price estimate with its error bar.
// Estimate and StdError are reproducible bit-for-bit for a given seed and
// parameter set, independent of worker count.
type SimulationResult struct {
	Estimate float64 `json:"estimate"`
	StdError float64 `json:"std_error"`
	Samples  int     `json:"samples"`
	Seed     uint64  `json:"seed"`
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
