package montecarlo

import (
	"math"
	"sort"
	"time"

	"github.com/bcdannyboy/quantlib/models"
	"github.com/bcdannyboy/quantlib/quantlog"
)

// RiskMetrics summarizes the loss tail of a long position entered at
// Premium, over the simulated discounted payoffs.
type RiskMetrics struct {
	Confidence        float64 `json:"confidence"`
	VaR               float64 `json:"var"`
	ExpectedShortfall float64 `json:"expected_shortfall"`
}

// RiskReport pairs the simulation that produced the metrics with the
// metrics themselves.
type RiskReport struct {
	Simulation models.SimulationResult `json:"simulation"`
	Premium    float64                 `json:"premium"`
	Metrics    []RiskMetrics           `json:"metrics"`
}

// Risk runs one simulation and computes Value at Risk and expected
// shortfall at each requested confidence level for a long position bought
// at premium. Loss is premium minus discounted payoff, so the worst case
// for a long option is losing the premium.
func (e *Engine) Risk(params models.MarketParameters, optType models.OptionType, premium float64, confidences []float64) (RiskReport, error) {
	start := time.Now()
	rep, err := e.risk(params, optType, premium, confidences)
	quantlog.Event(e.log, "monte_carlo_risk", start, err)
	return rep, err
}

func (e *Engine) risk(params models.MarketParameters, optType models.OptionType, premium float64, confidences []float64) (RiskReport, error) {
	for _, c := range confidences {
		if c <= 0 || c >= 1 {
			return RiskReport{}, &models.InvalidParameterError{Param: "confidence", Value: c, Reason: "must be in (0, 1)"}
		}
	}
	if premium < 0 || math.IsNaN(premium) {
		return RiskReport{}, &models.InvalidParameterError{Param: "premium", Value: premium, Reason: "must be non-negative"}
	}

	payoffs := make([]float64, e.settings.Simulations)
	sim, err := e.simulate(params, optType, payoffs)
	if err != nil {
		return RiskReport{}, err
	}

	losses := make([]float64, len(payoffs))
	for i, p := range payoffs {
		losses[i] = premium - p
	}
	sort.Float64s(losses)

	report := RiskReport{Simulation: sim, Premium: premium, Metrics: make([]RiskMetrics, 0, len(confidences))}
	for _, conf := range confidences {
		idx := int(float64(len(losses)) * conf)
		if idx >= len(losses) {
			idx = len(losses) - 1
		}
		valueAtRisk := losses[idx]

		tail := losses[idx:]
		var sum float64
		for _, l := range tail {
			sum += l
		}
		report.Metrics = append(report.Metrics, RiskMetrics{
			Confidence:        conf,
			VaR:               valueAtRisk,
			ExpectedShortfall: sum / float64(len(tail)),
		})
	}
	return report, nil
}
