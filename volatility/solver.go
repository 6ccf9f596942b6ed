// Package volatility inverts the Black-Scholes formula for implied
// volatility with a hybrid Newton-Raphson/bisection iteration.
package volatility

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/bcdannyboy/quantlib/config"
	"github.com/bcdannyboy/quantlib/models"
	"github.com/bcdannyboy/quantlib/pricing"
	"github.com/bcdannyboy/quantlib/quantlog"
)

const (
	// vegaFloor is the sensitivity below which a Newton step is numerically
	// meaningless and the solver bisects instead.
	vegaFloor = 1e-8
	// sigmaMax caps bracket expansion; the price at sigmaMax is within
	// float spacing of the arbitrage upper bound for any sane contract.
	sigmaMax = 10.0
	// maxBracketSteps bounds the geometric expansion on each side.
	maxBracketSteps = 64
)

// Settings are the solver's tuning knobs, captured once at construction.
type Settings struct {
	PriceTolerance float64 // convergence on |price - observed|, price units
	VolTolerance   float64 // convergence on the volatility step size
	MaxIterations  int
	InitialGuess   float64
}

// DefaultSettings mirrors the documented configuration defaults.
func DefaultSettings() Settings {
	return Settings{
		PriceTolerance: 1e-6,
		VolTolerance:   1e-12,
		MaxIterations:  100,
		InitialGuess:   0.2,
	}
}

// SettingsFromConfig maps a configuration snapshot onto solver settings.
func SettingsFromConfig(cfg config.Config) Settings {
	return Settings{
		PriceTolerance: cfg.ImpliedVol.Tolerance,
		VolTolerance:   cfg.Numerical.Tolerance,
		MaxIterations:  cfg.ImpliedVol.MaxIterations,
		InitialGuess:   cfg.ImpliedVol.InitialGuess,
	}
}

// Solver recovers the volatility reproducing an observed price. Each Solve
// call is independent; a Solver is safe for concurrent use.
type Solver struct {
	settings Settings
	pricer   *pricing.Pricer
	log      *zap.Logger
}

func NewSolver(settings Settings, log *zap.Logger) *Solver {
	if log == nil {
		log = zap.NewNop()
	}
	def := DefaultSettings()
	if settings.PriceTolerance <= 0 {
		settings.PriceTolerance = def.PriceTolerance
	}
	if settings.VolTolerance <= 0 {
		settings.VolTolerance = def.VolTolerance
	}
	if settings.MaxIterations <= 0 {
		settings.MaxIterations = def.MaxIterations
	}
	if settings.InitialGuess <= 0 {
		settings.InitialGuess = def.InitialGuess
	}
	return &Solver{
		settings: settings,
		// The inner pricer runs once per iteration; it logs through a nop
		// sink so the solver emits a single event per Solve call.
		pricer: pricing.NewPricer(nil),
		log:    log,
	}
}

// state tags where the iteration is in the hybrid scheme.
type state int

const (
	stateInit      state = iota // bracket unset, no step taken
	stateIterating              // last step was Newton
	stateBisecting              // last Newton step rejected, bisected
)

func (s state) String() string {
	switch s {
	case stateIterating:
		return "iterating"
	case stateBisecting:
		return "bisecting"
	}
	return "init"
}

// bracket is a volatility interval known to contain the root. Price is
// monotonically increasing in sigma, so price(lo) <= observed <= price(hi).
type bracket struct {
	lo, hi float64
	set    bool
}

// tighten narrows the bracket with a fresh evaluation at sigma.
func (b *bracket) tighten(sigma, residual float64) {
	if !b.set {
		return
	}
	if residual < 0 {
		b.lo = math.Max(b.lo, sigma)
	} else {
		b.hi = math.Min(b.hi, sigma)
	}
}

// contains reports whether a candidate step stays inside the bracket.
func (b *bracket) contains(sigma float64) bool {
	return !b.set || (sigma > b.lo && sigma < b.hi)
}

// Solve returns the volatility at which the analytic price matches
// observed, with iteration diagnostics. The sigma field of params is
// ignored. Failures are typed: PriceOutOfBoundsError before any iteration,
// ConvergenceError when the budget runs out, and the outcome always carries
// the last estimate.
func (s *Solver) Solve(observed float64, params models.MarketParameters, optType models.OptionType) (models.SolverOutcome, error) {
	start := time.Now()
	out, err := s.solve(observed, params, optType)
	quantlog.Event(s.log, "implied_vol", start, err)
	return out, err
}

func (s *Solver) solve(observed float64, params models.MarketParameters, optType models.OptionType) (models.SolverOutcome, error) {
	params = params.WithVolatility(s.settings.InitialGuess)
	if err := params.Validate(); err != nil {
		return models.SolverOutcome{}, err
	}
	if !optType.Valid() {
		return models.SolverOutcome{}, &models.InvalidParameterError{Param: "option_type", Reason: "must be call or put"}
	}

	lower, upper := priceBounds(params, optType)
	if observed <= lower || observed >= upper {
		return models.SolverOutcome{}, &models.PriceOutOfBoundsError{Observed: observed, Lower: lower, Upper: upper}
	}

	sigma := s.settings.InitialGuess
	st := stateInit
	var br bracket
	var residual float64

	for iter := 1; iter <= s.settings.MaxIterations; iter++ {
		res, err := s.pricer.Price(params.WithVolatility(sigma), optType)
		if err != nil {
			return models.SolverOutcome{ImpliedVol: sigma, Iterations: iter}, err
		}
		residual = res.Price - observed

		if math.Abs(residual) <= s.settings.PriceTolerance {
			return models.SolverOutcome{ImpliedVol: sigma, Iterations: iter, Residual: residual, Converged: true}, nil
		}
		br.tighten(sigma, residual)

		var next float64
		newton := res.Greeks.Vega >= vegaFloor
		if newton {
			next = sigma - residual/res.Greeks.Vega
		}

		if newton && next > 0 && br.contains(next) {
			st = stateIterating
		} else {
			// Newton rejected: make sure a bracket exists, then take one
			// bisection step and hand control back to the main iteration.
			if !br.set {
				var err error
				br, err = s.expandBracket(observed, params, optType, sigma)
				if err != nil {
					return models.SolverOutcome{ImpliedVol: sigma, Iterations: iter, Residual: residual},
						&models.ConvergenceError{Iterations: iter, LastEstimate: sigma, Residual: residual}
				}
			}
			next = 0.5 * (br.lo + br.hi)
			st = stateBisecting
		}

		if math.Abs(next-sigma) <= s.settings.VolTolerance {
			// Residual is defined at the returned estimate, so price once
			// more at next before reporting.
			res, err := s.pricer.Price(params.WithVolatility(next), optType)
			if err != nil {
				return models.SolverOutcome{ImpliedVol: next, Iterations: iter}, err
			}
			return models.SolverOutcome{ImpliedVol: next, Iterations: iter, Residual: res.Price - observed, Converged: true}, nil
		}
		sigma = next
	}

	s.log.Debug("iteration budget exhausted",
		zap.String("state", st.String()),
		zap.Float64("last_estimate", sigma),
		zap.Float64("residual", residual))
	return models.SolverOutcome{ImpliedVol: sigma, Iterations: s.settings.MaxIterations, Residual: residual},
		&models.ConvergenceError{Iterations: s.settings.MaxIterations, LastEstimate: sigma, Residual: residual}
}

// expandBracket grows [lo, hi] geometrically from the current guess until
// the observed price is enclosed.
func (s *Solver) expandBracket(observed float64, params models.MarketParameters, optType models.OptionType, seed float64) (bracket, error) {
	br := bracket{lo: seed, hi: seed}

	for i := 0; i < maxBracketSteps; i++ {
		res, err := s.pricer.Price(params.WithVolatility(br.lo), optType)
		if err != nil || res.Price <= observed {
			break
		}
		br.lo *= 0.5
	}
	for i := 0; i < maxBracketSteps; i++ {
		res, err := s.pricer.Price(params.WithVolatility(br.hi), optType)
		if err != nil {
			return bracket{}, err
		}
		if res.Price >= observed {
			br.set = true
			return br, nil
		}
		if br.hi >= sigmaMax {
			break
		}
		br.hi = math.Min(br.hi*2, sigmaMax)
	}
	return bracket{}, &models.ConvergenceError{LastEstimate: br.hi, Residual: math.NaN()}
}

// priceBounds returns the open arbitrage-free interval observed prices must
// lie in: (max(S*e^(-qT) - K*e^(-rT), 0), S*e^(-qT)) for calls and
// (max(K*e^(-rT) - S*e^(-qT), 0), K*e^(-rT)) for puts.
func priceBounds(params models.MarketParameters, optType models.OptionType) (lower, upper float64) {
	discS := params.DiscountedSpot()
	discK := params.DiscountedStrike()
	if optType == models.Call {
		return math.Max(discS-discK, 0), discS
	}
	return math.Max(discK-discS, 0), discK
}
