package volatility

import (
	"errors"
	"math"
	"testing"

	"github.com/bcdannyboy/quantlib/models"
	"github.com/bcdannyboy/quantlib/pricing"
)

func atmParams() models.MarketParameters {
	return models.MarketParameters{
		Spot:         100,
		Strike:       100,
		TimeToExpiry: 0.25,
		RiskFreeRate: 0.05,
		Volatility:   0.2,
	}
}

func priceAt(t *testing.T, params models.MarketParameters, optType models.OptionType, sigma float64) float64 {
	t.Helper()
	res, err := pricing.NewPricer(nil).Price(params.WithVolatility(sigma), optType)
	if err != nil {
		t.Fatalf("pricing at sigma=%g failed: %s", sigma, err)
	}
	return res.Price
}

func TestRoundTripATM(t *testing.T) {
	s := NewSolver(DefaultSettings(), nil)

	for _, sigma := range []float64{0.01, 0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 3.0} {
		for _, optType := range []models.OptionType{models.Call, models.Put} {
			observed := priceAt(t, atmParams(), optType, sigma)

			out, err := s.Solve(observed, atmParams(), optType)
			if err != nil {
				t.Fatalf("solve %s sigma=%g failed: %s", optType, sigma, err)
			}
			if !out.Converged {
				t.Fatalf("solve %s sigma=%g did not converge", optType, sigma)
			}
			if math.Abs(out.ImpliedVol-sigma) > 1e-4 {
				t.Fatalf("round trip %s: recovered %.6f, want %.6f", optType, out.ImpliedVol, sigma)
			}
		}
	}
}

func TestRoundTripAcrossMoneyness(t *testing.T) {
	s := NewSolver(DefaultSettings(), nil)

	for _, strike := range []float64{80, 90, 100, 110, 120} {
		for _, sigma := range []float64{0.15, 0.3, 0.6} {
			params := atmParams()
			params.Strike = strike

			observed := priceAt(t, params, models.Call, sigma)
			out, err := s.Solve(observed, params, models.Call)
			if err != nil {
				t.Fatalf("solve K=%g sigma=%g failed: %s", strike, sigma, err)
			}
			if math.Abs(out.ImpliedVol-sigma) > 1e-4 {
				t.Fatalf("round trip K=%g: recovered %.6f, want %.6f", strike, out.ImpliedVol, sigma)
			}
			if out.Iterations <= 0 || out.Iterations > DefaultSettings().MaxIterations {
				t.Fatalf("implausible iteration count %d", out.Iterations)
			}
		}
	}
}

// The known scenario: price 4.6150 at sigma=0.20 should invert back.
func TestKnownScenarioInversion(t *testing.T) {
	s := NewSolver(DefaultSettings(), nil)

	out, err := s.Solve(4.6150, atmParams(), models.Call)
	if err != nil {
		t.Fatalf("solve failed: %s", err)
	}
	if math.Abs(out.ImpliedVol-0.20) > 1e-4 {
		t.Fatalf("recovered %.6f, want 0.20", out.ImpliedVol)
	}
}

// The input volatility is a placeholder; the solver must not be anchored
// to it.
func TestInputVolatilityIgnored(t *testing.T) {
	s := NewSolver(DefaultSettings(), nil)
	observed := priceAt(t, atmParams(), models.Call, 0.2)

	params := atmParams().WithVolatility(4.9)
	out, err := s.Solve(observed, params, models.Call)
	if err != nil {
		t.Fatalf("solve failed: %s", err)
	}
	if math.Abs(out.ImpliedVol-0.2) > 1e-4 {
		t.Fatalf("recovered %.6f, want 0.20", out.ImpliedVol)
	}
}

func TestPriceOutOfBoundsRejectedWithoutIterating(t *testing.T) {
	s := NewSolver(DefaultSettings(), nil)
	params := atmParams()

	// Above the upper bound S*e^(-qT).
	out, err := s.Solve(101, params, models.Call)
	var bounds *models.PriceOutOfBoundsError
	if !errors.As(err, &bounds) {
		t.Fatalf("expected PriceOutOfBoundsError, got %v", err)
	}
	if out.Iterations != 0 {
		t.Fatalf("must fail before iterating, got %d iterations", out.Iterations)
	}

	// Below the forward intrinsic lower bound of a deep ITM call.
	itm := params
	itm.Strike = 80
	_, err = s.Solve(10, itm, models.Call)
	if !errors.As(err, &bounds) {
		t.Fatalf("expected PriceOutOfBoundsError below intrinsic, got %v", err)
	}

	// Negative prices are always out of bounds.
	_, err = s.Solve(-1, params, models.Put)
	if !errors.As(err, &bounds) {
		t.Fatalf("expected PriceOutOfBoundsError for negative price, got %v", err)
	}
}

// Deep OTM with a low initial guess: vega at the guess underflows, so the
// solver must bracket and bisect before Newton can take over.
func TestBisectionFallbackDeepOTM(t *testing.T) {
	s := NewSolver(DefaultSettings(), nil)

	params := atmParams()
	params.Strike = 200
	params.TimeToExpiry = 0.05

	const sigma = 1.0
	observed := priceAt(t, params, models.Call, sigma)

	out, err := s.Solve(observed, params, models.Call)
	if err != nil {
		t.Fatalf("solve failed: %s", err)
	}
	if !out.Converged {
		t.Fatal("expected convergence via bisection fallback")
	}
	if math.Abs(out.ImpliedVol-sigma) > 1e-3 {
		t.Fatalf("recovered %.6f, want %.6f", out.ImpliedVol, sigma)
	}
}

func TestConvergenceFailureCarriesDiagnostics(t *testing.T) {
	settings := DefaultSettings()
	settings.MaxIterations = 2
	s := NewSolver(settings, nil)

	observed := priceAt(t, atmParams(), models.Call, 2.5)
	out, err := s.Solve(observed, atmParams(), models.Call)

	var conv *models.ConvergenceError
	if !errors.As(err, &conv) {
		t.Fatalf("expected ConvergenceError, got %v", err)
	}
	if conv.Iterations != 2 {
		t.Fatalf("expected 2 iterations, got %d", conv.Iterations)
	}
	if conv.LastEstimate <= 0 {
		t.Fatalf("last estimate must be positive, got %g", conv.LastEstimate)
	}
	if out.Converged {
		t.Fatal("outcome must not be marked converged")
	}
	if out.ImpliedVol != conv.LastEstimate {
		t.Fatalf("outcome/error estimate mismatch: %g vs %g", out.ImpliedVol, conv.LastEstimate)
	}
}

// Residual must be the price gap at the volatility actually returned, on
// both convergence exits.
func TestResidualReportedAtReturnedEstimate(t *testing.T) {
	// Price-tolerance exit.
	s := NewSolver(DefaultSettings(), nil)
	observed := priceAt(t, atmParams(), models.Call, 0.25)
	out, err := s.Solve(observed, atmParams(), models.Call)
	if err != nil {
		t.Fatalf("solve failed: %s", err)
	}
	if want := priceAt(t, atmParams(), models.Call, out.ImpliedVol) - observed; math.Abs(out.Residual-want) > 1e-12 {
		t.Fatalf("residual %g not taken at returned estimate (want %g)", out.Residual, want)
	}

	// Step-size exit: a loose vol tolerance stops the iteration while the
	// price gap is still visible.
	loose := DefaultSettings()
	loose.PriceTolerance = 1e-15
	loose.VolTolerance = 1e-2
	s = NewSolver(loose, nil)
	out, err = s.Solve(observed, atmParams(), models.Call)
	if err != nil {
		t.Fatalf("solve failed: %s", err)
	}
	if !out.Converged {
		t.Fatal("expected step-size convergence")
	}
	if want := priceAt(t, atmParams(), models.Call, out.ImpliedVol) - observed; math.Abs(out.Residual-want) > 1e-12 {
		t.Fatalf("residual %g not taken at returned estimate (want %g)", out.Residual, want)
	}
}

func TestInvalidParametersRejected(t *testing.T) {
	s := NewSolver(DefaultSettings(), nil)

	bad := atmParams()
	bad.Spot = 0
	_, err := s.Solve(5, bad, models.Call)
	var invalid *models.InvalidParameterError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidParameterError, got %v", err)
	}
}

func BenchmarkSolve(b *testing.B) {
	s := NewSolver(DefaultSettings(), nil)
	observed := 4.6150
	params := atmParams()
	for i := 0; i < b.N; i++ {
		if _, err := s.Solve(observed, params, models.Call); err != nil {
			b.Fatal(err)
		}
	}
}
