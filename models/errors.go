package models

import (
	"errors"
	"fmt"
)

// InvalidParameterError reports a MarketParameters invariant violation.
type InvalidParameterError struct {
	Param  string
	Value  float64
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s=%g: %s", e.Param, e.Value, e.Reason)
}

// PriceOutOfBoundsError reports an observed price outside the arbitrage-free
// range (Lower, Upper); no volatility reproduces such a price.
type PriceOutOfBoundsError struct {
	Observed float64
	Lower    float64
	Upper    float64
}

func (e *PriceOutOfBoundsError) Error() string {
	return fmt.Sprintf("observed price %g outside arbitrage bounds (%g, %g)", e.Observed, e.Lower, e.Upper)
}

// ConvergenceError reports an iterative solve that exhausted its budget.
// LastEstimate and Residual carry the state at the final iteration.
type ConvergenceError struct {
	Iterations   int
	LastEstimate float64
	Residual     float64
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("no convergence after %d iterations (last estimate %g, residual %g)",
		e.Iterations, e.LastEstimate, e.Residual)
}

// NumericalError reports a non-finite intermediate value that no boundary
// special-case absorbed.
type NumericalError struct {
	Op     string
	Detail string
}

func (e *NumericalError) Error() string {
	return fmt.Sprintf("numerical error in %s: %s", e.Op, e.Detail)
}

// ErrorKind maps an error from this package to a stable label used in log
// events. Unknown errors map to "error"; nil maps to "ok".
func ErrorKind(err error) string {
	if err == nil {
		return "ok"
	}
	var (
		invalid  *InvalidParameterError
		bounds   *PriceOutOfBoundsError
		conv     *ConvergenceError
		numerics *NumericalError
	)
	switch {
	case errors.As(err, &invalid):
		return "invalid_parameter"
	case errors.As(err, &bounds):
		return "price_out_of_bounds"
	case errors.As(err, &conv):
		return "convergence_failure"
	case errors.As(err, &numerics):
		return "numerical_error"
	}
	return "error"
}
