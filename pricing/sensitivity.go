package pricing

import (
	"gonum.org/v1/gonum/floats"

	"github.com/bcdannyboy/quantlib/models"
)

// Curve is a sampled price profile along one market parameter.
type Curve struct {
	X []float64 `json:"x"`
	Y []float64 `json:"y"`
}

// PnLGrid is the profit/loss of a position over a spot x volatility grid,
// relative to the entry price computed at the base parameters.
type PnLGrid struct {
	Spots []float64   `json:"spots"`
	Vols  []float64   `json:"vols"`
	PnL   [][]float64 `json:"pnl"` // indexed [vol][spot]
}

// PriceVsSpot samples the option price over n spot levels in [lo, hi],
// holding everything else fixed.
func (p *Pricer) PriceVsSpot(params models.MarketParameters, optType models.OptionType, lo, hi float64, n int) (Curve, error) {
	if n < 2 || lo <= 0 || hi <= lo {
		return Curve{}, &models.InvalidParameterError{Param: "spot_range", Value: hi - lo, Reason: "need lo > 0, hi > lo, n >= 2"}
	}
	c := Curve{X: make([]float64, n), Y: make([]float64, n)}
	floats.Span(c.X, lo, hi)
	for i, spot := range c.X {
		pt := params
		pt.Spot = spot
		res, err := p.Price(pt, optType)
		if err != nil {
			return Curve{}, err
		}
		c.Y[i] = res.Price
	}
	return c, nil
}

// PriceVsVol samples the option price over n volatility levels in [lo, hi].
func (p *Pricer) PriceVsVol(params models.MarketParameters, optType models.OptionType, lo, hi float64, n int) (Curve, error) {
	if n < 2 || lo <= 0 || hi <= lo {
		return Curve{}, &models.InvalidParameterError{Param: "vol_range", Value: hi - lo, Reason: "need lo > 0, hi > lo, n >= 2"}
	}
	c := Curve{X: make([]float64, n), Y: make([]float64, n)}
	floats.Span(c.X, lo, hi)
	for i, vol := range c.X {
		res, err := p.Price(params.WithVolatility(vol), optType)
		if err != nil {
			return Curve{}, err
		}
		c.Y[i] = res.Price
	}
	return c, nil
}

// PnLSurface evaluates position P&L on an n x n grid spanning the given
// spot and volatility ranges. Entry price is taken at params; short
// positions flip the sign.
func (p *Pricer) PnLSurface(params models.MarketParameters, optType models.OptionType, spotLo, spotHi, volLo, volHi float64, n int, short bool) (PnLGrid, error) {
	if n < 2 || spotLo <= 0 || spotHi <= spotLo || volLo <= 0 || volHi <= volLo {
		return PnLGrid{}, &models.InvalidParameterError{Param: "grid", Reason: "degenerate spot or vol range"}
	}
	base, err := p.Price(params, optType)
	if err != nil {
		return PnLGrid{}, err
	}

	grid := PnLGrid{
		Spots: make([]float64, n),
		Vols:  make([]float64, n),
		PnL:   make([][]float64, n),
	}
	floats.Span(grid.Spots, spotLo, spotHi)
	floats.Span(grid.Vols, volLo, volHi)

	for i, vol := range grid.Vols {
		row := make([]float64, n)
		for j, spot := range grid.Spots {
			pt := params.WithVolatility(vol)
			pt.Spot = spot
			res, err := p.Price(pt, optType)
			if err != nil {
				return PnLGrid{}, err
			}
			pnl := res.Price - base.Price
			if short {
				pnl = -pnl
			}
			row[j] = pnl
		}
		grid.PnL[i] = row
	}
	return grid, nil
}
