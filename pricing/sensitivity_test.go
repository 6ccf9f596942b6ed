package pricing

import (
	"math"
	"testing"

	"github.com/bcdannyboy/quantlib/models"
)

func TestPriceVsSpotMonotoneForCall(t *testing.T) {
	p := NewPricer(nil)
	curve, err := p.PriceVsSpot(atmParams(), models.Call, 70, 130, 31)
	if err != nil {
		t.Fatalf("curve failed: %s", err)
	}
	if len(curve.X) != 31 || len(curve.Y) != 31 {
		t.Fatalf("unexpected curve size: %d/%d", len(curve.X), len(curve.Y))
	}
	if curve.X[0] != 70 || curve.X[30] != 130 {
		t.Fatalf("span endpoints wrong: %g..%g", curve.X[0], curve.X[30])
	}
	for i := 1; i < len(curve.Y); i++ {
		if curve.Y[i] < curve.Y[i-1] {
			t.Fatalf("call price decreased in spot at %g", curve.X[i])
		}
	}
}

func TestPriceVsVolMonotone(t *testing.T) {
	p := NewPricer(nil)
	curve, err := p.PriceVsVol(atmParams(), models.Put, 0.05, 1.5, 30)
	if err != nil {
		t.Fatalf("curve failed: %s", err)
	}
	for i := 1; i < len(curve.Y); i++ {
		if curve.Y[i] < curve.Y[i-1] {
			t.Fatalf("price decreased in vol at %g", curve.X[i])
		}
	}
}

func TestPnLSurfaceZeroAtEntry(t *testing.T) {
	p := NewPricer(nil)
	params := atmParams()

	// 11-point spans centered so the base point (S=100, vol=0.2) is on the grid.
	grid, err := p.PnLSurface(params, models.Call, 90, 110, 0.1, 0.3, 11, false)
	if err != nil {
		t.Fatalf("surface failed: %s", err)
	}

	if math.Abs(grid.PnL[5][5]) > 1e-12 {
		t.Fatalf("P&L at entry point must be zero, got %g", grid.PnL[5][5])
	}

	// Long call gains with spot, loses as vol drops.
	if grid.PnL[5][10] <= 0 {
		t.Fatalf("long call should profit when spot rises, got %g", grid.PnL[5][10])
	}
	if grid.PnL[0][5] >= 0 {
		t.Fatalf("long call should lose when vol drops, got %g", grid.PnL[0][5])
	}

	short, err := p.PnLSurface(params, models.Call, 90, 110, 0.1, 0.3, 11, true)
	if err != nil {
		t.Fatalf("short surface failed: %s", err)
	}
	if short.PnL[5][10] != -grid.PnL[5][10] {
		t.Fatalf("short P&L must mirror long: %g vs %g", short.PnL[5][10], grid.PnL[5][10])
	}
}

func TestSensitivityRejectsDegenerateRanges(t *testing.T) {
	p := NewPricer(nil)

	if _, err := p.PriceVsSpot(atmParams(), models.Call, 100, 100, 10); err == nil {
		t.Fatal("expected error for empty spot range")
	}
	if _, err := p.PriceVsVol(atmParams(), models.Call, 0.5, 0.1, 10); err == nil {
		t.Fatal("expected error for inverted vol range")
	}
	if _, err := p.PnLSurface(atmParams(), models.Call, 90, 110, 0.1, 0.3, 1, false); err == nil {
		t.Fatal("expected error for single-point grid")
	}
}
