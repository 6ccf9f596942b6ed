package main

import (
	"fmt"
	"log"
	"os"
	"sort"
	"sync"

	"github.com/joho/godotenv"
	mpb "github.com/vbauerster/mpb/v7"
	"github.com/vbauerster/mpb/v7/decor"
	"github.com/xhhuango/json"
	"go.uber.org/zap"

	"github.com/bcdannyboy/quantlib/config"
	"github.com/bcdannyboy/quantlib/models"
	"github.com/bcdannyboy/quantlib/montecarlo"
	"github.com/bcdannyboy/quantlib/pricing"
	"github.com/bcdannyboy/quantlib/quantlog"
	"github.com/bcdannyboy/quantlib/volatility"
)

type bookEntry struct {
	Params     models.MarketParameters `json:"params"`
	OptionType models.OptionType       `json:"option_type"`
	Result     models.PricingResult    `json:"result"`
	Solved     models.SolverOutcome    `json:"solved"`
}

type report struct {
	Book       []bookEntry             `json:"book"`
	Simulation models.SimulationResult `json:"simulation"`
	Risk       montecarlo.RiskReport   `json:"risk"`
	SpotCurve  pricing.Curve           `json:"spot_curve"`
	VolCurve   pricing.Curve           `json:"vol_curve"`
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Error loading .env file: %s", err)
	}

	cfg, err := config.Load(os.Getenv("QUANTLIB_CONFIG"))
	if err != nil {
		log.Fatalf("Error loading configuration: %s", err)
	}

	logger, err := quantlog.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Error building logger: %s", err)
	}
	defer logger.Sync()

	pricer := pricing.NewPricer(logger)
	solver := volatility.NewSolver(volatility.SettingsFromConfig(cfg), logger)
	engine := montecarlo.NewEngine(montecarlo.SettingsFromConfig(cfg), logger)

	spot := 100.0
	strikes := []float64{80, 90, 95, 100, 105, 110, 120}
	expiry := 0.25

	var book []bookEntry
	var wg sync.WaitGroup
	var mu sync.Mutex

	p := mpb.New(mpb.WithWidth(64))
	bar := p.AddBar(int64(len(strikes)*2),
		mpb.PrependDecorators(
			decor.Name("Pricing book"),
			decor.Percentage(decor.WCSyncSpace),
		),
		mpb.AppendDecorators(
			decor.CountersNoUnit("(%d / %d)", decor.WCSyncSpace),
		),
	)

	for _, strike := range strikes {
		for _, optType := range []models.OptionType{models.Call, models.Put} {
			wg.Add(1)
			go func(strike float64, optType models.OptionType) {
				defer wg.Done()
				defer bar.Increment()

				params := models.MarketParameters{
					Spot:          spot,
					Strike:        strike,
					TimeToExpiry:  expiry,
					RiskFreeRate:  cfg.Market.DefaultRiskFreeRate,
					Volatility:    cfg.Market.DefaultVolatility,
					DividendYield: cfg.Market.DefaultDividendYield,
				}
				warnExtremes(logger, cfg.Validation, params)

				result, err := pricer.Price(params, optType)
				if err != nil {
					fmt.Printf("Error pricing %s K=%.0f: %s\n", optType, strike, err.Error())
					return
				}

				solved, err := solver.Solve(result.Price, params, optType)
				if err != nil {
					fmt.Printf("Error solving IV for %s K=%.0f: %s\n", optType, strike, err.Error())
					return
				}

				mu.Lock()
				book = append(book, bookEntry{Params: params, OptionType: optType, Result: result, Solved: solved})
				mu.Unlock()
			}(strike, optType)
		}
	}
	wg.Wait()
	p.Wait()

	sort.Slice(book, func(i, j int) bool {
		if book[i].Params.Strike != book[j].Params.Strike {
			return book[i].Params.Strike < book[j].Params.Strike
		}
		return book[i].OptionType < book[j].OptionType
	})

	atm := models.MarketParameters{
		Spot:          spot,
		Strike:        spot,
		TimeToExpiry:  expiry,
		RiskFreeRate:  cfg.Market.DefaultRiskFreeRate,
		Volatility:    cfg.Market.DefaultVolatility,
		DividendYield: cfg.Market.DefaultDividendYield,
	}

	atmPrice, err := pricer.Price(atm, models.Call)
	if err != nil {
		log.Fatalf("Error pricing ATM call: %s", err)
	}

	sim, err := engine.Simulate(atm, models.Call)
	if err != nil {
		log.Fatalf("Error simulating ATM call: %s", err)
	}
	fmt.Printf("ATM call: analytic %.4f, simulated %.4f +/- %.4f (%d samples, seed %d)\n",
		atmPrice.Price, sim.Estimate, sim.StdError, sim.Samples, sim.Seed)

	riskReport, err := engine.Risk(atm, models.Call, atmPrice.Price,
		[]float64{cfg.Risk.VaRConfidence95, cfg.Risk.VaRConfidence99})
	if err != nil {
		log.Fatalf("Error computing risk metrics: %s", err)
	}

	spotCurve, err := pricer.PriceVsSpot(atm, models.Call, spot*0.7, spot*1.3, 61)
	if err != nil {
		log.Fatalf("Error building spot curve: %s", err)
	}
	volCurve, err := pricer.PriceVsVol(atm, models.Call, 0.05, 1.0, 61)
	if err != nil {
		log.Fatalf("Error building vol curve: %s", err)
	}

	out, err := json.Marshal(report{
		Book:       book,
		Simulation: sim,
		Risk:       riskReport,
		SpotCurve:  spotCurve,
		VolCurve:   volCurve,
	})
	if err != nil {
		log.Fatalf("Error marshalling report: %s", err)
	}

	f := "results.json"
	if err := os.WriteFile(f, out, 0644); err != nil {
		log.Fatalf("Error writing %s: %s", f, err)
	}
	fmt.Printf("Successfully wrote %d book entries to %s\n", len(book), f)
}

// warnExtremes flags legal-but-suspicious inputs without rejecting them.
func warnExtremes(logger *zap.Logger, v config.Validation, params models.MarketParameters) {
	if !v.WarnExtremeValues {
		return
	}
	if params.Volatility > v.MaxVolatility {
		logger.Warn("extreme volatility",
			zap.Float64("volatility", params.Volatility),
			zap.Float64("max", v.MaxVolatility))
	}
	if params.TimeToExpiry > v.MaxTimeToExpiry {
		logger.Warn("extreme time to expiry",
			zap.Float64("time_to_expiry", params.TimeToExpiry),
			zap.Float64("max", v.MaxTimeToExpiry))
	}
}
