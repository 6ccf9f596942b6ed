// Package montecarlo cross-checks analytic prices by simulating terminal
// log-normal asset prices under the risk-neutral measure.
package montecarlo

import (
	"math"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"

	"github.com/bcdannyboy/quantlib/config"
	"github.com/bcdannyboy/quantlib/models"
	"github.com/bcdannyboy/quantlib/quantlog"
)

// chunkSize is the number of draws per independent RNG stream. Streams are
// keyed by chunk index, not by worker, so the estimate is bit-for-bit
// reproducible for a given seed regardless of worker count.
const chunkSize = 8192

// Settings are the engine's tuning knobs, captured once at construction.
type Settings struct {
	Simulations int
	Steps       int // reserved for path-dependent payoffs; terminal sampling ignores it
	Antithetic  bool
	Seed        uint64
	Workers     int
}

// DefaultSettings mirrors the documented configuration defaults.
func DefaultSettings() Settings {
	return Settings{
		Simulations: 100000,
		Steps:       252,
		Antithetic:  true,
		Seed:        42,
		Workers:     runtime.GOMAXPROCS(0),
	}
}

// SettingsFromConfig maps a configuration snapshot onto engine settings.
// threading.max_threads caps the worker count; enable_parallel_mc false
// forces a single worker.
func SettingsFromConfig(cfg config.Config) Settings {
	workers := cfg.Threading.MaxThreads
	if workers > runtime.GOMAXPROCS(0) {
		workers = runtime.GOMAXPROCS(0)
	}
	if !cfg.Threading.EnableParallelMC {
		workers = 1
	}
	return Settings{
		Simulations: cfg.MonteCarlo.Simulations,
		Steps:       cfg.MonteCarlo.Steps,
		Antithetic:  cfg.MonteCarlo.UseAntithetic,
		Seed:        uint64(cfg.MonteCarlo.RandomSeed),
		Workers:     workers,
	}
}

// Engine produces an independent price estimate with a standard error.
// It never fails on convergence; a wide error bar is the signal of low
// confidence. Safe for concurrent use.
type Engine struct {
	settings Settings
	log      *zap.Logger
}

func NewEngine(settings Settings, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	def := DefaultSettings()
	if settings.Simulations <= 0 {
		settings.Simulations = def.Simulations
	}
	if settings.Steps <= 0 {
		settings.Steps = def.Steps
	}
	if settings.Workers <= 0 {
		settings.Workers = def.Workers
	}
	return &Engine{settings: settings, log: log}
}

// partial is one chunk's contribution. Merging is associative and
// commutative up to float rounding; chunks are combined in index order so
// the total is deterministic.
type partial struct {
	sum   float64
	sumSq float64
	n     int
}

func (p partial) merge(o partial) partial {
	return partial{sum: p.sum + o.sum, sumSq: p.sumSq + o.sumSq, n: p.n + o.n}
}

// Simulate estimates the option price by averaging discounted payoffs of
// simulated terminal prices. With antithetic variates on, each draw z is
// paired with -z and the two payoffs averaged into one sample.
func (e *Engine) Simulate(params models.MarketParameters, optType models.OptionType) (models.SimulationResult, error) {
	start := time.Now()
	res, err := e.simulate(params, optType, nil)
	quantlog.Event(e.log, "monte_carlo", start, err)
	return res, err
}

func (e *Engine) simulate(params models.MarketParameters, optType models.OptionType, capture []float64) (models.SimulationResult, error) {
	if !optType.Valid() {
		return models.SimulationResult{}, &models.InvalidParameterError{Param: "option_type", Reason: "must be call or put"}
	}
	if err := params.Validate(); err != nil {
		return models.SimulationResult{}, err
	}

	S, K, T := params.Spot, params.Strike, params.TimeToExpiry
	r, q, sigma := params.RiskFreeRate, params.DividendYield, params.Volatility

	drift := (r - q - 0.5*sigma*sigma) * T
	diffusion := sigma * math.Sqrt(T)
	discount := math.Exp(-r * T)
	isCall := optType == models.Call

	total := e.settings.Simulations
	chunks := (total + chunkSize - 1) / chunkSize
	partials := make([]partial, chunks)

	var g errgroup.Group
	g.SetLimit(e.settings.Workers)
	for c := 0; c < chunks; c++ {
		c := c
		g.Go(func() error {
			n := chunkSize
			if c == chunks-1 {
				n = total - c*chunkSize
			}
			rng := rand.New(rand.NewSource(e.settings.Seed ^ uint64(c)))
			var p partial
			for i := 0; i < n; i++ {
				z := rng.NormFloat64()
				payoff := terminalPayoff(S, K, drift, diffusion, z, isCall)
				if e.settings.Antithetic {
					payoff = 0.5 * (payoff + terminalPayoff(S, K, drift, diffusion, -z, isCall))
				}
				p.sum += payoff
				p.sumSq += payoff * payoff
				p.n++
				if capture != nil {
					capture[c*chunkSize+i] = discount * payoff
				}
			}
			partials[c] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.SimulationResult{}, err
	}

	var agg partial
	for _, p := range partials {
		agg = agg.merge(p)
	}

	mean := agg.sum / float64(agg.n)
	variance := math.Max(agg.sumSq/float64(agg.n)-mean*mean, 0)
	stdErr := discount * math.Sqrt(variance/float64(agg.n))

	return models.SimulationResult{
		Estimate: discount * mean,
		StdError: stdErr,
		Samples:  agg.n,
		Seed:     e.settings.Seed,
	}, nil
}

func terminalPayoff(S, K, drift, diffusion, z float64, isCall bool) float64 {
	terminal := S * math.Exp(drift+diffusion*z)
	if isCall {
		return math.Max(terminal-K, 0)
	}
	return math.Max(K-terminal, 0)
}
