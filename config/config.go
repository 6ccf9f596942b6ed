// Package config loads engine tuning parameters from a JSON file with
// QUANTLIB_* environment overrides, mirroring the keys the engines consume.
// Load returns a plain value snapshot; engines copy what they need at
// construction and never read configuration again mid-call.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	MonteCarlo MonteCarlo `mapstructure:"monte_carlo"`
	ImpliedVol ImpliedVol `mapstructure:"implied_vol"`
	Numerical  Numerical  `mapstructure:"numerical"`
	Logging    Logging    `mapstructure:"logging"`
	Threading  Threading  `mapstructure:"threading"`
	Memory     Memory     `mapstructure:"memory"`
	Risk       Risk       `mapstructure:"risk"`
	Market     Market     `mapstructure:"market"`
	Validation Validation `mapstructure:"validation"`
}

type MonteCarlo struct {
	Simulations   int   `mapstructure:"simulations"`
	Steps         int   `mapstructure:"steps"`
	UseAntithetic bool  `mapstructure:"use_antithetic"`
	RandomSeed    int64 `mapstructure:"random_seed"`
}

type ImpliedVol struct {
	Tolerance     float64 `mapstructure:"tolerance"` // price units
	MaxIterations int     `mapstructure:"max_iterations"`
	InitialGuess  float64 `mapstructure:"initial_guess"`
}

type Numerical struct {
	Tolerance     float64 `mapstructure:"tolerance"`
	MaxIterations int     `mapstructure:"max_iterations"`
}

type Logging struct {
	Level         string `mapstructure:"level"`
	File          string `mapstructure:"file"`
	Console       bool   `mapstructure:"console"`
	FileOutput    bool   `mapstructure:"file_output"`
	MaxFiles      int    `mapstructure:"max_files"`
	MaxFileSizeMB int    `mapstructure:"max_file_size_mb"`
}

type Threading struct {
	MaxThreads       int  `mapstructure:"max_threads"`
	EnableParallelMC bool `mapstructure:"enable_parallel_mc"`
}

type Memory struct {
	MaxUsageMB int `mapstructure:"max_usage_mb"`
}

type Risk struct {
	VaRConfidence95 float64 `mapstructure:"var_confidence_95"`
	VaRConfidence99 float64 `mapstructure:"var_confidence_99"`
}

type Market struct {
	DefaultRiskFreeRate  float64 `mapstructure:"default_risk_free_rate"`
	DefaultDividendYield float64 `mapstructure:"default_dividend_yield"`
	DefaultVolatility    float64 `mapstructure:"default_volatility"`
}

type Validation struct {
	WarnExtremeValues bool    `mapstructure:"warn_extreme_values"`
	MaxVolatility     float64 `mapstructure:"max_volatility"`
	MaxTimeToExpiry   float64 `mapstructure:"max_time_to_expiry"`
}

// envOverrides is the fixed set of environment variables honored on top of
// the config file. Settings outside this list are file-only.
var envOverrides = map[string]string{
	"monte_carlo.simulations": "QUANTLIB_MONTE_CARLO_SIMULATIONS",
	"monte_carlo.steps":       "QUANTLIB_MONTE_CARLO_STEPS",
	"logging.level":           "QUANTLIB_LOGGING_LEVEL",
	"logging.file":            "QUANTLIB_LOGGING_FILE",
	"threading.max_threads":   "QUANTLIB_THREADING_MAX_THREADS",
	"memory.max_usage_mb":     "QUANTLIB_MEMORY_MAX_USAGE_MB",
}

// Load reads the JSON file at path (skipped when path is empty or the file
// does not exist), applies environment overrides, validates, and returns
// the snapshot.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, env := range envOverrides {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("binding %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("monte_carlo.simulations", 100000)
	v.SetDefault("monte_carlo.steps", 252)
	v.SetDefault("monte_carlo.use_antithetic", true)
	v.SetDefault("monte_carlo.random_seed", 42)

	v.SetDefault("implied_vol.tolerance", 1e-6)
	v.SetDefault("implied_vol.max_iterations", 100)
	v.SetDefault("implied_vol.initial_guess", 0.2)

	v.SetDefault("numerical.tolerance", 1e-12)
	v.SetDefault("numerical.max_iterations", 1000)

	v.SetDefault("logging.level", "INFO")
	v.SetDefault("logging.file", "quantlib.log")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file_output", true)
	v.SetDefault("logging.max_files", 5)
	v.SetDefault("logging.max_file_size_mb", 10)

	v.SetDefault("threading.max_threads", runtime.GOMAXPROCS(0))
	v.SetDefault("threading.enable_parallel_mc", true)

	v.SetDefault("memory.max_usage_mb", 1024)

	v.SetDefault("risk.var_confidence_95", 0.95)
	v.SetDefault("risk.var_confidence_99", 0.99)

	v.SetDefault("market.default_risk_free_rate", 0.05)
	v.SetDefault("market.default_dividend_yield", 0.0)
	v.SetDefault("market.default_volatility", 0.2)

	v.SetDefault("validation.warn_extreme_values", true)
	v.SetDefault("validation.max_volatility", 5.0)
	v.SetDefault("validation.max_time_to_expiry", 30.0)
}

var logLevels = map[string]bool{
	"DEBUG": true, "INFO": true, "WARNING": true, "WARN": true, "ERROR": true,
}

func (c Config) Validate() error {
	if c.MonteCarlo.Simulations <= 0 {
		return fmt.Errorf("monte_carlo.simulations must be positive, got %d", c.MonteCarlo.Simulations)
	}
	if c.MonteCarlo.Steps <= 0 {
		return fmt.Errorf("monte_carlo.steps must be positive, got %d", c.MonteCarlo.Steps)
	}
	if c.ImpliedVol.Tolerance <= 0 {
		return fmt.Errorf("implied_vol.tolerance must be positive, got %g", c.ImpliedVol.Tolerance)
	}
	if c.ImpliedVol.MaxIterations <= 0 {
		return fmt.Errorf("implied_vol.max_iterations must be positive, got %d", c.ImpliedVol.MaxIterations)
	}
	if c.ImpliedVol.InitialGuess <= 0 {
		return fmt.Errorf("implied_vol.initial_guess must be positive, got %g", c.ImpliedVol.InitialGuess)
	}
	if c.Numerical.Tolerance <= 0 {
		return fmt.Errorf("numerical.tolerance must be positive, got %g", c.Numerical.Tolerance)
	}
	if c.Threading.MaxThreads <= 0 || c.Threading.MaxThreads > 1000 {
		return fmt.Errorf("threading.max_threads must be in [1, 1000], got %d", c.Threading.MaxThreads)
	}
	if c.Memory.MaxUsageMB <= 0 {
		return fmt.Errorf("memory.max_usage_mb must be positive, got %d", c.Memory.MaxUsageMB)
	}
	if c.Risk.VaRConfidence95 <= 0 || c.Risk.VaRConfidence95 >= 1 ||
		c.Risk.VaRConfidence99 <= 0 || c.Risk.VaRConfidence99 >= 1 {
		return fmt.Errorf("risk confidences must be in (0, 1)")
	}
	if !logLevels[strings.ToUpper(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be DEBUG, INFO, WARNING or ERROR, got %q", c.Logging.Level)
	}
	return nil
}
