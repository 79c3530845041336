// Package config loads the application configuration from YAML with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/Omareid007/alphaflow-sub005/internal/core"
	"github.com/Omareid007/alphaflow-sub005/internal/sim"
	"github.com/Omareid007/alphaflow-sub005/internal/walkforward"
)

type Config struct {
	Backtest    BacktestConfig    `mapstructure:"backtest"`
	WalkForward WalkForwardConfig `mapstructure:"walk_forward"`
	Provider    ProviderConfig    `mapstructure:"provider"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// BacktestConfig holds the default simulation settings.
type BacktestConfig struct {
	InitialCash   float64 `mapstructure:"initial_cash"`
	Timeframe     string  `mapstructure:"timeframe"`
	FeeKind       string  `mapstructure:"fee_kind"`      // "fixed" or "percent"
	FeeValue      float64 `mapstructure:"fee_value"`
	SlippageKind  string  `mapstructure:"slippage_kind"` // "bps" or "spread"
	SlippageBps   float64 `mapstructure:"slippage_bps"`
	ExecPriceRule string  `mapstructure:"exec_price_rule"` // "next_open" or "next_close"
}

// WalkForwardConfig holds the default study settings.
type WalkForwardConfig struct {
	InSampleDays    int                      `mapstructure:"in_sample_days"`
	OutOfSampleDays int                      `mapstructure:"out_of_sample_days"`
	StepDays        int                      `mapstructure:"step_days"`
	MinTrades       int                      `mapstructure:"min_trades"`
	Metric          string                   `mapstructure:"metric"`
	MaxConcurrency  int                      `mapstructure:"max_concurrency"`
	Ranges          []walkforward.ParamRange `mapstructure:"ranges"`
}

// ProviderConfig selects the historical data source.
type ProviderConfig struct {
	Name string `mapstructure:"name"` // "binance"
}

// StorageConfig wires the run store and the artifact archive.
type StorageConfig struct {
	Runs      RunsConfig      `mapstructure:"runs"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts"`
}

// RunsConfig holds run-store settings.
type RunsConfig struct {
	Driver string `mapstructure:"driver"` // "memory" or "sqlite"
	Path   string `mapstructure:"path"`   // sqlite database file
}

// ArtifactsConfig holds archive settings.
type ArtifactsConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Type    string   `mapstructure:"type"` // "localfs" or "s3"
	Path    string   `mapstructure:"path"` // for localfs
	S3      S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// MetricsConfig holds Prometheus exposition settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load reads configuration from file
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Backtest: BacktestConfig{
			InitialCash:   10000,
			Timeframe:     "1d",
			FeeKind:       "fixed",
			SlippageKind:  "bps",
			ExecPriceRule: "next_open",
		},
		WalkForward: WalkForwardConfig{
			InSampleDays:    180,
			OutOfSampleDays: 60,
			StepDays:        60,
			MinTrades:       5,
			Metric:          "sharpe",
			MaxConcurrency:  4,
		},
		Provider: ProviderConfig{
			Name: "binance",
		},
		Storage: StorageConfig{
			Runs: RunsConfig{
				Driver: "memory",
				Path:   "alphaflow.db",
			},
			Artifacts: ArtifactsConfig{
				Enabled: false,
				Type:    "localfs",
				Path:    "artifacts",
			},
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9090",
			Path:    "/metrics",
		},
	}
}

// SimConfig converts the backtest defaults into simulator settings.
func (c BacktestConfig) SimConfig() sim.Config {
	return sim.Config{
		InitialCash: decimal.NewFromFloat(c.InitialCash),
		Fees: sim.FeeModel{
			Kind:  sim.FeeKind(c.FeeKind),
			Value: decimal.NewFromFloat(c.FeeValue),
		},
		Slippage: sim.SlippageModel{
			Kind: sim.SlippageKind(c.SlippageKind),
			Bps:  decimal.NewFromFloat(c.SlippageBps),
		},
		PriceRule: sim.ExecPriceRule(c.ExecPriceRule),
	}
}

// StudyConfig converts the walk-forward defaults into engine settings.
func (c WalkForwardConfig) StudyConfig() walkforward.Config {
	return walkforward.Config{
		InSampleDays:    c.InSampleDays,
		OutOfSampleDays: c.OutOfSampleDays,
		StepDays:        c.StepDays,
		Ranges:          c.Ranges,
		MinTrades:       c.MinTrades,
		Metric:          walkforward.Metric(c.Metric),
		MaxConcurrency:  c.MaxConcurrency,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Backtest.InitialCash <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("initial_cash must be positive, got %f", c.Backtest.InitialCash))
	}
	switch c.Backtest.FeeKind {
	case "fixed", "percent":
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("fee_kind must be fixed or percent, got %q", c.Backtest.FeeKind))
	}
	switch c.Backtest.SlippageKind {
	case "bps", "spread":
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("slippage_kind must be bps or spread, got %q", c.Backtest.SlippageKind))
	}
	switch c.Backtest.ExecPriceRule {
	case "next_open", "next_close":
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("exec_price_rule must be next_open or next_close, got %q", c.Backtest.ExecPriceRule))
	}

	if c.WalkForward.InSampleDays <= 0 || c.WalkForward.OutOfSampleDays <= 0 || c.WalkForward.StepDays <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("walk_forward window days must be positive"))
	}
	switch c.WalkForward.Metric {
	case "sharpe", "sortino", "calmar", "returns", "profit_factor":
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown optimization metric %q", c.WalkForward.Metric))
	}

	switch c.Storage.Runs.Driver {
	case "memory":
	case "sqlite":
		if c.Storage.Runs.Path == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("storage.runs.path required for the sqlite driver"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("runs driver must be memory or sqlite, got %q", c.Storage.Runs.Driver))
	}

	if c.Storage.Artifacts.Enabled {
		switch c.Storage.Artifacts.Type {
		case "localfs":
			if c.Storage.Artifacts.Path == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("storage.artifacts.path required for localfs"))
			}
		case "s3":
			if c.Storage.Artifacts.S3.Bucket == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("storage.artifacts.s3.bucket required for s3"))
			}
		default:
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("artifacts type must be localfs or s3, got %q", c.Storage.Artifacts.Type))
		}
	}

	return nil
}
