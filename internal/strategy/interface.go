// Package strategy defines the signal-generator contract and the typed
// per-strategy parameter sets.
package strategy

import (
	"fmt"
	"math"

	"github.com/Omareid007/alphaflow-sub005/internal/core"
)

// Generator is a per-strategy state machine. Given one new price bar at a
// time it emits zero or more trade signals. history is the full bar
// history observed so far for the bar's symbol, current bar included;
// index is the symbol-local bar index.
//
// Generators keep private per-symbol state and must not assume their
// signals were filled; sizing decisions use the initial cash they were
// constructed with.
type Generator interface {
	Name() string
	OnBar(bar core.Bar, index int, history []core.Bar) []core.Signal
}

// Kind identifies a strategy implementation.
type Kind string

const (
	KindMACrossover   Kind = "ma_crossover"
	KindRSI           Kind = "rsi"
	KindMeanReversion Kind = "mean_reversion"
	KindBuyHold       Kind = "buy_hold"
)

// MACrossoverParams configures the moving-average crossover strategy.
type MACrossoverParams struct {
	FastPeriod    int     `mapstructure:"fast_period"`
	SlowPeriod    int     `mapstructure:"slow_period"`
	AllocationPct float64 `mapstructure:"allocation_pct"`
}

// RSIParams configures the RSI oscillator strategy.
type RSIParams struct {
	Period        int     `mapstructure:"period"`
	Oversold      float64 `mapstructure:"oversold"`
	Overbought    float64 `mapstructure:"overbought"`
	AllocationPct float64 `mapstructure:"allocation_pct"`
}

// MeanReversionParams configures the Bollinger/z-score mean-reversion
// strategy.
type MeanReversionParams struct {
	Period         int     `mapstructure:"period"`
	StdDevMultiple float64 `mapstructure:"stddev_multiple"`
	StopLossPct    float64 `mapstructure:"stop_loss_pct"`
	AllocationPct  float64 `mapstructure:"allocation_pct"`
}

// BuyHoldParams configures the buy-and-hold strategy.
type BuyHoldParams struct {
	AllocationPct float64 `mapstructure:"allocation_pct"`
}

// Config is a tagged union over the known strategy kinds. Exactly the
// field matching Kind is set.
type Config struct {
	Kind          Kind                 `mapstructure:"kind"`
	MACrossover   *MACrossoverParams   `mapstructure:"ma_crossover"`
	RSI           *RSIParams           `mapstructure:"rsi"`
	MeanReversion *MeanReversionParams `mapstructure:"mean_reversion"`
	BuyHold       *BuyHoldParams       `mapstructure:"buy_hold"`
}

// Default returns a Config for kind with that strategy's default
// parameters.
func Default(kind Kind) (Config, error) {
	switch kind {
	case KindMACrossover:
		return Config{Kind: kind, MACrossover: &MACrossoverParams{FastPeriod: 10, SlowPeriod: 30, AllocationPct: 10}}, nil
	case KindRSI:
		return Config{Kind: kind, RSI: &RSIParams{Period: 14, Oversold: 30, Overbought: 70, AllocationPct: 10}}, nil
	case KindMeanReversion:
		return Config{Kind: kind, MeanReversion: &MeanReversionParams{Period: 20, StdDevMultiple: 2, StopLossPct: 0.05, AllocationPct: 10}}, nil
	case KindBuyHold:
		return Config{Kind: kind, BuyHold: &BuyHoldParams{AllocationPct: 10}}, nil
	default:
		return Config{}, core.WrapError(core.ErrUnknownStrategy, fmt.Errorf("kind %q", kind))
	}
}

// Validate checks that the parameters for the configured kind are present
// and internally consistent.
func (c Config) Validate() error {
	switch c.Kind {
	case KindMACrossover:
		p := c.MACrossover
		if p == nil {
			return core.WrapError(core.ErrConfigMissing, fmt.Errorf("ma_crossover params"))
		}
		if p.FastPeriod < 1 || p.SlowPeriod <= p.FastPeriod {
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("need 1 <= fast_period < slow_period, got %d/%d", p.FastPeriod, p.SlowPeriod))
		}
		return validateAllocation(p.AllocationPct)
	case KindRSI:
		p := c.RSI
		if p == nil {
			return core.WrapError(core.ErrConfigMissing, fmt.Errorf("rsi params"))
		}
		if p.Period < 2 {
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("rsi period must be >= 2, got %d", p.Period))
		}
		if p.Oversold >= p.Overbought {
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("oversold %f must be below overbought %f", p.Oversold, p.Overbought))
		}
		return validateAllocation(p.AllocationPct)
	case KindMeanReversion:
		p := c.MeanReversion
		if p == nil {
			return core.WrapError(core.ErrConfigMissing, fmt.Errorf("mean_reversion params"))
		}
		if p.Period < 2 {
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("mean reversion period must be >= 2, got %d", p.Period))
		}
		if p.StdDevMultiple <= 0 {
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("stddev_multiple must be positive, got %f", p.StdDevMultiple))
		}
		if p.StopLossPct < 0 || p.StopLossPct >= 1 {
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("stop_loss_pct must be in [0,1), got %f", p.StopLossPct))
		}
		return validateAllocation(p.AllocationPct)
	case KindBuyHold:
		if c.BuyHold == nil {
			return core.WrapError(core.ErrConfigMissing, fmt.Errorf("buy_hold params"))
		}
		return validateAllocation(c.BuyHold.AllocationPct)
	default:
		return core.WrapError(core.ErrUnknownStrategy, fmt.Errorf("kind %q", c.Kind))
	}
}

func validateAllocation(pct float64) error {
	if pct <= 0 || pct > 100 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("allocation_pct must be in (0,100], got %f", pct))
	}
	return nil
}

// WithOverrides returns a copy of the config with the named parameters
// replaced. Unknown parameter names for the configured kind are an error;
// the grid search depends on that to reject typos early.
func (c Config) WithOverrides(overrides map[string]float64) (Config, error) {
	out := c.clone()
	for name, value := range overrides {
		if err := out.setParam(name, value); err != nil {
			return Config{}, err
		}
	}
	return out, nil
}

// ParamValue returns the current value of the named parameter.
func (c Config) ParamValue(name string) (float64, error) {
	switch c.Kind {
	case KindMACrossover:
		switch name {
		case "fast_period":
			return float64(c.MACrossover.FastPeriod), nil
		case "slow_period":
			return float64(c.MACrossover.SlowPeriod), nil
		case "allocation_pct":
			return c.MACrossover.AllocationPct, nil
		}
	case KindRSI:
		switch name {
		case "period":
			return float64(c.RSI.Period), nil
		case "oversold":
			return c.RSI.Oversold, nil
		case "overbought":
			return c.RSI.Overbought, nil
		case "allocation_pct":
			return c.RSI.AllocationPct, nil
		}
	case KindMeanReversion:
		switch name {
		case "period":
			return float64(c.MeanReversion.Period), nil
		case "stddev_multiple":
			return c.MeanReversion.StdDevMultiple, nil
		case "stop_loss_pct":
			return c.MeanReversion.StopLossPct, nil
		case "allocation_pct":
			return c.MeanReversion.AllocationPct, nil
		}
	case KindBuyHold:
		if name == "allocation_pct" {
			return c.BuyHold.AllocationPct, nil
		}
	}
	return 0, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("strategy %s has no parameter %q", c.Kind, name))
}

func (c Config) clone() Config {
	out := Config{Kind: c.Kind}
	if c.MACrossover != nil {
		p := *c.MACrossover
		out.MACrossover = &p
	}
	if c.RSI != nil {
		p := *c.RSI
		out.RSI = &p
	}
	if c.MeanReversion != nil {
		p := *c.MeanReversion
		out.MeanReversion = &p
	}
	if c.BuyHold != nil {
		p := *c.BuyHold
		out.BuyHold = &p
	}
	return out
}

func (c *Config) setParam(name string, value float64) error {
	switch c.Kind {
	case KindMACrossover:
		switch name {
		case "fast_period":
			c.MACrossover.FastPeriod = int(math.Round(value))
			return nil
		case "slow_period":
			c.MACrossover.SlowPeriod = int(math.Round(value))
			return nil
		case "allocation_pct":
			c.MACrossover.AllocationPct = value
			return nil
		}
	case KindRSI:
		switch name {
		case "period":
			c.RSI.Period = int(math.Round(value))
			return nil
		case "oversold":
			c.RSI.Oversold = value
			return nil
		case "overbought":
			c.RSI.Overbought = value
			return nil
		case "allocation_pct":
			c.RSI.AllocationPct = value
			return nil
		}
	case KindMeanReversion:
		switch name {
		case "period":
			c.MeanReversion.Period = int(math.Round(value))
			return nil
		case "stddev_multiple":
			c.MeanReversion.StdDevMultiple = value
			return nil
		case "stop_loss_pct":
			c.MeanReversion.StopLossPct = value
			return nil
		case "allocation_pct":
			c.MeanReversion.AllocationPct = value
			return nil
		}
	case KindBuyHold:
		if name == "allocation_pct" {
			c.BuyHold.AllocationPct = value
			return nil
		}
	}
	return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("strategy %s has no parameter %q", c.Kind, name))
}
