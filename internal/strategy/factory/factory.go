// Package factory constructs signal generators from typed configuration.
package factory

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Omareid007/alphaflow-sub005/internal/core"
	"github.com/Omareid007/alphaflow-sub005/internal/strategy"
	"github.com/Omareid007/alphaflow-sub005/internal/strategy/buyhold"
	"github.com/Omareid007/alphaflow-sub005/internal/strategy/macross"
	"github.com/Omareid007/alphaflow-sub005/internal/strategy/meanrev"
	"github.com/Omareid007/alphaflow-sub005/internal/strategy/rsiosc"
)

// New creates a fresh generator for the configured strategy kind. A new
// generator is built per run so no position state leaks across runs.
func New(cfg strategy.Config, initialCash decimal.Decimal) (strategy.Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Kind {
	case strategy.KindMACrossover:
		return macross.New(*cfg.MACrossover, initialCash), nil
	case strategy.KindRSI:
		return rsiosc.New(*cfg.RSI, initialCash), nil
	case strategy.KindMeanReversion:
		return meanrev.New(*cfg.MeanReversion, initialCash), nil
	case strategy.KindBuyHold:
		return buyhold.New(*cfg.BuyHold, initialCash), nil
	default:
		return nil, core.WrapError(core.ErrUnknownStrategy, fmt.Errorf("kind %q", cfg.Kind))
	}
}
