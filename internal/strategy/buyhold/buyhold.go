// Package buyhold implements a buy-and-hold signal generator.
package buyhold

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Omareid007/alphaflow-sub005/internal/core"
	"github.com/Omareid007/alphaflow-sub005/internal/strategy"
)

// BuyHold enters each symbol once, sized by allocation percentage, and
// never exits.
type BuyHold struct {
	params      strategy.BuyHoldParams
	initialCash decimal.Decimal
	entered     map[string]bool
}

// New creates a BuyHold generator sized against initialCash.
func New(params strategy.BuyHoldParams, initialCash decimal.Decimal) *BuyHold {
	return &BuyHold{
		params:      params,
		initialCash: initialCash,
		entered:     make(map[string]bool),
	}
}

func (b *BuyHold) Name() string {
	return string(strategy.KindBuyHold)
}

func (b *BuyHold) OnBar(bar core.Bar, index int, history []core.Bar) []core.Signal {
	if b.entered[bar.Symbol] {
		return nil
	}

	qty := strategy.SizeOrder(b.initialCash, b.params.AllocationPct, bar.Close)
	if qty <= 0 {
		return nil
	}
	b.entered[bar.Symbol] = true

	return []core.Signal{{
		Symbol:   bar.Symbol,
		Side:     core.SideBuy,
		Quantity: qty,
		Reason:   fmt.Sprintf("buy and hold entry (%.0f%% allocation)", b.params.AllocationPct),
	}}
}
