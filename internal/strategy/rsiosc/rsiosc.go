// Package rsiosc implements an RSI oscillator signal generator.
package rsiosc

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Omareid007/alphaflow-sub005/internal/core"
	"github.com/Omareid007/alphaflow-sub005/internal/indicator"
	"github.com/Omareid007/alphaflow-sub005/internal/strategy"
)

// RSIOscillator buys when the Wilder RSI falls below the oversold
// threshold while flat and sells the full position once it rises above
// the overbought threshold.
type RSIOscillator struct {
	params      strategy.RSIParams
	initialCash decimal.Decimal
	held        map[string]int64
}

// New creates an RSIOscillator generator sized against initialCash.
func New(params strategy.RSIParams, initialCash decimal.Decimal) *RSIOscillator {
	return &RSIOscillator{
		params:      params,
		initialCash: initialCash,
		held:        make(map[string]int64),
	}
}

func (r *RSIOscillator) Name() string {
	return string(strategy.KindRSI)
}

// OnBar needs period+1 bars before the first RSI value exists.
func (r *RSIOscillator) OnBar(bar core.Bar, index int, history []core.Bar) []core.Signal {
	if len(history) < r.params.Period+1 {
		return nil
	}

	prices := make([]float64, len(history))
	for i, b := range history {
		prices[i] = b.Close.InexactFloat64()
	}

	rsi := indicator.RSI(prices, r.params.Period)
	if len(rsi) == 0 {
		return nil
	}
	current := rsi[len(rsi)-1]

	held := r.held[bar.Symbol]

	if held == 0 && current < r.params.Oversold {
		qty := strategy.SizeOrder(r.initialCash, r.params.AllocationPct, bar.Close)
		if qty <= 0 {
			return nil
		}
		r.held[bar.Symbol] = qty
		return []core.Signal{{
			Symbol:   bar.Symbol,
			Side:     core.SideBuy,
			Quantity: qty,
			Reason:   fmt.Sprintf("RSI%d %.1f below oversold %.1f", r.params.Period, current, r.params.Oversold),
		}}
	}

	if held > 0 && current > r.params.Overbought {
		r.held[bar.Symbol] = 0
		return []core.Signal{{
			Symbol:   bar.Symbol,
			Side:     core.SideSell,
			Quantity: held,
			Reason:   fmt.Sprintf("RSI%d %.1f above overbought %.1f", r.params.Period, current, r.params.Overbought),
		}}
	}

	return nil
}
