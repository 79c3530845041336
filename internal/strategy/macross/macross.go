// Package macross implements a moving-average crossover signal generator.
package macross

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Omareid007/alphaflow-sub005/internal/core"
	"github.com/Omareid007/alphaflow-sub005/internal/indicator"
	"github.com/Omareid007/alphaflow-sub005/internal/strategy"
)

// MACrossover goes long when the fast simple average is above the slow
// one and exits when it drops back below. Position state is tracked per
// symbol so it never pyramids.
type MACrossover struct {
	params      strategy.MACrossoverParams
	initialCash decimal.Decimal
	held        map[string]int64
}

// New creates a MACrossover generator sized against initialCash.
func New(params strategy.MACrossoverParams, initialCash decimal.Decimal) *MACrossover {
	return &MACrossover{
		params:      params,
		initialCash: initialCash,
		held:        make(map[string]int64),
	}
}

func (m *MACrossover) Name() string {
	return string(strategy.KindMACrossover)
}

// OnBar evaluates the crossover for one symbol. It needs slow_period+1
// bars so both the current and preceding averages exist.
func (m *MACrossover) OnBar(bar core.Bar, index int, history []core.Bar) []core.Signal {
	if len(history) < m.params.SlowPeriod+1 {
		return nil
	}

	prices := make([]float64, len(history))
	for i, b := range history {
		prices[i] = b.Close.InexactFloat64()
	}

	fastMA := indicator.SMA(prices, m.params.FastPeriod)
	slowMA := indicator.SMA(prices, m.params.SlowPeriod)
	if len(fastMA) < 2 || len(slowMA) < 2 {
		return nil
	}

	currFast := fastMA[len(fastMA)-1]
	currSlow := slowMA[len(slowMA)-1]

	held := m.held[bar.Symbol]

	if held == 0 && currFast > currSlow {
		qty := strategy.SizeOrder(m.initialCash, m.params.AllocationPct, bar.Close)
		if qty <= 0 {
			return nil
		}
		m.held[bar.Symbol] = qty
		return []core.Signal{{
			Symbol:   bar.Symbol,
			Side:     core.SideBuy,
			Quantity: qty,
			Reason:   fmt.Sprintf("golden cross: MA%d (%.2f) above MA%d (%.2f)", m.params.FastPeriod, currFast, m.params.SlowPeriod, currSlow),
		}}
	}

	if held > 0 && currFast < currSlow {
		m.held[bar.Symbol] = 0
		return []core.Signal{{
			Symbol:   bar.Symbol,
			Side:     core.SideSell,
			Quantity: held,
			Reason:   fmt.Sprintf("death cross: MA%d (%.2f) below MA%d (%.2f)", m.params.FastPeriod, currFast, m.params.SlowPeriod, currSlow),
		}}
	}

	return nil
}
