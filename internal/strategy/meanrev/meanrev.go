// Package meanrev implements a Bollinger/z-score mean-reversion signal
// generator.
package meanrev

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Omareid007/alphaflow-sub005/internal/core"
	"github.com/Omareid007/alphaflow-sub005/internal/indicator"
	"github.com/Omareid007/alphaflow-sub005/internal/strategy"
)

type position struct {
	quantity   int64
	entryPrice float64
	stopLoss   float64
	takeProfit float64
}

// MeanReversion enters long when price breaks below the lower Bollinger
// band with the z-score beyond -stddev_multiple, then exits on the first
// of stop-loss, take-profit (the entry-time moving average) or price
// reverting to the current mean.
type MeanReversion struct {
	params      strategy.MeanReversionParams
	initialCash decimal.Decimal
	open        map[string]*position
}

// New creates a MeanReversion generator sized against initialCash.
func New(params strategy.MeanReversionParams, initialCash decimal.Decimal) *MeanReversion {
	return &MeanReversion{
		params:      params,
		initialCash: initialCash,
		open:        make(map[string]*position),
	}
}

func (m *MeanReversion) Name() string {
	return string(strategy.KindMeanReversion)
}

func (m *MeanReversion) OnBar(bar core.Bar, index int, history []core.Bar) []core.Signal {
	if len(history) < m.params.Period {
		return nil
	}

	prices := make([]float64, len(history))
	for i, b := range history {
		prices[i] = b.Close.InexactFloat64()
	}

	smaSeries := indicator.SMA(prices, m.params.Period)
	sdSeries := indicator.StdDev(prices, m.params.Period)
	if len(smaSeries) == 0 || len(sdSeries) == 0 {
		return nil
	}
	mean := smaSeries[len(smaSeries)-1]
	sd := sdSeries[len(sdSeries)-1]
	price := bar.Close.InexactFloat64()

	if pos, ok := m.open[bar.Symbol]; ok {
		// Exit priority: stop-loss, take-profit, reversion to mean.
		var reason string
		switch {
		case price <= pos.stopLoss:
			reason = fmt.Sprintf("stop loss hit at %.2f (entry %.2f)", price, pos.entryPrice)
		case price >= pos.takeProfit:
			reason = fmt.Sprintf("take profit hit at %.2f (target %.2f)", price, pos.takeProfit)
		case price >= mean:
			reason = fmt.Sprintf("price %.2f reverted to mean %.2f", price, mean)
		default:
			return nil
		}
		qty := pos.quantity
		delete(m.open, bar.Symbol)
		return []core.Signal{{
			Symbol:   bar.Symbol,
			Side:     core.SideSell,
			Quantity: qty,
			Reason:   reason,
		}}
	}

	if sd == 0 {
		return nil
	}
	lowerBand := mean - m.params.StdDevMultiple*sd
	zScore := (price - mean) / sd

	if price < lowerBand && zScore <= -m.params.StdDevMultiple {
		qty := strategy.SizeOrder(m.initialCash, m.params.AllocationPct, bar.Close)
		if qty <= 0 {
			return nil
		}
		m.open[bar.Symbol] = &position{
			quantity:   qty,
			entryPrice: price,
			stopLoss:   price * (1 - m.params.StopLossPct),
			takeProfit: mean,
		}
		return []core.Signal{{
			Symbol:   bar.Symbol,
			Side:     core.SideBuy,
			Quantity: qty,
			Reason:   fmt.Sprintf("price %.2f below lower band %.2f (z=%.2f)", price, lowerBand, zScore),
		}}
	}

	return nil
}
