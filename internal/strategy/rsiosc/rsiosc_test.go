package rsiosc

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Omareid007/alphaflow-sub005/internal/core"
	"github.com/Omareid007/alphaflow-sub005/internal/strategy"
)

func bars(closes ...float64) []core.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]core.Bar, len(closes))
	for i, c := range closes {
		price := decimal.NewFromFloat(c)
		out[i] = core.Bar{
			Symbol: "TEST",
			Time:   start.AddDate(0, 0, i),
			Open:   price,
			High:   price,
			Low:    price,
			Close:  price,
			Volume: 1000,
		}
	}
	return out
}

func drive(gen strategy.Generator, history []core.Bar) []core.Signal {
	var signals []core.Signal
	for i, bar := range history {
		signals = append(signals, gen.OnBar(bar, i, history[:i+1])...)
	}
	return signals
}

func TestOnBar_OversoldEntryOverboughtExit(t *testing.T) {
	gen := New(strategy.RSIParams{Period: 3, Oversold: 30, Overbought: 70, AllocationPct: 100}, decimal.NewFromInt(1000))

	// Three straight losses pin RSI at 0; the recovery rallies it back
	// above 70 on the last bar.
	signals := drive(gen, bars(100, 98, 96, 94, 96, 98, 100))
	require.Len(t, signals, 2)

	buy := signals[0]
	assert.Equal(t, core.SideBuy, buy.Side)
	assert.Equal(t, int64(10), buy.Quantity) // floor(1000 / 94)
	assert.Contains(t, buy.Reason, "oversold")

	sell := signals[1]
	assert.Equal(t, core.SideSell, sell.Side)
	assert.Equal(t, int64(10), sell.Quantity)
	assert.Contains(t, sell.Reason, "overbought")
}

func TestOnBar_HeldPositionIgnoresFurtherOversold(t *testing.T) {
	gen := New(strategy.RSIParams{Period: 3, Oversold: 30, Overbought: 70, AllocationPct: 100}, decimal.NewFromInt(1000))

	// RSI stays at 0 through the slide; only the first oversold bar buys.
	signals := drive(gen, bars(100, 98, 96, 94, 92, 90))
	require.Len(t, signals, 1)
	assert.Equal(t, core.SideBuy, signals[0].Side)
}

func TestOnBar_NoSignalWithoutEnoughHistory(t *testing.T) {
	gen := New(strategy.RSIParams{Period: 14, Oversold: 30, Overbought: 70, AllocationPct: 100}, decimal.NewFromInt(1000))

	signals := drive(gen, bars(100, 98, 96, 94))
	assert.Empty(t, signals)
}

func TestOnBar_NeutralRSIDoesNothing(t *testing.T) {
	gen := New(strategy.RSIParams{Period: 3, Oversold: 30, Overbought: 70, AllocationPct: 100}, decimal.NewFromInt(1000))

	// Alternating gains and losses keep RSI near 50.
	signals := drive(gen, bars(100, 101, 100, 101, 100, 101))
	assert.Empty(t, signals)
}

func TestName(t *testing.T) {
	gen := New(strategy.RSIParams{}, decimal.Zero)
	assert.Equal(t, "rsi", gen.Name())
}
