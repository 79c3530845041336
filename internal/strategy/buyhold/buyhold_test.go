package buyhold

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Omareid007/alphaflow-sub005/internal/core"
	"github.com/Omareid007/alphaflow-sub005/internal/strategy"
)

func bar(symbol string, day int, close float64) core.Bar {
	price := decimal.NewFromFloat(close)
	return core.Bar{
		Symbol: symbol,
		Time:   time.Date(2024, 1, 1+day, 0, 0, 0, 0, time.UTC),
		Open:   price,
		High:   price,
		Low:    price,
		Close:  price,
		Volume: 1000,
	}
}

func TestOnBar_EntersOncePerSymbol(t *testing.T) {
	gen := New(strategy.BuyHoldParams{AllocationPct: 50}, decimal.NewFromInt(1000))

	history := []core.Bar{bar("TEST", 0, 10), bar("TEST", 1, 11), bar("TEST", 2, 9)}

	var signals []core.Signal
	for i, b := range history {
		signals = append(signals, gen.OnBar(b, i, history[:i+1])...)
	}

	// One buy on the first bar, nothing after regardless of price.
	require.Len(t, signals, 1)
	assert.Equal(t, core.SideBuy, signals[0].Side)
	assert.Equal(t, int64(50), signals[0].Quantity) // floor(500 / 10)
}

func TestOnBar_EachSymbolGetsItsOwnEntry(t *testing.T) {
	gen := New(strategy.BuyHoldParams{AllocationPct: 50}, decimal.NewFromInt(1000))

	a := gen.OnBar(bar("AAAA", 0, 10), 0, []core.Bar{bar("AAAA", 0, 10)})
	b := gen.OnBar(bar("BBBB", 0, 25), 0, []core.Bar{bar("BBBB", 0, 25)})

	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, int64(50), a[0].Quantity)
	assert.Equal(t, int64(20), b[0].Quantity)
}

func TestOnBar_SkipsUnaffordableSymbol(t *testing.T) {
	gen := New(strategy.BuyHoldParams{AllocationPct: 1}, decimal.NewFromInt(100))

	// $1 cannot buy a $10 unit, and the miss does not mark the symbol as
	// entered.
	first := gen.OnBar(bar("TEST", 0, 10), 0, []core.Bar{bar("TEST", 0, 10)})
	assert.Empty(t, first)

	cheap := bar("TEST", 1, 0.5)
	second := gen.OnBar(cheap, 1, []core.Bar{bar("TEST", 0, 10), cheap})
	require.Len(t, second, 1)
	assert.Equal(t, int64(2), second[0].Quantity)
}

func TestName(t *testing.T) {
	gen := New(strategy.BuyHoldParams{}, decimal.Zero)
	assert.Equal(t, "buy_hold", gen.Name())
}
