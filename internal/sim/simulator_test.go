package sim

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Omareid007/alphaflow-sub005/internal/core"
	"github.com/Omareid007/alphaflow-sub005/internal/strategy"
	"github.com/Omareid007/alphaflow-sub005/internal/strategy/factory"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// flatBars builds daily bars where open=high=low=close=price.
func flatBars(symbol string, prices ...float64) []core.Bar {
	bars := make([]core.Bar, len(prices))
	for i, p := range prices {
		d := decimal.NewFromFloat(p)
		bars[i] = core.Bar{
			Symbol: symbol,
			Time:   day0.AddDate(0, 0, i),
			Open:   d,
			High:   d,
			Low:    d,
			Close:  d,
			Volume: 1000,
		}
	}
	return bars
}

// scriptedGenerator emits pre-programmed signals keyed by bar index.
type scriptedGenerator struct {
	script map[int][]core.Signal
}

func (s *scriptedGenerator) Name() string { return "scripted" }

func (s *scriptedGenerator) OnBar(bar core.Bar, index int, history []core.Bar) []core.Signal {
	return s.script[index]
}

func zeroCostConfig(initialCash int64) Config {
	cfg := DefaultConfig()
	cfg.InitialCash = decimal.NewFromInt(initialCash)
	return cfg
}

func TestSimulate_MACrossoverScenario(t *testing.T) {
	// Five daily bars [10,10,12,12,9], SMA(2) vs SMA(3), 100% allocation,
	// $1000 cash, zero fees/slippage, NEXT_OPEN: exactly one buy signal at
	// bar 3 (first bar with both averages available, fast above slow),
	// filled at bar 4's open of 9.
	cfg := zeroCostConfig(1000)
	gen, err := factory.New(strategy.Config{
		Kind:        strategy.KindMACrossover,
		MACrossover: &strategy.MACrossoverParams{FastPeriod: 2, SlowPeriod: 3, AllocationPct: 100},
	}, cfg.InitialCash)
	require.NoError(t, err)

	bars := map[string][]core.Bar{"TEST": flatBars("TEST", 10, 10, 12, 12, 9)}

	result, err := Simulate(bars, gen, cfg)
	require.NoError(t, err)

	require.Len(t, result.Trades, 1)
	trade := result.Trades[0]
	assert.Equal(t, core.SideBuy, trade.Side)
	assert.Equal(t, day0.AddDate(0, 0, 4), trade.Time)
	assert.True(t, trade.Price.Equal(decimal.NewFromInt(9)), "fill price %s", trade.Price)

	// Sized at the signal bar's close of 12: floor(1000/12) = 83 units.
	assert.Equal(t, int64(83), trade.Quantity)
	// Cash after: 1000 - 83*9 = 253.
	assert.True(t, trade.CashAfter.Equal(decimal.NewFromInt(253)), "cash after %s", trade.CashAfter)
	assert.Equal(t, int64(83), trade.PositionAfter)

	// Final equity: 253 cash + 83 units marked at 9 = 1000.
	last := result.Equity[len(result.Equity)-1]
	assert.True(t, last.Equity.Equal(decimal.NewFromInt(1000)), "final equity %s", last.Equity)
}

func TestSimulate_NoLookAhead(t *testing.T) {
	// A signal generated on bar 2 must not fill on bar 2.
	gen := &scriptedGenerator{script: map[int][]core.Signal{
		2: {{Symbol: "A", Side: core.SideBuy, Quantity: 1, Reason: "test"}},
	}}

	bars := map[string][]core.Bar{"A": flatBars("A", 10, 20, 30, 40)}
	result, err := Simulate(bars, gen, zeroCostConfig(1000))
	require.NoError(t, err)

	require.Len(t, result.Trades, 1)
	// Fills on bar 3's open (40), not bar 2's (30).
	assert.True(t, result.Trades[0].Price.Equal(decimal.NewFromInt(40)))
}

func TestSimulate_SignalOnLastBarNeverFills(t *testing.T) {
	gen := &scriptedGenerator{script: map[int][]core.Signal{
		1: {{Symbol: "A", Side: core.SideBuy, Quantity: 1}},
	}}

	bars := map[string][]core.Bar{"A": flatBars("A", 10, 11)}
	result, err := Simulate(bars, gen, zeroCostConfig(1000))
	require.NoError(t, err)
	assert.Empty(t, result.Trades)
}

func TestSimulate_BuyDroppedWhenCashInsufficient(t *testing.T) {
	gen := &scriptedGenerator{script: map[int][]core.Signal{
		0: {{Symbol: "A", Side: core.SideBuy, Quantity: 100}},
	}}

	// 100 units at 50 needs 5000; only 1000 available. No partial fills.
	bars := map[string][]core.Bar{"A": flatBars("A", 50, 50, 50)}
	result, err := Simulate(bars, gen, zeroCostConfig(1000))
	require.NoError(t, err)
	assert.Empty(t, result.Trades)

	for _, p := range result.Equity {
		assert.True(t, p.Cash.Equal(decimal.NewFromInt(1000)))
	}
}

func TestSimulate_SellClampedToHeldQuantity(t *testing.T) {
	gen := &scriptedGenerator{script: map[int][]core.Signal{
		0: {{Symbol: "A", Side: core.SideBuy, Quantity: 5}},
		1: {{Symbol: "A", Side: core.SideSell, Quantity: 50}},
	}}

	bars := map[string][]core.Bar{"A": flatBars("A", 10, 10, 10, 10)}
	result, err := Simulate(bars, gen, zeroCostConfig(1000))
	require.NoError(t, err)

	require.Len(t, result.Trades, 2)
	sell := result.Trades[1]
	assert.Equal(t, core.SideSell, sell.Side)
	assert.Equal(t, int64(5), sell.Quantity)
	assert.Equal(t, int64(0), sell.PositionAfter)
}

func TestSimulate_SellWithNothingHeldDropped(t *testing.T) {
	gen := &scriptedGenerator{script: map[int][]core.Signal{
		0: {{Symbol: "A", Side: core.SideSell, Quantity: 5}},
	}}

	bars := map[string][]core.Bar{"A": flatBars("A", 10, 10)}
	result, err := Simulate(bars, gen, zeroCostConfig(1000))
	require.NoError(t, err)
	assert.Empty(t, result.Trades)
}

func TestSimulate_PercentFeesAndBpsSlippage(t *testing.T) {
	cfg := zeroCostConfig(10000)
	cfg.Fees = FeeModel{Kind: FeePercent, Value: decimal.NewFromInt(1)}    // 1% of notional
	cfg.Slippage = SlippageModel{Kind: SlippageBps, Bps: decimal.NewFromInt(100)} // 100 bps = 1%

	gen := &scriptedGenerator{script: map[int][]core.Signal{
		0: {{Symbol: "A", Side: core.SideBuy, Quantity: 10}},
	}}

	bars := map[string][]core.Bar{"A": flatBars("A", 100, 100, 100)}
	result, err := Simulate(bars, gen, cfg)
	require.NoError(t, err)

	require.Len(t, result.Trades, 1)
	trade := result.Trades[0]
	// Buy slips up: 100 * 1.01 = 101.
	assert.True(t, trade.Price.Equal(decimal.NewFromInt(101)), "price %s", trade.Price)
	// Fees: 1% of 1010 notional = 10.10.
	assert.True(t, trade.Fees.Equal(decimal.RequireFromString("10.1")), "fees %s", trade.Fees)
	// Cash: 10000 - 1010 - 10.10 = 8979.90.
	assert.True(t, trade.CashAfter.Equal(decimal.RequireFromString("8979.9")), "cash %s", trade.CashAfter)
}

func TestSimulate_SellSlipsDown(t *testing.T) {
	cfg := zeroCostConfig(10000)
	cfg.Slippage = SlippageModel{Kind: SlippageBps, Bps: decimal.NewFromInt(100)}

	gen := &scriptedGenerator{script: map[int][]core.Signal{
		0: {{Symbol: "A", Side: core.SideBuy, Quantity: 10}},
		1: {{Symbol: "A", Side: core.SideSell, Quantity: 10}},
	}}

	bars := map[string][]core.Bar{"A": flatBars("A", 100, 100, 100)}
	result, err := Simulate(bars, gen, cfg)
	require.NoError(t, err)

	require.Len(t, result.Trades, 2)
	assert.True(t, result.Trades[0].Price.Equal(decimal.NewFromInt(101)))
	assert.True(t, result.Trades[1].Price.Equal(decimal.NewFromInt(99)))
}

func TestSimulate_SpreadProxySlippage(t *testing.T) {
	cfg := zeroCostConfig(10000)
	cfg.Slippage = SlippageModel{Kind: SlippageSpread}

	gen := &scriptedGenerator{script: map[int][]core.Signal{
		0: {{Symbol: "A", Side: core.SideBuy, Quantity: 1}},
	}}

	bar0 := flatBars("A", 100)[0]
	bar1 := core.Bar{
		Symbol: "A", Time: day0.AddDate(0, 0, 1),
		Open:  decimal.NewFromInt(100),
		High:  decimal.NewFromInt(104),
		Low:   decimal.NewFromInt(100),
		Close: decimal.NewFromInt(102),
	}
	result, err := Simulate(map[string][]core.Bar{"A": {bar0, bar1}}, gen, cfg)
	require.NoError(t, err)

	require.Len(t, result.Trades, 1)
	// Half the 4-point range added to the open: 102.
	assert.True(t, result.Trades[0].Price.Equal(decimal.NewFromInt(102)))
}

func TestSimulate_RealizedPnL(t *testing.T) {
	gen := &scriptedGenerator{script: map[int][]core.Signal{
		0: {{Symbol: "A", Side: core.SideBuy, Quantity: 10}},
		2: {{Symbol: "A", Side: core.SideSell, Quantity: 10}},
	}}

	bars := map[string][]core.Bar{"A": flatBars("A", 100, 100, 110, 120)}
	result, err := Simulate(bars, gen, zeroCostConfig(10000))
	require.NoError(t, err)

	// Bought at 100 (bar 1 open), sold at 120 (bar 3 open): +200.
	require.Len(t, result.RealizedPnL, 1)
	assert.True(t, result.RealizedPnL[0].Equal(decimal.NewFromInt(200)), "pnl %s", result.RealizedPnL[0])
}

func TestSimulate_NextCloseRule(t *testing.T) {
	cfg := zeroCostConfig(10000)
	cfg.PriceRule = ExecNextClose

	gen := &scriptedGenerator{script: map[int][]core.Signal{
		0: {{Symbol: "A", Side: core.SideBuy, Quantity: 1}},
	}}

	bar0 := flatBars("A", 100)[0]
	bar1 := core.Bar{
		Symbol: "A", Time: day0.AddDate(0, 0, 1),
		Open:  decimal.NewFromInt(100),
		High:  decimal.NewFromInt(106),
		Low:   decimal.NewFromInt(99),
		Close: decimal.NewFromInt(105),
	}
	result, err := Simulate(map[string][]core.Bar{"A": {bar0, bar1}}, gen, cfg)
	require.NoError(t, err)

	require.Len(t, result.Trades, 1)
	assert.True(t, result.Trades[0].Price.Equal(decimal.NewFromInt(105)))
}

func TestSimulate_EquityRecomputedFromPositions(t *testing.T) {
	gen := &scriptedGenerator{script: map[int][]core.Signal{
		0: {{Symbol: "A", Side: core.SideBuy, Quantity: 10}},
	}}

	bars := map[string][]core.Bar{"A": flatBars("A", 100, 100, 120, 90)}
	result, err := Simulate(bars, gen, zeroCostConfig(10000))
	require.NoError(t, err)

	// After the fill at bar 1, cash = 9000 and the position is 10 units.
	wantEquity := []int64{10000, 10000, 10200, 9900}
	require.Len(t, result.Equity, len(wantEquity))
	for i, want := range wantEquity {
		assert.True(t, result.Equity[i].Equity.Equal(decimal.NewFromInt(want)),
			"equity[%d] = %s, want %d", i, result.Equity[i].Equity, want)
	}

	// Exposure is zero while flat, then |qty * mark|.
	assert.True(t, result.Equity[0].Exposure.IsZero())
	assert.True(t, result.Equity[2].Exposure.Equal(decimal.NewFromInt(1200)))
}

func TestSimulate_CashNeverNegative(t *testing.T) {
	cfg := zeroCostConfig(1000)
	cfg.Fees = FeeModel{Kind: FeeFixed, Value: decimal.NewFromInt(5)}

	gen := &scriptedGenerator{script: map[int][]core.Signal{
		0: {{Symbol: "A", Side: core.SideBuy, Quantity: 9}},
		1: {{Symbol: "A", Side: core.SideBuy, Quantity: 9}},
		2: {{Symbol: "A", Side: core.SideBuy, Quantity: 9}},
	}}

	bars := map[string][]core.Bar{"A": flatBars("A", 100, 100, 100, 100, 100)}
	result, err := Simulate(bars, gen, cfg)
	require.NoError(t, err)

	for _, trade := range result.Trades {
		assert.False(t, trade.CashAfter.IsNegative(), "cash went negative: %s", trade.CashAfter)
		assert.GreaterOrEqual(t, trade.PositionAfter, int64(0))
	}
}

func TestSimulate_MultiSymbolTieBreakIsLexicographic(t *testing.T) {
	_ = &scriptedGenerator{script: map[int][]core.Signal{}}

	// ZZZ listed first in the map; identical timestamps everywhere.
	bars := map[string][]core.Bar{
		"ZZZ": flatBars("ZZZ", 1, 2, 3),
		"AAA": flatBars("AAA", 1, 2, 3),
	}
	events := mergeBars(bars)
	require.Len(t, events, 6)
	for i := 0; i < 6; i += 2 {
		assert.Equal(t, "AAA", events[i].bar.Symbol)
		assert.Equal(t, "ZZZ", events[i+1].bar.Symbol)
	}
}

func TestSimulate_Deterministic(t *testing.T) {
	cfg := zeroCostConfig(10000)
	cfg.Fees = FeeModel{Kind: FeePercent, Value: decimal.NewFromFloat(0.1)}
	cfg.Slippage = SlippageModel{Kind: SlippageBps, Bps: decimal.NewFromInt(10)}

	bars := map[string][]core.Bar{
		"AAA": flatBars("AAA", 10, 11, 9, 12, 8, 14, 13, 11, 15, 16),
		"BBB": flatBars("BBB", 50, 52, 48, 55, 47, 60, 58, 53, 62, 61),
	}

	run := func() *Result {
		gen, err := factory.New(strategy.Config{
			Kind:        strategy.KindMACrossover,
			MACrossover: &strategy.MACrossoverParams{FastPeriod: 2, SlowPeriod: 3, AllocationPct: 20},
		}, cfg.InitialCash)
		require.NoError(t, err)
		result, err := Simulate(bars, gen, cfg)
		require.NoError(t, err)
		return result
	}

	first := run()
	second := run()
	assert.Equal(t, first.Trades, second.Trades)
	assert.Equal(t, first.Equity, second.Equity)
	assert.Equal(t, first.RealizedPnL, second.RealizedPnL)
}

func TestSimulate_EmptyBars(t *testing.T) {
	gen := &scriptedGenerator{}
	_, err := Simulate(map[string][]core.Bar{}, gen, zeroCostConfig(1000))
	assert.ErrorIs(t, err, core.ErrNoData)
}
