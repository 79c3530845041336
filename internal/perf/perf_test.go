package perf

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Omareid007/alphaflow-sub005/internal/core"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func equityCurve(values ...float64) []core.EquityPoint {
	points := make([]core.EquityPoint, len(values))
	for i, v := range values {
		points[i] = core.EquityPoint{
			Time:   t0.AddDate(0, 0, i),
			Equity: decimal.NewFromFloat(v),
		}
	}
	return points
}

func pnls(values ...float64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = decimal.NewFromFloat(v)
	}
	return out
}

func TestCompute_TotalReturn(t *testing.T) {
	s := Compute(decimal.NewFromInt(1000), equityCurve(1000, 1100, 1200), nil, nil)
	assert.InDelta(t, 20, s.TotalReturnPct, 1e-9)
}

func TestCompute_MaxDrawdown(t *testing.T) {
	// Largest peak-to-trough drop is 1100 -> 1050: 50/1100 = 4.545%.
	s := Compute(decimal.NewFromInt(1000), equityCurve(1000, 1100, 1050, 1200), nil, nil)
	assert.InDelta(t, 100*50.0/1100.0, s.MaxDrawdownPct, 1e-9)
}

func TestCompute_EmptyInputs(t *testing.T) {
	s := Compute(decimal.NewFromInt(1000), nil, nil, nil)

	assert.Zero(t, s.TotalReturnPct)
	assert.Zero(t, s.MaxDrawdownPct)
	assert.Zero(t, s.WinRatePct)
	assert.Zero(t, s.TradeCount)
	assert.Nil(t, s.SharpeRatio)
	assert.Nil(t, s.SortinoRatio)
	assert.Nil(t, s.CAGR)
	assert.Nil(t, s.CalmarRatio)
	assert.Nil(t, s.ProfitFactor)
	assert.Nil(t, s.AvgHoldingPeriodDays)
}

func TestCompute_OnlyWinningTrades(t *testing.T) {
	// No losing trades: profit factor must be nil, never Infinity.
	s := Compute(decimal.NewFromInt(1000), equityCurve(1000, 1010, 1030), pnls(10, 20), nil)

	assert.Nil(t, s.ProfitFactor)
	assert.InDelta(t, 100, s.WinRatePct, 1e-9)
	assert.InDelta(t, 1.5, s.AvgWinPct, 1e-9) // mean(10,20)/1000*100
	assert.Zero(t, s.AvgLossPct)
}

func TestCompute_ProfitFactor(t *testing.T) {
	s := Compute(decimal.NewFromInt(1000), equityCurve(1000, 1020, 1010), pnls(30, -10), nil)

	require.NotNil(t, s.ProfitFactor)
	assert.InDelta(t, 3, *s.ProfitFactor, 1e-9)
	assert.InDelta(t, 50, s.WinRatePct, 1e-9)
}

func TestCompute_Expectancy(t *testing.T) {
	// 2 wins of 20, 2 losses of 10 on 1000 initial:
	// win rate 0.5, avg win 2%, avg loss 1%, expectancy 0.5*2 - 0.5*1.
	s := Compute(decimal.NewFromInt(1000), equityCurve(1000, 1020), pnls(20, 20, -10, -10), nil)
	assert.InDelta(t, 0.5, s.Expectancy, 1e-9)
}

func TestCompute_SharpeNilOnFlatCurve(t *testing.T) {
	s := Compute(decimal.NewFromInt(1000), equityCurve(1000, 1000, 1000, 1000), nil, nil)
	assert.Nil(t, s.SharpeRatio)
}

func TestCompute_SharpePositiveOnRisingCurve(t *testing.T) {
	s := Compute(decimal.NewFromInt(1000), equityCurve(1000, 1010, 1015, 1030, 1028, 1040), nil, nil)
	require.NotNil(t, s.SharpeRatio)
	assert.Greater(t, *s.SharpeRatio, 0.0)
	assert.False(t, math.IsNaN(*s.SharpeRatio))
}

func TestCompute_CAGRRequiresFullYear(t *testing.T) {
	short := Compute(decimal.NewFromInt(1000), equityCurve(1000, 1100), nil, nil)
	assert.Nil(t, short.CAGR)

	values := make([]float64, 252)
	for i := range values {
		values[i] = 1000 + float64(i)
	}
	long := Compute(decimal.NewFromInt(1000), equityCurve(values...), nil, nil)
	require.NotNil(t, long.CAGR)
	// One year of points ending at 1251: CAGR == total growth.
	assert.InDelta(t, 0.251, *long.CAGR, 1e-9)
}

func TestCompute_CalmarNilWithoutDrawdown(t *testing.T) {
	values := make([]float64, 252)
	for i := range values {
		values[i] = 1000 + float64(i)
	}
	s := Compute(decimal.NewFromInt(1000), equityCurve(values...), nil, nil)
	require.NotNil(t, s.CAGR)
	assert.Nil(t, s.CalmarRatio) // monotone curve has zero drawdown
}

func TestCompute_TradesPerMonth(t *testing.T) {
	// 31 points span 30 days; 10 trades over one month.
	values := make([]float64, 31)
	for i := range values {
		values[i] = 1000
	}
	trades := make([]core.TradeEvent, 10)
	s := Compute(decimal.NewFromInt(1000), equityCurve(values...), nil, trades)

	assert.Equal(t, 10, s.TradeCount)
	assert.InDelta(t, 10, s.TradesPerMonth, 1e-9)
}

func TestAvgHoldingDays_FIFO(t *testing.T) {
	trades := []core.TradeEvent{
		{Symbol: "A", Side: core.SideBuy, Quantity: 10, Time: t0},
		{Symbol: "A", Side: core.SideBuy, Quantity: 10, Time: t0.AddDate(0, 0, 2)},
		// Sells 15: matches 10 from the day-0 lot (4 days) and 5 from
		// the day-2 lot (2 days) -> (10*4 + 5*2) / 15.
		{Symbol: "A", Side: core.SideSell, Quantity: 15, Time: t0.AddDate(0, 0, 4)},
	}

	got := avgHoldingDays(trades)
	require.NotNil(t, got)
	assert.InDelta(t, 50.0/15.0, *got, 1e-9)
}

func TestAvgHoldingDays_NilWithoutSells(t *testing.T) {
	trades := []core.TradeEvent{
		{Symbol: "A", Side: core.SideBuy, Quantity: 10, Time: t0},
	}
	assert.Nil(t, avgHoldingDays(trades))
}

func TestCompute_NeverNaNOrInf(t *testing.T) {
	// Degenerate curve hitting zero equity.
	s := Compute(decimal.NewFromInt(1000), equityCurve(1000, 0, 0), pnls(-1000), nil)

	for name, v := range map[string]float64{
		"total_return": s.TotalReturnPct,
		"max_drawdown": s.MaxDrawdownPct,
		"win_rate":     s.WinRatePct,
		"avg_win":      s.AvgWinPct,
		"avg_loss":     s.AvgLossPct,
		"expectancy":   s.Expectancy,
	} {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "%s is not finite", name)
	}
	for name, v := range map[string]*float64{
		"sharpe":  s.SharpeRatio,
		"sortino": s.SortinoRatio,
		"cagr":    s.CAGR,
		"calmar":  s.CalmarRatio,
		"pf":      s.ProfitFactor,
		"holding": s.AvgHoldingPeriodDays,
	} {
		if v != nil {
			assert.False(t, math.IsNaN(*v) || math.IsInf(*v, 0), "%s is not finite", name)
		}
	}
}
