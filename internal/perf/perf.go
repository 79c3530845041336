// Package perf computes risk/return statistics from a finished
// simulation. Compute is a pure function: it never mutates its inputs
// and never surfaces NaN or Infinity; metrics that cannot be computed
// are nil.
package perf

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/Omareid007/alphaflow-sub005/internal/core"
)

// periodsPerYear annualizes per-bar statistics assuming daily bars.
const periodsPerYear = 252

// Summary is the fixed set of statistics derived from one run.
type Summary struct {
	TotalReturnPct       float64  `json:"total_return_pct"`
	MaxDrawdownPct       float64  `json:"max_drawdown_pct"`
	SharpeRatio          *float64 `json:"sharpe_ratio"`
	SortinoRatio         *float64 `json:"sortino_ratio"`
	CAGR                 *float64 `json:"cagr"`
	CalmarRatio          *float64 `json:"calmar_ratio"`
	WinRatePct           float64  `json:"win_rate_pct"`
	ProfitFactor         *float64 `json:"profit_factor"`
	AvgWinPct            float64  `json:"avg_win_pct"`
	AvgLossPct           float64  `json:"avg_loss_pct"`
	Expectancy           float64  `json:"expectancy"`
	TradeCount           int      `json:"trade_count"`
	TradesPerMonth       float64  `json:"trades_per_month"`
	AvgHoldingPeriodDays *float64 `json:"avg_holding_period_days"`
}

// Compute derives the summary from the equity curve, the realized
// per-trade P&L values and the trade log.
func Compute(initialCash decimal.Decimal, equity []core.EquityPoint, realized []decimal.Decimal, trades []core.TradeEvent) Summary {
	s := Summary{TradeCount: len(trades)}

	initial := initialCash.InexactFloat64()
	values := make([]float64, len(equity))
	for i, p := range equity {
		values[i] = p.Equity.InexactFloat64()
	}

	if len(values) > 0 && initial > 0 {
		s.TotalReturnPct = sanitize((values[len(values)-1] - initial) / initial * 100)
	}
	s.MaxDrawdownPct = maxDrawdownPct(values)

	returns := barReturns(values)
	s.SharpeRatio = sharpe(returns)
	s.SortinoRatio = sortino(returns)
	s.CAGR = cagr(values, initial)
	s.CalmarRatio = calmar(s.CAGR, s.MaxDrawdownPct)

	pnls := make([]float64, len(realized))
	for i, p := range realized {
		pnls[i] = p.InexactFloat64()
	}
	s.fillTradeStats(pnls, initial)

	if len(equity) > 1 {
		elapsedDays := equity[len(equity)-1].Time.Sub(equity[0].Time).Hours() / 24
		if elapsedDays > 0 {
			s.TradesPerMonth = sanitize(float64(len(trades)) / (elapsedDays / 30))
		}
	}

	s.AvgHoldingPeriodDays = avgHoldingDays(trades)

	return s
}

// fillTradeStats computes the win/loss statistics from realized P&L,
// normalized by initial cash.
func (s *Summary) fillTradeStats(pnls []float64, initial float64) {
	if len(pnls) == 0 {
		return
	}

	var grossProfit, grossLoss float64
	var wins, losses int
	for _, pnl := range pnls {
		if pnl > 0 {
			wins++
			grossProfit += pnl
		} else if pnl < 0 {
			losses++
			grossLoss += -pnl
		} else {
			losses++
		}
	}

	winRate := float64(wins) / float64(len(pnls))
	s.WinRatePct = sanitize(winRate * 100)

	if grossLoss > 0 {
		s.ProfitFactor = optional(grossProfit / grossLoss)
	}

	if initial > 0 {
		if wins > 0 {
			s.AvgWinPct = sanitize(grossProfit / float64(wins) / initial * 100)
		}
		if losses > 0 {
			s.AvgLossPct = sanitize(grossLoss / float64(losses) / initial * 100)
		}
	}
	s.Expectancy = sanitize(winRate*s.AvgWinPct - (1-winRate)*s.AvgLossPct)
}

// maxDrawdownPct tracks the running peak across the equity history and
// returns the largest peak-to-trough decline in percent.
func maxDrawdownPct(values []float64) float64 {
	var peak, maxDD float64
	for _, v := range values {
		if !isFinite(v) {
			continue
		}
		if v > peak {
			peak = v
		}
		if peak > 0 {
			dd := (peak - v) / peak * 100
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// barReturns computes simple relative changes between consecutive
// equity points, skipping non-positive or non-finite denominators.
func barReturns(values []float64) []float64 {
	var returns []float64
	for i := 1; i < len(values); i++ {
		prev := values[i-1]
		if prev <= 0 || !isFinite(prev) || !isFinite(values[i]) {
			continue
		}
		returns = append(returns, (values[i]-prev)/prev)
	}
	return returns
}

func sharpe(returns []float64) *float64 {
	if len(returns) < 2 {
		return nil
	}
	mean := meanOf(returns)
	sd := stddevOf(returns, mean)
	if sd == 0 {
		return nil
	}
	return optional(mean * periodsPerYear / (sd * math.Sqrt(periodsPerYear)))
}

func sortino(returns []float64) *float64 {
	if len(returns) < 2 {
		return nil
	}
	var negatives []float64
	for _, r := range returns {
		if r < 0 {
			negatives = append(negatives, r)
		}
	}
	if len(negatives) < 2 {
		return nil
	}
	downside := stddevOf(negatives, meanOf(negatives))
	if downside == 0 {
		return nil
	}
	mean := meanOf(returns)
	return optional(mean * periodsPerYear / (downside * math.Sqrt(periodsPerYear)))
}

// cagr requires at least one year of points and a positive final/initial
// ratio.
func cagr(values []float64, initial float64) *float64 {
	if len(values) < periodsPerYear || initial <= 0 {
		return nil
	}
	ratio := values[len(values)-1] / initial
	if ratio <= 0 || !isFinite(ratio) {
		return nil
	}
	years := float64(len(values)) / periodsPerYear
	return optional(math.Pow(ratio, 1/years) - 1)
}

func calmar(cagr *float64, maxDrawdownPct float64) *float64 {
	if cagr == nil || maxDrawdownPct <= 0 {
		return nil
	}
	return optional(*cagr / maxDrawdownPct)
}

// avgHoldingDays FIFO-matches each sell against the oldest unmatched buy
// lots of the same symbol, weighting the holding duration by matched
// quantity. Returns nil when no sell closes a buy.
func avgHoldingDays(trades []core.TradeEvent) *float64 {
	type lot struct {
		remaining int64
		time      int64 // unix nanos
	}
	lots := make(map[string][]lot)

	var weightedDays float64
	var matchedQty int64

	for _, t := range trades {
		switch t.Side {
		case core.SideBuy:
			lots[t.Symbol] = append(lots[t.Symbol], lot{remaining: t.Quantity, time: t.Time.UnixNano()})
		case core.SideSell:
			toMatch := t.Quantity
			queue := lots[t.Symbol]
			for toMatch > 0 && len(queue) > 0 {
				oldest := &queue[0]
				qty := toMatch
				if qty > oldest.remaining {
					qty = oldest.remaining
				}
				days := float64(t.Time.UnixNano()-oldest.time) / float64(24*60*60*1e9)
				weightedDays += days * float64(qty)
				matchedQty += qty
				oldest.remaining -= qty
				toMatch -= qty
				if oldest.remaining == 0 {
					queue = queue[1:]
				}
			}
			lots[t.Symbol] = queue
		}
	}

	if matchedQty == 0 {
		return nil
	}
	return optional(weightedDays / float64(matchedQty))
}

func meanOf(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stddevOf is the sample standard deviation (n-1 denominator).
func stddevOf(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	return math.Sqrt(variance / float64(len(values)-1))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// sanitize coerces non-finite values to 0 for always-present metrics.
func sanitize(v float64) float64 {
	if !isFinite(v) {
		return 0
	}
	return v
}

// optional returns nil instead of a non-finite value.
func optional(v float64) *float64 {
	if !isFinite(v) {
		return nil
	}
	return &v
}
