package walkforward

import (
	"fmt"
	"math"

	"github.com/Omareid007/alphaflow-sub005/internal/perf"
)

// score derives the study-level diagnostics from the per-window
// results.
func score(windows []WindowResult) *Result {
	result := &Result{
		Windows:              windows,
		AggregateOutOfSample: aggregate(windows),
	}

	result.OverfittingScore = overfittingScore(windows)
	result.RobustnessScore = robustnessScore(windows)
	result.ParameterStabilityScore = stabilityScore(windows)
	result.IsOverfit = result.OverfittingScore > 0.4 || result.RobustnessScore < 0.5
	result.Recommendations = recommendations(result)

	return result
}

// aggregate averages each out-of-sample metric across windows, except
// max drawdown which takes the worst case and trade count which sums.
// Optional metrics average over the windows where they are present.
func aggregate(windows []WindowResult) perf.Summary {
	var agg perf.Summary
	n := float64(len(windows))
	if n == 0 {
		return agg
	}

	var sharpes, sortinos, cagrs, calmars, pfs, holdings meanAcc
	for _, w := range windows {
		oos := w.OutOfSample
		agg.TotalReturnPct += oos.TotalReturnPct / n
		agg.WinRatePct += oos.WinRatePct / n
		agg.AvgWinPct += oos.AvgWinPct / n
		agg.AvgLossPct += oos.AvgLossPct / n
		agg.Expectancy += oos.Expectancy / n
		agg.TradesPerMonth += oos.TradesPerMonth / n
		agg.TradeCount += oos.TradeCount
		if oos.MaxDrawdownPct > agg.MaxDrawdownPct {
			agg.MaxDrawdownPct = oos.MaxDrawdownPct
		}
		sharpes.add(oos.SharpeRatio)
		sortinos.add(oos.SortinoRatio)
		cagrs.add(oos.CAGR)
		calmars.add(oos.CalmarRatio)
		pfs.add(oos.ProfitFactor)
		holdings.add(oos.AvgHoldingPeriodDays)
	}

	agg.SharpeRatio = sharpes.mean()
	agg.SortinoRatio = sortinos.mean()
	agg.CAGR = cagrs.mean()
	agg.CalmarRatio = calmars.mean()
	agg.ProfitFactor = pfs.mean()
	agg.AvgHoldingPeriodDays = holdings.mean()
	return agg
}

// overfittingScore maps the average degradation into [0,1], with a 0.3
// penalty when the strategy looks good in sample but loses money out of
// sample on a Sharpe basis.
func overfittingScore(windows []WindowResult) float64 {
	var degradation float64
	var isSharpe, oosSharpe meanAcc
	for _, w := range windows {
		degradation += w.DegradationPct
		isSharpe.add(w.InSample.SharpeRatio)
		oosSharpe.add(w.OutOfSample.SharpeRatio)
	}
	degradation /= float64(len(windows))

	s := clamp(degradation/100, 0, 1)
	is, oos := isSharpe.mean(), oosSharpe.mean()
	if is != nil && oos != nil && *is > 0.5 && *oos < 0 {
		s = math.Min(s+0.3, 1)
	}
	return s
}

// robustnessScore blends out-of-sample profitability consistency with
// out-of-sample Sharpe dispersion.
func robustnessScore(windows []WindowResult) float64 {
	var positive int
	var sharpes []float64
	for _, w := range windows {
		if w.OutOfSample.TotalReturnPct > 0 {
			positive++
		}
		if w.OutOfSample.SharpeRatio != nil {
			sharpes = append(sharpes, *w.OutOfSample.SharpeRatio)
		}
	}

	positiveFrac := float64(positive) / float64(len(windows))

	var dispersion float64
	if len(sharpes) >= 2 {
		mean := 0.0
		for _, s := range sharpes {
			mean += s
		}
		mean /= float64(len(sharpes))
		var variance float64
		for _, s := range sharpes {
			variance += (s - mean) * (s - mean)
		}
		dispersion = math.Sqrt(variance / float64(len(sharpes)-1))
	}

	return 0.6*positiveFrac + 0.4*(1-clamp(dispersion/2, 0, 1))
}

// stabilityScore averages per-window parameter stability over windows
// 2..N; the first window's fixed 1.0 is excluded. A single-window study
// scores 1.
func stabilityScore(windows []WindowResult) float64 {
	if len(windows) < 2 {
		return 1
	}
	var total float64
	for _, w := range windows[1:] {
		total += w.ParameterStability
	}
	return total / float64(len(windows)-1)
}

// recommendations turns the scores into reviewer guidance at fixed
// thresholds.
func recommendations(r *Result) []string {
	var out []string

	if r.OverfittingScore > 0.6 {
		out = append(out, "High overfitting risk: reduce parameter complexity or widen the in-sample window.")
	}

	var negativeSharpe int
	var fallbacks int
	for _, w := range r.Windows {
		if w.OutOfSample.SharpeRatio != nil && *w.OutOfSample.SharpeRatio < 0 {
			negativeSharpe++
		}
		if w.FallbackUsed {
			fallbacks++
		}
	}
	if frac := float64(negativeSharpe) / float64(len(r.Windows)); frac > 0.3 {
		out = append(out, fmt.Sprintf("%.0f%% of windows had a negative out-of-sample Sharpe ratio; the strategy may not generalize.", frac*100))
	}
	if r.RobustnessScore < 0.5 {
		out = append(out, "Low robustness: out-of-sample performance is inconsistent across windows.")
	}
	if r.ParameterStabilityScore < 0.5 {
		out = append(out, "Optimized parameters drift heavily between windows; consider fixing or narrowing the ranges.")
	}
	if fallbacks > 0 {
		out = append(out, fmt.Sprintf("%d window(s) fell back to the first parameter combination because no combination met the trade-count floor; treat their results as degraded.", fallbacks))
	}

	if len(out) == 0 {
		out = append(out, "No significant overfitting detected; parameters generalize across windows.")
	}
	return out
}

// meanAcc averages optional metrics over the windows that report them.
type meanAcc struct {
	sum float64
	n   int
}

func (a *meanAcc) add(v *float64) {
	if v != nil {
		a.sum += *v
		a.n++
	}
}

func (a meanAcc) mean() *float64 {
	if a.n == 0 {
		return nil
	}
	m := a.sum / float64(a.n)
	return &m
}
