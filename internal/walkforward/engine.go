package walkforward

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Omareid007/alphaflow-sub005/internal/backtest"
	"github.com/Omareid007/alphaflow-sub005/internal/core"
	"github.com/Omareid007/alphaflow-sub005/internal/metrics"
	"github.com/Omareid007/alphaflow-sub005/internal/perf"
	"github.com/Omareid007/alphaflow-sub005/internal/sim"
	"github.com/Omareid007/alphaflow-sub005/internal/strategy"
	"github.com/Omareid007/alphaflow-sub005/internal/strategy/factory"
)

// Metric selects what the grid search maximizes.
type Metric string

const (
	MetricSharpe       Metric = "sharpe"
	MetricSortino      Metric = "sortino"
	MetricCalmar       Metric = "calmar"
	MetricReturns      Metric = "returns"
	MetricProfitFactor Metric = "profit_factor"
)

// Config drives one walk-forward study.
type Config struct {
	InSampleDays    int          `mapstructure:"in_sample_days"`
	OutOfSampleDays int          `mapstructure:"out_of_sample_days"`
	StepDays        int          `mapstructure:"step_days"`
	Ranges          []ParamRange `mapstructure:"ranges"`
	MinTrades       int          `mapstructure:"min_trades"`
	Metric          Metric       `mapstructure:"metric"`
	MaxConcurrency  int          `mapstructure:"max_concurrency"`
}

// Request describes one walk-forward study invocation. Strategy is the
// base configuration; grid combinations override its parameters window
// by window.
type Request struct {
	Strategy  strategy.Config
	Universe  []string
	Timeframe string
	Start     time.Time
	End       time.Time
	Sim       sim.Config
	Study     Config
}

// WindowResult is one evaluated window: the parameters the in-sample
// optimization picked, both summaries, and the per-window diagnostics.
type WindowResult struct {
	Window             Window             `json:"window"`
	Parameters         map[string]float64 `json:"parameters"`
	FallbackUsed       bool               `json:"fallback_used"`
	InSample           perf.Summary       `json:"in_sample"`
	OutOfSample        perf.Summary       `json:"out_of_sample"`
	DegradationPct     float64            `json:"degradation_pct"`
	ParameterStability float64            `json:"parameter_stability"`
}

// Result is the study-level outcome.
type Result struct {
	Windows                 []WindowResult `json:"windows"`
	AggregateOutOfSample    perf.Summary   `json:"aggregate_out_of_sample"`
	OverfittingScore        float64        `json:"overfitting_score"`
	RobustnessScore         float64        `json:"robustness_score"`
	ParameterStabilityScore float64        `json:"parameter_stability_score"`
	IsOverfit               bool           `json:"is_overfit"`
	Recommendations         []string       `json:"recommendations"`
}

// Engine runs walk-forward studies. The simulation core is pure, so the
// engine fetches each window's bars once and evaluates the whole grid
// against that shared read-only set on a bounded worker pool.
type Engine struct {
	provider backtest.BarProvider
	registry *metrics.Registry
	logger   *zap.Logger
}

// NewEngine creates an Engine. registry may be nil; a nil logger falls
// back to a no-op logger.
func NewEngine(provider backtest.BarProvider, registry *metrics.Registry, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{provider: provider, registry: registry, logger: logger}
}

// Run executes the study. On cancellation mid-study the windows already
// completed are kept and scored; the context error is returned only
// when no window finished at all.
func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	started := time.Now()

	windows, err := GenerateWindows(req.Start, req.End, req.Study.InSampleDays, req.Study.OutOfSampleDays, req.Study.StepDays)
	if err != nil {
		e.recordStudy("failed", started)
		return nil, err
	}
	combos, err := Combinations(req.Study.Ranges)
	if err != nil {
		e.recordStudy("failed", started)
		return nil, err
	}
	if err := req.Strategy.Validate(); err != nil {
		e.recordStudy("failed", started)
		return nil, err
	}

	e.logger.Info("walk-forward study started",
		zap.String("strategy", string(req.Strategy.Kind)),
		zap.Int("windows", len(windows)),
		zap.Int("combinations", len(combos)),
	)

	var results []WindowResult
	for _, window := range windows {
		if ctx.Err() != nil {
			break
		}
		wr, err := e.evaluateWindow(ctx, req, window, combos, lastParams(results))
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			e.recordStudy("failed", started)
			return nil, fmt.Errorf("window %d: %w", window.Index, err)
		}
		results = append(results, *wr)
		if e.registry != nil {
			e.registry.RecordWindow()
		}
	}

	if len(results) == 0 {
		e.recordStudy("cancelled", started)
		return nil, ctx.Err()
	}

	result := score(results)
	e.logger.Info("walk-forward study finished",
		zap.Int("windows", len(result.Windows)),
		zap.Float64("overfitting_score", result.OverfittingScore),
		zap.Float64("robustness_score", result.RobustnessScore),
		zap.Bool("is_overfit", result.IsOverfit),
	)
	e.recordStudy("done", started)
	return result, nil
}

// comboEval is one grid point's in-sample outcome.
type comboEval struct {
	summary perf.Summary
	err     error
}

// evaluateWindow optimizes over the grid in sample and validates the
// winner out of sample. prevParams carries the previous window's
// optimized parameters for the stability diagnostic.
func (e *Engine) evaluateWindow(ctx context.Context, req Request, window Window, combos []map[string]float64, prevParams map[string]float64) (*WindowResult, error) {
	bars, err := e.provider.FetchBars(ctx, req.Universe, req.Timeframe, window.InSampleStart, window.OutOfSampleEnd)
	if err != nil {
		return nil, core.WrapError(core.ErrProviderFailed, err)
	}
	isBars := sliceBars(bars, window.InSampleStart, window.InSampleEnd)
	oosBars := sliceBars(bars, window.OutOfSampleStart, window.OutOfSampleEnd)

	evals := make([]comboEval, len(combos))
	g, gctx := errgroup.WithContext(ctx)
	limit := req.Study.MaxConcurrency
	if limit <= 0 {
		limit = 4
	}
	g.SetLimit(limit)

	for i, combo := range combos {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			summary, err := e.evaluate(req, combo, isBars)
			evals[i] = comboEval{summary: summary, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	best, fallback := e.selectBest(combos, evals, req.Study)
	if fallback {
		e.logger.Warn("no grid combination met the trade-count floor, using first combination",
			zap.Int("window", window.Index),
			zap.Int("min_trades", req.Study.MinTrades),
		)
	}

	isSummary := evals[best].summary
	oosSummary, err := e.evaluate(req, combos[best], oosBars)
	if err != nil {
		return nil, err
	}

	isScore := metricValue(isSummary, req.Study.Metric)
	oosScore := metricValue(oosSummary, req.Study.Metric)

	return &WindowResult{
		Window:             window,
		Parameters:         combos[best],
		FallbackUsed:       fallback,
		InSample:           isSummary,
		OutOfSample:        oosSummary,
		DegradationPct:     degradationPct(isScore, oosScore),
		ParameterStability: stability(prevParams, combos[best], req.Study.Ranges),
	}, nil
}

// evaluate runs one simulation with the combo's overrides applied.
func (e *Engine) evaluate(req Request, combo map[string]float64, bars map[string][]core.Bar) (perf.Summary, error) {
	cfg, err := req.Strategy.WithOverrides(combo)
	if err != nil {
		return perf.Summary{}, err
	}
	if err := cfg.Validate(); err != nil {
		return perf.Summary{}, err
	}
	gen, err := factory.New(cfg, req.Sim.InitialCash)
	if err != nil {
		return perf.Summary{}, err
	}
	result, err := sim.Simulate(bars, gen, req.Sim)
	if err != nil {
		return perf.Summary{}, err
	}
	return perf.Compute(req.Sim.InitialCash, result.Equity, result.RealizedPnL, result.Trades), nil
}

// selectBest picks the qualifying combination maximizing the study
// metric. Combinations below the trade-count floor or that failed to
// evaluate are skipped; when nothing qualifies the first combination is
// returned with fallback set.
func (e *Engine) selectBest(combos []map[string]float64, evals []comboEval, cfg Config) (int, bool) {
	best := -1
	bestScore := math.Inf(-1)
	for i, eval := range evals {
		switch {
		case eval.err != nil:
			e.recordGridEvaluation("failed")
			continue
		case eval.summary.TradeCount < cfg.MinTrades:
			e.recordGridEvaluation("below_min_trades")
			continue
		}
		e.recordGridEvaluation("kept")
		if score := metricValue(eval.summary, cfg.Metric); score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return 0, true
	}
	return best, false
}

// metricValue extracts the optimization metric from a summary. Missing
// optional metrics rank below any present value.
func metricValue(s perf.Summary, metric Metric) float64 {
	deref := func(v *float64) float64 {
		if v == nil {
			return math.Inf(-1)
		}
		return *v
	}
	switch metric {
	case MetricSortino:
		return deref(s.SortinoRatio)
	case MetricCalmar:
		return deref(s.CalmarRatio)
	case MetricReturns:
		return s.TotalReturnPct
	case MetricProfitFactor:
		return deref(s.ProfitFactor)
	default:
		return deref(s.SharpeRatio)
	}
}

// degradationPct is how much the optimization metric fell out of
// sample, relative to the in-sample score.
func degradationPct(isScore, oosScore float64) float64 {
	if isScore == 0 || math.IsInf(isScore, 0) || math.IsInf(oosScore, 0) {
		return 0
	}
	return (isScore - oosScore) / math.Abs(isScore) * 100
}

// stability compares this window's optimized parameters with the
// previous window's: 1 minus the average absolute parameter move
// normalized by each range's width, clamped to [0,1]. The first window
// has no predecessor and scores 1.
func stability(prev, curr map[string]float64, ranges []ParamRange) float64 {
	if prev == nil {
		return 1
	}
	var total float64
	var counted int
	for _, r := range ranges {
		width := r.Width()
		if width <= 0 {
			continue
		}
		total += math.Abs(curr[r.Name]-prev[r.Name]) / width
		counted++
	}
	if counted == 0 {
		return 1
	}
	return clamp(1-total/float64(counted), 0, 1)
}

func lastParams(results []WindowResult) map[string]float64 {
	if len(results) == 0 {
		return nil
	}
	return results[len(results)-1].Parameters
}

// sliceBars restricts each symbol's history to [start, end).
func sliceBars(bars map[string][]core.Bar, start, end time.Time) map[string][]core.Bar {
	out := make(map[string][]core.Bar, len(bars))
	for symbol, history := range bars {
		var kept []core.Bar
		for _, bar := range history {
			if !bar.Time.Before(start) && bar.Time.Before(end) {
				kept = append(kept, bar)
			}
		}
		out[symbol] = kept
	}
	return out
}

func (e *Engine) recordGridEvaluation(outcome string) {
	if e.registry != nil {
		e.registry.RecordGridEvaluation(outcome)
	}
}

func (e *Engine) recordStudy(status string, started time.Time) {
	if e.registry != nil {
		e.registry.RecordStudy(status, time.Since(started))
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
