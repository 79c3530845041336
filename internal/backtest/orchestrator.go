// Package backtest coordinates one simulation run: it fetches bars from
// the provider, drives the simulator and metrics calculator, and
// persists the results.
package backtest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Omareid007/alphaflow-sub005/internal/core"
	"github.com/Omareid007/alphaflow-sub005/internal/metrics"
	"github.com/Omareid007/alphaflow-sub005/internal/perf"
	"github.com/Omareid007/alphaflow-sub005/internal/sim"
	"github.com/Omareid007/alphaflow-sub005/internal/strategy/factory"
)

const (
	// persistBatchSize bounds rows per insert call.
	persistBatchSize = 100
	// maxEquityPoints bounds persisted equity points per run; the curve
	// is stride-sampled above this.
	maxEquityPoints = 1000
)

// Orchestrator runs backtests against a provider and a store.
type Orchestrator struct {
	provider BarProvider
	store    RunStore
	registry *metrics.Registry
	logger   *zap.Logger
}

// New creates an Orchestrator. registry may be nil to skip
// instrumentation; a nil logger falls back to a no-op logger.
func New(provider BarProvider, store RunStore, registry *metrics.Registry, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		provider: provider,
		store:    store,
		registry: registry,
		logger:   logger,
	}
}

// Run executes one backtest end to end. The returned Run carries the
// final status; the error is non-nil only for failures before a run
// record exists.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Run, error) {
	started := time.Now()

	run := &Run{
		ID:        uuid.NewString(),
		Request:   req,
		Status:    StatusQueued,
		CreatedAt: started,
	}
	if err := o.store.InsertRun(ctx, run); err != nil {
		return nil, fmt.Errorf("inserting run: %w", err)
	}

	run.Status = StatusRunning
	if err := o.store.UpdateRunStatus(ctx, run.ID, StatusRunning, ""); err != nil {
		return nil, fmt.Errorf("updating run status: %w", err)
	}

	o.logger.Info("backtest started",
		zap.String("run_id", run.ID),
		zap.String("strategy", string(req.Strategy.Kind)),
		zap.Strings("universe", req.Universe),
	)

	if err := o.execute(ctx, run, req); err != nil {
		run.Status = StatusFailed
		run.ErrorMessage = err.Error()
		run.FinishedAt = time.Now()
		o.logger.Error("backtest failed", zap.String("run_id", run.ID), zap.Error(err))
		if storeErr := o.store.UpdateRunStatus(ctx, run.ID, StatusFailed, run.ErrorMessage); storeErr != nil {
			o.logger.Error("recording failure status", zap.String("run_id", run.ID), zap.Error(storeErr))
		}
		o.record(StatusFailed, started, 0)
		return run, nil
	}

	run.Status = StatusDone
	run.FinishedAt = time.Now()
	if err := o.store.UpdateRunStatus(ctx, run.ID, StatusDone, ""); err != nil {
		o.logger.Error("recording done status", zap.String("run_id", run.ID), zap.Error(err))
	}

	o.logger.Info("backtest finished",
		zap.String("run_id", run.ID),
		zap.Int("trades", len(run.Trades)),
		zap.Float64("total_return_pct", run.Summary.TotalReturnPct),
	)
	o.record(StatusDone, started, len(run.Trades))
	return run, nil
}

// execute performs the fetch/simulate/measure/persist chain, mutating
// run in place on success.
func (o *Orchestrator) execute(ctx context.Context, run *Run, req Request) error {
	barsBySymbol, err := o.provider.FetchBars(ctx, req.Universe, req.Timeframe, req.Start, req.End)
	if err != nil {
		return core.WrapError(core.ErrProviderFailed, err)
	}

	if err := checkCoverage(barsBySymbol, req); err != nil {
		return err
	}

	gen, err := factory.New(req.Strategy, req.Sim.InitialCash)
	if err != nil {
		return err
	}

	result, err := sim.Simulate(barsBySymbol, gen, req.Sim)
	if err != nil {
		return core.WrapError(core.ErrSimulationFailed, err)
	}

	for i := range result.Trades {
		result.Trades[i].RunID = run.ID
	}
	for i := range result.Equity {
		result.Equity[i].RunID = run.ID
	}

	summary := perf.Compute(req.Sim.InitialCash, result.Equity, result.RealizedPnL, result.Trades)

	run.Trades = result.Trades
	run.Equity = result.Equity
	run.Summary = &summary

	if err := o.store.UpdateRunSummary(ctx, run.ID, &summary); err != nil {
		return fmt.Errorf("storing summary: %w", err)
	}
	return o.persist(ctx, result)
}

// checkCoverage fails the run when no symbol returned any data, naming
// the empty symbols and the requested range.
func checkCoverage(barsBySymbol map[string][]core.Bar, req Request) error {
	total := 0
	var empty []string
	for _, symbol := range req.Universe {
		n := len(barsBySymbol[symbol])
		total += n
		if n == 0 {
			empty = append(empty, symbol)
		}
	}
	if total == 0 {
		sort.Strings(empty)
		return core.WrapError(core.ErrNoData,
			fmt.Errorf("no bars for symbols [%s] between %s and %s",
				strings.Join(empty, ", "),
				req.Start.Format("2006-01-02"), req.End.Format("2006-01-02")))
	}
	return nil
}

// persist writes trade events and the down-sampled equity curve in
// batches.
func (o *Orchestrator) persist(ctx context.Context, result *sim.Result) error {
	for start := 0; start < len(result.Trades); start += persistBatchSize {
		end := start + persistBatchSize
		if end > len(result.Trades) {
			end = len(result.Trades)
		}
		if err := o.store.InsertTradeEvents(ctx, result.Trades[start:end]); err != nil {
			return fmt.Errorf("inserting trade events: %w", err)
		}
	}

	points := Downsample(result.Equity, maxEquityPoints)
	for start := 0; start < len(points); start += persistBatchSize {
		end := start + persistBatchSize
		if end > len(points) {
			end = len(points)
		}
		if err := o.store.InsertEquityPoints(ctx, points[start:end]); err != nil {
			return fmt.Errorf("inserting equity points: %w", err)
		}
	}
	return nil
}

// Downsample reduces the curve to at most limit points using a uniform
// stride, always keeping the final point.
func Downsample(points []core.EquityPoint, limit int) []core.EquityPoint {
	if limit <= 0 || len(points) <= limit {
		return points
	}

	stride := (len(points) + limit - 1) / limit
	out := make([]core.EquityPoint, 0, limit)
	for i := 0; i < len(points); i += stride {
		out = append(out, points[i])
	}
	last := points[len(points)-1]
	if len(out) == 0 || !out[len(out)-1].Time.Equal(last.Time) {
		out = append(out, last)
	}
	return out
}

func (o *Orchestrator) record(status Status, started time.Time, trades int) {
	if o.registry == nil {
		return
	}
	o.registry.RecordBacktest(strings.ToLower(string(status)), time.Since(started), trades)
}
