package backtest

import (
	"context"
	"time"

	"github.com/Omareid007/alphaflow-sub005/internal/core"
	"github.com/Omareid007/alphaflow-sub005/internal/perf"
	"github.com/Omareid007/alphaflow-sub005/internal/sim"
	"github.com/Omareid007/alphaflow-sub005/internal/strategy"
)

// BarProvider supplies historical OHLCV data. Implementations report
// zero or more bars per requested symbol; symbols without data map to
// empty slices.
type BarProvider interface {
	FetchBars(ctx context.Context, symbols []string, timeframe string, start, end time.Time) (map[string][]core.Bar, error)
}

// RunStore persists run records, trade events and equity points.
type RunStore interface {
	InsertRun(ctx context.Context, run *Run) error
	UpdateRunStatus(ctx context.Context, runID string, status Status, errorMessage string) error
	UpdateRunSummary(ctx context.Context, runID string, summary *perf.Summary) error
	InsertTradeEvents(ctx context.Context, trades []core.TradeEvent) error
	InsertEquityPoints(ctx context.Context, points []core.EquityPoint) error
	GetRun(ctx context.Context, runID string) (*Run, error)
}

// Status is the lifecycle state of a run.
type Status string

const (
	StatusQueued  Status = "QUEUED"
	StatusRunning Status = "RUNNING"
	StatusDone    Status = "DONE"
	StatusFailed  Status = "FAILED"
)

// Request describes one backtest invocation.
type Request struct {
	Strategy  strategy.Config
	Universe  []string
	Timeframe string
	Start     time.Time
	End       time.Time
	Sim       sim.Config
}

// Run is the complete record of one backtest.
type Run struct {
	ID           string
	Request      Request
	Status       Status
	Summary      *perf.Summary
	Trades       []core.TradeEvent
	Equity       []core.EquityPoint
	ErrorMessage string
	CreatedAt    time.Time
	FinishedAt   time.Time
}
