// Package run persists backtest run records, trade events and equity
// points.
package run

import (
	"context"
	"sync"
	"time"

	"github.com/Omareid007/alphaflow-sub005/internal/backtest"
	"github.com/Omareid007/alphaflow-sub005/internal/core"
	"github.com/Omareid007/alphaflow-sub005/internal/perf"
)

// MemoryStore is an in-memory run store, used for one-shot CLI runs and
// tests.
type MemoryStore struct {
	mu     sync.RWMutex
	runs   map[string]*backtest.Run
	trades map[string][]core.TradeEvent
	equity map[string][]core.EquityPoint
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:   make(map[string]*backtest.Run),
		trades: make(map[string][]core.TradeEvent),
		equity: make(map[string][]core.EquityPoint),
	}
}

// InsertRun records a new run.
func (m *MemoryStore) InsertRun(_ context.Context, run *backtest.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *run
	m.runs[run.ID] = &copied
	return nil
}

// UpdateRunStatus transitions a run's lifecycle state.
func (m *MemoryStore) UpdateRunStatus(_ context.Context, runID string, status backtest.Status, errorMessage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[runID]
	if !ok {
		return core.ErrRunNotFound
	}
	run.Status = status
	run.ErrorMessage = errorMessage
	if status == backtest.StatusDone || status == backtest.StatusFailed {
		run.FinishedAt = time.Now()
	}
	return nil
}

// UpdateRunSummary stores the computed performance summary.
func (m *MemoryStore) UpdateRunSummary(_ context.Context, runID string, summary *perf.Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[runID]
	if !ok {
		return core.ErrRunNotFound
	}
	run.Summary = summary
	return nil
}

// InsertTradeEvents appends a batch of fills.
func (m *MemoryStore) InsertTradeEvents(_ context.Context, trades []core.TradeEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range trades {
		m.trades[t.RunID] = append(m.trades[t.RunID], t)
	}
	return nil
}

// InsertEquityPoints appends a batch of equity curve points.
func (m *MemoryStore) InsertEquityPoints(_ context.Context, points []core.EquityPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range points {
		m.equity[p.RunID] = append(m.equity[p.RunID], p)
	}
	return nil
}

// GetRun retrieves a run with its persisted trades and equity curve.
func (m *MemoryStore) GetRun(_ context.Context, runID string) (*backtest.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, ok := m.runs[runID]
	if !ok {
		return nil, core.ErrRunNotFound
	}
	out := *run
	out.Trades = append([]core.TradeEvent(nil), m.trades[runID]...)
	out.Equity = append([]core.EquityPoint(nil), m.equity[runID]...)
	return &out, nil
}
