package run

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/Omareid007/alphaflow-sub005/internal/backtest"
	"github.com/Omareid007/alphaflow-sub005/internal/core"
	"github.com/Omareid007/alphaflow-sub005/internal/perf"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	request       TEXT NOT NULL,
	status        TEXT NOT NULL,
	summary       TEXT,
	error_message TEXT NOT NULL DEFAULT '',
	created_at    INTEGER NOT NULL,
	finished_at   INTEGER
);

CREATE TABLE IF NOT EXISTS trade_events (
	run_id         TEXT NOT NULL REFERENCES runs(id),
	time           INTEGER NOT NULL,
	symbol         TEXT NOT NULL,
	side           TEXT NOT NULL,
	quantity       INTEGER NOT NULL,
	price          TEXT NOT NULL,
	fees           TEXT NOT NULL,
	slippage       TEXT NOT NULL,
	reason         TEXT NOT NULL,
	position_after INTEGER NOT NULL,
	cash_after     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trade_events_run ON trade_events(run_id, time);

CREATE TABLE IF NOT EXISTS equity_points (
	run_id   TEXT NOT NULL REFERENCES runs(id),
	time     INTEGER NOT NULL,
	equity   TEXT NOT NULL,
	cash     TEXT NOT NULL,
	exposure TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_equity_points_run ON equity_points(run_id, time);
`

// SQLiteStore persists runs in a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path and
// applies the schema. Use ":memory:" for an ephemeral database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent inserts.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// InsertRun records a new run.
func (s *SQLiteStore) InsertRun(ctx context.Context, run *backtest.Run) error {
	request, err := json.Marshal(run.Request)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, request, status, error_message, created_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, string(request), string(run.Status), run.ErrorMessage, run.CreatedAt.UnixMilli())
	if err != nil {
		return core.WrapError(core.ErrStoreFailed, err)
	}
	return nil
}

// UpdateRunStatus transitions a run's lifecycle state, stamping the
// finish time on terminal states.
func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status backtest.Status, errorMessage string) error {
	var res sql.Result
	var err error
	if status == backtest.StatusDone || status == backtest.StatusFailed {
		res, err = s.db.ExecContext(ctx,
			`UPDATE runs SET status = ?, error_message = ?, finished_at = ? WHERE id = ?`,
			string(status), errorMessage, time.Now().UnixMilli(), runID)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE runs SET status = ?, error_message = ? WHERE id = ?`,
			string(status), errorMessage, runID)
	}
	if err != nil {
		return core.WrapError(core.ErrStoreFailed, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return core.WrapError(core.ErrStoreFailed, err)
	}
	if affected == 0 {
		return core.ErrRunNotFound
	}
	return nil
}

// UpdateRunSummary stores the computed performance summary.
func (s *SQLiteStore) UpdateRunSummary(ctx context.Context, runID string, summary *perf.Summary) error {
	encoded, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `UPDATE runs SET summary = ? WHERE id = ?`, string(encoded), runID)
	if err != nil {
		return core.WrapError(core.ErrStoreFailed, err)
	}
	return nil
}

// InsertTradeEvents writes a batch of fills in one transaction.
func (s *SQLiteStore) InsertTradeEvents(ctx context.Context, trades []core.TradeEvent) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO trade_events (run_id, time, symbol, side, quantity, price, fees, slippage, reason, position_after, cash_after)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, t := range trades {
			_, err := stmt.ExecContext(ctx,
				t.RunID, t.Time.UnixMilli(), t.Symbol, string(t.Side), t.Quantity,
				t.Price.String(), t.Fees.String(), t.Slippage.String(), t.Reason,
				t.PositionAfter, t.CashAfter.String())
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// InsertEquityPoints writes a batch of equity curve points in one
// transaction.
func (s *SQLiteStore) InsertEquityPoints(ctx context.Context, points []core.EquityPoint) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO equity_points (run_id, time, equity, cash, exposure) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, p := range points {
			_, err := stmt.ExecContext(ctx,
				p.RunID, p.Time.UnixMilli(), p.Equity.String(), p.Cash.String(), p.Exposure.String())
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// GetRun retrieves a run with its persisted trades and equity curve.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*backtest.Run, error) {
	var (
		request   string
		status    string
		summary   sql.NullString
		errMsg    string
		createdAt int64
		finished  sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT request, status, summary, error_message, created_at, finished_at FROM runs WHERE id = ?`, runID).
		Scan(&request, &status, &summary, &errMsg, &createdAt, &finished)
	if err == sql.ErrNoRows {
		return nil, core.ErrRunNotFound
	}
	if err != nil {
		return nil, core.WrapError(core.ErrStoreFailed, err)
	}

	run := &backtest.Run{
		ID:           runID,
		Status:       backtest.Status(status),
		ErrorMessage: errMsg,
		CreatedAt:    time.UnixMilli(createdAt).UTC(),
	}
	if err := json.Unmarshal([]byte(request), &run.Request); err != nil {
		return nil, fmt.Errorf("decoding request: %w", err)
	}
	if summary.Valid {
		run.Summary = &perf.Summary{}
		if err := json.Unmarshal([]byte(summary.String), run.Summary); err != nil {
			return nil, fmt.Errorf("decoding summary: %w", err)
		}
	}
	if finished.Valid {
		run.FinishedAt = time.UnixMilli(finished.Int64).UTC()
	}

	if run.Trades, err = s.loadTrades(ctx, runID); err != nil {
		return nil, err
	}
	if run.Equity, err = s.loadEquity(ctx, runID); err != nil {
		return nil, err
	}
	return run, nil
}

func (s *SQLiteStore) loadTrades(ctx context.Context, runID string) ([]core.TradeEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT time, symbol, side, quantity, price, fees, slippage, reason, position_after, cash_after
		 FROM trade_events WHERE run_id = ? ORDER BY time`, runID)
	if err != nil {
		return nil, core.WrapError(core.ErrStoreFailed, err)
	}
	defer rows.Close()

	var trades []core.TradeEvent
	for rows.Next() {
		var (
			t                            core.TradeEvent
			ts                           int64
			side                         string
			price, fees, slippage, ccash string
		)
		if err := rows.Scan(&ts, &t.Symbol, &side, &t.Quantity, &price, &fees, &slippage, &t.Reason, &t.PositionAfter, &ccash); err != nil {
			return nil, core.WrapError(core.ErrStoreFailed, err)
		}
		t.RunID = runID
		t.Time = time.UnixMilli(ts).UTC()
		t.Side = core.Side(side)
		if t.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("decoding price: %w", err)
		}
		if t.Fees, err = decimal.NewFromString(fees); err != nil {
			return nil, fmt.Errorf("decoding fees: %w", err)
		}
		if t.Slippage, err = decimal.NewFromString(slippage); err != nil {
			return nil, fmt.Errorf("decoding slippage: %w", err)
		}
		if t.CashAfter, err = decimal.NewFromString(ccash); err != nil {
			return nil, fmt.Errorf("decoding cash: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func (s *SQLiteStore) loadEquity(ctx context.Context, runID string) ([]core.EquityPoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT time, equity, cash, exposure FROM equity_points WHERE run_id = ? ORDER BY time`, runID)
	if err != nil {
		return nil, core.WrapError(core.ErrStoreFailed, err)
	}
	defer rows.Close()

	var points []core.EquityPoint
	for rows.Next() {
		var (
			p                      core.EquityPoint
			ts                     int64
			equity, cash, exposure string
		)
		if err := rows.Scan(&ts, &equity, &cash, &exposure); err != nil {
			return nil, core.WrapError(core.ErrStoreFailed, err)
		}
		p.RunID = runID
		p.Time = time.UnixMilli(ts).UTC()
		if p.Equity, err = decimal.NewFromString(equity); err != nil {
			return nil, fmt.Errorf("decoding equity: %w", err)
		}
		if p.Cash, err = decimal.NewFromString(cash); err != nil {
			return nil, fmt.Errorf("decoding cash: %w", err)
		}
		if p.Exposure, err = decimal.NewFromString(exposure); err != nil {
			return nil, fmt.Errorf("decoding exposure: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.WrapError(core.ErrStoreFailed, err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return core.WrapError(core.ErrStoreFailed, err)
	}
	if err := tx.Commit(); err != nil {
		return core.WrapError(core.ErrStoreFailed, err)
	}
	return nil
}
