// Package sim is the deterministic execution simulator: it replays a
// chronological multi-symbol bar stream through a signal generator and
// maintains the cash/position ledger in decimal arithmetic.
package sim

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Omareid007/alphaflow-sub005/internal/core"
	"github.com/Omareid007/alphaflow-sub005/internal/strategy"
)

var hundred = decimal.NewFromInt(100)
var tenThousand = decimal.NewFromInt(10000)

// event is one bar in the merged stream together with its symbol-local
// index.
type event struct {
	bar   core.Bar
	index int
}

// pendingSignal is a signal queued for execution, tagged with the
// symbol-local bar index it was generated at. It may only fill on a bar
// with a strictly greater index; that is the look-ahead guard.
type pendingSignal struct {
	signal   core.Signal
	genIndex int
}

// mergeBars flattens the per-symbol series into one chronological stream.
// Ties on identical timestamps are broken lexicographically by symbol;
// the order within a symbol is preserved.
func mergeBars(barsBySymbol map[string][]core.Bar) []event {
	total := 0
	for _, bars := range barsBySymbol {
		total += len(bars)
	}

	events := make([]event, 0, total)
	for _, bars := range barsBySymbol {
		for i, bar := range bars {
			events = append(events, event{bar: bar, index: i})
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].bar.Time.Equal(events[j].bar.Time) {
			return events[i].bar.Time.Before(events[j].bar.Time)
		}
		if events[i].bar.Symbol != events[j].bar.Symbol {
			return events[i].bar.Symbol < events[j].bar.Symbol
		}
		return events[i].index < events[j].index
	})

	return events
}

// Simulate replays the bar stream through gen and returns the trade log,
// the equity curve and the realized P&L of every closing fill. It is
// pure: identical inputs always produce identical output.
func Simulate(barsBySymbol map[string][]core.Bar, gen strategy.Generator, cfg Config) (*Result, error) {
	if !cfg.InitialCash.IsPositive() {
		return nil, errors.New("sim: initial cash must be positive")
	}
	if cfg.PriceRule != ExecNextOpen && cfg.PriceRule != ExecNextClose {
		return nil, errors.New("sim: unknown execution price rule")
	}

	events := mergeBars(barsBySymbol)
	if len(events) == 0 {
		return nil, core.ErrNoData
	}

	cash := cfg.InitialCash
	positions := make(map[string]*core.Position)
	marks := make(map[string]decimal.Decimal)
	pending := make(map[string][]pendingSignal)
	histories := make(map[string][]core.Bar)

	result := &Result{}

	for _, ev := range events {
		symbol := ev.bar.Symbol
		marks[symbol] = ev.bar.Close

		// Execute every pending signal generated on an earlier bar of
		// this symbol. FIFO within the queue.
		queue := pending[symbol]
		remaining := queue[:0]
		for _, ps := range queue {
			if ps.genIndex >= ev.index {
				remaining = append(remaining, ps)
				continue
			}
			cash = fill(ps.signal, ev.bar, cfg, cash, positions, result)
		}
		pending[symbol] = remaining

		// Only now does the generator see the bar; its signals wait for
		// the next bar of their symbol.
		histories[symbol] = append(histories[symbol], ev.bar)
		for _, sig := range gen.OnBar(ev.bar, ev.index, histories[symbol]) {
			if sig.Quantity <= 0 {
				continue
			}
			if sig.Side != core.SideBuy && sig.Side != core.SideSell {
				continue
			}
			pending[sig.Symbol] = append(pending[sig.Symbol], pendingSignal{signal: sig, genIndex: ev.index})
		}

		equity, exposure := markToMarket(cash, positions, marks)
		result.Equity = append(result.Equity, core.EquityPoint{
			Time:     ev.bar.Time,
			Equity:   equity,
			Cash:     cash,
			Exposure: exposure,
		})
	}

	return result, nil
}

// fill attempts to execute one signal against the current bar and
// returns the updated cash balance. Unfillable signals are dropped
// without a trade event: buys that exceed available cash and sells with
// nothing held.
func fill(sig core.Signal, bar core.Bar, cfg Config, cash decimal.Decimal, positions map[string]*core.Position, result *Result) decimal.Decimal {
	base := bar.Open
	if cfg.PriceRule == ExecNextClose {
		base = bar.Close
	}

	slip := slippageAmount(cfg.Slippage, base, bar)
	price := base.Add(slip)
	if sig.Side == core.SideSell {
		price = base.Sub(slip)
	}
	if !price.IsPositive() {
		return cash
	}

	pos := positions[sig.Symbol]

	switch sig.Side {
	case core.SideBuy:
		qty := decimal.NewFromInt(sig.Quantity)
		notional := price.Mul(qty)
		fees := feeAmount(cfg.Fees, notional)
		if cash.LessThan(notional.Add(fees)) {
			return cash // no partial fills
		}
		cash = cash.Sub(notional).Sub(fees)

		if pos == nil {
			pos = &core.Position{Symbol: sig.Symbol}
			positions[sig.Symbol] = pos
		}
		// Notional-weighted average entry price.
		oldNotional := pos.AvgEntryPrice.Mul(decimal.NewFromInt(pos.Quantity))
		newQty := pos.Quantity + sig.Quantity
		pos.AvgEntryPrice = oldNotional.Add(notional).Div(decimal.NewFromInt(newQty))
		pos.Quantity = newQty

		result.Trades = append(result.Trades, core.TradeEvent{
			Time:          bar.Time,
			Symbol:        sig.Symbol,
			Side:          core.SideBuy,
			Quantity:      sig.Quantity,
			Price:         price,
			Fees:          fees,
			Slippage:      slip.Mul(qty),
			Reason:        sig.Reason,
			PositionAfter: pos.Quantity,
			CashAfter:     cash,
		})

	case core.SideSell:
		if pos == nil || pos.Quantity <= 0 {
			return cash
		}
		fillQty := sig.Quantity
		if fillQty > pos.Quantity {
			fillQty = pos.Quantity
		}
		qty := decimal.NewFromInt(fillQty)
		gross := price.Mul(qty)
		fees := feeAmount(cfg.Fees, gross)

		realized := price.Sub(pos.AvgEntryPrice).Mul(qty).Sub(fees)
		result.RealizedPnL = append(result.RealizedPnL, realized)

		cash = cash.Add(gross).Sub(fees)
		pos.Quantity -= fillQty
		if pos.Quantity == 0 {
			delete(positions, sig.Symbol)
		}

		positionAfter := int64(0)
		if p, ok := positions[sig.Symbol]; ok {
			positionAfter = p.Quantity
		}
		result.Trades = append(result.Trades, core.TradeEvent{
			Time:          bar.Time,
			Symbol:        sig.Symbol,
			Side:          core.SideSell,
			Quantity:      fillQty,
			Price:         price,
			Fees:          fees,
			Slippage:      slip.Mul(qty),
			Reason:        sig.Reason,
			PositionAfter: positionAfter,
			CashAfter:     cash,
		})
	}

	return cash
}

// slippageAmount returns the per-unit price adjustment for this fill.
func slippageAmount(model SlippageModel, base decimal.Decimal, bar core.Bar) decimal.Decimal {
	switch model.Kind {
	case SlippageSpread:
		return bar.High.Sub(bar.Low).Div(decimal.NewFromInt(2))
	default:
		return base.Mul(model.Bps).Div(tenThousand)
	}
}

// feeAmount returns the fee charged for a fill of the given notional.
func feeAmount(model FeeModel, notional decimal.Decimal) decimal.Decimal {
	if model.Kind == FeePercent {
		return notional.Mul(model.Value).Div(hundred)
	}
	return model.Value
}

// markToMarket recomputes equity and exposure from first principles so
// the curve can never drift from the (cash, positions, marks) state.
func markToMarket(cash decimal.Decimal, positions map[string]*core.Position, marks map[string]decimal.Decimal) (equity, exposure decimal.Decimal) {
	equity = cash
	exposure = decimal.Zero
	for symbol, pos := range positions {
		value := pos.MarketValue(marks[symbol])
		equity = equity.Add(value)
		exposure = exposure.Add(value.Abs())
	}
	return equity, exposure
}
