package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of a signal or fill.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Bar is one OHLCV sample for a symbol over a fixed period.
// Bars are immutable and ordered by Time within a symbol.
type Bar struct {
	Symbol string          `json:"symbol"`
	Time   time.Time       `json:"timestamp"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
}

// IsValid checks that the bar carries a symbol and positive prices.
func (b Bar) IsValid() bool {
	return b.Symbol != "" && b.Open.IsPositive() && b.Close.IsPositive()
}

// Signal is a trade request emitted by a strategy while observing a bar.
// It carries no execution price; the simulator decides the price at the
// bar the signal executes on.
type Signal struct {
	Symbol   string `json:"symbol"`
	Side     Side   `json:"side"`
	Quantity int64  `json:"quantity"`
	Reason   string `json:"reason"`
}

// Position is the held quantity and average entry price for one symbol.
// Only simulator fills mutate it; it is removed once quantity reaches zero.
type Position struct {
	Symbol        string          `json:"symbol"`
	Quantity      int64           `json:"quantity"`
	AvgEntryPrice decimal.Decimal `json:"average_entry_price"`
}

// MarketValue returns quantity * mark.
func (p Position) MarketValue(mark decimal.Decimal) decimal.Decimal {
	return mark.Mul(decimal.NewFromInt(p.Quantity))
}

// TradeEvent is the immutable record of one fill.
type TradeEvent struct {
	RunID         string          `json:"run_id"`
	Time          time.Time       `json:"timestamp"`
	Symbol        string          `json:"symbol"`
	Side          Side            `json:"side"`
	Quantity      int64           `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
	Fees          decimal.Decimal `json:"fees"`
	Slippage      decimal.Decimal `json:"slippage"`
	Reason        string          `json:"reason"`
	PositionAfter int64           `json:"position_after"`
	CashAfter     decimal.Decimal `json:"cash_after"`
}

// EquityPoint samples portfolio state once per processed bar.
// Equity = cash + sum(position quantity * mark price); exposure is the
// absolute sum of the same products.
type EquityPoint struct {
	RunID    string          `json:"run_id"`
	Time     time.Time       `json:"timestamp"`
	Equity   decimal.Decimal `json:"equity"`
	Cash     decimal.Decimal `json:"cash"`
	Exposure decimal.Decimal `json:"exposure"`
}
