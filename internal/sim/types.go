package sim

import (
	"github.com/shopspring/decimal"

	"github.com/Omareid007/alphaflow-sub005/internal/core"
)

// ExecPriceRule selects which price of the execution bar fills a signal.
type ExecPriceRule string

const (
	ExecNextOpen  ExecPriceRule = "next_open"
	ExecNextClose ExecPriceRule = "next_close"
)

// FeeKind selects the fee model.
type FeeKind string

const (
	// FeeFixed charges a flat dollar amount per fill.
	FeeFixed FeeKind = "fixed"
	// FeePercent charges a percentage of the fill notional.
	FeePercent FeeKind = "percent"
)

// FeeModel describes per-fill fees.
type FeeModel struct {
	Kind FeeKind
	// Value is dollars for FeeFixed, percent of notional for FeePercent.
	Value decimal.Decimal
}

// SlippageKind selects the slippage model.
type SlippageKind string

const (
	// SlippageBps moves the execution price by basis points of itself.
	SlippageBps SlippageKind = "bps"
	// SlippageSpread uses half the execution bar's high-low range as a
	// spread proxy.
	SlippageSpread SlippageKind = "spread"
)

// SlippageModel describes directional slippage: buys fill higher, sells
// fill lower.
type SlippageModel struct {
	Kind SlippageKind
	// Bps applies to SlippageBps only.
	Bps decimal.Decimal
}

// Config holds the simulator execution rules.
type Config struct {
	InitialCash decimal.Decimal
	Fees        FeeModel
	Slippage    SlippageModel
	PriceRule   ExecPriceRule
}

// DefaultConfig returns a zero-cost NEXT_OPEN configuration with $10,000
// starting cash.
func DefaultConfig() Config {
	return Config{
		InitialCash: decimal.NewFromInt(10000),
		Fees:        FeeModel{Kind: FeeFixed, Value: decimal.Zero},
		Slippage:    SlippageModel{Kind: SlippageBps, Bps: decimal.Zero},
		PriceRule:   ExecNextOpen,
	}
}

// Result is the complete simulator output.
type Result struct {
	Trades      []core.TradeEvent
	Equity      []core.EquityPoint
	RealizedPnL []decimal.Decimal
}
