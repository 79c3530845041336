package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Omareid007/alphaflow-sub005/internal/backtest"
	"github.com/Omareid007/alphaflow-sub005/internal/perf"
	"github.com/Omareid007/alphaflow-sub005/internal/strategy"
)

var (
	backtestSymbols   []string
	backtestFrom      string
	backtestTo        string
	backtestTimeframe string
	backtestParams    []string
	backtestTrades    bool
)

var backtestCmd = &cobra.Command{
	Use:   "backtest [strategy]",
	Short: "Run a backtest",
	Long: `Run a strategy against historical data and show performance statistics.
Strategies: ma_crossover, rsi, mean_reversion, buy_hold.`,
	Args: cobra.ExactArgs(1),
	RunE: runBacktestCmd,
}

func init() {
	backtestCmd.Flags().StringSliceVar(&backtestSymbols, "symbols", nil, "Symbols to backtest (required)")
	backtestCmd.Flags().StringVar(&backtestFrom, "from", "", "Start date YYYY-MM-DD (required)")
	backtestCmd.Flags().StringVar(&backtestTo, "to", "", "End date YYYY-MM-DD (required)")
	backtestCmd.Flags().StringVar(&backtestTimeframe, "timeframe", "", "Bar timeframe (default from config)")
	backtestCmd.Flags().StringArrayVar(&backtestParams, "param", nil, "Strategy parameter override, name=value (repeatable)")
	backtestCmd.Flags().BoolVar(&backtestTrades, "trades", false, "Print the trade log")

	backtestCmd.MarkFlagRequired("symbols")
	backtestCmd.MarkFlagRequired("from")
	backtestCmd.MarkFlagRequired("to")

	rootCmd.AddCommand(backtestCmd)
}

func runBacktestCmd(cmd *cobra.Command, args []string) error {
	start, end, err := parseDateRange(backtestFrom, backtestTo)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	strategyCfg, err := buildStrategyConfig(args[0], backtestParams)
	if err != nil {
		return err
	}

	timeframe := backtestTimeframe
	if timeframe == "" {
		timeframe = a.cfg.Backtest.Timeframe
	}

	ctx, cancel := signalContext()
	defer cancel()

	orchestrator := backtest.New(a.provider, a.store, a.registry, a.log)
	run, err := orchestrator.Run(ctx, backtest.Request{
		Strategy:  strategyCfg,
		Universe:  backtestSymbols,
		Timeframe: timeframe,
		Start:     start,
		End:       end,
		Sim:       a.cfg.Backtest.SimConfig(),
	})
	if err != nil {
		return err
	}

	if run.Status == backtest.StatusFailed {
		return fmt.Errorf("backtest failed: %s", run.ErrorMessage)
	}

	if a.archive != nil {
		if err := a.archive.SaveRun(ctx, run); err != nil {
			a.log.Warn("archiving run failed", zap.Error(err))
		}
	}

	printRun(run)
	if backtestTrades {
		printTrades(run)
	}
	return nil
}

// buildStrategyConfig starts from the strategy's defaults and applies
// name=value overrides.
func buildStrategyConfig(kind string, params []string) (strategy.Config, error) {
	cfg, err := strategy.Default(strategy.Kind(kind))
	if err != nil {
		return strategy.Config{}, err
	}

	overrides := make(map[string]float64, len(params))
	for _, p := range params {
		name, raw, ok := strings.Cut(p, "=")
		if !ok {
			return strategy.Config{}, fmt.Errorf("invalid --param %q, expected name=value", p)
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return strategy.Config{}, fmt.Errorf("invalid --param %q: %w", p, err)
		}
		overrides[name] = value
	}
	return cfg.WithOverrides(overrides)
}

func printRun(run *backtest.Run) {
	fmt.Println("=== AlphaFlow Backtest ===")
	fmt.Printf("Run ID:   %s\n", run.ID)
	fmt.Printf("Strategy: %s\n", run.Request.Strategy.Kind)
	fmt.Printf("Universe: %s\n", strings.Join(run.Request.Universe, ", "))
	fmt.Printf("Period:   %s to %s\n",
		run.Request.Start.Format("2006-01-02"), run.Request.End.Format("2006-01-02"))
	fmt.Println()
	printSummary(run.Summary)
}

func printSummary(s *perf.Summary) {
	fmt.Printf("Total return:    %.2f%%\n", s.TotalReturnPct)
	fmt.Printf("Max drawdown:    %.2f%%\n", s.MaxDrawdownPct)
	fmt.Printf("Sharpe ratio:    %s\n", fmtOptional(s.SharpeRatio))
	fmt.Printf("Sortino ratio:   %s\n", fmtOptional(s.SortinoRatio))
	fmt.Printf("CAGR:            %s\n", fmtOptionalPct(s.CAGR))
	fmt.Printf("Calmar ratio:    %s\n", fmtOptional(s.CalmarRatio))
	fmt.Printf("Win rate:        %.1f%%\n", s.WinRatePct)
	fmt.Printf("Profit factor:   %s\n", fmtOptional(s.ProfitFactor))
	fmt.Printf("Expectancy:      %.3f\n", s.Expectancy)
	fmt.Printf("Trades:          %d (%.1f/month)\n", s.TradeCount, s.TradesPerMonth)
	fmt.Printf("Avg holding:     %s days\n", fmtOptional(s.AvgHoldingPeriodDays))
}

func printTrades(run *backtest.Run) {
	fmt.Println()
	fmt.Println("Time                 Symbol     Side  Qty        Price        Fees  Reason")
	for _, t := range run.Trades {
		fmt.Printf("%s  %-9s  %-4s  %-6d  %12s  %10s  %s\n",
			t.Time.Format("2006-01-02 15:04:05"), t.Symbol, t.Side, t.Quantity,
			t.Price.StringFixed(2), t.Fees.StringFixed(2), t.Reason)
	}
}

func fmtOptional(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *v)
}

func fmtOptionalPct(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", *v*100)
}
