package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Omareid007/alphaflow-sub005/internal/walkforward"
)

var (
	wfSymbols   []string
	wfFrom      string
	wfTo        string
	wfTimeframe string
	wfParams    []string
	wfRanges    []string
	wfStudyName string
)

var walkForwardCmd = &cobra.Command{
	Use:   "walkforward [strategy]",
	Short: "Run a walk-forward overfitting study",
	Long: `Optimize strategy parameters over rolling in-sample windows, validate
each window out of sample, and score overfitting, robustness and
parameter stability.`,
	Args: cobra.ExactArgs(1),
	RunE: runWalkForwardCmd,
}

func init() {
	walkForwardCmd.Flags().StringSliceVar(&wfSymbols, "symbols", nil, "Symbols to study (required)")
	walkForwardCmd.Flags().StringVar(&wfFrom, "from", "", "Start date YYYY-MM-DD (required)")
	walkForwardCmd.Flags().StringVar(&wfTo, "to", "", "End date YYYY-MM-DD (required)")
	walkForwardCmd.Flags().StringVar(&wfTimeframe, "timeframe", "", "Bar timeframe (default from config)")
	walkForwardCmd.Flags().StringArrayVar(&wfParams, "param", nil, "Base strategy parameter, name=value (repeatable)")
	walkForwardCmd.Flags().StringArrayVar(&wfRanges, "range", nil, "Grid range, name=min:max:step (repeatable, overrides config)")
	walkForwardCmd.Flags().StringVar(&wfStudyName, "name", "", "Archive name for the study result")

	walkForwardCmd.MarkFlagRequired("symbols")
	walkForwardCmd.MarkFlagRequired("from")
	walkForwardCmd.MarkFlagRequired("to")

	rootCmd.AddCommand(walkForwardCmd)
}

func runWalkForwardCmd(cmd *cobra.Command, args []string) error {
	start, end, err := parseDateRange(wfFrom, wfTo)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	strategyCfg, err := buildStrategyConfig(args[0], wfParams)
	if err != nil {
		return err
	}

	study := a.cfg.WalkForward.StudyConfig()
	if len(wfRanges) > 0 {
		study.Ranges, err = parseRanges(wfRanges)
		if err != nil {
			return err
		}
	}

	timeframe := wfTimeframe
	if timeframe == "" {
		timeframe = a.cfg.Backtest.Timeframe
	}

	ctx, cancel := signalContext()
	defer cancel()

	engine := walkforward.NewEngine(a.provider, a.registry, a.log)
	result, err := engine.Run(ctx, walkforward.Request{
		Strategy:  strategyCfg,
		Universe:  wfSymbols,
		Timeframe: timeframe,
		Start:     start,
		End:       end,
		Sim:       a.cfg.Backtest.SimConfig(),
		Study:     study,
	})
	if err != nil {
		return err
	}

	if a.archive != nil {
		name, err := a.archive.SaveStudy(ctx, wfStudyName, result)
		if err != nil {
			a.log.Warn("archiving study failed", zap.Error(err))
		} else {
			fmt.Printf("Archived study as %s\n\n", name)
		}
	}

	printStudy(result)
	return nil
}

// parseRanges parses name=min:max:step grid specifications.
func parseRanges(specs []string) ([]walkforward.ParamRange, error) {
	ranges := make([]walkforward.ParamRange, 0, len(specs))
	for _, spec := range specs {
		name, raw, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --range %q, expected name=min:max:step", spec)
		}
		parts := strings.Split(raw, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid --range %q, expected name=min:max:step", spec)
		}
		values := make([]float64, 3)
		for i, part := range parts {
			v, err := strconv.ParseFloat(part, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid --range %q: %w", spec, err)
			}
			values[i] = v
		}
		ranges = append(ranges, walkforward.ParamRange{
			Name: name,
			Min:  values[0],
			Max:  values[1],
			Step: values[2],
		})
	}
	return ranges, nil
}

func printStudy(r *walkforward.Result) {
	fmt.Println("=== AlphaFlow Walk-Forward Study ===")
	fmt.Println()
	fmt.Println("Win  In-sample              Out-of-sample          Degradation  Stability  Params")
	for _, w := range r.Windows {
		flag := ""
		if w.FallbackUsed {
			flag = " (fallback)"
		}
		fmt.Printf("%-3d  %s - %s  %s - %s  %10.1f%%  %9.2f  %s%s\n",
			w.Window.Index,
			w.Window.InSampleStart.Format("2006-01-02"), w.Window.InSampleEnd.Format("2006-01-02"),
			w.Window.OutOfSampleStart.Format("2006-01-02"), w.Window.OutOfSampleEnd.Format("2006-01-02"),
			w.DegradationPct, w.ParameterStability, fmtParams(w.Parameters), flag)
	}

	fmt.Println()
	fmt.Println("Aggregate out-of-sample:")
	printSummary(&r.AggregateOutOfSample)

	fmt.Println()
	fmt.Printf("Overfitting score:         %.2f\n", r.OverfittingScore)
	fmt.Printf("Robustness score:          %.2f\n", r.RobustnessScore)
	fmt.Printf("Parameter stability score: %.2f\n", r.ParameterStabilityScore)
	fmt.Printf("Overfit:                   %v\n", r.IsOverfit)

	fmt.Println()
	for _, rec := range r.Recommendations {
		fmt.Printf("  - %s\n", rec)
	}
}

func fmtParams(params map[string]float64) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	// Deterministic output for diffable logs.
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%g", name, params[name]))
	}
	return strings.Join(parts, " ")
}
