package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Omareid007/alphaflow-sub005/internal/backtest"
	"github.com/Omareid007/alphaflow-sub005/internal/config"
	"github.com/Omareid007/alphaflow-sub005/internal/logger"
	"github.com/Omareid007/alphaflow-sub005/internal/metrics"
	"github.com/Omareid007/alphaflow-sub005/internal/provider/binance"
	"github.com/Omareid007/alphaflow-sub005/internal/storage/artifact"
	"github.com/Omareid007/alphaflow-sub005/internal/storage/run"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "alphaflow",
	Short: "AlphaFlow - strategy backtesting and walk-forward validation",
	Long: `AlphaFlow simulates trading strategies against historical price data
and validates optimized parameters with walk-forward overfitting analysis.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app bundles the wired components shared by the subcommands.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	provider backtest.BarProvider
	store    backtest.RunStore
	archive  *artifact.Archive
	registry *metrics.Registry
	closers  []func() error
}

// newApp loads configuration and wires the provider, store, archive and
// metrics according to it.
func newApp() (*app, error) {
	cfg := config.Defaults()
	if cfgFile != "" {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, err := logger.New(debug || cfg.Logging.Development)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log}

	a.provider = binance.New()

	switch cfg.Storage.Runs.Driver {
	case "sqlite":
		store, err := run.NewSQLiteStore(cfg.Storage.Runs.Path)
		if err != nil {
			return nil, err
		}
		a.store = store
		a.closers = append(a.closers, store.Close)
	default:
		a.store = run.NewMemoryStore()
	}

	if cfg.Storage.Artifacts.Enabled {
		blob, err := newBlob(cfg.Storage.Artifacts)
		if err != nil {
			return nil, err
		}
		a.archive = artifact.NewArchive(blob)
	}

	if cfg.Metrics.Enabled {
		a.registry = metrics.NewRegistry()
		a.serveMetrics()
	}

	return a, nil
}

func newBlob(cfg config.ArtifactsConfig) (artifact.Blob, error) {
	if cfg.Type == "s3" {
		return artifact.NewS3(artifact.S3Config{
			Bucket:    cfg.S3.Bucket,
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Prefix:    cfg.S3.Prefix,
		})
	}
	return artifact.NewLocalFS(cfg.Path)
}

// serveMetrics exposes the Prometheus registry in the background for
// the lifetime of the process.
func (a *app) serveMetrics() {
	mux := http.NewServeMux()
	mux.Handle(a.cfg.Metrics.Path, promhttp.HandlerFor(a.registry.Registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: a.cfg.Metrics.Addr, Handler: mux}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.log.Error("metrics server stopped", zap.Error(err))
		}
	}()
	a.closers = append(a.closers, server.Close)
}

func (a *app) close() {
	for _, closer := range a.closers {
		if err := closer(); err != nil {
			a.log.Error("closing component", zap.Error(err))
		}
	}
	a.log.Sync()
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func parseDateRange(from, to string) (start, end time.Time, err error) {
	start, err = time.Parse("2006-01-02", from)
	if err != nil {
		return start, end, fmt.Errorf("invalid from date format (expected YYYY-MM-DD): %w", err)
	}
	end, err = time.Parse("2006-01-02", to)
	if err != nil {
		return start, end, fmt.Errorf("invalid to date format (expected YYYY-MM-DD): %w", err)
	}
	if !end.After(start) {
		return start, end, fmt.Errorf("end date must be after start date")
	}
	return start, end, nil
}
