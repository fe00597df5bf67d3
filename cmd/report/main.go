// Command report aggregates the stored trade snapshot under the configured
// capital model and writes the console summary, monthly CSV, trade CSV and a
// markdown report. With ClickHouse configured, monthly results are recorded
// per run.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"signal-trade-lab/internal/backend"
	"signal-trade-lab/internal/config"
	"signal-trade-lab/internal/logging"
	"signal-trade-lab/internal/metrics"
	"signal-trade-lab/internal/observability"
	"signal-trade-lab/internal/pairing"
	"signal-trade-lab/internal/pipeline"
	"signal-trade-lab/internal/reporting"
)

func main() {
	configPath := flag.String("config", os.Getenv("STL_CONFIG"), "Path to YAML config file")
	outputDir := flag.String("output-dir", "", "Output directory for generated files (default from config)")
	runID := flag.String("run-id", "", "Fixed run id (default: random UUID)")
	useFixtures := flag.Bool("use-fixtures", false, "Use in-memory demo data instead of the configured storage")
	trace := flag.Bool("trace", false, "Write OpenTelemetry spans to stderr")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *outputDir != "" {
		cfg.Report.OutputDir = *outputDir
	}
	logger := logging.Component(logging.New(cfg.Log.Level, cfg.Log.Format), "report")

	if err := run(context.Background(), cfg, *runID, *useFixtures, *trace, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error generating report: %v\n", err)
		if errors.Is(err, metrics.ErrNoTrades) {
			fmt.Fprintln(os.Stderr, "The trade snapshot is empty; run backfill first.")
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, runID string, useFixtures, trace bool, logger zerolog.Logger) error {
	if trace {
		shutdown, err := observability.InitTracing("report", os.Stderr)
		if err != nil {
			return err
		}
		defer shutdown(context.Background())
	}

	model, err := cfg.CapitalModel()
	if err != nil {
		return err
	}
	loc, err := cfg.TimeLocation()
	if err != nil {
		return err
	}

	b, err := openBackend(ctx, cfg, useFixtures, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	aggregator := metrics.NewAggregator(b.Trades, b.Stats).WithLocation(loc)
	gen := reporting.NewGenerator(aggregator).WithCurrency(cfg.Report.Currency)
	if runID != "" {
		gen = gen.WithRunID(runID)
	}

	if _, err := pipeline.NewReportPipeline(gen, cfg.Report.OutputDir).
		WithConsole(os.Stdout).
		WithLogger(logger).
		WithMetrics(observability.DefaultMetrics).
		Run(ctx, model); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("Report generated successfully:")
	for _, name := range []string{pipeline.MonthlyReportFile, pipeline.TradesReportFile, pipeline.MarkdownReport} {
		fmt.Printf("  - %s\n", filepath.Join(cfg.Report.OutputDir, name))
	}
	return nil
}

// openBackend opens the configured storage, or an in-memory store paired
// from the demo messages.
func openBackend(ctx context.Context, cfg *config.Config, useFixtures bool, logger zerolog.Logger) (*backend.Backend, error) {
	if !useFixtures {
		b, err := backend.Open(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		for _, q := range b.Quarantined {
			logger.Warn().Str("record", q.String()).Msg("stored record quarantined")
		}
		return b, nil
	}

	b := backend.NewMemory()
	if err := pipeline.LoadFixtures(ctx, b.Messages); err != nil {
		return nil, fmt.Errorf("load fixtures: %w", err)
	}
	engine := pairing.NewEngine(pairing.Options{Logger: &logger})
	if _, err := pipeline.NewRepairer(engine, b.Stores()).Repair(ctx); err != nil {
		return nil, err
	}
	return b, nil
}
