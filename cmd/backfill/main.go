// Command backfill loads a JSON message export into the message log, re-pairs
// the whole log and writes the trade snapshot and pairing state.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"signal-trade-lab/internal/backend"
	"signal-trade-lab/internal/config"
	"signal-trade-lab/internal/feed"
	"signal-trade-lab/internal/logging"
	"signal-trade-lab/internal/observability"
	"signal-trade-lab/internal/pairing"
	"signal-trade-lab/internal/pipeline"
)

func main() {
	configPath := flag.String("config", os.Getenv("STL_CONFIG"), "Path to YAML config file")
	input := flag.String("input", os.Getenv("STL_INPUT"), "JSON message export to load")
	useFixtures := flag.Bool("use-fixtures", false, "Load the built-in demo messages instead of --input")
	trace := flag.Bool("trace", false, "Write OpenTelemetry spans to stderr")
	flag.Parse()

	if *input == "" && !*useFixtures {
		fmt.Fprintln(os.Stderr, "Error: --input is required (or use --use-fixtures)")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Component(logging.New(cfg.Log.Level, cfg.Log.Format), "backfill")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *input, *useFixtures, *trace, logger); err != nil {
		logger.Error().Err(err).Msg("backfill failed")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, input string, useFixtures, trace bool, logger zerolog.Logger) error {
	if trace {
		shutdown, err := observability.InitTracing("backfill", os.Stderr)
		if err != nil {
			return err
		}
		defer shutdown(context.Background())
	}

	b, err := backend.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()
	for _, q := range b.Quarantined {
		logger.Warn().Str("record", q.String()).Msg("stored record quarantined")
	}

	var source feed.Source = feed.SliceSource(pipeline.FixtureMessages())
	var fileSource *feed.FileSource
	if !useFixtures {
		fileSource = feed.NewFileSource(input, logger)
		source = fileSource
	}

	engine := pairing.NewEngine(pairing.Options{Logger: &logger})
	repairer := pipeline.NewRepairer(engine, b.Stores()).
		WithLogger(logger).
		WithMetrics(observability.DefaultMetrics)

	res, err := pipeline.NewBackfill(source, repairer).
		WithLogger(logger).
		WithMetrics(observability.DefaultMetrics).
		Run(ctx)
	if err != nil {
		return err
	}

	if fileSource != nil {
		for _, q := range fileSource.Quarantined {
			logger.Warn().Str("record", q.String()).Msg("export record quarantined")
		}
	}

	fmt.Printf("Backfill complete: %d fetched, %d new, %d already stored\n", res.Fetched, res.Inserted, res.Existing)
	fmt.Printf("  - %d messages paired into %d trades\n", res.Repair.Messages, len(res.Repair.Trades))
	if res.Repair.State.Pending != nil {
		fmt.Printf("  - pending entry from message %d at %s\n", res.Repair.State.Pending.MessageID, res.Repair.State.Pending.Price)
	}
	return nil
}
