// Command verify re-pairs the stored message log in batch and incrementally
// and compares both with the stored trade snapshot and pairing state.
// It exits with status 1 on any mismatch.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"signal-trade-lab/internal/backend"
	"signal-trade-lab/internal/config"
	"signal-trade-lab/internal/logging"
	"signal-trade-lab/internal/pairing"
	"signal-trade-lab/internal/pipeline"
)

func main() {
	configPath := flag.String("config", os.Getenv("STL_CONFIG"), "Path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Component(logging.New(cfg.Log.Level, cfg.Log.Format), "verify")
	ctx := context.Background()

	b, err := backend.Open(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening storage: %v\n", err)
		os.Exit(1)
	}
	defer b.Close()

	res, err := pipeline.NewVerifier(pairing.NewEngine(pairing.Options{}), b.Stores()).Verify(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error verifying: %v\n", err)
		b.Close()
		os.Exit(1)
	}

	fmt.Printf("Verified %d messages\n\n", res.Messages)
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CHECK\tRESULT\tEXPECTED\tACTUAL")
	for _, c := range res.Checks {
		result := "PASS"
		if !c.Pass {
			result = "FAIL"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Name, result, c.Expected, c.Actual)
	}
	tw.Flush()

	if !res.AllPass {
		fmt.Println("\nVerification failed. Stored mismatches are repaired by running backfill.")
		b.Close()
		os.Exit(1)
	}
}
