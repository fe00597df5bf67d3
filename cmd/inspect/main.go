// Command inspect looks up one message by id and shows how it parses.
// The message is read from the message log, or from a JSON export with --input.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"signal-trade-lab/internal/backend"
	"signal-trade-lab/internal/config"
	"signal-trade-lab/internal/domain"
	"signal-trade-lab/internal/feed"
	"signal-trade-lab/internal/logging"
	"signal-trade-lab/internal/parser"
	"signal-trade-lab/internal/storage"
)

func main() {
	configPath := flag.String("config", os.Getenv("STL_CONFIG"), "Path to YAML config file")
	id := flag.Int64("id", 0, "Message id to inspect")
	input := flag.String("input", "", "Read from this JSON export instead of the message log")
	flag.Parse()

	if *id <= 0 {
		fmt.Fprintln(os.Stderr, "Error: --id must be a positive message id")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Component(logging.New(cfg.Log.Level, cfg.Log.Format), "inspect")
	ctx := context.Background()

	var msg *domain.RawMessage
	if *input != "" {
		msg, err = findInExport(ctx, feed.NewFileSource(*input, logger), *id)
	} else {
		var b *backend.Backend
		b, err = backend.Open(ctx, cfg, logger)
		if err == nil {
			msg, err = b.Messages.GetByID(ctx, *id)
			b.Close()
		}
	}
	if errors.Is(err, storage.ErrNotFound) {
		fmt.Fprintf(os.Stderr, "Message %d not found\n", *id)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	describe(os.Stdout, msg, parser.Parse(*msg))
}

func findInExport(ctx context.Context, src feed.Source, id int64) (*domain.RawMessage, error) {
	msgs, err := src.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	for _, m := range msgs {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, storage.ErrNotFound
}

func describe(w io.Writer, msg *domain.RawMessage, sig domain.Signal) {
	fmt.Fprintf(w, "Message:   %d\n", msg.ID)
	fmt.Fprintf(w, "Date:      %s\n", time.UnixMilli(msg.Timestamp).UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "Text:\n%s\n\n", msg.Text)
	fmt.Fprintf(w, "Signal:    %s\n", sig.Kind)

	switch sig.Kind {
	case domain.SignalEntry:
		fmt.Fprintf(w, "Price:     %s\n", sig.Entry.Price)
	case domain.SignalExit:
		fmt.Fprintf(w, "Price:     %s\n", sig.Exit.Price)
		fmt.Fprintf(w, "Side:      %s\n", sig.Exit.Side)
		fmt.Fprintf(w, "Verdict:   %s\n", orNone(string(sig.Exit.Verdict)))
		fmt.Fprintf(w, "Direction: %s\n", orNone(string(sig.Exit.Direction)))
		if sig.Exit.ReportedChangePct != nil {
			fmt.Fprintf(w, "Reported:  %s %%\n", sig.Exit.ReportedChangePct)
		}
	}
}

func orNone(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
