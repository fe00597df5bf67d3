package main

import (
	"context"
	"errors"
	"strings"
	"testing"

	"signal-trade-lab/internal/domain"
	"signal-trade-lab/internal/feed"
	"signal-trade-lab/internal/parser"
	"signal-trade-lab/internal/storage"
)

func TestDescribe_Exit(t *testing.T) {
	msg := &domain.RawMessage{
		ID:        42,
		Timestamp: 1704067200000,
		Text:      "✅ Prediction was successful.\n↘️ price is DOWN to 49500\nProfit of trade is: 1.00 %",
	}

	var sb strings.Builder
	describe(&sb, msg, parser.Parse(*msg))
	out := sb.String()

	for _, want := range []string{
		"Message:   42",
		"Date:      2024-01-01T00:00:00Z",
		"Signal:    exit",
		"Price:     49500",
		"Side:      SHORT",
		"Verdict:   SUCCESS",
		"Direction: DOWN",
		"Reported:  1 %",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestDescribe_NoSignal(t *testing.T) {
	msg := &domain.RawMessage{ID: 7, Timestamp: 1704067200000, Text: "good morning"}

	var sb strings.Builder
	describe(&sb, msg, parser.Parse(*msg))

	if !strings.Contains(sb.String(), "Signal:    none") {
		t.Errorf("unexpected output:\n%s", sb.String())
	}
	if strings.Contains(sb.String(), "Price:") {
		t.Errorf("no price expected for a message without signal:\n%s", sb.String())
	}
}

func TestFindInExport(t *testing.T) {
	src := feed.SliceSource{
		{ID: 1, Timestamp: 1704067200000, Text: "a"},
		{ID: 2, Timestamp: 1704067260000, Text: "b"},
	}

	msg, err := findInExport(context.Background(), src, 2)
	if err != nil {
		t.Fatalf("findInExport failed: %v", err)
	}
	if msg.Text != "b" {
		t.Errorf("Text = %q, want b", msg.Text)
	}

	if _, err := findInExport(context.Background(), src, 3); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
