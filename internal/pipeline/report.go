package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"signal-trade-lab/internal/domain"
	"signal-trade-lab/internal/observability"
	"signal-trade-lab/internal/reporting"
)

// Output file names written by ReportPipeline.
const (
	MonthlyReportFile = "monthly_report.csv"
	TradesReportFile  = "trades.csv"
	MarkdownReport    = "REPORT.md"
)

// ReportPipeline generates a report from the trade snapshot and writes it to
// the console and the output directory.
type ReportPipeline struct {
	generator *reporting.Generator
	outputDir string
	console   io.Writer
	logger    zerolog.Logger
	metrics   *observability.Metrics
}

// NewReportPipeline creates a report pipeline writing files under outputDir.
func NewReportPipeline(generator *reporting.Generator, outputDir string) *ReportPipeline {
	return &ReportPipeline{
		generator: generator,
		outputDir: outputDir,
		console:   io.Discard,
		logger:    zerolog.Nop(),
	}
}

// WithConsole sets where the console summary is printed.
func (p *ReportPipeline) WithConsole(w io.Writer) *ReportPipeline {
	p.console = w
	return p
}

// WithLogger sets the logger.
func (p *ReportPipeline) WithLogger(logger zerolog.Logger) *ReportPipeline {
	p.logger = logger.With().Str("component", "report").Logger()
	return p
}

// WithMetrics sets the metrics sink. Nil disables metrics.
func (p *ReportPipeline) WithMetrics(m *observability.Metrics) *ReportPipeline {
	p.metrics = m
	return p
}

// Run executes the report and writes:
//   - monthly_report.csv
//   - trades.csv
//   - REPORT.md
func (p *ReportPipeline) Run(ctx context.Context, model domain.CapitalModel) (report *reporting.Report, err error) {
	ctx, span := observability.StartSpan(ctx, "pipeline.report")
	start := time.Now()
	defer func() {
		observability.EndSpan(span, err)
		p.metrics.RecordPipelineRun("report", time.Since(start).Seconds(), err)
	}()

	report, err = p.generator.Generate(ctx, model)
	rejected := 0
	if report != nil {
		rejected = len(report.RejectedTrades)
	}
	p.metrics.RecordAggregation(rejected, err)
	if err != nil {
		return nil, fmt.Errorf("generate report: %w", err)
	}
	span.SetAttributes(
		attribute.String("run_id", report.RunID),
		attribute.Int("trades", report.TradeCount),
	)

	if err := reporting.RenderConsole(p.console, report); err != nil {
		return nil, fmt.Errorf("print summary: %w", err)
	}

	if err := os.MkdirAll(p.outputDir, 0755); err != nil {
		return nil, err
	}

	monthly, err := reporting.RenderCSV(report)
	if err != nil {
		return nil, fmt.Errorf("render monthly report: %w", err)
	}
	trades, err := reporting.RenderTradesCSV(report)
	if err != nil {
		return nil, fmt.Errorf("render trades: %w", err)
	}

	files := []struct {
		name string
		data string
	}{
		{MonthlyReportFile, monthly},
		{TradesReportFile, trades},
		{MarkdownReport, reporting.RenderMarkdown(report)},
	}
	for _, f := range files {
		path := filepath.Join(p.outputDir, f.name)
		if err := os.WriteFile(path, []byte(f.data), 0644); err != nil {
			return nil, fmt.Errorf("write %s: %w", f.name, err)
		}
	}

	p.logger.Info().
		Str("run_id", report.RunID).
		Int("trades", report.TradeCount).
		Int("rejected", len(report.RejectedTrades)).
		Str("output_dir", p.outputDir).
		Msg("report written")

	return report, nil
}
