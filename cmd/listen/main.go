// Command listen follows the live message feed: every message is appended to
// the message log, paired incrementally and persisted. Prometheus metrics are
// served on --metrics-addr.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"signal-trade-lab/internal/backend"
	"signal-trade-lab/internal/config"
	"signal-trade-lab/internal/feed"
	"signal-trade-lab/internal/listener"
	"signal-trade-lab/internal/logging"
	"signal-trade-lab/internal/observability"
)

func main() {
	configPath := flag.String("config", os.Getenv("STL_CONFIG"), "Path to YAML config file")
	feedURL := flag.String("feed-url", "", "WebSocket feed endpoint (default from config)")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (default from config)")
	trace := flag.Bool("trace", false, "Write OpenTelemetry spans to stderr")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *feedURL != "" {
		cfg.Feed.URL = *feedURL
	}
	if *metricsAddr != "" {
		cfg.Metrics.Addr = *metricsAddr
	}
	if cfg.Feed.URL == "" {
		fmt.Fprintln(os.Stderr, "Error: --feed-url or feed.url is required")
		os.Exit(2)
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *trace, logger); err != nil {
		logger.Error().Err(err).Msg("listener failed")
		stop()
		os.Exit(1)
	}
	logger.Info().Msg("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, trace bool, logger zerolog.Logger) error {
	if trace {
		shutdown, err := observability.InitTracing("listen", os.Stderr)
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

	m := observability.DefaultMetrics
	srv := startMetricsServer(cfg.Metrics.Addr, logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	lastID, err := b.Messages.LastID(ctx)
	if err != nil {
		return fmt.Errorf("read message log position: %w", err)
	}

	wsConfig := feed.DefaultWSConfig()
	wsConfig.ReconnectDelay = cfg.Feed.ReconnectMin
	wsConfig.MaxReconnectDelay = cfg.Feed.ReconnectMax
	wsConfig.PingInterval = cfg.Feed.PingInterval
	stream := feed.NewWSSource(cfg.Feed.URL, &wsConfig, logger, m).ResumeAfter(lastID)

	l := listener.New(listener.Options{
		Stream:   stream,
		Messages: b.Messages,
		Trades:   b.Trades,
		State:    b.State,
		Logger:   &logger,
		Metrics:  m,
	})

	err = l.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func startMetricsServer(addr string, logger zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server failed")
		}
	}()
	return srv
}
