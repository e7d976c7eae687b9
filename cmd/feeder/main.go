package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"

	"github.com/webgraph-io/crawlgraph/internal/common"
	"github.com/webgraph-io/crawlgraph/internal/dnsresolve"
	"github.com/webgraph-io/crawlgraph/internal/feeder"
	"github.com/webgraph-io/crawlgraph/internal/fetch"
	"github.com/webgraph-io/crawlgraph/internal/handlers"
	"github.com/webgraph-io/crawlgraph/internal/storeclient"
)

// startupRetries bounds how many times the feeder retries reaching the
// manager's store gateway before giving up: a feeder started before the
// manager in a fresh deployment needs a short grace period rather than
// failing immediately.
const startupRetries = 5

func main() {
	configPath := flag.String("config", "", "path to a TOML configuration file (optional)")
	logLevel := flag.String("log-level", "info", "log level: trace, debug, info, warn, error")
	flag.Parse()

	logger := arbor.NewLogger().
		WithConsoleWriter(models.WriterConfiguration{
			Type:             models.LogWriterTypeConsole,
			TimeFormat:       "15:04:05",
			TextOutput:       true,
			DisableTimestamp: false,
		}).
		WithLevelFromString(*logLevel)

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	store := storeclient.New(cfg.StoreGatewayURL, cfg.HTTPTimeout())
	if err := waitForStoreGateway(store, logger); err != nil {
		logger.Fatal().Err(err).Msg("failed to reach store gateway")
	}

	healthHandler := handlers.NewHealthHandler(store)
	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/livez", healthHandler.Livez)
	healthServer := &http.Server{Addr: cfg.FeederHealthAddr(), Handler: healthMux}
	go func() {
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn().Err(err).Msg("feeder health server failed")
		}
	}()

	fetcher := fetch.New(cfg.HTTPTimeout(), cfg.FetchRatePerSecond)
	resolver := dnsresolve.NewResolver()
	worker := feeder.New(store, fetcher, resolver, feeder.Config{
		MaxAttempts:  cfg.MaxAttempts,
		MaxDNSDepth:  cfg.MaxDNSDepth,
		PollMin:      cfg.PollMin(),
		PollMax:      cfg.PollMax(),
		StaleTimeout: cfg.StaleTimeout(),
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		worker.Run(ctx)
		close(done)
	}()

	logger.Info().Str("health_addr", cfg.FeederHealthAddr()).Str("store_gateway", cfg.StoreGatewayURL).Msg("feeder ready")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("shutdown signal received")
	worker.Stop()
	cancel()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		logger.Warn().Msg("worker did not stop within the shutdown grace period")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("feeder health server shutdown failed")
	}

	fmt.Fprintln(os.Stdout, "feeder stopped")
}

// waitForStoreGateway retries the gateway's health endpoint with a linear
// backoff, since nothing guarantees the manager has finished starting
// before a feeder replica does.
func waitForStoreGateway(store *storeclient.Client, logger arbor.ILogger) error {
	var lastErr error
	for attempt := 1; attempt <= startupRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := store.HealthCheck(ctx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		logger.Warn().Err(err).Int("attempt", attempt).Msg("store gateway unreachable, retrying")
		time.Sleep(time.Duration(attempt) * 500 * time.Millisecond)
	}
	return lastErr
}
