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

	"github.com/webgraph-io/crawlgraph/internal/app"
	"github.com/webgraph-io/crawlgraph/internal/common"
	"github.com/webgraph-io/crawlgraph/internal/server"
)

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

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize manager application")
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close manager application cleanly")
		}
	}()

	srv := server.New(cfg.Addr(), application.CrawlHandler, application.ProgressHandler, application.HealthHandler, logger)

	gatewaySrv := &http.Server{
		Addr:         cfg.StoreGatewayAddr(),
		Handler:      application.StoreGateway,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal().Err(err).Msg("manager http server failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", cfg.StoreGatewayAddr()).Msg("store gateway starting")
		if err := gatewaySrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("store gateway failed")
		}
	}()

	logger.Info().Str("addr", cfg.Addr()).Msg("manager ready")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("manager http server shutdown failed")
	}
	if err := gatewaySrv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("store gateway shutdown failed")
	}

	fmt.Fprintln(os.Stdout, "manager stopped")
}
