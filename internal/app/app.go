// Package app is the manager binary's dependency-injection container,
// grounded on the teacher's internal/app.App shape (staged
// initDatabase/initServices/initHandlers, a single Close) scaled down to
// this module's much smaller service graph.
package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/webgraph-io/crawlgraph/internal/common"
	"github.com/webgraph-io/crawlgraph/internal/dnsresolve"
	"github.com/webgraph-io/crawlgraph/internal/fetch"
	badgerstore "github.com/webgraph-io/crawlgraph/internal/graphstore/badger"
	"github.com/webgraph-io/crawlgraph/internal/handlers"
	"github.com/webgraph-io/crawlgraph/internal/interfaces"
	"github.com/webgraph-io/crawlgraph/internal/manager"
	"github.com/webgraph-io/crawlgraph/internal/storeserver"
)

// App holds the manager's wired dependencies.
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	db    *badgerstore.BadgerDB
	Store interfaces.GraphStore

	Manager         *manager.Service
	SchemaScheduler *manager.SchemaScheduler

	CrawlHandler    *handlers.CrawlHandler
	ProgressHandler *handlers.ProgressHandler
	HealthHandler   *handlers.HealthHandler

	// StoreGateway exposes Store to feeder replicas over HTTP, since
	// dgraph-io/badger's exclusive file lock means the manager is the only
	// process that may ever open it directly.
	StoreGateway *storeserver.Server
}

// New wires a full App over cfg.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	if err := a.initStore(); err != nil {
		return nil, fmt.Errorf("initialize graph store: %w", err)
	}
	a.initServices()
	a.initHandlers()

	a.StoreGateway = storeserver.New(a.Store, a.Logger)

	a.SchemaScheduler = manager.NewSchemaScheduler(a.Store, a.Logger)
	if err := a.SchemaScheduler.Start(""); err != nil {
		return nil, fmt.Errorf("start schema scheduler: %w", err)
	}

	logger.Info().Str("graph_store_path", cfg.GraphStorePath).Msg("manager application initialized")
	return a, nil
}

func (a *App) initStore() error {
	db, err := badgerstore.Open(a.Config.GraphStorePath, a.Logger)
	if err != nil {
		return err
	}
	a.db = db

	store := badgerstore.New(db, a.Logger)
	if err := store.EnsureSchema(context.Background()); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	a.Store = store
	return nil
}

func (a *App) initServices() {
	fetcher := fetch.New(a.Config.HTTPTimeout(), a.Config.FetchRatePerSecond)
	resolver := dnsresolve.NewResolver()
	a.Manager = manager.New(a.Store, fetcher, resolver, a.Config.MaxDNSDepth, a.Logger)
}

func (a *App) initHandlers() {
	a.CrawlHandler = handlers.NewCrawlHandler(a.Manager, a.Logger)
	a.ProgressHandler = handlers.NewProgressHandler(a.Manager, a.Logger)
	a.HealthHandler = handlers.NewHealthHandler(a.Store)
}

// Close releases the app's resources.
func (a *App) Close() error {
	if a.SchemaScheduler != nil {
		a.SchemaScheduler.Stop()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			return fmt.Errorf("close graph store: %w", err)
		}
	}
	return nil
}
