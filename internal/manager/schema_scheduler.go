package manager

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/webgraph-io/crawlgraph/internal/interfaces"
)

// SchemaScheduler periodically re-runs EnsureSchema against the graph
// store, grounded on the teacher's processing.Scheduler
// (internal/services/processing/scheduler.go): a long-lived manager
// process should not need a restart to notice a store recreated out from
// under it (a fresh volume mount, a restored snapshot).
type SchemaScheduler struct {
	store  interfaces.GraphStore
	cron   *cron.Cron
	logger arbor.ILogger
}

// NewSchemaScheduler builds a SchemaScheduler over store.
func NewSchemaScheduler(store interfaces.GraphStore, logger arbor.ILogger) *SchemaScheduler {
	return &SchemaScheduler{
		store:  store,
		cron:   cron.New(cron.WithSeconds()),
		logger: logger,
	}
}

// Start schedules the defensive re-init on schedule (a 6-field cron
// expression with a leading seconds field, the same convention the
// teacher's processing.Scheduler uses), defaulting to hourly.
func (s *SchemaScheduler) Start(schedule string) error {
	if schedule == "" {
		schedule = "0 0 * * * *"
	}

	_, err := s.cron.AddFunc(schedule, s.ensureSchema)
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info().Str("schedule", schedule).Msg("schema scheduler started")
	return nil
}

// Stop halts the scheduler. Safe to call even if Start failed.
func (s *SchemaScheduler) Stop() {
	s.cron.Stop()
}

func (s *SchemaScheduler) ensureSchema() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.store.EnsureSchema(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("scheduled schema re-init failed")
		return
	}
	s.logger.Debug().Msg("scheduled schema re-init completed")
}
