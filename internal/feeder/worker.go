// Package feeder implements the worker loop and per-job pipeline spec.md
// §4.6 and §4.6.1 describe, grounded on the teacher's
// internal/jobs/worker/job_processor.go polling-loop shape (health check,
// claim, process, backoff) generalized to this module's graph store.
package feeder

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/webgraph-io/crawlgraph/internal/childresolve"
	"github.com/webgraph-io/crawlgraph/internal/dnsresolve"
	"github.com/webgraph-io/crawlgraph/internal/extract"
	"github.com/webgraph-io/crawlgraph/internal/fetch"
	"github.com/webgraph-io/crawlgraph/internal/interfaces"
	"github.com/webgraph-io/crawlgraph/internal/models"
	"github.com/webgraph-io/crawlgraph/internal/normalize"
)

// Worker runs the feeder's main loop against a shared store, fetcher, and
// resolver. Every field is safe for concurrent use, so one process may run
// several Workers (spec.md §5's "multiple feeder replicas").
type Worker struct {
	store        interfaces.GraphStore
	fetcher      *fetch.Fetcher
	resolver     *dnsresolve.Resolver
	logger       arbor.ILogger
	maxAttempts  int
	maxDNSDepth  int
	pollMin      time.Duration
	pollMax      time.Duration
	staleTimeout time.Duration

	shutdown chan struct{}
	once     sync.Once
}

// Config bundles the worker loop's tunables, mirroring the env vars
// spec.md §6 names.
type Config struct {
	MaxAttempts  int
	MaxDNSDepth  int
	PollMin      time.Duration
	PollMax      time.Duration
	StaleTimeout time.Duration
}

// New builds a Worker over the given collaborators.
func New(store interfaces.GraphStore, fetcher *fetch.Fetcher, resolver *dnsresolve.Resolver, cfg Config, logger arbor.ILogger) *Worker {
	return &Worker{
		store:        store,
		fetcher:      fetcher,
		resolver:     resolver,
		logger:       logger,
		maxAttempts:  cfg.MaxAttempts,
		maxDNSDepth:  cfg.MaxDNSDepth,
		pollMin:      cfg.PollMin,
		pollMax:      cfg.PollMax,
		staleTimeout: cfg.StaleTimeout,
		shutdown:     make(chan struct{}),
	}
}

// Stop signals the loop to break at its next observation point. Safe to
// call more than once.
func (w *Worker) Stop() {
	w.once.Do(func() { close(w.shutdown) })
}

// Run executes spec.md §4.6's loop until Stop is called or ctx is
// cancelled. On exit, an in-flight job (if any) is released back to
// PENDING so another replica can take it — the lease-release step the
// spec's pseudocode calls out as its final line.
func (w *Worker) Run(ctx context.Context) {
	backoff := w.pollMin
	var currentJob *interfaces.Job

	defer func() {
		if currentJob != nil {
			if err := w.store.ResetToPending(context.Background(), currentJob.Key()); err != nil {
				w.logger.Warn().Err(err).Str("crawl_id", currentJob.CrawlID).Msg("failed to release in-flight job on shutdown")
			}
		}
	}()

	for {
		if w.shuttingDown(ctx) {
			return
		}

		for w.store.HealthCheck(ctx) != nil {
			if w.shuttingDown(ctx) {
				return
			}
			w.logger.Warn().Msg("graph store unhealthy, backing off before retry")
			if !w.sleep(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff, w.pollMax)
		}

		if !w.sleep(ctx, backoff) {
			return
		}

		job, err := w.store.ClaimNextJob(ctx, w.staleTimeout)
		if err != nil {
			w.logger.Warn().Err(err).Msg("claim_next_job failed")
			backoff = nextBackoff(backoff, w.pollMax)
			continue
		}
		if job == nil {
			backoff = nextBackoff(backoff, w.pollMax)
			continue
		}

		backoff = w.pollMin
		currentJob = job

		if w.shuttingDown(ctx) {
			return
		}

		if !w.process(ctx, job) {
			w.logger.Debug().Str("crawl_id", job.CrawlID).Str("name", job.Name).Msg("job did not complete successfully")
		}
		currentJob = nil
	}
}

func (w *Worker) shuttingDown(ctx context.Context) bool {
	select {
	case <-w.shutdown:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-w.shutdown:
		return false
	case <-ctx.Done():
		return false
	}
}

func nextBackoff(current, max time.Duration) time.Duration {
	doubled := current * 2
	if doubled > max {
		return max
	}
	return doubled
}

// process implements spec.md §4.6.1. It returns true iff the job reached a
// terminal, successful outcome.
func (w *Worker) process(ctx context.Context, job *interfaces.Job) bool {
	key := job.Key()

	cancelled, err := w.store.IsCancelled(ctx, key)
	if err != nil {
		w.logger.Warn().Err(err).Msg("is_cancelled check failed")
	}
	if cancelled {
		return true
	}

	result, err := w.fetcher.Fetch(ctx, job.HTTPType+job.Name)
	if err != nil {
		return w.handleFetchFailure(ctx, job, err)
	}

	tokens := extract.Extract(string(result.Body))
	candidates := normalizedNodeIDs(tokens)

	newURLs, err := w.store.FilterNewURLs(ctx, job.CrawlID, candidates)
	if err != nil {
		w.logger.Error().Err(err).Msg("filter_new_urls failed")
		w.markFailed(ctx, key, job.Attempts)
		return false
	}

	if len(newURLs) == 0 {
		if err := w.store.UpdateJobStatus(ctx, key, models.StatusCompleted, job.Attempts); err != nil {
			w.logger.Error().Err(err).Msg("update_job_status(COMPLETED) failed")
			return false
		}
		return true
	}

	resolved := childresolve.ResolveAll(ctx, w.resolver, newURLs, w.maxDNSDepth, w.logger)
	if len(resolved) == 0 {
		w.markFailed(ctx, key, job.Attempts)
		return false
	}

	children := make([]interfaces.ChildSpec, 0, len(resolved))
	for _, c := range resolved {
		children = append(children, interfaces.ChildSpec{
			Name:           c.Name,
			HTTPType:       c.HTTPType,
			IP:             c.IP,
			Domain:         c.Domain,
			RequestedDepth: job.RequestedDepth,
			CurrentDepth:   job.CurrentDepth + 1,
		})
	}

	if err := w.store.BatchCreateChildren(ctx, key, children); err != nil {
		w.logger.Error().Err(err).Msg("batch_create_children failed")
		w.markFailed(ctx, key, job.Attempts)
		return false
	}

	if err := w.store.UpdateJobStatus(ctx, key, models.StatusCompleted, job.Attempts); err != nil {
		w.logger.Error().Err(err).Msg("update_job_status(COMPLETED) failed")
		return false
	}
	return true
}

// handleFetchFailure applies spec.md §7's policy: permanent 4xx fails
// immediately, everything else retries up to max_attempts before failing.
func (w *Worker) handleFetchFailure(ctx context.Context, job *interfaces.Job, fetchErr error) bool {
	key := job.Key()

	if fe, ok := fetchErr.(*fetch.Error); ok && fe.Permanent() {
		w.markFailed(ctx, key, job.Attempts)
		return false
	}

	attempts := job.Attempts + 1
	if attempts >= w.maxAttempts {
		w.markFailed(ctx, key, attempts)
		return false
	}

	if err := w.store.UpdateJobStatus(ctx, key, models.StatusPending, attempts); err != nil {
		w.logger.Error().Err(err).Msg("update_job_status(PENDING retry) failed")
	}
	return false
}

func (w *Worker) markFailed(ctx context.Context, key interfaces.JobKey, attempts int) {
	if err := w.store.UpdateJobStatus(ctx, key, models.StatusFailed, attempts); err != nil {
		w.logger.Error().Err(err).Str("crawl_id", key.CrawlID).Msg("mark_failed (update_job_status) failed")
	}
}

// normalizedNodeIDs normalizes every extracted token to its NodeID form
// (http_type+name, WWW.-stripped) and dedups on that form, so
// FilterNewURLs is checked against exactly the key shape the store
// addresses URL rows by — a raw "HTTPS://WWW.X.COM" and an already-known
// "HTTPS://X.COM" must be recognized as the same candidate before either
// hits the store or a DNS lookup.
func normalizedNodeIDs(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	unique := make([]string, 0, len(tokens))
	for _, t := range tokens {
		name, httpType := normalize.Normalize(t)
		id := httpType + name
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	return unique
}
