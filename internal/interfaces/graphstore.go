// Package interfaces defines the contracts the rest of the module programs
// against, the same role the teacher's internal/interfaces package plays:
// storage and service boundaries are interfaces here, concrete backends
// live under internal/graphstore/badger.
package interfaces

import (
	"context"
	"time"

	"github.com/webgraph-io/crawlgraph/internal/models"
)

// JobKey addresses one URL node for the update/reset/cancellation-check
// operations in spec.md §4.5.
type JobKey struct {
	CrawlID      string
	Name         string
	HTTPType     string
	CurrentDepth int
}

// Job is the payload claim_next_job returns: everything a feeder needs to
// process one URL.
type Job struct {
	CrawlID        string
	Name           string
	HTTPType       string
	RequestedDepth int
	CurrentDepth   int
	Attempts       int
}

// Key returns the JobKey addressing this job's URL node.
func (j *Job) Key() JobKey {
	return JobKey{CrawlID: j.CrawlID, Name: j.Name, HTTPType: j.HTTPType, CurrentDepth: j.CurrentDepth}
}

// ChildSpec is one resolved child URL batch_create_children writes, per
// spec.md §4.5.
type ChildSpec struct {
	Name           string
	HTTPType       string
	IP             string
	Domain         string
	RequestedDepth int
	CurrentDepth   int
}

// CrawlProgress is the aggregation spec.md's progress object is built from
// (§4.8, §6).
type CrawlProgress struct {
	CrawlID        string
	Status         string
	Total          int
	Completed      int
	Pending        int
	InProgress     int
	Failed         int
	Cancelled      int
	RootURL        string
	RequestedDepth int
}

// CrawlStats extends CrawlProgress with read-only aggregates spec.md §4.5
// names alongside it (unique domains, max depth reached).
type CrawlStats struct {
	CrawlProgress
	UniqueDomains  int
	MaxDepthReached int
}

// CrawlSummary is one row of the paginated crawl list (§6 GET /crawls).
type CrawlSummary struct {
	CrawlID        string
	Status         string
	RootURL        string
	RequestedDepth int
	CreatedAt      time.Time
}

// GraphNode and GraphEdge make up the §6 graph payload.
type GraphNode struct {
	ID       string
	Label    string
	Domain   string
	Depth    int
	Status   string
	NodeType string
}

type GraphEdge struct {
	Source string
	Target string
}

type GraphData struct {
	Nodes []GraphNode
	Edges []GraphEdge
}

// RootSpec seeds a crawl's ROOT and depth-1 children in one CreateRoot call
// (spec.md §4.7 step 6).
type RootSpec struct {
	CrawlID        string
	Name           string
	HTTPType       string
	IP             string
	Domain         string
	RequestedDepth int
	RequestTime    time.Time
}

// GraphStore is the typed wrapper over the graph database spec.md §4.5
// specifies. Every method must be safe against concurrent callers from
// different feeder instances.
type GraphStore interface {
	// EnsureSchema idempotently creates the indexes/constraints spec.md
	// §4.5 names. Safe to call repeatedly.
	EnsureSchema(ctx context.Context) error

	// HealthCheck is a no-op query that succeeds iff the store is
	// reachable; it must not depend on any data existing.
	HealthCheck(ctx context.Context) error

	// ClaimNextJob is the central concurrency primitive: select-then-set
	// in one atomic step. Returns (nil, nil) if nothing is claimable.
	ClaimNextJob(ctx context.Context, staleTimeout time.Duration) (*Job, error)

	// UpdateJobStatus writes job_status and attempts on the URL addressed
	// by key.
	UpdateJobStatus(ctx context.Context, key JobKey, status models.JobStatus, attempts int) error

	// ResetToPending sets status back to PENDING and nulls claimed_at, but
	// only if the current status is still IN-PROGRESS.
	ResetToPending(ctx context.Context, key JobKey) error

	// FilterNewURLs returns the subset of candidates (upper-cased
	// scheme+name strings) that have no matching URL node in crawlID yet.
	FilterNewURLs(ctx context.Context, crawlID string, candidates []string) ([]string, error)

	// BatchCreateChildren get-or-creates every child of parent and the Lead
	// edge from parent to each. The Badger store writes the whole batch
	// under the lock ClaimNextJob takes, so no claim interleaves with it;
	// the writes are not one transaction, and a failure part-way leaves the
	// children and edges written before it in place.
	BatchCreateChildren(ctx context.Context, parent JobKey, children []ChildSpec) error

	// CreateRoot creates a crawl's ROOT node and its depth-1 children in one
	// call, per spec.md §4.7 step 6, under the same lock and with the same
	// non-transactional writes as BatchCreateChildren.
	CreateRoot(ctx context.Context, root RootSpec, children []ChildSpec) error

	// IsCancelled reports whether the URL's current job_status is
	// CANCELLED.
	IsCancelled(ctx context.Context, key JobKey) (bool, error)

	// CancelCrawl sets every non-terminal URL of crawlID to CANCELLED.
	// Returns false if no ROOT with that crawl_id exists.
	CancelCrawl(ctx context.Context, crawlID string) (existed bool, err error)

	GetCrawlProgress(ctx context.Context, crawlID string) (*CrawlProgress, error)
	GetCrawlStats(ctx context.Context, crawlID string) (*CrawlStats, error)
	ListCrawls(ctx context.Context, status string, limit, offset int) ([]CrawlSummary, int, error)
	GetGraphData(ctx context.Context, crawlID string) (*GraphData, error)
}
