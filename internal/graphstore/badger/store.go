package badger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/webgraph-io/crawlgraph/internal/common"
	"github.com/webgraph-io/crawlgraph/internal/interfaces"
	"github.com/webgraph-io/crawlgraph/internal/lifecycle"
	"github.com/webgraph-io/crawlgraph/internal/models"
)

// Store implements interfaces.GraphStore over Badger/badgerhold. Badger
// takes an exclusive OS-level lock on its data directory, so exactly one
// process may ever hold a Store: the manager. internal/storeserver exposes
// that one Store to every feeder replica over HTTP, which is what actually
// makes "multiple feeder replicas" safe — see DESIGN.md. mu only serializes
// select-then-set sequences arriving concurrently within that one process
// (badgerhold's query API has no compare-and-swap, and the teacher's own
// badger storage package — job_storage.go's UpdateProgressCountersAtomic,
// document_storage.go's SaveDocuments — leaves that exact gap as a
// documented read-modify-write race rather than solving it). It gives no
// protection across OS processes; there is only ever one process to
// protect against.
type Store struct {
	db     *BadgerDB
	logger arbor.ILogger
	mu     sync.Mutex
}

// New wraps an opened BadgerDB as a GraphStore.
func New(db *BadgerDB, logger arbor.ILogger) interfaces.GraphStore {
	return &Store{db: db, logger: logger}
}

// ClaimNextJob implements spec.md §4.5: PENDING jobs take priority over
// stale IN-PROGRESS reclaims, probed as two separate phases under the same
// lock so a reclaim can never jump ahead of a available PENDING job.
func (s *Store) ClaimNextJob(ctx context.Context, staleTimeout time.Duration) (*interfaces.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := badgerhold.Where("JobStatus").Eq(models.StatusPending).SortBy("RequestTime").Limit(1)
	job, err := s.claimMatching(pending)
	if err != nil {
		return nil, fmt.Errorf("claim pending job: %w", err)
	}
	if job != nil {
		return job, nil
	}

	staleBefore := time.Now().Add(-staleTimeout)
	stale := badgerhold.Where("JobStatus").Eq(models.StatusInProgress).
		And("ClaimedAt").Lt(staleBefore).SortBy("ClaimedAt").Limit(1)
	job, err = s.claimMatching(stale)
	if err != nil {
		return nil, fmt.Errorf("claim stale job: %w", err)
	}
	return job, nil
}

func (s *Store) claimMatching(query *badgerhold.Query) (*interfaces.Job, error) {
	var matches []models.URL
	if err := s.db.Store().Find(&matches, query); err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}

	u := matches[0]
	if u.CurrentDepth == u.RequestedDepth {
		// Per invariant 2 a node at its requested depth is created
		// COMPLETED, never PENDING or IN-PROGRESS; this is a defensive
		// no-op rather than a path expected to run.
		return nil, nil
	}

	now := time.Now()
	u.JobStatus = models.StatusInProgress
	u.ClaimedAt = &now
	if err := s.db.Store().Update(u.Key, &u); err != nil {
		return nil, err
	}

	return &interfaces.Job{
		CrawlID:        u.CrawlID,
		Name:           u.Name,
		HTTPType:       u.HTTPType,
		RequestedDepth: u.RequestedDepth,
		CurrentDepth:   u.CurrentDepth,
		Attempts:       u.Attempts,
	}, nil
}

func keyFor(key interfaces.JobKey) string {
	return models.URLKeyFor(key.CrawlID, key.HTTPType, key.Name)
}

// UpdateJobStatus writes job_status and attempts on the addressed URL.
// ClaimedAt is cleared whenever the new status is not IN-PROGRESS, since
// every terminal/pending status per the state machine carries no lease.
func (s *Store) UpdateJobStatus(ctx context.Context, key interfaces.JobKey, status models.JobStatus, attempts int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var u models.URL
	if err := s.db.Store().Get(keyFor(key), &u); err != nil {
		return fmt.Errorf("url %s: %w", keyFor(key), err)
	}

	u.JobStatus = status
	u.Attempts = attempts
	if status != models.StatusInProgress {
		u.ClaimedAt = nil
	}

	return s.db.Store().Update(u.Key, &u)
}

// ResetToPending releases a lease only if it is still held: a job already
// moved on by its owning feeder (or reclaimed by another) is left alone.
func (s *Store) ResetToPending(ctx context.Context, key interfaces.JobKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var u models.URL
	if err := s.db.Store().Get(keyFor(key), &u); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return err
	}
	if u.JobStatus != models.StatusInProgress {
		return nil
	}

	u.JobStatus = models.StatusPending
	u.ClaimedAt = nil
	return s.db.Store().Update(u.Key, &u)
}

// FilterNewURLs does one point lookup per candidate rather than scanning
// every URL of the crawl into memory, satisfying §4.5's "push the filter
// into the store" requirement on a key-value engine that has no SQL-style
// NOT IN subquery.
func (s *Store) FilterNewURLs(ctx context.Context, crawlID string, candidates []string) ([]string, error) {
	fresh := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		var existing models.URL
		err := s.db.Store().Get(crawlID+"|"+candidate, &existing)
		if err == badgerhold.ErrNotFound {
			fresh = append(fresh, candidate)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("filter new urls: %w", err)
		}
	}
	return fresh, nil
}

// BatchCreateChildren get-or-creates every child and its Lead edge from
// parent under the same lock ClaimNextJob uses, so two feeders racing to
// discover the same child from different parent pages never both insert it.
func (s *Store) BatchCreateChildren(ctx context.Context, parent interfaces.JobKey, children []interfaces.ChildSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	parentID := models.NodeID(parent.HTTPType, parent.Name)
	return s.createChildrenLocked(parent.CrawlID, parentID, children)
}

func (s *Store) createChildrenLocked(crawlID, parentID string, children []interfaces.ChildSpec) error {
	now := time.Now()
	for _, child := range children {
		childKey := models.URLKeyFor(crawlID, child.HTTPType, child.Name)

		var existing models.URL
		err := s.db.Store().Get(childKey, &existing)
		if err != nil && err != badgerhold.ErrNotFound {
			return fmt.Errorf("get child %s: %w", childKey, err)
		}
		if err == badgerhold.ErrNotFound {
			status := models.StatusPending
			if child.CurrentDepth == child.RequestedDepth {
				status = models.StatusCompleted
			}
			node := models.URL{
				Key:            childKey,
				CrawlID:        crawlID,
				Name:           child.Name,
				HTTPType:       child.HTTPType,
				IP:             child.IP,
				Domain:         child.Domain,
				RequestedDepth: child.RequestedDepth,
				CurrentDepth:   child.CurrentDepth,
				JobStatus:      status,
				RequestTime:    now,
			}
			if err := s.db.Store().Insert(childKey, &node); err != nil {
				return fmt.Errorf("insert child %s: %w", childKey, err)
			}
		}

		childID := models.NodeID(child.HTTPType, child.Name)
		leadKey := models.LeadKeyFor(crawlID, parentID, childID)
		var existingLead models.Lead
		err = s.db.Store().Get(leadKey, &existingLead)
		if err != nil && err != badgerhold.ErrNotFound {
			return fmt.Errorf("get lead %s: %w", leadKey, err)
		}
		if err == badgerhold.ErrNotFound {
			lead := models.Lead{Key: leadKey, CrawlID: crawlID, ParentID: parentID, ChildID: childID}
			if err := s.db.Store().Insert(leadKey, &lead); err != nil {
				return fmt.Errorf("insert lead %s: %w", leadKey, err)
			}
		}
	}
	return nil
}

// CreateRoot seeds a crawl's ROOT and depth-1 children under the same lock,
// so a concurrent claim can never observe a half-seeded crawl.
func (s *Store) CreateRoot(ctx context.Context, root interfaces.RootSpec, children []interfaces.ChildSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	node := models.Root{
		CrawlID:        root.CrawlID,
		Name:           root.Name,
		HTTPType:       root.HTTPType,
		IP:             root.IP,
		Domain:         root.Domain,
		RequestedDepth: root.RequestedDepth,
		RequestTime:    root.RequestTime,
		CreatedAt:      time.Now(),
	}
	if err := s.db.Store().Insert(root.CrawlID, &node); err != nil {
		return fmt.Errorf("insert root %s: %w", root.CrawlID, err)
	}

	rootID := models.NodeID(root.HTTPType, root.Name)
	return s.createChildrenLocked(root.CrawlID, rootID, children)
}

// IsCancelled reports whether the addressed URL's status is CANCELLED. A
// URL that no longer exists is reported as not cancelled rather than as an
// error — the caller's next write will surface the real problem.
func (s *Store) IsCancelled(ctx context.Context, key interfaces.JobKey) (bool, error) {
	var u models.URL
	if err := s.db.Store().Get(keyFor(key), &u); err != nil {
		if err == badgerhold.ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return u.JobStatus == models.StatusCancelled, nil
}

// CancelCrawl moves every non-terminal URL of crawlID to CANCELLED.
func (s *Store) CancelCrawl(ctx context.Context, crawlID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var root models.Root
	if err := s.db.Store().Get(crawlID, &root); err != nil {
		if err == badgerhold.ErrNotFound {
			return false, nil
		}
		return false, err
	}

	var open []models.URL
	query := badgerhold.Where("CrawlID").Eq(crawlID).
		And("JobStatus").In(models.StatusPending, models.StatusInProgress)
	if err := s.db.Store().Find(&open, query); err != nil {
		return false, err
	}

	for i := range open {
		open[i].JobStatus = models.StatusCancelled
		open[i].ClaimedAt = nil
		if err := s.db.Store().Update(open[i].Key, &open[i]); err != nil {
			return false, fmt.Errorf("cancel %s: %w", open[i].Key, err)
		}
	}

	return true, nil
}

func (s *Store) loadCrawlURLs(crawlID string) (*models.Root, []models.URL, error) {
	var root models.Root
	if err := s.db.Store().Get(crawlID, &root); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil, common.ErrCrawlNotFound
		}
		return nil, nil, err
	}

	var urls []models.URL
	if err := s.db.Store().Find(&urls, badgerhold.Where("CrawlID").Eq(crawlID)); err != nil {
		return nil, nil, err
	}
	return &root, urls, nil
}

func countStatuses(urls []models.URL) lifecycle.StatusCounts {
	var c lifecycle.StatusCounts
	for _, u := range urls {
		switch u.JobStatus {
		case models.StatusPending:
			c.Pending++
		case models.StatusInProgress:
			c.InProgress++
		case models.StatusCompleted:
			c.Completed++
		case models.StatusFailed:
			c.Failed++
		case models.StatusCancelled:
			c.Cancelled++
		}
	}
	return c
}

// GetCrawlProgress aggregates per-status counts for one crawl.
func (s *Store) GetCrawlProgress(ctx context.Context, crawlID string) (*interfaces.CrawlProgress, error) {
	root, urls, err := s.loadCrawlURLs(crawlID)
	if err != nil {
		return nil, err
	}
	counts := countStatuses(urls)

	return &interfaces.CrawlProgress{
		CrawlID:        crawlID,
		Status:         lifecycle.Status(counts),
		Total:          counts.Total(),
		Completed:      counts.Completed,
		Pending:        counts.Pending,
		InProgress:     counts.InProgress,
		Failed:         counts.Failed,
		Cancelled:      counts.Cancelled,
		RootURL:        root.HTTPType + root.Name,
		RequestedDepth: root.RequestedDepth,
	}, nil
}

// GetCrawlStats extends GetCrawlProgress with domain/depth aggregates.
func (s *Store) GetCrawlStats(ctx context.Context, crawlID string) (*interfaces.CrawlStats, error) {
	root, urls, err := s.loadCrawlURLs(crawlID)
	if err != nil {
		return nil, err
	}
	counts := countStatuses(urls)

	domains := make(map[string]struct{})
	maxDepth := 0
	for _, u := range urls {
		domains[u.Domain] = struct{}{}
		if u.CurrentDepth > maxDepth {
			maxDepth = u.CurrentDepth
		}
	}

	return &interfaces.CrawlStats{
		CrawlProgress: interfaces.CrawlProgress{
			CrawlID:        crawlID,
			Status:         lifecycle.Status(counts),
			Total:          counts.Total(),
			Completed:      counts.Completed,
			Pending:        counts.Pending,
			InProgress:     counts.InProgress,
			Failed:         counts.Failed,
			Cancelled:      counts.Cancelled,
			RootURL:        root.HTTPType + root.Name,
			RequestedDepth: root.RequestedDepth,
		},
		UniqueDomains:   len(domains),
		MaxDepthReached: maxDepth,
	}, nil
}

// ListCrawls returns one summary per ROOT, most recent first, optionally
// filtered by derived status. Status is computed (not stored), so filtering
// and pagination both happen after the per-crawl aggregation below rather
// than inside a single badgerhold query.
func (s *Store) ListCrawls(ctx context.Context, status string, limit, offset int) ([]interfaces.CrawlSummary, int, error) {
	var roots []models.Root
	if err := s.db.Store().Find(&roots, badgerhold.Where("CrawlID").Ne("").SortBy("CreatedAt").Reverse()); err != nil {
		return nil, 0, err
	}

	summaries := make([]interfaces.CrawlSummary, 0, len(roots))
	for _, root := range roots {
		var urls []models.URL
		if err := s.db.Store().Find(&urls, badgerhold.Where("CrawlID").Eq(root.CrawlID)); err != nil {
			return nil, 0, err
		}
		crawlStatus := lifecycle.Status(countStatuses(urls))
		if status != "" && crawlStatus != status {
			continue
		}
		summaries = append(summaries, interfaces.CrawlSummary{
			CrawlID:        root.CrawlID,
			Status:         crawlStatus,
			RootURL:        root.HTTPType + root.Name,
			RequestedDepth: root.RequestedDepth,
			CreatedAt:      root.CreatedAt,
		})
	}

	total := len(summaries)
	if offset >= total {
		return []interfaces.CrawlSummary{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return summaries[offset:end], total, nil
}

// GetGraphData returns every node and Lead edge of one crawl, nodes
// deduplicated by http_type+name per spec.md §4.5. URL rows are already
// unique by key, since NodeID is exactly the key's non-crawl half; a URL
// row carrying the ROOT's own NodeID is folded into the ROOT node.
func (s *Store) GetGraphData(ctx context.Context, crawlID string) (*interfaces.GraphData, error) {
	root, urls, err := s.loadCrawlURLs(crawlID)
	if err != nil {
		return nil, err
	}

	rootID := models.NodeID(root.HTTPType, root.Name)
	nodes := make([]interfaces.GraphNode, 0, len(urls)+1)
	nodes = append(nodes, interfaces.GraphNode{
		ID:       rootID,
		Label:    root.Name,
		Domain:   root.Domain,
		Depth:    0,
		Status:   "", // ROOT carries no job_status
		NodeType: "ROOT",
	})
	for _, u := range urls {
		id := models.NodeID(u.HTTPType, u.Name)
		if id == rootID {
			continue
		}
		nodes = append(nodes, interfaces.GraphNode{
			ID:       id,
			Label:    u.Name,
			Domain:   u.Domain,
			Depth:    u.CurrentDepth,
			Status:   string(u.JobStatus),
			NodeType: "URL",
		})
	}

	var leads []models.Lead
	if err := s.db.Store().Find(&leads, badgerhold.Where("CrawlID").Eq(crawlID)); err != nil {
		return nil, err
	}
	edges := make([]interfaces.GraphEdge, 0, len(leads))
	for _, lead := range leads {
		edges = append(edges, interfaces.GraphEdge{Source: lead.ParentID, Target: lead.ChildID})
	}

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	return &interfaces.GraphData{Nodes: nodes, Edges: edges}, nil
}
