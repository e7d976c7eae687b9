package badger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/webgraph-io/crawlgraph/internal/interfaces"
	"github.com/webgraph-io/crawlgraph/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(t.TempDir(), arbor.NewLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &Store{db: db, logger: arbor.NewLogger()}
}

func seedRoot(t *testing.T, s *Store, crawlID string, children []interfaces.ChildSpec) {
	t.Helper()
	err := s.CreateRoot(context.Background(), interfaces.RootSpec{
		CrawlID:        crawlID,
		Name:           "EXAMPLE.COM",
		HTTPType:       "HTTPS://",
		IP:             "93.184.216.34",
		Domain:         "EXAMPLE",
		RequestedDepth: 2,
		RequestTime:    time.Now(),
	}, children)
	require.NoError(t, err)
}

func TestEnsureSchemaAndHealthCheckOnEmptyStore(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.EnsureSchema(context.Background()))
	require.NoError(t, s.HealthCheck(context.Background()))
}

func TestClaimNextJobPrefersPendingOverStaleReclaim(t *testing.T) {
	s := newTestStore(t)
	seedRoot(t, s, "crawl-1", []interfaces.ChildSpec{
		{Name: "A.COM", HTTPType: "HTTPS://", RequestedDepth: 2, CurrentDepth: 1},
	})

	// Manually plant a stale IN-PROGRESS node alongside the fresh PENDING one.
	staleClaim := time.Now().Add(-time.Hour)
	stale := models.URL{
		Key:            models.URLKeyFor("crawl-1", "HTTPS://", "B.COM"),
		CrawlID:        "crawl-1",
		Name:           "B.COM",
		HTTPType:       "HTTPS://",
		RequestedDepth: 2,
		CurrentDepth:   1,
		JobStatus:      models.StatusInProgress,
		ClaimedAt:      &staleClaim,
	}
	require.NoError(t, s.db.Store().Insert(stale.Key, &stale))

	job, err := s.ClaimNextJob(context.Background(), time.Minute)
	require.NoError(t, err)
	require.NotNil(t, job)
	require.Equal(t, "A.COM", job.Name)
}

func TestClaimNextJobReclaimsStaleAfterTimeout(t *testing.T) {
	s := newTestStore(t)
	staleClaim := time.Now().Add(-time.Hour)
	stale := models.URL{
		Key:            models.URLKeyFor("crawl-1", "HTTPS://", "B.COM"),
		CrawlID:        "crawl-1",
		Name:           "B.COM",
		HTTPType:       "HTTPS://",
		RequestedDepth: 2,
		CurrentDepth:   1,
		JobStatus:      models.StatusInProgress,
		Attempts:       1,
		ClaimedAt:      &staleClaim,
	}
	require.NoError(t, s.db.Store().Insert(stale.Key, &stale))

	job, err := s.ClaimNextJob(context.Background(), time.Minute)
	require.NoError(t, err)
	require.NotNil(t, job)
	require.Equal(t, "B.COM", job.Name)
	require.Equal(t, 1, job.Attempts, "reclaim must preserve attempts rather than reset them")
}

func TestClaimNextJobReturnsNilWhenNothingClaimable(t *testing.T) {
	s := newTestStore(t)
	job, err := s.ClaimNextJob(context.Background(), time.Minute)
	require.NoError(t, err)
	require.Nil(t, job)
}

func TestClaimNextJobNeverDoubleClaimsUnderConcurrency(t *testing.T) {
	s := newTestStore(t)
	const n = 20
	children := make([]interfaces.ChildSpec, n)
	for i := 0; i < n; i++ {
		children[i] = interfaces.ChildSpec{
			Name: string(rune('A'+i)) + ".COM", HTTPType: "HTTPS://",
			RequestedDepth: 2, CurrentDepth: 1,
		}
	}
	seedRoot(t, s, "crawl-1", children)

	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[string]int)
	for i := 0; i < n*2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job, err := s.ClaimNextJob(context.Background(), time.Minute)
			require.NoError(t, err)
			if job == nil {
				return
			}
			mu.Lock()
			seen[job.Name]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, seen, n, "every child must be claimed exactly once")
	for name, count := range seen {
		require.Equalf(t, 1, count, "job %s claimed %d times", name, count)
	}
}

func TestUpdateJobStatusClearsClaimedAtOnTerminalStatus(t *testing.T) {
	s := newTestStore(t)
	seedRoot(t, s, "crawl-1", []interfaces.ChildSpec{
		{Name: "A.COM", HTTPType: "HTTPS://", RequestedDepth: 2, CurrentDepth: 1},
	})
	job, err := s.ClaimNextJob(context.Background(), time.Minute)
	require.NoError(t, err)
	require.NotNil(t, job)

	require.NoError(t, s.UpdateJobStatus(context.Background(), job.Key(), models.StatusCompleted, 0))

	var u models.URL
	require.NoError(t, s.db.Store().Get(models.URLKeyFor("crawl-1", "HTTPS://", "A.COM"), &u))
	require.Equal(t, models.StatusCompleted, u.JobStatus)
	require.Nil(t, u.ClaimedAt)
}

func TestResetToPendingOnlyAppliesWhenStillInProgress(t *testing.T) {
	s := newTestStore(t)
	seedRoot(t, s, "crawl-1", []interfaces.ChildSpec{
		{Name: "A.COM", HTTPType: "HTTPS://", RequestedDepth: 2, CurrentDepth: 1},
	})
	job, err := s.ClaimNextJob(context.Background(), time.Minute)
	require.NoError(t, err)
	require.NotNil(t, job)

	require.NoError(t, s.UpdateJobStatus(context.Background(), job.Key(), models.StatusCompleted, 0))
	require.NoError(t, s.ResetToPending(context.Background(), job.Key()))

	var u models.URL
	require.NoError(t, s.db.Store().Get(models.URLKeyFor("crawl-1", "HTTPS://", "A.COM"), &u))
	require.Equal(t, models.StatusCompleted, u.JobStatus, "reset must not clobber a status that moved on")
}

func TestFilterNewURLsExcludesExisting(t *testing.T) {
	s := newTestStore(t)
	seedRoot(t, s, "crawl-1", []interfaces.ChildSpec{
		{Name: "A.COM", HTTPType: "HTTPS://", RequestedDepth: 2, CurrentDepth: 1},
	})

	fresh, err := s.FilterNewURLs(context.Background(), "crawl-1", []string{"HTTPS://A.COM", "HTTPS://C.COM"})
	require.NoError(t, err)
	require.Equal(t, []string{"HTTPS://C.COM"}, fresh)
}

func TestBatchCreateChildrenIsGetOrCreate(t *testing.T) {
	s := newTestStore(t)
	parent := interfaces.JobKey{CrawlID: "crawl-1", Name: "ROOT.COM", HTTPType: "HTTPS://"}
	child := interfaces.ChildSpec{Name: "A.COM", HTTPType: "HTTPS://", RequestedDepth: 3, CurrentDepth: 2, Domain: "A"}

	require.NoError(t, s.BatchCreateChildren(context.Background(), parent, []interfaces.ChildSpec{child}))
	require.NoError(t, s.BatchCreateChildren(context.Background(), parent, []interfaces.ChildSpec{
		{Name: "A.COM", HTTPType: "HTTPS://", RequestedDepth: 3, CurrentDepth: 2, Domain: "CHANGED"},
	}))

	var u models.URL
	require.NoError(t, s.db.Store().Get(models.URLKeyFor("crawl-1", "HTTPS://", "A.COM"), &u))
	require.Equal(t, "A", u.Domain, "existing child must not be mutated by a second batch")
}

func TestBatchCreateChildrenSetsTerminalDepthCompleted(t *testing.T) {
	s := newTestStore(t)
	parent := interfaces.JobKey{CrawlID: "crawl-1", Name: "ROOT.COM", HTTPType: "HTTPS://"}
	require.NoError(t, s.BatchCreateChildren(context.Background(), parent, []interfaces.ChildSpec{
		{Name: "LEAF.COM", HTTPType: "HTTPS://", RequestedDepth: 2, CurrentDepth: 2},
	}))

	var u models.URL
	require.NoError(t, s.db.Store().Get(models.URLKeyFor("crawl-1", "HTTPS://", "LEAF.COM"), &u))
	require.Equal(t, models.StatusCompleted, u.JobStatus)
}

func TestCancelCrawlSkipsUnknownCrawl(t *testing.T) {
	s := newTestStore(t)
	existed, err := s.CancelCrawl(context.Background(), "missing")
	require.NoError(t, err)
	require.False(t, existed)
}

func TestCancelCrawlLeavesTerminalStatesAlone(t *testing.T) {
	s := newTestStore(t)
	seedRoot(t, s, "crawl-1", []interfaces.ChildSpec{
		{Name: "A.COM", HTTPType: "HTTPS://", RequestedDepth: 2, CurrentDepth: 1},
		{Name: "B.COM", HTTPType: "HTTPS://", RequestedDepth: 1, CurrentDepth: 1},
	})

	existed, err := s.CancelCrawl(context.Background(), "crawl-1")
	require.NoError(t, err)
	require.True(t, existed)

	var pendingChild, completedChild models.URL
	require.NoError(t, s.db.Store().Get(models.URLKeyFor("crawl-1", "HTTPS://", "A.COM"), &pendingChild))
	require.NoError(t, s.db.Store().Get(models.URLKeyFor("crawl-1", "HTTPS://", "B.COM"), &completedChild))
	require.Equal(t, models.StatusCancelled, pendingChild.JobStatus)
	require.Equal(t, models.StatusCompleted, completedChild.JobStatus, "terminal status must be untouched")
}

func TestGetCrawlProgressDerivesRunningStatus(t *testing.T) {
	s := newTestStore(t)
	seedRoot(t, s, "crawl-1", []interfaces.ChildSpec{
		{Name: "A.COM", HTTPType: "HTTPS://", RequestedDepth: 2, CurrentDepth: 1},
	})

	progress, err := s.GetCrawlProgress(context.Background(), "crawl-1")
	require.NoError(t, err)
	require.Equal(t, "running", progress.Status)
	require.Equal(t, 1, progress.Pending)
}

func TestGetCrawlProgressUnknownCrawl(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetCrawlProgress(context.Background(), "missing")
	require.Error(t, err)
}

func TestListCrawlsFiltersByDerivedStatus(t *testing.T) {
	s := newTestStore(t)
	seedRoot(t, s, "crawl-running", []interfaces.ChildSpec{
		{Name: "A.COM", HTTPType: "HTTPS://", RequestedDepth: 2, CurrentDepth: 1},
	})
	seedRoot(t, s, "crawl-done", []interfaces.ChildSpec{
		{Name: "B.COM", HTTPType: "HTTPS://", RequestedDepth: 1, CurrentDepth: 1},
	})

	running, total, err := s.ListCrawls(context.Background(), "running", 10, 0)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, running, 1)
	require.Equal(t, "crawl-running", running[0].CrawlID)
}

func TestGetGraphDataIncludesRootAndEdges(t *testing.T) {
	s := newTestStore(t)
	seedRoot(t, s, "crawl-1", []interfaces.ChildSpec{
		{Name: "A.COM", HTTPType: "HTTPS://", RequestedDepth: 2, CurrentDepth: 1},
	})

	graph, err := s.GetGraphData(context.Background(), "crawl-1")
	require.NoError(t, err)
	require.Len(t, graph.Nodes, 2)
	require.Len(t, graph.Edges, 1)
	require.Equal(t, "HTTPS://EXAMPLE.COM", graph.Edges[0].Source)
	require.Equal(t, "HTTPS://A.COM", graph.Edges[0].Target)
}
