package feeder

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/webgraph-io/crawlgraph/internal/dnsresolve"
	"github.com/webgraph-io/crawlgraph/internal/fetch"
	"github.com/webgraph-io/crawlgraph/internal/interfaces"
	"github.com/webgraph-io/crawlgraph/internal/models"
)

// fakeStore is a minimal in-memory interfaces.GraphStore double recording
// every call a Worker makes, enough to drive process() without Badger.
type fakeStore struct {
	mu sync.Mutex

	job          *interfaces.Job
	healthErr    error
	isCancelled  bool
	filterResult []string
	filterErr    error

	statusCalls   []statusCall
	createdChildren []interfaces.ChildSpec
	resetCalls    int
}

type statusCall struct {
	key      interfaces.JobKey
	status   models.JobStatus
	attempts int
}

func (f *fakeStore) EnsureSchema(ctx context.Context) error { return nil }
func (f *fakeStore) HealthCheck(ctx context.Context) error  { return f.healthErr }

func (f *fakeStore) ClaimNextJob(ctx context.Context, staleTimeout time.Duration) (*interfaces.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job := f.job
	f.job = nil
	return job, nil
}

func (f *fakeStore) UpdateJobStatus(ctx context.Context, key interfaces.JobKey, status models.JobStatus, attempts int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls = append(f.statusCalls, statusCall{key: key, status: status, attempts: attempts})
	return nil
}

func (f *fakeStore) ResetToPending(ctx context.Context, key interfaces.JobKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetCalls++
	return nil
}

func (f *fakeStore) FilterNewURLs(ctx context.Context, crawlID string, candidates []string) ([]string, error) {
	if f.filterErr != nil {
		return nil, f.filterErr
	}
	if f.filterResult != nil {
		return f.filterResult, nil
	}
	return candidates, nil
}

func (f *fakeStore) BatchCreateChildren(ctx context.Context, parent interfaces.JobKey, children []interfaces.ChildSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createdChildren = append(f.createdChildren, children...)
	return nil
}

func (f *fakeStore) CreateRoot(ctx context.Context, root interfaces.RootSpec, children []interfaces.ChildSpec) error {
	return nil
}

func (f *fakeStore) IsCancelled(ctx context.Context, key interfaces.JobKey) (bool, error) {
	return f.isCancelled, nil
}

func (f *fakeStore) CancelCrawl(ctx context.Context, crawlID string) (bool, error) { return true, nil }

func (f *fakeStore) GetCrawlProgress(ctx context.Context, crawlID string) (*interfaces.CrawlProgress, error) {
	return &interfaces.CrawlProgress{}, nil
}
func (f *fakeStore) GetCrawlStats(ctx context.Context, crawlID string) (*interfaces.CrawlStats, error) {
	return &interfaces.CrawlStats{}, nil
}
func (f *fakeStore) ListCrawls(ctx context.Context, status string, limit, offset int) ([]interfaces.CrawlSummary, int, error) {
	return nil, 0, nil
}
func (f *fakeStore) GetGraphData(ctx context.Context, crawlID string) (*interfaces.GraphData, error) {
	return &interfaces.GraphData{}, nil
}

func (f *fakeStore) lastStatusCall() (statusCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.statusCalls) == 0 {
		return statusCall{}, false
	}
	return f.statusCalls[len(f.statusCalls)-1], true
}

type stubLookuper struct {
	answers map[string][]net.IPAddr
}

func (s *stubLookuper) LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error) {
	addrs, ok := s.answers[host]
	if !ok {
		return nil, &net.DNSError{Err: "no such host", Name: host}
	}
	return addrs, nil
}

func testConfig() Config {
	return Config{
		MaxAttempts:  3,
		MaxDNSDepth:  5,
		PollMin:      time.Millisecond,
		PollMax:      10 * time.Millisecond,
		StaleTimeout: time.Minute,
	}
}

func TestProcessSkipsCancelledJob(t *testing.T) {
	store := &fakeStore{isCancelled: true}
	worker := New(store, fetch.New(time.Second, 0), dnsresolve.NewResolver(), testConfig(), arbor.NewLogger())

	job := &interfaces.Job{CrawlID: "c1", Name: "EXAMPLE.COM", HTTPType: "HTTPS://", RequestedDepth: 2, CurrentDepth: 1}
	ok := worker.process(context.Background(), job)

	require.True(t, ok)
	_, called := store.lastStatusCall()
	require.False(t, called, "a cancelled job must not call update_job_status")
}

func TestProcessMarksPermanentHTTPErrorFailed(t *testing.T) {
	notFoundServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer notFoundServer.Close()

	host := strings.TrimPrefix(notFoundServer.URL, "http://")
	store := &fakeStore{}
	worker := New(store, fetch.New(time.Second, 0), dnsresolve.NewResolver(), testConfig(), arbor.NewLogger())

	job := &interfaces.Job{CrawlID: "c1", Name: host, HTTPType: "http://", RequestedDepth: 2, CurrentDepth: 1, Attempts: 0}
	ok := worker.process(context.Background(), job)

	require.False(t, ok)
	call, called := store.lastStatusCall()
	require.True(t, called)
	require.Equal(t, models.StatusFailed, call.status)
	require.Equal(t, 0, call.attempts)
}

func TestProcessRequeuesTransientFailureUntilMaxAttempts(t *testing.T) {
	store := &fakeStore{}
	cfg := testConfig()
	cfg.MaxAttempts = 2
	worker := New(store, fetch.New(50*time.Millisecond, 0), dnsresolve.NewResolver(), cfg, arbor.NewLogger())

	job := &interfaces.Job{CrawlID: "c1", Name: "127.0.0.1:1", HTTPType: "http://", RequestedDepth: 2, CurrentDepth: 1, Attempts: 0}

	ok := worker.process(context.Background(), job)
	require.False(t, ok)
	call, called := store.lastStatusCall()
	require.True(t, called)
	require.Equal(t, models.StatusPending, call.status)
	require.Equal(t, 1, call.attempts)

	job.Attempts = 1
	ok = worker.process(context.Background(), job)
	require.False(t, ok)
	call, called = store.lastStatusCall()
	require.True(t, called)
	require.Equal(t, models.StatusFailed, call.status)
	require.Equal(t, 2, call.attempts)
}

func TestProcessExtractsResolvesAndCompletes(t *testing.T) {
	seedServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<a href="https://child.example">link</a>`))
	}))
	defer seedServer.Close()

	lookuper := &stubLookuper{answers: map[string][]net.IPAddr{
		"child.example": {{IP: net.ParseIP("1.2.3.4")}},
	}}
	resolver := dnsresolve.NewResolverWithLookuper(lookuper)

	store := &fakeStore{}
	worker := New(store, fetch.New(time.Second, 0), resolver, testConfig(), arbor.NewLogger())

	host := strings.TrimPrefix(seedServer.URL, "http://")
	job := &interfaces.Job{CrawlID: "c1", Name: host, HTTPType: "http://", RequestedDepth: 3, CurrentDepth: 1}

	ok := worker.process(context.Background(), job)
	require.True(t, ok)

	require.Len(t, store.createdChildren, 1)
	require.Equal(t, "CHILD.EXAMPLE", store.createdChildren[0].Name)
	require.Equal(t, 2, store.createdChildren[0].CurrentDepth)
	require.Equal(t, 3, store.createdChildren[0].RequestedDepth)

	call, called := store.lastStatusCall()
	require.True(t, called)
	require.Equal(t, models.StatusCompleted, call.status)
}

func TestProcessCompletesWithNoNewLinks(t *testing.T) {
	seedServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<p>no links here</p>`))
	}))
	defer seedServer.Close()

	store := &fakeStore{}
	worker := New(store, fetch.New(time.Second, 0), dnsresolve.NewResolver(), testConfig(), arbor.NewLogger())

	host := strings.TrimPrefix(seedServer.URL, "http://")
	job := &interfaces.Job{CrawlID: "c1", Name: host, HTTPType: "http://", RequestedDepth: 2, CurrentDepth: 1}

	ok := worker.process(context.Background(), job)
	require.True(t, ok)
	require.Empty(t, store.createdChildren)

	call, called := store.lastStatusCall()
	require.True(t, called)
	require.Equal(t, models.StatusCompleted, call.status)
}

func TestProcessFailsWhenAllDNSResolutionsFail(t *testing.T) {
	seedServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<a href="https://unresolvable.invalid">link</a>`))
	}))
	defer seedServer.Close()

	resolver := dnsresolve.NewResolverWithLookuper(&stubLookuper{answers: map[string][]net.IPAddr{}})
	store := &fakeStore{}
	worker := New(store, fetch.New(time.Second, 0), resolver, testConfig(), arbor.NewLogger())

	host := strings.TrimPrefix(seedServer.URL, "http://")
	job := &interfaces.Job{CrawlID: "c1", Name: host, HTTPType: "http://", RequestedDepth: 2, CurrentDepth: 1, Attempts: 0}

	ok := worker.process(context.Background(), job)
	require.False(t, ok)

	call, called := store.lastStatusCall()
	require.True(t, called)
	require.Equal(t, models.StatusFailed, call.status)
}

func TestRunReturnsWhenContextExpires(t *testing.T) {
	store := &fakeStore{job: &interfaces.Job{CrawlID: "c1", Name: "EXAMPLE.COM", HTTPType: "https://", RequestedDepth: 2, CurrentDepth: 1}, healthErr: nil}
	store.isCancelled = true // short-circuits process() before any network call

	worker := New(store, fetch.New(time.Second, 0), dnsresolve.NewResolver(), testConfig(), arbor.NewLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	worker.Run(ctx)

	// the single seeded job was claimed and completed (cancelled-short-circuit
	// counts as a successful terminal outcome), so no reset was necessary;
	// this test mainly asserts Run returns promptly once ctx is done.
	require.Equal(t, 0, store.resetCalls)
}
