package storeserver_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/webgraph-io/crawlgraph/internal/common"
	"github.com/webgraph-io/crawlgraph/internal/interfaces"
	"github.com/webgraph-io/crawlgraph/internal/models"
	"github.com/webgraph-io/crawlgraph/internal/storeclient"
	"github.com/webgraph-io/crawlgraph/internal/storeserver"
)

// fakeStore is a minimal in-memory interfaces.GraphStore double, enough to
// exercise the gateway's wire protocol without a real Badger instance.
type fakeStore struct {
	roots     map[string]interfaces.RootSpec
	children  map[string][]interfaces.ChildSpec
	nextJob   *interfaces.Job
	cancelled map[string]bool
	healthErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		roots:     map[string]interfaces.RootSpec{},
		children:  map[string][]interfaces.ChildSpec{},
		cancelled: map[string]bool{},
	}
}

func (f *fakeStore) EnsureSchema(ctx context.Context) error { return nil }
func (f *fakeStore) HealthCheck(ctx context.Context) error  { return f.healthErr }
func (f *fakeStore) ClaimNextJob(ctx context.Context, staleTimeout time.Duration) (*interfaces.Job, error) {
	return f.nextJob, nil
}
func (f *fakeStore) UpdateJobStatus(ctx context.Context, key interfaces.JobKey, status models.JobStatus, attempts int) error {
	return nil
}
func (f *fakeStore) ResetToPending(ctx context.Context, key interfaces.JobKey) error { return nil }
func (f *fakeStore) FilterNewURLs(ctx context.Context, crawlID string, candidates []string) ([]string, error) {
	return candidates, nil
}
func (f *fakeStore) BatchCreateChildren(ctx context.Context, parent interfaces.JobKey, children []interfaces.ChildSpec) error {
	return nil
}
func (f *fakeStore) CreateRoot(ctx context.Context, root interfaces.RootSpec, children []interfaces.ChildSpec) error {
	f.roots[root.CrawlID] = root
	f.children[root.CrawlID] = children
	return nil
}
func (f *fakeStore) IsCancelled(ctx context.Context, key interfaces.JobKey) (bool, error) {
	return f.cancelled[key.CrawlID], nil
}
func (f *fakeStore) CancelCrawl(ctx context.Context, crawlID string) (bool, error) {
	_, ok := f.roots[crawlID]
	if ok {
		f.cancelled[crawlID] = true
	}
	return ok, nil
}
func (f *fakeStore) GetCrawlProgress(ctx context.Context, crawlID string) (*interfaces.CrawlProgress, error) {
	if _, ok := f.roots[crawlID]; !ok {
		return nil, common.ErrCrawlNotFound
	}
	return &interfaces.CrawlProgress{CrawlID: crawlID}, nil
}
func (f *fakeStore) GetCrawlStats(ctx context.Context, crawlID string) (*interfaces.CrawlStats, error) {
	return &interfaces.CrawlStats{CrawlID: crawlID}, nil
}
func (f *fakeStore) ListCrawls(ctx context.Context, status string, limit, offset int) ([]interfaces.CrawlSummary, int, error) {
	return nil, 0, nil
}
func (f *fakeStore) GetGraphData(ctx context.Context, crawlID string) (*interfaces.GraphData, error) {
	return &interfaces.GraphData{}, nil
}

func newGatewayClient(t *testing.T, store interfaces.GraphStore) *storeclient.Client {
	t.Helper()
	srv := storeserver.New(store, arbor.NewLogger())
	httpSrv := httptest.NewServer(srv)
	t.Cleanup(httpSrv.Close)
	return storeclient.New(httpSrv.URL, 5*time.Second)
}

// TestGatewayRoundTrip exercises storeclient.Client against a real
// storeserver.Server, the path cmd/feeder/main.go takes instead of opening
// Badger itself.
func TestGatewayRoundTrip(t *testing.T) {
	store := newFakeStore()
	client := newGatewayClient(t, store)
	ctx := context.Background()

	require.NoError(t, client.EnsureSchema(ctx))
	require.NoError(t, client.HealthCheck(ctx))

	root := interfaces.RootSpec{CrawlID: "crawl-1", Name: "EXAMPLE.COM", HTTPType: "HTTPS://"}
	children := []interfaces.ChildSpec{{Name: "A.COM", HTTPType: "HTTPS://"}}
	require.NoError(t, client.CreateRoot(ctx, root, children))

	progress, err := client.GetCrawlProgress(ctx, "crawl-1")
	require.NoError(t, err)
	require.Equal(t, "crawl-1", progress.CrawlID)

	cancelled, err := client.IsCancelled(ctx, interfaces.JobKey{CrawlID: "crawl-1"})
	require.NoError(t, err)
	require.False(t, cancelled)

	existed, err := client.CancelCrawl(ctx, "crawl-1")
	require.NoError(t, err)
	require.True(t, existed)

	urls, err := client.FilterNewURLs(ctx, "crawl-1", []string{"HTTPS://B.COM"})
	require.NoError(t, err)
	require.Equal(t, []string{"HTTPS://B.COM"}, urls)
}

// TestGatewayMapsNotFoundSentinel confirms common.ErrCrawlNotFound survives
// the HTTP round trip as the same sentinel, since callers like
// manager.Service rely on errors.Is against it regardless of whether the
// GraphStore they hold is local or remote.
func TestGatewayMapsNotFoundSentinel(t *testing.T) {
	store := newFakeStore()
	client := newGatewayClient(t, store)

	_, err := client.GetCrawlProgress(context.Background(), "missing-crawl")
	require.ErrorIs(t, err, common.ErrCrawlNotFound)
}

// TestGatewayHealthCheckSurfacesStoreError confirms an unhealthy backing
// store maps to 503 the way waitForStoreGateway's retry loop expects.
func TestGatewayHealthCheckSurfacesStoreError(t *testing.T) {
	store := newFakeStore()
	store.healthErr = context.DeadlineExceeded
	client := newGatewayClient(t, store)

	err := client.HealthCheck(context.Background())
	require.Error(t, err)
}
