// Package storeclient implements interfaces.GraphStore as a thin JSON/HTTP
// client against an internal/storeserver.Server, grounded on the teacher's
// internal/httpclient (a shared *http.Client wrapper other services talk
// through) — the same shape, now fronting this module's own store gateway
// instead of a third-party API. A feeder process never opens Badger
// itself: only the manager holds that exclusive file lock, and every
// feeder replica reaches the graph store through a Client instead.
package storeclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/webgraph-io/crawlgraph/internal/common"
	"github.com/webgraph-io/crawlgraph/internal/interfaces"
	"github.com/webgraph-io/crawlgraph/internal/models"
)

// Client is a interfaces.GraphStore over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a Client against the storeserver.Server listening at baseURL.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, reqBody, respBody interface{}) error {
	var body io.Reader
	if reqBody != nil {
		buf, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("encode store gateway request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("build store gateway request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("store gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return common.ErrCrawlNotFound
	}
	if resp.StatusCode != http.StatusOK {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		if errBody.Error == "" {
			errBody.Error = resp.Status
		}
		return fmt.Errorf("store gateway: %s", errBody.Error)
	}

	if respBody == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(respBody)
}

// EnsureSchema calls the gateway's schema-init endpoint.
func (c *Client) EnsureSchema(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/store/ensure-schema", nil, nil, nil)
}

// HealthCheck calls the gateway's health endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/store/health", nil, nil, nil)
}

type claimNextJobRequest struct {
	StaleTimeoutMs int64
}

type claimNextJobResponse struct {
	Job *interfaces.Job
}

// ClaimNextJob claims a job through the gateway.
func (c *Client) ClaimNextJob(ctx context.Context, staleTimeout time.Duration) (*interfaces.Job, error) {
	var resp claimNextJobResponse
	req := claimNextJobRequest{StaleTimeoutMs: staleTimeout.Milliseconds()}
	if err := c.do(ctx, http.MethodPost, "/store/claim-next-job", nil, req, &resp); err != nil {
		return nil, err
	}
	return resp.Job, nil
}

type updateJobStatusRequest struct {
	Key      interfaces.JobKey
	Status   models.JobStatus
	Attempts int
}

// UpdateJobStatus writes a job's status through the gateway.
func (c *Client) UpdateJobStatus(ctx context.Context, key interfaces.JobKey, status models.JobStatus, attempts int) error {
	req := updateJobStatusRequest{Key: key, Status: status, Attempts: attempts}
	return c.do(ctx, http.MethodPost, "/store/update-job-status", nil, req, nil)
}

type resetToPendingRequest struct {
	Key interfaces.JobKey
}

// ResetToPending releases a lease through the gateway.
func (c *Client) ResetToPending(ctx context.Context, key interfaces.JobKey) error {
	req := resetToPendingRequest{Key: key}
	return c.do(ctx, http.MethodPost, "/store/reset-to-pending", nil, req, nil)
}

type filterNewURLsRequest struct {
	CrawlID    string
	Candidates []string
}

type filterNewURLsResponse struct {
	URLs []string
}

// FilterNewURLs asks the gateway which candidates are unseen.
func (c *Client) FilterNewURLs(ctx context.Context, crawlID string, candidates []string) ([]string, error) {
	var resp filterNewURLsResponse
	req := filterNewURLsRequest{CrawlID: crawlID, Candidates: candidates}
	if err := c.do(ctx, http.MethodPost, "/store/filter-new-urls", nil, req, &resp); err != nil {
		return nil, err
	}
	return resp.URLs, nil
}

type batchCreateChildrenRequest struct {
	Parent   interfaces.JobKey
	Children []interfaces.ChildSpec
}

// BatchCreateChildren writes a batch of children through the gateway.
func (c *Client) BatchCreateChildren(ctx context.Context, parent interfaces.JobKey, children []interfaces.ChildSpec) error {
	req := batchCreateChildrenRequest{Parent: parent, Children: children}
	return c.do(ctx, http.MethodPost, "/store/batch-create-children", nil, req, nil)
}

type createRootRequest struct {
	Root     interfaces.RootSpec
	Children []interfaces.ChildSpec
}

// CreateRoot seeds a crawl through the gateway.
func (c *Client) CreateRoot(ctx context.Context, root interfaces.RootSpec, children []interfaces.ChildSpec) error {
	req := createRootRequest{Root: root, Children: children}
	return c.do(ctx, http.MethodPost, "/store/create-root", nil, req, nil)
}

type isCancelledRequest struct {
	Key interfaces.JobKey
}

type isCancelledResponse struct {
	Cancelled bool
}

// IsCancelled checks cancellation through the gateway.
func (c *Client) IsCancelled(ctx context.Context, key interfaces.JobKey) (bool, error) {
	var resp isCancelledResponse
	req := isCancelledRequest{Key: key}
	if err := c.do(ctx, http.MethodPost, "/store/is-cancelled", nil, req, &resp); err != nil {
		return false, err
	}
	return resp.Cancelled, nil
}

type cancelCrawlRequest struct {
	CrawlID string
}

type cancelCrawlResponse struct {
	Existed bool
}

// CancelCrawl cancels a crawl through the gateway.
func (c *Client) CancelCrawl(ctx context.Context, crawlID string) (bool, error) {
	var resp cancelCrawlResponse
	req := cancelCrawlRequest{CrawlID: crawlID}
	if err := c.do(ctx, http.MethodPost, "/store/cancel-crawl", nil, req, &resp); err != nil {
		return false, err
	}
	return resp.Existed, nil
}

// GetCrawlProgress reads a crawl's progress through the gateway.
func (c *Client) GetCrawlProgress(ctx context.Context, crawlID string) (*interfaces.CrawlProgress, error) {
	var progress interfaces.CrawlProgress
	q := url.Values{"crawl_id": {crawlID}}
	if err := c.do(ctx, http.MethodGet, "/store/crawl-progress", q, nil, &progress); err != nil {
		return nil, err
	}
	return &progress, nil
}

// GetCrawlStats reads a crawl's stats through the gateway.
func (c *Client) GetCrawlStats(ctx context.Context, crawlID string) (*interfaces.CrawlStats, error) {
	var stats interfaces.CrawlStats
	q := url.Values{"crawl_id": {crawlID}}
	if err := c.do(ctx, http.MethodGet, "/store/crawl-stats", q, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

type listCrawlsResponse struct {
	Crawls []interfaces.CrawlSummary
	Total  int
}

// ListCrawls reads the paginated crawl listing through the gateway.
func (c *Client) ListCrawls(ctx context.Context, status string, limit, offset int) ([]interfaces.CrawlSummary, int, error) {
	var resp listCrawlsResponse
	q := url.Values{
		"status": {status},
		"limit":  {strconv.Itoa(limit)},
		"offset": {strconv.Itoa(offset)},
	}
	if err := c.do(ctx, http.MethodGet, "/store/list-crawls", q, nil, &resp); err != nil {
		return nil, 0, err
	}
	return resp.Crawls, resp.Total, nil
}

// GetGraphData reads a crawl's graph through the gateway.
func (c *Client) GetGraphData(ctx context.Context, crawlID string) (*interfaces.GraphData, error) {
	var graph interfaces.GraphData
	q := url.Values{"crawl_id": {crawlID}}
	if err := c.do(ctx, http.MethodGet, "/store/graph-data", q, nil, &graph); err != nil {
		return nil, err
	}
	return &graph, nil
}

var _ interfaces.GraphStore = (*Client)(nil)
