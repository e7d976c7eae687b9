// Package manager implements crawl seeding and the read-only aggregation
// paths spec.md §4.7 and §6 describe, grounded on the teacher's
// internal/services/crawler.Service shape (a thin orchestration layer over
// storage plus outbound calls, no HTTP concerns of its own).
package manager

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/webgraph-io/crawlgraph/internal/childresolve"
	"github.com/webgraph-io/crawlgraph/internal/common"
	"github.com/webgraph-io/crawlgraph/internal/dnsresolve"
	"github.com/webgraph-io/crawlgraph/internal/extract"
	"github.com/webgraph-io/crawlgraph/internal/fetch"
	"github.com/webgraph-io/crawlgraph/internal/interfaces"
	"github.com/webgraph-io/crawlgraph/internal/normalize"
)

// Service seeds new crawls and serves the manager API's read paths.
type Service struct {
	store       interfaces.GraphStore
	fetcher     *fetch.Fetcher
	resolver    *dnsresolve.Resolver
	maxDNSDepth int
	logger      arbor.ILogger
}

// New builds a seeding Service over the given store, fetcher, and resolver.
func New(store interfaces.GraphStore, fetcher *fetch.Fetcher, resolver *dnsresolve.Resolver, maxDNSDepth int, logger arbor.ILogger) *Service {
	return &Service{store: store, fetcher: fetcher, resolver: resolver, maxDNSDepth: maxDNSDepth, logger: logger}
}

// CreateCrawlResult is the payload returned to a successful crawl request.
type CreateCrawlResult struct {
	CrawlID string
	Status  string
}

// CreateCrawl implements spec.md §4.7: normalize, fetch the seed, resolve
// it, extract and resolve its immediate children, then seed the ROOT and
// depth-1 children in one transaction.
func (s *Service) CreateCrawl(ctx context.Context, rawURL string, depth int) (*CreateCrawlResult, error) {
	if depth < 1 || depth > 5 {
		return nil, common.ErrInvalidDepth
	}
	if rawURL == "" {
		return nil, common.ErrInvalidURL
	}

	name, httpType := normalize.Normalize(rawURL)

	seed, err := s.fetcher.Fetch(ctx, httpType+name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrSeedFetchFailed, err)
	}

	crawlID := uuid.NewString()

	dns, err := s.resolver.Resolve(ctx, name, s.maxDNSDepth)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrSeedDNSFailed, err)
	}

	tokens := extract.Extract(string(seed.Body))
	candidates := upperCaseSet(tokens)
	children := childresolve.ResolveAll(ctx, s.resolver, candidates, s.maxDNSDepth, s.logger)

	childSpecs := make([]interfaces.ChildSpec, 0, len(children))
	for _, c := range children {
		childSpecs = append(childSpecs, interfaces.ChildSpec{
			Name:           c.Name,
			HTTPType:       c.HTTPType,
			IP:             c.IP,
			Domain:         c.Domain,
			RequestedDepth: depth,
			CurrentDepth:   1,
		})
	}

	rootSpec := interfaces.RootSpec{
		CrawlID:        crawlID,
		Name:           name,
		HTTPType:       httpType,
		IP:             dns.IP,
		Domain:         dns.Domain,
		RequestedDepth: depth,
		RequestTime:    time.Now(),
	}
	if err := s.store.CreateRoot(ctx, rootSpec, childSpecs); err != nil {
		return nil, fmt.Errorf("seed crawl: %w", err)
	}

	s.logger.Info().Str("crawl_id", crawlID).Str("root", httpType+name).Int("children", len(childSpecs)).Msg("crawl seeded")

	return &CreateCrawlResult{CrawlID: crawlID, Status: "running"}, nil
}

// CancelCrawl cancels every open URL of crawlID.
func (s *Service) CancelCrawl(ctx context.Context, crawlID string) error {
	existed, err := s.store.CancelCrawl(ctx, crawlID)
	if err != nil {
		return err
	}
	if !existed {
		return common.ErrCrawlNotFound
	}
	return nil
}

// GetProgress delegates to the store's progress aggregation.
func (s *Service) GetProgress(ctx context.Context, crawlID string) (*interfaces.CrawlProgress, error) {
	return s.store.GetCrawlProgress(ctx, crawlID)
}

// GetStats delegates to the store's stats aggregation.
func (s *Service) GetStats(ctx context.Context, crawlID string) (*interfaces.CrawlStats, error) {
	return s.store.GetCrawlStats(ctx, crawlID)
}

// ListCrawls delegates to the store's paginated crawl listing.
func (s *Service) ListCrawls(ctx context.Context, status string, limit, offset int) ([]interfaces.CrawlSummary, int, error) {
	return s.store.ListCrawls(ctx, status, limit, offset)
}

// GetGraphData delegates to the store's graph aggregation.
func (s *Service) GetGraphData(ctx context.Context, crawlID string) (*interfaces.GraphData, error) {
	return s.store.GetGraphData(ctx, crawlID)
}

func upperCaseSet(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	unique := make([]string, 0, len(tokens))
	for _, t := range tokens {
		upper := strings.ToUpper(t)
		if _, ok := seen[upper]; ok {
			continue
		}
		seen[upper] = struct{}{}
		unique = append(unique, upper)
	}
	return unique
}
