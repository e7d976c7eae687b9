// Package childresolve fans normalize+resolve out over a batch of
// candidate tokens, in parallel, dropping DNS failures — the shared step
// spec.md §4.6.1 step 5 and §4.7 step 5 both call for. Grounded on the
// teacher's enrichProjectsWithIssueCounts (internal/services/atlassian/
// jira_projects.go): one WaitGroup and a pre-sized slice in which each
// goroutine writes only its own index, so neither a mutex nor a channel is
// needed.
package childresolve

import (
	"context"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/webgraph-io/crawlgraph/internal/dnsresolve"
	"github.com/webgraph-io/crawlgraph/internal/normalize"
)

// Child is one candidate that survived normalization and DNS resolution.
type Child struct {
	Name     string
	HTTPType string
	IP       string
	Domain   string
}

// ResolveAll normalizes and resolves every candidate concurrently. A
// candidate whose resolve fails is dropped with a logged warning rather
// than failing the batch.
func ResolveAll(ctx context.Context, resolver *dnsresolve.Resolver, candidates []string, maxDNSDepth int, logger arbor.ILogger) []Child {
	results := make([]*Child, len(candidates))

	var wg sync.WaitGroup
	for i, candidate := range candidates {
		wg.Add(1)
		go func(index int, token string) {
			defer wg.Done()

			name, httpType := normalize.Normalize(token)
			dns, err := resolver.Resolve(ctx, name, maxDNSDepth)
			if err != nil {
				logger.Warn().Str("candidate", token).Err(err).Msg("dropping candidate: dns resolution failed")
				return
			}
			results[index] = &Child{Name: name, HTTPType: httpType, IP: dns.IP, Domain: dns.Domain}
		}(i, candidate)
	}
	wg.Wait()

	children := make([]Child, 0, len(candidates))
	for _, c := range results {
		if c != nil {
			children = append(children, *c)
		}
	}
	return children
}
