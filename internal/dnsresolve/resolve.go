// Package dnsresolve iteratively shortens a normalized host until a DNS
// lookup yields an IPv4 answer, per spec.md §4.2.
package dnsresolve

import (
	"context"
	"fmt"
	"net"
	"strings"
)

// Result is the resolved domain label and IPv4 address for a host.
type Result struct {
	Domain string
	IP     string
}

// DnsFailure is returned when no suffix of a name resolves to an IPv4
// address within max_depth attempts.
type DnsFailure struct {
	Name string
}

func (e *DnsFailure) Error() string {
	return fmt.Sprintf("dns resolution failed for %q: no suffix resolved to an IPv4 address", e.Name)
}

// Lookuper abstracts the DNS query primitive so tests can stub it without a
// real resolver. The production implementation is *net.Resolver.
type Lookuper interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// Resolver resolves hosts using the iterative right-to-left suffix strategy.
type Resolver struct {
	lookuper Lookuper
}

// NewResolver builds a Resolver backed by the standard library's resolver.
func NewResolver() *Resolver {
	return &Resolver{lookuper: net.DefaultResolver}
}

// NewResolverWithLookuper builds a Resolver backed by a custom Lookuper,
// primarily for tests.
func NewResolverWithLookuper(l Lookuper) *Resolver {
	return &Resolver{lookuper: l}
}

// Resolve splits name on '.' and, for suffix lengths 2..min(maxDepth,
// partCount), queries parts[-suffixLen:] joined by '.' (lower-cased). The
// first suffix that yields at least one IPv4 answer wins: domain is the
// leftmost label of that suffix, ip is the first IPv4 string found.
func (r *Resolver) Resolve(ctx context.Context, name string, maxDepth int) (*Result, error) {
	parts := strings.Split(name, ".")
	if len(parts) < 2 {
		return nil, &DnsFailure{Name: name}
	}

	limit := maxDepth
	if limit > len(parts) {
		limit = len(parts)
	}

	for suffixLen := 2; suffixLen <= limit; suffixLen++ {
		suffix := parts[len(parts)-suffixLen:]
		query := strings.ToLower(strings.Join(suffix, "."))

		addrs, err := r.lookuper.LookupIPAddr(ctx, query)
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ip4 := addr.IP.To4(); ip4 != nil {
				return &Result{
					Domain: suffix[0],
					IP:     ip4.String(),
				}, nil
			}
		}
	}

	return nil, &DnsFailure{Name: name}
}
