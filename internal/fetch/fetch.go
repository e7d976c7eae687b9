// Package fetch issues the single outbound HTTP GET the crawler makes per
// job, classifying failures the way spec.md §4.3 and §7 require.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// UserAgent is the fixed identifier sent with every crawl request.
const UserAgent = "crawlgraph-feeder/1.0 (+https://github.com/webgraph-io/crawlgraph)"

// Kind enumerates the failure classes spec.md §4.3/§7 distinguish.
type Kind int

const (
	// KindTimeout means the request did not complete within the timeout.
	KindTimeout Kind = iota
	// KindStatus means a non-2xx HTTP status was returned.
	KindStatus
	// KindRequest means the connection/transport failed before a response
	// was received.
	KindRequest
	// KindBodyRead means the response started but the body could not be
	// read to completion.
	KindBodyRead
)

// Error is the typed failure a Fetcher call returns.
type Error struct {
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindTimeout:
		return "fetch: request timed out"
	case KindStatus:
		return fmt.Sprintf("fetch: unexpected status %d", e.StatusCode)
	case KindBodyRead:
		return fmt.Sprintf("fetch: failed to read response body: %v", e.Err)
	default:
		return fmt.Sprintf("fetch: request failed: %v", e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Permanent reports whether the failure is a non-retryable HTTP 4xx, per
// spec.md §7's "HTTP 4xx -> immediate FAILED" rule.
func (e *Error) Permanent() bool {
	return e.Kind == KindStatus && e.StatusCode >= 400 && e.StatusCode < 500
}

// Result carries the fetched body and the wall time the GET took.
type Result struct {
	Body    []byte
	Elapsed time.Duration
}

// Fetcher issues GETs against a shared, immutable HTTP client — one per
// process, reused across every job, the same sharing model spec.md §5
// requires for the fetcher, DNS resolver, and store handle.
type Fetcher struct {
	client  *http.Client
	limiter *rate.Limiter
}

// New builds a Fetcher with a process-wide timeout and an optional
// requests-per-second cap. A non-positive rps disables limiting.
func New(timeout time.Duration, rps float64) *Fetcher {
	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
		},
		limiter: limiter,
	}
}

// Fetch performs a single GET against url, returning the body and elapsed
// time, or a classified *Error.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Result, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, &Error{Kind: KindRequest, Err: err}
		}
	}

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{Kind: KindRequest, Err: err}
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, &Error{Kind: KindTimeout, Err: err}
		}
		return nil, &Error{Kind: KindRequest, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, &Error{Kind: KindStatus, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindBodyRead, Err: err}
	}

	return &Result{
		Body:    body,
		Elapsed: time.Since(start),
	}, nil
}

// isTimeout reports whether err came from the client's own Timeout firing
// or from ctx's deadline expiring. http.Client.Do derives a *separate*
// child context for the in-flight request rather than touching the ctx
// variable the caller holds, so checking the caller's ctx.Err() after Do
// returns can never observe either: the signal has to be read off err
// itself, either as an unwrapped context.DeadlineExceeded or as a
// net.Error reporting Timeout().
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
