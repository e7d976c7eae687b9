package common

import "errors"

// Shared sentinel errors both the manager and feeder map onto HTTP status
// codes or log outcomes. One shared vocabulary, grounded on
// original_source/shared/src/error.rs, which both the Rust manager and
// feeder binaries import from a common crate.
var (
	ErrCrawlNotFound   = errors.New("crawl not found")
	ErrInvalidDepth    = errors.New("depth must be between 1 and 5")
	ErrInvalidURL      = errors.New("url is required")
	ErrSeedFetchFailed = errors.New("failed to fetch seed url")
	ErrSeedDNSFailed   = errors.New("failed to resolve seed url")
	ErrStoreUnavailable = errors.New("graph store unavailable")
)
