package server

import (
	"net/http"
	"strings"

	"github.com/webgraph-io/crawlgraph/internal/handlers"
)

const crawlsPrefix = "/api/v1/crawls/"

// setupRoutes builds the manager's mux, grounded on the teacher's
// handleJobRoutes manual path-suffix dispatch (internal/server/routes.go)
// rather than a third-party router, since every path here has a fixed,
// small set of suffixes.
func setupRoutes(crawlHandler *handlers.CrawlHandler, progressHandler *handlers.ProgressHandler, healthHandler *handlers.HealthHandler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/crawls", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			crawlHandler.CreateCrawl(w, r)
		case http.MethodGet:
			crawlHandler.ListCrawls(w, r)
		default:
			handlers.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})

	mux.HandleFunc(crawlsPrefix, func(w http.ResponseWriter, r *http.Request) {
		handleCrawlSubroute(w, r, crawlHandler, progressHandler)
	})

	mux.HandleFunc("/livez", healthHandler.Livez)
	mux.HandleFunc("/readyz", healthHandler.Readyz)

	return mux
}

// handleCrawlSubroute dispatches every /api/v1/crawls/{id}[...] request:
// the bare id, or the id plus one of /graph, /stats, /ws.
func handleCrawlSubroute(w http.ResponseWriter, r *http.Request, crawlHandler *handlers.CrawlHandler, progressHandler *handlers.ProgressHandler) {
	suffix := strings.TrimPrefix(r.URL.Path, crawlsPrefix)
	if suffix == "" {
		handlers.WriteError(w, http.StatusNotFound, "crawl id is required")
		return
	}

	switch {
	case strings.HasSuffix(suffix, "/graph"):
		crawlID := strings.TrimSuffix(suffix, "/graph")
		crawlHandler.GetGraph(w, r, crawlID)
	case strings.HasSuffix(suffix, "/stats"):
		crawlID := strings.TrimSuffix(suffix, "/stats")
		crawlHandler.GetStats(w, r, crawlID)
	case strings.HasSuffix(suffix, "/ws"):
		crawlID := strings.TrimSuffix(suffix, "/ws")
		progressHandler.Stream(w, r, crawlID)
	default:
		crawlID := suffix
		switch r.Method {
		case http.MethodGet:
			crawlHandler.GetCrawl(w, r, crawlID)
		case http.MethodDelete:
			crawlHandler.CancelCrawl(w, r, crawlID)
		default:
			handlers.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	}
}
