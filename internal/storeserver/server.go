// Package storeserver exposes an interfaces.GraphStore over a small
// internal JSON/HTTP surface, grounded on the teacher's internal/httpclient
// pairing (a plain *http.Client talking JSON to a sibling process) run in
// reverse: dgraph-io/badger takes an exclusive process-level lock on its
// data directory, so only the one process that actually opened it (the
// manager) may call the real store directly. Every other process that
// needs the graph store — every feeder replica — talks to this gateway
// instead, the same way the teacher's services talk to an external API
// through a shared client rather than touching its storage directly.
package storeserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/webgraph-io/crawlgraph/internal/common"
	"github.com/webgraph-io/crawlgraph/internal/interfaces"
	"github.com/webgraph-io/crawlgraph/internal/models"
)

// Server serves a local interfaces.GraphStore to remote callers.
type Server struct {
	store  interfaces.GraphStore
	logger arbor.ILogger
	mux    *http.ServeMux
}

// New builds a Server over store and wires its routes.
func New(store interfaces.GraphStore, logger arbor.ILogger) *Server {
	s := &Server{store: store, logger: logger, mux: http.NewServeMux()}
	s.routes()
	return s
}

// ServeHTTP lets Server be used directly as an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/store/ensure-schema", s.handleEnsureSchema)
	s.mux.HandleFunc("/store/health", s.handleHealth)
	s.mux.HandleFunc("/store/claim-next-job", s.handleClaimNextJob)
	s.mux.HandleFunc("/store/update-job-status", s.handleUpdateJobStatus)
	s.mux.HandleFunc("/store/reset-to-pending", s.handleResetToPending)
	s.mux.HandleFunc("/store/filter-new-urls", s.handleFilterNewURLs)
	s.mux.HandleFunc("/store/batch-create-children", s.handleBatchCreateChildren)
	s.mux.HandleFunc("/store/create-root", s.handleCreateRoot)
	s.mux.HandleFunc("/store/is-cancelled", s.handleIsCancelled)
	s.mux.HandleFunc("/store/cancel-crawl", s.handleCancelCrawl)
	s.mux.HandleFunc("/store/crawl-progress", s.handleCrawlProgress)
	s.mux.HandleFunc("/store/crawl-stats", s.handleCrawlStats)
	s.mux.HandleFunc("/store/list-crawls", s.handleListCrawls)
	s.mux.HandleFunc("/store/graph-data", s.handleGraphData)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// storeErrStatus maps a GraphStore error to the HTTP status a
// storeclient.Client knows how to turn back into the right sentinel.
func storeErrStatus(err error) int {
	if errors.Is(err, common.ErrCrawlNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// writeStoreErr maps and writes a GraphStore error, logging the ones that
// indicate something actually went wrong rather than an expected miss.
func (s *Server) writeStoreErr(w http.ResponseWriter, err error) {
	status := storeErrStatus(err)
	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Msg("store gateway call failed")
	}
	writeErr(w, status, err)
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		writeErr(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return false
	}
	return true
}

func decodeBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func (s *Server) handleEnsureSchema(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if err := s.store.EnsureSchema(r.Context()); err != nil {
		s.writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	if err := s.store.HealthCheck(r.Context()); err != nil {
		writeErr(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

type claimNextJobRequest struct {
	StaleTimeoutMs int64
}

type claimNextJobResponse struct {
	Job *interfaces.Job
}

func (s *Server) handleClaimNextJob(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req claimNextJobRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	job, err := s.store.ClaimNextJob(r.Context(), time.Duration(req.StaleTimeoutMs)*time.Millisecond)
	if err != nil {
		s.writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claimNextJobResponse{Job: job})
}

type updateJobStatusRequest struct {
	Key      interfaces.JobKey
	Status   models.JobStatus
	Attempts int
}

func (s *Server) handleUpdateJobStatus(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req updateJobStatusRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if err := s.store.UpdateJobStatus(r.Context(), req.Key, req.Status, req.Attempts); err != nil {
		s.writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

type resetToPendingRequest struct {
	Key interfaces.JobKey
}

func (s *Server) handleResetToPending(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req resetToPendingRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if err := s.store.ResetToPending(r.Context(), req.Key); err != nil {
		s.writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

type filterNewURLsRequest struct {
	CrawlID    string
	Candidates []string
}

type filterNewURLsResponse struct {
	URLs []string
}

func (s *Server) handleFilterNewURLs(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req filterNewURLsRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	urls, err := s.store.FilterNewURLs(r.Context(), req.CrawlID, req.Candidates)
	if err != nil {
		s.writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, filterNewURLsResponse{URLs: urls})
}

type batchCreateChildrenRequest struct {
	Parent   interfaces.JobKey
	Children []interfaces.ChildSpec
}

func (s *Server) handleBatchCreateChildren(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req batchCreateChildrenRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if err := s.store.BatchCreateChildren(r.Context(), req.Parent, req.Children); err != nil {
		s.writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

type createRootRequest struct {
	Root     interfaces.RootSpec
	Children []interfaces.ChildSpec
}

func (s *Server) handleCreateRoot(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req createRootRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if err := s.store.CreateRoot(r.Context(), req.Root, req.Children); err != nil {
		s.writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

type isCancelledRequest struct {
	Key interfaces.JobKey
}

type isCancelledResponse struct {
	Cancelled bool
}

func (s *Server) handleIsCancelled(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req isCancelledRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	cancelled, err := s.store.IsCancelled(r.Context(), req.Key)
	if err != nil {
		s.writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, isCancelledResponse{Cancelled: cancelled})
}

type cancelCrawlRequest struct {
	CrawlID string
}

type cancelCrawlResponse struct {
	Existed bool
}

func (s *Server) handleCancelCrawl(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req cancelCrawlRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	existed, err := s.store.CancelCrawl(r.Context(), req.CrawlID)
	if err != nil {
		s.writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cancelCrawlResponse{Existed: existed})
}

func (s *Server) handleCrawlProgress(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	progress, err := s.store.GetCrawlProgress(r.Context(), r.URL.Query().Get("crawl_id"))
	if err != nil {
		s.writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (s *Server) handleCrawlStats(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	stats, err := s.store.GetCrawlStats(r.Context(), r.URL.Query().Get("crawl_id"))
	if err != nil {
		s.writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type listCrawlsResponse struct {
	Crawls []interfaces.CrawlSummary
	Total  int
}

func (s *Server) handleListCrawls(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	crawls, total, err := s.store.ListCrawls(r.Context(), q.Get("status"), limit, offset)
	if err != nil {
		s.writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listCrawlsResponse{Crawls: crawls, Total: total})
}

func (s *Server) handleGraphData(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	graph, err := s.store.GetGraphData(r.Context(), r.URL.Query().Get("crawl_id"))
	if err != nil {
		s.writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, graph)
}
