package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/webgraph-io/crawlgraph/internal/common"
	"github.com/webgraph-io/crawlgraph/internal/fetch"
	"github.com/webgraph-io/crawlgraph/internal/manager"
)

// CrawlHandler serves spec.md §6's /api/v1/crawls* endpoints.
type CrawlHandler struct {
	service  *manager.Service
	validate *validator.Validate
	logger   arbor.ILogger
}

// NewCrawlHandler builds a CrawlHandler over service.
func NewCrawlHandler(service *manager.Service, logger arbor.ILogger) *CrawlHandler {
	return &CrawlHandler{service: service, validate: validator.New(), logger: logger}
}

// createCrawlRequest is the POST /api/v1/crawls body.
type createCrawlRequest struct {
	URL   string `json:"url" validate:"required,url"`
	Depth int    `json:"depth" validate:"required,min=1,max=5"`
}

// CreateCrawl handles POST /api/v1/crawls.
func (h *CrawlHandler) CreateCrawl(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req createCrawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "depth must be between 1 and 5 and url must be a valid url")
		return
	}

	result, err := h.service.CreateCrawl(r.Context(), req.URL, req.Depth)
	if err != nil {
		h.writeCreateError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]string{
		"crawl_id": result.CrawlID,
		"status":   result.Status,
	})
}

func (h *CrawlHandler) writeCreateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, common.ErrInvalidDepth), errors.Is(err, common.ErrInvalidURL):
		WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, common.ErrSeedFetchFailed):
		var fetchErr *fetch.Error
		if errors.As(err, &fetchErr) {
			switch {
			case fetchErr.Kind == fetch.KindStatus && fetchErr.StatusCode == http.StatusNotFound:
				WriteError(w, http.StatusNotFound, "seed url returned 404")
				return
			case fetchErr.Kind == fetch.KindTimeout:
				WriteError(w, http.StatusGatewayTimeout, "seed fetch timed out")
				return
			}
		}
		WriteError(w, http.StatusBadGateway, "failed to fetch seed url")
	case errors.Is(err, common.ErrSeedDNSFailed):
		WriteError(w, http.StatusBadGateway, "failed to resolve seed url")
	default:
		h.logger.Error().Err(err).Msg("create crawl failed")
		WriteError(w, http.StatusInternalServerError, "internal error")
	}
}

// ListCrawls handles GET /api/v1/crawls?status=&limit=&offset=.
func (h *CrawlHandler) ListCrawls(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	status := r.URL.Query().Get("status")
	limit := queryInt(r, "limit", 20)
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	crawls, total, err := h.service.ListCrawls(r.Context(), status, limit, offset)
	if err != nil {
		h.logger.Error().Err(err).Msg("list crawls failed")
		WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"crawls": crawls,
		"total":  total,
		"offset": offset,
		"limit":  limit,
	})
}

// GetCrawl handles GET /api/v1/crawls/{id}.
func (h *CrawlHandler) GetCrawl(w http.ResponseWriter, r *http.Request, crawlID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	progress, err := h.service.GetProgress(r.Context(), crawlID)
	if err != nil {
		h.writeLookupError(w, err, "get crawl progress failed")
		return
	}
	WriteJSON(w, http.StatusOK, progress)
}

// CancelCrawl handles DELETE /api/v1/crawls/{id}.
func (h *CrawlHandler) CancelCrawl(w http.ResponseWriter, r *http.Request, crawlID string) {
	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}

	if err := h.service.CancelCrawl(r.Context(), crawlID); err != nil {
		h.writeLookupError(w, err, "cancel crawl failed")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "cancelled", "crawl_id": crawlID})
}

// GetGraph handles GET /api/v1/crawls/{id}/graph.
func (h *CrawlHandler) GetGraph(w http.ResponseWriter, r *http.Request, crawlID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	graph, err := h.service.GetGraphData(r.Context(), crawlID)
	if err != nil {
		h.writeLookupError(w, err, "get graph data failed")
		return
	}
	WriteJSON(w, http.StatusOK, graph)
}

// GetStats handles GET /api/v1/crawls/{id}/stats.
func (h *CrawlHandler) GetStats(w http.ResponseWriter, r *http.Request, crawlID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	stats, err := h.service.GetStats(r.Context(), crawlID)
	if err != nil {
		h.writeLookupError(w, err, "get crawl stats failed")
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}

func (h *CrawlHandler) writeLookupError(w http.ResponseWriter, err error, logMsg string) {
	if errors.Is(err, common.ErrCrawlNotFound) {
		WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	h.logger.Error().Err(err).Msg(logMsg)
	WriteError(w, http.StatusInternalServerError, "internal error")
}
