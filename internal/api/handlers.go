package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/notice-crawler/internal/domain"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/logger"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/pipeline"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/scheduler"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/sources"
)

// Triggerer starts crawl runs.
type Triggerer interface {
	Trigger(ctx context.Context, sourceID string) (*pipeline.Result, error)
	TriggerAsync(sourceID string) error
}

// DedupClearer empties the dedup store.
type DedupClearer interface {
	Clear(ctx context.Context) (int, error)
}

// CrawlRequest is the body of POST /api/crawl.
type CrawlRequest struct {
	Source string `binding:"required" json:"source"`
}

// CrawlResponse is the success envelope of POST /api/crawl.
type CrawlResponse struct {
	Code string              `json:"code"`
	Data []*domain.CrawlItem `json:"data"`
}

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func errorBody(status int, msg string) ErrorResponse {
	return ErrorResponse{Error: msg, Code: strconv.Itoa(status)}
}

// Handler serves the crawl trigger endpoints.
type Handler struct {
	triggers  Triggerer
	dedup     DedupClearer
	registry  *sources.Registry
	log       logger.Logger
	startedAt time.Time
	version   string
}

// NewHandler creates a Handler.
func NewHandler(triggers Triggerer, dedup DedupClearer, registry *sources.Registry, version string, log logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{
		triggers:  triggers,
		dedup:     dedup,
		registry:  registry,
		log:       log.With(logger.Component("api")),
		startedAt: time.Now(),
		version:   version,
	}
}

// Crawl handles POST /api/crawl.
func (h *Handler) Crawl(c *gin.Context) {
	var req CrawlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(http.StatusBadRequest, "request body must be {\"source\": \"<id>\"}"))
		return
	}

	res, err := h.triggers.Trigger(c.Request.Context(), req.Source)
	if err != nil {
		h.respondTriggerError(c, err)
		return
	}

	if res.Failed() {
		_ = c.Error(res.ListErr)
		c.JSON(http.StatusBadGateway, errorBody(http.StatusBadGateway, res.ListErr.Error()))
		return
	}

	items := res.Items
	if items == nil {
		items = []*domain.CrawlItem{}
	}
	c.JSON(http.StatusOK, CrawlResponse{Code: strconv.Itoa(http.StatusOK), Data: items})
}

// CrawlAsync handles POST /api/crawl/:source/async.
func (h *Handler) CrawlAsync(c *gin.Context) {
	sourceID := c.Param("source")

	if err := h.triggers.TriggerAsync(sourceID); err != nil {
		h.respondTriggerError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"code":   strconv.Itoa(http.StatusAccepted),
		"source": sourceID,
		"status": string(scheduler.StateRunning),
	})
}

// ClearDedup handles DELETE /api/dedup.
func (h *Handler) ClearDedup(c *gin.Context) {
	deleted, err := h.dedup.Clear(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, errorBody(http.StatusBadGateway, err.Error()))
		return
	}

	h.log.Info("Dedup store cleared", logger.Int("deleted", deleted))
	c.JSON(http.StatusOK, gin.H{"status": "cleared", "deleted": deleted})
}

// ListSources handles GET /api/sources.
func (h *Handler) ListSources(c *gin.Context) {
	type sourceView struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		ListURL  string `json:"list_url"`
		MaxPages int    `json:"max_pages"`
	}

	all := h.registry.All()
	views := make([]sourceView, 0, len(all))
	for _, src := range all {
		views = append(views, sourceView{ID: src.ID, Name: src.Name, ListURL: src.ListURL, MaxPages: src.MaxPages})
	}

	c.JSON(http.StatusOK, gin.H{"sources": views, "count": len(views)})
}

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": ServiceName,
		"version": h.version,
		"uptime":  time.Since(h.startedAt).Truncate(time.Second).String(),
		"sources": h.registry.Len(),
	})
}

func (h *Handler) respondTriggerError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, sources.ErrUnknownSource):
		status = http.StatusNotFound
	case errors.Is(err, scheduler.ErrAlreadyRunning):
		status = http.StatusConflict
	case errors.Is(err, scheduler.ErrStopped):
		status = http.StatusServiceUnavailable
	default:
		_ = c.Error(err)
	}

	c.JSON(status, errorBody(status, err.Error()))
}
