package handlers

import (
	"context"
	"crypto/subtle"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"realty-feed-sync/internal/config"
	"realty-feed-sync/internal/cursor"
	"realty-feed-sync/internal/feed"
	"realty-feed-sync/internal/importer"
	"realty-feed-sync/internal/models"
	"realty-feed-sync/internal/ratelimit"
	"realty-feed-sync/internal/report"
	"realty-feed-sync/internal/scheduler"
	"realty-feed-sync/internal/search"
	"realty-feed-sync/internal/state"
	"realty-feed-sync/internal/sweeper"
)

// TokenHeader carries the admin token
const TokenHeader = "X-Admin-Token"

// Repository is the read side of the admin API
type Repository interface {
	ListRuns(ctx context.Context, source string, limit int) ([]models.SyncRun, error)
	LastRun(ctx context.Context, source string, kind models.RunKind) (*models.SyncRun, error)
	GetRecentDeleteLogs(ctx context.Context, source string, limit int) ([]models.DeleteLog, error)
	GetDeleteStats(ctx context.Context) (map[string]interface{}, error)
	CountListings(ctx context.Context) (map[string]int64, error)
}

// Runner executes jobs
type Runner interface {
	Feeds() []config.FeedConfig
	Sync(ctx context.Context, source string, trigger importer.Trigger) (*importer.Summary, error)
	Sweep(ctx context.Context, source string, trigger importer.Trigger, dryRun bool) (*sweeper.SweepResult, error)
	Report(ctx context.Context, source string, trigger importer.Trigger) (*report.Result, error)
}

// Searcher queries the listing index
type Searcher interface {
	FilterSearch(params search.FilterParams) ([]search.Document, int64, error)
}

// AdminHandler handles admin-related requests
type AdminHandler struct {
	repo     Repository
	runner   Runner
	state    state.Store
	searcher Searcher
	limiter  *ratelimit.RateLimiter
	token    string
}

// NewAdminHandler creates a new admin handler. searcher may be nil.
func NewAdminHandler(repo Repository, runner Runner, st state.Store, searcher Searcher, limiter *ratelimit.RateLimiter, token string) *AdminHandler {
	return &AdminHandler{
		repo:     repo,
		runner:   runner,
		state:    st,
		searcher: searcher,
		limiter:  limiter,
		token:    token,
	}
}

// RegisterRoutes mounts the admin API under /api/admin
func (h *AdminHandler) RegisterRoutes(r *gin.Engine) {
	admin := r.Group("/api/admin")
	admin.GET("/health", h.Health)

	authed := admin.Group("", h.RequireToken())
	{
		authed.GET("/feeds", h.GetFeeds)
		authed.GET("/runs", h.GetRuns)
		authed.GET("/deletions", h.GetDeleteLogs)
		authed.GET("/listings/search", h.SearchListings)

		// Manual triggers
		authed.POST("/feeds/:source/sync", h.limit("sync"), h.TriggerSync)
		authed.POST("/feeds/:source/sweep", h.limit("sweep"), h.TriggerSweep)
		authed.POST("/feeds/:source/report", h.limit("report"), h.TriggerReport)
	}
}

// RequireToken rejects requests without the configured admin token
func (h *AdminHandler) RequireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.token == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Admin token is not configured"})
			return
		}
		got := c.GetHeader(TokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid admin token"})
			return
		}
		c.Next()
	}
}

func (h *AdminHandler) limit(action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.limiter == nil {
			c.Next()
			return
		}
		key := action + ":" + c.Param("source")
		if !h.limiter.Allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many manual triggers",
				"stats": h.limiter.GetStats(key),
			})
			return
		}
		c.Next()
	}
}

// Health reports liveness without authentication
func (h *AdminHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetFeeds returns the cursor, lock and last run of every source
func (h *AdminHandler) GetFeeds(c *gin.Context) {
	ctx := c.Request.Context()

	counts, err := h.repo.CountListings(ctx)
	if err != nil {
		log.Printf("Admin: Failed to count listings: %v", err)
	}

	feeds := make([]gin.H, 0)
	for _, f := range h.runner.Feeds() {
		item := gin.H{
			"name":     f.Name,
			"url":      f.URL,
			"schema":   f.Schema,
			"mode":     f.Mode,
			"schedule": f.Schedule,
			"listings": counts[f.Name],
		}

		if cur, err := cursor.Load(ctx, h.state, state.OffsetKey(f.Name)); err == nil {
			item["offset"] = cur.Offset()
		} else {
			log.Printf("Admin: Failed to load cursor of %s: %v", f.Name, err)
		}
		if locked, err := state.IsLocked(ctx, h.state, state.LockKey(f.Name)); err == nil {
			item["running"] = locked
		}
		if run, err := h.repo.LastRun(ctx, f.Name, models.RunKindSync); err == nil && run != nil {
			item["last_run"] = run
		}

		feeds = append(feeds, item)
	}

	c.JSON(http.StatusOK, gin.H{
		"feeds": feeds,
		"count": len(feeds),
	})
}

// GetRuns returns recent run history
func (h *AdminHandler) GetRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	runs, err := h.repo.ListRuns(c.Request.Context(), c.Query("source"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":  runs,
		"count": len(runs),
	})
}

// GetDeleteLogs returns recent delete log entries
func (h *AdminHandler) GetDeleteLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	ctx := c.Request.Context()

	logs, err := h.repo.GetRecentDeleteLogs(ctx, c.Query("source"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{
		"logs":  logs,
		"count": len(logs),
	}
	if stats, err := h.repo.GetDeleteStats(ctx); err != nil {
		log.Printf("Admin: Failed to get delete stats: %v", err)
	} else {
		resp["stats"] = stats
	}

	c.JSON(http.StatusOK, resp)
}

// SearchListings queries the search index
func (h *AdminHandler) SearchListings(c *gin.Context) {
	if h.searcher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Search not available (Meilisearch required)",
		})
		return
	}

	params := search.FilterParams{
		Query:  c.Query("q"),
		Source: c.Query("source"),
		SortBy: c.Query("sort"),
	}
	if v, err := strconv.ParseUint(c.Query("category"), 10, 64); err == nil {
		params.CategoryTermID = uint(v)
	}
	if v, err := strconv.ParseUint(c.Query("city"), 10, 64); err == nil {
		params.CityTermID = uint(v)
	}
	if v, err := strconv.ParseInt(c.Query("min_price"), 10, 64); err == nil {
		params.MinPrice = &v
	}
	if v, err := strconv.ParseInt(c.Query("max_price"), 10, 64); err == nil {
		params.MaxPrice = &v
	}
	if v, err := strconv.ParseInt(c.Query("limit"), 10, 64); err == nil {
		params.Limit = v
	}

	docs, total, err := h.searcher.FilterSearch(params)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"listings": docs,
		"total":    total,
	})
}

// TriggerSync runs one import session and waits for it
func (h *AdminHandler) TriggerSync(c *gin.Context) {
	source := c.Param("source")
	log.Printf("Admin: Manual sync of %s requested", source)

	summary, err := h.runner.Sync(c.Request.Context(), source, importer.TriggerManual)
	if err != nil {
		log.Printf("Admin: Manual sync of %s failed: %v", source, err)
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	log.Printf("Admin: Manual sync of %s completed", source)
	c.JSON(http.StatusOK, summary)
}

// TriggerSweep deletes listings absent from the feed. Without a body it is a dry run.
func (h *AdminHandler) TriggerSweep(c *gin.Context) {
	var req struct {
		DryRun *bool `json:"dry_run"` // Dry run mode (default: true)
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	dryRun := req.DryRun == nil || *req.DryRun

	source := c.Param("source")
	log.Printf("Admin: Running sweep of %s (dry-run: %v)", source, dryRun)

	result, err := h.runner.Sweep(c.Request.Context(), source, importer.TriggerManual, dryRun)
	if err != nil {
		log.Printf("Admin: Sweep of %s failed: %v", source, err)
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	log.Printf("Admin: Sweep of %s completed: %d/%d deleted (dry-run: %v)",
		source, result.DeletedCount, result.TargetCount, result.DryRun)

	c.JSON(http.StatusOK, result)
}

// TriggerReport regenerates the XML report of a source
func (h *AdminHandler) TriggerReport(c *gin.Context) {
	source := c.Param("source")

	result, err := h.runner.Report(c.Request.Context(), source, importer.TriggerManual)
	if err != nil {
		log.Printf("Admin: Report of %s failed: %v", source, err)
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// statusFor maps job errors onto HTTP status codes
func statusFor(err error) int {
	var netErr *feed.NetworkError
	var parseErr *feed.ParseError
	switch {
	case errors.Is(err, scheduler.ErrUnknownSource):
		return http.StatusNotFound
	case errors.Is(err, importer.ErrAlreadyRunning), errors.Is(err, state.ErrLocked):
		return http.StatusConflict
	case errors.Is(err, sweeper.ErrUnsafeFeed):
		return http.StatusUnprocessableEntity
	case errors.As(err, &netErr), errors.As(err, &parseErr),
		errors.Is(err, feed.ErrEmptyBody), errors.Is(err, feed.ErrNoRecords):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
