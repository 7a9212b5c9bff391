// Package httpapi exposes the generation pipeline and report store to the
// browsing client over HTTP.
package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"

	"NewsDigest/internal/infrastructure/report"
	"NewsDigest/internal/ports"
	"NewsDigest/internal/usecase"
)

var dateExpr = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Handlers bundles the dependencies of the API surface.
type Handlers struct {
	coordinator *usecase.Coordinator
	store       ports.ReportStore
	logger      *slog.Logger
}

// NewHandlers wires the coordinator and the report store.
func NewHandlers(coordinator *usecase.Coordinator, store ports.ReportStore, logger *slog.Logger) *Handlers {
	return &Handlers{coordinator: coordinator, store: store, logger: logger}
}

// NewRouter builds the gin engine with all API routes registered.
func NewRouter(h *Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors())

	api := router.Group("/api")
	{
		api.GET("/health", h.Health)
		api.GET("/news-list", h.NewsList)
		api.GET("/news-detail", h.NewsDetail)
		api.POST("/generate-news", h.GenerateNews)
		api.GET("/generate-status", h.GenerateStatus)
	}

	return router
}

// cors keeps the browsing client usable from any origin, matching the
// permissive setup the front end was built against.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// Health is the liveness probe.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// NewsList returns the dates that have a persisted report.
func (h *Handlers) NewsList(c *gin.Context) {
	infos, err := h.store.ListDates()
	if err != nil {
		h.logger.Error("list reports", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list reports"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"news_list": infos})
}

// NewsDetail returns the rendered report and extracted summary for one date.
func (h *Handlers) NewsDetail(c *gin.Context) {
	date := c.Query("date")
	if !validDate(date) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}

	content, err := h.store.Read(date)
	if err != nil {
		if errors.Is(err, report.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no report for this date"})
			return
		}
		h.logger.Error("read report", "date", date, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read report"})
		return
	}

	c.JSON(http.StatusOK, content)
}

// GenerateNews triggers the pipeline; it acknowledges acceptance only,
// never the final result.
func (h *Handlers) GenerateNews(c *gin.Context) {
	runID, err := h.coordinator.Trigger()
	if err != nil {
		if errors.Is(err, usecase.ErrAlreadyRunning) {
			c.JSON(http.StatusConflict, gin.H{
				"success": false,
				"error":   "generation already in progress",
			})
			return
		}
		h.logger.Error("trigger generation", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to trigger generation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "news generation triggered",
		"run_id":  runID,
	})
}

// GenerateStatus returns the current GenerationState snapshot.
func (h *Handlers) GenerateStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.coordinator.Status())
}

func validDate(date string) bool {
	if !dateExpr.MatchString(date) {
		return false
	}
	_, err := time.Parse("2006-01-02", date)
	return err == nil
}
