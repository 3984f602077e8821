// Package api exposes scrape runs over HTTP.
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go-seek-scraper/internal/scraper"
	"go-seek-scraper/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Runner executes one scrape run.
type Runner interface {
	Run(ctx context.Context, q scraper.JobQuery) service.Result
}

type Handler struct {
	runner Runner
	// one browser run at a time
	mu     sync.Mutex
	logger *zap.Logger
}

func NewHandler(runner Runner, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{runner: runner, logger: log.With(zap.String("component", "api"))}
}

// NewRouter registers the health and scrape routes.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), h.requestLogger())

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Seek scraper API is running!",
			"status":  "healthy",
		})
	})
	r.GET("/scrape", h.Scrape)
	return r
}

// Scrape handles GET /scrape?jobTitle=&location=&numJobs=.
func (h *Handler) Scrape(c *gin.Context) {
	title := c.Query("jobTitle")
	location := c.Query("location")
	if title == "" || location == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "jobTitle and location are required"})
		return
	}

	q, ok := scraper.NewJobQuery(title, location, c.Query("numJobs"))
	if !ok && c.Query("numJobs") != "" {
		h.logger.Warn("invalid numJobs, using default", zap.String("numJobs", c.Query("numJobs")), zap.Int("default", q.Limit))
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	res := h.runner.Run(c.Request.Context(), q)
	status := http.StatusOK
	if _, fatal := res.(service.FatalFailure); fatal {
		status = http.StatusInternalServerError
	}
	c.JSON(status, res)
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
