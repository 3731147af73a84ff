// Package api exposes the query and administration surface over the store
// and the ingestion pipeline.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"newscraper/pipeline"
	"newscraper/store"
)

// Server is the HTTP API server.
type Server struct {
	store    *store.Store
	pipeline *pipeline.Pipeline
	logger   *slog.Logger
}

// NewServer creates a Server over the given store and pipeline.
func NewServer(st *store.Store, p *pipeline.Pipeline, logger *slog.Logger) *Server {
	return &Server{
		store:    st,
		pipeline: p,
		logger:   logger,
	}
}

// NewsListResponse is the payload for GET /get-news-list.
type NewsListResponse struct {
	Items    []store.Preview `json:"items"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

// SetupRouter configures the Gin router with all API routes.
func (s *Server) SetupRouter() *gin.Engine {
	router := gin.Default()

	// Add CORS middleware
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})

	router.GET("/health", s.HandleHealth)
	router.POST("/scrape-feeds", s.HandleScrapeFeeds)
	router.GET("/get-news-list", s.HandleGetNewsList)
	router.GET("/read-full-news/:id", s.HandleReadFullNews)
	router.POST("/mark-news-as-used/:id", s.HandleMarkNewsAsUsed)
	router.DELETE("/clear-database", s.HandleClearDatabase)

	return router
}

// HandleHealth handles GET /health.
func (s *Server) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// HandleScrapeFeeds handles POST /scrape-feeds. The run executes
// synchronously; the response carries its stats.
func (s *Server) HandleScrapeFeeds(c *gin.Context) {
	stats, err := s.pipeline.Run(c.Request.Context())
	if err != nil {
		s.logger.Error("scrape run failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Scraping failed: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// HandleGetNewsList handles GET /get-news-list. Only unused articles
// published today are returned.
func (s *Server) HandleGetNewsList(c *gin.Context) {
	page, err := queryInt(c, "page", 1)
	if err != nil || page < 1 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "page must be an integer >= 1"})
		return
	}

	pageSize, err := queryInt(c, "page_size", 10)
	if err != nil || pageSize < 1 || pageSize > 100 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "page_size must be an integer between 1 and 100"})
		return
	}

	items, err := s.store.ListUnusedToday(page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to retrieve news list: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, NewsListResponse{
		Items:    items,
		Page:     page,
		PageSize: pageSize,
	})
}

// HandleReadFullNews handles GET /read-full-news/{id}.
func (s *Server) HandleReadFullNews(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "article id must be an integer"})
		return
	}

	article, err := s.store.GetArticle(id)
	if errors.Is(err, store.ErrArticleNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Article not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to retrieve article: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, article)
}

// HandleMarkNewsAsUsed handles POST /mark-news-as-used/{id}. Marking is a
// one-way transition; there is no unmark operation.
func (s *Server) HandleMarkNewsAsUsed(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "article id must be an integer"})
		return
	}

	err = s.store.MarkUsed(id)
	if errors.Is(err, store.ErrArticleNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Article not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to mark article as used: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Article marked as used", "article_id": id})
}

// HandleClearDatabase handles DELETE /clear-database. Clears articles,
// processed URLs, and scrape runs.
func (s *Server) HandleClearDatabase(c *gin.Context) {
	if err := s.store.ClearAll(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to clear database: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Database cleared successfully"})
}

// queryInt parses an optional integer query parameter.
func queryInt(c *gin.Context, name string, defaultValue int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return defaultValue, nil
	}
	return strconv.Atoi(raw)
}
