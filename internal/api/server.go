package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"newslingo/internal/cache"
	"newslingo/internal/config"
	"newslingo/internal/ingest"
	"newslingo/internal/language"
	"newslingo/internal/models"
	"newslingo/internal/poller"
	"newslingo/internal/security"
	"newslingo/internal/storage"
)

const (
	defaultArticleLimit = 20
	maxArticleLimit     = 100
	defaultLogLimit     = 50
)

type Server struct {
	router       *gin.Engine
	store        storage.Storage
	coordinator  *ingest.Coordinator
	poller       *poller.Poller
	cacheManager *cache.Manager
	detector     *language.Detector
	cacheTTL     time.Duration
	port         int
}

func NewServer(store storage.Storage, coordinator *ingest.Coordinator, p *poller.Poller, cacheManager *cache.Manager, detector *language.Detector, cfg *config.Config) *Server {
	router := gin.New()
	router.Use(gin.Recovery())

	security.SetupSecurityMiddleware(router, cfg.Security)

	server := &Server{
		router:       router,
		store:        store,
		coordinator:  coordinator,
		poller:       p,
		cacheManager: cacheManager,
		detector:     detector,
		cacheTTL:     cfg.CacheTTL,
		port:         cfg.Port,
	}

	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)

	api := s.router.Group("/api/v1")
	{
		api.GET("/articles", s.getArticles)

		api.POST("/refresh", s.refresh)
		api.POST("/refresh/fast", s.refreshFast)
		api.POST("/translate/backfill", s.backfill)

		api.GET("/translations/stats", s.getTranslationStats)
		api.GET("/translations/logs", s.getTranslationLogs)

		api.GET("/scheduler/status", s.getSchedulerStatus)
		api.POST("/scheduler/start", s.startScheduler)
		api.POST("/scheduler/stop", s.stopScheduler)
		api.POST("/scheduler/toggle-fetch", s.toggleFetch)
		api.POST("/scheduler/toggle-translation", s.toggleTranslation)
	}
}

// Router exposes the configured engine, mainly for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) Start() error {
	return s.router.Run(":" + strconv.Itoa(s.port))
}

// StartWithContext serves until the context is canceled, then shuts down
// gracefully with a short drain window.
func (s *Server) StartWithContext(ctx context.Context) error {
	srv := &http.Server{
		Addr:    ":" + strconv.Itoa(s.port),
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":            "healthy",
		"service":           "newslingo",
		"scheduler_running": s.poller.Status().IsRunning,
	})
}

// articleView resolves one article for a requested language. Title and
// Summary fall back to the original text when the translation is missing.
type articleView struct {
	models.Article
	Title            string `json:"title"`
	Summary          string `json:"summary"`
	OriginalLanguage string `json:"original_language"`
}

func (s *Server) getArticles(c *gin.Context) {
	limit := parseLimit(c.Query("limit"), defaultArticleLimit, maxArticleLimit)
	lang := c.DefaultQuery("language", "original")

	cacheKey := fmt.Sprintf("articles:limit=%d:language=%s", limit, lang)
	if cached, found := s.cacheManager.Get(cacheKey); found {
		if views, ok := cached.([]articleView); ok {
			c.JSON(http.StatusOK, gin.H{
				"articles": views,
				"count":    len(views),
				"language": lang,
				"cached":   true,
			})
			return
		}
	}

	articles, err := s.store.ListArticles(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load articles"})
		return
	}

	views := make([]articleView, 0, len(articles))
	for i := range articles {
		views = append(views, s.buildView(&articles[i], lang))
	}

	s.cacheManager.Set(cacheKey, views, s.cacheTTL)

	c.JSON(http.StatusOK, gin.H{
		"articles": views,
		"count":    len(views),
		"language": lang,
		"cached":   false,
	})
}

func (s *Server) buildView(article *models.Article, lang string) articleView {
	view := articleView{
		Article:          *article,
		Title:            article.OriginalTitle,
		Summary:          article.OriginalSummary,
		OriginalLanguage: s.detector.OriginalLanguage(article),
	}

	if lang != "original" {
		if title, summary := article.TranslationFor(lang); title != nil {
			view.Title = *title
			if summary != nil {
				view.Summary = *summary
			}
		}
	}
	return view
}

func (s *Server) refresh(c *gin.Context) {
	s.triggerRun(c, false)
}

// refreshFast ingests without translating, useful to backfill the store
// quickly and translate later.
func (s *Server) refreshFast(c *gin.Context) {
	s.triggerRun(c, true)
}

func (s *Server) triggerRun(c *gin.Context, skipTranslation bool) {
	result, err := s.poller.TriggerNow(c.Request.Context(), skipTranslation)
	if err != nil {
		if errors.Is(err, ingest.ErrRunInProgress) {
			c.JSON(http.StatusConflict, gin.H{
				"error":   "already running",
				"message": "A fetch run is already in progress",
			})
			return
		}
		log.Printf("Manual fetch failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Fetch run failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": result})
}

func (s *Server) backfill(c *gin.Context) {
	limit := parseLimit(c.Query("limit"), defaultArticleLimit, maxArticleLimit)

	result, err := s.coordinator.TranslateMissing(c.Request.Context(), limit)
	if err != nil {
		if errors.Is(err, ingest.ErrRunInProgress) {
			c.JSON(http.StatusConflict, gin.H{
				"error":   "already running",
				"message": "A fetch run is already in progress",
			})
			return
		}
		log.Printf("Backfill failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Backfill failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": result})
}

func (s *Server) getTranslationStats(c *gin.Context) {
	stats, err := s.store.TranslationStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) getTranslationLogs(c *gin.Context) {
	filter := storage.LogFilter{
		ArticleLink:    c.Query("article_link"),
		TargetLanguage: c.Query("language"),
		Limit:          parseLimit(c.Query("limit"), defaultLogLimit, 500),
	}

	logs, err := s.store.TranslationLogs(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load logs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"logs":  logs,
		"count": len(logs),
	})
}

func (s *Server) getSchedulerStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.poller.Status())
}

func (s *Server) startScheduler(c *gin.Context) {
	s.poller.Start()
	c.JSON(http.StatusOK, gin.H{"message": "Scheduler started"})
}

func (s *Server) stopScheduler(c *gin.Context) {
	s.poller.Stop()
	c.JSON(http.StatusOK, gin.H{"message": "Scheduler stopped"})
}

type toggleRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

func (s *Server) toggleFetch(c *gin.Context) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Body must contain an 'enabled' boolean"})
		return
	}
	s.poller.SetFetchEnabled(*req.Enabled)
	c.JSON(http.StatusOK, gin.H{"fetch_enabled": *req.Enabled})
}

func (s *Server) toggleTranslation(c *gin.Context) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Body must contain an 'enabled' boolean"})
		return
	}
	s.poller.SetTranslationEnabled(*req.Enabled)
	c.JSON(http.StatusOK, gin.H{"translation_enabled": *req.Enabled})
}

func parseLimit(raw string, def, max int) int {
	if raw == "" {
		return def
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
