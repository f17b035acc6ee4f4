package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"linkdrop/internal/config"
	"linkdrop/internal/ledger"
	"linkdrop/internal/redis"
)

// Server is the operator-facing HTTP surface: health plus the same
// aggregates /stats exposes in chat, readable without a Telegram account.
type Server struct {
	log    *slog.Logger
	store  ledger.Store
	redis  *redis.Client
	cfg    config.Config
	router *gin.Engine
}

func NewServer(log *slog.Logger, store ledger.Store, redisClient *redis.Client, cfg config.Config) *Server {
	s := &Server{
		log:    log,
		store:  store,
		redis:  redisClient,
		cfg:    cfg,
		router: gin.New(),
	}

	gin.SetMode(gin.ReleaseMode)
	r := s.router
	r.Use(gin.Recovery())
	r.Use(s.loggingMiddleware())
	r.Use(s.rateLimitMiddleware())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	v1 := r.Group("/api/v1")
	{
		v1.GET("/links/recent", s.recentLinks)

		admin := v1.Group("/admin")
		admin.Use(s.adminAuthMiddleware())
		{
			admin.GET("/stats", s.stats)
		}
	}

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ctx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), 10*time.Second)
}
