package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"linkdrop/internal/models"
)

const maxRecentLinks = 50

func (s *Server) stats(c *gin.Context) {
	ctx, cancel := s.ctx(c)
	defer cancel()

	users, err := s.store.CountUsers(ctx)
	if err != nil {
		s.fail(c, "count users", err)
		return
	}
	links, err := s.store.CountLinks(ctx)
	if err != nil {
		s.fail(c, "count links", err)
		return
	}
	total, err := s.store.SumAllPoints(ctx)
	if err != nil {
		s.fail(c, "sum points", err)
		return
	}

	c.JSON(http.StatusOK, models.Stats{
		Users:       users,
		Links:       links,
		TotalPoints: total,
	})
}

func (s *Server) recentLinks(c *gin.Context) {
	limit := 10
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxRecentLinks {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": gin.H{
					"code":    "invalid_parameter",
					"message": "limit must be between 1 and 50",
				},
			})
			return
		}
		limit = n
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	links, err := s.store.RecentLinks(ctx, limit)
	if err != nil {
		s.fail(c, "recent links", err)
		return
	}
	if links == nil {
		links = []models.Link{}
	}

	c.JSON(http.StatusOK, gin.H{"links": links})
}

func (s *Server) fail(c *gin.Context, what string, err error) {
	s.log.Error("api_query_failed", "what", what, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": gin.H{
			"code":    "internal_error",
			"message": "query failed",
		},
	})
}
