package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/microblog/microblog/internal/config"
	"github.com/microblog/microblog/internal/services"
)

// respondError maps service errors onto HTTP statuses. Storage failures and
// anything unclassified are reported as a bare 500; the cause is attached to
// the gin context for the request logger.
func respondError(c *gin.Context, err error) {
	var status int
	switch {
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrInvalidArgument), errors.Is(err, services.ErrInvalidToken):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, services.ErrUnauthorized):
		status = http.StatusUnauthorized
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// pageParams reads ?page= and ?per_page=. Missing values take the defaults,
// per_page is clamped to the configured maximum, and non-numeric values are
// rejected. Range checks on page are left to the services.
func pageParams(c *gin.Context, cfg *config.FeedConfig) (page, perPage int, ok bool) {
	page, perPage = 1, cfg.PostsPerPage

	if v := c.Query("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "page must be an integer"})
			return 0, 0, false
		}
		page = n
	}
	if v := c.Query("per_page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "per_page must be an integer"})
			return 0, 0, false
		}
		perPage = n
	}
	if perPage > cfg.MaxPageSize {
		perPage = cfg.MaxPageSize
	}
	return page, perPage, true
}
