package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/microblog/microblog/internal/config"
	"github.com/microblog/microblog/internal/middleware"
	"github.com/microblog/microblog/internal/services"
)

type FeedHandler struct {
	feedService *services.FeedService
	userService *services.UserService
	feedConfig  *config.FeedConfig
}

func NewFeedHandler(feedService *services.FeedService, userService *services.UserService, feedConfig *config.FeedConfig) *FeedHandler {
	return &FeedHandler{
		feedService: feedService,
		userService: userService,
		feedConfig:  feedConfig,
	}
}

func (h *FeedHandler) CreatePost(c *gin.Context) {
	var req services.CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	post, err := h.feedService.CreatePost(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Your post is now live!",
		"post":    post,
	})
}

// GetFeed serves the caller's home feed: their own posts plus those of
// everyone they follow, newest first.
func (h *FeedHandler) GetFeed(c *gin.Context) {
	page, perPage, ok := pageParams(c, h.feedConfig)
	if !ok {
		return
	}

	feed, err := h.feedService.HomeFeed(c.Request.Context(), middleware.GetUserID(c), page, perPage)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, feed)
}

func (h *FeedHandler) GetUserPosts(c *gin.Context) {
	page, perPage, ok := pageParams(c, h.feedConfig)
	if !ok {
		return
	}

	user, err := h.userService.GetByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		respondError(c, err)
		return
	}

	posts, err := h.feedService.ProfileFeed(c.Request.Context(), user.ID.String(), page, perPage)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, posts)
}

func (h *FeedHandler) Explore(c *gin.Context) {
	page, perPage, ok := pageParams(c, h.feedConfig)
	if !ok {
		return
	}

	posts, err := h.feedService.ExploreFeed(c.Request.Context(), page, perPage)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, posts)
}

// RegisterRoutes mounts the post and feed endpoints. auth guards everything
// except the public explore feed.
func (h *FeedHandler) RegisterRoutes(r *gin.RouterGroup, auth ...gin.HandlerFunc) {
	r.GET("/explore", h.Explore)

	protected := r.Group("/", auth...)
	{
		protected.GET("/feed", h.GetFeed)
		protected.POST("/posts", h.CreatePost)
		protected.GET("/users/:username/posts", h.GetUserPosts)
	}
}
