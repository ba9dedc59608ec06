package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/microblog/microblog/internal/config"
	"github.com/microblog/microblog/internal/middleware"
	"github.com/microblog/microblog/internal/services"
	"github.com/microblog/microblog/pkg/logger"
)

type RouterDeps struct {
	Config      *config.Config
	UserService *services.UserService
	FeedService *services.FeedService
	Logger      *logger.Logger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	cfg := deps.Config

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.RateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst))
	router.Use(cors)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	auth := []gin.HandlerFunc{
		middleware.NewJWTAuth(&middleware.JWTConfig{Secret: cfg.JWT.Secret}),
		middleware.LastSeen(deps.UserService, deps.Logger),
	}

	api := router.Group("/api/v1")
	NewUserHandler(deps.UserService, &cfg.JWT, &cfg.Feed).RegisterRoutes(api, auth...)
	NewFeedHandler(deps.FeedService, deps.UserService, &cfg.Feed).RegisterRoutes(api, auth...)

	return router
}

func cors(c *gin.Context) {
	c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
	c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if c.Request.Method == http.MethodOptions {
		c.AbortWithStatus(http.StatusNoContent)
		return
	}

	c.Next()
}
