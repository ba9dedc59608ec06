package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/microblog/microblog/internal/config"
	"github.com/microblog/microblog/internal/middleware"
	"github.com/microblog/microblog/internal/models"
	"github.com/microblog/microblog/internal/services"
)

type UserHandler struct {
	userService *services.UserService
	jwtConfig   *config.JWTConfig
	feedConfig  *config.FeedConfig
}

func NewUserHandler(userService *services.UserService, jwtConfig *config.JWTConfig, feedConfig *config.FeedConfig) *UserHandler {
	return &UserHandler{
		userService: userService,
		jwtConfig:   jwtConfig,
		feedConfig:  feedConfig,
	}
}

func (h *UserHandler) Register(c *gin.Context) {
	var req services.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.userService.Register(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Congratulations, you are now a registered user!",
		"user":    user,
	})
}

func (h *UserHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.userService.Login(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := middleware.GenerateToken(user.ID.String(), user.Username, h.jwtConfig.Secret, h.jwtConfig.ExpireTime)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  user,
	})
}

func (h *UserHandler) RequestPasswordReset(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.userService.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "Check your email for the instructions to reset your password"})
}

func (h *UserHandler) ResetPassword(c *gin.Context) {
	var req services.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.userService.ResetPassword(c.Request.Context(), &req); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Your password has been reset."})
}

func (h *UserHandler) GetProfile(c *gin.Context) {
	user, err := h.userService.GetByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req services.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.userService.UpdateProfile(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Your changes have been saved.",
		"user":    user,
	})
}

func (h *UserHandler) Follow(c *gin.Context) {
	followerID := middleware.GetUserID(c)
	target, err := h.userService.GetByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		respondError(c, err)
		return
	}
	if target.ID.String() == followerID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "You cannot follow yourself!"})
		return
	}

	if err := h.userService.Follow(c.Request.Context(), followerID, target.ID.String()); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "You are following " + target.Username + "!"})
}

func (h *UserHandler) Unfollow(c *gin.Context) {
	followerID := middleware.GetUserID(c)
	target, err := h.userService.GetByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		respondError(c, err)
		return
	}
	if target.ID.String() == followerID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "You cannot unfollow yourself!"})
		return
	}

	if err := h.userService.Unfollow(c.Request.Context(), followerID, target.ID.String()); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "You are not following " + target.Username + "."})
}

func (h *UserHandler) IsFollowing(c *gin.Context) {
	target, err := h.userService.GetByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		respondError(c, err)
		return
	}

	following, err := h.userService.IsFollowing(c.Request.Context(), middleware.GetUserID(c), target.ID.String())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"following": following})
}

func (h *UserHandler) GetFollowers(c *gin.Context) {
	h.listNeighbours(c, h.userService.Followers)
}

func (h *UserHandler) GetFollowing(c *gin.Context) {
	h.listNeighbours(c, h.userService.Following)
}

func (h *UserHandler) listNeighbours(c *gin.Context, list func(ctx context.Context, userID string, page, perPage int) (*services.Page[*models.User], error)) {
	page, perPage, ok := pageParams(c, h.feedConfig)
	if !ok {
		return
	}

	user, err := h.userService.GetByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := list(c.Request.Context(), user.ID.String(), page, perPage)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *UserHandler) RegisterRoutes(r *gin.RouterGroup, auth ...gin.HandlerFunc) {
	account := r.Group("/auth")
	{
		account.POST("/register", h.Register)
		account.POST("/login", h.Login)
		account.POST("/reset_password_request", h.RequestPasswordReset)
		account.POST("/reset_password", h.ResetPassword)
	}

	r.GET("/users/:username", h.GetProfile)
	r.GET("/users/:username/followers", h.GetFollowers)
	r.GET("/users/:username/following", h.GetFollowing)

	protected := r.Group("/", auth...)
	{
		protected.PUT("/profile", h.UpdateProfile)
		protected.POST("/users/:username/follow", h.Follow)
		protected.DELETE("/users/:username/follow", h.Unfollow)
		protected.GET("/users/:username/is_following", h.IsFollowing)
	}
}
