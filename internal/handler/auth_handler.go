package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/GTDGit/apparel_tracker/internal/middleware"
	"github.com/GTDGit/apparel_tracker/internal/models"
	"github.com/GTDGit/apparel_tracker/internal/service"
	"github.com/GTDGit/apparel_tracker/internal/utils"
)

// AuthAPI is the part of *service.AuthService used by AuthHandler.
type AuthAPI interface {
	Register(ctx context.Context, req *service.RegisterRequest) (*service.AuthResult, error)
	Login(ctx context.Context, username, password string) (*service.AuthResult, error)
	Me(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	UpdateSettings(ctx context.Context, actor *models.User, req *service.UpdateSettingsRequest) (*models.User, error)
	CreateStaff(ctx context.Context, actor *models.User, req *service.CreateStaffRequest) (*models.User, error)
}

type AuthHandler struct {
	authService AuthAPI
	limiter     *middleware.InvalidAuthRateLimiter
}

// NewAuthHandler creates an AuthHandler. Failed logins count against limiter.
func NewAuthHandler(authService AuthAPI, limiter *middleware.InvalidAuthRateLimiter) *AuthHandler {
	if limiter == nil {
		limiter = middleware.NewInvalidAuthRateLimiter(0, 0)
	}
	return &AuthHandler{authService: authService, limiter: limiter}
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	res, err := h.authService.Register(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ip := c.ClientIP()
	if h.limiter.Blocked(ip) {
		utils.Error(c, http.StatusTooManyRequests, "TOO_MANY_REQUESTS", "Too many failed login attempts")
		return
	}

	res, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, utils.ErrInvalidCredentials) {
			h.limiter.Allow(ip)
			log.Warn().Str("ip", ip).Msg("failed login attempt")
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(c *gin.Context) {
	actor := middleware.CurrentUser(c)
	user, err := h.authService.Me(c.Request.Context(), actor.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// UpdateSettings handles PUT /api/auth/settings.
func (h *AuthHandler) UpdateSettings(c *gin.Context) {
	var req service.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := h.authService.UpdateSettings(c.Request.Context(), middleware.CurrentUser(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// CreateStaff handles POST /api/auth/users.
func (h *AuthHandler) CreateStaff(c *gin.Context) {
	var req service.CreateStaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := h.authService.CreateStaff(c.Request.Context(), middleware.CurrentUser(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user})
}
