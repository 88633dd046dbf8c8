package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"watchparty/internal/core/domain"
	"watchparty/internal/core/services"
	apperrors "watchparty/pkg/errors"
	"watchparty/pkg/utils"
	"watchparty/pkg/validation"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService    *services.AuthService
	accessTokenTTL time.Duration
}

func NewAuthHandler(authService *services.AuthService, accessTokenTTL time.Duration) *AuthHandler {
	return &AuthHandler{
		authService:    authService,
		accessTokenTTL: accessTokenTTL,
	}
}

func (h *AuthHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1/auth")
	{
		api.POST("/register", h.Register)
		api.POST("/login", h.Login)
	}
}

type RegisterRequest struct {
	Email       string `json:"email" binding:"required,email,max=254"`
	DisplayName string `json:"display_name" binding:"required,min=1,max=50"`
	PhotoURL    string `json:"photo_url" binding:"omitempty,max=2048"`
	Password    string `json:"password" binding:"required,min=6,max=128"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email,max=254"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidInputError("invalid request format"))
		return
	}

	req.Email = utils.NormalizeEmail(req.Email)
	req.DisplayName = strings.TrimSpace(req.DisplayName)

	// Validate input
	if err := validation.ValidateEmail(req.Email); err != nil {
		c.Error(apperrors.NewInvalidInputError(err.Error()))
		return
	}
	if err := validation.ValidateDisplayName(req.DisplayName); err != nil {
		c.Error(apperrors.NewInvalidInputError(err.Error()))
		return
	}
	if err := validation.ValidatePassword(req.Password); err != nil {
		c.Error(apperrors.NewInvalidInputError(err.Error()))
		return
	}

	identity, token, err := h.authService.Register(c.Request.Context(), req.Email, req.DisplayName, req.PhotoURL, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			c.Error(apperrors.NewConflictError("email already registered"))
			return
		}
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user_id":      identity.UID,
		"email":        identity.Email,
		"display_name": identity.DisplayName,
		"photo_url":    identity.PhotoURL,
		"access_token": token,
		"expires_in":   int(h.accessTokenTTL / time.Second),
	})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidInputError("invalid request format"))
		return
	}

	req.Email = utils.NormalizeEmail(req.Email)

	identity, token, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) || errors.Is(err, domain.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":      identity.UID,
		"email":        identity.Email,
		"display_name": identity.DisplayName,
		"photo_url":    identity.PhotoURL,
		"access_token": token,
		"expires_in":   int(h.accessTokenTTL / time.Second),
	})
}
