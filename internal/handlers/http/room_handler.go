package http

import (
	"errors"
	"net/http"

	"watchparty/internal/core/domain"
	"watchparty/internal/core/services"
	"watchparty/internal/infrastructure/middleware"
	apperrors "watchparty/pkg/errors"

	"github.com/gin-gonic/gin"
)

type RoomHandler struct {
	roomService *services.RoomService
	chatService *services.ChatService
	authService *services.AuthService
}

func NewRoomHandler(roomService *services.RoomService, chatService *services.ChatService, authService *services.AuthService) *RoomHandler {
	return &RoomHandler{
		roomService: roomService,
		chatService: chatService,
		authService: authService,
	}
}

func (h *RoomHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1/rooms")
	api.Use(middleware.AuthMiddleware(h.authService))
	{
		api.POST("", h.CreateRoom)
		api.GET("/:id", h.GetRoom)
		api.DELETE("/:id", h.EndRoom)
		api.GET("/:id/chat", h.ChatHistory)
		api.POST("/:id/chat", h.SendChat)
	}
}

type CreateRoomRequest struct {
	VideoURL string `json:"video_url" binding:"required,max=2048"`
}

type SendChatRequest struct {
	Message string `json:"message" binding:"required,max=500"`
}

func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidInputError("invalid request format"))
		return
	}

	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	room, err := h.roomService.Create(c.Request.Context(), identity, req.VideoURL)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, room)
}

func (h *RoomHandler) GetRoom(c *gin.Context) {
	room, err := h.roomService.Get(c.Request.Context(), domain.RoomID(c.Param("id")))
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			c.Error(apperrors.NewNotFoundError("room"))
			return
		}
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, room)
}

func (h *RoomHandler) EndRoom(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	err := h.roomService.End(c.Request.Context(), domain.RoomID(c.Param("id")), domain.UserID(identity.UID))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRoomNotFound):
			c.Error(apperrors.NewNotFoundError("room"))
		case errors.Is(err, domain.ErrNotHost):
			c.JSON(http.StatusForbidden, gin.H{"error": "only the host can end the room"})
		default:
			c.Error(err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ended"})
}

func (h *RoomHandler) ChatHistory(c *gin.Context) {
	msgs, err := h.chatService.History(c.Request.Context(), domain.RoomID(c.Param("id")))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (h *RoomHandler) SendChat(c *gin.Context) {
	var req SendChatRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidInputError("invalid request format"))
		return
	}

	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	msg, err := h.chatService.Send(c.Request.Context(), domain.RoomID(c.Param("id")), identity, req.Message)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, msg)
}
