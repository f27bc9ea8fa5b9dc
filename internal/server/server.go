package server

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/syntaxhq/syntax-chat/internal/auth"
	"github.com/syntaxhq/syntax-chat/internal/config"
	"github.com/syntaxhq/syntax-chat/internal/hub"
	"github.com/syntaxhq/syntax-chat/internal/store"
)

// New builds the HTTP server carrying the chat REST API and the two
// websocket endpoints.
func New(h *hub.Hub, authService *auth.Service, st store.Store, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(LoggerMiddleware(logger), gin.Recovery())

	handlers := NewHandlers(st, h, authService, logger)
	ws := NewWSHandlers(h, st, logger)

	router.GET("/health", handlers.Health)
	router.POST("/auth/register/", handlers.Register)
	router.POST("/auth/login/", handlers.Login)

	authed := router.Group("/", AuthMiddleware(authService, logger))
	authed.GET("/profile/", handlers.Profile)
	authed.GET("/chat/chatroomlist/", handlers.ListChatRooms)
	authed.POST("/chat/create-or-get-room/", handlers.CreateOrGetRoom)
	authed.POST("/chat/mark-as-read/", handlers.MarkAsRead)
	authed.POST("/chat/create-group/", handlers.CreateGroup)
	authed.GET("/ws/notifications/", ws.Notifications)
	authed.GET("/ws/chat/:room_id/", ws.ChatRoom)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
