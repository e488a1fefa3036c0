package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/thereayou/loci-chat/internal/handlers"
	"github.com/thereayou/loci-chat/internal/logger"
	"github.com/thereayou/loci-chat/internal/middleware"
	"github.com/thereayou/loci-chat/internal/services"
)

type Endpoints struct {
	Chats         *handlers.ChatHandler
	Messages      *handlers.MessageHandler
	Notifications *handlers.NotificationHandler
	WebSocket     *handlers.WebSocketHandler
	Health        *handlers.HealthHandler
	Verifier      services.TokenVerifier
	Revocations   services.TokenRevocations
}

func APIEndpoints(r *gin.Engine, e Endpoints) {
	r.Use(middleware.RequestLogger(*logger.L()), middleware.Metrics())

	r.GET("/health", e.Health.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/ws", middleware.WSAuthMiddleware(e.Verifier, e.Revocations), e.WebSocket.HandleWebSocket)

	api := r.Group("/api/v1", middleware.AuthMiddleware(e.Verifier, e.Revocations))
	{
		chats := api.Group("/chats")
		{
			chats.GET("", e.Chats.List)
			chats.POST("/direct", e.Chats.CreateDirect)
			chats.GET("/direct", e.Chats.FindDirect)
			chats.POST("/group", e.Chats.CreateGroup)
			chats.GET("/:chatId", e.Chats.Get)
			chats.PATCH("/:chatId", e.Chats.Update)
			chats.DELETE("/:chatId", e.Chats.Delete)
			chats.POST("/:chatId/members", e.Chats.AddMember)
			chats.DELETE("/:chatId/members/:memberId", e.Chats.RemoveMember)
			chats.DELETE("/:chatId/members/:memberId/messages", e.Chats.DeleteMemberMessages)
			chats.POST("/:chatId/leave", e.Chats.Leave)
			chats.POST("/:chatId/read", e.Chats.Read)
			chats.GET("/:chatId/messages", e.Chats.ListMessages)
			chats.POST("/:chatId/messages", e.Chats.SendMessage)
		}

		msgs := api.Group("/messages")
		{
			msgs.PATCH("/:messageId", e.Messages.Edit)
			msgs.DELETE("/:messageId", e.Messages.Delete)
			msgs.POST("/:messageId/reactions", e.Messages.React)
		}

		api.GET("/notifications", e.Notifications.List)
	}
}
