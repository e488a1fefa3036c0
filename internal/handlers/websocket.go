package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/thereayou/loci-chat/internal/logger"
	ws "github.com/thereayou/loci-chat/internal/websocket"
)

// WebSocketHandler upgrades authenticated requests to live connections.
type WebSocketHandler struct {
	hub      *ws.Hub
	gateway  *Gateway
	upgrader websocket.Upgrader
}

// NewWebSocketHandler accepts any origin when allowedOrigins is empty.
func NewWebSocketHandler(hub *ws.Hub, gateway *Gateway, allowedOrigins []string) *WebSocketHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &WebSocketHandler{
		hub:     hub,
		gateway: gateway,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				return allowed[r.Header.Get("Origin")]
			},
		},
	}
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	userID := currentUser(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Ctx(c.Request.Context()).Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := ws.NewClient(h.hub, conn, userID)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(h.gateway)
}
