package handler

import (
	"net/http"

	"mychat/backend/internal/chathub"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API is consumed by a separately hosted frontend.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket authenticates the request and upgrades it to a chat session.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization token missing"})
		return
	}
	claims, err := h.Tokens.Parse(token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token or expired"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written an HTTP error response.
		h.log.Warn("WebSocket upgrade failed", zap.Uint("user_id", claims.UserID), zap.Error(err))
		return
	}

	client := chathub.NewWebSocketClient(h.Hub, conn, claims.UserID, claims.Username, h.log.Named("ws"))
	h.Hub.OnConnect(client)
	client.Run()
}
