package handler

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

type noticeRequest struct {
	Username string  `json:"username" binding:"required"`
	Telegram *string `json:"telegram"`
	Notice   *bool   `json:"notice" binding:"required"`
}

type telegramLinkRequest struct {
	// Username is the Telegram username, not the MyChat one.
	Username string `json:"username" binding:"required"`
	ChatID   int64  `json:"chat_id" binding:"required"`
}

// ChangeNotice stores the user's Telegram handle and notification switch.
func (h *Handler) ChangeNotice(c *gin.Context) {
	var req noticeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and notice are required"})
		return
	}
	if err := h.Users.SetNotificationPreference(c.Request.Context(), req.Username, req.Telegram, *req.Notice); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

// LinkSecretHeader carries the shared secret that external bots present to link chats.
const LinkSecretHeader = "X-Link-Secret"

// UpdateTelegramID links a Telegram chat to the accounts that named its username. Only a
// caller holding the link secret may do this; without a configured secret the route is off
// and linking happens through the in-process bot alone.
func (h *Handler) UpdateTelegramID(c *gin.Context) {
	if h.LinkSecret == "" {
		c.JSON(http.StatusForbidden, gin.H{"error": "linking over HTTP is disabled"})
		return
	}
	if subtle.ConstantTimeCompare([]byte(c.GetHeader(LinkSecretHeader)), []byte(h.LinkSecret)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid link secret"})
		return
	}

	var req telegramLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and chat_id are required"})
		return
	}
	linked, err := h.Users.LinkExternalAddress(c.Request.Context(), req.Username, req.ChatID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"linked": linked})
}
