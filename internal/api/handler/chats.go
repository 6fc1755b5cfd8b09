package handler

import (
	"errors"
	"net/http"
	"strconv"

	"mychat/backend/internal/errs"

	"github.com/gin-gonic/gin"
)

type newChatRequest struct {
	CurrentUser string `json:"current_user" binding:"required"`
	TargetUser  string `json:"target_user" binding:"required"`
}

type chatResponse struct {
	Success bool   `json:"success"`
	ChatID  uint   `json:"chat_id,omitempty"`
	Message string `json:"message,omitempty"`
}

// CreateChat opens a chat between two users. Expected refusals (unknown user, duplicate,
// self) are reported in the body with success=false.
func (h *Handler) CreateChat(c *gin.Context) {
	var req newChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "current_user and target_user are required"})
		return
	}

	chatID, err := h.Chats.CreateChat(c.Request.Context(), req.CurrentUser, req.TargetUser)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, chatResponse{Success: true, ChatID: chatID})
	case errors.Is(err, errs.ErrUserNotFound):
		c.JSON(http.StatusCreated, chatResponse{Message: "User doesn't exist"})
	case errors.Is(err, errs.ErrDuplicateChat):
		c.JSON(http.StatusCreated, chatResponse{Message: errs.ErrDuplicateChat.Error()})
	case errors.Is(err, errs.ErrSelfChat):
		c.JSON(http.StatusCreated, chatResponse{Message: errs.ErrSelfChat.Error()})
	default:
		h.respondError(c, err)
	}
}

// ListChats returns the user's chats with the other member of each.
func (h *Handler) ListChats(c *gin.Context) {
	chats, err := h.Chats.ListChatsForUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, chats)
}

// ChatHistory returns the chat's messages oldest first.
func (h *Handler) ChatHistory(c *gin.Context) {
	chatID, err := strconv.ParseUint(c.Param("chat_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chat_id must be a positive integer"})
		return
	}
	history, err := h.Messages.ListByChat(c.Request.Context(), uint(chatID))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}
