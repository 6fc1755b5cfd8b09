package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"mychat/backend/internal/auth"
	"mychat/backend/internal/chathub"
	"mychat/backend/internal/directory"
	"mychat/backend/internal/errs"
	"mychat/backend/internal/messagelog"
	"mychat/backend/internal/registry"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler holds the services behind the HTTP API.
type Handler struct {
	Users      *directory.Service
	Chats      *registry.Service
	Messages   *messagelog.Service
	Hub        *chathub.ManagerService
	Tokens     *auth.TokenIssuer
	Validator  *auth.Validator
	BcryptCost int
	// LinkSecret guards PATCH /update_telegram_id. Empty disables the route.
	LinkSecret string
	// Ping reports whether the backing storage is reachable. Optional.
	Ping func(ctx context.Context) error

	log *zap.Logger
}

func NewHandler(
	users *directory.Service,
	chats *registry.Service,
	messages *messagelog.Service,
	hub *chathub.ManagerService,
	tokens *auth.TokenIssuer,
	validator *auth.Validator,
	bcryptCost int,
	log *zap.Logger,
) *Handler {
	return &Handler{
		Users:      users,
		Chats:      chats,
		Messages:   messages,
		Hub:        hub,
		Tokens:     tokens,
		Validator:  validator,
		BcryptCost: bcryptCost,
		log:        log,
	}
}

// NewRouter builds the gin engine with every route under /mychat.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(h.log))

	api := r.Group("/mychat")
	api.POST("/new_user", h.Register)
	api.POST("/check_data", h.Login)
	api.POST("/new_chat", h.CreateChat)
	api.GET("/chats/:username", h.ListChats)
	api.GET("/chats/:username/:chat_id", h.ChatHistory)
	api.PATCH("/change_notice", h.ChangeNotice)
	api.PATCH("/update_telegram_id", h.UpdateTelegramID)
	api.GET("/ws/chat", h.ServeWebSocket)
	api.GET("/healthz", h.Health)

	return r
}

// Health reports liveness and the number of sessions on this instance.
func (h *Handler) Health(c *gin.Context) {
	if h.Ping != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": h.Hub.SessionCount()})
}

// respondError maps domain errors to status codes. Anything unknown is a 500 and its text
// stays in the log.
func (h *Handler) respondError(c *gin.Context, err error) {
	var validationErr *auth.ValidationError
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": validationErr.Messages})
	case errors.Is(err, errs.ErrAlreadyExists), errors.Is(err, errs.ErrDuplicateChat):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, errs.ErrUserNotFound), errors.Is(err, errs.ErrChatNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, errs.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, errs.ErrSelfChat):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.log.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
