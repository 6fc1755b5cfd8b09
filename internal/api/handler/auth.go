package handler

import (
	"fmt"
	"net/http"
	"strings"

	"mychat/backend/internal/auth"
	"mychat/backend/internal/directory"
	"mychat/backend/internal/models"

	"github.com/gin-gonic/gin"
)

type loginResponse struct {
	Token string          `json:"token"`
	User  models.UserView `json:"user"`
}

// Register creates an account.
func (h *Handler) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.Validator.ValidateRegistration(req); err != nil {
		h.respondError(c, err)
		return
	}

	hash, err := auth.HashPassword(req.Password, h.BcryptCost)
	if err != nil {
		h.respondError(c, err)
		return
	}
	_, err = h.Users.Register(c.Request.Context(), req.Username, hash, directory.Profile{
		FirstName: blankToNil(req.FirstName),
		LastName:  blankToNil(req.LastName),
		Telegram:  req.Telegram,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": fmt.Sprintf("The user %s has been successfully added", req.Username),
	})
}

// Login checks credentials and returns a session token for the WebSocket.
func (h *Handler) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.Validator.ValidateLogin(req); err != nil {
		h.respondError(c, err)
		return
	}

	user, err := h.Users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	token, err := h.Tokens.Issue(*user)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, loginResponse{Token: token, User: user.View()})
}

// bearerToken reads the session token from the "token" query parameter, which browsers
// must use for WebSockets, or from an Authorization header.
func bearerToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return header[7:]
	}
	return ""
}

func blankToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}
