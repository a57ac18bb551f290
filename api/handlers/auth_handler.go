package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/yuna-go/api/middleware"
	"github.com/yourusername/yuna-go/internal/app"
)

// Authenticator issues tokens for valid credentials
type Authenticator interface {
	Login(username, password string) (*app.Token, error)
}

// LoginRequest is the body of POST /api/login
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthHandler handles login requests
type AuthHandler struct {
	auth   Authenticator
	logger *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(auth Authenticator, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

// Login handles POST /api/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		h.logger.Warn("Login failed",
			zap.String("username", req.Username),
			zap.String("remote_addr", c.ClientIP()))
		c.Header("WWW-Authenticate", "Bearer")
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, token)
}

// Me handles GET /api/me
func (h *AuthHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"username":         c.GetString(middleware.UserKey),
		"is_authenticated": true,
	})
}
