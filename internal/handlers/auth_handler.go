package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/IlyacloudDev/QuickTalk/internal/models"
	"github.com/IlyacloudDev/QuickTalk/internal/services"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

type AuthHandler struct {
	service *services.AuthService
	logger  *slog.Logger
	tracer  trace.Tracer
}

func NewAuthHandler(service *services.AuthService, logger *slog.Logger, tracer trace.Tracer) *AuthHandler {
	return &AuthHandler{service: service, logger: logger, tracer: tracer}
}

func (a *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Email    string `json:"email"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		a.logger.Warn("invalid input format", "error", err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input format"})
		return
	}

	ctx := c.Request.Context()
	if a.tracer != nil {
		var span trace.Span
		ctx, span = a.tracer.Start(ctx, "auth.register")
		defer span.End()
	}

	if err := a.service.Register(ctx, req.Username, req.Password, req.Email); err != nil {
		a.logger.Warn("register failed", "username", req.Username, "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"detail": "User registered successfully"})
}

func (a *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		a.logger.Warn("invalid input format", "error", err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input format"})
		return
	}

	ctx := c.Request.Context()
	if a.tracer != nil {
		var span trace.Span
		ctx, span = a.tracer.Start(ctx, "auth.login")
		defer span.End()
	}

	token, err := a.service.Login(ctx, req.Username, req.Password)
	if err != nil {
		a.logger.Warn("login failed", "username", req.Username, "error", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (a *AuthHandler) Logout(c *gin.Context) {
	token := c.GetString("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no active session"})
		return
	}

	if err := a.service.RevokeToken(c.Request.Context(), token); err != nil {
		a.logger.Error("token revocation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "logout failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"detail": "logged out"})
}

// AuthMiddleware resolves the bearer token and stores the user in the gin
// context for downstream handlers.
func (a *AuthHandler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := c.GetHeader("Authorization")
		if tokenStr == "" {
			a.logger.Warn("missing authorization header")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		tokenStr = strings.TrimPrefix(tokenStr, "Bearer ")

		user, err := a.service.ValidateToken(c.Request.Context(), tokenStr)
		if err != nil {
			a.logger.Warn("token validation failed", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		c.Set("user", user)
		c.Set("token", tokenStr)

		a.logger.Debug("request authorized", "username", user.Username)
		c.Next()
	}
}

// currentUser pulls the authenticated user set by AuthMiddleware.
func currentUser(c *gin.Context) (*models.User, bool) {
	value, exists := c.Get("user")
	if !exists {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok
}
