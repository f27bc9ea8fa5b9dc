package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/syntaxhq/syntax-chat/internal/auth"
)

const (
	// ContextKeyUserID is the context key for the authenticated user ID.
	ContextKeyUserID = "user_id"
	// ContextKeyUsername is the context key for the authenticated username.
	ContextKeyUsername = "username"
)

// AuthMiddleware validates the session cookie (or a Bearer token fallback)
// and stores the user identity in the request context. Websocket upgrades
// go through the same path, so notification sockets know their user.
func AuthMiddleware(authService *auth.Service, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c)
		if token == "" {
			logger.Debug().Str("path", c.Request.URL.Path).Msg("missing session token")
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
			c.Abort()
			return
		}

		claims, err := authService.ValidateToken(token)
		if err != nil {
			logger.Debug().Err(err).Msg("invalid session token")
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid session"})
			c.Abort()
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyUsername, claims.Username)
		c.Next()
	}
}

func sessionToken(c *gin.Context) string {
	if cookie, err := c.Cookie(auth.SessionCookie); err == nil && cookie != "" {
		return cookie
	}
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}

// LoggerMiddleware logs HTTP requests after completion.
func LoggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Msg("http request")
	}
}

// currentUserID pulls the authenticated user ID out of the gin context.
func currentUserID(c *gin.Context) (int64, bool) {
	v, exists := c.Get(ContextKeyUserID)
	if !exists {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}
