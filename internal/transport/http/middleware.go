package http

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/marketline/chat-server/internal/activity"
	"github.com/marketline/chat-server/internal/auth"
)

const (
	// ContextKeyUserID is the context key for storing the authenticated user ID.
	ContextKeyUserID = "user_id"
	// ContextKeyUserName is the context key for storing the user's display name.
	ContextKeyUserName = "user_name"
)

// AuthMiddleware creates a middleware that validates JWT tokens.
func AuthMiddleware(authService *auth.Service, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			logger.Debug().Msg("missing authorization header")
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "missing authorization header"})
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid authorization header"})
			c.Abort()
			return
		}

		identity, err := authService.Authenticate(c.Request.Context(), parts[1])
		if err != nil {
			logger.Debug().Err(err).Msg("token validation failed")
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid or expired token"})
			c.Abort()
			return
		}

		c.Set(ContextKeyUserID, identity.UserID)
		c.Set(ContextKeyUserName, identity.Name)
		c.Next()
	}
}

// userID extracts the authenticated user ID set by AuthMiddleware.
func userID(c *gin.Context) int64 {
	id, _ := c.Get(ContextKeyUserID)
	userID, _ := id.(int64)
	return userID
}

// ActivityMiddleware records each API request as a fire-and-forget audit
// entry. Recording never delays or fails the request.
func ActivityMiddleware(recorder *activity.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := "success"
		if c.Writer.Status() >= http.StatusBadRequest {
			status = "failure"
		}
		detail := fmt.Sprintf("status=%d duration=%s", c.Writer.Status(), time.Since(start).Round(time.Millisecond))
		recorder.RecordDetail(
			userID(c),
			c.Request.Method+" "+c.FullPath(),
			detail,
			status,
		)
	}
}
