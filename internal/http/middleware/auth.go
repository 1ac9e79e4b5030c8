package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"basegraph.app/codesight/common/logger"
	"basegraph.app/codesight/internal/service"
)

type contextKey string

const userIDContextKey contextKey = "user_id"

// RequireAuth resolves the session cookie to a user id. Sessions are issued by
// the external auth system and only read here.
func RequireAuth(authService service.AuthService, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, err := getSessionID(c, cookieName)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}

		session, err := authService.ValidateSession(c.Request.Context(), sessionID)
		if err != nil {
			if errors.Is(err, service.ErrSessionExpired) || errors.Is(err, service.ErrSessionNotFound) {
				clearSessionCookie(c, cookieName)
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to validate session"})
			return
		}

		ctx := WithUserID(c.Request.Context(), session.UserID)
		ctx = logger.WithLogFields(ctx, logger.LogFields{UserID: &session.UserID})
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// GetUserID returns the authenticated user, or false outside RequireAuth.
func GetUserID(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(userIDContextKey).(int64)
	return userID, ok
}

func getSessionID(c *gin.Context, cookieName string) (int64, error) {
	cookie, err := c.Cookie(cookieName)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(cookie, 10, 64)
}

func clearSessionCookie(c *gin.Context, cookieName string) {
	c.SetCookie(cookieName, "", -1, "/", "", false, true)
}
