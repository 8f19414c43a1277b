package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/tutorlink/tutorlink-api/internal/models"
	"github.com/tutorlink/tutorlink-api/pkg/jwt"
	"github.com/gin-gonic/gin"
)

const (
	// SessionCookieName is the name of the session cookie
	SessionCookieName = "tutorlink_session"

	// SessionContextKey is the key used to store the session in context
	SessionContextKey = "user_session"
)

var (
	ErrSessionNotFound = errors.New("session not found in context")
	ErrInvalidSession  = errors.New("invalid session type")
)

// SessionMiddleware validates the JWT session cookie and adds the session to
// the request context.
func SessionMiddleware(tokenManager *jwt.TokenManager, cookieDomain string, cookieSecure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, err := c.Cookie(SessionCookieName)
		if err != nil {
			_ = c.Error(fmt.Errorf("missing session cookie")) //nolint:errcheck
			c.JSON(http.StatusUnauthorized, gin.H{"status": http.StatusUnauthorized, "message": "Unauthorized"})
			c.Abort()
			return
		}

		claims, err := tokenManager.ValidateToken(cookie, jwt.PurposeSession)
		if err != nil {
			_ = c.Error(fmt.Errorf("invalid session token: %w", err)) //nolint:errcheck

			// Clear invalid cookie
			ClearSessionCookie(c, cookieDomain, cookieSecure)

			if errors.Is(err, jwt.ErrExpiredToken) {
				c.JSON(http.StatusUnauthorized, gin.H{"status": http.StatusUnauthorized, "message": "Session expired"})
			} else {
				c.JSON(http.StatusUnauthorized, gin.H{"status": http.StatusUnauthorized, "message": "Unauthorized"})
			}
			c.Abort()
			return
		}

		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			_ = c.Error(fmt.Errorf("malformed user id in session token")) //nolint:errcheck
			ClearSessionCookie(c, cookieDomain, cookieSecure)
			c.JSON(http.StatusUnauthorized, gin.H{"status": http.StatusUnauthorized, "message": "Unauthorized"})
			c.Abort()
			return
		}

		session := &models.UserSession{
			UserID:    userID,
			Email:     claims.Email,
			Name:      claims.Name,
			Role:      models.UserRole(claims.Role),
			ExpiresAt: claims.ExpiresAt.Unix(),
			IssuedAt:  claims.IssuedAt.Unix(),
		}

		c.Set(SessionContextKey, session)
		c.Next()
	}
}

// GetUserSession extracts the session from context
func GetUserSession(c *gin.Context) (*models.UserSession, error) {
	val, exists := c.Get(SessionContextKey)
	if !exists {
		return nil, ErrSessionNotFound
	}

	session, ok := val.(*models.UserSession)
	if !ok {
		return nil, ErrInvalidSession
	}

	return session, nil
}

// SetSessionCookie sets the session cookie
func SetSessionCookie(c *gin.Context, token string, ttlSeconds int, domain string, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(
		SessionCookieName,
		token,
		ttlSeconds,
		"/",
		domain,
		secure,
		true, // HttpOnly
	)
}

// ClearSessionCookie clears the session cookie
func ClearSessionCookie(c *gin.Context, domain string, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(
		SessionCookieName,
		"",
		-1,
		"/",
		domain,
		secure,
		true, // HttpOnly
	)
}
