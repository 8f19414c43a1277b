package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tutorlink/tutorlink-api/internal/models"
	"github.com/tutorlink/tutorlink-api/pkg/jwt"
	"github.com/tutorlink/tutorlink-api/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)

	if err := logger.Initialize(logger.Config{
		Level:       "debug",
		Environment: "development",
	}); err != nil {
		panic(err)
	}
}

func sessionRouter(tm *jwt.TokenManager) *gin.Engine {
	router := gin.New()
	router.Use(SessionMiddleware(tm, "", false))
	router.GET("/protected", func(c *gin.Context) {
		if _, err := GetUserSession(c); err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusOK)
	})

	return router
}

func TestSessionMiddleware_ValidCookie(t *testing.T) {
	tm := jwt.NewTokenManager("test-secret", "test-issuer")
	userID := uuid.New()

	token, err := tm.GenerateToken(userID.String(), "mentor@example.com", "Test Mentor",
		string(models.RoleMentor), jwt.PurposeSession, time.Hour)
	assert.NoError(t, err)

	router := gin.New()
	router.Use(SessionMiddleware(tm, "", false))
	router.GET("/protected", func(c *gin.Context) {
		session, err := GetUserSession(c)
		assert.NoError(t, err)
		assert.Equal(t, userID, session.UserID)
		assert.Equal(t, models.RoleMentor, session.Role)
		assert.True(t, session.IsMentor())
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/protected", http.NoBody)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})

	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSessionMiddleware_MissingCookie(t *testing.T) {
	tm := jwt.NewTokenManager("test-secret", "test-issuer")

	router := sessionRouter(tm)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/protected", http.NoBody)

	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSessionMiddleware_ExpiredToken(t *testing.T) {
	tm := jwt.NewTokenManager("test-secret", "test-issuer")

	token, err := tm.GenerateToken(uuid.NewString(), "m@example.com", "M",
		string(models.RoleMentor), jwt.PurposeSession, -time.Minute)
	assert.NoError(t, err)

	router := sessionRouter(tm)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/protected", http.NoBody)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})

	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Session expired")
}

func TestSessionMiddleware_LoginTokenRejected(t *testing.T) {
	tm := jwt.NewTokenManager("test-secret", "test-issuer")

	// A short-lived login token must not pass as a session cookie
	token, err := tm.GenerateToken(uuid.NewString(), "s@example.com", "S",
		string(models.RoleStudent), jwt.PurposeLogin, time.Hour)
	assert.NoError(t, err)

	router := sessionRouter(tm)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/protected", http.NoBody)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})

	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSessionMiddleware_WrongSecret(t *testing.T) {
	signing := jwt.NewTokenManager("other-secret", "test-issuer")
	verifying := jwt.NewTokenManager("test-secret", "test-issuer")

	token, err := signing.GenerateToken(uuid.NewString(), "s@example.com", "S",
		string(models.RoleStudent), jwt.PurposeSession, time.Hour)
	assert.NoError(t, err)

	router := sessionRouter(verifying)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/protected", http.NoBody)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})

	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
