package handlers

import (
	"errors"
	"net/http"

	"github.com/tutorlink/tutorlink-api/internal/middleware"
	"github.com/tutorlink/tutorlink-api/internal/models"
	"github.com/tutorlink/tutorlink-api/internal/services"
	"github.com/gin-gonic/gin"
)

// AuthHandler handles the passwordless authentication endpoints
type AuthHandler struct {
	service services.AuthServiceInterface
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service services.AuthServiceInterface) *AuthHandler {
	return &AuthHandler{
		service: service,
	}
}

// RequestLogin handles POST /api/v1/auth/request-login
// Always answers 200 so the endpoint cannot be used to probe for accounts
func (h *AuthHandler) RequestLogin(c *gin.Context) {
	var payload models.RequestLoginPayload
	if bindErr := c.ShouldBindJSON(&payload); bindErr != nil {
		respondErrorWithDetails(c, http.StatusBadRequest, "Invalid request body",
			ParseValidationErrors(bindErr), bindErr)
		return
	}

	if err := h.service.RequestLogin(c.Request.Context(), payload.Email); err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to process login request", err)
		return
	}

	respondSuccess(c, http.StatusOK, nil, "If the email is registered, a login link has been sent")
}

// VerifyLogin handles POST /api/v1/auth/verify
// Exchanges a login token for a session cookie
func (h *AuthHandler) VerifyLogin(c *gin.Context) {
	var payload models.VerifyLoginPayload
	if bindErr := c.ShouldBindJSON(&payload); bindErr != nil {
		respondErrorWithDetails(c, http.StatusBadRequest, "Invalid request body",
			ParseValidationErrors(bindErr), bindErr)
		return
	}

	session, token, err := h.service.VerifyLogin(c.Request.Context(), payload.Token)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidLoginToken):
			respondError(c, http.StatusUnauthorized, "Invalid or expired login token", err)
		case errors.Is(err, services.ErrUserNotFound), errors.Is(err, services.ErrUserInactive):
			respondError(c, http.StatusUnauthorized, "Account is not available for login", err)
		default:
			respondError(c, http.StatusInternalServerError, "Failed to verify login", err)
		}
		return
	}

	middleware.SetSessionCookie(c, token, h.service.GetSessionTTL(),
		h.service.GetCookieDomain(), h.service.GetCookieSecure())

	respondSuccess(c, http.StatusOK, session, "Logged in")
}

// Logout handles POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	middleware.ClearSessionCookie(c, h.service.GetCookieDomain(), h.service.GetCookieSecure())
	respondSuccess(c, http.StatusOK, nil, "Logged out")
}

// GetSession handles GET /api/v1/auth/session
// Returns the current session for an authenticated caller
func (h *AuthHandler) GetSession(c *gin.Context) {
	session, err := middleware.GetUserSession(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "Unauthorized", err)
		return
	}

	respondSuccess(c, http.StatusOK, session, "")
}
