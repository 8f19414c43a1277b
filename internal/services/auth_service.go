package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/tutorlink/tutorlink-api/config"
	"github.com/tutorlink/tutorlink-api/internal/models"
	"github.com/tutorlink/tutorlink-api/internal/repository"
	"github.com/tutorlink/tutorlink-api/pkg/httpclient"
	"github.com/tutorlink/tutorlink-api/pkg/jwt"
	"github.com/tutorlink/tutorlink-api/pkg/logger"
	"github.com/tutorlink/tutorlink-api/pkg/metrics"
	"github.com/tutorlink/tutorlink-api/pkg/trigger"
	"go.uber.org/zap"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserInactive      = errors.New("user account is inactive")
	ErrInvalidLoginToken = errors.New("invalid or expired login token")
)

// AuthService implements the passwordless login flow: a short-lived login
// token mailed to the user, exchanged for a session token in a cookie.
type AuthService struct {
	userRepo     repository.UserStore
	config       *config.Config
	tokenManager *jwt.TokenManager
	httpClient   httpclient.Client
}

// NewAuthService creates a new AuthService
func NewAuthService(userRepo repository.UserStore, cfg *config.Config, httpClient httpclient.Client) *AuthService {
	return &AuthService{
		userRepo:     userRepo,
		config:       cfg,
		tokenManager: jwt.NewTokenManager(cfg.Session.JWTSecret, cfg.Session.JWTIssuer),
		httpClient:   httpClient,
	}
}

// RequestLogin issues a login token for the email and triggers the login
// email webhook. The response is identical whether or not the email exists,
// so the endpoint does not leak account presence.
func (s *AuthService) RequestLogin(ctx context.Context, email string) error {
	start := time.Now()

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		metrics.LoginRequests.WithLabelValues("unknown_email").Inc()
		logger.Info("Login request for unknown email", zap.String("email", email))
		return nil
	}

	if !user.IsActive {
		metrics.LoginRequests.WithLabelValues("inactive").Inc()
		logger.Warn("Login request for inactive account",
			zap.String("user_id", user.ID.String()))
		return nil
	}

	ttl := time.Duration(s.config.Session.LoginTokenTTLMinutes) * time.Minute
	token, err := s.tokenManager.GenerateToken(
		user.ID.String(), user.Email, user.Name, string(user.Role), jwt.PurposeLogin, ttl)
	if err != nil {
		metrics.LoginRequests.WithLabelValues("token_failed").Inc()
		return fmt.Errorf("failed to generate login token: %w", err)
	}

	loginURL := fmt.Sprintf("%s/auth/callback?token=%s", s.config.Server.BaseURL, url.QueryEscape(token))

	if s.config.EventTriggers.LoginEmailTriggerURL != "" {
		dispatcher := trigger.NewWebhookDispatcher(s.config.EventTriggers.LoginEmailTriggerURL, s.httpClient)
		payload := map[string]any{
			"type": "login_email",
			"user": map[string]string{
				"email": user.Email,
				"name":  user.Name,
			},
			"login_url": loginURL,
		}
		go func() {
			if err := dispatcher.Dispatch(context.WithoutCancel(ctx), payload); err != nil {
				logger.Error("Login email trigger failed",
					zap.String("user_id", user.ID.String()),
					zap.Error(err))
			}
		}()
	} else if s.config.IsDevelopment() {
		// Without an email trigger in development, surface the URL in logs.
		logger.Info("=== DEVELOPMENT LOGIN URL ===",
			zap.String("email", user.Email),
			zap.String("login_url", loginURL))
	}

	metrics.LoginRequests.WithLabelValues("success").Inc()
	logger.Info("Login token issued",
		zap.String("user_id", user.ID.String()),
		zap.Duration("duration", time.Since(start)))

	return nil
}

// VerifyLogin exchanges a login token for a session. It returns the session
// descriptor and the signed session token destined for the cookie.
func (s *AuthService) VerifyLogin(ctx context.Context, token string) (*models.UserSession, string, error) {
	claims, err := s.tokenManager.ValidateToken(token, jwt.PurposeLogin)
	if err != nil {
		logger.Warn("Login verification failed", zap.Error(err))
		return nil, "", ErrInvalidLoginToken
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, "", ErrInvalidLoginToken
	}

	// Reload so a deactivation between request and verify still locks out.
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, "", ErrUserNotFound
	}
	if !user.IsActive {
		return nil, "", ErrUserInactive
	}

	ttl := time.Duration(s.config.Session.SessionTTLHours) * time.Hour
	sessionToken, err := s.tokenManager.GenerateToken(
		user.ID.String(), user.Email, user.Name, string(user.Role), jwt.PurposeSession, ttl)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate session token: %w", err)
	}

	now := time.Now()
	session := &models.UserSession{
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		ExpiresAt: now.Add(ttl).Unix(),
		IssuedAt:  now.Unix(),
	}

	logger.Info("Session created",
		zap.String("user_id", user.ID.String()),
		zap.String("role", string(user.Role)))

	return session, sessionToken, nil
}

// GetTokenManager exposes the token manager for the session middleware
func (s *AuthService) GetTokenManager() *jwt.TokenManager {
	return s.tokenManager
}

// GetSessionTTL returns the session lifetime in seconds for cookie Max-Age
func (s *AuthService) GetSessionTTL() int {
	return s.config.Session.SessionTTLHours * 3600
}

// GetCookieDomain returns the configured session cookie domain
func (s *AuthService) GetCookieDomain() string {
	return s.config.Session.CookieDomain
}

// GetCookieSecure reports whether the session cookie requires HTTPS
func (s *AuthService) GetCookieSecure() bool {
	return s.config.Session.CookieSecure
}
