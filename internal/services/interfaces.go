package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/tutorlink/tutorlink-api/internal/models"
	"github.com/tutorlink/tutorlink-api/pkg/jwt"
)

// HelpRequestServiceInterface defines the help request lifecycle operations
type HelpRequestServiceInterface interface {
	Submit(ctx context.Context, session *models.UserSession, payload *models.SubmitHelpRequest, attachments []AttachmentUpload) (*models.HelpRequest, error)
	GetByID(ctx context.Context, session *models.UserSession, id uuid.UUID) (*models.HelpRequest, error)
	ListMine(ctx context.Context, session *models.UserSession, status *models.RequestStatus, page, limit int) (*models.HelpRequestList, error)
	ListAvailable(ctx context.Context, session *models.UserSession, filter models.AvailableFilter, page, limit int) (*models.HelpRequestList, error)
	ListHistory(ctx context.Context, session *models.UserSession, status *models.RequestStatus, page, limit int) (*models.HelpRequestList, error)
	Accept(ctx context.Context, session *models.UserSession, id uuid.UUID) (*models.HelpRequest, error)
	UpdateStatus(ctx context.Context, session *models.UserSession, id uuid.UUID, newStatus models.RequestStatus) (*models.HelpRequest, error)
	SubmitFeedback(ctx context.Context, session *models.UserSession, id uuid.UUID, payload *models.SubmitFeedbackRequest) (*models.HelpRequest, error)
}

// AuthServiceInterface defines the passwordless authentication flow
type AuthServiceInterface interface {
	RequestLogin(ctx context.Context, email string) error
	VerifyLogin(ctx context.Context, token string) (*models.UserSession, string, error)
	GetTokenManager() *jwt.TokenManager
	GetSessionTTL() int
	GetCookieDomain() string
	GetCookieSecure() bool
}

// RatingServiceInterface defines the mentor rating aggregation
type RatingServiceInterface interface {
	Recompute(ctx context.Context, mentorID uuid.UUID) error
}

// Ensure services implement their interfaces
var _ HelpRequestServiceInterface = (*HelpRequestService)(nil)
var _ AuthServiceInterface = (*AuthService)(nil)
var _ RatingServiceInterface = (*RatingService)(nil)
