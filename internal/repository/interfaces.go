package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/tutorlink/tutorlink-api/internal/models"
)

// HelpRequestStore defines help request data access. Services depend on this
// interface so tests can substitute in-memory fakes.
type HelpRequestStore interface {
	Create(ctx context.Context, req *models.HelpRequest) error
	AddAttachment(ctx context.Context, requestID uuid.UUID, attachment *models.Attachment) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.HelpRequest, error)
	ListByStudent(ctx context.Context, studentID uuid.UUID, status *models.RequestStatus, limit, offset int) ([]*models.HelpRequest, error)
	CountByStudent(ctx context.Context, studentID uuid.UUID, status *models.RequestStatus) (int, error)
	ListAvailable(ctx context.Context, filter models.AvailableFilter, limit, offset int) ([]*models.HelpRequest, error)
	CountAvailable(ctx context.Context, filter models.AvailableFilter) (int, error)
	ListHistory(ctx context.Context, userID uuid.UUID, role models.UserRole, status *models.RequestStatus, limit, offset int) ([]*models.HelpRequest, error)
	CountHistory(ctx context.Context, userID uuid.UUID, role models.UserRole, status *models.RequestStatus) (int, error)
	Accept(ctx context.Context, id, mentorID uuid.UUID) (bool, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.RequestStatus, startSession, stampEnd bool) error
	UpdateStudentFeedback(ctx context.Context, id uuid.UUID, rating *int, feedback *string) error
	UpdateMentorFeedback(ctx context.Context, id uuid.UUID, mentorNotes, sessionNotes *string) error
	CompletedRatings(ctx context.Context, mentorID uuid.UUID) ([]int, error)
}

// UserStore defines the user directory access the lifecycle engine needs
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	FindActiveMentorsBySubject(ctx context.Context, subject string) ([]*models.User, error)
	UpdateMentorRating(ctx context.Context, mentorID uuid.UUID, rating float64, totalSessions int) error
}
