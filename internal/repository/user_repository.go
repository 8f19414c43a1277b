package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tutorlink/tutorlink-api/internal/models"
	"github.com/tutorlink/tutorlink-api/pkg/apperrors"
	"github.com/tutorlink/tutorlink-api/pkg/logger"
	"github.com/tutorlink/tutorlink-api/pkg/metrics"
	"go.uber.org/zap"
)

const userColumns = `
	id, name, email, role, subjects, rating, total_sessions, is_active,
	created_at, updated_at`

// UserRepository handles user directory access
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new user repository
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{
		pool: pool,
	}
}

var _ UserStore = (*UserRepository)(nil)

// GetByID returns a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	start := time.Now()
	operation := "getUserByID"

	row := r.pool.QueryRow(ctx, "SELECT"+userColumns+" FROM users WHERE id = $1", id)
	user, err := models.ScanUser(row)

	duration := metrics.MeasureDuration(start)

	if errors.Is(err, pgx.ErrNoRows) {
		recordMetrics(operation, "not_found", duration)
		return nil, apperrors.NotFoundError("user")
	}
	if err != nil {
		recordMetrics(operation, "error", duration)
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	recordMetrics(operation, "success", duration)
	return user, nil
}

// GetByEmail returns a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	start := time.Now()
	operation := "getUserByEmail"

	row := r.pool.QueryRow(ctx, "SELECT"+userColumns+" FROM users WHERE email = $1", email)
	user, err := models.ScanUser(row)

	duration := metrics.MeasureDuration(start)

	if errors.Is(err, pgx.ErrNoRows) {
		recordMetrics(operation, "not_found", duration)
		return nil, apperrors.NotFoundError("user")
	}
	if err != nil {
		recordMetrics(operation, "error", duration)
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	recordMetrics(operation, "success", duration)
	return user, nil
}

// FindActiveMentorsBySubject returns active mentors whose specialty set
// contains the subject. Used for notification targeting on new requests.
func (r *UserRepository) FindActiveMentorsBySubject(ctx context.Context, subject string) ([]*models.User, error) {
	start := time.Now()
	operation := "findActiveMentorsBySubject"

	query := "SELECT" + userColumns + `
		FROM users
		WHERE role = 'mentor' AND is_active = TRUE AND $1 = ANY(subjects)
	`

	rows, err := r.pool.Query(ctx, query, subject)
	if err != nil {
		recordMetrics(operation, "error", metrics.MeasureDuration(start))
		return nil, fmt.Errorf("failed to query mentors: %w", err)
	}

	mentors, err := models.ScanUsers(rows)
	duration := metrics.MeasureDuration(start)
	if err != nil {
		recordMetrics(operation, "error", duration)
		return nil, err
	}

	recordMetrics(operation, "success", duration)
	logger.LogAPICall("postgres", operation, "success", duration,
		zap.String("subject", subject),
		zap.Int("count", len(mentors)))

	return mentors, nil
}

// UpdateMentorRating overwrites a mentor's aggregate rating and session
// count in a single write.
func (r *UserRepository) UpdateMentorRating(ctx context.Context, mentorID uuid.UUID, rating float64, totalSessions int) error {
	start := time.Now()
	operation := "updateMentorRating"

	query := `
		UPDATE users
		SET rating = $2, total_sessions = $3, updated_at = NOW()
		WHERE id = $1 AND role = 'mentor'
	`

	result, err := r.pool.Exec(ctx, query, mentorID, rating, totalSessions)
	duration := metrics.MeasureDuration(start)

	if err != nil {
		recordMetrics(operation, "error", duration)
		logger.LogAPICall("postgres", operation, "error", duration, zap.Error(err))
		return fmt.Errorf("failed to update mentor rating: %w", err)
	}

	if result.RowsAffected() == 0 {
		recordMetrics(operation, "not_found", duration)
		return apperrors.NotFoundError("mentor")
	}

	recordMetrics(operation, "success", duration)
	logger.LogAPICall("postgres", operation, "success", duration,
		zap.String("mentor_id", mentorID.String()),
		zap.Float64("rating", rating),
		zap.Int("total_sessions", totalSessions))

	return nil
}
