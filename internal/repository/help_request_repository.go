package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
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

// requestColumns is the select list consumed by models.ScanHelpRequest
const requestColumns = `
	hr.id, hr.student_id, s.name, hr.mentor_id, m.name,
	hr.subject, hr.question_text, hr.session_duration, hr.urgency_level,
	hr.priority, hr.status, hr.scheduled_at, hr.session_start_time,
	hr.session_end_time, hr.rating, hr.feedback, hr.mentor_notes,
	hr.session_notes, hr.tags, hr.created_at, hr.updated_at`

const requestFrom = `
	FROM help_requests hr
	JOIN users s ON s.id = hr.student_id
	LEFT JOIN users m ON m.id = hr.mentor_id`

// HelpRequestRepository handles help request data access
type HelpRequestRepository struct {
	pool *pgxpool.Pool
}

// NewHelpRequestRepository creates a new help request repository
func NewHelpRequestRepository(pool *pgxpool.Pool) *HelpRequestRepository {
	return &HelpRequestRepository{
		pool: pool,
	}
}

var _ HelpRequestStore = (*HelpRequestRepository)(nil)

func recordMetrics(operation, status string, duration float64) {
	metrics.DBRequestDuration.WithLabelValues(operation, status).Observe(duration)
	metrics.DBRequestTotal.WithLabelValues(operation, status).Inc()
}

// Create inserts a new help request
func (r *HelpRequestRepository) Create(ctx context.Context, req *models.HelpRequest) error {
	start := time.Now()
	operation := "createHelpRequest"

	query := `
		INSERT INTO help_requests (id, student_id, subject, question_text,
			session_duration, urgency_level, priority, status, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		req.ID,
		req.StudentID,
		req.Subject,
		req.QuestionText,
		req.SessionDuration,
		req.UrgencyLevel,
		req.Priority,
		req.Status,
		req.Tags,
	).Scan(&req.CreatedAt, &req.UpdatedAt)

	duration := metrics.MeasureDuration(start)

	if err != nil {
		recordMetrics(operation, "error", duration)
		logger.LogAPICall("postgres", operation, "error", duration, zap.Error(err))
		return fmt.Errorf("failed to create help request: %w", err)
	}

	recordMetrics(operation, "success", duration)
	logger.LogAPICall("postgres", operation, "success", duration,
		zap.String("request_id", req.ID.String()))

	return nil
}

// AddAttachment inserts a stored attachment row for a request
func (r *HelpRequestRepository) AddAttachment(ctx context.Context, requestID uuid.UUID, attachment *models.Attachment) error {
	start := time.Now()
	operation := "addAttachment"

	query := `
		INSERT INTO attachments (id, request_id, stored_name, original_name, url, mime_type, size_bytes, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7,
			(SELECT COALESCE(MAX(position), -1) + 1 FROM attachments WHERE request_id = $2))
	`

	_, err := r.pool.Exec(ctx, query,
		attachment.ID,
		requestID,
		attachment.StoredName,
		attachment.OriginalName,
		attachment.URL,
		attachment.MimeType,
		attachment.SizeBytes,
	)

	duration := metrics.MeasureDuration(start)

	if err != nil {
		recordMetrics(operation, "error", duration)
		logger.LogAPICall("postgres", operation, "error", duration, zap.Error(err))
		return fmt.Errorf("failed to add attachment: %w", err)
	}

	recordMetrics(operation, "success", duration)
	return nil
}

// GetByID returns a single request with party names and attachments
func (r *HelpRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.HelpRequest, error) {
	start := time.Now()
	operation := "getHelpRequestByID"

	query := "SELECT" + requestColumns + requestFrom + " WHERE hr.id = $1"

	row := r.pool.QueryRow(ctx, query, id)
	req, err := models.ScanHelpRequest(row)

	duration := metrics.MeasureDuration(start)

	if errors.Is(err, pgx.ErrNoRows) {
		recordMetrics(operation, "not_found", duration)
		return nil, apperrors.NotFoundError("help request")
	}
	if err != nil {
		recordMetrics(operation, "error", duration)
		return nil, fmt.Errorf("failed to get help request: %w", err)
	}

	attachments, err := r.listAttachments(ctx, id)
	if err != nil {
		recordMetrics(operation, "error", duration)
		return nil, err
	}
	req.Attachments = attachments

	recordMetrics(operation, "success", duration)
	return req, nil
}

func (r *HelpRequestRepository) listAttachments(ctx context.Context, requestID uuid.UUID) ([]models.Attachment, error) {
	query := `
		SELECT id, stored_name, original_name, url, mime_type, size_bytes
		FROM attachments
		WHERE request_id = $1
		ORDER BY position ASC
	`

	rows, err := r.pool.Query(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attachments: %w", err)
	}
	defer rows.Close()

	attachments := []models.Attachment{}
	for rows.Next() {
		var a models.Attachment
		if err := rows.Scan(&a.ID, &a.StoredName, &a.OriginalName, &a.URL, &a.MimeType, &a.SizeBytes); err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		attachments = append(attachments, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return attachments, nil
}

// ListByStudent returns a student's own requests, newest first
func (r *HelpRequestRepository) ListByStudent(ctx context.Context, studentID uuid.UUID, status *models.RequestStatus, limit, offset int) ([]*models.HelpRequest, error) {
	start := time.Now()
	operation := "listRequestsByStudent"

	where := "WHERE hr.student_id = $1"
	args := []any{studentID}
	if status != nil {
		where += " AND hr.status = $2"
		args = append(args, *status)
	}

	query := fmt.Sprintf("SELECT%s%s %s ORDER BY hr.created_at DESC LIMIT %d OFFSET %d",
		requestColumns, requestFrom, where, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		recordMetrics(operation, "error", metrics.MeasureDuration(start))
		return nil, fmt.Errorf("failed to query student requests: %w", err)
	}

	requests, err := models.ScanHelpRequests(rows)
	duration := metrics.MeasureDuration(start)
	if err != nil {
		recordMetrics(operation, "error", duration)
		return nil, err
	}

	recordMetrics(operation, "success", duration)
	return requests, nil
}

// CountByStudent counts a student's requests with the same predicate as ListByStudent
func (r *HelpRequestRepository) CountByStudent(ctx context.Context, studentID uuid.UUID, status *models.RequestStatus) (int, error) {
	where := "WHERE student_id = $1"
	args := []any{studentID}
	if status != nil {
		where += " AND status = $2"
		args = append(args, *status)
	}

	var total int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM help_requests "+where, args...).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to count student requests: %w", err)
	}
	return total, nil
}

// availableWhere builds the WHERE clause for the availability predicate:
// pending, unclaimed, plus any supplied exact-match filters.
func availableWhere(filter models.AvailableFilter) (string, []any) {
	clauses := []string{"hr.status = 'pending'", "hr.mentor_id IS NULL"}
	args := []any{}

	if filter.Subject != "" {
		args = append(args, filter.Subject)
		clauses = append(clauses, fmt.Sprintf("hr.subject = $%d", len(args)))
	}
	if filter.UrgencyLevel != "" {
		args = append(args, filter.UrgencyLevel)
		clauses = append(clauses, fmt.Sprintf("hr.urgency_level = $%d", len(args)))
	}
	if filter.SessionDuration != 0 {
		args = append(args, filter.SessionDuration)
		clauses = append(clauses, fmt.Sprintf("hr.session_duration = $%d", len(args)))
	}

	return "WHERE " + strings.Join(clauses, " AND "), args
}

// ListAvailable returns pending unclaimed requests a mentor can accept,
// highest priority first, newest first within a priority.
func (r *HelpRequestRepository) ListAvailable(ctx context.Context, filter models.AvailableFilter, limit, offset int) ([]*models.HelpRequest, error) {
	start := time.Now()
	operation := "listAvailableRequests"

	where, args := availableWhere(filter)
	query := fmt.Sprintf("SELECT%s%s %s ORDER BY hr.priority DESC, hr.created_at DESC LIMIT %d OFFSET %d",
		requestColumns, requestFrom, where, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		recordMetrics(operation, "error", metrics.MeasureDuration(start))
		return nil, fmt.Errorf("failed to query available requests: %w", err)
	}

	requests, err := models.ScanHelpRequests(rows)
	duration := metrics.MeasureDuration(start)
	if err != nil {
		recordMetrics(operation, "error", duration)
		return nil, err
	}

	recordMetrics(operation, "success", duration)
	return requests, nil
}

// CountAvailable counts requests matching the same filtered predicate
func (r *HelpRequestRepository) CountAvailable(ctx context.Context, filter models.AvailableFilter) (int, error) {
	where, args := availableWhere(filter)
	// The availability predicate never references joined columns
	where = strings.ReplaceAll(where, "hr.", "")

	var total int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM help_requests "+where, args...).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to count available requests: %w", err)
	}
	return total, nil
}

func historyWhere(userID uuid.UUID, role models.UserRole, status *models.RequestStatus) (string, []any) {
	var where string
	if role == models.RoleMentor {
		where = "hr.mentor_id = $1"
	} else {
		where = "hr.student_id = $1"
	}
	args := []any{userID}

	if status != nil {
		args = append(args, *status)
		where += fmt.Sprintf(" AND hr.status = $%d", len(args))
	} else {
		where += " AND hr.status IN ('completed', 'cancelled')"
	}

	return "WHERE " + where, args
}

// ListHistory returns a user's terminal requests, role-aware, most recently
// updated first.
func (r *HelpRequestRepository) ListHistory(ctx context.Context, userID uuid.UUID, role models.UserRole, status *models.RequestStatus, limit, offset int) ([]*models.HelpRequest, error) {
	start := time.Now()
	operation := "listRequestHistory"

	where, args := historyWhere(userID, role, status)
	query := fmt.Sprintf("SELECT%s%s %s ORDER BY hr.updated_at DESC LIMIT %d OFFSET %d",
		requestColumns, requestFrom, where, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		recordMetrics(operation, "error", metrics.MeasureDuration(start))
		return nil, fmt.Errorf("failed to query request history: %w", err)
	}

	requests, err := models.ScanHelpRequests(rows)
	duration := metrics.MeasureDuration(start)
	if err != nil {
		recordMetrics(operation, "error", duration)
		return nil, err
	}

	recordMetrics(operation, "success", duration)
	return requests, nil
}

// CountHistory counts history rows with the same predicate as ListHistory
func (r *HelpRequestRepository) CountHistory(ctx context.Context, userID uuid.UUID, role models.UserRole, status *models.RequestStatus) (int, error) {
	where, args := historyWhere(userID, role, status)
	where = strings.ReplaceAll(where, "hr.", "")

	var total int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM help_requests "+where, args...).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to count request history: %w", err)
	}
	return total, nil
}

// Accept atomically claims a pending unclaimed request for a mentor.
// The conditional update is the authority on accept races: of two
// concurrent attempts only one matches the predicate and wins. A mentor
// never matches their own submission. Returns false when the request was
// already claimed, is no longer pending, or belongs to the caller.
func (r *HelpRequestRepository) Accept(ctx context.Context, id, mentorID uuid.UUID) (bool, error) {
	start := time.Now()
	operation := "acceptHelpRequest"

	query := `
		UPDATE help_requests
		SET mentor_id = $2, status = 'accepted', scheduled_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'pending' AND mentor_id IS NULL AND student_id <> $2
	`

	result, err := r.pool.Exec(ctx, query, id, mentorID)
	duration := metrics.MeasureDuration(start)

	if err != nil {
		recordMetrics(operation, "error", duration)
		logger.LogAPICall("postgres", operation, "error", duration, zap.Error(err))
		return false, fmt.Errorf("failed to accept help request: %w", err)
	}

	claimed := result.RowsAffected() > 0
	if claimed {
		recordMetrics(operation, "success", duration)
		logger.LogAPICall("postgres", operation, "success", duration,
			zap.String("request_id", id.String()),
			zap.String("mentor_id", mentorID.String()))
	} else {
		recordMetrics(operation, "conflict", duration)
	}

	return claimed, nil
}

// UpdateStatus updates the lifecycle status. startSession stamps
// session_start_time; stampEnd stamps session_end_time only if unset.
func (r *HelpRequestRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.RequestStatus, startSession, stampEnd bool) error {
	start := time.Now()
	operation := "updateRequestStatus"

	sets := []string{"status = $2", "updated_at = NOW()"}
	if startSession {
		sets = append(sets, "session_start_time = NOW()")
	}
	if stampEnd {
		sets = append(sets, "session_end_time = COALESCE(session_end_time, NOW())")
	}

	query := fmt.Sprintf("UPDATE help_requests SET %s WHERE id = $1", strings.Join(sets, ", "))

	result, err := r.pool.Exec(ctx, query, id, status)
	duration := metrics.MeasureDuration(start)

	if err != nil {
		recordMetrics(operation, "error", duration)
		logger.LogAPICall("postgres", operation, "error", duration, zap.Error(err))
		return fmt.Errorf("failed to update request status: %w", err)
	}

	if result.RowsAffected() == 0 {
		recordMetrics(operation, "not_found", duration)
		return apperrors.NotFoundError("help request")
	}

	recordMetrics(operation, "success", duration)
	logger.LogAPICall("postgres", operation, "success", duration,
		zap.String("request_id", id.String()),
		zap.String("new_status", string(status)))

	return nil
}

// UpdateStudentFeedback writes the student-owned feedback fields. Absent
// fields keep their stored values.
func (r *HelpRequestRepository) UpdateStudentFeedback(ctx context.Context, id uuid.UUID, rating *int, feedback *string) error {
	start := time.Now()
	operation := "updateStudentFeedback"

	query := `
		UPDATE help_requests
		SET rating = COALESCE($2, rating),
		    feedback = COALESCE($3, feedback),
		    updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id, rating, feedback)
	duration := metrics.MeasureDuration(start)

	if err != nil {
		recordMetrics(operation, "error", duration)
		return fmt.Errorf("failed to update student feedback: %w", err)
	}
	if result.RowsAffected() == 0 {
		recordMetrics(operation, "not_found", duration)
		return apperrors.NotFoundError("help request")
	}

	recordMetrics(operation, "success", duration)
	return nil
}

// UpdateMentorFeedback writes the mentor-owned feedback fields. Absent
// fields keep their stored values.
func (r *HelpRequestRepository) UpdateMentorFeedback(ctx context.Context, id uuid.UUID, mentorNotes, sessionNotes *string) error {
	start := time.Now()
	operation := "updateMentorFeedback"

	query := `
		UPDATE help_requests
		SET mentor_notes = COALESCE($2, mentor_notes),
		    session_notes = COALESCE($3, session_notes),
		    updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id, mentorNotes, sessionNotes)
	duration := metrics.MeasureDuration(start)

	if err != nil {
		recordMetrics(operation, "error", duration)
		return fmt.Errorf("failed to update mentor feedback: %w", err)
	}
	if result.RowsAffected() == 0 {
		recordMetrics(operation, "not_found", duration)
		return apperrors.NotFoundError("help request")
	}

	recordMetrics(operation, "success", duration)
	return nil
}

// CompletedRatings returns the ratings of all completed, rated sessions for
// a mentor. Input to the rating aggregator's full recompute.
func (r *HelpRequestRepository) CompletedRatings(ctx context.Context, mentorID uuid.UUID) ([]int, error) {
	start := time.Now()
	operation := "completedRatings"

	query := `
		SELECT rating FROM help_requests
		WHERE mentor_id = $1 AND status = 'completed' AND rating IS NOT NULL
	`

	rows, err := r.pool.Query(ctx, query, mentorID)
	if err != nil {
		recordMetrics(operation, "error", metrics.MeasureDuration(start))
		return nil, fmt.Errorf("failed to query completed ratings: %w", err)
	}
	defer rows.Close()

	ratings := []int{}
	for rows.Next() {
		var rating int
		if err := rows.Scan(&rating); err != nil {
			recordMetrics(operation, "error", metrics.MeasureDuration(start))
			return nil, fmt.Errorf("failed to scan rating: %w", err)
		}
		ratings = append(ratings, rating)
	}

	if err := rows.Err(); err != nil {
		recordMetrics(operation, "error", metrics.MeasureDuration(start))
		return nil, err
	}

	recordMetrics(operation, "success", metrics.MeasureDuration(start))
	return ratings, nil
}
