package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/tutorlink/tutorlink-api/internal/models"
	"github.com/tutorlink/tutorlink-api/internal/repository"
	"github.com/tutorlink/tutorlink-api/pkg/logger"
	"github.com/tutorlink/tutorlink-api/pkg/metrics"
	"github.com/tutorlink/tutorlink-api/pkg/storage"
	"go.uber.org/zap"
)

var (
	ErrRequestNotFound         = errors.New("help request not found")
	ErrAccessDenied            = errors.New("access denied")
	ErrInvalidSubject          = errors.New("unknown subject")
	ErrInvalidQuestionText     = errors.New("question text must be between 10 and 2000 characters")
	ErrInvalidSessionDuration  = errors.New("unsupported session duration")
	ErrInvalidUrgency          = errors.New("unknown urgency level")
	ErrRequestAlreadyTaken     = errors.New("request already taken by another mentor")
	ErrRequestTerminal         = errors.New("request is in a terminal status")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrInvalidHistoryStatus    = errors.New("history filter accepts only terminal statuses")
	ErrMentorsOnly             = errors.New("operation restricted to mentors")
	ErrOwnRequest              = errors.New("cannot accept an own request")
	ErrFeedbackEmpty           = errors.New("feedback payload carries no fields for this role")
)

// AttachmentUpload is a validated multipart file ready for storage
type AttachmentUpload struct {
	File *multipart.FileHeader
	Data []byte
	Mime string
}

// HelpRequestService implements the help request lifecycle: submission,
// listing, the accept handshake, status progression and feedback.
type HelpRequestService struct {
	requestRepo   repository.HelpRequestStore
	userRepo      repository.UserStore
	objectStorage *storage.ObjectStorage
	notifications *NotificationService
	ratings       *RatingService
}

// NewHelpRequestService creates a new HelpRequestService. objectStorage and
// notifications may be nil when the deployment runs without those systems.
func NewHelpRequestService(
	requestRepo repository.HelpRequestStore,
	userRepo repository.UserStore,
	objectStorage *storage.ObjectStorage,
	notifications *NotificationService,
	ratings *RatingService,
) *HelpRequestService {
	return &HelpRequestService{
		requestRepo:   requestRepo,
		userRepo:      userRepo,
		objectStorage: objectStorage,
		notifications: notifications,
		ratings:       ratings,
	}
}

// Submit creates a new help request for the student. The request row is the
// source of truth: attachment uploads and mentor notifications run after the
// successful insert and never fail the submission.
func (s *HelpRequestService) Submit(ctx context.Context, session *models.UserSession, payload *models.SubmitHelpRequest, attachments []AttachmentUpload) (*models.HelpRequest, error) {
	start := time.Now()

	questionText := models.NormalizeQuestionText(payload.QuestionText)
	// Length bounds count characters, not bytes
	if length := utf8.RuneCountInString(questionText); length < models.MinQuestionLength || length > models.MaxQuestionLength {
		metrics.HelpRequestSubmissions.WithLabelValues("invalid", payload.Subject).Inc()
		return nil, ErrInvalidQuestionText
	}
	if !models.IsValidSubject(payload.Subject) {
		metrics.HelpRequestSubmissions.WithLabelValues("invalid", payload.Subject).Inc()
		return nil, ErrInvalidSubject
	}

	urgency := payload.UrgencyLevel
	if urgency == "" {
		urgency = models.UrgencyMedium
	}
	if !models.IsValidUrgency(urgency) {
		metrics.HelpRequestSubmissions.WithLabelValues("invalid", payload.Subject).Inc()
		return nil, ErrInvalidUrgency
	}

	duration := payload.SessionDuration
	if duration == 0 {
		duration = models.DefaultSessionDuration
	}
	if !models.IsValidSessionDuration(duration) {
		metrics.HelpRequestSubmissions.WithLabelValues("invalid", payload.Subject).Inc()
		return nil, ErrInvalidSessionDuration
	}

	tags := payload.Tags
	if tags == nil {
		tags = []string{}
	}

	request := &models.HelpRequest{
		ID:              uuid.New(),
		StudentID:       session.UserID,
		StudentName:     session.Name,
		Subject:         payload.Subject,
		QuestionText:    questionText,
		Attachments:     []models.Attachment{},
		SessionDuration: duration,
		UrgencyLevel:    urgency,
		Priority:        models.PriorityForUrgency(urgency),
		Status:          models.StatusPending,
		Tags:            tags,
	}

	if err := s.requestRepo.Create(ctx, request); err != nil {
		metrics.HelpRequestSubmissions.WithLabelValues("error", payload.Subject).Inc()
		logger.Error("Failed to create help request",
			zap.String("student_id", session.UserID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to create help request: %w", err)
	}

	s.uploadAttachments(ctx, request, attachments)

	if s.notifications != nil {
		// Fire-and-forget fan-out; the submission response never waits on it.
		go s.notifications.NotifyNewRequest(context.WithoutCancel(ctx), request)
	}

	metrics.HelpRequestSubmissions.WithLabelValues("success", request.Subject).Inc()
	logger.Info("Help request submitted",
		zap.String("request_id", request.ID.String()),
		zap.String("student_id", session.UserID.String()),
		zap.String("subject", request.Subject),
		zap.String("urgency", string(request.UrgencyLevel)),
		zap.Int("attachments", len(request.Attachments)),
		zap.Duration("duration", time.Since(start)))

	return request, nil
}

// uploadAttachments stores each validated file and records it on the request.
// A failed upload is logged and skipped; the request stands without it.
func (s *HelpRequestService) uploadAttachments(ctx context.Context, request *models.HelpRequest, attachments []AttachmentUpload) {
	if s.objectStorage == nil || len(attachments) == 0 {
		return
	}

	for _, upload := range attachments {
		attachmentID := uuid.New()
		storedName := fmt.Sprintf("%s%s", attachmentID.String(), filepath.Ext(upload.File.Filename))
		key := fmt.Sprintf("attachments/%s/%s", request.ID.String(), storedName)

		url, err := s.objectStorage.Upload(ctx, upload.Data, key, upload.Mime)
		if err != nil {
			metrics.AttachmentUploads.WithLabelValues("failed").Inc()
			logger.Error("Attachment upload failed",
				zap.String("request_id", request.ID.String()),
				zap.String("file_name", upload.File.Filename),
				zap.Error(err))
			continue
		}

		attachment := &models.Attachment{
			ID:           attachmentID,
			StoredName:   storedName,
			OriginalName: upload.File.Filename,
			URL:          url,
			MimeType:     upload.Mime,
			SizeBytes:    upload.File.Size,
		}

		if err := s.requestRepo.AddAttachment(ctx, request.ID, attachment); err != nil {
			metrics.AttachmentUploads.WithLabelValues("failed").Inc()
			logger.Error("Failed to record attachment",
				zap.String("request_id", request.ID.String()),
				zap.String("stored_name", storedName),
				zap.Error(err))
			continue
		}

		metrics.AttachmentUploads.WithLabelValues("success").Inc()
		request.Attachments = append(request.Attachments, *attachment)
	}
}

// GetByID returns a single request. Only the owning student, the assigned
// mentor, or an admin may read it.
func (s *HelpRequestService) GetByID(ctx context.Context, session *models.UserSession, id uuid.UUID) (*models.HelpRequest, error) {
	request, err := s.requestRepo.GetByID(ctx, id)
	if err != nil {
		return nil, ErrRequestNotFound
	}

	if !session.IsAdmin() && !request.IsParticipant(session.UserID) {
		logger.Warn("Access denied to help request",
			zap.String("request_id", id.String()),
			zap.String("user_id", session.UserID.String()))
		return nil, ErrAccessDenied
	}

	return request, nil
}

// ListMine returns the student's own requests, newest first
func (s *HelpRequestService) ListMine(ctx context.Context, session *models.UserSession, status *models.RequestStatus, page, limit int) (*models.HelpRequestList, error) {
	offset := (page - 1) * limit

	requests, err := s.requestRepo.ListByStudent(ctx, session.UserID, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	total, err := s.requestRepo.CountByStudent(ctx, session.UserID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to count requests: %w", err)
	}

	return buildList(requests, total, page, limit), nil
}

// ListAvailable returns unclaimed pending requests for mentors, highest
// priority first, newest first within a priority tier.
func (s *HelpRequestService) ListAvailable(ctx context.Context, session *models.UserSession, filter models.AvailableFilter, page, limit int) (*models.HelpRequestList, error) {
	if !session.IsMentor() && !session.IsAdmin() {
		return nil, ErrMentorsOnly
	}

	offset := (page - 1) * limit

	requests, err := s.requestRepo.ListAvailable(ctx, filter, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list available requests: %w", err)
	}
	total, err := s.requestRepo.CountAvailable(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count available requests: %w", err)
	}

	return buildList(requests, total, page, limit), nil
}

// ListHistory returns the caller's terminal requests: completions and
// cancellations they took part in as student or mentor.
func (s *HelpRequestService) ListHistory(ctx context.Context, session *models.UserSession, status *models.RequestStatus, page, limit int) (*models.HelpRequestList, error) {
	if status != nil && !status.IsTerminal() {
		return nil, ErrInvalidHistoryStatus
	}

	offset := (page - 1) * limit

	requests, err := s.requestRepo.ListHistory(ctx, session.UserID, session.Role, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	total, err := s.requestRepo.CountHistory(ctx, session.UserID, session.Role, status)
	if err != nil {
		return nil, fmt.Errorf("failed to count history: %w", err)
	}

	return buildList(requests, total, page, limit), nil
}

// Accept claims a pending request for the mentor. The claim is a single
// conditional update, so two mentors racing for the same request resolve to
// exactly one winner; the loser gets ErrRequestAlreadyTaken.
func (s *HelpRequestService) Accept(ctx context.Context, session *models.UserSession, id uuid.UUID) (*models.HelpRequest, error) {
	start := time.Now()

	if !session.IsMentor() {
		metrics.HelpRequestAccepts.WithLabelValues("forbidden").Inc()
		return nil, ErrMentorsOnly
	}

	claimed, err := s.requestRepo.Accept(ctx, id, session.UserID)
	if err != nil {
		metrics.HelpRequestAccepts.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to accept request: %w", err)
	}

	if !claimed {
		// Distinguish a missing request and a self-accept from one
		// already claimed.
		existing, getErr := s.requestRepo.GetByID(ctx, id)
		if getErr != nil {
			metrics.HelpRequestAccepts.WithLabelValues("not_found").Inc()
			return nil, ErrRequestNotFound
		}
		if existing.StudentID == session.UserID {
			metrics.HelpRequestAccepts.WithLabelValues("forbidden").Inc()
			return nil, ErrOwnRequest
		}
		metrics.HelpRequestAccepts.WithLabelValues("conflict").Inc()
		logger.Info("Accept lost to a concurrent claim",
			zap.String("request_id", id.String()),
			zap.String("mentor_id", session.UserID.String()))
		return nil, ErrRequestAlreadyTaken
	}

	request, err := s.requestRepo.GetByID(ctx, id)
	if err != nil {
		metrics.HelpRequestAccepts.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to reload accepted request: %w", err)
	}

	metrics.HelpRequestAccepts.WithLabelValues("success").Inc()
	logger.Info("Help request accepted",
		zap.String("request_id", id.String()),
		zap.String("mentor_id", session.UserID.String()),
		zap.Duration("duration", time.Since(start)))

	return request, nil
}

// UpdateStatus moves a request through its lifecycle. Only the assigned
// participants may act (admins read but never progress), terminal statuses
// are frozen, and the transition graph is pending/accepted/in-progress
// forward plus cancellation from any live state.
func (s *HelpRequestService) UpdateStatus(ctx context.Context, session *models.UserSession, id uuid.UUID, newStatus models.RequestStatus) (*models.HelpRequest, error) {
	request, err := s.GetByID(ctx, session, id)
	if err != nil {
		return nil, err
	}

	if !request.IsParticipant(session.UserID) {
		return nil, ErrAccessDenied
	}

	if request.Status.IsTerminal() {
		metrics.HelpRequestStatusUpdates.WithLabelValues(string(request.Status), string(newStatus)).Inc()
		return nil, ErrRequestTerminal
	}

	if !canTransition(request.Status, newStatus) {
		logger.Warn("Invalid status transition",
			zap.String("request_id", id.String()),
			zap.String("from", string(request.Status)),
			zap.String("to", string(newStatus)))
		return nil, ErrInvalidStatusTransition
	}

	startSession := newStatus == models.StatusInProgress
	stampEnd := newStatus == models.StatusCompleted

	if err := s.requestRepo.UpdateStatus(ctx, id, newStatus, startSession, stampEnd); err != nil {
		return nil, fmt.Errorf("failed to update status: %w", err)
	}

	metrics.HelpRequestStatusUpdates.WithLabelValues(string(request.Status), string(newStatus)).Inc()
	logger.Info("Help request status updated",
		zap.String("request_id", id.String()),
		zap.String("user_id", session.UserID.String()),
		zap.String("from", string(request.Status)),
		zap.String("to", string(newStatus)))

	updated, err := s.requestRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload request: %w", err)
	}

	if newStatus == models.StatusCompleted && s.notifications != nil {
		go s.notifications.NotifySessionFinished(context.WithoutCancel(ctx), updated)
	}

	return updated, nil
}

// canTransition encodes the live-status transition graph. Terminal statuses
// are rejected before this is consulted.
func canTransition(from, to models.RequestStatus) bool {
	if to == models.StatusCancelled {
		return true
	}
	switch from {
	case models.StatusPending:
		// pending moves to accepted only via the accept handshake
		return false
	case models.StatusAccepted:
		// completing straight from accepted is allowed, in-progress is optional
		return to == models.StatusInProgress || to == models.StatusCompleted
	case models.StatusInProgress:
		return to == models.StatusCompleted
	}
	return false
}

// SubmitFeedback records role-scoped feedback. Students write rating and
// feedback, mentors write mentorNotes and sessionNotes; fields outside the
// caller's role are ignored. When a request ends up holding both a rating and
// mentor notes while still live, it completes implicitly.
func (s *HelpRequestService) SubmitFeedback(ctx context.Context, session *models.UserSession, id uuid.UUID, payload *models.SubmitFeedbackRequest) (*models.HelpRequest, error) {
	request, err := s.GetByID(ctx, session, id)
	if err != nil {
		return nil, err
	}

	isStudent := request.StudentID == session.UserID
	isMentor := request.MentorID != nil && *request.MentorID == session.UserID

	role := "student"
	if isMentor {
		role = "mentor"
	}

	switch {
	case isStudent:
		if payload.Rating == nil && payload.Feedback == nil {
			metrics.FeedbackSubmissions.WithLabelValues(role, "empty").Inc()
			return nil, ErrFeedbackEmpty
		}
		if err := s.requestRepo.UpdateStudentFeedback(ctx, id, payload.Rating, payload.Feedback); err != nil {
			metrics.FeedbackSubmissions.WithLabelValues(role, "error").Inc()
			return nil, fmt.Errorf("failed to save student feedback: %w", err)
		}
	case isMentor:
		if payload.MentorNotes == nil && payload.SessionNotes == nil {
			metrics.FeedbackSubmissions.WithLabelValues(role, "empty").Inc()
			return nil, ErrFeedbackEmpty
		}
		if err := s.requestRepo.UpdateMentorFeedback(ctx, id, payload.MentorNotes, payload.SessionNotes); err != nil {
			metrics.FeedbackSubmissions.WithLabelValues(role, "error").Inc()
			return nil, fmt.Errorf("failed to save mentor feedback: %w", err)
		}
	default:
		// Admins can read requests but have no feedback fields of their own.
		metrics.FeedbackSubmissions.WithLabelValues("admin", "forbidden").Inc()
		return nil, ErrAccessDenied
	}

	request, err = s.requestRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload request: %w", err)
	}

	// Implicit completion: both sides have spoken and the request is live.
	if !request.Status.IsTerminal() && request.Rating != nil && request.MentorNotes != nil {
		if err := s.requestRepo.UpdateStatus(ctx, id, models.StatusCompleted, false, true); err != nil {
			return nil, fmt.Errorf("failed to complete request: %w", err)
		}
		metrics.HelpRequestStatusUpdates.WithLabelValues(string(request.Status), string(models.StatusCompleted)).Inc()
		logger.Info("Help request completed implicitly via feedback",
			zap.String("request_id", id.String()))

		request, err = s.requestRepo.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to reload request: %w", err)
		}

		if s.notifications != nil {
			go s.notifications.NotifySessionFinished(context.WithoutCancel(ctx), request)
		}
	}

	// Recompute the mentor's aggregate when a student rating is on file.
	// Failures are logged, never surfaced: the feedback itself is saved.
	if isStudent && payload.Rating != nil && request.MentorID != nil && s.ratings != nil {
		if err := s.ratings.Recompute(ctx, *request.MentorID); err != nil {
			logger.Error("Mentor rating recompute failed",
				zap.String("request_id", id.String()),
				zap.String("mentor_id", request.MentorID.String()),
				zap.Error(err))
		}
	}

	metrics.FeedbackSubmissions.WithLabelValues(role, "success").Inc()
	logger.Info("Feedback submitted",
		zap.String("request_id", id.String()),
		zap.String("role", role),
		zap.String("status", string(request.Status)))

	return request, nil
}

// buildList assembles the standard paginated response shape
func buildList(requests []*models.HelpRequest, total, page, limit int) *models.HelpRequestList {
	items := make([]models.HelpRequest, 0, len(requests))
	for _, r := range requests {
		items = append(items, *r)
	}

	return &models.HelpRequestList{
		Requests: items,
		Pagination: models.Pagination{
			Total: total,
			Page:  page,
			Limit: limit,
			Pages: models.PageCount(total, limit),
		},
	}
}
