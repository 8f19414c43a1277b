package services

import (
	"context"
	"time"

	"github.com/tutorlink/tutorlink-api/internal/cache"
	"github.com/tutorlink/tutorlink-api/internal/models"
	"github.com/tutorlink/tutorlink-api/internal/repository"
	"github.com/tutorlink/tutorlink-api/pkg/logger"
	"github.com/tutorlink/tutorlink-api/pkg/metrics"
	"github.com/tutorlink/tutorlink-api/pkg/trigger"
	"go.uber.org/zap"
)

// maxOpenRequestsDigest caps the open-requests digest embedded in each
// notification payload.
const maxOpenRequestsDigest = 20

// NotificationService fans out new-request notifications to mentors whose
// specialties cover the request subject and fires the session-finished
// trigger on completion. Dispatch is sequential and best-effort: one
// mentor's failed delivery never blocks the rest.
type NotificationService struct {
	mentorCache       *cache.MentorCache
	dispatcher        *trigger.WebhookDispatcher
	sessionDispatcher *trigger.WebhookDispatcher
	requestRepo       repository.HelpRequestStore
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(mentorCache *cache.MentorCache, dispatcher, sessionDispatcher *trigger.WebhookDispatcher, requestRepo repository.HelpRequestStore) *NotificationService {
	return &NotificationService{
		mentorCache:       mentorCache,
		dispatcher:        dispatcher,
		sessionDispatcher: sessionDispatcher,
		requestRepo:       requestRepo,
	}
}

// NotifyNewRequest notifies every active mentor specialized in the request's
// subject. Each payload carries a digest of currently open requests in that
// subject so the mentor lands on an informed picture, not a single item.
func (s *NotificationService) NotifyNewRequest(ctx context.Context, request *models.HelpRequest) {
	start := time.Now()

	mentors, err := s.mentorCache.GetBySubject(ctx, request.Subject)
	if err != nil {
		metrics.NotificationDispatches.WithLabelValues("targeting_failed").Inc()
		logger.Error("Failed to resolve notification targets",
			zap.String("request_id", request.ID.String()),
			zap.String("subject", request.Subject),
			zap.Error(err))
		return
	}

	if len(mentors) == 0 {
		logger.Info("No active mentors for subject, skipping notification",
			zap.String("request_id", request.ID.String()),
			zap.String("subject", request.Subject))
		return
	}

	digest := s.openRequestsDigest(ctx, request.Subject)

	sent := 0
	for _, mentor := range mentors {
		notification := &models.Notification{
			Type:            models.NotificationTypeNewRequest,
			MentorID:        mentor.ID,
			MentorEmail:     mentor.Email,
			RequestID:       request.ID,
			Subject:         request.Subject,
			UrgencyLevel:    request.UrgencyLevel,
			SessionDuration: request.SessionDuration,
			OpenRequests:    digest,
			CreatedAt:       time.Now().UTC(),
		}

		if err := s.dispatcher.Dispatch(ctx, notification); err != nil {
			metrics.NotificationDispatches.WithLabelValues("failed").Inc()
			logger.Warn("Mentor notification failed",
				zap.String("request_id", request.ID.String()),
				zap.String("mentor_id", mentor.ID.String()),
				zap.Error(err))
			continue
		}

		metrics.NotificationDispatches.WithLabelValues("success").Inc()
		sent++
	}

	logger.Info("New request notifications dispatched",
		zap.String("request_id", request.ID.String()),
		zap.String("subject", request.Subject),
		zap.Int("targets", len(mentors)),
		zap.Int("sent", sent),
		zap.Duration("duration", time.Since(start)))
}

// NotifySessionFinished posts the session-finished event for a completed
// request. Like all notification traffic it is best-effort and never
// surfaces to the caller.
func (s *NotificationService) NotifySessionFinished(ctx context.Context, request *models.HelpRequest) {
	event := &models.SessionFinishedEvent{
		Type:            models.NotificationTypeSessionFinished,
		RequestID:       request.ID,
		StudentID:       request.StudentID,
		MentorID:        request.MentorID,
		Subject:         request.Subject,
		SessionDuration: request.SessionDuration,
		SessionEndTime:  request.SessionEndTime,
		FinishedAt:      time.Now().UTC(),
	}

	if err := s.sessionDispatcher.Dispatch(ctx, event); err != nil {
		metrics.NotificationDispatches.WithLabelValues("failed").Inc()
		logger.Warn("Session finished notification failed",
			zap.String("request_id", request.ID.String()),
			zap.Error(err))
		return
	}

	metrics.NotificationDispatches.WithLabelValues("success").Inc()
	logger.Info("Session finished notification dispatched",
		zap.String("request_id", request.ID.String()))
}

// openRequestsDigest builds the capped list of open requests for the subject.
// Digest problems degrade to an empty list rather than dropping notifications.
func (s *NotificationService) openRequestsDigest(ctx context.Context, subject string) []models.OpenRequestSummary {
	open, err := s.requestRepo.ListAvailable(ctx, models.AvailableFilter{Subject: subject}, maxOpenRequestsDigest, 0)
	if err != nil {
		logger.Warn("Failed to build open requests digest",
			zap.String("subject", subject),
			zap.Error(err))
		return []models.OpenRequestSummary{}
	}

	digest := make([]models.OpenRequestSummary, 0, len(open))
	for _, r := range open {
		digest = append(digest, models.OpenRequestSummary{
			ID:           r.ID,
			Subject:      r.Subject,
			UrgencyLevel: r.UrgencyLevel,
			Priority:     r.Priority,
			CreatedAt:    r.CreatedAt,
		})
	}
	return digest
}
