package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/tutorlink/tutorlink-api/internal/repository"
	"github.com/tutorlink/tutorlink-api/pkg/logger"
	"github.com/tutorlink/tutorlink-api/pkg/metrics"
	"go.uber.org/zap"
)

// RatingService recomputes a mentor's aggregate rating from the full set of
// completed, rated requests. Callers treat recompute failures as best-effort:
// the feedback write that triggered the recompute has already succeeded.
type RatingService struct {
	requestRepo repository.HelpRequestStore
	userRepo    repository.UserStore
}

// NewRatingService creates a new RatingService
func NewRatingService(requestRepo repository.HelpRequestStore, userRepo repository.UserStore) *RatingService {
	return &RatingService{
		requestRepo: requestRepo,
		userRepo:    userRepo,
	}
}

// Recompute recalculates the mentor's average rating across all completed
// requests carrying a student rating and stores it rounded to one decimal
// place (half away from zero). A mentor with no rated completions keeps the
// current stored value untouched.
func (s *RatingService) Recompute(ctx context.Context, mentorID uuid.UUID) error {
	start := time.Now()

	ratings, err := s.requestRepo.CompletedRatings(ctx, mentorID)
	if err != nil {
		metrics.RatingRecomputes.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to load completed ratings: %w", err)
	}

	if len(ratings) == 0 {
		metrics.RatingRecomputes.WithLabelValues("skipped").Inc()
		logger.Debug("No rated completions for mentor, skipping recompute",
			zap.String("mentor_id", mentorID.String()))
		return nil
	}

	sum := 0
	for _, r := range ratings {
		sum += r
	}
	avg := float64(sum) / float64(len(ratings))
	rounded := math.Floor(avg*10+0.5) / 10

	if err := s.userRepo.UpdateMentorRating(ctx, mentorID, rounded, len(ratings)); err != nil {
		metrics.RatingRecomputes.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to store mentor rating: %w", err)
	}

	metrics.RatingRecomputes.WithLabelValues("success").Inc()
	logger.Info("Mentor rating recomputed",
		zap.String("mentor_id", mentorID.String()),
		zap.Float64("rating", rounded),
		zap.Int("rated_sessions", len(ratings)),
		zap.Duration("duration", time.Since(start)))

	return nil
}
