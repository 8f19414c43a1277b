package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/tutorlink/tutorlink-api/internal/models"
	"github.com/tutorlink/tutorlink-api/pkg/logger"
	"github.com/tutorlink/tutorlink-api/pkg/metrics"
	"go.uber.org/zap"
)

const (
	subjectKeyPrefix = "mentors:subject:"
	cacheCheckPeriod = 1 * time.Minute
)

// MentorFetcher loads the active mentors for a subject from the user directory
type MentorFetcher func(ctx context.Context, subject string) ([]*models.User, error)

// MentorCache caches notification-targeting lookups (active mentors per
// subject) with a TTL. A stale entry only delays a mentor seeing a new
// request notification, so short TTLs are fine.
type MentorCache struct {
	cache   *gocache.Cache
	fetcher MentorFetcher
	ttl     time.Duration
}

// NewMentorCache creates a new mentor targeting cache
func NewMentorCache(fetcher MentorFetcher, ttlSeconds int) *MentorCache {
	ttl := time.Duration(ttlSeconds) * time.Second

	return &MentorCache{
		cache:   gocache.New(ttl, cacheCheckPeriod),
		fetcher: fetcher,
		ttl:     ttl,
	}
}

// GetBySubject returns the active mentors for a subject, fetching through to
// the user directory on a miss.
func (mc *MentorCache) GetBySubject(ctx context.Context, subject string) ([]*models.User, error) {
	key := subjectKeyPrefix + subject

	if data, found := mc.cache.Get(key); found {
		metrics.CacheHits.WithLabelValues("mentors_by_subject").Inc()
		if mentors, ok := data.([]*models.User); ok {
			return mentors, nil
		}
	}

	metrics.CacheMisses.WithLabelValues("mentors_by_subject").Inc()

	mentors, err := mc.fetcher(ctx, subject)
	if err != nil {
		return nil, err
	}

	mc.cache.Set(key, mentors, mc.ttl)
	logger.Debug("Mentor cache refreshed",
		zap.String("subject", subject),
		zap.Int("count", len(mentors)))

	return mentors, nil
}

// Invalidate drops the cached entry for a subject
func (mc *MentorCache) Invalidate(subject string) {
	mc.cache.Delete(subjectKeyPrefix + subject)
}
