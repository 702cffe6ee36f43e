package job

import (
	"context"

	"github.com/maheshrc27/postpulse/internal/cache"
	"github.com/maheshrc27/postpulse/internal/models"
	"github.com/maheshrc27/postpulse/internal/repository"
	"github.com/rs/zerolog"
)

type RefreshEnqueuer interface {
	EnqueueRefresh(ctx context.Context, userID int64, limit int) error
}

// EngagementRefreshJob fans periodic engagement refreshes out to the queue,
// one task per connected user.
type EngagementRefreshJob struct {
	sr     repository.SocialAccountRepository
	queue  RefreshEnqueuer
	limit  int
	logger zerolog.Logger
}

func NewEngagementRefreshJob(sr repository.SocialAccountRepository, queue RefreshEnqueuer, limit int, logger zerolog.Logger) *EngagementRefreshJob {
	return &EngagementRefreshJob{
		sr:     sr,
		queue:  queue,
		limit:  limit,
		logger: logger.With().Str("job", "engagement_refresh").Logger(),
	}
}

func (j *EngagementRefreshJob) EnqueueRefreshes() {
	ctx := context.Background()

	userIDs, err := j.sr.ListUserIDs(ctx, models.PlatformX)
	if err != nil {
		j.logger.Error().Err(err).Msg("list connected users")
		return
	}

	queued := 0
	for _, id := range userIDs {
		if err := j.queue.EnqueueRefresh(ctx, id, j.limit); err != nil {
			j.logger.Warn().Err(err).Int64("user_id", id).Msg("enqueue engagement refresh")
			continue
		}
		queued++
	}
	j.logger.Info().Int("users", len(userIDs)).Int("queued", queued).Msg("engagement refreshes queued")
}

type CacheSweepJob struct {
	cache  *cache.MetricsCache
	logger zerolog.Logger
}

func NewCacheSweepJob(c *cache.MetricsCache, logger zerolog.Logger) *CacheSweepJob {
	return &CacheSweepJob{cache: c, logger: logger.With().Str("job", "cache_sweep").Logger()}
}

func (j *CacheSweepJob) Sweep() {
	if n := j.cache.Sweep(); n > 0 {
		j.logger.Debug().Int("removed", n).Msg("cache swept")
	}
}
