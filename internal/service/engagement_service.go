package service

import (
	"context"

	"github.com/maheshrc27/postpulse/internal/apperr"
	"github.com/maheshrc27/postpulse/internal/cache"
	"github.com/maheshrc27/postpulse/internal/models"
	"github.com/maheshrc27/postpulse/internal/repository"
	"github.com/rs/zerolog"
)

const (
	DefaultEngagementLimit = 20
	MaxEngagementLimit     = 100
)

// EngagementService serves engagement reads through the metrics cache and
// runs refreshes through the collector.
type EngagementService interface {
	GetEngagement(ctx context.Context, userID int64, postIDX string, force bool) (*models.Engagement, error)
	GetEngagementByLocalID(ctx context.Context, userID int64, postID string, force bool) (*models.Engagement, error)
	GetAllUserEngagements(ctx context.Context, userID int64, limit int, force bool) ([]*models.Engagement, error)
	RefreshEngagement(ctx context.Context, userID int64, postIDX string) (*models.Engagement, error)
	RefreshAllEngagements(ctx context.Context, userID int64, limit int) (BatchResult, error)
	RefreshBatchEngagements(ctx context.Context, userID int64, postIDXs []string) (BatchResult, error)
}

type engagementService struct {
	er        repository.EngagementRepository
	collector EngagementCollector
	creds     CredentialProvider
	cache     *cache.MetricsCache
	logger    zerolog.Logger
}

func NewEngagementService(
	er repository.EngagementRepository,
	collector EngagementCollector,
	creds CredentialProvider,
	metricsCache *cache.MetricsCache,
	logger zerolog.Logger) EngagementService {
	return &engagementService{
		er:        er,
		collector: collector,
		creds:     creds,
		cache:     metricsCache,
		logger:    logger.With().Str("component", "engagement_service").Logger(),
	}
}

func (s *engagementService) GetEngagement(ctx context.Context, userID int64, postIDX string, force bool) (*models.Engagement, error) {
	return s.getOne(ctx, userID, cache.EngagementKey(postIDX), force, func() (*models.Engagement, error) {
		return s.er.GetByPostIDX(ctx, postIDX)
	})
}

func (s *engagementService) GetEngagementByLocalID(ctx context.Context, userID int64, postID string, force bool) (*models.Engagement, error) {
	return s.getOne(ctx, userID, cache.EngagementLocalKey(postID), force, func() (*models.Engagement, error) {
		return s.er.GetByPostID(ctx, postID)
	})
}

func (s *engagementService) getOne(ctx context.Context, userID int64, key string, force bool, load func() (*models.Engagement, error)) (*models.Engagement, error) {
	if !force {
		if v, ok := s.cache.Get(key); ok {
			if e, ok := v.(*models.Engagement); ok {
				return owned(e, userID)
			}
		}
	}

	e, err := load()
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, apperr.NotFound("engagement not found")
	}
	s.cache.Put(key, e.Clone())
	return owned(e, userID)
}

func owned(e *models.Engagement, userID int64) (*models.Engagement, error) {
	if e.UserID != userID {
		return nil, apperr.NotFound("engagement not found")
	}
	return e.Clone(), nil
}

func (s *engagementService) GetAllUserEngagements(ctx context.Context, userID int64, limit int, force bool) ([]*models.Engagement, error) {
	limit = clampLimit(limit)
	key := cache.AllEngagementsKey(userID, limit)

	if !force {
		if v, ok := s.cache.Get(key); ok {
			if list, ok := v.([]*models.Engagement); ok {
				return cloneAll(list), nil
			}
		}
	}

	list, err := s.er.ListByUserID(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*models.Engagement{}
	}
	s.cache.Put(key, cloneAll(list))
	return list, nil
}

func (s *engagementService) RefreshEngagement(ctx context.Context, userID int64, postIDX string) (*models.Engagement, error) {
	creds, err := s.creds.GetUserTokens(ctx, userID)
	if err != nil {
		return nil, err
	}

	e, err := s.collector.CollectFreshMetrics(ctx, postIDX, creds, userID)
	if err != nil {
		return nil, err
	}
	s.invalidate(userID, e)
	return e.Clone(), nil
}

func (s *engagementService) RefreshAllEngagements(ctx context.Context, userID int64, limit int) (BatchResult, error) {
	list, err := s.er.ListByUserID(ctx, userID, clampLimit(limit))
	if err != nil {
		return BatchResult{}, err
	}
	ids := make([]string, 0, len(list))
	for _, e := range list {
		ids = append(ids, e.PostIDX)
	}
	return s.RefreshBatchEngagements(ctx, userID, ids)
}

func (s *engagementService) RefreshBatchEngagements(ctx context.Context, userID int64, postIDXs []string) (BatchResult, error) {
	if len(postIDXs) == 0 {
		return BatchResult{Succeeded: []string{}, Failed: []BatchFailure{}, Engagements: []*models.Engagement{}}, nil
	}
	creds, err := s.creds.GetUserTokens(ctx, userID)
	if err != nil {
		return BatchResult{}, err
	}

	res := s.collector.BatchCollectFreshMetrics(ctx, postIDXs, creds, userID)
	for _, e := range res.Engagements {
		s.invalidate(userID, e)
	}
	res.Engagements = cloneAll(res.Engagements)

	s.logger.Info().
		Int64("user_id", userID).
		Int("succeeded", len(res.Succeeded)).
		Int("failed", len(res.Failed)).
		Msg("batch engagement refresh finished")
	return res, nil
}

func (s *engagementService) invalidate(userID int64, e *models.Engagement) {
	s.cache.Invalidate(cache.EngagementKey(e.PostIDX), cache.EngagementLocalKey(e.PostID))
	s.cache.InvalidatePrefix(cache.AllEngagementsPrefix(userID))
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultEngagementLimit
	}
	return min(limit, MaxEngagementLimit)
}

func cloneAll(list []*models.Engagement) []*models.Engagement {
	out := make([]*models.Engagement, len(list))
	for i, e := range list {
		out[i] = e.Clone()
	}
	return out
}
