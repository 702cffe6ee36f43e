package service

import (
	"context"
	"errors"
	"time"

	"github.com/maheshrc27/postpulse/internal/apperr"
	"github.com/maheshrc27/postpulse/internal/metrics"
	"github.com/maheshrc27/postpulse/internal/models"
	"github.com/maheshrc27/postpulse/internal/repository"
	"github.com/maheshrc27/postpulse/internal/transfer"
	"github.com/maheshrc27/postpulse/internal/xclient"
	"github.com/rs/zerolog"
)

// ReconcileMetrics merges the metric groups of one lookup into a single set
// by taking the maximum of each counter. Absent groups count as zero.
func ReconcileMetrics(tm *transfer.TweetMetrics) models.Metrics {
	var out models.Metrics
	if tm == nil {
		return out
	}
	for _, g := range []*transfer.MetricGroup{tm.PublicMetrics, tm.NonPublicMetrics, tm.OrganicMetrics} {
		if g == nil {
			continue
		}
		out = out.Max(models.Metrics{
			Likes:       max(g.LikeCount, 0),
			Retweets:    max(g.RetweetCount, 0),
			Quotes:      max(g.QuoteCount, 0),
			Replies:     max(g.ReplyCount, 0),
			Impressions: max(g.ImpressionCount, 0),
		})
	}
	return out
}

type BatchFailure struct {
	PostIDX string `json:"post_id_x"`
	Error   string `json:"error"`
}

// BatchResult reports a multi-post refresh. A failed id never aborts the rest.
type BatchResult struct {
	Succeeded   []string             `json:"succeeded"`
	Failed      []BatchFailure       `json:"failed"`
	Engagements []*models.Engagement `json:"engagements"`
}

type EngagementCollector interface {
	CollectFreshMetrics(ctx context.Context, postIDX string, creds *Credentials, ownerID int64) (*models.Engagement, error)
	BatchCollectFreshMetrics(ctx context.Context, postIDXs []string, creds *Credentials, ownerID int64) BatchResult
}

type engagementCollector struct {
	x      xclient.Client
	er     repository.EngagementRepository
	now    func() time.Time
	logger zerolog.Logger
}

func NewEngagementCollector(x xclient.Client, er repository.EngagementRepository, logger zerolog.Logger) EngagementCollector {
	return &engagementCollector{
		x:      x,
		er:     er,
		now:    time.Now,
		logger: logger.With().Str("component", "engagement_collector").Logger(),
	}
}

func (c *engagementCollector) CollectFreshMetrics(ctx context.Context, postIDX string, creds *Credentials, ownerID int64) (*models.Engagement, error) {
	e, err := c.collect(ctx, postIDX, creds, ownerID)
	switch {
	case err == nil:
		metrics.EngagementRefreshes.WithLabelValues("success").Inc()
	case errors.Is(err, apperr.ErrNotFound):
		metrics.EngagementRefreshes.WithLabelValues("not_found").Inc()
	case errors.Is(err, apperr.ErrAuthorization):
		metrics.EngagementRefreshes.WithLabelValues("unauthorized").Inc()
	default:
		metrics.EngagementRefreshes.WithLabelValues("error").Inc()
	}
	return e, err
}

func (c *engagementCollector) collect(ctx context.Context, postIDX string, creds *Credentials, ownerID int64) (*models.Engagement, error) {
	if creds == nil || creds.AccessToken == "" {
		return nil, apperr.Authorization("no credentials for user %d", ownerID)
	}

	existing, err := c.er.GetByPostIDX(ctx, postIDX)
	if err != nil {
		return nil, err
	}
	if existing == nil || existing.UserID != ownerID {
		return nil, apperr.NotFound("engagement for post %s", postIDX)
	}

	tm, err := c.x.GetTweetMetrics(ctx, creds.AccessToken, postIDX)
	if err != nil {
		return nil, err
	}

	m := ReconcileMetrics(tm)
	snap := models.MetricSnapshot{Timestamp: c.now().UTC(), Metrics: m}

	updated, err := c.er.ApplyRefresh(ctx, postIDX, m, snap)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, apperr.NotFound("engagement for post %s", postIDX)
	}

	c.logger.Debug().
		Str("post_id_x", postIDX).
		Int64("likes", updated.Likes).
		Int64("impressions", updated.Impressions).
		Msg("engagement refreshed")
	return updated, nil
}

// BatchCollectFreshMetrics refreshes ids one at a time to stay inside the
// network's rate limits.
func (c *engagementCollector) BatchCollectFreshMetrics(ctx context.Context, postIDXs []string, creds *Credentials, ownerID int64) BatchResult {
	res := BatchResult{Succeeded: []string{}, Failed: []BatchFailure{}, Engagements: []*models.Engagement{}}
	for _, id := range postIDXs {
		if err := ctx.Err(); err != nil {
			res.Failed = append(res.Failed, BatchFailure{PostIDX: id, Error: err.Error()})
			continue
		}
		e, err := c.CollectFreshMetrics(ctx, id, creds, ownerID)
		if err != nil {
			c.logger.Warn().Err(err).Str("post_id_x", id).Int64("user_id", ownerID).Msg("engagement refresh failed")
			res.Failed = append(res.Failed, BatchFailure{PostIDX: id, Error: err.Error()})
			continue
		}
		res.Succeeded = append(res.Succeeded, id)
		res.Engagements = append(res.Engagements, e)
	}
	return res
}
