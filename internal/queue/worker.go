package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/postpulse/internal/apperr"
	"github.com/maheshrc27/postpulse/internal/metrics"
	"github.com/maheshrc27/postpulse/internal/models"
	"github.com/maheshrc27/postpulse/internal/transfer"
	"github.com/maheshrc27/postpulse/internal/xclient"
)

func (q *Queue) HandlePublishPostTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishPostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	return q.PublishPost(ctx, payload)
}

// PublishPost dispatches one post. Returning a plain error lets asynq retry;
// errors wrapping asynq.SkipRetry are final.
func (q *Queue) PublishPost(ctx context.Context, payload PublishPostPayload) error {
	log := q.logger.With().Str("post_id", payload.PostID).Int64("user_id", payload.UserID).Logger()
	retried, maxRetry := q.attemptInfo(ctx)
	attempt := retried + 1

	post, err := q.pr.GetByID(ctx, payload.PostID)
	if err != nil {
		return err
	}
	if post == nil {
		log.Info().Msg("post no longer exists; dropping job")
		return nil
	}
	if post.IsPublished() {
		log.Info().Msg("post already published; skipping")
		metrics.DispatchAttempts.WithLabelValues("duplicate").Inc()
		return nil
	}
	if post.Status != models.PostStatusScheduled {
		log.Info().Str("status", string(post.Status)).Msg("post is not scheduled; skipping")
		return nil
	}

	postIDX, err := q.dispatch(ctx, post)
	if err != nil {
		q.recordAttempt(ctx, post, attempt, "", err)
		return q.dispatchFailed(ctx, post, err, retried >= maxRetry)
	}

	log = log.With().Str("post_id_x", postIDX).Logger()
	if err := q.completePublish(ctx, post, postIDX); err != nil {
		q.recordAttempt(ctx, post, attempt, postIDX, err)
		metrics.DispatchAttempts.WithLabelValues("reconciliation").Inc()
		log.Error().Err(err).Msg("published on x but local bookkeeping failed; manual reconciliation required")
		return fmt.Errorf("%w: post %s published as %s: %v: %w", apperr.ErrReconciliation, post.ID, postIDX, err, asynq.SkipRetry)
	}

	q.recordAttempt(ctx, post, attempt, postIDX, nil)
	metrics.DispatchAttempts.WithLabelValues("success").Inc()
	log.Info().Int("attempt", attempt).Msg("post published")
	return nil
}

func (q *Queue) dispatch(ctx context.Context, post *models.Post) (string, error) {
	creds, err := q.creds.GetUserTokens(ctx, post.UserID)
	if err != nil {
		return "", err
	}

	req := transfer.CreateTweetRequest{
		Text:          post.Content,
		ReplySettings: post.ReplySettings,
	}
	if req.ReplySettings == models.ReplySettingsEveryone {
		req.ReplySettings = ""
	}
	if post.Geo != nil && post.Geo.PlaceID != "" {
		req.Geo = &transfer.TweetGeo{PlaceID: post.Geo.PlaceID}
	}

	var mediaIDs []string
	for _, u := range post.ImageURLs {
		data, mimeType, err := q.media.FetchImage(ctx, u)
		if err != nil {
			return "", err
		}
		id, err := q.x.UploadMedia(ctx, creds.AccessToken, data, mimeType)
		if err != nil {
			return "", err
		}
		mediaIDs = append(mediaIDs, id)
	}
	if len(mediaIDs) > 0 {
		req.Media = &transfer.TweetMedia{MediaIDs: mediaIDs}
	}

	return q.x.CreateTweet(ctx, creds.AccessToken, req)
}

func (q *Queue) completePublish(ctx context.Context, post *models.Post, postIDX string) error {
	if err := q.pr.MarkPublished(ctx, post.ID, postIDX, q.now().UTC()); err != nil {
		return err
	}
	_, err := q.er.Create(ctx, &models.Engagement{PostIDX: postIDX, PostID: post.ID, UserID: post.UserID})
	return err
}

func (q *Queue) dispatchFailed(ctx context.Context, post *models.Post, err error, lastAttempt bool) error {
	log := q.logger.With().Str("post_id", post.ID).Logger()

	if !retryable(err) {
		metrics.DispatchAttempts.WithLabelValues("rejected").Inc()
		log.Warn().Err(err).Msg("dispatch rejected; not retrying")
		q.markFailed(ctx, post, err)
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	if lastAttempt {
		metrics.DispatchAttempts.WithLabelValues("exhausted").Inc()
		log.Error().Err(err).Msg("dispatch failed on final attempt")
		q.markFailed(ctx, post, err)
		return err
	}

	metrics.DispatchAttempts.WithLabelValues("retry").Inc()
	log.Warn().Err(err).Msg("dispatch failed; will retry")
	return err
}

func (q *Queue) markFailed(ctx context.Context, post *models.Post, cause error) {
	reason := cause.Error()
	if err := q.pr.UpdateStatus(ctx, post.ID, models.PostStatusFailed, &reason); err != nil {
		q.logger.Error().Err(err).Str("post_id", post.ID).Msg("failed to mark post failed")
	}
}

func (q *Queue) recordAttempt(ctx context.Context, post *models.Post, attempt int, postIDX string, cause error) {
	ph := &models.PostingHistory{
		UserID:  post.UserID,
		PostID:  post.ID,
		Attempt: attempt,
		PostIDX: postIDX,
	}
	if cause != nil {
		ph.ErrorMessage = cause.Error()
	}
	if _, err := q.ph.Create(ctx, ph); err != nil {
		q.logger.Error().Err(err).Str("post_id", post.ID).Msg("failed to save posting history")
	}
}

// retryable is false for failures that will not change on their own.
func retryable(err error) bool {
	var apiErr *xclient.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return !errors.Is(err, apperr.ErrAuthorization) &&
		!errors.Is(err, apperr.ErrValidation) &&
		!errors.Is(err, apperr.ErrNotFound)
}

func (q *Queue) HandleRefreshEngagementsTask(ctx context.Context, task *asynq.Task) error {
	var payload RefreshEngagementsPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}

	res, err := q.engagement.RefreshAllEngagements(ctx, payload.UserID, payload.Limit)
	if err != nil {
		if errors.Is(err, apperr.ErrAuthorization) {
			q.logger.Warn().Err(err).Int64("user_id", payload.UserID).Msg("skipping engagement refresh")
			return nil
		}
		return err
	}
	q.logger.Info().
		Int64("user_id", payload.UserID).
		Int("succeeded", len(res.Succeeded)).
		Int("failed", len(res.Failed)).
		Msg("background engagement refresh done")
	return nil
}
