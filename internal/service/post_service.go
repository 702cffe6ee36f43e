package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/maheshrc27/postpulse/internal/apperr"
	"github.com/maheshrc27/postpulse/internal/models"
	"github.com/maheshrc27/postpulse/internal/repository"
	"github.com/maheshrc27/postpulse/internal/transfer"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

const (
	maxContentLength = 280
	maxImages        = 4
)

type PostService interface {
	CreatePost(ctx context.Context, userID int64, pc *transfer.PostCreation) (*models.Post, error)
	UpdatePost(ctx context.Context, userID int64, postID string, pu *transfer.PostUpdate) (*models.Post, error)
	DeletePost(ctx context.Context, userID int64, postID string) error
	PublishNow(ctx context.Context, userID int64, postID string) (*models.Post, error)
	GetPost(ctx context.Context, userID int64, postID string) (*models.Post, error)
	ListPosts(ctx context.Context, userID int64) ([]*models.Post, error)
	// PostHistory lists dispatch attempts, including network ids recorded for
	// posts whose bookkeeping failed after publication.
	PostHistory(ctx context.Context, userID int64, postID string) ([]*models.PostingHistory, error)
}

type postService struct {
	pr        repository.PostRepository
	ph        repository.PostingHistoryRepository
	scheduler PostScheduler
	now       func() time.Time
	logger    zerolog.Logger
}

func NewPostService(
	pr repository.PostRepository,
	ph repository.PostingHistoryRepository,
	scheduler PostScheduler,
	logger zerolog.Logger) PostService {
	return &postService{
		pr:        pr,
		ph:        ph,
		scheduler: scheduler,
		now:       time.Now,
		logger:    logger.With().Str("component", "post_service").Logger(),
	}
}

func (s *postService) CreatePost(ctx context.Context, userID int64, pc *transfer.PostCreation) (*models.Post, error) {
	if pc == nil {
		return nil, apperr.Validation("post creation data is nil")
	}

	id, err := gonanoid.New()
	if err != nil {
		return nil, err
	}

	post := &models.Post{
		ID:              id,
		UserID:          userID,
		Title:           strings.TrimSpace(pc.Title),
		Content:         pc.Content,
		ScheduledAt:     utc(pc.ScheduledAt),
		Status:          models.PostStatusScheduled,
		LocalImagePaths: nonNil(pc.LocalImagePaths),
		ImageURLs:       nonNil(pc.ImageURLs),
		Geo:             pc.Geo,
		ReplySettings:   pc.ReplySettings,
	}
	if pc.Draft {
		post.Status = models.PostStatusDraft
	}
	if err := validatePost(post); err != nil {
		return nil, err
	}

	if err := s.pr.Create(ctx, post); err != nil {
		return nil, err
	}
	s.logger.Info().Str("post_id", post.ID).Int64("user_id", userID).Str("status", string(post.Status)).Msg("post created")

	if post.Status == models.PostStatusScheduled {
		if err := s.scheduler.Schedule(ctx, post); err != nil {
			return post, err
		}
	}
	return post, nil
}

func (s *postService) UpdatePost(ctx context.Context, userID int64, postID string, pu *transfer.PostUpdate) (*models.Post, error) {
	if pu == nil {
		return nil, apperr.Validation("post update data is nil")
	}
	post, err := s.owned(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	if !post.IsEditable() {
		return nil, apperr.Validation("post %s is %s and cannot be modified", post.ID, post.Status)
	}

	previousStatus := post.Status
	previousSchedule := post.ScheduledAt

	if pu.Title != nil {
		post.Title = strings.TrimSpace(*pu.Title)
	}
	if pu.Content != nil {
		post.Content = *pu.Content
	}
	if pu.ScheduledAt != nil {
		post.ScheduledAt = utc(pu.ScheduledAt)
	}
	if pu.ImageURLs != nil {
		post.ImageURLs = nonNil(*pu.ImageURLs)
	}
	if pu.Geo != nil {
		post.Geo = pu.Geo
	}
	if pu.ReplySettings != nil {
		post.ReplySettings = *pu.ReplySettings
	}
	if pu.Draft != nil {
		post.Status = models.PostStatusScheduled
		if *pu.Draft {
			post.Status = models.PostStatusDraft
		}
	}
	if !models.CanTransition(previousStatus, post.Status) {
		return nil, apperr.Validation("post %s cannot move from %s to %s", post.ID, previousStatus, post.Status)
	}
	if err := validatePost(post); err != nil {
		return nil, err
	}

	if err := s.pr.Update(ctx, post); err != nil {
		return nil, err
	}

	if post.Status != models.PostStatusScheduled {
		return post, nil
	}
	if previousStatus == models.PostStatusDraft {
		return post, s.scheduler.Schedule(ctx, post)
	}
	return post, s.scheduler.Reschedule(ctx, post, previousSchedule)
}

func (s *postService) DeletePost(ctx context.Context, userID int64, postID string) error {
	post, err := s.owned(ctx, userID, postID)
	if err != nil {
		return err
	}
	if !post.IsDeletable() {
		return apperr.Validation("post %s is published and cannot be deleted", post.ID)
	}

	if post.Status == models.PostStatusScheduled {
		if err := s.scheduler.Cancel(ctx, post); err != nil {
			return err
		}
	}

	if err := s.pr.Remove(ctx, post.ID); err != nil {
		return err
	}
	s.logger.Info().Str("post_id", post.ID).Int64("user_id", userID).Msg("post deleted")
	return nil
}

// PublishNow moves a draft or scheduled post onto the immediate publish path.
func (s *postService) PublishNow(ctx context.Context, userID int64, postID string) (*models.Post, error) {
	post, err := s.owned(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	if !post.IsEditable() {
		return nil, apperr.Validation("post %s is %s and cannot be published", post.ID, post.Status)
	}

	now := s.now().UTC()
	post.ScheduledAt = &now
	post.Status = models.PostStatusScheduled
	if err := validatePost(post); err != nil {
		return nil, err
	}
	if err := s.pr.Update(ctx, post); err != nil {
		return nil, err
	}
	return post, s.scheduler.PublishNow(ctx, post)
}

func (s *postService) GetPost(ctx context.Context, userID int64, postID string) (*models.Post, error) {
	return s.owned(ctx, userID, postID)
}

func (s *postService) ListPosts(ctx context.Context, userID int64) ([]*models.Post, error) {
	posts, err := s.pr.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []*models.Post{}
	}
	return posts, nil
}

func (s *postService) PostHistory(ctx context.Context, userID int64, postID string) ([]*models.PostingHistory, error) {
	if _, err := s.owned(ctx, userID, postID); err != nil {
		return nil, err
	}
	history, err := s.ph.ListByPostID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if history == nil {
		history = []*models.PostingHistory{}
	}
	return history, nil
}

func (s *postService) owned(ctx context.Context, userID int64, postID string) (*models.Post, error) {
	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil || post.UserID != userID {
		return nil, apperr.NotFound("post %s", postID)
	}
	return post, nil
}

func validatePost(post *models.Post) error {
	if strings.TrimSpace(post.Content) == "" && len(post.ImageURLs) == 0 {
		return apperr.Validation("post needs content or at least one image")
	}
	if n := utf8.RuneCountInString(post.Content); n > maxContentLength {
		return apperr.Validation("content is %d characters, limit is %d", n, maxContentLength)
	}
	if len(post.ImageURLs)+len(post.LocalImagePaths) > maxImages {
		return apperr.Validation("at most %d images per post", maxImages)
	}
	switch post.ReplySettings {
	case "":
		post.ReplySettings = models.ReplySettingsEveryone
	case models.ReplySettingsEveryone, models.ReplySettingsFollowing, models.ReplySettingsMentioned:
	default:
		return apperr.Validation("unknown reply settings %q", post.ReplySettings)
	}
	if post.Geo != nil && post.Geo.PlaceID == "" {
		return apperr.Validation("geo location needs a place id")
	}
	return nil
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
