package queue

import (
	"context"
	"sync"
	"time"

	"github.com/maheshrc27/postpulse/internal/apperr"
	"github.com/maheshrc27/postpulse/internal/models"
	"github.com/maheshrc27/postpulse/internal/service"
	"github.com/maheshrc27/postpulse/internal/transfer"
)

type fakePostRepo struct {
	mu         sync.Mutex
	posts      map[string]*models.Post
	publishErr error
}

func (r *fakePostRepo) Create(context.Context, *models.Post) error { return nil }

func (r *fakePostRepo) GetByID(_ context.Context, id string) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *fakePostRepo) GetByUserID(context.Context, int64) ([]*models.Post, error) { return nil, nil }

func (r *fakePostRepo) Update(context.Context, *models.Post) error { return nil }

func (r *fakePostRepo) UpdateStatus(_ context.Context, postID string, status models.PostStatus, reason *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.posts[postID]
	if p == nil || !models.CanTransition(p.Status, status) {
		return apperr.Validation("post %s cannot move to %s", postID, status)
	}
	p.Status = status
	p.FailureReason = reason
	return nil
}

func (r *fakePostRepo) MarkPublished(_ context.Context, postID, postIDX string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.publishErr != nil {
		return r.publishErr
	}
	p := r.posts[postID]
	if p == nil || p.Status != models.PostStatusScheduled || p.PostIDX != nil {
		return apperr.Validation("post %s is not awaiting publication", postID)
	}
	p.Status = models.PostStatusPublished
	p.PostIDX = &postIDX
	p.PublishedAt = &at
	return nil
}

func (r *fakePostRepo) Remove(context.Context, string) error { return nil }

type fakeEngagementRepo struct {
	mu      sync.Mutex
	created []*models.Engagement
}

func (r *fakeEngagementRepo) Create(_ context.Context, e *models.Engagement) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.created {
		if c.PostIDX == e.PostIDX {
			return false, nil
		}
	}
	r.created = append(r.created, e.Clone())
	return true, nil
}

func (r *fakeEngagementRepo) GetByPostIDX(context.Context, string) (*models.Engagement, error) {
	return nil, nil
}

func (r *fakeEngagementRepo) GetByPostID(context.Context, string) (*models.Engagement, error) {
	return nil, nil
}

func (r *fakeEngagementRepo) ListByUserID(context.Context, int64, int) ([]*models.Engagement, error) {
	return nil, nil
}

func (r *fakeEngagementRepo) ApplyRefresh(context.Context, string, models.Metrics, models.MetricSnapshot) (*models.Engagement, error) {
	return nil, nil
}

type fakeHistoryRepo struct {
	mu      sync.Mutex
	entries []*models.PostingHistory
}

func (r *fakeHistoryRepo) Create(_ context.Context, ph *models.PostingHistory) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, ph)
	return int64(len(r.entries)), nil
}

func (r *fakeHistoryRepo) ListByPostID(context.Context, string) ([]*models.PostingHistory, error) {
	return r.entries, nil
}

type fakeCredentials struct{ err error }

func (f fakeCredentials) GetUserTokens(context.Context, int64) (*service.Credentials, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &service.Credentials{AccessToken: "token"}, nil
}

func (f fakeCredentials) RefreshAccountToken(context.Context, *models.SocialAccount) (*service.Credentials, error) {
	return f.GetUserTokens(context.Background(), 0)
}

type fakeMedia struct{}

func (fakeMedia) FetchImage(_ context.Context, u string) ([]byte, string, error) {
	return []byte(u), "image/png", nil
}

type fakeXClient struct {
	mu        sync.Mutex
	tweets    []transfer.CreateTweetRequest
	uploads   int
	createErr error
}

func (c *fakeXClient) CreateTweet(_ context.Context, _ string, req transfer.CreateTweetRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.createErr != nil {
		return "", c.createErr
	}
	c.tweets = append(c.tweets, req)
	return "x-100", nil
}

func (c *fakeXClient) UploadMedia(context.Context, string, []byte, string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.uploads++
	return "media-" + string(rune('0'+c.uploads)), nil
}

func (c *fakeXClient) GetTweetMetrics(context.Context, string, string) (*transfer.TweetMetrics, error) {
	return nil, apperr.NotFound("unused")
}

type fakeEngagementService struct {
	service.EngagementService
	refreshed []int64
	err       error
}

func (f *fakeEngagementService) RefreshAllEngagements(_ context.Context, userID int64, _ int) (service.BatchResult, error) {
	f.refreshed = append(f.refreshed, userID)
	return service.BatchResult{}, f.err
}
