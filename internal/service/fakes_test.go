package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/maheshrc27/postpulse/internal/apperr"
	"github.com/maheshrc27/postpulse/internal/models"
	"github.com/maheshrc27/postpulse/internal/transfer"
)

type fakePostRepo struct {
	mu      sync.Mutex
	posts   map[string]*models.Post
	removed []string
}

func newFakePostRepo(posts ...*models.Post) *fakePostRepo {
	r := &fakePostRepo{posts: map[string]*models.Post{}}
	for _, p := range posts {
		r.posts[p.ID] = p
	}
	return r
}

func (r *fakePostRepo) Create(_ context.Context, post *models.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *post
	r.posts[post.ID] = &cp
	return nil
}

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

func (r *fakePostRepo) GetByUserID(_ context.Context, userID int64) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Post
	for _, p := range r.posts {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakePostRepo) Update(_ context.Context, post *models.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.posts[post.ID]
	if !ok || cur.PostIDX != nil || !models.CanTransition(cur.Status, post.Status) {
		return apperr.Validation("post %s can no longer be modified", post.ID)
	}
	cp := *post
	r.posts[post.ID] = &cp
	return nil
}

func (r *fakePostRepo) UpdateStatus(_ context.Context, postID string, status models.PostStatus, reason *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.posts[postID]
	if !ok || !models.CanTransition(cur.Status, status) {
		return apperr.Validation("post %s cannot move to %s", postID, status)
	}
	cur.Status = status
	cur.FailureReason = reason
	return nil
}

func (r *fakePostRepo) MarkPublished(_ context.Context, postID, postIDX string, publishedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.posts[postID]
	if !ok || cur.Status != models.PostStatusScheduled || cur.PostIDX != nil {
		return apperr.Validation("post %s is not awaiting publication", postID)
	}
	cur.Status = models.PostStatusPublished
	cur.PostIDX = &postIDX
	cur.PublishedAt = &publishedAt
	return nil
}

func (r *fakePostRepo) Remove(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.posts[id]
	if !ok || cur.IsPublished() {
		return apperr.Validation("post %s cannot be removed", id)
	}
	delete(r.posts, id)
	r.removed = append(r.removed, id)
	return nil
}

func (r *fakePostRepo) status(id string) models.PostStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.posts[id].Status
}

type fakeHistoryRepo struct {
	entries []*models.PostingHistory
}

func (r *fakeHistoryRepo) Create(_ context.Context, ph *models.PostingHistory) (int64, error) {
	r.entries = append(r.entries, ph)
	return int64(len(r.entries)), nil
}

func (r *fakeHistoryRepo) ListByPostID(_ context.Context, postID string) ([]*models.PostingHistory, error) {
	var out []*models.PostingHistory
	for _, ph := range r.entries {
		if ph.PostID == postID {
			out = append(out, ph)
		}
	}
	return out, nil
}

type fakeJobQueue struct {
	mu         sync.Mutex
	jobs       map[string]PublishJob
	active     map[string]bool
	enqueued   []PublishJob
	removed    []string
	scans      int
	enqueueErr error
	removeErr  error
}

func newFakeJobQueue() *fakeJobQueue {
	return &fakeJobQueue{jobs: map[string]PublishJob{}, active: map[string]bool{}}
}

func (q *fakeJobQueue) Enqueue(_ context.Context, job PublishJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	if _, ok := q.jobs[job.TaskID]; ok {
		return errors.New("task id conflicts with another task")
	}
	q.jobs[job.TaskID] = job
	q.enqueued = append(q.enqueued, job)
	return nil
}

func (q *fakeJobQueue) Remove(_ context.Context, taskID string) (RemoveResult, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.removeErr != nil {
		return JobNotFound, q.removeErr
	}
	if q.active[taskID] {
		return JobActive, nil
	}
	if _, ok := q.jobs[taskID]; !ok {
		return JobNotFound, nil
	}
	delete(q.jobs, taskID)
	q.removed = append(q.removed, taskID)
	return JobRemoved, nil
}

func (q *fakeJobQueue) FindJobByPayloadField(_ context.Context, field string, value any) (string, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.scans++
	if field != "post_id" {
		return "", false, nil
	}
	for id, j := range q.jobs {
		if j.PostID == value {
			return id, true, nil
		}
	}
	return "", false, nil
}

type fakeEngagementRepo struct {
	mu        sync.Mutex
	byIDX     map[string]*models.Engagement
	lists     int
	applyErr  error
	applyCall int
}

func newFakeEngagementRepo(es ...*models.Engagement) *fakeEngagementRepo {
	r := &fakeEngagementRepo{byIDX: map[string]*models.Engagement{}}
	for _, e := range es {
		r.byIDX[e.PostIDX] = e
	}
	return r
}

func (r *fakeEngagementRepo) Create(_ context.Context, e *models.Engagement) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byIDX[e.PostIDX]; ok {
		return false, nil
	}
	r.byIDX[e.PostIDX] = e.Clone()
	return true, nil
}

func (r *fakeEngagementRepo) GetByPostIDX(_ context.Context, postIDX string) (*models.Engagement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byIDX[postIDX].Clone(), nil
}

func (r *fakeEngagementRepo) GetByPostID(_ context.Context, postID string) (*models.Engagement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.byIDX {
		if e.PostID == postID {
			return e.Clone(), nil
		}
	}
	return nil, nil
}

func (r *fakeEngagementRepo) ListByUserID(_ context.Context, userID int64, limit int) ([]*models.Engagement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lists++
	var out []*models.Engagement
	for _, e := range r.byIDX {
		if e.UserID == userID && len(out) < limit {
			out = append(out, e.Clone())
		}
	}
	return out, nil
}

func (r *fakeEngagementRepo) ApplyRefresh(_ context.Context, postIDX string, m models.Metrics, snap models.MetricSnapshot) (*models.Engagement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applyCall++
	if r.applyErr != nil {
		return nil, r.applyErr
	}
	e, ok := r.byIDX[postIDX]
	if !ok {
		return nil, nil
	}
	e.Metrics = e.Metrics.Max(m)
	e.HourlyMetrics = append(e.HourlyMetrics, snap)
	ts := snap.Timestamp
	e.LastRefreshedAt = &ts
	return e.Clone(), nil
}

func (r *fakeEngagementRepo) get(postIDX string) *models.Engagement {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byIDX[postIDX].Clone()
}

type fakeXClient struct {
	mu         sync.Mutex
	metrics    map[string]*transfer.TweetMetrics
	metricErrs map[string]error
	lookups    []string
	tweets     []transfer.CreateTweetRequest
	createErr  error
	nextID     string
}

func (c *fakeXClient) CreateTweet(_ context.Context, _ string, req transfer.CreateTweetRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.createErr != nil {
		return "", c.createErr
	}
	c.tweets = append(c.tweets, req)
	return c.nextID, nil
}

func (c *fakeXClient) UploadMedia(context.Context, string, []byte, string) (string, error) {
	return "m-1", nil
}

func (c *fakeXClient) GetTweetMetrics(_ context.Context, _ string, tweetID string) (*transfer.TweetMetrics, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lookups = append(c.lookups, tweetID)
	if err := c.metricErrs[tweetID]; err != nil {
		return nil, err
	}
	tm, ok := c.metrics[tweetID]
	if !ok {
		return nil, apperr.NotFound("tweet %s", tweetID)
	}
	return tm, nil
}

type fakeCredentials struct {
	err   error
	calls int
}

func (f *fakeCredentials) GetUserTokens(context.Context, int64) (*Credentials, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &Credentials{AccessToken: "token", AccountID: "acc"}, nil
}

func (f *fakeCredentials) RefreshAccountToken(context.Context, *models.SocialAccount) (*Credentials, error) {
	return f.GetUserTokens(context.Background(), 0)
}

func timePtr(t time.Time) *time.Time { return &t }

func strPtr(s string) *string { return &s }
