package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/postpulse/internal/apperr"
	"github.com/maheshrc27/postpulse/internal/models"
	"github.com/maheshrc27/postpulse/internal/xclient"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type workerFixture struct {
	posts   *fakePostRepo
	eng     *fakeEngagementRepo
	history *fakeHistoryRepo
	x       *fakeXClient
	es      *fakeEngagementService
	q       *Queue
}

func newWorkerFixture(creds fakeCredentials, posts ...*models.Post) *workerFixture {
	f := &workerFixture{
		posts:   &fakePostRepo{posts: map[string]*models.Post{}},
		eng:     &fakeEngagementRepo{},
		history: &fakeHistoryRepo{},
		x:       &fakeXClient{},
		es:      &fakeEngagementService{},
	}
	for _, p := range posts {
		f.posts.posts[p.ID] = p
	}
	f.q = NewQueue(f.posts, f.eng, f.history, creds, fakeMedia{}, f.x, f.es, zerolog.Nop())
	f.q.now = func() time.Time { return time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC) }
	f.setAttempt(0)
	return f
}

func (f *workerFixture) setAttempt(retried int) {
	f.q.attemptInfo = func(context.Context) (int, int) { return retried, MaxRetry }
}

func scheduled(id string) *models.Post {
	return &models.Post{
		ID:            id,
		UserID:        7,
		Content:       "hello",
		Status:        models.PostStatusScheduled,
		ReplySettings: models.ReplySettingsFollowing,
		ImageURLs:     []string{"https://cdn/a.png", "https://cdn/b.png"},
		Geo:           &models.GeoLocation{PlaceID: "place-1"},
	}
}

func publishTask(t *testing.T, postID string) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(PublishPostPayload{PostID: postID, UserID: 7})
	require.NoError(t, err)
	return asynq.NewTask(TaskTypePublishPost, payload)
}

func TestPublishSuccess(t *testing.T) {
	f := newWorkerFixture(fakeCredentials{}, scheduled("p1"))

	require.NoError(t, f.q.HandlePublishPostTask(context.Background(), publishTask(t, "p1")))

	post := f.posts.posts["p1"]
	require.Equal(t, models.PostStatusPublished, post.Status)
	require.Equal(t, "x-100", *post.PostIDX)

	require.Len(t, f.x.tweets, 1)
	req := f.x.tweets[0]
	require.Equal(t, "hello", req.Text)
	require.Equal(t, "following", req.ReplySettings)
	require.Equal(t, "place-1", req.Geo.PlaceID)
	require.Len(t, req.Media.MediaIDs, 2)

	require.Len(t, f.eng.created, 1)
	e := f.eng.created[0]
	require.Equal(t, "x-100", e.PostIDX)
	require.Equal(t, "p1", e.PostID)
	require.Equal(t, models.Metrics{}, e.Metrics)

	require.Len(t, f.history.entries, 1)
	require.Equal(t, "x-100", f.history.entries[0].PostIDX)
	require.Empty(t, f.history.entries[0].ErrorMessage)
}

func TestPublishTwiceDispatchesOnce(t *testing.T) {
	f := newWorkerFixture(fakeCredentials{}, scheduled("p1"))

	require.NoError(t, f.q.HandlePublishPostTask(context.Background(), publishTask(t, "p1")))
	require.NoError(t, f.q.HandlePublishPostTask(context.Background(), publishTask(t, "p1")))

	require.Len(t, f.x.tweets, 1)
	require.Len(t, f.eng.created, 1)
}

func TestPublishSkipsNonScheduled(t *testing.T) {
	draft := scheduled("p1")
	draft.Status = models.PostStatusDraft
	failed := scheduled("p2")
	failed.Status = models.PostStatusFailed
	f := newWorkerFixture(fakeCredentials{}, draft, failed)

	require.NoError(t, f.q.HandlePublishPostTask(context.Background(), publishTask(t, "p1")))
	require.NoError(t, f.q.HandlePublishPostTask(context.Background(), publishTask(t, "p2")))
	require.NoError(t, f.q.HandlePublishPostTask(context.Background(), publishTask(t, "missing")))
	require.Empty(t, f.x.tweets)
}

func TestPublishRetryableFailure(t *testing.T) {
	f := newWorkerFixture(fakeCredentials{}, scheduled("p1"))
	f.x.createErr = &xclient.APIError{StatusCode: 503, Endpoint: "tweets.create"}

	err := f.q.HandlePublishPostTask(context.Background(), publishTask(t, "p1"))
	require.Error(t, err)
	require.False(t, errors.Is(err, asynq.SkipRetry))
	require.Equal(t, models.PostStatusScheduled, f.posts.posts["p1"].Status)
	require.Len(t, f.history.entries, 1)
	require.Equal(t, 1, f.history.entries[0].Attempt)
}

func TestPublishFinalAttemptMarksFailed(t *testing.T) {
	f := newWorkerFixture(fakeCredentials{}, scheduled("p1"))
	f.x.createErr = apperr.Dispatch("connection reset")
	f.setAttempt(MaxRetry)

	err := f.q.HandlePublishPostTask(context.Background(), publishTask(t, "p1"))
	require.ErrorIs(t, err, apperr.ErrDispatch)

	post := f.posts.posts["p1"]
	require.Equal(t, models.PostStatusFailed, post.Status)
	require.Contains(t, *post.FailureReason, "connection reset")
	require.Equal(t, 3, f.history.entries[0].Attempt)
}

func TestPublishAuthorizationFailureSkipsRetry(t *testing.T) {
	f := newWorkerFixture(fakeCredentials{err: apperr.Authorization("x account not connected")}, scheduled("p1"))

	err := f.q.HandlePublishPostTask(context.Background(), publishTask(t, "p1"))
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.ErrorIs(t, err, apperr.ErrAuthorization)
	require.Equal(t, models.PostStatusFailed, f.posts.posts["p1"].Status)
	require.Empty(t, f.x.tweets)
}

func TestPublishValidationFailureSkipsRetry(t *testing.T) {
	f := newWorkerFixture(fakeCredentials{}, scheduled("p1"))
	f.x.createErr = &xclient.APIError{StatusCode: 400, Endpoint: "tweets.create", Body: "duplicate content"}

	err := f.q.HandlePublishPostTask(context.Background(), publishTask(t, "p1"))
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Equal(t, models.PostStatusFailed, f.posts.posts["p1"].Status)
}

func TestPublishBookkeepingFailureNeedsReconciliation(t *testing.T) {
	f := newWorkerFixture(fakeCredentials{}, scheduled("p1"))
	f.posts.publishErr = errors.New("db down")

	err := f.q.HandlePublishPostTask(context.Background(), publishTask(t, "p1"))
	require.ErrorIs(t, err, apperr.ErrReconciliation)
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Len(t, f.x.tweets, 1)
	require.Empty(t, f.eng.created)
	require.Equal(t, "x-100", f.history.entries[0].PostIDX)
	require.Contains(t, f.history.entries[0].ErrorMessage, "db down")
}

func TestPublishBadPayload(t *testing.T) {
	f := newWorkerFixture(fakeCredentials{})

	err := f.q.HandlePublishPostTask(context.Background(), asynq.NewTask(TaskTypePublishPost, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestRetryDelay(t *testing.T) {
	normal := publishTask(t, "p1")
	payload, err := json.Marshal(PublishPostPayload{PostID: "p1", Immediate: true})
	require.NoError(t, err)
	immediate := asynq.NewTask(TaskTypePublishPost, payload)

	require.Equal(t, 60*time.Second, RetryDelay(0, nil, normal))
	require.Equal(t, 120*time.Second, RetryDelay(1, nil, normal))
	require.Equal(t, 10*time.Second, RetryDelay(0, nil, immediate))
	require.Equal(t, 20*time.Second, RetryDelay(1, nil, immediate))
	require.Equal(t, 60*time.Second, RetryDelay(0, nil, asynq.NewTask(TaskTypeRefreshEngagements, nil)))
}

func TestHandleRefreshEngagementsTask(t *testing.T) {
	f := newWorkerFixture(fakeCredentials{})
	payload, err := json.Marshal(RefreshEngagementsPayload{UserID: 7, Limit: 20})
	require.NoError(t, err)

	require.NoError(t, f.q.HandleRefreshEngagementsTask(context.Background(), asynq.NewTask(TaskTypeRefreshEngagements, payload)))
	require.Equal(t, []int64{7}, f.es.refreshed)

	f.es.err = apperr.Authorization("not connected")
	require.NoError(t, f.q.HandleRefreshEngagementsTask(context.Background(), asynq.NewTask(TaskTypeRefreshEngagements, payload)))
}
