package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postpulse/internal/apperr"
	"github.com/maheshrc27/postpulse/internal/models"
	"github.com/maheshrc27/postpulse/internal/service"
	"github.com/maheshrc27/postpulse/internal/transfer"
	"github.com/stretchr/testify/require"
)

type fakePostService struct {
	service.PostService
	created *transfer.PostCreation
	deleted string
	err     error
}

func (f *fakePostService) CreatePost(_ context.Context, userID int64, pc *transfer.PostCreation) (*models.Post, error) {
	f.created = pc
	if f.err != nil {
		return nil, f.err
	}
	return &models.Post{ID: "p1", UserID: userID, Content: pc.Content, Status: models.PostStatusScheduled}, nil
}

func (f *fakePostService) DeletePost(_ context.Context, _ int64, postID string) error {
	f.deleted = postID
	return f.err
}

func (f *fakePostService) PostHistory(_ context.Context, userID int64, postID string) ([]*models.PostingHistory, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []*models.PostingHistory{
		{ID: 1, UserID: userID, PostID: postID, Attempt: 1, ErrorMessage: "rate limited"},
		{ID: 2, UserID: userID, PostID: postID, Attempt: 2, PostIDX: "x-77"},
	}, nil
}

type fakeEngagementService struct {
	service.EngagementService
	force  bool
	userID int64
	batch  []string
}

func (f *fakeEngagementService) GetEngagement(_ context.Context, userID int64, postIDX string, force bool) (*models.Engagement, error) {
	f.userID, f.force = userID, force
	if postIDX != "x-1" {
		return nil, apperr.NotFound("engagement not found")
	}
	return &models.Engagement{PostIDX: "x-1", UserID: userID, Metrics: models.Metrics{Likes: 3}}, nil
}

func (f *fakeEngagementService) RefreshBatchEngagements(_ context.Context, _ int64, ids []string) (service.BatchResult, error) {
	f.batch = ids
	return service.BatchResult{
		Succeeded: ids[:len(ids)-1],
		Failed:    []service.BatchFailure{{PostIDX: ids[len(ids)-1], Error: "boom"}},
	}, nil
}

func newTestApp(ps service.PostService, es service.EngagementService) *fiber.App {
	app := fiber.New()
	api := app.Group("/api", func(c *fiber.Ctx) error {
		c.Locals("user_id", "7")
		return c.Next()
	})
	post := NewPostHandler(ps)
	api.Post("/posts/create", post.CreatePost)
	api.Post("/posts/remove", post.RemovePost)
	api.Get("/posts/history", post.PostHistory)
	NewEngagementHandler(es).Register(api)
	return app
}

func TestCreatePostHandler(t *testing.T) {
	ps := &fakePostService{}
	app := newTestApp(ps, &fakeEngagementService{})

	req := httptest.NewRequest(http.MethodPost, "/api/posts/create", strings.NewReader(`{"content":"hello","scheduled_at":"2026-07-01T10:00:00Z"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var post models.Post
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&post))
	require.Equal(t, int64(7), post.UserID)
	require.Equal(t, "hello", ps.created.Content)
	require.NotNil(t, ps.created.ScheduledAt)
}

func TestCreatePostHandlerValidationError(t *testing.T) {
	ps := &fakePostService{err: apperr.Validation("content is empty")}
	app := newTestApp(ps, &fakeEngagementService{})

	req := httptest.NewRequest(http.MethodPost, "/api/posts/create", strings.NewReader(`{"content":""}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestPostHistoryHandler(t *testing.T) {
	app := newTestApp(&fakePostService{}, &fakeEngagementService{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/posts/history?id=p1", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var history []models.PostingHistory
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&history))
	require.Len(t, history, 2)
	require.Equal(t, "p1", history[1].PostID)
	require.Equal(t, "x-77", history[1].PostIDX)
}

func TestPostHistoryHandlerNotFound(t *testing.T) {
	app := newTestApp(&fakePostService{err: apperr.NotFound("post p2")}, &fakeEngagementService{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/posts/history?id=p2", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestRemovePostHandlerHidesInternalErrors(t *testing.T) {
	ps := &fakePostService{err: io.ErrUnexpectedEOF}
	app := newTestApp(ps, &fakeEngagementService{})

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/posts/remove?id=p9", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	require.Equal(t, "p9", ps.deleted)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NotContains(t, string(body), "unexpected EOF")
}

func TestGetEngagementHandler(t *testing.T) {
	es := &fakeEngagementService{}
	app := newTestApp(&fakePostService{}, es)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/engagements/x-1?force=true", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.True(t, es.force)
	require.Equal(t, int64(7), es.userID)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/engagements/x-2", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestRefreshBatchHandlerReportsPartialFailure(t *testing.T) {
	es := &fakeEngagementService{}
	app := newTestApp(&fakePostService{}, es)

	req := httptest.NewRequest(http.MethodPost, "/api/engagements/refresh_batch", strings.NewReader(`{"post_ids_x":["a","b","c"]}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var res service.BatchResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	require.Equal(t, []string{"a", "b"}, res.Succeeded)
	require.Equal(t, "c", res.Failed[0].PostIDX)
}
