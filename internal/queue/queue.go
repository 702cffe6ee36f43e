package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/postpulse/internal/repository"
	"github.com/maheshrc27/postpulse/internal/service"
	"github.com/maheshrc27/postpulse/internal/xclient"
	"github.com/rs/zerolog"
)

const (
	TaskTypePublishPost        = "post:publish"
	TaskTypeRefreshEngagements = "engagement:refresh"
)

const (
	// MaxRetry gives every publish job three attempts in total.
	MaxRetry = 2

	retryBase          = 60 * time.Second
	immediateRetryBase = 10 * time.Second
)

type PublishPostPayload struct {
	PostID    string `json:"post_id"`
	UserID    int64  `json:"user_id"`
	Immediate bool   `json:"immediate"`
}

type RefreshEngagementsPayload struct {
	UserID int64 `json:"user_id"`
	Limit  int   `json:"limit"`
}

// RetryDelay is the asynq server's RetryDelayFunc: exponential backoff from a
// 60s base, or 10s for posts published on demand.
func RetryDelay(n int, _ error, task *asynq.Task) time.Duration {
	base := retryBase
	if task != nil && task.Type() == TaskTypePublishPost {
		var p PublishPostPayload
		if err := json.Unmarshal(task.Payload(), &p); err == nil && p.Immediate {
			base = immediateRetryBase
		}
	}
	if n < 0 {
		n = 0
	}
	return base << min(n, 10)
}

// Queue holds everything the task handlers need.
type Queue struct {
	pr         repository.PostRepository
	er         repository.EngagementRepository
	ph         repository.PostingHistoryRepository
	creds      service.CredentialProvider
	media      service.MediaService
	x          xclient.Client
	engagement service.EngagementService
	logger     zerolog.Logger

	now         func() time.Time
	attemptInfo func(ctx context.Context) (retried, maxRetry int)
}

func NewQueue(
	pr repository.PostRepository,
	er repository.EngagementRepository,
	ph repository.PostingHistoryRepository,
	creds service.CredentialProvider,
	media service.MediaService,
	x xclient.Client,
	engagement service.EngagementService,
	logger zerolog.Logger) *Queue {
	return &Queue{
		pr:          pr,
		er:          er,
		ph:          ph,
		creds:       creds,
		media:       media,
		x:           x,
		engagement:  engagement,
		logger:      logger.With().Str("component", "worker").Logger(),
		now:         time.Now,
		attemptInfo: asynqAttemptInfo,
	}
}

func asynqAttemptInfo(ctx context.Context) (int, int) {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return 0, MaxRetry
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		maxRetry = MaxRetry
	}
	return retried, maxRetry
}

// Register binds the task handlers on mux.
func (q *Queue) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskTypePublishPost, q.HandlePublishPostTask)
	mux.HandleFunc(TaskTypeRefreshEngagements, q.HandleRefreshEngagementsTask)
}
