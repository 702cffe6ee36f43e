package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/postpulse/internal/service"
	"github.com/rs/zerolog"
)

const (
	listPageSize   = 100
	publishTimeout = 5 * time.Minute
	refreshTimeout = 10 * time.Minute
)

type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type taskInspector interface {
	DeleteTask(queue, id string) error
	GetTaskInfo(queue, id string) (*asynq.TaskInfo, error)
	CancelProcessing(id string) error
	ListScheduledTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	ListPendingTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	ListRetryTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
}

// JobQueue implements service.JobQueue on asynq.
type JobQueue struct {
	client    taskEnqueuer
	inspector taskInspector
	queue     string
	logger    zerolog.Logger
}

func NewJobQueue(client *asynq.Client, inspector *asynq.Inspector, queueName string, logger zerolog.Logger) *JobQueue {
	return newJobQueue(client, inspector, queueName, logger)
}

func newJobQueue(client taskEnqueuer, inspector taskInspector, queueName string, logger zerolog.Logger) *JobQueue {
	if queueName == "" {
		queueName = "default"
	}
	return &JobQueue{
		client:    client,
		inspector: inspector,
		queue:     queueName,
		logger:    logger.With().Str("component", "job_queue").Logger(),
	}
}

func (q *JobQueue) Enqueue(ctx context.Context, job service.PublishJob) error {
	payload, err := json.Marshal(PublishPostPayload{PostID: job.PostID, UserID: job.UserID, Immediate: job.Immediate})
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypePublishPost, payload)
	info, err := q.client.EnqueueContext(ctx, task,
		asynq.TaskID(job.TaskID),
		asynq.Queue(q.queue),
		asynq.ProcessIn(job.Delay),
		asynq.MaxRetry(MaxRetry),
		asynq.Timeout(publishTimeout),
	)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", job.TaskID, err)
	}

	q.logger.Debug().
		Str("task_id", info.ID).
		Str("state", info.State.String()).
		Time("next_process_at", info.NextProcessAt).
		Msg("task enqueued")
	return nil
}

// EnqueueRefresh queues a background engagement refresh for one user. A
// refresh already waiting for the same user is left in place.
func (q *JobQueue) EnqueueRefresh(ctx context.Context, userID int64, limit int) error {
	payload, err := json.Marshal(RefreshEngagementsPayload{UserID: userID, Limit: limit})
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypeRefreshEngagements, payload)
	_, err = q.client.EnqueueContext(ctx, task,
		asynq.TaskID("refresh-"+strconv.FormatInt(userID, 10)),
		asynq.Queue(q.queue),
		asynq.MaxRetry(0),
		asynq.Timeout(refreshTimeout),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

func (q *JobQueue) Remove(_ context.Context, taskID string) (service.RemoveResult, error) {
	err := q.inspector.DeleteTask(q.queue, taskID)
	if err == nil {
		return service.JobRemoved, nil
	}
	if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		return service.JobNotFound, nil
	}

	// Active tasks cannot be deleted.
	info, infoErr := q.inspector.GetTaskInfo(q.queue, taskID)
	if infoErr == nil && info.State == asynq.TaskStateActive {
		if cancelErr := q.inspector.CancelProcessing(taskID); cancelErr != nil {
			q.logger.Warn().Err(cancelErr).Str("task_id", taskID).Msg("cancel signal failed")
		}
		return service.JobActive, nil
	}
	return service.JobNotFound, fmt.Errorf("delete task %s: %w", taskID, err)
}

// FindJobByPayloadField scans scheduled, pending and retry publish tasks for
// one whose payload field equals value. asynq has no payload index, so this
// is O(n) in the queue size.
func (q *JobQueue) FindJobByPayloadField(ctx context.Context, field string, value any) (string, bool, error) {
	want := fmt.Sprint(value)
	lists := []func(string, ...asynq.ListOption) ([]*asynq.TaskInfo, error){
		q.inspector.ListScheduledTasks,
		q.inspector.ListPendingTasks,
		q.inspector.ListRetryTasks,
	}

	for _, list := range lists {
		for page := 1; ; page++ {
			if err := ctx.Err(); err != nil {
				return "", false, err
			}
			tasks, err := list(q.queue, asynq.PageSize(listPageSize), asynq.Page(page))
			if err != nil {
				if errors.Is(err, asynq.ErrQueueNotFound) {
					return "", false, nil
				}
				return "", false, err
			}
			for _, t := range tasks {
				if t.Type != TaskTypePublishPost {
					continue
				}
				var payload map[string]any
				if err := json.Unmarshal(t.Payload, &payload); err != nil {
					continue
				}
				if v, ok := payload[field]; ok && fmt.Sprint(v) == want {
					return t.ID, true, nil
				}
			}
			if len(tasks) < listPageSize {
				break
			}
		}
	}
	return "", false, nil
}
