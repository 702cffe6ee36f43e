package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/maheshrc27/postpulse/internal/apperr"
	"github.com/maheshrc27/postpulse/internal/metrics"
	"github.com/maheshrc27/postpulse/internal/models"
	"github.com/maheshrc27/postpulse/internal/repository"
	"github.com/rs/zerolog"
)

// RemoveResult describes what happened to a job on removal.
type RemoveResult int

const (
	JobRemoved RemoveResult = iota
	JobNotFound
	// JobActive means a worker is already executing the job.
	JobActive
)

func (r RemoveResult) String() string {
	switch r {
	case JobRemoved:
		return "removed"
	case JobNotFound:
		return "not_found"
	case JobActive:
		return "active"
	default:
		return "unknown"
	}
}

// PublishJob is a request to dispatch one post after Delay.
type PublishJob struct {
	TaskID    string
	PostID    string
	UserID    int64
	Delay     time.Duration
	Immediate bool
}

// JobQueue is a durable delayed queue with per-job identity.
type JobQueue interface {
	Enqueue(ctx context.Context, job PublishJob) error
	Remove(ctx context.Context, taskID string) (RemoveResult, error)
	// FindJobByPayloadField returns the id of a waiting job whose payload has
	// field set to value.
	FindJobByPayloadField(ctx context.Context, field string, value any) (string, bool, error)
}

func PublishTaskID(postID string) string {
	return "publish-" + postID
}

type PostScheduler interface {
	Schedule(ctx context.Context, post *models.Post) error
	Reschedule(ctx context.Context, post *models.Post, previous *time.Time) error
	Cancel(ctx context.Context, post *models.Post) error
	PublishNow(ctx context.Context, post *models.Post) error
}

type postScheduler struct {
	jobs   JobQueue
	pr     repository.PostRepository
	now    func() time.Time
	logger zerolog.Logger
}

func NewPostScheduler(jobs JobQueue, pr repository.PostRepository, logger zerolog.Logger) PostScheduler {
	return &postScheduler{
		jobs:   jobs,
		pr:     pr,
		now:    time.Now,
		logger: logger.With().Str("component", "post_scheduler").Logger(),
	}
}

func (s *postScheduler) Schedule(ctx context.Context, post *models.Post) error {
	return s.enqueue(ctx, post, false)
}

func (s *postScheduler) PublishNow(ctx context.Context, post *models.Post) error {
	res, err := s.remove(ctx, post)
	if err != nil {
		return s.fail(ctx, post, err)
	}
	if res == JobActive {
		// The task id is still held by the running job, which is already publishing.
		s.logger.Warn().Str("post_id", post.ID).Msg("publish job already running; nothing to expedite")
		return nil
	}
	return s.enqueue(ctx, post, true)
}

func (s *postScheduler) enqueue(ctx context.Context, post *models.Post, immediate bool) error {
	job := PublishJob{
		TaskID:    PublishTaskID(post.ID),
		PostID:    post.ID,
		UserID:    post.UserID,
		Immediate: immediate,
	}
	if !immediate {
		job.Delay = PublishDelay(post.ScheduledAt, s.now())
	}

	if err := s.jobs.Enqueue(ctx, job); err != nil {
		return s.fail(ctx, post, err)
	}

	mode := "delayed"
	if job.Delay == 0 {
		mode = "immediate"
	}
	metrics.JobsScheduled.WithLabelValues(mode).Inc()
	s.logger.Info().
		Str("post_id", post.ID).
		Str("task_id", job.TaskID).
		Dur("delay", job.Delay).
		Msg("publish job scheduled")
	return nil
}

// fail marks the post FAILED after a queue error and returns a scheduling error.
func (s *postScheduler) fail(ctx context.Context, post *models.Post, cause error) error {
	reason := fmt.Sprintf("scheduling failed: %v", cause)
	if err := s.pr.UpdateStatus(ctx, post.ID, models.PostStatusFailed, &reason); err != nil {
		s.logger.Error().Err(err).Str("post_id", post.ID).Msg("failed to record scheduling failure")
	} else {
		post.Status = models.PostStatusFailed
		post.FailureReason = &reason
	}
	return apperr.Scheduling("post %s: %v", post.ID, cause)
}

func (s *postScheduler) Reschedule(ctx context.Context, post *models.Post, previous *time.Time) error {
	if models.SameSchedule(post.ScheduledAt, previous) {
		return nil
	}

	res, err := s.remove(ctx, post)
	if err != nil {
		return s.fail(ctx, post, err)
	}
	switch res {
	case JobNotFound:
		s.logger.Info().Str("post_id", post.ID).Msg("no existing publish job to replace")
	case JobActive:
		// The running dispatch reads the latest post row, so it picks up the edit.
		s.logger.Warn().Str("post_id", post.ID).Msg("publish job already running; not rescheduling")
		return nil
	}
	return s.enqueue(ctx, post, false)
}

func (s *postScheduler) Cancel(ctx context.Context, post *models.Post) error {
	res, err := s.remove(ctx, post)
	if err != nil {
		return s.fail(ctx, post, err)
	}
	switch res {
	case JobActive:
		s.logger.Warn().Str("post_id", post.ID).Msg("publish job already running; dispatch may still complete")
	case JobRemoved:
		s.logger.Info().Str("post_id", post.ID).Msg("publish job cancelled")
	}
	return nil
}

// remove deletes the post's job by id, falling back to a payload scan for jobs
// enqueued under a different id.
func (s *postScheduler) remove(ctx context.Context, post *models.Post) (RemoveResult, error) {
	res, err := s.jobs.Remove(ctx, PublishTaskID(post.ID))
	if err != nil || res != JobNotFound {
		return res, err
	}

	taskID, found, err := s.jobs.FindJobByPayloadField(ctx, "post_id", post.ID)
	if err != nil {
		return JobNotFound, fmt.Errorf("find job for post %s: %w", post.ID, err)
	}
	if !found {
		return JobNotFound, nil
	}
	res, err = s.jobs.Remove(ctx, taskID)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return res, err
	}
	return res, nil
}
