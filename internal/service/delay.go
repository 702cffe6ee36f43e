package service

import "time"

// ImmediateThreshold is how close to now a scheduled time must be for the post
// to be dispatched right away.
const ImmediateThreshold = 2 * time.Minute

// PublishDelay returns how long to wait before dispatching a post scheduled at
// scheduledAt. A nil time, a past time, or one within ImmediateThreshold of now
// yields zero.
func PublishDelay(scheduledAt *time.Time, now time.Time) time.Duration {
	if scheduledAt == nil {
		return 0
	}
	delay := scheduledAt.Sub(now)
	if delay <= ImmediateThreshold {
		return 0
	}
	return delay.Round(time.Millisecond)
}
