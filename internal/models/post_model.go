package models

import "time"

type PostStatus string

const (
	PostStatusDraft     PostStatus = "DRAFT"
	PostStatusScheduled PostStatus = "SCHEDULED"
	PostStatusPublished PostStatus = "PUBLISHED"
	PostStatusFailed    PostStatus = "FAILED"
)

// Reply visibility values accepted by the network.
const (
	ReplySettingsEveryone  = "everyone"
	ReplySettingsFollowing = "following"
	ReplySettingsMentioned = "mentionedUsers"
)

type GeoLocation struct {
	PlaceID   string   `json:"place_id"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

type Post struct {
	ID              string       `db:"id" json:"id"`
	UserID          int64        `db:"user_id" json:"user_id"`
	PostIDX         *string      `db:"post_id_x" json:"post_id_x"`
	Title           string       `db:"title" json:"title"`
	Content         string       `db:"content" json:"content"`
	ScheduledAt     *time.Time   `db:"scheduled_at" json:"scheduled_at"`
	Status          PostStatus   `db:"status" json:"status"`
	FailureReason   *string      `db:"failure_reason" json:"failure_reason"`
	LocalImagePaths []string     `db:"local_image_paths" json:"local_image_paths"`
	ImageURLs       []string     `db:"image_urls" json:"image_urls"`
	Geo             *GeoLocation `db:"geo" json:"geo,omitempty"`
	ReplySettings   string       `db:"reply_settings" json:"reply_settings"`
	CreatedAt       time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at" json:"updated_at"`
	PublishedAt     *time.Time   `db:"published_at" json:"published_at"`
}

var postTransitions = map[PostStatus][]PostStatus{
	PostStatusDraft:     {PostStatusDraft, PostStatusScheduled},
	PostStatusScheduled: {PostStatusScheduled, PostStatusPublished, PostStatusFailed},
}

// CanTransition reports whether a post may move from one status to another.
// PUBLISHED and FAILED are terminal.
func CanTransition(from, to PostStatus) bool {
	for _, s := range postTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// SourcesFor returns the statuses a post may be in to move into status.
func SourcesFor(status PostStatus) []PostStatus {
	var from []PostStatus
	for _, s := range []PostStatus{PostStatusDraft, PostStatusScheduled} {
		if CanTransition(s, status) {
			from = append(from, s)
		}
	}
	return from
}

// IsPublished is true once the network has assigned an id.
func (p *Post) IsPublished() bool {
	return p.Status == PostStatusPublished || p.PostIDX != nil
}

func (p *Post) IsEditable() bool {
	return !p.IsPublished() && (p.Status == PostStatusDraft || p.Status == PostStatusScheduled)
}

func (p *Post) IsDeletable() bool {
	return !p.IsPublished()
}

// SameSchedule compares two optional schedule times.
func SameSchedule(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
