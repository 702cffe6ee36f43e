package models

import "time"

// Metrics is one reconciled set of engagement counters.
type Metrics struct {
	Likes       int64 `json:"likes"`
	Retweets    int64 `json:"retweets"`
	Quotes      int64 `json:"quotes"`
	Replies     int64 `json:"replies"`
	Impressions int64 `json:"impressions"`
}

// Max returns the per-counter maximum of m and o.
func (m Metrics) Max(o Metrics) Metrics {
	return Metrics{
		Likes:       max(m.Likes, o.Likes),
		Retweets:    max(m.Retweets, o.Retweets),
		Quotes:      max(m.Quotes, o.Quotes),
		Replies:     max(m.Replies, o.Replies),
		Impressions: max(m.Impressions, o.Impressions),
	}
}

type MetricSnapshot struct {
	Timestamp time.Time `json:"timestamp"`
	Metrics
}

type Engagement struct {
	ID      int64  `db:"id" json:"id"`
	PostIDX string `db:"post_id_x" json:"post_id_x"`
	PostID  string `db:"post_id" json:"post_id"`
	UserID  int64  `db:"user_id" json:"user_id"`
	Metrics
	HourlyMetrics   []MetricSnapshot `db:"hourly_metrics" json:"hourly_metrics"`
	LastRefreshedAt *time.Time       `db:"last_refreshed_at" json:"last_refreshed_at"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updated_at"`
}

// Clone copies the engagement including its snapshot slice.
func (e *Engagement) Clone() *Engagement {
	if e == nil {
		return nil
	}
	c := *e
	c.HourlyMetrics = append([]MetricSnapshot(nil), e.HourlyMetrics...)
	return &c
}
