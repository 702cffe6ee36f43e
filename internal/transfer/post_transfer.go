package transfer

import (
	"time"

	"github.com/maheshrc27/postpulse/internal/models"
)

type PostCreation struct {
	Title           string              `json:"title"`
	Content         string              `json:"content"`
	ScheduledAt     *time.Time          `json:"scheduled_at"`
	Draft           bool                `json:"draft"`
	ImageURLs       []string            `json:"image_urls"`
	LocalImagePaths []string            `json:"local_image_paths"`
	Geo             *models.GeoLocation `json:"geo"`
	ReplySettings   string              `json:"reply_settings"`
}

// PostUpdate carries only the fields being changed.
type PostUpdate struct {
	Title         *string             `json:"title"`
	Content       *string             `json:"content"`
	ScheduledAt   *time.Time          `json:"scheduled_at"`
	Draft         *bool               `json:"draft"`
	ImageURLs     *[]string           `json:"image_urls"`
	Geo           *models.GeoLocation `json:"geo"`
	ReplySettings *string             `json:"reply_settings"`
}

type BatchRefreshRequest struct {
	PostIDXs []string `json:"post_ids_x"`
}
