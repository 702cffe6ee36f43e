package models

import "time"

// PostingHistory records one dispatch attempt for a post.
type PostingHistory struct {
	ID           int64     `db:"id" json:"id"`
	UserID       int64     `db:"user_id" json:"user_id"`
	PostID       string    `db:"post_id" json:"post_id"`
	Attempt      int       `db:"attempt" json:"attempt"`
	PostIDX      string    `db:"post_id_x" json:"post_id_x"`
	ErrorMessage string    `db:"error_message" json:"error_message"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
