package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/maheshrc27/postpulse/internal/apperr"
	"github.com/maheshrc27/postpulse/internal/models"
)

type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id string) (*models.Post, error)
	GetByUserID(ctx context.Context, userID int64) ([]*models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	UpdateStatus(ctx context.Context, postID string, status models.PostStatus, reason *string) error
	MarkPublished(ctx context.Context, postID, postIDX string, publishedAt time.Time) error
	Remove(ctx context.Context, id string) error
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

const postColumns = `id, user_id, post_id_x, title, content, scheduled_at, status, failure_reason,
	local_image_paths, image_urls, geo, reply_settings, created_at, updated_at, published_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*models.Post, error) {
	var post models.Post
	var geo []byte
	err := row.Scan(&post.ID, &post.UserID, &post.PostIDX, &post.Title, &post.Content, &post.ScheduledAt,
		&post.Status, &post.FailureReason, pq.Array(&post.LocalImagePaths), pq.Array(&post.ImageURLs),
		&geo, &post.ReplySettings, &post.CreatedAt, &post.UpdatedAt, &post.PublishedAt)
	if err != nil {
		return nil, err
	}
	if len(geo) > 0 && string(geo) != "null" {
		post.Geo = &models.GeoLocation{}
		if err := json.Unmarshal(geo, post.Geo); err != nil {
			return nil, err
		}
	}
	return &post, nil
}

func geoValue(geo *models.GeoLocation) (any, error) {
	if geo == nil {
		return nil, nil
	}
	b, err := json.Marshal(geo)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func statusStrings(statuses []models.PostStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	query := `
		INSERT INTO posts (id, user_id, title, content, scheduled_at, status, local_image_paths, image_urls, geo, reply_settings)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`
	geo, err := geoValue(post.Geo)
	if err != nil {
		return err
	}

	err = r.db.QueryRowContext(ctx, query, post.ID, post.UserID, post.Title, post.Content, post.ScheduledAt,
		string(post.Status), pq.Array(post.LocalImagePaths), pq.Array(post.ImageURLs), geo, post.ReplySettings,
	).Scan(&post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`

	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return post, nil
}

func (r *postRepository) GetByUserID(ctx context.Context, userID int64) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// Update writes the editable fields of a post that has not been published.
// The row's current status must be a legal source for post.Status.
func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	query := `
		UPDATE posts
		SET title = $2,
			content = $3,
			scheduled_at = $4,
			status = $5,
			local_image_paths = $6,
			image_urls = $7,
			geo = $8,
			reply_settings = $9,
			updated_at = $10
		WHERE id = $1 AND post_id_x IS NULL AND status = ANY($11)
		RETURNING updated_at
	`
	geo, err := geoValue(post.Geo)
	if err != nil {
		return err
	}

	err = r.db.QueryRowContext(ctx, query, post.ID, post.Title, post.Content, post.ScheduledAt, string(post.Status),
		pq.Array(post.LocalImagePaths), pq.Array(post.ImageURLs), geo, post.ReplySettings, time.Now().UTC(),
		pq.Array(statusStrings(models.SourcesFor(post.Status))),
	).Scan(&post.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.Validation("post %s can no longer be modified", post.ID)
		}
		return fmt.Errorf("update post: %w", err)
	}
	return nil
}

func (r *postRepository) UpdateStatus(ctx context.Context, postID string, status models.PostStatus, reason *string) error {
	query := `
		UPDATE posts
		SET status = $1,
			failure_reason = $2,
			updated_at = $3
		WHERE id = $4 AND status = ANY($5)
	`
	res, err := r.db.ExecContext(ctx, query, string(status), reason, time.Now().UTC(), postID,
		pq.Array(statusStrings(models.SourcesFor(status))))
	if err != nil {
		return err
	}
	return expectOneRow(res, "post %s cannot move to %s", postID, status)
}

// MarkPublished records the network id. It only succeeds once per post.
func (r *postRepository) MarkPublished(ctx context.Context, postID, postIDX string, publishedAt time.Time) error {
	query := `
		UPDATE posts
		SET status = $1,
			post_id_x = $2,
			published_at = $3,
			failure_reason = NULL,
			updated_at = $3
		WHERE id = $4 AND status = $5 AND post_id_x IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, string(models.PostStatusPublished), postIDX, publishedAt, postID,
		string(models.PostStatusScheduled))
	if err != nil {
		return fmt.Errorf("mark post published: %w", err)
	}
	return expectOneRow(res, "post %s is not awaiting publication", postID)
}

func (r *postRepository) Remove(ctx context.Context, id string) error {
	query := `DELETE FROM posts WHERE id = $1 AND status <> $2 AND post_id_x IS NULL`

	res, err := r.db.ExecContext(ctx, query, id, string(models.PostStatusPublished))
	if err != nil {
		return err
	}
	return expectOneRow(res, "post %s cannot be removed", id)
}

func expectOneRow(res sql.Result, format string, args ...any) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected != 1 {
		return apperr.Validation(format, args...)
	}
	return nil
}
