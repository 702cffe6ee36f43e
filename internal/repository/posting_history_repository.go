package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/maheshrc27/postpulse/internal/models"
)

type PostingHistoryRepository interface {
	Create(ctx context.Context, ph *models.PostingHistory) (int64, error)
	ListByPostID(ctx context.Context, postID string) ([]*models.PostingHistory, error)
}

type postingHistoryRepository struct {
	db *sql.DB
}

func NewPostingHistoryRepository(db *sql.DB) PostingHistoryRepository {
	return &postingHistoryRepository{db: db}
}

func (r *postingHistoryRepository) Create(ctx context.Context, ph *models.PostingHistory) (int64, error) {
	query := `
		INSERT INTO posting_history (user_id, post_id, attempt, post_id_x, error_message)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, ph.UserID, ph.PostID, ph.Attempt, ph.PostIDX, ph.ErrorMessage).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert posting history: %w", err)
	}
	return id, nil
}

func (r *postingHistoryRepository) ListByPostID(ctx context.Context, postID string) ([]*models.PostingHistory, error) {
	query := `SELECT id, user_id, post_id, attempt, post_id_x, error_message, created_at
		FROM posting_history WHERE post_id = $1 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		return nil, fmt.Errorf("list posting history: %w", err)
	}
	defer rows.Close()

	var phs []*models.PostingHistory
	for rows.Next() {
		var ph models.PostingHistory
		err := rows.Scan(&ph.ID, &ph.UserID, &ph.PostID, &ph.Attempt, &ph.PostIDX, &ph.ErrorMessage, &ph.CreatedAt)
		if err != nil {
			return nil, err
		}
		phs = append(phs, &ph)
	}
	return phs, rows.Err()
}
