package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/maheshrc27/postpulse/internal/models"
)

type EngagementRepository interface {
	// Create inserts a zeroed record. It reports false when one already exists for the network id.
	Create(ctx context.Context, e *models.Engagement) (bool, error)
	GetByPostIDX(ctx context.Context, postIDX string) (*models.Engagement, error)
	GetByPostID(ctx context.Context, postID string) (*models.Engagement, error)
	ListByUserID(ctx context.Context, userID int64, limit int) ([]*models.Engagement, error)
	// ApplyRefresh raises counters to at least m and appends snap to the hourly series.
	ApplyRefresh(ctx context.Context, postIDX string, m models.Metrics, snap models.MetricSnapshot) (*models.Engagement, error)
}

type engagementRepository struct {
	db *sql.DB
}

func NewEngagementRepository(db *sql.DB) EngagementRepository {
	return &engagementRepository{db: db}
}

const engagementColumns = `id, post_id_x, post_id, user_id, likes, retweets, quotes, replies, impressions,
	hourly_metrics, last_refreshed_at, created_at, updated_at`

func scanEngagement(row rowScanner) (*models.Engagement, error) {
	var e models.Engagement
	var hourly []byte
	err := row.Scan(&e.ID, &e.PostIDX, &e.PostID, &e.UserID, &e.Likes, &e.Retweets, &e.Quotes, &e.Replies,
		&e.Impressions, &hourly, &e.LastRefreshedAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(hourly) > 0 {
		if err := json.Unmarshal(hourly, &e.HourlyMetrics); err != nil {
			return nil, fmt.Errorf("decode hourly metrics: %w", err)
		}
	}
	return &e, nil
}

func (r *engagementRepository) Create(ctx context.Context, e *models.Engagement) (bool, error) {
	query := `
		INSERT INTO engagements (post_id_x, post_id, user_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (post_id_x) DO NOTHING
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query, e.PostIDX, e.PostID, e.UserID).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("insert engagement: %w", err)
	}
	return true, nil
}

func (r *engagementRepository) GetByPostIDX(ctx context.Context, postIDX string) (*models.Engagement, error) {
	query := `SELECT ` + engagementColumns + ` FROM engagements WHERE post_id_x = $1`
	return r.getOne(ctx, query, postIDX)
}

func (r *engagementRepository) GetByPostID(ctx context.Context, postID string) (*models.Engagement, error) {
	query := `SELECT ` + engagementColumns + ` FROM engagements WHERE post_id = $1`
	return r.getOne(ctx, query, postID)
}

func (r *engagementRepository) getOne(ctx context.Context, query string, arg any) (*models.Engagement, error) {
	e, err := scanEngagement(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return e, nil
}

func (r *engagementRepository) ListByUserID(ctx context.Context, userID int64, limit int) ([]*models.Engagement, error) {
	query := `SELECT ` + engagementColumns + ` FROM engagements WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list engagements: %w", err)
	}
	defer rows.Close()

	var out []*models.Engagement
	for rows.Next() {
		e, err := scanEngagement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *engagementRepository) ApplyRefresh(ctx context.Context, postIDX string, m models.Metrics, snap models.MetricSnapshot) (*models.Engagement, error) {
	query := `
		UPDATE engagements
		SET likes = GREATEST(likes, $2),
			retweets = GREATEST(retweets, $3),
			quotes = GREATEST(quotes, $4),
			replies = GREATEST(replies, $5),
			impressions = GREATEST(impressions, $6),
			hourly_metrics = hourly_metrics || $7::jsonb,
			last_refreshed_at = $8,
			updated_at = $8
		WHERE post_id_x = $1
		RETURNING ` + engagementColumns

	appended, err := json.Marshal([]models.MetricSnapshot{snap})
	if err != nil {
		return nil, err
	}

	refreshedAt := snap.Timestamp
	if refreshedAt.IsZero() {
		refreshedAt = time.Now().UTC()
	}

	e, err := scanEngagement(r.db.QueryRowContext(ctx, query, postIDX, m.Likes, m.Retweets, m.Quotes, m.Replies,
		m.Impressions, string(appended), refreshedAt))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("apply engagement refresh: %w", err)
	}
	return e, nil
}
