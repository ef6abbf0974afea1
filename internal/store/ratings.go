package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Rating is one user's score for a listing. A user keeps a single rating per
// listing; re-rating replaces the old score.
type Rating struct {
	ID        int64     `json:"id"`
	ListingID int64     `json:"listing_id"`
	UserID    int64     `json:"user_id"`
	Score     int       `json:"score"` // 0..5
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RatingStats is the denormalized aggregate kept on the listing row.
type RatingStats struct {
	ListingID int64   `json:"listing_id"`
	Average   float64 `json:"average"`
	Count     int     `json:"count"`
}

type RatingsStore struct {
	db *pgxpool.Pool
}

// Upsert writes or replaces the user's rating and recomputes the listing
// aggregate in the same transaction, so the listing row never drifts from
// the ratings table.
func (s *RatingsStore) Upsert(ctx context.Context, r *Rating) (*RatingStats, error) {
	if r.Score < 0 || r.Score > 5 {
		return nil, fmt.Errorf("score must be between 0 and 5")
	}

	var stats RatingStats
	err := withTx(ctx, s.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO ratings (listing_id, user_id, score, comment)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (listing_id, user_id) DO UPDATE
			SET score = EXCLUDED.score, comment = EXCLUDED.comment, updated_at = now()
			RETURNING id, created_at, updated_at
		`, r.ListingID, r.UserID, r.Score, r.Comment).
			Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
		if err != nil {
			return fmt.Errorf("upsert rating: %w", err)
		}

		err = tx.QueryRow(ctx, `
			UPDATE listings
			SET rating_avg = sub.avg, rating_count = sub.cnt, updated_at = now()
			FROM (
			  SELECT COALESCE(AVG(score), 0) AS avg, COUNT(*) AS cnt
			  FROM ratings WHERE listing_id = $1
			) AS sub
			WHERE id = $1
			RETURNING rating_avg, rating_count
		`, r.ListingID).Scan(&stats.Average, &stats.Count)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("refresh rating aggregate: %w", err)
		}

		stats.ListingID = r.ListingID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (s *RatingsStore) ListByListing(ctx context.Context, listingID int64) ([]Rating, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	rows, err := s.db.Query(ctx, `
		SELECT id, listing_id, user_id, score, comment, created_at, updated_at
		FROM ratings
		WHERE listing_id = $1
		ORDER BY updated_at DESC
	`, listingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Rating
	for rows.Next() {
		var r Rating
		if err := rows.Scan(&r.ID, &r.ListingID, &r.UserID, &r.Score, &r.Comment,
			&r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
