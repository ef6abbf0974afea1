package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DayBucket is the capacity record for one listing on one date.
// Invariant: 0 <= AvailableUnits <= TotalUnits, enforced by the conditional
// reserve and the clamped release below.
type DayBucket struct {
	ListingID      int64     `json:"listing_id"`
	Day            time.Time `json:"day"`
	TotalUnits     int       `json:"total_units"`
	AvailableUnits int       `json:"available_units"`
	PriceCents     *int64    `json:"price_cents,omitempty"` // per-day override of the listing base price
}

type AvailabilityStore struct {
	db *pgxpool.Pool
}

// UpsertDays writes day buckets in one batch. Raising total_units raises
// available_units by the same amount; lowering it clamps available_units so
// the bucket invariant holds even when seats were already sold.
func (s *AvailabilityStore) UpsertDays(ctx context.Context, listingID int64, days []DayBucket) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	batch := &pgx.Batch{}
	for _, d := range days {
		batch.Queue(`
			INSERT INTO availability_days (listing_id, day, total_units, available_units, price_cents)
			VALUES ($1, $2, $3, $3, $4)
			ON CONFLICT (listing_id, day) DO UPDATE
			SET available_units = LEAST(
			        GREATEST(availability_days.available_units + EXCLUDED.total_units - availability_days.total_units, 0),
			        EXCLUDED.total_units),
			    total_units = EXCLUDED.total_units,
			    price_cents = EXCLUDED.price_cents
		`, listingID, d.Day, d.TotalUnits, d.PriceCents)
	}

	br := s.db.SendBatch(ctx, batch)
	defer br.Close()

	for range days {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert availability day: %w", err)
		}
	}
	return nil
}

func (s *AvailabilityStore) GetDay(ctx context.Context, listingID int64, day time.Time) (*DayBucket, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	return getDay(ctx, s.db, listingID, day)
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getDay(ctx context.Context, q rowQuerier, listingID int64, day time.Time) (*DayBucket, error) {
	var b DayBucket
	err := q.QueryRow(ctx, `
		SELECT listing_id, day, total_units, available_units, price_cents
		FROM availability_days
		WHERE listing_id = $1 AND day = $2
	`, listingID, day).Scan(&b.ListingID, &b.Day, &b.TotalUnits, &b.AvailableUnits, &b.PriceCents)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (s *AvailabilityStore) ListRange(ctx context.Context, listingID int64, from, to time.Time) ([]DayBucket, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	rows, err := s.db.Query(ctx, `
		SELECT listing_id, day, total_units, available_units, price_cents
		FROM availability_days
		WHERE listing_id = $1 AND day >= $2 AND day <= $3
		ORDER BY day
	`, listingID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DayBucket
	for rows.Next() {
		var b DayBucket
		if err := rows.Scan(&b.ListingID, &b.Day, &b.TotalUnits, &b.AvailableUnits, &b.PriceCents); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Check reports whether the bucket exists and holds at least quantity units.
// A missing bucket is not available: capacity fails closed.
func (s *AvailabilityStore) Check(ctx context.Context, listingID int64, day time.Time, quantity int) (bool, error) {
	b, err := s.GetDay(ctx, listingID, day)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return b.AvailableUnits >= quantity, nil
}

// reserveDay decrements a bucket in a single conditional statement: the
// decrement and the sufficiency check are one round trip, so two concurrent
// reservations can never both pass the check. Callers hold the listing row
// lock, so zero rows affected means the capacity genuinely is not there
// (missing bucket or too few units), not a lost race.
func reserveDay(ctx context.Context, tx pgx.Tx, listingID int64, day time.Time, quantity int) error {
	res, err := tx.Exec(ctx, `
		UPDATE availability_days
		SET available_units = available_units - $3
		WHERE listing_id = $1 AND day = $2 AND available_units >= $3
	`, listingID, day, quantity)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrCapacityUnavailable, day.Format("2006-01-02"))
	}
	return nil
}

// releaseDay returns units to a bucket, capped at total_units. The cap is
// defensive: release quantity always mirrors a prior reserve.
func releaseDay(ctx context.Context, tx pgx.Tx, listingID int64, day time.Time, quantity int) error {
	_, err := tx.Exec(ctx, `
		UPDATE availability_days
		SET available_units = LEAST(total_units, available_units + $3)
		WHERE listing_id = $1 AND day = $2
	`, listingID, day, quantity)
	return err
}

// reserveStock and releaseStock are the flat-counter analogues for product
// listings.
func reserveStock(ctx context.Context, tx pgx.Tx, listingID int64, quantity int) error {
	res, err := tx.Exec(ctx, `
		UPDATE listings
		SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2
	`, listingID, quantity)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return fmt.Errorf("%w: listing %d", ErrCapacityUnavailable, listingID)
	}
	return nil
}

func releaseStock(ctx context.Context, tx pgx.Tx, listingID int64, quantity int) error {
	_, err := tx.Exec(ctx, `
		UPDATE listings
		SET stock = stock + $2, updated_at = now()
		WHERE id = $1
	`, listingID, quantity)
	return err
}

// daysBetween expands an inclusive [from, to] date range, normalized to
// midnight UTC. Used by multi-day rental reservations.
func daysBetween(from, to time.Time) []time.Time {
	from = time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	to = time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)

	var days []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}
