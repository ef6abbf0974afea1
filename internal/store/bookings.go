package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bazaar/internal/booking"
	"bazaar/internal/pricing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BookingType string

const (
	// BookingSeat reserves units from a single date bucket (adventure seats).
	BookingSeat BookingType = "seat"
	// BookingDaily reserves units from every date bucket in [start, end].
	BookingDaily BookingType = "daily"
	// BookingHourly reserves a same-day time window; capacity is derived
	// from existing bookings, nothing is decremented.
	BookingHourly BookingType = "hourly"
)

// BookedWindow is an occupied interval on a listing's calendar day, as seen
// by the overlap checker.
type BookedWindow = booking.Window

// Booking is a reservation of listing capacity by a user.
type Booking struct {
	ID              int64          `json:"id"`
	Reference       string         `json:"reference"`
	ListingID       int64          `json:"listing_id"`
	UserID          int64          `json:"user_id"`
	Type            BookingType    `json:"booking_type"`
	Quantity        int            `json:"quantity"`
	StartDate       time.Time      `json:"start_date"`
	EndDate         time.Time      `json:"end_date"`
	StartTime       *string        `json:"start_time,omitempty"` // "15:04", hourly only
	EndTime         *string        `json:"end_time,omitempty"`
	TotalPriceCents int64          `json:"total_price_cents"`
	Status          booking.Status `json:"status"`
	PaymentMethod   string         `json:"payment_method"`
	PaymentStatus   string         `json:"payment_status"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

type BookingFilter struct {
	Status *string
	Page   int
	Limit  int
}

type BookingsStore struct {
	db *pgxpool.Pool
}

// maxBookingSpanDays bounds a daily rental's inclusive date range.
const maxBookingSpanDays = 366

// validateBookingRequest checks the booking type against the listing's
// capacity model before any capacity is touched. A seat or daily booking
// only makes sense against date buckets, an hourly one only against a
// time-range listing; anything else would insert a booking that reserved
// nothing. Hourly bookings take the whole asset, so their quantity is
// pinned to 1.
func validateBookingRequest(l *Listing, b *Booking) error {
	switch b.Type {
	case BookingSeat, BookingDaily:
		if l.CapacityModel != CapacityDateBucketed {
			return fmt.Errorf("%w: %s booking on a %s listing", ErrInvalidInput, b.Type, l.CapacityModel)
		}
	case BookingHourly:
		if l.CapacityModel != CapacityTimeRange {
			return fmt.Errorf("%w: hourly booking on a %s listing", ErrInvalidInput, l.CapacityModel)
		}
		if b.Quantity != 1 {
			return fmt.Errorf("%w: hourly bookings take the whole asset, quantity must be 1", ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unknown booking type %q", ErrInvalidInput, b.Type)
	}

	if b.Type == BookingDaily {
		if b.EndDate.Before(b.StartDate) {
			return fmt.Errorf("%w: end date before start date", ErrInvalidInput)
		}
		if b.EndDate.Sub(b.StartDate) > maxBookingSpanDays*24*time.Hour {
			return fmt.Errorf("%w: date range exceeds %d days", ErrInvalidInput, maxBookingSpanDays)
		}
	}
	return nil
}

// CreateWithReservation runs the whole creation protocol in one transaction:
// lock the listing row, validate capacity for the booking type, compute the
// price, reserve, insert the booking as pending. Either the booking and its
// reservation both commit or neither does.
func (s *BookingsStore) CreateWithReservation(ctx context.Context, b *Booking, now time.Time) error {
	return withTx(ctx, s.db, func(tx pgx.Tx) error {
		l, err := getListingForUpdate(ctx, tx, b.ListingID)
		if err != nil {
			return err
		}
		if !l.IsActive {
			return ErrListingInactive
		}
		if err := validateBookingRequest(l, b); err != nil {
			return err
		}

		switch b.Type {
		case BookingSeat:
			if err := s.reserveSeats(ctx, tx, l, b, now); err != nil {
				return err
			}
		case BookingDaily:
			if err := s.reserveDaily(ctx, tx, l, b, now); err != nil {
				return err
			}
		case BookingHourly:
			if err := s.checkHourly(ctx, tx, l, b, now); err != nil {
				return err
			}
		}

		b.Reference = newBookingReference()
		b.Status = booking.StatusPending
		b.PaymentStatus = string(booking.PaymentPending)

		return tx.QueryRow(ctx, `
			INSERT INTO bookings
			  (reference, listing_id, user_id, booking_type, quantity,
			   start_date, end_date, start_time, end_time,
			   total_price_cents, status, payment_method, payment_status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			RETURNING id, created_at, updated_at
		`, b.Reference, b.ListingID, b.UserID, b.Type, b.Quantity,
			b.StartDate, b.EndDate, b.StartTime, b.EndTime,
			b.TotalPriceCents, b.Status, b.PaymentMethod, b.PaymentStatus,
		).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	})
}

// reserveSeats handles single-date bucketed capacity (adventures).
func (s *BookingsStore) reserveSeats(ctx context.Context, tx pgx.Tx, l *Listing, b *Booking, now time.Time) error {
	day := dateOnly(b.StartDate)
	b.StartDate, b.EndDate = day, day

	bucket, err := getDay(ctx, tx, l.ID, day)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// No bucket for that date: capacity fails closed.
			return fmt.Errorf("%w: no availability on %s", ErrCapacityUnavailable, day.Format("2006-01-02"))
		}
		return err
	}

	unit := bucketUnitPrice(l, bucket, now)
	b.TotalPriceCents = unit * int64(b.Quantity)

	return reserveDay(ctx, tx, l.ID, day, b.Quantity)
}

// reserveDaily handles multi-day bucketed capacity (daily rentals). Every
// date must independently pass the capacity check before any is decremented;
// the surrounding transaction makes the reservation all-or-nothing.
func (s *BookingsStore) reserveDaily(ctx context.Context, tx pgx.Tx, l *Listing, b *Booking, now time.Time) error {
	days := daysBetween(b.StartDate, b.EndDate)
	b.StartDate, b.EndDate = days[0], days[len(days)-1]

	buckets := make([]*DayBucket, 0, len(days))
	for _, day := range days {
		bucket, err := getDay(ctx, tx, l.ID, day)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return fmt.Errorf("%w: no availability on %s", ErrCapacityUnavailable, day.Format("2006-01-02"))
			}
			return err
		}
		if bucket.AvailableUnits < b.Quantity {
			return fmt.Errorf("%w: %s", ErrCapacityUnavailable, day.Format("2006-01-02"))
		}
		buckets = append(buckets, bucket)
	}

	var total int64
	for i, day := range days {
		total += bucketUnitPrice(l, buckets[i], now) * int64(b.Quantity)
		if err := reserveDay(ctx, tx, l.ID, day, b.Quantity); err != nil {
			return err
		}
	}
	b.TotalPriceCents = total
	return nil
}

// checkHourly validates an hourly rental window against existing bookings.
// The listing row lock taken by the caller serializes concurrent hourly
// requests for the same listing, so the check cannot race the insert.
func (s *BookingsStore) checkHourly(ctx context.Context, tx pgx.Tx, l *Listing, b *Booking, now time.Time) error {
	if b.StartTime == nil || b.EndTime == nil {
		return fmt.Errorf("hourly booking requires start and end times")
	}
	proposed, err := booking.ParseWindow(*b.StartTime, *b.EndTime)
	if err != nil {
		return err
	}

	day := dateOnly(b.StartDate)
	b.StartDate, b.EndDate = day, day

	existing, err := windowsForDate(ctx, tx, l.ID, day)
	if err != nil {
		return err
	}
	if err := booking.CheckProposal(proposed, existing, l.MinimumHours*60); err != nil {
		switch {
		case errors.Is(err, booking.ErrWindowConflict),
			errors.Is(err, booking.ErrWindowInBuffer),
			errors.Is(err, booking.ErrFullDayConflict):
			return fmt.Errorf("%w: %v", ErrCapacityUnavailable, err)
		default:
			return err
		}
	}

	// Quantity is pinned to 1 for hourly bookings; the price is purely
	// duration-based.
	unit := pricing.UnitPrice(l.BasePriceCents, l.Discount(), now)
	b.TotalPriceCents = unit * int64(proposed.Minutes()) / 60
	return nil
}

// bucketUnitPrice picks the per-day override when present, otherwise the
// discount-adjusted base price.
func bucketUnitPrice(l *Listing, bucket *DayBucket, now time.Time) int64 {
	if bucket.PriceCents != nil {
		return *bucket.PriceCents
	}
	return pricing.UnitPrice(l.BasePriceCents, l.Discount(), now)
}

func newBookingReference() string {
	return "BZR-" + strings.ToUpper(uuid.NewString()[:8])
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

const bookingColumns = `
	id, reference, listing_id, user_id, booking_type, quantity,
	start_date, end_date, start_time, end_time,
	total_price_cents, status, payment_method, payment_status,
	created_at, updated_at`

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	err := row.Scan(
		&b.ID, &b.Reference, &b.ListingID, &b.UserID, &b.Type, &b.Quantity,
		&b.StartDate, &b.EndDate, &b.StartTime, &b.EndTime,
		&b.TotalPriceCents, &b.Status, &b.PaymentMethod, &b.PaymentStatus,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (s *BookingsStore) GetByID(ctx context.Context, id int64) (*Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	return scanBooking(s.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
}

func (s *BookingsStore) ListByUser(ctx context.Context, userID int64, filter BookingFilter) ([]Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 50 {
		filter.Limit = 20
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE user_id = $1 AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, userID, filter.Status, filter.Limit, (filter.Page-1)*filter.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		var b Booking
		if err := rows.Scan(
			&b.ID, &b.Reference, &b.ListingID, &b.UserID, &b.Type, &b.Quantity,
			&b.StartDate, &b.EndDate, &b.StartTime, &b.EndTime,
			&b.TotalPriceCents, &b.Status, &b.PaymentMethod, &b.PaymentStatus,
			&b.CreatedAt, &b.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// WindowsForDate exposes the occupied windows for availability displays.
func (s *BookingsStore) WindowsForDate(ctx context.Context, listingID int64, date time.Time) ([]BookedWindow, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	return windowsForDate(ctx, s.db, listingID, dateOnly(date))
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// windowsForDate collects every non-cancelled booking that occupies the
// given listing day: hourly bookings become their time windows, seat and
// daily bookings spanning the date become full-day blocks.
func windowsForDate(ctx context.Context, q querier, listingID int64, day time.Time) ([]BookedWindow, error) {
	rows, err := q.Query(ctx, `
		SELECT booking_type, start_time, end_time
		FROM bookings
		WHERE listing_id = $1
		  AND status != 'cancelled'
		  AND start_date <= $2 AND end_date >= $2
	`, listingID, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BookedWindow
	for rows.Next() {
		var (
			typ        BookingType
			start, end *string
		)
		if err := rows.Scan(&typ, &start, &end); err != nil {
			return nil, err
		}
		if typ == BookingHourly && start != nil && end != nil {
			w, err := booking.ParseWindow(*start, *end)
			if err != nil {
				return nil, fmt.Errorf("stored booking window: %w", err)
			}
			out = append(out, w)
		} else {
			out = append(out, booking.FullDay)
		}
	}
	return out, rows.Err()
}

// UpdateStatus applies a fulfillment transition (confirm, complete). The
// transition table is enforced explicitly; the conditional update detects a
// concurrent transition and reports it as a conflict, not a silent overwrite.
func (s *BookingsStore) UpdateStatus(ctx context.Context, bookingID int64, target string) (*Booking, error) {
	t := booking.Status(target)
	if !t.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, target)
	}
	if t == booking.StatusCancelled {
		return s.Cancel(ctx, bookingID)
	}

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	b, err := s.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !b.Status.CanTransitionTo(t) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, t)
	}

	res, err := s.db.Exec(ctx, `
		UPDATE bookings SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
	`, bookingID, b.Status, t)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected() == 0 {
		// The booking moved under us between the read and the update.
		return nil, fmt.Errorf("%w: booking %d", ErrConflict, bookingID)
	}

	b.Status = t
	return b, nil
}

// MarkPaid settles the payment flag. Payments are recorded, not processed:
// the fulfilling side flips this after collecting cash or charging the card
// out of band. A cancelled booking cannot be settled.
func (s *BookingsStore) MarkPaid(ctx context.Context, bookingID int64) (*Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	b, err := s.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status == booking.StatusCancelled {
		return nil, fmt.Errorf("%w: booking is cancelled", ErrInvalidTransition)
	}
	if !booking.PaymentStatus(b.PaymentStatus).CanMarkPaid() {
		return nil, fmt.Errorf("%w: payment is %s", ErrInvalidTransition, b.PaymentStatus)
	}

	res, err := s.db.Exec(ctx, `
		UPDATE bookings SET payment_status = 'paid', updated_at = now()
		WHERE id = $1 AND payment_status = 'pending' AND status != 'cancelled'
	`, bookingID)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: booking %d", ErrConflict, bookingID)
	}

	b.PaymentStatus = string(booking.PaymentPaid)
	return b, nil
}

// Cancel transitions a booking to cancelled and releases exactly the
// capacity its creation reserved, in the same transaction. Hourly bookings
// have no stored reservation; dropping the row from the non-cancelled set
// frees the window. A paid booking flips to refunded.
func (s *BookingsStore) Cancel(ctx context.Context, bookingID int64) (*Booking, error) {
	var out *Booking
	err := withTx(ctx, s.db, func(tx pgx.Tx) error {
		b, err := scanBooking(tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, bookingID))
		if err != nil {
			return err
		}
		if !b.Status.CanTransitionTo(booking.StatusCancelled) {
			return fmt.Errorf("%w: %s -> cancelled", ErrInvalidTransition, b.Status)
		}

		res, err := tx.Exec(ctx, `
			UPDATE bookings
			SET status = 'cancelled',
			    payment_status = CASE WHEN payment_status = 'paid' THEN 'refunded' ELSE payment_status END,
			    updated_at = now()
			WHERE id = $1 AND status = $2
		`, bookingID, b.Status)
		if err != nil {
			return err
		}
		if res.RowsAffected() == 0 {
			return fmt.Errorf("%w: booking %d", ErrConflict, bookingID)
		}

		switch b.Type {
		case BookingSeat:
			if err := releaseDay(ctx, tx, b.ListingID, b.StartDate, b.Quantity); err != nil {
				return err
			}
		case BookingDaily:
			for _, day := range daysBetween(b.StartDate, b.EndDate) {
				if err := releaseDay(ctx, tx, b.ListingID, day, b.Quantity); err != nil {
					return err
				}
			}
		}

		b.Status = booking.StatusCancelled
		if b.PaymentStatus == string(booking.PaymentPaid) {
			b.PaymentStatus = string(booking.PaymentRefunded)
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// HasCompletedBooking is the rating gate: the user must hold a completed
// booking for the listing.
func (s *BookingsStore) HasCompletedBooking(ctx context.Context, userID, listingID int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
		  SELECT 1 FROM bookings
		  WHERE user_id = $1 AND listing_id = $2 AND status = 'completed'
		)
	`, userID, listingID).Scan(&exists)
	return exists, err
}
