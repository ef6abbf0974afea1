package store

import (
	"context"
	"errors"
	"time"

	"bazaar/internal/pricing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound            = errors.New("resource not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrConflict            = errors.New("resource was modified concurrently")
	ErrCapacityUnavailable = errors.New("insufficient capacity")
	ErrInvalidTransition   = errors.New("status transition not permitted")
	ErrNotOwner            = errors.New("actor does not own this resource")
	ErrListingInactive     = errors.New("listing is not active")
	ErrNotEligible         = errors.New("no fulfilled booking or order for this listing")

	QueryTimeoutDuration = time.Second * 5
)

type Storage struct {
	Users interface {
		UpsertByPhone(ctx context.Context, phone, name, role string) (*User, error)
		GetByID(ctx context.Context, id int64) (*User, error)
		GetByPhone(ctx context.Context, phone string) (*User, error)
		SetOTP(ctx context.Context, userID int64, hash []byte, expiresAt time.Time) error
		MarkVerified(ctx context.Context, userID int64, refreshToken string) error
		SetRefreshToken(ctx context.Context, userID int64, refreshToken string) error
	}
	Listings interface {
		Create(ctx context.Context, l *Listing) error
		GetByID(ctx context.Context, id int64) (*Listing, error)
		Update(ctx context.Context, l *Listing, now time.Time) error
		SetDiscount(ctx context.Context, listingID, ownerID int64, d pricing.Discount, now time.Time) error
	}
	Availability interface {
		UpsertDays(ctx context.Context, listingID int64, days []DayBucket) error
		GetDay(ctx context.Context, listingID int64, day time.Time) (*DayBucket, error)
		ListRange(ctx context.Context, listingID int64, from, to time.Time) ([]DayBucket, error)
		Check(ctx context.Context, listingID int64, day time.Time, quantity int) (bool, error)
	}
	Bookings interface {
		CreateWithReservation(ctx context.Context, b *Booking, now time.Time) error
		GetByID(ctx context.Context, id int64) (*Booking, error)
		ListByUser(ctx context.Context, userID int64, filter BookingFilter) ([]Booking, error)
		UpdateStatus(ctx context.Context, bookingID int64, target string) (*Booking, error)
		MarkPaid(ctx context.Context, bookingID int64) (*Booking, error)
		Cancel(ctx context.Context, bookingID int64) (*Booking, error)
		WindowsForDate(ctx context.Context, listingID int64, date time.Time) ([]BookedWindow, error)
		HasCompletedBooking(ctx context.Context, userID, listingID int64) (bool, error)
	}
	Orders interface {
		Create(ctx context.Context, userID int64, lines []OrderLine, ship ShippingInfo, method string, now time.Time) (*OrderDetail, error)
		GetDetailForUser(ctx context.Context, userID, orderID int64) (*OrderDetail, error)
		GetByID(ctx context.Context, id int64) (*Order, error)
		ListByUser(ctx context.Context, userID int64, status string, limit, offset int) ([]Order, error)
		UpdateStatus(ctx context.Context, orderID int64, target string) (*Order, error)
		MarkPaid(ctx context.Context, orderID int64) (*Order, error)
		Cancel(ctx context.Context, orderID int64) (*Order, error)
		HasDeliveredLine(ctx context.Context, userID, listingID int64) (bool, error)
	}
	Ratings interface {
		Upsert(ctx context.Context, r *Rating) (*RatingStats, error)
		ListByListing(ctx context.Context, listingID int64) ([]Rating, error)
	}
}

func NewStorage(db *pgxpool.Pool) Storage {
	return Storage{
		Users:        &UsersStore{db},
		Listings:     &ListingsStore{db},
		Availability: &AvailabilityStore{db},
		Bookings:     &BookingsStore{db},
		Orders:       &OrdersStore{db, NewOrderNumberGenerator()},
		Ratings:      &RatingsStore{db},
	}
}

// withTx runs fn inside a transaction, rolling back on any error. Every
// multi-row unit of work in this package (reservation + booking insert,
// multi-line order, cancellation + release) goes through here so that a
// partial mutation is never visible to a failed request.
func withTx(ctx context.Context, db *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
