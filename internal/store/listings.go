package store

import (
	"context"
	"errors"
	"time"

	"bazaar/internal/pricing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ListingKind string

const (
	KindAdventure ListingKind = "adventure"
	KindRental    ListingKind = "rental"
	KindProduct   ListingKind = "product"
)

// CapacityModel selects how a listing's capacity is accounted for.
type CapacityModel string

const (
	// CapacityDateBucketed pre-allocates per-date unit buckets
	// (adventure seats per departure day, daily rental units).
	CapacityDateBucketed CapacityModel = "date_bucketed"
	// CapacityTimeRange has no stored buckets; hourly rental availability
	// is derived from existing bookings via the overlap checker.
	CapacityTimeRange CapacityModel = "time_range"
	// CapacityFlatStock is a single stock counter (market products).
	CapacityFlatStock CapacityModel = "flat_stock"
)

// DefaultCapacityModel returns the capacity accounting used by a vertical
// unless the listing overrides it (rentals may be daily or hourly).
func DefaultCapacityModel(kind ListingKind) CapacityModel {
	switch kind {
	case KindProduct:
		return CapacityFlatStock
	default:
		return CapacityDateBucketed
	}
}

// Listing is any bookable or purchasable item: an adventure departure, a
// rental asset, or a market product.
type Listing struct {
	ID             int64         `json:"id"`
	OwnerID        int64         `json:"owner_id"`
	Kind           ListingKind   `json:"kind"`
	CapacityModel  CapacityModel `json:"capacity_model"`
	Title          string        `json:"title"`
	Description    string        `json:"description"`
	BasePriceCents int64         `json:"base_price_cents"`
	MinimumHours   int           `json:"minimum_hours,omitempty"` // hourly rentals only
	Stock          int           `json:"stock,omitempty"`         // flat_stock only
	IsActive       bool          `json:"is_active"`
	RatingAvg      float64       `json:"rating_avg"`
	RatingCount    int           `json:"rating_count"`

	DiscountPercent    int        `json:"discount_percent,omitempty"`
	DiscountValidFrom  *time.Time `json:"discount_valid_from,omitempty"`
	DiscountValidUntil *time.Time `json:"discount_valid_until,omitempty"`
	DiscountActive     bool       `json:"discount_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Discount assembles the pricing view of the listing's discount columns,
// or nil when none is configured.
func (l *Listing) Discount() *pricing.Discount {
	if l.DiscountPercent <= 0 || l.DiscountValidFrom == nil || l.DiscountValidUntil == nil {
		return nil
	}
	return &pricing.Discount{
		Percent:    l.DiscountPercent,
		ValidFrom:  *l.DiscountValidFrom,
		ValidUntil: *l.DiscountValidUntil,
		Active:     l.DiscountActive,
	}
}

const listingColumns = `
	id, owner_id, kind, capacity_model, title, description, base_price_cents,
	minimum_hours, stock, is_active, rating_avg, rating_count,
	discount_percent, discount_valid_from, discount_valid_until, discount_active,
	created_at, updated_at`

type ListingsStore struct {
	db *pgxpool.Pool
}

func (s *ListingsStore) Create(ctx context.Context, l *Listing) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	query := `
		INSERT INTO listings
		  (owner_id, kind, capacity_model, title, description, base_price_cents,
		   minimum_hours, stock, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`
	return s.db.QueryRow(ctx, query,
		l.OwnerID, l.Kind, l.CapacityModel, l.Title, l.Description, l.BasePriceCents,
		l.MinimumHours, l.Stock, l.IsActive,
	).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
}

func (s *ListingsStore) GetByID(ctx context.Context, id int64) (*Listing, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	row := s.db.QueryRow(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = $1`, id)
	return scanListing(row)
}

func scanListing(row pgx.Row) (*Listing, error) {
	var l Listing
	err := row.Scan(
		&l.ID, &l.OwnerID, &l.Kind, &l.CapacityModel, &l.Title, &l.Description,
		&l.BasePriceCents, &l.MinimumHours, &l.Stock, &l.IsActive,
		&l.RatingAvg, &l.RatingCount,
		&l.DiscountPercent, &l.DiscountValidFrom, &l.DiscountValidUntil, &l.DiscountActive,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &l, nil
}

// getListingForUpdate locks the listing row for the duration of the
// surrounding transaction. Every capacity mutation for a listing takes this
// lock first, which serializes check-then-reserve sequences per listing.
func getListingForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*Listing, error) {
	row := tx.QueryRow(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = $1 FOR UPDATE`, id)
	return scanListing(row)
}

// Update persists mutable listing fields. The discount active flag is
// recomputed against now on every persist.
func (s *ListingsStore) Update(ctx context.Context, l *Listing, now time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	l.DiscountActive = l.DiscountValidUntil != nil && !now.After(*l.DiscountValidUntil)

	res, err := s.db.Exec(ctx, `
		UPDATE listings
		SET title = $2, description = $3, base_price_cents = $4, minimum_hours = $5,
		    stock = $6, is_active = $7, discount_active = $8, updated_at = now()
		WHERE id = $1
	`, l.ID, l.Title, l.Description, l.BasePriceCents, l.MinimumHours,
		l.Stock, l.IsActive, l.DiscountActive)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetDiscount replaces the listing's discount window. Ownership is enforced
// in the same statement so a non-owner update reads as not found.
func (s *ListingsStore) SetDiscount(ctx context.Context, listingID, ownerID int64, d pricing.Discount, now time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	active := !now.After(d.ValidUntil)

	res, err := s.db.Exec(ctx, `
		UPDATE listings
		SET discount_percent = $3, discount_valid_from = $4, discount_valid_until = $5,
		    discount_active = $6, updated_at = now()
		WHERE id = $1 AND owner_id = $2
	`, listingID, ownerID, d.Percent, d.ValidFrom, d.ValidUntil, active)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
