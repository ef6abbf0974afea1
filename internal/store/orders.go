package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"bazaar/internal/booking"
	"bazaar/internal/pricing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Order is a multi-line purchase of product listings.
type Order struct {
	ID              int64               `json:"id"`
	OrderNumber     string              `json:"order_number"`
	UserID          int64               `json:"user_id"`
	Status          booking.OrderStatus `json:"status"`
	PaymentMethod   string              `json:"payment_method"`
	PaymentStatus   string              `json:"payment_status"`
	ShippingName    string              `json:"shipping_name"`
	ShippingPhone   string              `json:"shipping_phone"`
	ShippingAddress string              `json:"shipping_address"`
	SubtotalCents   int64               `json:"subtotal_cents"`
	DiscountCents   int64               `json:"discount_cents"`
	TotalCents      int64               `json:"total_cents"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// OrderItem is a priced snapshot of one line at order time.
type OrderItem struct {
	ID              int64  `json:"id"`
	OrderID         int64  `json:"order_id"`
	ListingID       int64  `json:"listing_id"`
	Title           string `json:"title"`
	Quantity        int    `json:"quantity"`
	UnitPriceCents  int64  `json:"unit_price_cents"`
	TotalPriceCents int64  `json:"total_price_cents"`
}

type OrderDetail struct {
	Order Order       `json:"order"`
	Items []OrderItem `json:"items"`
}

// OrderLine is the inbound request shape for one line.
type OrderLine struct {
	ListingID int64 `json:"listing_id"`
	Quantity  int   `json:"quantity"`
}

type ShippingInfo struct {
	Name    string
	Phone   string
	Address string
}

// OrderNumberGenerator issues customer-facing order references.
type OrderNumberGenerator struct{}

func NewOrderNumberGenerator() *OrderNumberGenerator {
	return &OrderNumberGenerator{}
}

func (g *OrderNumberGenerator) Generate() string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return fmt.Sprintf("BZO-%s-%s", id[:4], id[4:8])
}

type OrdersStore struct {
	db  *pgxpool.Pool
	gen *OrderNumberGenerator
}

// Create validates and prices every line, then decrements stock per line and
// writes the order with item snapshots, all inside one transaction. Lines
// are locked in listing-id order so two concurrent orders touching the same
// products cannot deadlock. Any line failing validation aborts the whole
// order before a single unit of stock has moved.
func (s *OrdersStore) Create(ctx context.Context, userID int64, lines []OrderLine, ship ShippingInfo, method string, now time.Time) (*OrderDetail, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("order has no lines")
	}

	sorted := make([]OrderLine, len(lines))
	copy(sorted, lines)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ListingID < sorted[j].ListingID })

	var detail *OrderDetail
	err := withTx(ctx, s.db, func(tx pgx.Tx) error {
		items := make([]OrderItem, 0, len(sorted))
		var subtotal, total int64

		for _, line := range sorted {
			if line.Quantity <= 0 {
				return fmt.Errorf("listing %d: quantity must be positive", line.ListingID)
			}

			l, err := getListingForUpdate(ctx, tx, line.ListingID)
			if err != nil {
				return err
			}
			if l.Kind != KindProduct {
				return fmt.Errorf("listing %d is not a product", line.ListingID)
			}
			if !l.IsActive {
				return ErrListingInactive
			}
			if l.Stock < line.Quantity {
				return fmt.Errorf("%w: listing %d has %d in stock", ErrCapacityUnavailable, l.ID, l.Stock)
			}

			unit := pricing.UnitPrice(l.BasePriceCents, l.Discount(), now)
			items = append(items, OrderItem{
				ListingID:       l.ID,
				Title:           l.Title,
				Quantity:        line.Quantity,
				UnitPriceCents:  unit,
				TotalPriceCents: unit * int64(line.Quantity),
			})
			subtotal += l.BasePriceCents * int64(line.Quantity)
			total += unit * int64(line.Quantity)
		}

		// All lines validated; only now does stock move.
		for _, it := range items {
			if err := reserveStock(ctx, tx, it.ListingID, it.Quantity); err != nil {
				return err
			}
		}

		o := Order{
			OrderNumber:     s.gen.Generate(),
			UserID:          userID,
			Status:          booking.OrderPending,
			PaymentMethod:   method,
			PaymentStatus:   string(booking.PaymentPending),
			ShippingName:    ship.Name,
			ShippingPhone:   ship.Phone,
			ShippingAddress: ship.Address,
			SubtotalCents:   subtotal,
			DiscountCents:   subtotal - total,
			TotalCents:      total,
		}

		err := tx.QueryRow(ctx, `
			INSERT INTO orders
			  (order_number, user_id, status, payment_method, payment_status,
			   shipping_name, shipping_phone, shipping_address,
			   subtotal_cents, discount_cents, total_cents)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING id, created_at, updated_at
		`, o.OrderNumber, o.UserID, o.Status, o.PaymentMethod, o.PaymentStatus,
			o.ShippingName, o.ShippingPhone, o.ShippingAddress,
			o.SubtotalCents, o.DiscountCents, o.TotalCents,
		).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		for i := range items {
			items[i].OrderID = o.ID
			err := tx.QueryRow(ctx, `
				INSERT INTO order_items
				  (order_id, listing_id, title, quantity, unit_price_cents, total_price_cents)
				VALUES ($1, $2, $3, $4, $5, $6)
				RETURNING id
			`, o.ID, items[i].ListingID, items[i].Title, items[i].Quantity,
				items[i].UnitPriceCents, items[i].TotalPriceCents,
			).Scan(&items[i].ID)
			if err != nil {
				return fmt.Errorf("create order item: %w", err)
			}
		}

		detail = &OrderDetail{Order: o, Items: items}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

const orderColumns = `
	id, order_number, user_id, status, payment_method, payment_status,
	shipping_name, shipping_phone, shipping_address,
	subtotal_cents, discount_cents, total_cents, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.UserID, &o.Status, &o.PaymentMethod, &o.PaymentStatus,
		&o.ShippingName, &o.ShippingPhone, &o.ShippingAddress,
		&o.SubtotalCents, &o.DiscountCents, &o.TotalCents, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (s *OrdersStore) GetByID(ctx context.Context, id int64) (*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	return scanOrder(s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
}

func (s *OrdersStore) GetDetailForUser(ctx context.Context, userID, orderID int64) (*OrderDetail, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	o, err := scanOrder(s.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 AND user_id = $2`, orderID, userID))
	if err != nil {
		return nil, err
	}

	items, err := s.loadItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	return &OrderDetail{Order: *o, Items: items}, nil
}

func (s *OrdersStore) loadItems(ctx context.Context, orderID int64) ([]OrderItem, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, order_id, listing_id, title, quantity, unit_price_cents, total_price_cents
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ListingID, &it.Title,
			&it.Quantity, &it.UnitPriceCents, &it.TotalPriceCents); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *OrdersStore) ListByUser(ctx context.Context, userID int64, status string, limit, offset int) ([]Order, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE user_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, userID, status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(
			&o.ID, &o.OrderNumber, &o.UserID, &o.Status, &o.PaymentMethod, &o.PaymentStatus,
			&o.ShippingName, &o.ShippingPhone, &o.ShippingAddress,
			&o.SubtotalCents, &o.DiscountCents, &o.TotalCents, &o.CreatedAt, &o.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// UpdateStatus advances an order along the forward-only lifecycle.
// Cancellation goes through Cancel so stock is restored.
func (s *OrdersStore) UpdateStatus(ctx context.Context, orderID int64, target string) (*Order, error) {
	t := booking.OrderStatus(target)
	if !t.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, target)
	}
	if t == booking.OrderCancelled {
		return s.Cancel(ctx, orderID)
	}

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	o, err := s.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.Status.CanTransitionTo(t) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, t)
	}

	res, err := s.db.Exec(ctx, `
		UPDATE orders SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
	`, orderID, o.Status, t)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: order %d", ErrConflict, orderID)
	}

	o.Status = t
	return o, nil
}

// MarkPaid settles the order's payment flag; see BookingsStore.MarkPaid.
func (s *OrdersStore) MarkPaid(ctx context.Context, orderID int64) (*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	o, err := s.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status == booking.OrderCancelled {
		return nil, fmt.Errorf("%w: order is cancelled", ErrInvalidTransition)
	}
	if !booking.PaymentStatus(o.PaymentStatus).CanMarkPaid() {
		return nil, fmt.Errorf("%w: payment is %s", ErrInvalidTransition, o.PaymentStatus)
	}

	res, err := s.db.Exec(ctx, `
		UPDATE orders SET payment_status = 'paid', updated_at = now()
		WHERE id = $1 AND payment_status = 'pending' AND status != 'cancelled'
	`, orderID)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: order %d", ErrConflict, orderID)
	}

	o.PaymentStatus = string(booking.PaymentPaid)
	return o, nil
}

// Cancel is permitted only while the order is pending. Stock for every line
// is restored in the same transaction that flips the status.
func (s *OrdersStore) Cancel(ctx context.Context, orderID int64) (*Order, error) {
	var out *Order
	err := withTx(ctx, s.db, func(tx pgx.Tx) error {
		o, err := scanOrder(tx.QueryRow(ctx,
			`SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, orderID))
		if err != nil {
			return err
		}
		if !o.Status.CanTransitionTo(booking.OrderCancelled) {
			return fmt.Errorf("%w: %s -> cancelled", ErrInvalidTransition, o.Status)
		}

		res, err := tx.Exec(ctx, `
			UPDATE orders
			SET status = 'cancelled',
			    payment_status = CASE WHEN payment_status = 'paid' THEN 'refunded' ELSE payment_status END,
			    updated_at = now()
			WHERE id = $1 AND status = $2
		`, orderID, o.Status)
		if err != nil {
			return err
		}
		if res.RowsAffected() == 0 {
			return fmt.Errorf("%w: order %d", ErrConflict, orderID)
		}

		rows, err := tx.Query(ctx, `
			SELECT listing_id, quantity FROM order_items
			WHERE order_id = $1
			ORDER BY listing_id
		`, orderID)
		if err != nil {
			return err
		}
		type restore struct {
			listingID int64
			quantity  int
		}
		var restores []restore
		for rows.Next() {
			var r restore
			if err := rows.Scan(&r.listingID, &r.quantity); err != nil {
				rows.Close()
				return err
			}
			restores = append(restores, r)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, r := range restores {
			if err := releaseStock(ctx, tx, r.listingID, r.quantity); err != nil {
				return err
			}
		}

		o.Status = booking.OrderCancelled
		if o.PaymentStatus == string(booking.PaymentPaid) {
			o.PaymentStatus = string(booking.PaymentRefunded)
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// HasDeliveredLine is the rating gate for products: the user must have a
// delivered order containing the listing.
func (s *OrdersStore) HasDeliveredLine(ctx context.Context, userID, listingID int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
		  SELECT 1
		  FROM orders o
		  JOIN order_items oi ON oi.order_id = o.id
		  WHERE o.user_id = $1 AND oi.listing_id = $2 AND o.status = 'delivered'
		)
	`, userID, listingID).Scan(&exists)
	return exists, err
}
