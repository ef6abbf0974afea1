package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

var ErrDuplicatePhone = errors.New("a user with that phone number already exists")

// User is a mobile-OTP identity. Roles gate what the user may list and
// which bookings they may fulfil.
type User struct {
	ID           int64     `json:"id"`
	Phone        string    `json:"phone"`
	Name         string    `json:"name"`
	Role         string    `json:"role"` // shopper, vendor, adventurer, renter, admin
	IsVerified   bool      `json:"is_verified"`
	OTP          otp       `json:"-"`
	OTPExpiresAt time.Time `json:"-"`
	RefreshToken string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// otp keeps only the bcrypt hash of the one-time code; the plaintext is
// never persisted.
type otp struct {
	hash []byte
}

func (o *otp) Set(code string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	o.hash = hash
	return nil
}

func (o *otp) Compare(code string) error {
	return bcrypt.CompareHashAndPassword(o.hash, []byte(code))
}

// Hash exposes the stored hash for persistence.
func (o *otp) Hash() []byte { return o.hash }

type UsersStore struct {
	db *pgxpool.Pool
}

// UpsertByPhone creates the identity on first contact and returns the
// existing row afterwards. The role is fixed at first registration; later
// requests with a different role do not overwrite it.
func (s *UsersStore) UpsertByPhone(ctx context.Context, phone, name, role string) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	query := `
		INSERT INTO users (phone, name, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (phone) DO UPDATE SET updated_at = now()
		RETURNING id, phone, name, role, is_verified, created_at, updated_at
	`
	var u User
	err := s.db.QueryRow(ctx, query, phone, name, role).
		Scan(&u.ID, &u.Phone, &u.Name, &u.Role, &u.IsVerified, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicatePhone
		}
		return nil, err
	}
	return &u, nil
}

func (s *UsersStore) GetByID(ctx context.Context, id int64) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	query := `
		SELECT id, phone, name, role, is_verified, otp_hash, otp_expires_at, refresh_token, created_at, updated_at
		FROM users WHERE id = $1
	`
	return s.scanUser(s.db.QueryRow(ctx, query, id))
}

func (s *UsersStore) GetByPhone(ctx context.Context, phone string) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	query := `
		SELECT id, phone, name, role, is_verified, otp_hash, otp_expires_at, refresh_token, created_at, updated_at
		FROM users WHERE phone = $1
	`
	return s.scanUser(s.db.QueryRow(ctx, query, phone))
}

func (s *UsersStore) scanUser(row pgx.Row) (*User, error) {
	var (
		u          User
		otpHash    []byte
		otpExpires *time.Time
		refresh    *string
	)
	err := row.Scan(&u.ID, &u.Phone, &u.Name, &u.Role, &u.IsVerified,
		&otpHash, &otpExpires, &refresh, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.OTP = otp{hash: otpHash}
	if otpExpires != nil {
		u.OTPExpiresAt = *otpExpires
	}
	if refresh != nil {
		u.RefreshToken = *refresh
	}
	return &u, nil
}

func (s *UsersStore) SetOTP(ctx context.Context, userID int64, hash []byte, expiresAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	res, err := s.db.Exec(ctx, `
		UPDATE users SET otp_hash = $2, otp_expires_at = $3, updated_at = now()
		WHERE id = $1
	`, userID, hash, expiresAt)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *UsersStore) MarkVerified(ctx context.Context, userID int64, refreshToken string) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	res, err := s.db.Exec(ctx, `
		UPDATE users
		SET is_verified = true, otp_hash = NULL, otp_expires_at = NULL,
		    refresh_token = $2, updated_at = now()
		WHERE id = $1
	`, userID, refreshToken)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *UsersStore) SetRefreshToken(ctx context.Context, userID int64, refreshToken string) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	res, err := s.db.Exec(ctx, `
		UPDATE users SET refresh_token = $2, updated_at = now() WHERE id = $1
	`, userID, refreshToken)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
