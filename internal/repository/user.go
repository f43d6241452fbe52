package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/otlob/internal/domain/auth"
)

const (
	selectUserSQL = `SELECT id::text, name, email, role, phone_number, district,
	address_details, vendor_id FROM profiles`

	listUsersSQL = selectUserSQL + ` ORDER BY created_at, id`
	getUserSQL   = selectUserSQL + ` WHERE id = $1`

	findCredentialsSQL = `SELECT id::text, name, email, role, phone_number, district,
	address_details, vendor_id, password_hash FROM profiles WHERE email = $1`

	createUserSQL = `INSERT INTO profiles
	(id, name, email, password_hash, role, phone_number, district, address_details, vendor_id)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	updateUserSQL = `UPDATE profiles
	SET name = $2, role = $3, phone_number = $4, district = $5,
	    address_details = $6, vendor_id = $7
	WHERE id = $1`

	deleteUserSQL = `DELETE FROM profiles WHERE id = $1`
)

var _ auth.UserRepository = (*UserRepository)(nil)

// UserRepository implements auth.UserRepository backed by the profiles table.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) List(ctx context.Context) ([]auth.User, error) {
	rows, err := r.pool.Query(ctx, listUsersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	userRows, err := pgx.CollectRows(rows, scanUserRow)
	if err != nil {
		return nil, fmt.Errorf("scanning users: %w", err)
	}
	users := make([]auth.User, 0, len(userRows))
	for _, ur := range userRows {
		u, err := mapUser(ur)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

func (r *UserRepository) Get(ctx context.Context, id string) (*auth.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, auth.ErrNotFound
	}
	rows, err := r.pool.Query(ctx, getUserSQL, id)
	if err != nil {
		return nil, fmt.Errorf("querying user %q: %w", id, err)
	}
	ur, err := pgx.CollectExactlyOneRow(rows, scanUserRow)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, fmt.Errorf("scanning user %q: %w", id, err)
	}
	u, err := mapUser(ur)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// FindCredentials returns the profile and password hash for an email.
func (r *UserRepository) FindCredentials(ctx context.Context, email string) (*auth.Credentials, error) {
	var (
		ur   userRow
		hash string
	)
	err := r.pool.QueryRow(ctx, findCredentialsSQL, email).Scan(
		&ur.ID, &ur.Name, &ur.Email, &ur.Role, &ur.PhoneNumber, &ur.District,
		&ur.AddressDetails, &ur.VendorID, &hash,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, fmt.Errorf("finding credentials: %w", err)
	}
	u, err := mapUser(ur)
	if err != nil {
		return nil, err
	}
	return &auth.Credentials{User: u, PasswordHash: hash}, nil
}

func (r *UserRepository) Create(ctx context.Context, u *auth.User, passwordHash string) error {
	_, err := r.pool.Exec(ctx, createUserSQL,
		u.ID, u.Name, u.Email, passwordHash, string(u.Role),
		u.PhoneNumber, u.District, u.AddressDetails, u.VendorID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return auth.ErrEmailTaken
		}
		return fmt.Errorf("creating user %q: %w", u.Email, err)
	}
	return nil
}

func (r *UserRepository) Update(ctx context.Context, u *auth.User) error {
	if _, err := uuid.Parse(u.ID); err != nil {
		return auth.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, updateUserSQL,
		u.ID, u.Name, string(u.Role), u.PhoneNumber, u.District, u.AddressDetails, u.VendorID,
	)
	if err != nil {
		return fmt.Errorf("updating user %q: %w", u.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return auth.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, deleteUserSQL, id)
	if isForeignKeyViolation(err) {
		return auth.ErrUserHasOrders
	}
	if err != nil {
		return fmt.Errorf("deleting user %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func scanUserRow(row pgx.CollectableRow) (userRow, error) {
	var u userRow
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.Role, &u.PhoneNumber, &u.District,
		&u.AddressDetails, &u.VendorID,
	)
	return u, err
}
