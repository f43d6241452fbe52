package auth

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
)

// Role is the actor kind a user account acts as.
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleAdmin      Role = "admin"
	RoleDelivery   Role = "delivery"
	RoleRestaurant Role = "restaurant"
)

var (
	// ErrNotFound is returned when a user or key does not exist.
	ErrNotFound = errors.New("user not found")
	// ErrInvalidCredentials is returned when login fails for any reason.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUnauthorized is returned when an API key cannot be resolved.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrEmailTaken is returned when a new account reuses an existing email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrUserHasOrders is returned when deleting a user that placed or
	// delivered orders.
	ErrUserHasOrders = errors.New("user has orders and cannot be deleted")
)

// ParseRole validates a stored or submitted role value.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleCustomer, RoleAdmin, RoleDelivery, RoleRestaurant:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// User is an account profile. Password material never leaves the repository
// layer except as a bcrypt hash during login.
type User struct {
	ID             string
	Name           string
	Email          string
	Role           Role
	PhoneNumber    string
	District       string
	AddressDetails string
	// VendorID is set for restaurant accounts only.
	VendorID *int64
}

// Address joins the profile address parts into a single delivery line.
func (u *User) Address() string {
	switch {
	case u.District != "" && u.AddressDetails != "":
		return u.District + ", " + u.AddressDetails
	case u.District != "":
		return u.District
	default:
		return u.AddressDetails
	}
}

// Owns reports whether a restaurant account manages the given vendor.
func (u *User) Owns(vendorID int64) bool {
	return u.Role == RoleRestaurant && u.VendorID != nil && *u.VendorID == vendorID
}

// Credentials is the stored login material for an account.
type Credentials struct {
	User         User
	PasswordHash string
}

// UserRepository persists user profiles and their credentials.
type UserRepository interface {
	List(ctx context.Context) ([]User, error)
	Get(ctx context.Context, id string) (*User, error)
	FindCredentials(ctx context.Context, email string) (*Credentials, error)
	Create(ctx context.Context, u *User, passwordHash string) error
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id string) error
}

type userKey struct{}

// WithUser returns a context carrying the authenticated user.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFromContext returns the authenticated user stored by WithUser.
func UserFromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(userKey{}).(*User)
	return u, ok && u != nil
}
