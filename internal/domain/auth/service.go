package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLen = 6

// InvalidUserError describes a rejected account field.
type InvalidUserError struct {
	Field  string
	Reason string
}

func (e *InvalidUserError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewUser is the input for creating an account.
type NewUser struct {
	Name           string
	Email          string
	Password       string
	Role           Role
	PhoneNumber    string
	District       string
	AddressDetails string
	VendorID       *int64
}

// Service implements login, API key authentication and account management.
type Service struct {
	users  UserRepository
	keys   Repository
	pepper []byte
	cost   int
}

// NewService creates an auth Service. The pepper keys the HMAC used to hash
// API keys at rest.
func NewService(users UserRepository, keys Repository, pepper []byte) *Service {
	return &Service{
		users:  users,
		keys:   keys,
		pepper: pepper,
		cost:   bcrypt.DefaultCost,
	}
}

// HashKey returns the hex HMAC-SHA256 of a raw API key.
func HashKey(pepper []byte, rawKey string) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(rawKey))
	return hex.EncodeToString(mac.Sum(nil))
}

// Authenticate resolves a raw API key to its user. Any failure is reported as
// ErrUnauthorized.
func (s *Service) Authenticate(ctx context.Context, rawKey string) (*User, error) {
	if rawKey == "" {
		return nil, ErrUnauthorized
	}
	hexHash := HashKey(s.pepper, rawKey)

	info, err := s.keys.FindByHash(ctx, hexHash)
	if err != nil {
		return nil, ErrUnauthorized
	}

	// The stored hash is compared again in constant time; the lookup alone
	// is an index probe.
	want, err := hex.DecodeString(hexHash)
	if err != nil {
		return nil, ErrUnauthorized
	}
	stored, err := hex.DecodeString(info.KeyHash)
	if err != nil || subtle.ConstantTimeCompare(want, stored) != 1 {
		return nil, ErrUnauthorized
	}

	u, err := s.users.Get(ctx, info.UserID)
	if err != nil {
		return nil, ErrUnauthorized
	}
	return u, nil
}

// Login checks the password and issues a new API key for the account.
func (s *Service) Login(ctx context.Context, email, password string) (string, *User, error) {
	creds, err := s.users.FindCredentials(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, errors.Wrap(err, "find credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	raw, err := newRawKey()
	if err != nil {
		return "", nil, errors.Wrap(err, "generate key")
	}
	if err := s.keys.Create(ctx, &APIKeyInfo{
		ID:      uuid.New().String(),
		KeyHash: HashKey(s.pepper, raw),
		UserID:  creds.User.ID,
		Name:    "login",
	}); err != nil {
		return "", nil, errors.Wrap(err, "store key")
	}

	u := creds.User
	return raw, &u, nil
}

// CreateUser validates the input, hashes the password and stores the account.
func (s *Service) CreateUser(ctx context.Context, in NewUser) (*User, error) {
	u := User{
		ID:             uuid.New().String(),
		Name:           strings.TrimSpace(in.Name),
		Email:          normalizeEmail(in.Email),
		Role:           in.Role,
		PhoneNumber:    in.PhoneNumber,
		District:       in.District,
		AddressDetails: in.AddressDetails,
		VendorID:       in.VendorID,
	}
	if u.Role == "" {
		u.Role = RoleCustomer
	}
	if err := validateUser(&u); err != nil {
		return nil, err
	}
	if len(in.Password) < minPasswordLen {
		return nil, &InvalidUserError{Field: "password", Reason: fmt.Sprintf("must be at least %d characters", minPasswordLen)}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}
	if err := s.users.Create(ctx, &u, string(hash)); err != nil {
		return nil, errors.Wrap(err, "create user")
	}
	return &u, nil
}

// UpdateUser replaces the mutable profile fields of an existing account.
// Email is not changed.
func (s *Service) UpdateUser(ctx context.Context, u *User) (*User, error) {
	existing, err := s.users.Get(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	updated := *u
	updated.Email = existing.Email
	updated.Name = strings.TrimSpace(updated.Name)
	if err := validateUser(&updated); err != nil {
		return nil, err
	}
	if err := s.users.Update(ctx, &updated); err != nil {
		return nil, errors.Wrap(err, "update user")
	}
	return &updated, nil
}

// DeleteUser removes an account and its keys.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	return s.users.Delete(ctx, id)
}

// ListUsers returns every account.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.users.List(ctx)
}

// GetUser returns a single account.
func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	return s.users.Get(ctx, id)
}

func validateUser(u *User) error {
	if u.Name == "" {
		return &InvalidUserError{Field: "name", Reason: "required"}
	}
	if !strings.Contains(u.Email, "@") {
		return &InvalidUserError{Field: "email", Reason: "must be an email address"}
	}
	if _, err := ParseRole(string(u.Role)); err != nil {
		return &InvalidUserError{Field: "role", Reason: err.Error()}
	}
	switch {
	case u.Role == RoleRestaurant && u.VendorID == nil:
		return &InvalidUserError{Field: "vendorId", Reason: "required for restaurant accounts"}
	case u.Role != RoleRestaurant:
		u.VendorID = nil
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func newRawKey() (string, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return "otl_" + hex.EncodeToString(b[:]), nil
}
