package auth

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- Mock implementations ---

type mockUserRepo struct {
	byID      map[string]*User
	passwords map[string]string
	createErr error
}

func newUserRepo() *mockUserRepo {
	return &mockUserRepo{byID: map[string]*User{}, passwords: map[string]string{}}
}

func (m *mockUserRepo) List(_ context.Context) ([]User, error) {
	out := make([]User, 0, len(m.byID))
	for _, u := range m.byID {
		out = append(out, *u)
	}
	return out, nil
}

func (m *mockUserRepo) Get(_ context.Context, id string) (*User, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserRepo) FindCredentials(_ context.Context, email string) (*Credentials, error) {
	for _, u := range m.byID {
		if u.Email == email {
			return &Credentials{User: *u, PasswordHash: m.passwords[u.ID]}, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockUserRepo) Create(_ context.Context, u *User, hash string) error {
	if m.createErr != nil {
		return m.createErr
	}
	cp := *u
	m.byID[u.ID] = &cp
	m.passwords[u.ID] = hash
	return nil
}

func (m *mockUserRepo) Update(_ context.Context, u *User) error {
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *mockUserRepo) Delete(_ context.Context, id string) error {
	delete(m.byID, id)
	return nil
}

type mockKeyRepo struct {
	byHash map[string]*APIKeyInfo
}

func (m *mockKeyRepo) FindByHash(_ context.Context, hash string) (*APIKeyInfo, error) {
	k, ok := m.byHash[hash]
	if !ok {
		return nil, ErrNotFound
	}
	return k, nil
}

func (m *mockKeyRepo) Create(_ context.Context, info *APIKeyInfo) error {
	m.byHash[info.KeyHash] = info
	return nil
}

func newTestService() (*Service, *mockUserRepo, *mockKeyRepo) {
	users := newUserRepo()
	keys := &mockKeyRepo{byHash: map[string]*APIKeyInfo{}}
	svc := NewService(users, keys, []byte("pepper"))
	svc.cost = bcrypt.MinCost
	return svc, users, keys
}

// --- Tests ---

func TestCreateUser_DefaultsToCustomer(t *testing.T) {
	svc, users, _ := newTestService()

	u, err := svc.CreateUser(context.Background(), NewUser{
		Name:     " Mona ",
		Email:    "Mona@Example.com",
		Password: "secret1",
	})
	require.NoError(t, err)
	assert.Equal(t, RoleCustomer, u.Role)
	assert.Equal(t, "Mona", u.Name)
	assert.Equal(t, "mona@example.com", u.Email)
	assert.NotEqual(t, "secret1", users.passwords[u.ID])
}

func TestCreateUser_Validation(t *testing.T) {
	vendor := int64(3)
	tests := []struct {
		name  string
		in    NewUser
		field string
	}{
		{name: "missing name", in: NewUser{Email: "a@b.c", Password: "secret1"}, field: "name"},
		{name: "bad email", in: NewUser{Name: "A", Email: "nope", Password: "secret1"}, field: "email"},
		{name: "short password", in: NewUser{Name: "A", Email: "a@b.c", Password: "123"}, field: "password"},
		{name: "unknown role", in: NewUser{Name: "A", Email: "a@b.c", Password: "secret1", Role: "chef"}, field: "role"},
		{name: "restaurant without vendor", in: NewUser{Name: "A", Email: "a@b.c", Password: "secret1", Role: RoleRestaurant}, field: "vendorId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newTestService()
			_, err := svc.CreateUser(context.Background(), tt.in)

			var iuErr *InvalidUserError
			require.ErrorAs(t, err, &iuErr)
			assert.Equal(t, tt.field, iuErr.Field)
		})
	}

	t.Run("vendor dropped for non restaurant", func(t *testing.T) {
		svc, _, _ := newTestService()
		u, err := svc.CreateUser(context.Background(), NewUser{
			Name: "A", Email: "a@b.c", Password: "secret1", Role: RoleDelivery, VendorID: &vendor,
		})
		require.NoError(t, err)
		assert.Nil(t, u.VendorID)
	})
}

func TestCreateUser_RepositoryError(t *testing.T) {
	svc, users, _ := newTestService()
	users.createErr = errors.New("duplicate key")

	_, err := svc.CreateUser(context.Background(), NewUser{Name: "A", Email: "a@b.c", Password: "secret1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create user")
}

func TestLoginAndAuthenticate(t *testing.T) {
	svc, _, keys := newTestService()
	ctx := context.Background()

	created, err := svc.CreateUser(ctx, NewUser{Name: "Courier", Email: "c@otlob.test", Password: "secret1", Role: RoleDelivery})
	require.NoError(t, err)

	raw, u, err := svc.Login(ctx, "C@otlob.test", "secret1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, u.ID)
	assert.NotEmpty(t, raw)
	assert.Len(t, keys.byHash, 1)

	got, err := svc.Authenticate(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, RoleDelivery, got.Role)
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, NewUser{Name: "A", Email: "a@b.c", Password: "secret1"})
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "a@b.c", "wrong-password")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "missing@b.c", "secret1")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticate_UnknownKey(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Authenticate(context.Background(), "otl_unknown")
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = svc.Authenticate(context.Background(), "")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestUpdateUser_KeepsEmail(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	u, err := svc.CreateUser(ctx, NewUser{Name: "A", Email: "a@b.c", Password: "secret1"})
	require.NoError(t, err)

	changed := *u
	changed.Email = "other@b.c"
	changed.District = "Maadi"
	updated, err := svc.UpdateUser(ctx, &changed)
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", updated.Email)
	assert.Equal(t, "Maadi", updated.District)
}

func TestUserAddress(t *testing.T) {
	assert.Equal(t, "Maadi, St 9", (&User{District: "Maadi", AddressDetails: "St 9"}).Address())
	assert.Equal(t, "Maadi", (&User{District: "Maadi"}).Address())
	assert.Equal(t, "St 9", (&User{AddressDetails: "St 9"}).Address())
	assert.Empty(t, (&User{}).Address())
}
