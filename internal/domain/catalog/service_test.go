package catalog

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	vendors map[int64]*Vendor
	created *Vendor
	dishes  []Dish
}

func (m *mockRepo) ListCategories(_ context.Context) ([]Category, error) { return nil, nil }
func (m *mockRepo) ListVendors(_ context.Context) ([]Vendor, error)      { return nil, nil }

func (m *mockRepo) GetVendor(_ context.Context, id int64) (*Vendor, error) {
	v, ok := m.vendors[id]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (m *mockRepo) GetDish(_ context.Context, _ int64) (*Dish, error) { return nil, ErrNotFound }

func (m *mockRepo) CreateVendor(_ context.Context, v *Vendor) error {
	m.created = v
	return nil
}

func (m *mockRepo) UpdateVendor(_ context.Context, _ *Vendor) error { return nil }
func (m *mockRepo) DeleteVendor(_ context.Context, _ int64) error   { return nil }

func (m *mockRepo) CreateDish(_ context.Context, d *Dish) error {
	m.dishes = append(m.dishes, *d)
	return nil
}

func (m *mockRepo) UpdateDish(_ context.Context, _ *Dish) error { return nil }
func (m *mockRepo) DeleteDish(_ context.Context, _ int64) error { return nil }

func TestAddVendor_WithMenu(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo)

	v := &Vendor{
		Name:   "  Koshary Eltahrir ",
		Rating: decimal.RequireFromString("4.5"),
		Menu: []Dish{
			{Name: "Koshary", Price: decimal.NewFromInt(45)},
		},
	}
	require.NoError(t, svc.AddVendor(context.Background(), v))
	require.NotNil(t, repo.created)
	assert.Equal(t, "Koshary Eltahrir", repo.created.Name)
	assert.Len(t, repo.created.Menu, 1)
}

func TestAddVendor_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		v     Vendor
		field string
	}{
		{name: "blank name", v: Vendor{Name: "  "}, field: "name"},
		{name: "rating too high", v: Vendor{Name: "A", Rating: decimal.NewFromInt(6)}, field: "rating"},
		{name: "negative delivery time", v: Vendor{Name: "A", DeliveryTime: -1}, field: "deliveryTime"},
		{name: "negative dish price", v: Vendor{Name: "A", Menu: []Dish{{Name: "x", Price: decimal.NewFromInt(-1)}}}, field: "price"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepo{}
			err := NewService(repo).AddVendor(context.Background(), &tt.v)

			var ifErr *InvalidFieldError
			require.ErrorAs(t, err, &ifErr)
			assert.Equal(t, tt.field, ifErr.Field)
			assert.Nil(t, repo.created)
		})
	}
}

func TestAddDish_UnknownVendor(t *testing.T) {
	repo := &mockRepo{vendors: map[int64]*Vendor{}}
	err := NewService(repo).AddDish(context.Background(), &Dish{VendorID: 9, Name: "Fool", Price: decimal.NewFromInt(10)})
	require.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, repo.dishes)
}

func TestAddDish(t *testing.T) {
	repo := &mockRepo{vendors: map[int64]*Vendor{1: {ID: 1, Name: "A"}}}
	err := NewService(repo).AddDish(context.Background(), &Dish{VendorID: 1, Name: "Fool", Price: decimal.NewFromInt(10)})
	require.NoError(t, err)
	assert.Len(t, repo.dishes, 1)
}
