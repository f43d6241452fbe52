package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a requested vendor or dish does not exist.
	ErrNotFound = errors.New("not found")
	// ErrVendorHasOrders is returned when deleting a vendor that orders
	// still refer to.
	ErrVendorHasOrders = errors.New("vendor has orders and cannot be deleted")
)

// Dish is a purchasable menu item.
type Dish struct {
	ID          int64
	VendorID    int64
	Name        string
	Description string
	Price       decimal.Decimal
	ImageURL    string
}

// Category groups vendors (restaurants, pharmacies, groceries).
type Category struct {
	ID       int64
	Name     string
	ImageURL string
}

// Vendor is a storefront with its menu.
type Vendor struct {
	ID          int64
	Name        string
	Description string
	Cuisine     string
	CategoryID  int64
	Rating      decimal.Decimal
	// DeliveryTime is the advertised delivery estimate in minutes.
	DeliveryTime int
	ImageURL     string
	Menu         []Dish
}

// Repository defines catalog persistence.
type Repository interface {
	ListCategories(ctx context.Context) ([]Category, error)
	ListVendors(ctx context.Context) ([]Vendor, error)
	GetVendor(ctx context.Context, id int64) (*Vendor, error)
	GetDish(ctx context.Context, id int64) (*Dish, error)

	// CreateVendor inserts the vendor and its menu atomically, assigning IDs.
	CreateVendor(ctx context.Context, v *Vendor) error
	UpdateVendor(ctx context.Context, v *Vendor) error
	DeleteVendor(ctx context.Context, id int64) error

	CreateDish(ctx context.Context, d *Dish) error
	UpdateDish(ctx context.Context, d *Dish) error
	DeleteDish(ctx context.Context, id int64) error
}
