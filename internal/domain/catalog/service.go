package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// InvalidFieldError describes a rejected vendor or dish field.
type InvalidFieldError struct {
	Field  string
	Reason string
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

var maxRating = decimal.NewFromInt(5)

// Service validates catalog writes before handing them to the repository.
type Service struct {
	repo Repository
}

// NewService creates a catalog Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Categories returns all vendor categories.
func (s *Service) Categories(ctx context.Context) ([]Category, error) {
	return s.repo.ListCategories(ctx)
}

// Vendors returns every vendor with its menu.
func (s *Service) Vendors(ctx context.Context) ([]Vendor, error) {
	return s.repo.ListVendors(ctx)
}

// Vendor returns one vendor with its menu.
func (s *Service) Vendor(ctx context.Context, id int64) (*Vendor, error) {
	return s.repo.GetVendor(ctx, id)
}

// Dish returns one dish.
func (s *Service) Dish(ctx context.Context, id int64) (*Dish, error) {
	return s.repo.GetDish(ctx, id)
}

// AddVendor creates a vendor together with its initial menu.
func (s *Service) AddVendor(ctx context.Context, v *Vendor) error {
	if err := ValidateVendor(v); err != nil {
		return err
	}
	for i := range v.Menu {
		if err := ValidateDish(&v.Menu[i]); err != nil {
			return err
		}
	}
	return s.repo.CreateVendor(ctx, v)
}

// UpdateVendor replaces vendor attributes; the menu is left untouched.
func (s *Service) UpdateVendor(ctx context.Context, v *Vendor) error {
	if err := ValidateVendor(v); err != nil {
		return err
	}
	return s.repo.UpdateVendor(ctx, v)
}

// DeleteVendor removes a vendor and its menu.
func (s *Service) DeleteVendor(ctx context.Context, id int64) error {
	return s.repo.DeleteVendor(ctx, id)
}

// AddDish appends a dish to a vendor's menu.
func (s *Service) AddDish(ctx context.Context, d *Dish) error {
	if err := ValidateDish(d); err != nil {
		return err
	}
	if _, err := s.repo.GetVendor(ctx, d.VendorID); err != nil {
		return err
	}
	return s.repo.CreateDish(ctx, d)
}

// UpdateDish replaces dish attributes. The owning vendor cannot change.
func (s *Service) UpdateDish(ctx context.Context, d *Dish) error {
	if err := ValidateDish(d); err != nil {
		return err
	}
	return s.repo.UpdateDish(ctx, d)
}

// DeleteDish removes a dish from its menu.
func (s *Service) DeleteDish(ctx context.Context, id int64) error {
	return s.repo.DeleteDish(ctx, id)
}

// ValidateVendor checks required vendor attributes and trims the name.
func ValidateVendor(v *Vendor) error {
	v.Name = strings.TrimSpace(v.Name)
	if v.Name == "" {
		return &InvalidFieldError{Field: "name", Reason: "required"}
	}
	if v.Rating.IsNegative() || v.Rating.GreaterThan(maxRating) {
		return &InvalidFieldError{Field: "rating", Reason: "must be between 0 and 5"}
	}
	if v.DeliveryTime < 0 {
		return &InvalidFieldError{Field: "deliveryTime", Reason: "must not be negative"}
	}
	return nil
}

// ValidateDish checks required dish attributes and trims the name.
func ValidateDish(d *Dish) error {
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return &InvalidFieldError{Field: "name", Reason: "required"}
	}
	if d.Price.IsNegative() {
		return &InvalidFieldError{Field: "price", Reason: "must not be negative"}
	}
	return nil
}
