package repository

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/otlob/internal/domain/auth"
	"github.com/xenking/otlob/internal/domain/catalog"
	"github.com/xenking/otlob/internal/domain/order"
)

// MalformedRecordError reports a stored row that does not satisfy the domain
// invariants. Such rows are rejected instead of being passed on.
type MalformedRecordError struct {
	Table  string
	ID     string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed %s record %q: %s", e.Table, e.ID, e.Reason)
}

// Rows as scanned from PostgreSQL, before validation.

type orderRow struct {
	ID                string
	CustomerID        string
	CustomerName      string
	VendorID          int64
	VendorName        string
	DeliveryAddress   string
	DeliveryFee       decimal.Decimal
	TotalPrice        decimal.Decimal
	Status            string
	ProblemNotes      string
	AssignedCourierID *string
	CreatedAt         time.Time
}

type orderItemRow struct {
	OrderID   string
	Position  int32
	LineID    string
	DishID    *int64
	DishName  string
	UnitPrice decimal.Decimal
	Quantity  int32
	Notes     string
}

type applicantRow struct {
	OrderID     string
	ApplicantID string
}

type vendorRow struct {
	ID           int64
	Name         string
	Description  string
	Cuisine      string
	CategoryID   *int64
	Rating       decimal.Decimal
	DeliveryTime int32
	ImageURL     string
}

type dishRow struct {
	ID          int64
	VendorID    int64
	Name        string
	Description string
	Price       decimal.Decimal
	ImageURL    string
}

type userRow struct {
	ID             string
	Name           string
	Email          string
	Role           string
	PhoneNumber    string
	District       string
	AddressDetails string
	VendorID       *int64
}

func mapOrder(row orderRow, items []orderItemRow, applicants []string) (order.Order, error) {
	bad := func(reason string, args ...any) error {
		return &MalformedRecordError{Table: "orders", ID: row.ID, Reason: fmt.Sprintf(reason, args...)}
	}

	if _, err := uuid.Parse(row.ID); err != nil {
		return order.Order{}, bad("id is not a uuid")
	}
	if row.CustomerID == "" {
		return order.Order{}, bad("missing customer")
	}
	if row.VendorID <= 0 {
		return order.Order{}, bad("missing vendor")
	}
	status, err := order.ParseStatus(row.Status)
	if err != nil {
		return order.Order{}, bad("%v", err)
	}
	if row.TotalPrice.IsNegative() || row.DeliveryFee.IsNegative() {
		return order.Order{}, bad("negative price")
	}
	if len(items) == 0 {
		return order.Order{}, bad("order has no items")
	}

	o := order.Order{
		ID:              row.ID,
		CustomerID:      row.CustomerID,
		CustomerName:    row.CustomerName,
		VendorID:        row.VendorID,
		VendorName:      row.VendorName,
		DeliveryAddress: row.DeliveryAddress,
		DeliveryFee:     row.DeliveryFee,
		TotalPrice:      row.TotalPrice,
		Status:          status,
		CreatedAt:       row.CreatedAt,
		ProblemNotes:    row.ProblemNotes,
		Items:           make([]order.Item, len(items)),
		ApplicantIDs:    applicants,
	}
	if row.AssignedCourierID != nil {
		o.AssignedCourierID = *row.AssignedCourierID
	}

	for i, it := range items {
		if it.Quantity < 1 {
			return order.Order{}, bad("item %d has quantity %d", it.Position, it.Quantity)
		}
		if it.UnitPrice.IsNegative() {
			return order.Order{}, bad("item %d has a negative price", it.Position)
		}
		if strings.TrimSpace(it.DishName) == "" {
			return order.Order{}, bad("item %d has no dish name", it.Position)
		}
		o.Items[i] = order.Item{
			ID:        it.LineID,
			DishName:  it.DishName,
			UnitPrice: it.UnitPrice,
			Quantity:  int(it.Quantity),
			Notes:     it.Notes,
		}
		if it.DishID != nil {
			o.Items[i].DishID = *it.DishID
		}
	}

	if status == order.StatusOutForDelivery && o.AssignedCourierID == "" {
		return order.Order{}, bad("out for delivery without a courier")
	}

	return o, nil
}

func mapDish(row dishRow) (catalog.Dish, error) {
	id := fmt.Sprint(row.ID)
	if row.ID <= 0 || row.VendorID <= 0 {
		return catalog.Dish{}, &MalformedRecordError{Table: "dishes", ID: id, Reason: "missing identity"}
	}
	if strings.TrimSpace(row.Name) == "" {
		return catalog.Dish{}, &MalformedRecordError{Table: "dishes", ID: id, Reason: "blank name"}
	}
	if row.Price.IsNegative() {
		return catalog.Dish{}, &MalformedRecordError{Table: "dishes", ID: id, Reason: "negative price"}
	}
	return catalog.Dish{
		ID:          row.ID,
		VendorID:    row.VendorID,
		Name:        row.Name,
		Description: row.Description,
		Price:       row.Price,
		ImageURL:    row.ImageURL,
	}, nil
}

func mapVendor(row vendorRow, dishes []dishRow) (catalog.Vendor, error) {
	if row.ID <= 0 || strings.TrimSpace(row.Name) == "" {
		return catalog.Vendor{}, &MalformedRecordError{Table: "vendors", ID: fmt.Sprint(row.ID), Reason: "missing identity or name"}
	}
	v := catalog.Vendor{
		ID:           row.ID,
		Name:         row.Name,
		Description:  row.Description,
		Cuisine:      row.Cuisine,
		Rating:       row.Rating,
		DeliveryTime: int(row.DeliveryTime),
		ImageURL:     row.ImageURL,
		Menu:         make([]catalog.Dish, 0, len(dishes)),
	}
	if row.CategoryID != nil {
		v.CategoryID = *row.CategoryID
	}
	for _, dr := range dishes {
		d, err := mapDish(dr)
		if err != nil {
			return catalog.Vendor{}, err
		}
		if d.VendorID != v.ID {
			return catalog.Vendor{}, &MalformedRecordError{Table: "dishes", ID: fmt.Sprint(d.ID), Reason: "belongs to another vendor"}
		}
		v.Menu = append(v.Menu, d)
	}
	return v, nil
}

func mapUser(row userRow) (auth.User, error) {
	if _, err := uuid.Parse(row.ID); err != nil {
		return auth.User{}, &MalformedRecordError{Table: "profiles", ID: row.ID, Reason: "id is not a uuid"}
	}
	role, err := auth.ParseRole(row.Role)
	if err != nil {
		return auth.User{}, &MalformedRecordError{Table: "profiles", ID: row.ID, Reason: err.Error()}
	}
	return auth.User{
		ID:             row.ID,
		Name:           row.Name,
		Email:          row.Email,
		Role:           role,
		PhoneNumber:    row.PhoneNumber,
		District:       row.District,
		AddressDetails: row.AddressDetails,
		VendorID:       row.VendorID,
	}, nil
}
