package order

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/otlob/internal/domain/auth"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending        Status = "pending"
	StatusInProgress     Status = "in_progress"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{
	StatusPending,
	StatusInProgress,
	StatusOutForDelivery,
	StatusDelivered,
	StatusCancelled,
}

var transitions = map[Status][]Status{
	StatusPending:        {StatusInProgress, StatusCancelled},
	StatusInProgress:     {StatusOutForDelivery, StatusCancelled},
	StatusOutForDelivery: {StatusDelivered, StatusCancelled},
}

// ParseStatus validates a stored or submitted status value.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !slices.Contains(Statuses, st) {
		return "", fmt.Errorf("unknown order status %q", s)
	}
	return st, nil
}

// Terminal reports whether no transition leaves the status.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransition reports whether the lifecycle allows moving from one status
// to another.
func CanTransition(from, to Status) bool {
	return slices.Contains(transitions[from], to)
}

// Item is a line copied from the cart when the order is placed. It does not
// reference the cart afterwards.
type Item struct {
	ID        string
	DishID    int64
	DishName  string
	UnitPrice decimal.Decimal
	Quantity  int
	Notes     string
}

// Total is the unit price times quantity.
func (i Item) Total() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is a placed order together with its delivery state.
type Order struct {
	ID              string
	CustomerID      string
	CustomerName    string
	VendorID        int64
	VendorName      string
	DeliveryAddress string
	Items           []Item
	DeliveryFee     decimal.Decimal
	// TotalPrice is the item subtotal plus the delivery fee, fixed at
	// placement time.
	TotalPrice   decimal.Decimal
	Status       Status
	CreatedAt    time.Time
	ProblemNotes string
	// ApplicantIDs are couriers who asked to deliver the order, in
	// application order.
	ApplicantIDs      []string
	AssignedCourierID string
}

// HasApplicant reports whether the courier applied for the order.
func (o *Order) HasApplicant(courierID string) bool {
	return slices.Contains(o.ApplicantIDs, courierID)
}

// Filter narrows an order listing. Zero fields do not filter.
type Filter struct {
	CustomerID string
	VendorID   int64
	Statuses   []Status
}

// FilterFor returns the listing scope of a user's role: admins see
// everything, restaurants their vendor, couriers the orders in the delivery
// phase and customers their own orders.
func FilterFor(u *auth.User) Filter {
	switch u.Role {
	case auth.RoleAdmin:
		return Filter{}
	case auth.RoleRestaurant:
		var vendorID int64 = -1
		if u.VendorID != nil {
			vendorID = *u.VendorID
		}
		return Filter{VendorID: vendorID}
	case auth.RoleDelivery:
		return Filter{Statuses: []Status{StatusInProgress, StatusOutForDelivery}}
	default:
		return Filter{CustomerID: u.ID}
	}
}

// Repository defines order persistence.
type Repository interface {
	// Create stores the order with its items.
	Create(ctx context.Context, o *Order) error
	// Get returns the order with items and applicants, or ErrNotFound.
	Get(ctx context.Context, id string) (*Order, error)
	// List returns orders matching the filter, newest first.
	List(ctx context.Context, f Filter) ([]Order, error)
	// UpdateStatus sets the status and, when not empty, the problem notes.
	UpdateStatus(ctx context.Context, id string, status Status, problemNotes string) error
	// AddApplicant records a courier application; duplicates are ignored.
	AddApplicant(ctx context.Context, id, courierID string) error
	// AssignCourier sets the assigned courier and moves the order out for
	// delivery in one write.
	AssignCourier(ctx context.Context, id, courierID string) error
}

// Event describes a lifecycle change for subscribers.
type Event struct {
	OrderID    string
	Action     string
	Status     Status
	ActorID    string
	OccurredAt time.Time
}

// Notifier publishes lifecycle events.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}
