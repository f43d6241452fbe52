package order

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Validation errors. These are returned before the repository is touched.
var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrUnauthenticated = errors.New("an authenticated customer is required")
	ErrNotesRequired   = errors.New("problem notes are required")
	ErrNotApplicant    = errors.New("courier has not applied for this order")
	ErrMixedVendors    = errors.New("cart contains dishes from more than one vendor")
	ErrAddressRequired = errors.New("delivery address is required")
	// ErrInvalidTransition is matched by every *InvalidTransitionError.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrNotFound is returned when an order does not exist.
	ErrNotFound = errors.New("order not found")
)

// InvalidTransitionError reports an action attempted from a status that does
// not allow it.
type InvalidTransitionError struct {
	OrderID string
	Action  string
	From    Status
	To      Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s order %s: status is %s, %s not allowed", e.Action, e.OrderID, e.From, e.To)
}

// Is makes errors.Is(err, ErrInvalidTransition) match.
func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// GatewayError wraps a failure returned by the order store. The underlying
// message is kept intact and not interpreted.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

func gatewayError(op string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return err
	}
	return &GatewayError{Op: op, Err: err}
}
