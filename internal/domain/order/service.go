package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/otlob/internal/domain/auth"
	"github.com/xenking/otlob/internal/domain/cart"
)

const instrumentationName = "github.com/xenking/otlob/internal/domain/order"

// action is one lifecycle operation: the single status it may start from and
// the status it leaves the order in.
type action struct {
	name string
	from Status
	to   Status
}

var (
	actAccept  = action{name: "accept", from: StatusPending, to: StatusInProgress}
	actReject  = action{name: "reject", from: StatusPending, to: StatusCancelled}
	actCancel  = action{name: "cancel", from: StatusInProgress, to: StatusCancelled}
	actApply   = action{name: "apply", from: StatusInProgress, to: StatusInProgress}
	actAssign  = action{name: "assign", from: StatusInProgress, to: StatusOutForDelivery}
	actDeliver = action{name: "deliver", from: StatusOutForDelivery, to: StatusDelivered}
	actProblem = action{name: "report_problem", from: StatusOutForDelivery, to: StatusCancelled}
)

func (a action) check(o *Order) error {
	ok := o.Status == a.from
	if ok && a.from != a.to {
		ok = CanTransition(a.from, a.to)
	}
	if !ok {
		return &InvalidTransitionError{
			OrderID: o.ID,
			Action:  a.name,
			From:    o.Status,
			To:      a.to,
		}
	}
	return nil
}

// Config holds non-dependency settings for the Service.
type Config struct {
	// DeliveryFee is added to every order total at placement time.
	DeliveryFee    decimal.Decimal
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// CreateRequest is the input for placing an order from a cart.
type CreateRequest struct {
	Lines    []cart.Line
	Customer *auth.User
	// Address overrides the customer's profile address when set.
	Address string
}

// Service implements the order lifecycle on top of a Repository.
//
// Every operation validates against the order as currently stored and then
// writes through the repository; nothing is mutated locally. After a
// successful write the order is read back and that copy is returned, so
// callers always see the stored state. Concurrent writers are not
// serialized: the last write to reach the store wins.
type Service struct {
	orders   Repository
	notifier Notifier
	fee      decimal.Decimal
	now      func() time.Time

	tracer      trace.Tracer
	transitions metric.Int64Counter
}

// NewService creates an order Service. A nil notifier disables events.
func NewService(orders Repository, notifier Notifier, cfg Config) (*Service, error) {
	tp := cfg.TracerProvider
	if tp == nil {
		tp = tracenoop.NewTracerProvider()
	}
	mp := cfg.MeterProvider
	if mp == nil {
		mp = metricnoop.NewMeterProvider()
	}

	counter, err := mp.Meter(instrumentationName).Int64Counter("otlob.order.transitions",
		metric.WithDescription("Order lifecycle operations that reached the store"),
	)
	if err != nil {
		return nil, err
	}

	return &Service{
		orders:      orders,
		notifier:    notifier,
		fee:         cfg.DeliveryFee,
		now:         time.Now,
		tracer:      tp.Tracer(instrumentationName),
		transitions: counter,
	}, nil
}

// DeliveryFee returns the fee added to new orders.
func (s *Service) DeliveryFee() decimal.Decimal {
	return s.fee
}

// Create places a pending order from a cart snapshot. The vendor is taken
// from the first line. Clearing the cart is left to the caller.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Order, error) {
	if req.Customer == nil {
		return nil, ErrUnauthenticated
	}
	if len(req.Lines) == 0 {
		return nil, ErrEmptyCart
	}

	vendorID := req.Lines[0].Dish.VendorID
	items := make([]Item, len(req.Lines))
	subtotal := decimal.Zero
	for i, l := range req.Lines {
		if l.Dish.VendorID != vendorID {
			return nil, ErrMixedVendors
		}
		items[i] = Item{
			ID:        l.ID,
			DishID:    l.Dish.ID,
			DishName:  l.Dish.Name,
			UnitPrice: l.Dish.Price,
			Quantity:  l.Quantity,
			Notes:     l.Notes.Value,
		}
		subtotal = subtotal.Add(items[i].Total())
	}

	address := strings.TrimSpace(req.Address)
	if address == "" {
		address = req.Customer.Address()
	}
	if address == "" {
		return nil, ErrAddressRequired
	}

	ctx, span := s.tracer.Start(ctx, "order.create")
	defer span.End()

	o := &Order{
		ID:              uuid.New().String(),
		CustomerID:      req.Customer.ID,
		VendorID:        vendorID,
		DeliveryAddress: address,
		Items:           items,
		DeliveryFee:     s.fee,
		TotalPrice:      subtotal.Add(s.fee),
		Status:          StatusPending,
		CreatedAt:       s.now().UTC(),
	}
	span.SetAttributes(attribute.String("order.id", o.ID))

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, fail(span, gatewayError("create order", err))
	}
	return s.afterWrite(ctx, span, o.ID, "create", StatusPending, req.Customer.ID)
}

// Accept moves a pending order into preparation.
func (s *Service) Accept(ctx context.Context, id string) (*Order, error) {
	return s.transition(ctx, id, actAccept, "")
}

// Reject cancels a pending order.
func (s *Service) Reject(ctx context.Context, id string) (*Order, error) {
	return s.transition(ctx, id, actReject, "")
}

// Cancel cancels an order that is being prepared. Notes are required.
func (s *Service) Cancel(ctx context.Context, id, notes string) (*Order, error) {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return nil, ErrNotesRequired
	}
	return s.transition(ctx, id, actCancel, notes)
}

// MarkDelivered completes an order that is out for delivery. Whether the
// caller is the assigned courier is not checked here.
func (s *Service) MarkDelivered(ctx context.Context, id string) (*Order, error) {
	return s.transition(ctx, id, actDeliver, "")
}

// ReportProblem cancels an order that is out for delivery and stores the
// courier's notes. Blank notes are rejected before the store is read.
func (s *Service) ReportProblem(ctx context.Context, id, notes string) (*Order, error) {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return nil, ErrNotesRequired
	}
	return s.transition(ctx, id, actProblem, notes)
}

// ApplyAsCourier adds the courier to the applicant list of an order in
// preparation. Applying twice is a no-op.
func (s *Service) ApplyAsCourier(ctx context.Context, id, courierID string) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.apply")
	defer span.End()

	o, err := s.get(ctx, id)
	if err != nil {
		return nil, fail(span, err)
	}
	if err := actApply.check(o); err != nil {
		return nil, fail(span, err)
	}
	if o.HasApplicant(courierID) {
		return o, nil
	}
	if err := s.orders.AddApplicant(ctx, id, courierID); err != nil {
		return nil, fail(span, gatewayError("add applicant", err))
	}
	return s.afterWrite(ctx, span, id, actApply.name, actApply.to, courierID)
}

// AssignCourier hands an order in preparation to one of its applicants.
func (s *Service) AssignCourier(ctx context.Context, id, courierID string) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.assign")
	defer span.End()

	o, err := s.get(ctx, id)
	if err != nil {
		return nil, fail(span, err)
	}
	if err := actAssign.check(o); err != nil {
		return nil, fail(span, err)
	}
	if !o.HasApplicant(courierID) {
		return nil, fail(span, ErrNotApplicant)
	}
	if err := s.orders.AssignCourier(ctx, id, courierID); err != nil {
		return nil, fail(span, gatewayError("assign courier", err))
	}
	return s.afterWrite(ctx, span, id, actAssign.name, actAssign.to, courierID)
}

// Get returns a single order.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	return s.get(ctx, id)
}

// List returns the orders visible to the viewer's role.
func (s *Service) List(ctx context.Context, viewer *auth.User) ([]Order, error) {
	if viewer == nil {
		return nil, ErrUnauthenticated
	}
	orders, err := s.orders.List(ctx, FilterFor(viewer))
	if err != nil {
		return nil, gatewayError("list orders", err)
	}
	return orders, nil
}

// Board returns the courier's delivery board.
func (s *Service) Board(ctx context.Context, courier *auth.User) (Board, error) {
	orders, err := s.List(ctx, courier)
	if err != nil {
		return Board{}, err
	}
	return SplitBoard(orders, courier.ID), nil
}

func (s *Service) transition(ctx context.Context, id string, a action, notes string) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order."+a.name)
	defer span.End()

	o, err := s.get(ctx, id)
	if err != nil {
		return nil, fail(span, err)
	}
	if err := a.check(o); err != nil {
		return nil, fail(span, err)
	}
	if err := s.orders.UpdateStatus(ctx, id, a.to, notes); err != nil {
		return nil, fail(span, gatewayError("update order status", err))
	}
	return s.afterWrite(ctx, span, id, a.name, a.to, "")
}

func (s *Service) get(ctx context.Context, id string) (*Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, gatewayError("get order", err)
	}
	return o, nil
}

// afterWrite records the operation, publishes the event and returns the
// order as read back from the store.
func (s *Service) afterWrite(ctx context.Context, span trace.Span, id, name string, status Status, actorID string) (*Order, error) {
	s.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", name),
		attribute.String("status", string(status)),
	))

	if s.notifier != nil {
		e := Event{
			OrderID:    id,
			Action:     name,
			Status:     status,
			ActorID:    actorID,
			OccurredAt: s.now().UTC(),
		}
		if err := s.notifier.Notify(ctx, e); err != nil {
			zctx.From(ctx).Warn("Order event not published",
				zap.String("order_id", id),
				zap.String("action", name),
				zap.Error(err),
			)
		}
	}

	o, err := s.get(ctx, id)
	if err != nil {
		return nil, fail(span, err)
	}
	return o, nil
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
