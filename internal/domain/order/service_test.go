package order

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/otlob/internal/domain/auth"
	"github.com/xenking/otlob/internal/domain/cart"
	"github.com/xenking/otlob/internal/domain/catalog"
)

// --- Mock implementations ---

// memRepo is an in-memory Repository that stores deep copies.
type memRepo struct {
	orders   map[string]*Order
	gets     int
	writeErr error
	lastList Filter
}

func newMemRepo() *memRepo {
	return &memRepo{orders: map[string]*Order{}}
}

func cloneOrder(o *Order) *Order {
	cp := *o
	cp.Items = slices.Clone(o.Items)
	cp.ApplicantIDs = slices.Clone(o.ApplicantIDs)
	return &cp
}

func (m *memRepo) Create(_ context.Context, o *Order) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.orders[o.ID] = cloneOrder(o)
	return nil
}

func (m *memRepo) Get(_ context.Context, id string) (*Order, error) {
	m.gets++
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneOrder(o), nil
}

func (m *memRepo) List(_ context.Context, f Filter) ([]Order, error) {
	m.lastList = f
	var out []Order
	for _, o := range m.orders {
		out = append(out, *cloneOrder(o))
	}
	return out, nil
}

func (m *memRepo) UpdateStatus(_ context.Context, id string, status Status, notes string) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	o := m.orders[id]
	o.Status = status
	if notes != "" {
		o.ProblemNotes = notes
	}
	return nil
}

func (m *memRepo) AddApplicant(_ context.Context, id, courierID string) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	o := m.orders[id]
	if !slices.Contains(o.ApplicantIDs, courierID) {
		o.ApplicantIDs = append(o.ApplicantIDs, courierID)
	}
	return nil
}

func (m *memRepo) AssignCourier(_ context.Context, id, courierID string) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	o := m.orders[id]
	o.AssignedCourierID = courierID
	o.Status = StatusOutForDelivery
	return nil
}

type recordingNotifier struct {
	events []Event
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, e Event) error {
	n.events = append(n.events, e)
	return n.err
}

// --- Helpers ---

var testFee = decimal.NewFromInt(20)

func newTestService(t *testing.T, repo Repository, n Notifier) *Service {
	t.Helper()
	svc, err := NewService(repo, n, Config{DeliveryFee: testFee})
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC) }
	return svc
}

func newCustomer() *auth.User {
	return &auth.User{ID: "cust-1", Name: "Mona", Role: auth.RoleCustomer, District: "Maadi", AddressDetails: "Road 9"}
}

func newDish(id, vendorID int64, price string) catalog.Dish {
	return catalog.Dish{ID: id, VendorID: vendorID, Name: "dish", Price: decimal.RequireFromString(price)}
}

func twoLineCart() *cart.Cart {
	c := cart.New()
	c.Add(newDish(1, 7, "50"), cart.OptString{})
	c.Add(newDish(1, 7, "50"), cart.OptString{})
	c.Add(newDish(2, 7, "30"), cart.NewOptString("no onions"))
	return c
}

func placeOrder(t *testing.T, svc *Service) *Order {
	t.Helper()
	o, err := svc.Create(context.Background(), CreateRequest{
		Lines:    twoLineCart().Lines(),
		Customer: newCustomer(),
	})
	require.NoError(t, err)
	return o
}

// --- Tests ---

func TestCreate_Validation(t *testing.T) {
	svc := newTestService(t, newMemRepo(), nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateRequest{Lines: twoLineCart().Lines()})
	require.ErrorIs(t, err, ErrUnauthenticated)

	_, err = svc.Create(ctx, CreateRequest{Customer: newCustomer()})
	require.ErrorIs(t, err, ErrEmptyCart)

	mixed := cart.New()
	mixed.Add(newDish(1, 7, "10"), cart.OptString{})
	mixed.Add(newDish(2, 8, "10"), cart.OptString{})
	_, err = svc.Create(ctx, CreateRequest{Lines: mixed.Lines(), Customer: newCustomer()})
	require.ErrorIs(t, err, ErrMixedVendors)

	_, err = svc.Create(ctx, CreateRequest{Lines: twoLineCart().Lines(), Customer: &auth.User{ID: "x"}})
	require.ErrorIs(t, err, ErrAddressRequired)
}

func TestCreate_PendingWithTotals(t *testing.T) {
	repo := newMemRepo()
	n := &recordingNotifier{}
	svc := newTestService(t, repo, n)

	o := placeOrder(t, svc)

	assert.Equal(t, StatusPending, o.Status)
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, int64(7), o.VendorID)
	assert.Equal(t, "cust-1", o.CustomerID)
	assert.Equal(t, "Maadi, Road 9", o.DeliveryAddress)
	require.Len(t, o.Items, 2)
	assert.Equal(t, 2, o.Items[0].Quantity)
	assert.Equal(t, "no onions", o.Items[1].Notes)
	// 2*50 + 30 + 20 delivery
	assert.True(t, decimal.NewFromInt(150).Equal(o.TotalPrice), "got %s", o.TotalPrice)
	assert.True(t, testFee.Equal(o.DeliveryFee))

	require.Len(t, n.events, 1)
	assert.Equal(t, "create", n.events[0].Action)
	assert.Equal(t, StatusPending, n.events[0].Status)
}

func TestCreate_ExplicitAddress(t *testing.T) {
	svc := newTestService(t, newMemRepo(), nil)
	o, err := svc.Create(context.Background(), CreateRequest{
		Lines:    twoLineCart().Lines(),
		Customer: newCustomer(),
		Address:  "  Office, 3rd floor ",
	})
	require.NoError(t, err)
	assert.Equal(t, "Office, 3rd floor", o.DeliveryAddress)
}

func TestCreate_SnapshotIndependentOfCart(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(t, repo, nil)

	c := twoLineCart()
	o, err := svc.Create(context.Background(), CreateRequest{Lines: c.Lines(), Customer: newCustomer()})
	require.NoError(t, err)
	before := slices.Clone(o.Items)

	lines := c.Lines()
	c.Decrement(lines[0].ID)
	c.Add(newDish(3, 7, "99"), cart.OptString{})
	c.Clear()

	stored, err := svc.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, before, stored.Items)
	assert.Equal(t, before, o.Items)
}

func TestCreate_GatewayError(t *testing.T) {
	repo := newMemRepo()
	repo.writeErr = errors.New("connection reset by peer")
	svc := newTestService(t, repo, nil)

	_, err := svc.Create(context.Background(), CreateRequest{Lines: twoLineCart().Lines(), Customer: newCustomer()})

	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, "create order", gwErr.Op)
	assert.Contains(t, err.Error(), "connection reset by peer")
	assert.Empty(t, repo.orders)
}

func TestLifecycle_Scenario(t *testing.T) {
	repo := newMemRepo()
	n := &recordingNotifier{}
	svc := newTestService(t, repo, n)
	ctx := context.Background()

	o := placeOrder(t, svc)
	require.Equal(t, StatusPending, o.Status)

	o, err := svc.Accept(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, StatusInProgress, o.Status)

	_, err = svc.ApplyAsCourier(ctx, o.ID, "courier-a")
	require.NoError(t, err)
	o, err = svc.ApplyAsCourier(ctx, o.ID, "courier-b")
	require.NoError(t, err)
	require.Len(t, o.ApplicantIDs, 2)

	o, err = svc.AssignCourier(ctx, o.ID, "courier-b")
	require.NoError(t, err)
	assert.Equal(t, StatusOutForDelivery, o.Status)
	assert.Equal(t, "courier-b", o.AssignedCourierID)

	o, err = svc.MarkDelivered(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, o.Status)
	assert.True(t, o.Status.Terminal())

	_, err = svc.ReportProblem(ctx, o.ID, "customer not home")
	require.ErrorIs(t, err, ErrInvalidTransition)

	stored, err := svc.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, stored.Status)
	assert.Empty(t, stored.ProblemNotes)

	actions := make([]string, len(n.events))
	for i, e := range n.events {
		actions[i] = e.Action
	}
	assert.Equal(t, []string{"create", "accept", "apply", "apply", "assign", "deliver"}, actions)
}

func TestAccept_OnlyFromPending(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(t, repo, nil)
	ctx := context.Background()

	o := placeOrder(t, svc)
	_, err := svc.Accept(ctx, o.ID)
	require.NoError(t, err)

	_, err = svc.Accept(ctx, o.ID)

	var itErr *InvalidTransitionError
	require.ErrorAs(t, err, &itErr)
	assert.Equal(t, StatusInProgress, itErr.From)
	assert.Equal(t, StatusInProgress, repo.orders[o.ID].Status)

	_, err = svc.Reject(ctx, o.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestReject(t *testing.T) {
	svc := newTestService(t, newMemRepo(), nil)
	ctx := context.Background()

	o := placeOrder(t, svc)
	o, err := svc.Reject(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, o.Status)

	_, err = svc.Accept(ctx, o.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCancel_InProgressRequiresNotes(t *testing.T) {
	svc := newTestService(t, newMemRepo(), nil)
	ctx := context.Background()

	o := placeOrder(t, svc)
	_, err := svc.Cancel(ctx, o.ID, "out of stock")
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.Accept(ctx, o.ID)
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, o.ID, " ")
	require.ErrorIs(t, err, ErrNotesRequired)

	o, err = svc.Cancel(ctx, o.ID, "out of stock")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, o.Status)
	assert.Equal(t, "out of stock", o.ProblemNotes)
}

func TestApplyAsCourier_Idempotent(t *testing.T) {
	repo := newMemRepo()
	n := &recordingNotifier{}
	svc := newTestService(t, repo, n)
	ctx := context.Background()

	o := placeOrder(t, svc)
	_, err := svc.ApplyAsCourier(ctx, o.ID, "courier-a")
	require.ErrorIs(t, err, ErrInvalidTransition, "cannot apply before the vendor accepts")

	_, err = svc.Accept(ctx, o.ID)
	require.NoError(t, err)

	for range 3 {
		o, err = svc.ApplyAsCourier(ctx, o.ID, "courier-a")
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"courier-a"}, o.ApplicantIDs)
	assert.Len(t, n.events, 3, "create, accept and a single apply")
}

func TestAssignCourier_RequiresApplicant(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(t, repo, nil)
	ctx := context.Background()

	o := placeOrder(t, svc)
	_, err := svc.Accept(ctx, o.ID)
	require.NoError(t, err)
	_, err = svc.ApplyAsCourier(ctx, o.ID, "courier-a")
	require.NoError(t, err)

	_, err = svc.AssignCourier(ctx, o.ID, "courier-z")
	require.ErrorIs(t, err, ErrNotApplicant)
	assert.Equal(t, StatusInProgress, repo.orders[o.ID].Status)
	assert.Empty(t, repo.orders[o.ID].AssignedCourierID)
}

func TestAssignCourier_WrongStatus(t *testing.T) {
	svc := newTestService(t, newMemRepo(), nil)
	o := placeOrder(t, svc)

	_, err := svc.AssignCourier(context.Background(), o.ID, "courier-a")
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestReportProblem(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(t, repo, nil)
	ctx := context.Background()

	o := placeOrder(t, svc)
	_, err := svc.Accept(ctx, o.ID)
	require.NoError(t, err)
	_, err = svc.ApplyAsCourier(ctx, o.ID, "courier-a")
	require.NoError(t, err)
	_, err = svc.AssignCourier(ctx, o.ID, "courier-a")
	require.NoError(t, err)

	gets := repo.gets
	_, err = svc.ReportProblem(ctx, o.ID, "   ")
	require.ErrorIs(t, err, ErrNotesRequired)
	assert.Equal(t, gets, repo.gets, "blank notes are rejected before reading the store")

	o, err = svc.ReportProblem(ctx, o.ID, "address not found")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, o.Status)
	assert.Equal(t, "address not found", o.ProblemNotes)

	_, err = svc.MarkDelivered(ctx, o.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransition_GatewayErrorLeavesStateUnchanged(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(t, repo, nil)
	ctx := context.Background()

	o := placeOrder(t, svc)
	repo.writeErr = errors.New("permission denied for table orders")

	_, err := svc.Accept(ctx, o.ID)

	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Contains(t, gwErr.Error(), "permission denied for table orders")
	assert.Equal(t, StatusPending, repo.orders[o.ID].Status)
}

func TestTransition_UnknownOrder(t *testing.T) {
	svc := newTestService(t, newMemRepo(), nil)

	_, err := svc.Accept(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestNotifierFailureDoesNotFailOperation(t *testing.T) {
	svc := newTestService(t, newMemRepo(), &recordingNotifier{err: errors.New("broker down")})

	o := placeOrder(t, svc)
	assert.Equal(t, StatusPending, o.Status)
}

func TestList_UsesRoleFilter(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(t, repo, nil)
	vendorID := int64(7)

	_, err := svc.List(context.Background(), nil)
	require.ErrorIs(t, err, ErrUnauthenticated)

	_, err = svc.List(context.Background(), &auth.User{ID: "r", Role: auth.RoleRestaurant, VendorID: &vendorID})
	require.NoError(t, err)
	assert.Equal(t, Filter{VendorID: 7}, repo.lastList)
}
