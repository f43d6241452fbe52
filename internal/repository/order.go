package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/otlob/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders
	(id, customer_id, vendor_id, delivery_address, delivery_fee, total_price, status, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	// Items keep their name and price when the dish has since been deleted.
	createOrderItemSQL = `INSERT INTO order_items
	(order_id, position, line_id, dish_id, dish_name, unit_price, quantity, notes)
	VALUES ($1, $2, $3, (SELECT id FROM dishes WHERE id = $4::bigint), $5, $6, $7, $8)`

	selectOrderSQL = `SELECT o.id::text, o.customer_id::text, c.name, o.vendor_id, v.name,
	o.delivery_address, o.delivery_fee, o.total_price, o.status, o.problem_notes,
	o.assigned_courier_id::text, o.created_at
	FROM orders o
	JOIN profiles c ON c.id = o.customer_id
	JOIN vendors v ON v.id = o.vendor_id`

	getOrderSQL = selectOrderSQL + ` WHERE o.id = $1`

	listOrdersSQL = selectOrderSQL + `
	WHERE ($1 = '' OR o.customer_id::text = $1)
	AND ($2 = 0 OR o.vendor_id = $2)
	AND (cardinality($3::text[]) = 0 OR o.status = ANY($3::text[]))
	ORDER BY o.created_at DESC, o.id`

	listOrderItemsSQL = `SELECT order_id::text, position, line_id, dish_id, dish_name,
	unit_price, quantity, notes
	FROM order_items WHERE order_id = ANY($1::uuid[])
	ORDER BY order_id, position`

	listApplicantsSQL = `SELECT order_id::text, applicant_id::text
	FROM order_applicants WHERE order_id = ANY($1::uuid[])
	ORDER BY applied_at, applicant_id`

	updateOrderStatusSQL = `UPDATE orders
	SET status = $2,
	    problem_notes = CASE WHEN $3 = '' THEN problem_notes ELSE $3 END
	WHERE id = $1`

	addApplicantSQL = `INSERT INTO order_applicants (order_id, applicant_id)
	VALUES ($1, $2) ON CONFLICT DO NOTHING`

	assignCourierSQL = `UPDATE orders
	SET assigned_courier_id = $2, status = $3
	WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Items
// and courier applications live in child tables.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order and its items in a single transaction.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, createOrderSQL,
			o.ID, o.CustomerID, o.VendorID, o.DeliveryAddress,
			o.DeliveryFee, o.TotalPrice, string(o.Status), o.CreatedAt,
		); err != nil {
			return fmt.Errorf("inserting order: %w", err)
		}

		batch := &pgx.Batch{}
		for i, it := range o.Items {
			batch.Queue(createOrderItemSQL,
				o.ID, i, it.ID, nullableID(it.DishID), it.DishName,
				it.UnitPrice, it.Quantity, it.Notes,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("inserting order items: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// Get returns an order with its items and applicants.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, order.ErrNotFound
	}

	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("querying order %q: %w", id, err)
	}
	row, err := pgx.CollectExactlyOneRow(rows, scanOrderRow)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("scanning order %q: %w", id, err)
	}

	orders, err := r.hydrate(ctx, []orderRow{row})
	if err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// List returns the orders matching f, newest first.
func (r *OrderRepository) List(ctx context.Context, f order.Filter) ([]order.Order, error) {
	statuses := make([]string, len(f.Statuses))
	for i, s := range f.Statuses {
		statuses[i] = string(s)
	}

	rows, err := r.pool.Query(ctx, listOrdersSQL, f.CustomerID, f.VendorID, statuses)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	orderRows, err := pgx.CollectRows(rows, scanOrderRow)
	if err != nil {
		return nil, fmt.Errorf("scanning orders: %w", err)
	}
	return r.hydrate(ctx, orderRows)
}

// UpdateStatus sets the order status. Empty problem notes keep the stored
// value.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status order.Status, problemNotes string) error {
	return r.exec(ctx, "updating status of", id, updateOrderStatusSQL, id, string(status), problemNotes)
}

// AddApplicant records a courier application. Repeated applications are
// ignored.
func (r *OrderRepository) AddApplicant(ctx context.Context, id, courierID string) error {
	if _, err := uuid.Parse(id); err != nil {
		return order.ErrNotFound
	}
	if _, err := r.pool.Exec(ctx, addApplicantSQL, id, courierID); err != nil {
		return fmt.Errorf("adding applicant to order %q: %w", id, err)
	}
	return nil
}

// AssignCourier sets the courier and moves the order out for delivery.
func (r *OrderRepository) AssignCourier(ctx context.Context, id, courierID string) error {
	return r.exec(ctx, "assigning courier to", id, assignCourierSQL, id, courierID, string(order.StatusOutForDelivery))
}

func (r *OrderRepository) exec(ctx context.Context, op, id, sql string, args ...any) error {
	if _, err := uuid.Parse(id); err != nil {
		return order.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("%s order %q: %w", op, id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// hydrate loads the child rows of the given orders and maps them to domain
// values, keeping the input order.
func (r *OrderRepository) hydrate(ctx context.Context, rows []orderRow) ([]order.Order, error) {
	if len(rows) == 0 {
		return []order.Order{}, nil
	}
	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}

	itemRows, err := r.pool.Query(ctx, listOrderItemsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("querying order items: %w", err)
	}
	items, err := pgx.CollectRows(itemRows, scanOrderItemRow)
	if err != nil {
		return nil, fmt.Errorf("scanning order items: %w", err)
	}

	applicantRows, err := r.pool.Query(ctx, listApplicantsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("querying order applicants: %w", err)
	}
	applicants, err := pgx.CollectRows(applicantRows, scanApplicantRow)
	if err != nil {
		return nil, fmt.Errorf("scanning order applicants: %w", err)
	}

	itemsByOrder := make(map[string][]orderItemRow, len(rows))
	for _, it := range items {
		itemsByOrder[it.OrderID] = append(itemsByOrder[it.OrderID], it)
	}
	applicantsByOrder := make(map[string][]string)
	for _, a := range applicants {
		applicantsByOrder[a.OrderID] = append(applicantsByOrder[a.OrderID], a.ApplicantID)
	}

	out := make([]order.Order, 0, len(rows))
	for _, row := range rows {
		o, err := mapOrder(row, itemsByOrder[row.ID], applicantsByOrder[row.ID])
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func scanOrderRow(row pgx.CollectableRow) (orderRow, error) {
	var o orderRow
	err := row.Scan(
		&o.ID, &o.CustomerID, &o.CustomerName, &o.VendorID, &o.VendorName,
		&o.DeliveryAddress, &o.DeliveryFee, &o.TotalPrice, &o.Status, &o.ProblemNotes,
		&o.AssignedCourierID, &o.CreatedAt,
	)
	return o, err
}

func scanOrderItemRow(row pgx.CollectableRow) (orderItemRow, error) {
	var it orderItemRow
	err := row.Scan(
		&it.OrderID, &it.Position, &it.LineID, &it.DishID, &it.DishName,
		&it.UnitPrice, &it.Quantity, &it.Notes,
	)
	return it, err
}

func scanApplicantRow(row pgx.CollectableRow) (applicantRow, error) {
	var a applicantRow
	err := row.Scan(&a.OrderID, &a.ApplicantID)
	return a, err
}
