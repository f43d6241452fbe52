package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/otlob/internal/domain/catalog"
)

const (
	listCategoriesSQL = `SELECT id, name, image_url FROM categories ORDER BY name`

	selectVendorSQL = `SELECT id, name, description, cuisine, category_id, rating,
	delivery_time, image_url FROM vendors`

	listVendorsSQL = selectVendorSQL + ` ORDER BY id`
	getVendorSQL   = selectVendorSQL + ` WHERE id = $1`

	selectDishSQL = `SELECT id, vendor_id, name, description, price, image_url FROM dishes`

	listDishesSQL         = selectDishSQL + ` ORDER BY vendor_id, id`
	listDishesByVendorSQL = selectDishSQL + ` WHERE vendor_id = $1 ORDER BY id`
	getDishSQL            = selectDishSQL + ` WHERE id = $1`

	createVendorSQL = `INSERT INTO vendors
	(name, description, cuisine, category_id, rating, delivery_time, image_url)
	VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`

	updateVendorSQL = `UPDATE vendors
	SET name = $2, description = $3, cuisine = $4, category_id = $5,
	    rating = $6, delivery_time = $7, image_url = $8
	WHERE id = $1`

	deleteVendorSQL = `DELETE FROM vendors WHERE id = $1`

	createDishSQL = `INSERT INTO dishes (vendor_id, name, description, price, image_url)
	VALUES ($1, $2, $3, $4, $5) RETURNING id`

	updateDishSQL = `UPDATE dishes
	SET name = $2, description = $3, price = $4, image_url = $5
	WHERE id = $1`

	deleteDishSQL = `DELETE FROM dishes WHERE id = $1`
)

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Repository backed by PostgreSQL.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// ListCategories returns all vendor categories ordered by name.
func (r *CatalogRepository) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	rows, err := r.pool.Query(ctx, listCategoriesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	categories, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.Category, error) {
		var c catalog.Category
		err := row.Scan(&c.ID, &c.Name, &c.ImageURL)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning categories: %w", err)
	}
	return categories, nil
}

// ListVendors returns every vendor with its menu.
func (r *CatalogRepository) ListVendors(ctx context.Context) ([]catalog.Vendor, error) {
	rows, err := r.pool.Query(ctx, listVendorsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing vendors: %w", err)
	}
	vendorRows, err := pgx.CollectRows(rows, scanVendorRow)
	if err != nil {
		return nil, fmt.Errorf("scanning vendors: %w", err)
	}

	rows, err = r.pool.Query(ctx, listDishesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing dishes: %w", err)
	}
	dishRows, err := pgx.CollectRows(rows, scanDishRow)
	if err != nil {
		return nil, fmt.Errorf("scanning dishes: %w", err)
	}

	menus := make(map[int64][]dishRow, len(vendorRows))
	for _, d := range dishRows {
		menus[d.VendorID] = append(menus[d.VendorID], d)
	}

	vendors := make([]catalog.Vendor, 0, len(vendorRows))
	for _, vr := range vendorRows {
		v, err := mapVendor(vr, menus[vr.ID])
		if err != nil {
			return nil, err
		}
		vendors = append(vendors, v)
	}
	return vendors, nil
}

// GetVendor returns a vendor with its menu.
func (r *CatalogRepository) GetVendor(ctx context.Context, id int64) (*catalog.Vendor, error) {
	rows, err := r.pool.Query(ctx, getVendorSQL, id)
	if err != nil {
		return nil, fmt.Errorf("querying vendor %d: %w", id, err)
	}
	vr, err := pgx.CollectExactlyOneRow(rows, scanVendorRow)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("scanning vendor %d: %w", id, err)
	}

	rows, err = r.pool.Query(ctx, listDishesByVendorSQL, id)
	if err != nil {
		return nil, fmt.Errorf("querying menu of vendor %d: %w", id, err)
	}
	dishRows, err := pgx.CollectRows(rows, scanDishRow)
	if err != nil {
		return nil, fmt.Errorf("scanning menu of vendor %d: %w", id, err)
	}

	v, err := mapVendor(vr, dishRows)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// GetDish returns a single dish.
func (r *CatalogRepository) GetDish(ctx context.Context, id int64) (*catalog.Dish, error) {
	rows, err := r.pool.Query(ctx, getDishSQL, id)
	if err != nil {
		return nil, fmt.Errorf("querying dish %d: %w", id, err)
	}
	dr, err := pgx.CollectExactlyOneRow(rows, scanDishRow)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("scanning dish %d: %w", id, err)
	}
	d, err := mapDish(dr)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// CreateVendor inserts the vendor and its menu in one transaction and fills
// in the generated IDs.
func (r *CatalogRepository) CreateVendor(ctx context.Context, v *catalog.Vendor) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, createVendorSQL,
			v.Name, v.Description, v.Cuisine, nullableID(v.CategoryID),
			v.Rating, v.DeliveryTime, v.ImageURL,
		).Scan(&v.ID); err != nil {
			return fmt.Errorf("inserting vendor: %w", err)
		}

		for i := range v.Menu {
			d := &v.Menu[i]
			d.VendorID = v.ID
			if err := tx.QueryRow(ctx, createDishSQL,
				d.VendorID, d.Name, d.Description, d.Price, d.ImageURL,
			).Scan(&d.ID); err != nil {
				return fmt.Errorf("inserting dish %q: %w", d.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("creating vendor %q: %w", v.Name, err)
	}
	return nil
}

// UpdateVendor replaces the vendor's descriptive fields. The menu is managed
// through the dish operations.
func (r *CatalogRepository) UpdateVendor(ctx context.Context, v *catalog.Vendor) error {
	return r.exec(ctx, "updating vendor", v.ID, updateVendorSQL,
		v.ID, v.Name, v.Description, v.Cuisine, nullableID(v.CategoryID),
		v.Rating, v.DeliveryTime, v.ImageURL,
	)
}

// DeleteVendor removes a vendor together with its menu. Vendors with orders
// are kept so order history stays intact.
func (r *CatalogRepository) DeleteVendor(ctx context.Context, id int64) error {
	err := r.exec(ctx, "deleting vendor", id, deleteVendorSQL, id)
	if isForeignKeyViolation(err) {
		return catalog.ErrVendorHasOrders
	}
	return err
}

// CreateDish inserts a dish and sets its generated ID.
func (r *CatalogRepository) CreateDish(ctx context.Context, d *catalog.Dish) error {
	err := r.pool.QueryRow(ctx, createDishSQL,
		d.VendorID, d.Name, d.Description, d.Price, d.ImageURL,
	).Scan(&d.ID)
	if err != nil {
		return fmt.Errorf("creating dish %q: %w", d.Name, err)
	}
	return nil
}

// UpdateDish replaces the dish's fields. The owning vendor does not change.
func (r *CatalogRepository) UpdateDish(ctx context.Context, d *catalog.Dish) error {
	return r.exec(ctx, "updating dish", d.ID, updateDishSQL,
		d.ID, d.Name, d.Description, d.Price, d.ImageURL,
	)
}

// DeleteDish removes a dish. Order history keeps its snapshot.
func (r *CatalogRepository) DeleteDish(ctx context.Context, id int64) error {
	return r.exec(ctx, "deleting dish", id, deleteDishSQL, id)
}

func (r *CatalogRepository) exec(ctx context.Context, op string, id int64, sql string, args ...any) error {
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("%s %d: %w", op, id, err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

func scanVendorRow(row pgx.CollectableRow) (vendorRow, error) {
	var v vendorRow
	err := row.Scan(
		&v.ID, &v.Name, &v.Description, &v.Cuisine, &v.CategoryID,
		&v.Rating, &v.DeliveryTime, &v.ImageURL,
	)
	return v, err
}

func scanDishRow(row pgx.CollectableRow) (dishRow, error) {
	var d dishRow
	err := row.Scan(&d.ID, &d.VendorID, &d.Name, &d.Description, &d.Price, &d.ImageURL)
	return d, err
}
