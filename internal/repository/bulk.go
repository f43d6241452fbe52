package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/xenking/otlob/internal/domain/catalog"
)

const (
	upsertCategorySQL = `INSERT INTO categories (name, image_url) VALUES ($1, $2)
	ON CONFLICT (name) DO UPDATE SET image_url = EXCLUDED.image_url
	RETURNING id`

	upsertDishSQL = `INSERT INTO dishes (vendor_id, name, description, price, image_url)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (vendor_id, name) DO UPDATE
	SET description = EXCLUDED.description, price = EXCLUDED.price, image_url = EXCLUDED.image_url`
)

// UpsertCategory inserts a category or refreshes the image of the category
// with the same name, and sets its ID.
func (r *CatalogRepository) UpsertCategory(ctx context.Context, c *catalog.Category) error {
	if err := r.pool.QueryRow(ctx, upsertCategorySQL, c.Name, c.ImageURL).Scan(&c.ID); err != nil {
		return fmt.Errorf("upserting category %q: %w", c.Name, err)
	}
	return nil
}

// UpsertDishes writes dishes keyed by (vendor, name) in a single batch,
// updating price, description and image of existing dishes. Dishes are
// applied in slice order, so a later duplicate wins.
func (r *CatalogRepository) UpsertDishes(ctx context.Context, dishes []catalog.Dish) error {
	if len(dishes) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, d := range dishes {
		batch.Queue(upsertDishSQL, d.VendorID, d.Name, d.Description, d.Price, d.ImageURL)
	}

	br := r.pool.SendBatch(ctx, batch)
	for _, d := range dishes {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("upserting dish %q of vendor %d: %w", d.Name, d.VendorID, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("closing dish batch: %w", err)
	}
	return nil
}
