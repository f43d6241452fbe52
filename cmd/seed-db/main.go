// Command seed-db loads the demo catalog and creates the first admin
// account. Running it again leaves existing rows in place.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/otlob/internal/domain/auth"
	"github.com/xenking/otlob/internal/domain/catalog"
	"github.com/xenking/otlob/internal/repository"
)

type seedFile struct {
	Categories []struct {
		Name     string `json:"name"`
		ImageURL string `json:"imageUrl"`
	} `json:"categories"`
	Vendors []vendorJSON `json:"vendors"`
}

type vendorJSON struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Cuisine      string          `json:"cuisine"`
	Category     string          `json:"category"`
	Rating       decimal.Decimal `json:"rating"`
	DeliveryTime int             `json:"deliveryTime"`
	ImageURL     string          `json:"imageUrl"`
	Menu         []struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Price       decimal.Decimal `json:"price"`
		ImageURL    string          `json:"imageUrl"`
	} `json:"menu"`
}

type adminAccount struct {
	name, email, password string
}

func main() {
	var (
		databaseURL  string
		catalogFile  string
		apiKeyPepper string
		admin        adminAccount
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&catalogFile, "catalog-file", "db/seed/catalog.json", "path to catalog JSON file")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or OTLOB_API_KEY_PEPPER env)")
	flag.StringVar(&admin.name, "admin-name", "Administrator", "name of the seeded admin")
	flag.StringVar(&admin.email, "admin-email", "", "email of the seeded admin (or OTLOB_SEED_ADMIN_EMAIL env)")
	flag.StringVar(&admin.password, "admin-password", "", "password of the seeded admin (or OTLOB_SEED_ADMIN_PASSWORD env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("OTLOB_API_KEY_PEPPER")
	}
	if admin.email == "" {
		admin.email = os.Getenv("OTLOB_SEED_ADMIN_EMAIL")
	}
	if admin.password == "" {
		admin.password = os.Getenv("OTLOB_SEED_ADMIN_PASSWORD")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, catalogFile, apiKeyPepper, admin); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, catalogFile, pepper string, admin adminAccount) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	repo := repository.NewCatalogRepository(pool)
	if err := seedCatalog(ctx, repo, catalog.NewService(repo), catalogFile); err != nil {
		return errors.Wrap(err, "seed catalog")
	}

	if admin.email == "" {
		slog.Info("admin email not set, skipping admin account")
		return nil
	}
	users := auth.NewService(repository.NewUserRepository(pool), repository.NewAPIKeyRepository(pool), []byte(pepper))
	if err := seedAdmin(ctx, users, admin); err != nil {
		return errors.Wrap(err, "seed admin")
	}
	return nil
}

func seedCatalog(ctx context.Context, repo *repository.CatalogRepository, svc *catalog.Service, path string) error {
	slog.Info("reading catalog file", slog.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read catalog file")
	}

	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return errors.Wrap(err, "parse catalog JSON")
	}

	categoryIDs := make(map[string]int64, len(seed.Categories))
	for _, c := range seed.Categories {
		cat := catalog.Category{Name: c.Name, ImageURL: c.ImageURL}
		if err := repo.UpsertCategory(ctx, &cat); err != nil {
			return err
		}
		categoryIDs[cat.Name] = cat.ID
		slog.Info("upserted category", slog.Int64("id", cat.ID), slog.String("name", cat.Name))
	}

	existing, err := svc.Vendors(ctx)
	if err != nil {
		return errors.Wrap(err, "list vendors")
	}
	byName := make(map[string]int64, len(existing))
	for _, v := range existing {
		byName[v.Name] = v.ID
	}

	for _, vj := range seed.Vendors {
		v := catalog.Vendor{
			Name:         vj.Name,
			Description:  vj.Description,
			Cuisine:      vj.Cuisine,
			CategoryID:   categoryIDs[vj.Category],
			Rating:       vj.Rating,
			DeliveryTime: vj.DeliveryTime,
			ImageURL:     vj.ImageURL,
		}
		for _, d := range vj.Menu {
			v.Menu = append(v.Menu, catalog.Dish{
				Name:        d.Name,
				Description: d.Description,
				Price:       d.Price,
				ImageURL:    d.ImageURL,
			})
		}

		if id, ok := byName[v.Name]; ok {
			// Refresh prices of the existing menu instead of duplicating the vendor.
			for i := range v.Menu {
				v.Menu[i].VendorID = id
			}
			if err := repo.UpsertDishes(ctx, v.Menu); err != nil {
				return err
			}
			slog.Info("refreshed vendor menu", slog.Int64("id", id), slog.String("name", v.Name), slog.Int("dishes", len(v.Menu)))
			continue
		}

		if err := svc.AddVendor(ctx, &v); err != nil {
			return errors.Wrapf(err, "add vendor %s", v.Name)
		}
		slog.Info("added vendor", slog.Int64("id", v.ID), slog.String("name", v.Name), slog.Int("dishes", len(v.Menu)))
	}

	return nil
}

func seedAdmin(ctx context.Context, users *auth.Service, admin adminAccount) error {
	u, err := users.CreateUser(ctx, auth.NewUser{
		Name:     admin.name,
		Email:    admin.email,
		Password: admin.password,
		Role:     auth.RoleAdmin,
	})
	if errors.Is(err, auth.ErrEmailTaken) {
		slog.Info("admin already exists", slog.String("email", admin.email))
		return nil
	}
	if err != nil {
		return err
	}

	slog.Info("created admin", slog.String("id", u.ID), slog.String("email", u.Email))
	return nil
}
