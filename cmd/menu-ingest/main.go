// Command menu-ingest bulk-loads vendor menus from gzipped JSON-lines dumps.
//
// Each line is one dish:
//
//	{"vendorId":1,"name":"Koshary","description":"...","price":"45.00","imageUrl":"dishes/koshary.png"}
//
// Dumps are given oldest first; when the same (vendor, name) appears in
// several dumps, the newest dump wins. Dishes are upserted, so re-running an
// ingest is safe.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"

	"github.com/xenking/otlob/internal/repository"
)

func main() {
	var (
		databaseURL string
		opts        ingestOptions
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&opts.BatchSize, "batch-size", 500, "dishes per upsert batch")
	flag.UintVar(&opts.Capacity, "capacity", 1_000_000, "expected dishes per dump, sizes the bloom filters")
	flag.Float64Var(&opts.FPR, "fpr", 0.001, "bloom filter false positive rate")
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		slog.Error("usage: menu-ingest [flags] dump1.jsonl.gz [dump2.jsonl.gz ...]")
		os.Exit(2)
	}
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, files, opts); err != nil {
		slog.Error("menu ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("menu ingest completed successfully")
}

func run(ctx context.Context, databaseURL string, files []string, opts ingestOptions) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	repo := repository.NewCatalogRepository(pool)
	vendors, err := repo.ListVendors(ctx)
	if err != nil {
		return errors.Wrap(err, "list vendors")
	}
	known := make(map[int64]struct{}, len(vendors))
	for _, v := range vendors {
		known[v.ID] = struct{}{}
	}
	slog.Info("loaded vendors", slog.Int("count", len(known)))

	opts.KnownVendor = func(id int64) bool {
		_, ok := known[id]
		return ok
	}
	opts.Write = repo.UpsertDishes

	stats, err := ingest(ctx, files, opts)
	if err != nil {
		return err
	}

	slog.Info("ingest summary",
		slog.Int64("lines", stats.Lines),
		slog.Int64("invalid", stats.Invalid),
		slog.Int64("unknown_vendor", stats.UnknownVendor),
		slog.Int64("written", stats.Written),
	)
	return nil
}
