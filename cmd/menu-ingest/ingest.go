package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math/bits"
	"os"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/otlob/internal/domain/catalog"
)

const (
	maxDumps      = bits.UintSize
	maxLineBytes  = 1 << 20
	progressEvery = 1_000_000
)

type ingestOptions struct {
	BatchSize int
	// Capacity and FPR size each dump's bloom filter.
	Capacity uint
	FPR      float64
	// KnownVendor reports whether dishes of the vendor can be stored.
	KnownVendor func(id int64) bool
	// Write upserts a batch. It is called concurrently.
	Write func(ctx context.Context, dishes []catalog.Dish) error
}

type ingestStats struct {
	Lines         int64
	Invalid       int64
	UnknownVendor int64
	Written       int64
}

func (s *ingestStats) add(o ingestStats) {
	s.Lines += o.Lines
	s.Invalid += o.Invalid
	s.UnknownVendor += o.UnknownVendor
	s.Written += o.Written
}

// dumpResult holds the dishes of one dump whose key may also occur in
// another dump. They are resolved after every dump has been scanned.
type dumpResult struct {
	shared map[string]catalog.Dish
	stats  ingestStats
}

// ingest loads dumps in two passes. Pass 1 builds a bloom filter of dish
// keys per dump. Pass 2 writes every dish whose key is absent from all other
// filters straight away and holds back the rest. A held-back key that was
// held back in more than one dump really is shared, and the copy from the
// newest dump is written; a bloom false positive is held back in one dump
// only and is written from there.
func ingest(ctx context.Context, files []string, opts ingestOptions) (ingestStats, error) {
	if len(files) > maxDumps {
		return ingestStats{}, errors.Errorf("at most %d dumps per run, got %d", maxDumps, len(files))
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}

	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))
	filters := make([]*bloom.BloomFilter, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			f := bloom.NewWithEstimates(opts.Capacity, opts.FPR)
			err := streamDump(gctx, path, func(line []byte) {
				if d, err := parseDish(line); err == nil {
					f.AddString(dishKey(d))
				}
			})
			if err != nil {
				return errors.Wrapf(err, "build filter for %s", path)
			}
			filters[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ingestStats{}, err
	}

	slog.Info("pass 2: writing unique dishes")
	results := make([]dumpResult, len(files))
	g, gctx = errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			res, err := scanDump(gctx, i, path, filters, opts)
			if err != nil {
				return errors.Wrapf(err, "scan %s", path)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ingestStats{}, err
	}

	var total ingestStats
	masks := make(map[string]uint)
	for i, r := range results {
		total.add(r.stats)
		for key := range r.shared {
			masks[key] |= 1 << uint(i)
		}
	}

	merged := make([]catalog.Dish, 0, len(masks))
	for key, mask := range masks {
		newest := bits.Len(mask) - 1
		merged = append(merged, results[newest].shared[key])
	}
	slog.Info("resolving shared dishes", slog.Int("count", len(merged)))

	for start := 0; start < len(merged); start += opts.BatchSize {
		end := min(start+opts.BatchSize, len(merged))
		if err := opts.Write(ctx, merged[start:end]); err != nil {
			return total, errors.Wrap(err, "write shared dishes")
		}
		total.Written += int64(end - start)
	}
	return total, nil
}

func scanDump(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter, opts ingestOptions) (dumpResult, error) {
	res := dumpResult{shared: make(map[string]catalog.Dish)}
	batch := make([]catalog.Dish, 0, opts.BatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := opts.Write(ctx, batch); err != nil {
			return err
		}
		res.stats.Written += int64(len(batch))
		batch = batch[:0]
		return nil
	}

	var writeErr error
	err := streamDump(ctx, path, func(line []byte) {
		if writeErr != nil {
			return
		}
		res.stats.Lines++
		if res.stats.Lines%progressEvery == 0 {
			slog.Info("pass 2 progress", slog.Int("file", idx+1), slog.Int64("lines", res.stats.Lines))
		}

		d, err := parseDish(line)
		if err != nil {
			res.stats.Invalid++
			return
		}
		if opts.KnownVendor != nil && !opts.KnownVendor(d.VendorID) {
			res.stats.UnknownVendor++
			return
		}

		key := dishKey(d)
		for j, f := range filters {
			if j != idx && f.TestString(key) {
				res.shared[key] = d
				return
			}
		}
		batch = append(batch, d)
		if len(batch) == opts.BatchSize {
			writeErr = flush()
		}
	})
	if err != nil {
		return res, err
	}
	if writeErr != nil {
		return res, writeErr
	}
	if err := flush(); err != nil {
		return res, err
	}

	slog.Info("pass 2 complete",
		slog.Int("file", idx+1),
		slog.Int64("lines", res.stats.Lines),
		slog.Int("shared", len(res.shared)),
	)
	return res, nil
}

// streamDump opens a gzip-compressed JSON-lines file and calls fn for each
// non-blank line. The line is only valid during the call.
func streamDump(ctx context.Context, path string, fn func(line []byte)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if line := scanner.Bytes(); len(bytes.TrimSpace(line)) > 0 {
			fn(line)
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}

// dishKey identifies a dish within the catalog: names are unique per vendor.
func dishKey(d catalog.Dish) string {
	return fmt.Sprintf("%d|%s", d.VendorID, d.Name)
}

// parseDish decodes and validates one dump line. Price may be a JSON number
// or a decimal string.
func parseDish(line []byte) (catalog.Dish, error) {
	var d catalog.Dish
	var hasPrice bool
	err := jx.DecodeBytes(line).Obj(func(dec *jx.Decoder, key string) error {
		var err error
		switch key {
		case "vendorId":
			d.VendorID, err = dec.Int64()
		case "name":
			d.Name, err = dec.Str()
		case "description":
			d.Description, err = dec.Str()
		case "imageUrl":
			d.ImageURL, err = dec.Str()
		case "price":
			d.Price, err = decodePrice(dec)
			hasPrice = err == nil
		default:
			err = dec.Skip()
		}
		return err
	})
	if err != nil {
		return d, errors.Wrap(err, "decode dish")
	}
	if d.VendorID <= 0 {
		return d, errors.New("vendorId is required")
	}
	if !hasPrice {
		return d, errors.New("price is required")
	}
	if err := catalog.ValidateDish(&d); err != nil {
		return d, err
	}
	return d, nil
}

func decodePrice(dec *jx.Decoder) (decimal.Decimal, error) {
	switch dec.Next() {
	case jx.String:
		s, err := dec.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	case jx.Number:
		n, err := dec.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(n.String())
	default:
		return decimal.Zero, errors.New("price must be a number or string")
	}
}
