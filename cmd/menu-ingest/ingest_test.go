package main

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/otlob/internal/domain/catalog"
)

func writeDump(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dump.jsonl.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte(strings.Join(lines, "\n") + "\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
	return path
}

type recorder struct {
	mu     sync.Mutex
	writes []catalog.Dish
}

func (r *recorder) write(_ context.Context, dishes []catalog.Dish) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, dishes...)
	return nil
}

// final returns the price per key after replaying writes in order.
func (r *recorder) final() map[string]string {
	out := make(map[string]string)
	for _, d := range r.writes {
		out[dishKey(d)] = d.Price.String()
	}
	return out
}

func TestParseDish(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    catalog.Dish
		wantErr bool
	}{
		{
			name: "StringPrice",
			line: `{"vendorId":3,"name":" Koshary ","price":"45.50","imageUrl":"k.png","extra":[1,2]}`,
			want: catalog.Dish{VendorID: 3, Name: "Koshary", Price: decimal.RequireFromString("45.50"), ImageURL: "k.png"},
		},
		{
			name: "NumberPrice",
			line: `{"vendorId":1,"name":"Tea","description":"hot","price":12}`,
			want: catalog.Dish{VendorID: 1, Name: "Tea", Description: "hot", Price: decimal.NewFromInt(12)},
		},
		{name: "MissingVendor", line: `{"name":"Tea","price":1}`, wantErr: true},
		{name: "MissingPrice", line: `{"vendorId":1,"name":"Tea"}`, wantErr: true},
		{name: "NegativePrice", line: `{"vendorId":1,"name":"Tea","price":-1}`, wantErr: true},
		{name: "BlankName", line: `{"vendorId":1,"name":"  ","price":1}`, wantErr: true},
		{name: "BadPriceType", line: `{"vendorId":1,"name":"Tea","price":true}`, wantErr: true},
		{name: "NotJSON", line: `vendorId=1`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDish([]byte(tt.line))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.VendorID, got.VendorID)
			assert.Equal(t, tt.want.Name, got.Name)
			assert.Equal(t, tt.want.Description, got.Description)
			assert.Equal(t, tt.want.ImageURL, got.ImageURL)
			assert.True(t, tt.want.Price.Equal(got.Price), "price %s", got.Price)
		})
	}
}

func TestIngest_NewestDumpWins(t *testing.T) {
	older := writeDump(t,
		`{"vendorId":1,"name":"Koshary","price":"40"}`,
		`{"vendorId":1,"name":"Tea","price":"5"}`,
		`{"vendorId":2,"name":"Falafel","price":"10"}`,
		`not json`,
		``,
	)
	newer := writeDump(t,
		`{"vendorId":1,"name":"Koshary","price":"45"}`,
		`{"vendorId":2,"name":"Falafel","price":"12"}`,
		`{"vendorId":9,"name":"Ghost","price":"1"}`,
		`{"vendorId":2,"name":"Hawawshi","price":"30"}`,
	)

	rec := &recorder{}
	stats, err := ingest(context.Background(), []string{older, newer}, ingestOptions{
		BatchSize:   2,
		Capacity:    1000,
		FPR:         0.001,
		KnownVendor: func(id int64) bool { return id == 1 || id == 2 },
		Write:       rec.write,
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"1|Koshary":  "45",
		"1|Tea":      "5",
		"2|Falafel":  "12",
		"2|Hawawshi": "30",
	}, rec.final())

	assert.EqualValues(t, 8, stats.Lines)
	assert.EqualValues(t, 1, stats.Invalid)
	assert.EqualValues(t, 1, stats.UnknownVendor)
	assert.EqualValues(t, 4, stats.Written)
	assert.Len(t, rec.writes, 4, "shared dishes are written once")
}

func TestIngest_SingleDump(t *testing.T) {
	dump := writeDump(t,
		`{"vendorId":1,"name":"Tea","price":"5"}`,
		`{"vendorId":1,"name":"Tea","price":"6"}`,
		`{"vendorId":1,"name":"Coffee","price":"9"}`,
	)

	rec := &recorder{}
	stats, err := ingest(context.Background(), []string{dump}, ingestOptions{
		Capacity: 100,
		FPR:      0.01,
		Write:    rec.write,
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"1|Tea": "6", "1|Coffee": "9"}, rec.final())
	assert.EqualValues(t, 3, stats.Written)

	keys := make([]string, 0, len(rec.writes))
	for _, d := range rec.writes {
		keys = append(keys, d.Name)
	}
	sort.Strings(keys)
	assert.Equal(t, []string{"Coffee", "Tea", "Tea"}, keys)
}

func TestIngest_MissingFile(t *testing.T) {
	_, err := ingest(context.Background(), []string{filepath.Join(t.TempDir(), "nope.gz")}, ingestOptions{
		Capacity: 10,
		FPR:      0.01,
		Write:    (&recorder{}).write,
	})
	require.Error(t, err)
}

func TestIngest_WriteError(t *testing.T) {
	dump := writeDump(t, `{"vendorId":1,"name":"Tea","price":"5"}`)
	_, err := ingest(context.Background(), []string{dump}, ingestOptions{
		Capacity: 10,
		FPR:      0.01,
		Write: func(context.Context, []catalog.Dish) error {
			return assert.AnError
		},
	})
	require.ErrorIs(t, err, assert.AnError)
}
