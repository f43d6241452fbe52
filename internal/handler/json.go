package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

const maxBodySize = 1 << 20

func writeJSON(w http.ResponseWriter, status int, body func(e *jx.Encoder)) {
	var e jx.Encoder
	body(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(status) })
			e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
		})
	})
}

// decodeObject reads a JSON object body, calling fn for every key.
func decodeObject(r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	d := jx.Decode(io.LimitReader(r.Body, maxBodySize), 4096)
	if err := d.Obj(fn); err != nil {
		return badRequest("invalid request body: %v", err)
	}
	return nil
}

// decodeOptionalObject is decodeObject for endpoints whose body may be
// omitted.
func decodeOptionalObject(r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	return decodeObject(r, fn)
}

// decodeOptStr reads a string that may be null. Null reports unset.
func decodeOptStr(d *jx.Decoder) (string, bool, error) {
	if d.Next() == jx.Null {
		return "", false, d.Null()
	}
	s, err := d.Str()
	return s, err == nil, err
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	n, err := d.Num()
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromString(n.String())
}

func pathInt(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || v <= 0 {
		return 0, badRequest("invalid %s %q", name, chi.URLParam(r, name))
	}
	return v, nil
}

func money(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.String()))
}
