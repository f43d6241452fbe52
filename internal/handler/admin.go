package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/otlob/internal/domain/auth"
	"github.com/xenking/otlob/internal/domain/order"
)

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.auth.ListUsers(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, u := range users {
				encodeUser(e, u)
			}
		})
	})
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.auth.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeUser(w, http.StatusOK, u)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var in auth.NewUser
	if err := decodeObject(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "email":
			in.Email, err = d.Str()
		case "password":
			in.Password, err = d.Str()
		default:
			return decodeProfileField(d, key, &in.Name, &in.Role, &in.PhoneNumber, &in.District, &in.AddressDetails, &in.VendorID)
		}
		return err
	}); err != nil {
		h.fail(w, r, err)
		return
	}

	u, err := h.auth.CreateUser(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeUser(w, http.StatusCreated, u)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	u := auth.User{ID: chi.URLParam(r, "id")}
	if err := decodeObject(r, func(d *jx.Decoder, key string) error {
		return decodeProfileField(d, key, &u.Name, &u.Role, &u.PhoneNumber, &u.District, &u.AddressDetails, &u.VendorID)
	}); err != nil {
		h.fail(w, r, err)
		return
	}

	updated, err := h.auth.UpdateUser(r.Context(), &u)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeUser(w, http.StatusOK, updated)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.DeleteUser(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodeProfileField reads the profile keys shared by user create and
// update.
func decodeProfileField(
	d *jx.Decoder,
	key string,
	name *string,
	role *auth.Role,
	phone, district, details *string,
	vendorID **int64,
) error {
	var err error
	switch key {
	case "name":
		*name, err = d.Str()
	case "role":
		var s string
		if s, err = d.Str(); err == nil {
			*role = auth.Role(s)
		}
	case "phoneNumber":
		*phone, err = d.Str()
	case "district":
		*district, err = d.Str()
	case "addressDetails":
		*details, err = d.Str()
	case "vendorId":
		if d.Next() == jx.Null {
			*vendorID = nil
			return d.Null()
		}
		var id int64
		if id, err = d.Int64(); err == nil {
			*vendorID = &id
		}
	default:
		err = d.Skip()
	}
	return err
}

// orderReport summarizes every order, or the orders of one UTC day
// (?day=YYYY-MM-DD) or month (?month=YYYY-MM).
func (h *Handler) orderReport(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.List(r.Context(), currentUser(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if s := r.URL.Query().Get("day"); s != "" {
		day, err := time.Parse(time.DateOnly, s)
		if err != nil {
			h.fail(w, r, badRequest("invalid day %q", s))
			return
		}
		orders = order.OnDay(orders, day)
	} else if s := r.URL.Query().Get("month"); s != "" {
		month, err := time.Parse("2006-01", s)
		if err != nil {
			h.fail(w, r, badRequest("invalid month %q", s))
			return
		}
		orders = order.InMonth(orders, month)
	}

	summary := order.Summarize(orders)
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeSummary(e, summary) })
}

func writeUser(w http.ResponseWriter, status int, u *auth.User) {
	writeJSON(w, status, func(e *jx.Encoder) { encodeUser(e, *u) })
}
