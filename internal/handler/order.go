package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/otlob/internal/domain/auth"
	"github.com/xenking/otlob/internal/domain/order"
)

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	var want order.Status
	if s := r.URL.Query().Get("status"); s != "" {
		st, err := order.ParseStatus(s)
		if err != nil {
			h.fail(w, r, badRequest("%v", err))
			return
		}
		want = st
	}

	orders, err := h.orders.List(r.Context(), currentUser(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if want != "" {
		filtered := orders[:0]
		for _, o := range orders {
			if o.Status == want {
				filtered = append(filtered, o)
			}
		}
		orders = filtered
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrders(e, orders) })
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !visibleTo(currentUser(r), o) {
		h.fail(w, r, order.ErrNotFound)
		return
	}
	writeOrder(w, o)
}

// visibleTo mirrors the role scopes of order listing. Couriers also keep
// access to orders assigned to them after delivery.
func visibleTo(u *auth.User, o *order.Order) bool {
	switch u.Role {
	case auth.RoleAdmin:
		return true
	case auth.RoleRestaurant:
		return u.Owns(o.VendorID)
	case auth.RoleDelivery:
		return o.Status == order.StatusInProgress ||
			o.Status == order.StatusOutForDelivery ||
			o.AssignedCourierID == u.ID
	default:
		return o.CustomerID == u.ID
	}
}

func (h *Handler) acceptOrder(w http.ResponseWriter, r *http.Request) {
	h.kitchenAction(w, r, func(ctx context.Context, id string) (*order.Order, error) {
		return h.orders.Accept(ctx, id)
	})
}

func (h *Handler) rejectOrder(w http.ResponseWriter, r *http.Request) {
	h.kitchenAction(w, r, func(ctx context.Context, id string) (*order.Order, error) {
		return h.orders.Reject(ctx, id)
	})
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	notes, err := decodeNotes(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.kitchenAction(w, r, func(ctx context.Context, id string) (*order.Order, error) {
		return h.orders.Cancel(ctx, id, notes)
	})
}

func (h *Handler) assignCourier(w http.ResponseWriter, r *http.Request) {
	var courierID string
	if err := decodeObject(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "courierId":
			courierID, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		h.fail(w, r, err)
		return
	}
	if courierID == "" {
		h.fail(w, r, badRequest("courierId is required"))
		return
	}
	h.kitchenAction(w, r, func(ctx context.Context, id string) (*order.Order, error) {
		return h.orders.AssignCourier(ctx, id, courierID)
	})
}

// kitchenAction runs op after checking that the caller manages the order's
// vendor.
func (h *Handler) kitchenAction(w http.ResponseWriter, r *http.Request, op func(context.Context, string) (*order.Order, error)) {
	id := chi.URLParam(r, "id")
	o, err := h.orders.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !canManageVendor(currentUser(r), o.VendorID) {
		h.fail(w, r, errForbidden)
		return
	}
	o, err = op(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOrder(w, o)
}

func (h *Handler) deliveryBoard(w http.ResponseWriter, r *http.Request) {
	board, err := h.orders.Board(r.Context(), currentUser(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("available", func(e *jx.Encoder) { encodeOrders(e, board.Available) })
			e.Field("mine", func(e *jx.Encoder) { encodeOrders(e, board.Mine) })
		})
	})
}

func (h *Handler) applyForOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.ApplyAsCourier(r.Context(), chi.URLParam(r, "id"), currentUser(r).ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOrder(w, o)
}

func (h *Handler) deliverOrder(w http.ResponseWriter, r *http.Request) {
	h.courierAction(w, r, func(ctx context.Context, id string) (*order.Order, error) {
		return h.orders.MarkDelivered(ctx, id)
	})
}

func (h *Handler) reportProblem(w http.ResponseWriter, r *http.Request) {
	notes, err := decodeNotes(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.courierAction(w, r, func(ctx context.Context, id string) (*order.Order, error) {
		return h.orders.ReportProblem(ctx, id, notes)
	})
}

// courierAction runs op when the order is unassigned or assigned to the
// caller. Unassigned orders are left to the status check of op.
func (h *Handler) courierAction(w http.ResponseWriter, r *http.Request, op func(context.Context, string) (*order.Order, error)) {
	id := chi.URLParam(r, "id")
	o, err := h.orders.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if o.AssignedCourierID != "" && o.AssignedCourierID != currentUser(r).ID {
		h.fail(w, r, errForbidden)
		return
	}
	o, err = op(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOrder(w, o)
}

func decodeNotes(r *http.Request) (string, error) {
	var notes string
	err := decodeOptionalObject(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "notes":
			notes, _, err = decodeOptStr(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return notes, err
}

func writeOrder(w http.ResponseWriter, o *order.Order) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, *o) })
}
