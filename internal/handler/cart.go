package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/otlob/internal/domain/cart"
	"github.com/xenking/otlob/internal/domain/catalog"
	"github.com/xenking/otlob/internal/domain/order"
)

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	h.writeCart(w, http.StatusOK, h.carts.View(currentUser(r).ID))
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	h.carts.Clear(currentUser(r).ID)
	w.WriteHeader(http.StatusNoContent)
}

// addCartLine adds one unit of a dish. An omitted or null "notes" is kept
// distinct from an empty string.
func (h *Handler) addCartLine(w http.ResponseWriter, r *http.Request) {
	var (
		dishID int64
		notes  cart.OptString
	)
	if err := decodeObject(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "dishId":
			dishID, err = d.Int64()
		case "notes":
			notes.Value, notes.Set, err = decodeOptStr(d)
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		h.fail(w, r, err)
		return
	}
	if dishID <= 0 {
		h.fail(w, r, badRequest("dishId is required"))
		return
	}

	dish, err := h.catalog.Dish(r.Context(), dishID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			err = &unprocessableError{msg: "dish not found"}
		}
		h.fail(w, r, err)
		return
	}

	snap := h.carts.Update(currentUser(r).ID, func(c *cart.Cart) {
		c.Add(*dish, notes)
	})
	h.writeCart(w, http.StatusOK, snap)
}

func (h *Handler) decrementCartLine(w http.ResponseWriter, r *http.Request) {
	h.updateCartLine(w, r, (*cart.Cart).Decrement)
}

func (h *Handler) removeCartLine(w http.ResponseWriter, r *http.Request) {
	h.updateCartLine(w, r, (*cart.Cart).Remove)
}

func (h *Handler) updateCartLine(w http.ResponseWriter, r *http.Request, op func(*cart.Cart, string) bool) {
	lineID := chi.URLParam(r, "lineID")
	found := false
	snap := h.carts.Update(currentUser(r).ID, func(c *cart.Cart) {
		found = op(c, lineID)
	})
	if !found {
		writeError(w, http.StatusNotFound, "cart line not found")
		return
	}
	h.writeCart(w, http.StatusOK, snap)
}

// placeOrder turns the caller's cart into a pending order. Only the lines
// that went into the order are taken out of the cart, and only after the
// order is stored.
func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var address string
	if err := decodeOptionalObject(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "address":
			address, _, err = decodeOptStr(d)
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		h.fail(w, r, err)
		return
	}

	u := currentUser(r)
	snap := h.carts.View(u.ID)
	if err := h.checkDishesAvailable(r.Context(), snap.Lines); err != nil {
		h.fail(w, r, err)
		return
	}
	o, err := h.orders.Create(r.Context(), order.CreateRequest{
		Lines:    snap.Lines,
		Customer: u,
		Address:  address,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.carts.Consume(u.ID, snap.Lines)

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeOrder(e, *o) })
}

// checkDishesAvailable rejects carts holding dishes removed from the menu
// after they were added.
func (h *Handler) checkDishesAvailable(ctx context.Context, lines []cart.Line) error {
	seen := make(map[int64]struct{}, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.Dish.ID]; ok {
			continue
		}
		seen[l.Dish.ID] = struct{}{}
		if _, err := h.catalog.Dish(ctx, l.Dish.ID); err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return &unprocessableError{msg: fmt.Sprintf("%s is no longer available, remove cart line %s", l.Dish.Name, l.ID)}
			}
			return errors.Wrap(err, "check dish")
		}
	}
	return nil
}

func (h *Handler) writeCart(w http.ResponseWriter, status int, snap cart.Snapshot) {
	writeJSON(w, status, func(e *jx.Encoder) { h.encodeCart(e, snap) })
}
