package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/otlob/internal/domain/catalog"
)

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.Categories(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, c := range categories {
				h.encodeCategory(e, c)
			}
		})
	})
}

func (h *Handler) listVendors(w http.ResponseWriter, r *http.Request) {
	vendors, err := h.catalog.Vendors(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, v := range vendors {
				h.encodeVendor(e, v)
			}
		})
	})
}

func (h *Handler) getVendor(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	v, err := h.catalog.Vendor(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeVendor(w, http.StatusOK, v)
}

func (h *Handler) createVendor(w http.ResponseWriter, r *http.Request) {
	var v catalog.Vendor
	if err := decodeObject(r, vendorDecoder(&v, true)); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.catalog.AddVendor(r.Context(), &v); err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeVendor(w, http.StatusCreated, &v)
}

func (h *Handler) updateVendor(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var v catalog.Vendor
	if err := decodeObject(r, vendorDecoder(&v, false)); err != nil {
		h.fail(w, r, err)
		return
	}
	v.ID = id
	if err := h.catalog.UpdateVendor(r.Context(), &v); err != nil {
		h.fail(w, r, err)
		return
	}
	updated, err := h.catalog.Vendor(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeVendor(w, http.StatusOK, updated)
}

func (h *Handler) deleteVendor(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.catalog.DeleteVendor(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) createDish(w http.ResponseWriter, r *http.Request) {
	vendorID, err := pathInt(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !canManageVendor(currentUser(r), vendorID) {
		h.fail(w, r, errForbidden)
		return
	}
	d := catalog.Dish{VendorID: vendorID}
	if err := decodeObject(r, dishDecoder(&d)); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.catalog.AddDish(r.Context(), &d); err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeDish(w, http.StatusCreated, &d)
}

func (h *Handler) updateDish(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.ownedDish(w, r)
	if !ok {
		return
	}
	d := catalog.Dish{ID: existing.ID, VendorID: existing.VendorID}
	if err := decodeObject(r, dishDecoder(&d)); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.catalog.UpdateDish(r.Context(), &d); err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeDish(w, http.StatusOK, &d)
}

func (h *Handler) deleteDish(w http.ResponseWriter, r *http.Request) {
	d, ok := h.ownedDish(w, r)
	if !ok {
		return
	}
	if err := h.catalog.DeleteDish(r.Context(), d.ID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ownedDish loads the dish named by the path and checks that the caller
// manages its vendor. It writes the error response itself.
func (h *Handler) ownedDish(w http.ResponseWriter, r *http.Request) (*catalog.Dish, bool) {
	id, err := pathInt(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	d, err := h.catalog.Dish(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	if !canManageVendor(currentUser(r), d.VendorID) {
		h.fail(w, r, errForbidden)
		return nil, false
	}
	return d, true
}

func vendorDecoder(v *catalog.Vendor, withMenu bool) func(d *jx.Decoder, key string) error {
	return func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "name":
			v.Name, err = d.Str()
		case "description":
			v.Description, err = d.Str()
		case "cuisine":
			v.Cuisine, err = d.Str()
		case "categoryId":
			v.CategoryID, err = d.Int64()
		case "rating":
			v.Rating, err = decodeDecimal(d)
		case "deliveryTime":
			v.DeliveryTime, err = d.Int()
		case "imageUrl":
			v.ImageURL, err = d.Str()
		case "menu":
			if !withMenu {
				return d.Skip()
			}
			err = d.Arr(func(d *jx.Decoder) error {
				var dish catalog.Dish
				if err := d.Obj(dishDecoder(&dish)); err != nil {
					return err
				}
				v.Menu = append(v.Menu, dish)
				return nil
			})
		default:
			err = d.Skip()
		}
		return err
	}
}

func dishDecoder(dish *catalog.Dish) func(d *jx.Decoder, key string) error {
	return func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "name":
			dish.Name, err = d.Str()
		case "description":
			dish.Description, err = d.Str()
		case "price":
			dish.Price, err = decodeDecimal(d)
		case "imageUrl":
			dish.ImageURL, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	}
}

func (h *Handler) writeVendor(w http.ResponseWriter, status int, v *catalog.Vendor) {
	writeJSON(w, status, func(e *jx.Encoder) { h.encodeVendor(e, *v) })
}

func (h *Handler) writeDish(w http.ResponseWriter, status int, d *catalog.Dish) {
	writeJSON(w, status, func(e *jx.Encoder) { h.encodeDish(e, *d) })
}
