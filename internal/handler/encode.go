package handler

import (
	"strings"
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/otlob/internal/domain/auth"
	"github.com/xenking/otlob/internal/domain/cart"
	"github.com/xenking/otlob/internal/domain/catalog"
	"github.com/xenking/otlob/internal/domain/order"
)

// imageURL resolves a stored image path against the configured base URL.
func (h *Handler) imageURL(path string) string {
	if path == "" || h.imageBaseURL == "" ||
		strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimRight(h.imageBaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

func (h *Handler) encodeCategory(e *jx.Encoder, c catalog.Category) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(c.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(c.Name) })
		e.Field("imageUrl", func(e *jx.Encoder) { e.Str(h.imageURL(c.ImageURL)) })
	})
}

func (h *Handler) encodeDish(e *jx.Encoder, d catalog.Dish) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(d.ID) })
		e.Field("vendorId", func(e *jx.Encoder) { e.Int64(d.VendorID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(d.Name) })
		e.Field("description", func(e *jx.Encoder) { e.Str(d.Description) })
		e.Field("price", func(e *jx.Encoder) { money(e, d.Price) })
		e.Field("imageUrl", func(e *jx.Encoder) { e.Str(h.imageURL(d.ImageURL)) })
	})
}

func (h *Handler) encodeVendor(e *jx.Encoder, v catalog.Vendor) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(v.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(v.Name) })
		e.Field("description", func(e *jx.Encoder) { e.Str(v.Description) })
		e.Field("cuisine", func(e *jx.Encoder) { e.Str(v.Cuisine) })
		if v.CategoryID != 0 {
			e.Field("categoryId", func(e *jx.Encoder) { e.Int64(v.CategoryID) })
		}
		e.Field("rating", func(e *jx.Encoder) { money(e, v.Rating) })
		e.Field("deliveryTime", func(e *jx.Encoder) { e.Int(v.DeliveryTime) })
		e.Field("imageUrl", func(e *jx.Encoder) { e.Str(h.imageURL(v.ImageURL)) })
		e.Field("menu", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, d := range v.Menu {
					h.encodeDish(e, d)
				}
			})
		})
	})
}

func (h *Handler) encodeCart(e *jx.Encoder, s cart.Snapshot) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("lines", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, l := range s.Lines {
					e.Obj(func(e *jx.Encoder) {
						e.Field("id", func(e *jx.Encoder) { e.Str(l.ID) })
						e.Field("dish", func(e *jx.Encoder) { h.encodeDish(e, l.Dish) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
						if notes, ok := l.Notes.Get(); ok {
							e.Field("notes", func(e *jx.Encoder) { e.Str(notes) })
						}
						e.Field("total", func(e *jx.Encoder) { money(e, l.Total()) })
					})
				}
			})
		})
		e.Field("itemCount", func(e *jx.Encoder) { e.Int(s.ItemCount) })
		e.Field("total", func(e *jx.Encoder) { money(e, s.Total) })
		e.Field("deliveryFee", func(e *jx.Encoder) { money(e, h.orders.DeliveryFee()) })
	})
}

func encodeOrder(e *jx.Encoder, o order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("customerId", func(e *jx.Encoder) { e.Str(o.CustomerID) })
		e.Field("customerName", func(e *jx.Encoder) { e.Str(o.CustomerName) })
		e.Field("vendorId", func(e *jx.Encoder) { e.Int64(o.VendorID) })
		e.Field("vendorName", func(e *jx.Encoder) { e.Str(o.VendorName) })
		e.Field("deliveryAddress", func(e *jx.Encoder) { e.Str(o.DeliveryAddress) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range o.Items {
					e.Obj(func(e *jx.Encoder) {
						e.Field("id", func(e *jx.Encoder) { e.Str(it.ID) })
						e.Field("dishId", func(e *jx.Encoder) { e.Int64(it.DishID) })
						e.Field("name", func(e *jx.Encoder) { e.Str(it.DishName) })
						e.Field("price", func(e *jx.Encoder) { money(e, it.UnitPrice) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
						if it.Notes != "" {
							e.Field("notes", func(e *jx.Encoder) { e.Str(it.Notes) })
						}
					})
				}
			})
		})
		e.Field("deliveryFee", func(e *jx.Encoder) { money(e, o.DeliveryFee) })
		e.Field("totalPrice", func(e *jx.Encoder) { money(e, o.TotalPrice) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
		e.Field("createdAt", func(e *jx.Encoder) { e.Str(o.CreatedAt.UTC().Format(time.RFC3339)) })
		if o.ProblemNotes != "" {
			e.Field("problemNotes", func(e *jx.Encoder) { e.Str(o.ProblemNotes) })
		}
		e.Field("applicants", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, id := range o.ApplicantIDs {
					e.Str(id)
				}
			})
		})
		if o.AssignedCourierID != "" {
			e.Field("assignedCourierId", func(e *jx.Encoder) { e.Str(o.AssignedCourierID) })
		}
	})
}

func encodeOrders(e *jx.Encoder, orders []order.Order) {
	e.Arr(func(e *jx.Encoder) {
		for _, o := range orders {
			encodeOrder(e, o)
		}
	})
}

func encodeUser(e *jx.Encoder, u auth.User) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(u.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(u.Name) })
		e.Field("email", func(e *jx.Encoder) { e.Str(u.Email) })
		e.Field("role", func(e *jx.Encoder) { e.Str(string(u.Role)) })
		e.Field("phoneNumber", func(e *jx.Encoder) { e.Str(u.PhoneNumber) })
		e.Field("district", func(e *jx.Encoder) { e.Str(u.District) })
		e.Field("addressDetails", func(e *jx.Encoder) { e.Str(u.AddressDetails) })
		if u.VendorID != nil {
			e.Field("vendorId", func(e *jx.Encoder) { e.Int64(*u.VendorID) })
		}
	})
}

func encodeSummary(e *jx.Encoder, s order.Summary) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("totalOrders", func(e *jx.Encoder) { e.Int(s.TotalOrders) })
		e.Field("delivered", func(e *jx.Encoder) { e.Int(s.Delivered) })
		e.Field("revenue", func(e *jx.Encoder) { money(e, s.Revenue) })
		e.Field("byStatus", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				for _, st := range order.Statuses {
					e.Field(string(st), func(e *jx.Encoder) { e.Int(s.ByStatus[st]) })
				}
			})
		})
	})
}
