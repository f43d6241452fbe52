// Package handler exposes the cart, catalog and order lifecycle over HTTP.
package handler

import (
	"github.com/go-chi/chi/v5"

	"github.com/xenking/otlob/internal/domain/auth"
	"github.com/xenking/otlob/internal/domain/cart"
	"github.com/xenking/otlob/internal/domain/catalog"
	"github.com/xenking/otlob/internal/domain/order"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in catalog responses.
	// When empty, image paths are returned as stored in the database.
	ImageBaseURL string
}

// Handler serves the JSON API, delegating business logic to the domain
// services.
type Handler struct {
	auth         *auth.Service
	catalog      *catalog.Service
	orders       *order.Service
	carts        *cart.Store
	imageBaseURL string
}

// New constructs a Handler with the required domain dependencies.
func New(
	cfg Config,
	authService *auth.Service,
	catalogService *catalog.Service,
	orderService *order.Service,
	carts *cart.Store,
) *Handler {
	return &Handler{
		auth:         authService,
		catalog:      catalogService,
		orders:       orderService,
		carts:        carts,
		imageBaseURL: cfg.ImageBaseURL,
	}
}

// Register mounts every API route under /api.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/login", h.login)
		r.Get("/categories", h.listCategories)
		r.Get("/vendors", h.listVendors)
		r.Get("/vendors/{id}", h.getVendor)

		r.Group(func(r chi.Router) {
			r.Use(h.authenticate)

			r.Get("/me", h.me)
			r.Get("/orders", h.listOrders)
			r.Get("/orders/{id}", h.getOrder)

			r.Group(func(r chi.Router) {
				r.Use(h.allow(auth.RoleCustomer))

				r.Get("/cart", h.getCart)
				r.Delete("/cart", h.clearCart)
				r.Post("/cart/lines", h.addCartLine)
				r.Post("/cart/lines/{lineID}/decrement", h.decrementCartLine)
				r.Delete("/cart/lines/{lineID}", h.removeCartLine)
				r.Post("/orders", h.placeOrder)
			})

			r.Group(func(r chi.Router) {
				r.Use(h.allow(auth.RoleRestaurant, auth.RoleAdmin))

				r.Post("/orders/{id}/accept", h.acceptOrder)
				r.Post("/orders/{id}/reject", h.rejectOrder)
				r.Post("/orders/{id}/cancel", h.cancelOrder)
				r.Post("/orders/{id}/assign", h.assignCourier)

				r.Post("/vendors/{id}/dishes", h.createDish)
				r.Put("/dishes/{id}", h.updateDish)
				r.Delete("/dishes/{id}", h.deleteDish)
			})

			r.Group(func(r chi.Router) {
				r.Use(h.allow(auth.RoleDelivery))

				r.Get("/delivery/board", h.deliveryBoard)
				r.Post("/orders/{id}/apply", h.applyForOrder)
				r.Post("/orders/{id}/deliver", h.deliverOrder)
				r.Post("/orders/{id}/problem", h.reportProblem)
			})

			r.Group(func(r chi.Router) {
				r.Use(h.allow(auth.RoleAdmin))

				r.Post("/vendors", h.createVendor)
				r.Put("/vendors/{id}", h.updateVendor)
				r.Delete("/vendors/{id}", h.deleteVendor)

				r.Get("/users", h.listUsers)
				r.Post("/users", h.createUser)
				r.Get("/users/{id}", h.getUser)
				r.Put("/users/{id}", h.updateUser)
				r.Delete("/users/{id}", h.deleteUser)

				r.Get("/reports/orders", h.orderReport)
			})
		})
	})
}
