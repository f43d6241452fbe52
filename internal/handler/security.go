package handler

import (
	"net/http"
	"slices"

	"github.com/go-faster/errors"

	"github.com/xenking/otlob/internal/domain/auth"
)

// APIKeyHeader carries the key issued by POST /api/login.
const APIKeyHeader = "api_key"

var errForbidden = errors.New("forbidden")

// authenticate resolves the caller by API key and stores the user in the
// request context.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := h.auth.Authenticate(r.Context(), r.Header.Get(APIKeyHeader))
		if err != nil {
			h.fail(w, r, auth.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), u)))
	})
}

// allow rejects callers whose role is not listed. It must run after
// authenticate.
func (h *Handler) allow(roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !slices.Contains(roles, currentUser(r).Role) {
				h.fail(w, r, errForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// currentUser returns the user stored by authenticate. Handlers behind
// authenticate always have one.
func currentUser(r *http.Request) *auth.User {
	u, _ := auth.UserFromContext(r.Context())
	return u
}

// canManageVendor reports whether u may act on the vendor's orders and menu.
func canManageVendor(u *auth.User, vendorID int64) bool {
	return u.Role == auth.RoleAdmin || u.Owns(vendorID)
}
