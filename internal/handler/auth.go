package handler

import (
	"net/http"

	"github.com/go-faster/jx"
)

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var email, password string
	if err := decodeObject(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "email":
			email, err = d.Str()
		case "password":
			password, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		h.fail(w, r, err)
		return
	}
	if email == "" || password == "" {
		h.fail(w, r, badRequest("email and password are required"))
		return
	}

	key, u, err := h.auth.Login(r.Context(), email, password)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("apiKey", func(e *jx.Encoder) { e.Str(key) })
			e.Field("user", func(e *jx.Encoder) { encodeUser(e, *u) })
		})
	})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeUser(e, *u) })
}
