package handler

import (
	"fmt"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/otlob/internal/domain/auth"
	"github.com/xenking/otlob/internal/domain/catalog"
	"github.com/xenking/otlob/internal/domain/order"
)

// badRequestError reports a request that could not be parsed.
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &badRequestError{msg: fmt.Sprintf(format, args...)}
}

// unprocessableError reports a well-formed request that references something
// unusable, such as a missing dish.
type unprocessableError struct {
	msg string
}

func (e *unprocessableError) Error() string { return e.msg }

// errorStatus maps domain errors to an HTTP status and a client message.
func errorStatus(err error) (int, string) {
	var (
		badReq     *badRequestError
		unproc     *unprocessableError
		transition *order.InvalidTransitionError
		gateway    *order.GatewayError
		invalidCat *catalog.InvalidFieldError
		invalidUsr *auth.InvalidUserError
	)

	switch {
	case errors.As(err, &badReq):
		return http.StatusBadRequest, badReq.msg
	case errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, order.ErrNotesRequired),
		errors.Is(err, order.ErrAddressRequired):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &unproc):
		return http.StatusUnprocessableEntity, unproc.msg
	case errors.As(err, &invalidCat):
		return http.StatusUnprocessableEntity, invalidCat.Error()
	case errors.As(err, &invalidUsr):
		return http.StatusUnprocessableEntity, invalidUsr.Error()
	case errors.Is(err, order.ErrMixedVendors),
		errors.Is(err, order.ErrNotApplicant):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.As(err, &transition):
		return http.StatusConflict, transition.Error()
	case errors.Is(err, auth.ErrEmailTaken),
		errors.Is(err, auth.ErrUserHasOrders),
		errors.Is(err, catalog.ErrVendorHasOrders):
		return http.StatusConflict, err.Error()
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, auth.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, auth.ErrUnauthorized),
		errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, order.ErrUnauthenticated):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, errForbidden):
		return http.StatusForbidden, err.Error()
	case errors.As(err, &gateway):
		return http.StatusBadGateway, "order store unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// fail writes the error response for err. Server-side failures are logged
// with the request-scoped logger.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	writeError(w, status, msg)
}
