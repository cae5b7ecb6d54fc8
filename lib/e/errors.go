package e

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type Kind string

const (
	KindValidation Kind = "validation"
	KindTransport  Kind = "transport"
	KindProtocol   Kind = "protocol"
	KindNotFound   Kind = "not_found"
	KindInternal   Kind = "internal"
)

var ErrNotFound = NewNotFound("not_found")

type Error interface {
	Kind() Kind
	Code() int
	Detail() string
	Error() string
}

type appError struct {
	kind   Kind
	detail string
	code   int
	cause  error
}

func (e *appError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf(`%s: code: %d, detail: '%s': %v`, e.kind, e.code, e.detail, e.cause)
	}

	return fmt.Sprintf(`%s: code: %d, detail: '%s'`, e.kind, e.code, e.detail)
}

func (e *appError) Kind() Kind {
	return e.kind
}

func (e *appError) Code() int {
	return e.code
}

func (e *appError) Detail() string {
	return e.detail
}

func (e *appError) Unwrap() error {
	return e.cause
}

func NewValidation(detail string) Error {
	return &appError{
		kind:   KindValidation,
		detail: detail,
		code:   http.StatusBadRequest,
	}
}

// NewTransport marks a failure the caller may retry: the request never got a
// usable answer from the server.
func NewTransport(cause error, detail string) Error {
	return &appError{
		kind:   KindTransport,
		detail: detail,
		code:   http.StatusBadGateway,
		cause:  cause,
	}
}

func NewProtocol(cause error, detail string) Error {
	return &appError{
		kind:   KindProtocol,
		detail: detail,
		code:   http.StatusBadGateway,
		cause:  cause,
	}
}

func NewInternal(detail string) Error {
	return &appError{
		kind:   KindInternal,
		detail: detail,
		code:   http.StatusInternalServerError,
	}
}

func NewNotFound(detail string) Error {
	return &appError{
		kind:   KindNotFound,
		detail: detail,
		code:   http.StatusNotFound,
	}
}

func Is(err error, kind Kind) bool {
	var ae Error
	if errors.As(err, &ae) {
		return ae.Kind() == kind
	}

	return false
}

func Retryable(err error) bool {
	return Is(err, KindTransport)
}

func HTTPError(err error) *echo.HTTPError {
	var ae Error
	if errors.As(err, &ae) {
		return echo.NewHTTPError(ae.Code(), ae.Detail())
	}

	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
