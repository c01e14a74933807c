package gberrors

import (
	"errors"
	"fmt"
	"net/http"
)

// IException provides interface for
//   - status code of the failure class
//   - raw error for tracking them
type IException interface {
	ExceptionStatusCode() int
	RawException() error
}

type Error struct {
	Code       int
	Message    string
	StatusCode int
	RawError   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v (Code = %v)", e.Message, e.Code)
}

func (e *Error) ExceptionStatusCode() int {
	return e.StatusCode
}

func (e *Error) RawException() error {
	return e.RawError
}

// Is matches on code, so every WithMsg/WithError variant of
// a kind compares equal to the kind itself.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func (e *Error) Unwrap() error {
	return e.RawError
}

// WithMsg modify user visible message
func (e Error) WithMsg(msg string) *Error {
	e.Message = msg
	return &e
}

// WithMsgf is WithMsg with formatting.
func (e Error) WithMsgf(format string, args ...interface{}) *Error {
	e.Message = fmt.Sprintf(format, args...)
	return &e
}

// WithError returns raw error struct which is not exposed to user.
// It is used for internal error tracking.
func (e Error) WithError(err error) *Error {
	e.RawError = err
	return &e
}

func New(code int, message string, statusCode int) *Error {
	return &Error{Code: code, Message: message, StatusCode: statusCode}
}

func NewInternalServerError(code int, message string) *Error {
	return New(code, message, http.StatusInternalServerError)
}

func NewUnprocessableEntity(code int, message string) *Error {
	return New(code, message, http.StatusUnprocessableEntity)
}

func NewNotFound(code int, message string) *Error {
	return New(code, message, http.StatusNotFound)
}

func NewConflict(code int, message string) *Error {
	return New(code, message, http.StatusConflict)
}

func NewUnauthorized(code int, message string) *Error {
	return New(code, message, http.StatusUnauthorized)
}

func NewForbidden(code int, message string) *Error {
	return New(code, message, http.StatusForbidden)
}

func NewServiceUnavailable(code int, message string) *Error {
	return New(code, message, http.StatusServiceUnavailable)
}

func Format(err error) string {
	if gberr, ok := err.(IException); ok && gberr.RawException() != nil {
		return fmt.Sprintf("%v : %v", err.Error(), gberr.RawException().Error())
	}
	return err.Error()
}

// Coerce returns err unchanged when it already carries a code,
// and attaches it to fallback otherwise.
func Coerce(err error, fallback *Error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return fallback.WithError(err)
}

// code convention is http_status_code:custom_code where custom code starts from 10000
var (
	// 401
	InvalidCredentials = NewUnauthorized(40110000, "invalid username or password")

	// 403
	WrongPassword = NewForbidden(40310000, "current password is incorrect")

	// 404
	NotFound = NewNotFound(40410000, "resource not found")

	// 409
	DuplicateUsername = NewConflict(40910000, "username already exists")

	// 422
	ValidationError    = NewUnprocessableEntity(42210000, "request parameters are invalid")
	InsufficientFunds  = NewUnprocessableEntity(42210001, "insufficient funds")
	InsufficientShares = NewUnprocessableEntity(42210002, "insufficient shares")

	// 500
	PersistenceFailure = NewInternalServerError(50010000, "storage operation failed")

	// 503
	PriceUnavailable = NewServiceUnavailable(50310000, "price unavailable")
)
