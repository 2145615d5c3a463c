package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Error codes carried in AppError.Code.
const (
	CodeBadRequest    = "ERR_BAD_REQUEST"
	CodeNotFound      = "ERR_NOT_FOUND"
	CodeConflict      = "ERR_CONFLICT"
	CodeUnprocessable = "ERR_UNPROCESSABLE"
	CodeRateLimited   = "ERR_RATE_LIMITED"
	CodeInternal      = "ERR_INTERNAL"
)

// AppError is an error with the HTTP status and the client-facing body
// it should be reported with.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Field   string                 `json:"field,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Status  int                    `json:"-"`
	Err     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func newAppError(code string, status int, message string) *AppError {
	return &AppError{Code: code, Message: message, Status: status}
}

func (e *AppError) WithParam(key string, value interface{}) *AppError {
	if e.Params == nil {
		e.Params = make(map[string]interface{})
	}
	e.Params[key] = value
	return e
}

// WithError keeps the cause for logging; it is never serialized.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

func BadRequestError(message string) *AppError {
	return newAppError(CodeBadRequest, http.StatusBadRequest, message)
}

func NotFoundError(message string) *AppError {
	return newAppError(CodeNotFound, http.StatusNotFound, message)
}

func ConflictError(message string) *AppError {
	return newAppError(CodeConflict, http.StatusConflict, message)
}

// UnprocessableError is for well-formed requests the stored data cannot
// satisfy, such as a merge with too little history.
func UnprocessableError(message string) *AppError {
	return newAppError(CodeUnprocessable, http.StatusUnprocessableEntity, message)
}

func TooManyRequestsError(message string) *AppError {
	return newAppError(CodeRateLimited, http.StatusTooManyRequests, message)
}

func InternalError(message string) *AppError {
	return newAppError(CodeInternal, http.StatusInternalServerError, message)
}

// fromEcho converts errors raised by echo itself (unknown route, wrong
// method, oversized body) into an AppError.
func fromEcho(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		return InternalError("internal error").WithError(err)
	}
	code := CodeInternal
	switch {
	case he.Code == http.StatusNotFound:
		code = CodeNotFound
	case he.Code == http.StatusTooManyRequests:
		code = CodeRateLimited
	case he.Code < http.StatusInternalServerError:
		code = CodeBadRequest
	}
	return newAppError(code, he.Code, fmt.Sprint(he.Message)).WithError(err)
}
