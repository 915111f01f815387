// Package errors defines the service error model shared by the services and
// the HTTP layer. Every error that reaches a client carries an error type, a
// human readable message and the HTTP status it maps to.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Code identifies the category of a failure. It is serialised as the
// error_type field of API responses.
type Code string

const (
	CodeAuthentication Code = "authentication_error"
	CodeNotFound       Code = "not_found"
	CodeValidation     Code = "validation_error"
	CodeFollowExists   Code = "follow_already_exists"
	CodeLikeExists     Code = "like_already_exists"
	CodeRateLimited    Code = "rate_limit_exceeded"
	CodeServer         Code = "server_error"
)

// ServiceError is an error that knows how it should be reported.
type ServiceError struct {
	Code       Code
	Message    string
	HTTPStatus int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Is matches another ServiceError by code, so errors.Is(err, NotFound(""))
// style checks work regardless of message.
func (e *ServiceError) Is(target error) bool {
	t, ok := target.(*ServiceError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func newError(code Code, status int, message string, err error) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// Unauthorized reports a missing or unknown api key.
func Unauthorized(message string) *ServiceError {
	if message == "" {
		message = "Invalid API key"
	}
	return newError(CodeAuthentication, http.StatusUnauthorized, message, nil)
}

// NotFound reports a missing resource.
func NotFound(message string) *ServiceError {
	return newError(CodeNotFound, http.StatusNotFound, message, nil)
}

// Validation reports bad input.
func Validation(message string) *ServiceError {
	return newError(CodeValidation, http.StatusBadRequest, message, nil)
}

// TooLarge reports a payload above the accepted size.
func TooLarge(message string) *ServiceError {
	return newError(CodeValidation, http.StatusRequestEntityTooLarge, message, nil)
}

// Conflict reports a duplicate relation such as an existing follow or like.
func Conflict(code Code, message string) *ServiceError {
	return newError(code, http.StatusConflict, message, nil)
}

// RateLimitExceeded reports a throttled caller.
func RateLimitExceeded(rps int, window string) *ServiceError {
	return newError(CodeRateLimited, http.StatusTooManyRequests,
		fmt.Sprintf("Rate limit of %d requests per %s exceeded", rps, window), nil)
}

// Internal wraps an unexpected failure.
func Internal(message string, err error) *ServiceError {
	return newError(CodeServer, http.StatusInternalServerError, message, err)
}

// GetServiceError extracts a ServiceError from the chain, or nil.
func GetServiceError(err error) *ServiceError {
	if err == nil {
		return nil
	}
	var se *ServiceError
	if stderrors.As(err, &se) {
		return se
	}
	return nil
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	se := GetServiceError(err)
	return se != nil && se.Code == code
}
