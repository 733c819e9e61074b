package apperror

import (
	"errors"
	"net/http"
)

type Code string

const (
	Validation       Code = "VALIDATION"
	NotFound         Code = "NOT_FOUND"
	StoreUnavailable Code = "STORE_UNAVAILABLE"
	FetchUnavailable Code = "FETCH_UNAVAILABLE"
	InvalidCurrency  Code = "INVALID_CURRENCY"
	Internal         Code = "INTERNAL"
)

type AppError struct {
	code    Code
	message string
	err     error
}

func New(code Code, message string) *AppError {
	return &AppError{code: code, message: message}
}

// Wrap attaches a cause that stays reachable through errors.Is / errors.As.
func Wrap(code Code, message string, err error) *AppError {
	return &AppError{code: code, message: message, err: err}
}

func (e *AppError) Error() string {
	if e.err != nil {
		return e.message + ": " + e.err.Error()
	}
	return e.message
}

func (e *AppError) Unwrap() error   { return e.err }
func (e *AppError) Code() Code      { return e.code }
func (e *AppError) Message() string { return e.message }

func (e *AppError) HTTPStatus() int {
	switch e.code {
	case Validation, InvalidCurrency:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case FetchUnavailable:
		return http.StatusBadGateway
	case StoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ExitCode maps the error to a process exit status for the CLI.
func (e *AppError) ExitCode() int {
	switch e.code {
	case Validation, InvalidCurrency:
		return 2
	case FetchUnavailable, NotFound:
		return 3
	case StoreUnavailable:
		return 4
	default:
		return 1
	}
}

// As returns the first AppError in err's chain, if any.
func As(err error) (*AppError, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// CodeOf reports the code of the first AppError in err's chain, or Internal.
func CodeOf(err error) Code {
	if ae, ok := As(err); ok {
		return ae.code
	}
	return Internal
}
