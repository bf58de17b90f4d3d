package cacheapi

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	ErrUnknownCommand       = errors.New("unknown cache command")
	ErrConflictingTypeHints = errors.New("conflicting type hints")
	ErrInvalidKey           = errors.New("invalid key")
	ErrInvalidValue         = errors.New("invalid value")
	ErrInvalidBool          = errors.New("invalid boolean")

	// ErrInvalidResponse is returned when the response body is not a JSON object.
	ErrInvalidResponse = errors.New("invalid response")

	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx responses.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx responses.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents transport failures.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassParse represents unparseable response bodies.
	ErrorClassParse ErrorClass = "parse"
)

// APIError is returned when a response body cannot be decoded. Responses
// whose body is a JSON object are never errors, whatever their status.
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Body       string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cache API %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("cache API %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// classifyStatus maps a status code to an error class; 2xx and 3xx map to "".
func classifyStatus(status int) ErrorClass {
	switch {
	case status >= 500:
		return ErrorClassServer
	case status >= 400:
		return ErrorClassClient
	default:
		return ""
	}
}

// shouldRetry reports whether a failure of the given class may be retried.
// Only transport failures are: a response that arrived was already applied.
func shouldRetry(errorClass ErrorClass) bool {
	return errorClass == ErrorClassNetwork
}
