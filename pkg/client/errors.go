package client

import (
	"context"
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrUnauthorized marks missing, expired or rejected SSO tokens.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrAborted is returned when the caller cancelled the operation. It is
	// an expected outcome, not a failure.
	ErrAborted = errors.New("aborted")

	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassAuth represents 401/403 responses and missing tokens.
	ErrorClassAuth ErrorClass = "auth"

	// ErrorClassClient represents other 4xx responses and business error codes.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents transport failures and timeouts.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassAborted represents caller cancellation.
	ErrorClassAborted ErrorClass = "aborted"
)

// APIError represents a failed backend call with its classification.
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass
	// Code and Message come from the response envelope when present.
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("casedesk %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, msg, e.Err)
	}
	return fmt.Sprintf("casedesk %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, msg)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Is makes auth-class errors match ErrUnauthorized and aborted ones ErrAborted.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.ErrorClass == ErrorClassAuth
	case ErrAborted:
		return e.ErrorClass == ErrorClassAborted
	}
	return false
}

// IsAborted reports whether err stems from caller cancellation.
func IsAborted(err error) bool {
	return err != nil && (errors.Is(err, ErrAborted) || errors.Is(err, context.Canceled))
}

// IsUnauthorized reports whether err requires the user to supply a new token.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// ClassOf returns the class of err, or "" when unknown.
func ClassOf(err error) ErrorClass {
	if err == nil {
		return ""
	}
	if IsAborted(err) {
		return ErrorClassAborted
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorClass
	}
	return ""
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassServer, ErrorClassNetwork:
		return true
	default:
		// auth and client errors repeat identically; aborted must stop at once
		return false
	}
}
