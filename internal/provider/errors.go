package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

const unknownFailure = "unknown provider failure"

// ProviderError is a failed send. Transient marks failures the upstream may
// recover from on its own; it feeds the failure metrics and the breaker.
type ProviderError struct {
	StatusCode int
	Message    string
	Transient  bool
	Cause      error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 4)
	parts = append(parts, "provider error")

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsTransient reports whether an error is likely to clear up on its own.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Transient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}

func missingRecipient() *ProviderError {
	return &ProviderError{Message: "recipient is required"}
}

// requestFailed wraps a transport-level failure. Anything but caller
// cancellation is treated as transient.
func requestFailed(what string, err error) *ProviderError {
	return &ProviderError{
		Message:   what + " request failed",
		Transient: !errors.Is(err, context.Canceled),
		Cause:     err,
	}
}

// statusError classifies a non-2xx upstream reply. 429 and 5xx are transient.
func statusError(statusCode int, message string, body string) *ProviderError {
	message = strings.TrimSpace(message)
	if message == "" {
		message = fmt.Sprintf("provider returned status %d", statusCode)
		if body = strings.TrimSpace(body); body != "" {
			message += ": " + body
		}
	}
	return &ProviderError{
		StatusCode: statusCode,
		Message:    message,
		Transient:  statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599),
	}
}

func isSuccessStatus(statusCode int) bool {
	return statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices
}

// FailureMessage renders a non-empty, human readable reason for a failed send.
func FailureMessage(err error) string {
	if err == nil {
		return unknownFailure
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		if msg := strings.TrimSpace(providerErr.Message); msg != "" && providerErr.Cause == nil && providerErr.StatusCode == 0 {
			return msg
		}
	}

	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return unknownFailure
}
