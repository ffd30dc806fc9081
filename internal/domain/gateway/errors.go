package gateway

import (
	"errors"
	"fmt"

	"github.com/edupay/edupay/internal/domain/payment"
)

var (
	// ErrNotConfigured is returned when no active credential exists for the
	// requested gateway. Fatal at initiation, surfaced to the caller.
	ErrNotConfigured = errors.New("gateway not configured")

	// ErrSignatureInvalid is returned when a webhook body fails signature
	// verification. The payload never reaches the state machine.
	ErrSignatureInvalid = errors.New("webhook signature verification failed")

	// ErrUnsupportedMethod is returned when the adapter cannot process the
	// requested payment instrument.
	ErrUnsupportedMethod = errors.New("unsupported payment method")

	// ErrUnsupportedCurrency is returned when the active credential does not
	// accept the requested currency.
	ErrUnsupportedCurrency = errors.New("unsupported currency")
)

// RequestError wraps a network failure or a non-2xx provider response.
// Surfaced to the caller only at initiation; otherwise absorbed and retried
// by the poller on schedule.
type RequestError struct {
	Gateway    payment.Gateway
	StatusCode int
	Message    string
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s request failed (%d): %s", e.Gateway, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s request failed: %s", e.Gateway, e.Message)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}
