package payment

import "errors"

var (
	// ErrNotFound is returned when no payment matches the given id or
	// reference. For webhook and poll sources this is expected, not fatal.
	ErrNotFound = errors.New("payment not found")

	// ErrIllegalTransition is returned when an update would move an
	// already-terminal payment to a different terminal status.
	ErrIllegalTransition = errors.New("illegal payment status transition")

	// ErrNotRefundable is returned when a refund is attempted against a
	// payment that is not completed.
	ErrNotRefundable = errors.New("payment is not refundable")
)
