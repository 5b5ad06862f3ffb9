// Package apperr defines the error kinds shared by the catalog and gateway
// clients, the checkout orchestrator and the HTTP handlers.  Clients wrap
// these sentinels with context using fmt.Errorf("...: %w", ...); handlers
// translate them into a single user-facing message with errors.Is, so no
// upstream response body ever reaches the buyer.
package apperr

import "errors"

// ErrUpstreamUnavailable is returned when the catalog or gateway cannot be
// reached or answers with a 5xx.  Surfaced as a retryable error.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// ErrNotFound is returned when a CPF has no purchase history or an id is
// unknown upstream.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned for missing or invalid buyer input.  It is
// always raised before any external call is made.
var ErrValidation = errors.New("validation failed")

// ErrGatewayTimeout is returned when an outbound call exceeds its bound.
// Status polling treats it as transient.
var ErrGatewayTimeout = errors.New("gateway timeout")

// ErrConfirmation marks a failed attendance confirmation after payment
// succeeded.  It is recorded for reconciliation and never reverts the paid
// outcome.
var ErrConfirmation = errors.New("attendance confirmation failed")

// ErrUnexpectedResponse is returned when an upstream body cannot be decoded.
// It is kept apart from ErrNotFound so a shape mismatch is never read as
// "buyer has no coupons".
var ErrUnexpectedResponse = errors.New("unexpected upstream response")

// Validation builds an ErrValidation carrying a buyer-facing reason.
func Validation(reason string) error {
	return &validationError{reason: reason}
}

type validationError struct{ reason string }

func (e *validationError) Error() string { return e.reason }

func (e *validationError) Unwrap() error { return ErrValidation }

// Reason returns the buyer-facing text of a validation error, or fallback
// when err carries none.
func Reason(err error, fallback string) string {
	var v *validationError
	if errors.As(err, &v) {
		return v.reason
	}
	return fallback
}
