package vault

import (
	"errors"
	"fmt"
)

// Kind is a machine-readable classification for vault failures.
type Kind string

const (
	KindMissingField             Kind = "missing_field"              // Required credential field absent.
	KindInvalidCredentials       Kind = "invalid_credentials"        // Credential field present but malformed.
	KindUnsupportedPaymentMethod Kind = "unsupported_payment_method" // Method not on the handler allow-list.
	KindUnsupportedCardNetwork   Kind = "unsupported_card_network"   // Card brand not on the handler allow-list.
	KindNotFound                 Kind = "not_found"                  // Token never existed or was evicted.
	KindGone                     Kind = "gone"                       // Token existed but is used or expired.
	KindForbidden                Kind = "forbidden"                  // Binding mismatch.
	KindConflict                 Kind = "conflict"                   // Lost the atomic consume race.
	KindNetworkError             Kind = "network_error"              // Transient provider or storage failure.
	KindConsumedDeliveryFailed   Kind = "consumed_delivery_failed"   // Token consumed but credential delivery failed.
)

// Error is the typed failure carried across the vault boundary. Callers are
// expected to branch on Kind; Field names the offending request field for
// validation failures.
type Error struct {
	Kind    Kind
	Field   string
	Message string

	cause error
}

// Error satisfies the stdlib error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Field != "" {
		return fmt.Sprintf("%s: %s %s", e.Kind, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// Retryable reports whether the caller may retry with backoff. Only
// transient provider and storage failures qualify; everything else needs a
// different request or is permanently dead.
func (e *Error) Retryable() bool {
	return e != nil && e.Kind == KindNetworkError
}

// IsKind reports whether err is a vault error of the given kind.
func IsKind(err error, kind Kind) bool {
	var verr *Error
	return errors.As(err, &verr) && verr.Kind == kind
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func newFieldError(kind Kind, field, message string) *Error {
	return &Error{Kind: kind, Field: field, Message: message}
}

func newTransientError(message string, cause error) *Error {
	return &Error{Kind: KindNetworkError, Message: message, cause: cause}
}
