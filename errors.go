package ucp

import (
	"errors"
	"net/http"
	"time"

	"github.com/openucp/ucp-go/vault"
)

// ErrorType mirrors the UCP error.type field.
type ErrorType string

const (
	InvalidRequest     ErrorType = "invalid_request"     // Missing, malformed, or rejected field.
	ProcessingError    ErrorType = "processing_error"    // Downstream gateway or network failure.
	RateLimitExceeded  ErrorType = "rate_limit_exceeded" // Too many requests.
	ServiceUnavailable ErrorType = "service_unavailable" // Temporary outage or maintenance.
)

// ErrorCode is a machine-readable identifier for the specific failure.
type ErrorCode string

const (
	MissingField             ErrorCode = "missing_field"              // Required credential field absent.
	InvalidCredentials       ErrorCode = "invalid_credentials"        // Credential field present but malformed.
	UnsupportedPaymentMethod ErrorCode = "unsupported_payment_method" // Method not on the handler allow-list.
	UnsupportedCardNetwork   ErrorCode = "unsupported_card_network"   // Card brand not on the handler allow-list.
	TokenNotFound            ErrorCode = "token_not_found"            // Token never existed or was evicted.
	TokenGone                ErrorCode = "token_gone"                 // Token is used or expired.
	BindingMismatch          ErrorCode = "binding_mismatch"           // Checkout or business binding does not match.
	TokenConflict            ErrorCode = "token_conflict"             // Lost the single-use consume race.
	ProviderUnavailable      ErrorCode = "provider_unavailable"       // Transient upstream failure; retry with backoff.
	ConsumedDeliveryFailed   ErrorCode = "consumed_delivery_failed"   // Token consumed but credential delivery failed.
	InvalidSignature         ErrorCode = "invalid_signature"          // Signature is missing or does not match the payload.
	SignatureRequired        ErrorCode = "signature_required"         // Signed requests are required but headers were missing.
	StaleTimestamp           ErrorCode = "stale_timestamp"            // Timestamp skew exceeded the allowed window.
	MissingAuthorization     ErrorCode = "missing_authorization"      // Authorization header missing.
	InvalidAuthorization     ErrorCode = "invalid_authorization"      // Authorization header malformed or API key invalid.
	InvalidDelegation        ErrorCode = "invalid_delegation"         // Delegation grant missing, forged, or out of scope.
)

// Error represents a structured UCP error payload.
type Error struct {
	Type    ErrorType `json:"type"`
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Param   *string   `json:"param,omitempty"`

	status     int           `json:"-"`
	retryAfter time.Duration `json:"-"`
}

// Error makes *Error satisfy the stdlib error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// RetryAfter returns the duration clients should wait before retrying.
func (e *Error) RetryAfter() time.Duration {
	if e == nil {
		return 0
	}
	return e.retryAfter
}

type errorOption func(*Error)

// WithOffendingParam sets the JSON path for the field that triggered the error.
func WithOffendingParam(jsonPath string) errorOption {
	return func(er *Error) {
		er.Param = &jsonPath
	}
}

// WithStatusCode overrides the HTTP status code returned to the client.
func WithStatusCode(status int) errorOption {
	return func(er *Error) {
		er.status = status
	}
}

// WithRetryAfter specifies how long clients should wait before retrying.
func WithRetryAfter(d time.Duration) errorOption {
	return func(er *Error) {
		er.retryAfter = d
	}
}

// NewRateLimitExceededError builds a Too Many Requests UCP error payload.
func NewRateLimitExceededError(message string, opts ...errorOption) *Error {
	return newError(RateLimitExceeded, ErrorCode(RateLimitExceeded), message, append([]errorOption{WithStatusCode(http.StatusTooManyRequests)}, opts...)...)
}

// NewServiceUnavailableError builds a Service Unavailable UCP error payload.
func NewServiceUnavailableError(message string, opts ...errorOption) *Error {
	return newError(ServiceUnavailable, ErrorCode(ServiceUnavailable), message, append([]errorOption{WithStatusCode(http.StatusServiceUnavailable)}, opts...)...)
}

// NewInvalidRequestError builds a Bad Request UCP error payload.
func NewInvalidRequestError(message string, opts ...errorOption) *Error {
	return newError(InvalidRequest, ErrorCode(InvalidRequest), message, append([]errorOption{WithStatusCode(http.StatusBadRequest)}, opts...)...)
}

// NewProcessingError builds an Internal Server Error UCP error payload.
func NewProcessingError(message string, opts ...errorOption) *Error {
	return newError(ProcessingError, ErrorCode(ProcessingError), message, append([]errorOption{WithStatusCode(http.StatusInternalServerError)}, opts...)...)
}

// NewHTTPError allows callers to control the status code explicitly.
func NewHTTPError(status int, typ ErrorType, code ErrorCode, message string, opts ...errorOption) *Error {
	return newError(typ, code, message, append(opts, WithStatusCode(status))...)
}

// newError builds a typed error payload matching the UCP schema.
func newError(typ ErrorType, code ErrorCode, message string, opts ...errorOption) *Error {
	errPayload := &Error{
		Type:    typ,
		Code:    code,
		Message: message,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(errPayload)
	}
	return errPayload
}

// errorFromVault maps typed vault failures onto the UCP wire envelope.
// Anything that is not a vault error becomes a generic processing error so
// internal shapes never leak.
func errorFromVault(err error) *Error {
	var verr *vault.Error
	if !errors.As(err, &verr) {
		return NewProcessingError("internal server error")
	}

	var opts []errorOption
	if verr.Field != "" {
		opts = append(opts, WithOffendingParam(verr.Field))
	}

	switch verr.Kind {
	case vault.KindMissingField:
		return NewHTTPError(http.StatusBadRequest, InvalidRequest, MissingField, verr.Message, opts...)
	case vault.KindInvalidCredentials:
		return NewHTTPError(http.StatusBadRequest, InvalidRequest, InvalidCredentials, verr.Message, opts...)
	case vault.KindUnsupportedPaymentMethod:
		return NewHTTPError(http.StatusBadRequest, InvalidRequest, UnsupportedPaymentMethod, verr.Message, opts...)
	case vault.KindUnsupportedCardNetwork:
		return NewHTTPError(http.StatusBadRequest, InvalidRequest, UnsupportedCardNetwork, verr.Message, opts...)
	case vault.KindNotFound:
		return NewHTTPError(http.StatusNotFound, InvalidRequest, TokenNotFound, verr.Message, opts...)
	case vault.KindGone:
		return NewHTTPError(http.StatusGone, InvalidRequest, TokenGone, verr.Message, opts...)
	case vault.KindForbidden:
		return NewHTTPError(http.StatusForbidden, InvalidRequest, BindingMismatch, verr.Message, opts...)
	case vault.KindConflict:
		return NewHTTPError(http.StatusConflict, InvalidRequest, TokenConflict, verr.Message, opts...)
	case vault.KindConsumedDeliveryFailed:
		// Deliberately no Retry-After: the token is dead and a retry can
		// never succeed.
		return NewHTTPError(http.StatusBadGateway, ProcessingError, ConsumedDeliveryFailed, verr.Message, opts...)
	case vault.KindNetworkError:
		opts = append(opts, WithRetryAfter(time.Second))
		return NewHTTPError(http.StatusBadGateway, ProcessingError, ProviderUnavailable, verr.Message, opts...)
	default:
		return NewProcessingError(verr.Message)
	}
}
