// Package errors defines structured error types for the GTS token service.
// Every error crossing a component boundary carries a machine-readable code,
// an HTTP status for the edge, and a Kind the resilience layer uses to tell
// infrastructure failures from definitive business outcomes.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ================================================================================
// Error Kinds
// ================================================================================

// Kind classifies an error for the resilience layer.
type Kind int

const (
	// KindUnknown is the zero kind for errors that carry no classification.
	KindUnknown Kind = iota

	// KindInfrastructure marks timeouts, connection failures, upstream 5xx
	// responses and upstream auth rejections (401/403 mean the service is
	// misconfigured against its gateway, not that the caller is absent).
	// These count toward opening the circuit breaker.
	KindInfrastructure

	// KindNotFound marks a definitive "does not exist" answer from a live
	// upstream. Treated as proof of upstream health by the breaker.
	KindNotFound

	// KindConflict marks a provisioning key collision (HTTP 409).
	KindConflict

	// KindCrypto marks token construction or signing failures.
	KindCrypto

	// KindValidation marks malformed caller input.
	KindValidation

	// KindUnavailable marks calls rejected locally by an open circuit.
	KindUnavailable
)

// ================================================================================
// Error Codes
// ================================================================================

// Machine-readable error codes surfaced in API responses.
const (
	CodeInvalidRequest         = "invalid_request"
	CodeInvalidClient          = "invalid_client"
	CodeNotFound               = "not_found"
	CodeConflict               = "conflict"
	CodeUpstreamFailure        = "upstream_failure"
	CodeTemporarilyUnavailable = "temporarily_unavailable"
	CodeTokenCreation          = "token_creation_failed"
	CodeInternal               = "internal_error"
)

// ================================================================================
// AppError
// ================================================================================

// AppError is the structured application error. Message is safe to surface
// to API callers; Err retains the underlying cause for server-side logs only.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Kind       Kind
	Err        error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches AppErrors by code so sentinel comparisons survive wrapping.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// ================================================================================
// Constructors
// ================================================================================

// New creates an AppError with the given classification.
func New(code string, httpStatus int, kind Kind, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Kind:       kind,
	}
}

// Newf creates an AppError with a formatted message.
func Newf(code string, httpStatus int, kind Kind, format string, args ...interface{}) *AppError {
	return New(code, httpStatus, kind, fmt.Sprintf(format, args...))
}

// Wrap attaches a cause to a new AppError. The cause never reaches API
// responses.
func Wrap(err error, code string, httpStatus int, kind Kind, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Kind:       kind,
		Err:        err,
	}
}

// ================================================================================
// Sentinel Errors
// ================================================================================

// ErrCircuitOpen is returned when a circuit breaker rejects a call without
// reaching the upstream. Compare with errors.Is.
var ErrCircuitOpen = New(
	CodeTemporarilyUnavailable,
	http.StatusServiceUnavailable,
	KindUnavailable,
	"circuit breaker is open",
)

// ================================================================================
// Domain-Specific Error Constructors
// ================================================================================

// ErrConsumerNotFound reports that the upstream answered definitively that
// the consumer does not exist.
func ErrConsumerNotFound(consumerID string) *AppError {
	return Newf(CodeNotFound, http.StatusNotFound, KindNotFound,
		"consumer not found: %s", consumerID)
}

// ErrKeyConflict reports a provisioning collision on a credential key.
func ErrKeyConflict(keyID string) *AppError {
	return Newf(CodeConflict, http.StatusConflict, KindConflict,
		"credential key already exists: %s", keyID)
}

// ErrUpstreamTransport wraps a transport-level failure (timeout, connection
// refused, DNS) talking to the upstream admin API.
func ErrUpstreamTransport(operation string, cause error) *AppError {
	return Wrap(cause, CodeUpstreamFailure, http.StatusBadGateway, KindInfrastructure,
		fmt.Sprintf("upstream request failed: %s", operation))
}

// ErrUpstreamStatus reports an unexpected HTTP status from the upstream
// admin API. Auth rejections land here too: a 401/403 from the gateway means
// our admin credentials are broken, which is an operational fault.
func ErrUpstreamStatus(operation string, status int) *AppError {
	return Newf(CodeUpstreamFailure, http.StatusBadGateway, KindInfrastructure,
		"upstream returned status %d: %s", status, operation)
}

// ErrControlPlaneAuth wraps a failure to obtain or renew the managed-mode
// control plane token.
func ErrControlPlaneAuth(cause error) *AppError {
	return Wrap(cause, CodeUpstreamFailure, http.StatusBadGateway, KindInfrastructure,
		"control plane authentication failed")
}

// ErrProvisioningExhausted reports that credential provisioning gave up
// after repeated key collisions.
func ErrProvisioningExhausted(attempts int) *AppError {
	return Newf(CodeUpstreamFailure, http.StatusBadGateway, KindInfrastructure,
		"credential provisioning failed after %d key collisions", attempts)
}

// ErrTokenCreation wraps a signing failure. The outward message stays
// generic; the cause is for server logs.
func ErrTokenCreation(cause error) *AppError {
	return Wrap(cause, CodeTokenCreation, http.StatusInternalServerError, KindCrypto,
		"failed to create token")
}

// ErrInvalidRequest reports malformed caller input.
func ErrInvalidRequest(message string) *AppError {
	return New(CodeInvalidRequest, http.StatusBadRequest, KindValidation, message)
}

// ErrInvalidClient reports that no credentials exist for the caller.
func ErrInvalidClient(message string) *AppError {
	return New(CodeInvalidClient, http.StatusUnauthorized, KindNotFound, message)
}

// ErrTemporarilyUnavailable reports that the service cannot answer right now
// and the caller should retry later.
func ErrTemporarilyUnavailable(message string) *AppError {
	return New(CodeTemporarilyUnavailable, http.StatusServiceUnavailable, KindUnavailable, message)
}

// ErrSecretResolution wraps a failure to resolve a configured secret
// reference (env or Vault).
func ErrSecretResolution(ref string, cause error) *AppError {
	return Wrap(cause, CodeInternal, http.StatusInternalServerError, KindInfrastructure,
		fmt.Sprintf("failed to resolve secret reference: %s", ref))
}

// ErrInternal wraps an unexpected internal failure.
func ErrInternal(message string, cause error) *AppError {
	return Wrap(cause, CodeInternal, http.StatusInternalServerError, KindUnknown, message)
}

// ================================================================================
// Error Predicates
// ================================================================================

// AsAppError extracts an AppError from anywhere in the error chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsInfrastructure reports whether the error is an infrastructure failure.
// These are the only errors that count toward opening a circuit.
func IsInfrastructure(err error) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Kind == KindInfrastructure
}

// IsNotFound reports whether the error is a definitive not-found outcome.
func IsNotFound(err error) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Kind == KindNotFound
}

// IsConflict reports whether the error is a provisioning key collision.
func IsConflict(err error) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Kind == KindConflict
}

// IsCircuitOpen reports whether the error chain contains a circuit breaker
// rejection.
func IsCircuitOpen(err error) bool {
	return stderrors.Is(err, ErrCircuitOpen)
}

// HTTPStatusOf returns the HTTP status an error maps to at the edge,
// defaulting to 500 for unclassified errors.
func HTTPStatusOf(err error) int {
	if appErr, ok := AsAppError(err); ok && appErr.HTTPStatus != 0 {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}
