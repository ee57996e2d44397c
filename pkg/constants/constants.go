// Package constants defines system-wide constants for the GTS token service.
// This package provides type-safe constant definitions used across all modules.
package constants

import "time"

// ServiceName identifies this service in logs, traces and issued tokens.
const ServiceName = "gts-token-service"

// ================================================================================
// Upstream Operation Names
// ================================================================================

// Operation names the circuit breaker keys its per-operation records by.
const (
	// OperationGetConsumerSecret guards consumer credential lookups.
	OperationGetConsumerSecret = "getConsumerSecret"

	// OperationCreateConsumerSecret guards consumer credential provisioning.
	OperationCreateConsumerSecret = "createConsumerSecret"

	// OperationHealthCheck guards upstream health probes.
	OperationHealthCheck = "healthCheck"
)

// ================================================================================
// Upstream Mode Constants
// ================================================================================

// UpstreamMode selects how the admin API of the gateway is addressed.
type UpstreamMode string

const (
	// UpstreamModeDirect talks to a self-hosted gateway admin API with a
	// static admin token header.
	UpstreamModeDirect UpstreamMode = "direct"

	// UpstreamModeManaged talks to a managed control plane that requires a
	// short-lived bearer token and consumer id resolution.
	UpstreamModeManaged UpstreamMode = "managed"
)

// DefaultAdminTokenHeader is the header carrying the static admin token in
// direct mode.
const DefaultAdminTokenHeader = "X-Admin-Token"

// ================================================================================
// Token Constants
// ================================================================================

const (
	// DefaultTokenLifetime is the lifetime of issued access tokens.
	DefaultTokenLifetime = 900 * time.Second

	// TokenTypeBearer is the token type reported to HTTP callers.
	TokenTypeBearer = "Bearer"
)

// JWT claim names used by the token engine.
const (
	ClaimSubject    = "sub"
	ClaimKey        = "key"
	ClaimJTI        = "jti"
	ClaimIssuedAt   = "iat"
	ClaimNotBefore  = "nbf"
	ClaimExpiry     = "exp"
	ClaimIssuer     = "iss"
	ClaimAudience   = "aud"
	ClaimName       = "name"
	ClaimUniqueName = "unique_name"
)

// ================================================================================
// Cache TTL Constants
// ================================================================================

const (
	// PrimaryCacheTTL is the fresh-tier lifetime for cached consumer
	// secrets. Short so rotated credentials propagate quickly.
	PrimaryCacheTTL = 5 * time.Minute

	// StaleCacheTTL is the fallback-tier lifetime. Long enough to ride out
	// a realistic upstream outage.
	StaleCacheTTL = 30 * time.Minute

	// CacheCleanupInterval is how often the in-memory backend purges
	// expired entries.
	CacheCleanupInterval = 10 * time.Minute
)

// ================================================================================
// Circuit Breaker Constants
// ================================================================================

const (
	// BreakerErrorThreshold is the consecutive infrastructure failure count
	// that opens a circuit.
	BreakerErrorThreshold = 5

	// BreakerResetTimeout is how long an open circuit waits before allowing
	// a half-open probe.
	BreakerResetTimeout = 30 * time.Second
)

// ================================================================================
// Retry & Timeout Constants
// ================================================================================

const (
	// LookupRetryAttempts bounds retries of consumer secret lookups.
	LookupRetryAttempts = 3

	// HealthRetryAttempts bounds retries of upstream health probes.
	HealthRetryAttempts = 2

	// ProvisionMaxAttempts bounds key-collision retries when provisioning a
	// credential. Provisioning is never wrapped in the generic retry helper.
	ProvisionMaxAttempts = 3

	// RetryBaseDelay is the first backoff interval.
	RetryBaseDelay = 100 * time.Millisecond

	// RetryMaxDelay caps the exponential backoff.
	RetryMaxDelay = 2 * time.Second

	// LookupTimeout bounds consumer lookup and health probe requests.
	LookupTimeout = 5 * time.Second

	// ProvisionTimeout bounds credential provisioning requests.
	ProvisionTimeout = 10 * time.Second
)

// ================================================================================
// Logging Constants
// ================================================================================

// LogLevel controls log filtering in the fallback logger.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
	LogLevelFatal
)

// ParseLogLevel maps a config string to a LogLevel, defaulting to info.
func ParseLogLevel(s string) LogLevel {
	switch s {
	case "debug":
		return LogLevelDebug
	case "info":
		return LogLevelInfo
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	case "fatal":
		return LogLevelFatal
	default:
		return LogLevelInfo
	}
}

// ================================================================================
// Audit Event Types
// ================================================================================

// AuditEventType classifies entries on the audit stream.
type AuditEventType string

const (
	// AuditEventConsumerMismatch records an upstream response whose embedded
	// consumer id differed from the requested one. Security relevant: the
	// fetched secret is returned but never cached.
	AuditEventConsumerMismatch AuditEventType = "consumer_mismatch"

	// AuditEventSecretProvisioned records a successfully provisioned
	// consumer credential.
	AuditEventSecretProvisioned AuditEventType = "secret_provisioned"

	// AuditEventBreakerStateChange records a circuit breaker transition.
	AuditEventBreakerStateChange AuditEventType = "breaker_state_change"
)

// ================================================================================
// Context Keys
// ================================================================================

// ContextKey is the type for request-scoped context values.
type ContextKey string

const (
	// ContextKeyRequestID carries the per-request correlation id.
	ContextKeyRequestID ContextKey = "request_id"

	// ContextKeyTraceID carries the trace id of the active span.
	ContextKeyTraceID ContextKey = "trace_id"

	// ContextKeyCallerID carries the authenticated caller identifier.
	ContextKeyCallerID ContextKey = "caller_id"
)

// HeaderRequestID is the HTTP header carrying the request correlation id,
// inbound and outbound.
const HeaderRequestID = "X-Request-ID"

// HeaderIdempotencyKey marks a provisioning request for duplicate-submit
// detection. Requests without it are never deduplicated.
const HeaderIdempotencyKey = "Idempotency-Key"
