// Package service implements the application services: the resilient
// credential gateway in front of the upstream admin API, and the token
// issuance service it feeds.
package service

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/gts/internal/domain/models"
	domainService "github.com/turtacn/gts/internal/domain/service"
	"github.com/turtacn/gts/pkg/constants"
	"github.com/turtacn/gts/pkg/errors"
	"github.com/turtacn/gts/pkg/logger"
	"github.com/turtacn/gts/pkg/retry"
)

// maxResponseBytes bounds how much of an upstream response body is read.
const maxResponseBytes = 1 << 20

// Upstream request result labels.
const (
	resultSuccess  = "success"
	resultError    = "error"
	resultNotFound = "not_found"
	resultConflict = "conflict"
)

// Metrics records the operational signals of the application services. The
// monitoring package's instrument set satisfies it.
type Metrics interface {
	RecordUpstreamRequest(operation, result string, duration time.Duration)
	RecordCacheRead(hit bool)
	RecordStaleFallback()
	RecordConsumerMismatch()
	RecordTokenIssued(result string, duration time.Duration)
	RecordTokenValidation(result string)
}

type noopMetrics struct{}

func (noopMetrics) RecordUpstreamRequest(string, string, time.Duration) {}
func (noopMetrics) RecordCacheRead(bool)                                {}
func (noopMetrics) RecordStaleFallback()                                {}
func (noopMetrics) RecordConsumerMismatch()                             {}
func (noopMetrics) RecordTokenIssued(string, time.Duration)             {}
func (noopMetrics) RecordTokenValidation(string)                        {}

// GatewayConfig bounds the gateway's upstream calls.
type GatewayConfig struct {
	// LookupTimeout bounds one credential lookup or health probe attempt,
	// ProvisionTimeout bounds one provisioning attempt.
	LookupTimeout    time.Duration
	ProvisionTimeout time.Duration

	// LookupRetry and HealthRetry bound the retry loops around reads.
	// Provisioning retries only on key collisions, never on failures.
	LookupRetry       retry.Config
	HealthRetry       retry.Config
	ProvisionAttempts int
}

// DefaultGatewayConfig returns the gateway defaults.
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		LookupTimeout:    constants.LookupTimeout,
		ProvisionTimeout: constants.ProvisionTimeout,
		LookupRetry:      retry.DefaultConfig(),
		HealthRetry: retry.Config{
			MaxAttempts: constants.HealthRetryAttempts,
			BaseDelay:   constants.RetryBaseDelay,
			MaxDelay:    constants.RetryMaxDelay,
		},
		ProvisionAttempts: constants.ProvisionMaxAttempts,
	}
}

func (c *GatewayConfig) applyDefaults() {
	def := DefaultGatewayConfig()
	if c.LookupTimeout <= 0 {
		c.LookupTimeout = def.LookupTimeout
	}
	if c.ProvisionTimeout <= 0 {
		c.ProvisionTimeout = def.ProvisionTimeout
	}
	if c.LookupRetry.MaxAttempts <= 0 {
		c.LookupRetry = def.LookupRetry
	}
	if c.HealthRetry.MaxAttempts <= 0 {
		c.HealthRetry = def.HealthRetry
	}
	if c.ProvisionAttempts <= 0 {
		c.ProvisionAttempts = def.ProvisionAttempts
	}
}

// CredentialGateway implements the domain CredentialService port. It layers
// a tiered cache, per-operation circuit breakers and bounded retries around
// the upstream admin API, so one slow or dead gateway degrades token
// issuance instead of taking it down.
// CredentialGateway 在上游管理 API 之上叠加分层缓存、熔断与有界重试。
type CredentialGateway struct {
	strategy domainService.UpstreamStrategy
	cache    domainService.SecretCache
	breaker  domainService.CircuitBreaker
	auditor  domainService.AuditService
	client   *http.Client
	cfg      GatewayConfig
	metrics  Metrics
	log      logger.Logger
}

// NewCredentialGateway creates the credential gateway. The auditor may be
// nil; metrics may be nil.
func NewCredentialGateway(
	strategy domainService.UpstreamStrategy,
	cache domainService.SecretCache,
	breaker domainService.CircuitBreaker,
	auditor domainService.AuditService,
	client *http.Client,
	cfg GatewayConfig,
	metrics Metrics,
	log logger.Logger,
) *CredentialGateway {
	cfg.applyDefaults()
	if client == nil {
		// Per-attempt timeouts come from request contexts.
		client = &http.Client{}
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if log == nil {
		log = logger.NewNoopLogger()
	}
	return &CredentialGateway{
		strategy: strategy,
		cache:    cache,
		breaker:  breaker,
		auditor:  auditor,
		client:   client,
		cfg:      cfg,
		metrics:  metrics,
		log:      log.WithComponent("credential_gateway"),
	}
}

var _ domainService.CredentialService = (*CredentialGateway)(nil)

// GetConsumerSecret returns the signing credential for a consumer, from the
// cache when possible. A nil secret with nil error means the consumer does
// not exist. When the circuit is open and the stale tier also misses, the
// circuit-open error is returned so callers can tell "retry later" from
// "no such consumer".
func (g *CredentialGateway) GetConsumerSecret(ctx context.Context, consumerID string) (*models.ConsumerSecret, error) {
	if consumerID == "" {
		return nil, errors.ErrInvalidRequest("consumer id is required")
	}

	// 1. Primary cache tier.
	if secret, ok := g.cache.Get(ctx, consumerID); ok {
		g.metrics.RecordCacheRead(true)
		return secret, nil
	}
	g.metrics.RecordCacheRead(false)

	// 2. Upstream fetch under the breaker, with bounded retries inside so
	// one retried call burns at most one breaker outcome.
	result, err := g.breaker.Do(ctx, constants.OperationGetConsumerSecret, func(ctx context.Context) (interface{}, error) {
		var fetched *models.ConsumerSecret
		retryErr := retry.Do(ctx, g.cfg.LookupRetry, func() error {
			secret, fetchErr := g.fetchSecret(ctx, consumerID)
			if fetchErr != nil {
				if errors.IsInfrastructure(fetchErr) {
					return fetchErr
				}
				return retry.Permanent(fetchErr)
			}
			fetched = secret
			return nil
		})
		if retryErr != nil {
			return nil, retryErr
		}
		return fetched, nil
	})

	if err != nil {
		switch {
		case errors.IsCircuitOpen(err):
			// 3. Open circuit: serve from the stale tier when we can.
			if stale, ok := g.cache.GetStale(ctx, consumerID); ok {
				g.metrics.RecordStaleFallback()
				g.log.Warn(ctx, "circuit open, serving stale cached credential",
					logger.String("consumer_id", consumerID))
				return stale, nil
			}
			return nil, err
		case errors.IsNotFound(err):
			return nil, nil
		default:
			return nil, err
		}
	}

	secret, _ := result.(*models.ConsumerSecret)
	return secret, nil
}

// fetchSecret performs one upstream credential lookup attempt. The timeout
// context detaches from caller cancellation: a fetch that can still populate
// the cache is allowed to finish even when the caller has gone away.
func (g *CredentialGateway) fetchSecret(ctx context.Context, consumerID string) (*models.ConsumerSecret, error) {
	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.cfg.LookupTimeout)
	defer cancel()

	start := time.Now()
	operation := constants.OperationGetConsumerSecret

	if err := g.strategy.EnsureReady(opCtx); err != nil {
		g.observe(operation, resultError, start)
		return nil, err
	}

	upstreamID, ok := g.strategy.ResolveConsumerID(opCtx, consumerID)
	if !ok {
		g.observe(operation, resultNotFound, start)
		return nil, errors.ErrConsumerNotFound(consumerID)
	}

	body, status, err := g.doRequest(opCtx, http.MethodGet, g.strategy.ConsumerURL(upstreamID), nil, operation)
	if err != nil {
		g.observe(operation, resultError, start)
		return nil, err
	}

	switch {
	case status == http.StatusNotFound:
		g.observe(operation, resultNotFound, start)
		return nil, errors.ErrConsumerNotFound(consumerID)
	case status < 200 || status >= 300:
		g.observe(operation, resultError, start)
		return nil, errors.ErrUpstreamStatus(operation, status)
	}

	secret, err := decodeCredentialList(operation, body, consumerID)
	if err != nil {
		if errors.IsNotFound(err) {
			g.observe(operation, resultNotFound, start)
		} else {
			g.observe(operation, resultError, start)
		}
		return nil, err
	}
	g.observe(operation, resultSuccess, start)

	return g.guardAndCache(opCtx, consumerID, secret, operation)
}

// CreateConsumerSecret provisions a fresh signing credential. Key collisions
// retry with freshly generated material up to the attempt cap; every other
// failure stops the loop immediately. A nil secret with nil error means the
// consumer does not exist upstream.
func (g *CredentialGateway) CreateConsumerSecret(ctx context.Context, consumerID string) (*models.ConsumerSecret, error) {
	if consumerID == "" {
		return nil, errors.ErrInvalidRequest("consumer id is required")
	}

	result, err := g.breaker.Do(ctx, constants.OperationCreateConsumerSecret, func(ctx context.Context) (interface{}, error) {
		return g.provisionSecret(ctx, consumerID)
	})

	if err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	secret, _ := result.(*models.ConsumerSecret)
	return secret, nil
}

func (g *CredentialGateway) provisionSecret(ctx context.Context, consumerID string) (*models.ConsumerSecret, error) {
	operation := constants.OperationCreateConsumerSecret

	readyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.cfg.LookupTimeout)
	defer cancel()

	if err := g.strategy.EnsureReady(readyCtx); err != nil {
		return nil, err
	}
	upstreamID, ok := g.strategy.ResolveConsumerID(readyCtx, consumerID)
	if !ok {
		return nil, errors.ErrConsumerNotFound(consumerID)
	}

	for attempt := 1; attempt <= g.cfg.ProvisionAttempts; attempt++ {
		keyID := uuid.New().String()
		secretValue, err := randomSecret()
		if err != nil {
			return nil, errors.ErrInternal("failed to generate credential material", err)
		}

		payload, err := json.Marshal(map[string]string{"key": keyID, "secret": secretValue})
		if err != nil {
			return nil, errors.ErrInternal("failed to encode credential payload", err)
		}

		start := time.Now()
		attemptCtx, cancelAttempt := context.WithTimeout(context.WithoutCancel(ctx), g.cfg.ProvisionTimeout)
		body, status, err := g.doRequest(attemptCtx, http.MethodPost, g.strategy.ConsumerURL(upstreamID), payload, operation)
		cancelAttempt()
		if err != nil {
			g.observe(operation, resultError, start)
			return nil, err
		}

		switch {
		case status == http.StatusCreated || status == http.StatusOK:
			g.observe(operation, resultSuccess, start)
			created, decodeErr := decodeCredential(operation, body)
			if decodeErr != nil {
				return nil, decodeErr
			}
			g.log.Info(ctx, "provisioned consumer credential",
				logger.String("consumer_id", consumerID),
				logger.String("key_id", created.KeyID),
				logger.Int("attempt", attempt))
			g.recordAudit(ctx, models.NewAuditEvent(constants.AuditEventSecretProvisioned, "signing credential provisioned").
				WithConsumer(consumerID).
				WithOperation(operation).
				WithMetadata("key_id", created.KeyID))
			return g.guardAndCache(ctx, consumerID, created, operation)

		case status == http.StatusNotFound:
			g.observe(operation, resultNotFound, start)
			g.log.Warn(ctx, "cannot provision credential, consumer absent upstream",
				logger.String("consumer_id", consumerID))
			return nil, errors.ErrConsumerNotFound(consumerID)

		case status == http.StatusConflict:
			g.observe(operation, resultConflict, start)
			g.log.Warn(ctx, "credential key collision, retrying with fresh material",
				logger.String("consumer_id", consumerID),
				logger.String("key_id", keyID),
				logger.Int("attempt", attempt))
			continue

		default:
			g.observe(operation, resultError, start)
			return nil, errors.ErrUpstreamStatus(operation, status)
		}
	}

	return nil, errors.ErrProvisioningExhausted(g.cfg.ProvisionAttempts)
}

// HealthCheck probes the upstream admin API. Never returns an error: probe
// failures become a structured unhealthy report, and an open circuit reads
// as unhealthy without touching the network.
func (g *CredentialGateway) HealthCheck(ctx context.Context) *models.UpstreamHealth {
	start := time.Now()

	_, err := g.breaker.Do(ctx, constants.OperationHealthCheck, func(ctx context.Context) (interface{}, error) {
		return nil, retry.Do(ctx, g.cfg.HealthRetry, func() error {
			probeErr := g.probeUpstream(ctx)
			if probeErr != nil && !errors.IsInfrastructure(probeErr) {
				return retry.Permanent(probeErr)
			}
			return probeErr
		})
	})

	elapsed := time.Since(start)
	if err != nil {
		reason := errorText(err)
		if errors.IsCircuitOpen(err) {
			reason = "circuit breaker is open"
		}
		return &models.UpstreamHealth{Healthy: false, ResponseTime: elapsed, Error: reason}
	}
	return &models.UpstreamHealth{Healthy: true, ResponseTime: elapsed}
}

func (g *CredentialGateway) probeUpstream(ctx context.Context) error {
	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.cfg.LookupTimeout)
	defer cancel()

	start := time.Now()
	operation := constants.OperationHealthCheck

	if err := g.strategy.EnsureReady(opCtx); err != nil {
		g.observe(operation, resultError, start)
		return err
	}

	_, status, err := g.doRequest(opCtx, http.MethodGet, g.strategy.HealthURL(), nil, operation)
	if err != nil {
		g.observe(operation, resultError, start)
		return err
	}

	switch {
	case status >= 200 && status < 300:
		g.observe(operation, resultSuccess, start)
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden || status >= 500:
		g.observe(operation, resultError, start)
		return errors.ErrUpstreamStatus(operation, status)
	default:
		// Other 4xx means the upstream answered; unhealthy but alive, so
		// the breaker must not count it.
		g.observe(operation, resultError, start)
		return errors.Newf(errors.CodeUpstreamFailure, http.StatusBadGateway, errors.KindUnknown,
			"upstream health endpoint returned status %d", status)
	}
}

// ClearCache evicts one consumer's cached credential, or everything when
// consumerID is empty.
func (g *CredentialGateway) ClearCache(ctx context.Context, consumerID string) error {
	if consumerID == "" {
		if err := g.cache.Clear(ctx); err != nil {
			return err
		}
		g.log.Info(ctx, "credential cache cleared")
		return nil
	}
	if err := g.cache.Delete(ctx, consumerID); err != nil {
		return err
	}
	g.log.Info(ctx, "cached credential evicted", logger.String("consumer_id", consumerID))
	return nil
}

// CacheStats reports secret cache effectiveness.
func (g *CredentialGateway) CacheStats(ctx context.Context) models.CacheStats {
	return g.cache.Stats(ctx)
}

// BreakerStats reports every operation's circuit state.
func (g *CredentialGateway) BreakerStats(ctx context.Context) (map[string]models.BreakerRecord, error) {
	return g.breaker.Stats(ctx)
}

// guardAndCache verifies the credential belongs to the requested consumer
// before writing it to the cache. Mismatched credentials are still returned
// to the caller but never cached: a poisoned cache entry would keep serving
// the wrong consumer's secret until expiry.
func (g *CredentialGateway) guardAndCache(ctx context.Context, consumerID string, secret *models.ConsumerSecret, operation string) (*models.ConsumerSecret, error) {
	if !secret.BelongsTo(consumerID) {
		returned := ""
		if secret.Consumer != nil {
			returned = secret.Consumer.ID
		}
		g.metrics.RecordConsumerMismatch()
		g.log.Warn(ctx, "upstream returned credential owned by a different consumer, not caching",
			logger.String("requested_consumer", consumerID),
			logger.String("returned_consumer", returned),
			logger.String("operation", operation))
		g.recordAudit(ctx, models.NewAuditEvent(constants.AuditEventConsumerMismatch, "upstream credential ownership mismatch").
			WithConsumer(consumerID).
			WithOperation(operation).
			WithMetadata("returned_consumer", returned))
		return secret, nil
	}

	if err := g.cache.Set(ctx, consumerID, secret); err != nil {
		g.log.Warn(ctx, "failed to cache credential",
			logger.String("consumer_id", consumerID),
			logger.Err(err))
	}
	return secret, nil
}

// doRequest performs one admin API round trip and returns the body and
// status code. Transport failures come back classified as infrastructure.
func (g *CredentialGateway) doRequest(ctx context.Context, method, url string, payload []byte, operation string) ([]byte, int, error) {
	headers, err := g.strategy.AuthHeaders(ctx)
	if err != nil {
		return nil, 0, err
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, 0, errors.ErrUpstreamTransport(operation, err)
	}
	for name, values := range headers {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, 0, errors.ErrUpstreamTransport(operation, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, 0, errors.ErrUpstreamTransport(operation, err)
	}
	return data, resp.StatusCode, nil
}

func (g *CredentialGateway) observe(operation, result string, start time.Time) {
	g.metrics.RecordUpstreamRequest(operation, result, time.Since(start))
}

func (g *CredentialGateway) recordAudit(ctx context.Context, event *models.AuditEvent) {
	if g.auditor == nil {
		return
	}
	if err := g.auditor.LogEvent(ctx, event); err != nil {
		g.log.Warn(ctx, "audit event dropped",
			logger.String("event_type", string(event.EventType)),
			logger.Err(err))
	}
}

// credentialList is the upstream's credential collection shape.
type credentialList struct {
	Data []*models.ConsumerSecret `json:"data"`
}

// decodeCredentialList extracts the first credential from a collection
// response. An empty collection means no credential is provisioned yet,
// which reads as not found.
func decodeCredentialList(operation string, body []byte, consumerID string) (*models.ConsumerSecret, error) {
	var list credentialList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, errors.Wrap(err, errors.CodeUpstreamFailure, http.StatusBadGateway, errors.KindInfrastructure,
			fmt.Sprintf("undecodable upstream credential response: %s", operation))
	}
	if len(list.Data) == 0 {
		return nil, errors.ErrConsumerNotFound(consumerID)
	}
	secret := list.Data[0]
	if !secret.HasMaterial() {
		return nil, errors.Newf(errors.CodeUpstreamFailure, http.StatusBadGateway, errors.KindInfrastructure,
			"upstream credential is missing signing material: %s", operation)
	}
	return secret, nil
}

// decodeCredential extracts a single credential object, the shape of a
// provisioning response.
func decodeCredential(operation string, body []byte) (*models.ConsumerSecret, error) {
	var secret models.ConsumerSecret
	if err := json.Unmarshal(body, &secret); err != nil {
		return nil, errors.Wrap(err, errors.CodeUpstreamFailure, http.StatusBadGateway, errors.KindInfrastructure,
			fmt.Sprintf("undecodable upstream credential response: %s", operation))
	}
	if !secret.HasMaterial() {
		return nil, errors.Newf(errors.CodeUpstreamFailure, http.StatusBadGateway, errors.KindInfrastructure,
			"upstream credential is missing signing material: %s", operation)
	}
	return &secret, nil
}

// randomSecret generates 32 bytes of hex-encoded signing material.
func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// errorText returns the caller-safe description of an error.
func errorText(err error) string {
	if appErr, ok := errors.AsAppError(err); ok {
		return appErr.Message
	}
	return err.Error()
}
