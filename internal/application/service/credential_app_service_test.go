package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/gts/internal/config"
	"github.com/turtacn/gts/internal/domain/models"
	domainService "github.com/turtacn/gts/internal/domain/service"
	"github.com/turtacn/gts/internal/infrastructure/cache"
	"github.com/turtacn/gts/internal/infrastructure/resilience"
	"github.com/turtacn/gts/internal/infrastructure/upstream"
	"github.com/turtacn/gts/pkg/constants"
	"github.com/turtacn/gts/pkg/errors"
	"github.com/turtacn/gts/pkg/retry"
)

const testAdminToken = "test-admin-token"

// fakeUpstream simulates the direct-mode admin API of the gateway: consumer
// credential collections under /consumers/{id}/jwt and a /status probe.
type fakeUpstream struct {
	srv *httptest.Server

	mu           sync.Mutex
	known        map[string]bool
	secrets      map[string]*models.ConsumerSecret
	getStatus    int
	failGets     int
	failCode     int
	postStatuses []int
	healthStatus int
	hang         time.Duration
	lastPosted   map[string]string

	getCalls    atomic.Int64
	postCalls   atomic.Int64
	healthCalls atomic.Int64
}

func newFakeUpstream(t *testing.T) *fakeUpstream {
	t.Helper()

	u := &fakeUpstream{
		known:   make(map[string]bool),
		secrets: make(map[string]*models.ConsumerSecret),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", u.handleStatus)
	mux.HandleFunc("GET /consumers/{id}/jwt", u.handleGet)
	mux.HandleFunc("POST /consumers/{id}/jwt", u.handlePost)

	u.srv = httptest.NewServer(mux)
	t.Cleanup(u.srv.Close)
	return u
}

func (u *fakeUpstream) addConsumer(id string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.known[id] = true
}

func (u *fakeUpstream) setSecret(id string, secret *models.ConsumerSecret) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.known[id] = true
	u.secrets[id] = secret
}

func (u *fakeUpstream) forceGetStatus(code int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.getStatus = code
}

func (u *fakeUpstream) failNextGets(n, code int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.failGets = n
	u.failCode = code
}

func (u *fakeUpstream) queuePostStatuses(codes ...int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.postStatuses = append(u.postStatuses, codes...)
}

func (u *fakeUpstream) forceHealthStatus(code int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.healthStatus = code
}

func (u *fakeUpstream) setHang(d time.Duration) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.hang = d
}

func (u *fakeUpstream) maybeHang(r *http.Request) {
	u.mu.Lock()
	d := u.hang
	u.mu.Unlock()
	if d <= 0 {
		return
	}
	select {
	case <-r.Context().Done():
	case <-time.After(d):
	}
}

func (u *fakeUpstream) authorized(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get(constants.DefaultAdminTokenHeader) != testAdminToken {
		w.WriteHeader(http.StatusUnauthorized)
		return false
	}
	return true
}

func (u *fakeUpstream) handleStatus(w http.ResponseWriter, r *http.Request) {
	u.healthCalls.Add(1)
	u.maybeHang(r)
	if !u.authorized(w, r) {
		return
	}

	u.mu.Lock()
	forced := u.healthStatus
	u.mu.Unlock()

	if forced != 0 {
		w.WriteHeader(forced)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (u *fakeUpstream) handleGet(w http.ResponseWriter, r *http.Request) {
	u.getCalls.Add(1)
	u.maybeHang(r)
	if !u.authorized(w, r) {
		return
	}

	u.mu.Lock()
	forced := u.getStatus
	if forced == 0 && u.failGets > 0 {
		u.failGets--
		forced = u.failCode
	}
	known := u.known[r.PathValue("id")]
	secret := u.secrets[r.PathValue("id")]
	u.mu.Unlock()

	switch {
	case forced != 0:
		w.WriteHeader(forced)
	case !known:
		w.WriteHeader(http.StatusNotFound)
	case secret == nil:
		writeJSON(w, http.StatusOK, map[string]interface{}{"data": []interface{}{}})
	default:
		writeJSON(w, http.StatusOK, map[string]interface{}{"data": []*models.ConsumerSecret{secret}})
	}
}

func (u *fakeUpstream) handlePost(w http.ResponseWriter, r *http.Request) {
	u.postCalls.Add(1)
	u.maybeHang(r)
	if !u.authorized(w, r) {
		return
	}

	var body map[string]string
	_ = json.NewDecoder(r.Body).Decode(&body)

	u.mu.Lock()
	u.lastPosted = body
	var forced int
	if len(u.postStatuses) > 0 {
		forced = u.postStatuses[0]
		u.postStatuses = u.postStatuses[1:]
	}
	known := u.known[r.PathValue("id")]
	u.mu.Unlock()

	if forced != 0 {
		w.WriteHeader(forced)
		return
	}
	if !known {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	id := r.PathValue("id")
	created := &models.ConsumerSecret{
		KeyID:    body["key"],
		Secret:   body["secret"],
		Consumer: &models.ConsumerRef{ID: id},
	}
	u.setSecret(id, created)
	writeJSON(w, http.StatusCreated, created)
}

func (u *fakeUpstream) posted() map[string]string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.lastPosted
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// captureAudit records audit events for assertions.
type captureAudit struct {
	mu     sync.Mutex
	events []*models.AuditEvent
}

func (c *captureAudit) LogEvent(_ context.Context, event *models.AuditEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *captureAudit) byType(eventType constants.AuditEventType) []*models.AuditEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*models.AuditEvent
	for _, e := range c.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

func fastRetry(attempts int) retry.Config {
	return retry.Config{
		MaxAttempts: attempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	}
}

type gatewayFixture struct {
	upstream *fakeUpstream
	gateway  *CredentialGateway
	cache    domainService.SecretCache
	audit    *captureAudit
}

type fixtureOptions struct {
	breakerThreshold int
	gatewayCfg       GatewayConfig
	cacheCfg         cache.Config
}

func newGatewayFixture(t *testing.T, u *fakeUpstream, opts fixtureOptions) *gatewayFixture {
	t.Helper()

	strategy, err := upstream.NewStrategy(config.UpstreamConfig{
		Mode:       string(constants.UpstreamModeDirect),
		AdminBase:  u.srv.URL,
		AdminToken: testAdminToken,
	}, u.srv.Client(), nil)
	require.NoError(t, err)

	cacheCfg := opts.cacheCfg
	if cacheCfg.PrimaryTTL == 0 {
		cacheCfg = cache.Config{PrimaryTTL: time.Minute, StaleTTL: 10 * time.Minute}
	}
	secretCache := cache.NewMemoryCache(cacheCfg, nil)

	threshold := opts.breakerThreshold
	if threshold == 0 {
		threshold = 3
	}
	breaker := resilience.NewBreaker(resilience.NewMemoryStateStore(), resilience.BreakerConfig{
		ErrorThreshold: threshold,
		ResetTimeout:   time.Minute,
	}, nil, nil)

	cfg := opts.gatewayCfg
	if cfg.LookupTimeout == 0 {
		cfg.LookupTimeout = 2 * time.Second
	}
	if cfg.ProvisionTimeout == 0 {
		cfg.ProvisionTimeout = 2 * time.Second
	}
	if cfg.LookupRetry.MaxAttempts == 0 {
		cfg.LookupRetry = fastRetry(1)
	}
	if cfg.HealthRetry.MaxAttempts == 0 {
		cfg.HealthRetry = fastRetry(1)
	}

	auditor := &captureAudit{}
	gateway := NewCredentialGateway(strategy, secretCache, breaker, auditor, u.srv.Client(), cfg, nil, nil)

	return &gatewayFixture{
		upstream: u,
		gateway:  gateway,
		cache:    secretCache,
		audit:    auditor,
	}
}

func TestGatewayFetchesAndCachesSecret(t *testing.T) {
	u := newFakeUpstream(t)
	u.setSecret("alice", &models.ConsumerSecret{
		KeyID:    "k1",
		Secret:   "s1",
		Consumer: &models.ConsumerRef{ID: "alice"},
	})
	f := newGatewayFixture(t, u, fixtureOptions{})
	ctx := context.Background()

	secret, err := f.gateway.GetConsumerSecret(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, secret)
	assert.Equal(t, "k1", secret.KeyID)
	assert.Equal(t, "s1", secret.Secret)
	assert.EqualValues(t, 1, u.getCalls.Load())

	// Second read is served entirely from the cache.
	secret, err = f.gateway.GetConsumerSecret(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, secret)
	assert.EqualValues(t, 1, u.getCalls.Load())
}

func TestGatewayUnknownConsumerIsNilNotError(t *testing.T) {
	u := newFakeUpstream(t)
	f := newGatewayFixture(t, u, fixtureOptions{
		gatewayCfg: GatewayConfig{LookupRetry: fastRetry(3)},
	})

	secret, err := f.gateway.GetConsumerSecret(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, secret)
	assert.EqualValues(t, 1, u.getCalls.Load(), "definitive 404 must not burn retries")
}

func TestGatewayEmptyCredentialListIsNil(t *testing.T) {
	u := newFakeUpstream(t)
	u.addConsumer("alice")
	f := newGatewayFixture(t, u, fixtureOptions{})

	secret, err := f.gateway.GetConsumerSecret(context.Background(), "alice")
	require.NoError(t, err)
	assert.Nil(t, secret, "consumer without credentials reads as absent")
}

func TestGatewayRejectsEmptyConsumerID(t *testing.T) {
	u := newFakeUpstream(t)
	f := newGatewayFixture(t, u, fixtureOptions{})

	_, err := f.gateway.GetConsumerSecret(context.Background(), "")
	require.Error(t, err)
	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeInvalidRequest, appErr.Code)

	_, err = f.gateway.CreateConsumerSecret(context.Background(), "")
	require.Error(t, err)
}

func TestGatewayMismatchedCredentialReturnedButNotCached(t *testing.T) {
	u := newFakeUpstream(t)
	u.setSecret("alice", &models.ConsumerSecret{
		KeyID:    "k9",
		Secret:   "s9",
		Consumer: &models.ConsumerRef{ID: "mallory"},
	})
	f := newGatewayFixture(t, u, fixtureOptions{})
	ctx := context.Background()

	secret, err := f.gateway.GetConsumerSecret(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, secret, "mismatch fails open, the credential is still returned")
	assert.Equal(t, "k9", secret.KeyID)

	// The poisoned entry must not have been cached: a second read goes
	// upstream again.
	_, err = f.gateway.GetConsumerSecret(ctx, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 2, u.getCalls.Load())

	events := f.audit.byType(constants.AuditEventConsumerMismatch)
	require.Len(t, events, 2)
	assert.Equal(t, "alice", events[0].ConsumerID)
	assert.Equal(t, "mallory", events[0].Metadata["returned_consumer"])
}

func TestGatewayRetriesTransientFailures(t *testing.T) {
	u := newFakeUpstream(t)
	u.setSecret("alice", &models.ConsumerSecret{
		KeyID:    "k1",
		Secret:   "s1",
		Consumer: &models.ConsumerRef{ID: "alice"},
	})
	u.failNextGets(2, http.StatusServiceUnavailable)
	f := newGatewayFixture(t, u, fixtureOptions{
		gatewayCfg: GatewayConfig{LookupRetry: fastRetry(3)},
	})

	secret, err := f.gateway.GetConsumerSecret(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, secret)
	assert.Equal(t, "k1", secret.KeyID)
	assert.EqualValues(t, 3, u.getCalls.Load(), "two transient failures, then success")
}

func TestGatewayCircuitOpensAfterConsecutiveFailures(t *testing.T) {
	u := newFakeUpstream(t)
	u.setSecret("alice", &models.ConsumerSecret{
		KeyID:    "k1",
		Secret:   "s1",
		Consumer: &models.ConsumerRef{ID: "alice"},
	})
	u.forceGetStatus(http.StatusInternalServerError)
	f := newGatewayFixture(t, u, fixtureOptions{breakerThreshold: 2})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.gateway.GetConsumerSecret(ctx, "alice")
		require.Error(t, err)
		assert.True(t, errors.IsInfrastructure(err))
	}
	assert.EqualValues(t, 2, u.getCalls.Load())

	// Threshold reached: the next call is rejected without any network
	// round trip, and with nothing cached the rejection surfaces.
	_, err := f.gateway.GetConsumerSecret(ctx, "alice")
	require.Error(t, err)
	assert.True(t, errors.IsCircuitOpen(err))
	assert.EqualValues(t, 2, u.getCalls.Load())

	stats, err := f.gateway.BreakerStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.BreakerOpen, stats[constants.OperationGetConsumerSecret].State)
}

func TestGatewayServesStaleWhileCircuitOpen(t *testing.T) {
	u := newFakeUpstream(t)
	u.setSecret("alice", &models.ConsumerSecret{
		KeyID:    "k1",
		Secret:   "s1",
		Consumer: &models.ConsumerRef{ID: "alice"},
	})
	f := newGatewayFixture(t, u, fixtureOptions{
		breakerThreshold: 2,
		cacheCfg:         cache.Config{PrimaryTTL: 30 * time.Millisecond, StaleTTL: 10 * time.Second},
	})
	ctx := context.Background()

	// Populate both tiers, then let the primary tier expire while the
	// upstream goes down.
	_, err := f.gateway.GetConsumerSecret(ctx, "alice")
	require.NoError(t, err)
	u.forceGetStatus(http.StatusInternalServerError)
	time.Sleep(60 * time.Millisecond)

	for i := 0; i < 2; i++ {
		_, err = f.gateway.GetConsumerSecret(ctx, "alice")
		require.Error(t, err)
	}

	// Circuit open now, but the stale tier still holds the credential.
	secret, err := f.gateway.GetConsumerSecret(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, secret)
	assert.Equal(t, "k1", secret.KeyID)
	assert.EqualValues(t, 3, u.getCalls.Load(), "stale reads stay off the network")
}

func TestGatewayTimeoutsTripTheBreaker(t *testing.T) {
	u := newFakeUpstream(t)
	u.setSecret("alice", &models.ConsumerSecret{
		KeyID:    "k1",
		Secret:   "s1",
		Consumer: &models.ConsumerRef{ID: "alice"},
	})
	u.setHang(500 * time.Millisecond)
	f := newGatewayFixture(t, u, fixtureOptions{
		breakerThreshold: 5,
		gatewayCfg:       GatewayConfig{LookupTimeout: 40 * time.Millisecond},
	})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := f.gateway.GetConsumerSecret(ctx, "alice")
		require.Error(t, err)
		assert.True(t, errors.IsInfrastructure(err), "timeouts classify as infrastructure")
	}
	assert.EqualValues(t, 5, u.getCalls.Load())

	_, err := f.gateway.GetConsumerSecret(ctx, "alice")
	require.Error(t, err)
	assert.True(t, errors.IsCircuitOpen(err))
	assert.EqualValues(t, 5, u.getCalls.Load(), "the sixth call never reaches the upstream")
}

func TestGatewayProvisionsCredential(t *testing.T) {
	u := newFakeUpstream(t)
	u.addConsumer("alice")
	f := newGatewayFixture(t, u, fixtureOptions{})
	ctx := context.Background()

	secret, err := f.gateway.CreateConsumerSecret(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, secret)

	posted := u.posted()
	assert.Equal(t, posted["key"], secret.KeyID)
	assert.Equal(t, posted["secret"], secret.Secret)
	assert.Len(t, posted["secret"], 64, "32 random bytes, hex encoded")

	// The fresh credential lands in the cache.
	cached, err := f.gateway.GetConsumerSecret(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, secret.KeyID, cached.KeyID)
	assert.EqualValues(t, 0, u.getCalls.Load())

	events := f.audit.byType(constants.AuditEventSecretProvisioned)
	require.Len(t, events, 1)
	assert.Equal(t, "alice", events[0].ConsumerID)
	assert.Equal(t, secret.KeyID, events[0].Metadata["key_id"])
}

func TestGatewayProvisionRetriesKeyCollisions(t *testing.T) {
	u := newFakeUpstream(t)
	u.addConsumer("alice")
	u.queuePostStatuses(http.StatusConflict, http.StatusConflict)
	f := newGatewayFixture(t, u, fixtureOptions{})

	secret, err := f.gateway.CreateConsumerSecret(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, secret)
	assert.EqualValues(t, 3, u.postCalls.Load(), "two collisions, then success")
}

func TestGatewayProvisionExhaustsCollisionBudget(t *testing.T) {
	u := newFakeUpstream(t)
	u.addConsumer("alice")
	u.queuePostStatuses(http.StatusConflict, http.StatusConflict, http.StatusConflict)
	f := newGatewayFixture(t, u, fixtureOptions{
		gatewayCfg: GatewayConfig{ProvisionAttempts: 3},
	})

	secret, err := f.gateway.CreateConsumerSecret(context.Background(), "alice")
	require.Error(t, err)
	assert.Nil(t, secret)
	assert.True(t, errors.IsInfrastructure(err))
	assert.Contains(t, err.Error(), "3 key collisions")
	assert.EqualValues(t, 3, u.postCalls.Load())
}

func TestGatewayProvisionStopsOnServerError(t *testing.T) {
	u := newFakeUpstream(t)
	u.addConsumer("alice")
	u.queuePostStatuses(http.StatusInternalServerError)
	f := newGatewayFixture(t, u, fixtureOptions{})

	_, err := f.gateway.CreateConsumerSecret(context.Background(), "alice")
	require.Error(t, err)
	assert.True(t, errors.IsInfrastructure(err))
	assert.EqualValues(t, 1, u.postCalls.Load(), "only collisions are retried")
}

func TestGatewayProvisionUnknownConsumerIsNil(t *testing.T) {
	u := newFakeUpstream(t)
	f := newGatewayFixture(t, u, fixtureOptions{})

	secret, err := f.gateway.CreateConsumerSecret(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, secret)
}

func TestGatewayHealthCheckHealthy(t *testing.T) {
	u := newFakeUpstream(t)
	f := newGatewayFixture(t, u, fixtureOptions{})

	health := f.gateway.HealthCheck(context.Background())
	require.NotNil(t, health)
	assert.True(t, health.Healthy)
	assert.Empty(t, health.Error)
	assert.Greater(t, health.ResponseTime, time.Duration(0))
}

func TestGatewayHealthCheckRetriesProbeFailures(t *testing.T) {
	u := newFakeUpstream(t)
	u.forceHealthStatus(http.StatusInternalServerError)
	f := newGatewayFixture(t, u, fixtureOptions{
		gatewayCfg: GatewayConfig{HealthRetry: fastRetry(2)},
	})

	health := f.gateway.HealthCheck(context.Background())
	assert.False(t, health.Healthy)
	assert.Contains(t, health.Error, "500")
	assert.EqualValues(t, 2, u.healthCalls.Load())
}

func TestGatewayHealthCheck4xxDoesNotTripBreaker(t *testing.T) {
	u := newFakeUpstream(t)
	u.forceHealthStatus(http.StatusNotFound)
	f := newGatewayFixture(t, u, fixtureOptions{breakerThreshold: 1})
	ctx := context.Background()

	health := f.gateway.HealthCheck(ctx)
	assert.False(t, health.Healthy, "a 404 probe is unhealthy")

	// The upstream answered, so the circuit stays closed and the next
	// probe still reaches the network.
	u.forceHealthStatus(0)
	health = f.gateway.HealthCheck(ctx)
	assert.True(t, health.Healthy)
	assert.EqualValues(t, 2, u.healthCalls.Load())
}

func TestGatewayHealthCheckReportsOpenCircuit(t *testing.T) {
	u := newFakeUpstream(t)
	u.forceHealthStatus(http.StatusInternalServerError)
	f := newGatewayFixture(t, u, fixtureOptions{breakerThreshold: 1})
	ctx := context.Background()

	health := f.gateway.HealthCheck(ctx)
	assert.False(t, health.Healthy)
	calls := u.healthCalls.Load()

	health = f.gateway.HealthCheck(ctx)
	assert.False(t, health.Healthy)
	assert.Equal(t, "circuit breaker is open", health.Error)
	assert.EqualValues(t, calls, u.healthCalls.Load(), "open circuit probes stay off the network")
}

func TestGatewayAdminAuthRejectionIsInfrastructure(t *testing.T) {
	u := newFakeUpstream(t)
	u.setSecret("alice", &models.ConsumerSecret{
		KeyID:    "k1",
		Secret:   "s1",
		Consumer: &models.ConsumerRef{ID: "alice"},
	})
	u.forceGetStatus(http.StatusUnauthorized)
	f := newGatewayFixture(t, u, fixtureOptions{})

	_, err := f.gateway.GetConsumerSecret(context.Background(), "alice")
	require.Error(t, err)
	assert.True(t, errors.IsInfrastructure(err),
		"a 401 from the admin API means broken service credentials, not an absent consumer")
}

func TestGatewayClearCache(t *testing.T) {
	u := newFakeUpstream(t)
	u.setSecret("alice", &models.ConsumerSecret{
		KeyID:    "k1",
		Secret:   "s1",
		Consumer: &models.ConsumerRef{ID: "alice"},
	})
	u.setSecret("bob", &models.ConsumerSecret{
		KeyID:    "k2",
		Secret:   "s2",
		Consumer: &models.ConsumerRef{ID: "bob"},
	})
	f := newGatewayFixture(t, u, fixtureOptions{})
	ctx := context.Background()

	_, err := f.gateway.GetConsumerSecret(ctx, "alice")
	require.NoError(t, err)
	_, err = f.gateway.GetConsumerSecret(ctx, "bob")
	require.NoError(t, err)
	require.EqualValues(t, 2, u.getCalls.Load())

	// Targeted eviction refetches only alice.
	require.NoError(t, f.gateway.ClearCache(ctx, "alice"))
	_, err = f.gateway.GetConsumerSecret(ctx, "alice")
	require.NoError(t, err)
	_, err = f.gateway.GetConsumerSecret(ctx, "bob")
	require.NoError(t, err)
	assert.EqualValues(t, 3, u.getCalls.Load())

	// Full clear refetches both.
	require.NoError(t, f.gateway.ClearCache(ctx, ""))
	_, err = f.gateway.GetConsumerSecret(ctx, "alice")
	require.NoError(t, err)
	_, err = f.gateway.GetConsumerSecret(ctx, "bob")
	require.NoError(t, err)
	assert.EqualValues(t, 5, u.getCalls.Load())
}

func TestGatewayCacheStats(t *testing.T) {
	u := newFakeUpstream(t)
	u.setSecret("alice", &models.ConsumerSecret{
		KeyID:    "k1",
		Secret:   "s1",
		Consumer: &models.ConsumerRef{ID: "alice"},
	})
	f := newGatewayFixture(t, u, fixtureOptions{})
	ctx := context.Background()

	_, err := f.gateway.GetConsumerSecret(ctx, "alice")
	require.NoError(t, err)
	_, err = f.gateway.GetConsumerSecret(ctx, "alice")
	require.NoError(t, err)

	stats := f.gateway.CacheStats(ctx)
	assert.Equal(t, 1, stats.ActiveEntries)
	assert.InDelta(t, 0.5, stats.HitRate, 0.01, "one miss then one hit")
}
