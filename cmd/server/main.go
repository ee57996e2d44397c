package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	appservice "github.com/turtacn/gts/internal/application/service"
	"github.com/turtacn/gts/internal/config"
	"github.com/turtacn/gts/internal/domain/models"
	domainservice "github.com/turtacn/gts/internal/domain/service"
	"github.com/turtacn/gts/internal/infrastructure/audit"
	"github.com/turtacn/gts/internal/infrastructure/cache"
	"github.com/turtacn/gts/internal/infrastructure/crypto"
	"github.com/turtacn/gts/internal/infrastructure/monitoring"
	"github.com/turtacn/gts/internal/infrastructure/persistence/redis"
	"github.com/turtacn/gts/internal/infrastructure/resilience"
	"github.com/turtacn/gts/internal/infrastructure/secrets"
	"github.com/turtacn/gts/internal/infrastructure/upstream"
	gtshttp "github.com/turtacn/gts/internal/interfaces/http"
	"github.com/turtacn/gts/internal/interfaces/http/handlers"
	"github.com/turtacn/gts/pkg/constants"
	"github.com/turtacn/gts/pkg/retry"
)

func main() {
	// Logger for startup
	startupLogger, _ := monitoring.NewZapLogger(config.LogConfig{Level: "info", Format: "json", OutputPath: "stderr"})

	// Load config
	loader := config.NewLoader(startupLogger)
	cfg, err := loader.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	appLogger, err := monitoring.NewZapLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	ctx := context.Background()

	// Config file edits are validated and logged for visibility only, running
	// components keep their startup settings until restart.
	loader.Watch(func(*config.Config) {
		appLogger.Warn(ctx, "Configuration changed on disk, restart to apply")
	})

	// Resolve secret references (env:// and vault://) before anything dials out
	resolver, err := secrets.NewResolver(cfg.Vault, appLogger)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to create secret resolver", err)
	}
	if err := resolver.ResolveUpstreamCredentials(ctx, &cfg.Upstream); err != nil {
		appLogger.Fatal(ctx, "Failed to resolve upstream credentials", err)
	}
	if err := resolver.ResolveRedisPassword(ctx, &cfg.Redis); err != nil {
		appLogger.Fatal(ctx, "Failed to resolve redis password", err)
	}

	// Initialize tracing
	tracing, err := monitoring.NewTracingManager(cfg.Tracing, appLogger)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize tracer", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracing.Shutdown(shutdownCtx)
	}()

	// Initialize Redis when the cache, the breaker store or the replay guard
	// needs it
	var redisConn *redis.Connection
	if cfg.Cache.Backend == "redis" || cfg.Breaker.Store == "redis" || cfg.Idempotency.Enabled {
		redisConn, err = redis.Connect(cfg.Redis, appLogger)
		if err != nil {
			appLogger.Fatal(ctx, "Failed to connect to Redis", err)
		}
		defer redisConn.Close()
	}

	// Initialize infrastructure
	metrics := monitoring.NewMetrics()

	cacheCfg := cache.Config{PrimaryTTL: cfg.Cache.PrimaryTTL, StaleTTL: cfg.Cache.StaleTTL}
	var secretCache domainservice.SecretCache
	if cfg.Cache.Backend == "redis" {
		secretCache, err = cache.NewRedisCache(redisConn.Client(), cacheCfg, appLogger)
		if err != nil {
			appLogger.Fatal(ctx, "Failed to create redis cache", err)
		}
	} else {
		secretCache = cache.NewMemoryCache(cacheCfg, appLogger)
	}

	var breakerStore domainservice.BreakerStateStore
	if cfg.Breaker.Store == "redis" {
		breakerStore, err = resilience.NewRedisStateStore(redisConn.Client())
		if err != nil {
			appLogger.Fatal(ctx, "Failed to create redis breaker store", err)
		}
	} else {
		breakerStore = resilience.NewMemoryStateStore()
	}

	var auditor domainservice.AuditService
	if cfg.Audit.Enabled {
		recorder := audit.NewKafkaRecorder(cfg.Audit, appLogger)
		defer recorder.Close()
		auditor = recorder
	} else {
		auditor = audit.NewNoopRecorder(appLogger)
	}

	breaker := resilience.NewBreaker(breakerStore, resilience.BreakerConfig{
		ErrorThreshold: cfg.Breaker.ErrorThreshold,
		ResetTimeout:   cfg.Breaker.ResetTimeout,
	}, appLogger, func(ctx context.Context, operation string, from, to models.BreakerState) {
		metrics.RecordBreakerTransition(operation, from, to)
		_ = auditor.LogEvent(ctx, models.NewAuditEvent(
			constants.AuditEventBreakerStateChange,
			"circuit breaker state changed",
		).WithOperation(operation).
			WithMetadata("from", string(from)).
			WithMetadata("to", string(to)))
	})

	// Per-attempt deadlines come from request contexts, not the client.
	httpClient := &http.Client{}
	strategy, err := upstream.NewStrategy(cfg.Upstream, httpClient, appLogger)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to create upstream strategy", err)
	}

	// Initialize application services
	gateway := appservice.NewCredentialGateway(
		strategy, secretCache, breaker, auditor, httpClient,
		appservice.GatewayConfig{
			LookupTimeout:    cfg.Upstream.LookupTimeout,
			ProvisionTimeout: cfg.Upstream.ProvisionTimeout,
			LookupRetry: retry.Config{
				MaxAttempts: cfg.Retry.LookupAttempts,
				BaseDelay:   cfg.Retry.BaseDelay,
				MaxDelay:    cfg.Retry.MaxDelay,
			},
			HealthRetry: retry.Config{
				MaxAttempts: cfg.Retry.HealthAttempts,
				BaseDelay:   cfg.Retry.BaseDelay,
				MaxDelay:    cfg.Retry.MaxDelay,
			},
			ProvisionAttempts: constants.ProvisionMaxAttempts,
		},
		metrics, appLogger,
	)

	engine := crypto.NewTokenService(appLogger)
	tokens := appservice.NewTokenAppService(gateway, engine, appservice.TokenIssuerConfig{
		Issuer:   cfg.Token.Issuer,
		Audience: cfg.Token.Audience,
		Lifetime: cfg.Token.Lifetime,
	}, metrics, appLogger)

	// Initialize HTTP handlers and router
	tokenHandler := handlers.NewTokenHandler(tokens)
	credentialHandler := handlers.NewCredentialHandler(gateway)

	extras := map[string]handlers.DependencyCheck{}
	if redisConn != nil {
		extras["redis"] = redisConn.Ping
	}
	healthHandler := handlers.NewHealthHandler(gateway, extras, appLogger)

	var provisionGuard gin.HandlerFunc
	if cfg.Idempotency.Enabled {
		provisionGuard = handlers.ReplayGuardMiddleware(redisConn.Client(), cfg.Idempotency.TTL, appLogger)
	}

	router := gtshttp.NewRouter(&cfg.Server, appLogger,
		tokenHandler, credentialHandler, healthHandler, metrics, tracing, provisionGuard)

	if err := router.Start(); err != nil {
		appLogger.Fatal(ctx, "HTTP server failed", err)
	}
}
