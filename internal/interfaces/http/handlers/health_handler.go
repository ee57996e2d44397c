package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/turtacn/gts/internal/application/dto"
	domainService "github.com/turtacn/gts/internal/domain/service"
	"github.com/turtacn/gts/pkg/logger"
)

// DependencyCheck pings one named readiness dependency, such as Redis.
type DependencyCheck func(ctx context.Context) error

// HealthHandler provides the liveness and readiness endpoints.
type HealthHandler struct {
	credentials domainService.CredentialService
	extras      map[string]DependencyCheck
	log         logger.Logger
}

// NewHealthHandler creates a new HealthHandler. extras holds optional
// dependency checks beyond the upstream, keyed by the name reported in the
// readiness body.
func NewHealthHandler(credentials domainService.CredentialService, extras map[string]DependencyCheck, log logger.Logger) *HealthHandler {
	if log == nil {
		log = logger.NewNoopLogger()
	}
	return &HealthHandler{
		credentials: credentials,
		extras:      extras,
		log:         log.WithComponent("health_handler"),
	}
}

// Live reports process liveness.
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now().UTC(),
	})
}

// Ready reports whether the service can usefully serve traffic. The upstream
// probe, cache statistics, breaker snapshot and extra dependency checks run
// in parallel. An unhealthy upstream degrades readiness to 503 even though
// cached credentials may still carry part of the traffic.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx := c.Request.Context()

	var mu sync.Mutex
	resp := dto.ReadinessResponse{Checks: make(map[string]string)}

	var g errgroup.Group
	g.Go(func() error {
		health := h.credentials.HealthCheck(ctx)
		mu.Lock()
		resp.Upstream = dto.NewUpstreamHealthDTO(health)
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		stats := h.credentials.CacheStats(ctx)
		mu.Lock()
		resp.Cache = stats
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		records, err := h.credentials.BreakerStats(ctx)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			resp.Checks["breaker_store"] = "error: " + err.Error()
			return err
		}
		breakers := make(map[string]dto.BreakerDTO, len(records))
		for op, rec := range records {
			breakers[op] = dto.NewBreakerDTO(rec)
		}
		resp.Breakers = breakers
		resp.Checks["breaker_store"] = "ok"
		return nil
	})
	for name, check := range h.extras {
		g.Go(func() error {
			err := check(ctx)
			status := "ok"
			if err != nil {
				status = "error: " + err.Error()
			}
			mu.Lock()
			resp.Checks[name] = status
			mu.Unlock()
			return err
		})
	}

	depErr := g.Wait()

	httpStatus := http.StatusOK
	resp.Status = "ready"
	if depErr != nil || !resp.Upstream.Healthy {
		resp.Status = "degraded"
		httpStatus = http.StatusServiceUnavailable
		h.log.Warn(ctx, "readiness degraded",
			logger.Bool("upstream_healthy", resp.Upstream.Healthy),
			logger.Err(depErr))
	}

	c.JSON(httpStatus, resp)
}
