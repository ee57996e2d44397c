// Package http wires the HTTP surface of the GTS token service: the gin
// engine, global middleware, the route table and the server lifecycle.
package http

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/turtacn/gts/internal/application/dto"
	"github.com/turtacn/gts/internal/config"
	"github.com/turtacn/gts/internal/infrastructure/monitoring"
	"github.com/turtacn/gts/internal/interfaces/http/handlers"
	"github.com/turtacn/gts/pkg/constants"
	"github.com/turtacn/gts/pkg/errors"
	"github.com/turtacn/gts/pkg/logger"
)

// Router HTTP 路由器
type Router struct {
	engine            *gin.Engine
	config            *config.ServerConfig
	logger            logger.Logger
	tokenHandler      *handlers.TokenHandler
	credentialHandler *handlers.CredentialHandler
	healthHandler     *handlers.HealthHandler
	metrics           *monitoring.Metrics
	tracing           *monitoring.TracingManager
	provisionGuard    gin.HandlerFunc
	server            *http.Server
}

// NewRouter creates the router with every route registered. metrics, tracing
// and provisionGuard may be nil, the matching middleware is then skipped.
func NewRouter(
	cfg *config.ServerConfig,
	log logger.Logger,
	tokenHandler *handlers.TokenHandler,
	credentialHandler *handlers.CredentialHandler,
	healthHandler *handlers.HealthHandler,
	metrics *monitoring.Metrics,
	tracing *monitoring.TracingManager,
	provisionGuard gin.HandlerFunc,
) *Router {
	gin.SetMode(gin.ReleaseMode)

	r := &Router{
		engine:            gin.New(),
		config:            cfg,
		logger:            log.WithComponent("http_router"),
		tokenHandler:      tokenHandler,
		credentialHandler: credentialHandler,
		healthHandler:     healthHandler,
		metrics:           metrics,
		tracing:           tracing,
		provisionGuard:    provisionGuard,
	}
	r.setupRoutes()
	return r
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	// 全局中间件
	r.engine.Use(handlers.RecoveryMiddleware(r.logger))
	r.engine.Use(handlers.RequestIDMiddleware())
	if r.tracing != nil {
		r.engine.Use(handlers.TracingMiddleware(r.tracing))
	}
	if r.metrics != nil {
		r.engine.Use(handlers.MetricsMiddleware(r.metrics))
	}
	r.engine.Use(handlers.LoggingMiddleware(r.logger))
	r.engine.Use(cors.New(corsConfig(r.config.AllowedOrigins)))

	// 健康检查路由（不需要认证）
	r.engine.GET("/health/live", r.healthHandler.Live)
	r.engine.GET("/health/ready", r.healthHandler.Ready)

	// Prometheus metrics
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Pprof 性能分析（仅在启用时）
	if r.config.EnablePprof {
		pprof.Register(r.engine)
	}

	// API 路由组
	v1 := r.engine.Group("/api/v1")
	{
		tokens := v1.Group("/tokens")
		{
			tokens.POST("", r.tokenHandler.Issue)
			tokens.POST("/validate", r.tokenHandler.Validate)
		}

		consumers := v1.Group("/consumers")
		{
			if r.provisionGuard != nil {
				consumers.POST("/:id/credentials", r.provisionGuard, r.credentialHandler.Provision)
			} else {
				consumers.POST("/:id/credentials", r.credentialHandler.Provision)
			}
		}

		cache := v1.Group("/cache")
		{
			cache.DELETE("", r.credentialHandler.FlushCache)
			cache.DELETE("/:id", r.credentialHandler.EvictCache)
		}
	}

	// 404 处理
	r.engine.NoRoute(func(c *gin.Context) {
		dto.SendError(c, errors.Newf(errors.CodeNotFound, http.StatusNotFound, errors.KindNotFound,
			"no route for %s %s", c.Request.Method, c.Request.URL.Path))
	})
}

// corsConfig builds the CORS policy. Without configured origins everything
// is allowed but credentials stay off, wildcard plus credentials is invalid.
func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", constants.HeaderRequestID, constants.HeaderIdempotencyKey},
		ExposeHeaders: []string{constants.HeaderRequestID},
		MaxAge:        12 * time.Hour,
	}

	for _, origin := range origins {
		if origin == "*" {
			origins = nil
			break
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}

	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

// Start 启动 HTTP 服务器
func (r *Router) Start() error {
	r.server = &http.Server{
		Addr:           r.config.Addr(),
		Handler:        r.engine,
		ReadTimeout:    r.config.ReadTimeout,
		WriteTimeout:   r.config.WriteTimeout,
		IdleTimeout:    r.config.IdleTimeout,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	r.logger.Info(context.Background(), "starting HTTP server",
		logger.String("address", r.config.Addr()))

	// 优雅关闭
	go r.gracefulShutdown()

	if err := r.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

// gracefulShutdown 优雅关闭服务器
func (r *Router) gracefulShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	r.logger.Info(context.Background(), "shutting down HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := r.server.Shutdown(ctx); err != nil {
		r.logger.Error(context.Background(), "server forced to shutdown", err)
	}

	r.logger.Info(context.Background(), "HTTP server stopped")
}

// Stop 停止 HTTP 服务器
func (r *Router) Stop(ctx context.Context) error {
	if r.server == nil {
		return nil
	}

	r.logger.Info(ctx, "stopping HTTP server")
	return r.server.Shutdown(ctx)
}

// Engine exposes the gin engine for tests.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}
