// Package handlers implements the HTTP endpoints and request middleware of
// the GTS token service.
package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/turtacn/gts/internal/application/dto"
	"github.com/turtacn/gts/internal/infrastructure/monitoring"
	"github.com/turtacn/gts/pkg/constants"
	"github.com/turtacn/gts/pkg/errors"
	"github.com/turtacn/gts/pkg/logger"
)

// RequestIDMiddleware assigns every request a correlation id. An inbound
// X-Request-ID is kept, otherwise a fresh one is generated. The id lands in
// the gin context for response envelopes, in the request context for log
// correlation, and on the response header.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(constants.HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		c.Set(string(constants.ContextKeyRequestID), requestID)
		ctx := context.WithValue(c.Request.Context(), constants.ContextKeyRequestID, requestID)
		c.Request = c.Request.WithContext(ctx)
		c.Writer.Header().Set(constants.HeaderRequestID, requestID)

		c.Next()
	}
}

// LoggingMiddleware logs one line per served request.
func LoggingMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		log.Info(c.Request.Context(), "request processed",
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
			logger.Int("status", c.Writer.Status()),
			logger.Int64("latency_ms", latency.Milliseconds()),
			logger.String("client_ip", c.ClientIP()),
		)
	}
}

// RecoveryMiddleware converts handler panics into the generic internal error
// envelope. The panic value stays in server logs only.
func RecoveryMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error(c.Request.Context(), "panic recovered",
					fmt.Errorf("panic: %v", rec),
					logger.String("path", c.Request.URL.Path))
				dto.SendError(c, errors.ErrInternal("internal server error", nil))
				c.Abort()
			}
		}()
		c.Next()
	}
}

// TracingMiddleware opens a server span per request, continuing an inbound
// W3C trace context when one is present.
func TracingMiddleware(tracing *monitoring.TracingManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := otel.GetTextMapPropagator().Extract(
			c.Request.Context(),
			propagation.HeaderCarrier(c.Request.Header),
		)

		ctx, span := tracing.StartSpan(ctx,
			c.Request.Method+" "+c.FullPath(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Request.Method),
				attribute.String("http.target", c.Request.URL.Path),
			),
		)
		defer span.End()

		if traceID := tracing.TraceID(ctx); traceID != "" {
			c.Set(string(constants.ContextKeyTraceID), traceID)
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		span.SetAttributes(attribute.Int("http.status_code", c.Writer.Status()))
		if c.Writer.Status() >= 500 {
			tracing.RecordError(ctx, fmt.Errorf("http status %d", c.Writer.Status()))
		}
	}
}

// MetricsMiddleware records request count and latency per route template.
func MetricsMiddleware(metrics *monitoring.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		// The route template keeps metric cardinality bounded.
		path := c.FullPath()
		if path == "" {
			path = "not_found"
		}
		metrics.RecordHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
