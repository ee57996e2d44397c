package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/turtacn/gts/internal/application/dto"
	"github.com/turtacn/gts/pkg/constants"
	"github.com/turtacn/gts/pkg/errors"
	"github.com/turtacn/gts/pkg/logger"
)

// replayKeyPrefix namespaces dedup markers in the shared Redis database.
const replayKeyPrefix = "idem:provision:"

// ReplayGuardMiddleware rejects duplicate credential provisioning requests.
// Clients opt in per request with an Idempotency-Key header; repeating a key
// within the TTL yields 409 instead of a second credential. Redis failures
// fail open.
func ReplayGuardMiddleware(client redis.UniversalClient, ttl time.Duration, log logger.Logger) gin.HandlerFunc {
	log = log.WithComponent("replay_guard")

	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(constants.HeaderIdempotencyKey))
		if key == "" {
			c.Next()
			return
		}

		// SETNX is atomic, so two racing submissions settle on one winner.
		marker := replayKeyPrefix + c.Param("id") + ":" + key
		isNew, err := client.SetNX(c.Request.Context(), marker, 1, ttl).Result()
		if err != nil {
			log.Error(c.Request.Context(), "replay check failed, allowing request", err,
				logger.String("consumer_id", c.Param("id")))
			c.Next()
			return
		}

		if !isNew {
			log.Warn(c.Request.Context(), "duplicate provisioning request rejected",
				logger.String("consumer_id", c.Param("id")),
				logger.String("idempotency_key", key))
			dto.SendError(c, errors.Newf(errors.CodeConflict, http.StatusConflict, errors.KindConflict,
				"duplicate request: idempotency key %q was already used", key))
			c.Abort()
			return
		}

		c.Next()
	}
}
