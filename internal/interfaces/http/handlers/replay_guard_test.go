package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/gts/internal/domain/models"
	"github.com/turtacn/gts/pkg/constants"
	"github.com/turtacn/gts/pkg/errors"
	"github.com/turtacn/gts/pkg/logger"
)

func newGuardedEngine(t *testing.T) (*gin.Engine, *miniredis.Miniredis) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	creds := &stubCredentialService{
		created: &models.ConsumerSecret{
			KeyID:    "key-1",
			Secret:   "fresh-secret",
			Consumer: &models.ConsumerRef{ID: "svc-a"},
		},
	}
	handler := NewCredentialHandler(creds)

	engine := gin.New()
	engine.Use(RequestIDMiddleware())
	engine.POST("/consumers/:id/credentials",
		ReplayGuardMiddleware(client, time.Minute, logger.NewNoopLogger()),
		handler.Provision)
	return engine, mr
}

func provisionWithKey(engine *gin.Engine, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/consumers/svc-a/credentials", nil)
	if key != "" {
		req.Header.Set(constants.HeaderIdempotencyKey, key)
	}
	rr := httptest.NewRecorder()
	engine.ServeHTTP(rr, req)
	return rr
}

func TestReplayGuardRejectsDuplicateKey(t *testing.T) {
	engine, _ := newGuardedEngine(t)

	require.Equal(t, http.StatusCreated, provisionWithKey(engine, "deploy-42").Code)

	rr := provisionWithKey(engine, "deploy-42")
	require.Equal(t, http.StatusConflict, rr.Code)
	env := decodeEnvelope(t, rr)
	require.NotNil(t, env.Error)
	assert.Equal(t, errors.CodeConflict, env.Error.Code)
}

func TestReplayGuardAllowsDistinctKeys(t *testing.T) {
	engine, _ := newGuardedEngine(t)

	assert.Equal(t, http.StatusCreated, provisionWithKey(engine, "deploy-1").Code)
	assert.Equal(t, http.StatusCreated, provisionWithKey(engine, "deploy-2").Code)
}

func TestReplayGuardIgnoresRequestsWithoutKey(t *testing.T) {
	engine, _ := newGuardedEngine(t)

	assert.Equal(t, http.StatusCreated, provisionWithKey(engine, "").Code)
	assert.Equal(t, http.StatusCreated, provisionWithKey(engine, "").Code)
}

func TestReplayGuardExpiresWithTTL(t *testing.T) {
	engine, mr := newGuardedEngine(t)

	require.Equal(t, http.StatusCreated, provisionWithKey(engine, "deploy-7").Code)

	mr.FastForward(2 * time.Minute)

	assert.Equal(t, http.StatusCreated, provisionWithKey(engine, "deploy-7").Code)
}

func TestReplayGuardFailsOpenWhenRedisDown(t *testing.T) {
	engine, mr := newGuardedEngine(t)
	mr.Close()

	assert.Equal(t, http.StatusCreated, provisionWithKey(engine, "deploy-9").Code)
	assert.Equal(t, http.StatusCreated, provisionWithKey(engine, "deploy-9").Code)
}
