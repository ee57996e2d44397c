package gtsclient_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/gts/sdk/go/gtsclient"
)

// recorded holds the last request seen by the mock service.
type recorded struct {
	header http.Header
	body   []byte
}

// newMockService serves envelope-wrapped responses the way the real service
// does, recording each request for assertions.
func newMockService(t *testing.T) (*httptest.Server, *recorded) {
	t.Helper()

	rec := &recorded{}
	capture := func(r *http.Request) {
		rec.header = r.Header.Clone()
		rec.body, _ = io.ReadAll(r.Body)
	}

	sendEnvelope := func(w http.ResponseWriter, status int, data interface{}) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":   true,
			"data":      data,
			"timestamp": 1700000000,
		})
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/tokens", func(w http.ResponseWriter, r *http.Request) {
		capture(r)
		sendEnvelope(w, http.StatusOK, map[string]interface{}{
			"access_token": "header.payload.signature",
			"token_type":   "Bearer",
			"expires_in":   1800,
			"expires_at":   1700001800,
		})
	})
	mux.HandleFunc("POST /api/v1/tokens/validate", func(w http.ResponseWriter, r *http.Request) {
		capture(r)
		sendEnvelope(w, http.StatusOK, map[string]interface{}{
			"valid":  false,
			"reason": "token is expired",
		})
	})
	mux.HandleFunc("POST /api/v1/consumers/svc-a/credentials", func(w http.ResponseWriter, r *http.Request) {
		capture(r)
		sendEnvelope(w, http.StatusCreated, map[string]interface{}{
			"consumer_id": "svc-a",
			"key":         "key-1",
			"secret":      "fresh-secret",
		})
	})
	mux.HandleFunc("POST /api/v1/consumers/missing/credentials", func(w http.ResponseWriter, r *http.Request) {
		capture(r)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":  false,
			"error":    map[string]string{"code": "consumer_not_found", "message": "consumer missing does not exist"},
			"trace_id": "trace-123",
		})
	})
	mux.HandleFunc("DELETE /api/v1/cache", func(w http.ResponseWriter, r *http.Request) {
		capture(r)
		sendEnvelope(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /health/ready", func(w http.ResponseWriter, r *http.Request) {
		capture(r)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":   "degraded",
			"upstream": map[string]interface{}{"healthy": false, "response_time_ms": 0, "error": "connection refused"},
			"checks":   map[string]string{"redis": "ok"},
		})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, rec
}

func TestClient(t *testing.T) {
	server, rec := newMockService(t)
	client := gtsclient.New(server.URL)
	ctx := context.Background()

	t.Run("issue token decodes the envelope data", func(t *testing.T) {
		token, err := client.IssueToken(ctx, "svc-a", "Service A", "")
		require.NoError(t, err)
		assert.Equal(t, "header.payload.signature", token.AccessToken)
		assert.Equal(t, "Bearer", token.TokenType)
		assert.Equal(t, int64(1800), token.ExpiresIn)

		assert.Equal(t, "application/json", rec.header.Get("Content-Type"))
		assert.JSONEq(t, `{"caller_id":"svc-a","name":"Service A"}`, string(rec.body))
	})

	t.Run("invalid token is a result, not an error", func(t *testing.T) {
		result, err := client.ValidateToken(ctx, "svc-a", "bad-token")
		require.NoError(t, err)
		assert.False(t, result.Valid)
		assert.Equal(t, "token is expired", result.Reason)
	})

	t.Run("provision sends the idempotency key header", func(t *testing.T) {
		cred, err := client.ProvisionCredential(ctx, "svc-a", "req-42")
		require.NoError(t, err)
		assert.Equal(t, "svc-a", cred.ConsumerID)
		assert.Equal(t, "key-1", cred.Key)
		assert.Equal(t, "fresh-secret", cred.Secret)
		assert.Equal(t, "req-42", rec.header.Get(gtsclient.IdempotencyKeyHeader))
	})

	t.Run("provision without a key omits the header", func(t *testing.T) {
		_, err := client.ProvisionCredential(ctx, "svc-a", "")
		require.NoError(t, err)
		assert.Empty(t, rec.header.Get(gtsclient.IdempotencyKeyHeader))
	})

	t.Run("error envelopes map to APIError", func(t *testing.T) {
		_, err := client.ProvisionCredential(ctx, "missing", "")
		require.Error(t, err)

		apiErr, ok := gtsclient.AsAPIError(err)
		require.True(t, ok)
		assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
		assert.Equal(t, "consumer_not_found", apiErr.Code)
		assert.Equal(t, "trace-123", apiErr.TraceID)
		assert.Contains(t, apiErr.Error(), "consumer missing does not exist")
	})

	t.Run("flush succeeds without decoding data", func(t *testing.T) {
		assert.NoError(t, client.FlushCredentials(ctx))
	})

	t.Run("degraded readiness still returns the report", func(t *testing.T) {
		report, err := client.Ready(ctx)
		require.NoError(t, err)
		assert.Equal(t, "degraded", report.Status)
		assert.False(t, report.Upstream.Healthy)
		assert.Equal(t, "connection refused", report.Upstream.Error)
		assert.Equal(t, "ok", report.Checks["redis"])
	})
}
