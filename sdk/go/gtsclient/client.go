// Package gtsclient is a small Go client for the GTS HTTP API. It wraps the
// token, credential and cache endpoints and unpacks the service's response
// envelope, so callers work with typed results instead of raw JSON.
package gtsclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// IdempotencyKeyHeader marks a provisioning request for duplicate-submit
// detection on the server.
const IdempotencyKeyHeader = "Idempotency-Key"

const defaultTimeout = 10 * time.Second

// Token is an issued access token.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	ExpiresAt   int64  `json:"expires_at"`
}

// Validation is the outcome of a token check. Invalid tokens are reported
// here, not as request errors.
type Validation struct {
	Valid   bool                   `json:"valid"`
	Expired bool                   `json:"expired,omitempty"`
	Reason  string                 `json:"reason,omitempty"`
	Claims  map[string]interface{} `json:"claims,omitempty"`
}

// Credential is a provisioned signing credential. The secret is returned
// exactly once, by the provisioning call.
type Credential struct {
	ConsumerID string `json:"consumer_id"`
	Key        string `json:"key"`
	Secret     string `json:"secret"`
}

// UpstreamHealth reports the service's view of its upstream gateway.
type UpstreamHealth struct {
	Healthy        bool   `json:"healthy"`
	ResponseTimeMs int64  `json:"response_time_ms"`
	Error          string `json:"error,omitempty"`
}

// Readiness is the readiness probe report.
type Readiness struct {
	Status   string            `json:"status"`
	Upstream UpstreamHealth    `json:"upstream"`
	Checks   map[string]string `json:"checks,omitempty"`
}

// APIError is a classified error response from the service.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	TraceID    string
}

func (e *APIError) Error() string {
	if e.TraceID != "" {
		return fmt.Sprintf("gts: %s (%s, trace %s)", e.Message, e.Code, e.TraceID)
	}
	return fmt.Sprintf("gts: %s (%s)", e.Message, e.Code)
}

// AsAPIError unwraps err as an *APIError when the service answered with a
// classified error body.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// envelope mirrors the service's response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

// Client calls the GTS HTTP API. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client, for custom transports.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout bounds every request made through the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// New creates a client for the service at baseURL, such as
// "http://localhost:8080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IssueToken requests a fresh access token for callerID. name and uniqueName
// optionally set the display identity claims and may be empty.
func (c *Client) IssueToken(ctx context.Context, callerID, name, uniqueName string) (*Token, error) {
	body := map[string]string{"caller_id": callerID}
	if name != "" {
		body["name"] = name
	}
	if uniqueName != "" {
		body["unique_name"] = uniqueName
	}

	var out Token
	if err := c.do(ctx, http.MethodPost, "/api/v1/tokens", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ValidateToken asks the service to check token against callerID's current
// signing credential.
func (c *Client) ValidateToken(ctx context.Context, callerID, token string) (*Validation, error) {
	body := map[string]string{"caller_id": callerID, "token": token}

	var out Validation
	if err := c.do(ctx, http.MethodPost, "/api/v1/tokens/validate", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ProvisionCredential creates a fresh signing credential for consumerID. A
// non-empty idempotencyKey lets the service reject an accidental duplicate
// submit of the same request.
func (c *Client) ProvisionCredential(ctx context.Context, consumerID, idempotencyKey string) (*Credential, error) {
	var headers http.Header
	if idempotencyKey != "" {
		headers = http.Header{}
		headers.Set(IdempotencyKeyHeader, idempotencyKey)
	}

	var out Credential
	path := "/api/v1/consumers/" + url.PathEscape(consumerID) + "/credentials"
	if err := c.do(ctx, http.MethodPost, path, headers, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// EvictCredential drops consumerID's cached credential, forcing the next
// lookup back to the upstream.
func (c *Client) EvictCredential(ctx context.Context, consumerID string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/cache/"+url.PathEscape(consumerID), nil, nil, nil)
}

// FlushCredentials drops every cached credential.
func (c *Client) FlushCredentials(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/cache", nil, nil, nil)
}

// Ready fetches the readiness report. A degraded service still returns the
// report, so callers inspect Status rather than the error.
func (c *Client) Ready(ctx context.Context) (*Readiness, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health/ready", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// The readiness endpoint answers 200 or 503 with the same body shape.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return nil, fmt.Errorf("gts: unexpected readiness status %d", resp.StatusCode)
	}

	var out Readiness
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("gts: decode readiness response: %w", err)
	}
	return &out, nil
}

// do sends one API request and unpacks the response envelope into out.
func (c *Client) do(ctx context.Context, method, path string, headers http.Header, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("gts: encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("gts: decode response (status %d): %w", resp.StatusCode, err)
	}

	if !env.Success {
		apiErr := &APIError{StatusCode: resp.StatusCode, TraceID: env.TraceID}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		} else {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("gts: decode response data: %w", err)
		}
	}
	return nil
}
