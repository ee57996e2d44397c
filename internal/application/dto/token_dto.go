package dto

import (
	"github.com/turtacn/gts/internal/domain/models"
)

// IssueTokenRequest asks for a fresh access token.
type IssueTokenRequest struct {
	// CallerID identifies the consumer the token is issued for.
	CallerID string `json:"caller_id" binding:"required"`

	// Name and UniqueName optionally set the display identity claims.
	Name       string `json:"name,omitempty"`
	UniqueName string `json:"unique_name,omitempty"`
}

// TokenResponse carries an issued access token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	ExpiresAt   int64  `json:"expires_at"`
}

// ValidateTokenRequest asks for a token to be checked against its caller's
// current signing credential.
type ValidateTokenRequest struct {
	CallerID string `json:"caller_id" binding:"required"`
	Token    string `json:"token" binding:"required"`
}

// ValidateTokenResponse is the structured validation outcome. Invalid tokens
// are reported here, not as HTTP errors.
type ValidateTokenResponse struct {
	Valid   bool                   `json:"valid"`
	Expired bool                   `json:"expired,omitempty"`
	Reason  string                 `json:"reason,omitempty"`
	Claims  map[string]interface{} `json:"claims,omitempty"`
}

// CredentialResponse reports a provisioned signing credential. The secret
// appears exactly once, in the provisioning response.
type CredentialResponse struct {
	ConsumerID string `json:"consumer_id"`
	Key        string `json:"key"`
	Secret     string `json:"secret"`
}

// UpstreamHealthDTO reports the upstream probe outcome.
type UpstreamHealthDTO struct {
	Healthy        bool   `json:"healthy"`
	ResponseTimeMs int64  `json:"response_time_ms"`
	Error          string `json:"error,omitempty"`
}

// BreakerDTO reports one operation's circuit state.
type BreakerDTO struct {
	State               string `json:"state"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	OpenedAt            int64  `json:"opened_at,omitempty"`
}

// ReadinessResponse aggregates the readiness probe components.
type ReadinessResponse struct {
	Status   string                `json:"status"`
	Upstream UpstreamHealthDTO     `json:"upstream"`
	Cache    models.CacheStats     `json:"cache"`
	Breakers map[string]BreakerDTO `json:"breakers,omitempty"`

	// Checks reports named dependency probes, "ok" or an error text.
	Checks map[string]string `json:"checks,omitempty"`
}

// NewUpstreamHealthDTO converts the domain health report.
func NewUpstreamHealthDTO(h *models.UpstreamHealth) UpstreamHealthDTO {
	if h == nil {
		return UpstreamHealthDTO{}
	}
	return UpstreamHealthDTO{
		Healthy:        h.Healthy,
		ResponseTimeMs: h.ResponseTime.Milliseconds(),
		Error:          h.Error,
	}
}

// NewBreakerDTO converts one circuit record.
func NewBreakerDTO(rec models.BreakerRecord) BreakerDTO {
	d := BreakerDTO{
		State:               string(rec.State),
		ConsecutiveFailures: rec.ConsecutiveFailures,
	}
	if !rec.OpenedAt.IsZero() {
		d.OpenedAt = rec.OpenedAt.Unix()
	}
	return d
}
