// Package crypto implements the token engine of the GTS token service:
// HS256 compact token issuance and validation against per-consumer secrets.
package crypto

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/turtacn/gts/internal/domain/models"
	"github.com/turtacn/gts/internal/domain/service"
	"github.com/turtacn/gts/pkg/constants"
	"github.com/turtacn/gts/pkg/errors"
	"github.com/turtacn/gts/pkg/logger"
)

// hmacTokenService implements service.TokenService with HMAC-SHA256 signed
// compact tokens.
type hmacTokenService struct {
	log logger.Logger
}

// NewTokenService creates the HS256 token engine.
func NewTokenService(log logger.Logger) service.TokenService {
	if log == nil {
		log = logger.NewNoopLogger()
	}
	return &hmacTokenService{
		log: log.WithComponent("token-engine"),
	}
}

// Issue builds the claim set and signs it with the consumer's secret.
func (s *hmacTokenService) Issue(ctx context.Context, params service.IssueParams) (*models.IssuedToken, error) {
	if params.Subject == "" || params.KeyID == "" || params.Secret == "" {
		return nil, errors.ErrInvalidRequest("token issuance requires subject, key id and secret")
	}

	lifetime := params.Lifetime
	if lifetime <= 0 {
		lifetime = constants.DefaultTokenLifetime
	}

	now := time.Now()
	claims := &models.TokenClaims{
		Subject:    params.Subject,
		KeyID:      params.KeyID,
		JTI:        uuid.New().String(),
		Name:       params.Name,
		UniqueName: params.UniqueName,
		IssuedAt:   now.Unix(),
		NotBefore:  now.Unix(),
		ExpiresAt:  now.Add(lifetime).Unix(),
	}
	if issuers := splitList(params.Issuer); len(issuers) > 0 {
		claims.Issuer = issuers[0]
	}
	claims.Audience = splitList(params.Audience)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims.ToMapClaims())
	signed, err := token.SignedString([]byte(params.Secret))
	if err != nil {
		s.log.Error(ctx, "token signing failed", err,
			logger.String("subject", params.Subject),
			logger.String("key_id", params.KeyID))
		return nil, errors.ErrTokenCreation(err)
	}

	s.log.Debug(ctx, "token issued",
		logger.String("subject", params.Subject),
		logger.String("jti", claims.JTI),
		logger.Int64("expires_at", claims.ExpiresAt))

	return &models.IssuedToken{
		Token:     signed,
		ExpiresAt: claims.ExpiresAt,
		Claims:    claims,
	}, nil
}

// Validate verifies a presented token against a secret. The signature is
// recomputed and compared in constant time before any byte of the payload
// is decoded, so nothing claim-derived is trusted on a forged token.
// Expired and not-yet-valid results still carry the decoded claims.
func (s *hmacTokenService) Validate(ctx context.Context, tokenString string, secret string) *models.ValidationResult {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return &models.ValidationResult{Reason: models.ReasonInvalidFormat}
	}

	signingInput := parts[0] + "." + parts[1]
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signingInput))
	expectedMAC := mac.Sum(nil)

	signature, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil || !hmac.Equal(signature, expectedMAC) {
		return &models.ValidationResult{Reason: models.ReasonInvalidSig}
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return &models.ValidationResult{Reason: models.ReasonInvalidEncoding}
	}

	var claims map[string]interface{}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return &models.ValidationResult{Reason: models.ReasonInvalidJSON}
	}

	now := time.Now().Unix()
	if exp, ok := claims[constants.ClaimExpiry].(float64); ok && int64(exp) <= now {
		return &models.ValidationResult{Expired: true, Reason: models.ReasonExpired, Claims: claims}
	}
	if nbf, ok := claims[constants.ClaimNotBefore].(float64); ok && int64(nbf) > now {
		return &models.ValidationResult{Reason: models.ReasonNotYetValid, Claims: claims}
	}

	return &models.ValidationResult{Valid: true, Claims: claims}
}

// splitList splits a comma-separated configuration value, trimming blanks.
func splitList(value string) []string {
	if value == "" {
		return nil
	}

	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
