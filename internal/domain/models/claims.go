// Package models defines the domain models for the GTS token service.
// This file contains the claim set of issued tokens and the structured
// result of token validation.
package models

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/turtacn/gts/pkg/constants"
)

// TokenClaims is the claim set of an issued token.
// TokenClaims 是已颁发令牌的声明集。
type TokenClaims struct {
	// Subject is the caller identifier the token was issued for.
	Subject string

	// KeyID names the credential used to sign the token, so verifiers can
	// select the right secret.
	KeyID string

	// JTI is the unique token identifier.
	JTI string

	// Issuer is the first configured issuer value. Empty means the claim
	// is omitted.
	Issuer string

	// Audience holds all configured audience values.
	Audience []string

	// Name and UniqueName carry the caller's display identity.
	Name       string
	UniqueName string

	// Unix timestamps. ExpiresAt is fixed at issuance.
	IssuedAt  int64
	NotBefore int64
	ExpiresAt int64
}

// ToMapClaims converts the claim set to a jwt.MapClaims for signing.
// A single audience value is emitted as a plain string, several as an array.
// ToMapClaims 将声明集转换为用于签名的 jwt.MapClaims。
func (c *TokenClaims) ToMapClaims() jwt.MapClaims {
	claims := jwt.MapClaims{
		constants.ClaimSubject:   c.Subject,
		constants.ClaimKey:       c.KeyID,
		constants.ClaimJTI:       c.JTI,
		constants.ClaimIssuedAt:  c.IssuedAt,
		constants.ClaimNotBefore: c.NotBefore,
		constants.ClaimExpiry:    c.ExpiresAt,
	}

	if c.Issuer != "" {
		claims[constants.ClaimIssuer] = c.Issuer
	}
	switch len(c.Audience) {
	case 0:
	case 1:
		claims[constants.ClaimAudience] = c.Audience[0]
	default:
		claims[constants.ClaimAudience] = c.Audience
	}
	if c.Name != "" {
		claims[constants.ClaimName] = c.Name
	}
	if c.UniqueName != "" {
		claims[constants.ClaimUniqueName] = c.UniqueName
	}

	return claims
}

// IssuedToken is the result of a successful token issuance.
type IssuedToken struct {
	// Token is the signed compact serialization.
	Token string

	// ExpiresAt is the unix expiry timestamp, mirrored from the claims.
	ExpiresAt int64

	// Claims is the claim set the token was built from.
	Claims *TokenClaims
}

// ValidationResult is the structured outcome of validating a presented
// token. Bad tokens are data, not errors: the caller distinguishes formats,
// signatures and lifetime problems by Reason without unwrapping error
// chains. Expired and not-yet-valid results still carry the decoded claims.
// ValidationResult 是验证令牌的结构化结果。过期的结果仍携带已解码的声明。
type ValidationResult struct {
	Valid   bool                   `json:"valid"`
	Expired bool                   `json:"expired,omitempty"`
	Reason  string                 `json:"reason,omitempty"`
	Claims  map[string]interface{} `json:"claims,omitempty"`
}

// Validation failure reasons.
const (
	ReasonInvalidFormat   = "invalid token format"
	ReasonInvalidSig      = "invalid signature"
	ReasonInvalidEncoding = "invalid payload encoding"
	ReasonInvalidJSON     = "invalid payload json"
	ReasonExpired         = "token expired"
	ReasonNotYetValid     = "token not yet valid"
)
