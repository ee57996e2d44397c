package service

import (
	"context"
	"time"

	"github.com/turtacn/gts/internal/application/dto"
	"github.com/turtacn/gts/internal/domain/models"
	domainService "github.com/turtacn/gts/internal/domain/service"
	"github.com/turtacn/gts/pkg/constants"
	"github.com/turtacn/gts/pkg/errors"
	"github.com/turtacn/gts/pkg/logger"
)

// Token issuance result labels.
const (
	resultInvalidClient = "invalid_client"
	resultUnavailable   = "unavailable"
)

// TokenIssuerConfig carries the claim configuration of issued tokens.
// Issuer and Audience accept comma-separated lists.
type TokenIssuerConfig struct {
	Issuer   string
	Audience string
	Lifetime time.Duration
}

// TokenAppService fronts token issuance and validation. It resolves the
// caller's signing credential through the gateway and drives the token
// engine with it, translating gateway outcomes into the API error surface:
// an absent consumer reads as invalid client credentials, an open circuit
// as retry-later.
// TokenAppService 负责令牌的颁发与验证，将网关结果翻译为 API 错误面。
type TokenAppService struct {
	credentials domainService.CredentialService
	engine      domainService.TokenService
	cfg         TokenIssuerConfig
	metrics     Metrics
	log         logger.Logger
}

// NewTokenAppService creates the token application service. metrics may be
// nil.
func NewTokenAppService(
	credentials domainService.CredentialService,
	engine domainService.TokenService,
	cfg TokenIssuerConfig,
	metrics Metrics,
	log logger.Logger,
) *TokenAppService {
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = constants.DefaultTokenLifetime
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if log == nil {
		log = logger.NewNoopLogger()
	}
	return &TokenAppService{
		credentials: credentials,
		engine:      engine,
		cfg:         cfg,
		metrics:     metrics,
		log:         log.WithComponent("token_service"),
	}
}

// IssueToken issues a signed access token for the caller.
func (s *TokenAppService) IssueToken(ctx context.Context, req dto.IssueTokenRequest) (*dto.TokenResponse, error) {
	start := time.Now()

	if req.CallerID == "" {
		return nil, errors.ErrInvalidRequest("caller_id is required")
	}

	// 1. Resolve the caller's signing credential through the gateway.
	secret, err := s.resolveSecret(ctx, req.CallerID)
	if err != nil {
		s.metrics.RecordTokenIssued(issueResultLabel(err), time.Since(start))
		return nil, err
	}

	// 2. Build and sign the token with it.
	name := req.Name
	if name == "" {
		name = req.CallerID
	}
	uniqueName := req.UniqueName
	if uniqueName == "" {
		uniqueName = req.CallerID
	}

	issued, err := s.engine.Issue(ctx, domainService.IssueParams{
		Subject:    req.CallerID,
		KeyID:      secret.KeyID,
		Secret:     secret.Secret,
		Issuer:     s.cfg.Issuer,
		Audience:   s.cfg.Audience,
		Name:       name,
		UniqueName: uniqueName,
		Lifetime:   s.cfg.Lifetime,
	})
	if err != nil {
		s.metrics.RecordTokenIssued(resultError, time.Since(start))
		return nil, err
	}

	s.metrics.RecordTokenIssued(resultSuccess, time.Since(start))
	s.log.Info(ctx, "access token issued",
		logger.String("caller_id", req.CallerID),
		logger.String("jti", issued.Claims.JTI),
		logger.Int64("expires_at", issued.ExpiresAt))

	return &dto.TokenResponse{
		AccessToken: issued.Token,
		TokenType:   constants.TokenTypeBearer,
		ExpiresIn:   issued.ExpiresAt - issued.Claims.IssuedAt,
		ExpiresAt:   issued.ExpiresAt,
	}, nil
}

// ValidateToken checks a presented token against the caller's current
// signing credential. Bad tokens come back as data, not errors.
func (s *TokenAppService) ValidateToken(ctx context.Context, req dto.ValidateTokenRequest) (*dto.ValidateTokenResponse, error) {
	if req.CallerID == "" || req.Token == "" {
		return nil, errors.ErrInvalidRequest("caller_id and token are required")
	}

	secret, err := s.resolveSecret(ctx, req.CallerID)
	if err != nil {
		return nil, err
	}

	result := s.engine.Validate(ctx, req.Token, secret.Secret)
	s.metrics.RecordTokenValidation(validationResultLabel(result))

	return &dto.ValidateTokenResponse{
		Valid:   result.Valid,
		Expired: result.Expired,
		Reason:  result.Reason,
		Claims:  result.Claims,
	}, nil
}

// resolveSecret fetches the caller's credential and maps the gateway's
// outcome to the API error surface.
func (s *TokenAppService) resolveSecret(ctx context.Context, callerID string) (*models.ConsumerSecret, error) {
	secret, err := s.credentials.GetConsumerSecret(ctx, callerID)
	if err != nil {
		if errors.IsCircuitOpen(err) {
			s.log.Warn(ctx, "credential lookup rejected by open circuit",
				logger.String("caller_id", callerID))
			return nil, errors.ErrTemporarilyUnavailable("credential lookup temporarily unavailable, retry later")
		}
		return nil, err
	}
	if secret == nil {
		s.log.Warn(ctx, "no signing credential for caller",
			logger.String("caller_id", callerID))
		return nil, errors.ErrInvalidClient("invalid client credentials")
	}
	return secret, nil
}

func issueResultLabel(err error) string {
	appErr, ok := errors.AsAppError(err)
	if !ok {
		return resultError
	}
	switch appErr.Code {
	case errors.CodeTemporarilyUnavailable:
		return resultUnavailable
	case errors.CodeInvalidClient:
		return resultInvalidClient
	default:
		return resultError
	}
}

func validationResultLabel(result *models.ValidationResult) string {
	switch {
	case result.Valid:
		return "valid"
	case result.Expired:
		return "expired"
	default:
		return "invalid"
	}
}
