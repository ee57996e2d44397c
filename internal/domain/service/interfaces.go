// Package service defines the domain service contracts of the GTS token
// service. Implementations live in the infrastructure and application
// layers; everything here is a port.
package service

import (
	"context"
	"net/http"
	"time"

	"github.com/turtacn/gts/internal/domain/models"
	"github.com/turtacn/gts/pkg/constants"
)

// IssueParams carries everything the token engine needs to build and sign
// one token. Issuer and Audience accept comma-separated lists: the first
// issuer value becomes the iss claim, a single audience value is emitted as
// a plain string and several as an array.
// IssueParams 携带令牌引擎构建和签名一个令牌所需的全部信息。
type IssueParams struct {
	// Subject is the caller identifier the token is issued for.
	Subject string

	// KeyID and Secret are the signing credential.
	KeyID  string
	Secret string

	// Issuer and Audience are comma-separated configuration values.
	Issuer   string
	Audience string

	// Name and UniqueName carry the caller's display identity claims.
	Name       string
	UniqueName string

	// Lifetime bounds token validity. Zero selects the default.
	Lifetime time.Duration
}

//go:generate mockery --name TokenService --output mocks --outpkg mocks
// TokenService defines the interface for issuing and validating compact
// HMAC-signed tokens.
// TokenService 定义了颁发和验证紧凑 HMAC 签名令牌的接口。
type TokenService interface {
	// Issue builds and signs a token for the given parameters.
	// Issue 为给定参数构建并签名一个令牌。
	Issue(ctx context.Context, params IssueParams) (*models.IssuedToken, error)

	// Validate checks a presented token against a secret and returns a
	// structured result. Bad tokens are reported as data, never as a Go
	// error, so the edge can map them to 4xx responses.
	// Validate 根据密钥检查令牌并返回结构化结果，坏令牌作为数据报告。
	Validate(ctx context.Context, token string, secret string) *models.ValidationResult
}

//go:generate mockery --name CredentialService --output mocks --outpkg mocks
// CredentialService defines the interface for resilient consumer credential
// retrieval and provisioning against the upstream gateway.
// CredentialService 定义了面向上游网关的弹性消费者凭证检索与创建接口。
type CredentialService interface {
	// GetConsumerSecret returns the signing credential for a consumer.
	// A nil secret with nil error means the consumer does not exist.
	// GetConsumerSecret 返回消费者的签名凭证。nil 凭证加 nil 错误表示消费者不存在。
	GetConsumerSecret(ctx context.Context, consumerID string) (*models.ConsumerSecret, error)

	// CreateConsumerSecret provisions a fresh credential for a consumer.
	// A nil secret with nil error means the consumer does not exist
	// upstream.
	// CreateConsumerSecret 为消费者创建新凭证。
	CreateConsumerSecret(ctx context.Context, consumerID string) (*models.ConsumerSecret, error)

	// HealthCheck probes the upstream admin API.
	// HealthCheck 探测上游管理 API。
	HealthCheck(ctx context.Context) *models.UpstreamHealth

	// ClearCache evicts one consumer's cached credential, or every cached
	// credential when consumerID is empty.
	// ClearCache 清除单个消费者的缓存凭证，consumerID 为空时清除全部。
	ClearCache(ctx context.Context, consumerID string) error

	// CacheStats reports secret cache effectiveness.
	CacheStats(ctx context.Context) models.CacheStats

	// BreakerStats reports every operation's circuit state.
	BreakerStats(ctx context.Context) (map[string]models.BreakerRecord, error)
}

//go:generate mockery --name SecretCache --output mocks --outpkg mocks
// SecretCache defines the interface for the tiered consumer credential
// cache. Every Set writes both tiers; normal reads touch only the primary
// tier. GetStale exists solely for the circuit-open fallback path.
// SecretCache 定义了分层消费者凭证缓存的接口。GetStale 仅用于熔断降级路径。
type SecretCache interface {
	// Get returns the credential from the primary tier.
	Get(ctx context.Context, key string) (*models.ConsumerSecret, bool)

	// GetStale returns the credential from the stale tier.
	GetStale(ctx context.Context, key string) (*models.ConsumerSecret, bool)

	// Set writes the credential to both tiers.
	Set(ctx context.Context, key string, secret *models.ConsumerSecret) error

	// Delete evicts the credential from both tiers.
	Delete(ctx context.Context, key string) error

	// Clear evicts everything from both tiers.
	Clear(ctx context.Context) error

	// Stats reports hit rate and read latency accounting.
	Stats(ctx context.Context) models.CacheStats
}

//go:generate mockery --name UpstreamStrategy --output mocks --outpkg mocks
// UpstreamStrategy defines the interface abstracting how the upstream admin
// API is addressed and authenticated. Selected once at startup from
// configuration; requests never re-negotiate the mode.
// UpstreamStrategy 定义了上游管理 API 的寻址与认证抽象。启动时选择一次。
type UpstreamStrategy interface {
	// Mode names the active strategy.
	Mode() constants.UpstreamMode

	// ConsumerURL returns the credential collection URL for a consumer.
	ConsumerURL(consumerID string) string

	// HealthURL returns the upstream status probe URL.
	HealthURL() string

	// AuthHeaders returns the headers that authenticate an admin request.
	// AuthHeaders 返回用于管理请求认证的请求头。
	AuthHeaders(ctx context.Context) (http.Header, error)

	// ResolveConsumerID maps an external caller identifier to the
	// upstream's internal consumer id. Returns ("", false) on any
	// failure, absence is not an error.
	// ResolveConsumerID 将外部调用者标识映射为上游内部消费者 ID。
	ResolveConsumerID(ctx context.Context, externalID string) (string, bool)

	// EnsureReady performs whatever the mode needs before admin calls can
	// be made, such as obtaining a control plane token.
	// EnsureReady 在管理调用之前完成该模式所需的准备工作。
	EnsureReady(ctx context.Context) error
}

//go:generate mockery --name CircuitBreaker --output mocks --outpkg mocks
// CircuitBreaker defines the interface guarding upstream operations.
// Breakers are keyed by operation name and share state through a
// BreakerStateStore so multiple instances converge on one view.
// CircuitBreaker 定义了保护上游操作的熔断接口。
type CircuitBreaker interface {
	// Do runs fn under the named operation's circuit. Open circuits
	// reject with pkg/errors.ErrCircuitOpen without invoking fn.
	// Do 在指定操作的熔断器下运行 fn。熔断打开时直接拒绝。
	Do(ctx context.Context, operation string, fn func(context.Context) (interface{}, error)) (interface{}, error)

	// Stats returns every known operation's record.
	Stats(ctx context.Context) (map[string]models.BreakerRecord, error)
}

//go:generate mockery --name BreakerStateStore --output mocks --outpkg mocks
// BreakerStateStore defines the interface persisting circuit breaker
// records. CompareAndSwap is version-guarded: the write succeeds only when
// the stored version still equals expected.Version, which is what makes
// half-open probe election safe across instances.
// BreakerStateStore 定义了熔断器记录的持久化接口，CompareAndSwap 由版本守护。
type BreakerStateStore interface {
	// Load returns the operation's record, creating the initial closed
	// record on first use.
	Load(ctx context.Context, operation string) (models.BreakerRecord, error)

	// CompareAndSwap writes next if the stored record still matches
	// expected.Version. Returns false when another writer got there first.
	CompareAndSwap(ctx context.Context, operation string, expected, next models.BreakerRecord) (bool, error)

	// Snapshot returns all known operation records.
	Snapshot(ctx context.Context) (map[string]models.BreakerRecord, error)
}

// AuditService defines the interface for recording security-sensitive audit
// events.
// AuditService 定义了记录安全敏感审计事件的接口。
type AuditService interface {
	// LogEvent records an audit event. Implementations must not block the
	// calling request path on stream availability.
	// LogEvent 记录审计事件，实现不得因流不可用而阻塞调用方。
	LogEvent(ctx context.Context, event *models.AuditEvent) error
}
