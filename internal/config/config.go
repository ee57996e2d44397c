// Package config holds the configuration model of the GTS token service and
// its loading logic.
package config

import (
	"fmt"
	"time"

	"github.com/turtacn/gts/pkg/constants"
)

// Config holds the application's configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Token    TokenConfig    `mapstructure:"token"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Breaker  BreakerConfig  `mapstructure:"breaker"`
	Retry    RetryConfig    `mapstructure:"retry"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Vault    VaultConfig    `mapstructure:"vault"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Log      LogConfig      `mapstructure:"log"`
	Tracing  TracingConfig  `mapstructure:"tracing"`

	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
}

// ServerConfig configures the HTTP interface layer.
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	EnablePprof    bool          `mapstructure:"enable_pprof"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// Addr returns the listen address in host:port form.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// UpstreamConfig configures how the upstream gateway admin API is addressed.
// Credential fields accept secret references (literal values, env://NAME or
// vault://mount/path#field) resolved at startup.
type UpstreamConfig struct {
	// Mode is "direct" or "managed".
	Mode string `mapstructure:"mode"`

	// Direct mode.
	AdminBase        string `mapstructure:"admin_base"`
	AdminToken       string `mapstructure:"admin_token"`
	AdminTokenHeader string `mapstructure:"admin_token_header"`

	// Managed mode.
	APIBase          string        `mapstructure:"api_base"`
	ControlPlaneID   string        `mapstructure:"control_plane_id"`
	AuthEndpoint     string        `mapstructure:"auth_endpoint"`
	ClientID         string        `mapstructure:"client_id"`
	ClientSecret     string        `mapstructure:"client_secret"`
	TokenRenewBuffer time.Duration `mapstructure:"token_renew_buffer"`

	// Request timeouts per operation class.
	LookupTimeout    time.Duration `mapstructure:"lookup_timeout"`
	ProvisionTimeout time.Duration `mapstructure:"provision_timeout"`
}

// TokenConfig configures issued tokens.
type TokenConfig struct {
	// Issuer and Audience accept comma-separated lists.
	Issuer   string        `mapstructure:"issuer"`
	Audience string        `mapstructure:"audience"`
	Lifetime time.Duration `mapstructure:"lifetime"`
}

// CacheConfig configures the tiered secret cache.
type CacheConfig struct {
	// Backend is "memory" or "redis".
	Backend    string        `mapstructure:"backend"`
	PrimaryTTL time.Duration `mapstructure:"primary_ttl"`
	StaleTTL   time.Duration `mapstructure:"stale_ttl"`
}

// BreakerConfig configures the circuit breaker.
type BreakerConfig struct {
	// Store is "memory" or "redis". The redis store shares breaker state
	// across service instances.
	Store          string        `mapstructure:"store"`
	ErrorThreshold int           `mapstructure:"error_threshold"`
	ResetTimeout   time.Duration `mapstructure:"reset_timeout"`
}

// RetryConfig configures bounded retries of idempotent upstream reads.
type RetryConfig struct {
	LookupAttempts int           `mapstructure:"lookup_attempts"`
	HealthAttempts int           `mapstructure:"health_attempts"`
	BaseDelay      time.Duration `mapstructure:"base_delay"`
	MaxDelay       time.Duration `mapstructure:"max_delay"`
}

// RedisConfig configures the shared Redis client.
type RedisConfig struct {
	Addresses    []string `mapstructure:"addresses"`
	Password     string   `mapstructure:"password"`
	DB           int      `mapstructure:"db"`
	PoolSize     int      `mapstructure:"pool_size"`
	MinIdleConns int      `mapstructure:"min_idle_conns"`
}

// IdempotencyConfig configures duplicate-submit detection on the credential
// provisioning endpoint. It needs the shared Redis client.
type IdempotencyConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// VaultConfig configures the Vault client used to resolve secret references.
type VaultConfig struct {
	Address   string `mapstructure:"address"`
	Token     string `mapstructure:"token"`
	MountPath string `mapstructure:"mount_path"`
}

// AuditConfig configures the Kafka audit event stream.
type AuditConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`

	// SigningKey, when set, attaches an HMAC-SHA256 signature header to
	// every published event so consumers can detect tampering.
	SigningKey string `mapstructure:"signing_key"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	SamplingRatio  float64 `mapstructure:"sampling_ratio"`
}

// Validate checks for essential configuration values.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in (0, 65535], got %d", c.Server.Port)
	}

	switch constants.UpstreamMode(c.Upstream.Mode) {
	case constants.UpstreamModeDirect:
		if c.Upstream.AdminBase == "" {
			return fmt.Errorf("upstream.admin_base is required in direct mode")
		}
	case constants.UpstreamModeManaged:
		if c.Upstream.APIBase == "" {
			return fmt.Errorf("upstream.api_base is required in managed mode")
		}
		if c.Upstream.ControlPlaneID == "" {
			return fmt.Errorf("upstream.control_plane_id is required in managed mode")
		}
		if c.Upstream.AuthEndpoint == "" {
			return fmt.Errorf("upstream.auth_endpoint is required in managed mode")
		}
		if c.Upstream.ClientID == "" || c.Upstream.ClientSecret == "" {
			return fmt.Errorf("upstream.client_id and upstream.client_secret are required in managed mode")
		}
	default:
		return fmt.Errorf("upstream.mode must be %q or %q, got %q",
			constants.UpstreamModeDirect, constants.UpstreamModeManaged, c.Upstream.Mode)
	}

	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if len(c.Redis.Addresses) == 0 {
			return fmt.Errorf("redis.addresses is required when cache.backend is redis")
		}
	default:
		return fmt.Errorf("cache.backend must be \"memory\" or \"redis\", got %q", c.Cache.Backend)
	}
	if c.Cache.PrimaryTTL <= 0 || c.Cache.StaleTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}
	if c.Cache.StaleTTL < c.Cache.PrimaryTTL {
		return fmt.Errorf("cache.stale_ttl must be at least cache.primary_ttl")
	}

	switch c.Breaker.Store {
	case "memory":
	case "redis":
		if len(c.Redis.Addresses) == 0 {
			return fmt.Errorf("redis.addresses is required when breaker.store is redis")
		}
	default:
		return fmt.Errorf("breaker.store must be \"memory\" or \"redis\", got %q", c.Breaker.Store)
	}
	if c.Breaker.ErrorThreshold <= 0 {
		return fmt.Errorf("breaker.error_threshold must be positive")
	}
	if c.Breaker.ResetTimeout <= 0 {
		return fmt.Errorf("breaker.reset_timeout must be positive")
	}

	if c.Retry.LookupAttempts <= 0 || c.Retry.HealthAttempts <= 0 {
		return fmt.Errorf("retry attempt counts must be positive")
	}

	if c.Token.Lifetime <= 0 {
		return fmt.Errorf("token.lifetime must be positive")
	}

	if c.Audit.Enabled && len(c.Audit.Brokers) == 0 {
		return fmt.Errorf("audit.brokers is required when audit.enabled is true")
	}

	if c.Idempotency.Enabled {
		if len(c.Redis.Addresses) == 0 {
			return fmt.Errorf("redis.addresses is required when idempotency.enabled is true")
		}
		if c.Idempotency.TTL <= 0 {
			return fmt.Errorf("idempotency.ttl must be positive")
		}
	}

	return nil
}
