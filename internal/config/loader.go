package config

import (
	"context"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/turtacn/gts/pkg/constants"
	"github.com/turtacn/gts/pkg/logger"
)

// Loader reads configuration from file, environment variables and defaults,
// and can watch the file for changes.
type Loader struct {
	v   *viper.Viper
	log logger.Logger
}

// NewLoader creates a configuration loader.
func NewLoader(log logger.Logger) *Loader {
	if log == nil {
		log = logger.NewNoopLogger()
	}
	return &Loader{
		v:   viper.New(),
		log: log.WithComponent("config"),
	}
}

// Load loads the configuration. Environment variables use the GTS_ prefix
// with dots replaced by underscores, e.g. GTS_UPSTREAM_ADMIN_BASE.
func (l *Loader) Load() (*Config, error) {
	v := l.v

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/gts/")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine, defaults and env cover everything.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	v.SetEnvPrefix("GTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if v.ConfigFileUsed() != "" {
		l.log.Info(context.Background(), "configuration loaded",
			logger.String("file", v.ConfigFileUsed()))
	}

	return &cfg, nil
}

// Watch re-reads the configuration whenever the underlying file changes and
// hands validated snapshots to onChange. Invalid edits are logged and
// dropped, the previous configuration stays in effect.
func (l *Loader) Watch(onChange func(*Config)) {
	l.v.OnConfigChange(func(event fsnotify.Event) {
		ctx := context.Background()

		var cfg Config
		if err := l.v.Unmarshal(&cfg); err != nil {
			l.log.Error(ctx, "ignoring config change, unmarshal failed", err,
				logger.String("file", event.Name))
			return
		}
		if err := cfg.Validate(); err != nil {
			l.log.Error(ctx, "ignoring config change, validation failed", err,
				logger.String("file", event.Name))
			return
		}

		l.log.Info(ctx, "configuration reloaded",
			logger.String("file", event.Name),
			logger.String("op", event.Op.String()))
		onChange(&cfg)
	})
	l.v.WatchConfig()
}

// setDefaults registers the default value of every configuration key.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.enable_pprof", false)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("upstream.mode", string(constants.UpstreamModeDirect))
	v.SetDefault("upstream.admin_base", "http://localhost:8001")
	v.SetDefault("upstream.admin_token", "")
	v.SetDefault("upstream.admin_token_header", constants.DefaultAdminTokenHeader)
	v.SetDefault("upstream.api_base", "")
	v.SetDefault("upstream.control_plane_id", "")
	v.SetDefault("upstream.auth_endpoint", "")
	v.SetDefault("upstream.client_id", "")
	v.SetDefault("upstream.client_secret", "")
	v.SetDefault("upstream.token_renew_buffer", "60s")
	v.SetDefault("upstream.lookup_timeout", constants.LookupTimeout.String())
	v.SetDefault("upstream.provision_timeout", constants.ProvisionTimeout.String())

	v.SetDefault("token.issuer", "")
	v.SetDefault("token.audience", "")
	v.SetDefault("token.lifetime", constants.DefaultTokenLifetime.String())

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.primary_ttl", constants.PrimaryCacheTTL.String())
	v.SetDefault("cache.stale_ttl", constants.StaleCacheTTL.String())

	v.SetDefault("breaker.store", "memory")
	v.SetDefault("breaker.error_threshold", constants.BreakerErrorThreshold)
	v.SetDefault("breaker.reset_timeout", constants.BreakerResetTimeout.String())

	v.SetDefault("retry.lookup_attempts", constants.LookupRetryAttempts)
	v.SetDefault("retry.health_attempts", constants.HealthRetryAttempts)
	v.SetDefault("retry.base_delay", constants.RetryBaseDelay.String())
	v.SetDefault("retry.max_delay", constants.RetryMaxDelay.String())

	v.SetDefault("redis.addresses", []string{})
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)

	v.SetDefault("vault.address", "")
	v.SetDefault("vault.token", "")
	v.SetDefault("vault.mount_path", "secret")

	v.SetDefault("audit.enabled", false)
	v.SetDefault("audit.brokers", []string{})
	v.SetDefault("audit.topic", "gts.audit.events")
	v.SetDefault("audit.signing_key", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "stdout")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.jaeger_endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("tracing.service_name", constants.ServiceName)
	v.SetDefault("tracing.sampling_ratio", 1.0)

	v.SetDefault("idempotency.enabled", false)
	v.SetDefault("idempotency.ttl", "10m")
}
