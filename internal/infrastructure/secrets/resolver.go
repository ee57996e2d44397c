// Package secrets resolves configured secret references so credentials never
// have to live in config files. A reference is a literal value, env://NAME,
// or vault://logical/path#field.
package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"

	vault "github.com/hashicorp/vault/api"

	"github.com/turtacn/gts/internal/config"
	"github.com/turtacn/gts/pkg/errors"
	"github.com/turtacn/gts/pkg/logger"
)

const (
	envScheme   = "env://"
	vaultScheme = "vault://"

	// defaultVaultField is read when a vault reference names no #field.
	defaultVaultField = "value"
)

// Resolver turns secret references into secret material. The Vault client is
// optional; without one, vault:// references fail at resolution time.
type Resolver struct {
	vault *vault.Client
	log   logger.Logger
}

// NewResolver builds a Resolver. A Vault client is only constructed when the
// config carries a Vault address.
func NewResolver(cfg config.VaultConfig, log logger.Logger) (*Resolver, error) {
	r := &Resolver{log: log.WithComponent("secrets")}

	if cfg.Address != "" {
		vaultCfg := vault.DefaultConfig()
		vaultCfg.Address = cfg.Address
		client, err := vault.NewClient(vaultCfg)
		if err != nil {
			return nil, errors.ErrInternal("failed to build vault client", err)
		}
		client.SetToken(cfg.Token)
		r.vault = client
	}
	return r, nil
}

// Resolve returns the secret material a reference points at. Values without
// a recognized scheme pass through as literals.
func (r *Resolver) Resolve(ctx context.Context, ref string) (string, error) {
	switch {
	case strings.HasPrefix(ref, envScheme):
		return r.resolveEnv(ctx, ref)
	case strings.HasPrefix(ref, vaultScheme):
		return r.resolveVault(ctx, ref)
	default:
		return ref, nil
	}
}

// ResolveUpstreamCredentials resolves the credential fields of the upstream
// config in place. Called once at startup, before the strategy is built.
func (r *Resolver) ResolveUpstreamCredentials(ctx context.Context, cfg *config.UpstreamConfig) error {
	token, err := r.Resolve(ctx, cfg.AdminToken)
	if err != nil {
		return err
	}
	cfg.AdminToken = token

	clientSecret, err := r.Resolve(ctx, cfg.ClientSecret)
	if err != nil {
		return err
	}
	cfg.ClientSecret = clientSecret
	return nil
}

// ResolveRedisPassword resolves the Redis password field in place.
func (r *Resolver) ResolveRedisPassword(ctx context.Context, cfg *config.RedisConfig) error {
	password, err := r.Resolve(ctx, cfg.Password)
	if err != nil {
		return err
	}
	cfg.Password = password
	return nil
}

func (r *Resolver) resolveEnv(ctx context.Context, ref string) (string, error) {
	name := strings.TrimPrefix(ref, envScheme)
	value, ok := os.LookupEnv(name)
	if !ok {
		return "", errors.ErrSecretResolution(ref, fmt.Errorf("environment variable %s is not set", name))
	}
	r.log.Debug(ctx, "secret reference resolved from environment", logger.String("ref", ref))
	return value, nil
}

func (r *Resolver) resolveVault(ctx context.Context, ref string) (string, error) {
	if r.vault == nil {
		return "", errors.ErrSecretResolution(ref, fmt.Errorf("no vault client configured"))
	}

	rest := strings.TrimPrefix(ref, vaultScheme)
	path, field, _ := strings.Cut(rest, "#")
	if field == "" {
		field = defaultVaultField
	}
	if path == "" {
		return "", errors.ErrSecretResolution(ref, fmt.Errorf("empty vault path"))
	}

	secret, err := r.vault.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return "", errors.ErrSecretResolution(ref, err)
	}
	if secret == nil || secret.Data == nil {
		return "", errors.ErrSecretResolution(ref, fmt.Errorf("no secret at %s", path))
	}

	value, ok := extractField(secret.Data, field)
	if !ok {
		return "", errors.ErrSecretResolution(ref, fmt.Errorf("field %s not present at %s", field, path))
	}
	r.log.Debug(ctx, "secret reference resolved from vault", logger.String("ref", ref))
	return value, nil
}

// extractField reads a string field from a logical read, unwrapping the KV
// v2 data envelope when present.
func extractField(data map[string]interface{}, field string) (string, bool) {
	if nested, ok := data["data"].(map[string]interface{}); ok {
		if v, ok := nested[field].(string); ok {
			return v, true
		}
	}
	v, ok := data[field].(string)
	return v, ok
}
