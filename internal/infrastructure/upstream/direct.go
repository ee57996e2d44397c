package upstream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/turtacn/gts/internal/config"
	"github.com/turtacn/gts/pkg/constants"
	"github.com/turtacn/gts/pkg/logger"
)

// directStrategy talks to a self-hosted gateway admin API authenticated by a
// static admin token.
type directStrategy struct {
	base        string
	tokenHeader string
	token       string
	log         logger.Logger
}

func newDirectStrategy(cfg config.UpstreamConfig, log logger.Logger) *directStrategy {
	header := cfg.AdminTokenHeader
	if header == "" {
		header = constants.DefaultAdminTokenHeader
	}
	return &directStrategy{
		base:        baseURL(cfg.AdminBase),
		tokenHeader: header,
		token:       cfg.AdminToken,
		log:         log.WithComponent("upstream.direct"),
	}
}

func (s *directStrategy) Mode() constants.UpstreamMode { return constants.UpstreamModeDirect }

func (s *directStrategy) ConsumerURL(consumerID string) string {
	return fmt.Sprintf("%s/consumers/%s/jwt", s.base, url.PathEscape(consumerID))
}

func (s *directStrategy) HealthURL() string {
	return s.base + "/status"
}

// AuthHeaders returns the static admin token header. An empty configured
// token yields empty headers for gateways running an unprotected admin port.
func (s *directStrategy) AuthHeaders(ctx context.Context) (http.Header, error) {
	h := make(http.Header)
	if s.token != "" {
		h.Set(s.tokenHeader, s.token)
	}
	return h, nil
}

// ResolveConsumerID is the identity map: a direct gateway addresses
// consumers by the caller identifier itself.
func (s *directStrategy) ResolveConsumerID(ctx context.Context, externalID string) (string, bool) {
	return externalID, true
}

// EnsureReady is a no-op, direct mode has no prerequisite handshake.
func (s *directStrategy) EnsureReady(ctx context.Context) error { return nil }
