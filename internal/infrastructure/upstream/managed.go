package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/turtacn/gts/internal/config"
	"github.com/turtacn/gts/pkg/constants"
	"github.com/turtacn/gts/pkg/errors"
	"github.com/turtacn/gts/pkg/logger"
)

// defaultRenewBuffer is subtracted from the control plane token expiry so
// renewal happens before the token lapses mid-request.
const defaultRenewBuffer = 30 * time.Second

// managedStrategy talks to a hosted control plane. Admin calls require a
// short-lived bearer token obtained from the provider's auth endpoint; the
// token is cached under a read lock and lazily renewed inside the renewal
// buffer.
type managedStrategy struct {
	cfg    config.UpstreamConfig
	base   string
	client *http.Client
	log    logger.Logger

	mu     sync.RWMutex
	token  string
	expiry time.Time

	now func() time.Time
}

func newManagedStrategy(cfg config.UpstreamConfig, client *http.Client, log logger.Logger) *managedStrategy {
	if cfg.TokenRenewBuffer <= 0 {
		cfg.TokenRenewBuffer = defaultRenewBuffer
	}
	return &managedStrategy{
		cfg:    cfg,
		base:   baseURL(cfg.APIBase),
		client: client,
		log:    log.WithComponent("upstream.managed"),
		now:    time.Now,
	}
}

func (s *managedStrategy) Mode() constants.UpstreamMode { return constants.UpstreamModeManaged }

func (s *managedStrategy) ConsumerURL(consumerID string) string {
	return fmt.Sprintf("%s/control-planes/%s/consumers/%s/jwt",
		s.base, url.PathEscape(s.cfg.ControlPlaneID), url.PathEscape(consumerID))
}

func (s *managedStrategy) HealthURL() string {
	return fmt.Sprintf("%s/control-planes/%s/status", s.base, url.PathEscape(s.cfg.ControlPlaneID))
}

func (s *managedStrategy) AuthHeaders(ctx context.Context) (http.Header, error) {
	token, err := s.controlPlaneToken(ctx)
	if err != nil {
		return nil, err
	}
	h := make(http.Header)
	h.Set("Authorization", "Bearer "+token)
	return h, nil
}

// EnsureReady front-loads the control plane handshake so the first admin
// call does not pay for it inside its own timeout.
func (s *managedStrategy) EnsureReady(ctx context.Context) error {
	_, err := s.controlPlaneToken(ctx)
	return err
}

// ResolveConsumerID maps an external username onto the control plane's
// internal consumer UUID. Every failure reads as absence: the credential
// path treats a broken lookup the same as a missing consumer.
func (s *managedStrategy) ResolveConsumerID(ctx context.Context, externalID string) (string, bool) {
	headers, err := s.AuthHeaders(ctx)
	if err != nil {
		s.log.Warn(ctx, "consumer resolution skipped, control plane auth failed",
			logger.String("external_id", externalID))
		return "", false
	}

	lookupURL := fmt.Sprintf("%s/control-planes/%s/consumers/%s",
		s.base, url.PathEscape(s.cfg.ControlPlaneID), url.PathEscape(externalID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lookupURL, nil)
	if err != nil {
		return "", false
	}
	for name, values := range headers {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Warn(ctx, "consumer resolution request failed",
			logger.String("external_id", externalID), logger.Err(err))
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", false
	}

	var body struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.ID == "" {
		return "", false
	}
	return body.ID, true
}

// controlPlaneToken returns the cached bearer token, renewing it once it is
// within the renewal buffer of expiry.
func (s *managedStrategy) controlPlaneToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	if s.tokenFresh() {
		token := s.token
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another caller may have renewed while we waited for the write lock.
	if s.tokenFresh() {
		return s.token, nil
	}

	payload, err := json.Marshal(map[string]string{
		"client_id":     s.cfg.ClientID,
		"client_secret": s.cfg.ClientSecret,
	})
	if err != nil {
		return "", errors.ErrControlPlaneAuth(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.AuthEndpoint, bytes.NewReader(payload))
	if err != nil {
		return "", errors.ErrControlPlaneAuth(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", errors.ErrControlPlaneAuth(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.ErrControlPlaneAuth(fmt.Errorf("auth endpoint returned status %d", resp.StatusCode))
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", errors.ErrControlPlaneAuth(err)
	}
	if body.AccessToken == "" {
		return "", errors.ErrControlPlaneAuth(fmt.Errorf("auth endpoint returned an empty token"))
	}

	s.token = body.AccessToken
	s.expiry = s.now().Add(time.Duration(body.ExpiresIn) * time.Second)
	s.log.Debug(ctx, "control plane token renewed", logger.Time("expiry", s.expiry))
	return s.token, nil
}

// tokenFresh reports whether the cached token is still outside the renewal
// buffer. Callers must hold at least the read lock.
func (s *managedStrategy) tokenFresh() bool {
	return s.token != "" && s.now().Before(s.expiry.Add(-s.cfg.TokenRenewBuffer))
}
