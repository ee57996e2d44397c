// Package upstream implements the addressing and authentication strategies
// for the gateway admin API. The strategy is selected once at startup from
// configuration; request paths never re-negotiate the mode.
package upstream

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/turtacn/gts/internal/config"
	"github.com/turtacn/gts/internal/domain/service"
	"github.com/turtacn/gts/pkg/constants"
	"github.com/turtacn/gts/pkg/errors"
	"github.com/turtacn/gts/pkg/logger"
)

// NewStrategy builds the strategy named by cfg.Mode. The http client is
// shared with the credential gateway so the whole service runs on one
// connection pool.
func NewStrategy(cfg config.UpstreamConfig, client *http.Client, log logger.Logger) (service.UpstreamStrategy, error) {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if log == nil {
		log = logger.NewNoopLogger()
	}

	switch constants.UpstreamMode(cfg.Mode) {
	case constants.UpstreamModeDirect:
		return newDirectStrategy(cfg, log), nil
	case constants.UpstreamModeManaged:
		return newManagedStrategy(cfg, client, log), nil
	default:
		return nil, errors.ErrInternal(fmt.Sprintf("unsupported upstream mode %q", cfg.Mode), nil)
	}
}

// baseURL strips a trailing slash so path joins stay predictable.
func baseURL(raw string) string {
	return strings.TrimRight(raw, "/")
}
