// Package cache implements the tiered consumer credential cache: a short
// primary tier serving normal reads and a long stale tier that only the
// circuit-open fallback path consults. Backends exist for process-local
// memory and for Redis.
package cache

import (
	"sync/atomic"
	"time"

	"github.com/turtacn/gts/pkg/constants"
)

// Config holds the tier lifetimes shared by both backends.
type Config struct {
	PrimaryTTL time.Duration
	StaleTTL   time.Duration
}

// DefaultConfig returns the default tier lifetimes.
func DefaultConfig() Config {
	return Config{
		PrimaryTTL: constants.PrimaryCacheTTL,
		StaleTTL:   constants.StaleCacheTTL,
	}
}

func (c Config) withDefaults() Config {
	if c.PrimaryTTL <= 0 {
		c.PrimaryTTL = constants.PrimaryCacheTTL
	}
	if c.StaleTTL <= 0 {
		c.StaleTTL = constants.StaleCacheTTL
	}
	return c
}

// statsCounter accumulates hit/miss/latency accounting for primary-tier
// reads. Stale-tier reads are outage fallbacks and stay out of the hit
// rate. Safe for concurrent use.
type statsCounter struct {
	hits         atomic.Int64
	misses       atomic.Int64
	reads        atomic.Int64
	latencyNanos atomic.Int64
}

func (c *statsCounter) observe(hit bool, elapsed time.Duration) {
	if hit {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	c.reads.Add(1)
	c.latencyNanos.Add(elapsed.Nanoseconds())
}

func (c *statsCounter) hitRate() float64 {
	hits := c.hits.Load()
	total := hits + c.misses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

func (c *statsCounter) averageLatencyMs() float64 {
	reads := c.reads.Load()
	if reads == 0 {
		return 0
	}
	return float64(c.latencyNanos.Load()) / float64(reads) / float64(time.Millisecond)
}
