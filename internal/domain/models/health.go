// Package models defines the domain models for the GTS token service.
// This file contains upstream health and cache statistics reports.
package models

import "time"

// UpstreamHealth is the outcome of probing the upstream admin API.
// UpstreamHealth 是探测上游管理 API 的结果。
type UpstreamHealth struct {
	// Healthy reports whether the upstream answered a status probe with a
	// 2xx response.
	Healthy bool `json:"healthy"`

	// ResponseTime is how long the whole probe took, retries included.
	ResponseTime time.Duration `json:"response_time_ms"`

	// Error describes why the probe failed, empty when healthy.
	Error string `json:"error,omitempty"`
}

// CacheStats summarizes secret cache effectiveness.
// CacheStats 汇总凭证缓存的有效性。
type CacheStats struct {
	// Entries counts stored items including ones expired but not yet
	// purged; ActiveEntries counts only live primary-tier items.
	Entries       int `json:"entries"`
	ActiveEntries int `json:"active_entries"`

	// HitRate is hits / (hits + misses) over the process lifetime,
	// 0 when nothing has been looked up yet.
	HitRate float64 `json:"hit_rate"`

	// AverageLatencyMs is the mean primary-tier read latency.
	AverageLatencyMs float64 `json:"average_latency_ms"`
}
